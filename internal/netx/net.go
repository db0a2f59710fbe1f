// Package netx carries the network origin of a request through a context so
// that revocations can record where they came from.
package netx

import (
	"context"
	"net"
	"net/http"

	"google.golang.org/grpc/peer"
)

type originIPKey struct{}

// WithOriginIP returns a child of ctx carrying ip. An empty ip leaves ctx unchanged.
func WithOriginIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, originIPKey{}, ip)
}

// OriginIP returns the address stored by WithOriginIP, or "".
func OriginIP(ctx context.Context) string {
	ip, _ := ctx.Value(originIPKey{}).(string)
	return ip
}

// PeerIP extracts the remote host of a gRPC call.
func PeerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	return HostOnly(p.Addr.String())
}

// RequestIP extracts the remote host of an HTTP request.
func RequestIP(r *http.Request) string {
	return HostOnly(r.RemoteAddr)
}

// HostOnly strips the port from addr when there is one.
func HostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
