package grpc

import (
	"context"
	"strings"

	"github.com/sparkly-dev/sparkly-server/internal/common"
	"github.com/sparkly-dev/sparkly-server/internal/netx"
	"github.com/sparkly-dev/sparkly-server/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// protectedMethods need a valid access token.
var protectedMethods = map[string]struct{}{
	WhoAmIMethod:  {},
	GetUserMethod: {},
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	ctx = netx.WithOriginIP(ctx, netx.PeerIP(ctx))

	if _, ok := protectedMethods[info.FullMethod]; ok {

		accessToken := bearerToken(ctx)
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		claims, err := s.tokens.Verify(accessToken)
		if auth.IsExpired(err) {
			return nil, status.Error(codes.Unauthenticated, "access token expired")
		}
		if err != nil {
			s.logger.Debug(ctx, "access token rejected", "method", info.FullMethod, "error", err.Error())
			return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
		}

		ctx = auth.NewContext(ctx, auth.PrincipalFromClaims(claims))
	}

	return handler(ctx, req)
}

// bearerToken reads the access token from the authorization metadata. The
// "Bearer " prefix is optional and matched case-insensitively.
func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(common.AccessTokenHeaderName)
	if len(values) == 0 {
		return ""
	}

	v := strings.TrimSpace(values[0])
	if len(v) >= len(common.BearerPrefix) && strings.EqualFold(v[:len(common.BearerPrefix)], common.BearerPrefix) {
		v = strings.TrimSpace(v[len(common.BearerPrefix):])
	}
	return v
}
