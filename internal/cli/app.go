package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	gs "github.com/sparkly-dev/sparkly-server/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// ErrUsage is returned when the command line cannot be understood.
var ErrUsage = errors.New("usage error")

const usage = `usage: authctl [-a addr] [-c config.json] <command> [args]

commands:
  register <username> <email>     create an account (prompts for password)
  login <email-or-username>       open a session (prompts for password)
  refresh <refresh-token>         exchange a refresh token for a new access token
  logout <refresh-token>          revoke a refresh token
  whoami <access-token>           show the principal of an access token
  getuser <access-token> <id>     look up a user record`

// Client is the part of the auth service authctl uses.
type Client interface {
	Register(ctx context.Context, in *gs.RegisterRequest, opts ...grpc.CallOption) (*gs.UserResponse, error)
	Login(ctx context.Context, in *gs.LoginRequest, opts ...grpc.CallOption) (*gs.SessionResponse, error)
	Refresh(ctx context.Context, in *gs.RefreshRequest, opts ...grpc.CallOption) (*gs.SessionResponse, error)
	Logout(ctx context.Context, in *gs.LogoutRequest, opts ...grpc.CallOption) (*gs.Empty, error)
	WhoAmI(ctx context.Context, opts ...grpc.CallOption) (*gs.UserResponse, error)
	GetUser(ctx context.Context, in *gs.GetUserRequest, opts ...grpc.CallOption) (*gs.UserResponse, error)
}

type App struct {
	client  Client
	out     io.Writer
	timeout time.Duration
}

func NewApp(c Client, out io.Writer) *App {
	return &App{client: c, out: out, timeout: 10 * time.Second}
}

// Dial connects to the auth service at addr. A bare ":port" means localhost.
func Dial(addr string) (*grpc.ClientConn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err == nil && host == "" {
		addr = net.JoinHostPort("localhost", port)
	}
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// Run executes the sub-command in args.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return ErrUsage
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd, rest := args[0], args[1:]

	var err error
	switch cmd {
	case "register":
		err = a.register(ctx, rest)
	case "login":
		err = a.login(ctx, rest)
	case "refresh":
		err = a.refresh(ctx, rest)
	case "logout":
		err = a.logout(ctx, rest)
	case "whoami":
		err = a.whoami(ctx, rest)
	case "getuser":
		err = a.getUser(ctx, rest)
	case "help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		fmt.Fprintln(a.out, "Unknown command:", cmd)
		fmt.Fprintln(a.out, usage)
		return ErrUsage
	}

	return describe(err)
}

// describe strips the gRPC status wrapping so the operator sees the
// server's message.
func describe(err error) error {
	if err == nil || errors.Is(err, ErrUsage) {
		return err
	}
	if st, ok := status.FromError(err); ok {
		return fmt.Errorf("%s: %s", st.Code(), st.Message())
	}
	return err
}
