package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sparkly-dev/sparkly-server/internal/common"
	gs "github.com/sparkly-dev/sparkly-server/internal/server/grpc"
	"google.golang.org/grpc/metadata"
)

// getPassword is swapped in tests.
var getPassword = GetPassword

func want(args []string, n int, synopsis string) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s", ErrUsage, synopsis)
	}
	return nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, common.BearerPrefix+token)
}

func (a *App) register(ctx context.Context, args []string) error {
	if err := want(args, 2, "register <username> <email>"); err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.client.Register(ctx, &gs.RegisterRequest{UserName: args[0], Email: args[1], Password: string(password)})
	if err != nil {
		return err
	}

	a.printUser(u)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	if err := want(args, 1, "login <email-or-username>"); err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	s, err := a.client.Login(ctx, &gs.LoginRequest{Identifier: args[0], Password: string(password)})
	if err != nil {
		return err
	}

	a.printSession(s)
	return nil
}

func (a *App) refresh(ctx context.Context, args []string) error {
	if err := want(args, 1, "refresh <refresh-token>"); err != nil {
		return err
	}

	s, err := a.client.Refresh(ctx, &gs.RefreshRequest{RefreshToken: args[0]})
	if err != nil {
		return err
	}

	a.printSession(s)
	return nil
}

func (a *App) logout(ctx context.Context, args []string) error {
	if err := want(args, 1, "logout <refresh-token>"); err != nil {
		return err
	}

	if _, err := a.client.Logout(ctx, &gs.LogoutRequest{RefreshToken: args[0]}); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) whoami(ctx context.Context, args []string) error {
	if err := want(args, 1, "whoami <access-token>"); err != nil {
		return err
	}

	u, err := a.client.WhoAmI(withAccessToken(ctx, args[0]))
	if err != nil {
		return err
	}

	a.printUser(u)
	return nil
}

func (a *App) getUser(ctx context.Context, args []string) error {
	if err := want(args, 2, "getuser <access-token> <id>"); err != nil {
		return err
	}

	u, err := a.client.GetUser(withAccessToken(ctx, args[0]), &gs.GetUserRequest{ID: args[1]})
	if err != nil {
		return err
	}

	a.printUser(u)
	return nil
}

func (a *App) printUser(u *gs.UserResponse) {
	fmt.Fprintf(a.out, "id:       %s\n", u.ID)
	fmt.Fprintf(a.out, "username: %s\n", u.UserName)
	fmt.Fprintf(a.out, "email:    %s\n", u.Email)
	fmt.Fprintf(a.out, "role:     %s\n", u.Role)
}

func (a *App) printSession(s *gs.SessionResponse) {
	fmt.Fprintf(a.out, "access token:  %s\n", s.AccessToken)
	fmt.Fprintf(a.out, "  expires at:  %s\n", s.AccessTokenExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(a.out, "refresh token: %s\n", s.RefreshToken)
	fmt.Fprintf(a.out, "  expires at:  %s\n", s.RefreshTokenExpiresAt.Format(time.RFC3339))
}
