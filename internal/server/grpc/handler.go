package grpc

import (
	"context"
	"errors"

	"github.com/sparkly-dev/sparkly-server/internal/common"
	"github.com/sparkly-dev/sparkly-server/internal/server/auth"
	"github.com/sparkly-dev/sparkly-server/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AdminRole may look up any user.
const AdminRole = "admin"

func (s *GRPCServer) Register(ctx context.Context, req *RegisterRequest) (*UserResponse, error) {

	s.logger.Info(ctx, "Registration request")

	u, err := s.users.Register(ctx, req.UserName, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "user_id", u.ID)
	return toUserResponse(u), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *LoginRequest) (*SessionResponse, error) {

	sess, err := s.sessions.Login(ctx, req.Identifier, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return toSessionResponse(sess), nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *RefreshRequest) (*SessionResponse, error) {

	sess, err := s.sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return toSessionResponse(sess), nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *LogoutRequest) (*Empty, error) {

	if err := s.sessions.Logout(ctx, req.RefreshToken); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &Empty{}, nil
}

func (s *GRPCServer) WhoAmI(ctx context.Context, _ *Empty) (*UserResponse, error) {

	p := auth.FromContext(ctx)
	if !p.IsAuthenticated() {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}

	return &UserResponse{ID: p.UserID, Email: p.Email, UserName: p.UserName, Role: p.Role}, nil
}

// GetUser returns the caller's own record, or any record for an admin.
func (s *GRPCServer) GetUser(ctx context.Context, req *GetUserRequest) (*UserResponse, error) {

	p := auth.FromContext(ctx)
	if !p.IsAuthenticated() {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	if req.ID != p.UserID && !p.IsInRole(AdminRole) {
		return nil, status.Error(codes.PermissionDenied, "permission denied")
	}

	u, err := s.users.FindByID(ctx, req.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return toUserResponse(u), nil
}

// toStatus maps service errors onto gRPC codes. Only the public sentinel
// messages reach the client.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, common.ErrInvalidCredentials.Error())
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return status.Error(codes.Unauthenticated, common.ErrInvalidOrExpiredToken.Error())
	case errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "user already exists")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrPersistence):
		s.logger.Error(ctx, "store unavailable", "error", err.Error())
		return status.Error(codes.Unavailable, "service temporarily unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		s.logger.Error(ctx, "internal error", "error", err.Error())
		return status.Error(codes.Internal, "internal error")
	}
}

func toSessionResponse(sess *models.Session) *SessionResponse {
	return &SessionResponse{
		AccessToken:           sess.AccessToken,
		RefreshToken:          sess.RefreshToken,
		AccessTokenExpiresAt:  sess.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: sess.RefreshTokenExpiresAt,
	}
}

func toUserResponse(u *models.User) *UserResponse {
	return &UserResponse{ID: u.ID, Email: u.Email, UserName: u.UserName, Role: u.Role}
}
