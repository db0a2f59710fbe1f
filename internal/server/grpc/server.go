package grpc

import (
	"context"
	"net"

	"github.com/sparkly-dev/sparkly-server/internal/logging"
	"github.com/sparkly-dev/sparkly-server/internal/server/auth"
	"github.com/sparkly-dev/sparkly-server/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type UserService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type SessionService interface {
	Login(ctx context.Context, identifier, password string) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
	Logout(ctx context.Context, refreshToken string) error
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// GRPCServer serves the Auth service and the standard health service.
type GRPCServer struct {
	address  string
	users    UserService
	sessions SessionService
	tokens   TokenVerifier
	logger   logging.Logger
	health   *health.Server
}

// NewGRPCServer prepares a server for address a. Nothing listens until Run.
func NewGRPCServer(a string, l logging.Logger, us UserService, ss SessionService, tv TokenVerifier) (*GRPCServer, error) {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		users:    us,
		sessions: ss,
		tokens:   tv,
		health:   health.NewServer(),
	}, nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	srv.RegisterService(&AuthServiceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
