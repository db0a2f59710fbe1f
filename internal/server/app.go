// Package server wires configuration, storage, services and transports
// together and runs the gRPC and HTTP endpoints until the process is told
// to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sparkly-dev/sparkly-server/internal/dbx"
	"github.com/sparkly-dev/sparkly-server/internal/logging"
	"github.com/sparkly-dev/sparkly-server/internal/server/auth"
	"github.com/sparkly-dev/sparkly-server/internal/server/config"
	"github.com/sparkly-dev/sparkly-server/internal/server/httpserver"
	"github.com/sparkly-dev/sparkly-server/internal/server/metrics"
	"github.com/sparkly-dev/sparkly-server/internal/server/password"
	"github.com/sparkly-dev/sparkly-server/internal/server/repositories/repomanager"
	"github.com/sparkly-dev/sparkly-server/internal/server/services"
	"github.com/sparkly-dev/sparkly-server/internal/server/tracing"

	gs "github.com/sparkly-dev/sparkly-server/internal/server/grpc"
)

// App owns the database, the services and both network endpoints.
type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	dialect        dbx.Dialect
	registry       *prometheus.Registry
	tokens         *auth.TokenIssuer
	userService    *services.UserService
	sessionService *services.SessionService
	shutdownTracer func(context.Context) error
}

// NewApp validates c, opens the database, applies migrations and builds the
// services. The caller owns the returned App and must Close it.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	dialect, err := dbx.ParseDialect(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.Open(ctx, dialect, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewSQLRepositoryManager(dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}
	logger.Info(ctx, "database ready", "dialect", string(rm.Dialect()))

	tokens, err := auth.NewTokenIssuer([]byte(c.SecretKey), c.Issuer, c.Audience, c.AccessTokenValidityDuration)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  "sparkly-server",
		OTLPEndpoint: c.OTLPEndpoint,
		SampleRate:   c.TraceSampleRate,
		Enabled:      c.TracingEnabled,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	hasher := password.NewArgon2id(password.DefaultParams(), c.MaxConcurrentHashes)

	us := services.NewUserService(db, rm, hasher, logger, mt)
	cv := services.NewCredentialVerifier(db, rm, hasher, logger, mt)
	ss := services.NewSessionService(db, rm, cv, tokens, c, logger, mt)

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		dialect:        rm.Dialect(),
		registry:       reg,
		tokens:         tokens,
		userService:    us,
		sessionService: ss,
		shutdownTracer: shutdownTracer,
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Signal received", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.sessionService, app.tokens)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpserver.NewRouter(httpserver.Deps{
		Users:    app.userService,
		Sessions: app.sessionService,
		Tokens:   app.tokens,
		DB:       app.db,
		Gatherer: app.registry,
		Logger:   app.logger,

		TrustProxyHeaders: app.config.TrustProxyHeaders,
	})

	s := httpserver.NewServer(app.config.EndpointAddrHTTP, router, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run starts both endpoints and blocks until ctx is cancelled, a
// termination signal arrives or one of the endpoints fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
}

// Close flushes pending spans and closes the database.
func (app *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.shutdownTracer(ctx); err != nil {
		app.logger.Warn(ctx, "tracer shutdown failed", "error", err.Error())
	}
	return app.db.Close()
}
