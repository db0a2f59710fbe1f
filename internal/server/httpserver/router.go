// Package httpserver exposes the operational endpoints (/healthz, /metrics)
// and a JSON rendition of the auth API over HTTP.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sparkly-dev/sparkly-server/internal/logging"
	"github.com/sparkly-dev/sparkly-server/internal/server/auth"
	"github.com/sparkly-dev/sparkly-server/internal/server/models"
	"github.com/sparkly-dev/sparkly-server/internal/server/tracing"
)

type UserService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
}

type SessionService interface {
	Login(ctx context.Context, identifier, password string) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
	Logout(ctx context.Context, refreshToken string) error
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Pinger reports whether a dependency is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators of the router. DB and Gatherer may be nil.
//
// With TrustProxyHeaders unset the audit origin IP is the TCP peer. When set,
// X-Forwarded-For and X-Real-IP replace it, which is only sound behind a
// proxy that overwrites those headers.
type Deps struct {
	Users    UserService
	Sessions SessionService
	Tokens   TokenVerifier
	DB       Pinger
	Gatherer prometheus.Gatherer
	Logger   logging.Logger

	TrustProxyHeaders bool
}

// NewRouter creates a chi router with the health, metrics and auth routes.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger.With("module", "http_server")

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if d.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(originIP)
	r.Use(tracing.Middleware)

	r.Get("/healthz", healthz(d.DB))

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	h := &authHandler{users: d.Users, sessions: d.Sessions, logger: logger}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))

		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(bearerAuth(d.Tokens))
			r.Get("/me", h.me)
		})
	})

	return r
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
