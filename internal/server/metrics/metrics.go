// Package metrics holds the prometheus collectors for authentication
// outcomes. A nil *Auth is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeError              = "error"
)

// Auth counts logins, refreshes, revocations and registrations, and times
// password verification. All methods are safe on a nil receiver.
type Auth struct {
	logins       *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
	revocations  prometheus.Counter
	registered   prometheus.Counter
	hashDuration prometheus.Histogram
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated from the default registry.
func New(reg prometheus.Registerer) *Auth {
	f := promauto.With(reg)
	return &Auth{
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparkly",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparkly",
			Subsystem: "auth",
			Name:      "refreshes_total",
			Help:      "Refresh attempts by outcome.",
		}, []string{"outcome"}),
		revocations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "sparkly",
			Subsystem: "auth",
			Name:      "refresh_tokens_revoked_total",
			Help:      "Refresh tokens moved to the revoked state.",
		}),
		registered: f.NewCounter(prometheus.CounterOpts{
			Namespace: "sparkly",
			Subsystem: "auth",
			Name:      "users_registered_total",
			Help:      "Successfully registered users.",
		}),
		hashDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sparkly",
			Subsystem: "auth",
			Name:      "password_verify_duration_seconds",
			Help:      "Time spent verifying a password, including waiting for a hashing slot.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}
}

// Login counts a login attempt with one of the Outcome values.
func (m *Auth) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// Refresh counts a refresh attempt with one of the Outcome values.
func (m *Auth) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// Revoked counts a refresh token that this process moved to revoked.
func (m *Auth) Revoked() {
	if m == nil {
		return
	}
	m.revocations.Inc()
}

// Registered counts a newly created user.
func (m *Auth) Registered() {
	if m == nil {
		return
	}
	m.registered.Inc()
}

// VerifyDuration records the time elapsed since start.
func (m *Auth) VerifyDuration(start time.Time) {
	if m == nil {
		return
	}
	m.hashDuration.Observe(time.Since(start).Seconds())
}
