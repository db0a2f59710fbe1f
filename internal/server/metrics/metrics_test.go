package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Login(OutcomeSuccess)
	m.Login(OutcomeSuccess)
	m.Login(OutcomeInvalidCredentials)
	m.Refresh(OutcomeInvalidToken)
	m.Revoked()
	m.Registered()
	m.VerifyDuration(time.Now().Add(-20 * time.Millisecond))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(OutcomeInvalidCredentials)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues(OutcomeInvalidToken)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.revocations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registered))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	for _, want := range []string{
		"sparkly_auth_logins_total",
		"sparkly_auth_refreshes_total",
		"sparkly_auth_refresh_tokens_revoked_total",
		"sparkly_auth_users_registered_total",
		"sparkly_auth_password_verify_duration_seconds",
	} {
		assert.True(t, names[want], "expected metric %q to be registered", want)
	}
}

func TestAuth_NilIsNoop(t *testing.T) {
	var m *Auth
	assert.NotPanics(t, func() {
		m.Login(OutcomeSuccess)
		m.Refresh(OutcomeError)
		m.Revoked()
		m.Registered()
		m.VerifyDuration(time.Now())
	})
}
