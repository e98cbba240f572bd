package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/observability/metrics"
)

func TestEndpoint_Routes(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Migration.RecordDocument("challenge", metrics.OutcomeCreated)

	ep, err := NewEndpoint(conf.MetricsSettings{Enabled: true, Listen: "127.0.0.1:0"}, m, nil)
	require.NoError(t, err)
	assert.Same(t, m, ep.GetMetrics())

	rec := httptest.NewRecorder()
	ep.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `migration_documents_total{kind="challenge",outcome="created"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = httptest.NewRecorder()
	ep.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNewEndpoint_Disabled(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	_, err = NewEndpoint(conf.MetricsSettings{Enabled: false}, m, nil)
	require.Error(t, err)
}

func TestNewMetrics_Independent(t *testing.T) {
	t.Parallel()

	// each call owns its registry, so repeated construction never collides
	for range 3 {
		m, err := NewMetrics()
		require.NoError(t, err)
		require.NotNil(t, m.Migration)
		require.NotNil(t, m.Registry())
	}
}
