package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Healthy(t *testing.T) {
	h := NewHealthChecker()
	h.SetAuthenticated(true)
	h.SetStreamConnected(true)
	h.MarkPoll()
	h.MarkCandle()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.True(t, status.Authenticated)
	assert.True(t, status.StreamConnected)
	assert.False(t, status.LastPoll.IsZero())
}

func TestHealthChecker_DegradedWhenUnauthenticated(t *testing.T) {
	h := NewHealthChecker()
	h.SetStreamConnected(true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
}

func TestHealthChecker_DegradedWhenStreamDown(t *testing.T) {
	h := NewHealthChecker()
	h.SetAuthenticated(true)
	h.SetStreamConnected(false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
