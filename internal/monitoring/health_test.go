package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHealth(t *testing.T, h *HealthChecker) (int, HealthStatus) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return rec.Code, status
}

func TestHealthChecker_HealthyByDefault(t *testing.T) {
	h := NewHealthChecker()

	code, status := serveHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "NORMAL", status.TradingState)
	assert.True(t, status.ProviderOK)
}

func TestHealthChecker_CoolingOffReportsDegraded(t *testing.T) {
	h := NewHealthChecker()
	h.SetTradingState("COOLING_OFF", "max consecutive losses reached")

	code, status := serveHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "max consecutive losses reached", status.HaltReason)
}

func TestHealthChecker_ProviderOutageReportsDegraded(t *testing.T) {
	h := NewHealthChecker()
	h.SetProviderOK(false)

	code, status := serveHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", status.Status)
	assert.False(t, status.ProviderOK)

	h.SetProviderOK(true)
	code, status = serveHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
}

// When degraded and unhealthy conditions hold at once, a single unhealthy
// status code must be written.
func TestHealthChecker_UnhealthyWinsOverDegraded(t *testing.T) {
	h := NewHealthChecker()
	h.SetProviderOK(false)
	h.SetTradingState("EMERGENCY_STOP", "drawdown limit breached")

	code, status := serveHealth(t, h)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "EMERGENCY_STOP", status.TradingState)
}

func TestHealthChecker_ErrorWindowKeepsLastTen(t *testing.T) {
	h := NewHealthChecker()
	for i := 0; i < 12; i++ {
		h.RecordError(fmt.Sprintf("error %d", i))
	}

	code, status := serveHealth(t, h)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "unhealthy", status.Status)
	require.Len(t, status.Errors, 10)
	assert.Equal(t, "error 2", status.Errors[0])
	assert.Equal(t, "error 11", status.Errors[9])
}
