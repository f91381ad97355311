package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

type HealthChecker struct {
	mu           sync.RWMutex
	lastDecision time.Time
	tradingState string
	haltReason   string
	providerOK   bool
	recentErrors []string
}

type HealthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	LastDecision time.Time `json:"last_decision"`
	TradingState string    `json:"trading_state"`
	HaltReason   string    `json:"halt_reason,omitempty"`
	ProviderOK   bool      `json:"provider_ok"`
	Uptime       string    `json:"uptime"`
	Errors       []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		tradingState: "NORMAL",
		providerOK:   true,
		recentErrors: make([]string, 0),
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.providerOK || h.tradingState == "COOLING_OFF" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.recentErrors) > 0 || h.tradingState == "EMERGENCY_STOP" {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:       status,
		Timestamp:    time.Now(),
		LastDecision: h.lastDecision,
		TradingState: h.tradingState,
		HaltReason:   h.haltReason,
		ProviderOK:   h.providerOK,
		Uptime:       time.Since(startTime).String(),
		Errors:       h.recentErrors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}

// RecordDecision marks the time of the most recent validation decision.
func (h *HealthChecker) RecordDecision() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastDecision = time.Now()
}

// SetTradingState reflects the manager's halt state into health reporting.
func (h *HealthChecker) SetTradingState(state, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tradingState = state
	h.haltReason = reason
}

// SetProviderOK flags whether external data providers are reachable.
func (h *HealthChecker) SetProviderOK(ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.providerOK = ok
}

// RecordError appends an error to the recent-error window, keeping the
// last ten.
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recentErrors = append(h.recentErrors, msg)
	if len(h.recentErrors) > 10 {
		h.recentErrors = h.recentErrors[len(h.recentErrors)-10:]
	}
}
