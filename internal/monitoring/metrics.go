package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Decision metrics
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_gate_decisions_total",
			Help: "Total number of order validation decisions",
		},
		[]string{"symbol", "outcome", "reason"},
	)

	adjustedOrdersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "risk_gate_adjusted_orders_total",
			Help: "Total number of orders resized by the position cap",
		},
	)

	// Portfolio metrics
	riskLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_gate_risk_level",
			Help: "Current portfolio risk level (0=LOW 1=MEDIUM 2=HIGH 3=CRITICAL)",
		},
	)

	drawdown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_gate_drawdown",
			Help: "Current drawdown fraction from the high-water mark",
		},
	)

	tradingState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_gate_trading_state",
			Help: "Current trading state (0=NORMAL 1=WARNING 2=COOLING_OFF 3=EMERGENCY_STOP)",
		},
		[]string{"state"},
	)

	// Provider metrics
	providerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_gate_provider_failures_total",
			Help: "Total number of failed external data provider lookups",
		},
		[]string{"provider"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(decisionsTotal)
	prometheus.MustRegister(adjustedOrdersTotal)
	prometheus.MustRegister(riskLevel)
	prometheus.MustRegister(drawdown)
	prometheus.MustRegister(tradingState)
	prometheus.MustRegister(providerFailuresTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordDecision records an order validation outcome
func RecordDecision(symbol string, accepted bool, reason string) {
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	decisionsTotal.WithLabelValues(symbol, outcome, reason).Inc()
}

// RecordAdjustedOrder records an order resized by the position cap
func RecordAdjustedOrder() {
	adjustedOrdersTotal.Inc()
}

// SetRiskLevel updates the portfolio risk level gauge
func SetRiskLevel(level int) {
	riskLevel.Set(float64(level))
}

// SetDrawdown updates the drawdown gauge
func SetDrawdown(dd float64) {
	drawdown.Set(dd)
}

// SetTradingState updates the trading state gauge
func SetTradingState(state string, value int) {
	tradingState.Reset()
	tradingState.WithLabelValues(state).Set(float64(value))
}

// RecordProviderFailure records a failed provider lookup
func RecordProviderFailure(provider string) {
	providerFailuresTotal.WithLabelValues(provider).Inc()
}
