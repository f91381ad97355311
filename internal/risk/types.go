package risk

import (
	"time"

	"github.com/ducminhle1904/crypto-risk-gate/internal/errors"
	"github.com/ducminhle1904/crypto-risk-gate/pkg/types"
)

// RiskLevel classifies aggregate portfolio risk.
type RiskLevel int

const (
	RiskLevelLow RiskLevel = iota
	RiskLevelMedium
	RiskLevelHigh
	RiskLevelCritical
)

// String returns the string representation of the risk level
func (l RiskLevel) String() string {
	switch l {
	case RiskLevelLow:
		return "LOW"
	case RiskLevelMedium:
		return "MEDIUM"
	case RiskLevelHigh:
		return "HIGH"
	case RiskLevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// TradingState is the circuit-breaker state of the manager.
type TradingState int

const (
	StateNormal TradingState = iota
	StateWarning
	StateCoolingOff
	StateEmergencyStop
)

// String returns the string representation of the trading state
func (s TradingState) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateWarning:
		return "WARNING"
	case StateCoolingOff:
		return "COOLING_OFF"
	case StateEmergencyStop:
		return "EMERGENCY_STOP"
	default:
		return "UNKNOWN"
	}
}

// Halted reports whether new exposure-increasing orders are blocked.
func (s TradingState) Halted() bool {
	return s == StateCoolingOff || s == StateEmergencyStop
}

// Decision is the outcome of a single order validation.
type Decision struct {
	Accepted         bool
	Reason           errors.ReasonCode
	Message          string
	AdjustedQuantity float64
}

// PortfolioRisk is an immutable snapshot of aggregate portfolio risk,
// recomputed on demand from the manager's state.
type PortfolioRisk struct {
	RiskLevel         RiskLevel
	CurrentDrawdown   float64
	DailyLossPercent  float64
	ValueAtRisk       float64
	VaRValid          bool
	OpenPositionCount int
	ConsecutiveLosses int

	// Supplementary metrics.
	TotalExposure float64
	UnrealizedPnL float64
	MaxDrawdown   float64
	SharpeRatio   float64
}

// Status is a monitoring snapshot of the manager.
type Status struct {
	State             TradingState
	HaltReason        string
	CoolingOffUntil   time.Time
	ConsecutiveLosses int
	OpenPositions     []types.Position
	PortfolioValue    float64
	DailyStartValue   float64
	PeakValue         float64
	RealizedDailyPnL  float64
}

// DecisionRecord is one entry of the bounded decision audit trail.
type DecisionRecord struct {
	Timestamp         time.Time
	Symbol            string
	Side              types.Side
	RequestedQuantity float64
	Price             float64
	Accepted          bool
	Reason            errors.ReasonCode
	AdjustedQuantity  float64
}
