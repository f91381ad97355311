package config

import (
	"fmt"
	"strings"
)

// SizingMethod selects the position sizing algorithm.
type SizingMethod string

const (
	SizingFixed              SizingMethod = "fixed"
	SizingPercentage         SizingMethod = "percentage"
	SizingVolatilityAdjusted SizingMethod = "volatility_adjusted"
	SizingKelly              SizingMethod = "kelly"
)

// Default sizing parameter values.
const (
	DefaultFixedNotional          = 100.0
	DefaultRiskPerTradePercent    = 0.02
	DefaultTargetRiskPercent      = 0.01
	DefaultStopDistanceMultiplier = 2.0
	DefaultKellySafetyMultiplier  = 0.25
)

// SizingConfig holds parameters for all sizing methods; only the fields for
// the selected method are consulted at runtime.
type SizingConfig struct {
	Method SizingMethod `json:"method"`

	// fixed
	FixedNotional float64 `json:"fixed_notional"`

	// percentage
	RiskPerTradePercent float64 `json:"risk_per_trade_percent"`

	// volatility_adjusted
	TargetRiskPercent      float64 `json:"target_risk_percent"`
	StopDistanceMultiplier float64 `json:"stop_distance_multiplier"`

	// kelly
	KellySafetyMultiplier float64 `json:"kelly_safety_multiplier"`
}

// DefaultSizingConfig returns a percentage-based sizing setup.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		Method:                 SizingPercentage,
		FixedNotional:          DefaultFixedNotional,
		RiskPerTradePercent:    DefaultRiskPerTradePercent,
		TargetRiskPercent:      DefaultTargetRiskPercent,
		StopDistanceMultiplier: DefaultStopDistanceMultiplier,
		KellySafetyMultiplier:  DefaultKellySafetyMultiplier,
	}
}

// Validate checks the sizing configuration.
func (c SizingConfig) Validate() error {
	switch SizingMethod(strings.ToLower(string(c.Method))) {
	case SizingFixed, SizingPercentage, SizingVolatilityAdjusted, SizingKelly:
	default:
		return fmt.Errorf("unknown sizing method %q", c.Method)
	}

	if c.FixedNotional <= 0 {
		return fmt.Errorf("fixed_notional must be positive, got: %.2f", c.FixedNotional)
	}
	if c.RiskPerTradePercent <= 0 || c.RiskPerTradePercent > 1 {
		return fmt.Errorf("risk_per_trade_percent must be within (0, 1], got: %.4f", c.RiskPerTradePercent)
	}
	if c.TargetRiskPercent <= 0 || c.TargetRiskPercent > 1 {
		return fmt.Errorf("target_risk_percent must be within (0, 1], got: %.4f", c.TargetRiskPercent)
	}
	if c.StopDistanceMultiplier <= 0 {
		return fmt.Errorf("stop_distance_multiplier must be positive, got: %.2f", c.StopDistanceMultiplier)
	}
	if c.KellySafetyMultiplier <= 0 || c.KellySafetyMultiplier > 1 {
		return fmt.Errorf("kelly_safety_multiplier must be within (0, 1], got: %.2f", c.KellySafetyMultiplier)
	}

	return nil
}
