package config

import (
	"fmt"
	"time"
)

// Default risk limit values. These mirror a conservative live setup and are
// only used when a field is absent from the config file AND the environment.
const (
	DefaultMaxPositionSizePercent  = 0.10
	DefaultMaxDailyLossPercent     = 0.05
	DefaultMaxDrawdownPercent      = 0.15
	DefaultMaxLeverage             = 3.0
	DefaultMaxOpenPositions        = 10
	DefaultMaxCorrelationExposure  = 0.30
	DefaultStopLossPercent         = 0.02
	DefaultTakeProfitPercent       = 0.06
	DefaultMaxStopLossPercent      = 0.10
	DefaultMinRiskRewardRatio      = 2.0
	DefaultMaxConsecutiveLosses    = 5
	DefaultCoolingOffPeriod        = 24 * time.Hour
	DefaultVolatilityStopScale     = 1.5
	DefaultVaRConfidenceMultiplier = 1.645 // one-sided 95%
)

// RiskLimits holds every numeric threshold the risk manager enforces.
// Loaded once at startup and never mutated afterwards.
type RiskLimits struct {
	MaxPositionSizePercent float64 `json:"max_position_size_percent"`
	MaxDailyLossPercent    float64 `json:"max_daily_loss_percent"`
	MaxDrawdownPercent     float64 `json:"max_drawdown_percent"`
	MaxLeverage            float64 `json:"max_leverage"`
	MaxOpenPositions       int     `json:"max_open_positions"`
	MaxCorrelationExposure float64 `json:"max_correlation_exposure"`

	DefaultStopLossPercent   float64 `json:"default_stop_loss_percent"`
	DefaultTakeProfitPercent float64 `json:"default_take_profit_percent"`
	MaxStopLossPercent       float64 `json:"max_stop_loss_percent"`
	MinRiskRewardRatio       float64 `json:"min_risk_reward_ratio"`
	VolatilityStopScale      float64 `json:"volatility_stop_scale"`

	MaxConsecutiveLosses int      `json:"max_consecutive_losses"`
	CoolingOffPeriod     Duration `json:"cooling_off_period"`

	MinOrderSize float64 `json:"min_order_size"`
	MaxOrderSize float64 `json:"max_order_size"`

	// RejectBelowMinOrder controls what happens when the position-size cap
	// adjusts an order below MinOrderSize: reject the order (true) or floor
	// the quantity at MinOrderSize (false).
	RejectBelowMinOrder bool `json:"reject_below_min_order"`
}

// DefaultRiskLimits returns a fully populated limit set.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionSizePercent:   DefaultMaxPositionSizePercent,
		MaxDailyLossPercent:      DefaultMaxDailyLossPercent,
		MaxDrawdownPercent:       DefaultMaxDrawdownPercent,
		MaxLeverage:              DefaultMaxLeverage,
		MaxOpenPositions:         DefaultMaxOpenPositions,
		MaxCorrelationExposure:   DefaultMaxCorrelationExposure,
		DefaultStopLossPercent:   DefaultStopLossPercent,
		DefaultTakeProfitPercent: DefaultTakeProfitPercent,
		MaxStopLossPercent:       DefaultMaxStopLossPercent,
		MinRiskRewardRatio:       DefaultMinRiskRewardRatio,
		VolatilityStopScale:      DefaultVolatilityStopScale,
		MaxConsecutiveLosses:     DefaultMaxConsecutiveLosses,
		CoolingOffPeriod:         Duration(DefaultCoolingOffPeriod),
		MinOrderSize:             10.0,
		MaxOrderSize:             100000.0,
		RejectBelowMinOrder:      true,
	}
}

// Validate checks every limit field. A partially populated RiskLimits is a
// startup failure, never a runtime one.
func (l RiskLimits) Validate() error {
	type pctField struct {
		name  string
		value float64
	}
	for _, f := range []pctField{
		{"max_position_size_percent", l.MaxPositionSizePercent},
		{"max_daily_loss_percent", l.MaxDailyLossPercent},
		{"max_drawdown_percent", l.MaxDrawdownPercent},
		{"max_correlation_exposure", l.MaxCorrelationExposure},
		{"default_stop_loss_percent", l.DefaultStopLossPercent},
		{"default_take_profit_percent", l.DefaultTakeProfitPercent},
		{"max_stop_loss_percent", l.MaxStopLossPercent},
	} {
		if f.value <= 0 || f.value > 1 {
			return fmt.Errorf("%s must be within (0, 1], got: %.4f", f.name, f.value)
		}
	}

	if l.MaxStopLossPercent < l.DefaultStopLossPercent {
		return fmt.Errorf("max_stop_loss_percent %.4f must not be below default_stop_loss_percent %.4f",
			l.MaxStopLossPercent, l.DefaultStopLossPercent)
	}

	if l.MinRiskRewardRatio <= 0 {
		return fmt.Errorf("min_risk_reward_ratio must be positive, got: %.2f", l.MinRiskRewardRatio)
	}

	if l.MaxLeverage < 1 {
		return fmt.Errorf("max_leverage must be at least 1, got: %.2f", l.MaxLeverage)
	}

	if l.MaxOpenPositions <= 0 {
		return fmt.Errorf("max_open_positions must be positive, got: %d", l.MaxOpenPositions)
	}

	if l.MaxConsecutiveLosses <= 0 {
		return fmt.Errorf("max_consecutive_losses must be positive, got: %d", l.MaxConsecutiveLosses)
	}

	if time.Duration(l.CoolingOffPeriod) <= 0 {
		return fmt.Errorf("cooling_off_period must be positive, got: %s", time.Duration(l.CoolingOffPeriod))
	}

	if l.VolatilityStopScale <= 0 {
		return fmt.Errorf("volatility_stop_scale must be positive, got: %.2f", l.VolatilityStopScale)
	}

	if l.MinOrderSize < 0 {
		return fmt.Errorf("min_order_size must be non-negative, got: %.2f", l.MinOrderSize)
	}

	if l.MaxOrderSize <= 0 || l.MaxOrderSize < l.MinOrderSize {
		return fmt.Errorf("max_order_size must be positive and at least min_order_size, got: %.2f", l.MaxOrderSize)
	}

	return nil
}
