// Package sizing computes proposed order notionals from the configured
// sizing method. All functions are pure; the risk manager applies its own
// caps on top of these results.
package sizing

import (
	"math"

	"github.com/ducminhle1904/crypto-risk-gate/pkg/config"
)

// Inputs carries the per-call parameters a sizing method may consult.
// Fields irrelevant to the selected method are ignored.
type Inputs struct {
	PortfolioValue float64

	// volatility_adjusted
	Volatility float64

	// kelly
	WinRate float64
	AvgWin  float64
	AvgLoss float64
}

// Result is the outcome of a sizing computation.
type Result struct {
	Notional float64
	// Method that actually produced the notional. Differs from the
	// configured method when a sizing failure forced the fixed fallback.
	Method config.SizingMethod
	// Fallback is true when the configured method produced an unusable
	// value and the fixed method was used instead.
	Fallback bool
}

// Notional computes the proposed order notional for the configured method,
// clamped to [MinOrderSize, MaxOrderSize]. A method returning a negative,
// NaN, or infinite value is a sizing failure and falls back to fixed.
func Notional(cfg config.SizingConfig, limits config.RiskLimits, in Inputs) Result {
	raw, ok := compute(cfg.Method, cfg, in)
	res := Result{Method: cfg.Method}

	if !ok || !usable(raw) {
		raw = cfg.FixedNotional
		res.Method = config.SizingFixed
		res.Fallback = cfg.Method != config.SizingFixed
	}

	res.Notional = clamp(raw, limits.MinOrderSize, limits.MaxOrderSize)
	return res
}

func compute(method config.SizingMethod, cfg config.SizingConfig, in Inputs) (float64, bool) {
	switch method {
	case config.SizingFixed:
		return cfg.FixedNotional, true

	case config.SizingPercentage:
		return in.PortfolioValue * cfg.RiskPerTradePercent, true

	case config.SizingVolatilityAdjusted:
		denom := in.Volatility * cfg.StopDistanceMultiplier
		if denom <= 0 {
			return 0, false
		}
		return (in.PortfolioValue * cfg.TargetRiskPercent) / denom, true

	case config.SizingKelly:
		return kelly(cfg, in)

	default:
		return 0, false
	}
}

// kelly computes the safety-scaled Kelly fraction. Full Kelly is never used;
// the fraction is scaled down by KellySafetyMultiplier and floored at zero.
func kelly(cfg config.SizingConfig, in Inputs) (float64, bool) {
	if in.AvgWin <= 0 || in.AvgLoss <= 0 || in.WinRate < 0 || in.WinRate > 1 {
		return 0, false
	}

	payoff := in.AvgWin / in.AvgLoss
	fraction := in.WinRate - (1-in.WinRate)/payoff
	applied := math.Max(0, fraction) * cfg.KellySafetyMultiplier

	return in.PortfolioValue * applied, true
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
