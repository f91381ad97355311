package sizing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ducminhle1904/crypto-risk-gate/pkg/config"
)

func testLimits() config.RiskLimits {
	l := config.DefaultRiskLimits()
	l.MinOrderSize = 10
	l.MaxOrderSize = 5000
	return l
}

func TestNotional_Fixed(t *testing.T) {
	cfg := config.DefaultSizingConfig()
	cfg.Method = config.SizingFixed
	cfg.FixedNotional = 250

	res := Notional(cfg, testLimits(), Inputs{PortfolioValue: 10000})
	assert.Equal(t, 250.0, res.Notional)
	assert.Equal(t, config.SizingFixed, res.Method)
	assert.False(t, res.Fallback)
}

func TestNotional_Percentage(t *testing.T) {
	cfg := config.DefaultSizingConfig()
	cfg.Method = config.SizingPercentage
	cfg.RiskPerTradePercent = 0.02

	res := Notional(cfg, testLimits(), Inputs{PortfolioValue: 10000})
	assert.Equal(t, 200.0, res.Notional)
}

func TestNotional_VolatilityAdjusted(t *testing.T) {
	cfg := config.DefaultSizingConfig()
	cfg.Method = config.SizingVolatilityAdjusted
	cfg.TargetRiskPercent = 0.01
	cfg.StopDistanceMultiplier = 2.0

	tests := []struct {
		name       string
		volatility float64
		want       float64
	}{
		{"low volatility sizes up", 0.01, 5000},
		{"high volatility shrinks size", 0.05, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Notional(cfg, testLimits(), Inputs{PortfolioValue: 10000, Volatility: tt.volatility})
			assert.InDelta(t, tt.want, res.Notional, 1e-9)
			assert.False(t, res.Fallback)
		})
	}
}

func TestNotional_VolatilityZeroFallsBack(t *testing.T) {
	cfg := config.DefaultSizingConfig()
	cfg.Method = config.SizingVolatilityAdjusted
	cfg.FixedNotional = 100

	res := Notional(cfg, testLimits(), Inputs{PortfolioValue: 10000, Volatility: 0})
	assert.Equal(t, 100.0, res.Notional)
	assert.Equal(t, config.SizingFixed, res.Method)
	assert.True(t, res.Fallback)
}

func TestNotional_Kelly(t *testing.T) {
	cfg := config.DefaultSizingConfig()
	cfg.Method = config.SizingKelly
	cfg.KellySafetyMultiplier = 0.25

	// fraction = 0.55 - 0.45/(0.06/0.02) = 0.40; applied = 0.10
	res := Notional(cfg, testLimits(), Inputs{
		PortfolioValue: 10000,
		WinRate:        0.55,
		AvgWin:         0.06,
		AvgLoss:        0.02,
	})
	assert.InDelta(t, 1000.0, res.Notional, 1e-9)
	assert.False(t, res.Fallback)
}

func TestNotional_KellyNegativeEdgeFlooredAtZero(t *testing.T) {
	cfg := config.DefaultSizingConfig()
	cfg.Method = config.SizingKelly

	// fraction = 0.30 - 0.70/1.0 = -0.40 -> floored to 0 -> min order size
	res := Notional(cfg, testLimits(), Inputs{
		PortfolioValue: 10000,
		WinRate:        0.30,
		AvgWin:         0.02,
		AvgLoss:        0.02,
	})
	assert.Equal(t, 10.0, res.Notional) // clamped to MinOrderSize
	assert.False(t, res.Fallback)
}

func TestNotional_KellyBadStatsFallsBack(t *testing.T) {
	cfg := config.DefaultSizingConfig()
	cfg.Method = config.SizingKelly
	cfg.FixedNotional = 123

	res := Notional(cfg, testLimits(), Inputs{PortfolioValue: 10000, WinRate: 0.5, AvgWin: 0, AvgLoss: 0.02})
	assert.Equal(t, 123.0, res.Notional)
	assert.True(t, res.Fallback)
}

func TestNotional_ClampedToMaxOrderSize(t *testing.T) {
	cfg := config.DefaultSizingConfig()
	cfg.Method = config.SizingPercentage
	cfg.RiskPerTradePercent = 0.9

	res := Notional(cfg, testLimits(), Inputs{PortfolioValue: 1_000_000})
	assert.Equal(t, 5000.0, res.Notional)
}

func TestNotional_NeverNaN(t *testing.T) {
	cfg := config.DefaultSizingConfig()
	cfg.Method = config.SizingVolatilityAdjusted

	res := Notional(cfg, testLimits(), Inputs{PortfolioValue: math.NaN(), Volatility: 0.02})
	assert.False(t, math.IsNaN(res.Notional))
	assert.True(t, res.Fallback)
}
