package risk

import (
	"time"

	"github.com/ducminhle1904/crypto-risk-gate/pkg/types"
)

// portfolioState is the mutable aggregate state owned by the manager. Every
// field is guarded by the manager mutex; nothing outside this package sees a
// live reference to it.
type portfolioState struct {
	currentValue    float64
	dailyStartValue float64
	peakValue       float64
	maxDrawdown     float64

	realizedDailyPnL  float64
	consecutiveLosses int
	coolingOffUntil   time.Time

	openPositions map[string]*types.Position

	// Realized PnL of the most recent closed trades, oldest first.
	pnlHistory []float64
}

const pnlHistoryLimit = 30

func newPortfolioState(startValue float64) *portfolioState {
	return &portfolioState{
		currentValue:    startValue,
		dailyStartValue: startValue,
		peakValue:       startValue,
		openPositions:   make(map[string]*types.Position),
	}
}

// ratchetPeak updates the high-water mark and returns the current drawdown
// fraction in [0, 1].
func (p *portfolioState) ratchetPeak(portfolioValue float64) float64 {
	p.currentValue = portfolioValue
	if portfolioValue > p.peakValue {
		p.peakValue = portfolioValue
	}
	if p.peakValue <= 0 {
		return 0
	}
	dd := (p.peakValue - portfolioValue) / p.peakValue
	if dd < 0 {
		return 0
	}
	if dd > p.maxDrawdown {
		p.maxDrawdown = dd
	}
	return dd
}

// dailyLossPercent returns the fractional decline from the daily start
// value, floored at zero.
func (p *portfolioState) dailyLossPercent(portfolioValue float64) float64 {
	if p.dailyStartValue <= 0 {
		return 0
	}
	loss := (p.dailyStartValue - portfolioValue) / p.dailyStartValue
	if loss < 0 {
		return 0
	}
	return loss
}

// realizedDailyLossPercent reports the realized same-day loss fraction, zero
// when the day is flat or positive.
func (p *portfolioState) realizedDailyLossPercent() float64 {
	if p.realizedDailyPnL >= 0 || p.dailyStartValue <= 0 {
		return 0
	}
	return -p.realizedDailyPnL / p.dailyStartValue
}

// totalExposure sums entry-price notionals across open positions.
func (p *portfolioState) totalExposure() float64 {
	total := 0.0
	for _, pos := range p.openPositions {
		total += pos.Notional()
	}
	return total
}

// unrealizedPnL sums open PnL across positions with a known mark price.
func (p *portfolioState) unrealizedPnL() float64 {
	total := 0.0
	for _, pos := range p.openPositions {
		total += pos.UnrealizedPnL()
	}
	return total
}

// recordClosedTrade appends a realized result and maintains the
// consecutive-loss streak.
func (p *portfolioState) recordClosedTrade(realizedPnL float64) {
	if realizedPnL < 0 {
		p.consecutiveLosses++
	} else {
		p.consecutiveLosses = 0
	}

	p.pnlHistory = append(p.pnlHistory, realizedPnL)
	if len(p.pnlHistory) > pnlHistoryLimit {
		p.pnlHistory = p.pnlHistory[len(p.pnlHistory)-pnlHistoryLimit:]
	}
}

// positionsSnapshot returns a deep copy for callers outside the lock.
func (p *portfolioState) positionsSnapshot() []types.Position {
	out := make([]types.Position, 0, len(p.openPositions))
	for _, pos := range p.openPositions {
		out = append(out, *pos)
	}
	return out
}
