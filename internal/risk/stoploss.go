package risk

import (
	"context"
	"fmt"
	"math"

	"github.com/ducminhle1904/crypto-risk-gate/internal/errors"
	"github.com/ducminhle1904/crypto-risk-gate/pkg/types"
)

// ProtectiveLevels are the derived stop-loss and take-profit prices for a
// position entered at a given price.
type ProtectiveLevels struct {
	StopLoss   float64
	TakeProfit float64

	// StopDistance and ProfitDistance are absolute price distances from
	// entry, before side mirroring.
	StopDistance   float64
	ProfitDistance float64

	// VolatilityUsed is true when the stop was widened from a live
	// volatility reading rather than the default percentage.
	VolatilityUsed bool
}

// CalculateStopLoss derives protective levels for an entry. The stop widens
// with volatility up to a hard cap, and the target always maintains at least
// the minimum reward-to-risk ratio. BUY stops sit below entry, SELL stops
// above.
func (m *Manager) CalculateStopLoss(ctx context.Context, symbol string, side types.Side, entryPrice float64) (ProtectiveLevels, error) {
	if entryPrice <= 0 || math.IsNaN(entryPrice) || math.IsInf(entryPrice, 0) {
		return ProtectiveLevels{}, errors.NewInputError("risk", "CalculateStopLoss",
			fmt.Sprintf("entry price must be positive, got: %v", entryPrice))
	}
	if side != types.SideBuy && side != types.SideSell {
		return ProtectiveLevels{}, errors.NewInputError("risk", "CalculateStopLoss",
			fmt.Sprintf("unknown order side %q", side))
	}

	stopPct := m.limits.DefaultStopLossPercent
	volUsed := false
	if vol, ok := m.lookupVolatility(ctx, symbol); ok {
		if scaled := vol * m.limits.VolatilityStopScale; scaled > stopPct {
			stopPct = scaled
			volUsed = true
		}
	}
	if stopPct > m.limits.MaxStopLossPercent {
		stopPct = m.limits.MaxStopLossPercent
	}

	// The target preserves the configured stop/target shape but never drops
	// the reward-to-risk ratio below the minimum.
	ratio := m.limits.DefaultTakeProfitPercent / m.limits.DefaultStopLossPercent
	if ratio < m.limits.MinRiskRewardRatio {
		ratio = m.limits.MinRiskRewardRatio
	}

	stopDistance := entryPrice * stopPct
	profitDistance := stopDistance * ratio

	levels := ProtectiveLevels{
		StopDistance:   stopDistance,
		ProfitDistance: profitDistance,
		VolatilityUsed: volUsed,
	}

	switch side {
	case types.SideBuy:
		levels.StopLoss = entryPrice - stopDistance
		levels.TakeProfit = entryPrice + profitDistance
	case types.SideSell:
		levels.StopLoss = entryPrice + stopDistance
		levels.TakeProfit = entryPrice - profitDistance
	}

	// Distances near 100% of a low entry price can push a computed level to
	// zero or below, which no exchange accepts.
	if levels.StopLoss <= 0 {
		m.log.Warning("stop-loss for %s clamped from %.8f to positive floor (entry %.8f)",
			symbol, levels.StopLoss, entryPrice)
		levels.StopLoss = minPositivePrice
	}
	if levels.TakeProfit <= 0 {
		m.log.Warning("take-profit for %s clamped from %.8f to positive floor (entry %.8f)",
			symbol, levels.TakeProfit, entryPrice)
		levels.TakeProfit = minPositivePrice
	}

	return levels, nil
}
