package risk

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ducminhle1904/crypto-risk-gate/internal/monitoring"
	"github.com/ducminhle1904/crypto-risk-gate/pkg/config"
)

// minVaRHistory is the minimum number of closed trades before the
// historical VaR fallback is considered meaningful.
const minVaRHistory = 10

// AssessPortfolioRisk recomputes aggregate risk from the supplied portfolio
// value. This is the only path besides CheckEmergencyStop that advances the
// high-water mark, and it never blocks on a provider: volatility comes from
// the lookup cache, with a historical fallback when the cache is incomplete.
func (m *Manager) AssessPortfolioRisk(portfolioValue float64) PortfolioRisk {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.portfolio
	drawdown := state.ratchetPeak(portfolioValue)
	dailyLoss := state.dailyLossPercent(portfolioValue)

	risk := PortfolioRisk{
		CurrentDrawdown:   drawdown,
		DailyLossPercent:  dailyLoss,
		OpenPositionCount: len(state.openPositions),
		ConsecutiveLosses: state.consecutiveLosses,
		TotalExposure:     state.totalExposure(),
		UnrealizedPnL:     state.unrealizedPnL(),
		MaxDrawdown:       state.maxDrawdown,
		SharpeRatio:       sharpeRatio(state.pnlHistory),
	}
	risk.ValueAtRisk, risk.VaRValid = m.valueAtRiskLocked()
	risk.RiskLevel = m.classifyLocked(risk)

	// HIGH is advisory: flag it, keep accepting orders. Never downgrade a
	// halted state from an assessment.
	if risk.RiskLevel >= RiskLevelHigh && m.state == StateNormal {
		m.transitionLocked(StateWarning, fmt.Sprintf("portfolio risk %s", risk.RiskLevel))
	} else if risk.RiskLevel < RiskLevelHigh && m.state == StateWarning {
		m.transitionLocked(StateNormal, fmt.Sprintf("portfolio risk back to %s", risk.RiskLevel))
	}

	monitoring.SetRiskLevel(int(risk.RiskLevel))
	monitoring.SetDrawdown(drawdown)

	return risk
}

// classifyLocked maps portfolio metrics to a risk level, worst first.
func (m *Manager) classifyLocked(risk PortfolioRisk) RiskLevel {
	maxDD := m.limits.MaxDrawdownPercent

	switch {
	case risk.CurrentDrawdown >= maxDD || risk.DailyLossPercent >= m.limits.MaxDailyLossPercent:
		return RiskLevelCritical
	case risk.CurrentDrawdown >= 0.75*maxDD || risk.OpenPositionCount >= m.limits.MaxOpenPositions:
		return RiskLevelHigh
	case risk.CurrentDrawdown >= 0.5*maxDD:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// valueAtRiskLocked computes a one-day parametric VaR at the configured
// confidence from cached per-symbol volatilities. When any open symbol lacks
// a cached reading the parametric figure is unreliable; fall back to the
// historical 5th-percentile loss if enough closed trades exist.
func (m *Manager) valueAtRiskLocked() (float64, bool) {
	state := m.portfolio
	if len(state.openPositions) == 0 {
		return 0, true
	}

	parametric := 0.0
	complete := true
	for sym, pos := range state.openPositions {
		vol, ok := m.volCache[sym]
		if !ok {
			complete = false
			break
		}
		parametric += pos.Notional() * vol
	}
	if complete {
		return parametric * config.DefaultVaRConfidenceMultiplier, true
	}

	if len(state.pnlHistory) >= minVaRHistory {
		return historicalVaR(state.pnlHistory), false
	}
	return 0, false
}

// historicalVaR returns the 5th-percentile loss of the realized PnL history
// as a positive number, zero when history skews profitable.
func historicalVaR(history []float64) float64 {
	sorted := make([]float64, len(history))
	copy(sorted, history)
	sort.Float64s(sorted)

	idx := len(sorted) / 20
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if loss := sorted[idx]; loss < 0 {
		return -loss
	}
	return 0
}

// sharpeRatio computes a per-trade Sharpe ratio over the realized PnL
// history, zero when there is not enough variance to divide by.
func sharpeRatio(history []float64) float64 {
	if len(history) < 2 {
		return 0
	}

	mean := 0.0
	for _, pnl := range history {
		mean += pnl
	}
	mean /= float64(len(history))

	variance := 0.0
	for _, pnl := range history {
		d := pnl - mean
		variance += d * d
	}
	variance /= float64(len(history) - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std
}

// CheckEmergencyStop evaluates the halt state machine against the current
// portfolio value and returns true when exposure-increasing trading is
// blocked. Emergency stop is terminal and overrides cooling-off; only
// ResetEmergencyStop clears it.
func (m *Manager) CheckEmergencyStop(portfolioValue float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	drawdown := m.portfolio.ratchetPeak(portfolioValue)

	if m.state == StateEmergencyStop {
		return true
	}

	if drawdown >= m.limits.MaxDrawdownPercent {
		m.transitionLocked(StateEmergencyStop,
			fmt.Sprintf("drawdown %.2f%% breached limit %.2f%%", drawdown*100, m.limits.MaxDrawdownPercent*100))
		return true
	}

	m.expireCoolingOffLocked()
	if m.state == StateCoolingOff {
		return true
	}

	if m.portfolio.consecutiveLosses >= m.limits.MaxConsecutiveLosses {
		until := m.clock().Add(time.Duration(m.limits.CoolingOffPeriod))
		m.portfolio.coolingOffUntil = until
		// The streak resets here so the next cooling-off needs a fresh run
		// of losses, not one more on top of the old streak.
		m.portfolio.consecutiveLosses = 0
		m.transitionLocked(StateCoolingOff,
			fmt.Sprintf("%d consecutive losses, cooling off until %s",
				m.limits.MaxConsecutiveLosses, until.Format(time.RFC3339)))
		return true
	}

	return false
}
