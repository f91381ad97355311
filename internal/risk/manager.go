// Package risk gates every order a trading engine attempts to place,
// enforcing portfolio-level and position-level limits before anything
// reaches an exchange.
package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-risk-gate/internal/errors"
	"github.com/ducminhle1904/crypto-risk-gate/internal/logger"
	"github.com/ducminhle1904/crypto-risk-gate/internal/monitoring"
	"github.com/ducminhle1904/crypto-risk-gate/internal/safety"
	"github.com/ducminhle1904/crypto-risk-gate/pkg/config"
	"github.com/ducminhle1904/crypto-risk-gate/pkg/types"
)

const decisionHistoryLimit = 100

// minPositivePrice is the epsilon floor for computed stop prices.
const minPositivePrice = 1e-8

// Options configures optional manager collaborators.
type Options struct {
	Logger      *logger.Logger
	Clock       Clock
	Volatility  VolatilityProvider
	Correlation CorrelationProvider

	// Health receives decision, state, and provider updates so the /health
	// endpoint tracks the manager. A private checker is used when nil.
	Health *monitoring.HealthChecker

	// LookupTimeout bounds each provider call. Zero means 5s.
	LookupTimeout time.Duration

	// DefaultVolatility is the degraded-mode fallback when no provider
	// value is available.
	DefaultVolatility float64
}

// Manager is the single authority over one portfolio's risk state. All
// mutations of portfolio state happen behind its mutex; provider lookups
// happen outside it.
type Manager struct {
	limits config.RiskLimits
	log    *logger.Logger
	clock  Clock

	volatility    VolatilityProvider
	correlation   CorrelationProvider
	volBreaker    *safety.Breaker
	corrBreaker   *safety.Breaker
	lookupTimeout time.Duration
	defaultVol    float64
	health        *monitoring.HealthChecker

	mu         sync.Mutex
	state      TradingState
	haltReason string
	portfolio  *portfolioState
	decisions  []DecisionRecord

	// Last successful volatility lookups, consulted by VaR so the
	// assessment never blocks on a provider.
	volCache map[string]float64
}

// NewManager creates a risk manager for one portfolio. The limits must have
// been validated at startup; NewManager rejects an invalid set anyway since
// financial state integrity outranks convenience.
func NewManager(limits config.RiskLimits, startValue float64, opts Options) (*Manager, error) {
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("risk limits: %w", err)
	}
	if startValue <= 0 {
		return nil, fmt.Errorf("starting portfolio value must be positive, got: %.2f", startValue)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock
	}
	timeout := opts.LookupTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	health := opts.Health
	if health == nil {
		health = monitoring.NewHealthChecker()
	}

	m := &Manager{
		limits:        limits,
		log:           log,
		clock:         clock,
		volatility:    opts.Volatility,
		correlation:   opts.Correlation,
		volBreaker:    safety.NewBreaker("volatility", safety.BreakerConfig{}),
		corrBreaker:   safety.NewBreaker("correlation", safety.BreakerConfig{}),
		lookupTimeout: timeout,
		defaultVol:    opts.DefaultVolatility,
		health:        health,
		state:         StateNormal,
		portfolio:     newPortfolioState(startValue),
		volCache:      make(map[string]float64),
	}

	log.Info("risk manager initialized: max_position=%.1f%% max_daily_loss=%.1f%% max_drawdown=%.1f%%",
		limits.MaxPositionSizePercent*100, limits.MaxDailyLossPercent*100, limits.MaxDrawdownPercent*100)

	return m, nil
}

// ValidateOrder applies the ordered risk checks to a proposed order. It
// never mutates open positions; a fill must be reported separately via
// RecordFill before the next order for the same symbol.
func (m *Manager) ValidateOrder(ctx context.Context, proposal types.OrderProposal, snapshot types.PortfolioSnapshot) Decision {
	decision := m.validate(ctx, proposal, snapshot)

	m.mu.Lock()
	m.decisions = append(m.decisions, DecisionRecord{
		Timestamp:         m.clock(),
		Symbol:            proposal.Symbol,
		Side:              proposal.Side,
		RequestedQuantity: proposal.Quantity,
		Price:             proposal.Price,
		Accepted:          decision.Accepted,
		Reason:            decision.Reason,
		AdjustedQuantity:  decision.AdjustedQuantity,
	})
	if len(m.decisions) > decisionHistoryLimit {
		m.decisions = m.decisions[len(m.decisions)-decisionHistoryLimit:]
	}
	m.mu.Unlock()

	m.log.LogDecision(proposal.Symbol, string(proposal.Side), decision.Accepted,
		string(decision.Reason), proposal.Quantity, decision.AdjustedQuantity)
	monitoring.RecordDecision(proposal.Symbol, decision.Accepted, string(decision.Reason))
	if decision.Accepted && decision.AdjustedQuantity != proposal.Quantity {
		monitoring.RecordAdjustedOrder()
	}
	m.health.RecordDecision()

	return decision
}

func (m *Manager) validate(ctx context.Context, proposal types.OrderProposal, snapshot types.PortfolioSnapshot) Decision {
	m.mu.Lock()

	// 1. Emergency-stop gate. Cooling-off expiry is evaluated lazily here.
	m.expireCoolingOffLocked()
	if m.state.Halted() && !m.reducesExposureLocked(proposal) {
		reason := m.haltReason
		m.mu.Unlock()
		return reject(errors.ReasonHalted, "trading halted: "+reason)
	}

	// 2. Notional sanity.
	if proposal.Quantity <= 0 || proposal.Price <= 0 ||
		math.IsNaN(proposal.Quantity) || math.IsNaN(proposal.Price) {
		m.mu.Unlock()
		return reject(errors.ReasonInvalidInput,
			fmt.Sprintf("quantity and price must be positive, got qty=%v price=%v", proposal.Quantity, proposal.Price))
	}

	quantity := proposal.Quantity
	notional := proposal.Notional()

	// 3. Balance sufficiency. No naked shorts: a SELL must be covered by
	// an existing position.
	switch proposal.Side {
	case types.SideBuy:
		if notional > snapshot.AvailableBalance {
			m.mu.Unlock()
			return reject(errors.ReasonBalance,
				fmt.Sprintf("notional %.2f exceeds available balance %.2f", notional, snapshot.AvailableBalance))
		}
	case types.SideSell:
		pos, ok := m.portfolio.openPositions[proposal.Symbol]
		if !ok || pos.Quantity < quantity {
			held := 0.0
			if ok {
				held = pos.Quantity
			}
			m.mu.Unlock()
			return reject(errors.ReasonBalance,
				fmt.Sprintf("sell quantity %.8f exceeds open position %.8f", quantity, held))
		}
	default:
		m.mu.Unlock()
		return reject(errors.ReasonInvalidInput, fmt.Sprintf("unknown order side %q", proposal.Side))
	}

	// 4. Position-size cap: adjust down instead of rejecting.
	adjustMsg := ""
	maxNotional := snapshot.Value * m.limits.MaxPositionSizePercent
	if notional > maxNotional {
		adjusted := maxNotional / proposal.Price
		adjustedNotional := adjusted * proposal.Price
		if adjustedNotional < m.limits.MinOrderSize {
			if m.limits.RejectBelowMinOrder {
				m.mu.Unlock()
				return reject(errors.ReasonMinOrderSize,
					fmt.Sprintf("capped notional %.2f below minimum order size %.2f", adjustedNotional, m.limits.MinOrderSize))
			}
			adjusted = m.limits.MinOrderSize / proposal.Price
		}
		quantity = adjusted
		notional = quantity * proposal.Price
		adjustMsg = fmt.Sprintf("quantity adjusted to %.1f%% position cap", m.limits.MaxPositionSizePercent*100)
	}

	// 5. Concurrent-position cap, only when this order opens a new symbol.
	_, exists := m.portfolio.openPositions[proposal.Symbol]
	if proposal.Side == types.SideBuy && !exists &&
		len(m.portfolio.openPositions) >= m.limits.MaxOpenPositions {
		m.mu.Unlock()
		return reject(errors.ReasonOpenPositions,
			fmt.Sprintf("maximum open positions (%d) reached", m.limits.MaxOpenPositions))
	}

	// Snapshot exposures for the correlation check, then release the lock
	// across the external lookup.
	exposures := make(map[string]float64, len(m.portfolio.openPositions))
	for sym, pos := range m.portfolio.openPositions {
		exposures[sym] = pos.Notional()
	}
	m.mu.Unlock()

	// 6. Correlation/concentration cap. Degrades to self-only correlation
	// when the provider is unavailable.
	if proposal.Side == types.SideBuy {
		group := m.lookupCorrelationGroup(ctx, proposal.Symbol)
		correlated := notional
		for _, sym := range group {
			if sym == proposal.Symbol {
				continue
			}
			correlated += exposures[sym]
		}
		if limit := m.limits.MaxCorrelationExposure * snapshot.Value; correlated > limit {
			return reject(errors.ReasonConcentration,
				fmt.Sprintf("correlated exposure %.2f exceeds limit %.2f", correlated, limit))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check the halt gate: the state may have changed while the
	// correlation lookup was outstanding.
	m.expireCoolingOffLocked()
	if m.state.Halted() && !m.reducesExposureLocked(proposal) {
		return reject(errors.ReasonHalted, "trading halted: "+m.haltReason)
	}

	// 7. Daily-loss cap: a realized same-day hard stop, independent of the
	// multi-day emergency stop.
	if lossPct := m.portfolio.realizedDailyLossPercent(); lossPct >= m.limits.MaxDailyLossPercent {
		return reject(errors.ReasonDailyLoss,
			fmt.Sprintf("daily loss %.2f%% reached limit %.2f%%", lossPct*100, m.limits.MaxDailyLossPercent*100))
	}

	decision := Decision{
		Accepted:         true,
		Message:          "order validated",
		AdjustedQuantity: quantity,
	}
	if adjustMsg != "" {
		// Accepted, but flagged so the audit trail shows the resize.
		decision.Reason = errors.ReasonPositionSize
		decision.Message = adjustMsg
	}

	return decision
}

func reject(reason errors.ReasonCode, message string) Decision {
	return Decision{Accepted: false, Reason: reason, Message: message, AdjustedQuantity: 0}
}

// reducesExposureLocked reports whether the proposal only closes or shrinks
// an existing long position. Both halted states admit reduce-only sells.
func (m *Manager) reducesExposureLocked(proposal types.OrderProposal) bool {
	if proposal.Side != types.SideSell {
		return false
	}
	pos, ok := m.portfolio.openPositions[proposal.Symbol]
	return ok && pos.Side == types.SideBuy && proposal.Quantity <= pos.Quantity
}

// expireCoolingOffLocked lazily clears an elapsed cooling-off period.
func (m *Manager) expireCoolingOffLocked() {
	if m.state != StateCoolingOff {
		return
	}
	if !m.clock().Before(m.portfolio.coolingOffUntil) {
		m.transitionLocked(StateNormal, "cooling-off period elapsed")
		m.portfolio.coolingOffUntil = time.Time{}
	}
}

// transitionLocked changes the trading state and records why.
func (m *Manager) transitionLocked(to TradingState, reason string) {
	if m.state == to {
		return
	}
	from := m.state
	m.state = to
	if to == StateNormal || to == StateWarning {
		m.haltReason = ""
	} else {
		m.haltReason = reason
	}
	m.log.LogStateTransition(from.String(), to.String(), reason)
	monitoring.SetTradingState(to.String(), int(to))
	m.health.SetTradingState(to.String(), m.haltReason)
}

// RecordFill applies an executed order to portfolio state. Fills for one
// symbol must be reported in execution order; the mutex makes each
// application atomic but cannot reorder calls.
func (m *Manager) RecordFill(fill types.Fill) error {
	if fill.Quantity <= 0 || fill.Price <= 0 {
		return errors.NewInputError("risk", "RecordFill",
			fmt.Sprintf("fill quantity and price must be positive, got qty=%v price=%v", fill.Quantity, fill.Price))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.portfolio

	switch fill.Side {
	case types.SideBuy:
		pos, ok := state.openPositions[fill.Symbol]
		if !ok {
			if len(state.openPositions) >= m.limits.MaxOpenPositions {
				// The validation gate should have prevented this;
				// treat it as corruption rather than silently grow.
				return m.corruptLocked("RecordFill",
					fmt.Sprintf("fill for %s would exceed max open positions", fill.Symbol))
			}
			state.openPositions[fill.Symbol] = &types.Position{
				Symbol:     fill.Symbol,
				Side:       types.SideBuy,
				Quantity:   fill.Quantity,
				EntryPrice: fill.Price,
				MarkPrice:  fill.Price,
			}
		} else {
			// Weighted-average entry across adds.
			total := pos.Quantity + fill.Quantity
			pos.EntryPrice = (pos.EntryPrice*pos.Quantity + fill.Price*fill.Quantity) / total
			pos.Quantity = total
			pos.MarkPrice = fill.Price
		}

	case types.SideSell:
		pos, ok := state.openPositions[fill.Symbol]
		if !ok {
			return m.corruptLocked("RecordFill",
				fmt.Sprintf("sell fill for %s with no open position", fill.Symbol))
		}
		remaining := pos.Quantity - fill.Quantity
		if remaining < -1e-12 {
			return m.corruptLocked("RecordFill",
				fmt.Sprintf("sell fill for %s leaves negative quantity %.8f", fill.Symbol, remaining))
		}
		if fill.Closed || remaining <= 1e-12 {
			delete(state.openPositions, fill.Symbol)
		} else {
			pos.Quantity = remaining
			pos.MarkPrice = fill.Price
		}

	default:
		return errors.NewInputError("risk", "RecordFill", fmt.Sprintf("unknown fill side %q", fill.Side))
	}

	state.realizedDailyPnL += fill.RealizedPnL
	if fill.Closed {
		state.recordClosedTrade(fill.RealizedPnL)
	}

	return nil
}

// corruptLocked latches emergency stop on an internal invariant violation.
func (m *Manager) corruptLocked(operation, message string) error {
	m.transitionLocked(StateEmergencyStop, "state corruption: "+message)
	m.health.RecordError(message)
	return errors.NewStateError("risk", operation, message)
}

// SetProtectiveLevels attaches stop/target prices to an open position.
func (m *Manager) SetProtectiveLevels(symbol string, stopLoss, takeProfit float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.portfolio.openPositions[symbol]
	if !ok {
		return errors.NewInputError("risk", "SetProtectiveLevels", "no open position for "+symbol)
	}
	pos.StopLoss = stopLoss
	pos.TakeProfit = takeProfit
	return nil
}

// UpdateMarketPrice refreshes a position's mark price for exposure and
// unrealized PnL reporting. Tickers for unknown symbols are ignored.
func (m *Manager) UpdateMarketPrice(ticker types.Ticker) {
	if ticker.Price <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if pos, ok := m.portfolio.openPositions[ticker.Symbol]; ok {
		pos.MarkPrice = ticker.Price
	}
}

// StartTradingDay resets the daily baseline at a trading-day boundary.
func (m *Manager) StartTradingDay(portfolioValue float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.portfolio.dailyStartValue = portfolioValue
	m.portfolio.currentValue = portfolioValue
	m.portfolio.realizedDailyPnL = 0

	m.log.Info("trading day started: baseline value %.2f", portfolioValue)
}

// ResetEmergencyStop is the manual override that clears a terminal halt. It
// re-bases the high-water mark to the supplied current value so the stop
// does not immediately re-trip on the same drawdown.
func (m *Manager) ResetEmergencyStop(portfolioValue float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateEmergencyStop {
		return
	}

	m.portfolio.peakValue = portfolioValue
	m.portfolio.currentValue = portfolioValue
	m.portfolio.consecutiveLosses = 0
	m.portfolio.coolingOffUntil = time.Time{}
	m.transitionLocked(StateNormal, "manual emergency-stop reset")
}

// Status returns a monitoring snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		State:             m.state,
		HaltReason:        m.haltReason,
		CoolingOffUntil:   m.portfolio.coolingOffUntil,
		ConsecutiveLosses: m.portfolio.consecutiveLosses,
		OpenPositions:     m.portfolio.positionsSnapshot(),
		PortfolioValue:    m.portfolio.currentValue,
		DailyStartValue:   m.portfolio.dailyStartValue,
		PeakValue:         m.portfolio.peakValue,
		RealizedDailyPnL:  m.portfolio.realizedDailyPnL,
	}
}

// DecisionHistory returns a copy of the bounded decision audit trail,
// oldest first.
func (m *Manager) DecisionHistory() []DecisionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]DecisionRecord, len(m.decisions))
	copy(out, m.decisions)
	return out
}

// lookupVolatility resolves a symbol's volatility through the provider,
// guarded by the breaker and a deadline. Returns the configured default and
// false on any failure.
func (m *Manager) lookupVolatility(ctx context.Context, symbol string) (float64, bool) {
	if m.volatility == nil {
		return m.defaultVol, false
	}
	if !m.volBreaker.Allow() {
		m.log.LogDegraded("volatility", symbol, m.volBreaker.ErrOpen())
		return m.defaultVol, false
	}

	ctx, cancel := context.WithTimeout(ctx, m.lookupTimeout)
	defer cancel()

	v, err := m.volatility.Volatility(ctx, symbol)
	if err != nil || v <= 0 || math.IsNaN(v) {
		m.volBreaker.RecordFailure()
		if err == nil {
			err = fmt.Errorf("non-positive volatility %v", v)
		}
		m.log.LogDegraded("volatility", symbol, err)
		monitoring.RecordProviderFailure("volatility")
		m.health.SetProviderOK(false)
		return m.defaultVol, false
	}

	m.volBreaker.RecordSuccess()
	m.health.SetProviderOK(true)

	m.mu.Lock()
	m.volCache[symbol] = v
	m.mu.Unlock()

	return v, true
}

// lookupCorrelationGroup resolves the correlation group for a symbol,
// degrading to self-only correlation on failure.
func (m *Manager) lookupCorrelationGroup(ctx context.Context, symbol string) []string {
	if m.correlation == nil {
		return []string{symbol}
	}
	if !m.corrBreaker.Allow() {
		m.log.LogDegraded("correlation", symbol, m.corrBreaker.ErrOpen())
		return []string{symbol}
	}

	ctx, cancel := context.WithTimeout(ctx, m.lookupTimeout)
	defer cancel()

	group, err := m.correlation.CorrelationGroup(ctx, symbol)
	if err != nil || len(group) == 0 {
		m.corrBreaker.RecordFailure()
		if err == nil {
			err = fmt.Errorf("empty correlation group")
		}
		m.log.LogDegraded("correlation", symbol, err)
		monitoring.RecordProviderFailure("correlation")
		m.health.SetProviderOK(false)
		return []string{symbol}
	}

	m.corrBreaker.RecordSuccess()
	m.health.SetProviderOK(true)
	return group
}
