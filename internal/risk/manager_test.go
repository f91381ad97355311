package risk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-risk-gate/internal/errors"
	"github.com/ducminhle1904/crypto-risk-gate/internal/monitoring"
	"github.com/ducminhle1904/crypto-risk-gate/pkg/config"
	"github.com/ducminhle1904/crypto-risk-gate/pkg/types"
)

// fixedClock returns a Clock pinned to a mutable instant.
func fixedClock(now *time.Time) Clock {
	return func() time.Time { return *now }
}

func newTestManager(t *testing.T, startValue float64, mutate func(*config.RiskLimits)) (*Manager, *time.Time) {
	t.Helper()

	limits := config.DefaultRiskLimits()
	if mutate != nil {
		mutate(&limits)
	}

	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	m, err := NewManager(limits, startValue, Options{
		Clock:       fixedClock(&now),
		Correlation: DefaultCorrelationGroups(),
	})
	require.NoError(t, err)

	return m, &now
}

func snapshot(value float64) types.PortfolioSnapshot {
	return types.PortfolioSnapshot{Value: value, AvailableBalance: value}
}

func TestNewManager_RejectsInvalidInputs(t *testing.T) {
	limits := config.DefaultRiskLimits()

	_, err := NewManager(limits, 0, Options{})
	assert.Error(t, err)

	limits.MaxPositionSizePercent = 1.5
	_, err = NewManager(limits, 10000, Options{})
	assert.Error(t, err)
}

func TestValidateOrder_AcceptsWithinLimits(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	d := m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0.005, Price: 50000,
	}, snapshot(10000))

	require.True(t, d.Accepted)
	assert.Equal(t, 0.005, d.AdjustedQuantity)
}

func TestValidateOrder_RejectsNonPositiveInputs(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	for _, proposal := range []types.OrderProposal{
		{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0, Price: 50000},
		{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: -1, Price: 50000},
		{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 1, Price: 0},
		{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 1, Price: -3},
	} {
		d := m.ValidateOrder(context.Background(), proposal, snapshot(10000))
		require.False(t, d.Accepted)
		assert.Equal(t, errors.ReasonInvalidInput, d.Reason)
	}
}

func TestValidateOrder_RejectsInsufficientBalance(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	d := m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 1, Price: 50000,
	}, types.PortfolioSnapshot{Value: 100000, AvailableBalance: 400})

	require.False(t, d.Accepted)
	assert.Equal(t, errors.ReasonBalance, d.Reason)
}

func TestValidateOrder_RejectsNakedShort(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	d := m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "BTCUSDT", Side: types.SideSell, Quantity: 1, Price: 50000,
	}, snapshot(10000))

	require.False(t, d.Accepted)
	assert.Equal(t, errors.ReasonBalance, d.Reason)
}

func TestValidateOrder_AdjustsOversizedOrderDown(t *testing.T) {
	// A $800 proposal against a $5000 portfolio with a 10% cap must come
	// back accepted at $500 notional.
	m, _ := newTestManager(t, 5000, nil)

	d := m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 8, Price: 100,
	}, snapshot(5000))

	require.True(t, d.Accepted)
	assert.InDelta(t, 5.0, d.AdjustedQuantity, 1e-9)
	assert.InDelta(t, 500.0, d.AdjustedQuantity*100, 1e-9)
	assert.Equal(t, errors.ReasonPositionSize, d.Reason)
}

func TestValidateOrder_MinOrderSizeInterplay(t *testing.T) {
	// Cap adjusts the order below MinOrderSize. With RejectBelowMinOrder
	// the order is refused; without it the quantity floors at MinOrderSize.
	t.Run("reject", func(t *testing.T) {
		m, _ := newTestManager(t, 10000, func(l *config.RiskLimits) {
			l.MaxPositionSizePercent = 0.01 // cap $100
			l.MinOrderSize = 200
			l.RejectBelowMinOrder = true
		})

		d := m.ValidateOrder(context.Background(), types.OrderProposal{
			Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 3, Price: 100,
		}, snapshot(10000))

		require.False(t, d.Accepted)
		assert.Equal(t, errors.ReasonMinOrderSize, d.Reason)
	})

	t.Run("floor", func(t *testing.T) {
		m, _ := newTestManager(t, 10000, func(l *config.RiskLimits) {
			l.MaxPositionSizePercent = 0.01
			l.MinOrderSize = 200
			l.RejectBelowMinOrder = false
		})

		d := m.ValidateOrder(context.Background(), types.OrderProposal{
			Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 3, Price: 100,
		}, snapshot(10000))

		require.True(t, d.Accepted)
		assert.InDelta(t, 2.0, d.AdjustedQuantity, 1e-9) // $200 at $100
	})
}

func TestValidateOrder_RejectsWhenMaxOpenPositionsReached(t *testing.T) {
	m, _ := newTestManager(t, 100000, func(l *config.RiskLimits) {
		l.MaxOpenPositions = 2
	})

	require.NoError(t, m.RecordFill(types.Fill{Symbol: "AAAUSDT", Side: types.SideBuy, Quantity: 1, Price: 100}))
	require.NoError(t, m.RecordFill(types.Fill{Symbol: "BBBUSDT", Side: types.SideBuy, Quantity: 1, Price: 100}))

	d := m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "CCCUSDT", Side: types.SideBuy, Quantity: 1, Price: 100,
	}, snapshot(100000))
	require.False(t, d.Accepted)
	assert.Equal(t, errors.ReasonOpenPositions, d.Reason)

	// Adding to an existing symbol does not open a new slot and passes.
	d = m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "AAAUSDT", Side: types.SideBuy, Quantity: 1, Price: 100,
	}, snapshot(100000))
	assert.True(t, d.Accepted)
}

func TestValidateOrder_RejectsCorrelatedOverexposure(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	// $2,500 of BTCUSDT already held; another $600 of BTCUSD pushes the
	// BTC group past the 30% ($3,000) correlation limit.
	require.NoError(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0.05, Price: 50000}))

	d := m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "BTCUSD", Side: types.SideBuy, Quantity: 0.012, Price: 50000,
	}, snapshot(10000))

	require.False(t, d.Accepted)
	assert.Equal(t, errors.ReasonConcentration, d.Reason)

	// An uncorrelated symbol with the same notional is fine.
	d = m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "SOLUSDT", Side: types.SideBuy, Quantity: 4, Price: 150,
	}, snapshot(10000))
	assert.True(t, d.Accepted)
}

func TestValidateOrder_RejectsAfterDailyLossCap(t *testing.T) {
	// A $600 realized loss against a $10,000 day start breaches the 5%
	// ($500) daily cap.
	m, _ := newTestManager(t, 10000, nil)

	require.NoError(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0.02, Price: 50000}))
	require.NoError(t, m.RecordFill(types.Fill{
		Symbol: "BTCUSDT", Side: types.SideSell, Quantity: 0.02, Price: 20000,
		RealizedPnL: -600, Closed: true,
	}))

	d := m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "ETHUSDT", Side: types.SideBuy, Quantity: 0.1, Price: 3000,
	}, snapshot(9400))

	require.False(t, d.Accepted)
	assert.Equal(t, errors.ReasonDailyLoss, d.Reason)

	// StartTradingDay resets the baseline and unblocks trading.
	m.StartTradingDay(9400)
	d = m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "ETHUSDT", Side: types.SideBuy, Quantity: 0.1, Price: 3000,
	}, snapshot(9400))
	assert.True(t, d.Accepted)
}

func TestCoolingOff_TriggersAndPermitsReducingSells(t *testing.T) {
	m, now := newTestManager(t, 10000, func(l *config.RiskLimits) {
		l.MaxConsecutiveLosses = 3
		l.MaxDailyLossPercent = 0.50 // keep the daily cap out of the way
	})

	require.NoError(t, m.RecordFill(types.Fill{Symbol: "ETHUSDT", Side: types.SideBuy, Quantity: 2, Price: 300}))

	for i := 0; i < 3; i++ {
		require.NoError(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0.001, Price: 50000}))
		require.NoError(t, m.RecordFill(types.Fill{
			Symbol: "BTCUSDT", Side: types.SideSell, Quantity: 0.001, Price: 49000,
			RealizedPnL: -1, Closed: true,
		}))
	}

	require.True(t, m.CheckEmergencyStop(9990))
	status := m.Status()
	assert.Equal(t, StateCoolingOff, status.State)
	assert.Equal(t, 0, status.ConsecutiveLosses) // streak resets on entry

	// New exposure is blocked.
	d := m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0.001, Price: 50000,
	}, snapshot(9990))
	require.False(t, d.Accepted)
	assert.Equal(t, errors.ReasonHalted, d.Reason)

	// Reducing an existing long is still allowed.
	d = m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "ETHUSDT", Side: types.SideSell, Quantity: 1, Price: 300,
	}, snapshot(9990))
	assert.True(t, d.Accepted)

	// Expiry is lazy: once the period elapses the next validation trades
	// normally again.
	*now = now.Add(25 * time.Hour)
	d = m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0.001, Price: 50000,
	}, snapshot(9990))
	assert.True(t, d.Accepted)
	assert.Equal(t, StateNormal, m.Status().State)
}

func TestEmergencyStop_LatchesUntilManualReset(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	// 20% drawdown against a 15% limit.
	require.True(t, m.CheckEmergencyStop(8000))
	assert.Equal(t, StateEmergencyStop, m.Status().State)

	// Recovery does not clear it.
	require.True(t, m.CheckEmergencyStop(9900))
	assert.Equal(t, StateEmergencyStop, m.Status().State)

	d := m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0.001, Price: 50000,
	}, snapshot(9900))
	require.False(t, d.Accepted)
	assert.Equal(t, errors.ReasonHalted, d.Reason)

	// Manual reset re-bases the high-water mark so the same drawdown does
	// not immediately re-trip.
	m.ResetEmergencyStop(9900)
	status := m.Status()
	assert.Equal(t, StateNormal, status.State)
	assert.Equal(t, 9900.0, status.PeakValue)
	assert.False(t, m.CheckEmergencyStop(9900))
}

func TestEmergencyStop_OverridesCoolingOff(t *testing.T) {
	m, _ := newTestManager(t, 10000, func(l *config.RiskLimits) {
		l.MaxConsecutiveLosses = 1
		l.MaxDailyLossPercent = 0.99
	})

	require.NoError(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0.001, Price: 50000}))
	require.NoError(t, m.RecordFill(types.Fill{
		Symbol: "BTCUSDT", Side: types.SideSell, Quantity: 0.001, Price: 40000,
		RealizedPnL: -10, Closed: true,
	}))

	require.True(t, m.CheckEmergencyStop(9900))
	require.Equal(t, StateCoolingOff, m.Status().State)

	require.True(t, m.CheckEmergencyStop(8000))
	assert.Equal(t, StateEmergencyStop, m.Status().State)
}

func TestRecordFill_AveragesEntryAcrossAdds(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	require.NoError(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 1, Price: 100}))
	require.NoError(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 1, Price: 200}))

	positions := m.Status().OpenPositions
	require.Len(t, positions, 1)
	assert.InDelta(t, 150.0, positions[0].EntryPrice, 1e-9)
	assert.InDelta(t, 2.0, positions[0].Quantity, 1e-9)
}

func TestRecordFill_PartialAndFullCloses(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	require.NoError(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 2, Price: 100}))
	require.NoError(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideSell, Quantity: 1, Price: 110, RealizedPnL: 10}))

	positions := m.Status().OpenPositions
	require.Len(t, positions, 1)
	assert.InDelta(t, 1.0, positions[0].Quantity, 1e-9)

	require.NoError(t, m.RecordFill(types.Fill{
		Symbol: "BTCUSDT", Side: types.SideSell, Quantity: 1, Price: 120,
		RealizedPnL: 20, Closed: true,
	}))
	assert.Empty(t, m.Status().OpenPositions)
}

func TestRecordFill_CorruptionLatchesEmergencyStop(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	require.NoError(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 1, Price: 100}))

	err := m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideSell, Quantity: 2, Price: 100})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorCategoryState, errors.CategoryOf(err))
	assert.Equal(t, StateEmergencyStop, m.Status().State)
}

func TestRecordFill_RejectsInvalidInput(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	assert.Error(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0, Price: 100}))
	assert.Error(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 1, Price: -5}))
	assert.Equal(t, StateNormal, m.Status().State)
}

func TestDecisionHistory_IsBounded(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	for i := 0; i < decisionHistoryLimit+20; i++ {
		m.ValidateOrder(context.Background(), types.OrderProposal{
			Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0.001, Price: 50000,
		}, snapshot(10000))
	}

	history := m.DecisionHistory()
	assert.Len(t, history, decisionHistoryLimit)
	assert.True(t, history[len(history)-1].Accepted)
}

func TestUpdateMarketPrice(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	require.NoError(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 1, Price: 100}))

	m.UpdateMarketPrice(types.Ticker{Symbol: "BTCUSDT", Price: 120})
	m.UpdateMarketPrice(types.Ticker{Symbol: "BTCUSDT", Price: -1})    // ignored
	m.UpdateMarketPrice(types.Ticker{Symbol: "UNKNOWNUSDT", Price: 5}) // ignored

	positions := m.Status().OpenPositions
	require.Len(t, positions, 1)
	assert.Equal(t, 120.0, positions[0].MarkPrice)
	assert.InDelta(t, 20.0, positions[0].UnrealizedPnL(), 1e-9)
}

func TestSetProtectiveLevels(t *testing.T) {
	m, _ := newTestManager(t, 10000, nil)

	require.Error(t, m.SetProtectiveLevels("BTCUSDT", 95, 115))

	require.NoError(t, m.RecordFill(types.Fill{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 1, Price: 100}))
	require.NoError(t, m.SetProtectiveLevels("BTCUSDT", 95, 115))

	positions := m.Status().OpenPositions
	require.Len(t, positions, 1)
	assert.Equal(t, 95.0, positions[0].StopLoss)
	assert.Equal(t, 115.0, positions[0].TakeProfit)
}

func TestHealthEndpointTracksManagerState(t *testing.T) {
	health := monitoring.NewHealthChecker()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	m, err := NewManager(config.DefaultRiskLimits(), 10000, Options{
		Clock:  fixedClock(&now),
		Health: health,
	})
	require.NoError(t, err)

	serve := func() (int, monitoring.HealthStatus) {
		rec := httptest.NewRecorder()
		health.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		var status monitoring.HealthStatus
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
		return rec.Code, status
	}

	code, status := serve()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
	assert.True(t, status.LastDecision.IsZero())

	m.ValidateOrder(context.Background(), types.OrderProposal{
		Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0.005, Price: 50000,
	}, snapshot(10000))

	_, status = serve()
	assert.False(t, status.LastDecision.IsZero())

	m.AssessPortfolioRisk(12000)
	require.True(t, m.CheckEmergencyStop(9000)) // 25% drawdown

	code, status = serve()
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "EMERGENCY_STOP", status.TradingState)
	assert.NotEmpty(t, status.HaltReason)
}
