package bybit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// VolatilityEstimator derives a per-symbol daily volatility from recent
// kline closes. It satisfies the risk manager's VolatilityProvider interface
// and caches readings so repeated lookups within the refresh window do not
// hit the API.
type VolatilityEstimator struct {
	client   *Client
	category string
	interval KlineInterval
	window   int

	mu     sync.Mutex
	cache  map[string]cachedVol
	maxAge time.Duration
}

type cachedVol struct {
	value     float64
	fetchedAt time.Time
}

// EstimatorConfig configures a VolatilityEstimator.
type EstimatorConfig struct {
	Category string        // defaults to "spot"
	Interval KlineInterval // defaults to 1h
	Window   int           // number of closes, defaults to 48
	MaxAge   time.Duration // cache lifetime, defaults to 15m
}

// NewVolatilityEstimator builds an estimator backed by the given client.
func NewVolatilityEstimator(client *Client, cfg EstimatorConfig) *VolatilityEstimator {
	if cfg.Category == "" {
		cfg.Category = "spot"
	}
	if cfg.Interval == "" {
		cfg.Interval = Interval1h
	}
	if cfg.Window <= 1 {
		cfg.Window = 48
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 15 * time.Minute
	}

	return &VolatilityEstimator{
		client:   client,
		category: cfg.Category,
		interval: cfg.Interval,
		window:   cfg.Window,
		cache:    make(map[string]cachedVol),
		maxAge:   cfg.MaxAge,
	}
}

// Volatility returns the standard deviation of log returns over the
// configured window, scaled to a daily horizon.
func (e *VolatilityEstimator) Volatility(ctx context.Context, symbol string) (float64, error) {
	e.mu.Lock()
	if cached, ok := e.cache[symbol]; ok && time.Since(cached.fetchedAt) < e.maxAge {
		e.mu.Unlock()
		return cached.value, nil
	}
	e.mu.Unlock()

	var klines []Kline
	err := e.client.Retry(ctx, func() error {
		var fetchErr error
		klines, fetchErr = e.client.GetKlines(ctx, KlineParams{
			Category: e.category,
			Symbol:   symbol,
			Interval: e.interval,
			Limit:    e.window + 1,
		})
		return fetchErr
	})
	if err != nil {
		return 0, err
	}

	vol, err := realizedVolatility(klines, e.interval)
	if err != nil {
		return 0, fmt.Errorf("volatility for %s: %w", symbol, err)
	}

	e.mu.Lock()
	e.cache[symbol] = cachedVol{value: vol, fetchedAt: time.Now()}
	e.mu.Unlock()

	return vol, nil
}

// realizedVolatility computes the close-to-close log-return standard
// deviation and scales it to one day.
func realizedVolatility(klines []Kline, interval KlineInterval) (float64, error) {
	if len(klines) < 3 {
		return 0, fmt.Errorf("need at least 3 klines, got %d", len(klines))
	}

	returns := make([]float64, 0, len(klines)-1)
	for i := 1; i < len(klines); i++ {
		prev, cur := klines[i-1].ClosePrice, klines[i].ClosePrice
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return 0, fmt.Errorf("not enough valid closes")
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance) * math.Sqrt(barsPerDay(interval)), nil
}

func barsPerDay(interval KlineInterval) float64 {
	switch interval {
	case Interval5m:
		return 288
	case Interval15m:
		return 96
	case Interval1h:
		return 24
	case Interval4h:
		return 6
	case Interval1d:
		return 1
	default:
		return 24
	}
}
