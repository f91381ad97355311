package risk

import (
	"context"

	"github.com/ducminhle1904/crypto-risk-gate/internal/errors"
)

// VolatilityProvider supplies a per-symbol volatility estimate, expressed as
// a fraction of price (e.g. 0.02 for 2%). Implementations may block on
// external data sources; the manager always calls them with a deadline and
// outside its state lock.
type VolatilityProvider interface {
	Volatility(ctx context.Context, symbol string) (float64, error)
}

// CorrelationProvider maps a symbol to the set of symbols it is considered
// correlated with (itself included).
type CorrelationProvider interface {
	CorrelationGroup(ctx context.Context, symbol string) ([]string, error)
}

// StaticVolatility is a fixed-table volatility provider, used in tests and
// as the offline fallback when no exchange credentials are configured.
type StaticVolatility map[string]float64

func (s StaticVolatility) Volatility(_ context.Context, symbol string) (float64, error) {
	v, ok := s[symbol]
	if !ok {
		return 0, errors.NewDataError("static-volatility", "Volatility", errUnknownSymbol(symbol))
	}
	return v, nil
}

// StaticCorrelationGroups classifies symbols into fixed correlation groups.
// A symbol not present in any group correlates only with itself.
type StaticCorrelationGroups [][]string

// DefaultCorrelationGroups groups the major quote variants of the same base
// asset, mirroring how spot pairs of one coin move together.
func DefaultCorrelationGroups() StaticCorrelationGroups {
	return StaticCorrelationGroups{
		{"BTCUSD", "BTCUSDT", "BTCEUR"},
		{"ETHUSD", "ETHUSDT", "ETHEUR", "ETHBTC"},
		{"LTCUSD", "LTCUSDT", "LTCBTC"},
	}
}

func (g StaticCorrelationGroups) CorrelationGroup(_ context.Context, symbol string) ([]string, error) {
	for _, group := range g {
		for _, s := range group {
			if s == symbol {
				return group, nil
			}
		}
	}
	return []string{symbol}, nil
}

type errUnknownSymbol string

func (e errUnknownSymbol) Error() string {
	return "no volatility data for symbol " + string(e)
}
