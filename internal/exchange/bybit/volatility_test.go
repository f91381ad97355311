package bybit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func klinesFromCloses(closes []float64) []Kline {
	out := make([]Kline, len(closes))
	for i, c := range closes {
		out[i] = Kline{ClosePrice: c}
	}
	return out
}

func TestRealizedVolatility_FlatSeriesIsZero(t *testing.T) {
	klines := klinesFromCloses([]float64{100, 100, 100, 100, 100})

	vol, err := realizedVolatility(klines, Interval1h)
	require.NoError(t, err)
	assert.Equal(t, 0.0, vol)
}

func TestRealizedVolatility_ScalesWithInterval(t *testing.T) {
	closes := []float64{100, 102, 99, 103, 101, 104, 100, 105}

	hourly, err := realizedVolatility(klinesFromCloses(closes), Interval1h)
	require.NoError(t, err)
	daily, err := realizedVolatility(klinesFromCloses(closes), Interval1d)
	require.NoError(t, err)

	require.Greater(t, hourly, 0.0)
	assert.InDelta(t, math.Sqrt(24), hourly/daily, 1e-9)
}

func TestRealizedVolatility_SkipsBadCloses(t *testing.T) {
	klines := klinesFromCloses([]float64{100, 0, 102, 99, 103, -5, 101})

	vol, err := realizedVolatility(klines, Interval1h)
	require.NoError(t, err)
	assert.Greater(t, vol, 0.0)
}

func TestRealizedVolatility_RejectsShortSeries(t *testing.T) {
	_, err := realizedVolatility(klinesFromCloses([]float64{100, 101}), Interval1h)
	assert.Error(t, err)
}
