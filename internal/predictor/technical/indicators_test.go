package technical

import (
	"testing"
	"time"

	"golang-portfolio-predictor/internal/predictor/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSeries(prices ...float64) []dto.PricePoint {
	base := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	series := make([]dto.PricePoint, len(prices))
	for i, p := range prices {
		series[i] = dto.PricePoint{
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Price:     p,
			Volume:    1000,
		}
	}
	return series
}

func TestComputeEmptySeries(t *testing.T) {
	_, err := Compute(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Compute([]dto.PricePoint{})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestComputeShortSeries(t *testing.T) {
	// Five samples: SMA20 must stay nil, support/resistance come from the
	// full window.
	snapshot, err := Compute(makeSeries(100, 102, 101, 103, 99))
	require.NoError(t, err)

	assert.Nil(t, snapshot.SMA20)
	assert.Equal(t, 99.0, snapshot.Support)
	assert.Equal(t, 103.0, snapshot.Resistance)
	assert.NotZero(t, snapshot.RSI14)
}

func TestComputeSMA20(t *testing.T) {
	prices := make([]float64, 25)
	for i := range prices {
		prices[i] = 100
	}
	// Last 20 samples average 110: first 5 stay at 100 and are excluded.
	for i := 5; i < 25; i++ {
		prices[i] = 110
	}

	snapshot, err := Compute(makeSeries(prices...))
	require.NoError(t, err)
	require.NotNil(t, snapshot.SMA20)
	assert.InDelta(t, 110.0, *snapshot.SMA20, 1e-9)
}

func TestRSIAllGains(t *testing.T) {
	snapshot, err := Compute(makeSeries(100, 101, 102, 103, 104))
	require.NoError(t, err)
	assert.Equal(t, 100.0, snapshot.RSI14)
}

func TestRSIFlatSeriesIsNeutral(t *testing.T) {
	snapshot, err := Compute(makeSeries(100, 100, 100, 100))
	require.NoError(t, err)
	assert.Equal(t, 50.0, snapshot.RSI14)
}

func TestRSISingleSampleIsNeutral(t *testing.T) {
	snapshot, err := Compute(makeSeries(100))
	require.NoError(t, err)
	assert.Equal(t, 50.0, snapshot.RSI14)
}

func TestRSIMixedMoves(t *testing.T) {
	// Gains 2+2, losses 1+1 over 4 deltas: RS = 2, RSI = 100 - 100/3.
	snapshot, err := Compute(makeSeries(100, 102, 101, 103, 102))
	require.NoError(t, err)
	assert.InDelta(t, 100-100.0/3, snapshot.RSI14, 1e-9)
}

func TestSupportResistanceWindowed(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100
	}
	// Extremes outside the 20-sample window must be ignored.
	prices[0] = 50
	prices[1] = 200
	prices[15] = 95
	prices[25] = 105

	snapshot, err := Compute(makeSeries(prices...))
	require.NoError(t, err)
	assert.Equal(t, 95.0, snapshot.Support)
	assert.Equal(t, 105.0, snapshot.Resistance)
}

func TestTrendSlope(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{name: "perfect uptrend", prices: []float64{100, 101, 102, 103, 104}, want: 1.0},
		{name: "perfect downtrend", prices: []float64{104, 103, 102, 101, 100}, want: -1.0},
		{name: "flat", prices: []float64{100, 100, 100}, want: 0.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snapshot, err := Compute(makeSeries(tc.prices...))
			require.NoError(t, err)
			assert.InDelta(t, tc.want, snapshot.TrendSlope, 1e-9)
		})
	}
}

func TestTrendSlopeUsesLastTenSamples(t *testing.T) {
	// A long flat prefix followed by a clean rise of 1 per sample: only
	// the last 10 samples feed the fit.
	prices := make([]float64, 30)
	for i := range prices {
		if i < 20 {
			prices[i] = 100
		} else {
			prices[i] = 100 + float64(i-20)
		}
	}

	snapshot, err := Compute(makeSeries(prices...))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, snapshot.TrendSlope, 1e-9)
}

func TestComputeIsPure(t *testing.T) {
	series := makeSeries(100, 102, 101, 103, 99)
	before := make([]dto.PricePoint, len(series))
	copy(before, series)

	_, err := Compute(series)
	require.NoError(t, err)
	assert.Equal(t, before, series)
}
