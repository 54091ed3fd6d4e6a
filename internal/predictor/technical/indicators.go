package technical

import (
	"errors"

	"golang-portfolio-predictor/internal/predictor/dto"
)

// ErrInsufficientData is returned when an indicator snapshot is requested for
// an empty price series. All other low-data cases degrade per indicator.
var ErrInsufficientData = errors.New("insufficient price data for technical analysis")

const (
	smaPeriod   = 20
	rsiPeriod   = 14
	slopeWindow = 10
)

// Snapshot holds the indicator values derived from one intraday series.
// SMA20 is nil when fewer than 20 samples exist.
type Snapshot struct {
	SMA20      *float64 `json:"sma_20"`
	RSI14      float64  `json:"rsi_14"`
	Support    float64  `json:"support"`
	Resistance float64  `json:"resistance"`
	TrendSlope float64  `json:"trend_slope"`
}

// Compute derives the snapshot from an ordered intraday series. It is a pure
// function of its input.
func Compute(series []dto.PricePoint) (*Snapshot, error) {
	if len(series) == 0 {
		return nil, ErrInsufficientData
	}

	prices := make([]float64, len(series))
	for i, p := range series {
		prices[i] = p.Price
	}

	support, resistance := supportResistance(prices)

	return &Snapshot{
		SMA20:      sma(prices, smaPeriod),
		RSI14:      rsi(prices, rsiPeriod),
		Support:    support,
		Resistance: resistance,
		TrendSlope: trendSlope(prices, slopeWindow),
	}, nil
}

// sma returns the mean of the last period prices, or nil when the series is
// shorter than the period. It is never extrapolated from partial data.
func sma(prices []float64, period int) *float64 {
	if len(prices) < period {
		return nil
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	avg := sum / float64(period)
	return &avg
}

// rsi computes the relative strength index over the last period pairwise
// deltas, or fewer when the series is short. A series with no losses reads
// 100; a completely flat series reads neutral 50.
func rsi(prices []float64, period int) float64 {
	deltas := len(prices) - 1
	if deltas > period {
		deltas = period
	}
	if deltas < 1 {
		return 50
	}

	var gains, losses float64
	start := len(prices) - deltas - 1
	for i := start + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(deltas)
	avgLoss := losses / float64(deltas)

	if avgGain == 0 && avgLoss == 0 {
		return 50
	}
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// supportResistance returns the min and max over the last 20 samples, or the
// whole series when shorter.
func supportResistance(prices []float64) (float64, float64) {
	window := prices
	if len(prices) > smaPeriod {
		window = prices[len(prices)-smaPeriod:]
	}

	support, resistance := window[0], window[0]
	for _, p := range window[1:] {
		if p < support {
			support = p
		}
		if p > resistance {
			resistance = p
		}
	}
	return support, resistance
}

// trendSlope fits an ordinary least-squares line of price against sample
// index over the last min(window, n) samples and returns its slope.
func trendSlope(prices []float64, window int) float64 {
	if len(prices) > window {
		prices = prices[len(prices)-window:]
	}
	n := float64(len(prices))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range prices {
		x := float64(i)
		sumX += x
		sumY += p
		sumXY += x * p
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
