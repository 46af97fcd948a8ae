package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

func bufferWith(adx, atr, atrMA, vwapDistance float64) []types.EnrichedCandle {
	close := 100.0
	return []types.EnrichedCandle{{
		Candle: types.Candle{Close: close, Volume: 1000},
		ADX:    adx,
		ATR:    atr,
		ATRMA:  atrMA,
		VWAP:   close - vwapDistance,
		RSI:    55,
	}}
}

func TestClassifyTrendStrength(t *testing.T) {
	a := NewAnalyzer()

	cases := []struct {
		adx  float64
		want types.TrendStrength
	}{
		{10, types.TrendNone},
		{17, types.TrendWeak},
		{22, types.TrendModerate},
		{30, types.TrendStrong},
		{45, types.TrendStrong},
	}
	for _, tc := range cases {
		cond := a.Classify(bufferWith(tc.adx, 2, 2, 5))
		assert.Equal(t, tc.want, cond.TrendStrength, "adx=%.0f", tc.adx)
	}
}

func TestClassifyVolatility(t *testing.T) {
	a := NewAnalyzer()

	low := a.Classify(bufferWith(30, 1.0, 2.0, 5))
	assert.Equal(t, types.VolatilityLow, low.Volatility)

	normal := a.Classify(bufferWith(30, 2.0, 2.0, 5))
	assert.Equal(t, types.VolatilityNormal, normal.Volatility)

	high := a.Classify(bufferWith(30, 4.0, 2.0, 5))
	assert.Equal(t, types.VolatilityHigh, high.Volatility)
}

func TestClassifyRanging(t *testing.T) {
	a := NewAnalyzer()

	// Weak trend and price hugging VWAP.
	ranging := a.Classify(bufferWith(15, 2.0, 2.0, 1.0))
	assert.True(t, ranging.IsRanging)

	// Strong trend is never ranging.
	trending := a.Classify(bufferWith(30, 2.0, 2.0, 1.0))
	assert.False(t, trending.IsRanging)

	// Far from VWAP is not ranging even with a weak trend.
	stretched := a.Classify(bufferWith(15, 2.0, 2.0, 10))
	assert.False(t, stretched.IsRanging)
}
