package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

func TestEMASeries(t *testing.T) {
	t.Run("seeded by simple mean", func(t *testing.T) {
		values := []float64{1, 2, 3, 4, 5}
		out := emaSeries(values, 3)

		assert.True(t, math.IsNaN(out[0]))
		assert.True(t, math.IsNaN(out[1]))
		assert.InDelta(t, 2.0, out[2], 1e-9) // (1+2+3)/3

		k := 2.0 / 4.0
		assert.InDelta(t, 4*k+2*(1-k), out[3], 1e-9)
	})

	t.Run("constant input stays constant", func(t *testing.T) {
		values := []float64{7, 7, 7, 7, 7, 7}
		out := emaSeries(values, 3)
		for i := 2; i < len(out); i++ {
			assert.InDelta(t, 7.0, out[i], 1e-9)
		}
	})

	t.Run("too short", func(t *testing.T) {
		out := emaSeries([]float64{1, 2}, 3)
		for _, v := range out {
			assert.True(t, math.IsNaN(v))
		}
	})
}

func TestSMASeries(t *testing.T) {
	out := smaSeries([]float64{2, 4, 6, 8}, 2)
	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, 3.0, out[1], 1e-9)
	assert.InDelta(t, 5.0, out[2], 1e-9)
	assert.InDelta(t, 7.0, out[3], 1e-9)
}

func TestTrueRangeSeries(t *testing.T) {
	candles := []types.Candle{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 10, Close: 10.5}, // gap up: |11-9| dominates
		{High: 10.7, Low: 10.2, Close: 10.4},
	}
	tr := trueRangeSeries(candles)
	assert.InDelta(t, 2.0, tr[0], 1e-9)
	assert.InDelta(t, 2.0, tr[1], 1e-9)
	assert.InDelta(t, 0.5, tr[2], 1e-9)
}

func TestRSISeries(t *testing.T) {
	t.Run("all gains is 100", func(t *testing.T) {
		closes := []float64{1, 2, 3, 4, 5, 6, 7, 8}
		out := rsiSeries(closes, 3)
		assert.True(t, math.IsNaN(out[2]))
		assert.InDelta(t, 100.0, out[3], 1e-9)
		assert.InDelta(t, 100.0, out[7], 1e-9)
	})

	t.Run("flat is 50", func(t *testing.T) {
		closes := []float64{5, 5, 5, 5, 5}
		out := rsiSeries(closes, 3)
		assert.InDelta(t, 50.0, out[3], 1e-9)
	})

	t.Run("bounded", func(t *testing.T) {
		closes := []float64{10, 11, 9, 12, 8, 13, 7, 14, 6}
		out := rsiSeries(closes, 4)
		for i := 4; i < len(out); i++ {
			assert.GreaterOrEqual(t, out[i], 0.0)
			assert.LessOrEqual(t, out[i], 100.0)
		}
	})
}

func TestWilderSmooth(t *testing.T) {
	values := []float64{2, 2, 2, 10}
	out := wilderSmooth(values, 3)
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, (2.0*2+10)/3, out[3], 1e-9)
}

func TestVWAPSeries(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	candles := []types.Candle{
		{Timestamp: day, High: 10, Low: 10, Close: 10, Volume: 1},
		{Timestamp: day.Add(time.Hour), High: 20, Low: 20, Close: 20, Volume: 1},
		// new UTC day restarts the accumulation
		{Timestamp: day.Add(24 * time.Hour), High: 30, Low: 30, Close: 30, Volume: 1},
	}
	out := vwapSeries(candles, VWAPResetDaily, 0)
	assert.InDelta(t, 10.0, out[0], 1e-9)
	assert.InDelta(t, 15.0, out[1], 1e-9)
	assert.InDelta(t, 30.0, out[2], 1e-9)
}

func TestADXSeriesTrendingMarket(t *testing.T) {
	// A steady uptrend: +DI should dominate and ADX should be strong once
	// defined.
	candles := make([]types.Candle, 60)
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		price := 100 + float64(i)*2
		candles[i] = types.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price - 1,
			High:      price + 1,
			Low:       price - 2,
			Close:     price,
			Volume:    1000,
		}
	}
	adx, plusDI, minusDI := adxSeries(candles, 14)

	last := len(candles) - 1
	require.False(t, math.IsNaN(adx[last]))
	assert.Greater(t, plusDI[last], minusDI[last])
	assert.Greater(t, adx[last], 25.0)
}

func TestNanAwareSMA(t *testing.T) {
	values := []float64{nan, 2, 4, 6}
	out := nanAwareSMA(values, 2)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1])) // window still contains the NaN
	assert.InDelta(t, 3.0, out[2], 1e-9)
	assert.InDelta(t, 5.0, out[3], 1e-9)
}
