package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanerrors "github.com/quantsignal/signal-scanner/internal/errors"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// syntheticCandles builds a well-formed oscillating buffer with positive
// volume.
func syntheticCandles(n int) []types.Candle {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, n)
	for i := range candles {
		price := 100 + 10*math.Sin(float64(i)/7) + float64(i)*0.1
		candles[i] = types.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price - 0.5,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000 + 50*math.Sin(float64(i)/3),
		}
	}
	return candles
}

func TestEnrich(t *testing.T) {
	params := DefaultParams()

	t.Run("happy path", func(t *testing.T) {
		buffer := syntheticCandles(300)
		enriched, err := Enrich(buffer, params)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(enriched), minOutputRows)

		for _, e := range enriched {
			assert.False(t, math.IsNaN(e.EMAFast))
			assert.False(t, math.IsNaN(e.EMASlow))
			assert.False(t, math.IsNaN(e.EMATrend))
			assert.False(t, math.IsNaN(e.ATR))
			assert.False(t, math.IsNaN(e.ADX))
			assert.False(t, math.IsNaN(e.VWAP))
			assert.GreaterOrEqual(t, e.RSI, 0.0)
			assert.LessOrEqual(t, e.RSI, 100.0)
			assert.Greater(t, e.ATR, 0.0)
		}
	})

	t.Run("long EMA flag", func(t *testing.T) {
		enriched, err := Enrich(syntheticCandles(300), params)
		require.NoError(t, err)
		assert.True(t, enriched[len(enriched)-1].HasLongEMA)
	})

	t.Run("insufficient history", func(t *testing.T) {
		_, err := Enrich(syntheticCandles(params.MinRows()-1), params)
		require.Error(t, err)
		assert.True(t, scanerrors.IsInsufficientHistory(err))
	})

	t.Run("empty buffer", func(t *testing.T) {
		_, err := Enrich(nil, params)
		assert.Error(t, err)
	})

	t.Run("negative volume", func(t *testing.T) {
		buffer := syntheticCandles(300)
		buffer[120].Volume = -5
		_, err := Enrich(buffer, params)
		require.Error(t, err)
		assert.True(t, scanerrors.IsInvalidData(err))
	})

	t.Run("high below low", func(t *testing.T) {
		buffer := syntheticCandles(300)
		buffer[50].High = buffer[50].Low - 1
		_, err := Enrich(buffer, params)
		require.Error(t, err)
		assert.True(t, scanerrors.IsInvalidData(err))
	})

	t.Run("non increasing timestamps", func(t *testing.T) {
		buffer := syntheticCandles(300)
		buffer[10].Timestamp = buffer[9].Timestamp
		_, err := Enrich(buffer, params)
		require.Error(t, err)
		assert.True(t, scanerrors.IsInvalidData(err))
	})

	t.Run("zero volume tail", func(t *testing.T) {
		buffer := syntheticCandles(300)
		for i := len(buffer) - zeroVolumeWindow; i < len(buffer); i++ {
			buffer[i].Volume = 0
		}
		_, err := Enrich(buffer, params)
		require.Error(t, err)
		assert.True(t, scanerrors.IsInvalidData(err))
	})

	t.Run("input not mutated", func(t *testing.T) {
		buffer := syntheticCandles(300)
		before := buffer[100]
		_, err := Enrich(buffer, params)
		require.NoError(t, err)
		assert.Equal(t, before, buffer[100])
	})
}

func TestParamsMinRows(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, p.firstValidIndex()+minOutputRows, p.MinRows())
	// The 50-period trend EMA dominates the default warmup.
	assert.Equal(t, 49, p.firstValidIndex())
}

func TestScalpParams(t *testing.T) {
	p := ScalpParams()
	assert.Equal(t, 6, p.RSIPeriod)
	assert.Equal(t, DefaultParams().EMAFastPeriod, p.EMAFastPeriod)
}
