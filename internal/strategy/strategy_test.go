package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// flatBuffer builds n identical enriched candles around price 100 with
// neutral indicators; tests mutate the tail to shape setups.
func flatBuffer(n int) []types.EnrichedCandle {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	out := make([]types.EnrichedCandle, n)
	for i := range out {
		out[i] = types.EnrichedCandle{
			Candle: types.Candle{
				Timestamp: base.Add(time.Duration(i) * time.Hour),
				Open:      100,
				High:      101,
				Low:       99,
				Close:     100,
				Volume:    1000,
			},
			EMAFast:  100,
			EMASlow:  100,
			EMATrend: 100,
			ATR:      2,
			ATRMA:    2,
			RSI:      50,
			ADX:      22,
			VWAP:     100,
			VolumeMA: 1000,
		}
	}
	return out
}

func testContext() Context {
	return Context{
		Symbol:    "BTC",
		Timeframe: types.Timeframe1h,
		Asset:     types.AssetCrypto,
		Params:    ParamsFor(types.AssetCrypto),
		Fresh:     true,
		Now:       time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
	}
}

func TestDetectorPrologue(t *testing.T) {
	d := NewEMACrossover()

	t.Run("stale buffer", func(t *testing.T) {
		ctx := testContext()
		ctx.Fresh = false
		sig, err := d.Detect(flatBuffer(MinHistory), ctx)
		require.NoError(t, err)
		assert.Nil(t, sig)
	})

	t.Run("short history", func(t *testing.T) {
		sig, err := d.Detect(flatBuffer(MinHistory-1), testContext())
		require.NoError(t, err)
		assert.Nil(t, sig)
	})

	t.Run("no volume on last bar", func(t *testing.T) {
		buffer := flatBuffer(MinHistory)
		buffer[len(buffer)-1].Volume = 0
		sig, err := d.Detect(buffer, testContext())
		require.NoError(t, err)
		assert.Nil(t, sig)
	})
}

func TestEMACrossoverLong(t *testing.T) {
	buffer := flatBuffer(MinHistory)
	n := len(buffer)

	// Fast crosses above slow on the last bar, above VWAP, on a spike.
	buffer[n-2].EMAFast = 99.8
	buffer[n-2].EMASlow = 100
	buffer[n-1].EMAFast = 100.4
	buffer[n-1].EMASlow = 100
	buffer[n-1].Close = 101
	buffer[n-1].VWAP = 100.2
	buffer[n-1].Volume = 1500

	sig, err := NewEMACrossover().Detect(buffer, testContext())
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, types.DirectionLong, sig.Direction)
	assert.Equal(t, NameEMACrossover, sig.Strategy)
	assert.Equal(t, 101.0, sig.Entry)
	assert.Less(t, sig.StopLoss, sig.Entry)
	assert.Greater(t, sig.TakeProfit, sig.Entry)
	assert.NoError(t, sig.Validate())
	assert.Equal(t, HoldIntraday, sig.Metadata[MetadataHoldPeriod])
	assert.Equal(t, testContext().Now, sig.CreatedAt)
	assert.NotEmpty(t, sig.ID)
}

func TestEMACrossoverNoSetup(t *testing.T) {
	t.Run("no cross", func(t *testing.T) {
		sig, err := NewEMACrossover().Detect(flatBuffer(MinHistory), testContext())
		require.NoError(t, err)
		assert.Nil(t, sig)
	})

	t.Run("rsi out of band", func(t *testing.T) {
		buffer := flatBuffer(MinHistory)
		n := len(buffer)
		buffer[n-2].EMAFast = 99.8
		buffer[n-1].EMAFast = 100.4
		buffer[n-1].Close = 101
		buffer[n-1].Volume = 1500
		buffer[n-1].RSI = 80

		sig, err := NewEMACrossover().Detect(buffer, testContext())
		require.NoError(t, err)
		assert.Nil(t, sig)
	})

	t.Run("no volume spike", func(t *testing.T) {
		buffer := flatBuffer(MinHistory)
		n := len(buffer)
		buffer[n-2].EMAFast = 99.8
		buffer[n-1].EMAFast = 100.4
		buffer[n-1].Close = 101

		sig, err := NewEMACrossover().Detect(buffer, testContext())
		require.NoError(t, err)
		assert.Nil(t, sig)
	})
}

func TestTrendAlignmentLong(t *testing.T) {
	buffer := flatBuffer(MinHistory)
	n := len(buffer)
	for i := range buffer {
		buffer[i].EMAFast = 102
		buffer[i].EMASlow = 101
		buffer[i].EMATrend = 100
		buffer[i].Close = 103
	}
	buffer[n-2].RSI = 55
	buffer[n-1].RSI = 58
	buffer[n-1].ADX = 28

	sig, err := NewTrendAlignment().Detect(buffer, testContext())
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, types.DirectionLong, sig.Direction)
	assert.Equal(t, HoldMultiDay, sig.Metadata[MetadataHoldPeriod])
	assert.InDelta(t, 101-0.5*2, sig.StopLoss, 1e-9) // slow EMA minus half ATR
	assert.NoError(t, sig.Validate())
}

func TestTrendAlignmentShortNeedsFallingRSI(t *testing.T) {
	bearish := func() []types.EnrichedCandle {
		buffer := flatBuffer(MinHistory)
		for i := range buffer {
			buffer[i].EMAFast = 98
			buffer[i].EMASlow = 99
			buffer[i].EMATrend = 100
			buffer[i].Close = 97
		}
		buffer[len(buffer)-1].ADX = 28
		return buffer
	}

	t.Run("flat rsi is not momentum", func(t *testing.T) {
		buffer := bearish()
		n := len(buffer)
		buffer[n-2].RSI = 45
		buffer[n-1].RSI = 45

		sig, err := NewTrendAlignment().Detect(buffer, testContext())
		require.NoError(t, err)
		assert.Nil(t, sig)
	})

	t.Run("falling rsi confirms", func(t *testing.T) {
		buffer := bearish()
		n := len(buffer)
		buffer[n-2].RSI = 45
		buffer[n-1].RSI = 42

		sig, err := NewTrendAlignment().Detect(buffer, testContext())
		require.NoError(t, err)
		require.NotNil(t, sig)

		assert.Equal(t, types.DirectionShort, sig.Direction)
		assert.InDelta(t, 99+0.5*2, sig.StopLoss, 1e-9) // slow EMA plus half ATR
		assert.NoError(t, sig.Validate())
	})
}

func TestMeanReversionShort(t *testing.T) {
	buffer := flatBuffer(MinHistory)
	n := len(buffer)

	// Stretched far above VWAP, exhausted RSI, reversal bar closing down.
	buffer[n-1].Open = 106
	buffer[n-1].High = 107
	buffer[n-1].Low = 104.5
	buffer[n-1].Close = 105
	buffer[n-1].VWAP = 100
	buffer[n-1].RSI = 85

	sig, err := NewMeanReversion().Detect(buffer, testContext())
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, types.DirectionShort, sig.Direction)
	assert.InDelta(t, 100.0, sig.TakeProfit, 1e-9) // VWAP target
	assert.NoError(t, sig.Validate())
}

func TestMomentumShiftLong(t *testing.T) {
	buffer := flatBuffer(MinHistory)
	n := len(buffer)

	// Descending RSI run broken upward with a bullish candle.
	buffer[n-4].RSI = 48
	buffer[n-3].RSI = 44
	buffer[n-2].RSI = 40
	buffer[n-1].RSI = 45
	buffer[n-1].Open = 99.5
	buffer[n-1].Close = 100.5
	buffer[n-1].Volume = 1300

	sig, err := NewMomentumShift().Detect(buffer, testContext())
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, types.DirectionLong, sig.Direction)
}

func TestFairValueGapLong(t *testing.T) {
	buffer := flatBuffer(MinHistory)
	n := len(buffer)

	// Prior swing high the breakout must clear (needs wing bars each side).
	swingIdx := n - 20
	buffer[swingIdx].High = 103

	// Three-bar bullish imbalance: last low clears first high.
	buffer[n-3].High = 102
	buffer[n-2].Open = 102
	buffer[n-2].Low = 101.5
	buffer[n-2].High = 104
	buffer[n-2].Close = 103.8
	buffer[n-1].Low = 103.5
	buffer[n-1].High = 105
	buffer[n-1].Close = 104.5
	buffer[n-1].Volume = 1600

	sig, err := NewFairValueGap().Detect(buffer, testContext())
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, types.DirectionLong, sig.Direction)
	assert.Equal(t, NameFairValueGap, sig.Strategy)
	assert.NotEmpty(t, sig.Metadata[MetadataHoldPeriod])
}

func TestAsianRangeSkipsCrypto(t *testing.T) {
	ctx := testContext() // crypto asset
	sig, err := NewAsianRange().Detect(flatBuffer(MinHistory), ctx)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestValidatedDropsBrokenLevels(t *testing.T) {
	sig := &types.Signal{
		Direction:  types.DirectionLong,
		Entry:      100,
		StopLoss:   105, // inverted
		TakeProfit: 110,
		RiskReward: types.ComputeRiskReward(100, 105, 110),
		Confidence: 3,
	}
	assert.Nil(t, validated(sig))
	assert.Nil(t, validated(nil))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Len(t, r.Names(), 12)

	d, ok := r.Get(NameEMACrossover)
	require.True(t, ok)
	assert.Equal(t, NameEMACrossover, d.Name())

	err := r.Register(NewEMACrossover())
	assert.Error(t, err)
}

func TestParamsFor(t *testing.T) {
	crypto := ParamsFor(types.AssetCrypto)
	assert.InDelta(t, 1.3, crypto.VolumeSpikeRatio, 1e-9)

	index := ParamsFor(types.AssetIndex)
	assert.InDelta(t, 1.5, index.VolumeSpikeRatio, 1e-9)

	gold := ParamsFor(types.AssetGold)
	assert.InDelta(t, 1.2, gold.VolumeSpikeRatio, 1e-9)
	assert.InDelta(t, 100, gold.RoundUnit, 1e-9)

	other := ParamsFor(types.AssetOther)
	assert.InDelta(t, 30, other.RSIMin, 1e-9)
	assert.InDelta(t, 70, other.RSIMax, 1e-9)
}

func TestModeForTimeframe(t *testing.T) {
	assert.Equal(t, ModeScalp, ModeForTimeframe(types.Timeframe1m))
	assert.Equal(t, ModeScalp, ModeForTimeframe(types.Timeframe5m))
	assert.Equal(t, ModeDay, ModeForTimeframe(types.Timeframe15m))
	assert.Equal(t, ModeDay, ModeForTimeframe(types.Timeframe1h))
	assert.Equal(t, ModeSwing, ModeForTimeframe(types.Timeframe4h))
	assert.Equal(t, ModeSwing, ModeForTimeframe(types.Timeframe1d))
}
