package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLongSignal() *Signal {
	return &Signal{
		ID:         "test-id",
		Symbol:     "BTC",
		Timeframe:  Timeframe1h,
		Direction:  DirectionLong,
		Strategy:   "ema_crossover",
		Entry:      100,
		StopLoss:   95,
		TakeProfit: 110,
		RiskReward: ComputeRiskReward(100, 95, 110),
		Confidence: 3,
	}
}

func TestSignalValidate(t *testing.T) {
	t.Run("valid long", func(t *testing.T) {
		assert.NoError(t, validLongSignal().Validate())
	})

	t.Run("valid short", func(t *testing.T) {
		s := validLongSignal()
		s.Direction = DirectionShort
		s.StopLoss = 105
		s.TakeProfit = 90
		s.RiskReward = ComputeRiskReward(s.Entry, s.StopLoss, s.TakeProfit)
		assert.NoError(t, s.Validate())
	})

	t.Run("long levels out of order", func(t *testing.T) {
		s := validLongSignal()
		s.StopLoss = 105 // above entry
		s.RiskReward = ComputeRiskReward(s.Entry, s.StopLoss, s.TakeProfit)
		assert.Error(t, s.Validate())
	})

	t.Run("short levels out of order", func(t *testing.T) {
		s := validLongSignal()
		s.Direction = DirectionShort
		// long-shaped levels are invalid for a short
		assert.Error(t, s.Validate())
	})

	t.Run("risk reward mismatch", func(t *testing.T) {
		s := validLongSignal()
		s.RiskReward = 99
		assert.Error(t, s.Validate())
	})

	t.Run("confidence out of range", func(t *testing.T) {
		s := validLongSignal()
		s.Confidence = 6
		assert.Error(t, s.Validate())

		s.Confidence = 0
		assert.Error(t, s.Validate())
	})
}

func TestComputeRiskReward(t *testing.T) {
	assert.InDelta(t, 2.0, ComputeRiskReward(100, 95, 110), 1e-9)
	assert.InDelta(t, 2.0, ComputeRiskReward(100, 105, 90), 1e-9)
	assert.Equal(t, 0.0, ComputeRiskReward(100, 100, 110))
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirectionShort, DirectionLong.Opposite())
	assert.Equal(t, DirectionLong, DirectionShort.Opposite())
}

func TestTrackedTradePnLPct(t *testing.T) {
	long := &TrackedTrade{Signal: *validLongSignal()}
	assert.InDelta(t, 5.0, long.PnLPct(105), 1e-9)
	assert.InDelta(t, -5.0, long.PnLPct(95), 1e-9)

	short := &TrackedTrade{Signal: *validLongSignal()}
	short.Signal.Direction = DirectionShort
	assert.InDelta(t, 5.0, short.PnLPct(95), 1e-9)
	assert.InDelta(t, -5.0, short.PnLPct(105), 1e-9)
}

func TestTradeStatusTerminal(t *testing.T) {
	assert.False(t, TradeOpen.Terminal())
	assert.False(t, TradeBreakevenArmed.Terminal())
	for _, st := range []TradeStatus{TradeStopped, TradeTPHit, TradeReversalExited, TradeExpired} {
		assert.True(t, st.Terminal(), string(st))
	}
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("1h")
	require.NoError(t, err)
	assert.Equal(t, Timeframe1h, tf)

	_, err = ParseTimeframe("2h")
	assert.Error(t, err)
}

func TestEventDroppability(t *testing.T) {
	assert.False(t, SignalEmitted{}.Droppable())
	assert.False(t, TradeEvent{}.Droppable())
	assert.True(t, OperationalAlert{}.Droppable())
}
