package types

import (
	"fmt"
	"math"
	"time"
)

// Direction is the trade direction of a signal.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// IndicatorSnapshot captures the indicator values a signal was based on.
type IndicatorSnapshot struct {
	EMAFast     float64 `json:"ema_fast"`
	EMASlow     float64 `json:"ema_slow"`
	EMATrend    float64 `json:"ema_trend"`
	ATR         float64 `json:"atr"`
	RSI         float64 `json:"rsi"`
	ADX         float64 `json:"adx"`
	VWAP        float64 `json:"vwap"`
	VolumeRatio float64 `json:"volume_ratio"`
}

// SnapshotFrom builds an IndicatorSnapshot from the last enriched candle.
func SnapshotFrom(e EnrichedCandle) IndicatorSnapshot {
	return IndicatorSnapshot{
		EMAFast:     e.EMAFast,
		EMASlow:     e.EMASlow,
		EMATrend:    e.EMATrend,
		ATR:         e.ATR,
		RSI:         e.RSI,
		ADX:         e.ADX,
		VWAP:        e.VWAP,
		VolumeRatio: e.VolumeRatio(),
	}
}

// Signal is a candidate or emitted trading signal.
type Signal struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Timeframe  Timeframe `json:"timeframe"`
	Direction  Direction `json:"direction"`
	Strategy   string    `json:"strategy"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	RiskReward float64   `json:"risk_reward"`
	Confidence int       `json:"confidence"` // 1..5

	ConfluenceFactors []string          `json:"confluence_factors"`
	Reasoning         string            `json:"reasoning"`
	Indicators        IndicatorSnapshot `json:"indicators"`
	Metadata          map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// riskRewardTolerance is the floating tolerance for declared R/R consistency.
const riskRewardTolerance = 1e-6

// ComputeRiskReward returns |tp-entry| / |entry-sl| for the given levels.
func ComputeRiskReward(entry, stopLoss, takeProfit float64) float64 {
	risk := math.Abs(entry - stopLoss)
	if risk == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / risk
}

// Validate checks the price-level ordering and R/R consistency invariants.
func (s *Signal) Validate() error {
	switch s.Direction {
	case DirectionLong:
		if !(s.StopLoss < s.Entry && s.Entry < s.TakeProfit) {
			return fmt.Errorf("long signal levels out of order: sl=%.8f entry=%.8f tp=%.8f",
				s.StopLoss, s.Entry, s.TakeProfit)
		}
	case DirectionShort:
		if !(s.StopLoss > s.Entry && s.Entry > s.TakeProfit) {
			return fmt.Errorf("short signal levels out of order: sl=%.8f entry=%.8f tp=%.8f",
				s.StopLoss, s.Entry, s.TakeProfit)
		}
	default:
		return fmt.Errorf("unknown direction %q", s.Direction)
	}

	if s.Confidence < 1 || s.Confidence > 5 {
		return fmt.Errorf("confidence %d outside 1..5", s.Confidence)
	}

	want := ComputeRiskReward(s.Entry, s.StopLoss, s.TakeProfit)
	if math.Abs(want-s.RiskReward) > riskRewardTolerance {
		return fmt.Errorf("declared risk/reward %.8f does not match computed %.8f", s.RiskReward, want)
	}
	return nil
}

// TradeStatus is the lifecycle state of a tracked trade.
type TradeStatus string

const (
	TradeOpen           TradeStatus = "open"
	TradeBreakevenArmed TradeStatus = "breakeven_armed"
	TradeStopped        TradeStatus = "stopped"
	TradeTPHit          TradeStatus = "tp_hit"
	TradeReversalExited TradeStatus = "reversal_exited"
	TradeExpired        TradeStatus = "expired"
)

// Terminal reports whether the status ends the trade lifecycle.
func (ts TradeStatus) Terminal() bool {
	switch ts {
	case TradeStopped, TradeTPHit, TradeReversalExited, TradeExpired:
		return true
	}
	return false
}

// TrackedTrade augments a Signal with mutable lifecycle state. It is
// serialization-friendly so a future persistence layer can store open
// trades without changes to the tracker.
type TrackedTrade struct {
	Signal Signal `json:"signal"`

	Status             TradeStatus `json:"status"`
	PeakPrice          float64     `json:"peak_price"` // max favorable excursion
	StopPrice          float64     `json:"stop_price"` // moves to entry at breakeven
	BreakevenAnnounced bool        `json:"breakeven_announced"`
	OpenedAt           time.Time   `json:"opened_at"`
	LastCheckedAt      time.Time   `json:"last_checked_at"`
	ClosedAt           time.Time   `json:"closed_at,omitempty"`
}

// PnLPct returns the unrealized move from entry to price, signed in the
// trade's favor (positive means profit).
func (t *TrackedTrade) PnLPct(price float64) float64 {
	if t.Signal.Entry == 0 {
		return 0
	}
	move := (price - t.Signal.Entry) / t.Signal.Entry * 100
	if t.Signal.Direction == DirectionShort {
		move = -move
	}
	return move
}
