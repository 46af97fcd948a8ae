package tracker

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantsignal/signal-scanner/internal/strategy"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Lifecycle thresholds. Progress is measured along the entry→TP distance.
const (
	breakevenProgress = 0.5
	reversalProgress  = 0.7
	reversalRetrace   = 0.5
)

// Hold horizons by metadata classification. Trades without a hold-period
// tag fall back to the multi-day horizon.
const (
	holdIntradayMax  = 24 * time.Hour
	holdMultiDayMax  = 7 * 24 * time.Hour
	holdMultiWeekMax = 28 * 24 * time.Hour
)

// EventFunc receives lifecycle events as they happen.
type EventFunc func(types.TradeEvent)

// Tracker owns the open tracked trades for one scanner. Single-tick
// cooperative use; no internal locking.
type Tracker struct {
	trades map[string]*types.TrackedTrade
	emit   EventFunc
	logger zerolog.Logger
	now    func() time.Time
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock injects the time source, used by replay tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a tracker that forwards lifecycle events to emit.
func New(emit EventFunc, logger zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		trades: make(map[string]*types.TrackedTrade),
		emit:   emit,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open starts tracking an emitted signal.
func (t *Tracker) Open(sig *types.Signal) {
	now := t.now()
	t.trades[sig.ID] = &types.TrackedTrade{
		Signal:        *sig,
		Status:        types.TradeOpen,
		PeakPrice:     sig.Entry,
		StopPrice:     sig.StopLoss,
		OpenedAt:      now,
		LastCheckedAt: now,
	}
	t.logger.Info().
		Str("trade_id", sig.ID).
		Str("symbol", sig.Symbol).
		Str("strategy", sig.Strategy).
		Msg("tracking opened trade")
}

// OpenCount returns the number of non-terminal trades.
func (t *Tracker) OpenCount() int {
	return len(t.trades)
}

// OpenTrades returns a snapshot of the open trades, for the unclosed-trades
// report written at shutdown.
func (t *Tracker) OpenTrades() []types.TrackedTrade {
	out := make([]types.TrackedTrade, 0, len(t.trades))
	for _, tr := range t.trades {
		out = append(out, *tr)
	}
	return out
}

// Update evaluates every open trade for the symbol against the current
// price. Terminal trades are removed from tracking.
func (t *Tracker) Update(symbol string, price float64) {
	now := t.now()
	for id, tr := range t.trades {
		if tr.Signal.Symbol != symbol {
			continue
		}
		tr.LastCheckedAt = now
		t.updatePeak(tr, price)

		status := t.evaluate(tr, price, now)
		if status == types.TradeOpen || status == types.TradeBreakevenArmed {
			continue
		}
		tr.Status = status
		tr.ClosedAt = now
		delete(t.trades, id)
	}
}

func (t *Tracker) updatePeak(tr *types.TrackedTrade, price float64) {
	if tr.Signal.Direction == types.DirectionLong {
		if price > tr.PeakPrice {
			tr.PeakPrice = price
		}
		return
	}
	if price < tr.PeakPrice {
		tr.PeakPrice = price
	}
}

// evaluate runs the lifecycle checks in their fixed order: stop, breakeven
// arming, take-profit, reversal protection, hold expiry.
func (t *Tracker) evaluate(tr *types.TrackedTrade, price float64, now time.Time) types.TradeStatus {
	sig := tr.Signal
	long := sig.Direction == types.DirectionLong

	stopHit := (long && price <= tr.StopPrice) || (!long && price >= tr.StopPrice)
	if stopHit {
		t.send(tr, types.TradeEventStop, price, "", now)
		return types.TradeStopped
	}

	if !tr.BreakevenAnnounced && t.progressToTP(tr, price) >= breakevenProgress {
		tr.StopPrice = sig.Entry
		tr.BreakevenAnnounced = true
		tr.Status = types.TradeBreakevenArmed
		t.send(tr, types.TradeEventBreakeven, price, "stop moved to entry", now)
		return types.TradeBreakevenArmed
	}

	tpHit := (long && price >= sig.TakeProfit) || (!long && price <= sig.TakeProfit)
	if tpHit {
		t.send(tr, types.TradeEventTP, price, "", now)
		return types.TradeTPHit
	}

	if t.progressToTP(tr, tr.PeakPrice) >= reversalProgress {
		if retrace := t.retraceFromPeak(tr, price); retrace >= reversalRetrace {
			note := fmt.Sprintf("peak %.4g; retrace %.0f%%", tr.PeakPrice, retrace*100)
			t.send(tr, types.TradeEventReversal, price, note, now)
			return types.TradeReversalExited
		}
	}

	if now.Sub(tr.OpenedAt) > holdHorizon(sig) {
		t.send(tr, types.TradeEventExpired, price, "hold horizon exceeded", now)
		return types.TradeExpired
	}

	return tr.Status
}

// progressToTP returns how far price has traveled along the entry→TP
// distance, in [0, inf).
func (t *Tracker) progressToTP(tr *types.TrackedTrade, price float64) float64 {
	sig := tr.Signal
	distance := sig.TakeProfit - sig.Entry
	if distance == 0 {
		return 0
	}
	return (price - sig.Entry) / distance
}

// retraceFromPeak returns the fraction of the peak's gains given back,
// in [0, inf); 1.0 means all the way back to entry.
func (t *Tracker) retraceFromPeak(tr *types.TrackedTrade, price float64) float64 {
	sig := tr.Signal
	gain := tr.PeakPrice - sig.Entry
	if gain == 0 {
		return 0
	}
	return (tr.PeakPrice - price) / gain
}

func (t *Tracker) send(tr *types.TrackedTrade, kind types.TradeEventKind, price float64, note string, now time.Time) {
	ev := types.TradeEvent{
		TradeID:   tr.Signal.ID,
		Symbol:    tr.Signal.Symbol,
		Kind:      kind,
		Price:     price,
		PnLPct:    tr.PnLPct(price),
		Note:      note,
		Timestamp: now,
	}
	t.logger.Info().
		Str("trade_id", ev.TradeID).
		Str("symbol", ev.Symbol).
		Str("kind", string(kind)).
		Float64("price", price).
		Float64("pnl_pct", ev.PnLPct).
		Msg("trade lifecycle event")
	if t.emit != nil {
		t.emit(ev)
	}
}

// holdHorizon maps the signal's hold-period metadata to a wall-clock
// limit.
func holdHorizon(sig types.Signal) time.Duration {
	switch sig.Metadata[strategy.MetadataHoldPeriod] {
	case strategy.HoldIntraday:
		return holdIntradayMax
	case strategy.HoldMultiWeek:
		return holdMultiWeekMax
	default:
		return holdMultiDayMax
	}
}
