package types

import "time"

// Event is a structured record pushed to the outbound dispatch sink.
// Formatting into chat messages or report rows happens in sinks, never here.
type Event interface {
	EventKind() string
	// Droppable reports whether the dispatcher may shed this event under
	// backpressure. Signals and trade events are never droppable.
	Droppable() bool
}

// SignalEmitted wraps a signal that passed the quality filter.
type SignalEmitted struct {
	Signal Signal `json:"signal"`
}

func (SignalEmitted) EventKind() string { return "signal_emitted" }
func (SignalEmitted) Droppable() bool   { return false }

// TradeEventKind names a trade lifecycle transition.
type TradeEventKind string

const (
	TradeEventBreakeven TradeEventKind = "breakeven"
	TradeEventStop      TradeEventKind = "stop"
	TradeEventTP        TradeEventKind = "tp"
	TradeEventReversal  TradeEventKind = "reversal"
	TradeEventExpired   TradeEventKind = "expired"
)

// TradeEvent reports a tracked-trade lifecycle transition.
type TradeEvent struct {
	TradeID   string         `json:"trade_id"`
	Symbol    string         `json:"symbol"`
	Kind      TradeEventKind `json:"kind"`
	Price     float64        `json:"price"`
	PnLPct    float64        `json:"pnl_pct"`
	Note      string         `json:"note,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (TradeEvent) EventKind() string { return "trade_event" }
func (TradeEvent) Droppable() bool   { return false }

// AlertLevel is the severity of an operational alert.
type AlertLevel string

const (
	AlertInfo  AlertLevel = "info"
	AlertWarn  AlertLevel = "warn"
	AlertError AlertLevel = "error"
)

// OperationalAlert reports a non-signal operational condition.
type OperationalAlert struct {
	Level     AlertLevel `json:"level"`
	Text      string     `json:"text"`
	Timestamp time.Time  `json:"timestamp"`
}

func (OperationalAlert) EventKind() string { return "operational_alert" }
func (OperationalAlert) Droppable() bool   { return true }
