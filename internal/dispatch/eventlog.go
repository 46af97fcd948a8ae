package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// EventLogSink appends every event to the structured log as a JSON line,
// giving an append-only audit trail of everything dispatched.
type EventLogSink struct {
	logger zerolog.Logger
}

// NewEventLogSink creates a sink writing to the given logger.
func NewEventLogSink(logger zerolog.Logger) *EventLogSink {
	return &EventLogSink{logger: logger}
}

// Name implements Sink.
func (s *EventLogSink) Name() string { return "event_log" }

// Accept implements Sink.
func (s *EventLogSink) Accept(_ context.Context, ev types.Event) error {
	s.logger.Info().
		Str("event", ev.EventKind()).
		Interface("payload", ev).
		Msg("event dispatched")
	return nil
}
