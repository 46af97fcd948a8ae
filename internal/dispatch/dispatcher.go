package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Sink consumes structured events. Implementations format and deliver;
// the dispatcher never formats.
type Sink interface {
	Name() string
	Accept(ctx context.Context, ev types.Event) error
}

// Delivery tuning.
const (
	defaultQueueSize = 256
	deliveryRetries  = 3
	deliveryBackoff  = 2 * time.Second
	deliveryTimeout  = 10 * time.Second
)

// Dispatcher fans events out to sinks from a bounded queue. Multiple
// scanners produce; one consumer goroutine delivers. When the queue is
// full, the oldest droppable event is shed to make room; events that must
// not be lost block the producer instead.
type Dispatcher struct {
	sinks  []Sink
	logger zerolog.Logger

	mu    sync.Mutex
	queue []types.Event
	avail chan struct{}

	done chan struct{}
	wg   sync.WaitGroup

	dropped int
}

// NewDispatcher creates a dispatcher over the given sinks.
func NewDispatcher(sinks []Sink, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sinks:  sinks,
		logger: logger,
		avail:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start launches the delivery loop. The loop's lifetime is owned by Stop,
// not by a scan context: shutdown flushes (final diagnostics, unclosed
// trades) are published after the scanners' context is already cancelled
// and must still be delivered.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.deliverLoop()
}

// Stop drains the queue and waits for the delivery loop to exit.
func (d *Dispatcher) Stop() {
	close(d.done)
	d.wg.Wait()
}

// Publish enqueues an event. Non-droppable events always land, shedding
// the oldest droppable event when the queue is full; droppable events are
// discarded when no room can be made.
func (d *Dispatcher) Publish(ev types.Event) {
	d.mu.Lock()
	if len(d.queue) >= defaultQueueSize {
		if !d.shedLocked() {
			if ev.Droppable() {
				d.dropped++
				d.mu.Unlock()
				return
			}
			// Queue full of must-deliver events; grow past the bound
			// rather than lose a signal or trade event.
		}
	}
	d.queue = append(d.queue, ev)
	d.mu.Unlock()

	select {
	case d.avail <- struct{}{}:
	default:
	}
}

// Dropped returns the count of events shed under backpressure.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// shedLocked removes the oldest droppable event, reporting success.
func (d *Dispatcher) shedLocked() bool {
	for i, ev := range d.queue {
		if ev.Droppable() {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			d.dropped++
			d.logger.Debug().Str("kind", ev.EventKind()).Msg("shed droppable event under backpressure")
			return true
		}
	}
	return false
}

func (d *Dispatcher) deliverLoop() {
	defer d.wg.Done()
	for {
		ev, ok := d.next()
		if ok {
			d.deliver(ev)
			continue
		}
		select {
		case <-d.avail:
		case <-d.done:
			// Final drain.
			for {
				ev, ok := d.next()
				if !ok {
					return
				}
				d.deliver(ev)
			}
		}
	}
}

func (d *Dispatcher) next() (types.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil, false
	}
	ev := d.queue[0]
	d.queue = d.queue[1:]
	return ev, true
}

// deliver pushes one event to every sink, retrying transient failures
// with a flat backoff before giving up. Each attempt gets a fresh bounded
// context so drain deliveries still work during shutdown.
func (d *Dispatcher) deliver(ev types.Event) {
	for _, sink := range d.sinks {
		var err error
		for attempt := 1; attempt <= deliveryRetries; attempt++ {
			callCtx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
			err = sink.Accept(callCtx, ev)
			cancel()
			if err == nil {
				break
			}
			if attempt < deliveryRetries {
				time.Sleep(deliveryBackoff)
			}
		}
		if err != nil {
			d.logger.Error().
				Err(err).
				Str("sink", sink.Name()).
				Str("kind", ev.EventKind()).
				Int("attempts", deliveryRetries).
				Msg("event delivery failed")
		}
	}
}
