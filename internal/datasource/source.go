package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	scanerrors "github.com/quantsignal/signal-scanner/internal/errors"
	"github.com/quantsignal/signal-scanner/internal/monitoring"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// defaultCallTimeout bounds a single provider call.
const defaultCallTimeout = 10 * time.Second

// freshnessFactor: a buffer is fresh while the last candle's age is at most
// this many intervals.
const freshnessFactor = 2

// FallbackFunc observes a fallback past one provider for one instrument.
type FallbackFunc func(provider string, category scanerrors.ErrorCategory)

// Source yields candle buffers with automatic provider fallback. Providers
// are tried in priority order; rate limits, timeouts, upstream outages,
// and empty responses all advance to the next provider.
type Source struct {
	providers   []Provider
	callTimeout time.Duration
	now         func() time.Time
	log         zerolog.Logger

	mu        sync.RWMutex
	observers map[string][]FallbackFunc // keyed by instrument symbol
}

// Option configures a Source.
type Option func(*Source)

// WithCallTimeout overrides the per-provider call deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Source) { s.callTimeout = d }
}

// WithClock overrides the freshness clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// NewSource creates a data source over the priority-ordered provider list.
func NewSource(log zerolog.Logger, providers []Provider, opts ...Option) *Source {
	s := &Source{
		providers:   providers,
		callTimeout: defaultCallTimeout,
		now:         time.Now,
		log:         log,
		observers:   make(map[string][]FallbackFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnFallback registers an observer for fallbacks while fetching the
// symbol. Scanners use it to surface rate-limited providers in their
// diagnostics even when a later provider serves the request.
func (s *Source) OnFallback(symbol string, fn FallbackFunc) {
	s.mu.Lock()
	s.observers[symbol] = append(s.observers[symbol], fn)
	s.mu.Unlock()
}

func (s *Source) notifyFallback(symbol, provider string, category scanerrors.ErrorCategory) {
	s.mu.RLock()
	observers := s.observers[symbol]
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(provider, category)
	}
}

// Connect establishes sessions with every session-holding provider. A
// terminal failure on all providers for an asset class is a CONNECT error.
func (s *Source) Connect(ctx context.Context) error {
	var failed []string
	for _, p := range s.providers {
		c, ok := p.(Connecter)
		if !ok {
			continue
		}
		if err := c.Connect(ctx); err != nil {
			s.log.Warn().Str("provider", p.Name()).Err(err).Msg("provider connect failed")
			failed = append(failed, p.Name())
		}
	}
	if len(failed) == len(s.providers) && len(s.providers) > 0 {
		return scanerrors.NewConnectError("datasource", "connect",
			fmt.Errorf("all %d providers failed to connect", len(s.providers)))
	}
	return nil
}

// Fetch returns the last count candles for the instrument and timeframe
// plus a freshness flag. A stale buffer is still returned so diagnostics
// can inspect it; callers must skip strategy execution when fresh is false.
func (s *Source) Fetch(ctx context.Context, inst Instrument, tf types.Timeframe, count int) ([]types.Candle, bool, error) {
	var lastErr error
	attempted := 0

	for _, p := range s.providers {
		if !p.Supports(inst.Class) {
			continue
		}
		attempted++

		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		buffer, err := p.Fetch(callCtx, inst, tf, count)
		cancel()

		switch {
		case err == nil && len(buffer) == 0:
			s.log.Warn().Str("provider", p.Name()).Str("symbol", inst.Symbol).
				Msg("provider returned empty buffer, falling back")
			monitoring.RecordProviderFallback(p.Name())
			lastErr = scanerrors.New(scanerrors.ErrorCategoryUnavailable, p.Name(), "fetch", "empty response")
			s.notifyFallback(inst.Symbol, p.Name(), scanerrors.ErrorCategoryUnavailable)
			continue
		case err != nil:
			if errors.Is(err, context.DeadlineExceeded) {
				err = scanerrors.NewTimeoutError(p.Name(), "fetch", err)
			}
			s.log.Warn().Str("provider", p.Name()).Str("symbol", inst.Symbol).
				Str("category", string(scanerrors.CategoryOf(err))).Err(err).
				Msg("provider fetch failed, falling back")
			monitoring.RecordProviderFallback(p.Name())
			lastErr = err
			s.notifyFallback(inst.Symbol, p.Name(), scanerrors.CategoryOf(err))
			continue
		}

		fresh := s.isFresh(buffer, tf)
		s.log.Debug().Str("provider", p.Name()).Str("symbol", inst.Symbol).
			Str("timeframe", string(tf)).Int("rows", len(buffer)).Bool("fresh", fresh).
			Msg("buffer fetched")
		return buffer, fresh, nil
	}

	if attempted == 0 {
		return nil, false, scanerrors.New(scanerrors.ErrorCategoryUnavailable, "datasource", "fetch",
			fmt.Sprintf("no provider supports asset class %q", inst.Class))
	}
	return nil, false, lastErr
}

// Close releases provider sessions.
func (s *Source) Close() error {
	var firstErr error
	for _, p := range s.providers {
		if c, ok := p.(Connecter); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// isFresh checks that the final candle's open time is at most
// freshnessFactor intervals old.
func (s *Source) isFresh(buffer []types.Candle, tf types.Timeframe) bool {
	last := buffer[len(buffer)-1]
	age := s.now().UTC().Sub(last.Timestamp.UTC())
	return age <= time.Duration(freshnessFactor)*tf.Duration()
}
