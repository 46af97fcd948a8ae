package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsignal/signal-scanner/internal/datasource"
	"github.com/quantsignal/signal-scanner/internal/dispatch"
	scanerrors "github.com/quantsignal/signal-scanner/internal/errors"
	"github.com/quantsignal/signal-scanner/internal/indicators"
	"github.com/quantsignal/signal-scanner/internal/strategy"
	"github.com/quantsignal/signal-scanner/pkg/config"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

type stubProvider struct {
	candles []types.Candle
	err     error
}

func (s *stubProvider) Name() string                   { return "stub" }
func (s *stubProvider) Supports(types.AssetClass) bool { return true }

func (s *stubProvider) Fetch(context.Context, datasource.Instrument, types.Timeframe, int) ([]types.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.candles, nil
}

func flatCandles(endingAt time.Time, n int) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		out[i] = types.Candle{
			Timestamp: endingAt.Add(-time.Duration(n-1-i) * time.Minute),
			Open:      100, High: 101, Low: 99, Close: 100, Volume: 1000,
		}
	}
	return out
}

func testScanner(t *testing.T, provider datasource.Provider, now time.Time) *Scanner {
	t.Helper()
	clock := func() time.Time { return now }

	source := datasource.NewSource(zerolog.Nop(), []datasource.Provider{provider},
		datasource.WithClock(clock))
	disp := dispatch.NewDispatcher(nil, zerolog.Nop())

	cfg := config.DefaultConfig()
	cfg.Name = "test"
	cfg.Timeframes = []string{"1m"}

	s, err := New(cfg, source, disp, zerolog.Nop(), WithClock(clock))
	require.NoError(t, err)
	return s
}

func TestTickRunsStrategyChain(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	provider := &stubProvider{candles: flatCandles(now, 400)}
	s := testScanner(t, provider, now)

	s.tick(context.Background())

	assert.Zero(t, s.consecutiveFailures)

	// Flat data produces no setups, but the detectors must have run.
	rep := s.recorder.Snapshot()
	assert.NotEmpty(t, rep.AttemptsByStrategy)
	assert.Empty(t, rep.SuccessesByStrategy)
}

func TestTickCountsDataFailures(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	provider := &stubProvider{
		err: scanerrors.New(scanerrors.ErrorCategoryUnavailable, "stub", "fetch", "down"),
	}
	s := testScanner(t, provider, now)

	for i := 0; i < 3; i++ {
		s.tick(context.Background())
	}
	assert.Equal(t, 3, s.consecutiveFailures)

	rep := s.recorder.Snapshot()
	assert.Equal(t, 3, rep.DataQualityByIssue["unavailable"])

	// A healthy tick resets the streak.
	provider.err = nil
	provider.candles = flatCandles(now, 400)
	s.tick(context.Background())
	assert.Zero(t, s.consecutiveFailures)
}

func TestScannerSkipsStaleBuffer(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	// Buffer ends an hour ago; on a 1m timeframe that is far past fresh.
	provider := &stubProvider{candles: flatCandles(now.Add(-time.Hour), 400)}
	s := testScanner(t, provider, now)

	s.tick(context.Background())

	// No strategy may see a stale buffer; the tick only records the issue
	// and marks open trades.
	rep := s.recorder.Snapshot()
	assert.Empty(t, rep.AttemptsByStrategy)
	assert.Equal(t, 1, rep.DataQualityByIssue["data_stale"])
	assert.Zero(t, s.tracker.OpenCount())

	// Staleness is a data-quality issue, not an outage.
	assert.Zero(t, s.consecutiveFailures)
}

// rateLimitedProvider rejects every fetch the way a throttling upstream
// would, forcing the source onto the next provider.
type rateLimitedProvider struct{}

func (rateLimitedProvider) Name() string                   { return "limited" }
func (rateLimitedProvider) Supports(types.AssetClass) bool { return true }

func (rateLimitedProvider) Fetch(context.Context, datasource.Instrument, types.Timeframe, int) ([]types.Candle, error) {
	return nil, scanerrors.New(scanerrors.ErrorCategoryRateLimit, "limited", "fetch", "429")
}

func TestRateLimitedFallbackRecordedInDiagnostics(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	source := datasource.NewSource(zerolog.Nop(), []datasource.Provider{
		rateLimitedProvider{},
		&stubProvider{candles: flatCandles(now, 400)},
	}, datasource.WithClock(clock))

	cfg := config.DefaultConfig()
	cfg.Name = "test"
	cfg.Timeframes = []string{"1m"}

	s, err := New(cfg, source, dispatch.NewDispatcher(nil, zerolog.Nop()), zerolog.Nop(), WithClock(clock))
	require.NoError(t, err)

	s.tick(context.Background())

	// The backup provider served the tick, but the throttled primary must
	// still show up in the diagnostic report.
	rep := s.recorder.Snapshot()
	assert.Equal(t, 1, rep.DataQualityByIssue["provider_ratelimited"])
	assert.NotEmpty(t, rep.AttemptsByStrategy)
	assert.Zero(t, s.consecutiveFailures)
}

func TestTradingModeFollowsTimeframe(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	s := testScanner(t, &stubProvider{candles: flatCandles(now, 400)}, now)

	ip, sp := s.paramsFor(types.Timeframe5m)
	assert.Equal(t, strategy.ModeScalp, sp.Mode)
	assert.Equal(t, indicators.ScalpParams().RSIPeriod, ip.RSIPeriod)

	ip, sp = s.paramsFor(types.Timeframe1h)
	assert.Equal(t, strategy.ModeDay, sp.Mode)
	assert.Equal(t, s.indicatorParams.RSIPeriod, ip.RSIPeriod)

	_, sp = s.paramsFor(types.Timeframe4h)
	assert.Equal(t, strategy.ModeSwing, sp.Mode)
}

func TestTradingModeOverrideWins(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	s := testScanner(t, &stubProvider{candles: flatCandles(now, 400)}, now)
	s.cfg.TradingMode = "swing"

	ip, sp := s.paramsFor(types.Timeframe1m)
	assert.Equal(t, strategy.ModeSwing, sp.Mode)
	assert.Equal(t, s.indicatorParams.RSIPeriod, ip.RSIPeriod)
}
