package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantsignal/signal-scanner/internal/datasource"
	"github.com/quantsignal/signal-scanner/internal/diagnostics"
	"github.com/quantsignal/signal-scanner/internal/dispatch"
	scanerrors "github.com/quantsignal/signal-scanner/internal/errors"
	"github.com/quantsignal/signal-scanner/internal/filter"
	"github.com/quantsignal/signal-scanner/internal/indicators"
	"github.com/quantsignal/signal-scanner/internal/monitoring"
	"github.com/quantsignal/signal-scanner/internal/orchestrator"
	"github.com/quantsignal/signal-scanner/internal/regime"
	"github.com/quantsignal/signal-scanner/internal/strategy"
	"github.com/quantsignal/signal-scanner/internal/tracker"
	"github.com/quantsignal/signal-scanner/pkg/config"
	"github.com/quantsignal/signal-scanner/pkg/reporting"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Failure-handling and reporting cadence.
const (
	maxConsecutiveFailures = 5
	failureBackoffFactor   = 2
	diagnosticsEvery       = time.Hour
	fetchMargin            = 60 // extra candles beyond the indicator minimum
)

// Diagnostic issue keys reported outside the error-category taxonomy.
const (
	dataStaleKey   = "data_stale"
	rateLimitedKey = "provider_ratelimited"
)

// diagnosticKey maps an error category onto the data-quality issue key
// used in diagnostic reports.
func diagnosticKey(cat scanerrors.ErrorCategory) string {
	if cat == scanerrors.ErrorCategoryRateLimit {
		return rateLimitedKey
	}
	return strings.ToLower(string(cat))
}

// Scanner runs the periodic scan loop for one symbol. Internals are
// single-threaded; one tick runs one strategy chain at a time.
type Scanner struct {
	cfg      *config.ScannerConfig
	inst     datasource.Instrument
	source   *datasource.Source
	feed     *datasource.PriceFeed
	registry *strategy.Registry
	orch     *orchestrator.Orchestrator
	qfilter  *filter.QualityFilter
	tracker  *tracker.Tracker
	recorder *diagnostics.Recorder
	disp     *dispatch.Dispatcher
	logger   zerolog.Logger

	indicatorParams indicators.Params
	strategyParams  strategy.Params
	enabled         []string

	consecutiveFailures int
	lastDiagnostics     time.Time
	now                 func() time.Time
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithClock injects the time source, used by replay tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithPriceFeed attaches a live price stream. When the feed has a fresh
// price for the instrument, trade tracking uses it instead of the last
// candle close.
func WithPriceFeed(feed *datasource.PriceFeed) Option {
	return func(s *Scanner) { s.feed = feed }
}

// New assembles a scanner from its configuration and collaborators.
func New(cfg *config.ScannerConfig, source *datasource.Source, disp *dispatch.Dispatcher,
	logger zerolog.Logger, opts ...Option) (*Scanner, error) {

	inst := datasource.Resolve(cfg.Symbol)
	if !inst.Known() {
		logger.Warn().Str("symbol", cfg.Symbol).
			Msg("unrecognized symbol, using conservative parameters")
	}

	registry := strategy.DefaultRegistry()
	s := &Scanner{
		cfg:      cfg,
		inst:     inst,
		source:   source,
		registry: registry,
		orch: orchestrator.New(registry, logger,
			orchestrator.WithPriorityOverrides(cfg.StrategyPriority)),
		qfilter:  filter.New(cfg.QualityFilter, logger),
		recorder: diagnostics.NewRecorder(),
		disp:     disp,
		logger:   logger.With().Str("scanner", cfg.Name).Str("symbol", cfg.Symbol).Logger(),
		enabled:  cfg.EnabledStrategies(registry.Names()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tracker = tracker.New(func(ev types.TradeEvent) {
		monitoring.RecordTradeEvent(ev.Symbol, string(ev.Kind))
		disp.Publish(ev)
	}, s.logger)

	s.indicatorParams = indicatorParamsFrom(cfg.IndicatorParams)
	s.strategyParams = strategyParamsFrom(inst.Class, cfg.AssetOverrides)

	// Rate-limited providers are invisible to the tick when a later
	// provider serves the request; surface them in diagnostics anyway.
	source.OnFallback(inst.Symbol, func(provider string, cat scanerrors.ErrorCategory) {
		if cat == scanerrors.ErrorCategoryRateLimit {
			s.recorder.RecordDataQuality(rateLimitedKey)
			s.logger.Debug().Str("provider", provider).Msg("provider rate limited, fell back")
		}
	})

	if cfg.BypassMode.Enabled {
		s.qfilter.EnableBypass(time.Duration(cfg.BypassMode.AutoDisableAfterH) * time.Hour)
	}
	return s, nil
}

// Run executes the scan loop until the context is cancelled. The in-flight
// tick completes, diagnostics are flushed, and the open trades are written
// to an unclosed-trades report.
func (s *Scanner) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.PollIntervalS) * time.Second
	s.logger.Info().
		Dur("interval", interval).
		Strs("timeframes", s.cfg.Timeframes).
		Strs("strategies", s.enabled).
		Msg("scanner starting")

	s.lastDiagnostics = s.now()
	for {
		s.tick(ctx)

		sleep := interval
		if s.consecutiveFailures >= maxConsecutiveFailures {
			sleep = interval * failureBackoffFactor
		}
		select {
		case <-ctx.Done():
			return s.shutdown()
		case <-time.After(sleep):
		}
	}
}

// tick runs one full scan cycle across the configured timeframes.
func (s *Scanner) tick(ctx context.Context) {
	failed := false
	for _, tfName := range s.cfg.Timeframes {
		tf, err := types.ParseTimeframe(tfName)
		if err != nil {
			continue // validated at startup
		}
		if err := s.scanTimeframe(ctx, tf); err != nil {
			failed = true
		}
	}

	if failed {
		s.consecutiveFailures++
		if s.consecutiveFailures == maxConsecutiveFailures {
			s.disp.Publish(types.OperationalAlert{
				Level: types.AlertWarn,
				Text: fmt.Sprintf("%s: %d consecutive data failures, backing off",
					s.cfg.Symbol, s.consecutiveFailures),
				Timestamp: s.now(),
			})
		}
	} else {
		s.consecutiveFailures = 0
	}

	if s.now().Sub(s.lastDiagnostics) >= diagnosticsEvery {
		s.disp.Publish(s.recorder.Snapshot())
		s.lastDiagnostics = s.now()
	}
}

// scanTimeframe runs fetch, enrich, classify, detect, filter, emit, and
// tracker update for one timeframe. A data-quality failure skips the
// timeframe and counts toward the consecutive-failure backoff.
func (s *Scanner) scanTimeframe(ctx context.Context, tf types.Timeframe) error {
	iparams, sparams := s.paramsFor(tf)

	count := iparams.MinRows() + fetchMargin
	buffer, fresh, err := s.source.Fetch(ctx, s.inst, tf, count)
	if err != nil {
		key := diagnosticKey(scanerrors.CategoryOf(err))
		s.recorder.RecordDataQuality(key)
		monitoring.RecordTickSkip(s.cfg.Symbol, key)
		s.logger.Warn().Err(err).Str("timeframe", string(tf)).Msg("fetch failed, skipping tick")
		return err
	}

	enriched, err := indicators.Enrich(buffer, iparams)
	if err != nil {
		key := diagnosticKey(scanerrors.CategoryOf(err))
		s.recorder.RecordDataQuality(key)
		monitoring.RecordTickSkip(s.cfg.Symbol, key)
		s.logger.Warn().Err(err).Str("timeframe", string(tf)).Msg("enrichment failed, skipping tick")
		return err
	}

	last := enriched[len(enriched)-1]
	monitoring.UpdatePrice(s.cfg.Symbol, last.Close)

	if fresh {
		s.detect(enriched, tf, sparams)
	} else {
		// A stale buffer never feeds the strategies; the open trades are
		// still marked against the newest price we have.
		s.recorder.RecordDataQuality(dataStaleKey)
		monitoring.RecordTickSkip(s.cfg.Symbol, dataStaleKey)
		s.logger.Warn().Str("timeframe", string(tf)).
			Time("last_candle", last.Timestamp).
			Msg("stale buffer, skipping strategy execution")
	}

	s.tracker.Update(s.cfg.Symbol, s.trackingPrice(last.Close))
	monitoring.UpdateOpenTrades(s.cfg.Symbol, s.tracker.OpenCount())
	monitoring.RecordTick(s.cfg.Symbol, string(tf))
	return nil
}

// detect runs the regime-selected strategy chain over a fresh buffer and
// emits the resolved winner.
func (s *Scanner) detect(enriched []types.EnrichedCandle, tf types.Timeframe, sparams strategy.Params) {
	cond := regime.NewAnalyzer().Classify(enriched)
	detectors := s.orch.Select(cond, s.enabled)

	sctx := strategy.Context{
		Symbol:    s.cfg.Symbol,
		Timeframe: tf,
		Asset:     s.inst.Class,
		Params:    sparams,
		Fresh:     true,
		Now:       s.now(),
	}

	var emitted []*types.Signal
	for _, d := range detectors {
		if len(enriched) < d.MinHistory() {
			continue
		}
		s.recorder.RecordAttempt(d.Name())
		sig, err := d.Detect(enriched, sctx)
		if err != nil {
			s.logger.Error().Err(err).Str("strategy", d.Name()).Msg("detector failed")
			monitoring.RecordError(string(scanerrors.CategoryOf(err)))
			continue
		}
		if sig != nil {
			emitted = append(emitted, sig)
		}
	}

	winner, conflict := s.orch.Resolve(emitted)
	if conflict {
		s.recorder.RecordRejection("conflicting_strategies")
		monitoring.RecordRejection("conflicting_strategies")
	}
	if winner != nil {
		s.emit(winner, enriched[len(enriched)-1])
	}
}

// paramsFor applies the trading mode to the per-scan parameter bundles.
// An explicit trading_mode wins; "auto" derives the mode from the
// timeframe, so a 5m scan scalps while a 4h scan holds swings.
func (s *Scanner) paramsFor(tf types.Timeframe) (indicators.Params, strategy.Params) {
	mode := strategy.TradingMode(s.cfg.TradingMode)
	if s.cfg.TradingMode == "" || s.cfg.TradingMode == config.TradingModeAuto {
		mode = strategy.ModeForTimeframe(tf)
	}

	ip := s.indicatorParams
	if mode == strategy.ModeScalp {
		ip.RSIPeriod = indicators.ScalpParams().RSIPeriod
	}
	sp := s.strategyParams
	sp.Mode = mode
	return ip, sp
}

// trackingPrice prefers the live feed price over the candle close.
func (s *Scanner) trackingPrice(candleClose float64) float64 {
	if s.feed != nil {
		if price, ok := s.feed.LastPriceFor(s.inst); ok {
			return price
		}
	}
	return candleClose
}

// emit runs the quality gate and dispatches an accepted signal.
func (s *Scanner) emit(sig *types.Signal, last types.EnrichedCandle) {
	res := s.qfilter.Check(sig, last)
	if !res.Accepted {
		s.recorder.RecordRejection(res.Reason)
		monitoring.RecordRejection(res.Reason)
		s.logger.Debug().
			Str("strategy", sig.Strategy).
			Str("reason", res.Reason).
			Str("detail", res.Detail).
			Msg("signal rejected by quality filter")
		return
	}

	s.recorder.RecordSuccess(sig.Strategy)
	monitoring.RecordSignal(sig.Symbol, sig.Strategy, string(sig.Direction))
	s.logger.Info().
		Str("strategy", sig.Strategy).
		Str("direction", string(sig.Direction)).
		Float64("entry", sig.Entry).
		Float64("rr", sig.RiskReward).
		Int("confidence", sig.Confidence).
		Msg("signal emitted")

	s.disp.Publish(types.SignalEmitted{Signal: *sig})
	s.tracker.Open(sig)
}

// shutdown flushes diagnostics and serializes unclosed trades.
func (s *Scanner) shutdown() error {
	s.disp.Publish(s.recorder.Snapshot())

	open := s.tracker.OpenTrades()
	if len(open) > 0 {
		reporting.NewConsoleReporter().PrintOpenTrades(open)
		path, err := reporting.WriteUnclosedTrades(s.cfg.Name, open, s.cfg.ReportDir)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to write unclosed trades report")
		} else {
			s.logger.Info().Str("path", path).Int("trades", len(open)).
				Msg("unclosed trades report written")
		}
	}
	s.logger.Info().Msg("scanner stopped")
	return nil
}

// indicatorParamsFrom maps the configuration block onto engine params.
func indicatorParamsFrom(ip config.IndicatorParams) indicators.Params {
	p := indicators.DefaultParams()
	p.EMAFastPeriod = ip.EMAFastPeriod
	p.EMASlowPeriod = ip.EMASlowPeriod
	p.EMATrendPeriod = ip.EMATrendPeriod
	p.EMALongPeriod = ip.EMALongPeriod
	p.ATRPeriod = ip.ATRPeriod
	p.RSIPeriod = ip.RSIPeriod
	p.ADXPeriod = ip.ADXPeriod
	p.VolumeMAPeriod = ip.VolumeMAPeriod
	p.VWAPReset = indicators.VWAPReset(ip.VWAPReset)
	return p
}

// strategyParamsFrom layers configuration overrides over the asset-class
// defaults.
func strategyParamsFrom(class types.AssetClass, overrides map[string]config.AssetOverride) strategy.Params {
	p := strategy.ParamsFor(class)
	ov, ok := overrides[string(class)]
	if !ok {
		return p
	}
	if ov.VolumeSpikeRatio > 0 {
		p.VolumeSpikeRatio = ov.VolumeSpikeRatio
	}
	if ov.RSIMin > 0 {
		p.RSIMin = ov.RSIMin
	}
	if ov.RSIMax > 0 {
		p.RSIMax = ov.RSIMax
	}
	if ov.ADXMin > 0 {
		p.ADXMin = ov.ADXMin
	}
	return p
}
