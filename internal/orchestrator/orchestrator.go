package orchestrator

import (
	"github.com/rs/zerolog"

	"github.com/quantsignal/signal-scanner/internal/strategy"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Regime-keyed strategy preferences. Strategies not preferred for the
// current regime still run, after the preferred ones.
var (
	strongTrendPriority = []string{
		strategy.NameConfluenceMomentum,
		strategy.NameTrendAlignment,
		strategy.NameBreakRetest,
		strategy.NameTrendPullback,
	}
	rangingPriority = []string{
		strategy.NameSupportResistance,
		strategy.NameMeanReversion,
		strategy.NameFibRetracement,
	}
	highVolatilityPriority = []string{
		strategy.NameConfluenceMomentum,
		strategy.NameMomentumShift,
		strategy.NameEMACloudBreakout,
	}
	lowVolatilityPriority = []string{
		strategy.NameMeanReversion,
		strategy.NameSupportResistance,
		strategy.NameFibRetracement,
	}
)

// Regime keys accepted in configuration priority overrides.
const (
	RegimeStrongTrend    = "strong_trend"
	RegimeRanging        = "ranging"
	RegimeHighVolatility = "high_volatility"
	RegimeLowVolatility  = "low_volatility"
)

// Orchestrator orders the enabled strategies by fit for the current market
// regime and arbitrates conflicting emissions within a tick.
type Orchestrator struct {
	registry  *strategy.Registry
	logger    zerolog.Logger
	overrides map[string][]string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPriorityOverrides replaces the built-in priority table per regime
// key; regimes absent from the map keep the defaults.
func WithPriorityOverrides(overrides map[string][]string) Option {
	return func(o *Orchestrator) { o.overrides = overrides }
}

// New creates an orchestrator over the given detector registry.
func New(registry *strategy.Registry, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{registry: registry, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Select returns the enabled strategies ordered for the regime: the
// regime's preferred strategies first, then every other enabled strategy
// in name order. Unknown names in enabled are skipped.
func (o *Orchestrator) Select(cond types.MarketCondition, enabled []string) []strategy.Detector {
	enabledSet := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		if _, ok := o.registry.Get(name); !ok {
			o.logger.Warn().Str("strategy", name).Msg("enabled strategy not registered, skipping")
			continue
		}
		enabledSet[name] = true
	}

	var ordered []strategy.Detector
	seen := make(map[string]bool, len(enabledSet))
	appendByName := func(names []string) {
		for _, name := range names {
			if !enabledSet[name] || seen[name] {
				continue
			}
			d, _ := o.registry.Get(name)
			ordered = append(ordered, d)
			seen[name] = true
		}
	}

	appendByName(o.priorityFor(cond))
	appendByName(o.registry.Names())
	return ordered
}

// priorityFor maps a market condition to its preferred strategy order.
// Trend strength wins over volatility when both apply.
func (o *Orchestrator) priorityFor(cond types.MarketCondition) []string {
	var regime string
	var builtin []string
	switch {
	case cond.TrendStrength == types.TrendStrong:
		regime, builtin = RegimeStrongTrend, strongTrendPriority
	case cond.IsRanging:
		regime, builtin = RegimeRanging, rangingPriority
	case cond.Volatility == types.VolatilityHigh:
		regime, builtin = RegimeHighVolatility, highVolatilityPriority
	case cond.Volatility == types.VolatilityLow:
		regime, builtin = RegimeLowVolatility, lowVolatilityPriority
	default:
		return nil
	}
	if override, ok := o.overrides[regime]; ok {
		return override
	}
	return builtin
}

// Resolve arbitrates the signals emitted in one tick. Same-direction
// signals keep the first (highest-priority) emission. Opposite-direction
// signals keep the higher confidence; equal confidence discards both and
// reports a conflict.
func (o *Orchestrator) Resolve(signals []*types.Signal) (winner *types.Signal, conflict bool) {
	if len(signals) == 0 {
		return nil, false
	}
	winner = signals[0]
	for _, sig := range signals[1:] {
		if sig.Direction == winner.Direction {
			continue
		}
		switch {
		case sig.Confidence > winner.Confidence:
			winner = sig
		case sig.Confidence == winner.Confidence:
			o.logger.Warn().
				Str("symbol", winner.Symbol).
				Str("strategy_a", winner.Strategy).
				Str("strategy_b", sig.Strategy).
				Int("confidence", sig.Confidence).
				Msg("opposite-direction signals at equal confidence, discarding both")
			return nil, true
		}
	}
	return winner, false
}
