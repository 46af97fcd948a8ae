package strategy

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Minimum enriched history most detectors require. Trend-following
// detectors need the longer window.
const (
	MinHistory      = 60
	MinHistoryTrend = 200
)

// Hold-period metadata values. Advisory only; the tracker's expiry rule is
// the authoritative hold limit.
const (
	HoldIntraday  = "intraday"
	HoldMultiDay  = "multi_day"
	HoldMultiWeek = "multi_week"
)

// MetadataHoldPeriod is the signal metadata key for the hold classifier.
const MetadataHoldPeriod = "hold_period"

// Context carries per-invocation inputs shared by every detector.
type Context struct {
	Symbol    string
	Timeframe types.Timeframe
	Asset     types.AssetClass
	Params    Params
	// Fresh mirrors the data-source freshness flag; no detector emits on
	// stale buffers.
	Fresh bool
	// Now is the emission clock, injectable for deterministic replays.
	Now time.Time
}

// Detector finds one pattern in an enriched buffer. A nil signal with a
// nil error means "no setup here"; errors are reserved for genuine
// failures.
type Detector interface {
	Name() string
	MinHistory() int
	Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error)
}

// ready implements the shared detector prologue: fresh buffer, minimum
// history, volume present on the last bar.
func ready(buffer []types.EnrichedCandle, ctx Context, minHistory int) bool {
	if !ctx.Fresh || len(buffer) < minHistory {
		return false
	}
	return buffer[len(buffer)-1].Volume > 0
}

// newSignal assembles a Signal with computed risk/reward and an indicator
// snapshot from the last candle.
func newSignal(ctx Context, buffer []types.EnrichedCandle, strategyName string, dir types.Direction,
	entry, stopLoss, takeProfit float64, confidence int, factors []string, reasoning string) *types.Signal {

	last := buffer[len(buffer)-1]
	return &types.Signal{
		ID:                uuid.NewString(),
		Symbol:            ctx.Symbol,
		Timeframe:         ctx.Timeframe,
		Direction:         dir,
		Strategy:          strategyName,
		Entry:             entry,
		StopLoss:          stopLoss,
		TakeProfit:        takeProfit,
		RiskReward:        types.ComputeRiskReward(entry, stopLoss, takeProfit),
		Confidence:        confidence,
		ConfluenceFactors: factors,
		Reasoning:         reasoning,
		Indicators:        types.SnapshotFrom(last),
		Metadata:          map[string]string{},
		CreatedAt:         ctx.Now,
	}
}

// Registry holds the enabled detectors keyed by name.
type Registry struct {
	detectors map[string]Detector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{detectors: make(map[string]Detector)}
}

// Register adds a detector; duplicate names are rejected.
func (r *Registry) Register(d Detector) error {
	if _, exists := r.detectors[d.Name()]; exists {
		return fmt.Errorf("detector %q already registered", d.Name())
	}
	r.detectors[d.Name()] = d
	return nil
}

// Get returns the named detector.
func (r *Registry) Get(name string) (Detector, bool) {
	d, ok := r.detectors[name]
	return d, ok
}

// Names returns the registered detector names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.detectors))
	for name := range r.detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Strategy names.
const (
	NameEMACrossover       = "ema_crossover"
	NameTrendAlignment     = "trend_alignment"
	NameMeanReversion      = "mean_reversion"
	NameEMACloudBreakout   = "ema_cloud_breakout"
	NameMomentumShift      = "momentum_shift"
	NameFibRetracement     = "fibonacci_retracement"
	NameSupportResistance  = "support_resistance"
	NameBreakRetest        = "break_retest"
	NameConfluenceMomentum = "confluence_momentum"
	NameTrendPullback      = "trend_pullback"
	NameFairValueGap       = "fair_value_gap"
	NameAsianRange         = "asian_range"
)

// DefaultRegistry registers the full detection catalog.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range []Detector{
		NewEMACrossover(),
		NewTrendAlignment(),
		NewMeanReversion(),
		NewEMACloudBreakout(),
		NewMomentumShift(),
		NewFibRetracement(),
		NewSupportResistance(),
		NewBreakRetest(),
		NewConfluenceMomentum(),
		NewTrendPullback(),
		NewFairValueGap(),
		NewAsianRange(),
	} {
		// Names are package constants; duplicates cannot happen here.
		_ = r.Register(d)
	}
	return r
}
