package filter

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Policy is the configurable quality gate.
type Policy struct {
	MinConfluenceFactors       int     `json:"min_confluence_factors" yaml:"min_confluence_factors"`
	MinConfidenceScore         int     `json:"min_confidence_score" yaml:"min_confidence_score"`
	MinRiskReward              float64 `json:"min_risk_reward" yaml:"min_risk_reward"`
	DuplicateWindowSeconds     int     `json:"duplicate_window_seconds" yaml:"duplicate_window_seconds"`
	DuplicatePriceTolerancePct float64 `json:"duplicate_price_tolerance_pct" yaml:"duplicate_price_tolerance_pct"`
	SignificantPriceMovePct    float64 `json:"significant_price_move_pct" yaml:"significant_price_move_pct"`
}

// DefaultPolicy returns the standard quality gate tuning.
func DefaultPolicy() Policy {
	return Policy{
		MinConfluenceFactors:       3,
		MinConfidenceScore:         3,
		MinRiskReward:              1.2,
		DuplicateWindowSeconds:     600,
		DuplicatePriceTolerancePct: 1.0,
		SignificantPriceMovePct:    1.5,
	}
}

// Duplicate-override and bookkeeping thresholds.
const (
	rsiOverrideDelta    = 15.0
	recentWindowSize    = 100
	recentWindowMaxAge  = 10 * time.Minute
	defaultBypassPeriod = 2 * time.Hour
	bypassTagPrefix     = "BYPASS"
)

// Rejection reason codes, the keys diagnostics aggregate on.
const (
	ReasonConfluence = "confluence"
	ReasonConfidence = "confidence"
	ReasonRiskReward = "risk_reward"
	ReasonDuplicate  = "duplicate"
)

// Result explains a filter decision. Reason is the stable aggregation
// key; Detail is the human-readable elaboration.
type Result struct {
	Accepted bool
	Reason   string
	Detail   string
}

// recentSignal is the duplicate-suppression memory entry.
type recentSignal struct {
	direction types.Direction
	timeframe types.Timeframe
	entry     float64
	rsi       float64
	createdAt time.Time
}

// QualityFilter gates signals on confluence, confidence, risk/reward, and
// duplicate suppression. Safe for concurrent use.
type QualityFilter struct {
	policy Policy
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	recent map[string][]recentSignal // keyed by symbol

	bypassUntil time.Time
}

// Option customizes a QualityFilter.
type Option func(*QualityFilter)

// WithClock injects the time source, used by replay tests.
func WithClock(now func() time.Time) Option {
	return func(f *QualityFilter) { f.now = now }
}

// New creates a quality filter with the given policy.
func New(policy Policy, logger zerolog.Logger, opts ...Option) *QualityFilter {
	f := &QualityFilter{
		policy: policy,
		logger: logger,
		now:    time.Now,
		recent: make(map[string][]recentSignal),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Check evaluates a signal against the policy. Accepted signals are
// remembered for duplicate suppression; the signal's confidence is raised
// to the computed confluence confidence when that is higher.
func (f *QualityFilter) Check(sig *types.Signal, last types.EnrichedCandle) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	f.pruneLocked(sig.Symbol, now)

	if f.bypassActiveLocked(now) {
		sig.Metadata["filter_bypassed"] = "true"
		if !strings.HasPrefix(sig.Reasoning, bypassTagPrefix) {
			sig.Reasoning = bypassTagPrefix + ": " + sig.Reasoning
		}
		f.rememberLocked(sig, last, now)
		return Result{Accepted: true}
	}

	met := f.metFactors(sig, last)
	if len(met) < f.policy.MinConfluenceFactors {
		return Result{Reason: ReasonConfluence, Detail: fmt.Sprintf("confluence %d/%d below minimum %d",
			len(met), factorCount, f.policy.MinConfluenceFactors)}
	}

	sig.ConfluenceFactors = mergeFactors(sig.ConfluenceFactors, met)
	if computed := confidenceFrom(met, sig); computed > sig.Confidence {
		sig.Confidence = computed
	}
	if sig.Confidence < f.policy.MinConfidenceScore {
		return Result{Reason: ReasonConfidence, Detail: fmt.Sprintf("confidence %d below minimum %d",
			sig.Confidence, f.policy.MinConfidenceScore)}
	}
	if sig.RiskReward < f.policy.MinRiskReward {
		return Result{Reason: ReasonRiskReward, Detail: fmt.Sprintf("risk/reward %.2f below minimum %.2f",
			sig.RiskReward, f.policy.MinRiskReward)}
	}
	if detail, dup := f.duplicateLocked(sig, last, now); dup {
		return Result{Reason: ReasonDuplicate, Detail: detail}
	}

	f.rememberLocked(sig, last, now)
	return Result{Accepted: true}
}

// EnableBypass disables quality gating for the given duration (the default
// applies when d <= 0). Emitted signals are tagged while bypass is active.
func (f *QualityFilter) EnableBypass(d time.Duration) {
	if d <= 0 {
		d = defaultBypassPeriod
	}
	f.mu.Lock()
	f.bypassUntil = f.now().Add(d)
	f.mu.Unlock()
	f.logger.Warn().Dur("duration", d).Msg("quality filter bypass enabled")
}

// DisableBypass restores normal gating immediately.
func (f *QualityFilter) DisableBypass() {
	f.mu.Lock()
	f.bypassUntil = time.Time{}
	f.mu.Unlock()
}

// BypassActive reports whether bypass mode is currently in effect.
func (f *QualityFilter) BypassActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bypassActiveLocked(f.now())
}

func (f *QualityFilter) bypassActiveLocked(now time.Time) bool {
	if f.bypassUntil.IsZero() {
		return false
	}
	if now.After(f.bypassUntil) {
		// Auto-disable.
		f.bypassUntil = time.Time{}
		f.logger.Info().Msg("quality filter bypass expired")
		return false
	}
	return true
}

func (f *QualityFilter) duplicateLocked(sig *types.Signal, last types.EnrichedCandle, now time.Time) (string, bool) {
	window := time.Duration(f.policy.DuplicateWindowSeconds) * time.Second
	for _, prior := range f.recent[sig.Symbol] {
		if now.Sub(prior.createdAt) > window {
			continue
		}
		if prior.direction != sig.Direction || prior.timeframe != sig.Timeframe {
			continue
		}
		if prior.entry == 0 {
			continue
		}
		drift := math.Abs(prior.entry-sig.Entry) / prior.entry * 100
		if drift >= f.policy.DuplicatePriceTolerancePct {
			continue
		}
		// Near-duplicate; the overrides force a fresh emission anyway.
		if math.Abs(last.RSI-prior.rsi) >= rsiOverrideDelta {
			continue
		}
		if drift >= f.policy.SignificantPriceMovePct {
			continue
		}
		return fmt.Sprintf("duplicate of %s signal %.0fs ago at entry %.4f",
			prior.direction, now.Sub(prior.createdAt).Seconds(), prior.entry), true
	}
	return "", false
}

func (f *QualityFilter) rememberLocked(sig *types.Signal, last types.EnrichedCandle, now time.Time) {
	entries := append(f.recent[sig.Symbol], recentSignal{
		direction: sig.Direction,
		timeframe: sig.Timeframe,
		entry:     sig.Entry,
		rsi:       last.RSI,
		createdAt: now,
	})
	if len(entries) > recentWindowSize {
		entries = entries[len(entries)-recentWindowSize:]
	}
	f.recent[sig.Symbol] = entries
}

func (f *QualityFilter) pruneLocked(symbol string, now time.Time) {
	entries := f.recent[symbol]
	kept := entries[:0]
	for _, e := range entries {
		if now.Sub(e.createdAt) <= recentWindowMaxAge {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(f.recent, symbol)
		return
	}
	f.recent[symbol] = kept
}
