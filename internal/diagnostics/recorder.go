package diagnostics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Recommendation heuristic thresholds.
const (
	minAttemptsForRate   = 10
	lowSuccessRate       = 0.05
	dominantRejectionPct = 0.5
	bypassSuggestAfter   = time.Hour
)

// Recorder accumulates scan-cycle counters. Safe for concurrent use; the
// increment paths hold the mutex for a map bump only.
type Recorder struct {
	mu sync.Mutex

	startedAt    time.Time
	lastSignalAt time.Time

	attempts    map[string]int
	successes   map[string]int
	rejections  map[string]int
	dataQuality map[string]int

	now func() time.Time
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithClock injects the time source, used by replay tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a recorder with the runtime clock started.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		attempts:    make(map[string]int),
		successes:   make(map[string]int),
		rejections:  make(map[string]int),
		dataQuality: make(map[string]int),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.startedAt = r.now()
	return r
}

// RecordAttempt counts a strategy invocation.
func (r *Recorder) RecordAttempt(strategyName string) {
	r.mu.Lock()
	r.attempts[strategyName]++
	r.mu.Unlock()
}

// RecordSuccess counts an emitted signal for a strategy.
func (r *Recorder) RecordSuccess(strategyName string) {
	r.mu.Lock()
	r.successes[strategyName]++
	r.lastSignalAt = r.now()
	r.mu.Unlock()
}

// RecordRejection counts a quality-filter rejection by reason.
func (r *Recorder) RecordRejection(reason string) {
	r.mu.Lock()
	r.rejections[reason]++
	r.mu.Unlock()
}

// RecordDataQuality counts a data-quality issue by kind.
func (r *Recorder) RecordDataQuality(issue string) {
	r.mu.Lock()
	r.dataQuality[issue]++
	r.mu.Unlock()
}

// Report is the periodic diagnostic summary pushed to the dispatch sink.
type Report struct {
	Runtime      time.Duration `json:"runtime"`
	LastSignalAt time.Time     `json:"last_signal_at,omitempty"`

	AttemptsByStrategy  map[string]int `json:"attempts_by_strategy"`
	SuccessesByStrategy map[string]int `json:"successes_by_strategy"`
	RejectionsByReason  map[string]int `json:"rejections_by_reason"`
	DataQualityByIssue  map[string]int `json:"data_quality_by_issue"`

	Recommendations []string `json:"recommendations,omitempty"`
}

func (Report) EventKind() string { return "diagnostic_report" }
func (Report) Droppable() bool   { return true }

var _ types.Event = Report{}

// Snapshot copies the counters and derives recommendations.
func (r *Recorder) Snapshot() Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	rep := Report{
		Runtime:             now.Sub(r.startedAt),
		LastSignalAt:        r.lastSignalAt,
		AttemptsByStrategy:  copyCounts(r.attempts),
		SuccessesByStrategy: copyCounts(r.successes),
		RejectionsByReason:  copyCounts(r.rejections),
		DataQualityByIssue:  copyCounts(r.dataQuality),
	}
	rep.Recommendations = r.recommendLocked(rep, now)
	return rep
}

func (r *Recorder) recommendLocked(rep Report, now time.Time) []string {
	var recs []string

	names := make([]string, 0, len(rep.AttemptsByStrategy))
	for name := range rep.AttemptsByStrategy {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		attempts := rep.AttemptsByStrategy[name]
		if attempts < minAttemptsForRate {
			continue
		}
		rate := float64(rep.SuccessesByStrategy[name]) / float64(attempts)
		if rate < lowSuccessRate {
			recs = append(recs, fmt.Sprintf(
				"consider relaxing thresholds for %s (%d attempts, %.1f%% success)",
				name, attempts, rate*100))
		}
	}

	totalRejections := 0
	for _, n := range rep.RejectionsByReason {
		totalRejections += n
	}
	if totalRejections > 0 {
		reasons := make([]string, 0, len(rep.RejectionsByReason))
		for reason := range rep.RejectionsByReason {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			n := rep.RejectionsByReason[reason]
			if float64(n)/float64(totalRejections) >= dominantRejectionPct {
				recs = append(recs, fmt.Sprintf(
					"filter %q is dominant (%d of %d rejections); inspect threshold",
					reason, n, totalRejections))
			}
		}
	}

	if rep.Runtime >= bypassSuggestAfter && r.lastSignalAt.IsZero() {
		recs = append(recs, "no signals emitted yet; consider bypass mode for diagnosis")
	}
	return recs
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
