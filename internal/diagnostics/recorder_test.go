package diagnostics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(now *time.Time) *Recorder {
	return NewRecorder(WithClock(func() time.Time { return *now }))
}

func TestSnapshotCounters(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(&now)

	r.RecordAttempt("ema_crossover")
	r.RecordAttempt("ema_crossover")
	r.RecordSuccess("ema_crossover")
	r.RecordRejection("confluence")
	r.RecordDataQuality("stale_data")

	now = now.Add(5 * time.Minute)
	rep := r.Snapshot()

	assert.Equal(t, 5*time.Minute, rep.Runtime)
	assert.Equal(t, 2, rep.AttemptsByStrategy["ema_crossover"])
	assert.Equal(t, 1, rep.SuccessesByStrategy["ema_crossover"])
	assert.Equal(t, 1, rep.RejectionsByReason["confluence"])
	assert.Equal(t, 1, rep.DataQualityByIssue["stale_data"])
	assert.Empty(t, rep.Recommendations)
}

func TestSnapshotIsACopy(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(&now)

	r.RecordAttempt("ema_crossover")
	rep := r.Snapshot()
	rep.AttemptsByStrategy["ema_crossover"] = 99

	assert.Equal(t, 1, r.Snapshot().AttemptsByStrategy["ema_crossover"])
}

func TestRecommendLowSuccessRate(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(&now)

	for i := 0; i < 25; i++ {
		r.RecordAttempt("mean_reversion")
	}
	r.RecordSuccess("mean_reversion") // 4% success, below the 5% floor

	rep := r.Snapshot()
	require.Len(t, rep.Recommendations, 1)
	assert.Contains(t, rep.Recommendations[0], "relaxing thresholds for mean_reversion")
}

func TestRecommendRateNeedsEnoughAttempts(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(&now)

	for i := 0; i < 9; i++ {
		r.RecordAttempt("mean_reversion")
	}
	r.RecordSuccess("other")

	assert.Empty(t, r.Snapshot().Recommendations)
}

func TestRecommendDominantRejection(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(&now)

	r.RecordSuccess("ema_crossover")
	for i := 0; i < 6; i++ {
		r.RecordRejection("confluence")
	}
	for i := 0; i < 4; i++ {
		r.RecordRejection("risk_reward")
	}

	rep := r.Snapshot()
	require.Len(t, rep.Recommendations, 1)
	assert.Contains(t, rep.Recommendations[0], `"confluence" is dominant`)
}

func TestRecommendBypassAfterQuietHour(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r := newTestRecorder(&now)

	now = now.Add(61 * time.Minute)
	rep := r.Snapshot()
	require.Len(t, rep.Recommendations, 1)
	assert.Contains(t, rep.Recommendations[0], "bypass")

	// Any signal clears the suggestion.
	r.RecordSuccess("ema_crossover")
	assert.Empty(t, r.Snapshot().Recommendations)
}

func TestReportEvent(t *testing.T) {
	rep := Report{}
	assert.Equal(t, "diagnostic_report", rep.EventKind())
	assert.True(t, rep.Droppable())
}
