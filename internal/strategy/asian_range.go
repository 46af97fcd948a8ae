package strategy

import (
	"fmt"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// AsianRange trades a breakout from the overnight session range on gold
// and indices: a close beyond the range by the configured buffer, then a
// retest of the broken boundary that holds.
type AsianRange struct{}

// NewAsianRange creates the detector.
func NewAsianRange() *AsianRange {
	return &AsianRange{}
}

// Name returns the registry key.
func (s *AsianRange) Name() string { return NameAsianRange }

// MinHistory returns the required enriched history.
func (s *AsianRange) MinHistory() int { return MinHistory }

// Detect implements the Detector contract.
func (s *AsianRange) Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error) {
	if ctx.Asset != types.AssetGold && ctx.Asset != types.AssetIndex {
		return nil, nil
	}
	if !ready(buffer, ctx, s.MinHistory()) {
		return nil, nil
	}
	p := ctx.Params
	n := len(buffer)
	last := buffer[n-1]

	hi, lo, done := sessionRange(buffer, p.SessionStartHour, p.SessionEndHour)
	if !done || hi <= lo {
		return nil, nil
	}
	buffered := p.BreakoutBufferPct / 100

	// Walk the post-session bars for a buffered breakout close, then
	// require the last bar to be the retest that holds the boundary.
	brokeUp, brokeDown := false, false
	for i := n - 2; i >= 0; i-- {
		c := buffer[i]
		if c.Timestamp.UTC().Hour() < p.SessionEndHour {
			break
		}
		if c.Close > hi*(1+buffered) {
			brokeUp = true
			break
		}
		if c.Close < lo*(1-buffered) {
			brokeDown = true
			break
		}
	}

	rangeSize := hi - lo
	var sig *types.Signal
	switch {
	case brokeUp && pctDistance(last.Low, hi) <= p.LevelTolerancePct && last.Close > hi:
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionLong,
			entry, hi-srStopATR*last.ATR, hi+rangeSize,
			s.confidence(last), []string{"session_range_break", "boundary_retest", "close_beyond_buffer"},
			fmt.Sprintf("broke session high %.4f, retest held, projecting the %.4f range", hi, rangeSize))
	case brokeDown && pctDistance(last.High, lo) <= p.LevelTolerancePct && last.Close < lo:
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionShort,
			entry, lo+srStopATR*last.ATR, lo-rangeSize,
			s.confidence(last), []string{"session_range_break", "boundary_retest", "close_beyond_buffer"},
			fmt.Sprintf("broke session low %.4f, retest held, projecting the %.4f range", lo, rangeSize))
	default:
		return nil, nil
	}

	sig.Metadata[MetadataHoldPeriod] = HoldIntraday
	return validated(sig), nil
}

func (s *AsianRange) confidence(last types.EnrichedCandle) int {
	conf := 3
	if last.VolumeRatio() >= 1.3 {
		conf++
	}
	if last.ADX >= 20 {
		conf++
	}
	if conf > 5 {
		conf = 5
	}
	return conf
}
