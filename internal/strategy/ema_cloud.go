package strategy

import (
	"fmt"
	"math"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Cloud compression and breakout thresholds.
const (
	cloudWidthATR      = 0.5
	cloudMinRangeBars  = 10
	cloudBreakoutVolume = 1.4
)

// EMACloudBreakout detects a close escaping a compressed fast/slow EMA
// band after a multi-bar squeeze, on expanding volume.
type EMACloudBreakout struct{}

// NewEMACloudBreakout creates the detector.
func NewEMACloudBreakout() *EMACloudBreakout {
	return &EMACloudBreakout{}
}

// Name returns the registry key.
func (s *EMACloudBreakout) Name() string { return NameEMACloudBreakout }

// MinHistory returns the required enriched history.
func (s *EMACloudBreakout) MinHistory() int { return MinHistory }

// Detect implements the Detector contract.
func (s *EMACloudBreakout) Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error) {
	if !ready(buffer, ctx, s.MinHistory()) {
		return nil, nil
	}
	p := ctx.Params
	n := len(buffer)
	last := buffer[n-1]

	volumeNeeded := math.Max(cloudBreakoutVolume, p.VolumeSpikeRatio)
	if last.VolumeRatio() < volumeNeeded {
		return nil, nil
	}

	// The squeeze: cloud width below half an ATR on every one of the
	// preceding bars.
	for i := n - 1 - cloudMinRangeBars; i < n-1; i++ {
		c := buffer[i]
		if math.Abs(c.EMAFast-c.EMASlow) >= cloudWidthATR*c.ATR {
			return nil, nil
		}
	}

	cloudTop := math.Max(last.EMAFast, last.EMASlow)
	cloudBottom := math.Min(last.EMAFast, last.EMASlow)

	tpMult := p.TPDayMult
	if p.Mode == ModeScalp {
		tpMult = p.TPScalpMult
	}

	var sig *types.Signal
	switch {
	case last.Close > cloudTop:
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionLong,
			entry, cloudBottom-0.5*last.ATR, entry+tpMult*last.ATR,
			s.confidence(last), []string{"cloud_squeeze", "breakout_close", "volume_expansion"},
			fmt.Sprintf("close escaped %d-bar EMA squeeze upward on %.1fx volume", cloudMinRangeBars, last.VolumeRatio()))
	case last.Close < cloudBottom:
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionShort,
			entry, cloudTop+0.5*last.ATR, entry-tpMult*last.ATR,
			s.confidence(last), []string{"cloud_squeeze", "breakout_close", "volume_expansion"},
			fmt.Sprintf("close escaped %d-bar EMA squeeze downward on %.1fx volume", cloudMinRangeBars, last.VolumeRatio()))
	default:
		return nil, nil
	}

	sig.Metadata[MetadataHoldPeriod] = HoldIntraday
	return validated(sig), nil
}

func (s *EMACloudBreakout) confidence(last types.EnrichedCandle) int {
	conf := 3
	if last.VolumeRatio() >= 1.8 {
		conf++
	}
	if conf > 5 {
		conf = 5
	}
	return conf
}
