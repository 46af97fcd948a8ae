package strategy

import (
	"fmt"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Confluence thresholds.
const (
	confluenceADXMin      = 20.0
	confluenceADXStrong   = 25.0
	confluenceRSIDelta    = 3.0
	confluenceRSISpan     = 3
	confluenceVolumeFloor = 1.2
	confluenceSwings      = 2
)

// ConfluenceMomentum stacks trend strength, directional RSI momentum, and
// market structure into a single high-conviction entry.
type ConfluenceMomentum struct{}

// NewConfluenceMomentum creates the detector.
func NewConfluenceMomentum() *ConfluenceMomentum {
	return &ConfluenceMomentum{}
}

// Name returns the registry key.
func (s *ConfluenceMomentum) Name() string { return NameConfluenceMomentum }

// MinHistory returns the required enriched history.
func (s *ConfluenceMomentum) MinHistory() int { return MinHistory }

// Detect implements the Detector contract.
func (s *ConfluenceMomentum) Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error) {
	if !ready(buffer, ctx, s.MinHistory()) {
		return nil, nil
	}
	p := ctx.Params
	n := len(buffer)
	last := buffer[n-1]

	if last.ADX < confluenceADXMin || last.VolumeRatio() < confluenceVolumeFloor {
		return nil, nil
	}
	delta := rsiDelta(buffer, confluenceRSISpan)
	adxRising := last.ADX > buffer[n-2].ADX

	var sig *types.Signal
	switch {
	case last.RSI > 50 && delta >= confluenceRSIDelta &&
		trendSwingCount(buffer, fractalWing, true) >= confluenceSwings:
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionLong,
			entry, entry-p.ATRStopMult*last.ATR, entry+p.TPDayMult*last.ATR,
			s.confidence(last, adxRising), []string{"adx_trend", "rsi_momentum", "higher_highs_lows", "volume_confirmation"},
			fmt.Sprintf("ADX %.1f with RSI +%.1f over %d bars and rising structure", last.ADX, delta, confluenceRSISpan))
	case last.RSI < 50 && delta <= -confluenceRSIDelta &&
		trendSwingCount(buffer, fractalWing, false) >= confluenceSwings:
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionShort,
			entry, entry+p.ATRStopMult*last.ATR, entry-p.TPDayMult*last.ATR,
			s.confidence(last, adxRising), []string{"adx_trend", "rsi_momentum", "lower_highs_lows", "volume_confirmation"},
			fmt.Sprintf("ADX %.1f with RSI %.1f over %d bars and falling structure", last.ADX, delta, confluenceRSISpan))
	default:
		return nil, nil
	}

	sig.Metadata[MetadataHoldPeriod] = HoldMultiDay
	return validated(sig), nil
}

func (s *ConfluenceMomentum) confidence(last types.EnrichedCandle, adxRising bool) int {
	conf := 4
	if last.ADX >= confluenceADXStrong {
		conf = 5
	} else if !adxRising {
		conf = 3
	}
	return conf
}
