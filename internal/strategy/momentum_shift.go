package strategy

import (
	"fmt"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Momentum-shift run and participation thresholds.
const (
	shiftRunBars     = 3
	shiftVolumeFloor = 1.2
)

// MomentumShift detects an RSI run reversing over three bars while trend
// strength holds, confirmed by a price candle in the turn direction.
type MomentumShift struct{}

// NewMomentumShift creates the detector.
func NewMomentumShift() *MomentumShift {
	return &MomentumShift{}
}

// Name returns the registry key.
func (s *MomentumShift) Name() string { return NameMomentumShift }

// MinHistory returns the required enriched history.
func (s *MomentumShift) MinHistory() int { return MinHistory }

// Detect implements the Detector contract.
func (s *MomentumShift) Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error) {
	if !ready(buffer, ctx, s.MinHistory()) {
		return nil, nil
	}
	p := ctx.Params
	n := len(buffer)
	last := buffer[n-1]

	if last.ADX < p.ADXMin || last.VolumeRatio() < shiftVolumeFloor {
		return nil, nil
	}

	// A turn: the bars before the last formed a monotone RSI run, and the
	// last bar broke it.
	r3, r2, r1, r0 := buffer[n-4].RSI, buffer[n-3].RSI, buffer[n-2].RSI, buffer[n-1].RSI
	turnedUp := r3 > r2 && r2 > r1 && r0 > r1
	turnedDown := r3 < r2 && r2 < r1 && r0 < r1

	tpMult := p.TPDayMult
	if p.Mode == ModeScalp {
		tpMult = p.TPScalpMult
	}

	var sig *types.Signal
	switch {
	case turnedUp && last.Bullish():
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionLong,
			entry, entry-p.ATRStopMult*last.ATR, entry+tpMult*last.ATR,
			s.confidence(last), []string{"rsi_turn_up", "adx_trend", "confirmation_candle"},
			fmt.Sprintf("RSI run reversed up at %.1f with ADX %.1f", r0, last.ADX))
	case turnedDown && last.Bearish():
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionShort,
			entry, entry+p.ATRStopMult*last.ATR, entry-tpMult*last.ATR,
			s.confidence(last), []string{"rsi_turn_down", "adx_trend", "confirmation_candle"},
			fmt.Sprintf("RSI run reversed down at %.1f with ADX %.1f", r0, last.ADX))
	default:
		return nil, nil
	}

	sig.Metadata[MetadataHoldPeriod] = HoldIntraday
	return validated(sig), nil
}

func (s *MomentumShift) confidence(last types.EnrichedCandle) int {
	conf := 3
	if last.ADX >= 25 {
		conf++
	}
	if last.VolumeRatio() >= 1.5 {
		conf++
	}
	if conf > 5 {
		conf = 5
	}
	return conf
}
