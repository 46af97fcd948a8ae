package strategy

import (
	"fmt"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// EMACrossover detects a fast/slow EMA cross on the last closed bar,
// confirmed by VWAP side, a volume spike, and a sane RSI band.
type EMACrossover struct{}

// NewEMACrossover creates the detector.
func NewEMACrossover() *EMACrossover {
	return &EMACrossover{}
}

// Name returns the registry key.
func (s *EMACrossover) Name() string { return NameEMACrossover }

// MinHistory returns the required enriched history.
func (s *EMACrossover) MinHistory() int { return MinHistory }

// Detect implements the Detector contract.
func (s *EMACrossover) Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error) {
	if !ready(buffer, ctx, s.MinHistory()) {
		return nil, nil
	}
	p := ctx.Params
	last := buffer[len(buffer)-1]
	prev := buffer[len(buffer)-2]

	if last.RSI < p.RSIMin || last.RSI > p.RSIMax {
		return nil, nil
	}
	if last.VolumeRatio() < p.VolumeSpikeRatio {
		return nil, nil
	}

	crossedUp := prev.EMAFast <= prev.EMASlow && last.EMAFast > last.EMASlow
	crossedDown := prev.EMAFast >= prev.EMASlow && last.EMAFast < last.EMASlow

	tpMult := 2.0
	if p.Mode == ModeScalp {
		tpMult = 1.0
	}

	var sig *types.Signal
	switch {
	case crossedUp && last.Close > last.VWAP:
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionLong,
			entry, entry-p.ATRStopMult*last.ATR, entry+tpMult*last.ATR,
			s.confidence(last), []string{"ema_cross_up", "above_vwap", "volume_spike"},
			fmt.Sprintf("EMA %s cross up with %.1fx volume, RSI %.1f", ctx.Timeframe, last.VolumeRatio(), last.RSI))
	case crossedDown && last.Close < last.VWAP:
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionShort,
			entry, entry+p.ATRStopMult*last.ATR, entry-tpMult*last.ATR,
			s.confidence(last), []string{"ema_cross_down", "below_vwap", "volume_spike"},
			fmt.Sprintf("EMA %s cross down with %.1fx volume, RSI %.1f", ctx.Timeframe, last.VolumeRatio(), last.RSI))
	default:
		return nil, nil
	}

	sig.Metadata[MetadataHoldPeriod] = HoldIntraday
	return validated(sig), nil
}

func (s *EMACrossover) confidence(last types.EnrichedCandle) int {
	conf := 3
	if last.VolumeRatio() >= 1.6 {
		conf++
	}
	if last.ADX >= 25 {
		conf++
	}
	if conf > 5 {
		conf = 5
	}
	return conf
}

// validated drops signals that violate level ordering or R/R consistency.
// Detectors construct levels from live indicator values; degenerate ATRs
// can produce inverted levels, which are a non-signal, not an error.
func validated(sig *types.Signal) *types.Signal {
	if sig == nil || sig.Validate() != nil {
		return nil
	}
	return sig
}
