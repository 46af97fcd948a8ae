package strategy

import (
	"fmt"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// trendAlignVolumeFloor is the minimum participation for an alignment
// entry; alignment rides an existing move and tolerates quieter bars.
const trendAlignVolumeFloor = 0.8

// TrendAlignment detects a fully stacked EMA cascade with price leading,
// a confirming ADX, and momentum turning in the cascade direction.
type TrendAlignment struct{}

// NewTrendAlignment creates the detector.
func NewTrendAlignment() *TrendAlignment {
	return &TrendAlignment{}
}

// Name returns the registry key.
func (s *TrendAlignment) Name() string { return NameTrendAlignment }

// MinHistory returns the required enriched history.
func (s *TrendAlignment) MinHistory() int { return MinHistory }

// Detect implements the Detector contract.
func (s *TrendAlignment) Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error) {
	if !ready(buffer, ctx, s.MinHistory()) {
		return nil, nil
	}
	p := ctx.Params
	last := buffer[len(buffer)-1]

	if last.ADX < p.ADXMin || last.VolumeRatio() < trendAlignVolumeFloor {
		return nil, nil
	}

	alignedUp := last.Close > last.EMAFast && last.EMAFast > last.EMASlow && last.EMASlow > last.EMATrend
	alignedDown := last.Close < last.EMAFast && last.EMAFast < last.EMASlow && last.EMASlow < last.EMATrend

	var sig *types.Signal
	switch {
	case alignedUp && rsiRising(buffer):
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionLong,
			entry, last.EMASlow-0.5*last.ATR, entry+2.5*last.ATR,
			s.confidence(last), []string{"ema_alignment", "adx_trend", "rsi_rising"},
			fmt.Sprintf("bullish EMA cascade, ADX %.1f, RSI rising to %.1f", last.ADX, last.RSI))
	case alignedDown && rsiFalling(buffer):
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionShort,
			entry, last.EMASlow+0.5*last.ATR, entry-2.5*last.ATR,
			s.confidence(last), []string{"ema_alignment", "adx_trend", "rsi_falling"},
			fmt.Sprintf("bearish EMA cascade, ADX %.1f, RSI falling to %.1f", last.ADX, last.RSI))
	default:
		return nil, nil
	}

	sig.Metadata[MetadataHoldPeriod] = HoldMultiDay
	return validated(sig), nil
}

func (s *TrendAlignment) confidence(last types.EnrichedCandle) int {
	conf := 3
	if last.ADX >= 25 {
		conf++
	}
	if last.VolumeRatio() >= 1.3 {
		conf++
	}
	if conf > 5 {
		conf = 5
	}
	return conf
}
