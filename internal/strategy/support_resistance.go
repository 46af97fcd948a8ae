package strategy

import (
	"fmt"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// srStopATR sits the stop half an ATR beyond the traded level.
const srStopATR = 0.5

// SupportResistance trades bounces from clustered swing-point levels with
// at least two touches, preferring round-number levels.
type SupportResistance struct{}

// NewSupportResistance creates the detector.
func NewSupportResistance() *SupportResistance {
	return &SupportResistance{}
}

// Name returns the registry key.
func (s *SupportResistance) Name() string { return NameSupportResistance }

// MinHistory returns the required enriched history.
func (s *SupportResistance) MinHistory() int { return MinHistory }

// Detect implements the Detector contract.
func (s *SupportResistance) Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error) {
	if !ready(buffer, ctx, s.MinHistory()) {
		return nil, nil
	}
	p := ctx.Params
	last := buffer[len(buffer)-1]

	levels := qualifiedLevels(buffer, p.LevelTolerancePct, p.RoundUnit)
	if len(levels) == 0 {
		return nil, nil
	}

	for _, lvl := range levels {
		// Bounce from support: wick into the level, close back above it.
		if pctDistance(last.Low, lvl.Price) <= p.LevelTolerancePct && last.Close > lvl.Price {
			target := nextLevelAbove(levels, last.Close)
			if target == nil {
				continue
			}
			entry := last.Close
			sig := newSignal(ctx, buffer, s.Name(), types.DirectionLong,
				entry, lvl.Price-srStopATR*last.ATR, target.Price,
				s.confidence(lvl, last), []string{"support_bounce", "level_touches", "close_above_level"},
				fmt.Sprintf("bounce off support %.4f (%d touches), targeting %.4f", lvl.Price, lvl.Touches, target.Price))
			if lvl.Round {
				sig.Metadata["round_number_level"] = "true"
			}
			sig.Metadata[MetadataHoldPeriod] = HoldIntraday
			return validated(sig), nil
		}
		// Rejection from resistance: wick into the level, close back below.
		if pctDistance(last.High, lvl.Price) <= p.LevelTolerancePct && last.Close < lvl.Price {
			target := nextLevelBelow(levels, last.Close)
			if target == nil {
				continue
			}
			entry := last.Close
			sig := newSignal(ctx, buffer, s.Name(), types.DirectionShort,
				entry, lvl.Price+srStopATR*last.ATR, target.Price,
				s.confidence(lvl, last), []string{"resistance_rejection", "level_touches", "close_below_level"},
				fmt.Sprintf("rejection at resistance %.4f (%d touches), targeting %.4f", lvl.Price, lvl.Touches, target.Price))
			if lvl.Round {
				sig.Metadata["round_number_level"] = "true"
			}
			sig.Metadata[MetadataHoldPeriod] = HoldIntraday
			return validated(sig), nil
		}
	}
	return nil, nil
}

func (s *SupportResistance) confidence(lvl Level, last types.EnrichedCandle) int {
	conf := 3
	if lvl.Round {
		conf++
	}
	if lvl.Touches >= 3 {
		conf++
	}
	if conf > 5 {
		conf = 5
	}
	return conf
}
