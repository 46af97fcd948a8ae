package strategy

import (
	"fmt"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// fvgLookback limits the structure-break search window.
const fvgLookback = 50

// FairValueGap trades a three-bar imbalance combined with a market
// structure break and a volume spike. Hold horizon follows the trading
// mode and is stamped into the signal metadata.
type FairValueGap struct{}

// NewFairValueGap creates the detector.
func NewFairValueGap() *FairValueGap {
	return &FairValueGap{}
}

// Name returns the registry key.
func (s *FairValueGap) Name() string { return NameFairValueGap }

// MinHistory returns the required enriched history.
func (s *FairValueGap) MinHistory() int { return MinHistory }

// Detect implements the Detector contract.
func (s *FairValueGap) Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error) {
	if !ready(buffer, ctx, s.MinHistory()) {
		return nil, nil
	}
	p := ctx.Params
	n := len(buffer)
	last := buffer[n-1]
	middle := buffer[n-2]
	first := buffer[n-3]

	if last.VolumeRatio() < p.VolumeSpikeRatio {
		return nil, nil
	}

	swingHigh, swingLow := lastSwings(buffer[:n-1], fvgLookback, fractalWing)

	// Bullish imbalance: the last bar's low never reaches back to the
	// first bar's high.
	bullGap := last.Low - first.High
	bearGap := first.Low - last.High

	tpMult := s.targetMult(p)
	hold := s.holdPeriod(p)

	var sig *types.Signal
	switch {
	case bullGap > 0 && pctOfPrice(bullGap, last.Close) >= p.MinGapPct &&
		swingHigh != nil && last.Close > swingHigh.Price:
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionLong,
			entry, middle.Low-srStopATR*last.ATR, entry+tpMult*last.ATR,
			s.confidence(last), []string{"bullish_fvg", "structure_break", "volume_spike"},
			fmt.Sprintf("bullish imbalance %.2f%% with close above swing high %.4f",
				pctOfPrice(bullGap, last.Close), swingHigh.Price))
	case bearGap > 0 && pctOfPrice(bearGap, last.Close) >= p.MinGapPct &&
		swingLow != nil && last.Close < swingLow.Price:
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionShort,
			entry, middle.High+srStopATR*last.ATR, entry-tpMult*last.ATR,
			s.confidence(last), []string{"bearish_fvg", "structure_break", "volume_spike"},
			fmt.Sprintf("bearish imbalance %.2f%% with close below swing low %.4f",
				pctOfPrice(bearGap, last.Close), swingLow.Price))
	default:
		return nil, nil
	}

	sig.Metadata[MetadataHoldPeriod] = hold
	return validated(sig), nil
}

func (s *FairValueGap) targetMult(p Params) float64 {
	switch p.Mode {
	case ModeScalp:
		return p.TPScalpMult
	case ModeSwing:
		return p.TPSwingMult
	default:
		return p.TPDayMult
	}
}

func (s *FairValueGap) holdPeriod(p Params) string {
	switch p.Mode {
	case ModeScalp:
		return HoldIntraday
	case ModeSwing:
		return HoldMultiWeek
	default:
		return HoldMultiDay
	}
}

func (s *FairValueGap) confidence(last types.EnrichedCandle) int {
	conf := 3
	if last.VolumeRatio() >= 1.8 {
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

// pctOfPrice expresses an absolute distance as a percent of price.
func pctOfPrice(distance, price float64) float64 {
	if price == 0 {
		return 0
	}
	return distance / price * 100
}
