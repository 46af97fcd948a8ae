package strategy

import (
	"fmt"
	"math"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Fibonacci lookback and quality thresholds.
const (
	fibLookback = 50
	fibMinRR    = 1.5
)

// fibRatios are the retracement levels, ordered shallow to deep.
var fibRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}

// goldenRatios earn top confidence.
var goldenRatios = map[float64]bool{0.382: true, 0.618: true}

// FibRetracement detects a pullback into a retracement level of the most
// recent swing leg, with a reversal candle and volume confirmation.
type FibRetracement struct{}

// NewFibRetracement creates the detector.
func NewFibRetracement() *FibRetracement {
	return &FibRetracement{}
}

// Name returns the registry key.
func (s *FibRetracement) Name() string { return NameFibRetracement }

// MinHistory returns the required enriched history.
func (s *FibRetracement) MinHistory() int { return MinHistory }

// Detect implements the Detector contract.
func (s *FibRetracement) Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error) {
	if !ready(buffer, ctx, s.MinHistory()) {
		return nil, nil
	}
	p := ctx.Params
	last := buffer[len(buffer)-1]

	if last.VolumeRatio() < p.VolumeSpikeRatio {
		return nil, nil
	}

	swingHigh, swingLow := lastSwings(buffer, fibLookback, fractalWing)
	if swingHigh == nil || swingLow == nil || swingHigh.Price <= swingLow.Price {
		return nil, nil
	}
	legUp := swingLow.Index < swingHigh.Index
	leg := swingHigh.Price - swingLow.Price

	for _, ratio := range fibRatios {
		var level, target, stop float64
		var dir types.Direction
		if legUp {
			// Upward leg retracing down; buy the level, target the high.
			level = swingHigh.Price - ratio*leg
			target = swingHigh.Price
			dir = types.DirectionLong
		} else {
			level = swingLow.Price + ratio*leg
			target = swingLow.Price
			dir = types.DirectionShort
		}
		if pctDistance(last.Close, level) > p.FibTolerancePct {
			continue
		}
		if !closesToward(last.Candle, target) {
			continue
		}
		if legUp {
			stop = nextFibBeyond(swingHigh.Price, leg, ratio, true)
		} else {
			stop = nextFibBeyond(swingLow.Price, leg, ratio, false)
		}

		entry := last.Close
		sig := newSignal(ctx, buffer, s.Name(), dir,
			entry, stop, target,
			s.confidence(ratio, last), []string{"fib_retracement", "reversal_bar", "volume_spike"},
			fmt.Sprintf("pullback into %.1f%% retracement at %.4f, targeting swing extreme %.4f",
				ratio*100, level, target))
		if sig.RiskReward < fibMinRR {
			return nil, nil
		}
		sig.Metadata[MetadataHoldPeriod] = HoldMultiDay
		if goldenRatios[ratio] {
			sig.Metadata["fib_golden"] = "true"
		}
		return validated(sig), nil
	}
	return nil, nil
}

// nextFibBeyond returns the next deeper retracement level past ratio, to
// sit the stop one level behind the entry zone.
func nextFibBeyond(extreme, leg, ratio float64, legUp bool) float64 {
	next := 1.0
	for _, r := range fibRatios {
		if r > ratio {
			next = r
			break
		}
	}
	if legUp {
		return extreme - next*leg
	}
	return extreme + next*leg
}

func (s *FibRetracement) confidence(ratio float64, last types.EnrichedCandle) int {
	if goldenRatios[ratio] {
		return 5
	}
	conf := 3
	if last.VolumeRatio() >= 1.5 {
		conf++
	}
	if math.Abs(ratio-0.5) < 1e-9 {
		conf++
	}
	if conf > 5 {
		conf = 5
	}
	return conf
}
