package strategy

import (
	"fmt"
	"math"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Pullback structure thresholds.
const (
	pullbackMinSwings     = 3
	pullbackMaxRetrace    = 0.618
	pullbackConsolidation = 3
)

// TrendPullback buys (or sells) a shallow retrace to the slow EMA inside
// an established swing-structure trend with aligned EMAs.
type TrendPullback struct{}

// NewTrendPullback creates the detector.
func NewTrendPullback() *TrendPullback {
	return &TrendPullback{}
}

// Name returns the registry key.
func (s *TrendPullback) Name() string { return NameTrendPullback }

// MinHistory returns the required enriched history. Pullbacks lean on the
// long EMA, so the trend window applies.
func (s *TrendPullback) MinHistory() int { return MinHistoryTrend }

// Detect implements the Detector contract.
func (s *TrendPullback) Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error) {
	if !ready(buffer, ctx, s.MinHistory()) {
		return nil, nil
	}
	p := ctx.Params
	last := buffer[len(buffer)-1]

	// Consolidation kills the setup: a pullback inside fading volatility is
	// usually distribution, not continuation.
	if atrDeclining(buffer, pullbackConsolidation) {
		return nil, nil
	}

	swingHigh, swingLow := lastSwings(buffer, fibLookback, fractalWing)
	if swingHigh == nil || swingLow == nil {
		return nil, nil
	}
	leg := swingHigh.Price - swingLow.Price
	if leg <= 0 {
		return nil, nil
	}

	alignedUp := last.EMAFast > last.EMASlow && last.EMASlow > last.EMATrend
	alignedDown := last.EMAFast < last.EMASlow && last.EMASlow < last.EMATrend

	var sig *types.Signal
	switch {
	case alignedUp && trendSwingCount(buffer, fractalWing, true) >= pullbackMinSwings:
		retrace := (swingHigh.Price - last.Close) / leg
		if retrace < 0 || retrace > pullbackMaxRetrace {
			return nil, nil
		}
		// Rejection at the slow EMA: wick touches it, close holds above.
		if pctDistance(last.Low, last.EMASlow) > p.LevelTolerancePct || last.Close <= last.EMASlow {
			return nil, nil
		}
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionLong,
			entry, math.Min(swingLow.Price, last.EMASlow-srStopATR*last.ATR), swingHigh.Price,
			s.confidence(last, retrace), []string{"trend_structure", "ema_alignment", "ema_rejection"},
			fmt.Sprintf("%.0f%% pullback rejected at slow EMA in rising structure", retrace*100))
	case alignedDown && trendSwingCount(buffer, fractalWing, false) >= pullbackMinSwings:
		retrace := (last.Close - swingLow.Price) / leg
		if retrace < 0 || retrace > pullbackMaxRetrace {
			return nil, nil
		}
		if pctDistance(last.High, last.EMASlow) > p.LevelTolerancePct || last.Close >= last.EMASlow {
			return nil, nil
		}
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionShort,
			entry, math.Max(swingHigh.Price, last.EMASlow+srStopATR*last.ATR), swingLow.Price,
			s.confidence(last, retrace), []string{"trend_structure", "ema_alignment", "ema_rejection"},
			fmt.Sprintf("%.0f%% pullback rejected at slow EMA in falling structure", retrace*100))
	default:
		return nil, nil
	}

	sig.Metadata[MetadataHoldPeriod] = HoldMultiWeek
	return validated(sig), nil
}

func (s *TrendPullback) confidence(last types.EnrichedCandle, retrace float64) int {
	conf := 3
	if retrace <= 0.5 {
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
