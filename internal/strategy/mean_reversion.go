package strategy

import (
	"fmt"
	"math"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Mean-reversion stretch and exhaustion thresholds.
const (
	reversionStretchATR  = 1.5
	reversionRSIOverbought = 80.0
	reversionRSIOversold   = 20.0
	reversionStopATR       = 0.5
)

// MeanReversion fades a price stretched beyond 1.5 ATR from VWAP with an
// exhausted RSI, once a reversal bar prints back toward VWAP. The target
// is VWAP itself.
type MeanReversion struct{}

// NewMeanReversion creates the detector.
func NewMeanReversion() *MeanReversion {
	return &MeanReversion{}
}

// Name returns the registry key.
func (s *MeanReversion) Name() string { return NameMeanReversion }

// MinHistory returns the required enriched history.
func (s *MeanReversion) MinHistory() int { return MinHistory }

// Detect implements the Detector contract.
func (s *MeanReversion) Detect(buffer []types.EnrichedCandle, ctx Context) (*types.Signal, error) {
	if !ready(buffer, ctx, s.MinHistory()) {
		return nil, nil
	}
	last := buffer[len(buffer)-1]

	stretch := math.Abs(last.Close - last.VWAP)
	if stretch <= reversionStretchATR*last.ATR {
		return nil, nil
	}
	if !closesToward(last.Candle, last.VWAP) {
		return nil, nil
	}

	var sig *types.Signal
	switch {
	case last.Close > last.VWAP && last.RSI > reversionRSIOverbought:
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionShort,
			entry, last.High+reversionStopATR*last.ATR, last.VWAP,
			s.confidence(last), []string{"vwap_stretch", "rsi_exhaustion", "reversal_bar"},
			fmt.Sprintf("%.1f ATR above VWAP with RSI %.1f, fading to VWAP", stretch/last.ATR, last.RSI))
	case last.Close < last.VWAP && last.RSI < reversionRSIOversold:
		entry := last.Close
		sig = newSignal(ctx, buffer, s.Name(), types.DirectionLong,
			entry, last.Low-reversionStopATR*last.ATR, last.VWAP,
			s.confidence(last), []string{"vwap_stretch", "rsi_exhaustion", "reversal_bar"},
			fmt.Sprintf("%.1f ATR below VWAP with RSI %.1f, reverting to VWAP", stretch/last.ATR, last.RSI))
	default:
		return nil, nil
	}

	sig.Metadata[MetadataHoldPeriod] = HoldIntraday
	return validated(sig), nil
}

func (s *MeanReversion) confidence(last types.EnrichedCandle) int {
	conf := 3
	if last.RSI > 85 || last.RSI < 15 {
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
