package regime

import (
	"math"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// ADX thresholds for trend-strength classification.
const (
	adxNone     = 15.0
	adxWeak     = 20.0
	adxModerate = 25.0
)

// ATR-ratio thresholds for volatility classification.
const (
	atrRatioLow  = 0.8
	atrRatioHigh = 1.5
)

// A market is ranging when the trend is weak and price sits within one ATR
// of VWAP.
const rangingVWAPDistance = 1.0

// Analyzer classifies market regime from the last enriched candle.
type Analyzer struct{}

// NewAnalyzer creates a regime analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Classify derives a MarketCondition from the enriched buffer. The buffer
// must be non-empty; the indicator engine guarantees finite values on every
// row it emits.
func (a *Analyzer) Classify(buffer []types.EnrichedCandle) types.MarketCondition {
	last := buffer[len(buffer)-1]

	cond := types.MarketCondition{
		ADX:         last.ADX,
		ATR:         last.ATR,
		ATRRatio:    last.ATRRatio(),
		VolumeRatio: last.VolumeRatio(),
		RSI:         last.RSI,
	}

	switch {
	case last.ADX < adxNone:
		cond.TrendStrength = types.TrendNone
	case last.ADX < adxWeak:
		cond.TrendStrength = types.TrendWeak
	case last.ADX < adxModerate:
		cond.TrendStrength = types.TrendModerate
	default:
		cond.TrendStrength = types.TrendStrong
	}

	switch {
	case cond.ATRRatio < atrRatioLow:
		cond.Volatility = types.VolatilityLow
	case cond.ATRRatio > atrRatioHigh:
		cond.Volatility = types.VolatilityHigh
	default:
		cond.Volatility = types.VolatilityNormal
	}

	if last.ATR > 0 {
		vwapDistance := math.Abs(last.Close-last.VWAP) / last.ATR
		cond.IsRanging = last.ADX < adxWeak && vwapDistance < rangingVWAPDistance
	}

	return cond
}
