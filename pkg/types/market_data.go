package types

import (
	"fmt"
	"time"
)

// Timeframe identifies a candle interval.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Duration returns the interval length for the timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1m:
		return time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether the timeframe is one of the supported intervals.
func (tf Timeframe) Valid() bool {
	return tf.Duration() > 0
}

// ParseTimeframe converts a configuration string into a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.Valid() {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// Candle is a single OHLCV bar. Timestamp is the candle open time in UTC.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// TypicalPrice returns (high+low+close)/3, the price used for VWAP.
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// Bearish reports whether the candle closed below its open.
func (c Candle) Bearish() bool {
	return c.Close < c.Open
}

// Range returns the high-low span of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute open-close span of the candle.
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// EnrichedCandle extends a Candle with computed indicator fields.
// Every float field on a row emitted by the indicator engine is a valid
// finite number; optional indicators are gated by the Has* flags.
type EnrichedCandle struct {
	Candle

	EMAFast  float64 `json:"ema_fast"`
	EMASlow  float64 `json:"ema_slow"`
	EMATrend float64 `json:"ema_trend"`
	EMALong  float64 `json:"ema_long"`

	ATR   float64 `json:"atr"`
	ATRMA float64 `json:"atr_ma"` // 20-bar simple mean of ATR

	RSI     float64 `json:"rsi"`
	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`

	VWAP     float64 `json:"vwap"`
	VolumeMA float64 `json:"volume_ma"`

	StochK float64 `json:"stoch_k"`
	StochD float64 `json:"stoch_d"`

	// HasLongEMA is false when the buffer was too short for the 200-period EMA.
	HasLongEMA bool `json:"has_long_ema"`
	// HasStochastic is false when the stochastic oscillator was not requested.
	HasStochastic bool `json:"has_stochastic"`
}

// VolumeRatio returns last volume relative to the volume moving average.
func (e EnrichedCandle) VolumeRatio() float64 {
	if e.VolumeMA <= 0 {
		return 0
	}
	return e.Volume / e.VolumeMA
}

// ATRRatio returns ATR relative to its 20-bar mean.
func (e EnrichedCandle) ATRRatio() float64 {
	if e.ATRMA <= 0 {
		return 0
	}
	return e.ATR / e.ATRMA
}

// TrendStrength classifies ADX readings.
type TrendStrength string

const (
	TrendNone     TrendStrength = "none"
	TrendWeak     TrendStrength = "weak"
	TrendModerate TrendStrength = "moderate"
	TrendStrong   TrendStrength = "strong"
)

// VolatilityLevel classifies ATR relative to its rolling mean.
type VolatilityLevel string

const (
	VolatilityLow    VolatilityLevel = "low"
	VolatilityNormal VolatilityLevel = "normal"
	VolatilityHigh   VolatilityLevel = "high"
)

// MarketCondition is the regime classification derived from the last
// enriched candle of a buffer.
type MarketCondition struct {
	ADX           float64         `json:"adx"`
	ATR           float64         `json:"atr"`
	ATRRatio      float64         `json:"atr_ratio"`
	VolumeRatio   float64         `json:"volume_ratio"`
	RSI           float64         `json:"rsi"`
	TrendStrength TrendStrength   `json:"trend_strength"`
	Volatility    VolatilityLevel `json:"volatility"`
	IsRanging     bool            `json:"is_ranging"`
}

// AssetClass groups instruments that share parameter bundles.
type AssetClass string

const (
	AssetCrypto AssetClass = "crypto"
	AssetGold   AssetClass = "gold"
	AssetIndex  AssetClass = "index"
	AssetForex  AssetClass = "forex"
	AssetOther  AssetClass = "other"
)
