package strategy

import (
	"time"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// TradingMode scales stop and target distances.
type TradingMode string

const (
	ModeScalp TradingMode = "scalp"
	ModeDay   TradingMode = "day"
	ModeSwing TradingMode = "swing"
)

// ModeForTimeframe derives the trading mode from the scan interval:
// sub-15m charts scalp, 4h and above hold swings, everything between
// day-trades.
func ModeForTimeframe(tf types.Timeframe) TradingMode {
	d := tf.Duration()
	switch {
	case d < 15*time.Minute:
		return ModeScalp
	case d >= 4*time.Hour:
		return ModeSwing
	default:
		return ModeDay
	}
}

// Params is the per-asset strategy parameter bundle. Overrides tighten
// tolerances and raise volume thresholds for higher-volatility instruments
// and loosen them for quieter ones.
type Params struct {
	Mode TradingMode

	// Volume spike threshold (last volume vs 20-bar mean).
	VolumeSpikeRatio float64
	// RSI band accepted for trend entries.
	RSIMin, RSIMax float64
	// Minimum ADX for trend strategies.
	ADXMin float64

	// Stop distance in ATRs for ATR-stop strategies.
	ATRStopMult float64
	// Target distance in ATRs by hold horizon.
	TPScalpMult float64
	TPDayMult   float64
	TPSwingMult float64

	// Level clustering tolerance, percent of price.
	LevelTolerancePct float64
	// Fibonacci level tolerance, percent of level.
	FibTolerancePct float64
	// Round-number unit (e.g. 1000 for an index, 100 for gold).
	RoundUnit float64

	// Minimum fair-value-gap size, percent of price.
	MinGapPct float64

	// Asian session bounds, hours UTC, and breakout buffer in percent.
	SessionStartHour  int
	SessionEndHour    int
	BreakoutBufferPct float64
}

// baseParams is the crypto tuning every bundle derives from.
func baseParams() Params {
	return Params{
		Mode:              ModeDay,
		VolumeSpikeRatio:  1.3,
		RSIMin:            25,
		RSIMax:            75,
		ADXMin:            15,
		ATRStopMult:       1.5,
		TPScalpMult:       2.0,
		TPDayMult:         2.5,
		TPSwingMult:       3.75,
		LevelTolerancePct: 0.3,
		FibTolerancePct:   0.4,
		RoundUnit:         1000,
		MinGapPct:         0.1,
		SessionStartHour:  0,
		SessionEndHour:    8,
		BreakoutBufferPct: 0.1,
	}
}

// ParamsFor returns the parameter bundle for an asset class.
func ParamsFor(class types.AssetClass) Params {
	p := baseParams()
	switch class {
	case types.AssetGold:
		p.VolumeSpikeRatio = 1.2
		p.RoundUnit = 100
		p.LevelTolerancePct = 0.25
	case types.AssetIndex:
		p.VolumeSpikeRatio = 1.5
		p.LevelTolerancePct = 0.2
		p.ADXMin = 18
	case types.AssetForex:
		p.VolumeSpikeRatio = 1.2
		p.RoundUnit = 0.01
		p.LevelTolerancePct = 0.2
		p.MinGapPct = 0.05
	case types.AssetOther:
		// Conservative defaults for unrecognized instruments.
		p.VolumeSpikeRatio = 1.5
		p.RSIMin = 30
		p.RSIMax = 70
		p.ADXMin = 20
	}
	return p
}
