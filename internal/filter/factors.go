package filter

import (
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// The canonical confluence factors, evaluated against the last enriched
// candle at filter time.
const (
	factorVWAPSide     = "price_vs_vwap"
	factorEMAAlignment = "ema_alignment"
	factorVolumeSpike  = "volume_spike"
	factorRSIBand      = "rsi_band"
	factorADXStrength  = "adx_strength"
	factorTrendFollow  = "trend_follow"
	factorNoOpposing   = "no_recent_opposing"

	factorCount = 7
)

// Factor evaluation thresholds.
const (
	factorVolumeRatio = 1.3
	factorRSILow      = 25.0
	factorRSIHigh     = 75.0
	factorADXMin      = 20.0
)

// metFactors evaluates the canonical factors for a signal. The caller
// holds the filter lock (the opposing-signal factor reads recent memory).
func (f *QualityFilter) metFactors(sig *types.Signal, last types.EnrichedCandle) []string {
	var met []string

	long := sig.Direction == types.DirectionLong
	if (long && last.Close > last.VWAP) || (!long && last.Close < last.VWAP) {
		met = append(met, factorVWAPSide)
	}
	if (long && last.EMAFast > last.EMASlow) || (!long && last.EMAFast < last.EMASlow) {
		met = append(met, factorEMAAlignment)
	}
	if last.VolumeRatio() >= factorVolumeRatio {
		met = append(met, factorVolumeSpike)
	}
	if last.RSI >= factorRSILow && last.RSI <= factorRSIHigh {
		met = append(met, factorRSIBand)
	}
	if last.ADX >= factorADXMin {
		met = append(met, factorADXStrength)
	}
	if (long && last.Close > last.EMATrend) || (!long && last.Close < last.EMATrend) {
		met = append(met, factorTrendFollow)
	}
	if !f.recentOpposingLocked(sig) {
		met = append(met, factorNoOpposing)
	}
	return met
}

// recentOpposingLocked reports whether the duplicate window holds an
// opposite-direction signal for the symbol.
func (f *QualityFilter) recentOpposingLocked(sig *types.Signal) bool {
	for _, prior := range f.recent[sig.Symbol] {
		if prior.direction == sig.Direction.Opposite() {
			return true
		}
	}
	return false
}

// mergeFactors appends the filter's met factors to the strategy's own,
// skipping names already present.
func mergeFactors(existing, met []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, name := range existing {
		seen[name] = true
	}
	for _, name := range met {
		if !seen[name] {
			existing = append(existing, name)
		}
	}
	return existing
}

// confidenceFrom maps the met-factor count, plus strategy bonuses carried
// in the signal metadata, onto the 1..5 confidence scale.
func confidenceFrom(met []string, sig *types.Signal) int {
	conf := 1
	switch {
	case len(met) >= 7:
		conf = 5
	case len(met) >= 6:
		conf = 4
	case len(met) >= 4:
		conf = 3
	case len(met) >= 3:
		conf = 2
	}
	if sig.Metadata["fib_golden"] == "true" || sig.Metadata["round_number_level"] == "true" {
		conf++
	}
	if conf > 5 {
		conf = 5
	}
	return conf
}
