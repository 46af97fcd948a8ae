package strategy

import (
	"math"
	"sort"
	"time"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Level is a horizontal price level built from clustered swing points or
// structural references.
type Level struct {
	Price   float64
	Touches int
	Round   bool // sits on a round-number unit
}

// minLevelTouches qualifies a clustered level.
const minLevelTouches = 2

// clusterLevels groups swing-point prices lying within tolerancePct of
// each other into levels, ordered ascending by price.
func clusterLevels(points []SwingPoint, tolerancePct, roundUnit float64) []Level {
	if len(points) == 0 {
		return nil
	}
	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}
	sort.Float64s(prices)

	var levels []Level
	clusterStart := 0
	for i := 1; i <= len(prices); i++ {
		if i < len(prices) && pctDistance(prices[i], prices[clusterStart]) <= tolerancePct {
			continue
		}
		cluster := prices[clusterStart:i]
		sum := 0.0
		for _, p := range cluster {
			sum += p
		}
		mean := sum / float64(len(cluster))
		levels = append(levels, Level{
			Price:   mean,
			Touches: len(cluster),
			Round:   isRoundNumber(mean, roundUnit, tolerancePct),
		})
		clusterStart = i
	}
	return levels
}

// qualifiedLevels filters clustered levels down to those with enough
// touches to matter.
func qualifiedLevels(buffer []types.EnrichedCandle, tolerancePct, roundUnit float64) []Level {
	points := swingPoints(buffer, fractalWing)
	var out []Level
	for _, lvl := range clusterLevels(points, tolerancePct, roundUnit) {
		if lvl.Touches >= minLevelTouches {
			out = append(out, lvl)
		}
	}
	return out
}

// isRoundNumber reports whether the price sits within tolerancePct of a
// multiple of the asset's round unit.
func isRoundNumber(price, unit, tolerancePct float64) bool {
	if unit <= 0 {
		return false
	}
	nearest := math.Round(price/unit) * unit
	if nearest == 0 {
		return false
	}
	return pctDistance(price, nearest) <= tolerancePct
}

// nearestRound returns the round-number level closest to price.
func nearestRound(price, unit float64) float64 {
	if unit <= 0 {
		return 0
	}
	return math.Round(price/unit) * unit
}

// nextLevelAbove returns the lowest level strictly above price, or nil.
func nextLevelAbove(levels []Level, price float64) *Level {
	for i := range levels {
		if levels[i].Price > price {
			return &levels[i]
		}
	}
	return nil
}

// nextLevelBelow returns the highest level strictly below price, or nil.
func nextLevelBelow(levels []Level, price float64) *Level {
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i].Price < price {
			return &levels[i]
		}
	}
	return nil
}

// keyLevels collects structural reference levels: prior day high/low,
// prior week high/low, and the round numbers bracketing the last close.
func keyLevels(buffer []types.EnrichedCandle, roundUnit float64) []Level {
	var out []Level
	last := buffer[len(buffer)-1]

	if hi, lo, ok := priorPeriodRange(buffer, 24*time.Hour); ok {
		out = append(out, Level{Price: hi, Touches: 1}, Level{Price: lo, Touches: 1})
	}
	if hi, lo, ok := priorPeriodRange(buffer, 7*24*time.Hour); ok {
		out = append(out, Level{Price: hi, Touches: 1}, Level{Price: lo, Touches: 1})
	}
	if roundUnit > 0 {
		below := math.Floor(last.Close/roundUnit) * roundUnit
		if below > 0 {
			out = append(out, Level{Price: below, Touches: 1, Round: true})
		}
		out = append(out, Level{Price: below + roundUnit, Touches: 1, Round: true})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// priorPeriodRange returns the high/low of the period (day or week)
// preceding the one the last candle belongs to.
func priorPeriodRange(buffer []types.EnrichedCandle, period time.Duration) (hi, lo float64, ok bool) {
	last := buffer[len(buffer)-1].Timestamp.UTC()
	currentStart := last.Truncate(period)
	priorStart := currentStart.Add(-period)

	lo = math.Inf(1)
	for _, c := range buffer {
		ts := c.Timestamp.UTC()
		if ts.Before(priorStart) || !ts.Before(currentStart) {
			continue
		}
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return hi, lo, true
}

// sessionRange returns the high/low of today's configured session window
// and whether the session window is complete for the last candle's day.
func sessionRange(buffer []types.EnrichedCandle, startHour, endHour int) (hi, lo float64, done bool) {
	last := buffer[len(buffer)-1].Timestamp.UTC()
	day := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	sessionStart := day.Add(time.Duration(startHour) * time.Hour)
	sessionEnd := day.Add(time.Duration(endHour) * time.Hour)

	lo = math.Inf(1)
	found := false
	for _, c := range buffer {
		ts := c.Timestamp.UTC()
		if ts.Before(sessionStart) || !ts.Before(sessionEnd) {
			continue
		}
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
		found = true
	}
	if !found {
		return 0, 0, false
	}
	return hi, lo, !last.Before(sessionEnd)
}
