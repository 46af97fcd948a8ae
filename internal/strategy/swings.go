package strategy

import (
	"math"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// fractalWing is the number of bars on each side a swing extreme must
// dominate.
const fractalWing = 5

// SwingPoint is a fractal swing high or low.
type SwingPoint struct {
	Index int
	Price float64
	High  bool // true for swing high, false for swing low
}

// swingPoints finds fractal swing highs and lows: bars whose high (low)
// is the strict extreme within ±wing bars. The last wing bars cannot be
// confirmed and are never swing points.
func swingPoints(buffer []types.EnrichedCandle, wing int) []SwingPoint {
	var points []SwingPoint
	for i := wing; i < len(buffer)-wing; i++ {
		isHigh, isLow := true, true
		for j := i - wing; j <= i+wing; j++ {
			if j == i {
				continue
			}
			if buffer[j].High >= buffer[i].High {
				isHigh = false
			}
			if buffer[j].Low <= buffer[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			points = append(points, SwingPoint{Index: i, Price: buffer[i].High, High: true})
		}
		if isLow {
			points = append(points, SwingPoint{Index: i, Price: buffer[i].Low, High: false})
		}
	}
	return points
}

// lastSwings returns the most recent swing high and swing low within the
// trailing lookback window.
func lastSwings(buffer []types.EnrichedCandle, lookback, wing int) (high, low *SwingPoint) {
	start := len(buffer) - lookback
	if start < 0 {
		start = 0
	}
	points := swingPoints(buffer[start:], wing)
	for i := range points {
		p := points[i]
		p.Index += start
		if p.High {
			if high == nil || p.Index > high.Index {
				cp := p
				high = &cp
			}
		} else {
			if low == nil || p.Index > low.Index {
				cp := p
				low = &cp
			}
		}
	}
	return high, low
}

// trendSwingCount counts consecutive rising (or falling) swing pairs at
// the end of the swing sequence: rising means each later swing high tops
// the previous one and each later swing low holds above the previous one.
func trendSwingCount(buffer []types.EnrichedCandle, wing int, up bool) int {
	points := swingPoints(buffer, wing)

	var highs, lows []float64
	for _, p := range points {
		if p.High {
			highs = append(highs, p.Price)
		} else {
			lows = append(lows, p.Price)
		}
	}

	count := 0
	for i := len(highs) - 1; i > 0; i-- {
		rising := highs[i] > highs[i-1]
		if rising == up {
			count++
		} else {
			break
		}
	}
	lowCount := 0
	for i := len(lows) - 1; i > 0; i-- {
		rising := lows[i] > lows[i-1]
		if rising == up {
			lowCount++
		} else {
			break
		}
	}
	if lowCount < count {
		return lowCount
	}
	return count
}

// closesToward reports whether the candle is a reversal bar closing back
// toward the target price.
func closesToward(c types.Candle, target float64) bool {
	if target > c.Open {
		return c.Close > c.Open
	}
	return c.Close < c.Open
}

// atrDeclining reports whether ATR has fallen for n consecutive bars, the
// consolidation fingerprint.
func atrDeclining(buffer []types.EnrichedCandle, n int) bool {
	if len(buffer) < n+1 {
		return false
	}
	for i := len(buffer) - n; i < len(buffer); i++ {
		if buffer[i].ATR >= buffer[i-1].ATR {
			return false
		}
	}
	return true
}

// rsiRising reports whether RSI increased on the last bar.
func rsiRising(buffer []types.EnrichedCandle) bool {
	n := len(buffer)
	return n >= 2 && buffer[n-1].RSI > buffer[n-2].RSI
}

// rsiFalling reports whether RSI decreased on the last bar.
func rsiFalling(buffer []types.EnrichedCandle) bool {
	n := len(buffer)
	return n >= 2 && buffer[n-1].RSI < buffer[n-2].RSI
}

// rsiDelta returns the RSI change across the last span bars.
func rsiDelta(buffer []types.EnrichedCandle, span int) float64 {
	n := len(buffer)
	if n < span+1 {
		return 0
	}
	return buffer[n-1].RSI - buffer[n-1-span].RSI
}

// pctDistance returns |a-b| as a percent of b.
func pctDistance(a, b float64) float64 {
	if b == 0 {
		return math.Inf(1)
	}
	return math.Abs(a-b) / math.Abs(b) * 100
}
