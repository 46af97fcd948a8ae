package indicators

import (
	"math"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Series helpers compute whole-buffer indicator columns. Undefined warmup
// rows are NaN; the enricher trims them before anything downstream sees
// the buffer.

var nan = math.NaN()

// emaSeries computes an exponential moving average with smoothing constant
// 2/(period+1). The first value is seeded by the simple mean of the first
// period inputs; indices before period-1 are NaN.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = nan
	}
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// smaSeries computes a simple moving average; indices before period-1 are NaN.
func smaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = nan
	}
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// trueRangeSeries computes max(h-l, |h-prevClose|, |l-prevClose|) per bar.
// The first bar has no previous close and uses the plain high-low range.
func trueRangeSeries(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			out[i] = c.High - c.Low
			continue
		}
		prev := candles[i-1].Close
		out[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev), math.Abs(c.Low-prev)))
	}
	return out
}

// wilderSmooth applies Wilder's smoothing: seed with the simple mean of the
// first period values, then s[i] = (s[i-1]*(period-1)+v[i])/period.
func wilderSmooth(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = nan
	}
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)
	for i := period; i < len(values); i++ {
		out[i] = (out[i-1]*float64(period-1) + values[i]) / float64(period)
	}
	return out
}

// atrSeries computes the Wilder-smoothed average true range.
func atrSeries(candles []types.Candle, period int) []float64 {
	return wilderSmooth(trueRangeSeries(candles), period)
}

// rsiSeries computes the Wilder-smoothed relative strength index.
// When the average loss is zero the value is 100; when both averages are
// zero it is 50. Indices before period are NaN.
func rsiSeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = nan
	}
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// adxSeries computes the conventional +DI/-DI directional index with
// Wilder smoothing. ADX is defined from index 2*period-1; the DI columns
// are defined from index period.
func adxSeries(candles []types.Candle, period int) (adx, plusDI, minusDI []float64) {
	n := len(candles)
	adx = make([]float64, n)
	plusDI = make([]float64, n)
	minusDI = make([]float64, n)
	for i := 0; i < n; i++ {
		adx[i], plusDI[i], minusDI[i] = nan, nan, nan
	}
	if period <= 0 || n < 2*period {
		return adx, plusDI, minusDI
	}

	tr := trueRangeSeries(candles)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder running sums seeded over the first period bars after index 0.
	var trSum, plusSum, minusSum float64
	for i := 1; i <= period; i++ {
		trSum += tr[i]
		plusSum += plusDM[i]
		minusSum += minusDM[i]
	}

	dx := make([]float64, n)
	for i := range dx {
		dx[i] = nan
	}

	for i := period; i < n; i++ {
		if i > period {
			trSum = trSum - trSum/float64(period) + tr[i]
			plusSum = plusSum - plusSum/float64(period) + plusDM[i]
			minusSum = minusSum - minusSum/float64(period) + minusDM[i]
		}
		if trSum == 0 {
			plusDI[i], minusDI[i], dx[i] = 0, 0, 0
			continue
		}
		plusDI[i] = 100 * plusSum / trSum
		minusDI[i] = 100 * minusSum / trSum
		diSum := plusDI[i] + minusDI[i]
		if diSum == 0 {
			dx[i] = 0
		} else {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / diSum
		}
	}

	// ADX seeds with the mean DX of the first period defined values, then
	// Wilder-smooths.
	seedEnd := 2*period - 1
	sum := 0.0
	for i := period; i <= seedEnd; i++ {
		sum += dx[i]
	}
	adx[seedEnd] = sum / float64(period)
	for i := seedEnd + 1; i < n; i++ {
		adx[i] = (adx[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return adx, plusDI, minusDI
}

// vwapSeries computes the cumulative volume-weighted average price over
// typical prices, restarting at each reset boundary.
func vwapSeries(candles []types.Candle, reset VWAPReset, sessionStartHour int) []float64 {
	out := make([]float64, len(candles))
	var pvSum, vSum float64
	for i, c := range candles {
		if i > 0 && vwapBoundary(candles[i-1], c, reset, sessionStartHour) {
			pvSum, vSum = 0, 0
		}
		pvSum += c.TypicalPrice() * c.Volume
		vSum += c.Volume
		if vSum == 0 {
			out[i] = c.TypicalPrice()
		} else {
			out[i] = pvSum / vSum
		}
	}
	return out
}

func vwapBoundary(prev, cur types.Candle, reset VWAPReset, sessionStartHour int) bool {
	p, c := prev.Timestamp.UTC(), cur.Timestamp.UTC()
	switch reset {
	case VWAPResetSession:
		// Restart when the candle crosses into the session start hour.
		return p.Hour() < sessionStartHour && c.Hour() >= sessionStartHour ||
			c.YearDay() != p.YearDay() && c.Hour() >= sessionStartHour
	default:
		return c.YearDay() != p.YearDay() || c.Year() != p.Year()
	}
}

// stochasticSeries computes the smoothed stochastic oscillator %K and %D.
func stochasticSeries(candles []types.Candle, p StochasticParams) (k, d []float64) {
	n := len(candles)
	rawK := make([]float64, n)
	for i := range rawK {
		rawK[i] = nan
	}

	for i := p.KPeriod - 1; i < n; i++ {
		hi, lo := candles[i].High, candles[i].Low
		for j := i - p.KPeriod + 1; j <= i; j++ {
			hi = math.Max(hi, candles[j].High)
			lo = math.Min(lo, candles[j].Low)
		}
		if hi == lo {
			rawK[i] = 50
		} else {
			rawK[i] = 100 * (candles[i].Close - lo) / (hi - lo)
		}
	}

	k = nanAwareSMA(rawK, p.Smooth)
	d = nanAwareSMA(k, p.DPeriod)
	return k, d
}

// nanAwareSMA averages the last period values, staying NaN until the full
// window is defined.
func nanAwareSMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = nan
	}
	if period <= 1 {
		copy(out, values)
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if ok {
			out[i] = sum / float64(period)
		}
	}
	return out
}
