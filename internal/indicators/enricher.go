package indicators

import (
	"fmt"
	"math"

	scanerrors "github.com/quantsignal/signal-scanner/internal/errors"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// minOutputRows is the smallest enriched buffer the engine will emit.
// Strategies assume at least this much indicator-backed history.
const minOutputRows = 50

// zeroVolumeWindow is how many trailing bars must carry real volume.
const zeroVolumeWindow = 20

const component = "indicators"

// Enrich computes the configured indicator set over the candle buffer and
// returns a new buffer of enriched candles. The input is not mutated.
//
// The engine fails loudly instead of emitting NaNs: malformed input returns
// an INVALID_DATA error with the violated rule, and a buffer whose valid
// indicator suffix is shorter than minOutputRows returns
// INSUFFICIENT_HISTORY. Warmup rows with undefined critical indicators are
// trimmed so every emitted row carries finite values for all of them.
func Enrich(buffer []types.Candle, params Params) ([]types.EnrichedCandle, error) {
	if err := validate(buffer, params); err != nil {
		return nil, err
	}

	closes := make([]float64, len(buffer))
	volumes := make([]float64, len(buffer))
	for i, c := range buffer {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	emaFast := emaSeries(closes, params.EMAFastPeriod)
	emaSlow := emaSeries(closes, params.EMASlowPeriod)
	emaTrend := emaSeries(closes, params.EMATrendPeriod)
	emaLong := emaSeries(closes, params.EMALongPeriod)
	atr := atrSeries(buffer, params.ATRPeriod)
	atrMA := nanAwareSMA(atr, params.ATRMAPeriod)
	rsi := rsiSeries(closes, params.RSIPeriod)
	adx, plusDI, minusDI := adxSeries(buffer, params.ADXPeriod)
	volumeMA := smaSeries(volumes, params.VolumeMAPeriod)
	vwap := vwapSeries(buffer, params.VWAPReset, params.SessionStartHour)

	var stochK, stochD []float64
	if params.Stochastic != nil {
		stochK, stochD = stochasticSeries(buffer, *params.Stochastic)
	}

	first := params.firstValidIndex()
	if len(buffer)-first < minOutputRows {
		return nil, scanerrors.NewInsufficientHistoryError(component, len(buffer), params.MinRows())
	}

	out := make([]types.EnrichedCandle, 0, len(buffer)-first)
	for i := first; i < len(buffer); i++ {
		row := types.EnrichedCandle{
			Candle:   buffer[i],
			EMAFast:  emaFast[i],
			EMASlow:  emaSlow[i],
			EMATrend: emaTrend[i],
			ATR:      atr[i],
			ATRMA:    atrMA[i],
			RSI:      rsi[i],
			ADX:      adx[i],
			PlusDI:   plusDI[i],
			MinusDI:  minusDI[i],
			VWAP:     vwap[i],
			VolumeMA: volumeMA[i],
		}
		if !math.IsNaN(emaLong[i]) {
			row.EMALong = emaLong[i]
			row.HasLongEMA = true
		}
		if stochK != nil && !math.IsNaN(stochK[i]) && !math.IsNaN(stochD[i]) {
			row.StochK = stochK[i]
			row.StochD = stochD[i]
			row.HasStochastic = true
		}
		if err := checkFinite(row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// validate asserts the structural contract of the input buffer.
func validate(buffer []types.Candle, params Params) error {
	if len(buffer) == 0 {
		return scanerrors.NewInvalidDataError(component, "empty buffer")
	}
	if len(buffer) < params.MinRows() {
		return scanerrors.NewInsufficientHistoryError(component, len(buffer), params.MinRows())
	}

	for i, c := range buffer {
		if c.Volume < 0 {
			return scanerrors.NewInvalidDataError(component,
				fmt.Sprintf("negative volume %.4f at row %d", c.Volume, i))
		}
		if c.High < c.Low {
			return scanerrors.NewInvalidDataError(component,
				fmt.Sprintf("high %.8f below low %.8f at row %d", c.High, c.Low, i))
		}
		if !finite(c.Open) || !finite(c.High) || !finite(c.Low) || !finite(c.Close) || !finite(c.Volume) {
			return scanerrors.NewInvalidDataError(component,
				fmt.Sprintf("non-finite OHLCV value at row %d", i))
		}
		if i > 0 && !buffer[i].Timestamp.After(buffer[i-1].Timestamp) {
			return scanerrors.NewInvalidDataError(component,
				fmt.Sprintf("timestamps not strictly increasing at row %d", i))
		}
	}

	start := len(buffer) - zeroVolumeWindow
	if start < 0 {
		start = 0
	}
	for i := start; i < len(buffer); i++ {
		if buffer[i].Volume == 0 {
			return scanerrors.NewInvalidDataError(component,
				fmt.Sprintf("zero volume within last %d bars (row %d)", zeroVolumeWindow, i))
		}
	}
	return nil
}

func checkFinite(row types.EnrichedCandle) error {
	for name, v := range map[string]float64{
		"ema_fast":  row.EMAFast,
		"ema_slow":  row.EMASlow,
		"ema_trend": row.EMATrend,
		"atr":       row.ATR,
		"atr_ma":    row.ATRMA,
		"rsi":       row.RSI,
		"adx":       row.ADX,
		"vwap":      row.VWAP,
		"volume_ma": row.VolumeMA,
	} {
		if !finite(v) {
			return scanerrors.NewInvalidDataError(component,
				fmt.Sprintf("non-finite %s at %s", name, row.Timestamp.UTC().Format("2006-01-02T15:04:05Z")))
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
