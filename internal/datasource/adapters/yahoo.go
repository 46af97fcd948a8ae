package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	scanerrors "github.com/quantsignal/signal-scanner/internal/errors"
	"github.com/quantsignal/signal-scanner/internal/datasource"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// YahooProvider serves index, forex, and gold candles from the Yahoo
// Finance chart API. It is the primary quote source for non-crypto
// instruments.
type YahooProvider struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewYahooProvider creates a Yahoo-backed candle provider.
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://query1.finance.yahoo.com",
		limiter: rate.NewLimiter(rate.Limit(1), 4),
	}
}

// Name identifies the provider.
func (p *YahooProvider) Name() string { return "yahoo" }

// Supports covers everything except crypto.
func (p *YahooProvider) Supports(class types.AssetClass) bool {
	switch class {
	case types.AssetGold, types.AssetIndex, types.AssetForex, types.AssetOther:
		return true
	}
	return false
}

// Fetch returns the last count candles for the instrument's quote ticker.
func (p *YahooProvider) Fetch(ctx context.Context, inst datasource.Instrument, tf types.Timeframe, count int) ([]types.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, scanerrors.NewTimeoutError(p.Name(), "ratelimit", err)
	}

	interval, rng, ok := yahooWindow(tf, count)
	if !ok {
		return nil, scanerrors.New(scanerrors.ErrorCategoryUnavailable, p.Name(), "fetch",
			"unsupported timeframe "+string(tf))
	}

	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		p.baseURL, inst.QuoteSymbol, interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorCategoryTransient, p.Name(), "fetch")
	}
	req.Header.Set("User-Agent", "signal-scanner/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, scanerrors.NewTimeoutError(p.Name(), "fetch", err)
		}
		return nil, scanerrors.Wrap(err, scanerrors.ErrorCategoryTransient, p.Name(), "fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, scanerrors.NewRateLimitError(p.Name(), "fetch",
			fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, scanerrors.New(scanerrors.ErrorCategoryUnavailable, p.Name(), "fetch",
			fmt.Sprintf("status %d", resp.StatusCode))
	}

	var payload struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Open   []float64 `json:"open"`
						High   []float64 `json:"high"`
						Low    []float64 `json:"low"`
						Close  []float64 `json:"close"`
						Volume []float64 `json:"volume"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorCategoryTransient, p.Name(), "decode")
	}
	if payload.Chart.Error != nil {
		return nil, scanerrors.New(scanerrors.ErrorCategoryUnavailable, p.Name(), "fetch",
			payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := payload.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	candles := make([]types.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.Close) {
			break
		}
		// Yahoo pads unfinished bars with zeros; skip them.
		if quote.Open[i] == 0 && quote.Close[i] == 0 {
			continue
		}
		candles = append(candles, types.Candle{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      quote.Open[i],
			High:      quote.High[i],
			Low:       quote.Low[i],
			Close:     quote.Close[i],
			Volume:    quote.Volume[i],
		})
	}
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return candles, nil
}

// yahooWindow maps a timeframe and count onto Yahoo's interval/range pair.
func yahooWindow(tf types.Timeframe, count int) (interval, rng string, ok bool) {
	switch tf {
	case types.Timeframe1m:
		return "1m", "1d", true
	case types.Timeframe5m:
		if count > 576 {
			return "5m", "5d", true
		}
		return "5m", "2d", true
	case types.Timeframe15m:
		return "15m", "5d", true
	case types.Timeframe1h:
		return "1h", "1mo", true
	case types.Timeframe4h:
		// Yahoo has no native 4h interval.
		return "", "", false
	case types.Timeframe1d:
		return "1d", "1y", true
	default:
		return "", "", false
	}
}
