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

// CryptoCompareProvider serves crypto candles from the CryptoCompare
// aggregator. It sits between the native exchange and the plain HTTP
// fallback in the crypto priority chain.
type CryptoCompareProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// NewCryptoCompareProvider creates an aggregator-backed candle provider.
// The API key is optional; anonymous access has a lower ceiling.
func NewCryptoCompareProvider(apiKey string) *CryptoCompareProvider {
	return &CryptoCompareProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://min-api.cryptocompare.com",
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(0.5), 3),
	}
}

// Name identifies the provider.
func (p *CryptoCompareProvider) Name() string { return "cryptocompare" }

// Supports reports crypto-only coverage.
func (p *CryptoCompareProvider) Supports(class types.AssetClass) bool {
	return class == types.AssetCrypto
}

// Fetch returns the last count candles aggregated across exchanges.
func (p *CryptoCompareProvider) Fetch(ctx context.Context, inst datasource.Instrument, tf types.Timeframe, count int) ([]types.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, scanerrors.NewTimeoutError(p.Name(), "ratelimit", err)
	}

	endpoint, aggregate, ok := cryptoCompareEndpoint(tf)
	if !ok {
		return nil, scanerrors.New(scanerrors.ErrorCategoryUnavailable, p.Name(), "fetch",
			"unsupported timeframe "+string(tf))
	}

	url := fmt.Sprintf("%s/data/v2/%s?fsym=%s&tsym=USD&limit=%d&aggregate=%d",
		p.baseURL, endpoint, inst.AggregatorSymbol, count, aggregate)
	if p.apiKey != "" {
		url += "&api_key=" + p.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorCategoryTransient, p.Name(), "fetch")
	}

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
		Response string `json:"Response"`
		Message  string `json:"Message"`
		Data     struct {
			Data []struct {
				Time       int64   `json:"time"`
				Open       float64 `json:"open"`
				High       float64 `json:"high"`
				Low        float64 `json:"low"`
				Close      float64 `json:"close"`
				VolumeFrom float64 `json:"volumefrom"`
			} `json:"Data"`
		} `json:"Data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorCategoryTransient, p.Name(), "decode")
	}
	if payload.Response == "Error" {
		return nil, scanerrors.New(scanerrors.ErrorCategoryUnavailable, p.Name(), "fetch", payload.Message)
	}

	candles := make([]types.Candle, 0, len(payload.Data.Data))
	for _, row := range payload.Data.Data {
		candles = append(candles, types.Candle{
			Timestamp: time.Unix(row.Time, 0).UTC(),
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.VolumeFrom,
		})
	}
	return candles, nil
}

// cryptoCompareEndpoint maps a timeframe onto the histo endpoint family
// and its aggregate multiplier.
func cryptoCompareEndpoint(tf types.Timeframe) (endpoint string, aggregate int, ok bool) {
	switch tf {
	case types.Timeframe1m:
		return "histominute", 1, true
	case types.Timeframe5m:
		return "histominute", 5, true
	case types.Timeframe15m:
		return "histominute", 15, true
	case types.Timeframe1h:
		return "histohour", 1, true
	case types.Timeframe4h:
		return "histohour", 4, true
	case types.Timeframe1d:
		return "histoday", 1, true
	default:
		return "", 0, false
	}
}
