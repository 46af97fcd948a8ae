package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	scanerrors "github.com/quantsignal/signal-scanner/internal/errors"
	"github.com/quantsignal/signal-scanner/internal/datasource"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// BinanceProvider serves crypto candles from the public Binance REST API.
// It needs no credentials and acts as the crypto HTTP fallback.
type BinanceProvider struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewBinanceProvider creates a Binance-backed candle provider.
func NewBinanceProvider() *BinanceProvider {
	return &BinanceProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://api.binance.com",
		limiter: rate.NewLimiter(rate.Limit(2), 10),
	}
}

// Name identifies the provider.
func (p *BinanceProvider) Name() string { return "binance" }

// Supports reports crypto-only coverage.
func (p *BinanceProvider) Supports(class types.AssetClass) bool {
	return class == types.AssetCrypto
}

// Fetch returns the last count candles for the instrument's trading pair.
func (p *BinanceProvider) Fetch(ctx context.Context, inst datasource.Instrument, tf types.Timeframe, count int) ([]types.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, scanerrors.NewTimeoutError(p.Name(), "ratelimit", err)
	}

	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		p.baseURL, inst.Pair, string(tf), count)

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

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot:
		// Binance uses 418 for auto-banned IPs that keep hammering after 429.
		return nil, scanerrors.NewRateLimitError(p.Name(), "fetch",
			fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, scanerrors.New(scanerrors.ErrorCategoryUnavailable, p.Name(), "fetch",
			fmt.Sprintf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, scanerrors.New(scanerrors.ErrorCategoryTransient, p.Name(), "fetch",
			fmt.Sprintf("status %d", resp.StatusCode))
	}

	// Binance kline row: [openTime, open, high, low, close, volume, closeTime, ...]
	var rows [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorCategoryTransient, p.Name(), "decode")
	}

	candles := make([]types.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		openTime, ok := row[0].(float64)
		if !ok {
			continue
		}
		candles = append(candles, types.Candle{
			Timestamp: time.UnixMilli(int64(openTime)).UTC(),
			Open:      asFloat(row[1]),
			High:      asFloat(row[2]),
			Low:       asFloat(row[3]),
			Close:     asFloat(row[4]),
			Volume:    asFloat(row[5]),
		})
	}
	return candles, nil
}

func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case float64:
		return t
	default:
		return 0
	}
}
