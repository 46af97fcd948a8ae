package adapters

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/quantsignal/signal-scanner/internal/datasource"
	scanerrors "github.com/quantsignal/signal-scanner/internal/errors"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// StooqProvider serves daily index and forex candles from Stooq's CSV
// download endpoint. It only covers the 1d timeframe and acts as the
// equity backup behind Yahoo.
type StooqProvider struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewStooqProvider creates a Stooq-backed daily candle provider.
func NewStooqProvider() *StooqProvider {
	return &StooqProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://stooq.com",
		limiter: rate.NewLimiter(rate.Limit(0.5), 2),
	}
}

// Name identifies the provider.
func (p *StooqProvider) Name() string { return "stooq" }

// Supports covers index, forex, and gold.
func (p *StooqProvider) Supports(class types.AssetClass) bool {
	switch class {
	case types.AssetGold, types.AssetIndex, types.AssetForex:
		return true
	}
	return false
}

// Fetch returns daily candles. Intraday timeframes are reported as
// unavailable so the source falls through without treating it as fatal.
func (p *StooqProvider) Fetch(ctx context.Context, inst datasource.Instrument, tf types.Timeframe, count int) ([]types.Candle, error) {
	if tf != types.Timeframe1d {
		return nil, scanerrors.New(scanerrors.ErrorCategoryUnavailable, p.Name(), "fetch",
			"only the 1d timeframe is served")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, scanerrors.NewTimeoutError(p.Name(), "ratelimit", err)
	}

	symbol, ok := stooqSymbol(inst)
	if !ok {
		return nil, scanerrors.New(scanerrors.ErrorCategoryUnavailable, p.Name(), "fetch",
			"no stooq mapping for "+inst.Symbol)
	}

	url := fmt.Sprintf("%s/q/d/l/?s=%s&i=d", p.baseURL, symbol)
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

	if resp.StatusCode != http.StatusOK {
		return nil, scanerrors.New(scanerrors.ErrorCategoryUnavailable, p.Name(), "fetch",
			fmt.Sprintf("status %d", resp.StatusCode))
	}

	reader := csv.NewReader(resp.Body)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, scanerrors.Wrap(err, scanerrors.ErrorCategoryTransient, p.Name(), "decode")
	}

	// Header: Date,Open,High,Low,Close,Volume
	candles := make([]types.Candle, 0, len(records))
	for i, rec := range records {
		if i == 0 || len(rec) < 5 {
			continue
		}
		ts, err := time.ParseInLocation("2006-01-02", rec[0], time.UTC)
		if err != nil {
			continue
		}
		volume := 0.0
		if len(rec) >= 6 {
			volume, _ = strconv.ParseFloat(rec[5], 64)
		}
		candles = append(candles, types.Candle{
			Timestamp: ts,
			Open:      mustFloat(rec[1]),
			High:      mustFloat(rec[2]),
			Low:       mustFloat(rec[3]),
			Close:     mustFloat(rec[4]),
			Volume:    volume,
		})
	}
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return candles, nil
}

func stooqSymbol(inst datasource.Instrument) (string, bool) {
	switch inst.Symbol {
	case "US30":
		return "^dji", true
	case "US100":
		return "^ndx", true
	case "XAU":
		return "xauusd", true
	case "EURUSD":
		return "eurusd", true
	case "GBPUSD":
		return "gbpusd", true
	default:
		return strings.ToLower(inst.Symbol), inst.Known()
	}
}

func mustFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
