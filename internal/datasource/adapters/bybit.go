package adapters

import (
	"context"

	"golang.org/x/time/rate"

	scanerrors "github.com/quantsignal/signal-scanner/internal/errors"
	"github.com/quantsignal/signal-scanner/internal/datasource"
	"github.com/quantsignal/signal-scanner/internal/exchange/bybit"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// BybitProvider serves crypto candles from the Bybit REST API. It is the
// highest-priority crypto provider.
type BybitProvider struct {
	client  *bybit.Client
	limiter *rate.Limiter
}

// NewBybitProvider creates a Bybit-backed candle provider. Bybit allows
// 120 public requests per minute; the leaky bucket stays well under that.
func NewBybitProvider(client *bybit.Client) *BybitProvider {
	return &BybitProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(1), 5),
	}
}

// Name identifies the provider.
func (p *BybitProvider) Name() string { return "bybit" }

// Supports reports crypto-only coverage.
func (p *BybitProvider) Supports(class types.AssetClass) bool {
	return class == types.AssetCrypto
}

// Connect verifies the upstream session with a lightweight ticker call.
func (p *BybitProvider) Connect(ctx context.Context) error {
	if _, err := p.client.GetLatestPrice(ctx, "spot", "BTCUSDT"); err != nil {
		return scanerrors.NewConnectError(p.Name(), "connect", err)
	}
	return nil
}

// Close releases the session. The REST client holds no persistent state.
func (p *BybitProvider) Close() error { return nil }

// Fetch returns the last count candles for the instrument's trading pair.
func (p *BybitProvider) Fetch(ctx context.Context, inst datasource.Instrument, tf types.Timeframe, count int) ([]types.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, scanerrors.NewTimeoutError(p.Name(), "ratelimit", err)
	}

	interval, ok := bybitInterval(tf)
	if !ok {
		return nil, scanerrors.New(scanerrors.ErrorCategoryUnavailable, p.Name(), "fetch",
			"unsupported timeframe "+string(tf))
	}

	klines, err := p.client.GetKlines(ctx, bybit.KlineParams{
		Category: "spot",
		Symbol:   inst.Pair,
		Interval: interval,
		Limit:    count,
	})
	if err != nil {
		return nil, classifyBybitError(err)
	}

	candles := make([]types.Candle, len(klines))
	for i, k := range klines {
		candles[i] = types.Candle{
			Timestamp: k.StartTime,
			Open:      k.OpenPrice,
			High:      k.HighPrice,
			Low:       k.LowPrice,
			Close:     k.ClosePrice,
			Volume:    k.Volume,
		}
	}
	return candles, nil
}

func bybitInterval(tf types.Timeframe) (bybit.KlineInterval, bool) {
	switch tf {
	case types.Timeframe1m:
		return bybit.Interval1m, true
	case types.Timeframe5m:
		return bybit.Interval5m, true
	case types.Timeframe15m:
		return bybit.Interval15m, true
	case types.Timeframe1h:
		return bybit.Interval1h, true
	case types.Timeframe4h:
		return bybit.Interval4h, true
	case types.Timeframe1d:
		return bybit.Interval1d, true
	default:
		return "", false
	}
}

func classifyBybitError(err error) error {
	switch {
	case bybit.IsRateLimitError(err):
		return scanerrors.NewRateLimitError("bybit", "fetch", err)
	case bybit.IsAuthenticationError(err):
		return scanerrors.Wrap(err, scanerrors.ErrorCategoryAuth, "bybit", "fetch")
	default:
		return scanerrors.Wrap(err, scanerrors.ErrorCategoryTransient, "bybit", "fetch")
	}
}
