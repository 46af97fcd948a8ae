package datasource

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanerrors "github.com/quantsignal/signal-scanner/internal/errors"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

type fakeProvider struct {
	name    string
	class   types.AssetClass
	candles []types.Candle
	err     error
	calls   int
}

func (f *fakeProvider) Name() string                         { return f.name }
func (f *fakeProvider) Supports(class types.AssetClass) bool { return class == f.class }

func (f *fakeProvider) Fetch(_ context.Context, _ Instrument, _ types.Timeframe, _ int) ([]types.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func candlesEndingAt(ts time.Time, n int) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		out[i] = types.Candle{
			Timestamp: ts.Add(-time.Duration(n-1-i) * time.Hour),
			Open:      100, High: 101, Low: 99, Close: 100, Volume: 1000,
		}
	}
	return out
}

func btcInstrument() Instrument {
	return Instrument{Symbol: "BTCUSDT", Class: types.AssetCrypto}
}

func TestFetchFirstProviderWins(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	primary := &fakeProvider{name: "primary", class: types.AssetCrypto, candles: candlesEndingAt(now, 3)}
	backup := &fakeProvider{name: "backup", class: types.AssetCrypto, candles: candlesEndingAt(now, 3)}

	s := NewSource(zerolog.Nop(), []Provider{primary, backup},
		WithClock(func() time.Time { return now }))

	buffer, fresh, err := s.Fetch(context.Background(), btcInstrument(), types.Timeframe1h, 3)
	require.NoError(t, err)
	assert.Len(t, buffer, 3)
	assert.True(t, fresh)
	assert.Zero(t, backup.calls)
}

func TestFetchFallsBackOnError(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	primary := &fakeProvider{
		name: "primary", class: types.AssetCrypto,
		err: scanerrors.New(scanerrors.ErrorCategoryRateLimit, "primary", "fetch", "429"),
	}
	backup := &fakeProvider{name: "backup", class: types.AssetCrypto, candles: candlesEndingAt(now, 3)}

	s := NewSource(zerolog.Nop(), []Provider{primary, backup},
		WithClock(func() time.Time { return now }))

	buffer, _, err := s.Fetch(context.Background(), btcInstrument(), types.Timeframe1h, 3)
	require.NoError(t, err)
	assert.Len(t, buffer, 3)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestFetchFallsBackOnEmptyBuffer(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	primary := &fakeProvider{name: "primary", class: types.AssetCrypto}
	backup := &fakeProvider{name: "backup", class: types.AssetCrypto, candles: candlesEndingAt(now, 3)}

	s := NewSource(zerolog.Nop(), []Provider{primary, backup},
		WithClock(func() time.Time { return now }))

	buffer, _, err := s.Fetch(context.Background(), btcInstrument(), types.Timeframe1h, 3)
	require.NoError(t, err)
	assert.Len(t, buffer, 3)
}

func TestFetchNotifiesFallbackObservers(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	primary := &fakeProvider{
		name: "primary", class: types.AssetCrypto,
		err: scanerrors.New(scanerrors.ErrorCategoryRateLimit, "primary", "fetch", "429"),
	}
	backup := &fakeProvider{name: "backup", class: types.AssetCrypto, candles: candlesEndingAt(now, 3)}

	s := NewSource(zerolog.Nop(), []Provider{primary, backup},
		WithClock(func() time.Time { return now }))

	type fallback struct {
		provider string
		category scanerrors.ErrorCategory
	}
	var seen []fallback
	s.OnFallback("BTCUSDT", func(provider string, cat scanerrors.ErrorCategory) {
		seen = append(seen, fallback{provider, cat})
	})
	s.OnFallback("ETHUSDT", func(string, scanerrors.ErrorCategory) {
		t.Fatal("observer for another symbol must not fire")
	})

	_, _, err := s.Fetch(context.Background(), btcInstrument(), types.Timeframe1h, 3)
	require.NoError(t, err)
	assert.Equal(t, []fallback{{"primary", scanerrors.ErrorCategoryRateLimit}}, seen)
}

func TestFetchAllProvidersFail(t *testing.T) {
	fetchErr := scanerrors.New(scanerrors.ErrorCategoryUnavailable, "primary", "fetch", "down")
	primary := &fakeProvider{name: "primary", class: types.AssetCrypto, err: fetchErr}

	s := NewSource(zerolog.Nop(), []Provider{primary})

	_, _, err := s.Fetch(context.Background(), btcInstrument(), types.Timeframe1h, 3)
	require.Error(t, err)
	assert.Equal(t, scanerrors.ErrorCategoryUnavailable, scanerrors.CategoryOf(err))
}

func TestFetchNoProviderForClass(t *testing.T) {
	crypto := &fakeProvider{name: "crypto-only", class: types.AssetCrypto}
	s := NewSource(zerolog.Nop(), []Provider{crypto})

	_, _, err := s.Fetch(context.Background(), Instrument{Symbol: "XAUUSD", Class: types.AssetGold}, types.Timeframe1h, 3)
	require.Error(t, err)
	assert.Zero(t, crypto.calls)
}

func TestFetchStaleBuffer(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	// Last candle is three hours old; the 1h freshness window is two intervals.
	p := &fakeProvider{name: "p", class: types.AssetCrypto, candles: candlesEndingAt(now.Add(-3*time.Hour), 3)}

	s := NewSource(zerolog.Nop(), []Provider{p},
		WithClock(func() time.Time { return now }))

	buffer, fresh, err := s.Fetch(context.Background(), btcInstrument(), types.Timeframe1h, 3)
	require.NoError(t, err)
	assert.Len(t, buffer, 3)
	assert.False(t, fresh)
}

func TestCachedProviderServesWithinInterval(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	inner := &fakeProvider{name: "inner", class: types.AssetCrypto, candles: candlesEndingAt(now, 3)}

	cp := NewCachedProvider(inner)
	cp.now = func() time.Time { return now }

	first, err := cp.Fetch(context.Background(), btcInstrument(), types.Timeframe1h, 3)
	require.NoError(t, err)
	_, err = cp.Fetch(context.Background(), btcInstrument(), types.Timeframe1h, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	// Mutating the returned slice must not poison the cache.
	first[0].Close = -1
	again, err := cp.Fetch(context.Background(), btcInstrument(), types.Timeframe1h, 3)
	require.NoError(t, err)
	assert.Equal(t, 100.0, again[0].Close)

	// A different count is a different cache key.
	_, err = cp.Fetch(context.Background(), btcInstrument(), types.Timeframe1h, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedProviderExpires(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	inner := &fakeProvider{name: "inner", class: types.AssetCrypto, candles: candlesEndingAt(now, 3)}

	cp := NewCachedProvider(inner)
	cp.now = func() time.Time { return now }

	_, err := cp.Fetch(context.Background(), btcInstrument(), types.Timeframe1h, 3)
	require.NoError(t, err)

	now = now.Add(61 * time.Minute)
	_, err = cp.Fetch(context.Background(), btcInstrument(), types.Timeframe1h, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestResolveSymbols(t *testing.T) {
	btc := Resolve("btcusdt")
	assert.Equal(t, types.AssetCrypto, btc.Class)
	assert.Equal(t, "BTC", btc.Symbol)
	assert.True(t, btc.Known())

	gold := Resolve("XAUUSD")
	assert.Equal(t, types.AssetGold, gold.Class)

	mystery := Resolve("ZZZ")
	assert.Equal(t, types.AssetOther, mystery.Class)
	assert.False(t, mystery.Known())
}
