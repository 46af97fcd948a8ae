package datasource

import (
	"context"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Provider is one upstream candle supplier. Adapters classify their
// failures through internal/errors categories (RATE_LIMIT, TIMEOUT,
// UNAVAILABLE, AUTH, TRANSIENT) so the Source can decide between
// fallback, retry, and failure.
type Provider interface {
	// Name identifies the provider in logs and diagnostics.
	Name() string

	// Supports reports whether the provider can serve the asset class.
	Supports(class types.AssetClass) bool

	// Fetch returns up to count candles for the instrument and timeframe,
	// ordered oldest first.
	Fetch(ctx context.Context, inst Instrument, tf types.Timeframe, count int) ([]types.Candle, error)
}

// Connecter is implemented by providers that hold upstream sessions.
type Connecter interface {
	Connect(ctx context.Context) error
	Close() error
}
