package datasource

import (
	"strings"

	"github.com/quantsignal/signal-scanner/pkg/types"
)

// Instrument is the canonical description of a scannable symbol. Provider
// adapters read the field matching their upstream's naming scheme.
type Instrument struct {
	// Symbol is the canonical engine-facing name, e.g. "BTC" or "US30".
	Symbol string
	Class  types.AssetClass

	// Pair is the exchange trading pair ("BTCUSDT").
	Pair string
	// AggregatorSymbol is the base symbol used by crypto aggregators ("BTC").
	AggregatorSymbol string
	// QuoteSymbol is the equity/forex quote-API ticker ("^DJI", "EURUSD=X").
	QuoteSymbol string
}

// Known reports whether the instrument was resolved from the canonical map
// rather than defaulted.
func (i Instrument) Known() bool {
	return i.Class != types.AssetOther
}

var instruments = map[string]Instrument{
	"BTC": {Symbol: "BTC", Class: types.AssetCrypto, Pair: "BTCUSDT", AggregatorSymbol: "BTC"},
	"ETH": {Symbol: "ETH", Class: types.AssetCrypto, Pair: "ETHUSDT", AggregatorSymbol: "ETH"},
	"SOL": {Symbol: "SOL", Class: types.AssetCrypto, Pair: "SOLUSDT", AggregatorSymbol: "SOL"},

	"XAU":   {Symbol: "XAU", Class: types.AssetGold, QuoteSymbol: "GC=F"},
	"US30":  {Symbol: "US30", Class: types.AssetIndex, QuoteSymbol: "^DJI"},
	"US100": {Symbol: "US100", Class: types.AssetIndex, QuoteSymbol: "^NDX"},

	"EURUSD": {Symbol: "EURUSD", Class: types.AssetForex, QuoteSymbol: "EURUSD=X"},
	"GBPUSD": {Symbol: "GBPUSD", Class: types.AssetForex, QuoteSymbol: "GBPUSD=X"},
}

var symbolAliases = map[string]string{
	"BTCUSD":  "BTC",
	"BTCUSDT": "BTC",
	"ETHUSD":  "ETH",
	"ETHUSDT": "ETH",
	"SOLUSD":  "SOL",
	"SOLUSDT": "SOL",
	"GOLD":    "XAU",
	"XAUUSD":  "XAU",
	"DOW":     "US30",
	"DJI":     "US30",
	"NASDAQ":  "US100",
	"NAS100":  "US100",
	"NDX":     "US100",
	"EUR/USD": "EURUSD",
	"GBP/USD": "GBPUSD",
}

// Resolve canonicalizes a configured symbol into an Instrument. Unknown
// symbols resolve to AssetOther with the raw symbol carried through; the
// caller is expected to warn at startup and apply conservative parameters.
func Resolve(symbol string) Instrument {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if alias, ok := symbolAliases[key]; ok {
		key = alias
	}
	if inst, ok := instruments[key]; ok {
		return inst
	}
	return Instrument{
		Symbol:           key,
		Class:            types.AssetOther,
		Pair:             key,
		AggregatorSymbol: key,
		QuoteSymbol:      key,
	}
}
