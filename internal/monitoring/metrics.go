package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scan cycle metrics
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_ticks_total",
			Help: "Total number of scan ticks completed",
		},
		[]string{"symbol", "timeframe"},
	)

	tickSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_tick_skips_total",
			Help: "Total number of ticks skipped on data-quality failures",
		},
		[]string{"symbol", "reason"},
	)

	// Signal metrics
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_signals_total",
			Help: "Total number of signals emitted",
		},
		[]string{"symbol", "strategy", "direction"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_rejections_total",
			Help: "Total number of quality-filter rejections",
		},
		[]string{"reason"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scanner_current_price",
			Help: "Last observed price per symbol",
		},
		[]string{"symbol"},
	)

	providerFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_provider_fallbacks_total",
			Help: "Total number of data-provider fallbacks",
		},
		[]string{"provider"},
	)

	// Trade lifecycle metrics
	tradeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_trade_events_total",
			Help: "Total number of tracked-trade lifecycle events",
		},
		[]string{"symbol", "kind"},
	)

	openTrades = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scanner_open_trades",
			Help: "Currently open tracked trades",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_errors_total",
			Help: "Total number of errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal)
	prometheus.MustRegister(tickSkipsTotal)
	prometheus.MustRegister(signalsTotal)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(providerFallbacks)
	prometheus.MustRegister(tradeEventsTotal)
	prometheus.MustRegister(openTrades)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus scrape endpoint. The scanner core
// never listens; an embedding binary mounts this handler if scraping is
// wanted.
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint.
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTick records a completed scan tick.
func RecordTick(symbol, timeframe string) {
	ticksTotal.WithLabelValues(symbol, timeframe).Inc()
}

// RecordTickSkip records a tick skipped on a data-quality failure.
func RecordTickSkip(symbol, reason string) {
	tickSkipsTotal.WithLabelValues(symbol, reason).Inc()
}

// RecordSignal records an emitted signal.
func RecordSignal(symbol, strategy, direction string) {
	signalsTotal.WithLabelValues(symbol, strategy, direction).Inc()
}

// RecordRejection records a quality-filter rejection.
func RecordRejection(reason string) {
	rejectionsTotal.WithLabelValues(reason).Inc()
}

// UpdatePrice updates the last observed price.
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// RecordProviderFallback records a data-source fallback past a provider.
func RecordProviderFallback(provider string) {
	providerFallbacks.WithLabelValues(provider).Inc()
}

// RecordTradeEvent records a tracked-trade lifecycle event.
func RecordTradeEvent(symbol, kind string) {
	tradeEventsTotal.WithLabelValues(symbol, kind).Inc()
}

// UpdateOpenTrades updates the open-trade gauge.
func UpdateOpenTrades(symbol string, count int) {
	openTrades.WithLabelValues(symbol).Set(float64(count))
}

// RecordError records an error by category.
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
