package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/quantsignal/signal-scanner/internal/datasource"
	"github.com/quantsignal/signal-scanner/internal/datasource/adapters"
	"github.com/quantsignal/signal-scanner/internal/dispatch"
	"github.com/quantsignal/signal-scanner/internal/exchange/bybit"
	"github.com/quantsignal/signal-scanner/internal/logging"
	"github.com/quantsignal/signal-scanner/internal/monitoring"
	"github.com/quantsignal/signal-scanner/internal/scanner"
	"github.com/quantsignal/signal-scanner/pkg/config"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

func main() {
	var (
		configFiles  = flag.String("config", "", "Comma-separated scanner config files (JSON or YAML)")
		envFile      = flag.String("env", ".env", "Environment file path")
		logLevel     = flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
		reportFormat = flag.String("report-format", "csv", "Signal report format: csv or xlsx")
		metricsAddr  = flag.String("metrics-addr", "", "Prometheus listen address, e.g. :9101 (disabled when empty)")
	)
	flag.Parse()

	if *configFiles == "" {
		log.Fatal("Please specify at least one config file with -config")
	}

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: could not load %s (%v), using process environment", *envFile, err)
	}

	paths := strings.Split(*configFiles, ",")

	logger, closer, err := logging.New(logging.Options{
		Level:   *logLevel,
		Dir:     "logs",
		Scanner: "scanner",
		Console: true,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer closer.Close()

	fmt.Println("🔍 Signal Scanner Starting...")
	fmt.Printf("📋 Configs: %s\n", *configFiles)
	fmt.Println(strings.Repeat("=", 50))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configs := make([]*config.ScannerConfig, 0, len(paths))
	for _, path := range paths {
		path = strings.TrimSpace(path)
		cfg, err := config.Load(path, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("config", path).Msg("invalid configuration")
		}
		configs = append(configs, cfg)
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	// One shared data source and dispatcher serve every scanner.
	source := buildSource(logger)
	if err := source.Connect(ctx); err != nil {
		logger.Fatal().Err(err).Msg("data source connect failed")
	}
	defer source.Close()

	// The dispatcher outlives the scan context so shutdown flushes are
	// still delivered after SIGINT.
	disp := dispatch.NewDispatcher(buildSinks(logger, configs[0].ReportDir, *reportFormat), logger)
	disp.Start()
	defer disp.Stop()

	feed := startPriceFeed(ctx, configs, logger)
	if feed != nil {
		defer feed.Stop()
	}

	var wg sync.WaitGroup
	for _, cfg := range configs {
		var opts []scanner.Option
		if feed != nil {
			opts = append(opts, scanner.WithPriceFeed(feed))
		}
		sc, err := scanner.New(cfg, source, disp, logger, opts...)
		if err != nil {
			logger.Fatal().Err(err).Str("scanner", cfg.Name).Msg("scanner assembly failed")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sc.Run(ctx); err != nil {
				logger.Error().Err(err).Str("scanner", cfg.Name).Msg("scanner exited with error")
			}
		}()
		fmt.Printf("✅ Scanner started: %s (%s)\n", cfg.Name, cfg.Symbol)
	}

	wg.Wait()
	fmt.Println("👋 All scanners stopped")
}

// startPriceFeed subscribes the live ticker stream for the crypto pairs
// across all configured scanners. A failed dial degrades to candle-close
// tracking rather than aborting startup.
func startPriceFeed(ctx context.Context, configs []*config.ScannerConfig, logger zerolog.Logger) *datasource.PriceFeed {
	seen := make(map[string]bool)
	var pairs []string
	for _, cfg := range configs {
		inst := datasource.Resolve(cfg.Symbol)
		if inst.Class != types.AssetCrypto || seen[inst.Pair] {
			continue
		}
		seen[inst.Pair] = true
		pairs = append(pairs, inst.Pair)
	}
	if len(pairs) == 0 {
		return nil
	}

	feed := datasource.NewPriceFeed(logger)
	if err := feed.Start(ctx, pairs); err != nil {
		logger.Warn().Err(err).Msg("price feed unavailable, tracking on candle closes")
		return nil
	}
	logger.Info().Strs("pairs", pairs).Msg("live price feed started")
	return feed
}

// buildSource assembles the provider chain in priority order: crypto
// providers first, then the gold/index/forex providers.
func buildSource(logger zerolog.Logger) *datasource.Source {
	bybitClient := bybit.NewClient(bybit.Config{
		APIKey:    os.Getenv("BYBIT_API_KEY"),
		APISecret: os.Getenv("BYBIT_API_SECRET"),
		Testnet:   os.Getenv("BYBIT_TESTNET") == "true",
	})

	var providers []datasource.Provider
	if dir := os.Getenv("CSV_DATA_DIR"); dir != "" {
		// Offline replay: recorded candle files take priority over live feeds.
		providers = append(providers, adapters.NewCSVProvider(dir))
		logger.Info().Str("dir", dir).Msg("csv replay provider enabled")
	}
	providers = append(providers,
		datasource.NewCachedProvider(adapters.NewBybitProvider(bybitClient)),
		datasource.NewCachedProvider(adapters.NewBinanceProvider()),
		adapters.NewCryptoCompareProvider(os.Getenv("CRYPTOCOMPARE_API_KEY")),
		adapters.NewYahooProvider(),
		adapters.NewStooqProvider(),
	)
	return datasource.NewSource(logger, providers)
}

func buildSinks(logger zerolog.Logger, reportDir, reportFormat string) []dispatch.Sink {
	sinks := []dispatch.Sink{
		dispatch.NewEventLogSink(logger),
		dispatch.NewReportSink(reportDir, reportFormat),
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	chatID := os.Getenv("TELEGRAM_CHAT_ID")
	if token != "" && chatID != "" {
		sinks = append(sinks, dispatch.NewTelegramSink(token, chatID))
		logger.Info().Msg("telegram sink enabled")
	}
	return sinks
}

// serveMetrics exposes the Prometheus scrape endpoint.
func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics endpoint failed")
	}
}
