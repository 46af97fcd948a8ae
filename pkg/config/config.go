package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/quantsignal/signal-scanner/internal/filter"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// IndicatorParams configures the indicator engine.
type IndicatorParams struct {
	EMAFastPeriod  int    `json:"ema_fast_period" yaml:"ema_fast_period"`
	EMASlowPeriod  int    `json:"ema_slow_period" yaml:"ema_slow_period"`
	EMATrendPeriod int    `json:"ema_trend_period" yaml:"ema_trend_period"`
	EMALongPeriod  int    `json:"ema_long_period" yaml:"ema_long_period"`
	ATRPeriod      int    `json:"atr_period" yaml:"atr_period"`
	RSIPeriod      int    `json:"rsi_period" yaml:"rsi_period"`
	ADXPeriod      int    `json:"adx_period" yaml:"adx_period"`
	VolumeMAPeriod int    `json:"volume_ma_period" yaml:"volume_ma_period"`
	VWAPReset      string `json:"vwap_reset" yaml:"vwap_reset"` // daily or session
}

// AssetOverride tunes strategy parameters for one asset class.
type AssetOverride struct {
	VolumeSpikeRatio float64 `json:"volume_spike_ratio" yaml:"volume_spike_ratio"`
	RSIMin           float64 `json:"rsi_min" yaml:"rsi_min"`
	RSIMax           float64 `json:"rsi_max" yaml:"rsi_max"`
	ADXMin           float64 `json:"adx_min" yaml:"adx_min"`
}

// BypassMode configures the quality-filter bypass switch.
type BypassMode struct {
	Enabled           bool `json:"enabled" yaml:"enabled"`
	AutoDisableAfterH int  `json:"auto_disable_after_h" yaml:"auto_disable_after_h"`
}

// TelegramConfig configures the chat sink. Credentials come from the
// environment, never the file.
type TelegramConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// TradingModeAuto derives the trading mode from each scanned timeframe
// instead of pinning one mode for every scan.
const TradingModeAuto = "auto"

// ScannerConfig is the full configuration for one scanner unit.
type ScannerConfig struct {
	Name          string   `json:"name" yaml:"name"`
	Symbol        string   `json:"symbol" yaml:"symbol"`
	Timeframes    []string `json:"timeframes" yaml:"timeframes"`
	PollIntervalS int      `json:"poll_interval_s" yaml:"poll_interval_s"`
	TradingMode   string   `json:"trading_mode" yaml:"trading_mode"`

	IndicatorParams    IndicatorParams          `json:"indicator_params" yaml:"indicator_params"`
	StrategyEnablement map[string]bool          `json:"strategy_enablement" yaml:"strategy_enablement"`
	StrategyPriority   map[string][]string      `json:"strategy_priority" yaml:"strategy_priority"`
	QualityFilter      filter.Policy            `json:"quality_filter_policy" yaml:"quality_filter_policy"`
	AssetOverrides     map[string]AssetOverride `json:"asset_overrides" yaml:"asset_overrides"`
	BypassMode         BypassMode               `json:"bypass_mode" yaml:"bypass_mode"`
	DataProviders      []string                 `json:"data_providers" yaml:"data_providers"`
	Telegram           TelegramConfig           `json:"telegram" yaml:"telegram"`
	ReportDir          string                   `json:"report_dir" yaml:"report_dir"`
	LogDir             string                   `json:"log_dir" yaml:"log_dir"`
}

// knownKeys are the accepted top-level configuration keys. Unknown keys
// are ignored with a startup warning.
var knownKeys = map[string]bool{
	"name": true, "symbol": true, "timeframes": true, "poll_interval_s": true,
	"trading_mode": true,
	"indicator_params": true, "strategy_enablement": true, "strategy_priority": true,
	"quality_filter_policy": true, "asset_overrides": true, "bypass_mode": true,
	"data_providers": true, "telegram": true, "report_dir": true, "log_dir": true,
}

// DefaultConfig returns the baseline scanner configuration.
func DefaultConfig() *ScannerConfig {
	return &ScannerConfig{
		Symbol:        "BTC",
		Timeframes:    []string{"15m", "1h"},
		PollIntervalS: 60,
		TradingMode:   TradingModeAuto,
		IndicatorParams: IndicatorParams{
			EMAFastPeriod:  9,
			EMASlowPeriod:  21,
			EMATrendPeriod: 50,
			EMALongPeriod:  200,
			ATRPeriod:      14,
			RSIPeriod:      14,
			ADXPeriod:      14,
			VolumeMAPeriod: 20,
			VWAPReset:      "daily",
		},
		QualityFilter: filter.DefaultPolicy(),
		BypassMode:    BypassMode{AutoDisableAfterH: 2},
		DataProviders: []string{"bybit", "binance", "cryptocompare", "yahoo", "stooq"},
		ReportDir:     "reports",
		LogDir:        "logs",
	}
}

// Load reads a scanner configuration from a JSON or YAML file, layering
// it over the defaults. Unknown top-level keys are logged and ignored.
func Load(path string, logger zerolog.Logger) (*ScannerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		warnUnknownKeysYAML(raw, logger)
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case ".json":
		warnUnknownKeysJSON(raw, logger)
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func warnUnknownKeysJSON(raw []byte, logger zerolog.Logger) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return
	}
	for key := range top {
		if !knownKeys[key] {
			logger.Warn().Str("key", key).Msg("unknown configuration key ignored")
		}
	}
}

func warnUnknownKeysYAML(raw []byte, logger zerolog.Logger) {
	var top map[string]any
	if err := yaml.Unmarshal(raw, &top); err != nil {
		return
	}
	for key := range top {
		if !knownKeys[key] {
			logger.Warn().Str("key", key).Msg("unknown configuration key ignored")
		}
	}
}

// Validate rejects configurations that cannot produce correct scans.
func (c *ScannerConfig) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("at least one timeframe is required")
	}
	for _, tf := range c.Timeframes {
		if _, err := types.ParseTimeframe(tf); err != nil {
			return err
		}
	}
	if c.PollIntervalS <= 0 {
		return fmt.Errorf("poll_interval_s must be positive, got %d", c.PollIntervalS)
	}
	switch c.TradingMode {
	case "", TradingModeAuto, "scalp", "day", "swing":
	default:
		return fmt.Errorf("trading_mode must be auto, scalp, day, or swing, got %q", c.TradingMode)
	}

	ip := c.IndicatorParams
	for name, period := range map[string]int{
		"ema_fast_period":  ip.EMAFastPeriod,
		"ema_slow_period":  ip.EMASlowPeriod,
		"ema_trend_period": ip.EMATrendPeriod,
		"ema_long_period":  ip.EMALongPeriod,
		"atr_period":       ip.ATRPeriod,
		"rsi_period":       ip.RSIPeriod,
		"adx_period":       ip.ADXPeriod,
		"volume_ma_period": ip.VolumeMAPeriod,
	} {
		if period <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, period)
		}
	}
	if ip.VWAPReset != "daily" && ip.VWAPReset != "session" {
		return fmt.Errorf("vwap_reset must be daily or session, got %q", ip.VWAPReset)
	}

	q := c.QualityFilter
	if q.MinRiskReward <= 0 {
		return fmt.Errorf("min_risk_reward must be positive, got %.2f", q.MinRiskReward)
	}
	if q.MinConfluenceFactors < 0 || q.MinConfidenceScore < 0 {
		return fmt.Errorf("quality filter minimums cannot be negative")
	}
	if q.DuplicateWindowSeconds < 0 {
		return fmt.Errorf("duplicate_window_seconds cannot be negative, got %d", q.DuplicateWindowSeconds)
	}

	for class, ov := range c.AssetOverrides {
		if ov.RSIMin > ov.RSIMax {
			return fmt.Errorf("asset override %s: rsi_min %.1f exceeds rsi_max %.1f", class, ov.RSIMin, ov.RSIMax)
		}
		if ov.VolumeSpikeRatio < 0 || ov.ADXMin < 0 {
			return fmt.Errorf("asset override %s: thresholds cannot be negative", class)
		}
	}

	if c.BypassMode.AutoDisableAfterH <= 0 {
		return fmt.Errorf("bypass auto_disable_after_h must be positive, got %d", c.BypassMode.AutoDisableAfterH)
	}
	if len(c.DataProviders) == 0 {
		return fmt.Errorf("at least one data provider is required")
	}
	return nil
}

// EnabledStrategies resolves the enablement map against the full catalog:
// an empty map enables everything; otherwise only names mapped true run.
func (c *ScannerConfig) EnabledStrategies(catalog []string) []string {
	if len(c.StrategyEnablement) == 0 {
		return catalog
	}
	var enabled []string
	for _, name := range catalog {
		if c.StrategyEnablement[name] {
			enabled = append(enabled, name)
		}
	}
	return enabled
}
