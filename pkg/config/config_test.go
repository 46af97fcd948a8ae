package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "gold.json", `{
		"symbol": "XAU",
		"timeframes": ["1h", "4h"],
		"poll_interval_s": 120,
		"strategy_enablement": {"asian_range": true, "ema_crossover": true}
	}`)

	cfg, err := Load(path, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "gold", cfg.Name) // defaults to the file stem
	assert.Equal(t, "XAU", cfg.Symbol)
	assert.Equal(t, []string{"1h", "4h"}, cfg.Timeframes)
	assert.Equal(t, 120, cfg.PollIntervalS)
	assert.Equal(t, TradingModeAuto, cfg.TradingMode)

	// Untouched sections keep their defaults.
	assert.Equal(t, 9, cfg.IndicatorParams.EMAFastPeriod)
	assert.Equal(t, "daily", cfg.IndicatorParams.VWAPReset)
	assert.InDelta(t, 1.2, cfg.QualityFilter.MinRiskReward, 1e-9)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "btc.yaml", `
name: btc-scalper
symbol: BTC
timeframes: ["15m"]
poll_interval_s: 30
quality_filter_policy:
  min_risk_reward: 1.5
bypass_mode:
  enabled: true
  auto_disable_after_h: 4
`)

	cfg, err := Load(path, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "btc-scalper", cfg.Name)
	assert.InDelta(t, 1.5, cfg.QualityFilter.MinRiskReward, 1e-9)
	assert.True(t, cfg.BypassMode.Enabled)
	assert.Equal(t, 4, cfg.BypassMode.AutoDisableAfterH)
}

func TestLoadToleratesUnknownKeys(t *testing.T) {
	path := writeConfig(t, "extra.json", `{
		"symbol": "BTC",
		"timeframes": ["1h"],
		"poll_interval_s": 60,
		"future_feature": {"nested": true}
	}`)

	cfg, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "BTC", cfg.Symbol)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeConfig(t, "cfg.toml", "symbol = \"BTC\"")
	_, err := Load(path, zerolog.Nop())
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), zerolog.Nop())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	mutate := func(f func(*ScannerConfig)) error {
		cfg := DefaultConfig()
		f(cfg)
		return cfg.Validate()
	}

	assert.NoError(t, mutate(func(*ScannerConfig) {}))

	cases := []struct {
		name string
		f    func(*ScannerConfig)
	}{
		{"empty symbol", func(c *ScannerConfig) { c.Symbol = "" }},
		{"no timeframes", func(c *ScannerConfig) { c.Timeframes = nil }},
		{"bad timeframe", func(c *ScannerConfig) { c.Timeframes = []string{"7m"} }},
		{"zero poll interval", func(c *ScannerConfig) { c.PollIntervalS = 0 }},
		{"bad trading mode", func(c *ScannerConfig) { c.TradingMode = "position" }},
		{"zero indicator period", func(c *ScannerConfig) { c.IndicatorParams.RSIPeriod = 0 }},
		{"bad vwap reset", func(c *ScannerConfig) { c.IndicatorParams.VWAPReset = "weekly" }},
		{"zero risk reward", func(c *ScannerConfig) { c.QualityFilter.MinRiskReward = 0 }},
		{"negative duplicate window", func(c *ScannerConfig) { c.QualityFilter.DuplicateWindowSeconds = -1 }},
		{"inverted rsi override", func(c *ScannerConfig) {
			c.AssetOverrides = map[string]AssetOverride{"gold": {RSIMin: 70, RSIMax: 30}}
		}},
		{"zero bypass horizon", func(c *ScannerConfig) { c.BypassMode.AutoDisableAfterH = 0 }},
		{"no providers", func(c *ScannerConfig) { c.DataProviders = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, mutate(tc.f))
		})
	}
}

func TestEnabledStrategies(t *testing.T) {
	catalog := []string{"a", "b", "c"}

	cfg := DefaultConfig()
	assert.Equal(t, catalog, cfg.EnabledStrategies(catalog))

	cfg.StrategyEnablement = map[string]bool{"a": true, "c": true, "z": true}
	assert.Equal(t, []string{"a", "c"}, cfg.EnabledStrategies(catalog))

	cfg.StrategyEnablement = map[string]bool{"b": false}
	assert.Empty(t, cfg.EnabledStrategies(catalog))
}
