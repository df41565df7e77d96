package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StopSentinel/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "0 */15 * * * *", cfg.Schedule.RefreshCron)
	assert.Equal(t, "data/stop_state.json", cfg.State.File)
	assert.Equal(t, 4, cfg.State.RetentionDays)
	assert.Equal(t, 6000.0, cfg.Risk.HypotheticalAccountValue)
	assert.Equal(t, 1.5, cfg.Risk.DefaultATRRatio)
	assert.Equal(t, string(model.Timeframe15Min), cfg.Risk.DefaultTimeframe)
	assert.True(t, cfg.OverwriteLastBar())
	assert.Equal(t, 4*24*time.Hour, cfg.Retention())
	require.NoError(t, cfg.Validate())
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
gateway:
  base_url: http://localhost:5000
risk:
  default_atr_ratio: 2.0
  overwrite_last_bar: false
state:
  retention_days: 7
symbols:
  MES:
    ratio: 1.0
    timeframe: "1 hour"
    submit: true
`)
	t.Setenv("GATEWAY_BASE_URL", "http://gateway:9000")
	t.Setenv("ACCOUNT_VALUE", "12000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://gateway:9000", cfg.Gateway.BaseURL, "env wins over file")
	assert.Equal(t, 12000.0, cfg.Risk.HypotheticalAccountValue)
	assert.Equal(t, 2.0, cfg.Risk.DefaultATRRatio)
	assert.False(t, cfg.OverwriteLastBar())
	assert.Equal(t, 7*24*time.Hour, cfg.Retention())
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		mutate func(*Config)
	}{
		{"ratio too small", func(c *Config) { c.Risk.DefaultATRRatio = 0.05 }},
		{"ratio too large", func(c *Config) { c.Risk.DefaultATRRatio = 25 }},
		{"bad timeframe", func(c *Config) { c.Risk.DefaultTimeframe = "2 mins" }},
		{"bad symbol ratio", func(c *Config) {
			c.Symbols = map[string]SymbolConfig{"MES": {Ratio: 99}}
		}},
		{"bad symbol timeframe", func(c *Config) {
			c.Symbols = map[string]SymbolConfig{"MES": {Timeframe: "weekly"}}
		}},
		{"negative retention", func(c *Config) { c.State.RetentionDays = -1 }},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolveSymbol(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Symbols = map[string]SymbolConfig{
		"MES": {Ratio: 2.5, Timeframe: "1 day", Submit: true},
		"MNQ": {Submit: true}, // inherits global ratio and timeframe
	}

	ratio, tf, submit := cfg.ResolveSymbol("MES")
	assert.Equal(t, 2.5, ratio)
	assert.Equal(t, model.Timeframe1Day, tf)
	assert.True(t, submit)

	ratio, tf, submit = cfg.ResolveSymbol("MNQ")
	assert.Equal(t, 1.5, ratio)
	assert.Equal(t, model.Timeframe15Min, tf)
	assert.True(t, submit)

	ratio, tf, submit = cfg.ResolveSymbol("UNLISTED")
	assert.Equal(t, 1.5, ratio)
	assert.Equal(t, model.Timeframe15Min, tf)
	assert.False(t, submit)
}
