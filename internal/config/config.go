package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"StopSentinel/internal/model"
)

// SymbolConfig holds per-symbol overrides. Zero values fall back to the
// global defaults when resolved.
type SymbolConfig struct {
	Ratio     float64 `yaml:"ratio"`
	Timeframe string  `yaml:"timeframe"`
	Submit    bool    `yaml:"submit"`
}

// Config holds all application configuration.
type Config struct {
	Gateway struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"gateway"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		DigestCron  string `yaml:"digest_cron"`
	} `yaml:"schedule"`
	State struct {
		File          string `yaml:"file"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"state"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Risk struct {
		HypotheticalAccountValue float64 `yaml:"hypothetical_account_value"`
		DefaultATRRatio          float64 `yaml:"default_atr_ratio"`
		DefaultTimeframe         string  `yaml:"default_timeframe"`
		OverwriteLastBar         *bool   `yaml:"overwrite_last_bar"`
	} `yaml:"risk"`
	Symbols map[string]SymbolConfig `yaml:"symbols"`
	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("GATEWAY_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		cfg.State.File = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		cfg.Schedule.RefreshCron = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("ACCOUNT_VALUE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.HypotheticalAccountValue = f
		}
	}
	if v := os.Getenv("RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.State.RetentionDays = n
		}
	}

	// Defaults
	if cfg.Schedule.RefreshCron == "" {
		cfg.Schedule.RefreshCron = "0 */15 * * * *"
	}
	if cfg.Schedule.DigestCron == "" {
		cfg.Schedule.DigestCron = "0 0 22 * * 1-5"
	}
	if cfg.State.File == "" {
		cfg.State.File = "data/stop_state.json"
	}
	if cfg.State.RetentionDays == 0 {
		cfg.State.RetentionDays = 4
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/stop_sentinel.db"
	}
	if cfg.Risk.HypotheticalAccountValue == 0 {
		cfg.Risk.HypotheticalAccountValue = 6000
	}
	if cfg.Risk.DefaultATRRatio == 0 {
		cfg.Risk.DefaultATRRatio = 1.5
	}
	if cfg.Risk.DefaultTimeframe == "" {
		cfg.Risk.DefaultTimeframe = string(model.Timeframe15Min)
	}

	return cfg, nil
}

// Validate checks that all required fields are consistent.
func (c *Config) Validate() error {
	if c.Risk.HypotheticalAccountValue <= 0 {
		return fmt.Errorf("risk.hypothetical_account_value must be positive")
	}
	if err := validRatio(c.Risk.DefaultATRRatio); err != nil {
		return fmt.Errorf("risk.default_atr_ratio: %w", err)
	}
	if _, err := model.ParseTimeframe(c.Risk.DefaultTimeframe); err != nil {
		return fmt.Errorf("risk.default_timeframe: %w", err)
	}
	if c.State.RetentionDays < 1 {
		return fmt.Errorf("state.retention_days must be at least 1")
	}
	for sym, sc := range c.Symbols {
		if sc.Ratio != 0 {
			if err := validRatio(sc.Ratio); err != nil {
				return fmt.Errorf("symbols.%s.ratio: %w", sym, err)
			}
		}
		if sc.Timeframe != "" {
			if _, err := model.ParseTimeframe(sc.Timeframe); err != nil {
				return fmt.Errorf("symbols.%s.timeframe: %w", sym, err)
			}
		}
	}
	return nil
}

func validRatio(r float64) error {
	if r < 0.1 || r > 10.0 {
		return fmt.Errorf("ATR ratio %.2f outside the 0.1-10.0 range", r)
	}
	return nil
}

// Retention returns the TR/history retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.State.RetentionDays) * 24 * time.Hour
}

// OverwriteLastBar reports whether the in-progress bar's True Range should
// be rewritten each cycle. Defaults to true.
func (c *Config) OverwriteLastBar() bool {
	if c.Risk.OverwriteLastBar == nil {
		return true
	}
	return *c.Risk.OverwriteLastBar
}

// ResolveSymbol returns the effective ratio, timeframe, and submit flag for
// a symbol, applying global defaults where no override is set.
func (c *Config) ResolveSymbol(symbol string) (float64, model.Timeframe, bool) {
	ratio := c.Risk.DefaultATRRatio
	tf := model.Timeframe(c.Risk.DefaultTimeframe)
	submit := false

	if sc, ok := c.Symbols[symbol]; ok {
		if sc.Ratio != 0 {
			ratio = sc.Ratio
		}
		if sc.Timeframe != "" {
			tf = model.Timeframe(sc.Timeframe)
		}
		submit = sc.Submit
	}
	return ratio, tf, submit
}
