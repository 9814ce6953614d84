package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Providers recognized by data_source.provider.
const (
	ProviderYahoo   = "yahoo"
	ProviderREST    = "rest"
	ProviderAlpaca  = "alpaca"
	ProviderPolygon = "polygon"
)

// Symbol is one entry of the multi-symbol watch list.
type Symbol struct {
	Symbol     string  `yaml:"symbol"`
	Name       string  `yaml:"name"`
	Allocation float64 `yaml:"allocation"`
}

// Config holds all application configuration.
type Config struct {
	Symbol                   string  `yaml:"symbol"`
	Name                     string  `yaml:"name"`
	Currency                 string  `yaml:"currency"`
	CheckInterval            int     `yaml:"check_interval"`
	DipPercentage            float64 `yaml:"dip_percentage"`
	DipFromHigh              float64 `yaml:"dip_from_high"`
	MovingAvgPeriod          int     `yaml:"moving_avg_period"`
	HistoryCapacity          int     `yaml:"history_capacity"`
	ConsecutiveDropThreshold int     `yaml:"consecutive_drop_threshold"`
	AlertCooldownMinutes     float64 `yaml:"alert_cooldown_minutes"`
	Headless                 bool    `yaml:"headless"`
	TelegramAlerts           bool    `yaml:"telegram_alerts"`

	History struct {
		LookbackDays int `yaml:"lookback_days"`
		ShortWindow  int `yaml:"short_window"`
		LongWindow   int `yaml:"long_window"`
	} `yaml:"history"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram_config"`
	Investment struct {
		PortfolioAmount  float64 `yaml:"portfolio_amount"`
		TargetAllocation float64 `yaml:"target_allocation"`
		BuyOnDip         float64 `yaml:"buy_on_dip"`
		SellOnSpike      float64 `yaml:"sell_on_spike"`
	} `yaml:"investment_config"`
	ETFSymbols []Symbol `yaml:"etf_symbols"`

	Multi struct {
		AlertThreshold int  `yaml:"alert_threshold"`
		TopN           int  `yaml:"top_n"`
		SymbolAlerts   bool `yaml:"symbol_alerts"`
	} `yaml:"multi"`
	DataSource struct {
		Provider       string `yaml:"provider"`
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		APISecret      string `yaml:"api_secret"`
		RateLimit      int    `yaml:"rate_limit"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"data_source"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Health struct {
		Port int `yaml:"port"`
	} `yaml:"health"`
	Schedule struct {
		SessionResetCron string `yaml:"session_reset_cron"`
		DigestCron       string `yaml:"digest_cron"`
	} `yaml:"schedule"`
	Proxy string `yaml:"proxy"`
}

// Overrides lists the environment variables that take precedence over the file.
type Overrides struct {
	TelegramBotToken *string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   *string  `envconfig:"TELEGRAM_CHAT_ID"`
	PortfolioAmount  *float64 `envconfig:"PORTFOLIO_AMOUNT"`
	TargetAllocation *float64 `envconfig:"TARGET_ALLOCATION"`
	Proxy            *string  `envconfig:"HTTPS_PROXY"`
	SQLitePath       *string  `envconfig:"SQLITE_PATH"`
	Port             *int     `envconfig:"PORT"`
	AlpacaAPIKey     *string  `envconfig:"ALPACA_API_KEY"`
	AlpacaAPISecret  *string  `envconfig:"ALPACA_API_SECRET"`
	PolygonAPIKey    *string  `envconfig:"POLYGON_API_KEY"`
	Provider         *string  `envconfig:"DATA_PROVIDER"`
}

// Default returns the configuration used when no file or environment value is given.
func Default() *Config {
	cfg := &Config{
		Symbol:                   "NIFTYBEES.NS",
		Name:                     "Nifty 50",
		Currency:                 "₹",
		CheckInterval:            60,
		DipPercentage:            1.0,
		DipFromHigh:              2.0,
		MovingAvgPeriod:          5,
		HistoryCapacity:          20,
		ConsecutiveDropThreshold: 3,
		AlertCooldownMinutes:     5,
	}
	cfg.History.LookbackDays = 90
	cfg.History.ShortWindow = 20
	cfg.History.LongWindow = 50
	cfg.Investment.PortfolioAmount = 100000
	cfg.Investment.TargetAllocation = 0.20
	cfg.Investment.BuyOnDip = 2.0
	cfg.Investment.SellOnSpike = 3.0
	cfg.Multi.AlertThreshold = 50
	cfg.Multi.TopN = 3
	cfg.DataSource.Provider = ProviderYahoo
	cfg.DataSource.RateLimit = 30
	cfg.Health.Port = 10000
	return cfg
}

// Load layers defaults, the YAML file, .env and environment overrides, in that order.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[WARN] .env ignored: %v", err)
	}
	var env Overrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	cfg.apply(&env)
	cfg.normalize()

	return cfg, nil
}

func (c *Config) apply(o *Overrides) {
	if o.TelegramBotToken != nil && *o.TelegramBotToken != "" {
		c.Telegram.BotToken = *o.TelegramBotToken
	}
	if o.TelegramChatID != nil && *o.TelegramChatID != "" {
		c.Telegram.ChatID = *o.TelegramChatID
	}
	if o.PortfolioAmount != nil {
		c.Investment.PortfolioAmount = *o.PortfolioAmount
	}
	if o.TargetAllocation != nil {
		c.Investment.TargetAllocation = *o.TargetAllocation
	}
	if o.Proxy != nil && *o.Proxy != "" {
		c.Proxy = *o.Proxy
	}
	if o.SQLitePath != nil {
		c.Database.SQLitePath = *o.SQLitePath
	}
	if o.Port != nil {
		c.Health.Port = *o.Port
	}
	if o.Provider != nil && *o.Provider != "" {
		c.DataSource.Provider = *o.Provider
	}
	// provider credentials only apply to their own provider
	switch strings.ToLower(c.DataSource.Provider) {
	case ProviderAlpaca:
		if o.AlpacaAPIKey != nil && *o.AlpacaAPIKey != "" {
			c.DataSource.APIKey = *o.AlpacaAPIKey
		}
		if o.AlpacaAPISecret != nil && *o.AlpacaAPISecret != "" {
			c.DataSource.APISecret = *o.AlpacaAPISecret
		}
	case ProviderPolygon:
		if o.PolygonAPIKey != nil && *o.PolygonAPIKey != "" {
			c.DataSource.APIKey = *o.PolygonAPIKey
		}
	}
}

// normalize resets out-of-range values to their defaults.
func (c *Config) normalize() {
	def := Default()
	if c.Symbol == "" {
		c.Symbol = def.Symbol
	}
	if c.Name == "" {
		c.Name = c.Symbol
	}
	if c.Currency == "" {
		c.Currency = def.Currency
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = def.CheckInterval
	}
	if c.DipPercentage <= 0 {
		c.DipPercentage = def.DipPercentage
	}
	if c.DipFromHigh <= 0 {
		c.DipFromHigh = def.DipFromHigh
	}
	if c.MovingAvgPeriod <= 0 {
		c.MovingAvgPeriod = def.MovingAvgPeriod
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = def.HistoryCapacity
	}
	if c.HistoryCapacity < c.MovingAvgPeriod {
		c.HistoryCapacity = c.MovingAvgPeriod
	}
	if c.ConsecutiveDropThreshold <= 0 {
		c.ConsecutiveDropThreshold = def.ConsecutiveDropThreshold
	}
	if c.AlertCooldownMinutes < 0 {
		c.AlertCooldownMinutes = def.AlertCooldownMinutes
	}
	if c.History.LookbackDays <= 0 {
		c.History.LookbackDays = def.History.LookbackDays
	}
	if c.History.ShortWindow <= 0 {
		c.History.ShortWindow = def.History.ShortWindow
	}
	if c.History.LongWindow <= 0 {
		c.History.LongWindow = def.History.LongWindow
	}
	if c.Investment.PortfolioAmount <= 0 {
		c.Investment.PortfolioAmount = def.Investment.PortfolioAmount
	}
	if c.Investment.TargetAllocation <= 0 || c.Investment.TargetAllocation > 1 {
		c.Investment.TargetAllocation = def.Investment.TargetAllocation
	}
	if c.Investment.BuyOnDip <= 0 {
		c.Investment.BuyOnDip = def.Investment.BuyOnDip
	}
	if c.Investment.SellOnSpike <= 0 {
		c.Investment.SellOnSpike = def.Investment.SellOnSpike
	}
	for i := range c.ETFSymbols {
		s := &c.ETFSymbols[i]
		s.Symbol = strings.TrimSpace(s.Symbol)
		if s.Name == "" {
			s.Name = s.Symbol
		}
	}
	if c.Multi.AlertThreshold <= 0 {
		c.Multi.AlertThreshold = def.Multi.AlertThreshold
	}
	if c.Multi.TopN <= 0 {
		c.Multi.TopN = def.Multi.TopN
	}
	c.DataSource.Provider = strings.ToLower(strings.TrimSpace(c.DataSource.Provider))
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = def.DataSource.Provider
	}
	if c.DataSource.RateLimit < 0 {
		c.DataSource.RateLimit = def.DataSource.RateLimit
	}
	if c.DataSource.TimeoutSeconds < 0 {
		c.DataSource.TimeoutSeconds = 0
	}
	if c.Health.Port <= 0 || c.Health.Port > 65535 {
		c.Health.Port = def.Health.Port
	}
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case ProviderYahoo:
	case ProviderREST:
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	case ProviderAlpaca:
		if c.DataSource.APIKey == "" || c.DataSource.APISecret == "" {
			return fmt.Errorf("data_source.api_key and api_secret are required for the alpaca provider")
		}
	case ProviderPolygon:
		if c.DataSource.APIKey == "" {
			return fmt.Errorf("data_source.api_key is required for the polygon provider")
		}
	default:
		return fmt.Errorf("data_source.provider %q is not one of yahoo, rest, alpaca, polygon", c.DataSource.Provider)
	}

	seen := make(map[string]bool)
	for i, s := range c.ETFSymbols {
		if s.Symbol == "" {
			return fmt.Errorf("etf_symbols[%d]: symbol is required", i)
		}
		if seen[s.Symbol] {
			return fmt.Errorf("etf_symbols[%d]: duplicate symbol %s", i, s.Symbol)
		}
		seen[s.Symbol] = true
		if s.Allocation < 0 || s.Allocation > 1 {
			return fmt.Errorf("etf_symbols[%d]: allocation must be within [0, 1]", i)
		}
	}

	for name, spec := range map[string]string{
		"schedule.session_reset_cron": c.Schedule.SessionResetCron,
		"schedule.digest_cron":        c.Schedule.DigestCron,
	} {
		if spec == "" {
			continue
		}
		if _, err := cronParser.Parse(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// cronParser accepts the same six-field specs as cron.New(cron.WithSeconds()).
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// MultiMode reports whether the watch list drives multi-symbol mode.
func (c *Config) MultiMode() bool { return len(c.ETFSymbols) > 0 }

// Symbols returns the tracked symbols. Single-symbol mode yields one entry
// carrying the global target allocation.
func (c *Config) Symbols() []Symbol {
	if c.MultiMode() {
		return c.ETFSymbols
	}
	return []Symbol{{Symbol: c.Symbol, Name: c.Name, Allocation: c.Investment.TargetAllocation}}
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.AlertCooldownMinutes * float64(time.Minute))
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.DataSource.TimeoutSeconds) * time.Second
}
