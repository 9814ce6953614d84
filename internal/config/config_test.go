package config

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Symbol != def.Symbol || cfg.CheckInterval != 60 || cfg.MovingAvgPeriod != 5 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Investment.BuyOnDip != 2.0 || cfg.Investment.SellOnSpike != 3.0 {
		t.Errorf("investment defaults: %+v", cfg.Investment)
	}
	if cfg.MultiMode() {
		t.Error("expected single-symbol mode")
	}
	syms := cfg.Symbols()
	if len(syms) != 1 || syms[0].Allocation != 0.20 {
		t.Errorf("Symbols() = %+v", syms)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate defaults: %v", err)
	}
}

func TestLoad_FileOverridesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
symbol: GOLDBEES.NS
check_interval: -5
moving_avg_period: 30
history_capacity: 10
unknown_key: ignored
investment_config:
  portfolio_amount: 50000
  target_allocation: 3
etf_symbols:
  - symbol: NIFTYBEES.NS
    allocation: 0.4
  - symbol: BANKBEES.NS
    name: Bank
    allocation: 0.2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Symbol != "GOLDBEES.NS" {
		t.Errorf("symbol: expected GOLDBEES.NS, got %s", cfg.Symbol)
	}
	if cfg.CheckInterval != 60 {
		t.Errorf("negative interval should reset to 60, got %d", cfg.CheckInterval)
	}
	if cfg.HistoryCapacity != 30 {
		t.Errorf("capacity should be raised to MA period, got %d", cfg.HistoryCapacity)
	}
	if cfg.Investment.PortfolioAmount != 50000 {
		t.Errorf("portfolio: expected 50000, got %v", cfg.Investment.PortfolioAmount)
	}
	if cfg.Investment.TargetAllocation != 0.20 {
		t.Errorf("out of range allocation should reset, got %v", cfg.Investment.TargetAllocation)
	}
	if !cfg.MultiMode() || len(cfg.Symbols()) != 2 {
		t.Fatalf("expected two watched symbols, got %+v", cfg.Symbols())
	}
	if cfg.ETFSymbols[0].Name != "NIFTYBEES.NS" {
		t.Errorf("missing name should default to symbol, got %q", cfg.ETFSymbols[0].Name)
	}
}

func TestLoad_EnvironmentTakesPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
telegram_config:
  bot_token: from-file
  chat_id: "1"
investment_config:
  portfolio_amount: 1000
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("PORTFOLIO_AMOUNT", "2500")
	t.Setenv("PORT", "8080")
	t.Setenv("DATA_PROVIDER", "REST")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.BotToken != "from-env" {
		t.Errorf("bot token: expected from-env, got %s", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.ChatID != "1" {
		t.Errorf("chat id: expected file value 1, got %s", cfg.Telegram.ChatID)
	}
	if cfg.Investment.PortfolioAmount != 2500 {
		t.Errorf("portfolio: expected 2500, got %v", cfg.Investment.PortfolioAmount)
	}
	if cfg.Health.Port != 8080 {
		t.Errorf("port: expected 8080, got %d", cfg.Health.Port)
	}
	if cfg.DataSource.Provider != ProviderREST {
		t.Errorf("provider: expected rest, got %s", cfg.DataSource.Provider)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("rest provider without base_url should fail validation")
	}
}

func TestLoad_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "check_interval: [not, a, number]\n")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.DataSource.Provider = "bloomberg" }, true},
		{"alpaca without keys", func(c *Config) { c.DataSource.Provider = ProviderAlpaca }, true},
		{"alpaca with keys", func(c *Config) {
			c.DataSource.Provider = ProviderAlpaca
			c.DataSource.APIKey = "k"
			c.DataSource.APISecret = "s"
		}, false},
		{"polygon without key", func(c *Config) { c.DataSource.Provider = ProviderPolygon }, true},
		{"duplicate symbols", func(c *Config) {
			c.ETFSymbols = []Symbol{{Symbol: "A"}, {Symbol: "A"}}
		}, true},
		{"bad allocation", func(c *Config) {
			c.ETFSymbols = []Symbol{{Symbol: "A", Allocation: 1.5}}
		}, true},
		{"valid cron", func(c *Config) { c.Schedule.SessionResetCron = "0 15 9 * * 1-5" }, false},
		{"invalid cron", func(c *Config) { c.Schedule.DigestCron = "every day" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "dip_percentage: 1.0\n")

	w := NewWatcher(path)
	if cfg, err := w.Reload(); cfg != nil || err != nil {
		t.Fatalf("unchanged file: got %v, %v", cfg, err)
	}

	writeFile(t, path, "dip_percentage: 0.5\n")
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	cfg, err := w.Reload()
	if err != nil || cfg == nil {
		t.Fatalf("changed file: got %v, %v", cfg, err)
	}
	if cfg.DipPercentage != 0.5 {
		t.Errorf("dip_percentage: expected 0.5, got %v", cfg.DipPercentage)
	}
	if w.Changed() {
		t.Error("second check without modification should report no change")
	}

	writeFile(t, path, "check_interval: [broken\n")
	later := future.Add(time.Minute)
	os.Chtimes(path, later, later)
	if _, err := w.Reload(); err == nil {
		t.Error("expected error for unparsable file")
	}
}

func TestLoad_ProviderCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "data_source:\n  provider: rest\n  base_url: http://localhost\n  api_key: rest-key\n")
	t.Setenv("ALPACA_API_KEY", "alpaca-key")
	t.Setenv("ALPACA_API_SECRET", "alpaca-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataSource.APIKey != "rest-key" {
		t.Errorf("alpaca credentials must not leak into the rest provider, got %q", cfg.DataSource.APIKey)
	}

	t.Setenv("DATA_PROVIDER", "alpaca")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataSource.APIKey != "alpaca-key" || cfg.DataSource.APISecret != "alpaca-secret" {
		t.Errorf("alpaca credentials = %q / %q", cfg.DataSource.APIKey, cfg.DataSource.APISecret)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestLoad_DotEnv(t *testing.T) {
	tests := []struct {
		name     string
		dotenv   string // empty: no .env file
		wantWarn bool
	}{
		{"missing file is silent", "", false},
		{"malformed file is reported", "B@D=1\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			chdir(t, dir)
			if tt.dotenv != "" {
				writeFile(t, filepath.Join(dir, ".env"), tt.dotenv)
			}
			buf := captureLog(t)

			if _, err := Load(filepath.Join(dir, "config.yaml")); err != nil {
				t.Fatalf("Load: %v", err)
			}
			warned := strings.Contains(buf.String(), "[WARN] .env ignored")
			if warned != tt.wantWarn {
				t.Errorf("expected warning=%v, got log %q", tt.wantWarn, buf.String())
			}
		})
	}
}
