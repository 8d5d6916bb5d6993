package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Profiles, 2)
	assert.Equal(t, 0.995, cfg.Profiles[0].BuyTrigger)
	assert.Equal(t, 1.09, cfg.Profiles[0].SellTrigger)
	assert.Equal(t, 0.98, cfg.Profiles[1].BuyTrigger)
	assert.Equal(t, 14, cfg.Indicators.ATRPeriod)
	assert.Equal(t, 0.015, cfg.Risk.RiskPct)
}

func TestValidateRejectsBadTriggers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no profiles", func(c *Config) { c.Profiles = nil }},
		{"buy trigger above one", func(c *Config) { c.Profiles[0].BuyTrigger = 1.01 }},
		{"sell trigger below one", func(c *Config) { c.Profiles[0].SellTrigger = 0.99 }},
		{"negative stop multiplier", func(c *Config) { c.Profiles[0].StopMultiplier = -0.1 }},
		{"zero atr period", func(c *Config) { c.Indicators.ATRPeriod = 0 }},
		{"ema long not above short", func(c *Config) { c.Indicators.EMALongPeriod = 12 }},
		{"risk pct above one", func(c *Config) { c.Risk.RiskPct = 1.5 }},
		{"zero breaker threshold", func(c *Config) { c.Breaker.Threshold = 0 }},
		{"zero poll interval", func(c *Config) { c.PollSecs = 0 }},
		{"missing trade log path", func(c *Config) { c.Files.TradeLog = "" }},
		{"email enabled without host", func(c *Config) { c.Email.Enabled = true; c.Email.Host = "" }},
		{"missing timezone", func(c *Config) { c.Session.Timezone = "" }},
		{"malformed lunch start", func(c *Config) { c.Session.LunchStart = "25:99" }},
		{"malformed lunch end", func(c *Config) { c.Session.LunchEnd = "noon" }},
		{"malformed market close", func(c *Config) { c.Session.MarketClose = "16" }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
profiles:
  - name: Bot A
    symbols: [AAPL, MSFT]
    buy_trigger: 0.995
    sell_trigger: 1.09
    stop_multiplier: 0.3
poll_seconds: 30
log_level: debug
`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, 30, cfg.PollSecs)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Len(t, cfg.Profiles, 1)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Profiles[0].Symbols)

	// Untouched sections keep their defaults.
	assert.Equal(t, 14, cfg.Indicators.ATRPeriod)
	assert.Equal(t, "America/New_York", cfg.Session.Timezone)
}

func TestLoadFromFileJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"profiles": [
			{"name": "Bot B", "symbols": ["TSLA"], "buy_trigger": 0.98, "sell_trigger": 1.03, "stop_multiplier": 0.5}
		],
		"poll_seconds": 15
	}`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	assert.NoError(t, err)
	assert.Equal(t, 15, cfg.PollSecs)
	assert.Equal(t, "Bot B", cfg.Profiles[0].Name)
}

func TestLoadFromFileInvalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("profiles: []\n"), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSymbolListFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	symPath := filepath.Join(dir, "symbols.txt")
	assert.NoError(t, os.WriteFile(symPath, []byte("AAPL\n\n  MSFT  \nGOOG\n"), 0o644))

	p := ProfileConfig{Name: "Bot A", SymbolsFile: symPath}
	syms, err := p.SymbolList()
	assert.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, syms)

	// Inline symbols win over the file.
	p.Symbols = []string{"TSLA"}
	syms, err = p.SymbolList()
	assert.NoError(t, err)
	assert.Equal(t, []string{"TSLA"}, syms)
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("APCA_API_KEY", "")
	t.Setenv("APCA_API_KEY_ID", "")
	t.Setenv("APCA_API_SECRET", "")
	t.Setenv("APCA_API_SECRET_KEY", "")
	t.Setenv("EMAIL_PASSWORD", "")

	_, err := LoadCredentials(false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "APCA_API_KEY")

	t.Setenv("APCA_API_KEY", "key")
	t.Setenv("APCA_API_SECRET", "secret")
	creds, err := LoadCredentials(false)
	assert.NoError(t, err)
	assert.Equal(t, "key", creds.APIKey)
	assert.Equal(t, "secret", creds.APISecret)

	// Email password only required when summaries are enabled.
	_, err = LoadCredentials(true)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "EMAIL_PASSWORD")

	// Legacy variable names are accepted.
	t.Setenv("APCA_API_KEY", "")
	t.Setenv("APCA_API_SECRET", "")
	t.Setenv("APCA_API_KEY_ID", "legacy-key")
	t.Setenv("APCA_API_SECRET_KEY", "legacy-secret")
	creds, err = LoadCredentials(false)
	assert.NoError(t, err)
	assert.Equal(t, "legacy-key", creds.APIKey)
	assert.Equal(t, "legacy-secret", creds.APISecret)
}
