package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marketsentinel/sentinel/market"
)

// Config is the complete bot configuration.
type Config struct {
	Broker     BrokerConfig     `json:"broker" yaml:"broker"`
	Profiles   []ProfileConfig  `json:"profiles" yaml:"profiles"`
	Indicators IndicatorConfig  `json:"indicators" yaml:"indicators"`
	Risk       RiskConfig       `json:"risk" yaml:"risk"`
	Breaker    BreakerConfig    `json:"circuit_breaker" yaml:"circuit_breaker"`
	Retry      RetryConfig      `json:"retry" yaml:"retry"`
	Session    SessionConfig    `json:"session" yaml:"session"`
	Files      FilesConfig      `json:"files" yaml:"files"`
	Email      EmailConfig      `json:"email" yaml:"email"`
	PollSecs   int              `json:"poll_seconds" yaml:"poll_seconds"`
	LogLevel   string           `json:"log_level" yaml:"log_level"`
}

// BrokerConfig points at the trading and market-data APIs.
type BrokerConfig struct {
	BaseURL       string `json:"base_url" yaml:"base_url"`
	DataURL       string `json:"data_url" yaml:"data_url"`
	RatePerMinute int    `json:"rate_per_minute" yaml:"rate_per_minute"`
}

// ProfileConfig is one trigger parameter set over a symbol list. Two
// profiles with disjoint symbols run over the same engine.
type ProfileConfig struct {
	Name           string   `json:"name" yaml:"name"`
	Symbols        []string `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	SymbolsFile    string   `json:"symbols_file,omitempty" yaml:"symbols_file,omitempty"`
	BuyTrigger     float64  `json:"buy_trigger" yaml:"buy_trigger"`
	SellTrigger    float64  `json:"sell_trigger" yaml:"sell_trigger"`
	StopMultiplier float64  `json:"stop_multiplier" yaml:"stop_multiplier"`
}

type IndicatorConfig struct {
	ATRPeriod      int `json:"atr_period" yaml:"atr_period"`
	SMAPeriod      int `json:"sma_period" yaml:"sma_period"`
	EMAShortPeriod int `json:"ema_short_period" yaml:"ema_short_period"`
	EMALongPeriod  int `json:"ema_long_period" yaml:"ema_long_period"`
}

type RiskConfig struct {
	RiskPct          float64 `json:"risk_pct" yaml:"risk_pct"`
	ResetHours       int     `json:"reset_hours" yaml:"reset_hours"`
	BaselineDrift    float64 `json:"baseline_drift" yaml:"baseline_drift"`
	VolatilityFilter float64 `json:"volatility_filter" yaml:"volatility_filter"`
}

type BreakerConfig struct {
	Threshold    int `json:"threshold" yaml:"threshold"`
	CooldownSecs int `json:"cooldown_seconds" yaml:"cooldown_seconds"`
}

type RetryConfig struct {
	Attempts      int `json:"attempts" yaml:"attempts"`
	BaseDelaySecs int `json:"base_delay_seconds" yaml:"base_delay_seconds"`
}

type SessionConfig struct {
	Timezone    string `json:"timezone" yaml:"timezone"`
	LunchStart  string `json:"lunch_start" yaml:"lunch_start"`
	LunchEnd    string `json:"lunch_end" yaml:"lunch_end"`
	MarketClose string `json:"market_close" yaml:"market_close"`
}

type FilesConfig struct {
	Baselines     string `json:"baselines" yaml:"baselines"`
	Positions     string `json:"positions" yaml:"positions"`
	TradeLog      string `json:"trade_log" yaml:"trade_log"`
	PriceHistory  string `json:"price_history" yaml:"price_history"`
	WindowState   string `json:"window_state" yaml:"window_state"`
	PurchaseDates string `json:"purchase_dates" yaml:"purchase_dates"`
	Archive       string `json:"archive,omitempty" yaml:"archive,omitempty"` // empty disables the SQLite mirror
	Log           string `json:"log,omitempty" yaml:"log,omitempty"`
}

type EmailConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	From    string `json:"from" yaml:"from"`
	To      string `json:"to" yaml:"to"`
}

// Credentials are never stored in the config file; they come from the
// environment at startup.
type Credentials struct {
	APIKey        string
	APISecret     string
	EmailPassword string
}

// LoadCredentials reads broker credentials from the environment,
// accepting the legacy variable names. Missing broker credentials are a
// fatal startup error.
func LoadCredentials(emailEnabled bool) (Credentials, error) {
	c := Credentials{
		APIKey:        firstEnv("APCA_API_KEY", "APCA_API_KEY_ID"),
		APISecret:     firstEnv("APCA_API_SECRET", "APCA_API_SECRET_KEY"),
		EmailPassword: os.Getenv("EMAIL_PASSWORD"),
	}
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "APCA_API_KEY")
	}
	if c.APISecret == "" {
		missing = append(missing, "APCA_API_SECRET")
	}
	if emailEnabled && c.EmailPassword == "" {
		missing = append(missing, "EMAIL_PASSWORD")
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return c, nil
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// PollInterval returns the polling cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollSecs) * time.Second
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SymbolList resolves a profile's symbols, reading SymbolsFile (one
// symbol per line, blanks skipped) when no inline list is given.
func (p ProfileConfig) SymbolList() ([]string, error) {
	if len(p.Symbols) > 0 {
		return p.Symbols, nil
	}
	data, err := os.ReadFile(p.SymbolsFile)
	if err != nil {
		return nil, fmt.Errorf("read symbols for %s: %w", p.Name, err)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// Validate checks the configuration is complete and sane.
func (c *Config) Validate() error {
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile is required")
	}
	for _, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile name is required")
		}
		if len(p.Symbols) == 0 && p.SymbolsFile == "" {
			return fmt.Errorf("profile %s: symbols or symbols_file is required", p.Name)
		}
		if p.BuyTrigger <= 0 || p.BuyTrigger >= 1 {
			return fmt.Errorf("profile %s: buy_trigger must be in (0,1)", p.Name)
		}
		if p.SellTrigger <= 1 {
			return fmt.Errorf("profile %s: sell_trigger must be greater than 1", p.Name)
		}
		if p.StopMultiplier < 0 {
			return fmt.Errorf("profile %s: stop_multiplier must not be negative", p.Name)
		}
	}
	if c.Indicators.ATRPeriod <= 0 || c.Indicators.SMAPeriod <= 0 {
		return fmt.Errorf("indicator periods must be positive")
	}
	if c.Indicators.EMAShortPeriod <= 0 || c.Indicators.EMALongPeriod <= c.Indicators.EMAShortPeriod {
		return fmt.Errorf("ema periods must be positive with long > short")
	}
	if c.Risk.RiskPct <= 0 || c.Risk.RiskPct > 1 {
		return fmt.Errorf("risk.risk_pct must be in (0,1]")
	}
	if c.Risk.ResetHours <= 0 {
		return fmt.Errorf("risk.reset_hours must be positive")
	}
	if c.Breaker.Threshold <= 0 || c.Breaker.CooldownSecs <= 0 {
		return fmt.Errorf("circuit_breaker threshold and cooldown must be positive")
	}
	if c.Retry.Attempts <= 0 || c.Retry.BaseDelaySecs <= 0 {
		return fmt.Errorf("retry attempts and base delay must be positive")
	}
	if c.PollSecs <= 0 {
		return fmt.Errorf("poll_seconds must be positive")
	}
	if c.Session.Timezone == "" {
		return fmt.Errorf("session.timezone is required")
	}
	if _, err := market.ParseClockTime(c.Session.LunchStart); err != nil {
		return fmt.Errorf("session.lunch_start: %w", err)
	}
	if _, err := market.ParseClockTime(c.Session.LunchEnd); err != nil {
		return fmt.Errorf("session.lunch_end: %w", err)
	}
	if _, err := market.ParseClockTime(c.Session.MarketClose); err != nil {
		return fmt.Errorf("session.market_close: %w", err)
	}
	if c.Files.Baselines == "" || c.Files.Positions == "" || c.Files.TradeLog == "" ||
		c.Files.PriceHistory == "" || c.Files.WindowState == "" || c.Files.PurchaseDates == "" {
		return fmt.Errorf("all durable file paths must be set")
	}
	if c.Email.Enabled && (c.Email.Host == "" || c.Email.From == "" || c.Email.To == "" || c.Email.Port == 0) {
		return fmt.Errorf("email host, port, from and to are required when email is enabled")
	}
	return nil
}

// Default returns a configuration with the production defaults.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			BaseURL:       "https://paper-api.alpaca.markets",
			DataURL:       "https://data.alpaca.markets",
			RatePerMinute: 200,
		},
		Profiles: []ProfileConfig{
			{Name: "Bot A", SymbolsFile: "botA_symbols.txt", BuyTrigger: 0.995, SellTrigger: 1.09, StopMultiplier: 0.3},
			{Name: "Bot B", SymbolsFile: "botB_symbols.txt", BuyTrigger: 0.98, SellTrigger: 1.03, StopMultiplier: 0.5},
		},
		Indicators: IndicatorConfig{
			ATRPeriod:      14,
			SMAPeriod:      20,
			EMAShortPeriod: 12,
			EMALongPeriod:  26,
		},
		Risk: RiskConfig{
			RiskPct:          0.015,
			ResetHours:       6,
			BaselineDrift:    0.05,
			VolatilityFilter: 0.02,
		},
		Breaker: BreakerConfig{Threshold: 5, CooldownSecs: 60},
		Retry:   RetryConfig{Attempts: 5, BaseDelaySecs: 5},
		Session: SessionConfig{
			Timezone:    "America/New_York",
			LunchStart:  "11:30",
			LunchEnd:    "13:00",
			MarketClose: "16:00",
		},
		Files: FilesConfig{
			Baselines:     "baselines.json",
			Positions:     "positions.json",
			TradeLog:      "trade_log.csv",
			PriceHistory:  "price_history.csv",
			WindowState:   "sma_state.json",
			PurchaseDates: "purchase_dates.json",
			Log:           "sentinel.log",
		},
		Email: EmailConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		PollSecs: 60,
		LogLevel: "info",
	}
}
