// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/utils"
)

// Config holds application configuration
type Config struct {
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	LogPretty bool   `yaml:"log_pretty"`
	DevMode   bool   `yaml:"dev_mode"`

	Trading   TradingConfig   `yaml:"trading"`
	Market    MarketConfig    `yaml:"market"`
	Providers ProvidersConfig `yaml:"providers"`

	JournalDSN             string `yaml:"journal_dsn"`
	EquitySnapshotSchedule string `yaml:"equity_snapshot_schedule"`
	DiscordWebhookURL      string `yaml:"discord_webhook_url"`
}

// TradingConfig holds the ledger and cycle parameters
type TradingConfig struct {
	StartingBalance     float64               `yaml:"starting_balance"`
	DecisionSource      domain.DecisionSource `yaml:"decision_source"`
	Mode                domain.Mode           `yaml:"mode"`
	ConfidenceThreshold float64               `yaml:"confidence_threshold"`
	MaxTradeAmount      float64               `yaml:"max_trade_amount"`
	MinTradeAmount      float64               `yaml:"min_trade_amount"`
	TradeCashFraction   float64               `yaml:"trade_cash_fraction"`
	MaxAssetsPerCycle   int                   `yaml:"max_assets_per_cycle"`
	AnalysisInterval    time.Duration         `yaml:"analysis_interval"`
	RestInterval        time.Duration         `yaml:"rest_interval"`
	BackoffInterval     time.Duration         `yaml:"backoff_interval"`
}

// MarketConfig holds price API settings
type MarketConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Symbols []string      `yaml:"symbols"`
}

// ProvidersConfig holds the external analysis providers
type ProvidersConfig struct {
	OpenAI  ProviderConfig `yaml:"openai"`
	Claude  ProviderConfig `yaml:"claude"`
	Timeout time.Duration  `yaml:"timeout"`
}

// ProviderConfig holds credentials for one text-completion provider
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		Port:      5005,
		LogLevel:  "info",
		LogPretty: true,
		Trading: TradingConfig{
			StartingBalance:     1000.0,
			DecisionSource:      domain.SourceDemo,
			Mode:                domain.ModeDemo,
			ConfidenceThreshold: 0.7,
			MaxTradeAmount:      10.0,
			MinTradeAmount:      1.0,
			TradeCashFraction:   0.1,
			MaxAssetsPerCycle:   10,
			AnalysisInterval:    60 * time.Second,
			RestInterval:        30 * time.Second,
			BackoffInterval:     60 * time.Second,
		},
		Market: MarketConfig{
			BaseURL: "https://api.coingecko.com/api/v3",
			Timeout: 10 * time.Second,
		},
		Providers: ProvidersConfig{
			OpenAI: ProviderConfig{
				Model:   "gpt-4o-mini",
				BaseURL: "https://api.openai.com/v1",
			},
			Claude: ProviderConfig{
				Model:   "claude-3-5-sonnet-20241022",
				BaseURL: "https://api.anthropic.com/v1",
			},
			Timeout: 30 * time.Second,
		},
		JournalDSN:             "file:journal?mode=memory&cache=shared",
		EquitySnapshotSchedule: "@every 1m",
	}
}

// Load reads configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.LogPretty = getEnvAsBool("LOG_PRETTY", c.LogPretty)
	c.DevMode = getEnvAsBool("DEV_MODE", c.DevMode)

	t := &c.Trading
	t.StartingBalance = getEnvAsFloat("PAPER_TRADING_BALANCE", t.StartingBalance)
	t.DecisionSource = domain.DecisionSource(strings.ToLower(getEnv("AI_PROVIDER", string(t.DecisionSource))))
	t.Mode = domain.Mode(strings.ToLower(getEnv("MODE", string(t.Mode))))
	t.ConfidenceThreshold = getEnvAsFloat("AI_CONFIDENCE_THRESHOLD", t.ConfidenceThreshold)
	t.MaxTradeAmount = getEnvAsFloat("MAX_BUYING_AMOUNT_USD", t.MaxTradeAmount)
	t.MinTradeAmount = getEnvAsFloat("MIN_TRADE_AMOUNT_USD", t.MinTradeAmount)
	t.TradeCashFraction = getEnvAsFloat("TRADE_CASH_FRACTION", t.TradeCashFraction)
	t.MaxAssetsPerCycle = getEnvAsInt("MAX_ASSETS_PER_CYCLE", t.MaxAssetsPerCycle)
	t.AnalysisInterval = getEnvAsDuration("ANALYSIS_INTERVAL", t.AnalysisInterval)
	t.RestInterval = getEnvAsDuration("CYCLE_REST_INTERVAL", t.RestInterval)
	t.BackoffInterval = getEnvAsDuration("CYCLE_BACKOFF_INTERVAL", t.BackoffInterval)

	m := &c.Market
	m.BaseURL = getEnv("COINGECKO_BASE_URL", m.BaseURL)
	m.Timeout = getEnvAsDuration("PRICE_API_TIMEOUT", m.Timeout)
	m.Symbols = getEnvAsList("CRYPTO_SYMBOLS", m.Symbols)

	p := &c.Providers
	p.OpenAI.APIKey = getEnv("OPENAI_API_KEY", p.OpenAI.APIKey)
	p.OpenAI.Model = getEnv("OPENAI_MODEL_NAME", p.OpenAI.Model)
	p.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", p.OpenAI.BaseURL)
	p.Claude.APIKey = getEnv("CLAUDE_API_KEY", p.Claude.APIKey)
	p.Claude.Model = getEnv("CLAUDE_MODEL_NAME", p.Claude.Model)
	p.Claude.BaseURL = getEnv("CLAUDE_BASE_URL", p.Claude.BaseURL)
	p.Timeout = getEnvAsDuration("AI_TIMEOUT", p.Timeout)

	c.JournalDSN = getEnv("JOURNAL_DSN", c.JournalDSN)
	c.EquitySnapshotSchedule = getEnv("EQUITY_SNAPSHOT_SCHEDULE", c.EquitySnapshotSchedule)
	c.DiscordWebhookURL = getEnv("DISCORD_WEBHOOK_URL", c.DiscordWebhookURL)
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	t := c.Trading

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for name, v := range map[string]float64{
		"starting balance":     t.StartingBalance,
		"confidence threshold": t.ConfidenceThreshold,
		"max trade amount":     t.MaxTradeAmount,
		"min trade amount":     t.MinTradeAmount,
		"trade cash fraction":  t.TradeCashFraction,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number, got %v", name, v)
		}
	}
	if t.StartingBalance < 0 {
		return fmt.Errorf("starting balance must be >= 0, got %.2f", t.StartingBalance)
	}
	if !t.DecisionSource.Valid() {
		return fmt.Errorf("unknown decision source: %q", t.DecisionSource)
	}
	if !t.Mode.Valid() {
		return fmt.Errorf("unknown mode: %q", t.Mode)
	}
	if t.ConfidenceThreshold < 0 || t.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %.2f", t.ConfidenceThreshold)
	}
	if t.MaxTradeAmount <= 0 {
		return fmt.Errorf("max trade amount must be > 0")
	}
	if t.MinTradeAmount < 0 {
		return fmt.Errorf("min trade amount must be >= 0")
	}
	if t.TradeCashFraction <= 0 || t.TradeCashFraction > 1 {
		return fmt.Errorf("trade cash fraction must be in (0,1], got %.2f", t.TradeCashFraction)
	}
	if t.MaxAssetsPerCycle <= 0 {
		return fmt.Errorf("max assets per cycle must be > 0")
	}
	if t.AnalysisInterval <= 0 || t.RestInterval <= 0 || t.BackoffInterval <= 0 {
		return fmt.Errorf("analysis, rest and backoff intervals must be > 0")
	}
	if c.Market.Timeout <= 0 {
		return fmt.Errorf("price API timeout must be > 0")
	}
	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("provider timeout must be > 0")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := utils.ParseCSV(value)
	if parts == nil {
		return defaultValue
	}
	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}
	return parts
}
