package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "SENTIMENT_TRACKER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	finnhubAPIKeyEnv  = "FINNHUB_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Dedup         DedupConfig        `yaml:"dedup"`
	Usage         UsageConfig        `yaml:"usage"`
	Validation    ValidationConfig   `yaml:"validation"`
	Market        MarketConfig       `yaml:"market"`
	Sources       []SourceConfig     `yaml:"sources" validate:"dive"`
	Securities    []string           `yaml:"securities"`
	Notifications NotificationConfig `yaml:"notifications"`
	Telemetry     TelemetryConfig    `yaml:"telemetry"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// DatabaseConfig describes the SQL backend.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" validate:"required,oneof=postgres sqlite"`
	DSN          string `yaml:"dsn" validate:"required"`
	MaxOpenConns int    `yaml:"maxOpenConns" validate:"gte=0"`
}

// SchedulerConfig defines when recurring jobs run.
type SchedulerConfig struct {
	IngestCron     string         `yaml:"ingestCron"`
	ValidationCron string         `yaml:"validationCron"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// DedupConfig tunes duplicate detection.
type DedupConfig struct {
	SimilarityThreshold float64 `yaml:"similarityThreshold" validate:"gt=0,lte=1"`
	TitleWindow         int     `yaml:"titleWindow" validate:"gt=0"`
	BodySample          int     `yaml:"bodySample" validate:"gt=0"`
}

// UsageConfig bounds the context and focus sets.
type UsageConfig struct {
	LookbackDays int `yaml:"lookbackDays" validate:"gt=0"`
	MaxArticles  int `yaml:"maxArticles" validate:"gt=0"`
}

// Lookback returns the window as a duration.
func (u UsageConfig) Lookback() time.Duration {
	return time.Duration(u.LookbackDays) * 24 * time.Hour
}

// ValidationConfig bounds calls to the price provider.
type ValidationConfig struct {
	PriceTimeout      time.Duration `yaml:"priceTimeout" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond" validate:"gt=0"`
}

// MarketConfig points at the quote and company news API.
type MarketConfig struct {
	BaseURL string `yaml:"baseUrl" validate:"required,url"`
	APIKey  string `yaml:"apiKey"`
}

// SourceConfig describes a single news source with its scanner strategy.
type SourceConfig struct {
	Name    string            `yaml:"name" validate:"required"`
	Scanner string            `yaml:"scanner" validate:"required"`
	Options map[string]string `yaml:"options"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl" validate:"omitempty,url"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// TelemetryConfig sets where /metrics is served; empty disables it.
type TelemetryConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

// Validate checks struct constraints after loading.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}

	if v := os.Getenv(finnhubAPIKeyEnv); v != "" {
		c.Market.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.MaxOpenConns != 0 {
		base.Database.MaxOpenConns = override.Database.MaxOpenConns
	}

	if override.Scheduler.IngestCron != "" {
		base.Scheduler.IngestCron = override.Scheduler.IngestCron
	}
	if override.Scheduler.ValidationCron != "" {
		base.Scheduler.ValidationCron = override.Scheduler.ValidationCron
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Dedup.SimilarityThreshold != 0 {
		base.Dedup.SimilarityThreshold = override.Dedup.SimilarityThreshold
	}
	if override.Dedup.TitleWindow != 0 {
		base.Dedup.TitleWindow = override.Dedup.TitleWindow
	}
	if override.Dedup.BodySample != 0 {
		base.Dedup.BodySample = override.Dedup.BodySample
	}

	if override.Usage.LookbackDays != 0 {
		base.Usage.LookbackDays = override.Usage.LookbackDays
	}
	if override.Usage.MaxArticles != 0 {
		base.Usage.MaxArticles = override.Usage.MaxArticles
	}

	if override.Validation.PriceTimeout != 0 {
		base.Validation.PriceTimeout = override.Validation.PriceTimeout
	}
	if override.Validation.RequestsPerSecond != 0 {
		base.Validation.RequestsPerSecond = override.Validation.RequestsPerSecond
	}

	if override.Market.BaseURL != "" {
		base.Market.BaseURL = override.Market.BaseURL
	}
	if override.Market.APIKey != "" {
		base.Market.APIKey = override.Market.APIKey
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}
	if len(override.Securities) > 0 {
		base.Securities = override.Securities
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.BaseURL != "" {
		base.Notifications.Telegram.BaseURL = override.Notifications.Telegram.BaseURL
	}

	if override.Telemetry.ListenAddr != "" {
		base.Telemetry.ListenAddr = override.Telemetry.ListenAddr
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:sentiment.db"},
		Scheduler: SchedulerConfig{
			IngestCron:     "0 0 */4 * * *",
			ValidationCron: "0 0 6 * * *",
			Timezone:       defaultTimezone,
			location:       tz,
		},
		Dedup:      DedupConfig{SimilarityThreshold: 0.85, TitleWindow: 50, BodySample: 500},
		Usage:      UsageConfig{LookbackDays: 7, MaxArticles: 30},
		Validation: ValidationConfig{PriceTimeout: 10 * time.Second, RequestsPerSecond: 1},
		Market:     MarketConfig{BaseURL: "https://finnhub.io/api/v1"},
		Sources: []SourceConfig{
			{Name: "finnhub", Scanner: "finnhub"},
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
		},
	}
}
