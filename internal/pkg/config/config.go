package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Browser    BrowserConfig    `yaml:"browser"`
	Session    SessionConfig    `yaml:"session"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Output     OutputConfig     `yaml:"output"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Logging    LoggingConfig    `yaml:"logging"`
	Health     HealthConfig     `yaml:"health"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}

type SourceConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	Sport   string `yaml:"sport" validate:"required"`
	Country string `yaml:"country" validate:"required"`
	League  string `yaml:"league" validate:"required"`
	// Season like "2024-2025"; empty means the season currently running.
	Season       string `yaml:"season" validate:"omitempty,len=9"`
	Timezone     string `yaml:"timezone"`
	SkipExisting bool   `yaml:"skip_existing"`
}

type BrowserConfig struct {
	Headful        bool              `yaml:"headful"`
	Sandbox        bool              `yaml:"sandbox"`
	UserAgent      string            `yaml:"user_agent"`
	StartupTimeout time.Duration     `yaml:"startup_timeout" validate:"gt=0"`
	ActionTimeout  time.Duration     `yaml:"action_timeout" validate:"gt=0"`
	ExtraFlags     map[string]string `yaml:"extra_flags"`
}

type SessionConfig struct {
	// BatchQuota is the number of items processed before a planned recycle.
	BatchQuota    int           `yaml:"batch_quota" validate:"gt=0"`
	QuotaCooldown time.Duration `yaml:"quota_cooldown" validate:"gte=0"`
	FatalCooldown time.Duration `yaml:"fatal_cooldown" validate:"gte=0"`
	// MaxFatalRetries caps fatal retries of one item; 0 means unlimited.
	MaxFatalRetries int `yaml:"max_fatal_retries" validate:"gte=0"`
}

type ExtractionConfig struct {
	NavigationTimeout     time.Duration `yaml:"navigation_timeout" validate:"gt=0"`
	ContentTimeout        time.Duration `yaml:"content_timeout" validate:"gt=0"`
	TimelineTimeout       time.Duration `yaml:"timeline_timeout" validate:"gt=0"`
	StatisticsTimeout     time.Duration `yaml:"statistics_timeout" validate:"gt=0"`
	SummarySettle         time.Duration `yaml:"summary_settle"`
	OddsSettle            time.Duration `yaml:"odds_settle"`
	ItemAttempts          int           `yaml:"item_attempts" validate:"gt=0"`
	ItemDelay             time.Duration `yaml:"item_delay"`
	StageAttempts         int           `yaml:"stage_attempts" validate:"gt=0"`
	StageDelay            time.Duration `yaml:"stage_delay"`
	MinNavigationInterval time.Duration `yaml:"min_navigation_interval"`
}

type CheckpointConfig struct {
	Backend string `yaml:"backend" validate:"oneof=file redis none"`
	// Every is the number of successful items between checkpoint writes.
	Every int         `yaml:"every" validate:"gt=0"`
	Dir   string      `yaml:"dir"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" validate:"required_if=Enabled true"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Enabled  bool          `yaml:"-"`
}

type OutputConfig struct {
	Dir string `yaml:"dir" validate:"required"`
	// Formats lists the file sinks to write: json, csv.
	Formats   []string `yaml:"formats" validate:"dive,oneof=json csv"`
	BatchSize int      `yaml:"batch_size" validate:"gt=0"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
	// File, when set, receives a JSON copy of every record.
	File string `yaml:"file"`
}

type HealthConfig struct {
	// Addr like ":8080"; empty disables the health server.
	Addr string `yaml:"addr"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Default returns the configuration used for every field a file leaves unset.
func Default() Config {
	return Config{
		Source: SourceConfig{
			BaseURL:  "https://www.flashscore.com",
			Sport:    "soccer",
			Country:  "germany",
			League:   "2-bundesliga",
			Timezone: "UTC",
		},
		Browser: BrowserConfig{
			StartupTimeout: 60 * time.Second,
			ActionTimeout:  30 * time.Second,
		},
		Session: SessionConfig{
			BatchQuota:    20,
			QuotaCooldown: 20 * time.Second,
			FatalCooldown: 30 * time.Second,
		},
		Extraction: ExtractionConfig{
			NavigationTimeout: 30 * time.Second,
			ContentTimeout:    30 * time.Second,
			TimelineTimeout:   5 * time.Second,
			StatisticsTimeout: 15 * time.Second,
			SummarySettle:     2 * time.Second,
			OddsSettle:        5 * time.Second,
			ItemAttempts:      2,
			ItemDelay:         5 * time.Second,
			StageAttempts:     2,
			StageDelay:        2 * time.Second,
		},
		Checkpoint: CheckpointConfig{
			Backend: "file",
			Every:   10,
		},
		Output: OutputConfig{
			Dir:       "data",
			Formats:   []string{"json"},
			BatchSize: 10,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:   4,
			ConnectTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configPath, merges "<name>.local.<ext>" next to it over the
// result when present, fills unset fields from Default and validates.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	localPath := LocalPath(configPath)
	if local, err := os.ReadFile(localPath); err == nil {
		var override Config
		if err := yaml.Unmarshal(local, &override); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", localPath, err)
		}
		if err := mergo.Merge(&config, override, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", localPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	if err := config.finish(); err != nil {
		return nil, err
	}
	return &config, nil
}

// FromDefaults returns a validated Default with environment overrides applied,
// for runs without a config file.
func FromDefaults() (*Config, error) {
	config := Default()
	if err := config.finish(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) finish() error {
	if err := mergo.Merge(c, Default()); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}
	c.applyEnv()
	c.Checkpoint.Redis.Enabled = c.Checkpoint.Backend == "redis"
	return c.Validate()
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		c.Postgres.DSN = dsn
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Telegram.BotToken = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Checkpoint.Redis.Addr = addr
	}
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location is the zone page dates are interpreted in.
func (c *Config) Location() (*time.Location, error) {
	if c.Source.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Source.Timezone)
}

// LocalPath is the optional override file next to configPath.
func LocalPath(configPath string) string {
	ext := filepath.Ext(configPath)
	return strings.TrimSuffix(configPath, ext) + ".local" + ext
}
