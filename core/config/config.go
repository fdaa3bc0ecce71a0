package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// FlowConfig tunes session lifecycle and navigation limits of the flow engine.
type FlowConfig struct {
	IdleTimeoutSeconds   int  `yaml:"idle_timeout_seconds" envconfig:"FLOW_IDLE_TIMEOUT_SECONDS"`
	SweepIntervalSeconds int  `yaml:"sweep_interval_seconds" envconfig:"FLOW_SWEEP_INTERVAL_SECONDS"`
	MaxHistoryDepth      int  `yaml:"max_history_depth" envconfig:"FLOW_MAX_HISTORY_DEPTH"`
	AllowAnyUser         bool `yaml:"allow_any_user" envconfig:"FLOW_ALLOW_ANY_USER"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// DefaultIdleTimeoutSeconds terminates sessions idle longer than this.
	DefaultIdleTimeoutSeconds = 600
	// DefaultSweepIntervalSeconds is how often expired sessions are collected.
	DefaultSweepIntervalSeconds = 30
	// DefaultMaxHistoryDepth bounds back-navigation history per session.
	DefaultMaxHistoryDepth = 32
)

// RateLimitConfig holds settings for rate limiting of inbound updates.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Flow      FlowConfig      `yaml:"flow"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.Flow.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("flow.idle_timeout_seconds must be >= 0")
	}
	if cfg.Flow.IdleTimeoutSeconds == 0 {
		cfg.Flow.IdleTimeoutSeconds = DefaultIdleTimeoutSeconds
	}
	if cfg.Flow.SweepIntervalSeconds < 0 {
		return fmt.Errorf("flow.sweep_interval_seconds must be >= 0")
	}
	if cfg.Flow.SweepIntervalSeconds == 0 {
		cfg.Flow.SweepIntervalSeconds = DefaultSweepIntervalSeconds
	}
	if cfg.Flow.SweepIntervalSeconds > cfg.Flow.IdleTimeoutSeconds {
		return fmt.Errorf("flow.sweep_interval_seconds must not exceed flow.idle_timeout_seconds")
	}
	if cfg.Flow.MaxHistoryDepth < 0 {
		return fmt.Errorf("flow.max_history_depth must be >= 0")
	}
	if cfg.Flow.MaxHistoryDepth == 0 {
		cfg.Flow.MaxHistoryDepth = DefaultMaxHistoryDepth
	}

	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}
	return nil
}
