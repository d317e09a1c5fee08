package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		WebhookToken string `yaml:"webhook_token"`
	} `yaml:"server"`
	Logging struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"logging"`
	State         StateConfig         `yaml:"state"`
	Platform      PlatformConfig      `yaml:"platform"`
	Sweep         SweepConfig         `yaml:"sweep"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Admin         AdminConfig         `yaml:"admin"`
	Appeals       AppealConfig        `yaml:"appeals"`
	Rules         Rules               `yaml:"enforcement"`
}

// StateConfig selects and configures the state store backend.
type StateConfig struct {
	Backend string `yaml:"backend"` // redis, postgres, sqlite or memory
	Redis   struct {
		Addr      string `yaml:"addr"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		PoolSize  int    `yaml:"pool_size"`
		Namespace string `yaml:"namespace"`
	} `yaml:"redis"`
	Database struct {
		URL            string `yaml:"url"`
		MigrationsPath string `yaml:"migrations_path"`
	} `yaml:"database"`
	TTL TTLConfig `yaml:"ttl"`
}

// TTLConfig holds the expiration windows of the enforcement records.
type TTLConfig struct {
	Processed time.Duration `yaml:"processed"`
	Warned    time.Duration `yaml:"warned"`
	Removed   time.Duration `yaml:"removed"`
	Approved  time.Duration `yaml:"approved"`
}

// PlatformConfig points at the host platform gateway.
type PlatformConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Token       string        `yaml:"token"`
	Timeout     time.Duration `yaml:"timeout"`
	BotUsername string        `yaml:"bot_username"`
	Breaker     struct {
		MaxFailures uint32        `yaml:"max_failures"`
		OpenTimeout time.Duration `yaml:"open_timeout"`
	} `yaml:"breaker"`
}

// SweepConfig controls the periodic reinstatement sweep and timer execution.
type SweepConfig struct {
	Schedule         string `yaml:"schedule"`
	PurgeSchedule    string `yaml:"purge_schedule"`
	Limit            int    `yaml:"limit"`
	TimerConcurrency int64  `yaml:"timer_concurrency"`
}

// NotificationsConfig configures the outbound event sinks.
type NotificationsConfig struct {
	Workers    int `yaml:"workers"`
	BufferSize int `yaml:"buffer_size"`
	Webhook    struct {
		URL    string `yaml:"url"`
		Format string `yaml:"format"` // json or discord
	} `yaml:"webhook"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
}

// TelegramConfig configures the moderator notification bot.
type TelegramConfig struct {
	Enabled  bool    `yaml:"enabled"`
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
}

// AdminConfig configures access to the admin API.
type AdminConfig struct {
	Username     string        `yaml:"username"`
	PasswordHash string        `yaml:"password_hash"` // argon2id, see service.HashPassword
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// AppealConfig configures the approval channel and its replies.
type AppealConfig struct {
	Channel          string   `yaml:"channel"`
	Host             string   `yaml:"host"`
	ShortLinkHosts   []string `yaml:"short_link_hosts"`
	ArchiveOnSuccess bool     `yaml:"archive_on_success"`
	Replies          struct {
		InvalidReference   string `yaml:"invalid_reference"`
		NotFound           string `yaml:"not_found"`
		AlreadyApproved    string `yaml:"already_approved"`
		NotRemovedByBot    string `yaml:"not_removed_by_bot"`
		NotAuthor          string `yaml:"not_author"`
		InvalidExplanation string `yaml:"invalid_explanation"`
		Success            string `yaml:"success"`
		Failure            string `yaml:"failure"`
	} `yaml:"replies"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.expandEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Rules: DefaultRules()}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) expandEnv() {
	c.Server.WebhookToken = os.ExpandEnv(c.Server.WebhookToken)
	c.State.Redis.Password = os.ExpandEnv(c.State.Redis.Password)
	c.State.Database.URL = os.ExpandEnv(c.State.Database.URL)
	c.Platform.Token = os.ExpandEnv(c.Platform.Token)
	c.Telegram.BotToken = os.ExpandEnv(c.Telegram.BotToken)
	c.Admin.PasswordHash = os.ExpandEnv(c.Admin.PasswordHash)
	c.Admin.JWTSecret = os.ExpandEnv(c.Admin.JWTSecret)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.State.Backend == "" {
		c.State.Backend = "redis"
	}
	if c.State.Redis.Addr == "" {
		c.State.Redis.Addr = "localhost:6379"
	}
	if c.State.Redis.PoolSize == 0 {
		c.State.Redis.PoolSize = 10
	}
	if c.State.Redis.Namespace == "" {
		c.State.Redis.Namespace = "ppbot"
	}
	if c.State.Database.MigrationsPath == "" {
		c.State.Database.MigrationsPath = "migrations"
	}
	if c.State.TTL.Processed == 0 {
		c.State.TTL.Processed = 24 * time.Hour
	}
	if c.State.TTL.Warned == 0 {
		c.State.TTL.Warned = 7 * 24 * time.Hour
	}
	if c.State.TTL.Approved == 0 {
		c.State.TTL.Approved = 7 * 24 * time.Hour
	}
	if c.State.TTL.Removed == 0 {
		c.State.TTL.Removed = 30 * 24 * time.Hour
	}
	if c.Platform.Timeout == 0 {
		c.Platform.Timeout = 10 * time.Second
	}
	if c.Platform.Breaker.MaxFailures == 0 {
		c.Platform.Breaker.MaxFailures = 5
	}
	if c.Platform.Breaker.OpenTimeout == 0 {
		c.Platform.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = "@every 5m"
	}
	if c.Sweep.PurgeSchedule == "" {
		c.Sweep.PurgeSchedule = "@every 1h"
	}
	if c.Sweep.Limit == 0 {
		c.Sweep.Limit = 100
	}
	if c.Sweep.TimerConcurrency == 0 {
		c.Sweep.TimerConcurrency = 4
	}
	if c.Notifications.Workers == 0 {
		c.Notifications.Workers = 2
	}
	if c.Notifications.BufferSize == 0 {
		c.Notifications.BufferSize = 256
	}
	if c.Notifications.Webhook.Format == "" {
		c.Notifications.Webhook.Format = "json"
	}
	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = 12 * time.Hour
	}
	c.Appeals.applyDefaults()
}

func (a *AppealConfig) applyDefaults() {
	if a.Host == "" {
		a.Host = "https://www.reddit.com"
	}
	if len(a.ShortLinkHosts) == 0 {
		a.ShortLinkHosts = []string{"redd.it"}
	}
	r := &a.Replies
	if r.InvalidReference == "" {
		r.InvalidReference = "I couldn't find a link to a post in your message. Please include the full post link."
	}
	if r.NotFound == "" {
		r.NotFound = "That post could not be found. It may have been deleted."
	}
	if r.AlreadyApproved == "" {
		r.AlreadyApproved = "Your post {{itemUrl}} is already visible. Nothing to do."
	}
	if r.NotRemovedByBot == "" {
		r.NotRemovedByBot = "Your post {{itemUrl}} was not removed by this bot. Please contact the moderators directly."
	}
	if r.NotAuthor == "" {
		r.NotAuthor = "Only the author of {{itemUrl}} may request reinstatement."
	}
	if r.InvalidExplanation == "" {
		r.InvalidExplanation = "Your explanation for {{itemUrl}} does not meet the requirements yet: {{reason}}"
	}
	if r.Success == "" {
		r.Success = "Thanks {{author}}, your post {{itemUrl}} has been reinstated."
	}
	if r.Failure == "" {
		r.Failure = "Something went wrong while processing your request for {{itemUrl}}. Please try again later."
	}
}

// Validate checks the values a running engine relies on.
func (c *Config) Validate() error {
	switch c.State.Backend {
	case "redis", "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}
	if (c.State.Backend == "postgres" || c.State.Backend == "sqlite") && c.State.Database.URL == "" {
		return fmt.Errorf("state.database.url is required for backend %q", c.State.Backend)
	}
	return c.Rules.Validate()
}
