// Package config loads and exposes application configuration (TOML).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultCacheDir       = "cache"
	DefaultReturnFormat   = "json"
	DefaultUserAgent      = "Chevereto Telegram Bot"
	DefaultMaxFileSizeMB  = 10
	DefaultWebhookListen  = "0.0.0.0"
	DefaultWebhookPort    = 8443
	DefaultSweepSchedule  = "@every 1h"
	DefaultCacheMaxAge    = "24h"
	DefaultUpdatesTimeout = 30
)

// Transport modes accepted by bot.mode.
const (
	ModePulling = "PULLING"
	ModeWebhook = "WEBHOOK"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log    LogConfig    `toml:"log"`
	Bot    BotConfig    `toml:"bot"`
	Host   HostConfig   `toml:"host"`
	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// BotConfig holds the Telegram credentials, the admin identity and the transport mode.
type BotConfig struct {
	AccessToken        string `toml:"access_token"`
	AdminUserID        int64  `toml:"admin_user_id"`
	Mode               string `toml:"mode"`
	WebhookURL         string `toml:"webhook_url"`
	WebhookListen      string `toml:"webhook_listen"`
	WebhookPort        int    `toml:"webhook_port"`
	WebhookSSL         bool   `toml:"webhook_ssl"`
	WebhookSSLKey      string `toml:"webhook_ssl_key"`
	WebhookSSLCert     string `toml:"webhook_ssl_cert"`
	UpdatesTimeout     int    `toml:"updates_timeout"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
}

// HostConfig describes the remote image host and what the bot accepts for it.
type HostConfig struct {
	ImageHost             string   `toml:"image_host"`
	ImageHostAPIKey       string   `toml:"image_host_api_key"`
	ImageHostReturnFormat string   `toml:"image_host_return_format"`
	UserAgent             string   `toml:"user_agent"`
	AllowedFileFormats    []string `toml:"allowed_file_formats"`
	AllowedFileMimeTypes  []string `toml:"allowed_file_mime_types"`
	MaxFileSizeMB         int      `toml:"max_file_size_mb"`
}

// CacheConfig holds the staging directory and the janitor schedule.
type CacheConfig struct {
	Dir           string `toml:"dir"`
	SweepSchedule string `toml:"sweep_schedule"`
	MaxAge        string `toml:"max_age"`
}

// ServerConfig holds the health/metrics HTTP listen address used in pulling mode.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Bot: BotConfig{
			Mode:           ModePulling,
			WebhookListen:  DefaultWebhookListen,
			WebhookPort:    DefaultWebhookPort,
			UpdatesTimeout: DefaultUpdatesTimeout,
		},
		Host: HostConfig{
			ImageHostReturnFormat: DefaultReturnFormat,
			UserAgent:             DefaultUserAgent,
			AllowedFileFormats:    []string{"jpg", "png", "bmp", "gif", "webp"},
			AllowedFileMimeTypes:  []string{"image/jpeg", "image/png", "image/bmp", "image/gif", "image/webp"},
			MaxFileSizeMB:         DefaultMaxFileSizeMB,
		},
		Cache: CacheConfig{
			Dir:           DefaultCacheDir,
			SweepSchedule: DefaultSweepSchedule,
			MaxAge:        DefaultCacheMaxAge,
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
	}
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	cfg.Bot.Mode = strings.ToUpper(strings.TrimSpace(cfg.Bot.Mode))

	return cfg, nil
}

// Validate reports configuration that would prevent the bot from starting.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Bot.AccessToken) == "" {
		errs = append(errs, errors.New("bot.access_token is required"))
	}
	switch c.Bot.Mode {
	case ModePulling:
	case ModeWebhook:
		if strings.TrimSpace(c.Bot.WebhookURL) == "" {
			errs = append(errs, errors.New("bot.webhook_url is required in WEBHOOK mode"))
		}
		if c.Bot.WebhookPort <= 0 || c.Bot.WebhookPort > 65535 {
			errs = append(errs, fmt.Errorf("bot.webhook_port out of range: %d", c.Bot.WebhookPort))
		}
		if c.Bot.WebhookSSL && (c.Bot.WebhookSSLKey == "" || c.Bot.WebhookSSLCert == "") {
			errs = append(errs, errors.New("bot.webhook_ssl_key and bot.webhook_ssl_cert are required when webhook_ssl is set"))
		}
	default:
		errs = append(errs, fmt.Errorf("bot.mode must be %s or %s, got %q", ModePulling, ModeWebhook, c.Bot.Mode))
	}
	if strings.TrimSpace(c.Host.ImageHost) == "" {
		errs = append(errs, errors.New("host.image_host is required"))
	}
	if strings.TrimSpace(c.Host.ImageHostAPIKey) == "" {
		errs = append(errs, errors.New("host.image_host_api_key is required"))
	}
	if len(c.Host.AllowedFileMimeTypes) == 0 {
		errs = append(errs, errors.New("host.allowed_file_mime_types must not be empty"))
	}
	if c.Host.MaxFileSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("host.max_file_size_mb must be positive, got %d", c.Host.MaxFileSizeMB))
	}
	if strings.TrimSpace(c.Cache.Dir) == "" {
		errs = append(errs, errors.New("cache.dir is required"))
	}
	if c.Cache.MaxAge != "" {
		if _, err := time.ParseDuration(c.Cache.MaxAge); err != nil {
			errs = append(errs, fmt.Errorf("cache.max_age: %w", err))
		}
	}
	if c.Bot.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("bot.rate_limit_per_minute must not be negative"))
	}
	return errors.Join(errs...)
}

// MaxFileBytes returns the configured upload limit in bytes.
func (c HostConfig) MaxFileBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// AllowedFormatsText renders the allowed formats for user-facing messages.
func (c HostConfig) AllowedFormatsText() string {
	return strings.Join(c.AllowedFileFormats, ", ")
}
