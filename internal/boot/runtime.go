// Package boot provides runtime configuration derived from the loaded config.
package boot

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/memohai/imgbot/internal/config"
)

// RuntimeConfig holds parsed runtime settings (secrets, limits, listen addresses).
// Secrets may be overridden by environment variables (BOT_ACCESS_TOKEN, IMAGE_HOST_API_KEY).
type RuntimeConfig struct {
	AccessToken   string
	APIKey        string
	CacheDir      string
	MaxFileBytes  int64
	CacheMaxAge   time.Duration
	SweepSchedule string
	Webhook       bool
	WebhookURL    string
	WebhookPath   string
	ListenAddr    string
	TLSCertFile   string
	TLSKeyFile    string
	RatePerMinute int
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config, applies env overrides and validates the result.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	if value := os.Getenv("BOT_ACCESS_TOKEN"); value != "" {
		cfg.Bot.AccessToken = value
	}
	if value := os.Getenv("IMAGE_HOST_API_KEY"); value != "" {
		cfg.Host.ImageHostAPIKey = value
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cacheDir, err := filepath.Abs(cfg.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}

	var maxAge time.Duration
	if cfg.Cache.MaxAge != "" {
		maxAge, err = time.ParseDuration(cfg.Cache.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid cache max age: %w", err)
		}
	}

	ret := &RuntimeConfig{
		AccessToken:   strings.TrimSpace(cfg.Bot.AccessToken),
		APIKey:        strings.TrimSpace(cfg.Host.ImageHostAPIKey),
		CacheDir:      cacheDir,
		MaxFileBytes:  cfg.Host.MaxFileBytes(),
		CacheMaxAge:   maxAge,
		SweepSchedule: strings.TrimSpace(cfg.Cache.SweepSchedule),
		Webhook:       cfg.Bot.Mode == config.ModeWebhook,
		ListenAddr:    cfg.Server.Addr,
		RatePerMinute: cfg.Bot.RateLimitPerMinute,
	}
	if ret.Webhook {
		ret.WebhookURL = "https://" + strings.TrimPrefix(strings.TrimSpace(cfg.Bot.WebhookURL), "https://")
		u, err := url.Parse(ret.WebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url: %w", err)
		}
		ret.WebhookPath = u.Path
		if ret.WebhookPath == "" {
			ret.WebhookPath = "/"
		}
		ret.ListenAddr = net.JoinHostPort(cfg.Bot.WebhookListen, strconv.Itoa(cfg.Bot.WebhookPort))
		if cfg.Bot.WebhookSSL {
			ret.TLSCertFile = cfg.Bot.WebhookSSLCert
			ret.TLSKeyFile = cfg.Bot.WebhookSSLKey
		}
	}
	return ret, nil
}
