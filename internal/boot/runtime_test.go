package boot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/imgbot/internal/config"
)

func validConfig() config.Config {
	cfg := config.Default()
	cfg.Bot.AccessToken = "token"
	cfg.Host.ImageHost = "img.example.com"
	cfg.Host.ImageHostAPIKey = "key"
	return cfg
}

func TestProvideRuntimeConfigPulling(t *testing.T) {
	t.Setenv("BOT_ACCESS_TOKEN", "")
	t.Setenv("IMAGE_HOST_API_KEY", "")

	rc, err := ProvideRuntimeConfig(validConfig())
	require.NoError(t, err)
	assert.False(t, rc.Webhook)
	assert.Equal(t, config.DefaultHTTPAddr, rc.ListenAddr)
	assert.Equal(t, 24*time.Hour, rc.CacheMaxAge)
	assert.Equal(t, config.DefaultSweepSchedule, rc.SweepSchedule)
	assert.Equal(t, int64(config.DefaultMaxFileSizeMB)*1024*1024, rc.MaxFileBytes)
	assert.True(t, len(rc.CacheDir) > 0 && rc.CacheDir[0] == '/')
}

func TestProvideRuntimeConfigWebhook(t *testing.T) {
	t.Setenv("BOT_ACCESS_TOKEN", "")
	t.Setenv("IMAGE_HOST_API_KEY", "")

	cfg := validConfig()
	cfg.Bot.Mode = config.ModeWebhook
	cfg.Bot.WebhookURL = "bot.example.com/hook"
	cfg.Bot.WebhookPort = 88
	cfg.Bot.WebhookSSL = true
	cfg.Bot.WebhookSSLCert = "cert.pem"
	cfg.Bot.WebhookSSLKey = "key.pem"

	rc, err := ProvideRuntimeConfig(cfg)
	require.NoError(t, err)
	assert.True(t, rc.Webhook)
	assert.Equal(t, "https://bot.example.com/hook", rc.WebhookURL)
	assert.Equal(t, "/hook", rc.WebhookPath)
	assert.Equal(t, "0.0.0.0:88", rc.ListenAddr)
	assert.Equal(t, "cert.pem", rc.TLSCertFile)
	assert.Equal(t, "key.pem", rc.TLSKeyFile)
}

func TestProvideRuntimeConfigEnvOverrides(t *testing.T) {
	t.Setenv("BOT_ACCESS_TOKEN", "env-token")
	t.Setenv("IMAGE_HOST_API_KEY", "env-key")

	cfg := validConfig()
	cfg.Bot.AccessToken = ""
	cfg.Host.ImageHostAPIKey = ""

	rc, err := ProvideRuntimeConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "env-token", rc.AccessToken)
	assert.Equal(t, "env-key", rc.APIKey)
}

func TestProvideRuntimeConfigInvalid(t *testing.T) {
	t.Setenv("BOT_ACCESS_TOKEN", "")
	t.Setenv("IMAGE_HOST_API_KEY", "")

	cfg := validConfig()
	cfg.Bot.AccessToken = ""
	_, err := ProvideRuntimeConfig(cfg)
	assert.Error(t, err)
}
