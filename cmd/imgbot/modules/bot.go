package modules

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/memohai/imgbot/internal/boot"
	"github.com/memohai/imgbot/internal/channel"
	"github.com/memohai/imgbot/internal/channel/adapters/telegram"
	"github.com/memohai/imgbot/internal/commands"
	"github.com/memohai/imgbot/internal/config"
	"github.com/memohai/imgbot/internal/imagehost"
	"github.com/memohai/imgbot/internal/media"
	"github.com/memohai/imgbot/internal/metrics"
	"github.com/memohai/imgbot/internal/pipeline"
	"github.com/memohai/imgbot/internal/router"
	"github.com/memohai/imgbot/internal/schedule"
	"github.com/memohai/imgbot/internal/storage"
	"github.com/memohai/imgbot/internal/sysinfo"
)

var BotModule = fx.Module(
	"bot",
	fx.Provide(
		provideTelegramAdapter,
		fx.Annotate(media.NewClassifier, fx.As(new(media.Classifier))),
		provideImageHost,
		providePipeline,
		provideRouter,
		provideJanitor,
	),
	fx.Invoke(
		startJanitor,
		startBot,
	),
)

// ---------------------------------------------------------------------------
// bot providers
// ---------------------------------------------------------------------------

func provideTelegramAdapter(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (*telegram.Adapter, error) {
	return telegram.New(log, rc.AccessToken, telegram.WithUpdatesTimeout(cfg.Bot.UpdatesTimeout))
}

func provideImageHost(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) *imagehost.Client {
	return imagehost.NewClient(log, cfg.Host, rc.APIKey)
}

func providePipeline(log *slog.Logger, cfg config.Config, store *storage.Store, classifier media.Classifier, host *imagehost.Client, adapter *telegram.Adapter, m *metrics.Metrics) *pipeline.Pipeline {
	return pipeline.New(log, cfg.Host, store, classifier, host, adapter, adapter, m)
}

func provideRouter(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig, p *pipeline.Pipeline, adapter *telegram.Adapter, store *storage.Store, sys sysinfo.Provider, m *metrics.Metrics) *router.Router {
	r := router.New(log, p, adapter, router.Options{
		AdminUserID:   cfg.Bot.AdminUserID,
		RatePerMinute: rc.RatePerMinute,
	})
	commands.New(log, cfg.Host, store, sys, adapter, m).Register(r)
	return r
}

func provideJanitor(log *slog.Logger, rc *boot.RuntimeConfig, store *storage.Store, m *metrics.Metrics) (*schedule.Janitor, error) {
	return schedule.NewJanitor(log, store, rc.SweepSchedule, rc.CacheMaxAge, m)
}

// ---------------------------------------------------------------------------
// lifecycle
// ---------------------------------------------------------------------------

func startJanitor(lc fx.Lifecycle, janitor *schedule.Janitor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return janitor.Start()
		},
		OnStop: func(ctx context.Context) error {
			return janitor.Stop(ctx)
		},
	})
}

func startBot(lc fx.Lifecycle, logger *slog.Logger, rc *boot.RuntimeConfig, adapter *telegram.Adapter, r *router.Router) {
	var handler channel.Handler = r.Handle
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// The start context expires with fx's start timeout; updates outlive it.
			if rc.Webhook {
				return adapter.StartWebhook(context.Background(), handler, rc.WebhookURL, rc.TLSCertFile)
			}
			return adapter.StartPolling(context.Background(), handler)
		},
		OnStop: func(ctx context.Context) error {
			if err := adapter.Stop(ctx); err != nil {
				logger.Warn("bot stop incomplete", slog.Any("error", err))
			}
			return nil
		},
	})
}
