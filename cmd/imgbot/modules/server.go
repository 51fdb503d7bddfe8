package modules

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/memohai/imgbot/internal/boot"
	"github.com/memohai/imgbot/internal/channel/adapters/telegram"
	"github.com/memohai/imgbot/internal/handlers"
	"github.com/memohai/imgbot/internal/server"
	"github.com/memohai/imgbot/internal/version"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServerHandler(handlers.NewPingHandler),
		provideServerHandler(handlers.NewMetricsHandler),
		provideServerHandler(provideWebhookHandler),
		provideServer,
	),
	fx.Invoke(startServer),
)

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

// ---------------------------------------------------------------------------
// server
// ---------------------------------------------------------------------------

// provideWebhookHandler mounts the webhook route; in polling mode it has no route.
func provideWebhookHandler(log *slog.Logger, rc *boot.RuntimeConfig, adapter *telegram.Adapter) *handlers.WebhookHandler {
	if !rc.Webhook {
		return nil
	}
	return handlers.NewWebhookHandler(log, rc.WebhookPath, adapter)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

// provideServer returns nil when polling with no server.addr configured.
func provideServer(params serverParams) *server.Server {
	rc := params.RuntimeConfig
	if rc.ListenAddr == "" {
		return nil
	}
	routes := make([]server.Handler, 0, len(params.ServerHandlers))
	for _, h := range params.ServerHandlers {
		if wh, ok := h.(*handlers.WebhookHandler); ok && wh == nil {
			continue
		}
		routes = append(routes, h)
	}
	srv := server.NewServer(params.Logger, rc.ListenAddr, routes...)
	if rc.TLSCertFile != "" && rc.TLSKeyFile != "" {
		srv.WithTLS(rc.TLSCertFile, rc.TLSKeyFile)
	}
	return srv
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting %s %s\n", version.Name, version.GetInfo())
	if srv == nil {
		logger.Info("http server disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
