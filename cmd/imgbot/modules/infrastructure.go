package modules

import (
	"fmt"
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/imgbot/internal/boot"
	"github.com/memohai/imgbot/internal/config"
	"github.com/memohai/imgbot/internal/logger"
	"github.com/memohai/imgbot/internal/metrics"
	"github.com/memohai/imgbot/internal/storage"
	"github.com/memohai/imgbot/internal/sysinfo"
)

// ConfigPath is the TOML file the app loads.
type ConfigPath string

var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		provideLogger,
		boot.ProvideRuntimeConfig,
		metrics.New,
		provideStore,
		fx.Annotate(sysinfo.NewHost, fx.As(new(sysinfo.Provider))),
	),
)

// WithLogger routes fx lifecycle events through the app logger.
func WithLogger() fx.Option {
	return fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
		return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
	})
}

// ---------------------------------------------------------------------------
// infrastructure providers
// ---------------------------------------------------------------------------

func provideConfig(path ConfigPath) (config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.Init(cfg.Log.Level, cfg.Log.Format)
}

func provideStore(log *slog.Logger, rc *boot.RuntimeConfig) (*storage.Store, error) {
	store := storage.NewStore(log, rc.CacheDir, rc.MaxFileBytes)
	if err := store.EnsureReady(); err != nil {
		return nil, err
	}
	return store, nil
}
