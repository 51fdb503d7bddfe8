package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/memohai/imgbot/cmd/imgbot/modules"
	"github.com/memohai/imgbot/internal/boot"
	"github.com/memohai/imgbot/internal/config"
	"github.com/memohai/imgbot/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          version.Name,
		Short:        "Telegram bot that relays images to a Chevereto image host",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (defaults to $CONFIG_PATH, then config.toml).")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newCheckCmd(&configPath))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*configPath)
		},
	}
}

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(*configPath)
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rc, err := boot.ProvideRuntimeConfig(cfg)
			if err != nil {
				return err
			}
			mode := config.ModePulling
			if rc.Webhook {
				mode = config.ModeWebhook
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (mode %s, cache %s)\n", path, mode, rc.CacheDir)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
}

func serve(configPath string) error {
	app := fx.New(
		fx.Supply(modules.ConfigPath(resolveConfigPath(configPath))),
		modules.InfraModule,
		modules.BotModule,
		modules.ServerModule,
		modules.WithLogger(),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func resolveConfigPath(flagValue string) string {
	if path := strings.TrimSpace(flagValue); path != "" {
		return path
	}
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		return path
	}
	return config.DefaultConfigPath
}
