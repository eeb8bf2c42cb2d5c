// Package main is the datacube daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/0xADE/datacube/internal/config"
	"github.com/0xADE/datacube/internal/indexer"
	"github.com/0xADE/datacube/internal/logger"
	"github.com/0xADE/datacube/internal/provider"
	"github.com/0xADE/datacube/server"
)

const version = "0.3.0"

var (
	configPath string
	socketPath string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "datacube",
	Short: "datacube - local query broker",
	Long: `datacube answers launcher queries over a Unix socket. Queries are routed
by prefix to the application index, the calculator or the command provider.`,
	SilenceUsage: true,
	RunE:         runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("datacube v" + version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ProvideConfig(overrides())
		if err != nil {
			return err
		}
		fmt.Printf("socket:     %s\n", cfg.SocketPath)
		fmt.Printf("locale:     %s\n", cfg.Locale)
		fmt.Printf("max:        %d\n", cfg.MaxResults)
		fmt.Printf("refresh:    %s\n", cfg.RefreshInterval)
		for _, dir := range cfg.ApplicationDirs() {
			fmt.Printf("apps:       %s\n", dir)
		}
		for _, root := range cfg.FlatpakInstallations() {
			fmt.Printf("flatpak:    %s\n", root)
		}
		for _, name := range []string{config.ProviderApplications, config.ProviderCalculator, config.ProviderCommand} {
			fmt.Printf("provider:   %s enabled=%t\n", name, cfg.Enabled(name))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "override the socket path")
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func overrides() config.Overrides {
	return config.Overrides{Path: configPath, Socket: socketPath, Debug: debugMode}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	options := []fx.Option{
		fx.Supply(overrides()),
		config.Module,
		logger.Module,
		indexer.Module,
		provider.Module,
		server.Module,

		fx.Invoke(func(lc fx.Lifecycle, log *zap.Logger, srv *server.Server, _ *indexer.Watcher) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					log.Info("datacube started", zap.String("version", version), zap.String("socket", srv.Addr()))
					return nil
				},
			})
		}),
	}
	if debugMode {
		options = append(options, fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}))
	} else {
		options = append(options, fx.NopLogger)
	}

	app := fx.New(options...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("stopping daemon: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
