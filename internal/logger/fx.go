package logger

import (
	"context"
	"errors"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/0xADE/datacube/internal/config"
)

// Module provides the daemon logger for fx dependency injection.
var Module = fx.Module("logger",
	fx.Provide(ProvideLogger),
)

// ProvideLogger builds the logger from the [log] config section and flushes
// it on shutdown.
func ProvideLogger(cfg *config.Config, lc fx.Lifecycle) (*zap.Logger, error) {
	logger, err := New(Config{
		Level:       cfg.Log.Level,
		File:        cfg.Log.File,
		MaxBackups:  3,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Debug("Logger initialized", zap.String("level", cfg.Log.Level))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// Syncing a terminal fails with EINVAL or ENOTTY.
			if err := logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
				return err
			}
			return nil
		},
	})

	return logger, nil
}
