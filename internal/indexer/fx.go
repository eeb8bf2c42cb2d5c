package indexer

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/0xADE/datacube/internal/config"
)

// Module provides the application index and keeps it fresh while the
// daemon runs.
var Module = fx.Module("indexer",
	fx.Provide(ProvideIndexer),
	fx.Provide(ProvideWatcher),
)

// ProvideIndexer builds the index and runs the first refresh on start.
func ProvideIndexer(cfg *config.Config, lc fx.Lifecycle, logger *zap.Logger) *Indexer {
	idx := NewIndexer(cfg, logger)
	if !cfg.Providers.Applications.Enabled {
		return idx
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return idx.Start(ctx)
		},
	})
	return idx
}

// ProvideWatcher watches the application sources.
func ProvideWatcher(cfg *config.Config, idx *Indexer, lc fx.Lifecycle, logger *zap.Logger) (*Watcher, error) {
	apps := cfg.Providers.Applications
	w, err := NewWatcher(idx, WatcherOptions{
		Interval: cfg.RefreshInterval,
		Watch:    apps.Enabled && apps.Watch,
	}, logger)
	if err != nil {
		return nil, err
	}
	if !apps.Enabled {
		return w, nil
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// ctx only covers startup; the watcher lives until OnStop.
			return w.Start(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			return w.Stop()
		},
	})
	return w, nil
}
