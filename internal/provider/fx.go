package provider

import (
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/0xADE/datacube/internal/config"
	"github.com/0xADE/datacube/internal/indexer"
	"github.com/0xADE/datacube/internal/indexer/executable"
)

// executableMaxAge is how long a PATH scan is served before rescanning.
const executableMaxAge = time.Minute

// Module provides the provider registry and router.
var Module = fx.Module("provider",
	fx.Provide(ProvideExecutables),
	fx.Provide(ProvideRegistry),
	fx.Provide(ProvideRouter),
)

// ProvideExecutables scans PATH when the command provider is enabled and
// returns nil otherwise.
func ProvideExecutables(cfg *config.Config, logger *zap.Logger) Executables {
	if !cfg.Providers.Command.Enabled {
		return nil
	}
	catalog := executable.NewCatalog(cfg.SearchPath, executableMaxAge)
	logger.Info("Executables scanned",
		zap.Int("count", catalog.Len()),
		zap.Strings("path", cfg.SearchPath))
	return catalog
}

// ProvideRegistry registers the built-in providers.
func ProvideRegistry(cfg *config.Config, idx *indexer.Indexer, exes Executables, logger *zap.Logger) (*Registry, error) {
	reg, err := NewRegistryFromConfig(cfg, idx, exes)
	if err != nil {
		return nil, err
	}
	for _, info := range reg.List() {
		logger.Info("Provider registered",
			zap.String("name", info.Name),
			zap.String("prefix", info.Prefix),
			zap.Bool("enabled", info.Enabled))
	}
	return reg, nil
}

// ProvideRouter builds the router with the configured result limit.
func ProvideRouter(cfg *config.Config, reg *Registry, logger *zap.Logger) *Router {
	return NewRouter(reg, cfg.MaxResults, logger)
}
