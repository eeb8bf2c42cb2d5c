package server

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/0xADE/datacube/internal/config"
	"github.com/0xADE/datacube/internal/provider"
)

// Module provides the socket server.
var Module = fx.Module("server",
	fx.Provide(ProvideServer),
)

// ProvideServer binds the socket on start and closes it on stop.
func ProvideServer(cfg *config.Config, router *provider.Router, lc fx.Lifecycle, logger *zap.Logger) *Server {
	srv := NewServer(cfg, router, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// ctx only covers startup; Stop ends serving.
			return srv.Start(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop()
		},
	})
	return srv
}
