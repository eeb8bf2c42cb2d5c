package config

import (
	"go.uber.org/fx"
)

// Module provides configuration for fx dependency injection.
var Module = fx.Module("config",
	fx.Provide(ProvideConfig),
)

// Overrides carries command line values that take precedence over the file
// and the environment.
type Overrides struct {
	Path   string
	Socket string
	Debug  bool
}

// ProvideConfig loads the configuration and applies command line overrides.
func ProvideConfig(o Overrides) (*Config, error) {
	cfg, err := Load(o.Path)
	if err != nil {
		return nil, err
	}
	if o.Socket != "" {
		cfg.SocketPath = o.Socket
	}
	if o.Debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
