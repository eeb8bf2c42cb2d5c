package client

import (
	"github.com/0xADE/datacube/internal/config"
)

// SocketPath returns the daemon socket path: $DATACUBE_SOCKET, then
// socket_path from the config file, then $XDG_RUNTIME_DIR/datacube.sock.
// An empty configPath means the default config location.
func SocketPath(configPath string) (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	return cfg.SocketPath, nil
}
