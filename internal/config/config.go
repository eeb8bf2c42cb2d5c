package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Provider names known to the daemon.
const (
	ProviderApplications = "applications"
	ProviderCalculator   = "calculator"
	ProviderCommand      = "command"
)

// Config is the daemon configuration. It is assembled once at startup from
// defaults, the TOML file and the environment, and is not modified after
// Validate succeeds.
type Config struct {
	SocketPath      string        `toml:"socket_path"`
	MaxResults      int           `toml:"max_results"`
	MaxFrameSize    int           `toml:"max_frame_size"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	Workers         int           `toml:"workers"`
	RefreshInterval time.Duration `toml:"refresh_interval"`
	Locale          string        `toml:"locale"`

	Log       LogConfig       `toml:"log"`
	Providers ProvidersConfig `toml:"providers"`

	// Resolved from the environment, not the file.
	DataHome   string   `toml:"-"`
	DataDirs   []string `toml:"-"`
	SearchPath []string `toml:"-"`
}

// LogConfig configures the daemon logger.
type LogConfig struct {
	Level       string `toml:"level"`
	File        string `toml:"file"`
	Development bool   `toml:"development"`
}

// ProvidersConfig holds per-provider settings.
type ProvidersConfig struct {
	Applications ApplicationsConfig `toml:"applications"`
	Calculator   CalculatorConfig   `toml:"calculator"`
	Command      CommandConfig      `toml:"command"`
}

// ApplicationsConfig configures the application index.
type ApplicationsConfig struct {
	Enabled              bool     `toml:"enabled"`
	ExtraDirs            []string `toml:"extra_dirs"`
	FlatpakInstallations []string `toml:"flatpak_installations"`
	FlatpakRefs          []string `toml:"flatpak_refs"`
	Fuzzy                bool     `toml:"fuzzy"`
	Watch                bool     `toml:"watch"`
}

// CalculatorConfig configures the calculator provider.
type CalculatorConfig struct {
	Enabled bool   `toml:"enabled"`
	Prefix  string `toml:"prefix"`
}

// CommandConfig configures the command provider.
type CommandConfig struct {
	Enabled bool   `toml:"enabled"`
	Prefix  string `toml:"prefix"`
}

type env struct {
	Socket     string `envconfig:"DATACUBE_SOCKET"`
	MaxResults int    `envconfig:"DATACUBE_MAX_RESULTS"`
	Workers    int    `envconfig:"DATACUBE_WORKERS"`
	LogLevel   string `envconfig:"DATACUBE_LOG_LEVEL"`
	ConfigHome string `envconfig:"XDG_CONFIG_HOME"`
	RuntimeDir string `envconfig:"XDG_RUNTIME_DIR"`
	DataHome   string `envconfig:"XDG_DATA_HOME"`
	DataDirs   string `envconfig:"XDG_DATA_DIRS"`
	Path       string `envconfig:"PATH"`
	LCAll      string `envconfig:"LC_ALL"`
	LCMessages string `envconfig:"LC_MESSAGES"`
	Lang       string `envconfig:"LANG"`
}

// Default returns the built-in configuration with no environment applied.
func Default() *Config {
	return &Config{
		MaxResults:      50,
		MaxFrameSize:    1 << 20,
		Workers:         4,
		RefreshInterval: 5 * time.Minute,
		Log:             LogConfig{Level: "info"},
		Providers: ProvidersConfig{
			Applications: ApplicationsConfig{Enabled: true, Fuzzy: true, Watch: true},
			Calculator:   CalculatorConfig{Enabled: true, Prefix: "="},
			Command:      CommandConfig{Enabled: false, Prefix: "/"},
		},
	}
}

// Load builds the configuration. If path is empty the default location
// ($XDG_CONFIG_HOME/datacube/config.toml) is used and a missing file is not
// an error; an explicit path must exist.
func Load(path string) (*Config, error) {
	var e env
	if err := envconfig.Process("", &e); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath(e.ConfigHome)
	}
	if path != "" {
		if _, err := toml.DecodeFile(expandPath(path), cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv(e)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns the default config file location.
func DefaultPath(configHome string) string {
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "datacube", "config.toml")
}

func (c *Config) applyEnv(e env) {
	if e.Socket != "" {
		c.SocketPath = e.Socket
	}
	if e.MaxResults > 0 {
		c.MaxResults = e.MaxResults
	}
	if e.Workers > 0 {
		c.Workers = e.Workers
	}
	if e.LogLevel != "" {
		c.Log.Level = e.LogLevel
	}

	if c.SocketPath == "" {
		c.SocketPath = defaultSocketPath(e.RuntimeDir)
	}

	c.DataHome = e.DataHome
	if c.DataHome == "" {
		c.DataHome = expandPath("~/.local/share")
	}
	dataDirs := e.DataDirs
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	c.DataDirs = splitList(dataDirs)
	c.SearchPath = splitList(e.Path)

	if c.Locale == "" {
		c.Locale = normalizeLocale(firstNonEmpty(e.LCAll, e.LCMessages, e.Lang))
	}
}

// Validate checks value ranges and normalizes paths.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return errors.New("socket_path must not be empty")
	}
	c.SocketPath = expandPath(c.SocketPath)
	if c.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive, got %d", c.MaxResults)
	}
	if c.MaxFrameSize <= 0 || int64(c.MaxFrameSize) > int64(^uint32(0)) {
		return fmt.Errorf("max_frame_size out of range: %d", c.MaxFrameSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.RefreshInterval < 0 || c.IdleTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	if c.Providers.Calculator.Enabled && c.Providers.Calculator.Prefix == "" {
		return errors.New("providers.calculator.prefix must not be empty")
	}
	if c.Providers.Command.Enabled && c.Providers.Command.Prefix == "" {
		return errors.New("providers.command.prefix must not be empty")
	}
	for i, dir := range c.Providers.Applications.ExtraDirs {
		c.Providers.Applications.ExtraDirs[i] = expandPath(dir)
	}
	for i, dir := range c.Providers.Applications.FlatpakInstallations {
		c.Providers.Applications.FlatpakInstallations[i] = expandPath(dir)
	}
	return nil
}

// ApplicationDirs returns the desktop-entry directories in precedence
// order: user data dir, extra dirs, then system data dirs.
func (c *Config) ApplicationDirs() []string {
	dirs := make([]string, 0, len(c.DataDirs)+len(c.Providers.Applications.ExtraDirs)+1)
	if c.DataHome != "" {
		dirs = append(dirs, filepath.Join(c.DataHome, "applications"))
	}
	dirs = append(dirs, c.Providers.Applications.ExtraDirs...)
	for _, d := range c.DataDirs {
		dirs = append(dirs, filepath.Join(d, "applications"))
	}
	return dedupe(dirs)
}

// FlatpakInstallations returns flatpak installation roots, user first.
func (c *Config) FlatpakInstallations() []string {
	if len(c.Providers.Applications.FlatpakInstallations) > 0 {
		return dedupe(c.Providers.Applications.FlatpakInstallations)
	}
	var dirs []string
	if c.DataHome != "" {
		dirs = append(dirs, filepath.Join(c.DataHome, "flatpak"))
	}
	return append(dirs, "/var/lib/flatpak")
}

// Enabled reports whether the named provider is enabled.
func (c *Config) Enabled(name string) bool {
	switch name {
	case ProviderApplications:
		return c.Providers.Applications.Enabled
	case ProviderCalculator:
		return c.Providers.Calculator.Enabled
	case ProviderCommand:
		return c.Providers.Command.Enabled
	}
	return false
}

func defaultSocketPath(runtimeDir string) string {
	if runtimeDir == "" {
		runtimeDir = filepath.Join("/run/user", strconv.Itoa(os.Getuid()))
	}
	return filepath.Join(runtimeDir, "datacube.sock")
}

// normalizeLocale strips encoding and modifier: "de_DE.UTF-8@euro" → "de_DE".
func normalizeLocale(locale string) string {
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	if locale == "C" || locale == "POSIX" {
		return ""
	}
	return locale
}

func splitList(s string) []string {
	parts := strings.Split(s, ":")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = filepath.Clean(s)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return strings.Replace(path, "~", home, 1)
	}
	return path
}
