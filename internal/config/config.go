// Package config loads the small configuration record described in
// SPEC_FULL.md's Configuration section: product name/version, the platform
// data directory, large_body_size, and the per-host TLS-skip list. Loading
// is layered with viper the way onelittlenightmusic-MyWant's cmd/mywant
// wires viper's SetConfigFile/AddConfigPath/AutomaticEnv together, in place
// of the teacher's hand-rolled resolveConfigDir env-var chain
// (cmd/devshell/config.go) — config *loading* itself sits outside the core's
// scope, but the ambient concern is still carried with the ecosystem's
// layered-config library rather than bespoke lookups.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	envConfigPath = "SLUMBER_CONFIG_PATH"
	appName       = "slumber"

	defaultProduct       = "slumber"
	defaultLargeBodySize = int64(1 << 20) // 1 MiB
)

// Config is the loaded, resolved configuration.
type Config struct {
	Product       string
	Version       string
	DataDir       string
	LargeBodySize int64
	TLSSkipHosts  []string
}

// Load resolves configuration following the precedence chain, highest
// first: an explicit --config flag path, $SLUMBER_CONFIG_PATH,
// $XDG_CONFIG_HOME/slumber/config.yml, ~/.config/slumber/config.yml, then
// built-in defaults. version is the running binary's own version string,
// supplied by the caller (it is never itself configurable).
func Load(flagConfigPath, version string) (*Config, error) {
	v := viper.New()
	v.SetDefault("large_body_size", defaultLargeBodySize)
	v.SetDefault("tls_skip_hosts", []string{})
	v.SetDefault("data_dir", defaultDataDir())

	switch {
	case flagConfigPath != "":
		v.SetConfigFile(flagConfigPath)
	case os.Getenv(envConfigPath) != "":
		v.SetConfigFile(os.Getenv(envConfigPath))
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, appName))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", appName))
		}
		v.SetConfigName("config")
		v.SetConfigType("yml")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SLUMBER")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return &Config{
		Product:       defaultProduct,
		Version:       version,
		DataDir:       v.GetString("data_dir"),
		LargeBodySize: v.GetInt64("large_body_size"),
		TLSSkipHosts:  v.GetStringSlice("tls_skip_hosts"),
	}, nil
}

// defaultDataDir mirrors the teacher's own XDG-then-home-fallback
// convention (cmd/devshell/config.go's resolveConfigDir), applied to the
// platform data directory rather than the config directory.
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appName)
	}
	return filepath.Join(home, ".local", "share", appName)
}
