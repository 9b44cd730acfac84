// Package config loads the ambient defaults of the deployment engine:
// log verbosity, the default retry timeout override, and whether
// fallback temp deployments are swept at exit. The fluent builder is
// the primary API; config only supplies defaults for what the caller
// leaves unset.
package config

import (
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// Config holds the ambient engine defaults.
type Config struct {
	// Verbosity is the log verbosity applied by binaries that call
	// logging.SetupLogger with it. 0=warn 1=info 2=debug 3+=trace.
	Verbosity int `koanf:"verbosity"`

	// RetryTimeoutMs overrides the size-derived retry timeout when
	// positive. Zero keeps the computed default.
	RetryTimeoutMs int `koanf:"retry_timeout_ms"`

	// CleanupOnExit controls whether binaries run the exit sweep over
	// the registered fallback temp deployments.
	CleanupOnExit bool `koanf:"cleanup_on_exit"`
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Path of the optional user config file.
func userConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "resdeploy", "resdeploy.toml")
}

// Load merges embedded defaults, the optional user file and
// RESDEPLOY_* environment overrides, in that order.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{defaultConfig}, toml.Parser()); err != nil {
		return nil, err
	}

	if path := userConfigPath(); fileExists(path) {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("RESDEPLOY_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "RESDEPLOY_"))
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
