package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader reads agentflow configuration with Viper.
//
// Use [NewLoader] then [Loader.Load]. A missing config file is not an
// error: defaults apply, optionally overridden by AGENTFLOW_ environment
// variables.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a [Loader] with search paths and env binding set up.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigName("agentflow")
	v.SetConfigType("yaml")

	if path := os.Getenv("AGENTFLOW_CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		if userDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(userDir, "agentflow"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("AGENTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// Load reads the configuration, applying defaults for anything unset.
func (l *Loader) Load() (*Config, error) {
	defaults := DefaultConfig()
	l.v.SetDefault("pipeline.name", defaults.Pipeline.Name)
	l.v.SetDefault("pipeline.manifest_path", defaults.Pipeline.ManifestPath)
	l.v.SetDefault("backend.base_url", defaults.Backend.BaseURL)
	l.v.SetDefault("backend.timeout_seconds", defaults.Backend.TimeoutSeconds)
	l.v.SetDefault("backend.default_model", defaults.Backend.DefaultModel)
	l.v.SetDefault("store.dir", defaults.Store.Dir)
	l.v.SetDefault("models", defaults.Models)
	l.v.SetDefault("notify.nats_url", defaults.Notify.NATSURL)
	l.v.SetDefault("notify.subject", defaults.Notify.Subject)

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Load reads configuration using a default [Loader].
func Load() (*Config, error) {
	return NewLoader().Load()
}
