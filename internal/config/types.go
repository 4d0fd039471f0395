// Package config provides configuration loading for agentflow.
//
// Configuration is loaded with Viper, supporting a YAML config file and
// environment variable overrides. Defaults work out of the box against a
// local backend; only the backend URL typically needs changing.
//
// Key types:
//   - [Config] is the root configuration container
//   - [Loader] handles Viper-based loading
//
// Configuration priority (highest to lowest):
//  1. Environment variables (AGENTFLOW_ prefix)
//  2. Config file specified by AGENTFLOW_CONFIG_PATH
//  3. User config directory (e.g., ~/.config/agentflow/agentflow.yaml)
//  4. ./agentflow.yaml
//  5. [DefaultConfig] defaults
package config

import (
	"fmt"

	"agentflow/internal/pipeline"
)

// Config is the root configuration structure.
type Config struct {
	// Pipeline selects which stage sequence projects run through.
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Backend configures the external agent service.
	Backend BackendConfig `mapstructure:"backend"`

	// Store configures where project state is persisted.
	Store StoreConfig `mapstructure:"store"`

	// Models maps role identifiers to the model serving them. Resolved once
	// per run and passed into the backend client explicitly; never consulted
	// through shared mutable state.
	Models map[string]string `mapstructure:"models"`

	// Notify configures completion event publishing.
	Notify NotifyConfig `mapstructure:"notify"`
}

// PipelineConfig selects the pipeline spec.
type PipelineConfig struct {
	// Name is a built-in pipeline: "delivery" or "crew".
	// Ignored when ManifestPath is set.
	Name string `mapstructure:"name"`

	// ManifestPath points at a custom pipeline YAML manifest.
	ManifestPath string `mapstructure:"manifest_path"`
}

// BackendConfig configures the agent backend client.
type BackendConfig struct {
	// BaseURL is the backend service root.
	BaseURL string `mapstructure:"base_url"`

	// TimeoutSeconds bounds one stage invocation. Zero uses the client
	// default.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`

	// DefaultModel serves roles absent from the models mapping.
	DefaultModel string `mapstructure:"default_model"`
}

// StoreConfig configures project persistence.
type StoreConfig struct {
	// Dir is the directory holding one YAML file per project.
	Dir string `mapstructure:"dir"`
}

// NotifyConfig configures completion event publishing.
type NotifyConfig struct {
	// NATSURL is the NATS server to publish completion events to.
	// Empty disables NATS publishing (completions are still printed).
	NATSURL string `mapstructure:"nats_url"`

	// Subject is the subject events are published on. Empty uses the
	// notify package default.
	Subject string `mapstructure:"subject"`
}

// DefaultConfig returns a [Config] with defaults that work out of the box:
// the delivery pipeline, a local backend, a ./projects store, and the
// standard role→model assignments.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Name: "delivery",
		},
		Backend: BackendConfig{
			BaseURL:      "http://localhost:5000",
			DefaultModel: "gpt-4",
		},
		Store: StoreConfig{
			Dir: "projects",
		},
		Models: map[string]string{
			"product-manager": "gpt-4",
			"architect":       "claude-3",
			"project-manager": "gpt-4o",
			"engineer":        "deepseek-coder",
			"qa-engineer":     "claude-3-haiku",
			"researcher":      "gemini-2.5-flash",
			"writer":          "gpt-4",
			"planner":         "claude-3",
		},
	}
}

// Spec resolves the configured pipeline spec: the manifest file when set,
// otherwise the named built-in.
func (c *Config) Spec() (*pipeline.Spec, error) {
	if c.Pipeline.ManifestPath != "" {
		return pipeline.ReadFromFile(c.Pipeline.ManifestPath)
	}
	spec := pipeline.Builtin(c.Pipeline.Name)
	if spec == nil {
		return nil, fmt.Errorf("unknown pipeline %q (built-ins: delivery, crew)", c.Pipeline.Name)
	}
	return spec, nil
}
