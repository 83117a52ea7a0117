package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/nerlink/pkg/nerlink/internalerr"
)

// Config is the pipeline configuration file.
type Config struct {
	Ollama   Ollama   `yaml:"ollama"`
	Pipeline Pipeline `yaml:"pipeline"`
	Paths    Paths    `yaml:"paths"`
}

// Ollama configures the model service client.
type Ollama struct {
	BaseURL           string  `yaml:"base_url"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MaxRetries        int     `yaml:"max_retries"`
	RetryDelaySeconds float64 `yaml:"retry_delay_seconds"`
}

// Pipeline configures how datasets are processed.
type Pipeline struct {
	Mode          string `yaml:"mode"`
	ContextWindow int    `yaml:"context_window"`
	MaxWorkers    int    `yaml:"max_workers"`
}

// Paths configures input and output locations.
type Paths struct {
	JSONsDir   string `yaml:"jsons_dir"`
	ResultsDir string `yaml:"results_dir"`
	DB         string `yaml:"db"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Ollama: Ollama{
			BaseURL:           "http://localhost:11434",
			TimeoutSeconds:    120,
			MaxRetries:        3,
			RetryDelaySeconds: 1,
		},
		Pipeline: Pipeline{
			Mode:       "combined",
			MaxWorkers: 4,
		},
		Paths: Paths{
			JSONsDir:   "data/jsons",
			ResultsDir: "results",
		},
	}
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Pipeline.Mode {
	case "combined", "separate", "mention":
	default:
		return fmt.Errorf("%w: unknown mode %q", internalerr.ErrInvalidConfig, c.Pipeline.Mode)
	}
	if c.Pipeline.MaxWorkers < 1 {
		return fmt.Errorf("%w: max_workers must be >= 1", internalerr.ErrInvalidConfig)
	}
	if c.Pipeline.ContextWindow < 0 {
		return fmt.Errorf("%w: context_window must be >= 0", internalerr.ErrInvalidConfig)
	}
	if c.Ollama.TimeoutSeconds < 1 {
		return fmt.Errorf("%w: timeout_seconds must be >= 1", internalerr.ErrInvalidConfig)
	}
	if c.Ollama.MaxRetries < 1 {
		return fmt.Errorf("%w: max_retries must be >= 1", internalerr.ErrInvalidConfig)
	}
	return nil
}

// Timeout returns the per-call timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Ollama.TimeoutSeconds) * time.Second
}

// RetryDelay returns the backoff base as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Ollama.RetryDelaySeconds * float64(time.Second))
}
