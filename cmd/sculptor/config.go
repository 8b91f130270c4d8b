package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	sculptor "github.com/vivaneiona/genkit-sculptor"
)

const DefaultConfigPath = "sculptor.yaml"

type Config struct {
	Provider     string               `yaml:"provider"` // openai | gemini
	Model        string               `yaml:"model"`
	APIKeyEnv    string               `yaml:"api_key_env"`
	BaseURL      string               `yaml:"base_url"`
	SystemPrompt string               `yaml:"system_prompt"`
	Instructions string               `yaml:"instructions"`
	Template     string               `yaml:"template"`
	InputKeys    []string             `yaml:"input_keys"`
	Schema       []sculptor.FieldSpec `yaml:"schema"`
	Parameters   map[string]string    `yaml:"parameters"` // gemini generation parameters
	Run          RunDefaults          `yaml:"run"`
}

type RunDefaults struct {
	Mode       string `yaml:"mode"` // sync | async
	Workers    int    `yaml:"workers"`
	Retries    int    `yaml:"retries"`
	Backoff    string `yaml:"backoff"`
	MergeInput *bool  `yaml:"merge_input"`
	Failures   string `yaml:"failures"` // include | drop | abort
	Progress   bool   `yaml:"progress"`
}

func Load(path string) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return Config{}, fmt.Errorf("config path is required")
	}
	content, err := os.ReadFile(trimmedPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(content)
}

func parseConfig(content []byte) (Config, error) {
	var configuration Config
	if err := yaml.Unmarshal(content, &configuration); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	configuration.normalize()
	if err := configuration.validate(); err != nil {
		return Config{}, err
	}
	return configuration, nil
}

func (c *Config) normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.APIKeyEnv == "" {
		switch c.Provider {
		case "gemini":
			c.APIKeyEnv = "GEMINI_API_KEY"
		default:
			c.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if c.Model == "" && c.Provider == "gemini" {
		c.Model = "gemini-2.0-flash"
	}
	c.Run.Mode = strings.ToLower(strings.TrimSpace(c.Run.Mode))
	if c.Run.Mode == "" {
		c.Run.Mode = "sync"
	}
	c.Run.Failures = strings.ToLower(strings.TrimSpace(c.Run.Failures))
	if c.Run.Failures == "" {
		c.Run.Failures = "include"
	}
	if c.Run.Workers <= 0 {
		c.Run.Workers = 1
	}
	if c.Run.Retries <= 0 {
		c.Run.Retries = sculptor.DefaultRetries
	}
}

func (c Config) validate() error {
	switch c.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider)
	}
	switch c.Run.Mode {
	case "sync", "async":
	default:
		return fmt.Errorf("config: unknown run mode %q", c.Run.Mode)
	}
	if _, err := c.failureMode(); err != nil {
		return err
	}
	if _, err := c.backoff(); err != nil {
		return err
	}
	if len(c.Schema) == 0 {
		return fmt.Errorf("config: schema declares no fields")
	}
	return nil
}

func (c Config) failureMode() (sculptor.FailureMode, error) {
	switch c.Run.Failures {
	case "include":
		return sculptor.IncludeFailures, nil
	case "drop":
		return sculptor.DropFailures, nil
	case "abort":
		return sculptor.AbortOnFailure, nil
	}
	return 0, fmt.Errorf("config: unknown failure mode %q", c.Run.Failures)
}

func (c Config) backoff() (time.Duration, error) {
	if c.Run.Backoff == "" {
		return sculptor.DefaultBackoff, nil
	}
	d, err := time.ParseDuration(c.Run.Backoff)
	if err != nil {
		return 0, fmt.Errorf("config: backoff: %w", err)
	}
	return d, nil
}

func (c Config) mergeInput() bool {
	return c.Run.MergeInput == nil || *c.Run.MergeInput
}

// runOptions translates the run section into sculptor run options.
func (c Config) runOptions(progress sculptor.ProgressFunc) []func(*sculptor.RunOptions) {
	mode, _ := c.failureMode()
	backoff, _ := c.backoff()
	opts := []func(*sculptor.RunOptions){
		sculptor.WithWorkers(c.Run.Workers),
		sculptor.WithRetries(c.Run.Retries),
		sculptor.WithBackoff(backoff),
		sculptor.WithMergeInput(c.mergeInput()),
		sculptor.WithFailureMode(mode),
	}
	if c.Run.Progress && progress != nil {
		opts = append(opts, sculptor.WithProgress(progress))
	}
	return opts
}
