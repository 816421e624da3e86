// Package config loads dataset-assembly settings from a YAML file, so CLI
// runs against a given simulation campaign can share one description of its
// probes and uninteresting variables.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors the assembly options.
type Config struct {
	DropVariables []string `yaml:"drop_variables,omitempty"`
	KeepParticles bool     `yaml:"keep_particles,omitempty"`
	ProbeNames    []string `yaml:"probe_names,omitempty"`
	SeparateTimes bool     `yaml:"separate_times,omitempty"`
}

// Load reads a config file. Unknown keys are rejected so a typo fails loudly
// instead of silently keeping a default.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config back out.
func (c *Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
