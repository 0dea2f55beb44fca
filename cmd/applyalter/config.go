package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the applyalter.yaml configuration file.
type Config struct {
	// InstancesFile is the default instances YAML, so `apply` can be called
	// with alter files only.
	InstancesFile string `yaml:"instances_file"`

	// IgnoreFailures sets the run-wide failure policy.
	IgnoreFailures bool `yaml:"ignore_failures"`

	// ReportLevel is the default report verbosity
	// (main, alter, statement, step, detail).
	ReportLevel string `yaml:"report_level"`
}

// loadConfig loads configuration from file and env vars.
// Precedence: CLI flags > env vars > config file > defaults.
// CLI flag overrides happen at the command level.
func loadConfig() (*Config, error) {
	cfg := &Config{
		ReportLevel: "statement",
	}

	// Load config file if it exists
	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.InstancesFile = expandEnvVars(cfg.InstancesFile)
	}

	// Override with env vars
	if envInstances := os.Getenv("APPLYALTER_INSTANCES"); envInstances != "" {
		cfg.InstancesFile = envInstances
	}

	return cfg, nil
}

// expandEnvVars expands ${VAR} patterns in a string.
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}
