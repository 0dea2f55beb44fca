package instance

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hlop3z/applyalter/internal/alerr"
)

// DBConfig is the instance configuration document: the set of target
// instances plus the run-wide failure policy.
type DBConfig struct {
	// IgnoreFailures defers and aggregates failures instead of aborting on
	// the first one.
	IgnoreFailures bool `yaml:"ignore_failures"`
	// Instances lists the target databases in apply order.
	Instances []Config `yaml:"instances"`
}

// LoadConfig reads the instance configuration from a YAML file.
// ${VAR} references in instance URLs are expanded from the environment.
func LoadConfig(path string) (*DBConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, alerr.Wrapf(alerr.ErrInstanceConfig, err, "cannot read instance config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates an instance configuration document.
func ParseConfig(data []byte) (*DBConfig, error) {
	var cfg DBConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, alerr.Wrap(alerr.ErrInstanceConfig, err, "cannot parse instance config")
	}
	if len(cfg.Instances) == 0 {
		return nil, alerr.New(alerr.ErrInstanceConfig, "no instances configured")
	}
	seen := make(map[string]bool, len(cfg.Instances))
	for i := range cfg.Instances {
		cfg.Instances[i].URL = os.Expand(cfg.Instances[i].URL, os.Getenv)
		if err := cfg.Instances[i].Validate(); err != nil {
			return nil, err
		}
		if seen[cfg.Instances[i].ID] {
			return nil, alerr.Newf(alerr.ErrInstanceConfig, "duplicate instance id %s", cfg.Instances[i].ID)
		}
		seen[cfg.Instances[i].ID] = true
	}
	return &cfg, nil
}
