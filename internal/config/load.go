package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the site config auto-detected in the working
// directory when no --config flag is given.
const DefaultConfigFile = "certauth.yaml"

// Defaults returns the built-in site configuration.
func Defaults() *Site {
	return &Site{
		CmshBin:        "cmsh",
		SSH:            SSH{User: "root", KeyPath: "/root/.ssh/id_rsa"},
		RestartCommand: "systemctl restart %s",
	}
}

// Load reads the site configuration. An empty path auto-detects the
// default file and falls back to built-in defaults when it does not exist;
// an explicit path must exist.
func Load(path string) (*Site, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Defaults(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg := Defaults()
	if err := mapstructure.Decode(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Zeroed-out fields fall back to defaults rather than failing
	// validation on an otherwise minimal file.
	if cfg.CmshBin == "" {
		cfg.CmshBin = "cmsh"
	}
	if cfg.RestartCommand == "" {
		cfg.RestartCommand = "systemctl restart %s"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
