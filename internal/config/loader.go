package config

import (
	"log/slog"
	"os"
)

// ConfigPathEnv names the variable holding the config file path.
const ConfigPathEnv = EnvPrefix + "CONFIG"

// Load builds the configuration: defaults, then the config file at path
// (if any), then NBDNS_* environment variables. All problems are collected
// and returned together as a *ValidationError.
func Load(path string) (*Config, error) {
	cfg := Default()
	var errs []string

	if path == "" {
		path = GetConfigFilePath()
	}
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, &ValidationError{Errors: []string{"config file: " + err.Error()}}
		}
		slog.Debug("loaded configuration from file", slog.String("path", path))
		errs = append(errs, fileCfg.apply(cfg)...)
	}

	errs = append(errs, applyEnv(cfg)...)
	errs = append(errs, validateConfig(cfg)...)

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

// GetConfigFilePath returns the config file path from the environment.
// Returns empty string if no config file is specified.
func GetConfigFilePath() string {
	return os.Getenv(ConfigPathEnv)
}
