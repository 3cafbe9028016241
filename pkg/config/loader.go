package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultProvidersFileName is the conventional on-disk name for the provider
// configuration file, resolved relative to the project root.
const DefaultProvidersFileName = "providers.yaml"

// Load reads the provider configuration file at path, merges it onto the
// tunable defaults, and applies AGENTRC_-prefixed environment overrides.
// A missing file is not an error: Load falls back to Defaults() with zero
// configured providers, so the engine can still run in, e.g., a unit test.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied, same trust level as the project root
	switch {
	case err == nil:
		var file ProvidersFile
		if unmarshalErr := yaml.Unmarshal(data, &file); unmarshalErr != nil {
			return nil, fmt.Errorf("parse provider config %s: %w", path, unmarshalErr)
		}
		for i := range file.Providers {
			if validateErr := file.Providers[i].Validate(); validateErr != nil {
				return nil, fmt.Errorf("provider config %s: %w", path, validateErr)
			}
		}
		cfg.Providers = file.Providers
	case os.IsNotExist(err):
		// No provider file yet; caller may still register providers in-process.
	default:
		return nil, fmt.Errorf("read provider config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets operators tune the engine's defaults without
// touching the YAML file, following the same AGENTRC_-prefixed convention
// used for AGENTRC_LOG_LEVEL in pkg/logx.
func applyEnvOverrides(cfg *Config) {
	if v, ok := intEnv("AGENTRC_MIN_CALL_INTERVAL_SECONDS"); ok {
		cfg.MinCallInterval = v
	}
	if v, ok := intEnv("AGENTRC_MAX_RETRIES"); ok {
		cfg.MaxRetries = v
	}
	if v, ok := intEnv("AGENTRC_MAX_CONTEXT_SIZE"); ok {
		cfg.MaxContextSize = v
	}
	if v, ok := intEnv("AGENTRC_HISTORY_SUMMARY_THRESHOLD"); ok {
		cfg.HistorySummaryThreshold = v
	}
	if v, ok := intEnv("AGENTRC_MAX_MESSAGES"); ok {
		cfg.MaxMessages = v
	}
	if v, ok := intEnv("AGENTRC_MAX_OUTER_ITERATIONS"); ok {
		cfg.MaxOuterIterations = v
	}
	if v, ok := intEnv("AGENTRC_NET_RETRIES"); ok {
		cfg.NetRetries = v
	}
	if v, ok := intEnv("AGENTRC_COMMAND_TIMEOUT_SECONDS"); ok {
		cfg.CommandTimeoutSeconds = v
	}
	if v, ok := boolEnv("AGENTRC_ALLOW_FIXLOGIC"); ok {
		cfg.AllowFixLogic = v
	}
}

func intEnv(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func boolEnv(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// ResolveProvidersPath finds the provider config file starting at projectRoot.
func ResolveProvidersPath(projectRoot string) string {
	return filepath.Join(projectRoot, DefaultProvidersFileName)
}
