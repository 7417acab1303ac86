package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables read by Load.
const (
	EnvSelect      = "PLAYWRIGHT_ENV"
	EnvSelectAlias = "HELLOPET_ENV"
	EnvCI          = "CI"
	EnvConfigFile  = "HELLOPET_CONFIG"
	EnvBaseURL     = "HELLOPET_BASE_URL"
	EnvHeadless    = "HELLOPET_HEADLESS"
	EnvWorkers     = "HELLOPET_WORKERS"
	EnvRetries     = "HELLOPET_RETRIES"
	EnvOutputDir   = "HELLOPET_OUTPUT_DIR"
)

// StubTarget is how a run that targets the in-process stub site is shown.
const StubTarget = "stub"

// Target describes the site a run exercises. Without HELLOPET_BASE_URL the
// test binaries start the stub site and cfg.BaseURL is never dialled.
func Target(cfg Config) string {
	if os.Getenv(EnvBaseURL) == "" {
		return StubTarget
	}
	return cfg.BaseURL
}

func ciDetected() bool {
	return os.Getenv(EnvCI) != ""
}

// Select picks a variant name from the environment. An explicit selector
// always wins, and an unrecognized one falls back to base. Without a
// selector, a non-empty CI selects ci.
func Select(getenv func(string) string) string {
	explicit := strings.ToLower(strings.TrimSpace(getenv(EnvSelect)))
	if explicit == "" {
		explicit = strings.ToLower(strings.TrimSpace(getenv(EnvSelectAlias)))
	}
	if explicit != "" {
		if _, ok := Variant(explicit); ok {
			return explicit
		}
		return Base
	}
	if getenv(EnvCI) != "" {
		return CI
	}
	return Base
}

// Load resolves the run configuration from the process environment.
func Load() (Config, error) {
	return LoadNamed(Select(os.Getenv))
}

// LoadNamed resolves the named variant, then applies the override file and
// HELLOPET_* env vars in that order.
func LoadNamed(name string) (Config, error) {
	cfg, ok := Variant(name)
	if !ok {
		return Config{}, &ValidationError{Errors: []string{
			fmt.Sprintf("unknown configuration %q (want one of %s)", name, strings.Join(Names(), ", ")),
		}}
	}

	if path := strings.TrimSpace(os.Getenv(EnvConfigFile)); path != "" {
		o, err := ReadOverridesFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Apply(o)
	}

	cfg = cfg.Apply(envOverrides())

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOverrides() Overrides {
	var o Overrides
	if v := getEnvOrDefault(EnvBaseURL, ""); v != "" {
		o.BaseURL = ptr(strings.TrimRight(v, "/"))
	}
	if os.Getenv(EnvHeadless) != "" {
		o.Headless = ptr(parseBoolOrDefault(EnvHeadless, true))
	}
	if os.Getenv(EnvWorkers) != "" {
		o.Workers = ptr(parseIntOrDefault(EnvWorkers, 1))
	}
	if os.Getenv(EnvRetries) != "" {
		o.Retries = ptr(parseIntOrDefault(EnvRetries, 0))
	}
	if v := getEnvOrDefault(EnvOutputDir, ""); v != "" {
		o.OutputDir = ptr(v)
	}
	return o
}
