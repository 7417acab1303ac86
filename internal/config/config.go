// Package config provides the run configuration for the Hello Pet browser suite.
// A run configuration is one of a fixed set of named variants (base, ci, dev,
// debug, fast), each derived from the base variant by shallow-merging a set of
// overrides. The active variant is selected through environment variables and
// may be further adjusted by a TOML override file and a few HELLOPET_* env vars.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mode is an artifact capture policy.
type Mode string

const (
	ModeOff             Mode = "off"
	ModeOn              Mode = "on"
	ModeOnlyOnFailure   Mode = "only-on-failure"
	ModeRetainOnFailure Mode = "retain-on-failure"
	ModeOnFirstRetry    Mode = "on-first-retry"
)

// Valid reports whether m is a known capture policy.
func (m Mode) Valid() bool {
	switch m {
	case ModeOff, ModeOn, ModeOnlyOnFailure, ModeRetainOnFailure, ModeOnFirstRetry:
		return true
	}
	return false
}

// Reporter names a result sink and, for file reporters, where it writes.
type Reporter struct {
	Kind   string `toml:"kind"`
	Output string `toml:"output,omitempty"`
	// Open controls whether the html report is opened after the run
	// ("never", "on-failure", "always").
	Open string `toml:"open,omitempty"`
}

// Config is one resolved run configuration.
type Config struct {
	Name string

	// Target application
	BaseURL    string
	Locale     string
	TimezoneID string

	// Scheduling
	FullyParallel bool
	ForbidOnly    bool
	Workers       int // 0 leaves go test's default -parallel in place
	Retries       int
	MaxFailures   int // 0 disables the threshold

	// Timeouts
	Timeout           time.Duration // per test
	GlobalTimeout     time.Duration // whole run, 0 = unbounded
	ActionTimeout     time.Duration // per locator action, 0 = framework default
	NavigationTimeout time.Duration // per navigation, 0 = framework default

	// Browser
	Headless   bool
	SlowMo     time.Duration
	LaunchArgs []string

	// Artifacts
	Screenshot Mode
	Video      Mode
	Trace      Mode
	Reporters  []Reporter
	OutputDir  string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks that the resolved configuration is usable.
func (c Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.BaseURL) == "" {
		errs = append(errs, "base URL is required (set HELLOPET_BASE_URL or base_url)")
	} else if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("base URL %q must start with http:// or https://", c.BaseURL))
	}
	if c.Workers < 0 {
		errs = append(errs, "workers must not be negative")
	}
	if c.Retries < 0 {
		errs = append(errs, "retries must not be negative")
	}
	if c.MaxFailures < 0 {
		errs = append(errs, "max_failures must not be negative")
	}
	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	for name, d := range map[string]time.Duration{
		"global_timeout":     c.GlobalTimeout,
		"action_timeout":     c.ActionTimeout,
		"navigation_timeout": c.NavigationTimeout,
		"slow_mo":            c.SlowMo,
	} {
		if d < 0 {
			errs = append(errs, name+" must not be negative")
		}
	}
	for name, m := range map[string]Mode{"screenshot": c.Screenshot, "video": c.Video, "trace": c.Trace} {
		if !m.Valid() {
			errs = append(errs, fmt.Sprintf("%s mode %q is not one of off, on, only-on-failure, retain-on-failure, on-first-retry", name, m))
		}
	}
	for _, r := range c.Reporters {
		if !knownReporter(r.Kind) {
			errs = append(errs, fmt.Sprintf("unknown reporter %q", r.Kind))
		}
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, "output_dir is required")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func knownReporter(kind string) bool {
	switch kind {
	case "list", "line", "github", "json", "junit", "html":
		return true
	}
	return false
}

// Reporter returns the configured reporter of the given kind.
func (c Config) Reporter(kind string) (Reporter, bool) {
	for _, r := range c.Reporters {
		if r.Kind == kind {
			return r, true
		}
	}
	return Reporter{}, false
}

// Parallelism is the number of tests that may run at once.
func (c Config) Parallelism() int {
	if !c.FullyParallel || c.Workers < 1 {
		return 1
	}
	return c.Workers
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintf(os.Stderr, "hellopet-e2e: %s configuration\n", c.Name)
	fmt.Fprintf(os.Stderr, "  Target:    %s (%s, %s)\n", Target(c), c.Locale, c.TimezoneID)
	fmt.Fprintf(os.Stderr, "  Workers:   %d (fully parallel: %t)\n", c.Workers, c.FullyParallel)
	fmt.Fprintf(os.Stderr, "  Retries:   %d, max failures: %d\n", c.Retries, c.MaxFailures)
	fmt.Fprintf(os.Stderr, "  Timeouts:  test %s, action %s, navigation %s, global %s\n",
		c.Timeout, c.ActionTimeout, c.NavigationTimeout, c.GlobalTimeout)
	if c.Headless {
		fmt.Fprintln(os.Stderr, "  Browser:   chromium (headless)")
	} else {
		fmt.Fprintf(os.Stderr, "  Browser:   chromium (headed, slowMo %s)\n", c.SlowMo)
	}
	fmt.Fprintf(os.Stderr, "  Artifacts: screenshot=%s video=%s trace=%s -> %s\n", c.Screenshot, c.Video, c.Trace, c.OutputDir)
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// MustLoad loads configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
