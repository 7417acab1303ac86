package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ReadOverridesFile reads a TOML file of run configuration overrides.
//
//	workers = 3
//	timeout = "45s"
//	screenshot = "on"
//	[[reporters]]
//	kind = "junit"
//	output = "out/junit.xml"
func ReadOverridesFile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes TOML overrides. Unknown keys are rejected.
func ParseOverrides(data []byte) (Overrides, error) {
	var o Overrides
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return Overrides{}, fmt.Errorf("parse config overrides: %w", err)
	}
	return o, nil
}

// Encode renders the resolved configuration in the override file format, so
// the output of one run can seed the HELLOPET_CONFIG of another.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c.asOverrides())
}

func (c Config) asOverrides() Overrides {
	return Overrides{
		BaseURL:           ptr(c.BaseURL),
		Locale:            ptr(c.Locale),
		TimezoneID:        ptr(c.TimezoneID),
		FullyParallel:     ptr(c.FullyParallel),
		ForbidOnly:        ptr(c.ForbidOnly),
		Workers:           ptr(c.Workers),
		Retries:           ptr(c.Retries),
		MaxFailures:       ptr(c.MaxFailures),
		Timeout:           dur(c.Timeout),
		GlobalTimeout:     dur(c.GlobalTimeout),
		ActionTimeout:     dur(c.ActionTimeout),
		NavigationTimeout: dur(c.NavigationTimeout),
		Headless:          ptr(c.Headless),
		SlowMo:            dur(c.SlowMo),
		LaunchArgs:        append([]string{}, c.LaunchArgs...),
		Screenshot:        mode(c.Screenshot),
		Video:             mode(c.Video),
		Trace:             mode(c.Trace),
		Reporters:         append([]Reporter{}, c.Reporters...),
		OutputDir:         ptr(c.OutputDir),
	}
}
