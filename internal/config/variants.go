package config

import (
	"sort"
	"time"
)

// Variant names.
const (
	Base  = "base"
	CI    = "ci"
	Dev   = "dev"
	Debug = "debug"
	Fast  = "fast"
)

// Duration is a time.Duration that reads and writes as "30s" in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Overrides is a partial Config. Nil fields leave the underlying value alone.
// Slices replace rather than append.
type Overrides struct {
	BaseURL    *string `toml:"base_url,omitempty"`
	Locale     *string `toml:"locale,omitempty"`
	TimezoneID *string `toml:"timezone_id,omitempty"`

	FullyParallel *bool `toml:"fully_parallel,omitempty"`
	ForbidOnly    *bool `toml:"forbid_only,omitempty"`
	Workers       *int  `toml:"workers,omitempty"`
	Retries       *int  `toml:"retries,omitempty"`
	MaxFailures   *int  `toml:"max_failures,omitempty"`

	Timeout           *Duration `toml:"timeout,omitempty"`
	GlobalTimeout     *Duration `toml:"global_timeout,omitempty"`
	ActionTimeout     *Duration `toml:"action_timeout,omitempty"`
	NavigationTimeout *Duration `toml:"navigation_timeout,omitempty"`

	Headless   *bool     `toml:"headless,omitempty"`
	SlowMo     *Duration `toml:"slow_mo,omitempty"`
	LaunchArgs []string  `toml:"launch_args,omitempty"`

	Screenshot *Mode      `toml:"screenshot,omitempty"`
	Video      *Mode      `toml:"video,omitempty"`
	Trace      *Mode      `toml:"trace,omitempty"`
	Reporters  []Reporter `toml:"reporters,omitempty"`
	OutputDir  *string    `toml:"output_dir,omitempty"`
}

// Apply shallow-merges o over c and returns the result. c is not modified.
func (c Config) Apply(o Overrides) Config {
	out := c
	setString(&out.BaseURL, o.BaseURL)
	setString(&out.Locale, o.Locale)
	setString(&out.TimezoneID, o.TimezoneID)
	setBool(&out.FullyParallel, o.FullyParallel)
	setBool(&out.ForbidOnly, o.ForbidOnly)
	setInt(&out.Workers, o.Workers)
	setInt(&out.Retries, o.Retries)
	setInt(&out.MaxFailures, o.MaxFailures)
	setDuration(&out.Timeout, o.Timeout)
	setDuration(&out.GlobalTimeout, o.GlobalTimeout)
	setDuration(&out.ActionTimeout, o.ActionTimeout)
	setDuration(&out.NavigationTimeout, o.NavigationTimeout)
	setBool(&out.Headless, o.Headless)
	setDuration(&out.SlowMo, o.SlowMo)
	if o.LaunchArgs != nil {
		out.LaunchArgs = append([]string(nil), o.LaunchArgs...)
	} else {
		out.LaunchArgs = append([]string(nil), c.LaunchArgs...)
	}
	if o.Screenshot != nil {
		out.Screenshot = *o.Screenshot
	}
	if o.Video != nil {
		out.Video = *o.Video
	}
	if o.Trace != nil {
		out.Trace = *o.Trace
	}
	if o.Reporters != nil {
		out.Reporters = append([]Reporter(nil), o.Reporters...)
	} else {
		out.Reporters = append([]Reporter(nil), c.Reporters...)
	}
	setString(&out.OutputDir, o.OutputDir)
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}

func ptr[T any](v T) *T { return &v }

func dur(d time.Duration) *Duration { return ptr(Duration(d)) }

func mode(m Mode) *Mode { return &m }

// BaseConfig returns the base variant. ForbidOnly follows the CI env var.
func BaseConfig() Config {
	return Config{
		Name:       Base,
		BaseURL:    "https://hello-pet.my",
		Locale:     "ko-KR",
		TimezoneID: "Asia/Seoul",
		ForbidOnly: ciDetected(),
		Timeout:    30 * time.Second,
		Headless:   true,
		Screenshot: ModeOff,
		Video:      ModeOff,
		Trace:      ModeOff,
		Reporters:  []Reporter{{Kind: "list"}},
		OutputDir:  "test-results",
	}
}

var devArgs = []string{
	"--auto-open-devtools-for-tabs",
	"--disable-web-security",
	"--disable-features=TranslateUI",
}

var ciOverrides = Overrides{
	FullyParallel: ptr(true),
	Workers:       ptr(2),
	Retries:       ptr(2),
	MaxFailures:   ptr(5),
	Timeout:       dur(30 * time.Second),
	GlobalTimeout: dur(15 * time.Minute),
	Reporters: []Reporter{
		{Kind: "github"},
		{Kind: "json", Output: "test-results/results.json"},
		{Kind: "junit", Output: "test-results/junit.xml"},
		{Kind: "html", Output: "playwright-report", Open: "never"},
	},
	OutputDir:         ptr("test-results/artifacts"),
	Headless:          ptr(true),
	Screenshot:        mode(ModeOnlyOnFailure),
	Video:             mode(ModeRetainOnFailure),
	Trace:             mode(ModeOnFirstRetry),
	ActionTimeout:     dur(10 * time.Second),
	NavigationTimeout: dur(20 * time.Second),
	LaunchArgs: []string{
		"--no-sandbox",
		"--disable-setuid-sandbox",
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--disable-web-security",
		"--disable-features=TranslateUI,VizDisplayCompositor",
	},
}

var devOverrides = Overrides{
	FullyParallel: ptr(false),
	Workers:       ptr(1),
	Retries:       ptr(0),
	Timeout:       dur(60 * time.Second),
	Reporters: []Reporter{
		{Kind: "html", Output: "playwright-report", Open: "on-failure"},
		{Kind: "line"},
	},
	Headless:          ptr(false),
	Screenshot:        mode(ModeOnlyOnFailure),
	Video:             mode(ModeRetainOnFailure),
	Trace:             mode(ModeRetainOnFailure),
	ActionTimeout:     dur(15 * time.Second),
	NavigationTimeout: dur(30 * time.Second),
	SlowMo:            dur(300 * time.Millisecond),
	LaunchArgs:        devArgs,
}

// debug layers on top of dev.
var debugOverrides = Overrides{
	Screenshot: mode(ModeOn),
	Video:      mode(ModeOn),
	Trace:      mode(ModeOn),
	SlowMo:     dur(time.Second),
	LaunchArgs: devArgs,
}

var fastOverrides = Overrides{
	FullyParallel:     ptr(true),
	Workers:           ptr(4),
	Retries:           ptr(0),
	Timeout:           dur(15 * time.Second),
	Reporters:         []Reporter{{Kind: "line"}},
	Headless:          ptr(true),
	Screenshot:        mode(ModeOnlyOnFailure),
	Video:             mode(ModeOff),
	Trace:             mode(ModeOff),
	ActionTimeout:     dur(5 * time.Second),
	NavigationTimeout: dur(10 * time.Second),
	LaunchArgs: []string{
		"--disable-web-security",
		"--disable-features=TranslateUI",
		"--disable-background-networking",
		"--disable-background-timer-throttling",
		"--disable-renderer-backgrounding",
		"--disable-backgrounding-occluded-windows",
		"--disable-client-side-phishing-detection",
		"--disable-default-apps",
		"--disable-dev-shm-usage",
		"--disable-extensions",
		"--no-first-run",
		"--no-sandbox",
		"--disable-setuid-sandbox",
	},
}

// Variant returns the named variant and whether the name is known.
func Variant(name string) (Config, bool) {
	var cfg Config
	switch name {
	case Base:
		return BaseConfig(), true
	case CI:
		cfg = BaseConfig().Apply(ciOverrides)
	case Dev:
		cfg = BaseConfig().Apply(devOverrides)
	case Debug:
		cfg = BaseConfig().Apply(devOverrides).Apply(debugOverrides)
	case Fast:
		cfg = BaseConfig().Apply(fastOverrides)
	default:
		return Config{}, false
	}
	cfg.Name = name
	return cfg, true
}

// Names returns the known variant names in sorted order.
func Names() []string {
	names := []string{Base, CI, Dev, Debug, Fast}
	sort.Strings(names)
	return names
}
