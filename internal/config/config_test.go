package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestVariant_LiteralTable(t *testing.T) {
	cases := []struct {
		name    string
		workers int
		retries int
		timeout time.Duration
	}{
		{Dev, 1, 0, 60 * time.Second},
		{CI, 2, 2, 30 * time.Second},
		{Fast, 4, 0, 15 * time.Second},
	}
	for _, tc := range cases {
		cfg, ok := Variant(tc.name)
		if !ok {
			t.Fatalf("Variant(%q) not found", tc.name)
		}
		if cfg.Workers != tc.workers {
			t.Errorf("%s workers = %d, want %d", tc.name, cfg.Workers, tc.workers)
		}
		if cfg.Retries != tc.retries {
			t.Errorf("%s retries = %d, want %d", tc.name, cfg.Retries, tc.retries)
		}
		if cfg.Timeout != tc.timeout {
			t.Errorf("%s timeout = %s, want %s", tc.name, cfg.Timeout, tc.timeout)
		}
	}
}

func TestVariant_CIFieldsAndBaseInheritance(t *testing.T) {
	cfg, _ := Variant(CI)
	if cfg.BaseURL != "https://hello-pet.my" || cfg.Locale != "ko-KR" || cfg.TimezoneID != "Asia/Seoul" {
		t.Fatalf("ci lost base target fields: %+v", cfg)
	}
	if cfg.MaxFailures != 5 {
		t.Errorf("ci max failures = %d, want 5", cfg.MaxFailures)
	}
	if cfg.GlobalTimeout != 15*time.Minute {
		t.Errorf("ci global timeout = %s, want 15m", cfg.GlobalTimeout)
	}
	if cfg.ActionTimeout != 10*time.Second || cfg.NavigationTimeout != 20*time.Second {
		t.Errorf("ci action/navigation = %s/%s, want 10s/20s", cfg.ActionTimeout, cfg.NavigationTimeout)
	}
	if cfg.Screenshot != ModeOnlyOnFailure || cfg.Video != ModeRetainOnFailure || cfg.Trace != ModeOnFirstRetry {
		t.Errorf("ci artifact policy = %s/%s/%s", cfg.Screenshot, cfg.Video, cfg.Trace)
	}
	if _, ok := cfg.Reporter("junit"); !ok {
		t.Error("ci should configure a junit reporter")
	}
	if !cfg.Headless {
		t.Error("ci must run headless")
	}
}

func TestVariant_DebugDerivesFromDev(t *testing.T) {
	dev, _ := Variant(Dev)
	debug, _ := Variant(Debug)

	if debug.SlowMo != time.Second {
		t.Errorf("debug slowMo = %s, want 1s", debug.SlowMo)
	}
	if dev.SlowMo != 300*time.Millisecond {
		t.Errorf("dev slowMo = %s, want 300ms", dev.SlowMo)
	}
	if debug.Screenshot != ModeOn || debug.Video != ModeOn || debug.Trace != ModeOn {
		t.Errorf("debug captures = %s/%s/%s, want all on", debug.Screenshot, debug.Video, debug.Trace)
	}
	if debug.Workers != dev.Workers || debug.Timeout != dev.Timeout || debug.Headless != dev.Headless {
		t.Errorf("debug should inherit dev scheduling: dev=%+v debug=%+v", dev, debug)
	}
	if !reflect.DeepEqual(debug.Reporters, dev.Reporters) {
		t.Errorf("debug reporters = %v, want dev's %v", debug.Reporters, dev.Reporters)
	}
}

func TestVariant_AllValidate(t *testing.T) {
	for _, name := range Names() {
		cfg, ok := Variant(name)
		if !ok {
			t.Fatalf("Variant(%q) missing", name)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s does not validate: %v", name, err)
		}
		if cfg.Name != name {
			t.Errorf("Variant(%q).Name = %q", name, cfg.Name)
		}
	}
	if _, ok := Variant("staging"); ok {
		t.Error("unknown variant should not resolve")
	}
}

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestSelect(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unset", nil, Base},
		{"explicit ci", map[string]string{EnvSelect: "ci"}, CI},
		{"explicit ci ignores CI var", map[string]string{EnvSelect: "ci", EnvCI: ""}, CI},
		{"explicit dev beats CI detection", map[string]string{EnvSelect: "dev", EnvCI: "true"}, Dev},
		{"explicit fast", map[string]string{EnvSelect: "fast"}, Fast},
		{"explicit debug", map[string]string{EnvSelect: "debug"}, Debug},
		{"unknown explicit falls back to base", map[string]string{EnvSelect: "staging", EnvCI: "1"}, Base},
		{"CI detection", map[string]string{EnvCI: "1"}, CI},
		{"alias", map[string]string{EnvSelectAlias: "fast"}, Fast},
		{"primary beats alias", map[string]string{EnvSelect: "dev", EnvSelectAlias: "fast"}, Dev},
		{"case insensitive", map[string]string{EnvSelect: " CI "}, CI},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Select(env(tc.env)); got != tc.want {
				t.Fatalf("Select = %q, want %q", got, tc.want)
			}
		})
	}
}

func testSelect_ExplicitCIAlwaysWins(t *rapid.T) {
	ciValue := rapid.StringMatching(`[a-zA-Z0-9]{0,8}`).Draw(t, "ci")
	got := Select(env(map[string]string{EnvSelect: "ci", EnvCI: ciValue}))
	if got != CI {
		t.Fatalf("Select with PLAYWRIGHT_ENV=ci and CI=%q = %q", ciValue, got)
	}
}

func TestSelect_ExplicitCIAlwaysWins(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testSelect_ExplicitCIAlwaysWins)
}

func testApply_OverridesTakePrecedence(t *rapid.T) {
	base := BaseConfig()
	var o Overrides
	if rapid.Bool().Draw(t, "setWorkers") {
		o.Workers = ptr(rapid.IntRange(0, 16).Draw(t, "workers"))
	}
	if rapid.Bool().Draw(t, "setRetries") {
		o.Retries = ptr(rapid.IntRange(0, 5).Draw(t, "retries"))
	}
	if rapid.Bool().Draw(t, "setTimeout") {
		o.Timeout = dur(time.Duration(rapid.IntRange(1, 120).Draw(t, "timeoutSec")) * time.Second)
	}
	if rapid.Bool().Draw(t, "setURL") {
		o.BaseURL = ptr("http://" + rapid.StringMatching(`[a-z]{1,10}`).Draw(t, "host"))
	}

	got := base.Apply(o)

	wantWorkers := base.Workers
	if o.Workers != nil {
		wantWorkers = *o.Workers
	}
	wantRetries := base.Retries
	if o.Retries != nil {
		wantRetries = *o.Retries
	}
	wantTimeout := base.Timeout
	if o.Timeout != nil {
		wantTimeout = time.Duration(*o.Timeout)
	}
	wantURL := base.BaseURL
	if o.BaseURL != nil {
		wantURL = *o.BaseURL
	}
	if got.Workers != wantWorkers || got.Retries != wantRetries || got.Timeout != wantTimeout || got.BaseURL != wantURL {
		t.Fatalf("Apply mismatch: got %+v", got)
	}
	if got.Locale != base.Locale || got.Headless != base.Headless || got.OutputDir != base.OutputDir {
		t.Fatalf("untouched fields changed: got %+v", got)
	}
}

func TestApply_OverridesTakePrecedence(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testApply_OverridesTakePrecedence)
}

func TestApply_DoesNotAliasSlices(t *testing.T) {
	ci, _ := Variant(CI)
	ci.LaunchArgs[0] = "--mutated"
	again, _ := Variant(CI)
	if again.LaunchArgs[0] != "--no-sandbox" {
		t.Fatalf("variant launch args were mutated through a returned config: %v", again.LaunchArgs)
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := BaseConfig()
	cfg.BaseURL = "hello-pet.my"
	cfg.Workers = -1
	cfg.Timeout = 0
	cfg.Video = Mode("sometimes")
	cfg.Reporters = append(cfg.Reporters, Reporter{Kind: "teamcity"})

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"http://", "workers", "timeout must be positive", "sometimes", "teamcity"} {
		if !strings.Contains(msg, want) {
			t.Errorf("validation error missing %q:\n%s", want, msg)
		}
	}
}

func TestParseOverrides(t *testing.T) {
	o, err := ParseOverrides([]byte(`
workers = 3
timeout = "45s"
screenshot = "on"
launch_args = ["--no-sandbox"]

[[reporters]]
kind = "junit"
output = "out/junit.xml"
`))
	if err != nil {
		t.Fatalf("ParseOverrides: %v", err)
	}
	cfg := BaseConfig().Apply(o)
	if cfg.Workers != 3 || cfg.Timeout != 45*time.Second || cfg.Screenshot != ModeOn {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.Reporters) != 1 || cfg.Reporters[0].Output != "out/junit.xml" {
		t.Fatalf("reporters = %+v", cfg.Reporters)
	}
	if cfg.Locale != "ko-KR" {
		t.Fatalf("locale should be inherited, got %q", cfg.Locale)
	}
}

func TestParseOverrides_RejectsUnknownKeys(t *testing.T) {
	if _, err := ParseOverrides([]byte(`wokers = 3`)); err == nil {
		t.Fatal("expected an error for a misspelled key")
	}
	if _, err := ParseOverrides([]byte(`timeout = "soon"`)); err == nil {
		t.Fatal("expected an error for a bad duration")
	}
}

func TestEncode_ReadsBackAsSameConfig(t *testing.T) {
	want, _ := Variant(CI)
	data, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	o, err := ParseOverrides(data)
	if err != nil {
		t.Fatalf("ParseOverrides(Encode): %v\n%s", err, data)
	}
	got := Config{}.Apply(o)
	got.Name = want.Name
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestLoadNamed_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hellopet.toml")
	if err := os.WriteFile(path, []byte("workers = 7\nbase_url = \"http://from-file\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvBaseURL, "http://127.0.0.1:9999/")
	t.Setenv(EnvRetries, "1")

	cfg, err := LoadNamed(Fast)
	if err != nil {
		t.Fatalf("LoadNamed: %v", err)
	}
	if cfg.Workers != 7 {
		t.Errorf("workers = %d, want 7 from file", cfg.Workers)
	}
	if cfg.BaseURL != "http://127.0.0.1:9999" {
		t.Errorf("base URL = %q, env should win over file and lose the trailing slash", cfg.BaseURL)
	}
	if cfg.Retries != 1 {
		t.Errorf("retries = %d, want 1", cfg.Retries)
	}
	if cfg.Name != Fast {
		t.Errorf("name = %q, want fast", cfg.Name)
	}
}

func TestLoadNamed_Unknown(t *testing.T) {
	if _, err := LoadNamed("staging"); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestLoad_SelectsFromEnvironment(t *testing.T) {
	t.Setenv(EnvSelect, "")
	t.Setenv(EnvSelectAlias, "")
	t.Setenv(EnvCI, "true")
	t.Setenv(EnvConfigFile, "")
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvWorkers, "")
	t.Setenv(EnvRetries, "")
	t.Setenv(EnvHeadless, "")
	t.Setenv(EnvOutputDir, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != CI {
		t.Fatalf("Load picked %q with CI=true, want ci", cfg.Name)
	}
	if !cfg.ForbidOnly {
		t.Error("ForbidOnly should follow CI detection")
	}
}

func TestTarget(t *testing.T) {
	cfg, _ := Variant(Base)

	t.Setenv(EnvBaseURL, "")
	if got := Target(cfg); got != StubTarget {
		t.Errorf("Target without %s = %q, want %q", EnvBaseURL, got, StubTarget)
	}

	t.Setenv(EnvBaseURL, "https://staging.hello-pet.my")
	cfg.BaseURL = "https://staging.hello-pet.my"
	if got := Target(cfg); got != "https://staging.hello-pet.my" {
		t.Errorf("Target = %q, want the configured base URL", got)
	}
}

func TestParallelism(t *testing.T) {
	dev, _ := Variant(Dev)
	fast, _ := Variant(Fast)
	if dev.Parallelism() != 1 {
		t.Errorf("dev parallelism = %d, want 1", dev.Parallelism())
	}
	if fast.Parallelism() != 4 {
		t.Errorf("fast parallelism = %d, want 4", fast.Parallelism())
	}
}
