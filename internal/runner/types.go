// Package runner drives `go test -json` over the browser suite with the
// scheduling go test lacks: per-test retries, a max-failures threshold and a
// global timeout. Results go to the reporters named in the run configuration.
package runner

import (
	"context"
	"io"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/config"
)

// Result is the outcome of one test.
type Result string

const (
	ResultPassed  Result = "PASSED"
	ResultFailed  Result = "FAILED"
	ResultSkipped Result = "SKIPPED"
	// ResultFlaky means the test failed at least once and then passed on retry.
	ResultFlaky Result = "FLAKY"
)

// Event is one line of `go test -json` output. Build events carry
// ImportPath instead of Package; a package that failed to build names the
// failed build in FailedBuild.
type Event struct {
	Time        time.Time `json:"Time"`
	Action      string    `json:"Action"`
	Package     string    `json:"Package,omitempty"`
	ImportPath  string    `json:"ImportPath,omitempty"`
	Test        string    `json:"Test,omitempty"`
	Elapsed     float64   `json:"Elapsed,omitempty"`
	Output      string    `json:"Output,omitempty"`
	FailedBuild string    `json:"FailedBuild,omitempty"`
}

// TestResult is the final state of one top-level test.
type TestResult struct {
	Package  string        `json:"package"`
	Name     string        `json:"name"`
	Result   Result        `json:"result"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	// Output of the last attempt, kept only for failures.
	Output string `json:"output,omitempty"`
}

// ID identifies the test across attempts.
func (t TestResult) ID() string {
	return t.Package + "." + t.Name
}

// SuiteResult summarizes a run.
type SuiteResult struct {
	RunID       string        `json:"run_id"`
	Config      string        `json:"config"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Duration    time.Duration `json:"duration"`
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Flaky       int           `json:"flaky"`
	Skipped     int           `json:"skipped"`
	Interrupted bool          `json:"interrupted"`
	TimedOut    bool          `json:"timed_out"`
	// BuildErrors holds output from packages that failed outside any test.
	BuildErrors []string          `json:"build_errors,omitempty"`
	Tests       []TestResult      `json:"tests"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
}

// OK reports whether the run should exit zero.
func (s *SuiteResult) OK() bool {
	return s.Failed == 0 && len(s.BuildErrors) == 0 && !s.TimedOut
}

// Reporter receives results as they arrive.
type Reporter interface {
	// ReportStart is called once before the first attempt.
	ReportStart(cfg config.Config, runID string)
	// ReportTestResult is called each time a top-level test finishes,
	// once per attempt.
	ReportTestResult(result TestResult, attempt int)
	// ReportSuiteResult is called once after the last attempt.
	ReportSuiteResult(suite SuiteResult) error
}

// Command runs `go <args>` and streams its stdout.
type Command interface {
	Run(ctx context.Context, args, env []string, stdout io.Writer) error
}

// Publisher uploads the artifacts under a run's absolute output directory and
// returns their links.
type Publisher interface {
	Publish(ctx context.Context, runID, outputDir string) (map[string]string, error)
}
