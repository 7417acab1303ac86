package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/hellopet-e2e/internal/artifact"
	"github.com/kuitang/hellopet-e2e/internal/config"
	"github.com/kuitang/hellopet-e2e/internal/errs"
	"github.com/kuitang/hellopet-e2e/internal/obs"
)

// Environment exported to every test binary.
const (
	EnvAttempt = "HELLOPET_ATTEMPT"
	EnvRunID   = "HELLOPET_RUN_ID"
)

// DefaultPackages is the browser suite.
var DefaultPackages = []string{"./tests/browser/..."}

// Options selects what to run.
type Options struct {
	Packages []string
	// Run is a go test -run pattern. Focused runs are refused when the
	// configuration forbids them.
	Run string
	// Env is appended to the process environment of every attempt.
	Env []string
}

// GoTest runs the go tool as a subprocess.
type GoTest struct {
	Bin    string
	Dir    string
	Stderr io.Writer
}

// Run implements Command.
func (g GoTest) Run(ctx context.Context, args, env []string, stdout io.Writer) error {
	bin := g.Bin
	if bin == "" {
		bin = "go"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = g.Dir
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = g.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd.Run()
}

// Runner schedules attempts and feeds reporters.
type Runner struct {
	cmd       Command
	reporters []Reporter
	publisher Publisher
	newID     func() string
}

// New creates a runner. publisher may be nil.
func New(cmd Command, reporters []Reporter, publisher Publisher) *Runner {
	return &Runner{
		cmd:       cmd,
		reporters: reporters,
		publisher: publisher,
		newID:     uuid.NewString,
	}
}

// run is the mutable state of one Run call.
type run struct {
	mu       sync.Mutex
	cfg      config.Config
	suite    *SuiteResult
	results  map[string]*TestResult
	order    []string
	failures int
	attempt  int
	cancel   context.CancelFunc
	reports  []Reporter
}

func (st *run) record(tr TestResult) {
	st.mu.Lock()
	tr.Attempts = st.attempt + 1
	prev, seen := st.results[tr.ID()]
	switch {
	case !seen:
		st.order = append(st.order, tr.ID())
		if tr.Result == ResultFailed {
			st.failures++
		}
	case prev.Result == ResultFailed && tr.Result == ResultPassed:
		tr.Result = ResultFlaky
		tr.Output = prev.Output
	}
	st.results[tr.ID()] = &tr
	limitHit := st.cfg.MaxFailures > 0 && st.failures >= st.cfg.MaxFailures
	attempt := st.attempt
	st.mu.Unlock()

	for _, r := range st.reports {
		r.ReportTestResult(tr, attempt)
	}
	if limitHit && st.cancel != nil {
		st.cancel()
	}
}

func (st *run) buildError(pkg, output string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	msg := "FAIL " + pkg
	if strings.TrimSpace(output) != "" {
		msg += "\n" + strings.TrimRight(output, "\n")
	}
	st.suite.BuildErrors = append(st.suite.BuildErrors, msg)
}

// failed returns the failed top-level tests grouped by package.
func (st *run) failed() map[string][]string {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string][]string)
	for _, id := range st.order {
		tr := st.results[id]
		if tr.Result == ResultFailed {
			out[tr.Package] = append(out[tr.Package], tr.Name)
		}
	}
	return out
}

// Run executes the suite under cfg. The returned error is non-nil only when
// the run could not be carried out or hit the global timeout; test failures
// are reported through the SuiteResult.
func (r *Runner) Run(ctx context.Context, cfg config.Config, opts Options) (*SuiteResult, error) {
	if cfg.ForbidOnly && strings.TrimSpace(opts.Run) != "" {
		return nil, errs.New(errs.InvalidArgument,
			fmt.Sprintf("focused run %q refused: configuration %s forbids focused tests", opts.Run, cfg.Name))
	}
	pkgs := opts.Packages
	if len(pkgs) == 0 {
		pkgs = DefaultPackages
	}

	// go test runs each binary in its package directory, so the test
	// binaries and the publisher only agree on an absolute path.
	outputDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "resolve output directory", err)
	}
	cfg.OutputDir = outputDir
	if err := artifact.NewStore(outputDir).Reset(); err != nil {
		return nil, errs.Wrap(errs.Internal, "clear previous artifacts", err)
	}

	suite := &SuiteResult{
		RunID:     r.newID(),
		Config:    cfg.Name,
		StartTime: time.Now(),
	}
	log := obs.From(ctx).With("pkg", "runner", "run_id", suite.RunID)

	if cfg.GlobalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.GlobalTimeout)
		defer cancel()
	}

	st := &run{
		cfg:     cfg,
		suite:   suite,
		results: make(map[string]*TestResult),
		reports: r.reporters,
	}
	for _, rep := range r.reporters {
		rep.ReportStart(cfg, suite.RunID)
	}

	batches := map[string]string{"": opts.Run}
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		st.mu.Lock()
		st.attempt = attempt
		st.mu.Unlock()
		if attempt > 0 {
			failed := st.failed()
			if len(failed) == 0 {
				break
			}
			batches = retryBatches(failed)
			log.Info("retrying_failed_tests", "attempt", attempt, "packages", len(batches))
		}

		interrupted, err := r.attempt(ctx, st, cfg, pkgs, batches, opts.Env)
		if err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			suite.TimedOut = true
			log.Warn("global_timeout_reached", "timeout", cfg.GlobalTimeout.String())
			break
		}
		if interrupted {
			suite.Interrupted = true
			log.Warn("max_failures_reached", "max_failures", cfg.MaxFailures)
			break
		}
	}

	r.finish(ctx, st)
	if suite.TimedOut {
		return suite, errs.Timeoutf("run finished within "+cfg.GlobalTimeout.String(), "global timeout reached")
	}
	return suite, nil
}

// childEnv carries the resolved configuration into a test binary, which
// loads its own through config.Load. The base URL is left out: an unset
// HELLOPET_BASE_URL is what selects the in-process stub site.
func childEnv(cfg config.Config, attempt int, runID string) []string {
	return []string{
		config.EnvSelect + "=" + cfg.Name,
		config.EnvOutputDir + "=" + cfg.OutputDir,
		config.EnvHeadless + "=" + strconv.FormatBool(cfg.Headless),
		config.EnvWorkers + "=" + strconv.Itoa(cfg.Workers),
		config.EnvRetries + "=" + strconv.Itoa(cfg.Retries),
		EnvAttempt + "=" + strconv.Itoa(attempt),
		EnvRunID + "=" + runID,
	}
}

// attempt runs every batch once. A batch maps a package ("" for all) to a
// -run pattern.
func (r *Runner) attempt(ctx context.Context, st *run, cfg config.Config, pkgs []string, batches map[string]string, extraEnv []string) (bool, error) {
	keys := make([]string, 0, len(batches))
	for k := range batches {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	st.mu.Lock()
	attempt := st.attempt
	st.mu.Unlock()
	env := append(os.Environ(), childEnv(cfg, attempt, st.suite.RunID)...)
	env = append(env, extraEnv...)

	for _, pkg := range keys {
		targets := pkgs
		if pkg != "" {
			targets = []string{pkg}
		}
		args := Args(cfg, batches[pkg], targets)

		runCtx, cancel := context.WithCancel(ctx)
		st.mu.Lock()
		st.cancel = cancel
		st.mu.Unlock()

		s := newStream(st.record, st.buildError)
		err := r.cmd.Run(runCtx, args, env, s)
		s.Flush()
		interrupted := runCtx.Err() != nil && ctx.Err() == nil
		cancel()

		if raw := strings.TrimSpace(s.Raw()); raw != "" && err != nil && !interrupted && ctx.Err() == nil {
			st.buildError(strings.Join(targets, " "), raw)
		}
		if err != nil && !interrupted && ctx.Err() == nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				return false, errs.Wrap(errs.Internal, "go test did not run", err)
			}
		}
		if interrupted || ctx.Err() != nil {
			return interrupted, nil
		}
	}
	return false, nil
}

// Args builds the go test command line.
func Args(cfg config.Config, pattern string, pkgs []string) []string {
	args := []string{"test", "-json", "-count=1"}
	if pattern != "" {
		args = append(args, "-run", pattern)
	}
	args = append(args, "-parallel", strconv.Itoa(cfg.Parallelism()))
	// Deadlines are enforced by the runner's context.
	args = append(args, "-timeout", "0")
	return append(args, pkgs...)
}

func retryBatches(failed map[string][]string) map[string]string {
	batches := make(map[string]string, len(failed))
	for pkg, names := range failed {
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = regexp.QuoteMeta(n)
		}
		sort.Strings(quoted)
		batches[pkg] = "^(" + strings.Join(quoted, "|") + ")$"
	}
	return batches
}

func (r *Runner) finish(ctx context.Context, st *run) {
	suite := st.suite
	st.mu.Lock()
	for _, id := range st.order {
		tr := *st.results[id]
		suite.Tests = append(suite.Tests, tr)
		switch tr.Result {
		case ResultPassed:
			suite.Passed++
		case ResultFailed:
			suite.Failed++
		case ResultFlaky:
			suite.Flaky++
		case ResultSkipped:
			suite.Skipped++
		}
	}
	st.mu.Unlock()
	suite.Total = len(suite.Tests)
	suite.EndTime = time.Now()
	suite.Duration = suite.EndTime.Sub(suite.StartTime)

	log := obs.From(ctx).With("pkg", "runner", "run_id", suite.RunID)
	if r.publisher != nil {
		// The run context may already be past its deadline.
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
		links, err := r.publisher.Publish(pubCtx, suite.RunID, st.cfg.OutputDir)
		cancel()
		if err != nil {
			log.Warn("artifact_publish_failed", "error", err)
		}
		suite.Artifacts = links
	}

	for _, rep := range r.reporters {
		if err := rep.ReportSuiteResult(*suite); err != nil {
			log.Warn("reporter_failed", "error", err)
		}
	}
	log.Info("run_finished",
		"passed", suite.Passed, "failed", suite.Failed, "flaky", suite.Flaky,
		"skipped", suite.Skipped, "interrupted", suite.Interrupted, "timed_out", suite.TimedOut,
		"dur_ms", suite.Duration.Milliseconds())
}
