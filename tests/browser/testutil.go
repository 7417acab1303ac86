// Package browser holds the Playwright browser tests for Hello Pet.
// All browser test files use BrowserTestEnv via SetupBrowserTestEnv(t).
package browser

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/hellopet-e2e/internal/artifact"
	"github.com/kuitang/hellopet-e2e/internal/config"
	"github.com/kuitang/hellopet-e2e/internal/driver"
	"github.com/kuitang/hellopet-e2e/internal/obs"
	"github.com/kuitang/hellopet-e2e/internal/pageutil"
	"github.com/kuitang/hellopet-e2e/internal/runner"
	"github.com/kuitang/hellopet-e2e/internal/selector"
	"github.com/kuitang/hellopet-e2e/internal/stubapp"
)

const (
	// Upper bound for a single assertion wait in this package.
	browserMaxTimeout = 5 * time.Second

	hoverSettle = 500 * time.Millisecond
)

var browserFixtureMu sync.Mutex
var browserSharedFixture *BrowserTestEnv

// BrowserTestEnv is shared by every browser test in the package. It owns the
// stub site (unless HELLOPET_BASE_URL points elsewhere) and one Chromium
// session; each test gets its own browser context.
type BrowserTestEnv struct {
	Config  config.Config
	BaseURL string
	Store   artifact.Store

	// Server and App are nil when the suite targets a deployed site.
	Server *httptest.Server
	App    *stubapp.App

	session   *driver.Session
	browserMu sync.Mutex
}

// SetupBrowserTestEnv returns the shared environment, creating it on first
// use. Browser tests are skipped in -short mode.
func SetupBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	env := getOrCreateSharedBrowserTestEnv(t)
	if env.Config.FullyParallel {
		t.Parallel()
	}
	return env
}

func getOrCreateSharedBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()

	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()

	if browserSharedFixture != nil {
		return browserSharedFixture
	}
	browserSharedFixture = createBrowserTestEnv(t)
	return browserSharedFixture
}

func createBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load run configuration: %v", err)
	}
	env := &BrowserTestEnv{Config: cfg}

	if os.Getenv(config.EnvBaseURL) == "" {
		app, err := stubapp.New(stubapp.Options{})
		if err != nil {
			t.Fatalf("Failed to build stub site: %v", err)
		}
		env.App = app
		env.Server = httptest.NewServer(app.Handler())
		env.Config.BaseURL = env.Server.URL
	}
	env.BaseURL = env.Config.BaseURL
	env.Store = artifact.NewStore(env.Config.OutputDir)

	obs.Pkg("browser").Info("browser_env_ready",
		"config", env.Config.Name,
		"base_url", env.BaseURL,
		"stub", env.Server != nil,
	)
	return env
}

func cleanupSharedBrowserTestEnv() {
	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()

	env := browserSharedFixture
	if env == nil {
		return
	}
	browserSharedFixture = nil

	env.browserMu.Lock()
	if env.session != nil {
		_ = env.session.Close()
		env.session = nil
	}
	env.browserMu.Unlock()

	if env.Server != nil {
		env.Server.Close()
	}
	if env.App != nil {
		env.App.Close()
	}
}

// InitBrowser launches Chromium once per package run. Skips the test if
// Playwright or the browser is not installed.
func (env *BrowserTestEnv) InitBrowser(t *testing.T) {
	t.Helper()

	env.browserMu.Lock()
	defer env.browserMu.Unlock()

	if env.session != nil {
		return
	}
	session, err := driver.Launch(env.Config)
	if err != nil {
		t.Skip("Playwright not available:", err)
	}
	env.session = session
}

// attempt is the retry attempt the runner exported, 0 when run directly.
func attempt() int {
	n, err := strconv.Atoi(os.Getenv(runner.EnvAttempt))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// NewPage opens a page in a fresh browser context. Video, trace and the
// end-of-test screenshot follow the configuration's capture policy and are
// settled when the test finishes.
func (env *BrowserTestEnv) NewPage(t *testing.T) *driver.PlaywrightPage {
	t.Helper()
	env.InitBrowser(t)

	cfg := env.Config
	n := attempt()

	var opts driver.ContextOptions
	if artifact.ShouldCapture(cfg.Video, n) {
		opts.VideoDir = filepath.Join(env.Store.VideoDir(), artifact.Sanitize(t.Name()))
	}
	bctx, err := env.session.NewContext(opts)
	if err != nil {
		t.Fatalf("could not create browser context: %v", err)
	}

	tracing := false
	if artifact.ShouldCapture(cfg.Trace, n) {
		if err := driver.StartTrace(bctx); err != nil {
			t.Logf("trace not started: %v", err)
		} else {
			tracing = true
		}
	}

	page, err := env.session.NewPage(bctx)
	if err != nil {
		_ = bctx.Close()
		t.Fatalf("could not create page: %v", err)
	}

	t.Cleanup(func() {
		env.settle(t, bctx, page, opts.VideoDir, tracing, n)
	})
	return page
}

func (env *BrowserTestEnv) settle(t *testing.T, bctx playwright.BrowserContext, page *driver.PlaywrightPage, videoDir string, tracing bool, n int) {
	cfg := env.Config
	failed := t.Failed()
	ctx := context.Background()

	if artifact.ShouldRetain(cfg.Screenshot, failed, n) {
		if path, ok := pageutil.TakeTestScreenshot(ctx, page, env.Store, t.Name(), failed); ok {
			t.Logf("screenshot: %s", path)
		}
	}
	if tracing {
		path := ""
		if artifact.ShouldRetain(cfg.Trace, failed, n) {
			path = env.Store.TracePath(t.Name(), n)
		}
		if err := driver.StopTrace(bctx, path); err != nil {
			t.Logf("trace not saved: %v", err)
		} else if path != "" {
			t.Logf("trace: %s", path)
		}
	}
	// Closing the context flushes the video.
	_ = bctx.Close()
	if videoDir != "" && !artifact.ShouldRetain(cfg.Video, failed, n) {
		_ = os.RemoveAll(videoDir)
	}
}

// testContext bounds one test by the configured per-test timeout and tags
// its log lines with the test name and attempt.
func (env *BrowserTestEnv) testContext(t *testing.T) context.Context {
	t.Helper()

	ctx := obs.WithCorrelation(t.Context(), obs.Correlation{
		RunID:   os.Getenv(runner.EnvRunID),
		Test:    t.Name(),
		Attempt: attempt(),
		Env:     env.Config.Name,
	})
	if env.Config.Timeout <= 0 {
		return ctx
	}
	ctx, cancel := context.WithTimeout(ctx, env.Config.Timeout)
	t.Cleanup(cancel)
	return ctx
}

// Navigate opens path and waits for the page to settle.
func Navigate(t *testing.T, ctx context.Context, page *driver.PlaywrightPage, path string) {
	t.Helper()

	if err := page.Goto(ctx, path); err != nil {
		t.Fatalf("failed to navigate to %s: %v", path, err)
	}
	pageutil.WaitForPageLoad(ctx, page, 0)
}

// ClickNav clicks a header role and waits for the next page to settle.
func ClickNav(t *testing.T, ctx context.Context, page *driver.PlaywrightPage, role string) {
	t.Helper()

	if err := page.Click(ctx, selector.Navigation.Selector(role)); err != nil {
		t.Fatalf("failed to click %s: %v", role, err)
	}
	pageutil.WaitForPageLoad(ctx, page, 0)
}

// ExpectURL fails the test unless the page URL matches want within the
// package's assertion bound. want is a path, an absolute URL or a regexp.
func ExpectURL(t *testing.T, ctx context.Context, page *driver.PlaywrightPage, want any) {
	t.Helper()

	if err := pageutil.VerifyCurrentURL(ctx, page, want, browserMaxTimeout); err != nil {
		t.Fatalf("unexpected URL: %v", err)
	}
}

// WaitForSelector fails the test unless sel becomes visible, logging the
// page state to help diagnose the miss.
func WaitForSelector(t *testing.T, ctx context.Context, page *driver.PlaywrightPage, sel string) {
	t.Helper()

	if err := page.WaitVisible(ctx, sel, browserMaxTimeout); err != nil {
		title, _ := page.Title(ctx)
		t.Fatalf("selector %q not visible at %s (title %q): %v", sel, page.URL(), title, err)
	}
}
