// Package pageutil holds page-level helpers shared by browser tests: load
// waits, screenshots, scrolling, console checks and URL/title assertions.
package pageutil

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/artifact"
	"github.com/kuitang/hellopet-e2e/internal/driver"
	"github.com/kuitang/hellopet-e2e/internal/errs"
	"github.com/kuitang/hellopet-e2e/internal/obs"
	"github.com/kuitang/hellopet-e2e/internal/poll"
	"github.com/kuitang/hellopet-e2e/internal/selector"
)

const (
	DefaultLoadTimeout     = 30 * time.Second
	DefaultElementTimeout  = 10 * time.Second
	DefaultImagesTimeout   = 15 * time.Second
	DefaultLoadingTimeout  = 15 * time.Second
	DefaultResponseTimeout = 15 * time.Second
	DefaultScrollDelay     = time.Second

	consoleWindow       = 2 * time.Second
	loadingAppearWindow = 5 * time.Second
	assertInterval      = 100 * time.Millisecond
)

// Page is the part of driver.Page the helpers use.
type Page interface {
	URL() string
	Title(ctx context.Context) (string, error)
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitHidden(ctx context.Context, selector string, timeout time.Duration) error
	WaitForLoadState(ctx context.Context, state driver.LoadState, timeout time.Duration) error
	Evaluate(ctx context.Context, expression string, arg any) (any, error)
	Screenshot(ctx context.Context, path string, fullPage bool) error
	ElementScreenshot(ctx context.Context, selector, path string) error
	OnConsole(fn func(driver.ConsoleMessage))
	WaitForResponse(ctx context.Context, pattern any, timeout time.Duration) (driver.Response, error)
	ExpectResponse(ctx context.Context, pattern any, timeout time.Duration, action func() error) (driver.Response, error)
}

// now is replaced in tests.
var now = time.Now

func logger(ctx context.Context) *slog.Logger {
	return obs.From(ctx).With("pkg", "pageutil")
}

// WaitForPageLoad waits for network idle and then for the DOM to be parsed,
// each bounded by timeout (30s when zero). Neither wait can fail the caller:
// a timeout is logged and the test carries on with a partly loaded page.
func WaitForPageLoad(ctx context.Context, page Page, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	log := logger(ctx)
	for _, state := range []driver.LoadState{driver.LoadStateNetworkIdle, driver.LoadStateDOMContentLoaded} {
		if err := page.WaitForLoadState(ctx, state, timeout); err != nil {
			log.Warn("page_load_incomplete", "state", state, "url", page.URL(), "error", err)
			return
		}
	}
	log.Debug("page_loaded", "url", page.URL())
}

// TakeScreenshotOnFailure saves a full page screenshot named after the test
// and returns its path. Failures are logged and reported as ok=false.
func TakeScreenshotOnFailure(ctx context.Context, page Page, store artifact.Store, testName string) (string, bool) {
	return TakeTestScreenshot(ctx, page, store, testName, true)
}

// TakeTestScreenshot saves the end-of-test full page screenshot, named by
// whether the test failed.
func TakeTestScreenshot(ctx context.Context, page Page, store artifact.Store, testName string, failed bool) (string, bool) {
	path := store.ScreenshotPath(artifact.ScreenshotName(testName, failed, now()))
	if err := page.Screenshot(ctx, path, true); err != nil {
		logger(ctx).Warn("test_screenshot_failed", "test", testName, "failed", failed, "error", err)
		return "", false
	}
	logger(ctx).Info("test_screenshot_saved", "test", testName, "failed", failed, "path", path)
	return path, true
}

// TakeFullPageScreenshot saves a full page screenshot. An empty name picks a
// timestamped one.
func TakeFullPageScreenshot(ctx context.Context, page Page, store artifact.Store, name string) (string, error) {
	if name == "" {
		name = artifact.FullPageName(now())
	}
	path := store.ScreenshotPath(name)
	if err := page.Screenshot(ctx, path, true); err != nil {
		return "", fmt.Errorf("full page screenshot: %w", err)
	}
	return path, nil
}

// TakeElementScreenshot saves a screenshot of the first element matching
// sel. An empty name picks a timestamped one.
func TakeElementScreenshot(ctx context.Context, page Page, store artifact.Store, sel, name string) (string, error) {
	if name == "" {
		name = artifact.ElementName(now())
	}
	path := store.ScreenshotPath(name)
	if err := page.ElementScreenshot(ctx, sel, path); err != nil {
		return "", fmt.Errorf("element screenshot: %w", err)
	}
	return path, nil
}

const scrollToBottomScript = `async (delay) => {
  await new Promise((resolve) => {
    let total = 0;
    const distance = 100;
    const timer = setInterval(() => {
      const height = document.body.scrollHeight;
      window.scrollBy(0, distance);
      total += distance;
      if (total >= height) {
        clearInterval(timer);
        setTimeout(resolve, delay);
      }
    }, 100);
  });
}`

// ScrollToBottom scrolls in 100px steps until the end of the document and
// then pauses for delay (1s when zero) so lazy content can load.
func ScrollToBottom(ctx context.Context, page Page, delay time.Duration) error {
	if delay <= 0 {
		delay = DefaultScrollDelay
	}
	if _, err := page.Evaluate(ctx, scrollToBottomScript, delay.Milliseconds()); err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	return nil
}

// ScrollToTop jumps back to the top of the document.
func ScrollToTop(ctx context.Context, page Page) error {
	if _, err := page.Evaluate(ctx, `() => window.scrollTo(0, 0)`, nil); err != nil {
		return fmt.Errorf("scroll to top: %w", err)
	}
	return nil
}

// ConsoleErrors collects console messages of type "error" from the moment it
// is attached.
type ConsoleErrors struct {
	mu   sync.Mutex
	msgs []string
}

// WatchConsole attaches a collector to page.
func WatchConsole(page Page) *ConsoleErrors {
	c := &ConsoleErrors{}
	page.OnConsole(func(msg driver.ConsoleMessage) {
		if msg.Type != "error" {
			return
		}
		c.mu.Lock()
		c.msgs = append(c.msgs, msg.Text)
		c.mu.Unlock()
	})
	return c
}

// Messages returns the errors seen so far.
func (c *ConsoleErrors) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

// VerifyNoConsoleErrors listens to the console for two seconds and fails
// with an AssertionFailure listing every error logged in that window.
func VerifyNoConsoleErrors(ctx context.Context, page Page) error {
	return verifyNoConsoleErrors(ctx, page, consoleWindow)
}

func verifyNoConsoleErrors(ctx context.Context, page Page, window time.Duration) error {
	watch := WatchConsole(page)
	if err := driver.Sleep(ctx, window); err != nil {
		return err
	}
	msgs := watch.Messages()
	if len(msgs) == 0 {
		return nil
	}
	logger(ctx).Warn("console_errors", "count", len(msgs), "messages", msgs)
	return errs.New(errs.AssertionFailure, fmt.Sprintf("found %d console error(s):\n  - %s", len(msgs), strings.Join(msgs, "\n  - ")))
}

// matches accepts a string for equality or a *regexp.Regexp.
func matches(got string, want any) (bool, error) {
	switch v := want.(type) {
	case string:
		return got == v, nil
	case *regexp.Regexp:
		return v.MatchString(got), nil
	default:
		return false, errs.New(errs.InvalidArgument, fmt.Sprintf("unsupported expectation %T", want))
	}
}

func assertEventually(ctx context.Context, what string, want any, timeout time.Duration, current func(context.Context) (string, error)) error {
	if _, err := matches("", want); err != nil {
		return err
	}
	last := ""
	err := poll.Until(ctx, poll.Options{
		Interval: assertInterval,
		Timeout:  timeout,
		Expect:   fmt.Sprint(want),
	}, func(ctx context.Context) (bool, error) {
		got, err := current(ctx)
		if err != nil {
			return false, err
		}
		last = got
		return matches(got, want)
	})
	if err != nil {
		return &errs.Error{
			Code:     errs.AssertionFailure,
			Message:  fmt.Sprintf("%s is %q", what, last),
			Expected: fmt.Sprint(want),
			Err:      err,
		}
	}
	return nil
}

// VerifyPageTitle waits until the document title equals a string or
// matches a *regexp.Regexp.
func VerifyPageTitle(ctx context.Context, page Page, want any, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultElementTimeout
	}
	return assertEventually(ctx, "title", want, timeout, page.Title)
}

// VerifyCurrentURL waits until the page URL equals a string or matches a
// *regexp.Regexp. A string starting with "/" is compared with the URL's
// path and query only.
func VerifyCurrentURL(ctx context.Context, page Page, want any, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultElementTimeout
	}
	pathOnly := false
	if s, ok := want.(string); ok && strings.HasPrefix(s, "/") {
		pathOnly = true
	}
	return assertEventually(ctx, "URL", want, timeout, func(context.Context) (string, error) {
		current := page.URL()
		if !pathOnly {
			return current, nil
		}
		u, err := url.Parse(current)
		if err != nil {
			return "", err
		}
		return u.RequestURI(), nil
	})
}

// WaitForElement waits for sel to become visible (10s when zero).
func WaitForElement(ctx context.Context, page Page, sel string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultElementTimeout
	}
	return page.WaitVisible(ctx, sel, timeout)
}

// WaitForElementToDisappear waits for sel to be hidden or detached.
func WaitForElementToDisappear(ctx context.Context, page Page, sel string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultElementTimeout
	}
	return page.WaitHidden(ctx, sel, timeout)
}

const imagesLoadedScript = `() => Array.from(document.images).every(img => img.complete && img.naturalHeight !== 0)`

// WaitForAllImages waits until every image in the document has loaded with
// a non-zero height.
func WaitForAllImages(ctx context.Context, page Page, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultImagesTimeout
	}
	return poll.Until(ctx, poll.Options{
		Interval: assertInterval,
		Timeout:  timeout,
		Expect:   "all images loaded",
	}, func(ctx context.Context) (bool, error) {
		v, err := page.Evaluate(ctx, imagesLoadedScript, nil)
		if err != nil {
			return false, err
		}
		done, _ := v.(bool)
		return done, nil
	})
}

// Metrics are navigation timings in milliseconds.
type Metrics struct {
	DOMContentLoaded     float64 `json:"domContentLoaded"`
	LoadComplete         float64 `json:"loadComplete"`
	DOMInteractive       float64 `json:"domInteractive"`
	FirstPaint           float64 `json:"firstPaint"`
	FirstContentfulPaint float64 `json:"firstContentfulPaint"`
}

const metricsScript = `() => {
  const nav = performance.getEntriesByType('navigation')[0];
  const paint = (name) => (performance.getEntriesByName(name)[0] || {}).startTime || 0;
  return {
    domContentLoaded: nav ? nav.domContentLoadedEventEnd - nav.domContentLoadedEventStart : 0,
    loadComplete: nav ? nav.loadEventEnd - nav.loadEventStart : 0,
    domInteractive: nav ? nav.domInteractive - nav.startTime : 0,
    firstPaint: paint('first-paint'),
    firstContentfulPaint: paint('first-contentful-paint'),
  };
}`

// PerformanceMetrics reads the navigation and paint timings of the current
// document.
func PerformanceMetrics(ctx context.Context, page Page) (Metrics, error) {
	v, err := page.Evaluate(ctx, metricsScript, nil)
	if err != nil {
		return Metrics{}, fmt.Errorf("read performance metrics: %w", err)
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return Metrics{}, errs.New(errs.Internal, fmt.Sprintf("performance metrics: unexpected %T", v))
	}
	m := Metrics{
		DOMContentLoaded:     number(raw["domContentLoaded"]),
		LoadComplete:         number(raw["loadComplete"]),
		DOMInteractive:       number(raw["domInteractive"]),
		FirstPaint:           number(raw["firstPaint"]),
		FirstContentfulPaint: number(raw["firstContentfulPaint"]),
	}
	logger(ctx).Info("performance_metrics", "url", page.URL(), "metrics", m)
	return m, nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// WaitForLoadingToComplete gives a loading indicator five seconds to show up
// and then waits for it to go away. A spinner that never appears, or never
// leaves, is not an error.
func WaitForLoadingToComplete(ctx context.Context, page Page, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultLoadingTimeout
	}
	log := logger(ctx)
	if err := page.WaitVisible(ctx, selector.LoadingIndicator, loadingAppearWindow); err != nil {
		log.Debug("loading_indicator_absent")
		return
	}
	if err := page.WaitHidden(ctx, selector.LoadingIndicator, timeout); err != nil {
		log.Warn("loading_indicator_stuck", "error", err)
		return
	}
	log.Debug("loading_complete")
}

// WaitForAPIResponse waits for the next response whose URL contains a string
// pattern or matches a *regexp.Regexp.
func WaitForAPIResponse(ctx context.Context, page Page, pattern any, timeout time.Duration) (driver.Response, error) {
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}
	resp, err := page.WaitForResponse(ctx, pattern, timeout)
	if err != nil {
		return driver.Response{}, err
	}
	logger(ctx).Debug("api_response", "url", resp.URL, "status", resp.Status)
	return resp, nil
}

// ExpectAPIResponse runs action, usually a navigation or click, and returns
// the first matching response it triggers. The wait is armed before action
// runs.
func ExpectAPIResponse(ctx context.Context, page Page, pattern any, timeout time.Duration, action func() error) (driver.Response, error) {
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}
	resp, err := page.ExpectResponse(ctx, pattern, timeout, action)
	if err != nil {
		return driver.Response{}, err
	}
	logger(ctx).Debug("api_response", "url", resp.URL, "status", resp.Status)
	return resp, nil
}
