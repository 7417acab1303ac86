// Package driver adapts Playwright pages to the small set of operations the
// suite's helpers need, and launches browsers from a run configuration.
//
// Helpers in other packages declare the subset of Page they use, so they can
// be exercised against an in-memory fake without a browser.
package driver

import (
	"context"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/selector"
)

// LoadState is a page readiness signal.
type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// Cookie is a browser cookie as seen by the page's context.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// ConsoleMessage is one console event emitted by the page.
type ConsoleMessage struct {
	Type string
	Text string
}

// Response is a network response observed by the page.
type Response struct {
	URL    string
	Status int
}

// Page is the full set of page operations. Every method that can block takes
// a context whose deadline caps the operation's own timeout.
type Page interface {
	Goto(ctx context.Context, path string) error
	URL() string
	Title(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)

	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitHidden(ctx context.Context, selector string, timeout time.Duration) error
	IsVisible(ctx context.Context, selector string) (bool, error)
	Count(ctx context.Context, selector string) (int, error)

	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Hover(ctx context.Context, selector string) error

	// WaitForURL accepts a path ("/about"), a glob ("**/about") or a
	// *regexp.Regexp.
	WaitForURL(ctx context.Context, pattern any, timeout time.Duration) error
	WaitForLoadState(ctx context.Context, state LoadState, timeout time.Duration) error

	ClearCookies(ctx context.Context) error
	Cookies(ctx context.Context) ([]Cookie, error)
	Reload(ctx context.Context) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error

	Evaluate(ctx context.Context, expression string, arg any) (any, error)
	EvaluateOn(ctx context.Context, selector, expression string, arg any) (any, error)

	Screenshot(ctx context.Context, path string, fullPage bool) error
	ElementScreenshot(ctx context.Context, selector, path string) error

	OnConsole(fn func(ConsoleMessage))
	// WaitForResponse waits for the next response whose URL contains a
	// string pattern or matches a *regexp.Regexp.
	WaitForResponse(ctx context.Context, pattern any, timeout time.Duration) (Response, error)
	// ExpectResponse starts waiting for a matching response, then runs
	// action, so a response that action triggers cannot be missed.
	ExpectResponse(ctx context.Context, pattern any, timeout time.Duration, action func() error) (Response, error)
}

// Sleep pauses for d or until ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// bound caps want by the time left before ctx's deadline. It returns an error
// when ctx is already done. A zero want with no deadline stays zero, which
// leaves the framework default in place.
func bound(ctx context.Context, want time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return want, nil
	}
	left := time.Until(deadline)
	if left <= 0 {
		return 0, context.DeadlineExceeded
	}
	if want <= 0 || left < want {
		return left, nil
	}
	return want, nil
}

// Waiter is the part of Page that FirstVisible needs.
type Waiter interface {
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
}

// FirstVisible tries strategies in list order, giving each perStrategy to
// become visible, and returns the first that does. It fails with
// errs.NotFound when none appear.
func FirstVisible(ctx context.Context, page Waiter, strategies []string, perStrategy time.Duration) (string, error) {
	_, match, err := selector.FirstMatch(strategies, func(s string) (bool, error) {
		if err := page.WaitVisible(ctx, s, perStrategy); err != nil {
			return false, err
		}
		return true, nil
	})
	return match, err
}
