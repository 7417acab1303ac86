package driver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/hellopet-e2e/internal/errs"
)

// Timeouts are the per-operation defaults applied when a caller passes zero.
type Timeouts struct {
	Action     time.Duration
	Navigation time.Duration
}

// PlaywrightPage implements Page over a playwright.Page.
type PlaywrightPage struct {
	page     playwright.Page
	baseURL  string
	timeouts Timeouts
}

var _ Page = (*PlaywrightPage)(nil)

// Wrap adapts page. Relative paths passed to Goto and WaitForURL are
// resolved against baseURL.
func Wrap(page playwright.Page, baseURL string, timeouts Timeouts) *PlaywrightPage {
	return &PlaywrightPage{
		page:     page,
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeouts: timeouts,
	}
}

// Raw exposes the underlying Playwright page for assertions the interface
// does not cover.
func (p *PlaywrightPage) Raw() playwright.Page {
	return p.page
}

// Resolve turns a site path into an absolute URL.
func (p *PlaywrightPage) Resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return p.baseURL + path
}

func ms(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *PlaywrightPage) action(ctx context.Context, want time.Duration) (*float64, error) {
	if want <= 0 {
		want = p.timeouts.Action
	}
	d, err := bound(ctx, want)
	if err != nil {
		return nil, errs.Wrap(errs.Timeout, "context ended before action", err)
	}
	return ms(d), nil
}

func (p *PlaywrightPage) navigation(ctx context.Context) (*float64, error) {
	d, err := bound(ctx, p.timeouts.Navigation)
	if err != nil {
		return nil, errs.Wrap(errs.Timeout, "context ended before navigation", err)
	}
	return ms(d), nil
}

// classify maps a Playwright error to the suite taxonomy.
func classify(code errs.Code, msg string, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "Timeout") || strings.Contains(err.Error(), "timeout") {
		code = errs.Timeout
	}
	return errs.Wrap(code, msg, err)
}

func (p *PlaywrightPage) Goto(ctx context.Context, path string) error {
	timeout, err := p.navigation(ctx)
	if err != nil {
		return err
	}
	target := p.Resolve(path)
	resp, err := p.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeout,
	})
	if err != nil {
		return classify(errs.NavigationFailure, "navigate to "+path, err)
	}
	if resp != nil && resp.Status() >= 500 {
		return errs.New(errs.NavigationFailure, fmt.Sprintf("navigate to %s: status %d", path, resp.Status()))
	}
	return nil
}

func (p *PlaywrightPage) URL() string {
	return p.page.URL()
}

func (p *PlaywrightPage) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Title()
}

func (p *PlaywrightPage) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Content()
}

func (p *PlaywrightPage) waitState(ctx context.Context, selector string, state *playwright.WaitForSelectorState, timeout time.Duration) error {
	t, err := p.action(ctx, timeout)
	if err != nil {
		return err
	}
	err = p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   state,
		Timeout: t,
	})
	return classify(errs.Timeout, "wait for "+selector, err)
}

func (p *PlaywrightPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.waitState(ctx, selector, playwright.WaitForSelectorStateVisible, timeout)
}

func (p *PlaywrightPage) WaitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	return p.waitState(ctx, selector, playwright.WaitForSelectorStateHidden, timeout)
}

func (p *PlaywrightPage) IsVisible(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.page.Locator(selector).First().IsVisible()
}

func (p *PlaywrightPage) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.page.Locator(selector).Count()
}

func (p *PlaywrightPage) Fill(ctx context.Context, selector, value string) error {
	t, err := p.action(ctx, 0)
	if err != nil {
		return err
	}
	err = p.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{Timeout: t})
	return classify(errs.AssertionFailure, "fill "+selector, err)
}

func (p *PlaywrightPage) Click(ctx context.Context, selector string) error {
	t, err := p.action(ctx, 0)
	if err != nil {
		return err
	}
	err = p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{Timeout: t})
	return classify(errs.AssertionFailure, "click "+selector, err)
}

func (p *PlaywrightPage) Hover(ctx context.Context, selector string) error {
	t, err := p.action(ctx, 0)
	if err != nil {
		return err
	}
	err = p.page.Locator(selector).First().Hover(playwright.LocatorHoverOptions{Timeout: t})
	return classify(errs.AssertionFailure, "hover "+selector, err)
}

func (p *PlaywrightPage) urlMatcher(pattern any) (any, error) {
	switch v := pattern.(type) {
	case string:
		if strings.HasPrefix(v, "/") {
			return p.Resolve(v), nil
		}
		return v, nil
	case *regexp.Regexp:
		return v, nil
	default:
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unsupported URL pattern %T", pattern))
	}
}

func (p *PlaywrightPage) WaitForURL(ctx context.Context, pattern any, timeout time.Duration) error {
	matcher, err := p.urlMatcher(pattern)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = p.timeouts.Navigation
	}
	d, err := bound(ctx, timeout)
	if err != nil {
		return errs.Wrap(errs.Timeout, "context ended before URL wait", err)
	}
	err = p.page.WaitForURL(matcher, playwright.PageWaitForURLOptions{
		Timeout:   ms(d),
		WaitUntil: playwright.WaitUntilStateCommit,
	})
	return classify(errs.Timeout, fmt.Sprintf("wait for URL %v", pattern), err)
}

func loadState(s LoadState) *playwright.LoadState {
	switch s {
	case LoadStateNetworkIdle:
		return playwright.LoadStateNetworkidle
	case LoadStateLoad:
		return playwright.LoadStateLoad
	default:
		return playwright.LoadStateDomcontentloaded
	}
}

func (p *PlaywrightPage) WaitForLoadState(ctx context.Context, state LoadState, timeout time.Duration) error {
	d, err := bound(ctx, timeout)
	if err != nil {
		return errs.Wrap(errs.Timeout, "context ended before load state", err)
	}
	err = p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   loadState(state),
		Timeout: ms(d),
	})
	return classify(errs.Timeout, "wait for "+string(state), err)
}

func (p *PlaywrightPage) ClearCookies(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Context().ClearCookies()
}

func (p *PlaywrightPage) Cookies(ctx context.Context) ([]Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := p.page.Context().Cookies()
	if err != nil {
		return nil, err
	}
	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		out = append(out, Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
	}
	return out, nil
}

// AddSessionCookie sets a cookie for the base URL's host.
func (p *PlaywrightPage) AddSessionCookie(name, value string) error {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return err
	}
	return p.page.Context().AddCookies([]playwright.OptionalCookie{{
		Name:     name,
		Value:    value,
		Domain:   playwright.String(u.Hostname()),
		Path:     playwright.String("/"),
		HttpOnly: playwright.Bool(true),
		Secure:   playwright.Bool(u.Scheme == "https"),
		SameSite: playwright.SameSiteAttributeLax,
	}})
}

func (p *PlaywrightPage) Reload(ctx context.Context) error {
	timeout, err := p.navigation(ctx)
	if err != nil {
		return err
	}
	_, err = p.page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeout,
	})
	return classify(errs.NavigationFailure, "reload", err)
}

func (p *PlaywrightPage) GoBack(ctx context.Context) error {
	timeout, err := p.navigation(ctx)
	if err != nil {
		return err
	}
	_, err = p.page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeout,
	})
	return classify(errs.NavigationFailure, "go back", err)
}

func (p *PlaywrightPage) GoForward(ctx context.Context) error {
	timeout, err := p.navigation(ctx)
	if err != nil {
		return err
	}
	_, err = p.page.GoForward(playwright.PageGoForwardOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeout,
	})
	return classify(errs.NavigationFailure, "go forward", err)
}

func (p *PlaywrightPage) Evaluate(ctx context.Context, expression string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if arg == nil {
		return p.page.Evaluate(expression)
	}
	return p.page.Evaluate(expression, arg)
}

func (p *PlaywrightPage) EvaluateOn(ctx context.Context, selector, expression string, arg any) (any, error) {
	t, err := p.action(ctx, 0)
	if err != nil {
		return nil, err
	}
	v, err := p.page.Locator(selector).First().Evaluate(expression, arg, playwright.LocatorEvaluateOptions{Timeout: t})
	if err != nil {
		return nil, classify(errs.AssertionFailure, "evaluate on "+selector, err)
	}
	return v, nil
}

func (p *PlaywrightPage) Screenshot(ctx context.Context, path string, fullPage bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(fullPage),
	})
	return err
}

func (p *PlaywrightPage) ElementScreenshot(ctx context.Context, selector, path string) error {
	t, err := p.action(ctx, 0)
	if err != nil {
		return err
	}
	_, err = p.page.Locator(selector).First().Screenshot(playwright.LocatorScreenshotOptions{
		Path:    playwright.String(path),
		Timeout: t,
	})
	return classify(errs.AssertionFailure, "screenshot "+selector, err)
}

func (p *PlaywrightPage) OnConsole(fn func(ConsoleMessage)) {
	p.page.OnConsole(func(msg playwright.ConsoleMessage) {
		fn(ConsoleMessage{Type: msg.Type(), Text: msg.Text()})
	})
}

func (p *PlaywrightPage) WaitForResponse(ctx context.Context, pattern any, timeout time.Duration) (Response, error) {
	return p.ExpectResponse(ctx, pattern, timeout, nil)
}

func (p *PlaywrightPage) ExpectResponse(ctx context.Context, pattern any, timeout time.Duration, action func() error) (Response, error) {
	d, err := bound(ctx, timeout)
	if err != nil {
		return Response{}, errs.Wrap(errs.Timeout, "context ended before response wait", err)
	}
	var matcher *regexp.Regexp
	switch v := pattern.(type) {
	case string:
		matcher = regexp.MustCompile(regexp.QuoteMeta(v))
	case *regexp.Regexp:
		matcher = v
	default:
		return Response{}, errs.New(errs.InvalidArgument, fmt.Sprintf("unsupported response pattern %T", pattern))
	}
	if action == nil {
		action = func() error { return nil }
	}
	resp, err := p.page.ExpectResponse(matcher, action, playwright.PageExpectResponseOptions{
		Timeout: ms(d),
	})
	if err != nil {
		return Response{}, classify(errs.Timeout, fmt.Sprintf("wait for response %v", pattern), err)
	}
	return Response{URL: resp.URL(), Status: resp.Status()}, nil
}

// Close closes the page.
func (p *PlaywrightPage) Close() error {
	return p.page.Close()
}
