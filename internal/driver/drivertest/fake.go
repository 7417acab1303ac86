// Package drivertest provides an in-memory driver.Page for helper tests.
package drivertest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/driver"
	"github.com/kuitang/hellopet-e2e/internal/errs"
)

// DefaultPatience caps how long any wait on a fake page blocks, so that
// helpers using multi-second timeouts still run quickly against it.
const DefaultPatience = 50 * time.Millisecond

// Page is a scriptable page. Elements are plain selector strings marked
// visible or hidden; hooks let a test react to clicks and navigation.
type Page struct {
	BaseURL  string
	Patience time.Duration

	mu         sync.Mutex
	changed    chan struct{}
	url        string
	title      string
	content    string
	visible    map[string]bool
	counts     map[string]int
	cookies    []driver.Cookie
	history    []string
	pos        int
	loadErrs   map[driver.LoadState]error
	clickHooks map[string]func(*Page) error
	onNavigate func(p *Page, url string)
	evaluate   func(selector, expression string, arg any) (any, error)
	console    []func(driver.ConsoleMessage)
	responses  []driver.Response

	clearCookiesErr error
	calls           []string
	fills           map[string]string
	screenshots     []string
}

var _ driver.Page = (*Page)(nil)

// New returns an empty page rooted at baseURL.
func New(baseURL string) *Page {
	return &Page{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Patience:   DefaultPatience,
		changed:    make(chan struct{}),
		visible:    map[string]bool{},
		counts:     map[string]int{},
		loadErrs:   map[driver.LoadState]error{},
		clickHooks: map[string]func(*Page) error{},
		fills:      map[string]string{},
	}
}

// notify wakes every pending wait. Callers hold p.mu.
func (p *Page) notify() {
	close(p.changed)
	p.changed = make(chan struct{})
}

func (p *Page) record(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

// SetVisible shows or hides the element matching selector.
func (p *Page) SetVisible(selector string, visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible[selector] = visible
	p.notify()
}

// SetCount fixes the number of elements matching selector.
func (p *Page) SetCount(selector string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[selector] = n
}

// SetURL moves the page without recording history.
func (p *Page) SetURL(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = p.resolve(u)
	p.notify()
}

// SetTitle sets the document title.
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

// SetContent sets the serialized document.
func (p *Page) SetContent(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content = html
}

// SetCookies replaces the context's cookie jar.
func (p *Page) SetCookies(cookies ...driver.Cookie) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = append([]driver.Cookie(nil), cookies...)
}

// SetLoadStateError makes WaitForLoadState(state) fail with err.
func (p *Page) SetLoadStateError(state driver.LoadState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadErrs[state] = err
}

// SetClearCookiesError makes ClearCookies fail with err.
func (p *Page) SetClearCookiesError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearCookiesErr = err
}

// OnClick runs fn when selector is clicked. An error from fn is returned by
// Click.
func (p *Page) OnClick(selector string, fn func(*Page) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clickHooks[selector] = fn
}

// OnNavigate runs fn after every Goto, Reload, GoBack and GoForward.
func (p *Page) OnNavigate(fn func(p *Page, url string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNavigate = fn
}

// OnEvaluate answers Evaluate and EvaluateOn. Evaluate passes an empty
// selector.
func (p *Page) OnEvaluate(fn func(selector, expression string, arg any) (any, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evaluate = fn
}

// EmitConsole delivers msg to every console listener.
func (p *Page) EmitConsole(msg driver.ConsoleMessage) {
	p.mu.Lock()
	listeners := append(([]func(driver.ConsoleMessage))(nil), p.console...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(msg)
	}
}

// EmitResponse records a network response.
func (p *Page) EmitResponse(resp driver.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, resp)
	p.notify()
}

// Calls returns the operations performed so far, in order.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Filled returns the value last filled into selector.
func (p *Page) Filled(selector string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.fills[selector]
	return v, ok
}

// Screenshots returns the paths written by Screenshot and ElementScreenshot.
func (p *Page) Screenshots() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.screenshots...)
}

func (p *Page) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return p.BaseURL + path
}

// MatchURL applies the WaitForURL pattern rules: a leading "/" compares the
// path, a leading "**" compares the suffix, a *regexp.Regexp must match, and
// any other string must equal the URL.
func MatchURL(rawURL string, pattern any) bool {
	switch v := pattern.(type) {
	case *regexp.Regexp:
		return v.MatchString(rawURL)
	case string:
		switch {
		case strings.HasPrefix(v, "**"):
			return strings.HasSuffix(rawURL, strings.TrimPrefix(v, "**"))
		case strings.HasPrefix(v, "/"):
			u, err := url.Parse(rawURL)
			if err != nil {
				return false
			}
			path := u.Path
			if path == "" {
				path = "/"
			}
			return path == v
		default:
			return rawURL == v
		}
	}
	return false
}

// wait blocks until cond holds, the shorter of timeout and Patience passes,
// or ctx ends. cond runs with p.mu held.
func (p *Page) wait(ctx context.Context, timeout time.Duration, what string, cond func() bool) error {
	limit := p.Patience
	if timeout > 0 && timeout < limit {
		limit = timeout
	}
	timer := time.NewTimer(limit)
	defer timer.Stop()
	for {
		p.mu.Lock()
		ok := cond()
		changed := p.changed
		p.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-changed:
		case <-timer.C:
			return errs.New(errs.Timeout, what+": timed out")
		case <-ctx.Done():
			return errs.Wrap(errs.Timeout, what, ctx.Err())
		}
	}
}

func (p *Page) navigated(u string) {
	p.mu.Lock()
	hook := p.onNavigate
	p.mu.Unlock()
	if hook != nil {
		hook(p, u)
	}
}

func (p *Page) Goto(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.NavigationFailure, "goto "+path, err)
	}
	u := p.resolve(path)
	p.mu.Lock()
	p.record("goto %s", path)
	if len(p.history) > 0 {
		p.history = p.history[:p.pos+1]
	}
	p.history = append(p.history, u)
	p.pos = len(p.history) - 1
	p.url = u
	p.notify()
	p.mu.Unlock()
	p.navigated(u)
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Title(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

func (p *Page) Content(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content, nil
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.wait(ctx, timeout, "wait for "+selector, func() bool { return p.visible[selector] })
}

func (p *Page) WaitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	return p.wait(ctx, timeout, "wait for "+selector+" to hide", func() bool { return !p.visible[selector] })
}

func (p *Page) IsVisible(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[selector], nil
}

func (p *Page) Count(_ context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.counts[selector]; ok {
		return n, nil
	}
	if p.visible[selector] {
		return 1, nil
	}
	return 0, nil
}

func (p *Page) Fill(_ context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("fill %s", selector)
	p.fills[selector] = value
	return nil
}

func (p *Page) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	p.record("click %s", selector)
	hook := p.clickHooks[selector]
	p.mu.Unlock()
	if hook != nil {
		return hook(p)
	}
	return nil
}

func (p *Page) Hover(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("hover %s", selector)
	return nil
}

func (p *Page) WaitForURL(ctx context.Context, pattern any, timeout time.Duration) error {
	return p.wait(ctx, timeout, fmt.Sprintf("wait for URL %v", pattern), func() bool {
		return MatchURL(p.url, pattern)
	})
}

func (p *Page) WaitForLoadState(_ context.Context, state driver.LoadState, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("load state %s", state)
	return p.loadErrs[state]
}

func (p *Page) ClearCookies(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("clear cookies")
	if p.clearCookiesErr != nil {
		return p.clearCookiesErr
	}
	p.cookies = nil
	return nil
}

func (p *Page) Cookies(context.Context) ([]driver.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]driver.Cookie(nil), p.cookies...), nil
}

func (p *Page) Reload(context.Context) error {
	p.mu.Lock()
	p.record("reload")
	u := p.url
	p.mu.Unlock()
	p.navigated(u)
	return nil
}

func (p *Page) step(delta int, name string) error {
	p.mu.Lock()
	p.record("%s", name)
	next := p.pos + delta
	if next < 0 || next >= len(p.history) {
		p.mu.Unlock()
		return errs.New(errs.NavigationFailure, name+": no history entry")
	}
	p.pos = next
	p.url = p.history[next]
	u := p.url
	p.notify()
	p.mu.Unlock()
	p.navigated(u)
	return nil
}

func (p *Page) GoBack(context.Context) error {
	return p.step(-1, "back")
}

func (p *Page) GoForward(context.Context) error {
	return p.step(1, "forward")
}

func (p *Page) Evaluate(ctx context.Context, expression string, arg any) (any, error) {
	return p.EvaluateOn(ctx, "", expression, arg)
}

func (p *Page) EvaluateOn(_ context.Context, selector, expression string, arg any) (any, error) {
	p.mu.Lock()
	p.record("evaluate %s", selector)
	fn := p.evaluate
	p.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(selector, expression, arg)
}

func (p *Page) writeShot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("\x89PNG fake"), 0o644); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots = append(p.screenshots, path)
	return nil
}

func (p *Page) Screenshot(_ context.Context, path string, _ bool) error {
	return p.writeShot(path)
}

func (p *Page) ElementScreenshot(_ context.Context, selector, path string) error {
	p.mu.Lock()
	visible := p.visible[selector]
	p.mu.Unlock()
	if !visible {
		return errs.New(errs.NotFound, "element "+selector+" is not visible")
	}
	return p.writeShot(path)
}

func (p *Page) OnConsole(fn func(driver.ConsoleMessage)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.console = append(p.console, fn)
}

func (p *Page) WaitForResponse(ctx context.Context, pattern any, timeout time.Duration) (driver.Response, error) {
	return p.waitResponse(ctx, pattern, timeout, 0)
}

// ExpectResponse only matches responses emitted once it has started, the
// way a real page only sees responses after the listener is attached.
func (p *Page) ExpectResponse(ctx context.Context, pattern any, timeout time.Duration, action func() error) (driver.Response, error) {
	p.mu.Lock()
	from := len(p.responses)
	p.mu.Unlock()
	if action != nil {
		if err := action(); err != nil {
			return driver.Response{}, err
		}
	}
	return p.waitResponse(ctx, pattern, timeout, from)
}

func (p *Page) waitResponse(ctx context.Context, pattern any, timeout time.Duration, from int) (driver.Response, error) {
	var got driver.Response
	err := p.wait(ctx, timeout, fmt.Sprintf("wait for response %v", pattern), func() bool {
		for _, r := range p.responses[from:] {
			if responseMatches(r.URL, pattern) {
				got = r
				return true
			}
		}
		return false
	})
	return got, err
}

func responseMatches(rawURL string, pattern any) bool {
	switch v := pattern.(type) {
	case string:
		return strings.Contains(rawURL, v)
	case *regexp.Regexp:
		return v.MatchString(rawURL)
	}
	return false
}
