// Package authflow drives the site's login and logout UI and answers whether
// the current page belongs to a signed-in session.
package authflow

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/accounts"
	"github.com/kuitang/hellopet-e2e/internal/driver"
	"github.com/kuitang/hellopet-e2e/internal/errs"
	"github.com/kuitang/hellopet-e2e/internal/obs"
	"github.com/kuitang/hellopet-e2e/internal/poll"
	"github.com/kuitang/hellopet-e2e/internal/selector"
)

const (
	LoginPath = "/auth/login"

	formTimeout       = 10 * time.Second
	completionTimeout = 15 * time.Second
	logoutMenuTimeout = 5 * time.Second
	loggedOutTimeout  = 10 * time.Second
	probeTimeout      = 3 * time.Second
	stateTimeout      = 10 * time.Second
	stateInterval     = 500 * time.Millisecond
)

var loginURL = regexp.MustCompile(`.*/auth/login`)

// Page is the part of driver.Page the flows use.
type Page interface {
	Goto(ctx context.Context, path string) error
	URL() string
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	WaitForURL(ctx context.Context, pattern any, timeout time.Duration) error
	ClearCookies(ctx context.Context) error
	Cookies(ctx context.Context) ([]driver.Cookie, error)
	Reload(ctx context.Context) error
	Evaluate(ctx context.Context, expression string, arg any) (any, error)
}

// State is a session state a test can wait for.
type State string

const (
	LoggedIn  State = "logged-in"
	LoggedOut State = "logged-out"
)

func logger(ctx context.Context) *slog.Logger {
	return obs.From(ctx).With("pkg", "authflow")
}

// Login signs in through the login form. It succeeds as soon as the browser
// lands back on the home page or the profile image appears, whichever comes
// first, and fails with errs.Timeout when neither happens.
func Login(ctx context.Context, page Page, email, password string) error {
	log := logger(ctx)
	log.Info("login_attempt", "email", obs.MaskEmail(email))

	if err := page.Goto(ctx, LoginPath); err != nil {
		return err
	}
	if err := page.WaitVisible(ctx, "form", formTimeout); err != nil {
		return errs.Wrap(errs.Timeout, "login form did not load", err)
	}
	if err := page.Fill(ctx, selector.AuthForm.Selector(selector.EmailInput), email); err != nil {
		return err
	}
	if err := page.Fill(ctx, selector.AuthForm.Selector(selector.PasswordInput), password); err != nil {
		return err
	}
	if err := page.Click(ctx, selector.Auth.Selector(selector.LoginSubmit)); err != nil {
		return err
	}

	if err := awaitSignedIn(ctx, page); err != nil {
		return err
	}
	log.Info("login_succeeded", "email", obs.MaskEmail(email))
	return nil
}

// awaitSignedIn races the home redirect against the profile indicator.
func awaitSignedIn(ctx context.Context, page Page) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signals := []func() error{
		func() error { return page.WaitForURL(ctx, "/", completionTimeout) },
		func() error {
			return page.WaitVisible(ctx, selector.Auth.Selector(selector.ProfileIndicator), completionTimeout)
		},
	}
	results := make(chan error, len(signals))
	for _, wait := range signals {
		go func() { results <- wait() }()
	}

	var lastErr error
	for range signals {
		err := <-results
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return &errs.Error{
		Code:     errs.Timeout,
		Message:  "login did not complete",
		Expected: string(LoggedIn),
		Err:      lastErr,
	}
}

// LoginWithAccount signs in as a fixture account.
func LoginWithAccount(ctx context.Context, page Page, account accounts.Account) error {
	return Login(ctx, page, account.Email, account.Password)
}

// Outcome reports how Logout finished.
type Outcome struct {
	// Forced is set when the menu sequence failed and the session was
	// dropped by clearing cookies instead.
	Forced bool
}

// Logout signs out through the profile menu. If any step of that sequence
// fails it clears the context's cookies and reloads the page. The menu
// failure is logged but never returned; only a failure of the forced path
// itself is reported.
func Logout(ctx context.Context, page Page) (Outcome, error) {
	log := logger(ctx)
	log.Info("logout_attempt")

	err := logoutViaMenu(ctx, page)
	if err == nil {
		log.Info("logout_succeeded")
		return Outcome{}, nil
	}

	log.Warn("logout_menu_failed", "error", err)
	if err := page.ClearCookies(ctx); err != nil {
		return Outcome{Forced: true}, errs.Wrap(errs.Internal, "clear cookies", err)
	}
	if err := page.Reload(ctx); err != nil {
		return Outcome{Forced: true}, errs.Wrap(errs.NavigationFailure, "reload after clearing cookies", err)
	}
	log.Info("logout_forced")
	return Outcome{Forced: true}, nil
}

func logoutViaMenu(ctx context.Context, page Page) error {
	if err := page.Click(ctx, selector.Auth.Selector(selector.ProfileOpener)); err != nil {
		return err
	}
	logout := selector.Auth.Selector(selector.LogoutControl)
	if err := page.WaitVisible(ctx, logout, logoutMenuTimeout); err != nil {
		return err
	}
	if err := page.Click(ctx, logout); err != nil {
		return err
	}
	return page.WaitVisible(ctx, selector.Auth.Selector(selector.LoginAffordance), loggedOutTimeout)
}

// IsLoggedIn reports whether the profile image is showing. When neither the
// profile image nor a login control appears the answer is false, never an
// error, so callers polling on it keep going.
func IsLoggedIn(ctx context.Context, page Page) bool {
	if err := page.WaitVisible(ctx, selector.Auth.Selector(selector.ProfileIndicator), probeTimeout); err == nil {
		return true
	}
	if err := page.WaitVisible(ctx, selector.Auth.Selector(selector.LoggedOutMarker), probeTimeout); err != nil {
		logger(ctx).Debug("auth_state_ambiguous", "url", page.URL())
	}
	return false
}

// WaitForAuthState polls IsLoggedIn until it matches want. It fails with
// errs.Timeout naming want after ten seconds.
func WaitForAuthState(ctx context.Context, page Page, want State) error {
	if want != LoggedIn && want != LoggedOut {
		return errs.New(errs.InvalidArgument, "unknown auth state "+string(want))
	}
	return poll.Until(ctx, poll.Options{
		Interval: stateInterval,
		Timeout:  stateTimeout,
		Expect:   string(want),
	}, func(ctx context.Context) (bool, error) {
		return IsLoggedIn(ctx, page) == (want == LoggedIn), nil
	})
}

// ExpectLoginRedirect opens a protected path and checks that the site sends
// the browser to the login page.
func ExpectLoginRedirect(ctx context.Context, page Page, protectedPath string) error {
	if err := page.Goto(ctx, protectedPath); err != nil {
		return err
	}
	if err := page.WaitForURL(ctx, loginURL, formTimeout); err != nil {
		return &errs.Error{
			Code:     errs.AssertionFailure,
			Message:  protectedPath + " did not redirect to login; at " + page.URL(),
			Expected: LoginPath,
			Err:      err,
		}
	}
	logger(ctx).Info("login_redirect_confirmed", "path", protectedPath)
	return nil
}

// VerifyUserProfile opens the profile menu and checks it offers the my-page
// link and a logout control. A non-empty nickname must also be shown.
func VerifyUserProfile(ctx context.Context, page Page, nickname string) error {
	if err := page.Click(ctx, selector.Auth.Selector(selector.ProfileIndicator)); err != nil {
		return err
	}
	checks := []struct {
		what, sel string
	}{
		{"my page link", selector.Navigation.Selector(selector.MyPageLink)},
		{"logout button", selector.Navigation.Selector(selector.LogoutButton)},
	}
	if nickname != "" {
		checks = append([]struct{ what, sel string }{{"nickname " + nickname, "text=" + nickname}}, checks...)
	}
	for _, c := range checks {
		if err := page.WaitVisible(ctx, c.sel, formTimeout); err != nil {
			return errs.Wrap(errs.AssertionFailure, "profile menu is missing "+c.what, err)
		}
	}
	return nil
}

const tokenScript = `() => localStorage.getItem('token') || localStorage.getItem('authToken') || localStorage.getItem('accessToken')`

// HasValidToken reports whether the page holds an auth token in local
// storage or an auth-looking cookie. Lookup failures read as false.
func HasValidToken(ctx context.Context, page Page) bool {
	if v, err := page.Evaluate(ctx, tokenScript, nil); err == nil {
		if s, ok := v.(string); ok && s != "" {
			return true
		}
	}
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return false
	}
	return HasAuthCookie(cookies)
}

// HasAuthCookie reports whether any cookie looks like a session credential.
func HasAuthCookie(cookies []driver.Cookie) bool {
	for _, c := range cookies {
		if c.Name == "session" || strings.Contains(c.Name, "token") || strings.Contains(c.Name, "auth") {
			return true
		}
	}
	return false
}
