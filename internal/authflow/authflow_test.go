package authflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/accounts"
	"github.com/kuitang/hellopet-e2e/internal/driver"
	"github.com/kuitang/hellopet-e2e/internal/driver/drivertest"
	"github.com/kuitang/hellopet-e2e/internal/errs"
	"github.com/kuitang/hellopet-e2e/internal/selector"
)

const base = "http://hellopet.test"

var (
	profileSel   = selector.Auth.Selector(selector.ProfileIndicator)
	openerSel    = selector.Auth.Selector(selector.ProfileOpener)
	logoutSel    = selector.Auth.Selector(selector.LogoutControl)
	loginLinkSel = selector.Auth.Selector(selector.LoginAffordance)
	loggedOutSel = selector.Auth.Selector(selector.LoggedOutMarker)
	submitSel    = selector.Auth.Selector(selector.LoginSubmit)
	emailSel     = selector.AuthForm.Selector(selector.EmailInput)
	passwordSel  = selector.AuthForm.Selector(selector.PasswordInput)
)

// newSite returns a page that shows the login form on /auth/login.
func newSite() *drivertest.Page {
	p := drivertest.New(base)
	p.OnNavigate(func(p *drivertest.Page, url string) {
		p.SetVisible("form", strings.HasSuffix(url, LoginPath))
	})
	return p
}

// signIn marks the page as belonging to a signed-in session.
func signIn(p *drivertest.Page) {
	p.SetCookies(driver.Cookie{Name: "session", Value: "abc", Path: "/"})
	p.SetVisible(profileSel, true)
	p.SetVisible(loggedOutSel, false)
}

func signOut(p *drivertest.Page) {
	p.SetCookies()
	p.SetVisible(profileSel, false)
	p.SetVisible(logoutSel, false)
	p.SetVisible(loginLinkSel, true)
	p.SetVisible(loggedOutSel, true)
}

func TestLogin_RedirectHome(t *testing.T) {
	page := newSite()
	page.OnClick(submitSel, func(p *drivertest.Page) error {
		p.SetURL("/")
		return nil
	})

	acct := accounts.Default()
	if err := LoginWithAccount(context.Background(), page, acct); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got, _ := page.Filled(emailSel); got != acct.Email {
		t.Errorf("email filled = %q, want %q", got, acct.Email)
	}
	if got, _ := page.Filled(passwordSel); got != acct.Password {
		t.Errorf("password filled = %q", got)
	}
	calls := page.Calls()
	want := []string{"goto /auth/login", "fill " + emailSel, "fill " + passwordSel, "click " + submitSel}
	if len(calls) != len(want) {
		t.Fatalf("calls = %q, want %q", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestLogin_ProfileIndicatorWins(t *testing.T) {
	page := newSite()
	// The site keeps the browser on the login page but shows the profile.
	page.OnClick(submitSel, func(p *drivertest.Page) error {
		signIn(p)
		return nil
	})
	if err := Login(context.Background(), page, "test@test.test", "test123!@#"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !strings.HasSuffix(page.URL(), LoginPath) {
		t.Fatalf("URL = %q, expected to stay on login page", page.URL())
	}
}

func TestLogin_NeitherSignalTimesOut(t *testing.T) {
	page := newSite()
	err := Login(context.Background(), page, "test@test.test", "wrong")
	if !errs.Is(err, errs.Timeout) {
		t.Fatalf("Login = %v, want Timeout", err)
	}
	if got := errs.ExpectedOf(err); got != string(LoggedIn) {
		t.Fatalf("expected state = %q, want %q", got, LoggedIn)
	}
}

func TestLogin_MissingForm(t *testing.T) {
	page := drivertest.New(base)
	err := Login(context.Background(), page, "a@b.c", "pw")
	if !errs.Is(err, errs.Timeout) {
		t.Fatalf("Login without form = %v, want Timeout", err)
	}
	for _, c := range page.Calls() {
		if strings.HasPrefix(c, "fill") {
			t.Fatalf("should not fill before the form shows, calls = %q", page.Calls())
		}
	}
}

func TestLogout_ViaMenu(t *testing.T) {
	page := newSite()
	signIn(page)
	page.OnClick(openerSel, func(p *drivertest.Page) error {
		p.SetVisible(logoutSel, true)
		return nil
	})
	page.OnClick(logoutSel, func(p *drivertest.Page) error {
		signOut(p)
		return nil
	})

	out, err := Logout(context.Background(), page)
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if out.Forced {
		t.Fatal("menu logout should not be forced")
	}
	for _, c := range page.Calls() {
		if c == "clear cookies" || c == "reload" {
			t.Fatalf("menu logout should not touch cookies directly, calls = %q", page.Calls())
		}
	}
}

func TestLogout_ForcedWhenMenuFails(t *testing.T) {
	page := newSite()
	signIn(page)
	page.OnClick(openerSel, func(*drivertest.Page) error {
		return errors.New("element is detached")
	})
	page.OnNavigate(func(p *drivertest.Page, _ string) {
		cookies, _ := p.Cookies(context.Background())
		if !HasAuthCookie(cookies) {
			signOut(p)
		}
	})

	out, err := Logout(context.Background(), page)
	if err != nil {
		t.Fatalf("forced Logout should succeed, got %v", err)
	}
	if !out.Forced {
		t.Fatal("expected forced logout")
	}
	cookies, _ := page.Cookies(context.Background())
	if HasAuthCookie(cookies) {
		t.Fatalf("auth cookie survived forced logout: %+v", cookies)
	}
	if IsLoggedIn(context.Background(), page) {
		t.Fatal("page still reports signed in after forced logout")
	}
}

func TestLogout_ForcedWhenLogoutControlNeverShows(t *testing.T) {
	page := newSite()
	signIn(page)
	out, err := Logout(context.Background(), page)
	if err != nil || !out.Forced {
		t.Fatalf("Logout = %+v, %v; want forced success", out, err)
	}
	cookies, _ := page.Cookies(context.Background())
	if len(cookies) != 0 {
		t.Fatalf("cookies = %+v, want none", cookies)
	}
}

func TestLogout_ForcedPathFailureIsReported(t *testing.T) {
	page := newSite()
	signIn(page)
	page.SetClearCookiesError(errors.New("browser closed"))
	out, err := Logout(context.Background(), page)
	if err == nil || !out.Forced {
		t.Fatalf("Logout = %+v, %v; want forced failure", out, err)
	}
	if strings.Contains(err.Error(), logoutSel) {
		t.Fatalf("menu error leaked into result: %v", err)
	}
}

func TestIsLoggedIn(t *testing.T) {
	ctx := context.Background()

	page := drivertest.New(base)
	signIn(page)
	if !IsLoggedIn(ctx, page) {
		t.Error("profile visible should read as signed in")
	}

	page = drivertest.New(base)
	signOut(page)
	if IsLoggedIn(ctx, page) {
		t.Error("login link visible should read as signed out")
	}

	page = drivertest.New(base)
	if IsLoggedIn(ctx, page) {
		t.Error("ambiguous page should read as signed out")
	}
}

func TestWaitForAuthState_IndicatorAppears(t *testing.T) {
	page := drivertest.New(base)
	signOut(page)
	timer := time.AfterFunc(300*time.Millisecond, func() { signIn(page) })
	defer timer.Stop()

	start := time.Now()
	if err := WaitForAuthState(context.Background(), page, LoggedIn); err != nil {
		t.Fatalf("WaitForAuthState: %v", err)
	}
	if time.Since(start) > stateTimeout {
		t.Fatalf("took %s, longer than the state timeout", time.Since(start))
	}
}

func TestWaitForAuthState_LoggedOutIsImmediate(t *testing.T) {
	page := drivertest.New(base)
	if err := WaitForAuthState(context.Background(), page, LoggedOut); err != nil {
		t.Fatalf("WaitForAuthState(logged-out) on ambiguous page: %v", err)
	}
}

func TestWaitForAuthState_NeverAppears(t *testing.T) {
	page := drivertest.New(base)
	signOut(page)

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	err := WaitForAuthState(ctx, page, LoggedIn)
	if !errs.Is(err, errs.Timeout) {
		t.Fatalf("WaitForAuthState = %v, want Timeout", err)
	}
	if got := errs.ExpectedOf(err); got != string(LoggedIn) {
		t.Fatalf("expected state = %q", got)
	}
}

func TestWaitForAuthState_UnknownState(t *testing.T) {
	err := WaitForAuthState(context.Background(), drivertest.New(base), State("maybe"))
	if !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
}

func TestExpectLoginRedirect(t *testing.T) {
	page := drivertest.New(base)
	page.OnNavigate(func(p *drivertest.Page, url string) {
		if strings.HasSuffix(url, "/me") {
			p.SetURL(LoginPath + "?next=/me")
		}
	})
	if err := ExpectLoginRedirect(context.Background(), page, "/me"); err != nil {
		t.Fatalf("ExpectLoginRedirect(/me): %v", err)
	}

	err := ExpectLoginRedirect(context.Background(), page, "/about")
	if !errs.Is(err, errs.AssertionFailure) {
		t.Fatalf("ExpectLoginRedirect(/about) = %v, want AssertionFailure", err)
	}
}

func TestVerifyUserProfile(t *testing.T) {
	page := drivertest.New(base)
	signIn(page)
	page.OnClick(profileSel, func(p *drivertest.Page) error {
		p.SetVisible("text=테스트유저1", true)
		p.SetVisible(selector.Navigation.Selector(selector.MyPageLink), true)
		p.SetVisible(selector.Navigation.Selector(selector.LogoutButton), true)
		return nil
	})
	if err := VerifyUserProfile(context.Background(), page, "테스트유저1"); err != nil {
		t.Fatalf("VerifyUserProfile: %v", err)
	}
	err := VerifyUserProfile(context.Background(), page, "다른사람")
	if !errs.Is(err, errs.AssertionFailure) {
		t.Fatalf("wrong nickname = %v, want AssertionFailure", err)
	}
}

func TestHasValidToken(t *testing.T) {
	ctx := context.Background()

	page := drivertest.New(base)
	if HasValidToken(ctx, page) {
		t.Error("empty page has no token")
	}

	page.OnEvaluate(func(_, _ string, _ any) (any, error) { return "jwt", nil })
	if !HasValidToken(ctx, page) {
		t.Error("local storage token should count")
	}

	page = drivertest.New(base)
	page.OnEvaluate(func(_, _ string, _ any) (any, error) { return nil, errors.New("no storage") })
	page.SetCookies(driver.Cookie{Name: "refresh_token", Value: "x"})
	if !HasValidToken(ctx, page) {
		t.Error("token cookie should count")
	}
}

func TestHasAuthCookie(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"session", true},
		{"authToken", true},
		{"oauth_state", true},
		{"access_token", true},
		{"sessionid", false},
		{"theme", false},
	}
	for _, c := range cases {
		got := HasAuthCookie([]driver.Cookie{{Name: c.name}})
		if got != c.want {
			t.Errorf("HasAuthCookie(%q) = %t, want %t", c.name, got, c.want)
		}
	}
}
