package stubapp

import (
	"context"
	"net/http"
	"net/url"

	"github.com/kuitang/hellopet-e2e/internal/accounts"
)

type contextKey string

const userKey contextKey = "user"

// UserFrom returns the signed-in account, or nil.
func UserFrom(ctx context.Context) *accounts.Account {
	u, _ := ctx.Value(userKey).(*accounts.Account)
	return u
}

// optionalAuth attaches the signed-in account to the request context when
// the session cookie is valid.
func (a *App) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := GetFromRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		email, err := a.sessions.Validate(sessionID)
		if err != nil {
			// Stale cookie from an expired or deleted session.
			ClearCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		acct, ok := a.directory.Lookup(email)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, &acct)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuthWithRedirect sends anonymous visitors to the login page with
// the original path in ?next=.
func (a *App) requireAuthWithRedirect(next http.Handler) http.Handler {
	return a.optionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()) == nil {
			target := LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// safeNext returns next when it is a local absolute path, else "/".
func safeNext(next string) string {
	if next == "" || next[0] != '/' {
		return "/"
	}
	// Reject scheme-relative and backslash tricks like //evil.com or /\evil.com.
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return next
}
