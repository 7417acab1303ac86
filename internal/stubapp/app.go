// Package stubapp is a small local stand-in for the Hello Pet site. It serves
// the pages, navigation and sign-in flow the browser suite drives, so the
// suite can run without a deployed environment.
package stubapp

import (
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/accounts"
	"github.com/kuitang/hellopet-e2e/internal/obs"
	"github.com/kuitang/hellopet-e2e/internal/ratelimit"
)

// LoginPath is where anonymous visitors are sent.
const LoginPath = "/auth/login"

//go:embed static/*
var staticFS embed.FS

// Options configures an App. Zero values fall back to the fixture accounts,
// argon2id hashing, a one-day session and the default login throttle.
type Options struct {
	Accounts        []accounts.Account
	Hasher          PasswordHasher
	SessionDuration time.Duration
	LoginLimit      ratelimit.Config
	Clock           Clock
}

// App is the stub site.
type App struct {
	renderer  *Renderer
	content   Content
	directory *Directory
	sessions  *SessionStore
	limiter   *ratelimit.Limiter
	duration  time.Duration
}

// New builds the stub site.
func New(opts Options) (*App, error) {
	if opts.Accounts == nil {
		opts.Accounts = accounts.All()
	}
	if opts.Hasher == nil {
		opts.Hasher = Argon2Hasher{}
	}
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = 24 * time.Hour
	}
	if opts.LoginLimit.RPS <= 0 || opts.LoginLimit.Burst <= 0 {
		opts.LoginLimit = ratelimit.DefaultConfig
	}

	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	content, err := LoadContent()
	if err != nil {
		return nil, err
	}
	directory, err := NewDirectory(opts.Hasher, opts.Accounts)
	if err != nil {
		return nil, err
	}
	return &App{
		renderer:  renderer,
		content:   content,
		directory: directory,
		sessions:  NewSessionStore(opts.SessionDuration, opts.Clock),
		limiter:   ratelimit.New(opts.LoginLimit),
		duration:  opts.SessionDuration,
	}, nil
}

// Close stops background work.
func (a *App) Close() {
	a.limiter.Stop()
}

// Sessions exposes the session store for tests.
func (a *App) Sessions() *SessionStore { return a.sessions }

// Handler returns the site's routes wrapped in access logging.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.HandleFunc("GET /health", a.HandleHealth)

	mux.Handle("GET /{$}", a.optionalAuth(http.HandlerFunc(a.HandleHome)))
	mux.Handle("GET /about", a.optionalAuth(http.HandlerFunc(a.HandleAbout)))
	mux.Handle("GET /announcements", a.optionalAuth(http.HandlerFunc(a.HandleAnnouncements)))
	mux.Handle("GET /notices", a.optionalAuth(http.HandlerFunc(a.HandleNotices)))
	mux.Handle("GET /feed", a.optionalAuth(http.HandlerFunc(a.HandleFeed)))
	mux.Handle("GET /api/posts", a.optionalAuth(http.HandlerFunc(a.HandlePosts)))

	mux.Handle("GET "+LoginPath, a.optionalAuth(http.HandlerFunc(a.HandleLoginPage)))
	throttle := ratelimit.Middleware(a.limiter, func(r *http.Request) string {
		return normalizeEmail(r.PostFormValue("email"))
	})
	mux.Handle("POST "+LoginPath, throttle(http.HandlerFunc(a.HandleLogin)))
	mux.HandleFunc("POST /auth/logout", a.HandleLogout)

	mux.Handle("GET /me", a.requireAuthWithRedirect(http.HandlerFunc(a.HandleMe)))

	mux.Handle("/", a.optionalAuth(http.HandlerFunc(a.HandleNotFound)))

	return obs.AccessLogMiddleware("stubapp", mux)
}

func (a *App) render(w http.ResponseWriter, r *http.Request, status int, name string, data PageData) {
	data.User = UserFrom(r.Context())
	if err := a.renderer.Render(w, status, name, data); err != nil {
		obs.From(r.Context()).With("pkg", "stubapp").Error("render_failed", "template", name, "error", err)
	}
}

// HandleHome handles GET /.
func (a *App) HandleHome(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "home.html", PageData{Title: "홈"})
}

// HandleAbout handles GET /about.
func (a *App) HandleAbout(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "about.html", PageData{
		Title: "소개",
		Body:  renderMarkdown(a.content.About),
	})
}

// HandleAnnouncements handles GET /announcements.
func (a *App) HandleAnnouncements(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "board.html", PageData{Title: "입양게시판", Entries: a.content.Announcements})
}

// HandleNotices handles GET /notices.
func (a *App) HandleNotices(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "board.html", PageData{Title: "공지사항", Entries: a.content.Notices})
}

// HandleFeed handles GET /feed. Posts are fetched by the page script.
func (a *App) HandleFeed(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "feed.html", PageData{Title: "피드"})
}

type postsResponse struct {
	Scope string `json:"scope"`
	Posts []Post `json:"posts"`
}

// HandlePosts handles GET /api/posts?scope=all|mine. "mine" needs a session.
func (a *App) HandlePosts(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "all"
	}
	user := UserFrom(r.Context())

	posts := make([]Post, 0, len(a.content.Posts))
	switch scope {
	case "all":
		posts = append(posts, a.content.Posts...)
	case "mine":
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "로그인이 필요합니다"})
			return
		}
		for _, p := range a.content.Posts {
			if strings.EqualFold(p.Email, user.Email) {
				posts = append(posts, p)
			}
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown scope"})
		return
	}
	writeJSON(w, http.StatusOK, postsResponse{Scope: scope, Posts: posts})
}

// HandleLoginPage handles GET /auth/login. Signed-in visitors go home.
func (a *App) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))
	if UserFrom(r.Context()) != nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	a.render(w, r, http.StatusOK, "login.html", PageData{Title: "로그인", Next: next})
}

// HandleLogin handles POST /auth/login.
func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	log := obs.From(r.Context()).With("pkg", "stubapp")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	next := safeNext(r.FormValue("next"))

	acct, err := a.directory.Authenticate(email, password)
	if err != nil {
		msg := "서버 오류가 발생했습니다"
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidCredentials) {
			msg = "이메일 또는 패스워드가 올바르지 않습니다"
			status = http.StatusUnauthorized
		}
		log.Info("login_rejected", "email", obs.MaskEmail(email))
		a.render(w, r, status, "login.html", PageData{Title: "로그인", Error: msg, Email: email, Next: next})
		return
	}

	sessionID := a.sessions.Create(acct.Email)
	SetCookie(w, sessionID, a.duration)
	log.Info("login_succeeded", "email", obs.MaskEmail(acct.Email))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// HandleLogout handles POST /auth/logout.
func (a *App) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, err := GetFromRequest(r); err == nil {
		a.sessions.Delete(sessionID)
	}
	ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleMe handles GET /me.
func (a *App) HandleMe(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "me.html", PageData{Title: "마이페이지"})
}

// HandleHealth handles GET /health.
func (a *App) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": a.sessions.Len()})
}

// HandleNotFound renders the 404 page for unknown paths.
func (a *App) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusNotFound, "error.html", PageData{
		Title:   "페이지를 찾을 수 없습니다",
		Status:  http.StatusNotFound,
		Message: "페이지를 찾을 수 없습니다",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

