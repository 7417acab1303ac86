package stubapp

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the session ID.
const SessionCookieName = "session"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

type session struct {
	email     string
	expiresAt time.Time
}

// SessionStore keeps sessions in memory.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]session
	duration time.Duration
	clock    Clock
}

// NewSessionStore creates a store whose sessions last duration.
func NewSessionStore(duration time.Duration, clock Clock) *SessionStore {
	if clock == nil {
		clock = realClock{}
	}
	return &SessionStore{
		sessions: make(map[string]session),
		duration: duration,
		clock:    clock,
	}
}

// Create starts a session for email and returns its ID.
func (s *SessionStore) Create(email string) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = session{email: email, expiresAt: s.clock.Now().Add(s.duration)}
	return id
}

// Validate returns the email bound to id. Expired sessions are removed.
func (s *SessionStore) Validate(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return "", ErrSessionNotFound
	}
	if !s.clock.Now().Before(sess.expiresAt) {
		delete(s.sessions, id)
		return "", ErrSessionExpired
	}
	return sess.email, nil
}

// Delete ends a session. Unknown IDs are ignored.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SetCookie sets the session cookie on the response.
func SetCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// GetFromRequest retrieves the session ID from the request cookie.
func GetFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return cookie.Value, nil
}
