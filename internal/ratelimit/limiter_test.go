package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func keyGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z0-9]{1,12}@test\.(com|test)`)
}

func testLimiter_WithinBurstAllowed(t *rapid.T) {
	burst := rapid.IntRange(1, 50).Draw(t, "burst")
	l := New(Config{RPS: 0.001, Burst: burst, CleanupInterval: time.Hour})
	defer l.Stop()

	key := keyGenerator().Draw(t, "key")
	for i := 0; i < burst; i++ {
		if !l.Allow(key) {
			t.Fatalf("attempt %d of burst %d was rejected", i+1, burst)
		}
	}
	if l.Allow(key) {
		t.Fatalf("attempt %d beyond burst %d was allowed", burst+1, burst)
	}
}

func TestLimiter_WithinBurstAllowed(t *testing.T) {
	rapid.Check(t, testLimiter_WithinBurstAllowed)
}

func testLimiter_KeysAreIndependent(t *rapid.T) {
	l := New(Config{RPS: 0.001, Burst: 1, CleanupInterval: time.Hour})
	defer l.Stop()

	a := keyGenerator().Draw(t, "a")
	b := keyGenerator().Filter(func(s string) bool { return s != a }).Draw(t, "b")

	if !l.Allow(a) {
		t.Fatal("first attempt for a rejected")
	}
	if l.Allow(a) {
		t.Fatal("second attempt for a allowed with burst 1")
	}
	if !l.Allow(b) {
		t.Fatal("exhausting a throttled b")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	rapid.Check(t, testLimiter_KeysAreIndependent)
}

func TestLimiter_CleanupForgetsIdleKeys(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1, CleanupInterval: time.Hour})
	defer l.Stop()

	base := time.Now()
	l.now = func() time.Time { return base }
	l.Allow("idle@test.com")

	l.now = func() time.Time { return base.Add(30 * time.Minute) }
	l.Allow("busy@test.com")

	l.now = func() time.Time { return base.Add(61 * time.Minute) }
	l.Cleanup()

	if l.Len() != 1 {
		t.Fatalf("Len after cleanup = %d, want 1", l.Len())
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	l := New(Config{RPS: 1000, Burst: 1000, CleanupInterval: time.Hour})
	defer l.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				l.Allow(strings.Repeat("k", i%4+1))
			}
		}(i)
	}
	wg.Wait()
	if l.Len() != 4 {
		t.Fatalf("Len = %d, want 4", l.Len())
	}
}

func TestMiddleware_ThrottlesByKey(t *testing.T) {
	l := New(Config{RPS: 0.001, Burst: 2, CleanupInterval: time.Hour})
	defer l.Stop()

	h := Middleware(l, func(r *http.Request) string { return r.URL.Query().Get("email") })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	do := func(q string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login"+q, nil))
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("?email=a@test.com"); rec.Code != http.StatusNoContent {
			t.Fatalf("attempt %d status = %d, want 204", i+1, rec.Code)
		}
	}
	rec := do("?email=a@test.com")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}
	for i := 0; i < 5; i++ {
		if rec := do(""); rec.Code != http.StatusNoContent {
			t.Fatalf("keyless request throttled: %d", rec.Code)
		}
	}
}
