package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestFrom_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	ctx := WithCorrelation(context.Background(), Correlation{RunID: "run-1", Test: "TestX", Attempt: 2})
	ctx = WithCorrelation(ctx, Correlation{Env: "ci"})
	From(ctx).Info("hello")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	got := lines[0]
	if got["run_id"] != "run-1" || got["test"] != "TestX" || got["env"] != "ci" {
		t.Fatalf("missing correlation fields: %v", got)
	}
	if got["attempt"] != float64(2) {
		t.Fatalf("attempt = %v, want 2", got["attempt"])
	}
}

func TestLogger_RedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	Pkg("auth").Info("login", "email", MaskEmail("test@test.test"), "password", "test123!@#", "session_cookie", "abc")

	lines := decodeLines(t, &buf)
	got := lines[0]
	if got["password"] != redacted {
		t.Errorf("password = %v, want redacted", got["password"])
	}
	if got["session_cookie"] != redacted {
		t.Errorf("session_cookie = %v, want redacted", got["session_cookie"])
	}
	if got["email"] != "t***@test.test" {
		t.Errorf("email = %v, want masked", got["email"])
	}
	if got["pkg"] != "auth" {
		t.Errorf("pkg = %v, want auth", got["pkg"])
	}
}

func TestMaskEmail_Malformed(t *testing.T) {
	for _, in := range []string{"", "no-at-sign", "@domain.only"} {
		if got := MaskEmail(in); got != redacted {
			t.Errorf("MaskEmail(%q) = %q, want %q", in, got, redacted)
		}
	}
}

func TestAccessLogMiddleware_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	h := AccessLogMiddleware("stub", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/about", nil))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0]["status"] != float64(http.StatusTeapot) {
		t.Fatalf("status = %v, want 418", lines[0]["status"])
	}
	if lines[0]["path"] != "/about" {
		t.Fatalf("path = %v, want /about", lines[0]["path"])
	}
}
