package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"docmanager/internal/models"
	"docmanager/internal/rate"
)

func TestClientIPTrustProxy(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:12345"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.5")

	if got := ClientIP(r, false); got != "10.0.0.5" {
		t.Fatalf("unexpected direct IP: %s", got)
	}
	if got := ClientIP(r, true); got != "1.2.3.4" {
		t.Fatalf("unexpected proxied IP: %s", got)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"Bearer abc.def":  "abc.def",
		"bearer  abc ":    "abc",
		"Basic dXNlcg==":  "",
		"Bearer":          "",
		"BEARER tok-1234": "tok-1234",
	}
	for header, want := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if got := BearerToken(r); got != want {
			t.Fatalf("BearerToken(%q)=%q want %q", header, got, want)
		}
	}
}

type stubAuth struct{}

func (stubAuth) Authenticate(_ context.Context, token string) (models.User, error) {
	if token == "good" {
		return models.User{ID: 7, Role: models.RoleStudent}, nil
	}
	return models.User{}, errors.New("bad token")
}

func TestAuthnAttachesUserOnlyForValidTokens(t *testing.T) {
	var gotUser models.User
	var gotOK bool
	var gotToken string
	h := Authn(stubAuth{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotOK = User(r.Context())
		gotToken = Token(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, header := range []string{"", "Bearer bad"} {
		rr := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		h.ServeHTTP(rr, r)
		if rr.Code != http.StatusNoContent || gotOK || gotToken != "" {
			t.Fatalf("%q: expected anonymous pass-through, got code=%d ok=%v token=%q", header, rr.Code, gotOK, gotToken)
		}
	}

	rr := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(rr, r)
	if rr.Code != http.StatusNoContent || !gotOK || gotUser.ID != 7 || gotToken != "good" {
		t.Fatalf("unexpected result code=%d user=%#v ok=%v token=%q", rr.Code, gotUser, gotOK, gotToken)
	}
}

func TestRateLimitRejectsAfterLimit(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := rate.NewLimiterWithClock(func() time.Time { return now })
	h := RateLimit(l, "auth", 2, time.Minute, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/auth", nil)
		r.RemoteAddr = "192.0.2.1:4000"
		h.ServeHTTP(rr, r)
		codes = append(codes, rr.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	h := RequestIDMiddleware(RequestLogger(logger, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/documents?action=list", nil))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected a log entry")
	}
	if entry.Data["status"] != http.StatusTeapot || entry.Data["action"] != "list" {
		t.Fatalf("unexpected fields %v", entry.Data)
	}
	if entry.Data["request_id"] != rr.Header().Get("X-Request-ID") || rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id mismatch: %v vs %q", entry.Data["request_id"], rr.Header().Get("X-Request-ID"))
	}
}
