package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clipshare/backend/internal/logging"
)

type statusRecorder struct {
	statuses []int
}

func (s *statusRecorder) RecordAuthEvent(string, string)              {}
func (s *statusRecorder) RecordRequestDuration(string, time.Duration) {}
func (s *statusRecorder) RecordHTTPStatus(code int)                   { s.statuses = append(s.statuses, code) }

func TestRateLimiterPerKey(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Minute, 2, time.Hour)
	now := time.Unix(0, 0)
	limiter.WithNowFunc(func() time.Time { return now })

	if !limiter.Allow("login:1.1.1.1") || !limiter.Allow("login:1.1.1.1") {
		t.Fatal("burst should admit two requests")
	}
	if limiter.Allow("login:1.1.1.1") {
		t.Fatal("third request should be limited")
	}
	if !limiter.Allow("login:2.2.2.2") {
		t.Fatal("other clients must not share the bucket")
	}

	now = now.Add(time.Minute)
	if !limiter.Allow("login:1.1.1.1") {
		t.Fatal("bucket should refill after the window")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Hour)
	handler := RateLimit(limiter, "register", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("ClientIP = %q", got)
	}
	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 192.0.2.1")
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("ClientIP should ignore forwarding headers, got %q", got)
	}
}

func TestRequestLoggerPropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	recorder := &statusRecorder{}

	var seen string
	handler := RequestLogger(logger, recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "abc-123" || rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seen, rec.Header().Get(RequestIDHeader))
	}
	if len(recorder.statuses) != 1 || recorder.statuses[0] != http.StatusAccepted {
		t.Fatalf("unexpected recorded statuses %v", recorder.statuses)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if entry["request_id"] != "abc-123" || entry["status"] != float64(http.StatusAccepted) {
		t.Fatalf("unexpected log entry %v", entry)
	}
}

func TestRequestLoggerRecoversPanics(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	handler := RequestLogger(logger, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	var body struct {
		StatusCode int    `json:"statusCode"`
		Message    string `json:"message"`
		Success    bool   `json:"success"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.StatusCode != 500 || body.Success || body.Message != "internal server error" {
		t.Fatalf("unexpected body %+v", body)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
}
