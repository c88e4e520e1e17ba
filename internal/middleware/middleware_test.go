package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
	"github.com/bryanwahyu/contract-analysis/internal/logging"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(ClientFromContext(r.Context())))
})

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"web": "secret"})(okHandler)
	tests := []struct {
		name   string
		path   string
		header string
		want   int
		body   string
	}{
		{"bearer", "/v1/contracts", "Bearer secret", 200, "web"},
		{"bare key", "/v1/contracts", "secret", 200, "web"},
		{"missing", "/v1/contracts", "", 401, ""},
		{"wrong", "/v1/contracts", "Bearer nope", 401, ""},
		{"health skips", "/health", "", 200, ""},
		{"metrics skips", "/metrics", "", 200, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == 200 && rec.Body.String() != tt.body {
				t.Errorf("client = %q, want %q", rec.Body.String(), tt.body)
			}
			if tt.want == 401 {
				var body ErrorBody
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Error.Message == "" {
					t.Errorf("error body = %v, %v", body, err)
				}
			}
		})
	}
}

func TestAPIKeyAuth_DisabledWithoutKeys(t *testing.T) {
	rec := httptest.NewRecorder()
	APIKeyAuth(nil)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/contracts", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	checkers := map[string]HealthChecker{
		"db":    CheckFunc(func(context.Context) error { return nil }),
		"store": CheckFunc(func(context.Context) error { return errors.New("bucket missing") }),
	}
	rec := httptest.NewRecorder()
	HealthHandler(checkers).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var got HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "unhealthy" || got.Checks["db"].Status != "healthy" || got.Checks["store"].Message != "bucket missing" {
		t.Errorf("health = %+v", got)
	}
}

func TestReadinessHandler(t *testing.T) {
	var ready atomic.Bool
	h := ReadinessHandler(&ready)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before ready: %d", rec.Code)
	}
	ready.Store(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("after ready: %d", rec.Code)
	}
}

func TestRequestIDAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	h := RequestID(LoggingMiddleware(logger)(inner))

	req := httptest.NewRequest(http.MethodPost, "/v1/contracts/analyze", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-123" || rec.Header().Get(RequestIDHeader) != "req-123" {
		t.Errorf("request id = %q, header %q", seen, rec.Header().Get(RequestIDHeader))
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line: %v (%s)", err, buf.String())
	}
	if line["level"] != "WARN" || line["status"] != float64(418) || line["request_id"] != "req-123" {
		t.Errorf("log = %v", line)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected generated request id")
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.AnalysisStarted()
	m.AnalysisFinished("")
	m.AnalysisStarted()
	m.AnalysisFinished(contracts.StageAnalyze)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))

	if m.AnalysesTotal.Load() != 2 || m.AnalysesFailed.Load() != 1 || m.AnalysesRunning.Load() != 0 {
		t.Errorf("analyses = %d total, %d failed, %d running",
			m.AnalysesTotal.Load(), m.AnalysesFailed.Load(), m.AnalysesRunning.Load())
	}
	if m.StageFailures(contracts.StageAnalyze) != 1 || m.StageFailures(contracts.StageExtract) != 0 {
		t.Errorf("stage failures wrong")
	}
	if m.RequestsSuccess.Load() != 1 || m.RequestsFailed.Load() != 1 {
		t.Errorf("requests = %d ok, %d failed", m.RequestsSuccess.Load(), m.RequestsFailed.Load())
	}

	rec := httptest.NewRecorder()
	m.Handler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	var snap map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	stages, _ := snap["stage_failures"].(map[string]any)
	if stages["analyze"] != float64(1) {
		t.Errorf("stage_failures = %v", snap["stage_failures"])
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, 1)
	defer rl.Close()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Error("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Error("other clients have their own bucket")
	}
	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Error("bucket should refill after a second")
	}

	now = now.Add(time.Hour)
	rl.evict(10 * time.Minute)
	rl.mu.RLock()
	n := len(rl.buckets)
	rl.mu.RUnlock()
	if n != 0 {
		t.Errorf("idle buckets kept: %d", n)
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 0)
	defer rl.Close()
	h := rl.Middleware(okHandler)

	call := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "203.0.113.9:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if call("/v1/contracts") != 200 {
		t.Fatal("first call limited")
	}
	if got := call("/v1/contracts"); got != http.StatusTooManyRequests {
		t.Errorf("second call = %d", got)
	}
	if call("/health") != 200 {
		t.Error("health is never limited")
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url          string
		allowPrivate bool
		ok           bool
	}{
		{"https://files.example.com/a.pdf", false, true},
		{"ftp://files.example.com/a.pdf", false, false},
		{"", false, false},
		{"http://localhost:8080/a.pdf", false, false},
		{"http://127.0.0.1/a.pdf", false, false},
		{"http://10.1.2.3/a.pdf", false, false},
		{"http://172.20.0.5/a.pdf", false, false},
		{"http://192.168.1.1/a.pdf", false, false},
		{"http://169.254.169.254/latest", false, false},
		{"http://[::1]/a.pdf", false, false},
		{"http://127.0.0.1:9000/a.pdf", true, true},
		{"http:///a.pdf", true, false},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url, tt.allowPrivate)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateURL(%q, %v) = %v, want ok=%v", tt.url, tt.allowPrivate, err, tt.ok)
		}
	}
}

func TestValidators(t *testing.T) {
	if err := ValidateUserID("user_42@acme.io"); err != nil {
		t.Errorf("ValidateUserID: %v", err)
	}
	for _, bad := range []string{"", "a b", strings.Repeat("x", 129), "x;drop"} {
		if ValidateUserID(bad) == nil {
			t.Errorf("ValidateUserID(%q) accepted", bad)
		}
	}
	for _, ok := range []string{"", "Lease", "nda"} {
		if err := ValidateContractType(ok); err != nil {
			t.Errorf("ValidateContractType(%q): %v", ok, err)
		}
	}
	if ValidateContractType("Spaceship") == nil {
		t.Error("unknown type accepted")
	}
	if ValidateAnalysisID("3f2b-xx_1") != nil || ValidateAnalysisID("../etc") == nil {
		t.Error("ValidateAnalysisID wrong")
	}
	if ValidateLimit(0) != 20 || ValidateLimit(500) != 100 || ValidateLimit(7) != 7 {
		t.Error("ValidateLimit wrong")
	}
	if ValidatePage(-1) != 1 || ValidatePage(3) != 3 {
		t.Error("ValidatePage wrong")
	}
	if got := SanitizeString(" a\x00b\x07c "); got != "abc" {
		t.Errorf("SanitizeString = %q", got)
	}
}

func TestRecovery(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("parser exploded")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/contracts/analyze", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body %q: %v", rec.Body.String(), err)
	}
	if body.Error.Message != "internal server error" {
		t.Errorf("error = %+v", body.Error)
	}
	if !strings.Contains(logs.String(), "parser exploded") {
		t.Errorf("panic not logged: %s", logs.String())
	}

	rec = httptest.NewRecorder()
	Recovery(logger)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("normal request status = %d", rec.Code)
	}
}
