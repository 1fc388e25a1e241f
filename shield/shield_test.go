package shield

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/docpdf/kit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func TestAPIStack_Headers(t *testing.T) {
	// WHAT: responses from a chi router carry the security headers and a request id.
	// WHY: without the stack no CSP, X-Frame-Options or X-Request-ID is sent.
	r := chi.NewRouter()
	for _, mw := range APIStack(nil, nil, nil) {
		r.Use(mw)
	}
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	checks := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	}
	for header, want := range checks {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s: got %q, want %q", header, got, want)
		}
	}
	if id := w.Header().Get("X-Request-ID"); !strings.HasPrefix(id, "req_") {
		t.Errorf("X-Request-ID = %q", id)
	}

	// HEAD reaches the GET route.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("HEAD", "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("HEAD status = %d", w.Code)
	}
}

func TestRequestID_ContextAndIncoming(t *testing.T) {
	var seenID, seenTransport string
	h := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = kit.GetRequestID(r.Context())
		seenTransport = kit.GetTransport(r.Context())
		if GetLogger(r.Context()) == nil {
			t.Error("no logger in context")
		}
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "client-abc.1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if seenID != "client-abc.1" || w.Header().Get("X-Request-ID") != "client-abc.1" {
		t.Fatalf("incoming id not kept: ctx=%q header=%q", seenID, w.Header().Get("X-Request-ID"))
	}
	if seenTransport != "http" {
		t.Fatalf("transport = %q", seenTransport)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "bad id\n")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !strings.HasPrefix(seenID, "req_") {
		t.Fatalf("invalid incoming id kept: %q", seenID)
	}
}

func TestMaxJSONBody(t *testing.T) {
	var readErr error
	h := MaxJSONBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"inputs":["a","b"]}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if readErr == nil {
		t.Fatal("oversized JSON body accepted")
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader("0123456789"))
	req.Header.Set("Content-Type", "text/plain")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if readErr != nil {
		t.Fatalf("non-JSON body limited: %v", readErr)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{MaxRequests: 2, Window: time.Minute}, nil)
	rl.now = func() time.Time { return now }
	h := rl.Middleware(okHandler())

	do := func(method, ip string) int {
		req := httptest.NewRequest(method, "/api/convert", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("POST", "10.0.0.1"); code != 200 {
			t.Fatalf("request %d: %d", i, code)
		}
	}
	if code := do("POST", "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("third request: %d, want 429", code)
	}
	if code := do("POST", "10.0.0.2"); code != 200 {
		t.Fatalf("other ip: %d", code)
	}
	if code := do("GET", "10.0.0.1"); code != 200 {
		t.Fatalf("GET limited: %d", code)
	}

	now = now.Add(2 * time.Minute)
	rl.gc()
	if code := do("POST", "10.0.0.1"); code != 200 {
		t.Fatalf("after window: %d", code)
	}
}

func TestExtractIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	if ip := ExtractIP(req); ip != "192.0.2.7" {
		t.Errorf("RemoteAddr ip = %q", ip)
	}
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	if ip := ExtractIP(req); ip != "203.0.113.9" {
		t.Errorf("XFF ip = %q", ip)
	}
}

func TestDrain(t *testing.T) {
	d := NewDrain(nil, "/health")
	h := d.Middleware(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/convert", nil))
	if w.Code != 200 {
		t.Fatalf("inactive drain blocked: %d", w.Code)
	}

	d.Start()
	d.Start()
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/convert", nil))
	if w.Code != http.StatusServiceUnavailable || w.Header().Get("Retry-After") == "" {
		t.Fatalf("draining: %d", w.Code)
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != 200 {
		t.Fatalf("health blocked while draining: %d", w.Code)
	}
}
