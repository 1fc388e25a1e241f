package shield

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig limits requests per client IP within a fixed window.
type RateLimitConfig struct {
	// MaxRequests per window (default: 30).
	MaxRequests int `yaml:"max_requests"`

	// Window length (default: 1m).
	Window time.Duration `yaml:"window"`

	// Methods that are limited (default: POST). Reads are cheap, conversions are not.
	Methods []string `yaml:"methods"`
}

func (c *RateLimitConfig) defaults() {
	if c.MaxRequests <= 0 {
		c.MaxRequests = 30
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if len(c.Methods) == 0 {
		c.Methods = []string{http.MethodPost}
	}
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// RateLimiter provides per-IP fixed-window rate limiting held in memory.
// Expired buckets are collected by StartGC.
type RateLimiter struct {
	cfg     RateLimitConfig
	buckets sync.Map
	logger  *slog.Logger
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(cfg RateLimitConfig, logger *slog.Logger) *RateLimiter {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{cfg: cfg, logger: logger, now: time.Now}
}

// StartGC removes expired buckets every window until done is closed.
func (rl *RateLimiter) StartGC(done <-chan struct{}) {
	tick := time.NewTicker(rl.cfg.Window)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.gc()
			}
		}
	}()
}

func (rl *RateLimiter) gc() {
	now := rl.now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		expired := now.After(b.resetAt)
		b.mu.Unlock()
		if expired {
			rl.buckets.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) allow(ip string) bool {
	now := rl.now()
	val, _ := rl.buckets.LoadOrStore(ip, &bucket{resetAt: now.Add(rl.cfg.Window)})
	b := val.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(rl.cfg.Window)
	}
	b.count++
	return b.count <= rl.cfg.MaxRequests
}

func (rl *RateLimiter) limited(method string) bool {
	for _, m := range rl.cfg.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// Middleware rejects requests over the limit with 429 and a JSON error.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limited(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		ip := ExtractIP(r)
		if rl.allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		rl.logger.Warn("ratelimit: request blocked", "ip", ip, "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Retry-After", retryAfter(rl.cfg.Window))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	})
}

func retryAfter(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
