package shield

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
)

// Drain answers 503 to new requests once shutdown has begun, so a running
// conversion can finish while clients are told to retry elsewhere. Paths
// matching an excluded prefix (health checks) keep working.
type Drain struct {
	active  atomic.Bool
	exclude []string
	logger  *slog.Logger
}

// NewDrain creates an inactive Drain.
func NewDrain(logger *slog.Logger, excludePrefixes ...string) *Drain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Drain{exclude: excludePrefixes, logger: logger}
}

// Start switches draining on. It is idempotent.
func (d *Drain) Start() {
	if d.active.CompareAndSwap(false, true) {
		d.logger.Info("drain: refusing new requests")
	}
}

// Active reports whether draining is on.
func (d *Drain) Active() bool { return d.active.Load() }

// Middleware blocks requests with 503 while draining.
func (d *Drain) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !d.active.Load() {
			next.ServeHTTP(w, r)
			return
		}
		for _, prefix := range d.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "server is shutting down"})
	})
}
