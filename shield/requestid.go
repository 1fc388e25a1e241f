package shield

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/docpdf/horosafe"
	"github.com/hazyhaar/docpdf/idgen"
	"github.com/hazyhaar/docpdf/kit"
)

// RequestID assigns every request an id, echoed in X-Request-ID. A valid
// incoming X-Request-ID is kept. The id goes into the context through
// kit.WithRequestID together with a per-request logger under LoggerKey.
func RequestID(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if len(id) > 64 || horosafe.ValidateIdentifier(id) != nil {
				id = idgen.RequestID()
			}
			w.Header().Set("X-Request-ID", id)

			log := logger.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			ctx := kit.WithRequestID(r.Context(), id)
			ctx = kit.WithTransport(ctx, "http")
			ctx = context.WithValue(ctx, LoggerKey, log)

			start := time.Now()
			next.ServeHTTP(w, r.WithContext(ctx))
			log.Debug("request", "duration", time.Since(start))
		})
	}
}

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
