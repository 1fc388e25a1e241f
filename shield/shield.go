// Package shield provides the HTTP middleware docpdf applies to its JSON
// API: security headers, body limits, request ids, rate limiting and a
// draining switch used during shutdown.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(logger, drain, limiter) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"

	"github.com/hazyhaar/docpdf/horosafe"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// APIStack returns the middleware stack for the JSON API, ordered:
// Drain → HeadToGet → SecurityHeaders → MaxJSONBody → RequestID → RateLimiter.
// drain and rl may be nil.
func APIStack(logger *slog.Logger, drain *Drain, rl *RateLimiter) []func(http.Handler) http.Handler {
	var stack []func(http.Handler) http.Handler
	if drain != nil {
		stack = append(stack, drain.Middleware)
	}
	stack = append(stack,
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxJSONBody(horosafe.MaxRequestBody),
		RequestID(logger),
	)
	if rl != nil {
		stack = append(stack, rl.Middleware)
	}
	return stack
}

// HeadToGet lets routes registered with r.Get answer HEAD requests.
// net/http drops the body of HEAD responses.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
