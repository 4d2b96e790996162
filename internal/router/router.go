package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hushbox/service-api/internal/account"
	"github.com/hushbox/service-api/internal/mailbox"
	"github.com/hushbox/service-api/internal/session"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts HTTP handlers using the standard library's
// http.ServeMux. The session guard wraps only the owner-scoped /me/
// routes; registration, verification, login and anonymous send are
// public by design.
func RegisterRoutes(logger *zap.SugaredLogger, accounts *account.Handler, messages *mailbox.Handler, sessions *session.Manager) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// public account routes
	mux.HandleFunc("POST /accounts", accounts.Register)
	mux.HandleFunc("GET /accounts/availability", accounts.Availability)
	mux.HandleFunc("POST /accounts/{username}/verify", accounts.Verify)
	mux.HandleFunc("POST /sessions", accounts.Login)

	// anonymous send
	mux.HandleFunc("POST /accounts/{username}/messages", messages.Send)

	// owner-only routes behind the session guard
	mux.Handle("GET /me/acceptance", sessions.Require(http.HandlerFunc(accounts.GetAcceptance)))
	mux.Handle("POST /me/acceptance", sessions.Require(http.HandlerFunc(accounts.SetAcceptance)))
	mux.Handle("GET /me/messages", sessions.Require(http.HandlerFunc(messages.List)))
	mux.Handle("DELETE /me/messages/{id}", sessions.Require(http.HandlerFunc(messages.Delete)))

	// wrap with security headers middleware then logging middleware
	handler := LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
	return handler
}
