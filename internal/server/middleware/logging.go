package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	// RequestIDKey is the context key for the request ID.
	RequestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"

	remoteKeysPrefix = "/api/remote/keys/"
)

// RequestID is an HTTP middleware that assigns a UUID v7 to each request
// unless the client already sent an X-Request-ID header. The ID is echoed on
// the response and stored in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from the context. Returns an empty
// string if no request ID is present.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// Logger returns an HTTP middleware that logs every request and stores a
// request-scoped logger, tagged with the request ID, in the context.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			reqLogger := logger.With("request_id", GetRequestID(r.Context()))
			ctx := context.WithValue(r.Context(), loggerKey, reqLogger)
			next.ServeHTTP(ww, r.WithContext(ctx))

			level := slog.LevelInfo
			if ww.status >= 500 {
				level = slog.LevelError
			} else if ww.status >= 400 {
				level = slog.LevelWarn
			}

			// Paths under /api/remote/keys carry secrets.
			path := r.URL.Path
			if strings.HasPrefix(path, remoteKeysPrefix) && len(path) > len(remoteKeysPrefix) {
				path = remoteKeysPrefix + "[redacted]"
			}

			reqLogger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", path,
				"status", ww.status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"bytes", ww.bytes,
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// LoggerFrom returns the request-scoped logger, or slog.Default outside a
// request.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// bytes written.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
