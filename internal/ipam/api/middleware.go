package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/errors"
	applogger "github.com/MikeAA97/IPAM-Prefix-Allocator/internal/shared/logger"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const loggerKey contextKey = "logger"

// Middleware wraps an http.Handler and returns a new http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// RequestID mints a request ID and injects a request-scoped logger. The ID is
// always server-generated; client-supplied X-Request-Id headers are ignored
// so IDs stay unique and trustworthy in the audit trail.
func RequestID(baseLogger *applogger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.New().String()

			w.Header().Set("X-Request-Id", requestID)

			reqLogger := baseLogger.With("request_id", requestID)

			ctx := applogger.WithRequestID(r.Context(), requestID)
			ctx = context.WithValue(ctx, loggerKey, reqLogger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return applogger.GetRequestID(ctx)
}

// GetLogger retrieves the request-scoped logger from the context.
func GetLogger(ctx context.Context) *applogger.Logger {
	if logger, ok := ctx.Value(loggerKey).(*applogger.Logger); ok {
		return logger
	}
	return applogger.NewDevelopment("fallback")
}

// Logging logs HTTP requests and responses.
func Logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := GetLogger(r.Context())

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.HTTPRequest(
				r.Context(),
				r.Method,
				r.URL.Path,
				wrapped.statusCode,
				time.Since(start),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	written      bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.ResponseWriter.WriteHeader(code)
		rw.written = true
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// CORS adds CORS headers to responses.
func CORS(allowedOrigins []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if allowedOrigin == "*" || allowedOrigin == origin {
					allowed = true
					break
				}
			}

			if allowed {
				if origin != "" {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				} else if len(allowedOrigins) > 0 && allowedOrigins[0] == "*" {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
				w.Header().Set("Access-Control-Expose-Headers", "X-Request-Id")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// APIKey enforces the X-API-Key header on every route except the health
// probes. An empty configured key disables authentication.
func APIKey(key string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" || strings.HasPrefix(r.URL.Path, "/healthz") || strings.HasPrefix(r.URL.Path, "/readyz") {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				WriteErrorResponse(w, r, apperrors.NewAPIError(
					apperrors.ErrCodeUnauthorized, "invalid or missing API key", nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Recovery recovers from panics and returns a 500 error.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := GetLogger(r.Context())

			defer func() {
				if err := recover(); err != nil {
					panicErr := apperrors.NewSystemError(
						apperrors.ErrCodeInternal,
						"panic recovered",
						false,
						fmt.Errorf("%v", err),
					).WithMetadata("path", r.URL.Path).
						WithMetadata("method", r.Method)

					logger.ErrorCtx(r.Context(), "panic recovered", panicErr)

					WriteErrorResponse(w, r, panicErr)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
