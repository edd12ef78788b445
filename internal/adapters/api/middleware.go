package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/poyrazK/dyndns/internal/core/ports"
	"github.com/poyrazK/dyndns/internal/infrastructure/logging"
)

type contextKey string

const CtxIdentity contextKey = "identity"

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// statusRecorder captures the status code for access logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// CorrelationMiddleware attaches a request-scoped logger carrying the caller's
// X-Request-ID, or a fresh one, and logs each request on completion.
func CorrelationMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := logging.WithCorrelationID(r.Context(), base, id)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			logging.FromContext(ctx).Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// IdentityMiddleware resolves the human caller, if any, into the context.
// Provider errors are logged and the request continues anonymously.
func IdentityMiddleware(provider ports.IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := provider.Identify(r)
			if err != nil {
				logging.FromContext(r.Context()).Warn("identity lookup failed", "error", err)
			}
			if id != nil {
				r = r.WithContext(context.WithValue(r.Context(), CtxIdentity, id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity redirects anonymous callers to the login page, passing the
// current path so they return here afterwards.
func RequireIdentity(loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFrom(r.Context()) == nil {
				target := loginURL + "?redirect=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func IdentityFrom(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(CtxIdentity).(*domain.Identity)
	return id
}
