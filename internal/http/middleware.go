package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tamoykinden/Final-project-auto-purch/internal/metrics"
	"github.com/tamoykinden/Final-project-auto-purch/pkg/logger"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderRequestID = "X-Request-ID"

	RoleBuyer    = "buyer"
	RoleSupplier = "supplier"
)

// Identity is the caller as established by the authentication layer in front of the service.
type Identity struct {
	UserID string
	Role   string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// IdentityMiddleware trusts the identity headers set by the upstream gateway.
// Requests without them pass through anonymously.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithIdentity(r.Context(), Identity{UserID: userID, Role: r.Header.Get(HeaderUserRole)})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects anonymous callers with 401 and callers of another role with 403.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identityFromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
				return
			}
			if id.Role != role {
				respondError(w, http.StatusForbidden, "forbidden", "endpoint requires role "+role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware puts the request id generated by chi's RequestID (or sent by the
// client) into the logging context and echoes it back.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = middleware.GetReqID(r.Context())
		}

		ctx := logger.WithRequestID(r.Context(), requestID)
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLogMiddleware records the route pattern, status and latency of every request.
func AccessLogMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			m.ObserveRequest(route, r.Method, status, elapsed)
			logger.FromContext(r.Context()).Debug().
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Dur("elapsed", elapsed).
				Msg("request served")
		})
	}
}
