package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nexus-auth/backend/internal/gate"
	"nexus-auth/backend/internal/ratelimit"
	"nexus-auth/backend/internal/server/interceptors"
)

// Gatekeeper is the access-control gate as seen by the HTTP guard.
type Gatekeeper interface {
	Admit(ctx context.Context, req gate.Request) error
	Evaluate(ctx context.Context, req gate.Request) gate.Verdict
}

// operation names the request for policy lookup: the matched route pattern,
// or the raw path when nothing matches.
func operation(routes chi.Routes, r *http.Request) string {
	rctx := chi.NewRouteContext()
	if routes.Match(rctx, r.Method, r.URL.Path) {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// realIP applies chi's RealIP rewrite only to requests whose transport peer
// is a trusted proxy. Everyone else is identified by RemoteAddr.
func realIP(trusted *gate.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		rewrite := middleware.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if trusted.Trusts(r.RemoteAddr) {
				rewrite.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}

// guard runs admission and then the gate on every request. Preflight probes
// are answered here and never reach a handler.
func guard(g Gatekeeper, routes chi.Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			req := gate.Request{
				Method:        r.Method,
				Operation:     operation(routes, r),
				Path:          r.URL.Path,
				Authorization: r.Header.Get("Authorization"),
				IP:            clientIP(r),
			}
			if err := g.Admit(ctx, req); err != nil {
				if errors.Is(err, ratelimit.ErrRateLimited) {
					fail(w, http.StatusTooManyRequests, gate.CodeTooManyRequests, err.Error())
					return
				}
				fail(w, http.StatusServiceUnavailable, gate.CodeBackendUnavailable, gate.ErrBackendUnavailable.Error())
				return
			}
			v := g.Evaluate(ctx, req)
			if !v.Allowed {
				fail(w, v.Status, v.Code, v.Reason.Error())
				return
			}
			if v.State == gate.StatePreflight {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r.WithContext(interceptors.WithSession(ctx, v.Session, v.Authorization)))
		})
	}
}
