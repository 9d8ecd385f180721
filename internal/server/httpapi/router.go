// Package httpapi is the HTTP surface of the auth service: login, logout,
// verification codes, the caller's profile and online-session administration.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"nexus-auth/backend/internal/audit/domain"
	"nexus-auth/backend/internal/authz"
	"nexus-auth/backend/internal/gate"
	identityservice "nexus-auth/backend/internal/identity/service"
	"nexus-auth/backend/internal/ratelimit"
	sessiondomain "nexus-auth/backend/internal/session/domain"
	"nexus-auth/backend/internal/telemetry/metrics"
	"nexus-auth/backend/internal/verifycode"
)

// Route patterns, used as gate operations.
const (
	RouteLogin        = "/api/auth/login"
	RouteLogout       = "/api/auth/logout"
	RouteCheckExpired = "/api/auth/check-expired"
	RouteSendCode     = "/api/auth/code"
	RouteQQAuthorize  = "/api/auth/qq/authorize"
	RouteMe           = "/api/me"
	RouteMyLogins     = "/api/me/logins"
	RouteOnlineList   = "/api/online-users"
	RouteOffline      = "/api/online-users/{userId}/{platform}"
	RouteMetrics      = "/metrics"
	RouteHealth       = "/healthz"
)

// Capabilities guarding the administration routes.
const (
	CapabilityOnlineList    = "system:online:list"
	CapabilityOnlineOffline = "system:online:offline"
	CapabilityMetrics       = "system:metrics:read"
)

// CodeIssuer sends verification codes.
type CodeIssuer interface {
	Issue(ctx context.Context, p verifycode.Purpose, email string) error
}

// OnlineAdmin lists and kicks online sessions.
type OnlineAdmin interface {
	List(ctx context.Context, limit, offset int) ([]*sessiondomain.OnlineSession, error)
	Offline(ctx context.Context, userID int64, platform int) error
}

// AuthorizationResolver expands a user into roles and permissions.
type AuthorizationResolver interface {
	Resolve(ctx context.Context, userID int64) (*authz.Authorization, error)
}

// LoginHistory lists a user's login records.
type LoginHistory interface {
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.LoginLog, error)
}

// AuthURLBuilder builds the third-party authorization URL.
type AuthURLBuilder interface {
	AuthCodeURL(state string) string
}

// RouterOptions wires the router. Nil collaborators leave their routes unmounted.
type RouterOptions struct {
	Gate     Gatekeeper
	Auth     *identityservice.AuthService
	Codes    CodeIssuer
	Online   OnlineAdmin
	Resolver AuthorizationResolver
	Logins   LoginHistory
	QQ       AuthURLBuilder
	// Health is probed by /healthz; nil always reports healthy.
	Health      func(ctx context.Context) error
	CORSOptions *cors.Options
	// Proxies may set the client address via forwarding headers. Nil trusts none.
	Proxies *gate.TrustedProxies
}

// DefaultCORSOptions reflects any origin with credentials and lets preflight
// requests through to the gate.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool { return true },
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:     []string{"*"},
		AllowCredentials:   true,
		MaxAge:             3600,
		OptionsPassthrough: true,
	}
}

// RegisterPolicies attaches the gate policies of the HTTP routes.
func RegisterPolicies(p *gate.Policies, loginLimit, codeLimit ratelimit.Policy) *gate.Policies {
	return p.
		RegisterGroup("/api/auth/", gate.OperationPolicy{Pass: true}).
		Register(RouteLogin, gate.OperationPolicy{Limit: &loginLimit}).
		Register(RouteSendCode, gate.OperationPolicy{Limit: &codeLimit}).
		Register(RouteMetrics, gate.OperationPolicy{Capability: CapabilityMetrics}).
		Register(RouteHealth, gate.OperationPolicy{Pass: true}).
		Register(RouteOnlineList, gate.OperationPolicy{Capability: CapabilityOnlineList}).
		Register(RouteOffline, gate.OperationPolicy{Capability: CapabilityOnlineOffline})
}

// NewRouter assembles the chi router with the shared middleware, the CORS
// policy, the access guard and the API handlers.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(realIP(opts.Proxies))
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))
	r.Use(guard(opts.Gate, r))

	h := &handlers{opts: opts}
	if opts.Auth != nil {
		r.Post(RouteLogin, h.login)
		r.Post(RouteLogout, h.logout)
		r.Get(RouteCheckExpired, h.checkExpired)
	}
	if opts.Codes != nil {
		r.Post(RouteSendCode, h.sendCode)
	}
	if opts.QQ != nil {
		r.Get(RouteQQAuthorize, h.qqAuthorize)
	}
	r.Get(RouteMe, h.me)
	if opts.Logins != nil {
		r.Get(RouteMyLogins, h.myLogins)
	}
	if opts.Online != nil {
		r.Get(RouteOnlineList, h.listOnline)
		r.Delete(RouteOffline, h.offline)
	}
	r.Handle(RouteMetrics, metrics.Handler())
	r.Get(RouteHealth, h.health)
	return r
}
