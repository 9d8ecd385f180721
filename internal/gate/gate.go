// Package gate is the per-request access-control decision. Every inbound
// request is evaluated once, in order: preflight, pass-through, credential
// present, no credential. The first state that decides ends the evaluation.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-auth/backend/internal/authz"
	"nexus-auth/backend/internal/ratelimit"
	"nexus-auth/backend/internal/security"
	sessioncache "nexus-auth/backend/internal/session/cache"
	sessiondomain "nexus-auth/backend/internal/session/domain"
	"nexus-auth/backend/internal/telemetry/metrics"
)

// Deny reasons. Token and cache failures all collapse into ErrSessionExpired.
var (
	ErrSessionExpired         = errors.New("token expired")
	ErrInsufficientPermission = errors.New("no permission")
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrBackendUnavailable     = errors.New("backend unavailable")
)

// Application codes carried in deny responses.
const (
	CodeNoPermission       = 50010
	CodeTokenExpired       = 50011
	CodeUnauthenticated    = 401
	CodeTooManyRequests    = 429
	CodeBackendUnavailable = 503
)

// Request is the part of an inbound request the gate looks at.
type Request struct {
	// Method is the HTTP method; OPTIONS is a preflight probe.
	Method string
	// Operation names the target for policy lookup (route pattern or gRPC full method).
	Operation string
	// Path is matched against the allow-list.
	Path string
	// Authorization is the raw credential header value.
	Authorization string
	IP            string
}

// Verdict is the outcome of one evaluation.
type Verdict struct {
	Allowed bool
	// State names the state that decided.
	State string
	// Reason is one of the deny errors; nil when allowed.
	Reason error
	// Status is the HTTP status hint, Code the application code.
	Status int
	Code   int
	// Session and Authorization are set when a credential was accepted.
	Session       *sessiondomain.LoginUser
	Authorization *authz.Authorization
}

// States.
const (
	StatePreflight  = "preflight"
	StatePass       = "pass"
	StateCredential = "credential"
	StateAllowList  = "allow_list"
	StateAnonymous  = "anonymous"
)

// SessionLookup resolves a live session from a token.
type SessionLookup interface {
	Lookup(ctx context.Context, token string) (*sessiondomain.LoginUser, error)
	Invalidate(ctx context.Context, token string) error
}

// OnlineRemover deletes online entries held by a dead token.
type OnlineRemover interface {
	RemoveByToken(ctx context.Context, token string) (bool, error)
}

// AuthorizationResolver expands a user into roles and permissions.
type AuthorizationResolver interface {
	Resolve(ctx context.Context, userID int64) (*authz.Authorization, error)
}

// Admitter is the admission controller.
type Admitter interface {
	Check(ctx context.Context, p ratelimit.Policy, req ratelimit.RequestInfo) error
}

// Config wires a Gate.
type Config struct {
	Policies  *Policies
	AllowList *AllowList
	Sessions  SessionLookup
	Online    OnlineRemover
	Resolver  AuthorizationResolver
	Checker   authz.CapabilityChecker
	Limiter   Admitter
}

// Gate evaluates requests. Safe for concurrent use.
type Gate struct {
	cfg Config
}

// New returns a Gate. Nil Policies, AllowList and Checker get empty or set-based defaults.
func New(cfg Config) *Gate {
	if cfg.Policies == nil {
		cfg.Policies = NewPolicies()
	}
	if cfg.AllowList == nil {
		cfg.AllowList = &AllowList{}
	}
	if cfg.Checker == nil {
		cfg.Checker = authz.SetChecker{}
	}
	return &Gate{cfg: cfg}
}

// Policies returns the policy table the gate consults.
func (g *Gate) Policies() *Policies {
	return g.cfg.Policies
}

// Admit runs the admission controller for operations that carry a limit. It
// returns nil, ratelimit.ErrRateLimited or ErrBackendUnavailable.
func (g *Gate) Admit(ctx context.Context, req Request) error {
	if req.Method == http.MethodOptions || g.cfg.Limiter == nil {
		return nil
	}
	p := g.cfg.Policies.Lookup(req.Operation)
	if p.Limit == nil {
		return nil
	}
	err := g.cfg.Limiter.Check(ctx, *p.Limit, ratelimit.RequestInfo{
		Operation: req.Operation,
		Method:    req.Method,
		Path:      req.Path,
		IP:        req.IP,
	})
	if err == nil || errors.Is(err, ratelimit.ErrRateLimited) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

// Evaluate decides whether req may proceed.
func (g *Gate) Evaluate(ctx context.Context, req Request) Verdict {
	ctx, span := otel.Tracer("nexus-auth/gate").Start(ctx, "gate.Evaluate")
	defer span.End()

	v := g.evaluate(ctx, req)

	result, reason := "allow", v.State
	if !v.Allowed {
		result, reason = "deny", reasonLabel(v.Reason)
		span.SetStatus(codes.Error, v.Reason.Error())
	}
	span.SetAttributes(
		attribute.String("gate.operation", req.Operation),
		attribute.String("gate.state", v.State),
		attribute.String("gate.result", result),
	)
	metrics.GateDecisionsTotal.WithLabelValues(result, reason).Inc()
	return v
}

func (g *Gate) evaluate(ctx context.Context, req Request) Verdict {
	if req.Method == http.MethodOptions {
		return allow(StatePreflight)
	}
	policy := g.cfg.Policies.Lookup(req.Operation)
	if policy.Pass {
		return allow(StatePass)
	}
	if token := security.BearerToken(req.Authorization); token != "" {
		return g.withCredential(ctx, token, policy)
	}
	if g.cfg.AllowList.Match(req.Path) {
		return allow(StateAllowList)
	}
	return deny(StateAnonymous, ErrUnauthenticated)
}

func (g *Gate) withCredential(ctx context.Context, token string, policy OperationPolicy) Verdict {
	sess, err := g.cfg.Sessions.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, sessioncache.ErrSessionNotFound) {
			// Undecodable or foreign-signed tokens were never issued here.
			if !errors.Is(err, security.ErrMalformed) && !errors.Is(err, security.ErrInvalidSignature) {
				g.cleanup(ctx, token)
			}
			return deny(StateCredential, ErrSessionExpired)
		}
		slog.Warn("gate: session lookup failed", "err", err)
		return deny(StateCredential, ErrBackendUnavailable)
	}
	v := allow(StateCredential)
	v.Session = sess
	if policy.Capability == "" {
		return v
	}
	a, err := g.cfg.Resolver.Resolve(ctx, sess.UserID)
	if err != nil {
		slog.Warn("gate: resolve authorization failed", "user_id", sess.UserID, "err", err)
		return deny(StateCredential, ErrBackendUnavailable)
	}
	ok, err := g.cfg.Checker.Allowed(ctx, a, policy.Capability)
	if err != nil {
		slog.Warn("gate: capability check failed", "capability", policy.Capability, "err", err)
		return deny(StateCredential, ErrBackendUnavailable)
	}
	if !ok {
		d := deny(StateCredential, ErrInsufficientPermission)
		d.Session = sess
		d.Authorization = a
		return d
	}
	v.Authorization = a
	return v
}

// cleanup removes what is left of a dead token. Best effort.
func (g *Gate) cleanup(ctx context.Context, token string) {
	if err := g.cfg.Sessions.Invalidate(ctx, token); err != nil {
		slog.Warn("gate: invalidate dead token failed", "err", err)
	}
	if g.cfg.Online == nil {
		return
	}
	if _, err := g.cfg.Online.RemoveByToken(ctx, token); err != nil {
		slog.Warn("gate: remove online entry failed", "err", err)
	}
}

func allow(state string) Verdict {
	return Verdict{Allowed: true, State: state, Status: http.StatusOK, Code: http.StatusOK}
}

func deny(state string, reason error) Verdict {
	v := Verdict{State: state, Reason: reason}
	switch reason {
	case ErrSessionExpired:
		v.Status, v.Code = http.StatusUnauthorized, CodeTokenExpired
	case ErrInsufficientPermission:
		v.Status, v.Code = http.StatusForbidden, CodeNoPermission
	case ErrUnauthenticated:
		v.Status, v.Code = http.StatusUnauthorized, CodeUnauthenticated
	default:
		v.Status, v.Code = http.StatusServiceUnavailable, CodeBackendUnavailable
	}
	return v
}

func reasonLabel(err error) string {
	switch err {
	case ErrSessionExpired:
		return "session_expired"
	case ErrInsufficientPermission:
		return "insufficient_permission"
	case ErrUnauthenticated:
		return "unauthenticated"
	default:
		return "backend_unavailable"
	}
}
