package server

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"nexus-auth/backend/internal/authz"
	"nexus-auth/backend/internal/gate"
	identityservice "nexus-auth/backend/internal/identity/service"
	"nexus-auth/backend/internal/ratelimit"
	"nexus-auth/backend/internal/server/interceptors"
)

// AuthorizationResolver expands a user into roles and permissions.
type AuthorizationResolver interface {
	Resolve(ctx context.Context, userID int64) (*authz.Authorization, error)
}

// Deps holds the service dependencies for gRPC handlers.
type Deps struct {
	// Auth runs logins. If nil, auth RPCs return Unimplemented.
	Auth *identityservice.AuthService
	// Codes issues verification codes. If nil, SendCode returns Unimplemented.
	Codes CodeIssuer
	// Resolver fills Me when the gate did not resolve authorization.
	Resolver AuthorizationResolver
	// Health backs grpc.health.v1. If nil, the health service is not registered.
	Health *health.Server
}

// NewGRPCServer returns a server that traces every RPC and runs admission
// and the access gate ahead of each unary handler.
func NewGRPCServer(g interceptors.Gatekeeper, trusted *gate.TrustedProxies, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.ClientIPUnary(trusted),
			interceptors.AdmissionUnary(g),
			interceptors.AccessUnary(g),
		),
	}
	return grpc.NewServer(append(base, opts...)...)
}

// RegisterServices registers the Auth service and, when configured, the
// standard health service.
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	s.RegisterService(&AuthServiceDesc, NewAuthServer(deps.Auth, deps.Codes, deps.Resolver))
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
}

// RegisterPolicies attaches the gate policies of the gRPC operations.
// Login and SendCode are public and rate limited. Me needs a session.
func RegisterPolicies(p *gate.Policies, loginLimit, codeLimit ratelimit.Policy) *gate.Policies {
	return p.
		RegisterGroup("/grpc.health.v1.Health/", gate.OperationPolicy{Pass: true}).
		Register(MethodLogin, gate.OperationPolicy{Pass: true, Limit: &loginLimit}).
		Register(MethodSendCode, gate.OperationPolicy{Pass: true, Limit: &codeLimit}).
		Register(MethodLogout, gate.OperationPolicy{Pass: true}).
		Register(MethodCheckLoginExpired, gate.OperationPolicy{Pass: true}).
		Register(MethodMe, gate.OperationPolicy{})
}
