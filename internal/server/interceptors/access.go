package interceptors

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"nexus-auth/backend/internal/gate"
	"nexus-auth/backend/internal/ratelimit"
)

// Gatekeeper is the access-control gate as seen by the interceptors.
type Gatekeeper interface {
	Admit(ctx context.Context, req gate.Request) error
	Evaluate(ctx context.Context, req gate.Request) gate.Verdict
}

func gateRequest(ctx context.Context, fullMethod string) gate.Request {
	return gate.Request{
		Method:        http.MethodPost,
		Operation:     fullMethod,
		Path:          fullMethod,
		Authorization: Authorization(ctx),
		IP:            ClientIP(ctx),
	}
}

// AdmissionUnary returns a unary server interceptor that applies the
// operation's rate limit before anything else runs.
func AdmissionUnary(g Gatekeeper) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		err := g.Admit(ctx, gateRequest(ctx, info.FullMethod))
		switch {
		case err == nil:
			return handler(ctx, req)
		case errors.Is(err, ratelimit.ErrRateLimited):
			return nil, status.Error(codes.ResourceExhausted, "too many requests")
		default:
			return nil, status.Error(codes.Unavailable, "backend unavailable")
		}
	}
}

// AccessUnary returns a unary server interceptor that runs the gate and puts
// the accepted session into the handler's context.
func AccessUnary(g Gatekeeper) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		v := g.Evaluate(ctx, gateRequest(ctx, info.FullMethod))
		if !v.Allowed {
			return nil, verdictStatus(v)
		}
		return handler(WithSession(ctx, v.Session, v.Authorization), req)
	}
}

func verdictStatus(v gate.Verdict) error {
	switch v.Reason {
	case gate.ErrSessionExpired, gate.ErrUnauthenticated:
		return status.Error(codes.Unauthenticated, v.Reason.Error())
	case gate.ErrInsufficientPermission:
		return status.Error(codes.PermissionDenied, v.Reason.Error())
	default:
		return status.Error(codes.Unavailable, "backend unavailable")
	}
}
