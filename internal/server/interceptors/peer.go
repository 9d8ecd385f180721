package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"nexus-auth/backend/internal/gate"
)

var clientIPKey = contextKey{"client-ip"}

// ClientIPUnary returns a unary server interceptor that resolves the caller's
// address once per RPC. x-forwarded-for and x-real-ip are believed only when
// the transport peer is one of trusted.
func ClientIPUnary(trusted *gate.TrustedProxies) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		return handler(context.WithValue(ctx, clientIPKey, resolveClientIP(ctx, trusted)), req)
	}
}

// ClientIP returns the address resolved by ClientIPUnary, or the transport
// peer when the interceptor did not run. "unknown" when neither is available.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok {
		return ip
	}
	return resolveClientIP(ctx, nil)
}

func resolveClientIP(ctx context.Context, trusted *gate.TrustedProxies) string {
	var remote string
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		remote = p.Addr.String()
	}
	return trusted.ClientIP(remote, firstMetadata(ctx, "x-forwarded-for"), firstMetadata(ctx, "x-real-ip"))
}

// firstMetadata returns the first value of key in the incoming metadata, or "".
func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// UserAgent returns the caller's user-agent metadata, or "".
func UserAgent(ctx context.Context) string {
	return firstMetadata(ctx, "user-agent")
}

// Authorization returns the raw authorization metadata, or "".
func Authorization(ctx context.Context) string {
	return firstMetadata(ctx, "authorization")
}
