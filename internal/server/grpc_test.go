package server

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"nexus-auth/backend/internal/authz"
	"nexus-auth/backend/internal/gate"
	"nexus-auth/backend/internal/identity/domain"
	identityservice "nexus-auth/backend/internal/identity/service"
	"nexus-auth/backend/internal/kvstore"
	"nexus-auth/backend/internal/ratelimit"
	"nexus-auth/backend/internal/security"
	sessioncache "nexus-auth/backend/internal/session/cache"
	sessionrepo "nexus-auth/backend/internal/session/repository"
	sessionservice "nexus-auth/backend/internal/session/service"
	userdomain "nexus-auth/backend/internal/user/domain"
	"nexus-auth/backend/internal/verifycode"
)

type passwordStrategy struct{}

func (passwordStrategy) Type() domain.LoginType { return domain.LoginTypeEmail }

func (passwordStrategy) Authenticate(ctx context.Context, c domain.Credentials) (*identityservice.Principal, error) {
	if c.Email != "alice@example.com" || c.Password != "secret" {
		return nil, domain.ErrBadCredential
	}
	return &identityservice.Principal{User: &userdomain.User{ID: 7, Username: "alice", Email: c.Email}}, nil
}

type noopMeta struct{}

func (noopMeta) UpdateLoginMeta(ctx context.Context, id int64, meta userdomain.LoginMeta) error {
	return nil
}

type staticResolver struct{}

func (staticResolver) Resolve(ctx context.Context, userID int64) (*authz.Authorization, error) {
	return &authz.Authorization{
		UserID:      userID,
		Roles:       map[string]struct{}{"user": {}},
		Permissions: map[string]struct{}{"system:online:list": {}},
	}, nil
}

type recordingIssuer struct {
	sent []string
}

func (r *recordingIssuer) Issue(ctx context.Context, p verifycode.Purpose, email string) error {
	r.sent = append(r.sent, email)
	return nil
}

func startServer(t *testing.T, loginCount int64) *grpc.ClientConn {
	t.Helper()
	store := kvstore.NewMemoryStore()
	tokens := security.NewTestTokenProvider()
	cache := sessioncache.New(store, tokens)
	online := sessionservice.NewOnlineService(sessionrepo.NewMemoryRepository(), cache)
	registry, err := identityservice.NewRegistry(passwordStrategy{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	auth := identityservice.NewAuthService(registry, noopMeta{}, tokens, cache, online, nil)

	policies := RegisterPolicies(gate.NewPolicies(),
		ratelimit.Policy{Count: loginCount, Period: time.Minute},
		ratelimit.Policy{Type: ratelimit.LimitIP, Count: 1, Period: time.Minute},
	)
	g := gate.New(gate.Config{
		Policies: policies,
		Sessions: cache,
		Online:   online,
		Resolver: staticResolver{},
		Limiter:  ratelimit.NewLimiter(store),
	})

	srv := NewGRPCServer(g, nil)
	RegisterServices(srv, Deps{
		Auth:     auth,
		Codes:    &recordingIssuer{},
		Resolver: staticResolver{},
		Health:   health.NewServer(),
	})
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///"+lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func invoke(ctx context.Context, conn *grpc.ClientConn, method string, in, out any) error {
	return conn.Invoke(ctx, method, in, out, grpc.CallContentSubtype(JSONCodecName))
}

func withToken(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func login(t *testing.T, conn *grpc.ClientConn) string {
	t.Helper()
	var res domain.LoginResult
	err := invoke(context.Background(), conn, MethodLogin, &domain.Credentials{
		LoginType:     domain.LoginTypeEmail,
		LoginPlatform: domain.PlatformFront,
		Email:         "alice@example.com",
		Password:      "secret",
	}, &res)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" || !res.LoginFlag {
		t.Fatalf("Login result = %+v, want token and login flag", res)
	}
	return res.Token
}

func TestAuth_LoginThenMe(t *testing.T) {
	conn := startServer(t, 10)
	token := login(t, conn)

	var me MeResponse
	if err := invoke(withToken(token), conn, MethodMe, &Empty{}, &me); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.User == nil || me.User.UserID != 7 || me.User.Username != "alice" {
		t.Errorf("Me user = %+v, want alice (7)", me.User)
	}
	if len(me.Roles) != 1 || me.Roles[0] != "user" {
		t.Errorf("Me roles = %v, want [user]", me.Roles)
	}
	if len(me.Permissions) != 1 || me.Permissions[0] != "system:online:list" {
		t.Errorf("Me permissions = %v", me.Permissions)
	}
}

func TestAuth_MeWithoutToken(t *testing.T) {
	conn := startServer(t, 10)
	var me MeResponse
	err := invoke(context.Background(), conn, MethodMe, &Empty{}, &me)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestAuth_BadPassword(t *testing.T) {
	conn := startServer(t, 10)
	var res domain.LoginResult
	err := invoke(context.Background(), conn, MethodLogin, &domain.Credentials{
		LoginType:     domain.LoginTypeEmail,
		LoginPlatform: domain.PlatformFront,
		Email:         "alice@example.com",
		Password:      "wrong",
	}, &res)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestAuth_UnknownLoginType(t *testing.T) {
	conn := startServer(t, 10)
	var res domain.LoginResult
	err := invoke(context.Background(), conn, MethodLogin, &domain.Credentials{
		LoginType:     domain.LoginTypeQQ,
		LoginPlatform: domain.PlatformFront,
	}, &res)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestAuth_LogoutRevokesToken(t *testing.T) {
	conn := startServer(t, 10)
	token := login(t, conn)

	if err := invoke(withToken(token), conn, MethodLogout, &Empty{}, &Empty{}); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	var me MeResponse
	err := invoke(withToken(token), conn, MethodMe, &Empty{}, &me)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("Me after logout code = %v, want Unauthenticated", status.Code(err))
	}

	var check CheckExpiredResponse
	if err := invoke(withToken(token), conn, MethodCheckLoginExpired, &Empty{}, &check); err != nil {
		t.Fatalf("CheckLoginExpired: %v", err)
	}
	if !check.Expired {
		t.Error("CheckLoginExpired after logout = false, want true")
	}
}

func TestAuth_CheckLoginExpiredLive(t *testing.T) {
	conn := startServer(t, 10)
	token := login(t, conn)
	var check CheckExpiredResponse
	if err := invoke(withToken(token), conn, MethodCheckLoginExpired, &Empty{}, &check); err != nil {
		t.Fatalf("CheckLoginExpired: %v", err)
	}
	if check.Expired {
		t.Error("CheckLoginExpired = true for a live session")
	}
}

func TestAuth_LoginRateLimited(t *testing.T) {
	conn := startServer(t, 2)
	login(t, conn)
	login(t, conn)
	var res domain.LoginResult
	err := invoke(context.Background(), conn, MethodLogin, &domain.Credentials{}, &res)
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("third login code = %v, want ResourceExhausted", status.Code(err))
	}
}

func TestAuth_SendCode(t *testing.T) {
	conn := startServer(t, 10)
	in := &SendCodeRequest{Email: "alice@example.com", Purpose: verifycode.PurposeLoginFront}
	if err := invoke(context.Background(), conn, MethodSendCode, in, &Empty{}); err != nil {
		t.Fatalf("SendCode: %v", err)
	}
	err := invoke(context.Background(), conn, MethodSendCode, in, &Empty{})
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("second SendCode code = %v, want ResourceExhausted", status.Code(err))
	}
}

func TestHealth_PassesGate(t *testing.T) {
	conn := startServer(t, 10)
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}
}

func TestRegisterPolicies(t *testing.T) {
	p := RegisterPolicies(gate.NewPolicies(), ratelimit.Policy{Count: 5}, ratelimit.Policy{Count: 1})
	tests := []struct {
		op        string
		wantPass  bool
		wantLimit bool
	}{
		{MethodLogin, true, true},
		{MethodSendCode, true, true},
		{MethodLogout, true, false},
		{MethodCheckLoginExpired, true, false},
		{MethodMe, false, false},
		{"/grpc.health.v1.Health/Check", true, false},
	}
	for _, tt := range tests {
		got := p.Lookup(tt.op)
		if got.Pass != tt.wantPass || (got.Limit != nil) != tt.wantLimit {
			t.Errorf("Lookup(%s) = pass %v limit %v, want pass %v limit %v", tt.op, got.Pass, got.Limit != nil, tt.wantPass, tt.wantLimit)
		}
	}
}
