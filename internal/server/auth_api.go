package server

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"nexus-auth/backend/internal/identity/domain"
	identityservice "nexus-auth/backend/internal/identity/service"
	"nexus-auth/backend/internal/server/interceptors"
	sessiondomain "nexus-auth/backend/internal/session/domain"
	"nexus-auth/backend/internal/verifycode"
)

// AuthServiceName is the fully-qualified gRPC service name.
const AuthServiceName = "nexus.auth.v1.Auth"

// Full method names, used as gate operations.
const (
	MethodLogin             = "/" + AuthServiceName + "/Login"
	MethodLogout            = "/" + AuthServiceName + "/Logout"
	MethodCheckLoginExpired = "/" + AuthServiceName + "/CheckLoginExpired"
	MethodSendCode          = "/" + AuthServiceName + "/SendCode"
	MethodMe                = "/" + AuthServiceName + "/Me"
)

// Empty is the request or response of RPCs that carry nothing.
type Empty struct{}

// CheckExpiredResponse answers CheckLoginExpired.
type CheckExpiredResponse struct {
	Expired bool `json:"expired"`
}

// SendCodeRequest asks for a verification code to be mailed.
type SendCodeRequest struct {
	Email   string             `json:"email"`
	Purpose verifycode.Purpose `json:"purpose"`
}

// MeResponse is the caller's session snapshot and authorization.
type MeResponse struct {
	User        *sessiondomain.LoginUser `json:"user"`
	Roles       []string                 `json:"roles"`
	Permissions []string                 `json:"permissions"`
}

// AuthAPI is the server side of the Auth service.
type AuthAPI interface {
	Login(ctx context.Context, in *domain.Credentials) (*domain.LoginResult, error)
	Logout(ctx context.Context, in *Empty) (*Empty, error)
	CheckLoginExpired(ctx context.Context, in *Empty) (*CheckExpiredResponse, error)
	SendCode(ctx context.Context, in *SendCodeRequest) (*Empty, error)
	Me(ctx context.Context, in *Empty) (*MeResponse, error)
}

// CodeIssuer sends verification codes.
type CodeIssuer interface {
	Issue(ctx context.Context, p verifycode.Purpose, email string) error
}

type authServer struct {
	auth     *identityservice.AuthService
	codes    CodeIssuer
	resolver AuthorizationResolver
}

// NewAuthServer returns the Auth service backed by auth. codes and resolver may be nil;
// the RPCs that need them then return Unimplemented.
func NewAuthServer(auth *identityservice.AuthService, codes CodeIssuer, resolver AuthorizationResolver) AuthAPI {
	return &authServer{auth: auth, codes: codes, resolver: resolver}
}

func (s *authServer) Login(ctx context.Context, in *domain.Credentials) (*domain.LoginResult, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "auth not configured")
	}
	c := *in
	c.IP = interceptors.ClientIP(ctx)
	c.UserAgent = interceptors.UserAgent(ctx)
	res, err := s.auth.Login(ctx, c)
	if err != nil {
		return nil, loginStatus(err)
	}
	return res, nil
}

func (s *authServer) Logout(ctx context.Context, _ *Empty) (*Empty, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "auth not configured")
	}
	if err := s.auth.Logout(ctx, interceptors.Authorization(ctx)); err != nil {
		return nil, status.Error(codes.Unavailable, "logout failed")
	}
	return &Empty{}, nil
}

func (s *authServer) CheckLoginExpired(ctx context.Context, _ *Empty) (*CheckExpiredResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "auth not configured")
	}
	expired, err := s.auth.CheckLoginExpired(ctx, interceptors.Authorization(ctx))
	if err != nil {
		return nil, status.Error(codes.Unavailable, "session store unavailable")
	}
	return &CheckExpiredResponse{Expired: expired}, nil
}

func (s *authServer) SendCode(ctx context.Context, in *SendCodeRequest) (*Empty, error) {
	if s.codes == nil {
		return nil, status.Error(codes.Unimplemented, "verification codes not configured")
	}
	if err := s.codes.Issue(ctx, in.Purpose, in.Email); err != nil {
		return nil, codeStatus(err)
	}
	return &Empty{}, nil
}

func (s *authServer) Me(ctx context.Context, _ *Empty) (*MeResponse, error) {
	sess, ok := interceptors.GetSession(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	resp := &MeResponse{User: sess, Roles: []string{}, Permissions: []string{}}
	a, ok := interceptors.GetAuthorization(ctx)
	if !ok && s.resolver != nil {
		var err error
		if a, err = s.resolver.Resolve(ctx, sess.UserID); err != nil {
			return nil, status.Error(codes.Unavailable, "authorization unavailable")
		}
	}
	if a != nil {
		resp.Roles = a.RoleList()
		resp.Permissions = a.PermissionList()
	}
	return resp, nil
}

func loginStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrBadCredential),
		errors.Is(err, domain.ErrExternalAuthFailed):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrAccountDisabled):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrUnknownLoginType),
		errors.Is(err, domain.ErrUnknownPlatform):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "login failed")
	}
}

func codeStatus(err error) error {
	switch {
	case errors.Is(err, verifycode.ErrAlreadySent):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, verifycode.ErrInvalidEmail),
		errors.Is(err, verifycode.ErrUnknownPurpose):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Unavailable, "send verification code failed")
	}
}

func unaryMethod[Req, Resp any](name string, call func(AuthAPI, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + AuthServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthAPI), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthAPI), ctx, req.(*Req))
			})
		},
	}
}

// AuthServiceDesc describes the Auth service. Messages are JSON encoded.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthAPI)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Login", AuthAPI.Login),
		unaryMethod("Logout", AuthAPI.Logout),
		unaryMethod("CheckLoginExpired", AuthAPI.CheckLoginExpired),
		unaryMethod("SendCode", AuthAPI.SendCode),
		unaryMethod("Me", AuthAPI.Me),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nexus/auth/v1/auth.json",
}
