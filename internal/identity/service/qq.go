package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	authzdomain "nexus-auth/backend/internal/authz/domain"
	"nexus-auth/backend/internal/identity/domain"
	userdomain "nexus-auth/backend/internal/user/domain"
)

// IdentityProvider resolves a third-party authorization code to a profile.
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (*domain.ExternalIdentity, error)
}

// ExternalUserRepo is the user persistence needed by third-party login.
type ExternalUserRepo interface {
	GetByOpenID(ctx context.Context, openID string) (*userdomain.User, error)
	CreateWithRole(ctx context.Context, u *userdomain.User, roleLabel string) error
}

// QQStrategy logs in with a QQ authorization code. Unknown subjects get an
// account provisioned with the default role.
type QQStrategy struct {
	provider IdentityProvider
	users    ExternalUserRepo
	nowF     func() time.Time
}

func NewQQStrategy(provider IdentityProvider, users ExternalUserRepo) *QQStrategy {
	return &QQStrategy{provider: provider, users: users, nowF: time.Now}
}

func (s *QQStrategy) Type() domain.LoginType { return domain.LoginTypeQQ }

func (s *QQStrategy) Authenticate(ctx context.Context, c domain.Credentials) (*Principal, error) {
	code := strings.TrimSpace(c.ThirdPartyCode)
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", domain.ErrExternalAuthFailed)
	}
	ident, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalAuthFailed, err)
	}
	if ident == nil || ident.ExternalID == "" {
		return nil, fmt.Errorf("%w: no subject id", domain.ErrExternalAuthFailed)
	}

	u, err := s.users.GetByOpenID(ctx, ident.ExternalID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		if u.Disabled {
			return nil, domain.ErrAccountDisabled
		}
		return &Principal{User: u, Nickname: ident.DisplayName, Avatar: ident.AvatarURL}, nil
	}

	now := s.nowF().UTC()
	nickname := ident.DisplayName
	u = &userdomain.User{
		Username:  GenerateUsername(UsernamePrefixQQ),
		Nickname:  nickname,
		Avatar:    ident.AvatarURL,
		OpenID:    ident.ExternalID,
		LoginType: int(domain.LoginTypeQQ),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if u.Nickname == "" {
		u.Nickname = u.Username
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.CreateWithRole(ctx, u, authzdomain.RoleUser); err != nil {
		return nil, err
	}
	return &Principal{User: u}, nil
}
