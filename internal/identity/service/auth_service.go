package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nexus-auth/backend/internal/audit"
	"nexus-auth/backend/internal/identity/domain"
	"nexus-auth/backend/internal/security"
	sessiondomain "nexus-auth/backend/internal/session/domain"
	"nexus-auth/backend/internal/telemetry/metrics"
	userdomain "nexus-auth/backend/internal/user/domain"
)

// LoginMetaWriter updates the login metadata on a user record.
type LoginMetaWriter interface {
	UpdateLoginMeta(ctx context.Context, id int64, meta userdomain.LoginMeta) error
}

// TokenIssuer mints and inspects bearer tokens.
type TokenIssuer interface {
	Issue(userID int64, extra map[string]string, ttl time.Duration) (string, time.Time, error)
	IsExpired(token string) bool
}

// SessionStore is the session cache as seen by the auth service.
type SessionStore interface {
	Put(ctx context.Context, u *sessiondomain.LoginUser) error
	MarkActive(ctx context.Context, token string) error
	IsActive(ctx context.Context, token string) (bool, error)
	Invalidate(ctx context.Context, token string) error
}

// OnlineRecorder maintains the per-platform online entries.
type OnlineRecorder interface {
	Save(ctx context.Context, userID int64, platform int, token string) (*sessiondomain.OnlineSession, error)
	RemoveByToken(ctx context.Context, token string) (bool, error)
}

// Transactor runs fn as one unit of work over the relational store.
// Repository writes made with the ctx passed to fn commit or roll back together.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noTx struct{}

func (noTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// AuthService runs the login strategies and owns the session lifecycle that
// follows: token minting, session record, revocation marker and online entry.
type AuthService struct {
	registry *Registry
	users    LoginMetaWriter
	tokens   TokenIssuer
	sessions SessionStore
	online   OnlineRecorder
	logins   audit.LoginRecorder
	tx       Transactor
	nowF     func() time.Time
}

// NewAuthService returns an AuthService. logins may be nil.
func NewAuthService(
	registry *Registry,
	users LoginMetaWriter,
	tokens TokenIssuer,
	sessions SessionStore,
	online OnlineRecorder,
	logins audit.LoginRecorder,
) *AuthService {
	return &AuthService{
		registry: registry,
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		online:   online,
		logins:   logins,
		tx:       noTx{},
		nowF:     time.Now,
	}
}

// WithTransactor makes each login one unit of work under t: user
// provisioning, login metadata and the online entry commit together, after
// the session record is stored.
func (s *AuthService) WithTransactor(t Transactor) *AuthService {
	if t != nil {
		s.tx = t
	}
	return s
}

// Login dispatches c to its strategy and, on success, opens a session.
// Strategy errors are returned unchanged.
func (s *AuthService) Login(ctx context.Context, c domain.Credentials) (*domain.LoginResult, error) {
	res, err := s.login(ctx, c)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.LoginsTotal.WithLabelValues(c.LoginType.String(), outcome).Inc()
	return res, err
}

func (s *AuthService) login(ctx context.Context, c domain.Credentials) (*domain.LoginResult, error) {
	if !c.LoginPlatform.Valid() {
		return nil, domain.ErrUnknownPlatform
	}
	strategy, err := s.registry.Lookup(c.LoginType)
	if err != nil {
		return nil, err
	}
	var (
		res    *domain.LoginResult
		userID int64
	)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := strategy.Authenticate(ctx, c)
		if err != nil {
			return err
		}
		userID = p.User.ID
		res, err = s.finish(ctx, c, p)
		return err
	})
	if err != nil {
		if res != nil {
			// Commit failed after the session was stored.
			s.discard(ctx, res.Token)
		}
		return nil, err
	}
	if s.logins != nil {
		s.logins.Record(ctx, audit.Entry{
			UserID:        userID,
			LoginType:     int(c.LoginType),
			LoginPlatform: int(c.LoginPlatform),
			IP:            c.IP,
			UserAgent:     c.UserAgent,
		})
	}
	return res, nil
}

// finish is shared by every strategy. Once the token is marked active any
// later failure invalidates it again, so a failed login leaves no session.
func (s *AuthService) finish(ctx context.Context, c domain.Credentials, p *Principal) (*domain.LoginResult, error) {
	u := p.User
	now := s.nowF().UTC()
	meta := userdomain.LoginMeta{
		IP:        c.IP,
		At:        now,
		LoginType: int(c.LoginType),
		Nickname:  p.Nickname,
		Avatar:    p.Avatar,
	}
	if err := s.users.UpdateLoginMeta(ctx, u.ID, meta); err != nil {
		return nil, fmt.Errorf("update login metadata: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(u.ID, nil, 0)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.MarkActive(ctx, token); err != nil {
		return nil, err
	}

	nickname := u.Nickname
	if p.Nickname != "" {
		nickname = p.Nickname
	}
	avatar := u.Avatar
	if p.Avatar != "" {
		avatar = p.Avatar
	}
	record := &sessiondomain.LoginUser{
		UserID:        u.ID,
		Token:         token,
		Username:      u.Username,
		Nickname:      nickname,
		Email:         u.Email,
		Avatar:        avatar,
		LoginIP:       c.IP,
		LoginType:     int(c.LoginType),
		LoginPlatform: int(c.LoginPlatform),
		ThirdPartyID:  u.OpenID,
		LoginTime:     now,
	}
	if err := s.sessions.Put(ctx, record); err != nil {
		s.discard(ctx, token)
		return nil, err
	}
	if _, err := s.online.Save(ctx, u.ID, int(c.LoginPlatform), token); err != nil {
		s.discard(ctx, token)
		return nil, err
	}
	return &domain.LoginResult{
		Token:     token,
		LoginFlag: true,
		LoginType: c.LoginType,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AuthService) discard(ctx context.Context, token string) {
	if err := s.sessions.Invalidate(ctx, token); err != nil {
		slog.Warn("discard half-open session failed", "err", err)
	}
}

// Logout removes every trace of token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	token = security.BearerToken(token)
	if token == "" {
		return nil
	}
	return s.cleanup(ctx, token)
}

// CheckLoginExpired reports whether token is no longer usable: expired,
// undecodable or revoked. An unusable token is cleaned up as on logout.
func (s *AuthService) CheckLoginExpired(ctx context.Context, token string) (bool, error) {
	token = security.BearerToken(token)
	if token == "" {
		return true, nil
	}
	expired := s.tokens.IsExpired(token)
	if !expired {
		active, err := s.sessions.IsActive(ctx, token)
		if err != nil {
			return false, err
		}
		expired = !active
	}
	if expired {
		if err := s.cleanup(ctx, token); err != nil {
			return true, err
		}
	}
	return expired, nil
}

func (s *AuthService) cleanup(ctx context.Context, token string) error {
	errCache := s.sessions.Invalidate(ctx, token)
	_, errOnline := s.online.RemoveByToken(ctx, token)
	return errors.Join(errCache, errOnline)
}
