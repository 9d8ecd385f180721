package service

import (
	"context"
	"errors"
	"strings"

	"nexus-auth/backend/internal/identity/domain"
	"nexus-auth/backend/internal/security"
	userdomain "nexus-auth/backend/internal/user/domain"
	"nexus-auth/backend/internal/verifycode"
)

// UserReader is the minimal user lookup needed by the email strategy.
type UserReader interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// CodeChecker checks and consumes email verification codes.
type CodeChecker interface {
	Verify(ctx context.Context, p verifycode.Purpose, email, code string) error
	Consume(ctx context.Context, p verifycode.Purpose, email, code string) error
}

// PasswordVerifier compares a password with a stored hash.
type PasswordVerifier interface {
	Verify(hash, salt string, password []byte) error
}

// EmailStrategy logs in by email with a password, a verification code, or both.
//
// With both, the code is checked first, then the password, and the code is
// consumed only once both passed. With a code alone the code is consumed
// before the account is loaded.
type EmailStrategy struct {
	users  UserReader
	codes  CodeChecker
	hasher PasswordVerifier
}

// NewEmailStrategy returns an EmailStrategy. codes may be nil when code login is not offered.
func NewEmailStrategy(users UserReader, codes CodeChecker, hasher PasswordVerifier) *EmailStrategy {
	return &EmailStrategy{users: users, codes: codes, hasher: hasher}
}

func (s *EmailStrategy) Type() domain.LoginType { return domain.LoginTypeEmail }

func (s *EmailStrategy) Authenticate(ctx context.Context, c domain.Credentials) (*Principal, error) {
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return nil, domain.ErrBadCredential
	}
	hasPassword := c.Password != ""
	hasCode := strings.TrimSpace(c.VerificationCode) != ""
	purpose := codePurpose(c.LoginPlatform)

	switch {
	case hasPassword && !hasCode:
		return s.checkPassword(ctx, email, c.Password)
	case hasCode && !hasPassword:
		if err := s.consumeCode(ctx, purpose, email, c.VerificationCode); err != nil {
			return nil, err
		}
		u, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, domain.ErrAccountNotFound
		}
		if u.Disabled {
			return nil, domain.ErrAccountDisabled
		}
		return &Principal{User: u}, nil
	case hasCode && hasPassword:
		if err := s.checkCode(ctx, purpose, email, c.VerificationCode); err != nil {
			return nil, err
		}
		p, err := s.checkPassword(ctx, email, c.Password)
		if err != nil {
			return nil, err
		}
		if err := s.consumeCode(ctx, purpose, email, c.VerificationCode); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, domain.ErrBadCredential
	}
}

func (s *EmailStrategy) checkCode(ctx context.Context, p verifycode.Purpose, email, code string) error {
	if s.codes == nil {
		return verifycode.ErrBadVerificationCode
	}
	return s.codes.Verify(ctx, p, email, code)
}

// consumeCode is the single point where a code is spent. It fails for every
// caller but the one whose delete succeeded.
func (s *EmailStrategy) consumeCode(ctx context.Context, p verifycode.Purpose, email, code string) error {
	if s.codes == nil {
		return verifycode.ErrBadVerificationCode
	}
	return s.codes.Consume(ctx, p, email, code)
}

func (s *EmailStrategy) checkPassword(ctx context.Context, email, password string) (*Principal, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrAccountNotFound
	}
	if u.Disabled {
		return nil, domain.ErrAccountDisabled
	}
	if u.PasswordHash == "" {
		return nil, domain.ErrBadCredential
	}
	if err := s.hasher.Verify(u.PasswordHash, u.Salt, []byte(password)); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, domain.ErrBadCredential
		}
		return nil, err
	}
	return &Principal{User: u}, nil
}

func codePurpose(p domain.Platform) verifycode.Purpose {
	if p == domain.PlatformBackDesk {
		return verifycode.PurposeLoginBack
	}
	return verifycode.PurposeLoginFront
}
