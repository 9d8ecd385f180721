// Package verifycode issues and checks the short-lived email verification
// codes used by password-less login, registration and password reset.
package verifycode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"nexus-auth/backend/internal/kvstore"
)

var (
	// ErrBadVerificationCode is returned when the code is missing, expired or wrong.
	ErrBadVerificationCode = errors.New("verification code invalid")
	// ErrAlreadySent is returned by Issue while a previous code is still live.
	ErrAlreadySent = errors.New("verification code already sent")
	// ErrInvalidEmail is returned by Issue for a malformed address.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrUnknownPurpose is returned for an unregistered purpose code.
	ErrUnknownPurpose = errors.New("unknown verification code purpose")
)

// Purpose identifies what a code may be used for. Each purpose has its own key space.
type Purpose int

const (
	PurposeLoginFront    Purpose = 1
	PurposeLoginBack     Purpose = 2
	PurposeResetPassword Purpose = 3
	PurposeRegister      Purpose = 4
	PurposeBindEmail     Purpose = 5
)

var purposePrefixes = map[Purpose]string{
	PurposeLoginFront:    "login:front:code:",
	PurposeLoginBack:     "login:back:code:",
	PurposeResetPassword: "reset:password:front:code:",
	PurposeRegister:      "register:front:code:",
	PurposeBindEmail:     "binding:email:front:code:",
}

// Key returns the store key holding the code for purpose and email.
func Key(p Purpose, email string) (string, error) {
	prefix, ok := purposePrefixes[p]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownPurpose, p)
	}
	return prefix + strings.TrimSpace(email), nil
}

const (
	codeLength   = 8
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = time.Minute
)

// Generate returns a random code of n characters from an unambiguous alphabet.
func Generate(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}

// Sender delivers a code to its recipient.
type Sender interface {
	Send(ctx context.Context, email string, purpose Purpose, code string) error
}

// Service stores codes in the shared store.
type Service struct {
	store  kvstore.Store
	sender Sender
	ttl    time.Duration
}

// NewService returns a Service. ttl <= 0 uses DefaultTTL.
func NewService(store kvstore.Store, sender Sender, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, sender: sender, ttl: ttl}
}

// Issue generates, stores and sends a code. A live code for the same key is
// not replaced.
func (s *Service) Issue(ctx context.Context, p Purpose, email string) error {
	email = strings.TrimSpace(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	key, err := Key(p, email)
	if err != nil {
		return err
	}
	_, err = s.store.Get(ctx, key)
	if err == nil {
		return ErrAlreadySent
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		return err
	}
	code, err := Generate(codeLength)
	if err != nil {
		return err
	}
	if err := s.store.SetWithTTL(ctx, key, code, s.ttl); err != nil {
		return err
	}
	if err := s.sender.Send(ctx, email, p, code); err != nil {
		_ = s.store.Delete(ctx, key)
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

// Verify compares code with the stored one, ignoring case. The code is not consumed.
func (s *Service) Verify(ctx context.Context, p Purpose, email, code string) error {
	key, err := Key(p, email)
	if err != nil {
		return err
	}
	stored, err := s.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return ErrBadVerificationCode
	}
	if err != nil {
		return err
	}
	if stored == "" || !strings.EqualFold(strings.TrimSpace(code), stored) {
		return ErrBadVerificationCode
	}
	return nil
}

// Consume deletes the stored code if it matches code, ignoring case. Only one
// caller can consume a given code; every other caller, including concurrent
// ones that passed Verify, gets ErrBadVerificationCode.
func (s *Service) Consume(ctx context.Context, p Purpose, email, code string) error {
	key, err := Key(p, email)
	if err != nil {
		return err
	}
	code = normalize(code)
	if code == "" {
		return ErrBadVerificationCode
	}
	ok, err := s.store.CompareAndDelete(ctx, key, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBadVerificationCode
	}
	return nil
}

// normalize maps a submitted code onto the stored form. Generated codes are
// upper case only.
func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
