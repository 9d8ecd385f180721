package verifycode

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nexus-auth/backend/internal/kvstore"
)

type captureSender struct {
	codes map[string]string
	err   error
}

func (c *captureSender) Send(ctx context.Context, email string, purpose Purpose, code string) error {
	if c.err != nil {
		return c.err
	}
	if c.codes == nil {
		c.codes = make(map[string]string)
	}
	c.codes[email] = code
	return nil
}

func TestKey(t *testing.T) {
	testCases := []struct {
		purpose Purpose
		want    string
	}{
		{PurposeLoginFront, "login:front:code:a@b.com"},
		{PurposeLoginBack, "login:back:code:a@b.com"},
		{PurposeResetPassword, "reset:password:front:code:a@b.com"},
		{PurposeRegister, "register:front:code:a@b.com"},
		{PurposeBindEmail, "binding:email:front:code:a@b.com"},
	}
	for _, tc := range testCases {
		got, err := Key(tc.purpose, "  a@b.com ")
		if err != nil {
			t.Fatalf("Key(%d): %v", tc.purpose, err)
		}
		if got != tc.want {
			t.Errorf("Key(%d) = %q, want %q", tc.purpose, got, tc.want)
		}
	}
	if _, err := Key(9, "a@b.com"); !errors.Is(err, ErrUnknownPurpose) {
		t.Errorf("Key(9): want ErrUnknownPurpose, got %v", err)
	}
}

func TestGenerate(t *testing.T) {
	code, err := Generate(8)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(code) != 8 {
		t.Fatalf("len = %d, want 8", len(code))
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Errorf("unexpected character %q", r)
		}
	}
}

func TestService_VerifyIsCaseInsensitiveAndConsumable(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	svc := NewService(store, &captureSender{}, 0)
	key, _ := Key(PurposeLoginFront, "a@b.com")
	if err := store.SetWithTTL(ctx, key, "12AB34", DefaultTTL); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}

	if err := svc.Verify(ctx, PurposeLoginFront, "a@b.com", "12ab34"); err != nil {
		t.Fatalf("Verify lower-case: %v", err)
	}
	if err := svc.Verify(ctx, PurposeLoginFront, "a@b.com", "99ZZ99"); !errors.Is(err, ErrBadVerificationCode) {
		t.Errorf("Verify wrong code: want ErrBadVerificationCode, got %v", err)
	}
	if err := svc.Consume(ctx, PurposeLoginFront, "a@b.com", "99ZZ99"); !errors.Is(err, ErrBadVerificationCode) {
		t.Fatalf("Consume wrong code: want ErrBadVerificationCode, got %v", err)
	}
	if err := svc.Consume(ctx, PurposeLoginFront, "a@b.com", " 12ab34 "); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if err := svc.Consume(ctx, PurposeLoginFront, "a@b.com", "12ab34"); !errors.Is(err, ErrBadVerificationCode) {
		t.Errorf("second Consume: want ErrBadVerificationCode, got %v", err)
	}
	if err := svc.Verify(ctx, PurposeLoginFront, "a@b.com", "12ab34"); !errors.Is(err, ErrBadVerificationCode) {
		t.Errorf("Verify after Consume: want ErrBadVerificationCode, got %v", err)
	}
}

func TestService_Issue(t *testing.T) {
	ctx := context.Background()
	sender := &captureSender{}
	svc := NewService(kvstore.NewMemoryStore(), sender, 0)

	if err := svc.Issue(ctx, PurposeLoginBack, "a@b.com"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	code := sender.codes["a@b.com"]
	if len(code) != 8 {
		t.Fatalf("sent code = %q", code)
	}
	if err := svc.Verify(ctx, PurposeLoginBack, "a@b.com", strings.ToLower(code)); err != nil {
		t.Errorf("Verify issued code: %v", err)
	}
	if err := svc.Issue(ctx, PurposeLoginBack, "a@b.com"); !errors.Is(err, ErrAlreadySent) {
		t.Errorf("second Issue: want ErrAlreadySent, got %v", err)
	}
	// Codes are scoped to their purpose.
	if err := svc.Verify(ctx, PurposeLoginFront, "a@b.com", code); !errors.Is(err, ErrBadVerificationCode) {
		t.Errorf("Verify other purpose: want ErrBadVerificationCode, got %v", err)
	}
}

func TestService_IssueInvalidEmail(t *testing.T) {
	svc := NewService(kvstore.NewMemoryStore(), &captureSender{}, 0)
	for _, email := range []string{"", "not-an-email", "Name <a@b.com>"} {
		if err := svc.Issue(context.Background(), PurposeLoginFront, email); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("Issue(%q): want ErrInvalidEmail, got %v", email, err)
		}
	}
}

func TestService_IssueSendFailureReleasesKey(t *testing.T) {
	ctx := context.Background()
	sender := &captureSender{err: errors.New("relay down")}
	svc := NewService(kvstore.NewMemoryStore(), sender, 0)
	if err := svc.Issue(ctx, PurposeRegister, "a@b.com"); err == nil {
		t.Fatal("want send error")
	}
	sender.err = nil
	if err := svc.Issue(ctx, PurposeRegister, "a@b.com"); err != nil {
		t.Errorf("Issue after failed send: %v", err)
	}
}

func TestService_ConsumeOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	svc := NewService(store, &captureSender{}, 0)
	key, _ := Key(PurposeLoginFront, "a@b.com")
	if err := store.SetWithTTL(ctx, key, "12AB34", DefaultTTL); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}

	const callers = 8
	errs := make(chan error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		go func() {
			<-start
			if err := svc.Verify(ctx, PurposeLoginFront, "a@b.com", "12ab34"); err != nil {
				errs <- err
				return
			}
			errs <- svc.Consume(ctx, PurposeLoginFront, "a@b.com", "12ab34")
		}()
	}
	close(start)
	accepted := 0
	for i := 0; i < callers; i++ {
		err := <-errs
		switch {
		case err == nil:
			accepted++
		case !errors.Is(err, ErrBadVerificationCode):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Errorf("code accepted %d times, want 1", accepted)
	}
}
