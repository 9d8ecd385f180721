package engine

import (
	"context"
	"testing"

	"nexus-auth/backend/internal/authz"
)

func TestOPAChecker_HealthCheck(t *testing.T) {
	ctx := context.Background()
	c, err := NewOPAChecker(ctx, "")
	if err != nil {
		t.Fatalf("NewOPAChecker: %v", err)
	}
	if err := c.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAChecker_DefaultPolicy(t *testing.T) {
	ctx := context.Background()
	c, err := NewOPAChecker(ctx, "")
	if err != nil {
		t.Fatalf("NewOPAChecker: %v", err)
	}
	user := &authz.Authorization{
		Roles:       map[string]struct{}{"user": {}},
		Permissions: map[string]struct{}{"blog:article:add": {}},
	}
	admin := &authz.Authorization{
		Roles:       map[string]struct{}{"admin": {}},
		Permissions: map[string]struct{}{},
	}
	testCases := []struct {
		name       string
		auth       *authz.Authorization
		capability string
		want       bool
	}{
		{"held permission", user, "blog:article:add", true},
		{"missing permission", user, "system:online:offline", false},
		{"login only", user, "", true},
		{"super admin", admin, "system:online:offline", true},
		{"nil authorization", nil, "x", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Allowed(ctx, tc.auth, tc.capability)
			if err != nil {
				t.Fatalf("Allowed: %v", err)
			}
			if got != tc.want {
				t.Errorf("Allowed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOPAChecker_CustomPolicy(t *testing.T) {
	ctx := context.Background()
	// Only the "test" role may do anything.
	policy := `package nexus.authz

default allow := false

allow if {
	"test" in input.roles
}
`
	c, err := NewOPAChecker(ctx, policy)
	if err != nil {
		t.Fatalf("NewOPAChecker: %v", err)
	}
	a := &authz.Authorization{Roles: map[string]struct{}{"test": {}}, Permissions: map[string]struct{}{}}
	if ok, _ := c.Allowed(ctx, a, "anything"); !ok {
		t.Error("test role should be allowed")
	}
	if err := c.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck should fail when the policy denies super admin")
	}
}

func TestNewOPAChecker_InvalidPolicy(t *testing.T) {
	if _, err := NewOPAChecker(context.Background(), "package broken\nallow if {"); err == nil {
		t.Fatal("want compile error")
	}
}
