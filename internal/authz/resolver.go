// Package authz expands a user into effective roles and permissions and
// answers capability checks against them.
package authz

import (
	"context"
	"sort"
	"strings"

	"nexus-auth/backend/internal/authz/domain"
	"nexus-auth/backend/internal/authz/repository"
)

// Authorization is the effective role and permission set for one subject.
// It is computed per check and never cached.
type Authorization struct {
	UserID      int64
	Roles       map[string]struct{}
	Permissions map[string]struct{}
}

// HasRole reports whether label is among the subject's roles.
func (a *Authorization) HasRole(label string) bool {
	_, ok := a.Roles[label]
	return ok
}

// Has reports whether capability is granted. The empty capability is always granted.
func (a *Authorization) Has(capability string) bool {
	if capability == "" {
		return true
	}
	_, ok := a.Permissions[capability]
	return ok
}

// RoleList returns role labels sorted.
func (a *Authorization) RoleList() []string {
	return sortedKeys(a.Roles)
}

// PermissionList returns permission identifiers sorted.
func (a *Authorization) PermissionList() []string {
	return sortedKeys(a.Permissions)
}

// Resolver loads authorization data from the role/permission repository.
type Resolver struct {
	repo repository.Repository
}

// NewResolver returns a Resolver.
func NewResolver(repo repository.Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the subject's roles and permissions. Holding the super-admin
// role grants the whole permission catalog. No roles yields empty sets.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (*Authorization, error) {
	out := &Authorization{
		UserID:      userID,
		Roles:       make(map[string]struct{}),
		Permissions: make(map[string]struct{}),
	}
	roles, err := r.repo.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return out, nil
	}
	roleIDs := make([]int64, 0, len(roles))
	for _, role := range roles {
		if strings.TrimSpace(role.Label) != "" {
			out.Roles[role.Label] = struct{}{}
		}
		roleIDs = append(roleIDs, role.ID)
	}

	var perms []*domain.Permission
	if out.HasRole(domain.RoleSuperAdmin) {
		perms, err = r.repo.AllPermissions(ctx)
	} else {
		perms, err = r.repo.PermissionsForRoles(ctx, roleIDs)
	}
	if err != nil {
		return nil, err
	}
	for _, p := range perms {
		if strings.TrimSpace(p.Perms) != "" {
			out.Permissions[p.Perms] = struct{}{}
		}
	}
	return out, nil
}

// CapabilityChecker decides whether an authorization satisfies a required capability.
type CapabilityChecker interface {
	Allowed(ctx context.Context, a *Authorization, capability string) (bool, error)
}

// SetChecker grants a capability by plain set membership.
type SetChecker struct{}

// Allowed implements CapabilityChecker.
func (SetChecker) Allowed(_ context.Context, a *Authorization, capability string) (bool, error) {
	return a.Has(capability), nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
