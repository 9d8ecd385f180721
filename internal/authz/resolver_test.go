package authz

import (
	"context"
	"errors"
	"testing"

	"nexus-auth/backend/internal/authz/domain"
)

// memRepo is an in-memory role/permission repository for tests.
type memRepo struct {
	userRoles map[int64][]*domain.Role
	rolePerms map[int64][]*domain.Permission
	catalog   []*domain.Permission
	err       error
	calls     []string
}

func (m *memRepo) RolesForUser(ctx context.Context, userID int64) ([]*domain.Role, error) {
	m.calls = append(m.calls, "roles")
	if m.err != nil {
		return nil, m.err
	}
	return m.userRoles[userID], nil
}

func (m *memRepo) PermissionsForRoles(ctx context.Context, roleIDs []int64) ([]*domain.Permission, error) {
	m.calls = append(m.calls, "perms")
	var out []*domain.Permission
	for _, id := range roleIDs {
		out = append(out, m.rolePerms[id]...)
	}
	return out, nil
}

func (m *memRepo) AllPermissions(ctx context.Context) ([]*domain.Permission, error) {
	m.calls = append(m.calls, "all")
	return m.catalog, nil
}

func newRepo() *memRepo {
	list := &domain.Permission{ID: 1, Perms: "system:online:list"}
	kick := &domain.Permission{ID: 2, Perms: "system:online:offline"}
	post := &domain.Permission{ID: 3, Perms: "blog:article:add"}
	return &memRepo{
		userRoles: map[int64][]*domain.Role{
			1: {{ID: 10, Label: domain.RoleSuperAdmin}},
			2: {{ID: 11, Label: domain.RoleUser}, {ID: 12, Label: domain.RoleTest}},
		},
		rolePerms: map[int64][]*domain.Permission{
			11: {post},
			12: {list, post},
		},
		catalog: []*domain.Permission{list, kick, post, {ID: 4, Perms: ""}},
	}
}

func TestResolver_SuperAdminGetsCatalog(t *testing.T) {
	repo := newRepo()
	a, err := NewResolver(repo).Resolve(context.Background(), 1)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !a.HasRole(domain.RoleSuperAdmin) {
		t.Error("missing admin role")
	}
	want := []string{"blog:article:add", "system:online:list", "system:online:offline"}
	got := a.PermissionList()
	if len(got) != len(want) {
		t.Fatalf("permissions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("permissions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	for _, c := range repo.calls {
		if c == "perms" {
			t.Error("super admin should not load role-permission links")
		}
	}
}

func TestResolver_UnionOfRoles(t *testing.T) {
	a, err := NewResolver(newRepo()).Resolve(context.Background(), 2)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(a.Roles) != 2 {
		t.Errorf("roles = %v", a.RoleList())
	}
	if !a.Has("system:online:list") || !a.Has("blog:article:add") {
		t.Errorf("permissions = %v", a.PermissionList())
	}
	if a.Has("system:online:offline") {
		t.Error("unexpected offline permission")
	}
	if len(a.Permissions) != 2 {
		t.Errorf("duplicate permissions not collapsed: %v", a.PermissionList())
	}
}

func TestResolver_NoRoles(t *testing.T) {
	a, err := NewResolver(newRepo()).Resolve(context.Background(), 99)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(a.Roles) != 0 || len(a.Permissions) != 0 {
		t.Errorf("want empty sets, got roles=%v perms=%v", a.RoleList(), a.PermissionList())
	}
	if !a.Has("") {
		t.Error("empty capability should always be granted")
	}
}

func TestResolver_RepoError(t *testing.T) {
	repo := newRepo()
	repo.err = errors.New("db down")
	if _, err := NewResolver(repo).Resolve(context.Background(), 1); err == nil {
		t.Fatal("want error")
	}
}

func TestSetChecker(t *testing.T) {
	a := &Authorization{Permissions: map[string]struct{}{"x": {}}}
	ok, _ := SetChecker{}.Allowed(context.Background(), a, "x")
	if !ok {
		t.Error("x should be allowed")
	}
	ok, _ = SetChecker{}.Allowed(context.Background(), a, "y")
	if ok {
		t.Error("y should be denied")
	}
}
