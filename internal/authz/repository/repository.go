package repository

import (
	"context"

	"nexus-auth/backend/internal/authz/domain"
)

// Repository reads roles and permissions.
type Repository interface {
	RolesForUser(ctx context.Context, userID int64) ([]*domain.Role, error)
	PermissionsForRoles(ctx context.Context, roleIDs []int64) ([]*domain.Permission, error)
	AllPermissions(ctx context.Context) ([]*domain.Permission, error)
}
