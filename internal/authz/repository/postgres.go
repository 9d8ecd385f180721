package repository

import (
	"context"
	"database/sql"

	"nexus-auth/backend/internal/authz/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a role/permission repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// RolesForUser returns the enabled roles linked to userID.
func (r *PostgresRepository) RolesForUser(ctx context.Context, userID int64) ([]*domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.label, r.name, r.disabled
		FROM roles r JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND NOT r.disabled`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Label, &role.Name, &role.Disabled); err != nil {
			return nil, err
		}
		out = append(out, &role)
	}
	return out, rows.Err()
}

// PermissionsForRoles returns the distinct permissions linked to any of roleIDs.
func (r *PostgresRepository) PermissionsForRoles(ctx context.Context, roleIDs []int64) ([]*domain.Permission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT p.id, p.perms, p.name
		FROM permissions p JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = ANY($1)`, roleIDs)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

// AllPermissions returns the full permission catalog.
func (r *PostgresRepository) AllPermissions(ctx context.Context) ([]*domain.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, perms, name FROM permissions`)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func scanPermissions(rows *sql.Rows) ([]*domain.Permission, error) {
	defer rows.Close()
	var out []*domain.Permission
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.Perms, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
