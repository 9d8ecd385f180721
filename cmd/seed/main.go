// seed inserts the built-in roles, the permissions the API checks and a
// development admin account. Safe to run repeatedly.
package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	authzdomain "nexus-auth/backend/internal/authz/domain"
	"nexus-auth/backend/internal/config"
	"nexus-auth/backend/internal/db"
	"nexus-auth/backend/internal/security"
	"nexus-auth/backend/internal/server/httpapi"
)

const (
	adminUsername = "admin"
	adminEmail    = "admin@example.com"
	adminPassword = "password123"
)

var roles = []struct{ label, name string }{
	{authzdomain.RoleSuperAdmin, "Administrator"},
	{authzdomain.RoleUser, "User"},
	{authzdomain.RoleTest, "Test"},
}

var permissions = []struct{ perms, name string }{
	{httpapi.CapabilityOnlineList, "List online users"},
	{httpapi.CapabilityOnlineOffline, "Force a user offline"},
	{httpapi.CapabilityMetrics, "Read service metrics"},
}

// grants maps a role label to the permissions it carries. The super admin
// needs none; it passes every capability check.
var grants = map[string][]string{
	authzdomain.RoleTest: {httpapi.CapabilityOnlineList},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatalf("%v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{MaxOpenConns: 2})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(adminPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		log.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	if err := seed(ctx, tx, hash); err != nil {
		log.Fatalf("seed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		log.Fatalf("commit: %v", err)
	}
	log.Printf("seed applied; admin login %s / %s", adminEmail, adminPassword)
}

func seed(ctx context.Context, tx *sql.Tx, passwordHash string) error {
	for _, r := range roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO roles (label, name) VALUES ($1, $2) ON CONFLICT (label) DO NOTHING`,
			r.label, r.name); err != nil {
			return err
		}
	}
	for _, p := range permissions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO permissions (perms, name) VALUES ($1, $2) ON CONFLICT (perms) DO NOTHING`,
			p.perms, p.name); err != nil {
			return err
		}
	}
	for label, perms := range grants {
		for _, perm := range perms {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				SELECT r.id, p.id FROM roles r, permissions p WHERE r.label = $1 AND p.perms = $2
				ON CONFLICT DO NOTHING`, label, perm); err != nil {
				return err
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (username, email, nickname, password_hash)
		VALUES ($1, $2, $3, $4) ON CONFLICT (username) DO NOTHING`,
		adminUsername, adminEmail, "Administrator", passwordHash); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT u.id, r.id FROM users u, roles r WHERE u.username = $1 AND r.label = $2
		ON CONFLICT DO NOTHING`, adminUsername, authzdomain.RoleSuperAdmin)
	return err
}
