package repository

import (
	"context"
	"database/sql"

	"nexus-auth/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a login log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the login log. The log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, l *domain.LoginLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_logs (id, user_id, login_type, login_platform, login_ip, browser, os, user_agent, login_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.UserID, l.LoginType, l.LoginPlatform, l.LoginIP, l.Browser, l.OS, l.UserAgent, l.LoginTime.UTC(),
	)
	return err
}

// ListByUser returns the user's login logs, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.LoginLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, login_type, login_platform, login_ip, browser, os, user_agent, login_time
		FROM login_logs WHERE user_id = $1
		ORDER BY login_time DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.LoginLog
	for rows.Next() {
		var l domain.LoginLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.LoginType, &l.LoginPlatform, &l.LoginIP,
			&l.Browser, &l.OS, &l.UserAgent, &l.LoginTime); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
