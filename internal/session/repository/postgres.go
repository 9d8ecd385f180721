package repository

import (
	"context"
	"database/sql"
	"errors"

	"nexus-auth/backend/internal/db"
	"nexus-auth/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an online session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ReplaceForPlatform enforces one entry per user and platform. It joins the
// transaction carried by ctx, if any.
func (r *PostgresRepository) ReplaceForPlatform(ctx context.Context, s *domain.OnlineSession) (string, error) {
	var displaced string
	err := db.WithTx(ctx, r.db, func(ctx context.Context, q db.Querier) error {
		err := q.QueryRowContext(ctx,
			`DELETE FROM online_users WHERE user_id = $1 AND login_platform = $2 RETURNING login_token`,
			s.UserID, s.LoginPlatform).Scan(&displaced)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return q.QueryRowContext(ctx, `
			INSERT INTO online_users (user_id, login_platform, login_token, login_time)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			s.UserID, s.LoginPlatform, s.LoginToken, s.LoginTime.UTC(),
		).Scan(&s.ID)
	})
	if err != nil {
		return "", err
	}
	return displaced, nil
}

// GetByUserPlatform returns the entry or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserPlatform(ctx context.Context, userID int64, platform int) (*domain.OnlineSession, error) {
	var s domain.OnlineSession
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, user_id, login_platform, login_token, login_time
		FROM online_users WHERE user_id = $1 AND login_platform = $2`,
		userID, platform,
	).Scan(&s.ID, &s.UserID, &s.LoginPlatform, &s.LoginToken, &s.LoginTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM online_users WHERE login_token = $1`, token)
	return affected(res, err)
}

func (r *PostgresRepository) DeleteByUserPlatform(ctx context.Context, userID int64, platform int) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM online_users WHERE user_id = $1 AND login_platform = $2`, userID, platform)
	return affected(res, err)
}

// List returns entries ordered by most recent login first.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*domain.OnlineSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, user_id, login_platform, login_token, login_time
		FROM online_users ORDER BY login_time DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.OnlineSession
	for rows.Next() {
		var s domain.OnlineSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.LoginPlatform, &s.LoginToken, &s.LoginTime); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
