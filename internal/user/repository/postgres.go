package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nexus-auth/backend/internal/db"
	"nexus-auth/backend/internal/user/domain"
)

// ErrRoleNotFound is returned by CreateWithRole when roleLabel does not exist.
var ErrRoleNotFound = errors.New("role not found")

const userColumns = `id, username, email, nickname, avatar, password_hash, salt, open_id,
	disabled, login_type, login_ip, login_time, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByOpenID returns the user linked to the third-party subject openID, or nil if not found.
func (r *PostgresRepository) GetByOpenID(ctx context.Context, openID string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE open_id = $1 LIMIT 1`, openID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	u, err := scanUser(db.Conn(ctx, r.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// Create persists u and sets u.ID.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	return insertUser(ctx, db.Conn(ctx, r.db), u)
}

// CreateWithRole persists u and links it to the role labelled roleLabel
// atomically. It joins the transaction carried by ctx, if any.
func (r *PostgresRepository) CreateWithRole(ctx context.Context, u *domain.User, roleLabel string) error {
	return db.WithTx(ctx, r.db, func(ctx context.Context, q db.Querier) error {
		var roleID int64
		err := q.QueryRowContext(ctx, `SELECT id FROM roles WHERE label = $1 LIMIT 1`, roleLabel).Scan(&roleID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrRoleNotFound, roleLabel)
			}
			return err
		}
		if err := insertUser(ctx, q, u); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, u.ID, roleID)
		return err
	})
}

// UpdateLoginMeta records the login ip, time and method; nickname and avatar only when set.
func (r *PostgresRepository) UpdateLoginMeta(ctx context.Context, id int64, meta domain.LoginMeta) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE users SET
			login_ip = $2,
			login_time = $3,
			login_type = $4,
			nickname = COALESCE(NULLIF($5, ''), nickname),
			avatar = COALESCE(NULLIF($6, ''), avatar),
			updated_at = $3
		WHERE id = $1`,
		id, meta.IP, meta.At.UTC(), meta.LoginType, meta.Nickname, meta.Avatar)
	return err
}

func insertUser(ctx context.Context, q db.Querier, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return q.QueryRowContext(ctx, `
		INSERT INTO users (username, email, nickname, avatar, password_hash, salt, open_id,
			disabled, login_type, login_ip, login_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		u.Username, nullString(u.Email), u.Nickname, u.Avatar, u.PasswordHash, u.Salt, nullString(u.OpenID),
		u.Disabled, u.LoginType, u.LoginIP, nullTime(u.LoginTime), u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		email     sql.NullString
		openID    sql.NullString
		loginTime sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &email, &u.Nickname, &u.Avatar, &u.PasswordHash, &u.Salt, &openID,
		&u.Disabled, &u.LoginType, &u.LoginIP, &loginTime, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Email = email.String
	u.OpenID = openID.String
	if loginTime.Valid {
		t := loginTime.Time
		u.LoginTime = &t
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
