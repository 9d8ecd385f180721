package repository

import (
	"context"

	"nexus-auth/backend/internal/user/domain"
)

// Repository defines persistence for users. Lookups return nil, nil when the
// user does not exist.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByOpenID(ctx context.Context, openID string) (*domain.User, error)
	// Create inserts u and assigns the generated ID back onto it.
	Create(ctx context.Context, u *domain.User) error
	// CreateWithRole inserts u and links it to the role with roleLabel in one transaction.
	CreateWithRole(ctx context.Context, u *domain.User, roleLabel string) error
	UpdateLoginMeta(ctx context.Context, id int64, meta domain.LoginMeta) error
}
