package repository

import (
	"context"

	"nexus-auth/backend/internal/audit/domain"
)

// Repository defines persistence for login logs.
type Repository interface {
	Create(ctx context.Context, l *domain.LoginLog) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.LoginLog, error)
}
