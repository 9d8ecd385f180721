package repository

import (
	"context"

	"nexus-auth/backend/internal/session/domain"
)

// Repository defines persistence for online sessions.
type Repository interface {
	// ReplaceForPlatform deletes any entry for (s.UserID, s.LoginPlatform) and
	// inserts s in the same transaction. Returns the token of the deleted
	// entry, or "" when there was none.
	ReplaceForPlatform(ctx context.Context, s *domain.OnlineSession) (displaced string, err error)
	// GetByUserPlatform returns the entry or nil if none exists.
	GetByUserPlatform(ctx context.Context, userID int64, platform int) (*domain.OnlineSession, error)
	// DeleteByToken removes the entry holding token. Returns whether a row was removed.
	DeleteByToken(ctx context.Context, token string) (bool, error)
	DeleteByUserPlatform(ctx context.Context, userID int64, platform int) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*domain.OnlineSession, error)
}
