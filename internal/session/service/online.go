package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"nexus-auth/backend/internal/session/domain"
	"nexus-auth/backend/internal/session/repository"
)

// ErrNotOnline is returned by Offline when the user has no session on the platform.
var ErrNotOnline = errors.New("user is not online on this platform")

// TokenInvalidator removes a token's cached record and revocation marker.
type TokenInvalidator interface {
	Invalidate(ctx context.Context, token string) error
}

// OnlineService maintains the single-active-session-per-platform records.
type OnlineService struct {
	repo   repository.Repository
	tokens TokenInvalidator
	nowF   func() time.Time
}

// NewOnlineService returns an OnlineService.
func NewOnlineService(repo repository.Repository, tokens TokenInvalidator) *OnlineService {
	return &OnlineService{repo: repo, tokens: tokens, nowF: time.Now}
}

// Save records token as the user's only session on platform, replacing any
// prior entry. The token of the entry the replace removed is invalidated so
// the earlier login on the same platform stops working. When logins race,
// each one displaces exactly the entry it deleted, so only the last writer's
// token stays live.
func (s *OnlineService) Save(ctx context.Context, userID int64, platform int, token string) (*domain.OnlineSession, error) {
	entry := &domain.OnlineSession{
		UserID:        userID,
		LoginPlatform: platform,
		LoginToken:    token,
		LoginTime:     s.nowF().UTC(),
	}
	displaced, err := s.repo.ReplaceForPlatform(ctx, entry)
	if err != nil {
		return nil, err
	}
	if displaced != "" && displaced != token {
		if err := s.tokens.Invalidate(ctx, displaced); err != nil {
			slog.Warn("invalidate replaced session failed", "user_id", userID, "platform", platform, "err", err)
		}
	}
	return entry, nil
}

// Offline forces the user off platform: the token is revoked and evicted, then
// the entry is deleted.
func (s *OnlineService) Offline(ctx context.Context, userID int64, platform int) error {
	entry, err := s.repo.GetByUserPlatform(ctx, userID, platform)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrNotOnline
	}
	if err := s.tokens.Invalidate(ctx, entry.LoginToken); err != nil {
		return err
	}
	_, err = s.repo.DeleteByUserPlatform(ctx, userID, platform)
	return err
}

// RemoveByToken deletes the entry holding token. Returns whether one existed.
func (s *OnlineService) RemoveByToken(ctx context.Context, token string) (bool, error) {
	return s.repo.DeleteByToken(ctx, token)
}

// List returns online entries, most recent first.
func (s *OnlineService) List(ctx context.Context, limit, offset int) ([]*domain.OnlineSession, error) {
	return s.repo.List(ctx, limit, offset)
}

// LivenessChecker reports whether a token still has its revocation marker.
type LivenessChecker interface {
	IsActive(ctx context.Context, token string) (bool, error)
}

// Reconcile deletes entries whose token is no longer live, walking the table
// batch rows at a time. Returns how many entries were removed.
func (s *OnlineService) Reconcile(ctx context.Context, live LivenessChecker, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	removed, offset := 0, 0
	for {
		entries, err := s.repo.List(ctx, batch, offset)
		if err != nil {
			return removed, err
		}
		kept := 0
		for _, e := range entries {
			ok, err := live.IsActive(ctx, e.LoginToken)
			if err != nil {
				return removed, err
			}
			if ok {
				kept++
				continue
			}
			if _, err := s.repo.DeleteByToken(ctx, e.LoginToken); err != nil {
				return removed, err
			}
			removed++
		}
		if len(entries) < batch {
			return removed, nil
		}
		offset += kept
	}
}
