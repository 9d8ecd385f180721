package repository

import (
	"context"
	"sort"
	"sync"

	"nexus-auth/backend/internal/session/domain"
)

// MemoryRepository is an in-memory Repository keyed by (user, platform).
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	byKey  map[[2]int64]*domain.OnlineSession
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty in-memory online session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byKey: make(map[[2]int64]*domain.OnlineSession)}
}

func key(userID int64, platform int) [2]int64 {
	return [2]int64{userID, int64(platform)}
}

func (r *MemoryRepository) ReplaceForPlatform(ctx context.Context, s *domain.OnlineSession) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var displaced string
	k := key(s.UserID, s.LoginPlatform)
	if prior, ok := r.byKey[k]; ok {
		displaced = prior.LoginToken
	}
	r.nextID++
	s.ID = r.nextID
	cp := *s
	r.byKey[k] = &cp
	return displaced, nil
}

func (r *MemoryRepository) GetByUserPlatform(ctx context.Context, userID int64, platform int) (*domain.OnlineSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byKey[key(userID, platform)]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.byKey {
		if s.LoginToken == token {
			delete(r.byKey, k)
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) DeleteByUserPlatform(ctx context.Context, userID int64, platform int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(userID, platform)
	_, ok := r.byKey[k]
	delete(r.byKey, k)
	return ok, nil
}

func (r *MemoryRepository) List(ctx context.Context, limit, offset int) ([]*domain.OnlineSession, error) {
	r.mu.Lock()
	all := make([]*domain.OnlineSession, 0, len(r.byKey))
	for _, s := range r.byKey {
		cp := *s
		all = append(all, &cp)
	}
	r.mu.Unlock()
	sort.Slice(all, func(i, j int) bool {
		if all[i].LoginTime.Equal(all[j].LoginTime) {
			return all[i].ID > all[j].ID
		}
		return all[i].LoginTime.After(all[j].LoginTime)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
