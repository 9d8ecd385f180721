package repository

import (
	"context"
	"sort"
	"sync"

	"nexus-auth/backend/internal/audit/domain"
)

// MemoryRepository keeps login logs in process. Used in tests.
type MemoryRepository struct {
	mu   sync.Mutex
	logs []*domain.LoginLog
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, l *domain.LoginLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.LoginLog, error) {
	r.mu.Lock()
	var out []*domain.LoginLog
	for _, l := range r.logs {
		if l.UserID == userID {
			cp := *l
			out = append(out, &cp)
		}
	}
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].LoginTime.After(out[j].LoginTime) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
