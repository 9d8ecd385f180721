package service

import (
	"context"
	"fmt"
	"sort"

	"nexus-auth/backend/internal/identity/domain"
	userdomain "nexus-auth/backend/internal/user/domain"
)

// Principal is the account a strategy authenticated, plus any profile data
// the login should refresh on it.
type Principal struct {
	User     *userdomain.User
	Nickname string
	Avatar   string
}

// Strategy verifies one kind of credentials.
type Strategy interface {
	Type() domain.LoginType
	Authenticate(ctx context.Context, c domain.Credentials) (*Principal, error)
}

// Registry dispatches credentials to the strategy registered for their login type.
// It is immutable after construction.
type Registry struct {
	strategies map[domain.LoginType]Strategy
}

// NewRegistry builds a registry. Two strategies with the same login type is an error.
func NewRegistry(strategies ...Strategy) (*Registry, error) {
	m := make(map[domain.LoginType]Strategy, len(strategies))
	for _, s := range strategies {
		if s == nil {
			continue
		}
		t := s.Type()
		if _, dup := m[t]; dup {
			return nil, fmt.Errorf("login strategy %s registered twice", t)
		}
		m[t] = s
	}
	return &Registry{strategies: m}, nil
}

// Lookup returns the strategy for t or ErrUnknownLoginType.
func (r *Registry) Lookup(t domain.LoginType) (Strategy, error) {
	s, ok := r.strategies[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownLoginType, t)
	}
	return s, nil
}

// Types lists the registered login types in ascending order.
func (r *Registry) Types() []domain.LoginType {
	out := make([]domain.LoginType, 0, len(r.strategies))
	for t := range r.strategies {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
