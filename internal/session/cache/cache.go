// Package cache is the two-tier session cache: a process-local map in front of
// a distributed hash in the shared store, plus the revocation-marker set.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"nexus-auth/backend/internal/kvstore"
	"nexus-auth/backend/internal/security"
	"nexus-auth/backend/internal/session/domain"
	"nexus-auth/backend/internal/telemetry/metrics"
)

const (
	// HashKey is the distributed hash mapping token to a JSON LoginUser.
	HashKey = "login:helper:hash"
	// ActiveSetKey is the set of tokens that have not been logged out.
	ActiveSetKey = "login:token:set:"
)

// ErrSessionNotFound is returned by Lookup when the token does not verify or
// has been revoked.
var ErrSessionNotFound = errors.New("session not found")

// TokenVerifier is the subset of the token codec used by the cache.
type TokenVerifier interface {
	Verify(token string) (*security.Claims, error)
	IsExpired(token string) bool
}

// Cache maps token to session record. The distributed hash is authoritative;
// local entries exist only after a successful distributed write or read.
type Cache struct {
	store  kvstore.Store
	tokens TokenVerifier

	mu    sync.RWMutex
	local map[string]*domain.LoginUser
	// gen changes on every eviction so an in-flight load cannot resurrect an
	// entry that was removed while it was reading.
	gen uint64

	loads singleflight.Group
}

// New returns a Cache over store.
func New(store kvstore.Store, tokens TokenVerifier) *Cache {
	return &Cache{
		store:  store,
		tokens: tokens,
		local:  make(map[string]*domain.LoginUser),
	}
}

// Get returns the session record for token, or nil if neither tier has it.
// Concurrent misses for the same token share one distributed read.
func (c *Cache) Get(ctx context.Context, token string) (*domain.LoginUser, error) {
	if u := c.localGet(token); u != nil {
		return u, nil
	}
	v, err, _ := c.loads.Do(token, func() (interface{}, error) {
		if u := c.localGet(token); u != nil {
			return u, nil
		}
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		raw, err := c.store.HashGet(ctx, HashKey, token)
		if errors.Is(err, kvstore.ErrNotFound) {
			return (*domain.LoginUser)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		var u domain.LoginUser
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("decode session record: %w", err)
		}
		c.mu.Lock()
		if c.gen == gen {
			c.local[token] = &u
		}
		c.mu.Unlock()
		return &u, nil
	})
	if err != nil {
		return nil, err
	}
	u := v.(*domain.LoginUser)
	if u == nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (c *Cache) localGet(token string) *domain.LoginUser {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.local[token]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

// Put writes the record to the distributed hash, then to the local map.
// Last writer wins.
func (c *Cache) Put(ctx context.Context, u *domain.LoginUser) error {
	if u == nil || u.Token == "" {
		return errors.New("session record has no token")
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := c.store.HashPut(ctx, HashKey, u.Token, string(raw)); err != nil {
		return err
	}
	cp := *u
	c.mu.Lock()
	c.local[u.Token] = &cp
	c.mu.Unlock()
	return nil
}

// Remove evicts token from both tiers.
func (c *Cache) Remove(ctx context.Context, token string) error {
	err := c.store.HashDelete(ctx, HashKey, token)
	c.evictLocal(token)
	return err
}

func (c *Cache) evictLocal(tokens ...string) {
	c.mu.Lock()
	for _, t := range tokens {
		delete(c.local, t)
	}
	c.gen++
	c.mu.Unlock()
	for _, t := range tokens {
		c.loads.Forget(t)
	}
}

// RemoveExpired evicts every cached or marked token the codec reports as
// expired and returns how many were evicted.
func (c *Cache) RemoveExpired(ctx context.Context) (int, error) {
	hashed, err := c.store.HashKeys(ctx, HashKey)
	if err != nil {
		return 0, err
	}
	active, err := c.store.SetMembers(ctx, ActiveSetKey)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(hashed)+len(active))
	var expired []string
	for _, list := range [][]string{hashed, active} {
		for _, t := range list {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			if c.tokens.IsExpired(t) {
				expired = append(expired, t)
			}
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err := c.store.HashDelete(ctx, HashKey, expired...); err != nil {
		return 0, err
	}
	if err := c.store.SetRemove(ctx, ActiveSetKey, expired...); err != nil {
		return 0, err
	}
	c.evictLocal(expired...)
	return len(expired), nil
}

// MarkActive adds token to the revocation-marker set.
func (c *Cache) MarkActive(ctx context.Context, token string) error {
	return c.store.SetAdd(ctx, ActiveSetKey, token)
}

// Revoke removes token from the revocation-marker set. The token may still
// verify but is no longer usable.
func (c *Cache) Revoke(ctx context.Context, token string) error {
	return c.store.SetRemove(ctx, ActiveSetKey, token)
}

// IsActive reports whether token is in the revocation-marker set.
func (c *Cache) IsActive(ctx context.Context, token string) (bool, error) {
	return c.store.SetIsMember(ctx, ActiveSetKey, token)
}

// Lookup is the liveness check used on every authenticated request: the token
// must verify and be marked active. The record falls back to the claims when
// the hash entry is gone. Store failures are returned as-is.
func (c *Cache) Lookup(ctx context.Context, token string) (*domain.LoginUser, error) {
	claims, err := c.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionNotFound, err)
	}
	ok, err := c.IsActive(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: revoked", ErrSessionNotFound)
	}
	u, err := c.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if u == nil {
		u = &domain.LoginUser{UserID: claims.UserID, Token: token}
	}
	return u, nil
}

// Invalidate drops every trace of token: record, marker and local entry.
func (c *Cache) Invalidate(ctx context.Context, token string) error {
	errRemove := c.Remove(ctx, token)
	errRevoke := c.Revoke(ctx, token)
	return errors.Join(errRemove, errRevoke)
}

// RunSweeper calls RemoveExpired every interval until ctx is done.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.RemoveExpired(ctx)
			if err != nil {
				slog.Warn("session sweep failed", "err", err)
				continue
			}
			if n > 0 {
				metrics.SessionsSweptTotal.Add(float64(n))
				slog.Info("session sweep", "evicted", n)
			}
		}
	}
}
