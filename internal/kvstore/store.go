// Package kvstore is the shared key-value store used for session records,
// revocation markers, verification codes and admission counters.
package kvstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key or hash field does not exist.
	ErrNotFound = errors.New("kvstore: not found")
	// ErrUnavailable wraps transport failures and timeouts talking to the store.
	ErrUnavailable = errors.New("kvstore: backend unavailable")
)

// Store is a single logical key-value service with atomic per-key operations.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// SetWithTTL stores value and expires the key after ttl.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// CompareAndDelete deletes key only if it holds value, as one atomic step.
	// Reports whether this call deleted it.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)

	HashGet(ctx context.Context, key, field string) (string, error)
	HashPut(ctx context.Context, key, field, value string) error
	HashDelete(ctx context.Context, key string, fields ...string) error
	HashKeys(ctx context.Context, key string) ([]string, error)

	SetMembers(ctx context.Context, key string) ([]string, error)
	SetAdd(ctx context.Context, key string, members ...string) error
	SetRemove(ctx context.Context, key string, members ...string) error
	SetIsMember(ctx context.Context, key, member string) (bool, error)

	// IncrWindow atomically reads the counter at key; if it already exceeds
	// limit the current value is returned unchanged. Otherwise the counter is
	// incremented and, on the first increment, set to expire after window.
	// Returns the resulting count.
	IncrWindow(ctx context.Context, key string, limit int64, window time.Duration) (int64, error)

	Ping(ctx context.Context) error
}
