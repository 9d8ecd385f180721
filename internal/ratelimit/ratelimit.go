// Package ratelimit is the admission controller: a fixed-window counter per
// derived key, kept in the shared store and advanced atomically.
package ratelimit

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"nexus-auth/backend/internal/kvstore"
	"nexus-auth/backend/internal/telemetry/metrics"
)

// ErrRateLimited is returned when the window's counter exceeds the policy count.
var ErrRateLimited = errors.New("too many requests")

const (
	DefaultPeriod = 10 * time.Second
	DefaultCount  = 10

	keyPrefix = "limit:"
)

// LimitType selects how the counter key is derived.
type LimitType int

const (
	// LimitDefault keys on operation, HTTP method and path.
	LimitDefault LimitType = iota
	// LimitCustom keys on Policy.Key; falls back to the default key when blank.
	LimitCustom
	// LimitIP keys on the default key plus the caller IP.
	LimitIP
)

// Policy is the admission policy attached to an operation at registration time.
type Policy struct {
	Type   LimitType
	Key    string
	Prefix string
	Suffix string
	Period time.Duration
	Count  int64
}

// RequestInfo is what the controller needs to know about the request.
type RequestInfo struct {
	Operation string
	Method    string
	Path      string
	IP        string
}

func (p Policy) withDefaults() Policy {
	if p.Period <= 0 {
		p.Period = DefaultPeriod
	}
	if p.Count <= 0 {
		p.Count = DefaultCount
	}
	return p
}

// DeriveKey returns the store key for p and req. The raw key is hashed so
// arbitrary paths and custom keys produce fixed-length store keys.
func DeriveKey(p Policy, req RequestInfo) string {
	def := req.Operation + ":" + strings.ToLower(req.Method) + ":" + req.Path
	var key string
	switch p.Type {
	case LimitCustom:
		key = p.Key
	case LimitIP:
		key = def + ":" + req.IP
	default:
		key = def
	}
	if strings.TrimSpace(key) == "" {
		key = def
	}
	key = p.Prefix + key + p.Suffix
	sum := md5.Sum([]byte(key))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Limiter checks requests against their policy.
type Limiter struct {
	store kvstore.Store
}

// NewLimiter returns a Limiter backed by store.
func NewLimiter(store kvstore.Store) *Limiter {
	return &Limiter{store: store}
}

// Check admits or rejects one request. It returns ErrRateLimited when the
// counter is past the policy count, or a kvstore.ErrUnavailable wrap when the
// store cannot be reached. Rejections are never retried here.
func (l *Limiter) Check(ctx context.Context, p Policy, req RequestInfo) error {
	p = p.withDefaults()
	n, err := l.store.IncrWindow(ctx, DeriveKey(p, req), p.Count, p.Period)
	if err != nil {
		if errors.Is(err, kvstore.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", kvstore.ErrUnavailable, err)
	}
	if n > p.Count {
		metrics.RateLimitRejectedTotal.WithLabelValues(req.Operation).Inc()
		return ErrRateLimited
	}
	return nil
}
