package security

import "time"

const testSecret = "test-secret-do-not-use"

// NewTestTokenProvider returns a TokenProvider with a fixed secret and a 15m TTL.
// For unit tests only. Callers must not use in production.
func NewTestTokenProvider() *TokenProvider {
	p, err := NewTokenProvider([]byte(testSecret), "test-issuer", 15*time.Minute)
	if err != nil {
		panic(err)
	}
	return p
}

// WithClock overrides the provider's time source. For tests only.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	p.nowF = now
	return p
}
