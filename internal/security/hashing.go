package security

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by Verify when the password does not match.
var ErrPasswordMismatch = errors.New("password mismatch")

// legacyIterations is the digest round count used by accounts imported with a salt.
const legacyIterations = 1024

// Hasher hashes and verifies passwords. New hashes are bcrypt; accounts that
// still carry a salt are checked against the iterated salted MD5 digest they
// were created with. Callers must not log or persist plaintext passwords.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to 4–31.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of password suitable for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify checks password against the stored hash. A non-empty salt selects the
// legacy digest. Returns nil on match, ErrPasswordMismatch otherwise.
func (h *Hasher) Verify(hash, salt string, password []byte) error {
	if hash == "" {
		return ErrPasswordMismatch
	}
	if salt != "" {
		want := LegacyDigest(password, salt)
		if subtle.ConstantTimeCompare([]byte(want), []byte(hash)) != 1 {
			return ErrPasswordMismatch
		}
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), password); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// LegacyDigest computes md5(salt || password) re-hashed until 1024 rounds, hex encoded.
func LegacyDigest(password []byte, salt string) string {
	d := md5.New()
	d.Write([]byte(salt))
	d.Write(password)
	sum := d.Sum(nil)
	for i := 1; i < legacyIterations; i++ {
		next := md5.Sum(sum)
		sum = next[:]
	}
	return hex.EncodeToString(sum)
}
