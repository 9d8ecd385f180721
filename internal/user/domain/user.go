package domain

import (
	"errors"
	"time"
)

// User is the account record consulted by the login strategies.
type User struct {
	ID       int64
	Username string
	Email    string // empty for accounts provisioned by a third-party login
	Nickname string
	Avatar   string
	// PasswordHash is bcrypt, or the legacy salted digest when Salt is set.
	PasswordHash string
	Salt         string
	// OpenID is the stable subject id issued by the third-party identity provider.
	OpenID    string
	Disabled  bool
	LoginType int
	LoginIP   string
	LoginTime *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Email == "" && u.OpenID == "" {
		return errors.New("email or open id is required")
	}
	return nil
}

// LoginMeta is the metadata refreshed on every successful login.
type LoginMeta struct {
	IP        string
	At        time.Time
	LoginType int
	// Nickname and Avatar are overwritten when non-empty (third-party profile refresh).
	Nickname string
	Avatar   string
}
