package domain

import (
	"errors"
	"strconv"
	"time"
)

// Login errors. They propagate unchanged to the caller.
var (
	ErrBadCredential      = errors.New("wrong account or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrAccountNotFound    = errors.New("account does not exist")
	ErrExternalAuthFailed = errors.New("third-party authentication failed")
	ErrUnknownLoginType   = errors.New("unknown login type")
	ErrUnknownPlatform    = errors.New("unknown login platform")
)

// LoginType is the discriminant selecting a login strategy.
type LoginType int

const (
	LoginTypeEmail LoginType = 1
	LoginTypeQQ    LoginType = 2
)

func (t LoginType) String() string {
	switch t {
	case LoginTypeEmail:
		return "email"
	case LoginTypeQQ:
		return "qq"
	default:
		return strconv.Itoa(int(t))
	}
}

// Platform is the channel a session belongs to. A user holds at most one
// session per platform.
type Platform int

const (
	PlatformBackDesk Platform = 1
	PlatformFront    Platform = 2
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	return p == PlatformBackDesk || p == PlatformFront
}

// Credentials is what a login request carries. Which fields matter depends on LoginType.
type Credentials struct {
	LoginType        LoginType `json:"loginType"`
	LoginPlatform    Platform  `json:"loginPlatform"`
	Email            string    `json:"email,omitempty"`
	Password         string    `json:"password,omitempty"`
	VerificationCode string    `json:"verificationCode,omitempty"`
	// ThirdPartyCode is the authorization code returned by the identity provider.
	ThirdPartyCode string `json:"code,omitempty"`

	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ExternalIdentity is the profile resolved from a third-party authorization code.
type ExternalIdentity struct {
	ExternalID  string
	DisplayName string
	AvatarURL   string
}

// LoginResult is returned to the caller on success.
type LoginResult struct {
	Token     string    `json:"token"`
	LoginFlag bool      `json:"loginFlag"`
	LoginType LoginType `json:"loginType"`
	ExpiresAt time.Time `json:"expiresAt"`
}
