package domain

import "time"

// LoginLog records one successful login.
type LoginLog struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"userId"`
	LoginType     int       `json:"loginType"`
	LoginPlatform int       `json:"loginPlatform"`
	LoginIP       string    `json:"loginIp"`
	Browser       string    `json:"browser"`
	OS            string    `json:"os"`
	UserAgent     string    `json:"-"`
	LoginTime     time.Time `json:"loginTime"`
}
