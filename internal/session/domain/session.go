package domain

import "time"

// LoginUser is the session record cached per token. It is a snapshot of the
// user taken at login; role and permission data are not cached here.
type LoginUser struct {
	UserID        int64     `json:"userId"`
	Token         string    `json:"token"`
	Username      string    `json:"username"`
	Nickname      string    `json:"nickname"`
	Email         string    `json:"email,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	LoginIP       string    `json:"loginIp"`
	LoginType     int       `json:"loginType"`
	LoginPlatform int       `json:"loginPlatform"`
	ThirdPartyID  string    `json:"openid,omitempty"`
	LoginTime     time.Time `json:"loginTime"`
}

// OnlineSession is the durable per-platform login record. At most one exists
// per (UserID, LoginPlatform).
type OnlineSession struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"userId"`
	LoginPlatform int       `json:"loginPlatform"`
	LoginToken    string    `json:"-"`
	LoginTime     time.Time `json:"loginTime"`
}
