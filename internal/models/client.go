package models

import (
	"strings"
	"time"
)

// ClientCredential represents one subscriber entry inside an inbound's
// settings blob. The panel owns and mutates these; we only read them.
type ClientCredential struct {
	ID         string `json:"id"`
	Password   string `json:"password"`
	Method     string `json:"method,omitempty"`
	Flow       string `json:"flow,omitempty"`
	Email      string `json:"email"`
	Enable     bool   `json:"enable"`
	ExpiryTime int64  `json:"expiryTime"` // epoch ms, 0 = never
	SubID      string `json:"subId"`
	TotalGB    int64  `json:"totalGB"`
	LimitIP    int    `json:"limitIp"`
	TgID       string `json:"tgId"`
}

// MatchesIdentity reports whether the credential belongs to the given
// subscriber handle. Identities compare case-insensitively.
func (c *ClientCredential) MatchesIdentity(identity string) bool {
	return strings.EqualFold(strings.TrimSpace(c.Email), strings.TrimSpace(identity))
}

// IsExpired reports whether the credential expired before now.
// A zero expiry time means the credential never expires.
func (c *ClientCredential) IsExpired(now time.Time) bool {
	if c.ExpiryTime == 0 {
		return false
	}
	return c.ExpiryTime <= now.UnixMilli()
}
