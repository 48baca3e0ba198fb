package model

import "time"

// Credential is an issued API client credential persisted by the store.
type Credential struct {
	ClientID  string         `json:"client_id"`
	Username  string         `json:"username"`
	Password  string         `json:"password"`
	IP        string         `json:"ip,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Expired reports whether the credential is past its expiry at the given time.
func (c Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// Logger is the minimal logging contract required by the session domain.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}
