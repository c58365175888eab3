package models

import "time"

// SessionRecord is the single authenticated admin session. Exactly one
// record is persisted at a time; a record past ExpiresAt is treated as
// absent, never as partially valid.
type SessionRecord struct {
	AdminID     string    `json:"admin_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Token       string    `json:"token"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (r *SessionRecord) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
