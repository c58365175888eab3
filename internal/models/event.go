package models

import "time"

// Security event types emitted by the session lifecycle
const (
	EventSessionCreated   = "session_created"
	EventSessionExpired   = "session_expired"
	EventSessionRenewed   = "session_renewed"
	EventSessionRevoked   = "session_revoked"
	EventSessionCorrupted = "session_corrupted"
	EventRemoteInvalid    = "remote_validation_failed"
)

// SecurityEvent is a lightweight audit record, distinct from an alert:
// events trace the session state machine, alerts flag anomalies.
type SecurityEvent struct {
	EventBucket int                    `json:"event_bucket" db:"event_bucket"`
	AdminID     string                 `json:"admin_id" db:"admin_id"`
	Type        string                 `json:"type" db:"type"`
	Timestamp   time.Time              `json:"timestamp" db:"timestamp"`
	Details     map[string]interface{} `json:"details,omitempty" db:"details"`
}
