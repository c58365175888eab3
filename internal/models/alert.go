package models

import "time"

// Alert categories tracked by the security monitor
const (
	AlertFailedLogin        = "failed_login"
	AlertSuspiciousActivity = "suspicious_activity"
	AlertRateLimitExceeded  = "rate_limit_exceeded"
	AlertInjectionAttempt   = "injection_attempt"
)

// Alert severities
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SecurityAlert is one observed security-relevant event. Alerts are
// immutable once logged; escalation synthesizes a new alert for the
// same type rather than mutating the original.
type SecurityAlert struct {
	ID              string                 `json:"id" db:"id"`
	EventBucket     int                    `json:"event_bucket" db:"event_bucket"`
	Type            string                 `json:"type" db:"type"`
	Severity        string                 `json:"severity" db:"severity"`
	Message         string                 `json:"message" db:"message"`
	Details         map[string]interface{} `json:"details,omitempty" db:"details"`
	Timestamp       time.Time              `json:"timestamp" db:"timestamp"`
	ClientAddress   string                 `json:"client_address" db:"client_address"`
	ClientSignature string                 `json:"client_signature" db:"client_signature"`
}
