package models

import (
	"strings"
	"time"
)

// Session represents one authenticated session for a user.
// Sessions are never physically deleted by this service; IsActive flips to
// false on logout, expiry, or bulk invalidation and stays false.
type Session struct {
	SessionID         string
	UserID            string
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	IsActive          bool
}

// Expired reports whether the session has passed its expiry time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// RequestMetadata is the narrow view of an inbound request this core needs.
// The HTTP adapter populates it once; missing fields default to "unknown"
// or empty string, never an error.
type RequestMetadata struct {
	IPAddress      string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	Method         string
	Path           string
}

// SecurityTrigger is a named high-severity event that may force bulk session
// invalidation for a user.
type SecurityTrigger string

const (
	TriggerPasswordChanged    SecurityTrigger = "PASSWORD_CHANGED"
	TriggerAccountLocked      SecurityTrigger = "ACCOUNT_LOCKED"
	TriggerSuspiciousActivity SecurityTrigger = "SUSPICIOUS_ACTIVITY"
	TriggerMFADisabled        SecurityTrigger = "MFA_DISABLED"
	TriggerRoleChanged        SecurityTrigger = "ROLE_CHANGED"
	TriggerAccountCompromised SecurityTrigger = "ACCOUNT_COMPROMISED"

	// TriggerUnrecognized is the explicit result of parsing an unknown
	// trigger name. It never forces invalidation.
	TriggerUnrecognized SecurityTrigger = "UNRECOGNIZED"
)

var invalidatingTriggers = map[SecurityTrigger]struct{}{
	TriggerPasswordChanged:    {},
	TriggerAccountLocked:      {},
	TriggerSuspiciousActivity: {},
	TriggerMFADisabled:        {},
	TriggerRoleChanged:        {},
	TriggerAccountCompromised: {},
}

// ParseSecurityTrigger maps an external trigger name to a known trigger.
// Matching is exact: case variants and unknown strings yield
// TriggerUnrecognized with ok=false. Callers normalize before calling if
// they want case-insensitive behavior.
func ParseSecurityTrigger(name string) (SecurityTrigger, bool) {
	t := SecurityTrigger(strings.TrimSpace(name))
	if _, known := invalidatingTriggers[t]; known {
		return t, true
	}
	return TriggerUnrecognized, false
}

// ForcesInvalidation reports whether the trigger is one of the enumerated
// high-severity events that require logging out every session for the user.
func (t SecurityTrigger) ForcesInvalidation() bool {
	_, ok := invalidatingTriggers[t]
	return ok
}

// SessionMetadata is the session-relevant projection of request metadata:
// client identity plus the derived device fingerprint.
type SessionMetadata struct {
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
}
