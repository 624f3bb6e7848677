package models

import "time"

// MFAFailureRecord tracks one failed one-time-code verification attempt.
// Failures are aggregated over a trailing window to decide lockout.
type MFAFailureRecord struct {
	ID        string
	UserID    string
	IPAddress string
	Timestamp time.Time
}

// MFACheckResult is the outcome of an MFA throttle check.
type MFACheckResult struct {
	Allowed    bool
	Failures   int
	RetryAfter *time.Time
}
