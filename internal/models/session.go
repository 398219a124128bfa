package models

import "time"

// SessionStatus is the lifecycle state of a background validation.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusScanning   SessionStatus = "scanning"
	SessionStatusValidating SessionStatus = "validating"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusError      SessionStatus = "error"
)

// Done reports whether the status is terminal.
func (s SessionStatus) Done() bool {
	return s == SessionStatusComplete || s == SessionStatusError
}

// ValidationSession tracks one background validation of a directory.
type ValidationSession struct {
	ID               string         `json:"id"`
	Dir              string         `json:"dir"`
	Status           SessionStatus  `json:"status"`
	Files            int            `json:"files,omitempty"`
	ProcessingTimeMs int64          `json:"processingTimeMs,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	Error            string         `json:"error,omitempty"`
	Report           *DatasetReport `json:"report,omitempty"`
}

// NewValidationSession creates a session in pending status.
func NewValidationSession(id, dir string) *ValidationSession {
	return &ValidationSession{
		ID:        id,
		Dir:       dir,
		Status:    SessionStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}
