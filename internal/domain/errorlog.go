package domain

import "time"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Journal entry types written by the system itself.
const (
	EntryHealthCheck     = "health_check"
	EntryRecoveryAttempt = "recovery_attempt"
	EntryRecoveryFailed  = "recovery_failed"
	EntryRecoveryError   = "recovery_error"
	EntryDataFetch       = "data_fetch"
	EntryScoring         = "scoring"
)

// ErrorLogEntry is one record in the error journal.
type ErrorLogEntry struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// StatusLevel classifies the user-visible status line.
type StatusLevel string

const (
	StatusInfo    StatusLevel = "info"
	StatusSuccess StatusLevel = "success"
	StatusWarning StatusLevel = "warning"
	StatusError   StatusLevel = "error"
)

// StatusLine is the latest outcome shown to the user.
type StatusLine struct {
	Message   string      `json:"message"`
	Level     StatusLevel `json:"level"`
	Color     string      `json:"color"`
	Blink     bool        `json:"blink"`
	UpdatedAt time.Time   `json:"updated_at"`
}

var statusColors = map[StatusLevel]string{
	StatusInfo:    "#e6e6e6",
	StatusSuccess: "#4cc9f0",
	StatusWarning: "#fca311",
	StatusError:   "#f72585",
}

// NewStatusLine builds a status line with the styling for its level.
func NewStatusLine(message string, level StatusLevel, at time.Time) StatusLine {
	color, ok := statusColors[level]
	if !ok {
		level = StatusInfo
		color = statusColors[StatusInfo]
	}
	return StatusLine{
		Message:   message,
		Level:     level,
		Color:     color,
		Blink:     level == StatusWarning || level == StatusError,
		UpdatedAt: at,
	}
}
