package types

import "time"

// Level grades toasts and diagnostics.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Toast is a transient user-facing notice raised by the panel.
type Toast struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Diagnostic is one entry of the panel's bounded diagnostics log.
type Diagnostic struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	TabID   TabID     `json:"tabId,omitempty"`
	At      time.Time `json:"at"`
}
