package types

import "errors"

var (
	ErrComposerNotFound   = errors.New("composer not found")
	ErrNoReceiver         = errors.New("no receiver")
	ErrInjectionFailed    = errors.New("injection failed")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrContextInvalidated = errors.New("context invalidated")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrTextTooLong        = errors.New("text too long")
)

// Stable reason strings reported across the messaging boundary.
const (
	ReasonComposerNotFound   = "composer not found"
	ReasonNoReceiver         = "no receiver"
	ReasonInjectionFailed    = "injection failed"
	ReasonUnknownProvider    = "unknown provider"
	ReasonExtensionReloaded  = "extension reloaded"
	ReasonPermissionDenied   = "permission denied"
	ReasonContentScriptError = "content script error"
	ReasonTextTooLong        = "text too long"

	ErrorComposerNotFound   = "Composer not found"
	ErrorUnknownMessageType = "Unknown message type"
	ErrorInjectionFailed    = "no receiver (injection failed)"
)
