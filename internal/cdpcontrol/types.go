package cdpcontrol

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/twintype/internal/types"
)

const (
	CodeValidation       = "VALIDATION"
	CodeTabNotFound      = "TAB_NOT_FOUND"
	CodeNoReceiver       = "NO_RECEIVER"
	CodeEvalFailure      = "EVAL_FAILURE"
	CodeEvalTimeout      = "EVAL_TIMEOUT"
	CodeCDPUnavailable   = "CDP_UNAVAILABLE"
	CodePermissionDenied = "PERMISSION_DENIED"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// Is maps codes onto the messaging sentinels so callers can use errors.Is
// without knowing about CDP.
func (e *CodedError) Is(target error) bool {
	switch e.Code {
	case CodeNoReceiver:
		return target == types.ErrNoReceiver
	case CodeCDPUnavailable:
		return target == types.ErrContextInvalidated
	case CodePermissionDenied:
		return target == types.ErrPermissionDenied
	}
	return false
}

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// HasCode reports whether err carries a CodedError with the given code.
func HasCode(err error, code string) bool {
	var coded *CodedError
	if !errors.As(err, &coded) {
		return false
	}
	return coded.Code == code
}

// TabInfo describes a page target known to the client.
type TabInfo struct {
	TabID    types.TabID `json:"tab_id"`
	TargetID string      `json:"target_id"`
	WindowID int         `json:"window_id"`
	URL      string      `json:"url"`
	Title    string      `json:"title,omitempty"`
}

// bindingPayload is what the page bundle sends through the notify binding.
type bindingPayload struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

const (
	payloadMutation = "mutation"
	payloadInput    = "input"
)
