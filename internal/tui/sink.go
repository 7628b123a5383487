package tui

import (
	"github.com/dgnsrekt/twintype/internal/panel"
	"github.com/dgnsrekt/twintype/internal/types"
)

// ToastSink passes events to next and copies toasts to the terminal.
type ToastSink struct {
	next   panel.Sink
	toasts chan types.Toast
}

// NewToastSink wraps next. A nil next only feeds the terminal.
func NewToastSink(next panel.Sink) *ToastSink {
	return &ToastSink{next: next, toasts: make(chan types.Toast, 8)}
}

func (s *ToastSink) Toast(t types.Toast) {
	if s.next != nil {
		s.next.Toast(t)
	}
	select {
	case s.toasts <- t:
	default:
	}
}

func (s *ToastSink) Diagnostic(d types.Diagnostic) {
	if s.next != nil {
		s.next.Diagnostic(d)
	}
}

// Toasts is read by the model.
func (s *ToastSink) Toasts() <-chan types.Toast { return s.toasts }
