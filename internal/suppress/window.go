// Package suppress provides a timed flag used to ignore self-inflicted
// composer events right after a programmatic write.
package suppress

import (
	"sync"
	"time"
)

// Window is armed for a fixed duration. Arming again while armed restarts
// the countdown instead of stacking a second expiry.
type Window struct {
	mu    sync.Mutex
	armed bool
	gen   uint64
	timer *time.Timer
}

// Arm marks the window active for d.
func (w *Window) Arm(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.armed = true
	w.gen++
	gen := w.gen
	w.timer = time.AfterFunc(d, func() {
		w.mu.Lock()
		if w.gen == gen {
			w.armed = false
			w.timer = nil
		}
		w.mu.Unlock()
	})
}

// Armed reports whether the window is active.
func (w *Window) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

// Disarm clears the window immediately.
func (w *Window) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.armed = false
	w.gen++
}
