package suppress

import (
	"testing"
	"time"
)

func TestWindowExpires(t *testing.T) {
	var w Window
	if w.Armed() {
		t.Fatal("zero Window is armed")
	}
	w.Arm(30 * time.Millisecond)
	if !w.Armed() {
		t.Fatal("Armed() = false right after Arm")
	}
	time.Sleep(80 * time.Millisecond)
	if w.Armed() {
		t.Fatal("Armed() = true after the window elapsed")
	}
}

func TestWindowRearmRestartsCountdown(t *testing.T) {
	var w Window
	w.Arm(60 * time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	w.Arm(60 * time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	// 80ms after the first Arm: the first expiry must not clear the second.
	if !w.Armed() {
		t.Fatal("first expiry cleared a re-armed window")
	}
	time.Sleep(60 * time.Millisecond)
	if w.Armed() {
		t.Fatal("Armed() = true after the re-armed window elapsed")
	}
}

func TestWindowDisarm(t *testing.T) {
	var w Window
	w.Arm(time.Second)
	w.Disarm()
	if w.Armed() {
		t.Fatal("Armed() = true after Disarm")
	}
}
