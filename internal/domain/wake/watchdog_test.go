package wake

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchdogFires(t *testing.T) {
	w := NewWatchdog()
	fired := make(chan struct{})

	w.Arm(20*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("watchdog did not fire")
	}
	if w.Armed() {
		t.Fatal("watchdog still armed after firing")
	}
}

func TestWatchdogCancelPreventsFire(t *testing.T) {
	w := NewWatchdog()
	var fires atomic.Int32

	w.Arm(20*time.Millisecond, func() { fires.Add(1) })
	w.Cancel()

	time.Sleep(60 * time.Millisecond)
	if n := fires.Load(); n != 0 {
		t.Fatalf("cancelled watchdog fired %d times", n)
	}
	if w.Armed() {
		t.Fatal("watchdog armed after cancel")
	}
}

func TestWatchdogRearmExtends(t *testing.T) {
	w := NewWatchdog()
	fired := make(chan time.Time, 1)

	start := time.Now()
	w.Arm(50*time.Millisecond, func() { fired <- time.Now() })

	time.Sleep(30 * time.Millisecond)
	w.Rearm()

	select {
	case at := <-fired:
		if elapsed := at.Sub(start); elapsed < 70*time.Millisecond {
			t.Fatalf("fired after %s, rearm did not extend the deadline", elapsed)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("watchdog did not fire after rearm")
	}
}

func TestWatchdogRearmBeforeArmIsNoop(t *testing.T) {
	w := NewWatchdog()
	w.Rearm()
	if w.Armed() {
		t.Fatal("rearm without a prior arm must not arm the watchdog")
	}
}

func TestWatchdogArmSupersedes(t *testing.T) {
	w := NewWatchdog()
	got := make(chan string, 2)

	w.Arm(20*time.Millisecond, func() { got <- "first" })
	w.Arm(40*time.Millisecond, func() { got <- "second" })

	select {
	case which := <-got:
		if which != "second" {
			t.Fatalf("superseded callback fired: %q", which)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("watchdog did not fire")
	}

	select {
	case which := <-got:
		t.Fatalf("extra fire: %q", which)
	case <-time.After(60 * time.Millisecond):
	}
}
