package wake

import (
	"sync"
	"time"
)

// Watchdog is a cancellable single-shot delayed action. The inactivity
// watchdog and every backoff, cooldown, resume and restart delay in the
// conversation state machine are instances of it; one instance per purpose
// guarantees no two delayed actions for the same purpose are outstanding
// simultaneously, because Arm supersedes any pending fire.
//
// Cancel is synchronous: once it returns, the pending callback will not run.
type Watchdog struct {
	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	armed    bool
	duration time.Duration
	onFire   func()
}

func NewWatchdog() *Watchdog {
	return &Watchdog{}
}

// Arm schedules onFire after d, superseding any pending fire.
func (w *Watchdog) Arm(d time.Duration, onFire func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cancelLocked()
	w.gen++
	w.armed = true
	w.duration = d
	w.onFire = onFire

	gen := w.gen
	w.timer = time.AfterFunc(d, func() {
		w.fire(gen)
	})
}

// Rearm restarts the timer with the most recent duration and callback.
// Calling Rearm before any Arm is a no-op.
func (w *Watchdog) Rearm() {
	w.mu.Lock()
	onFire := w.onFire
	d := w.duration
	w.mu.Unlock()

	if onFire == nil {
		return
	}
	w.Arm(d, onFire)
}

// Cancel stops any pending fire. Safe to call repeatedly.
func (w *Watchdog) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLocked()
}

// Armed reports whether a fire is pending.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

func (w *Watchdog) cancelLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.armed = false
}

// fire runs the callback only if this generation is still the armed one.
// Holding the lock across the callback is what makes Cancel a hard barrier;
// callbacks must therefore hand work off without blocking.
func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.armed || gen != w.gen {
		return
	}
	w.armed = false
	w.timer = nil

	if w.onFire != nil {
		w.onFire()
	}
}
