package wake

import "time"

// BackoffPolicy maps a consecutive error count to the next retry action.
// Streaming recognizers emit frequent, usually benign, timeout-class errors;
// a short linear ramp keeps recovery fast for transient conditions while the
// cooldown prevents restart storms on persistent failures.
type BackoffPolicy struct {
	BaseDelay time.Duration
	Cap       time.Duration
	MaxErrors int
	Cooldown  time.Duration
}

// Action is the policy's decision for one error count.
type Action struct {
	Delay      time.Duration
	IsCooldown bool
}

// Next returns the retry action for the given consecutive error count.
// Counts in [1, MaxErrors) get min(BaseDelay*count, Cap); at MaxErrors and
// beyond the caller must apply the cooldown and reset its counter to zero.
func (p BackoffPolicy) Next(errorCount int) Action {
	if errorCount >= p.MaxErrors {
		return Action{Delay: p.Cooldown, IsCooldown: true}
	}

	if errorCount < 1 {
		errorCount = 1
	}
	delay := p.BaseDelay * time.Duration(errorCount)
	if delay > p.Cap {
		delay = p.Cap
	}
	return Action{Delay: delay}
}
