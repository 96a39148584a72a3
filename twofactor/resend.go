package twofactor

import "time"

const defaultResendCooldown = 60 * time.Second

// ResendThrottle rate-limits the resend-code control on the client. This is
// advisory UX throttling only; the server enforces its own limits. The clock
// is injectable so the countdown can be tested without sleeping.
type ResendThrottle struct {
	cooldown time.Duration
	nowTime  func() time.Time
	readyAt  time.Time
}

// ThrottleOption modifies a ResendThrottle.
type ThrottleOption func(*ResendThrottle)

// WithCooldown overrides the 60 second default.
func WithCooldown(d time.Duration) ThrottleOption {
	return func(t *ResendThrottle) {
		t.cooldown = d
	}
}

// WithThrottleNowTime sets the clock function (primarily for testing).
func WithThrottleNowTime(nowFunc func() time.Time) ThrottleOption {
	return func(t *ResendThrottle) {
		t.nowTime = nowFunc
	}
}

// NewResendThrottle creates a throttle that is immediately ready.
func NewResendThrottle(options ...ThrottleOption) *ResendThrottle {
	t := &ResendThrottle{
		cooldown: defaultResendCooldown,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Ready reports whether a resend may be triggered. The control re-enables
// exactly when the countdown reaches zero, never before.
func (t *ResendThrottle) Ready() bool {
	return !t.nowTime().Before(t.readyAt)
}

// Remaining returns the time left on the countdown, zero when ready.
func (t *ResendThrottle) Remaining() time.Duration {
	remaining := t.readyAt.Sub(t.nowTime())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Trigger consumes the throttle and starts the countdown. It returns false,
// leaving the countdown untouched, when invoked while still cooling down.
func (t *ResendThrottle) Trigger() bool {
	if !t.Ready() {
		return false
	}
	t.readyAt = t.nowTime().Add(t.cooldown)
	return true
}
