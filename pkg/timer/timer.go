// Package timer provides the countdown used by exercise bundles and the
// global session clock. Ticks are driven by a loop.Scheduler so tests can
// move time by hand.
package timer

import (
	"time"

	"github.com/jwebster45206/map-engine/pkg/loop"
)

// DefaultInterval is the tick spacing when Options.Interval is zero.
const DefaultInterval = 500 * time.Millisecond

// Options configures callbacks and tick spacing. All callbacks are optional.
type Options struct {
	Interval time.Duration
	// WarningAt is the remaining time at which OnWarning fires once per
	// countdown. Zero disables the warning.
	WarningAt time.Duration

	OnTick    func(t time.Duration)
	OnWarning func(remaining time.Duration)
	OnExpired func()
}

// Timer counts down from a limit, or counts up when the limit is zero.
// It is not safe for concurrent use.
type Timer struct {
	scheduler loop.Scheduler
	opts      Options
	limit     time.Duration

	remaining time.Duration
	elapsed   time.Duration
	running   bool
	warned    bool
	expired   bool

	lastTick time.Time
	handle   loop.Handle
}

func New(scheduler loop.Scheduler, limit time.Duration, opts Options) *Timer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if limit < 0 {
		limit = 0
	}
	return &Timer{
		scheduler: scheduler,
		opts:      opts,
		limit:     limit,
		remaining: limit,
	}
}

// Countdown reports whether the timer has a limit.
func (t *Timer) Countdown() bool {
	return t.limit > 0
}

func (t *Timer) Limit() time.Duration {
	return t.limit
}

// Remaining is the time left on a countdown. It is zero for count-up timers.
func (t *Timer) Remaining() time.Duration {
	t.settle()
	return t.remaining
}

// Elapsed is the running time since the last Reset.
func (t *Timer) Elapsed() time.Duration {
	t.settle()
	return t.elapsed
}

func (t *Timer) Running() bool {
	return t.running
}

func (t *Timer) Expired() bool {
	return t.expired
}

// Start begins or resumes counting. An expired countdown does not restart;
// call Reset first.
func (t *Timer) Start() {
	if t.running || t.expired {
		return
	}
	t.running = true
	t.lastTick = t.scheduler.Now()
	t.arm()
}

// Stop pauses the timer and keeps the remaining time. Stopping a stopped
// timer is a no-op.
func (t *Timer) Stop() {
	if !t.running {
		return
	}
	t.settle()
	t.running = false
	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
}

// Reset stops the timer and restores the full limit. The warning is
// re-armed.
func (t *Timer) Reset() {
	t.Stop()
	t.remaining = t.limit
	t.elapsed = 0
	t.warned = false
	t.expired = false
}

// SetRemaining restores a persisted countdown position. Values are clamped
// to [0, limit+grace].
func (t *Timer) SetRemaining(remaining, grace time.Duration) {
	if !t.Countdown() {
		return
	}
	t.settle()
	ceiling := t.limit + grace
	if remaining > ceiling {
		remaining = ceiling
	}
	if remaining < 0 {
		remaining = 0
	}
	t.remaining = remaining
	t.elapsed = t.limit - remaining
	if t.elapsed < 0 {
		t.elapsed = 0
	}
	t.warned = t.opts.WarningAt > 0 && remaining <= t.opts.WarningAt
	t.expired = remaining == 0
	if t.expired {
		t.Stop()
	}
}

// Add extends a running or paused countdown.
func (t *Timer) Add(d time.Duration) {
	if !t.Countdown() || t.expired || d <= 0 {
		return
	}
	t.settle()
	t.remaining += d
	if t.opts.WarningAt > 0 && t.remaining > t.opts.WarningAt {
		t.warned = false
	}
	if t.running {
		if t.handle != nil {
			t.handle.Stop()
		}
		t.arm()
	}
}

// settle books the time passed since the last tick without firing callbacks.
func (t *Timer) settle() {
	if !t.running {
		return
	}
	now := t.scheduler.Now()
	d := now.Sub(t.lastTick)
	if d <= 0 {
		return
	}
	t.lastTick = now
	t.elapsed += d
	if t.Countdown() {
		t.remaining -= d
		if t.remaining < 0 {
			t.remaining = 0
		}
	}
}

func (t *Timer) arm() {
	next := t.opts.Interval
	if t.Countdown() && t.remaining < next {
		next = t.remaining
	}
	t.handle = t.scheduler.AfterFunc(next, t.tick)
}

func (t *Timer) tick() {
	if !t.running {
		return
	}
	t.settle()

	if !t.Countdown() {
		if t.opts.OnTick != nil {
			t.opts.OnTick(t.elapsed)
		}
		if t.running {
			t.arm()
		}
		return
	}

	if t.opts.OnTick != nil {
		t.opts.OnTick(t.remaining)
	}
	if t.remaining <= 0 {
		t.running = false
		t.expired = true
		t.handle = nil
		if t.opts.OnExpired != nil {
			t.opts.OnExpired()
		}
		return
	}
	if t.opts.WarningAt > 0 && !t.warned && t.remaining <= t.opts.WarningAt {
		t.warned = true
		if t.opts.OnWarning != nil {
			t.opts.OnWarning(t.remaining)
		}
	}
	if t.running {
		t.arm()
	}
}
