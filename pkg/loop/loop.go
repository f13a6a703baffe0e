// Package loop provides the single-threaded execution model the map engine
// relies on. All engine mutation happens on one goroutine; deferred work
// (timer ticks, queued animation callbacks, one-frame deferrals) is
// scheduled through a Scheduler so tests can drive time by hand.
package loop

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Do once the loop has been closed.
var ErrClosed = errors.New("loop closed")

// Handle cancels a callback scheduled with AfterFunc.
type Handle interface {
	// Stop prevents the callback from running. It reports whether the
	// call stopped a callback that had not fired yet.
	Stop() bool
}

// Scheduler runs callbacks after a delay on the owner's goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Handle
	Now() time.Time
}

// Loop is a Scheduler backed by a single goroutine. Callbacks scheduled
// with AfterFunc and work submitted with Do are executed one at a time, in
// submission order.
type Loop struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

var _ Scheduler = (*Loop)(nil)

// New starts a loop goroutine. Call Close to stop it.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		tasks:  make(chan func(), 64),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		select {
		case fn := <-l.tasks:
			l.exec(fn)
		case <-l.done:
			return
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered panic in loop callback", "panic", r)
		}
	}()
	fn()
}

func (l *Loop) post(fn func()) bool {
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop goroutine and waits for it to return.
// It must not be called from inside a loop callback.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if !l.post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// AfterFunc schedules fn to run on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Handle {
	h := &loopHandle{}
	h.timer = time.AfterFunc(d, func() {
		l.post(func() {
			if h.stopped.Load() {
				return
			}
			h.fired.Store(true)
			fn()
		})
	})
	return h
}

// Now returns the wall clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Close stops the loop goroutine. Pending callbacks are discarded.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

type loopHandle struct {
	timer   *time.Timer
	stopped atomic.Bool
	fired   atomic.Bool
}

func (h *loopHandle) Stop() bool {
	if h.fired.Load() {
		return false
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	return !h.stopped.Swap(true)
}
