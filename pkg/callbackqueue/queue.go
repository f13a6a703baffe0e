// Package callbackqueue sequences visible state changes. While an exercise
// is open, changes are held back and replayed one after another once the
// exercise view has closed.
package callbackqueue

import (
	"time"

	"github.com/jwebster45206/map-engine/pkg/loop"
)

// Options controls how an added callback is played.
type Options struct {
	Delay     time.Duration // wait before the callback, counted for the callbacks after it
	Block     time.Duration // minimum spacing before the next callback may fire
	SkipQueue bool          // run immediately even when the queue is not skippable
}

type entry struct {
	callback func()
	delay    time.Duration
	block    time.Duration
}

// Queue is owned by one map session. It is not safe for concurrent use;
// all calls happen on the session's loop.
type Queue struct {
	scheduler loop.Scheduler
	skippable bool
	animated  bool

	queued    []entry
	scheduled map[int]loop.Handle
	nextID    int
}

// New returns a skippable queue. With animated false every scheduled
// delay collapses to zero.
func New(scheduler loop.Scheduler, animated bool) *Queue {
	return &Queue{
		scheduler: scheduler,
		skippable: true,
		animated:  animated,
		scheduled: make(map[int]loop.Handle),
	}
}

// SetSkippable switches between running callbacks immediately (true) and
// holding them until ScheduleQueued (false).
func (q *Queue) SetSkippable(skippable bool) {
	q.skippable = skippable
}

// Add runs callback now when the queue is skippable or SkipQueue is set,
// and otherwise appends it to the queue. A nil callback is ignored.
func (q *Queue) Add(callback func(), opts Options) {
	if callback == nil {
		return
	}
	if q.skippable || opts.SkipQueue {
		callback()
		return
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.Block < 0 {
		opts.Block = 0
	}
	q.queued = append(q.queued, entry{callback: callback, delay: opts.Delay, block: opts.Block})
}

// ScheduleQueued hands every queued callback to the scheduler. Each one
// fires after the summed delay and block of the callbacks before it.
// Callbacks added while these fire go through Add again and land in the
// next batch.
func (q *Queue) ScheduleQueued() {
	batch := q.queued
	q.queued = nil

	var offset time.Duration
	for _, e := range batch {
		at := offset
		if !q.animated {
			at = 0
		}
		q.schedule(e.callback, at)
		offset += e.delay + e.block
	}
}

func (q *Queue) schedule(callback func(), after time.Duration) {
	id := q.nextID
	q.nextID++
	q.scheduled[id] = q.scheduler.AfterFunc(after, func() {
		delete(q.scheduled, id)
		callback()
	})
}

// ClearQueued drops callbacks that were not scheduled yet.
func (q *Queue) ClearQueued() {
	q.queued = nil
}

// ClearScheduled cancels scheduled callbacks that have not fired.
func (q *Queue) ClearScheduled() {
	for id, h := range q.scheduled {
		h.Stop()
		delete(q.scheduled, id)
	}
}

// Queued reports how many callbacks wait for ScheduleQueued.
func (q *Queue) Queued() int {
	return len(q.queued)
}

// Scheduled reports how many scheduled callbacks have not fired.
func (q *Queue) Scheduled() int {
	return len(q.scheduled)
}
