package callbackqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/map-engine/pkg/loop"
)

var epoch = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type firing struct {
	name string
	at   time.Duration
}

func recorder(m *loop.Manual, fired *[]firing, name string) func() {
	return func() {
		*fired = append(*fired, firing{name: name, at: m.Now().Sub(epoch)})
	}
}

func TestQueue_SkippableRunsImmediately(t *testing.T) {
	m := loop.NewManual(epoch)
	q := New(m, true)

	ran := 0
	q.Add(func() { ran++ }, Options{Delay: time.Second})
	assert.Equal(t, 1, ran)
	assert.Equal(t, 0, q.Queued())
}

func TestQueue_SkipQueueBypassesHeldQueue(t *testing.T) {
	m := loop.NewManual(epoch)
	q := New(m, true)
	q.SetSkippable(false)

	ran := 0
	q.Add(func() { ran++ }, Options{SkipQueue: true})
	assert.Equal(t, 1, ran)
	assert.Equal(t, 0, q.Queued())
}

func TestQueue_NilCallbackIgnored(t *testing.T) {
	q := New(loop.NewManual(epoch), true)
	q.SetSkippable(false)
	q.Add(nil, Options{})
	assert.Equal(t, 0, q.Queued())
}

func TestQueue_AnimatedDelaysAccumulate(t *testing.T) {
	m := loop.NewManual(epoch)
	q := New(m, true)
	q.SetSkippable(false)

	var fired []firing
	for _, name := range []string{"a", "b", "c"} {
		q.Add(recorder(m, &fired, name), Options{Delay: 100 * time.Millisecond, Block: 50 * time.Millisecond})
	}
	require.Empty(t, fired)

	q.ScheduleQueued()
	assert.Equal(t, 0, q.Queued())
	assert.Equal(t, 3, q.Scheduled())

	m.Advance(time.Second)
	assert.Equal(t, []firing{{"a", 0}, {"b", 150 * time.Millisecond}, {"c", 300 * time.Millisecond}}, fired)
	assert.Equal(t, 0, q.Scheduled())
}

func TestQueue_NoAnimationFlattens(t *testing.T) {
	m := loop.NewManual(epoch)
	q := New(m, false)
	q.SetSkippable(false)

	var fired []firing
	for _, name := range []string{"a", "b", "c"} {
		q.Add(recorder(m, &fired, name), Options{Delay: 100 * time.Millisecond, Block: 50 * time.Millisecond})
	}
	q.ScheduleQueued()
	m.Flush()

	assert.Equal(t, []firing{{"a", 0}, {"b", 0}, {"c", 0}}, fired)
}

func TestQueue_ClearScheduledCancelsPending(t *testing.T) {
	m := loop.NewManual(epoch)
	q := New(m, true)
	q.SetSkippable(false)

	var fired []firing
	q.Add(recorder(m, &fired, "a"), Options{Delay: 100 * time.Millisecond})
	q.Add(recorder(m, &fired, "b"), Options{Delay: 100 * time.Millisecond})
	q.ScheduleQueued()

	m.Advance(50 * time.Millisecond)
	require.Len(t, fired, 1)

	q.ClearScheduled()
	q.ClearScheduled()
	m.Advance(time.Second)
	assert.Len(t, fired, 1)
	assert.Equal(t, 0, q.Scheduled())
}

func TestQueue_ClearQueued(t *testing.T) {
	m := loop.NewManual(epoch)
	q := New(m, true)
	q.SetSkippable(false)

	q.Add(func() { t.Fatal("cleared callback ran") }, Options{})
	q.ClearQueued()
	q.ClearQueued()
	q.ScheduleQueued()
	m.Advance(time.Second)
	assert.Equal(t, 0, q.Queued())
}

func TestQueue_ReentrantAddsWaitForNextDrain(t *testing.T) {
	m := loop.NewManual(epoch)
	q := New(m, true)
	q.SetSkippable(false)

	var fired []firing
	q.Add(func() {
		fired = append(fired, firing{name: "outer", at: m.Now().Sub(epoch)})
		q.Add(recorder(m, &fired, "inner"), Options{})
	}, Options{})
	q.ScheduleQueued()
	m.Flush()

	require.Len(t, fired, 1)
	assert.Equal(t, 1, q.Queued(), "inner callback waits in the queue")

	q.ScheduleQueued()
	m.Flush()
	require.Len(t, fired, 2)
	assert.Equal(t, "inner", fired[1].name)
}
