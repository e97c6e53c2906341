package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_RunsTasksWhenDue(t *testing.T) {
	f := NewFake()
	var order []string

	f.Schedule(2*time.Second, func() { order = append(order, "b") })
	f.Schedule(time.Second, func() { order = append(order, "a") })

	f.Advance(999 * time.Millisecond)
	assert.Empty(t, order)
	assert.Equal(t, 2, f.Pending())

	f.Advance(time.Millisecond)
	assert.Equal(t, []string{"a"}, order)

	f.Advance(time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 0, f.Pending())
	assert.Equal(t, 2*time.Second, f.Elapsed())
}

func TestFake_Cancel(t *testing.T) {
	f := NewFake()
	ran := false
	h := f.Schedule(time.Second, func() { ran = true })

	require.True(t, h.Cancel())
	require.False(t, h.Cancel(), "second cancel must report false")

	f.Advance(time.Minute)
	assert.False(t, ran)
}

func TestFake_CancelAfterRun(t *testing.T) {
	f := NewFake()
	h := f.Schedule(time.Second, func() {})
	f.Advance(time.Second)
	assert.False(t, h.Cancel())
}

func TestFake_NestedScheduling(t *testing.T) {
	f := NewFake()
	var hits []time.Duration

	f.Schedule(time.Second, func() {
		hits = append(hits, f.Elapsed())
		f.Schedule(time.Second, func() { hits = append(hits, f.Elapsed()) })
	})

	f.Advance(5 * time.Second)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, hits)
}

func TestReal_ScheduleAndCancel(t *testing.T) {
	s := NewReal()

	var fired atomic.Bool
	done := make(chan struct{})
	s.Schedule(10*time.Millisecond, func() {
		fired.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	assert.True(t, fired.Load())

	var cancelled atomic.Bool
	h := s.Schedule(time.Hour, func() { cancelled.Store(true) })
	assert.True(t, h.Cancel())
	assert.False(t, cancelled.Load())
}
