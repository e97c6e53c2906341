// Package schedule provides cancellable delayed tasks.
//
// The game engine and the autosaver never touch wall-clock timers directly.
// They receive a Scheduler, which is backed by time.AfterFunc in production
// and by Fake in tests so that delays can be advanced instantly.
package schedule

import "time"

// Handle is a scheduled task that has not necessarily run yet.
type Handle interface {
	// Cancel stops the task. It reports whether the call prevented the task
	// from running; false means it already ran or was already cancelled.
	Cancel() bool
}

// Scheduler runs fn once after delay.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Handle
}

// Real schedules tasks with time.AfterFunc.
type Real struct{}

// NewReal returns a wall-clock scheduler
func NewReal() Real {
	return Real{}
}

// Schedule implements Scheduler
func (Real) Schedule(delay time.Duration, fn func()) Handle {
	return realHandle{timer: time.AfterFunc(delay, fn)}
}

type realHandle struct {
	timer *time.Timer
}

func (h realHandle) Cancel() bool {
	return h.timer.Stop()
}
