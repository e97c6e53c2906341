package schedule

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually driven Scheduler. Tasks run synchronously on the
// goroutine that calls Advance, in due-time order.
type Fake struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*fakeTask
}

type fakeTask struct {
	f         *Fake
	due       time.Duration
	seq       int
	fn        func()
	cancelled bool
	done      bool
}

// NewFake returns a fake scheduler positioned at offset zero.
func NewFake() *Fake {
	return &Fake{}
}

// Schedule implements Scheduler
func (f *Fake) Schedule(delay time.Duration, fn func()) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	t := &fakeTask{f: f, due: f.now + delay, seq: f.seq, fn: fn}
	f.tasks = append(f.tasks, t)
	return t
}

// Advance moves the fake clock forward by d and runs every task that became
// due, including tasks scheduled by those tasks within the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now + d
	f.mu.Unlock()

	for {
		f.mu.Lock()
		next := f.nextDueLocked(target)
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = next.due
		next.done = true
		f.mu.Unlock()

		next.fn()
	}
}

// Pending returns the number of tasks that have neither run nor been cancelled.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, t := range f.tasks {
		if !t.done && !t.cancelled {
			n++
		}
	}
	return n
}

// Elapsed returns how far the fake clock has been advanced.
func (f *Fake) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) nextDueLocked(target time.Duration) *fakeTask {
	live := f.tasks[:0]
	for _, t := range f.tasks {
		if !t.done && !t.cancelled {
			live = append(live, t)
		}
	}
	f.tasks = live

	sort.SliceStable(f.tasks, func(i, j int) bool {
		if f.tasks[i].due == f.tasks[j].due {
			return f.tasks[i].seq < f.tasks[j].seq
		}
		return f.tasks[i].due < f.tasks[j].due
	})

	if len(f.tasks) == 0 || f.tasks[0].due > target {
		return nil
	}
	return f.tasks[0]
}

func (t *fakeTask) Cancel() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()

	if t.done || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}
