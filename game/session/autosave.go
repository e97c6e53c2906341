package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wricardo/memory-tiles/game/engine"
	"github.com/wricardo/memory-tiles/game/schedule"
)

// DefaultAutosaveDelay is the quiet period before a snapshot is written.
const DefaultAutosaveDelay = time.Second

// SaveErrorHandler is told about every failed write.
type SaveErrorHandler func(playerID string, err error)

// AutosaverOptions configures an Autosaver. Zero values fall back to defaults.
type AutosaverOptions struct {
	Scheduler   schedule.Scheduler
	Delay       time.Duration
	Logger      logrus.FieldLogger
	OnSaveError SaveErrorHandler
}

// Autosaver debounces writes of one player's session. Every Touch restarts
// the timer; only a full quiet window writes, and it writes the newest
// snapshot. Failed writes are logged and reported, never retried. Writes
// are not serialized against each other, but Stop waits for a running one.
type Autosaver struct {
	store    Store
	playerID string

	scheduler   schedule.Scheduler
	delay       time.Duration
	log         logrus.FieldLogger
	onSaveError SaveErrorHandler

	mu      sync.Mutex
	pending *engine.Session
	handle  schedule.Handle
	gen     uint64
	stopped bool

	writing sync.WaitGroup
}

// NewAutosaver creates a debounced writer for playerID.
func NewAutosaver(store Store, playerID string, opts AutosaverOptions) *Autosaver {
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.NewReal()
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultAutosaveDelay
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Autosaver{
		store:       store,
		playerID:    playerID,
		scheduler:   opts.Scheduler,
		delay:       opts.Delay,
		log:         opts.Logger.WithFields(logrus.Fields{"component": "autosave", "player_id": playerID}),
		onSaveError: opts.OnSaveError,
	}
}

// Touch records s as the newest state and restarts the debounce window.
func (a *Autosaver) Touch(s engine.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return
	}
	if a.handle != nil {
		a.handle.Cancel()
	}
	snapshot := s.Clone()
	a.pending = &snapshot
	a.gen++
	gen := a.gen
	a.handle = a.scheduler.Schedule(a.delay, func() { a.fire(gen) })
}

// Pending reports whether a write is waiting for its window to elapse.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Flush writes the pending snapshot now, if there is one.
func (a *Autosaver) Flush(ctx context.Context) error {
	snapshot := a.take()
	if snapshot == nil {
		return nil
	}
	return a.save(ctx, *snapshot)
}

// Stop cancels any pending write, waits for a timer write already in
// progress and ignores later touches.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	if a.handle != nil {
		a.handle.Cancel()
		a.handle = nil
	}
	a.pending = nil
	a.stopped = true
	a.mu.Unlock()

	a.writing.Wait()
}

func (a *Autosaver) fire(gen uint64) {
	a.mu.Lock()
	if a.stopped || gen != a.gen || a.pending == nil {
		a.mu.Unlock()
		return
	}
	snapshot := *a.pending
	a.pending = nil
	a.handle = nil
	a.writing.Add(1)
	a.mu.Unlock()

	defer a.writing.Done()
	_ = a.save(context.Background(), snapshot)
}

func (a *Autosaver) take() *engine.Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handle != nil {
		a.handle.Cancel()
		a.handle = nil
	}
	snapshot := a.pending
	a.pending = nil
	a.gen++
	return snapshot
}

func (a *Autosaver) save(ctx context.Context, s engine.Session) error {
	if err := a.store.Save(ctx, a.playerID, s); err != nil {
		a.log.WithError(err).Warn("failed to save game state")
		if a.onSaveError != nil {
			a.onSaveError(a.playerID, err)
		}
		return err
	}
	a.log.WithField("move_count", s.MoveCount).Debug("game state saved")
	return nil
}
