package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wricardo/memory-tiles/game/engine"
	"github.com/wricardo/memory-tiles/game/schedule"
)

// ImageProvider returns the image refs a player's next deck is built from.
// It must return at least engine.RequiredImageCount(gridSize) refs.
type ImageProvider interface {
	ImagesFor(ctx context.Context, playerID string, gridSize engine.GridSize) ([]string, error)
}

// Listener observes live games. Calls happen while the game holds its lock,
// so implementations must return quickly and must not call back into the
// Manager for the same player.
type Listener interface {
	SessionUpdated(playerID string, s engine.Session)
	GameWon(playerID string, s engine.Session)
}

// Options configures a Manager.
type Options struct {
	Store         Store
	Images        ImageProvider
	Scheduler     schedule.Scheduler
	Rand          engine.Rand
	Now           func() time.Time
	AutosaveDelay time.Duration
	MatchDelay    time.Duration
	MismatchDelay time.Duration
	Logger        logrus.FieldLogger
	Listeners     []Listener
	OnSaveError   SaveErrorHandler
}

type liveGame struct {
	game       *engine.Game
	saver      *Autosaver
	lastAccess time.Time
}

type playerLock struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the live game of every active player and connects each one
// to its autosaver and to the registered listeners. mu only guards the maps;
// store calls run under the player's own lock.
type Manager struct {
	opts Options
	log  logrus.FieldLogger

	mu    sync.Mutex
	live  map[string]*liveGame
	locks map[string]*playerLock
}

// NewManager creates a manager. A nil Store keeps sessions in memory only.
func NewManager(opts Options) (*Manager, error) {
	if opts.Images == nil {
		return nil, errors.New("image provider is required")
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.NewReal()
	}
	if opts.Rand == nil {
		opts.Rand = engine.DefaultRand
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Manager{
		opts:  opts,
		log:   opts.Logger.WithField("component", "session"),
		live:  make(map[string]*liveGame),
		locks: make(map[string]*playerLock),
	}, nil
}

// AddListener registers l for all games created afterwards.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.Listeners = append(m.opts.Listeners, l)
}

// Start resumes the player's game, from memory or from the store, or starts
// a fresh one when nothing is saved. gridSize only applies to a fresh game;
// zero picks the size from the number of available images.
func (m *Manager) Start(ctx context.Context, playerID string, gridSize engine.GridSize) (engine.Session, error) {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return engine.Session{}, err
	}

	unlock := m.lockPlayer(id)
	defer unlock()

	lg, err := m.resume(ctx, id)
	if err == nil {
		return lg.game.Snapshot(), nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return engine.Session{}, err
	}

	lg, err = m.fresh(ctx, id, gridSize)
	if err != nil {
		return engine.Session{}, err
	}
	return lg.game.Snapshot(), nil
}

// NewGame abandons the player's current game, clears the saved state and
// starts over with gridSize.
func (m *Manager) NewGame(ctx context.Context, playerID string, gridSize engine.GridSize) (engine.Session, error) {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return engine.Session{}, err
	}

	unlock := m.lockPlayer(id)
	defer unlock()

	m.drop(id)
	if err := m.opts.Store.Delete(ctx, id); err != nil {
		m.log.WithError(err).WithField("player_id", id).Warn("failed to clear saved game")
	}

	lg, err := m.fresh(ctx, id, gridSize)
	if err != nil {
		return engine.Session{}, err
	}
	return lg.game.Snapshot(), nil
}

// Click forwards a tile click to the player's game. It returns the state
// after the click and whether the click was accepted.
func (m *Manager) Click(ctx context.Context, playerID, tileID string) (engine.Session, bool, error) {
	g, err := m.Game(ctx, playerID)
	if err != nil {
		return engine.Session{}, false, err
	}
	accepted := g.ClickTile(tileID)
	return g.Snapshot(), accepted, nil
}

// Get returns the current state of the player's game.
func (m *Manager) Get(ctx context.Context, playerID string) (engine.Session, error) {
	g, err := m.Game(ctx, playerID)
	if err != nil {
		return engine.Session{}, err
	}
	return g.Snapshot(), nil
}

// Game returns the live match engine for playerID, loading a saved game if
// needed. It returns ErrGameNotStarted when the player has no game.
func (m *Manager) Game(ctx context.Context, playerID string) (*engine.Game, error) {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return nil, err
	}

	if lg, ok := m.lookup(id); ok {
		return lg.game, nil
	}

	unlock := m.lockPlayer(id)
	defer unlock()

	lg, err := m.resume(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrGameNotStarted
	}
	if err != nil {
		return nil, err
	}
	return lg.game, nil
}

// End stops the player's game and removes the saved state. A write that
// was already running finishes before the delete.
func (m *Manager) End(ctx context.Context, playerID string) error {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return err
	}

	unlock := m.lockPlayer(id)
	defer unlock()

	m.drop(id)
	if err := m.opts.Store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete saved game: %w", err)
	}
	return nil
}

// HasSavedGame reports whether the player has a live or stored game.
func (m *Manager) HasSavedGame(ctx context.Context, playerID string) (bool, error) {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	_, ok := m.live[id]
	m.mu.Unlock()
	if ok {
		return true, nil
	}

	_, err = m.opts.Store.Load(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrSessionNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check saved game: %w", err)
	}
}

// CleanupIdle writes and evicts games not touched within maxAge. Evicted
// games are reloaded from the store on next access. A game whose final
// write fails stays live.
func (m *Manager) CleanupIdle(ctx context.Context, maxAge time.Duration) int {
	cutoff := m.opts.Now().Add(-maxAge)

	m.mu.Lock()
	var idle []string
	for id, lg := range m.live {
		if lg.lastAccess.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	removed := 0
	for _, id := range idle {
		if m.evictIdle(ctx, id, cutoff) {
			removed++
		}
	}
	if removed > 0 {
		m.log.WithField("count", removed).Info("evicted idle games")
	}
	return removed
}

func (m *Manager) evictIdle(ctx context.Context, id string, cutoff time.Time) bool {
	unlock := m.lockPlayer(id)
	defer unlock()

	m.mu.Lock()
	lg, ok := m.live[id]
	if !ok || !lg.lastAccess.Before(cutoff) {
		m.mu.Unlock()
		return false
	}
	delete(m.live, id)
	m.mu.Unlock()

	lg.game.Close()
	err := lg.saver.Flush(ctx)
	lg.saver.Stop()
	if err == nil {
		return true
	}

	// put it back so the autosaver retries
	s := lg.game.Snapshot()
	revived, attachErr := m.attach(s)
	if attachErr != nil {
		m.log.WithError(attachErr).WithField("player_id", id).Error("lost unsaved game")
		return true
	}
	m.mu.Lock()
	revived.lastAccess = lg.lastAccess
	m.mu.Unlock()
	revived.saver.Touch(s)
	return false
}

// Count returns the number of live games.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Close writes every pending snapshot and stops all games.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	games := m.live
	m.live = make(map[string]*liveGame)
	m.mu.Unlock()

	failed := 0
	for _, lg := range games {
		lg.game.Close()
		if err := lg.saver.Flush(ctx); err != nil {
			failed++
		}
		lg.saver.Stop()
	}
	if failed > 0 {
		return fmt.Errorf("failed to save %d sessions", failed)
	}
	return nil
}

// lockPlayer serializes loads, deletes and fresh starts for one player. The
// returned func releases the lock.
func (m *Manager) lockPlayer(id string) func() {
	m.mu.Lock()
	pl, ok := m.locks[id]
	if !ok {
		pl = &playerLock{}
		m.locks[id] = pl
	}
	pl.refs++
	m.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()

		m.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

func (m *Manager) lookup(id string) (*liveGame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lg, ok := m.live[id]
	if ok {
		lg.lastAccess = m.opts.Now()
	}
	return lg, ok
}

// resume must be called with the player's lock held.
func (m *Manager) resume(ctx context.Context, id string) (*liveGame, error) {
	if lg, ok := m.lookup(id); ok {
		return lg, nil
	}

	saved, err := m.opts.Store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load saved game: %w", err)
	}
	saved.PlayerID = id

	lg, err := m.attach(saved)
	if err != nil {
		m.log.WithError(err).WithField("player_id", id).Warn("discarding invalid saved game")
		return nil, ErrSessionNotFound
	}
	m.log.WithFields(logrus.Fields{"player_id": id, "move_count": saved.MoveCount}).Info("resumed saved game")
	return lg, nil
}

// fresh must be called with the player's lock held.
func (m *Manager) fresh(ctx context.Context, id string, gridSize engine.GridSize) (*liveGame, error) {
	if gridSize != 0 {
		if err := engine.ValidateGridSize(gridSize); err != nil {
			return nil, err
		}
	}

	// an automatic size asks for the smallest board, so a player with
	// enough images for 4x4 gets their own images
	lookup := gridSize
	if lookup == 0 {
		lookup = engine.GridSize4
	}
	images, err := m.opts.Images.ImagesFor(ctx, id, lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to get images: %w", err)
	}
	if gridSize == 0 {
		gridSize = engine.DefaultGridSize(len(images))
	}
	if len(images) < engine.RequiredImageCount(gridSize) {
		return nil, fmt.Errorf("need %d images for a %dx%d grid, have %d",
			engine.RequiredImageCount(gridSize), gridSize, gridSize, len(images))
	}

	s := engine.NewSession(id, images, gridSize, m.opts.Rand, m.opts.Now())
	lg, err := m.attach(s)
	if err != nil {
		return nil, err
	}
	lg.saver.Touch(s)
	m.log.WithFields(logrus.Fields{"player_id": id, "grid_size": int(gridSize)}).Info("started new game")
	return lg, nil
}

func (m *Manager) attach(s engine.Session) (*liveGame, error) {
	id := s.PlayerID
	saver := NewAutosaver(m.opts.Store, id, AutosaverOptions{
		Scheduler:   m.opts.Scheduler,
		Delay:       m.opts.AutosaveDelay,
		Logger:      m.opts.Logger,
		OnSaveError: m.opts.OnSaveError,
	})

	m.mu.Lock()
	listeners := append([]Listener(nil), m.opts.Listeners...)
	m.mu.Unlock()

	g, err := engine.NewGame(s, engine.Options{
		Scheduler:     m.opts.Scheduler,
		Now:           m.opts.Now,
		MatchDelay:    m.opts.MatchDelay,
		MismatchDelay: m.opts.MismatchDelay,
		OnChange: func(snapshot engine.Session) {
			saver.Touch(snapshot)
			for _, l := range listeners {
				l.SessionUpdated(id, snapshot)
			}
		},
		OnWon: func(snapshot engine.Session) {
			m.log.WithFields(logrus.Fields{"player_id": id, "move_count": snapshot.MoveCount}).Info("game won")
			for _, l := range listeners {
				l.GameWon(id, snapshot)
			}
		},
	})
	if err != nil {
		saver.Stop()
		return nil, err
	}

	lg := &liveGame{game: g, saver: saver, lastAccess: m.opts.Now()}
	m.mu.Lock()
	m.live[id] = lg
	m.mu.Unlock()
	return lg, nil
}

// drop stops the player's live game and waits for a write already in
// progress.
func (m *Manager) drop(id string) {
	m.mu.Lock()
	lg, ok := m.live[id]
	delete(m.live, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	lg.game.Close()
	lg.saver.Stop()
}
