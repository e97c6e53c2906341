package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/wricardo/memory-tiles/game/schedule"
)

// Phase is the externally visible state of the match engine.
type Phase string

const (
	// PhaseIdle accepts clicks: zero or one tile is under evaluation.
	PhaseIdle Phase = "idle"
	// PhaseLocked ignores clicks while two tiles wait for resolution.
	PhaseLocked Phase = "locked"
	// PhaseWon is reported once every tile is matched.
	PhaseWon Phase = "won"
)

// Listener receives session snapshots. Callbacks run while the Game holds
// its lock, in mutation order, and must not call back into the Game.
type Listener func(Session)

// Options tunes a Game. Zero values fall back to the defaults.
type Options struct {
	Scheduler     schedule.Scheduler
	Now           func() time.Time
	MatchDelay    time.Duration
	MismatchDelay time.Duration
	OnChange      Listener
	OnWon         Listener
}

// Game is the flip/match state machine for one session.
type Game struct {
	mu sync.Mutex

	session    Session
	index      map[string]int
	evaluating []int
	pending    schedule.Handle
	wonFired   bool
	closed     bool

	scheduler     schedule.Scheduler
	now           func() time.Time
	matchDelay    time.Duration
	mismatchDelay time.Duration
	onChange      Listener
	onWon         Listener
}

// NewGame wraps a session in a match engine. The session is validated and
// copied. Face-up tiles that are not matched were mid-evaluation when the
// session was saved; they are turned face down because the evaluating set
// is never persisted.
func NewGame(session Session, opts Options) (*Game, error) {
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.NewReal()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MatchDelay <= 0 {
		opts.MatchDelay = DefaultMatchDelay
	}
	if opts.MismatchDelay <= 0 {
		opts.MismatchDelay = DefaultMismatchDelay
	}
	if opts.MismatchDelay <= opts.MatchDelay {
		return nil, fmt.Errorf("mismatch delay %s must be longer than match delay %s", opts.MismatchDelay, opts.MatchDelay)
	}

	s := session.Clone()
	for i := range s.Tiles {
		if s.Tiles[i].FaceUp && !s.Tiles[i].Matched {
			s.Tiles[i].FaceUp = false
		}
	}
	if err := ValidateSession(s); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(s.Tiles))
	for i, t := range s.Tiles {
		index[t.ID] = i
	}

	return &Game{
		session:       s,
		index:         index,
		wonFired:      s.IsWon(),
		scheduler:     opts.Scheduler,
		now:           opts.Now,
		matchDelay:    opts.MatchDelay,
		mismatchDelay: opts.MismatchDelay,
		onChange:      opts.OnChange,
		onWon:         opts.OnWon,
	}, nil
}

// ClickTile flips the tile with the given ID. It reports whether the click
// was accepted. Clicks are ignored while two tiles are under evaluation,
// on tiles that are already face up or matched, and on unknown IDs.
func (g *Game) ClickTile(tileID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || len(g.evaluating) >= 2 {
		return false
	}
	i, ok := g.index[tileID]
	if !ok {
		return false
	}
	tile := &g.session.Tiles[i]
	if tile.FaceUp || tile.Matched {
		return false
	}

	tile.FaceUp = true
	g.session.MoveCount++
	g.session.LastPlayedAt = g.now()
	g.evaluating = append(g.evaluating, i)

	if len(g.evaluating) == 2 {
		first, second := g.session.Tiles[g.evaluating[0]], g.session.Tiles[g.evaluating[1]]
		if TilesMatch(first, second) {
			g.pending = g.scheduler.Schedule(g.matchDelay, g.resolveMatch)
		} else {
			g.pending = g.scheduler.Schedule(g.mismatchDelay, g.resolveMismatch)
		}
	}

	g.notifyLocked()
	return true
}

// TilesMatch reports whether a and b are the two halves of one pair.
// A tile never matches itself.
func TilesMatch(a, b Tile) bool {
	return a.PairKey == b.PairKey && a.ID != b.ID
}

func (g *Game) resolveMatch() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || len(g.evaluating) != 2 {
		return
	}
	for _, i := range g.evaluating {
		g.session.Tiles[i].Matched = true
		g.session.Tiles[i].FaceUp = true
	}
	g.session.MatchedPairCount++
	g.evaluating = nil
	g.pending = nil

	g.notifyLocked()
}

func (g *Game) resolveMismatch() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || len(g.evaluating) != 2 {
		return
	}
	for _, i := range g.evaluating {
		g.session.Tiles[i].FaceUp = false
	}
	g.evaluating = nil
	g.pending = nil

	g.notifyLocked()
}

// notifyLocked publishes the current snapshot and fires the won listener the
// first time the win predicate holds. Caller holds g.mu.
func (g *Game) notifyLocked() {
	if g.onChange != nil {
		g.onChange(g.session.Clone())
	}
	if !g.wonFired && len(g.evaluating) == 0 && g.session.IsWon() {
		g.wonFired = true
		if g.onWon != nil {
			g.onWon(g.session.Clone())
		}
	}
}

// Snapshot returns a deep copy of the current session
func (g *Game) Snapshot() Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.Clone()
}

// IsWon reports whether every tile is matched
func (g *Game) IsWon() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.IsWon()
}

// Phase returns the current engine phase
func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case len(g.evaluating) == 2:
		return PhaseLocked
	case g.session.IsWon():
		return PhaseWon
	default:
		return PhaseIdle
	}
}

// Evaluating returns the IDs of the tiles currently under evaluation
func (g *Game) Evaluating() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.evaluating))
	for _, i := range g.evaluating {
		ids = append(ids, g.session.Tiles[i].ID)
	}
	return ids
}

// PlayerID returns the owner of the session
func (g *Game) PlayerID() string {
	return g.session.PlayerID
}

// Close cancels any pending resolution and makes the Game ignore further
// clicks. Listeners are not called after Close returns.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending != nil {
		g.pending.Cancel()
		g.pending = nil
	}
	g.closed = true
}
