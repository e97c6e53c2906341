package engine

import (
	"testing"
	"time"

	"github.com/wricardo/memory-tiles/game/schedule"
)

type gameHarness struct {
	game    *Game
	clock   *schedule.Fake
	changes []Session
	wins    []Session
}

func newHarness(t *testing.T, sess Session) *gameHarness {
	t.Helper()
	h := &gameHarness{clock: schedule.NewFake()}
	game, err := NewGame(sess, Options{
		Scheduler: h.clock,
		Now:       func() time.Time { return time.Unix(1700000000, 0).Add(h.clock.Elapsed()) },
		OnChange:  func(s Session) { h.changes = append(h.changes, s) },
		OnWon:     func(s Session) { h.wins = append(h.wins, s) },
	})
	if err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	h.game = game
	return h
}

func createTestSession() Session {
	return NewSession("player-1", testImages(8), GridSize4, NewSeededRand(3), time.Unix(1700000000, 0))
}

// pairOf returns the two tile IDs of pairKey
func pairOf(s Session, pairKey int) (string, string) {
	var ids []string
	for _, tile := range s.Tiles {
		if tile.PairKey == pairKey {
			ids = append(ids, tile.ID)
		}
	}
	return ids[0], ids[1]
}

func tileByID(s Session, id string) Tile {
	for _, tile := range s.Tiles {
		if tile.ID == id {
			return tile
		}
	}
	return Tile{}
}

func TestGame_MatchResolvesAfterMatchDelay(t *testing.T) {
	h := newHarness(t, createTestSession())
	a, b := pairOf(h.game.Snapshot(), 3)

	if !h.game.ClickTile(a) || !h.game.ClickTile(b) {
		t.Fatal("Expected both clicks to be accepted")
	}
	if h.game.Phase() != PhaseLocked {
		t.Errorf("Expected locked phase, got %s", h.game.Phase())
	}

	h.clock.Advance(DefaultMatchDelay - time.Millisecond)
	if tileByID(h.game.Snapshot(), a).Matched {
		t.Fatal("Tiles should not be matched before the match delay")
	}

	h.clock.Advance(time.Millisecond)
	s := h.game.Snapshot()
	for _, id := range []string{a, b} {
		tile := tileByID(s, id)
		if !tile.Matched || !tile.FaceUp {
			t.Errorf("Expected tile %s matched and face up, got %+v", id, tile)
		}
	}
	if s.MatchedPairCount != 1 {
		t.Errorf("Expected matched pair count 1, got %d", s.MatchedPairCount)
	}
	if s.MoveCount != 2 {
		t.Errorf("Expected move count 2, got %d", s.MoveCount)
	}
	if len(h.game.Evaluating()) != 0 {
		t.Errorf("Expected empty evaluating set, got %v", h.game.Evaluating())
	}
	if h.game.Phase() != PhaseIdle {
		t.Errorf("Expected idle phase, got %s", h.game.Phase())
	}
}

func TestGame_MismatchFlipsBackAfterMismatchDelay(t *testing.T) {
	h := newHarness(t, createTestSession())
	c, _ := pairOf(h.game.Snapshot(), 5)
	d, _ := pairOf(h.game.Snapshot(), 6)

	h.game.ClickTile(c)
	h.game.ClickTile(d)

	// Still face up after the shorter match delay.
	h.clock.Advance(DefaultMatchDelay)
	if !tileByID(h.game.Snapshot(), c).FaceUp {
		t.Fatal("Mismatched tile flipped back too early")
	}

	h.clock.Advance(DefaultMismatchDelay - DefaultMatchDelay)
	s := h.game.Snapshot()
	for _, id := range []string{c, d} {
		tile := tileByID(s, id)
		if tile.FaceUp || tile.Matched {
			t.Errorf("Expected tile %s face down and unmatched, got %+v", id, tile)
		}
	}
	if s.MatchedPairCount != 0 {
		t.Errorf("Expected matched pair count 0, got %d", s.MatchedPairCount)
	}
	if s.MoveCount != 2 {
		t.Errorf("Expected move count 2, got %d", s.MoveCount)
	}
}

func TestGame_ThirdClickWhileLockedIsIgnored(t *testing.T) {
	h := newHarness(t, createTestSession())
	a, _ := pairOf(h.game.Snapshot(), 0)
	b, _ := pairOf(h.game.Snapshot(), 1)
	c, _ := pairOf(h.game.Snapshot(), 2)

	h.game.ClickTile(a)
	h.game.ClickTile(b)
	before := h.game.Snapshot()
	changes := len(h.changes)

	if h.game.ClickTile(c) {
		t.Error("Third click should be rejected while locked")
	}
	after := h.game.Snapshot()
	if after.MoveCount != before.MoveCount || tileByID(after, c).FaceUp {
		t.Error("Third click changed state")
	}
	if len(h.changes) != changes {
		t.Error("Ignored click should not notify listeners")
	}

	// Dropped, not queued: after resolution c is still face down.
	h.clock.Advance(DefaultMismatchDelay)
	if tileByID(h.game.Snapshot(), c).FaceUp {
		t.Error("Dropped click was replayed after unlock")
	}
	if !h.game.ClickTile(c) {
		t.Error("Click should be accepted after resolution")
	}
}

func TestGame_ClickOnFaceUpOrMatchedTileIsNoop(t *testing.T) {
	h := newHarness(t, createTestSession())
	a, b := pairOf(h.game.Snapshot(), 4)

	h.game.ClickTile(a)
	if h.game.ClickTile(a) {
		t.Error("Clicking the same face-up tile twice should be ignored")
	}
	if got := h.game.Snapshot().MoveCount; got != 1 {
		t.Errorf("Expected move count 1, got %d", got)
	}

	h.game.ClickTile(b)
	h.clock.Advance(DefaultMatchDelay)
	before := h.game.Snapshot()

	if h.game.ClickTile(a) || h.game.ClickTile(b) {
		t.Error("Clicking matched tiles should be ignored")
	}
	after := h.game.Snapshot()
	if after.MoveCount != before.MoveCount || after.MatchedPairCount != before.MatchedPairCount {
		t.Error("Clicking matched tiles changed state")
	}
}

func TestGame_UnknownTileIsIgnored(t *testing.T) {
	h := newHarness(t, createTestSession())
	if h.game.ClickTile("not-a-tile") {
		t.Error("Unknown tile id should be ignored")
	}
	if h.game.Snapshot().MoveCount != 0 {
		t.Error("Unknown tile id changed state")
	}
}

func TestGame_ClickStampsLastPlayed(t *testing.T) {
	h := newHarness(t, createTestSession())
	h.clock.Advance(5 * time.Second)
	a, _ := pairOf(h.game.Snapshot(), 0)
	h.game.ClickTile(a)

	want := time.Unix(1700000005, 0)
	if got := h.game.Snapshot().LastPlayedAt; !got.Equal(want) {
		t.Errorf("Expected last played %v, got %v", want, got)
	}
}

func TestGame_WinRequiresEveryPairAndFiresOnce(t *testing.T) {
	h := newHarness(t, createTestSession())
	pairs := GridSize4.PairCount()

	for key := 0; key < pairs; key++ {
		if h.game.IsWon() {
			t.Fatalf("Game won after only %d pairs", key)
		}
		a, b := pairOf(h.game.Snapshot(), key)
		h.game.ClickTile(a)
		h.game.ClickTile(b)
		h.clock.Advance(DefaultMatchDelay)
	}

	if !h.game.IsWon() {
		t.Fatal("Expected game to be won")
	}
	if h.game.Phase() != PhaseWon {
		t.Errorf("Expected won phase, got %s", h.game.Phase())
	}
	s := h.game.Snapshot()
	if s.MatchedPairCount != pairs {
		t.Errorf("Expected %d matched pairs, got %d", pairs, s.MatchedPairCount)
	}
	if len(h.wins) != 1 {
		t.Fatalf("Expected exactly one won notification, got %d", len(h.wins))
	}
	if !h.wins[0].IsWon() {
		t.Error("Won notification should carry the winning snapshot")
	}

	// Every tile is matched now, so every click is a no-op.
	for _, tile := range s.Tiles {
		if h.game.ClickTile(tile.ID) {
			t.Fatal("Click accepted after win")
		}
	}
	if len(h.wins) != 1 {
		t.Error("Won notification fired more than once")
	}
}

func TestGame_ExampleScenario(t *testing.T) {
	// 8 images, 4x4: A and B share pair 3; C is pair 5 and D is pair 6.
	h := newHarness(t, createTestSession())
	s := h.game.Snapshot()
	if len(s.Tiles) != 16 || s.TotalPairs() != 8 {
		t.Fatalf("Expected 16 tiles in 8 pairs, got %d tiles", len(s.Tiles))
	}

	a, b := pairOf(s, 3)
	h.game.ClickTile(a)
	h.game.ClickTile(b)
	h.clock.Advance(DefaultMatchDelay)
	if got := h.game.Snapshot().MatchedPairCount; got != 1 {
		t.Fatalf("Expected matched pair count 1, got %d", got)
	}

	c, _ := pairOf(s, 5)
	d, _ := pairOf(s, 6)
	h.game.ClickTile(c)
	h.game.ClickTile(d)
	h.clock.Advance(DefaultMismatchDelay)
	after := h.game.Snapshot()
	if tileByID(after, c).FaceUp || tileByID(after, d).FaceUp {
		t.Error("Expected C and D face down")
	}
	if after.MatchedPairCount != 1 {
		t.Errorf("Expected matched pair count to stay 1, got %d", after.MatchedPairCount)
	}
}

func TestGame_ListenersSeeEveryMutation(t *testing.T) {
	h := newHarness(t, createTestSession())
	a, b := pairOf(h.game.Snapshot(), 0)

	h.game.ClickTile(a)
	h.game.ClickTile(b)
	h.clock.Advance(DefaultMatchDelay)

	if len(h.changes) != 3 {
		t.Fatalf("Expected 3 change notifications, got %d", len(h.changes))
	}
	if h.changes[0].MoveCount != 1 || h.changes[1].MoveCount != 2 || h.changes[2].MatchedPairCount != 1 {
		t.Errorf("Unexpected notification sequence: %+v", h.changes)
	}

	// Snapshots are copies.
	h.changes[2].Tiles[0].ImageRef = "mutated"
	if h.game.Snapshot().Tiles[0].ImageRef == "mutated" {
		t.Error("Listener snapshot aliases engine state")
	}
}

func TestGame_CloseCancelsPendingResolution(t *testing.T) {
	h := newHarness(t, createTestSession())
	a, b := pairOf(h.game.Snapshot(), 0)
	h.game.ClickTile(a)
	h.game.ClickTile(b)

	h.game.Close()
	changes := len(h.changes)
	h.clock.Advance(time.Minute)

	if len(h.changes) != changes {
		t.Error("Listener called after Close")
	}
	if h.clock.Pending() != 0 {
		t.Error("Expected pending resolution to be cancelled")
	}
	c, _ := pairOf(h.game.Snapshot(), 1)
	if h.game.ClickTile(c) {
		t.Error("Closed game accepted a click")
	}
}

func TestNewGame_RestoresMidEvaluationSession(t *testing.T) {
	sess := createTestSession()
	a, _ := pairOf(sess, 0)
	b, _ := pairOf(sess, 1)
	for i := range sess.Tiles {
		if sess.Tiles[i].ID == a || sess.Tiles[i].ID == b {
			sess.Tiles[i].FaceUp = true
		}
	}

	h := newHarness(t, sess)
	s := h.game.Snapshot()
	if tileByID(s, a).FaceUp || tileByID(s, b).FaceUp {
		t.Error("Face-up unmatched tiles should be turned down on restore")
	}
	if !h.game.ClickTile(a) {
		t.Error("Restored tile should be clickable")
	}
}

func TestNewGame_AlreadyWonDoesNotFire(t *testing.T) {
	sess := createTestSession()
	for i := range sess.Tiles {
		sess.Tiles[i].FaceUp = true
		sess.Tiles[i].Matched = true
	}
	sess.MatchedPairCount = sess.TotalPairs()

	h := newHarness(t, sess)
	if !h.game.IsWon() {
		t.Fatal("Expected restored game to be won")
	}
	if len(h.wins) != 0 {
		t.Error("Won notification fired for a session that was already won")
	}
}

func TestNewGame_RejectsInvalidDelays(t *testing.T) {
	_, err := NewGame(createTestSession(), Options{
		MatchDelay:    time.Second,
		MismatchDelay: time.Second,
	})
	if err == nil {
		t.Error("Expected error when mismatch delay is not longer than match delay")
	}
}

func TestTilesMatch(t *testing.T) {
	a := Tile{ID: "a", PairKey: 1}
	b := Tile{ID: "b", PairKey: 1}
	c := Tile{ID: "c", PairKey: 2}

	if !TilesMatch(a, b) {
		t.Error("Expected a and b to match")
	}
	if TilesMatch(a, a) {
		t.Error("A tile must not match itself")
	}
	if TilesMatch(a, c) {
		t.Error("Different pair keys must not match")
	}
}
