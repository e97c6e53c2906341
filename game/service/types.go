package service

import (
	"time"

	"github.com/wricardo/memory-tiles/game/engine"
)

// TileView is a tile as a player may see it. Face-down tiles hide their
// image and pair key.
type TileView struct {
	ID       string `json:"id"`
	Index    int    `json:"index"`
	FaceUp   bool   `json:"face_up"`
	Matched  bool   `json:"matched"`
	ImageRef string `json:"image_ref,omitempty"`
	PairKey  *int   `json:"pair_key,omitempty"`
}

// GameView is the public state of a player's game
type GameView struct {
	PlayerID         string     `json:"player_id"`
	GridSize         int        `json:"grid_size"`
	Tiles            []TileView `json:"tiles"`
	MoveCount        int        `json:"move_count"`
	MatchedPairCount int        `json:"matched_pair_count"`
	TotalPairs       int        `json:"total_pairs"`
	Won              bool       `json:"won"`
	Locked           bool       `json:"locked"`
	Evaluating       []string   `json:"evaluating"`
	StartedAt        time.Time  `json:"started_at"`
	LastPlayedAt     time.Time  `json:"last_played_at"`
}

// ClickResult contains the result of a tile click
type ClickResult struct {
	Accepted bool      `json:"accepted"`
	Game     *GameView `json:"game"`
	Message  string    `json:"message"`
	// Pending is "match" or "mismatch" while two tiles wait for resolution
	Pending string `json:"pending,omitempty"`
}

// SavedGameInfo answers whether a player can resume
type SavedGameInfo struct {
	PlayerID string `json:"player_id"`
	HasSaved bool   `json:"has_saved_game"`
}

// PlayerImagesInfo describes a player's uploaded images
type PlayerImagesInfo struct {
	PlayerID   string `json:"player_id"`
	ImageCount int    `json:"image_count"`
	GridSizes  []int  `json:"grid_sizes"`
}

// NewGameView builds the public view of s. Face-up tiles that are not
// matched are exactly the tiles under evaluation.
func NewGameView(s engine.Session) *GameView {
	view := &GameView{
		PlayerID:         s.PlayerID,
		GridSize:         int(s.GridSize),
		Tiles:            make([]TileView, len(s.Tiles)),
		MoveCount:        s.MoveCount,
		MatchedPairCount: s.MatchedPairCount,
		TotalPairs:       s.TotalPairs(),
		Won:              s.IsWon(),
		Evaluating:       []string{},
		StartedAt:        s.StartedAt,
		LastPlayedAt:     s.LastPlayedAt,
	}
	for i, t := range s.Tiles {
		tv := TileView{ID: t.ID, Index: i, FaceUp: t.FaceUp, Matched: t.Matched}
		if t.FaceUp || t.Matched {
			key := t.PairKey
			tv.ImageRef = t.ImageRef
			tv.PairKey = &key
		}
		if t.FaceUp && !t.Matched {
			view.Evaluating = append(view.Evaluating, t.ID)
		}
		view.Tiles[i] = tv
	}
	view.Locked = len(view.Evaluating) >= 2
	return view
}

// pendingOutcome reports "match" or "mismatch" for a locked board.
func pendingOutcome(s engine.Session) string {
	var open []engine.Tile
	for _, t := range s.Tiles {
		if t.FaceUp && !t.Matched {
			open = append(open, t)
		}
	}
	if len(open) != 2 {
		return ""
	}
	if engine.TilesMatch(open[0], open[1]) {
		return "match"
	}
	return "mismatch"
}
