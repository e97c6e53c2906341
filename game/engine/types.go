package engine

import "time"

// GridSize is the side length of the square board.
type GridSize int

const (
	GridSize4 GridSize = 4
	GridSize6 GridSize = 6

	// DefaultMatchDelay is how long a matched pair stays in evaluation
	// before it is marked matched.
	DefaultMatchDelay = 600 * time.Millisecond
	// DefaultMismatchDelay is how long a mismatched pair stays face up.
	DefaultMismatchDelay = 1000 * time.Millisecond

	// LargeGridImageThreshold is the image count at which DefaultGridSize
	// picks the 6x6 board.
	LargeGridImageThreshold = 18
)

// GridSizes lists every supported board size.
var GridSizes = []GridSize{GridSize4, GridSize6}

// Valid reports whether g is a supported board size
func (g GridSize) Valid() bool {
	return g == GridSize4 || g == GridSize6
}

// TileCount returns the number of tiles on the board
func (g GridSize) TileCount() int {
	return int(g) * int(g)
}

// PairCount returns the number of pairs on the board
func (g GridSize) PairCount() int {
	return g.TileCount() / 2
}

// Tile is one card on the board. Two tiles sharing a PairKey form a pair;
// ID is unique per tile so the two halves are distinguishable.
type Tile struct {
	ID       string `json:"id"`
	ImageRef string `json:"image_ref"`
	FaceUp   bool   `json:"face_up"`
	Matched  bool   `json:"matched"`
	PairKey  int    `json:"pair_key"`
}

// Session is the full persisted state of one player's game.
type Session struct {
	PlayerID         string    `json:"player_id"`
	Tiles            []Tile    `json:"tiles"`
	MatchedPairCount int       `json:"matched_pair_count"`
	MoveCount        int       `json:"move_count"`
	GridSize         GridSize  `json:"grid_size"`
	ImageSet         []string  `json:"image_set"`
	StartedAt        time.Time `json:"started_at"`
	LastPlayedAt     time.Time `json:"last_played_at"`
}

// Clone returns a deep copy of the session
func (s Session) Clone() Session {
	out := s
	if s.Tiles != nil {
		out.Tiles = make([]Tile, len(s.Tiles))
		copy(out.Tiles, s.Tiles)
	}
	if s.ImageSet != nil {
		out.ImageSet = make([]string, len(s.ImageSet))
		copy(out.ImageSet, s.ImageSet)
	}
	return out
}

// TotalPairs returns the number of pairs in the deck
func (s Session) TotalPairs() int {
	return len(s.Tiles) / 2
}

// IsWon reports whether every tile has been matched
func (s Session) IsWon() bool {
	return IsWon(s.Tiles)
}
