package engine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGridSize = errors.New("invalid grid size")
	ErrInvalidSession  = errors.New("invalid session")
)

// IsWon reports whether every tile is matched. An empty deck is never won.
func IsWon(tiles []Tile) bool {
	if len(tiles) == 0 {
		return false
	}
	for _, t := range tiles {
		if !t.Matched {
			return false
		}
	}
	return true
}

// CountMatchedPairs returns the number of pair keys whose two tiles are both matched
func CountMatchedPairs(tiles []Tile) int {
	matched := make(map[int]int)
	for _, t := range tiles {
		if t.Matched {
			matched[t.PairKey]++
		}
	}
	n := 0
	for _, c := range matched {
		if c == 2 {
			n++
		}
	}
	return n
}

// ValidateGridSize returns ErrInvalidGridSize for anything other than 4 or 6
func ValidateGridSize(g GridSize) error {
	if !g.Valid() {
		return fmt.Errorf("%w: %d (supported: 4, 6)", ErrInvalidGridSize, g)
	}
	return nil
}

// ValidateSession checks the structural invariants of a session, typically
// one that was just loaded from storage.
func ValidateSession(s Session) error {
	if s.PlayerID == "" {
		return fmt.Errorf("%w: player_id is required", ErrInvalidSession)
	}
	if err := ValidateGridSize(s.GridSize); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if len(s.Tiles) != s.GridSize.TileCount() {
		return fmt.Errorf("%w: grid %d needs %d tiles, got %d",
			ErrInvalidSession, s.GridSize, s.GridSize.TileCount(), len(s.Tiles))
	}

	pairs := s.GridSize.PairCount()
	perKey := make(map[int]int, pairs)
	ids := make(map[string]bool, len(s.Tiles))
	faceUpUnmatched := 0
	for i, t := range s.Tiles {
		if t.ID == "" {
			return fmt.Errorf("%w: tile %d has no id", ErrInvalidSession, i)
		}
		if ids[t.ID] {
			return fmt.Errorf("%w: duplicate tile id %s", ErrInvalidSession, t.ID)
		}
		ids[t.ID] = true

		if t.PairKey < 0 || t.PairKey >= pairs {
			return fmt.Errorf("%w: tile %s pair_key %d out of range [0,%d)", ErrInvalidSession, t.ID, t.PairKey, pairs)
		}
		perKey[t.PairKey]++

		if t.Matched && !t.FaceUp {
			return fmt.Errorf("%w: tile %s is matched but face down", ErrInvalidSession, t.ID)
		}
		if t.FaceUp && !t.Matched {
			faceUpUnmatched++
		}
	}

	for key := 0; key < pairs; key++ {
		if perKey[key] != 2 {
			return fmt.Errorf("%w: pair_key %d held by %d tiles", ErrInvalidSession, key, perKey[key])
		}
	}
	matchedPerKey := make(map[int]int, pairs)
	for _, t := range s.Tiles {
		if t.Matched {
			matchedPerKey[t.PairKey]++
		}
	}
	for key, n := range matchedPerKey {
		if n != 2 {
			return fmt.Errorf("%w: pair_key %d is only half matched", ErrInvalidSession, key)
		}
	}
	if faceUpUnmatched > 2 {
		return fmt.Errorf("%w: %d tiles face up under evaluation", ErrInvalidSession, faceUpUnmatched)
	}
	if got := CountMatchedPairs(s.Tiles); s.MatchedPairCount != got {
		return fmt.Errorf("%w: matched_pair_count %d, tiles show %d", ErrInvalidSession, s.MatchedPairCount, got)
	}
	if s.MoveCount < 0 {
		return fmt.Errorf("%w: negative move_count", ErrInvalidSession)
	}

	return nil
}
