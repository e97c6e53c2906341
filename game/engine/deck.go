package engine

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Rand is the random source used to shuffle decks.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from the process-wide random source.
var DefaultRand Rand = globalRand{}

// SeededRand is a reproducible Rand. Decks built with it also draw their
// tile IDs from it, so the same seed yields the same deck byte for byte.
type SeededRand struct {
	r *rand.Rand
}

// NewSeededRand returns a Rand seeded with seed
func NewSeededRand(seed uint64) *SeededRand {
	return &SeededRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// IntN implements Rand
func (s *SeededRand) IntN(n int) int {
	return s.r.IntN(n)
}

// Read fills p with pseudo-random bytes so the source can feed uuid generation.
func (s *SeededRand) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(s.r.Uint32())
	}
	return len(p), nil
}

// RequiredImageCount returns how many distinct images a board of size g needs
func RequiredImageCount(g GridSize) int {
	return g.PairCount()
}

// DefaultGridSize picks the largest board the available images can fill.
func DefaultGridSize(imageCount int) GridSize {
	if imageCount >= LargeGridImageThreshold {
		return GridSize6
	}
	return GridSize4
}

// BuildDeck turns image references into a shuffled deck of paired tiles.
//
// Only the first gridSize²/2 references are used. Callers must supply at
// least that many; BuildDeck panics otherwise. The shuffle is Fisher-Yates
// driven by rnd, which defaults to DefaultRand when nil.
func BuildDeck(imageRefs []string, gridSize GridSize, rnd Rand) []Tile {
	if !gridSize.Valid() {
		panic(fmt.Sprintf("engine: unsupported grid size %d", gridSize))
	}
	pairs := gridSize.PairCount()
	if len(imageRefs) < pairs {
		panic(fmt.Sprintf("engine: grid %dx%d needs %d images, got %d", gridSize, gridSize, pairs, len(imageRefs)))
	}
	if rnd == nil {
		rnd = DefaultRand
	}

	newID := idGenerator(rnd)
	tiles := make([]Tile, 0, pairs*2)
	for pairKey, ref := range imageRefs[:pairs] {
		tiles = append(tiles,
			Tile{ID: newID(), ImageRef: ref, PairKey: pairKey},
			Tile{ID: newID(), ImageRef: ref, PairKey: pairKey},
		)
	}

	shuffle(tiles, rnd)
	return tiles
}

// NewSession starts a fresh game for playerID. The full imageRefs list is
// kept on the session even though only the first pairs are dealt.
func NewSession(playerID string, imageRefs []string, gridSize GridSize, rnd Rand, now time.Time) Session {
	imageSet := make([]string, len(imageRefs))
	copy(imageSet, imageRefs)

	return Session{
		PlayerID:     playerID,
		Tiles:        BuildDeck(imageRefs, gridSize, rnd),
		GridSize:     gridSize,
		ImageSet:     imageSet,
		StartedAt:    now,
		LastPlayedAt: now,
	}
}

func shuffle(tiles []Tile, rnd Rand) {
	for i := len(tiles) - 1; i > 0; i-- {
		j := rnd.IntN(i + 1)
		tiles[i], tiles[j] = tiles[j], tiles[i]
	}
}

func idGenerator(rnd Rand) func() string {
	seeded, ok := rnd.(*SeededRand)
	if !ok {
		return func() string { return uuid.NewString() }
	}
	return func() string {
		id, err := uuid.NewRandomFromReader(seeded)
		if err != nil {
			return uuid.NewString()
		}
		return id.String()
	}
}
