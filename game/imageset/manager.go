package imageset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/memory-tiles/game/engine"
)

var (
	ErrImageSetNotFound = errors.New("image set not found")
	ErrInvalidImageSet  = errors.New("invalid image set")
)

// ImageSet is a named list of image refs, stored as <name>.json.
type ImageSet struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images"`
}

// Info summarizes an image set for listings.
type Info struct {
	ID          string `json:"id"`
	Filename    string `json:"filename,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageCount  int    `json:"image_count"`
	GridSizes   []int  `json:"grid_sizes"`
}

// Validate checks that every ref is usable and that the set fills at least
// a 4x4 board.
func (s *ImageSet) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidImageSet)
	}
	if need := engine.RequiredImageCount(engine.GridSize4); len(s.Images) < need {
		return fmt.Errorf("%w: %d images, need at least %d", ErrInvalidImageSet, len(s.Images), need)
	}
	for i, ref := range s.Images {
		if err := ValidateRef(ref); err != nil {
			return fmt.Errorf("%w: image %d: %v", ErrInvalidImageSet, i, err)
		}
	}
	return nil
}

// GridSizes lists the board sizes this set can fill.
func (s *ImageSet) GridSizes() []int {
	var sizes []int
	for _, g := range engine.GridSizes {
		if len(s.Images) >= engine.RequiredImageCount(g) {
			sizes = append(sizes, int(g))
		}
	}
	return sizes
}

// Manager loads image sets from a directory, caches them, and tracks the
// refs each player has uploaded.
type Manager struct {
	dir        string
	defaultSet *ImageSet
	sets       map[string]*ImageSet
	players    map[string][]string
	mu         sync.RWMutex
}

// NewManager creates a manager reading sets from dir. An empty dir serves
// only the built-in default set.
func NewManager(dir string) (*Manager, error) {
	if dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("image set directory does not exist: %s", dir)
		}
	}
	return &Manager{
		dir:        dir,
		defaultSet: DefaultSet(),
		sets:       make(map[string]*ImageSet),
		players:    make(map[string][]string),
	}, nil
}

// Load returns the named set, reading it from disk on first use.
func (m *Manager) Load(name string) (*ImageSet, error) {
	name = strings.TrimSuffix(name, ".json")
	if name == DefaultSetName {
		return m.Default(), nil
	}

	m.mu.RLock()
	if set, ok := m.sets[name]; ok {
		m.mu.RUnlock()
		return set, nil
	}
	m.mu.RUnlock()

	if m.dir == "" || name == "" || strings.ContainsAny(name, `/\`) {
		return nil, ErrImageSetNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if set, ok := m.sets[name]; ok {
		return set, nil
	}

	set, err := ReadFile(filepath.Join(m.dir, name+".json"))
	if err != nil {
		return nil, err
	}
	m.sets[name] = set
	return set, nil
}

// ReadFile parses and validates one image set file.
func ReadFile(path string) (*ImageSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrImageSetNotFound
		}
		return nil, fmt.Errorf("failed to read image set: %w", err)
	}

	var set ImageSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse image set: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// List describes the default set plus every valid set in the directory.
func (m *Manager) List() ([]Info, error) {
	def := m.Default()
	infos := []Info{{
		ID:          DefaultSetName,
		Name:        def.Name,
		Description: def.Description,
		ImageCount:  len(def.Images),
		GridSizes:   def.GridSizes(),
	}}
	if m.dir == "" {
		return infos, nil
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image set directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		if id == DefaultSetName {
			continue
		}
		set, err := m.Load(id)
		if err != nil {
			// Skip invalid sets
			continue
		}
		infos = append(infos, Info{
			ID:          id,
			Filename:    entry.Name(),
			Name:        set.Name,
			Description: set.Description,
			ImageCount:  len(set.Images),
			GridSizes:   set.GridSizes(),
		})
	}
	sort.Slice(infos[1:], func(i, j int) bool { return infos[i+1].ID < infos[j+1].ID })
	return infos, nil
}

// Default returns the fallback set.
func (m *Manager) Default() *ImageSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultSet
}

// SetDefault makes the named set the fallback for players without enough
// images of their own.
func (m *Manager) SetDefault(name string) error {
	set, err := m.Load(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultSet = set
	return nil
}

// RegisterPlayerImages replaces the refs uploaded by playerID.
func (m *Manager) RegisterPlayerImages(playerID string, refs []string) error {
	if strings.TrimSpace(playerID) == "" {
		return errors.New("player ID is required")
	}
	for i, ref := range refs {
		if err := ValidateRef(ref); err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(refs) == 0 {
		delete(m.players, playerID)
		return nil
	}
	m.players[playerID] = append([]string(nil), refs...)
	return nil
}

// PlayerImages returns a copy of the refs registered for playerID.
func (m *Manager) PlayerImages(playerID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.players[playerID]...)
}

// ImagesFor returns the player's own refs when they can fill gridSize,
// otherwise the default set.
func (m *Manager) ImagesFor(ctx context.Context, playerID string, gridSize engine.GridSize) ([]string, error) {
	return Select(m.PlayerImages(playerID), m.Default().Images, gridSize), nil
}

// Select picks playerRefs when there are enough for gridSize, else fallback.
func Select(playerRefs, fallback []string, gridSize engine.GridSize) []string {
	if len(playerRefs) >= engine.RequiredImageCount(gridSize) {
		return append([]string(nil), playerRefs...)
	}
	return append([]string(nil), fallback...)
}
