package service

import (
	"context"
	"fmt"

	"github.com/wricardo/memory-tiles/game/engine"
	"github.com/wricardo/memory-tiles/game/imageset"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	images   ImageManager
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, images ImageManager) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		images:   images,
	}
}

// gridSizeArg converts an API grid size. Zero means "pick for me".
func gridSizeArg(n int) (engine.GridSize, error) {
	if n == 0 {
		return 0, nil
	}
	g := engine.GridSize(n)
	if err := engine.ValidateGridSize(g); err != nil {
		return 0, err
	}
	return g, nil
}

// StartGame resumes the player's game or starts a fresh one
func (s *gameServiceImpl) StartGame(ctx context.Context, playerID string, gridSize int) (*GameView, error) {
	g, err := gridSizeArg(gridSize)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Start(ctx, playerID, g)
	if err != nil {
		return nil, fmt.Errorf("failed to start game: %w", err)
	}
	return NewGameView(sess), nil
}

// NewGame discards any current game and deals a new board
func (s *gameServiceImpl) NewGame(ctx context.Context, playerID string, gridSize int) (*GameView, error) {
	g, err := gridSizeArg(gridSize)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.NewGame(ctx, playerID, g)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	return NewGameView(sess), nil
}

// ClickTile flips a tile
func (s *gameServiceImpl) ClickTile(ctx context.Context, playerID, tileID string) (*ClickResult, error) {
	sess, accepted, err := s.sessions.Click(ctx, playerID, tileID)
	if err != nil {
		return nil, err
	}

	view := NewGameView(sess)
	result := &ClickResult{Accepted: accepted, Game: view}
	switch {
	case view.Won:
		result.Message = fmt.Sprintf("All %d pairs found in %d moves!", view.TotalPairs, view.MoveCount)
	case !accepted:
		result.Message = "Click ignored: tile is face up, matched, unknown, or the board is resolving"
	case view.Locked:
		result.Pending = pendingOutcome(sess)
		if result.Pending == "match" {
			result.Message = "It's a match!"
		} else {
			result.Message = "No match, tiles will flip back"
		}
	default:
		result.Message = "Tile flipped"
	}
	return result, nil
}

// GetGame returns the current state of the player's game
func (s *gameServiceImpl) GetGame(ctx context.Context, playerID string) (*GameView, error) {
	sess, err := s.sessions.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return NewGameView(sess), nil
}

// EndGame deletes the player's game
func (s *gameServiceImpl) EndGame(ctx context.Context, playerID string) error {
	return s.sessions.End(ctx, playerID)
}

// HasSavedGame reports whether the player can resume
func (s *gameServiceImpl) HasSavedGame(ctx context.Context, playerID string) (*SavedGameInfo, error) {
	ok, err := s.sessions.HasSavedGame(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &SavedGameInfo{PlayerID: playerID, HasSaved: ok}, nil
}

// ListImageSets returns every available image set
func (s *gameServiceImpl) ListImageSets(ctx context.Context) ([]imageset.Info, error) {
	return s.images.List()
}

// GetImageSet returns a specific image set
func (s *gameServiceImpl) GetImageSet(ctx context.Context, name string) (*imageset.ImageSet, error) {
	return s.images.Load(name)
}

// RegisterPlayerImages records the refs a player uploaded
func (s *gameServiceImpl) RegisterPlayerImages(ctx context.Context, playerID string, refs []string) (*PlayerImagesInfo, error) {
	if err := s.images.RegisterPlayerImages(playerID, refs); err != nil {
		return nil, err
	}
	set := imageset.ImageSet{Images: s.images.PlayerImages(playerID)}
	sizes := set.GridSizes()
	if sizes == nil {
		sizes = []int{}
	}
	return &PlayerImagesInfo{PlayerID: playerID, ImageCount: len(set.Images), GridSizes: sizes}, nil
}
