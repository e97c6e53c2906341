package service

import (
	"context"

	"github.com/wricardo/memory-tiles/game/engine"
	"github.com/wricardo/memory-tiles/game/imageset"
)

// GameService defines all game-related operations
type GameService interface {
	// Game lifecycle
	StartGame(ctx context.Context, playerID string, gridSize int) (*GameView, error)
	NewGame(ctx context.Context, playerID string, gridSize int) (*GameView, error)
	EndGame(ctx context.Context, playerID string) error
	HasSavedGame(ctx context.Context, playerID string) (*SavedGameInfo, error)

	// Game Operations
	ClickTile(ctx context.Context, playerID, tileID string) (*ClickResult, error)
	GetGame(ctx context.Context, playerID string) (*GameView, error)

	// Images
	ListImageSets(ctx context.Context) ([]imageset.Info, error)
	GetImageSet(ctx context.Context, name string) (*imageset.ImageSet, error)
	RegisterPlayerImages(ctx context.Context, playerID string, refs []string) (*PlayerImagesInfo, error)
}

// SessionManager owns live games and their persistence
type SessionManager interface {
	Start(ctx context.Context, playerID string, gridSize engine.GridSize) (engine.Session, error)
	NewGame(ctx context.Context, playerID string, gridSize engine.GridSize) (engine.Session, error)
	Click(ctx context.Context, playerID, tileID string) (engine.Session, bool, error)
	Get(ctx context.Context, playerID string) (engine.Session, error)
	End(ctx context.Context, playerID string) error
	HasSavedGame(ctx context.Context, playerID string) (bool, error)
}

// ImageManager handles image sets and player uploads
type ImageManager interface {
	Load(name string) (*imageset.ImageSet, error)
	List() ([]imageset.Info, error)
	RegisterPlayerImages(playerID string, refs []string) error
	PlayerImages(playerID string) []string
}
