// Package service provides the business logic layer for the memory game.
//
// GameService is the single entry point used by every transport (HTTP,
// WebSocket, MCP). It converts engine sessions into GameView values, which
// hide the image and pair key of face-down tiles so that clients cannot
// peek at the board.
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager owns live games and persistence (implemented by session.Manager).
// ImageManager loads image sets and player uploads (implemented by imageset.Manager).
//
// Usage:
//
//	images, _ := imageset.NewManager("image-sets")
//	sessions, _ := session.NewManager(session.Options{Store: store, Images: images})
//	svc := service.NewGameService(sessions, images)
//
//	game, err := svc.StartGame(ctx, "player-1", 4)
//	if err != nil {
//		log.Fatal(err)
//	}
//	result, err := svc.ClickTile(ctx, "player-1", game.Tiles[0].ID)
package service
