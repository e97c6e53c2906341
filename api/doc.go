// Package api provides HTTP REST API handlers for the memory game.
//
// Endpoints:
//
// Game Operations:
//   - POST /api/players/{id}/game - Resume the saved game or start one ({"grid_size": 4|6}, optional)
//   - POST /api/players/{id}/game/new - Discard the current game and deal a new board
//   - GET /api/players/{id}/game - Current game state
//   - POST /api/players/{id}/game/click - Flip a tile ({"tile_id": "..."})
//   - DELETE /api/players/{id}/game - End the game and delete the save
//   - GET /api/players/{id}/saved - Whether a game can be resumed
//
// Images:
//   - PUT /api/players/{id}/images - Register the player's image URLs ({"images": [...]})
//   - GET /api/image-sets - List image sets
//   - GET /api/image-sets/{name} - Get one image set
//   - POST /api/images/validate - Check raw image bytes (type, size, square)
//
// Other:
//   - GET /api/health
//   - GET /ws?player={id} - WebSocket stream of state_update and won events
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "error message",
//	  "code": 404
//	}
//
// Missing games and image sets map to 404, invalid input to 400, anything
// else to 500.
package api
