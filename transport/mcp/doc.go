// Package mcp exposes the memory game to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool call is translated into a request
// against the REST API, so an agent plays exactly the same game a browser
// does and progress is saved the same way.
//
// MCP Tools:
//   - start_game: resume a saved game or deal a new one
//   - new_game: discard the current game and deal a new board
//   - click_tile: flip a tile by index or id, waiting for a pair to resolve
//   - game_state: render the board
//   - end_game: delete the player's game
//   - list_image_sets: list picture sets
//   - game_instructions: rules and strategy
//
// Face-down tiles are rendered as "??" and carry no picture information.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
