package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/memory-tiles/game/imageset"
	"github.com/wricardo/memory-tiles/game/service"
)

const (
	// How often and how long click_tile polls for a locked board to settle.
	settlePoll    = 100 * time.Millisecond
	settleTimeout = 3 * time.Second
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer

	poll    time.Duration
	timeout time.Duration
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		poll:    settlePoll,
		timeout: settleTimeout,
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Memory Tiles",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Memory Tiles - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Find every pair of matching tiles in as few moves as possible.

AVAILABLE TOOLS:
- start_game: Resume your saved game or start a new one
- new_game: Throw away the current game and deal a new board (4x4 or 6x6)
- click_tile: Flip a tile by index (0-based, row by row)
- game_state: Show the board
- end_game: Delete your game
- list_image_sets: List available picture sets
- game_instructions: Full rules and strategy tips

Every tool that touches a game needs player_id.`),
	)

	c.registerTools()
}

func playerProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Your player ID",
	}
}

func gridProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": "Board size: 4 (8 pairs) or 6 (18 pairs). Omit to pick automatically.",
		"enum":        []int{4, 6},
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_game",
		Description: "Resume the player's saved game, or start a new one when there is none",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": playerProp(),
				"grid_size": gridProp(),
			},
			Required: []string{"player_id"},
		},
	}, c.handleStartGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "new_game",
		Description: "Abandon the current game and deal a fresh board",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": playerProp(),
				"grid_size": gridProp(),
			},
			Required: []string{"player_id"},
		},
	}, c.handleNewGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "click_tile",
		Description: "Flip one tile. After the second tile of a turn the board resolves (match or flip back) before this tool returns.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": playerProp(),
				"index": map[string]interface{}{
					"type":        "number",
					"description": "0-based tile index, row by row",
				},
				"tile_id": map[string]interface{}{
					"type":        "string",
					"description": "Tile ID (alternative to index)",
				},
			},
			Required: []string{"player_id"},
		},
	}, c.handleClickTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Show the current board",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": playerProp(),
			},
			Required: []string{"player_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "end_game",
		Description: "Delete the player's game and saved state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_id": playerProp(),
			},
			Required: []string{"player_id"},
		},
	}, c.handleEndGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_image_sets",
		Description: "List available image sets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListImageSets)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the rules and strategy tips",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func playerPath(playerID, suffix string) string {
	return "/api/players/" + url.PathEscape(playerID) + suffix
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func playerArg(args map[string]interface{}) (string, error) {
	playerID, _ := args["player_id"].(string)
	if strings.TrimSpace(playerID) == "" {
		return "", fmt.Errorf("player_id is required")
	}
	return playerID, nil
}

func gridArg(args map[string]interface{}) map[string]interface{} {
	body := map[string]interface{}{}
	if g, ok := args["grid_size"].(float64); ok && g > 0 {
		body["grid_size"] = int(g)
	}
	return body
}

// Tool handlers

func (c *Client) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	playerID, err := playerArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var view service.GameView
	if err := c.apiCall(ctx, "POST", playerPath(playerID, "/game"), gridArg(args), &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	header := "Game ready"
	if view.MoveCount > 0 {
		header = "Resumed saved game"
	}
	return mcp.NewToolResultText(header + "\n\n" + formatGameView(&view)), nil
}

func (c *Client) handleNewGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	playerID, err := playerArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var view service.GameView
	if err := c.apiCall(ctx, "POST", playerPath(playerID, "/game/new"), gridArg(args), &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("New game\n\n" + formatGameView(&view)), nil
}

func (c *Client) handleClickTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	playerID, err := playerArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tileID, _ := args["tile_id"].(string)
	if tileID == "" {
		index, ok := args["index"].(float64)
		if !ok {
			return mcp.NewToolResultError("index or tile_id is required"), nil
		}
		var view service.GameView
		if err := c.apiCall(ctx, "GET", playerPath(playerID, "/game"), nil, &view); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		i := int(index)
		if i < 0 || i >= len(view.Tiles) {
			return mcp.NewToolResultError(fmt.Sprintf("index %d is out of range (0-%d)", i, len(view.Tiles)-1)), nil
		}
		tileID = view.Tiles[i].ID
	}

	var result service.ClickResult
	if err := c.apiCall(ctx, "POST", playerPath(playerID, "/game/click"), map[string]string{"tile_id": tileID}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := formatClickResult(&result)
	if result.Game != nil && result.Game.Locked {
		settled, err := c.waitSettled(ctx, playerID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text += "\n\nAfter resolution:\n" + formatGameView(settled)
	}
	return mcp.NewToolResultText(text), nil
}

// waitSettled polls until the two revealed tiles are resolved.
func (c *Client) waitSettled(ctx context.Context, playerID string) (*service.GameView, error) {
	deadline := time.Now().Add(c.timeout)
	for {
		var view service.GameView
		if err := c.apiCall(ctx, "GET", playerPath(playerID, "/game"), nil, &view); err != nil {
			return nil, err
		}
		if !view.Locked || time.Now().After(deadline) {
			return &view, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.poll):
		}
	}
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	playerID, err := playerArg(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var view service.GameView
	if err := c.apiCall(ctx, "GET", playerPath(playerID, "/game"), nil, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameView(&view)), nil
}

func (c *Client) handleEndGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	playerID, err := playerArg(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := c.apiCall(ctx, "DELETE", playerPath(playerID, "/game"), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Game for %s deleted", playerID)), nil
}

func (c *Client) handleListImageSets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sets []imageset.Info
	if err := c.apiCall(ctx, "GET", "/api/image-sets", nil, &sets); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Image sets (%d):\n\n", len(sets))
	for _, s := range sets {
		fmt.Fprintf(&b, "- %s: %s (%d images, grids %v)\n", s.ID, s.Name, s.ImageCount, s.GridSizes)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Memory Tiles - Complete Instructions

GAME OBJECTIVE:
All tiles start face down. Each picture appears on exactly two tiles.
Find every pair. Your score is the number of moves; fewer is better.

BOARD:
- 4x4 board: 16 tiles, 8 pairs
- 6x6 board: 36 tiles, 18 pairs
- Tiles are addressed by index 0..N-1, row by row
- Legend in game_state:  ??  face down
                         #07 face up, picture 7
                         ==07 matched pair, picture 7

TURN RULES:
1. Flip one tile, then flip a second tile. Each flip is one move.
2. Same picture: both stay face up as a matched pair.
3. Different pictures: both flip back down after a short pause.
4. While two tiles are being resolved, further clicks are ignored.
5. Clicking a tile that is already face up or matched does nothing.

PERSISTENCE:
Progress is saved automatically about a second after your last action.
start_game resumes where you left off. new_game throws that away.

STRATEGY FOR AGENTS:
- Keep a table of index -> picture for every tile you have seen.
- Before flipping an unknown tile, check whether its partner is known.
- When the first flip reveals a picture you have already seen elsewhere,
  flip the remembered partner as your second tile.
- Otherwise flip a tile you have never seen, to learn more.

Good luck!`
	return mcp.NewToolResultText(instructions), nil
}

func formatGameView(view *service.GameView) string {
	if view == nil || len(view.Tiles) == 0 {
		return "No game state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Grid: %dx%d | Pairs: %d/%d | Moves: %d\n\n",
		view.GridSize, view.GridSize, view.MatchedPairCount, view.TotalPairs, view.MoveCount)

	for i, t := range view.Tiles {
		cell := "??"
		switch {
		case t.Matched && t.PairKey != nil:
			cell = fmt.Sprintf("==%02d", *t.PairKey)
		case t.FaceUp && t.PairKey != nil:
			cell = fmt.Sprintf("#%02d", *t.PairKey)
		}
		fmt.Fprintf(&b, "%3d:%-5s", i, cell)
		if view.GridSize > 0 && (i+1)%view.GridSize == 0 {
			b.WriteString("\n")
		}
	}

	if view.Won {
		fmt.Fprintf(&b, "\n🎉 ALL PAIRS FOUND in %d moves!", view.MoveCount)
	} else if view.Locked {
		b.WriteString("\nResolving two revealed tiles...")
	}
	return b.String()
}

func formatClickResult(result *service.ClickResult) string {
	var b strings.Builder
	if result.Accepted {
		b.WriteString("✓ ")
	} else {
		b.WriteString("✗ ")
	}
	b.WriteString(result.Message)
	if result.Game != nil {
		b.WriteString("\n\n")
		b.WriteString(formatGameView(result.Game))
	}
	return b.String()
}
