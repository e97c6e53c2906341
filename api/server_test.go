package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/wricardo/memory-tiles/game/engine"
	"github.com/wricardo/memory-tiles/game/imageset"
	"github.com/wricardo/memory-tiles/game/service"
	"github.com/wricardo/memory-tiles/game/session"
	"github.com/wricardo/memory-tiles/transport/websocket"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	StartGameFunc            func(ctx context.Context, playerID string, gridSize int) (*service.GameView, error)
	NewGameFunc              func(ctx context.Context, playerID string, gridSize int) (*service.GameView, error)
	EndGameFunc              func(ctx context.Context, playerID string) error
	HasSavedGameFunc         func(ctx context.Context, playerID string) (*service.SavedGameInfo, error)
	ClickTileFunc            func(ctx context.Context, playerID, tileID string) (*service.ClickResult, error)
	GetGameFunc              func(ctx context.Context, playerID string) (*service.GameView, error)
	ListImageSetsFunc        func(ctx context.Context) ([]imageset.Info, error)
	GetImageSetFunc          func(ctx context.Context, name string) (*imageset.ImageSet, error)
	RegisterPlayerImagesFunc func(ctx context.Context, playerID string, refs []string) (*service.PlayerImagesInfo, error)
}

func (m *MockGameService) StartGame(ctx context.Context, playerID string, gridSize int) (*service.GameView, error) {
	if m.StartGameFunc != nil {
		return m.StartGameFunc(ctx, playerID, gridSize)
	}
	return &service.GameView{PlayerID: playerID, GridSize: gridSize}, nil
}

func (m *MockGameService) NewGame(ctx context.Context, playerID string, gridSize int) (*service.GameView, error) {
	if m.NewGameFunc != nil {
		return m.NewGameFunc(ctx, playerID, gridSize)
	}
	return &service.GameView{PlayerID: playerID, GridSize: gridSize}, nil
}

func (m *MockGameService) EndGame(ctx context.Context, playerID string) error {
	if m.EndGameFunc != nil {
		return m.EndGameFunc(ctx, playerID)
	}
	return nil
}

func (m *MockGameService) HasSavedGame(ctx context.Context, playerID string) (*service.SavedGameInfo, error) {
	if m.HasSavedGameFunc != nil {
		return m.HasSavedGameFunc(ctx, playerID)
	}
	return &service.SavedGameInfo{PlayerID: playerID}, nil
}

func (m *MockGameService) ClickTile(ctx context.Context, playerID, tileID string) (*service.ClickResult, error) {
	if m.ClickTileFunc != nil {
		return m.ClickTileFunc(ctx, playerID, tileID)
	}
	return &service.ClickResult{Accepted: true, Game: &service.GameView{PlayerID: playerID}}, nil
}

func (m *MockGameService) GetGame(ctx context.Context, playerID string) (*service.GameView, error) {
	if m.GetGameFunc != nil {
		return m.GetGameFunc(ctx, playerID)
	}
	return &service.GameView{PlayerID: playerID}, nil
}

func (m *MockGameService) ListImageSets(ctx context.Context) ([]imageset.Info, error) {
	if m.ListImageSetsFunc != nil {
		return m.ListImageSetsFunc(ctx)
	}
	return []imageset.Info{}, nil
}

func (m *MockGameService) GetImageSet(ctx context.Context, name string) (*imageset.ImageSet, error) {
	if m.GetImageSetFunc != nil {
		return m.GetImageSetFunc(ctx, name)
	}
	return &imageset.ImageSet{Name: name}, nil
}

func (m *MockGameService) RegisterPlayerImages(ctx context.Context, playerID string, refs []string) (*service.PlayerImagesInfo, error) {
	if m.RegisterPlayerImagesFunc != nil {
		return m.RegisterPlayerImagesFunc(ctx, playerID, refs)
	}
	return &service.PlayerImagesInfo{PlayerID: playerID, ImageCount: len(refs)}, nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func doRequest(t *testing.T, srv http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestStartGame(t *testing.T) {
	var gotPlayer string
	var gotGrid int
	mock := &MockGameService{
		StartGameFunc: func(ctx context.Context, playerID string, gridSize int) (*service.GameView, error) {
			gotPlayer, gotGrid = playerID, gridSize
			return &service.GameView{PlayerID: playerID, GridSize: 6, TotalPairs: 18}, nil
		},
	}
	srv := NewServer(mock, nil, quietLogger())

	w := doRequest(t, srv, "POST", "/api/players/alice/game", `{"grid_size": 6}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotPlayer != "alice" || gotGrid != 6 {
		t.Errorf("Unexpected args: %s %d", gotPlayer, gotGrid)
	}

	var view service.GameView
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if view.TotalPairs != 18 {
		t.Errorf("Expected 18 pairs, got %d", view.TotalPairs)
	}

	// empty body means automatic grid size
	w = doRequest(t, srv, "POST", "/api/players/alice/game", "")
	if w.Code != http.StatusOK || gotGrid != 0 {
		t.Errorf("Expected 200 and grid 0, got %d and %d", w.Code, gotGrid)
	}

	w = doRequest(t, srv, "POST", "/api/players/alice/game", `{bad`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad body, got %d", w.Code)
	}
}

func TestNewGame(t *testing.T) {
	srv := NewServer(&MockGameService{}, nil, quietLogger())

	w := doRequest(t, srv, "POST", "/api/players/bob/game/new", `{"grid_size": 4}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}
	var view service.GameView
	json.NewDecoder(w.Body).Decode(&view)
	if view.PlayerID != "bob" || view.GridSize != 4 {
		t.Errorf("Unexpected view: %+v", view)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"no game", session.ErrGameNotStarted, http.StatusNotFound},
		{"bad player", fmt.Errorf("wrap: %w", session.ErrInvalidPlayerID), http.StatusBadRequest},
		{"bad grid", fmt.Errorf("%w: 5", engine.ErrInvalidGridSize), http.StatusBadRequest},
		{"store down", fmt.Errorf("failed to load saved game: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockGameService{
				GetGameFunc: func(ctx context.Context, playerID string) (*service.GameView, error) {
					return nil, tt.err
				},
			}
			w := doRequest(t, NewServer(mock, nil, quietLogger()), "GET", "/api/players/p/game", "")
			if w.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, w.Code)
			}
			var body map[string]interface{}
			json.NewDecoder(w.Body).Decode(&body)
			if body["error"] == "" || int(body["code"].(float64)) != tt.status {
				t.Errorf("Unexpected error body: %v", body)
			}
		})
	}
}

func TestClick(t *testing.T) {
	var gotTile string
	mock := &MockGameService{
		ClickTileFunc: func(ctx context.Context, playerID, tileID string) (*service.ClickResult, error) {
			gotTile = tileID
			return &service.ClickResult{Accepted: true, Pending: "match", Message: "It's a match!"}, nil
		},
	}
	srv := NewServer(mock, nil, quietLogger())

	w := doRequest(t, srv, "POST", "/api/players/p/game/click", `{"tile_id": "t-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if gotTile != "t-1" {
		t.Errorf("Expected tile t-1, got %s", gotTile)
	}
	var result service.ClickResult
	json.NewDecoder(w.Body).Decode(&result)
	if !result.Accepted || result.Pending != "match" {
		t.Errorf("Unexpected result: %+v", result)
	}

	w = doRequest(t, srv, "POST", "/api/players/p/game/click", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without tile_id, got %d", w.Code)
	}
}

func TestEndGameAndSaved(t *testing.T) {
	ended := ""
	mock := &MockGameService{
		EndGameFunc: func(ctx context.Context, playerID string) error {
			ended = playerID
			return nil
		},
		HasSavedGameFunc: func(ctx context.Context, playerID string) (*service.SavedGameInfo, error) {
			return &service.SavedGameInfo{PlayerID: playerID, HasSaved: true}, nil
		},
	}
	srv := NewServer(mock, nil, quietLogger())

	w := doRequest(t, srv, "DELETE", "/api/players/p/game", "")
	if w.Code != http.StatusNoContent || ended != "p" {
		t.Errorf("Expected 204 and end for p, got %d, %q", w.Code, ended)
	}

	w = doRequest(t, srv, "GET", "/api/players/p/saved", "")
	var info service.SavedGameInfo
	json.NewDecoder(w.Body).Decode(&info)
	if w.Code != http.StatusOK || !info.HasSaved {
		t.Errorf("Expected saved game, got %d %+v", w.Code, info)
	}
}

func TestImageSets(t *testing.T) {
	mock := &MockGameService{
		ListImageSetsFunc: func(ctx context.Context) ([]imageset.Info, error) {
			return []imageset.Info{{ID: "default", ImageCount: 18, GridSizes: []int{4, 6}}}, nil
		},
		GetImageSetFunc: func(ctx context.Context, name string) (*imageset.ImageSet, error) {
			if name != "cats" {
				return nil, imageset.ErrImageSetNotFound
			}
			return &imageset.ImageSet{Name: "Cats", Images: []string{"https://a"}}, nil
		},
	}
	srv := NewServer(mock, nil, quietLogger())

	w := doRequest(t, srv, "GET", "/api/image-sets", "")
	var infos []imageset.Info
	json.NewDecoder(w.Body).Decode(&infos)
	if w.Code != http.StatusOK || len(infos) != 1 || infos[0].ID != "default" {
		t.Errorf("Unexpected list: %d %+v", w.Code, infos)
	}

	w = doRequest(t, srv, "GET", "/api/image-sets/cats", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	w = doRequest(t, srv, "GET", "/api/image-sets/dogs", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestRegisterImages(t *testing.T) {
	var got []string
	mock := &MockGameService{
		RegisterPlayerImagesFunc: func(ctx context.Context, playerID string, refs []string) (*service.PlayerImagesInfo, error) {
			got = refs
			if len(refs) > 0 && refs[0] == "bad" {
				return nil, fmt.Errorf("image 0: %w", imageset.ErrInvalidRef)
			}
			return &service.PlayerImagesInfo{PlayerID: playerID, ImageCount: len(refs)}, nil
		},
	}
	srv := NewServer(mock, nil, quietLogger())

	w := doRequest(t, srv, "PUT", "/api/players/p/images", `{"images": ["https://a/1.png", "https://a/2.png"]}`)
	if w.Code != http.StatusOK || len(got) != 2 {
		t.Errorf("Expected 200 with 2 refs, got %d %v", w.Code, got)
	}

	w = doRequest(t, srv, "PUT", "/api/players/p/images", `{"images": ["bad"]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestValidateImage(t *testing.T) {
	srv := NewServer(&MockGameService{}, nil, quietLogger())

	encode := func(w, h int) *bytes.Buffer {
		var buf bytes.Buffer
		png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)))
		return &buf
	}

	req := httptest.NewRequest("POST", "/api/images/validate", encode(32, 32))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var info imageset.ImageInfo
	json.NewDecoder(w.Body).Decode(&info)
	if info.Width != 32 || info.ContentType != "image/png" {
		t.Errorf("Unexpected info: %+v", info)
	}

	req = httptest.NewRequest("POST", "/api/images/validate", encode(64, 32))
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-square image, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	w := doRequest(t, NewServer(&MockGameService{}, nil, quietLogger()), "GET", "/api/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("Unexpected health response: %d %s", w.Code, w.Body.String())
	}
}

func TestWebSocketRoute(t *testing.T) {
	srv := NewServer(&MockGameService{}, nil, quietLogger())
	w := doRequest(t, srv, "GET", "/ws?player=p", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without hub, got %d", w.Code)
	}

	hub := websocket.NewHub(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv = NewServer(&MockGameService{}, hub, quietLogger())
	w = doRequest(t, srv, "GET", "/ws", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without player, got %d", w.Code)
	}

	ts := httptest.NewServer(srv)
	defer ts.Close()
	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?player=p", nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount("p") != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount("p") != 1 {
		t.Error("Expected client registered through the API route")
	}
}
