package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/wricardo/memory-tiles/game/engine"
	"github.com/wricardo/memory-tiles/game/imageset"
	"github.com/wricardo/memory-tiles/game/service"
	"github.com/wricardo/memory-tiles/game/session"
	"github.com/wricardo/memory-tiles/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	log     logrus.FieldLogger
}

// NewServer creates a new API server. hub may be nil to disable /ws.
func NewServer(gameService service.GameService, hub *websocket.Hub, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     logger.WithField("component", "api"),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	// Player game lifecycle
	api.HandleFunc("/players/{id}/game", s.handleStartGame).Methods("POST")
	api.HandleFunc("/players/{id}/game/new", s.handleNewGame).Methods("POST")
	api.HandleFunc("/players/{id}/game", s.handleGetGame).Methods("GET")
	api.HandleFunc("/players/{id}/game", s.handleEndGame).Methods("DELETE")
	api.HandleFunc("/players/{id}/game/click", s.handleClick).Methods("POST")
	api.HandleFunc("/players/{id}/saved", s.handleHasSaved).Methods("GET")

	// Images
	api.HandleFunc("/players/{id}/images", s.handleRegisterImages).Methods("PUT")
	api.HandleFunc("/image-sets", s.handleListImageSets).Methods("GET")
	api.HandleFunc("/image-sets/{name}", s.handleGetImageSet).Methods("GET")
	api.HandleFunc("/images/validate", s.handleValidateImage).Methods("POST")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Static files (if needed)
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("./static/")))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"error": message, "code": status})
}

// respondServiceError maps domain errors onto HTTP status codes
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrGameNotStarted),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, imageset.ErrImageSetNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrInvalidPlayerID),
		errors.Is(err, engine.ErrInvalidGridSize),
		errors.Is(err, imageset.ErrInvalidRef),
		errors.Is(err, imageset.ErrUnsupportedType),
		errors.Is(err, imageset.ErrImageTooLarge),
		errors.Is(err, imageset.ErrNotSquare):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			// the upgrader needs the raw writer
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

type gridRequest struct {
	GridSize int `json:"grid_size,omitempty"`
}

func decodeGridRequest(r *http.Request) (int, error) {
	var req gridRequest
	if r.Body == nil {
		return 0, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	return req.GridSize, nil
}

// Game Handlers

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	gridSize, err := decodeGridRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := s.service.StartGame(r.Context(), mux.Vars(r)["id"], gridSize)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	gridSize, err := decodeGridRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := s.service.NewGame(r.Context(), mux.Vars(r)["id"], gridSize)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetGame(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleEndGame(w http.ResponseWriter, r *http.Request) {
	if err := s.service.EndGame(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TileID string `json:"tile_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TileID == "" {
		respondError(w, http.StatusBadRequest, "tile_id is required")
		return
	}

	result, err := s.service.ClickTile(r.Context(), mux.Vars(r)["id"], req.TileID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleHasSaved(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.HasSavedGame(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// Image Handlers

func (s *Server) handleRegisterImages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Images []string `json:"images"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := s.service.RegisterPlayerImages(r.Context(), mux.Vars(r)["id"], req.Images)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleListImageSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.service.ListImageSets(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sets)
}

func (s *Server) handleGetImageSet(w http.ResponseWriter, r *http.Request) {
	set, err := s.service.GetImageSet(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, set)
}

func (s *Server) handleValidateImage(w http.ResponseWriter, r *http.Request) {
	// read one byte past the limit so oversized uploads are reported as such
	data, err := io.ReadAll(io.LimitReader(r.Body, imageset.MaxImageBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	info, err := imageset.ValidateImage(data)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket disabled", http.StatusNotFound)
		return
	}
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		http.Error(w, "player parameter required", http.StatusBadRequest)
		return
	}

	s.hub.ServeWS(w, r, playerID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
