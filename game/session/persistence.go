package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/memory-tiles/game/engine"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidPlayerID = errors.New("invalid player ID")
	ErrGameNotStarted  = errors.New("no game in progress")
)

// Store is durable key-value persistence of sessions keyed by player ID.
//
// Save is a full-state upsert and may be called concurrently for the same
// player; the last write wins. Load returns ErrSessionNotFound when nothing
// is stored, which callers treat as "start a fresh game". Delete is
// idempotent.
type Store interface {
	Save(ctx context.Context, playerID string, session engine.Session) error
	Load(ctx context.Context, playerID string) (engine.Session, error)
	Delete(ctx context.Context, playerID string) error
}

// PersistedSessionData is the envelope written by every backend
type PersistedSessionData struct {
	PlayerID  string         `json:"player_id"`
	State     engine.Session `json:"state"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func encodeSession(playerID string, s engine.Session, now time.Time) ([]byte, error) {
	data, err := json.Marshal(PersistedSessionData{PlayerID: playerID, State: s, UpdatedAt: now})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session data: %w", err)
	}
	return data, nil
}

func decodeSession(raw []byte) (engine.Session, error) {
	var data PersistedSessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return engine.Session{}, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return data.State, nil
}

// normalizePlayerID trims the ID and rejects empty or path-like values.
func normalizePlayerID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlayerID, id)
	}
	return id, nil
}
