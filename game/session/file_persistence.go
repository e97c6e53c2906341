package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wricardo/memory-tiles/game/engine"
)

// FileStore implements Store with one JSON file per player
type FileStore struct {
	sessionsDir string
}

// NewFileStore creates a file-based store rooted at sessionsDir
func NewFileStore(sessionsDir string) (*FileStore, error) {
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &FileStore{sessionsDir: sessionsDir}, nil
}

// Save writes the session atomically through a temp file and rename
func (fs *FileStore) Save(ctx context.Context, playerID string, s engine.Session) error {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return err
	}

	jsonData, err := encodeSession(id, s, time.Now())
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(fs.sessionsDir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	if _, err := tmp.Write(jsonData); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.getFilePath(id)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	return nil
}

// Load reads a session from its JSON file
func (fs *FileStore) Load(ctx context.Context, playerID string) (engine.Session, error) {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return engine.Session{}, err
	}

	jsonData, err := os.ReadFile(fs.getFilePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return engine.Session{}, ErrSessionNotFound
		}
		return engine.Session{}, fmt.Errorf("failed to read session file: %w", err)
	}

	return decodeSession(jsonData)
}

// Delete removes a session file
func (fs *FileStore) Delete(ctx context.Context, playerID string) error {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return err
	}

	if err := os.Remove(fs.getFilePath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// ListAll returns the IDs of all players with a saved session
func (fs *FileStore) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fs.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var playerIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			playerIDs = append(playerIDs, strings.TrimSuffix(name, ".json"))
		}
	}

	return playerIDs, nil
}

// getFilePath returns the full file path for a player ID
func (fs *FileStore) getFilePath(id string) string {
	return filepath.Join(fs.sessionsDir, fmt.Sprintf("%s.json", id))
}
