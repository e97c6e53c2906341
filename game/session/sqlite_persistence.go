package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/wricardo/memory-tiles/game/engine"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS game_states (
	player_id  TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore persists sessions in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite db: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save upserts the session row for playerID.
func (s *SQLiteStore) Save(ctx context.Context, playerID string, sess engine.Session) error {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return err
	}
	now := time.Now()
	payload, err := encodeSession(id, sess, now)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO game_states (player_id, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		id, string(payload), now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert game state: %w", err)
	}
	return nil
}

// Load returns the stored session for playerID.
func (s *SQLiteStore) Load(ctx context.Context, playerID string) (engine.Session, error) {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return engine.Session{}, err
	}

	var payload string
	err = s.db.QueryRowContext(ctx, `SELECT state FROM game_states WHERE player_id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.Session{}, ErrSessionNotFound
		}
		return engine.Session{}, fmt.Errorf("select game state: %w", err)
	}
	return decodeSession([]byte(payload))
}

// Delete removes the row for playerID, if any.
func (s *SQLiteStore) Delete(ctx context.Context, playerID string) error {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM game_states WHERE player_id = ?`, id); err != nil {
		return fmt.Errorf("delete game state: %w", err)
	}
	return nil
}
