package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wricardo/memory-tiles/game/engine"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS game_states (
	player_id  TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore persists sessions in a game_states table, upserting on
// player_id.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// Save implements Store
func (p *PostgresStore) Save(ctx context.Context, playerID string, s engine.Session) error {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return err
	}
	payload, err := encodeSession(id, s, time.Now())
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO game_states (player_id, state, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (player_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		id, payload,
	)
	if err != nil {
		return fmt.Errorf("upsert game state: %w", err)
	}
	return nil
}

// Load implements Store
func (p *PostgresStore) Load(ctx context.Context, playerID string) (engine.Session, error) {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return engine.Session{}, err
	}

	var payload []byte
	err = p.pool.QueryRow(ctx, `SELECT state FROM game_states WHERE player_id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.Session{}, ErrSessionNotFound
		}
		return engine.Session{}, fmt.Errorf("select game state: %w", err)
	}
	return decodeSession(payload)
}

// Delete implements Store
func (p *PostgresStore) Delete(ctx context.Context, playerID string) error {
	id, err := normalizePlayerID(playerID)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, `DELETE FROM game_states WHERE player_id = $1`, id); err != nil {
		return fmt.Errorf("delete game state: %w", err)
	}
	return nil
}
