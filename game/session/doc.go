// Package session keeps players' memory games alive and durable.
//
// A Manager holds at most one live engine.Game per player. Every state
// change of a live game is handed to the player's Autosaver, which waits
// for a quiet period (one second by default) and then writes the newest
// snapshot to the configured Store. Rapid clicks therefore produce a
// single write.
//
// Store backends:
//
//   - MemoryStore: in-process map, used by tests and the default setup
//   - FileStore: one JSON file per player
//   - SQLiteStore: modernc.org/sqlite, table game_states
//   - PostgresStore: pgx pool, table game_states, upsert on player_id
//   - RedisStore: one key per player with optional TTL
//
// Loading a player with nothing stored yields ErrSessionNotFound, which the
// Manager treats as "start a fresh game".
//
// Usage:
//
//	mgr, err := session.NewManager(session.Options{
//		Store:  session.NewMemoryStore(),
//		Images: images,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	s, err := mgr.Start(ctx, "player-1", engine.GridSize4)
//	s, accepted, err := mgr.Click(ctx, "player-1", s.Tiles[0].ID)
//
//	// On shutdown write pending snapshots
//	_ = mgr.Close(ctx)
package session
