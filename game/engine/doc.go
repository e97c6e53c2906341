// Package engine provides the core game logic for the Memory Tiles game.
//
// The engine package implements:
//   - Deck construction: pairing image references and shuffling them
//   - The flip/match state machine driven by tile clicks
//   - Win detection as a pure predicate over the tiles
//   - Session validation for state restored from storage
//
// Core Types:
//
// Session is the persisted state of one player's game. Game wraps a Session
// and owns the transient evaluating set (the zero to two face-up tiles that
// wait for a match decision). Resolution is delayed through a
// schedule.Scheduler so that tests can drive time explicitly.
//
// Usage:
//
//	sess := engine.NewSession(playerID, imageRefs, engine.GridSize4, nil, time.Now())
//
//	game, err := engine.NewGame(sess, engine.Options{
//		OnChange: func(s engine.Session) { autosaver.Touch(s) },
//		OnWon:    func(s engine.Session) { log.Printf("%s won", s.PlayerID) },
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	game.ClickTile(sess.Tiles[0].ID)
//	game.ClickTile(sess.Tiles[1].ID)
//
// Game Rules:
//
// Clicking a face-down tile flips it and counts a move. When two tiles are
// face up the board locks. A matching pair is marked matched after a short
// reveal delay; a mismatch is turned back face down after a longer one. The
// game is won when every tile is matched.
package engine
