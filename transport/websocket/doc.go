// Package websocket pushes live game updates to browsers.
//
// Clients connect to /ws?player=<id> and only listen. The Hub is registered
// as a session.Listener, so every state change of a player's game is sent
// to that player's connections:
//
//	{"player_id":"p1","event":"state_update","game":{...GameView...}}
//	{"player_id":"p1","event":"won","data":{"move_count":24,"total_pairs":8,"grid_size":4}}
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//	manager.AddListener(hub)
//
// Broadcasts are queued without blocking. When the queue is full the
// message is dropped; the next state_update carries the full state anyway.
package websocket
