package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/wricardo/memory-tiles/game/engine"
	"github.com/wricardo/memory-tiles/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Pending broadcasts before new ones are dropped.
	broadcastBuffer = 256
)

const (
	EventStateUpdate = "state_update"
	EventWon         = "won"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message represents a WebSocket message
type Message struct {
	PlayerID string            `json:"player_id"`
	Event    string            `json:"event"`
	Game     *service.GameView `json:"game,omitempty"`
	Data     interface{}       `json:"data,omitempty"`
}

// WonData is the payload of a "won" event
type WonData struct {
	MoveCount  int `json:"move_count"`
	TotalPairs int `json:"total_pairs"`
	GridSize   int `json:"grid_size"`
}

// Client represents a WebSocket client
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	playerID string
}

// Hub maintains the set of active clients per player and broadcasts game
// updates to them. It implements session.Listener.
type Hub struct {
	log logrus.FieldLogger

	// Registered clients by player ID. Written only by Run.
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool

	// Outbound messages
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		log:        logger.WithField("component", "websocket"),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ServeWS upgrades the request and attaches the connection to playerID
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, playerID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		playerID: playerID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connections watching playerID
func (h *Hub) ClientCount(playerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[playerID])
}

// BroadcastState queues a state_update for the player's clients
func (h *Hub) BroadcastState(playerID string, view *service.GameView) {
	h.enqueue(&Message{PlayerID: playerID, Event: EventStateUpdate, Game: view})
}

// BroadcastEvent queues a custom event for the player's clients
func (h *Hub) BroadcastEvent(playerID string, event string, data interface{}) {
	h.enqueue(&Message{PlayerID: playerID, Event: event, Data: data})
}

// SessionUpdated implements session.Listener
func (h *Hub) SessionUpdated(playerID string, s engine.Session) {
	h.BroadcastState(playerID, service.NewGameView(s))
}

// GameWon implements session.Listener
func (h *Hub) GameWon(playerID string, s engine.Session) {
	h.BroadcastEvent(playerID, EventWon, WonData{
		MoveCount:  s.MoveCount,
		TotalPairs: s.TotalPairs(),
		GridSize:   int(s.GridSize),
	})
}

// enqueue never blocks: it is called while a game holds its lock.
func (h *Hub) enqueue(m *Message) {
	select {
	case h.broadcast <- m:
	default:
		h.log.WithFields(logrus.Fields{"player_id": m.PlayerID, "event": m.Event}).Warn("broadcast queue full, dropping message")
	}
}

// registerClient adds a client to its player's room
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[client.playerID] == nil {
		h.rooms[client.playerID] = make(map[*Client]bool)
	}
	h.rooms[client.playerID][client] = true

	h.log.WithFields(logrus.Fields{
		"player_id": client.playerID,
		"clients":   len(h.rooms[client.playerID]),
	}).Debug("client registered")
}

// unregisterClient removes a client from its player's room
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.playerID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)

	if len(clients) == 0 {
		delete(h.rooms, client.playerID)
	}
	h.log.WithFields(logrus.Fields{
		"player_id": client.playerID,
		"clients":   len(clients),
	}).Debug("client unregistered")
}

// broadcastMessage sends a message to all clients of a player
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal broadcast message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[message.PlayerID] {
		select {
		case client.send <- data:
		default:
			h.removeLocked(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Clients only listen; incoming messages are ignored
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Debug("websocket closed")
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
