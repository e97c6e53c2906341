package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/wricardo/memory-tiles/game/engine"
)

// SubjectGameWon carries one WonEvent per finished game.
const SubjectGameWon = "memory.game.won"

// WonEvent is the JSON payload published on SubjectGameWon.
type WonEvent struct {
	PlayerID  string    `json:"player_id"`
	MoveCount int       `json:"move_count"`
	GridSize  int       `json:"grid_size"`
	WonAt     time.Time `json:"won_at"`
}

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher announces won games on NATS. It implements session.Listener.
type Publisher struct {
	conn    Conn
	subject string
	log     logrus.FieldLogger
}

// Connect dials url with reconnect settings suitable for a long-running
// server.
func Connect(url, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// NewPublisher wraps conn.
func NewPublisher(conn Conn, logger logrus.FieldLogger) *Publisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Publisher{conn: conn, subject: SubjectGameWon, log: logger.WithField("component", "nats")}
}

// SessionUpdated implements session.Listener. Only wins are published.
func (p *Publisher) SessionUpdated(playerID string, s engine.Session) {}

// GameWon implements session.Listener.
func (p *Publisher) GameWon(playerID string, s engine.Session) {
	event := WonEvent{
		PlayerID:  playerID,
		MoveCount: s.MoveCount,
		GridSize:  int(s.GridSize),
		WonAt:     s.LastPlayedAt,
	}
	if err := p.Publish(event); err != nil {
		p.log.WithError(err).WithField("player_id", playerID).Warn("failed to publish win")
	}
}

// Publish sends event on the won subject. nats.Conn buffers the write, so
// this does not wait for the server.
func (p *Publisher) Publish(event WonEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal won event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

// DecodeWonEvent parses a message received on SubjectGameWon.
func DecodeWonEvent(data []byte) (WonEvent, error) {
	var e WonEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return WonEvent{}, fmt.Errorf("decode won event: %w", err)
	}
	return e, nil
}
