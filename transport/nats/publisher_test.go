package nats

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/memory-tiles/game/engine"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func wonSession() engine.Session {
	images := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	s := engine.NewSession("p1", images, engine.GridSize4, engine.NewSeededRand(1), time.Unix(0, 0).UTC())
	for i := range s.Tiles {
		s.Tiles[i].FaceUp = true
		s.Tiles[i].Matched = true
	}
	s.MatchedPairCount = 8
	s.MoveCount = 22
	s.LastPlayedAt = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return s
}

func TestPublisher_GameWon(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, nil)

	p.SessionUpdated("p1", wonSession())
	assert.Empty(t, conn.subjects, "state updates are not published")

	p.GameWon("p1", wonSession())
	require.Len(t, conn.subjects, 1)
	assert.Equal(t, SubjectGameWon, conn.subjects[0])

	event, err := DecodeWonEvent(conn.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, "p1", event.PlayerID)
	assert.Equal(t, 22, event.MoveCount)
	assert.Equal(t, 4, event.GridSize)
	assert.True(t, event.WonAt.Equal(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)))

	assert.JSONEq(t,
		`{"player_id":"p1","move_count":22,"grid_size":4,"won_at":"2026-05-01T10:00:00Z"}`,
		string(conn.payloads[0]))
}

func TestPublisher_ErrorIsSwallowedByListener(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := NewPublisher(conn, nil)

	assert.NotPanics(t, func() { p.GameWon("p1", wonSession()) })
	assert.Error(t, p.Publish(WonEvent{PlayerID: "p1"}))
}

func TestDecodeWonEvent_Invalid(t *testing.T) {
	_, err := DecodeWonEvent([]byte("nope"))
	assert.Error(t, err)
}

func TestPublisher_LiveServer(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	nc, err := Connect(url, "memory-tiles-test")
	require.NoError(t, err)
	defer nc.Close()

	received := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(SubjectGameWon, received)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	NewPublisher(nc, nil).GameWon("p1", wonSession())
	require.NoError(t, nc.Flush())

	select {
	case msg := <-received:
		event, err := DecodeWonEvent(msg.Data)
		require.NoError(t, err)
		assert.Equal(t, "p1", event.PlayerID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
