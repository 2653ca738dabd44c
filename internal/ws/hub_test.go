package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ranaran315/campus-backend-sub000/internal/models"
)

func activeSessionGauge(t *testing.T) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "campus_chat_ws_active_connections" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "kind" && label.GetValue() == "session" {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

type fakeConn struct {
	mu        sync.Mutex
	frames    [][]byte
	closed    bool
	failWrite bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("write failed")
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestRegisterLastConnectionWins(t *testing.T) {
	hub := NewHub()

	first := &fakeConn{}
	second := &fakeConn{}
	hub.Register(first, ConnInfo{ConnID: "c1", UserID: "u1"})
	hub.Register(second, ConnInfo{ConnID: "c2", UserID: "u1"})

	assert.True(t, first.isClosed())
	assert.True(t, hub.IsOnline("u1"))

	delivered := hub.SendToUser("u1", models.DirectMessagePayload{})
	require.True(t, delivered)
	assert.Equal(t, 0, first.frameCount())
	assert.Equal(t, 1, second.frameCount())
}

func TestUnregisterIgnoresStaleHandle(t *testing.T) {
	hub := NewHub()

	stale := hub.Register(&fakeConn{}, ConnInfo{ConnID: "c1", UserID: "u1"})
	hub.Register(&fakeConn{}, ConnInfo{ConnID: "c2", UserID: "u1"})

	// The displaced connection's teardown runs after the reconnect.
	hub.Unregister(stale)

	assert.True(t, hub.IsOnline("u1"))
}

func TestUnregisterRemovesLiveConnection(t *testing.T) {
	hub := NewHub()

	client := hub.Register(&fakeConn{}, ConnInfo{ConnID: "c1", UserID: "u1"})
	hub.Unregister(client)

	assert.False(t, hub.IsOnline("u1"))
	assert.False(t, hub.SendToUser("u1", models.DirectMessagePayload{}))
}

func TestSendToUserOffline(t *testing.T) {
	hub := NewHub()
	assert.False(t, hub.SendToUser("nobody", models.DirectMessagePayload{}))
}

func TestSendToUserEncodesEnvelope(t *testing.T) {
	hub := NewHub()
	conn := &fakeConn{}
	hub.Register(conn, ConnInfo{ConnID: "c1", UserID: "u1"})

	require.True(t, hub.SendToUser("u1", models.AnnouncementPayload{ID: "a1", Title: "exam moved"}))

	require.Equal(t, 1, conn.frameCount())
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(conn.frames[0], &envelope))
	assert.Equal(t, string(models.EventAnnouncement), envelope.Type)
}

func TestSendToUserWriteErrorEvicts(t *testing.T) {
	hub := NewHub()
	hub.Register(&fakeConn{failWrite: true}, ConnInfo{ConnID: "c1", UserID: "u1"})

	assert.False(t, hub.SendToUser("u1", models.DirectMessagePayload{}))
	assert.False(t, hub.IsOnline("u1"))
}

func TestBroadcastToGroupRoom(t *testing.T) {
	hub := NewHub()

	connA := &fakeConn{}
	connB := &fakeConn{}
	connC := &fakeConn{}
	a := hub.Register(connA, ConnInfo{ConnID: "c1", UserID: "u1"})
	b := hub.Register(connB, ConnInfo{ConnID: "c2", UserID: "u2"})
	hub.Register(connC, ConnInfo{ConnID: "c3", UserID: "u3"})

	hub.JoinRoom(a, "g1")
	hub.JoinRoom(b, "g1")

	hub.BroadcastToGroupRoom("g1", models.GroupMessagePayload{GroupID: "g1"})

	assert.Equal(t, 1, connA.frameCount())
	assert.Equal(t, 1, connB.frameCount())
	assert.Equal(t, 0, connC.frameCount())
}

func TestBroadcastEvictsBrokenConnection(t *testing.T) {
	hub := NewHub()

	healthy := &fakeConn{}
	a := hub.Register(healthy, ConnInfo{ConnID: "c1", UserID: "u1"})
	b := hub.Register(&fakeConn{failWrite: true}, ConnInfo{ConnID: "c2", UserID: "u2"})
	hub.JoinRoom(a, "g1")
	hub.JoinRoom(b, "g1")

	hub.BroadcastToGroupRoom("g1", models.GroupMessagePayload{GroupID: "g1"})

	assert.Equal(t, 1, healthy.frameCount())
	assert.False(t, hub.IsOnline("u2"))
	assert.True(t, hub.IsOnline("u1"))
}

func TestActiveGaugeDecrementsOnceForEvictedConnection(t *testing.T) {
	hub := NewHub()
	base := activeSessionGauge(t)

	client := hub.Register(&fakeConn{failWrite: true}, ConnInfo{ConnID: "c1", UserID: "u1"})
	assert.Equal(t, base+1, activeSessionGauge(t))

	// Write failure evicts the connection.
	require.False(t, hub.SendToUser("u1", models.DirectMessagePayload{}))
	assert.Equal(t, base, activeSessionGauge(t))

	// The read loop's deferred teardown then runs on the same client.
	hub.Unregister(client)
	assert.Equal(t, base, activeSessionGauge(t))
}

func TestActiveGaugeTracksDisplacedConnection(t *testing.T) {
	hub := NewHub()
	base := activeSessionGauge(t)

	stale := hub.Register(&fakeConn{}, ConnInfo{ConnID: "c1", UserID: "u1"})
	live := hub.Register(&fakeConn{}, ConnInfo{ConnID: "c2", UserID: "u1"})
	assert.Equal(t, base+1, activeSessionGauge(t))

	hub.Unregister(stale)
	assert.Equal(t, base+1, activeSessionGauge(t))

	hub.Unregister(live)
	assert.Equal(t, base, activeSessionGauge(t))
}

func TestUnregisterCleansRooms(t *testing.T) {
	hub := NewHub()

	client := hub.Register(&fakeConn{}, ConnInfo{ConnID: "c1", UserID: "u1"})
	hub.JoinRoom(client, "g1")
	hub.Unregister(client)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	assert.Empty(t, hub.rooms)
}
