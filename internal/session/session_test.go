package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/tankarena/internal/protocol"
)

func TestAuthenticateIncrementsConnectedPlayers(t *testing.T) {
	r := NewRegistry()
	s := r.AddConnection("conn-1")
	assert.Equal(t, 0, r.ConnectedPlayers())

	r.Authenticate(s, "sess-1")
	assert.True(t, s.Authenticated)
	assert.Equal(t, 1, r.ConnectedPlayers())
}

func TestEnqueueIsFIFO(t *testing.T) {
	r := NewRegistry()
	a := r.AddConnection("a")
	b := r.AddConnection("b")
	r.Authenticate(a, "sess-a")
	r.Authenticate(b, "sess-b")

	r.Enqueue(a)
	r.Enqueue(b)

	popped := r.PopFromQueue(2)
	require.Len(t, popped, 2)
	assert.Same(t, a, popped[0])
	assert.Same(t, b, popped[1])
}

func TestEnqueueIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.AddConnection("a")
	r.Enqueue(a)
	r.Enqueue(a)
	assert.Len(t, r.SnapshotQueue(), 1)
}

func TestPushMessageDiscardsForBots(t *testing.T) {
	r := NewRegistry()
	bots := r.CreateBots(1)
	require.Len(t, bots, 1)

	r.PushMessage(bots[0], protocol.AuthResponse{Success: true})
	assert.Empty(t, r.DrainMessages(bots[0]))
}

func TestDrainMessagesStealsBuffer(t *testing.T) {
	r := NewRegistry()
	s := r.AddConnection("conn-1")
	r.Authenticate(s, "sess-1")

	r.PushMessage(s, protocol.AuthResponse{Success: true})
	r.PushMessage(s, protocol.Heartbeat{})

	drained := r.DrainMessages(s)
	assert.Len(t, drained, 2)
	assert.Empty(t, r.DrainMessages(s))
}

func TestUpdateInputDropsStaleTicks(t *testing.T) {
	r := NewRegistry()
	s := r.AddConnection("conn-1")

	r.UpdateInput(s, protocol.InputCommand{ClientTick: 5, MoveDir: 1})
	r.UpdateInput(s, protocol.InputCommand{ClientTick: 3, MoveDir: -1})

	got := r.GetInputCopy(s)
	assert.Equal(t, float32(1), got.MoveDir)
	assert.Equal(t, uint32(5), got.LastClientTick)
}

func TestDisconnectSessionRemovesFromAllIndices(t *testing.T) {
	r := NewRegistry()
	s := r.AddConnection("conn-1")
	r.Authenticate(s, "sess-1")
	r.Enqueue(s)

	r.DisconnectSession(s)

	assert.Equal(t, 0, r.ConnectedPlayers())
	assert.Empty(t, r.SnapshotQueue())
}

func TestCreateBotsAreAuthenticatedAndQueued(t *testing.T) {
	r := NewRegistry()
	bots := r.CreateBots(3)
	require.Len(t, bots, 3)
	for _, b := range bots {
		assert.True(t, b.IsBot)
		assert.True(t, b.Authenticated)
		assert.True(t, b.InQueue)
	}
	assert.Len(t, r.SnapshotQueue(), 3)

	// Bot ids are unique.
	seen := map[string]bool{}
	for _, b := range bots {
		assert.False(t, seen[b.SessionID])
		seen[b.SessionID] = true
	}
}
