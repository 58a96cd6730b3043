package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/tankarena/internal/session"
)

func TestSweepDisconnectsTimedOutSessions(t *testing.T) {
	reg := session.NewRegistry()
	s := reg.AddConnection("conn-1")
	reg.Authenticate(s, "sess-1")
	require.Equal(t, 1, reg.ConnectedPlayers())

	// Force LastHeartbeat into the past via the normal update path, then
	// sleep past a tiny timeout.
	reg.UpdateHeartbeat(s)

	mon := New(reg, 1*time.Millisecond, 5*time.Millisecond, nil)
	time.Sleep(5 * time.Millisecond)
	mon.sweep()

	assert.Equal(t, 0, reg.ConnectedPlayers())
}

func TestSweepIgnoresBots(t *testing.T) {
	reg := session.NewRegistry()
	reg.CreateBots(1)

	mon := New(reg, time.Nanosecond, time.Millisecond, nil)
	time.Sleep(time.Millisecond)
	mon.sweep()

	assert.Len(t, reg.SnapshotAuthenticated(), 1)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	reg := session.NewRegistry()
	mon := New(reg, time.Second, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
