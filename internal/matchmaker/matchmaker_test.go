package matchmaker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/udisondev/tankarena/internal/config"
	"github.com/udisondev/tankarena/internal/match"
	"github.com/udisondev/tankarena/internal/session"
)

func TestStagedTargetUsesCeilingNotFloor(t *testing.T) {
	// max_players=7: floor(0.25*7)=1 but ceil(0.25*7)=2. The staged
	// fill schedule must round up, never down or to nearest.
	assert.Equal(t, 2, stagedTarget(0.30, 7))
	assert.Equal(t, 4, stagedTarget(0.60, 7))
	assert.Equal(t, 6, stagedTarget(0.80, 7))
	assert.Equal(t, 7, stagedTarget(1.00, 7))
	assert.Equal(t, 0, stagedTarget(0.10, 7))
}

func TestPollOnceFormsMatchAtCapacity(t *testing.T) {
	reg := session.NewRegistry()
	cfg := config.Default()
	cfg.MaxPlayersPerMatch = 2
	cfg.FillTimeoutSeconds = 20
	cfg.TickRate = 30

	mm := New(reg, cfg, nil)

	var formed *match.Context
	mm.OnMatchFormed = func(mc *match.Context) { formed = mc }

	a := reg.AddConnection("a")
	reg.Authenticate(a, "sess-a")
	reg.Enqueue(a)
	b := reg.AddConnection("b")
	reg.Authenticate(b, "sess-b")
	reg.Enqueue(b)

	mm.pollOnce()

	if !assert.NotNil(t, formed) {
		return
	}
	assert.Len(t, formed.Tanks, 2)
	assert.Empty(t, reg.SnapshotQueue())
}

func TestPollOnceStagesBotFillUnderTimeout(t *testing.T) {
	reg := session.NewRegistry()
	cfg := config.Default()
	cfg.MaxPlayersPerMatch = 8
	cfg.FillTimeoutSeconds = 20
	cfg.TickRate = 30

	mm := New(reg, cfg, nil)

	a := reg.AddConnection("a")
	reg.Authenticate(a, "sess-a")
	reg.Enqueue(a)

	mm.pollOnce()

	// A freshly queued session has waited ~0s, so frac~0 and no bots
	// should be injected yet.
	assert.Len(t, reg.SnapshotQueue(), 1)
}
