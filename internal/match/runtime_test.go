package match

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/tankarena/internal/physics"
	"github.com/udisondev/tankarena/internal/session"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	reg := session.NewRegistry()
	tuning := TuningParams{
		SnapshotIntervalTicks:     1,
		FullSnapshotIntervalTicks: 10,
		MaxTicks:                  1000,
		MovementSpeed:             100,
		ProjectileSpeed:           300,
		ProjectileDamage:          25,
		ProjectileMaxLifetimeSec:  3,
		FireCooldownSec:           0.5,
		ReloadIntervalSec:         2,
		PenetrationFactor:         0.60,
		BotFireIntervalTicks:      30,
		MapWidth:                  1000,
		MapHeight:                 1000,
	}
	return NewContext("match-test", 1, 30, tuning, reg, nil)
}

func TestEntityAndProjectileIDsNeverReused(t *testing.T) {
	c := newTestContext(t)
	seen := map[uint32]bool{}
	for i := 0; i < 50; i++ {
		id := c.AllocEntityID()
		require.False(t, seen[id])
		seen[id] = true
	}

	seenProj := map[uint32]bool{}
	for i := 0; i < 50; i++ {
		id := c.AllocProjectileID()
		require.False(t, seenProj[id])
		seenProj[id] = true
	}
}

func TestFriendlySelfFireIsNotDamaged(t *testing.T) {
	c := newTestContext(t)
	id := c.AllocEntityID()
	c.Tanks[id] = &TankState{EntityID: id, Position: physics.Vec2{X: 100, Y: 100}, HP: 100, Ammo: MaxAmmo}

	projID := c.AllocProjectileID()
	c.Projectiles[projID] = &ProjectileState{
		ProjectileID:  projID,
		Position:      physics.Vec2{X: 100, Y: 100},
		Velocity:      physics.Vec2{X: 1, Y: 0},
		OwnerEntityID: id, // the same tank owns this projectile
		InitialSpeed:  300,
	}

	c.tick(rand.New(rand.NewSource(1)), 1.0/30)

	assert.Equal(t, uint16(100), c.Tanks[id].HP, "owner must not take damage from its own projectile")
}

func TestPenetrationRuleAppliesDamageAboveThreshold(t *testing.T) {
	c := newTestContext(t)
	attacker := c.AllocEntityID()
	victim := c.AllocEntityID()
	c.Tanks[attacker] = &TankState{EntityID: attacker, Position: physics.Vec2{X: 0, Y: 500}, HP: 100, Ammo: MaxAmmo}
	c.Tanks[victim] = &TankState{EntityID: victim, Position: physics.Vec2{X: 100, Y: 100}, HP: 100, Ammo: MaxAmmo}

	// A projectile just short of the victim's center, heading into it
	// fast enough to exceed penetration_factor * initial_speed.
	projID := c.AllocProjectileID()
	c.Projectiles[projID] = &ProjectileState{
		ProjectileID:    projID,
		Position:        c.Tanks[victim].Position.Sub(physics.Vec2{X: 15, Y: 0}),
		Velocity:        physics.Vec2{X: 1, Y: 0},
		PreStepVelocity: physics.Vec2{X: 300, Y: 0}, // well above 0.60*300
		OwnerEntityID:   attacker,
		InitialSpeed:    300,
	}

	// Manually invoke the contact-processing portion by running a tick;
	// pre-step velocity gets overwritten to current Velocity at tick
	// start, so set Velocity high enough directly instead.
	c.Projectiles[projID].Velocity = physics.Vec2{X: 300, Y: 0}

	c.tick(rand.New(rand.NewSource(1)), 1.0/30)

	assert.Less(t, c.Tanks[victim].HP, uint16(100))
	assert.Empty(t, c.Projectiles, "projectile is consumed on any contact")
}

func TestMatchEndDispatchedExactlyOnce(t *testing.T) {
	c := newTestContext(t)
	a := c.AllocEntityID()
	c.Tanks[a] = &TankState{EntityID: a, HP: 100, Ammo: MaxAmmo}

	c.tick(rand.New(rand.NewSource(1)), 1.0/30)
	assert.True(t, c.MatchEnded)
	assert.True(t, c.EndDispatched)

	// A further dispatch attempt must not succeed.
	dispatchedAgain := c.tryDispatchEnd()
	assert.False(t, dispatchedAgain)
}

func TestAmmoBoxPickupRefillsAndDeactivates(t *testing.T) {
	c := newTestContext(t)
	c.Tuning.AmmoBoxRefillAmount = 3
	id := c.AllocEntityID()
	c.Tanks[id] = &TankState{EntityID: id, Position: physics.Vec2{X: 200, Y: 200}, HP: 100, Ammo: 1}

	boxID := c.AllocEntityID()
	c.AmmoBoxes[boxID] = &AmmoBox{ID: boxID, Position: physics.Vec2{X: 200, Y: 200}, Active: true}

	c.tick(rand.New(rand.NewSource(1)), 1.0/30)

	assert.Equal(t, uint16(4), c.Tanks[id].Ammo)
	assert.False(t, c.AmmoBoxes[boxID].Active, "box must deactivate on pickup, not be removed")
}

func TestTankPushesOverlappingCrate(t *testing.T) {
	c := newTestContext(t)
	id := c.AllocEntityID()
	c.Tanks[id] = &TankState{EntityID: id, Position: physics.Vec2{X: 200, Y: 200}, HP: 100, Ammo: MaxAmmo}

	crateID := c.AllocEntityID()
	start := physics.Vec2{X: 205, Y: 200}
	c.Crates[crateID] = &Crate{ID: crateID, Position: start}

	c.tick(rand.New(rand.NewSource(1)), 1.0/30)

	moved := c.Crates[crateID].Position
	assert.NotEqual(t, start, moved, "overlapping crate must be pushed")
}

func TestSnapshotTickIsMonotonic(t *testing.T) {
	c := newTestContext(t)
	a := c.AllocEntityID()
	b := c.AllocEntityID()
	c.Tanks[a] = &TankState{EntityID: a, HP: 100, Ammo: MaxAmmo, Position: physics.Vec2{X: 10, Y: 10}}
	c.Tanks[b] = &TankState{EntityID: b, HP: 100, Ammo: MaxAmmo, Position: physics.Vec2{X: 900, Y: 900}}

	first := c.CurrentTick
	c.tick(rand.New(rand.NewSource(1)), 1.0/30)
	assert.Greater(t, c.CurrentTick, first)
}
