package match

import (
	"math"

	"github.com/udisondev/tankarena/internal/protocol"
)

// Change thresholds below which a tank or crate is considered
// unchanged for delta-snapshot purposes. Chosen so that floating-point
// jitter from physics integration never triggers a spurious update.
const (
	positionChangeThreshold = 0.05
	angleChangeThreshold    = 0.01 // radians
)

func tankWire(t *TankState) protocol.TankWire {
	return protocol.TankWire{
		EntityID:       t.EntityID,
		X:              float32(t.Position.X),
		Y:              float32(t.Position.Y),
		HullAngleDeg:   float32(t.HullAngle * 180 / math.Pi),
		TurretAngleDeg: float32(t.TurretAngle * 180 / math.Pi),
		HP:             t.HP,
		Ammo:           t.Ammo,
	}
}

func projectileWire(p *ProjectileState) protocol.ProjectileWire {
	return protocol.ProjectileWire{
		ProjectileID: p.ProjectileID,
		X:            float32(p.Position.X),
		Y:            float32(p.Position.Y),
		VX:           float32(p.Velocity.X),
		VY:           float32(p.Velocity.Y),
	}
}

func crateWire(c *Crate) protocol.CrateWire {
	return protocol.CrateWire{ID: c.ID, X: float32(c.Position.X), Y: float32(c.Position.Y), RotationDeg: float32(c.RotationDeg)}
}

// buildFullSnapshot produces a complete world snapshot and resets the
// delta-diffing baseline to the values just sent.
func (c *Context) buildFullSnapshot() protocol.StateSnapshot {
	snap := protocol.StateSnapshot{
		ServerTick: c.CurrentTick,
		MapWidth:   float32(c.Tuning.MapWidth),
		MapHeight:  float32(c.Tuning.MapHeight),
	}

	c.lastSentTanks = make(map[uint32]TankState, len(c.Tanks))
	for id, t := range c.Tanks {
		if t.Destroyed {
			continue
		}
		snap.Tanks = append(snap.Tanks, tankWire(t))
		c.lastSentTanks[id] = *t
	}

	c.sentProjectiles = make(map[uint32]bool, len(c.Projectiles))
	for id, p := range c.Projectiles {
		snap.Projectiles = append(snap.Projectiles, projectileWire(p))
		c.sentProjectiles[id] = true
	}

	c.lastSentCrates = make(map[uint32]Crate, len(c.Crates))
	for id, cr := range c.Crates {
		snap.Crates = append(snap.Crates, crateWire(cr))
		c.lastSentCrates[id] = *cr
	}

	for _, b := range c.AmmoBoxes {
		if !b.Active {
			continue
		}
		snap.AmmoBoxes = append(snap.AmmoBoxes, protocol.AmmoBoxWire{ID: b.ID, X: float32(b.Position.X), Y: float32(b.Position.Y)})
	}

	c.lastFullSnapshotTick = c.CurrentTick
	return snap
}

// buildDeltaSnapshot produces a snapshot carrying only what changed
// since the last full snapshot's baseline, updating that baseline for
// every tank and crate it includes.
func (c *Context) buildDeltaSnapshot() protocol.DeltaSnapshot {
	delta := protocol.DeltaSnapshot{
		ServerTick: c.CurrentTick,
		BaseTick:   c.lastFullSnapshotTick,
	}

	for id, t := range c.Tanks {
		if t.Destroyed {
			continue
		}
		if baseline, ok := c.lastSentTanks[id]; !ok || tankChanged(baseline, *t) {
			delta.Tanks = append(delta.Tanks, tankWire(t))
			c.lastSentTanks[id] = *t
		}
	}
	for id := range c.lastSentTanks {
		if t, alive := c.Tanks[id]; !alive || t.Destroyed {
			delta.RemovedTanks = append(delta.RemovedTanks, id)
			delete(c.lastSentTanks, id)
		}
	}

	for id, p := range c.Projectiles {
		if !c.sentProjectiles[id] {
			delta.Projectiles = append(delta.Projectiles, projectileWire(p))
			c.sentProjectiles[id] = true
		}
	}
	for id := range c.sentProjectiles {
		if _, alive := c.Projectiles[id]; !alive {
			delta.RemovedProjectiles = append(delta.RemovedProjectiles, id)
			delete(c.sentProjectiles, id)
		}
	}

	for id, cr := range c.Crates {
		if baseline, ok := c.lastSentCrates[id]; !ok || crateChanged(baseline, *cr) {
			delta.Crates = append(delta.Crates, crateWire(cr))
			c.lastSentCrates[id] = *cr
		}
	}
	for id := range c.lastSentCrates {
		if _, alive := c.Crates[id]; !alive {
			delta.RemovedCrates = append(delta.RemovedCrates, id)
			delete(c.lastSentCrates, id)
		}
	}

	return delta
}

func tankChanged(a, b TankState) bool {
	if a.HP != b.HP || a.Ammo != b.Ammo {
		return true
	}
	if math.Abs(a.Position.X-b.Position.X) > positionChangeThreshold {
		return true
	}
	if math.Abs(a.Position.Y-b.Position.Y) > positionChangeThreshold {
		return true
	}
	if math.Abs(a.HullAngle-b.HullAngle) > angleChangeThreshold {
		return true
	}
	if math.Abs(a.TurretAngle-b.TurretAngle) > angleChangeThreshold {
		return true
	}
	return false
}

func crateChanged(a, b Crate) bool {
	if math.Abs(a.Position.X-b.Position.X) > positionChangeThreshold {
		return true
	}
	if math.Abs(a.Position.Y-b.Position.Y) > positionChangeThreshold {
		return true
	}
	if math.Abs(a.RotationDeg-b.RotationDeg) > angleChangeThreshold*180/math.Pi {
		return true
	}
	return false
}
