package match

import (
	"context"
	"math/rand"
	"time"

	"github.com/udisondev/tankarena/internal/metrics"
	"github.com/udisondev/tankarena/internal/physics"
	"github.com/udisondev/tankarena/internal/protocol"
	"github.com/udisondev/tankarena/internal/session"
)

// Run drives the match's fixed-rate tick loop until the match ends or
// ctx is canceled (process shutdown). A single goroutine owns the
// Context for its entire lifetime — there is no intra-match
// parallelism. Tanks and projectiles are visited in Go map order and
// bots draw from the seeded rng in that order, so two runs with the
// same seed are not guaranteed to play out identically.
func (c *Context) Run(ctx context.Context) {
	rng := rand.New(rand.NewSource(int64(c.Seed)))
	dt := 1.0 / float64(c.TickRate)
	ticker := time.NewTicker(time.Duration(float64(time.Second) * dt))
	defer ticker.Stop()

	c.emitMatchStartSnapshots()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tickStart := time.Now()
		c.tick(rng, dt)
		metrics.RecordTickDuration(time.Since(tickStart))

		if c.EndDispatched {
			return
		}
	}
}

func (c *Context) emitMatchStartSnapshots() {
	snap := c.buildFullSnapshot()
	c.broadcast(snap)
}

// tick runs one full simulation step: input, physics, contacts,
// lifecycle, snapshot emission, and termination check — steps 1
// through 11 of the match runtime design, in order.
func (c *Context) tick(rng *rand.Rand, dt float64) {
	var damageEvents []protocol.DamageEvent
	var kills []KillEntry

	// 0. Apply any disconnects queued since the last tick.
	c.drainPendingDisconnects()

	// 1. Input collection.
	inputs := make(map[uint32]protocol.InputCommand, len(c.Tanks))
	for id, t := range c.Tanks {
		if t.Destroyed {
			continue
		}
		if t.IsBot {
			inputs[id] = c.synthesizeBotInput(rng, t)
			continue
		}
		s := c.sessionFor(t.OwnerSessionID)
		if s == nil {
			continue
		}
		in := c.registry.GetInputCopy(s)
		inputs[id] = protocol.InputCommand{
			MoveDir:    in.MoveDir,
			TurnDir:    in.TurnDir,
			TurretTurn: in.TurretTurn,
			Fire:       in.Fire,
			Brake:      in.Brake,
		}
	}

	// 2. Pre-step velocity capture.
	for _, p := range c.Projectiles {
		p.PreStepVelocity = p.Velocity
	}

	// 3. Physics step + 4. transform sync.
	for id, t := range c.Tanks {
		if t.Destroyed {
			continue
		}
		in := inputs[id]
		moveDir := float64(in.MoveDir)
		if in.Brake {
			moveDir = 0
		}
		t.body.Position = t.Position
		t.body.HullAngle = t.HullAngle
		t.body.TurretAngle = t.TurretAngle

		turretTarget := t.body.TurretTurnToTarget(float64(in.TurretTurn), dt)
		t.body.Step(physics.TrackedDriveInput{MoveDir: moveDir, TurnDir: float64(in.TurnDir)}, turretTarget, c.Tuning.MovementSpeed, dt)

		t.Position = clampToMap(t.body.Position, c.Tuning.MapWidth, c.Tuning.MapHeight)
		t.HullAngle = t.body.HullAngle
		t.TurretAngle = t.body.TurretAngle
	}
	for _, p := range c.Projectiles {
		p.body.Position = p.Position
		p.body.Velocity = p.Velocity
		p.body.Step(dt)
		p.Position = p.body.Position
	}

	// 5. Contact processing.
	for pid, p := range c.Projectiles {
		for tid, t := range c.Tanks {
			if t.Destroyed || tid == p.OwnerEntityID {
				continue
			}
			if !physics.CircleOverlap(p.Position, physics.ProjectileRadius, t.Position, physics.TankRadius) {
				continue
			}

			normal := physics.ContactNormal(p.Position, t.Position)
			intoSpeedPre := p.PreStepVelocity.Dot(normal)
			required := c.Tuning.PenetrationFactor * p.InitialSpeed

			if intoSpeedPre >= required {
				dmg := c.Tuning.ProjectileDamage
				if dmg > int(t.HP) {
					dmg = int(t.HP)
				}
				t.HP -= uint16(dmg)
				damageEvents = append(damageEvents, protocol.DamageEvent{
					Victim: tid, Attacker: p.OwnerEntityID, Amount: uint16(dmg), RemainingHP: t.HP,
				})
				if t.HP == 0 {
					t.Destroyed = true
					kills = append(kills, KillEntry{Victim: tid, Attacker: p.OwnerEntityID})
				}
			}
			delete(c.Projectiles, pid)
			break
		}
	}

	// 5b. Tank↔crate pushing and tank↔ammo-box pickup.
	for _, t := range c.Tanks {
		if t.Destroyed {
			continue
		}
		for _, cr := range c.Crates {
			if !physics.CircleOverlap(t.Position, physics.TankRadius, cr.Position, physics.CrateRadius) {
				continue
			}
			push := physics.ContactNormal(t.Position, cr.Position)
			cr.Position = cr.Position.Add(push.Scale(c.Tuning.MovementSpeed * dt))
			cr.Position = clampToMap(cr.Position, c.Tuning.MapWidth, c.Tuning.MapHeight)
		}
		for _, b := range c.AmmoBoxes {
			if !b.Active {
				continue
			}
			if !physics.CircleOverlap(t.Position, physics.TankRadius, b.Position, physics.AmmoBoxRadius) {
				continue
			}
			t.Ammo += uint16(c.Tuning.AmmoBoxRefillAmount)
			if t.Ammo > MaxAmmo {
				t.Ammo = MaxAmmo
			}
			b.Active = false
		}
	}

	// 6. Projectile lifecycle.
	for pid, p := range c.Projectiles {
		age := float64(c.CurrentTick-p.SpawnTick) * dt
		if age > c.Tuning.ProjectileMaxLifetimeSec || p.body.OutOfBounds(c.Tuning.MapWidth, c.Tuning.MapHeight) {
			delete(c.Projectiles, pid)
		}
	}

	// 7. Ammo & reload, fire.
	for id, t := range c.Tanks {
		if t.Destroyed {
			continue
		}
		if t.FireCooldownTimer > 0 {
			t.FireCooldownTimer -= dt
		}
		t.ReloadTimer += dt
		if t.ReloadTimer >= c.Tuning.ReloadIntervalSec && t.Ammo < MaxAmmo {
			t.Ammo++
			t.ReloadTimer = 0
		}

		in := inputs[id]
		if in.Fire && t.FireCooldownTimer <= 0 && t.Ammo > 0 {
			c.spawnProjectile(t)
			t.Ammo--
			t.FireCooldownTimer = c.Tuning.FireCooldownSec
		}
	}

	// 8 & 9. Kill feed + snapshot emission + damage events.
	for _, ev := range damageEvents {
		c.broadcast(ev)
	}
	if len(kills) > 0 {
		c.broadcast(protocol.KillFeedUpdate{Events: protocolKillEntries(kills)})
	}

	isFullTick := c.Tuning.FullSnapshotIntervalTicks > 0 && c.CurrentTick%uint64(c.Tuning.FullSnapshotIntervalTicks) == 0
	isDeltaTick := c.Tuning.SnapshotIntervalTicks > 0 && c.CurrentTick%uint64(c.Tuning.SnapshotIntervalTicks) == 0
	switch {
	case isFullTick:
		c.broadcast(c.buildFullSnapshot())
	case isDeltaTick:
		c.broadcast(c.buildDeltaSnapshot())
	}

	// 10. Termination check.
	c.checkTermination()

	// 11. Terminal broadcast.
	if c.tryDispatchEnd() {
		c.broadcast(protocol.MatchEnd{WinnerEntityID: c.lastStandingEntityID(), ServerTick: c.CurrentTick})
	}

	c.CurrentTick++
}

func (c *Context) checkTermination() {
	alive := 0
	for _, t := range c.Tanks {
		if !t.Destroyed {
			alive++
		}
	}
	if alive <= 1 {
		c.setEnded(c.lastStandingEntityID())
		return
	}
	if c.Tuning.MaxTicks > 0 && c.CurrentTick >= c.Tuning.MaxTicks {
		c.setEnded(0)
	}
}

func (c *Context) lastStandingEntityID() uint32 {
	var winner uint32
	alive := 0
	for id, t := range c.Tanks {
		if !t.Destroyed {
			alive++
			winner = id
		}
	}
	if alive == 1 {
		return winner
	}
	return 0
}

func (c *Context) spawnProjectile(t *TankState) {
	muzzleOffset := physics.TankRadius + physics.ProjectileRadius + 2
	forward := physics.FromAngle(t.TurretAngle)
	pos := t.Position.Add(forward.Scale(muzzleOffset))
	vel := forward.Scale(c.Tuning.ProjectileSpeed)

	id := c.AllocProjectileID()
	c.Projectiles[id] = &ProjectileState{
		ProjectileID:  id,
		Position:      pos,
		Velocity:      vel,
		OwnerEntityID: t.EntityID,
		SpawnTick:     c.CurrentTick,
		InitialSpeed:  c.Tuning.ProjectileSpeed,
	}
}

func (c *Context) sessionFor(sessionID string) *session.Session {
	for _, s := range c.Players {
		if s.SessionID == sessionID {
			return s
		}
	}
	return nil
}

func protocolKillEntries(kills []KillEntry) []protocol.KillEntry {
	out := make([]protocol.KillEntry, len(kills))
	for i, k := range kills {
		out[i] = protocol.KillEntry{Victim: k.Victim, Attacker: k.Attacker}
	}
	return out
}

func clampToMap(p physics.Vec2, w, h float64) physics.Vec2 {
	if p.X < 0 {
		p.X = 0
	}
	if p.X > w {
		p.X = w
	}
	if p.Y < 0 {
		p.Y = 0
	}
	if p.Y > h {
		p.Y = h
	}
	return p
}

// KillEntry is one destruction recorded during a tick, before
// translation to the wire KillEntry shape.
type KillEntry struct {
	Victim   uint32
	Attacker uint32
}
