package match

import (
	"math"
	"math/rand"

	"github.com/udisondev/tankarena/internal/physics"
	"github.com/udisondev/tankarena/internal/protocol"
)

const (
	botWanderChangeProb = 0.03 // probability per tick of picking a new heading
	botTurretDeadZone   = 0.03
)

// synthesizeBotInput produces this tick's input for a bot tank: wander
// movement, turret aim at the nearest live non-owner tank, and a fire
// decision gated by disable_bot_fire and a fixed cadence. The returned
// struct has the same shape as a human InputCommand (minus the wire
// envelope) so downstream tick logic treats bots and humans uniformly.
func (c *Context) synthesizeBotInput(rng *rand.Rand, tank *TankState) protocol.InputCommand {
	if c.Tuning.DisableBotAI {
		return protocol.InputCommand{}
	}

	if rng.Float64() < botWanderChangeProb {
		tank.botMoveDir = rng.Float64()*1.4 - 0.4 // biased toward forward motion
		tank.botTurnDir = rng.Float64()*2 - 1
	}

	turretTurn := 0.0
	fire := false

	target := c.nearestLiveOpponent(tank.EntityID)
	if target != nil {
		toTarget := target.Position.Sub(tank.Position)
		desiredAngle := math.Atan2(toTarget.Y, toTarget.X)
		errAngle := physics.ShortestAngleDelta(tank.TurretAngle, desiredAngle)

		if math.Abs(errAngle) > botTurretDeadZone {
			turretTurn = clamp(errAngle/0.5, -1, 1)
		}

		if !c.Tuning.DisableBotFire && math.Abs(errAngle) < 0.08 {
			if c.CurrentTick >= tank.botNextFireTick {
				fire = true
				tank.botNextFireTick = c.CurrentTick + uint64(c.Tuning.BotFireIntervalTicks)
			}
		}
	}

	return protocol.InputCommand{
		MoveDir:    float32(tank.botMoveDir),
		TurnDir:    float32(tank.botTurnDir),
		TurretTurn: float32(turretTurn),
		Fire:       fire,
	}
}

// nearestLiveOpponent returns the closest live tank other than
// ownerEntityID, or nil if none exists.
func (c *Context) nearestLiveOpponent(ownerEntityID uint32) *TankState {
	var best *TankState
	bestDist := math.MaxFloat64
	for id, t := range c.Tanks {
		if id == ownerEntityID || t.Destroyed {
			continue
		}
		self := c.Tanks[ownerEntityID]
		if self == nil {
			continue
		}
		d := t.Position.Sub(self.Position).Dot(t.Position.Sub(self.Position))
		if d < bestDist {
			bestDist = d
			best = t
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
