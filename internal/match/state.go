// Package match implements the authoritative per-match tick loop
// (C7), snapshot builder (C8), and bot input driver (C9).
package match

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/udisondev/tankarena/internal/physics"
	"github.com/udisondev/tankarena/internal/protocol"
	"github.com/udisondev/tankarena/internal/session"
)

// MaxAmmo is the ammo capacity every tank spawns with and reloads
// toward.
const MaxAmmo = 6

// TankState is one tank's authoritative state for the duration of a
// match. Position and angles are also mirrored into a physics.TankBody
// for stepping; TankState is what gets serialized onto the wire.
type TankState struct {
	EntityID uint32

	Position    physics.Vec2
	HullAngle   float64 // radians
	TurretAngle float64 // radians

	HP   uint16
	Ammo uint16

	ReloadTimer       float64
	FireCooldownTimer float64

	OwnerSessionID string
	IsBot          bool
	Destroyed      bool

	body physics.TankBody

	// Bot driver scratch state, unused for human-controlled tanks.
	botMoveDir     float64
	botTurnDir     float64
	botNextFireTick uint64
}

// ProjectileState is one in-flight shell's authoritative state.
type ProjectileState struct {
	ProjectileID  uint32
	Position      physics.Vec2
	Velocity      physics.Vec2
	OwnerEntityID uint32
	SpawnTick     uint64
	InitialSpeed  float64

	// PreStepVelocity is captured once per tick, before the physics
	// step, so contact processing judges penetration on the velocity
	// that caused the impact rather than whatever the collision
	// response left it at.
	PreStepVelocity physics.Vec2

	body physics.ProjectileBody
}

// Crate is a movable world obstacle.
type Crate struct {
	ID          uint32
	Position    physics.Vec2
	RotationDeg float64
}

// AmmoBox is a static pickup. Pickup is inferred client-side by the
// box's absence from the next full snapshot — there is no dedicated
// pickup event on the wire.
type AmmoBox struct {
	ID       uint32
	Position physics.Vec2
	Active   bool
}

// TuningParams are the config values captured at match formation time,
// so a running match is unaffected by later config reloads.
type TuningParams struct {
	SnapshotIntervalTicks     int
	FullSnapshotIntervalTicks int
	MaxTicks                  uint64

	MovementSpeed            float64
	ProjectileSpeed          float64
	ProjectileDamage         int
	ProjectileMaxLifetimeSec float64
	FireCooldownSec          float64
	ReloadIntervalSec        float64
	PenetrationFactor        float64

	BotFireIntervalTicks int
	DisableBotFire       bool
	DisableBotAI         bool

	MapWidth  float64
	MapHeight float64

	AmmoBoxRefillAmount int
}

// Context is one match's complete authoritative state: the MatchContext
// of the data model. A Context is owned exclusively by its own tick
// loop goroutine after Run is called — no other goroutine may mutate
// Tanks, Projectiles, Crates, or AmmoBoxes.
type Context struct {
	MatchID     string
	Seed        uint32
	TickRate    uint32
	CurrentTick uint64

	Players []*session.Session

	Tanks       map[uint32]*TankState
	Projectiles map[uint32]*ProjectileState
	Crates      map[uint32]*Crate
	AmmoBoxes   map[uint32]*AmmoBox

	lastSentTanks        map[uint32]TankState
	lastSentCrates       map[uint32]Crate
	sentProjectiles      map[uint32]bool
	lastFullSnapshotTick uint64

	// nextEntityID/nextProjectileID are atomic because match formation
	// allocates entity ids (tanks, crates, ammo boxes) from the
	// matchmaker's goroutine before the tick loop goroutine takes
	// ownership of the Context; the tick loop itself allocates
	// projectile ids on every fire. Everything else under Context is
	// single-goroutine-owned once Run starts.
	nextEntityID     atomic.Uint32
	nextProjectileID atomic.Uint32

	MatchEnded    bool
	EndDispatched bool

	Tuning TuningParams

	registry *session.Registry
	log      *slog.Logger

	// endMu guards MatchEnded/EndDispatched for the rare case an
	// external caller (e.g. a test) polls them while the loop runs;
	// the tick loop itself never contends on it since it's the sole
	// writer.
	endMu sync.Mutex

	// disconnectMu guards pendingDisconnects, the only other piece of
	// Context state written from outside the tick loop goroutine: the
	// session registry's disconnect path queues a session id here from
	// whichever goroutine noticed the disconnect (heartbeat sweep,
	// connection teardown), and the tick loop drains it at the start
	// of its own next tick.
	disconnectMu       sync.Mutex
	pendingDisconnects []string
}

// NewContext builds an empty match context. Callers populate Tanks,
// Players, Crates, and AmmoBoxes before calling Run.
func NewContext(matchID string, seed uint32, tickRate uint32, tuning TuningParams, registry *session.Registry, log *slog.Logger) *Context {
	if log == nil {
		log = slog.Default()
	}
	return &Context{
		MatchID:       matchID,
		Seed:          seed,
		TickRate:      tickRate,
		Tanks:         make(map[uint32]*TankState),
		Projectiles:   make(map[uint32]*ProjectileState),
		Crates:        make(map[uint32]*Crate),
		AmmoBoxes:     make(map[uint32]*AmmoBox),
		lastSentTanks:   make(map[uint32]TankState),
		lastSentCrates:  make(map[uint32]Crate),
		sentProjectiles: make(map[uint32]bool),
		Tuning:          tuning,
		registry:      registry,
		log:           log,
	}
}

// AllocEntityID returns the next unique entity id for this match.
func (c *Context) AllocEntityID() uint32 {
	return c.nextEntityID.Add(1)
}

// AllocProjectileID returns the next unique projectile id for this
// match.
func (c *Context) AllocProjectileID() uint32 {
	return c.nextProjectileID.Add(1)
}

// DestroyTankForSession marks sessionID's tank as destroyed so the
// next tick's termination check sees it as gone. Safe to call from any
// goroutine — the registry's disconnect path is the intended caller,
// typically from the heartbeat sweep or a connection's teardown, never
// the match's own tick loop goroutine. The request is only queued
// here; actual mutation of Tanks happens on the tick loop via
// drainPendingDisconnects, preserving single-writer ownership of
// match state.
func (c *Context) DestroyTankForSession(sessionID string) {
	c.disconnectMu.Lock()
	c.pendingDisconnects = append(c.pendingDisconnects, sessionID)
	c.disconnectMu.Unlock()
}

// drainPendingDisconnects applies every queued DestroyTankForSession
// request, destroying each session's tank. Called once at the start
// of every tick, on the tick loop goroutine.
func (c *Context) drainPendingDisconnects() {
	c.disconnectMu.Lock()
	pending := c.pendingDisconnects
	c.pendingDisconnects = nil
	c.disconnectMu.Unlock()

	for _, sessionID := range pending {
		for _, t := range c.Tanks {
			if t.OwnerSessionID == sessionID {
				t.Destroyed = true
			}
		}
	}
}

func (c *Context) setEnded(winner uint32) {
	c.endMu.Lock()
	c.MatchEnded = true
	c.endMu.Unlock()
	_ = winner
}

func (c *Context) tryDispatchEnd() bool {
	c.endMu.Lock()
	defer c.endMu.Unlock()
	if !c.MatchEnded || c.EndDispatched {
		return false
	}
	c.EndDispatched = true
	return true
}

// broadcast enqueues msg to every participating session's outbound buffer.
func (c *Context) broadcast(msg protocol.ServerMessage) {
	for _, p := range c.Players {
		c.registry.PushMessage(p, msg)
	}
}
