// Package matchmaker implements the waiting-queue loop: staged bot
// fill under timeout, match formation, and per-player lobby status
// notification.
package matchmaker

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/tankarena/internal/config"
	"github.com/udisondev/tankarena/internal/match"
	"github.com/udisondev/tankarena/internal/metrics"
	"github.com/udisondev/tankarena/internal/physics"
	"github.com/udisondev/tankarena/internal/protocol"
	"github.com/udisondev/tankarena/internal/session"
)

// Matchmaker runs the single long-lived queue-polling task.
type Matchmaker struct {
	registry *session.Registry
	cfg      config.Server
	log      *slog.Logger

	// OnMatchFormed receives each newly formed match's Context before
	// its tick loop is spawned, so the caller can launch it under its
	// own lifecycle (e.g. tracked in an errgroup).
	OnMatchFormed func(*match.Context)
}

// New builds a Matchmaker.
func New(registry *session.Registry, cfg config.Server, log *slog.Logger) *Matchmaker {
	if log == nil {
		log = slog.Default()
	}
	return &Matchmaker{registry: registry, cfg: cfg, log: log}
}

// Run blocks, polling the queue every matchmaker_poll_ms until ctx is
// canceled.
func (m *Matchmaker) Run(ctx context.Context) error {
	interval := time.Duration(m.cfg.MatchmakerPollMs) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.pollOnce()
		}
	}
}

func (m *Matchmaker) pollOnce() {
	queue := m.registry.SnapshotQueue()
	if len(queue) == 0 {
		return
	}

	maxPlayers := m.cfg.MaxPlayersPerMatch
	if len(queue) < maxPlayers {
		m.stageBotFill(queue)
		queue = m.registry.SnapshotQueue() // may have grown with bots
	}

	m.broadcastQueueStatus(queue)

	if len(queue) >= maxPlayers {
		group := m.registry.PopFromQueue(maxPlayers)
		m.formMatch(group)
	}
}

// stageBotFill computes the ceiling-division staged population target
// for the oldest queued session's wait time, and injects bots to
// reach it if the queue hasn't already.
func (m *Matchmaker) stageBotFill(queue []*session.Session) {
	earliest := queue[0].QueueJoinTime
	for _, s := range queue[1:] {
		if s.QueueJoinTime.Before(earliest) {
			earliest = s.QueueJoinTime
		}
	}

	waited := time.Since(earliest).Seconds()
	frac := 0.0
	if m.cfg.FillTimeoutSeconds > 0 {
		frac = waited / float64(m.cfg.FillTimeoutSeconds)
	}

	target := stagedTarget(frac, m.cfg.MaxPlayersPerMatch)
	if target > len(queue) {
		bots := m.registry.CreateBots(target - len(queue))
		if len(bots) > 0 {
			metrics.AddBotsInMatch(int64(len(bots)))
		}
	}
}

// stagedTarget applies the ceiling-division staged fill schedule from
// spec.md: 25/50/75/100% of fill_timeout_seconds map to ceil(0.25 ×
// max), ceil(0.50 × max), ceil(0.75 × max), max respectively. Ceiling,
// not floor or round, so a match reaches at least the advertised
// fraction of its capacity rather than undershooting it.
func stagedTarget(frac float64, maxPlayers int) int {
	switch {
	case frac >= 1.00:
		return maxPlayers
	case frac >= 0.75:
		return int(math.Ceil(0.75 * float64(maxPlayers)))
	case frac >= 0.50:
		return int(math.Ceil(0.50 * float64(maxPlayers)))
	case frac >= 0.25:
		return int(math.Ceil(0.25 * float64(maxPlayers)))
	default:
		return 0
	}
}

func (m *Matchmaker) broadcastQueueStatus(queue []*session.Session) {
	maxPlayers := m.cfg.MaxPlayersPerMatch

	earliest := queue[0].QueueJoinTime
	for _, s := range queue[1:] {
		if s.QueueJoinTime.Before(earliest) {
			earliest = s.QueueJoinTime
		}
	}
	waited := time.Since(earliest).Seconds()
	frac := 0.0
	if m.cfg.FillTimeoutSeconds > 0 {
		frac = waited / float64(m.cfg.FillTimeoutSeconds)
	}

	lobbyState := protocol.LobbyStateQueued
	if frac >= 1.00 {
		lobbyState = protocol.LobbyStateForming
	}

	needed := maxPlayers - len(queue)
	if needed < 0 {
		needed = 0
	}
	projectedBotFill := maxPlayers - len(queue)
	if projectedBotFill < 0 {
		projectedBotFill = 0
	}

	countdown := nextThresholdCountdown(frac, float64(m.cfg.FillTimeoutSeconds))

	for i, s := range queue {
		if s.IsBot {
			continue
		}
		m.registry.PushMessage(s, protocol.QueueStatusUpdate{
			Position:          uint32(i + 1),
			PlayersInQueue:    uint32(len(queue)),
			NeededForMatch:    uint32(needed),
			LobbyCountdownSec: uint32(countdown),
			ProjectedBotFill:  uint32(projectedBotFill),
			LobbyState:        lobbyState,
		})
	}
}

func nextThresholdCountdown(frac, fillTimeoutSeconds float64) float64 {
	thresholds := []float64{0.25, 0.50, 0.75, 1.00}
	for _, th := range thresholds {
		if frac < th {
			return (th - frac) * fillTimeoutSeconds
		}
	}
	return 0
}

// formMatch builds a MatchContext for group, spawns tanks, emits
// MatchStart to every human, and hands the context to OnMatchFormed.
func (m *Matchmaker) formMatch(group []*session.Session) {
	matchID := "match-" + uuid.NewString()

	seed := m.cfg.FixedSeed
	if seed == 0 {
		seed = uint32(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewSource(int64(seed)))

	tuning := match.TuningParams{
		SnapshotIntervalTicks:     m.cfg.SnapshotIntervalTicks,
		FullSnapshotIntervalTicks: m.cfg.FullSnapshotIntervalTicks,
		MaxTicks:                  uint64(m.cfg.MatchMaxDurationSeconds * m.cfg.TickRate),
		MovementSpeed:             m.cfg.MovementSpeed,
		ProjectileSpeed:           m.cfg.ProjectileSpeed,
		ProjectileDamage:          m.cfg.ProjectileDamage,
		ProjectileMaxLifetimeSec:  m.cfg.ProjectileMaxLifetimeSec,
		FireCooldownSec:           m.cfg.FireCooldownSec,
		ReloadIntervalSec:         m.cfg.ReloadIntervalSec,
		PenetrationFactor:         m.cfg.PenetrationFactor,
		BotFireIntervalTicks:      m.cfg.BotFireIntervalTicks,
		DisableBotFire:            m.cfg.DisableBotFire,
		DisableBotAI:              m.cfg.DisableBotAI,
		MapWidth:                  m.cfg.MapWidth,
		MapHeight:                 m.cfg.MapHeight,
		AmmoBoxRefillAmount:       m.cfg.AmmoBoxRefillAmount,
	}

	mc := match.NewContext(matchID, seed, uint32(m.cfg.TickRate), tuning, m.registry, m.log)
	mc.Players = group
	spawnWorldObjects(mc, rng, m.cfg)

	botCount := 0
	for i, s := range group {
		entityID := mc.AllocEntityID()
		pos := spawnPosition(rng, i, len(group), m.cfg.ForceLineSpawn, m.cfg.MapWidth, m.cfg.MapHeight)

		mc.Tanks[entityID] = &match.TankState{
			EntityID:       entityID,
			Position:       pos,
			HP:             100,
			Ammo:           match.MaxAmmo,
			OwnerSessionID: s.SessionID,
			IsBot:          s.IsBot,
		}
		s.TankEntityID = entityID
		s.SetMatch(mc)

		if s.IsBot {
			botCount++
		} else {
			m.registry.PushMessage(s, protocol.MatchStart{
				MatchID:            matchID,
				TickRate:           uint32(m.cfg.TickRate),
				Seed:               seed,
				InitialPlayerCount: uint32(len(group)),
				DisableBotFire:     m.cfg.DisableBotFire,
				MyEntityID:         entityID,
			})
		}
	}

	metrics.IncActiveMatches()
	m.log.Info("match formed", "match_id", matchID, "players", len(group), "bots", botCount)

	if m.OnMatchFormed != nil {
		m.OnMatchFormed(mc)
	}
}

// spawnWorldObjects scatters crates and ammo boxes across the arena at
// match formation time. Positions are drawn from the same seeded rng
// used for player spawn placement, so a fixed_seed match always gets
// the same crate, ammo box and tank spawn layout.
func spawnWorldObjects(mc *match.Context, rng *rand.Rand, cfg config.Server) {
	margin := 80.0
	for i := 0; i < cfg.CrateCount; i++ {
		id := mc.AllocEntityID()
		mc.Crates[id] = &match.Crate{
			ID: id,
			Position: physics.Vec2{
				X: margin + rng.Float64()*(cfg.MapWidth-2*margin),
				Y: margin + rng.Float64()*(cfg.MapHeight-2*margin),
			},
			RotationDeg: rng.Float64() * 360,
		}
	}
	for i := 0; i < cfg.AmmoBoxCount; i++ {
		id := mc.AllocEntityID()
		mc.AmmoBoxes[id] = &match.AmmoBox{
			ID: id,
			Position: physics.Vec2{
				X: margin + rng.Float64()*(cfg.MapWidth-2*margin),
				Y: margin + rng.Float64()*(cfg.MapHeight-2*margin),
			},
			Active: true,
		}
	}
}

func spawnPosition(rng *rand.Rand, index, total int, forceLine bool, mapWidth, mapHeight float64) physics.Vec2 {
	if forceLine {
		spacing := mapWidth / float64(total+1)
		return physics.Vec2{X: spacing * float64(index+1), Y: mapHeight / 2}
	}
	margin := 50.0
	return physics.Vec2{
		X: margin + rng.Float64()*(mapWidth-2*margin),
		Y: margin + rng.Float64()*(mapHeight-2*margin),
	}
}
