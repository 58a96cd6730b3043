// Package config loads server configuration from YAML, with sensible
// defaults for every key a match or matchmaker needs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the tank arena server.
type Server struct {
	// Network
	ListenPort int `yaml:"listen_port"`

	// Matchmaker
	MaxPlayersPerMatch  int `yaml:"max_players_per_match"`
	MaxParallelMatches  int `yaml:"max_parallel_matches"`
	QueueSoftLimit      int `yaml:"queue_soft_limit"`
	FillTimeoutSeconds  int `yaml:"fill_timeout_seconds"`
	MatchmakerPollMs    int `yaml:"matchmaker_poll_ms"`

	// Match runtime
	TickRate                  int `yaml:"tick_rate"`
	SnapshotIntervalTicks     int `yaml:"snapshot_interval_ticks"`
	FullSnapshotIntervalTicks int `yaml:"full_snapshot_interval_ticks"`
	MatchMaxDurationSeconds   int `yaml:"match_max_duration_seconds"`

	// Bots
	BotFireIntervalTicks int  `yaml:"bot_fire_interval_ticks"`
	DisableBotFire       bool `yaml:"disable_bot_fire"`
	DisableBotAI         bool `yaml:"disable_bot_ai"`

	// Physics and combat tuning
	MovementSpeed           float64 `yaml:"movement_speed"`
	ProjectileSpeed         float64 `yaml:"projectile_speed"`
	ProjectileDamage        int     `yaml:"projectile_damage"`
	ProjectileDensity       float64 `yaml:"projectile_density"`
	ProjectileMaxLifetimeSec float64 `yaml:"projectile_max_lifetime_sec"`
	FireCooldownSec         float64 `yaml:"fire_cooldown_sec"`
	ReloadIntervalSec       float64 `yaml:"reload_interval_sec"`
	HullDensity             float64 `yaml:"hull_density"`
	TurretDensity           float64 `yaml:"turret_density"`
	PenetrationFactor       float64 `yaml:"penetration_factor"`

	// Arena
	MapWidth       float64 `yaml:"map_width"`
	MapHeight      float64 `yaml:"map_height"`
	ForceLineSpawn bool    `yaml:"force_line_spawn"`
	FixedSeed      uint32  `yaml:"fixed_seed"` // 0 means "generate randomly"

	// World objects
	CrateCount          int `yaml:"crate_count"`
	AmmoBoxCount        int `yaml:"ammo_box_count"`
	AmmoBoxRefillAmount int `yaml:"ammo_box_refill_amount"`

	// Session lifecycle
	HeartbeatTimeoutSeconds int `yaml:"heartbeat_timeout_seconds"`

	// Auth
	AuthMode       string `yaml:"auth_mode"` // "stub" (default) or "disabled"
	AuthStubPrefix string `yaml:"auth_stub_prefix"`

	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error (default: info)
}

// Default returns a Server config with sensible defaults, matching the
// example values from spec.md §6.
func Default() Server {
	return Server{
		ListenPort: 9090,

		MaxPlayersPerMatch: 8,
		MaxParallelMatches: 16,
		QueueSoftLimit:     4,
		FillTimeoutSeconds: 20,
		MatchmakerPollMs:   500,

		TickRate:                  30,
		SnapshotIntervalTicks:     1,
		FullSnapshotIntervalTicks: 30,
		MatchMaxDurationSeconds:   300,

		BotFireIntervalTicks: 45,
		DisableBotFire:       false,
		DisableBotAI:         false,

		MovementSpeed:            120,
		ProjectileSpeed:          400,
		ProjectileDamage:         20,
		ProjectileDensity:        1,
		ProjectileMaxLifetimeSec: 3,
		FireCooldownSec:          0.5,
		ReloadIntervalSec:        2,
		HullDensity:              1,
		TurretDensity:            1,
		PenetrationFactor:        0.60,

		MapWidth:  2000,
		MapHeight: 2000,

		CrateCount:          6,
		AmmoBoxCount:        4,
		AmmoBoxRefillAmount: 3,

		HeartbeatTimeoutSeconds: 15,

		AuthMode:       "stub",
		AuthStubPrefix: "tankarena-",

		LogLevel: "info",
	}
}

// Load reads Server config from a YAML file, overlaying Default. If
// the file doesn't exist, returns defaults unchanged.
func Load(path string) (Server, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
