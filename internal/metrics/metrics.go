// Package metrics holds process-wide counters updated with relaxed
// atomic operations, per the concurrency model's "metrics counters
// use relaxed atomic updates" policy. No precise ordering is required
// between a counter update and the event that caused it.
package metrics

import (
	"sync/atomic"
	"time"
)

var (
	activeMatches    atomic.Int64
	botsInMatch      atomic.Int64
	connectedPlayers atomic.Int64

	lastTickDurationMicros atomic.Int64
)

// IncActiveMatches increments the count of currently running matches.
func IncActiveMatches() { activeMatches.Add(1) }

// DecActiveMatches decrements the count of currently running matches.
func DecActiveMatches() { activeMatches.Add(-1) }

// ActiveMatches reports the current count of running matches.
func ActiveMatches() int64 { return activeMatches.Load() }

// AddBotsInMatch adds delta to the bot counter. The matchmaker adds
// each bot session as it creates it for the queue; nothing subtracts
// when a match ends, so the counter totals bots created since the
// process started.
func AddBotsInMatch(delta int64) { botsInMatch.Add(delta) }

// BotsInMatch reports the bot counter's current value.
func BotsInMatch() int64 { return botsInMatch.Load() }

// SetConnectedPlayers overwrites the connected-players gauge.
func SetConnectedPlayers(n int64) { connectedPlayers.Store(n) }

// ConnectedPlayers reports the current connected-players gauge.
func ConnectedPlayers() int64 { return connectedPlayers.Load() }

// RecordTickDuration records how long one match tick's work took, per
// spec.md §4.7's "record tick duration for metrics" step. Only the
// most recent duration is kept — a gauge, not a histogram, matching
// the relaxed-atomics policy above.
func RecordTickDuration(d time.Duration) { lastTickDurationMicros.Store(d.Microseconds()) }

// LastTickDurationMicros reports the most recently recorded tick
// duration, in microseconds.
func LastTickDurationMicros() int64 { return lastTickDurationMicros.Load() }
