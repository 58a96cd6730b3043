// Package heartbeat implements the liveness monitor that prunes
// sessions which have stopped sending heartbeats.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/udisondev/tankarena/internal/session"
)

// Monitor periodically snapshots authenticated sessions and
// disconnects any exceeding the configured timeout. Must not block
// connection workers or the matchmaker — it only ever takes the
// registry's own short-held lock via Registry methods.
type Monitor struct {
	registry     *session.Registry
	timeout      time.Duration
	pollInterval time.Duration
	log          *slog.Logger
}

// New builds a heartbeat Monitor. pollInterval defaults to 1 second
// when zero.
func New(registry *session.Registry, timeout, pollInterval time.Duration, log *slog.Logger) *Monitor {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{registry: registry, timeout: timeout, pollInterval: pollInterval, log: log}
}

// Run blocks until ctx is canceled, pruning timed-out sessions once
// per poll interval.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Monitor) sweep() {
	now := time.Now()
	for _, s := range m.registry.SnapshotAuthenticated() {
		if m.registry.TimedOut(s, m.timeout, now) {
			m.log.Info("session heartbeat timeout", "session_id", s.SessionID)
			m.registry.DisconnectSession(s)
		}
	}
}
