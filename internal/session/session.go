// Package session implements the authoritative mapping of connections
// and authenticated sessions: the shared state connection workers, the
// matchmaker, and match runtimes all read and write through.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/tankarena/internal/protocol"
)

// InputState is a session's most recently received control intent.
type InputState struct {
	MoveDir        float32
	TurnDir        float32
	TurretTurn     float32
	Fire           bool
	Brake          bool
	LastClientTick uint32
}

// Session is one connected or bot-controlled participant. Registry
// methods are the only supported way to mutate a Session; callers
// holding a *Session must not write its fields directly.
type Session struct {
	ConnectionID string // opaque, assigned pre-auth
	SessionID    string // opaque, assigned on successful auth (or bot id)

	Authenticated bool
	IsBot         bool
	InQueue       bool

	QueueJoinTime  time.Time
	LastHeartbeat  time.Time

	input InputState

	outbound []protocol.ServerMessage

	// TankEntityID is 0 when the session is not currently in a match.
	TankEntityID uint32

	// match is a weak back-reference: it must never be the only thing
	// keeping a MatchContext reachable. Held as an untyped pointer
	// because internal/session cannot import internal/match (which
	// itself depends on internal/session for registry access).
	match interface{}

	mu sync.Mutex
}

// Match returns the session's current match back-reference, or nil.
func (s *Session) Match() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match
}

// SetMatch sets or clears the session's match back-reference.
func (s *Session) SetMatch(m interface{}) {
	s.mu.Lock()
	s.match = m
	s.mu.Unlock()
}

// Registry is the authoritative, concurrency-safe mapping of
// connections and authenticated sessions. A single mutex serializes
// every mutating operation — at the scale of one arena server this is
// simpler and cheaper than finer-grained locking, and every operation
// here is O(1) or O(queue length).
type Registry struct {
	mu sync.Mutex

	byConnection map[string]*Session
	bySessionID  map[string]*Session

	queue []*Session // FIFO by QueueJoinTime

	connectedPlayers int
}

// NewRegistry builds an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		byConnection: make(map[string]*Session),
		bySessionID:  make(map[string]*Session),
	}
}

// AddConnection registers a new pre-auth connection and returns its
// Session.
func (r *Registry) AddConnection(connectionID string) *Session {
	s := &Session{ConnectionID: connectionID, LastHeartbeat: time.Now()}
	r.mu.Lock()
	r.byConnection[connectionID] = s
	r.mu.Unlock()
	return s
}

// Authenticate promotes a pre-auth session to authenticated, indexing
// it by sessionID and incrementing the connected-players counter.
func (r *Registry) Authenticate(s *Session, sessionID string) {
	r.mu.Lock()
	s.SessionID = sessionID
	s.Authenticated = true
	r.bySessionID[sessionID] = s
	r.connectedPlayers++
	r.mu.Unlock()
}

// Enqueue places an authenticated session into the waiting queue.
func (r *Registry) Enqueue(s *Session) {
	r.mu.Lock()
	if !s.InQueue {
		s.InQueue = true
		s.QueueJoinTime = time.Now()
		r.queue = append(r.queue, s)
	}
	r.mu.Unlock()
}

// PopFromQueue removes and returns up to n sessions from the front of
// the queue, in FIFO order.
func (r *Registry) PopFromQueue(n int) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > len(r.queue) {
		n = len(r.queue)
	}
	popped := make([]*Session, n)
	copy(popped, r.queue[:n])
	r.queue = r.queue[n:]
	for _, s := range popped {
		s.InQueue = false
	}
	return popped
}

// SnapshotQueue returns a point-in-time copy of the waiting queue.
func (r *Registry) SnapshotQueue() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, len(r.queue))
	copy(out, r.queue)
	return out
}

// QueuePosition reports a session's 1-based position in the FIFO
// queue, or 0 if it is not currently queued.
func (r *Registry) QueuePosition(s *Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, q := range r.queue {
		if q == s {
			return i + 1
		}
	}
	return 0
}

// ConnectedPlayers reports the current count of authenticated,
// non-bot sessions.
func (r *Registry) ConnectedPlayers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectedPlayers
}

// PushMessage appends msg to session's outbound buffer. Bot sessions
// silently discard every message — they have no connection worker to
// drain them.
func (r *Registry) PushMessage(s *Session, msg protocol.ServerMessage) {
	if s.IsBot {
		return
	}
	r.mu.Lock()
	s.outbound = append(s.outbound, msg)
	r.mu.Unlock()
}

// DrainMessages atomically steals and returns session's outbound
// buffer.
func (r *Registry) DrainMessages(s *Session) []protocol.ServerMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(s.outbound) == 0 {
		return nil
	}
	drained := s.outbound
	s.outbound = nil
	return drained
}

// UpdateHeartbeat refreshes a session's liveness timestamp.
func (r *Registry) UpdateHeartbeat(s *Session) {
	r.mu.Lock()
	s.LastHeartbeat = time.Now()
	r.mu.Unlock()
}

// UpdateInput overwrites session's input fields if cmd carries a tick
// at or after the last applied one; older ticks are silently dropped
// so reordered input frames never roll state backward.
func (r *Registry) UpdateInput(s *Session, cmd protocol.InputCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cmd.ClientTick < s.input.LastClientTick {
		return
	}
	s.input = InputState{
		MoveDir:        cmd.MoveDir,
		TurnDir:        cmd.TurnDir,
		TurretTurn:     cmd.TurretTurn,
		Fire:           cmd.Fire,
		Brake:          cmd.Brake,
		LastClientTick: cmd.ClientTick,
	}
}

// GetInputCopy snapshots a session's current input state. Called once
// per tick by the match runtime.
func (r *Registry) GetInputCopy(s *Session) InputState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return s.input
}

// matchHandle is the subset of match.Context's API that Session.match
// must satisfy for DisconnectSession to end a disconnected player's
// tank. Defined here, not imported, because internal/match depends on
// internal/session and Go forbids the reverse import.
type matchHandle interface {
	DestroyTankForSession(sessionID string)
}

// DisconnectSession removes s from every index: queue, session-id map,
// connection map. Decrements the connected-players counter if s was
// an authenticated real player. If s was in a match, queues destruction
// of its tank on that match's own tick loop — per spec.md's disconnect
// handling, a mid-match disconnect must not leave a stale tank fielding
// zero input forever.
func (r *Registry) DisconnectSession(s *Session) {
	r.mu.Lock()

	delete(r.byConnection, s.ConnectionID)
	if s.SessionID != "" {
		delete(r.bySessionID, s.SessionID)
	}
	for i, q := range r.queue {
		if q == s {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			break
		}
	}
	s.InQueue = false

	if s.Authenticated && !s.IsBot {
		r.connectedPlayers--
	}
	r.mu.Unlock()

	if mh, ok := s.Match().(matchHandle); ok {
		mh.DestroyTankForSession(s.SessionID)
	}
}

// CreateBots allocates count synthetic, pre-authenticated, queued
// sessions. Bots have no backing connection and are immune to
// heartbeat pruning.
func (r *Registry) CreateBots(count int) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, count)
	for i := 0; i < count; i++ {
		s := &Session{
			SessionID:     botSessionID(),
			Authenticated: true,
			IsBot:         true,
			InQueue:       true,
			QueueJoinTime: time.Now(),
			LastHeartbeat: time.Now(),
		}
		r.bySessionID[s.SessionID] = s
		r.queue = append(r.queue, s)
		out = append(out, s)
	}
	return out
}

// botSessionID mints an opaque bot session id the same way
// transport.Server mints connection ids: a random uuid, prefixed so
// it's recognizable in logs.
func botSessionID() string {
	return "bot-" + uuid.NewString()
}

// SnapshotAuthenticated returns every currently authenticated session,
// for use by the heartbeat monitor. Bots are included since excluding
// them is the caller's job if needed — in practice the heartbeat
// monitor skips bots by checking IsBot.
func (r *Registry) SnapshotAuthenticated() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.bySessionID))
	for _, s := range r.bySessionID {
		out = append(out, s)
	}
	return out
}

// TimedOut reports whether a non-bot session's last heartbeat is
// older than timeout, as of now. Reads LastHeartbeat and IsBot under
// the registry lock, since connection workers mutate both concurrently.
func (r *Registry) TimedOut(s *Session, timeout time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.IsBot {
		return false
	}
	return now.Sub(s.LastHeartbeat) > timeout
}
