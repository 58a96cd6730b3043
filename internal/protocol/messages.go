package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind tags the variant carried by a frame payload. The tag is the
// first byte of every encoded message; everything after it is
// variant-specific. New variants are additive: DecodeClientMessage
// reports an unknown tag as an error, which the connection worker
// ignores, and bytes trailing a known variant's fields are ignored by
// the decoder.
type Kind uint8

// Client-originated variants.
const (
	KindAuthRequest Kind = iota + 1
	KindQueueJoin
	KindInputCommand
	KindHeartbeat
)

// Server-originated variants.
const (
	KindAuthResponse Kind = iota + 64
	KindQueueStatusUpdate
	KindMatchStart
	KindStateSnapshot
	KindDeltaSnapshot
	KindDamageEvent
	KindKillFeedUpdate
	KindMatchEnd
	KindHeartbeatResponse
)

// ClientMessage is the tagged union of messages a client may send.
type ClientMessage interface {
	Kind() Kind
	encode() []byte
}

// ServerMessage is the tagged union of messages the server may send.
type ServerMessage interface {
	Kind() Kind
	encode() []byte
}

// EncodeMessage serializes any ClientMessage or ServerMessage into a
// tagged payload suitable for protocol.Encode (the frame codec).
func EncodeMessage(m interface{ Kind() Kind }) []byte {
	var body []byte
	switch v := m.(type) {
	case ClientMessage:
		body = v.encode()
	case ServerMessage:
		body = v.encode()
	default:
		panic("protocol: EncodeMessage called on unknown message type")
	}
	out := make([]byte, 1+len(body))
	out[0] = byte(m.Kind())
	copy(out[1:], body)
	return out
}

// --- primitive helpers -----------------------------------------------------

type writer struct{ b []byte }

func (w *writer) u8(v uint8)   { w.b = append(w.b, v) }
func (w *writer) bool(v bool) {
	if v {
		w.b = append(w.b, 1)
	} else {
		w.b = append(w.b, 0)
	}
}
func (w *writer) u32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}
func (w *writer) u64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}
func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }
func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.b = append(w.b, s...)
}

type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil || r.off+n > len(r.b) {
		if r.err == nil {
			r.err = fmt.Errorf("protocol: truncated message")
		}
		return false
	}
	return true
}
func (r *reader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.b[r.off]
	r.off++
	return v
}
func (r *reader) boolean() bool { return r.u8() != 0 }
func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.b[r.off : r.off+4])
	r.off += 4
	return v
}
func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.b[r.off : r.off+8])
	r.off += 8
	return v
}
func (r *reader) f32() float32 { return math.Float32frombits(r.u32()) }
func (r *reader) str() string {
	n := int(r.u32())
	if !r.need(n) {
		return ""
	}
	s := string(r.b[r.off : r.off+n])
	r.off += n
	return s
}

// --- client variants --------------------------------------------------------

// AuthRequest is sent once per connection to authenticate before
// queueing for a match.
type AuthRequest struct {
	Token         string
	ClientVersion string
}

func (AuthRequest) Kind() Kind { return KindAuthRequest }
func (m AuthRequest) encode() []byte {
	w := &writer{}
	w.str(m.Token)
	w.str(m.ClientVersion)
	return w.b
}

func decodeAuthRequest(b []byte) (AuthRequest, error) {
	r := &reader{b: b}
	m := AuthRequest{Token: r.str(), ClientVersion: r.str()}
	return m, r.err
}

// QueueJoin asks the matchmaker to enqueue the authenticated session.
type QueueJoin struct{}

func (QueueJoin) Kind() Kind        { return KindQueueJoin }
func (QueueJoin) encode() []byte    { return nil }
func decodeQueueJoin([]byte) (QueueJoin, error) { return QueueJoin{}, nil }

// InputCommand carries one tick's worth of control intent.
type InputCommand struct {
	SessionID     string
	ClientTick    uint32
	MoveDir       float32 // [-1, 1]
	TurnDir       float32 // [-1, 1]
	TurretTurn    float32 // [-1, 1]
	Fire          bool
	Brake         bool
}

func (InputCommand) Kind() Kind { return KindInputCommand }
func (m InputCommand) encode() []byte {
	w := &writer{}
	w.str(m.SessionID)
	w.u32(m.ClientTick)
	w.f32(m.MoveDir)
	w.f32(m.TurnDir)
	w.f32(m.TurretTurn)
	w.bool(m.Fire)
	w.bool(m.Brake)
	return w.b
}

func decodeInputCommand(b []byte) (InputCommand, error) {
	r := &reader{b: b}
	m := InputCommand{
		SessionID:  r.str(),
		ClientTick: r.u32(),
		MoveDir:    r.f32(),
		TurnDir:    r.f32(),
		TurretTurn: r.f32(),
		Fire:       r.boolean(),
		Brake:      r.boolean(),
	}
	return m, r.err
}

// Heartbeat refreshes liveness tracking for a session.
type Heartbeat struct {
	SessionID   string
	ClientTimeMs uint64
}

func (Heartbeat) Kind() Kind { return KindHeartbeat }
func (m Heartbeat) encode() []byte {
	w := &writer{}
	w.str(m.SessionID)
	w.u64(m.ClientTimeMs)
	return w.b
}

func decodeHeartbeat(b []byte) (Heartbeat, error) {
	r := &reader{b: b}
	m := Heartbeat{SessionID: r.str(), ClientTimeMs: r.u64()}
	return m, r.err
}

// DecodeClientMessage dispatches a frame payload to its client variant
// based on the leading tag byte. An unrecognized tag is reported as an
// error so the caller can decide between "ignore" (additive-extensible
// wire, per spec.md §6) and "fatal" (unknown critical variant, per
// spec.md §7) based on context; this repo's connection worker treats
// it as ignorable.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("protocol: empty payload")
	}
	body := payload[1:]
	switch Kind(payload[0]) {
	case KindAuthRequest:
		return decodeAuthRequest(body)
	case KindQueueJoin:
		return decodeQueueJoin(body)
	case KindInputCommand:
		return decodeInputCommand(body)
	case KindHeartbeat:
		return decodeHeartbeat(body)
	default:
		return nil, fmt.Errorf("protocol: unknown client message tag %d", payload[0])
	}
}

// --- server variants ---------------------------------------------------------

// AuthResponse reports whether AuthRequest succeeded.
type AuthResponse struct {
	Success   bool
	SessionID string
	Reason    string
}

func (AuthResponse) Kind() Kind { return KindAuthResponse }
func (m AuthResponse) encode() []byte {
	w := &writer{}
	w.bool(m.Success)
	w.str(m.SessionID)
	w.str(m.Reason)
	return w.b
}

// LobbyState values per spec.md §9 Open Question: only 0 and 1 are
// ever emitted by this server.
type LobbyState uint8

const (
	LobbyStateQueued  LobbyState = 0
	LobbyStateForming LobbyState = 1
)

// QueueStatusUpdate reports a queued session's position and the
// matchmaker's current staged-bot-fill projection.
type QueueStatusUpdate struct {
	Position          uint32
	PlayersInQueue    uint32
	NeededForMatch    uint32
	LobbyCountdownSec uint32
	ProjectedBotFill  uint32
	LobbyState        LobbyState
}

func (QueueStatusUpdate) Kind() Kind { return KindQueueStatusUpdate }
func (m QueueStatusUpdate) encode() []byte {
	w := &writer{}
	w.u32(m.Position)
	w.u32(m.PlayersInQueue)
	w.u32(m.NeededForMatch)
	w.u32(m.LobbyCountdownSec)
	w.u32(m.ProjectedBotFill)
	w.u8(uint8(m.LobbyState))
	return w.b
}

// MatchStart tells a player their match is beginning. MyEntityID is
// authoritative — clients MUST use it, never infer it.
type MatchStart struct {
	MatchID            string
	TickRate           uint32
	Seed               uint32
	InitialPlayerCount uint32
	DisableBotFire     bool
	MyEntityID         uint32
}

func (MatchStart) Kind() Kind { return KindMatchStart }
func (m MatchStart) encode() []byte {
	w := &writer{}
	w.str(m.MatchID)
	w.u32(m.TickRate)
	w.u32(m.Seed)
	w.u32(m.InitialPlayerCount)
	w.bool(m.DisableBotFire)
	w.u32(m.MyEntityID)
	return w.b
}

// TankWire is a tank's wire representation inside a snapshot.
type TankWire struct {
	EntityID      uint32
	X, Y          float32
	HullAngleDeg  float32
	TurretAngleDeg float32
	HP            uint16
	Ammo          uint16
}

// ProjectileWire is a projectile's wire representation.
type ProjectileWire struct {
	ProjectileID uint32
	X, Y         float32
	VX, VY       float32
}

// CrateWire is a crate's wire representation.
type CrateWire struct {
	ID          uint32
	X, Y        float32
	RotationDeg float32
}

// AmmoBoxWire is an ammo box's wire representation (full-snapshot only).
type AmmoBoxWire struct {
	ID   uint32
	X, Y float32
}

// StateSnapshot is a full, self-contained world state for one tick.
type StateSnapshot struct {
	ServerTick  uint64
	Tanks       []TankWire
	Projectiles []ProjectileWire
	Crates      []CrateWire
	AmmoBoxes   []AmmoBoxWire
	MapWidth    float32
	MapHeight   float32
}

func (StateSnapshot) Kind() Kind { return KindStateSnapshot }
func (m StateSnapshot) encode() []byte {
	w := &writer{}
	w.u64(m.ServerTick)
	w.u32(uint32(len(m.Tanks)))
	for _, t := range m.Tanks {
		w.u32(t.EntityID)
		w.f32(t.X)
		w.f32(t.Y)
		w.f32(t.HullAngleDeg)
		w.f32(t.TurretAngleDeg)
		w.u32(uint32(t.HP))
		w.u32(uint32(t.Ammo))
	}
	w.u32(uint32(len(m.Projectiles)))
	for _, p := range m.Projectiles {
		w.u32(p.ProjectileID)
		w.f32(p.X)
		w.f32(p.Y)
		w.f32(p.VX)
		w.f32(p.VY)
	}
	w.u32(uint32(len(m.Crates)))
	for _, c := range m.Crates {
		w.u32(c.ID)
		w.f32(c.X)
		w.f32(c.Y)
		w.f32(c.RotationDeg)
	}
	w.u32(uint32(len(m.AmmoBoxes)))
	for _, a := range m.AmmoBoxes {
		w.u32(a.ID)
		w.f32(a.X)
		w.f32(a.Y)
	}
	w.f32(m.MapWidth)
	w.f32(m.MapHeight)
	return w.b
}

// DeltaSnapshot carries only what changed since BaseTick.
type DeltaSnapshot struct {
	ServerTick        uint64
	BaseTick          uint64
	Tanks             []TankWire
	Projectiles       []ProjectileWire
	RemovedTanks      []uint32
	RemovedProjectiles []uint32
	Crates            []CrateWire
	RemovedCrates     []uint32
}

func (DeltaSnapshot) Kind() Kind { return KindDeltaSnapshot }
func (m DeltaSnapshot) encode() []byte {
	w := &writer{}
	w.u64(m.ServerTick)
	w.u64(m.BaseTick)
	w.u32(uint32(len(m.Tanks)))
	for _, t := range m.Tanks {
		w.u32(t.EntityID)
		w.f32(t.X)
		w.f32(t.Y)
		w.f32(t.HullAngleDeg)
		w.f32(t.TurretAngleDeg)
		w.u32(uint32(t.HP))
		w.u32(uint32(t.Ammo))
	}
	w.u32(uint32(len(m.Projectiles)))
	for _, p := range m.Projectiles {
		w.u32(p.ProjectileID)
		w.f32(p.X)
		w.f32(p.Y)
		w.f32(p.VX)
		w.f32(p.VY)
	}
	w.u32(uint32(len(m.RemovedTanks)))
	for _, id := range m.RemovedTanks {
		w.u32(id)
	}
	w.u32(uint32(len(m.RemovedProjectiles)))
	for _, id := range m.RemovedProjectiles {
		w.u32(id)
	}
	w.u32(uint32(len(m.Crates)))
	for _, c := range m.Crates {
		w.u32(c.ID)
		w.f32(c.X)
		w.f32(c.Y)
		w.f32(c.RotationDeg)
	}
	w.u32(uint32(len(m.RemovedCrates)))
	for _, id := range m.RemovedCrates {
		w.u32(id)
	}
	return w.b
}

// DamageEvent reports one instance of damage applied this tick.
type DamageEvent struct {
	Victim      uint32
	Attacker    uint32
	Amount      uint16
	RemainingHP uint16
}

func (DamageEvent) Kind() Kind { return KindDamageEvent }
func (m DamageEvent) encode() []byte {
	w := &writer{}
	w.u32(m.Victim)
	w.u32(m.Attacker)
	w.u32(uint32(m.Amount))
	w.u32(uint32(m.RemainingHP))
	return w.b
}

// KillEntry is one destruction inside a batched KillFeedUpdate.
type KillEntry struct {
	Victim   uint32
	Attacker uint32
}

// KillFeedUpdate batches every tank destruction from a single tick
// into one message (spec.md §4.7 step 8 / §8 S4).
type KillFeedUpdate struct {
	Events []KillEntry
}

func (KillFeedUpdate) Kind() Kind { return KindKillFeedUpdate }
func (m KillFeedUpdate) encode() []byte {
	w := &writer{}
	w.u32(uint32(len(m.Events)))
	for _, e := range m.Events {
		w.u32(e.Victim)
		w.u32(e.Attacker)
	}
	return w.b
}

// MatchEnd is the terminal, exactly-once message for a match.
type MatchEnd struct {
	WinnerEntityID uint32
	ServerTick     uint64
}

func (MatchEnd) Kind() Kind { return KindMatchEnd }
func (m MatchEnd) encode() []byte {
	w := &writer{}
	w.u32(m.WinnerEntityID)
	w.u64(m.ServerTick)
	return w.b
}

// HeartbeatResponse echoes client time alongside server time.
type HeartbeatResponse struct {
	ClientTimeMs uint64
	ServerTimeMs uint64
	DeltaMs      int64
}

func (HeartbeatResponse) Kind() Kind { return KindHeartbeatResponse }
func (m HeartbeatResponse) encode() []byte {
	w := &writer{}
	w.u64(m.ClientTimeMs)
	w.u64(m.ServerTimeMs)
	w.u64(uint64(m.DeltaMs))
	return w.b
}
