// Package transport implements the per-connection read/write workers
// that bridge a raw TCP stream to the session registry: decoding
// frames into client messages, dispatching them, and draining and
// encoding outbound server messages.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/tankarena/internal/auth"
	"github.com/udisondev/tankarena/internal/protocol"
	"github.com/udisondev/tankarena/internal/session"
)

// drainInterval is how often the write task polls the session's
// outbound buffer. Short enough that snapshot/event latency stays
// well under one tick at typical tick rates.
const drainInterval = 5 * time.Millisecond

const readBufferSize = 4096

// Connection owns one accepted TCP connection for its entire
// lifetime: a read task decoding and dispatching inbound frames, and a
// write task draining and transmitting outbound ones. Both terminate
// together.
type Connection struct {
	conn     net.Conn
	registry *session.Registry
	auth     auth.Provider

	sess    *session.Session
	decoder *protocol.Decoder

	maxFrameSize int
	log          *slog.Logger

	// OnQueueJoin, if set, is invoked whenever the client requests to
	// join the waiting queue, after the registry has been updated.
	OnQueueJoin func(*session.Session)

	markedForClose atomic.Bool
	closeOnce      sync.Once
	closeCh        chan struct{}
}

// New wraps an accepted connection. connectionID should be unique per
// connection (e.g. a uuid) — it is the registry's pre-auth index key.
func New(conn net.Conn, connectionID string, registry *session.Registry, provider auth.Provider, maxFrameSize int, log *slog.Logger) *Connection {
	if log == nil {
		log = slog.Default()
	}
	return &Connection{
		conn:         conn,
		registry:     registry,
		auth:         provider,
		sess:         registry.AddConnection(connectionID),
		decoder:      protocol.NewDecoder(maxFrameSize),
		maxFrameSize: maxFrameSize,
		log:          log,
		closeCh:      make(chan struct{}),
	}
}

// Session returns the connection's registry session.
func (c *Connection) Session() *session.Session { return c.sess }

// Serve runs the read and write tasks until either one terminates or
// ctx is canceled, then tears down the connection and disconnects the
// session.
func (c *Connection) Serve(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		c.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.writeLoop(ctx)
	}()

	wg.Wait()
	c.registry.DisconnectSession(c.sess)
}

func (c *Connection) closeConn() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		_ = c.conn.Close()
	})
}

func (c *Connection) readLoop(ctx context.Context) {
	defer c.closeConn()

	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		default:
		}

		n, err := c.conn.Read(buf)
		if err != nil {
			return
		}
		c.decoder.Feed(buf[:n])

		for {
			payload, ok, err := c.decoder.Extract()
			if err != nil {
				// Declared frame length exceeded the configured
				// maximum: a fatal frame error, per the codec's
				// contract.
				c.log.Warn("fatal frame error", "err", err)
				return
			}
			if !ok {
				break
			}
			msg, err := protocol.DecodeClientMessage(payload)
			if err != nil {
				// Unknown variant: additive-extensible wire, ignore.
				continue
			}
			c.dispatch(msg)
		}
	}
}

func (c *Connection) dispatch(msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case protocol.AuthRequest:
		c.handleAuthRequest(m)
	case protocol.QueueJoin:
		if c.sess.Authenticated && c.sess.Match() == nil && !c.sess.InQueue {
			c.registry.Enqueue(c.sess)
			if c.OnQueueJoin != nil {
				c.OnQueueJoin(c.sess)
			}
		}
	case protocol.InputCommand:
		// spec.md §4.3: update_input is only effective while the
		// session is in a match.
		if c.sess.Match() != nil {
			c.registry.UpdateInput(c.sess, m)
		}
	case protocol.Heartbeat:
		c.registry.UpdateHeartbeat(c.sess)
		now := time.Now().UnixMilli()
		c.registry.PushMessage(c.sess, protocol.HeartbeatResponse{
			ClientTimeMs: m.ClientTimeMs,
			ServerTimeMs: uint64(now),
			DeltaMs:      now - int64(m.ClientTimeMs),
		})
	}
}

func (c *Connection) handleAuthRequest(m protocol.AuthRequest) {
	result, err := c.auth.Validate(m.Token, m.ClientVersion)
	if err != nil {
		reason := "rejected"
		var reject *auth.RejectError
		if errors.As(err, &reject) {
			reason = reject.Reason
		}
		c.registry.PushMessage(c.sess, protocol.AuthResponse{Success: false, Reason: reason})
		c.markedForClose.Store(true)
		return
	}
	c.registry.Authenticate(c.sess, result.SessionID)
	c.registry.PushMessage(c.sess, protocol.AuthResponse{Success: true, SessionID: result.SessionID})
}

func (c *Connection) writeLoop(ctx context.Context) {
	defer c.closeConn()

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		case <-ticker.C:
		}

		msgs := c.registry.DrainMessages(c.sess)
		if len(msgs) > 0 {
			bufs := make(net.Buffers, 0, len(msgs))
			for _, m := range msgs {
				bufs = append(bufs, protocol.Encode(protocol.EncodeMessage(m)))
			}
			if _, err := bufs.WriteTo(c.conn); err != nil {
				return
			}
		}

		if c.markedForClose.Load() && len(msgs) == 0 {
			return
		}
	}
}
