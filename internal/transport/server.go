package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/udisondev/tankarena/internal/auth"
	"github.com/udisondev/tankarena/internal/session"
)

// Server accepts TCP connections and spawns a Connection for each.
type Server struct {
	registry     *session.Registry
	auth         auth.Provider
	maxFrameSize int
	log          *slog.Logger

	// OnQueueJoin is passed through to every spawned Connection.
	OnQueueJoin func(*session.Session)
}

// NewServer builds a connection-accepting Server.
func NewServer(registry *session.Registry, provider auth.Provider, maxFrameSize int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{registry: registry, auth: provider, maxFrameSize: maxFrameSize, log: log}
}

// Serve listens on addr and accepts connections until ctx is
// canceled. It blocks until every spawned connection has been torn
// down.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.log.Warn("accept error", "err", err)
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetKeepAlive(true)
		}

		connectionID := uuid.NewString()
		c := New(conn, connectionID, s.registry, s.auth, s.maxFrameSize, s.log)
		c.OnQueueJoin = s.OnQueueJoin

		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Serve(ctx)
		}()
	}
}
