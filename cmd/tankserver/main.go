package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/tankarena/internal/auth"
	"github.com/udisondev/tankarena/internal/config"
	"github.com/udisondev/tankarena/internal/heartbeat"
	"github.com/udisondev/tankarena/internal/match"
	"github.com/udisondev/tankarena/internal/matchmaker"
	"github.com/udisondev/tankarena/internal/metrics"
	"github.com/udisondev/tankarena/internal/protocol"
	"github.com/udisondev/tankarena/internal/session"
	"github.com/udisondev/tankarena/internal/transport"
)

func main() {
	var noBotFire, noBotAI bool

	root := &cobra.Command{
		Use:   "tankserver <config.yaml>",
		Short: "Authoritative server for the tank arena game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return &fatalError{err}
			}
			if noBotFire {
				cfg.DisableBotFire = true
			}
			if noBotAI {
				cfg.DisableBotAI = true
			}
			return runServer(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}
	root.Flags().BoolVar(&noBotFire, "no-bot-fire", false, "disable bot-controlled tanks firing")
	root.Flags().BoolVar(&noBotAI, "no-bot-ai", false, "disable bot AI entirely (neutral input)")

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()
	root.SetContext(ctx)
	defer cancel()

	err := root.Execute()
	if err == nil {
		os.Exit(0)
	}

	var fatal *fatalError
	if asFatal(err, &fatal) {
		slog.Error("fatal", "err", fatal.err)
		os.Exit(1)
	}
	// cobra usage errors (bad flags, wrong arg count) reach here.
	slog.Error("invalid usage", "err", err)
	os.Exit(2)
}

// fatalError marks an error as a configuration or bind failure (exit
// code 1), distinguishing it from a CLI usage error (exit code 2).
type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func asFatal(err error, target **fatalError) bool {
	for err != nil {
		if f, ok := err.(*fatalError); ok {
			*target = f
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func runServer(ctx context.Context, cfg config.Server) error {
	logLevel := parseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("tank arena server starting", "port", cfg.ListenPort, "tick_rate", cfg.TickRate)

	registry := session.NewRegistry()

	var provider auth.Provider
	switch cfg.AuthMode {
	case "disabled":
		provider = disabledAuth{}
	default:
		provider = auth.NewStub(cfg.AuthStubPrefix)
	}

	hb := heartbeat.New(registry, time.Duration(cfg.HeartbeatTimeoutSeconds)*time.Second, 0, slog.Default())
	mm := matchmaker.New(registry, cfg, slog.Default())

	g, gctx := errgroup.WithContext(ctx)

	mm.OnMatchFormed = func(mc *match.Context) {
		metrics.SetConnectedPlayers(int64(registry.ConnectedPlayers()))
		g.Go(func() error {
			mc.Run(gctx)
			metrics.DecActiveMatches()
			return nil
		})
	}

	srv := transport.NewServer(registry, provider, protocol.DefaultMaxFrameSize, slog.Default())

	g.Go(func() error {
		slog.Info("starting heartbeat monitor", "timeout_seconds", cfg.HeartbeatTimeoutSeconds)
		return hb.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("starting matchmaker", "poll_ms", cfg.MatchmakerPollMs, "max_players", cfg.MaxPlayersPerMatch)
		return mm.Run(gctx)
	})
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.ListenPort)
		slog.Info("listening", "addr", addr)
		if err := srv.Serve(gctx, addr); err != nil {
			return &fatalError{fmt.Errorf("listening on %s: %w", addr, err)}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}

// disabledAuth accepts every token without validation, for local
// testing where the wire-level auth strategy is out of scope.
type disabledAuth struct{}

func (disabledAuth) Validate(token, clientVersion string) (auth.Result, error) {
	return auth.Result{SessionID: "anon-" + token}, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
