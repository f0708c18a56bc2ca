package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/lifei6671/userauth/internal/config"
)

// Server runs the application listener and, optionally, the ops listener.
type Server struct {
	app             *http.Server
	ops             *http.Server
	shutdownTimeout time.Duration
}

// New wires app on cfg.Addr and ops on cfg.OpsAddr. A nil ops handler or an
// empty OpsAddr disables the ops listener.
func New(cfg config.Config, app http.Handler, ops http.Handler) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = config.DefaultAddr
	}

	s := &Server{
		app: &http.Server{
			Addr:              addr,
			Handler:           app,
			ReadHeaderTimeout: 5 * time.Second,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if ops != nil && cfg.OpsAddr != "" {
		s.ops = &http.Server{
			Addr:              cfg.OpsAddr,
			Handler:           ops,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s
}

// Run binds the listeners and serves until ctx is done or a listener fails.
// A bind failure is returned without serving anything.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.app.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.app.Addr, err)
	}

	var opsLn net.Listener
	if s.ops != nil {
		opsLn, err = net.Listen("tcp", s.ops.Addr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen %s: %w", s.ops.Addr, err)
		}
	}

	return s.serve(ctx, ln, opsLn)
}

// Serve serves the application on an already bound listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return s.serve(ctx, ln, nil)
}

func (s *Server) serve(ctx context.Context, ln, opsLn net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	log.Info().Msgf("Running on %s...", port(ln.Addr()))
	g.Go(func() error {
		if err := s.app.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	if opsLn != nil {
		log.Info().Str("addr", opsLn.Addr().String()).Msg("ops listener started")
		g.Go(func() error {
			if err := s.ops.Serve(opsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve ops: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown(opsLn != nil)
	})

	return g.Wait()
}

func (s *Server) shutdown(withOps bool) error {
	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info().Msg("shutting down")
	err := s.app.Shutdown(ctx)
	if withOps {
		err = errors.Join(err, s.ops.Shutdown(ctx))
	}
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func port(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return strconv.Itoa(tcp.Port)
	}
	return addr.String()
}
