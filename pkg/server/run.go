package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/NicolasHaas/gochat/pkg/version"
)

const shutdownTimeout = 10 * time.Second

// Run binds the listeners and blocks until SIGINT or SIGTERM.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Listen(); err != nil {
		s.Close()
		return err
	}
	return s.Serve(ctx)
}

// Serve runs every bound listener until ctx is cancelled or one of them fails,
// then shuts the server down. Listen must have been called.
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()

	s.mu.Lock()
	tcpLn, wsLn, metricsLn := s.tcpLn, s.wsLn, s.metricsLn
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)

	if tcpLn != nil {
		g.Go(func() error { return s.acceptTCP(ctx, tcpLn) })
		g.Go(func() error {
			<-ctx.Done()
			_ = tcpLn.Close()
			return nil
		})
	}
	if wsLn != nil {
		mux := http.NewServeMux()
		mux.HandleFunc(s.cfg.WSPath, s.handleWS(ctx))
		serveHTTP(ctx, g, "websocket", wsLn, mux)
	}
	if metricsLn != nil {
		serveHTTP(ctx, g, "metrics", metricsLn, s.metricsMux())
	}

	// Start periodic metrics logging (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, ctx.Done())

	slog.Info("GoChat server running", "version", version.String())

	err := g.Wait()
	slog.Info("shutting down...")
	s.conns.Wait()
	s.metrics.LogSummary()
	return err
}

// serveHTTP runs srv on ln in g and shuts it down when ctx ends.
func serveHTTP(ctx context.Context, g *errgroup.Group, name string, ln net.Listener, handler http.Handler) {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		slog.Info(name+" HTTP listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "server: %s http", name)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// Close releases everything the server owns. It is safe to call more than once.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeListenersLocked()

	s.registry.Close()
	if s.redis != nil {
		_ = s.redis.Close()
		s.redis = nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("close store", "err", err)
		}
		s.store = nil
	}
}
