package server

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/NicolasHaas/gochat/pkg/merr"
	"github.com/NicolasHaas/gochat/pkg/transport"
)

// Listen binds every configured listener. It is separate from Serve so
// callers can learn the bound addresses first.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.TCPAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.TCPAddr)
		if err != nil {
			return errors.Wrap(err, "server: listen tcp")
		}
		if s.cfg.TLS {
			cert, err := loadOrGenerateTLS(s.cfg)
			if err != nil {
				_ = ln.Close()
				return errors.Wrap(err, "server: tls")
			}
			ln = tls.NewListener(ln, &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS13,
			})
		}
		s.tcpLn = ln
		slog.Info("control plane listening", "addr", ln.Addr().String(), "tls", s.cfg.TLS)
	}
	if s.cfg.WSAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.WSAddr)
		if err != nil {
			s.closeListenersLocked()
			return errors.Wrap(err, "server: listen websocket")
		}
		s.wsLn = ln
		slog.Info("websocket listening", "addr", ln.Addr().String(), "path", s.cfg.WSPath)
	}
	if s.cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			s.closeListenersLocked()
			return errors.Wrap(err, "server: listen metrics")
		}
		s.metricsLn = ln
	}
	return nil
}

func (s *Server) closeListenersLocked() {
	for _, ln := range []net.Listener{s.tcpLn, s.wsLn, s.metricsLn} {
		if ln != nil {
			_ = ln.Close()
		}
	}
}

// TCPAddr returns the bound control address, or "" before Listen.
func (s *Server) TCPAddr() string { return s.addrOf(func() net.Listener { return s.tcpLn }) }

// WSAddr returns the bound WebSocket address, or "" before Listen.
func (s *Server) WSAddr() string { return s.addrOf(func() net.Listener { return s.wsLn }) }

// MetricsAddr returns the bound metrics address, or "" before Listen.
func (s *Server) MetricsAddr() string { return s.addrOf(func() net.Listener { return s.metricsLn }) }

func (s *Server) addrOf(pick func() net.Listener) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ln := pick(); ln != nil {
		return ln.Addr().String()
	}
	return ""
}

func (s *Server) transportOptions() transport.Options {
	return transport.Options{WriteTimeout: s.cfg.SendTimeout, IdleTimeout: s.cfg.IdleTimeout}
}

// acceptTCP runs until the listener is closed.
func (s *Server) acceptTCP(ctx context.Context, ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("accept error", "err", err)
			continue
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.serveConn(ctx, transport.NewTCPConn(nc, s.transportOptions()))
		}()
	}
}

func (s *Server) handleWS(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Counted before the upgrade, while http.Server.Shutdown still tracks
		// the request.
		s.conns.Add(1)
		defer s.conns.Done()
		c, err := transport.UpgradeWS(w, r, s.transportOptions())
		if err != nil {
			slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		s.serveConn(ctx, c)
	}
}

// serveConn handles a single connection lifecycle. Messages are processed on
// this goroutine one at a time, so replies keep request order.
func (s *Server) serveConn(ctx context.Context, c transport.MessageConn) {
	log := slog.With("conn", c.ID(), "remote", c.RemoteAddr())
	s.metrics.TotalConnections.Add(1)
	s.registry.AddClient(c)
	log.Debug("client connected")

	defer func() {
		// Cleanup outlives server shutdown so offline bookkeeping still runs.
		s.registry.RemoveClient(context.WithoutCancel(ctx), c)
		_ = c.Close()
		s.metrics.TotalDisconnects.Add(1)
		log.Debug("client disconnected")
	}()

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		msg, err := c.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) && !c.Closed() {
				log.Debug("read failed", "err", err)
			}
			return
		}
		if err := s.dispatch.Dispatch(ctx, c, msg); err != nil {
			switch {
			case merr.Terminal(err):
				log.Debug("request refused", "type", msg.Type(), "err", err)
			case errors.Is(err, merr.ErrStaleConnection):
				return
			default:
				log.Warn("request failed", "type", msg.Type(), "err", err)
			}
		}
	}
}
