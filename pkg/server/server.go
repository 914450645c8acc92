// Package server implements the GoChat server: listeners, the per-connection
// read loop and the wiring of registry, workflows and bookkeeping services.
package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/NicolasHaas/gochat/pkg/datastore"
	"github.com/NicolasHaas/gochat/pkg/fanout"
	"github.com/NicolasHaas/gochat/pkg/metrics"
	"github.com/NicolasHaas/gochat/pkg/registry"
	"github.com/NicolasHaas/gochat/pkg/service"
	"github.com/NicolasHaas/gochat/pkg/workflow"
)

// loadOrGenerateTLS loads TLS cert/key from disk or generates a self-signed pair.
func loadOrGenerateTLS(cfg Config) (tls.Certificate, error) {
	certPath := cfg.CertFile
	keyPath := cfg.KeyFile

	if certPath == "" {
		certPath = filepath.Join(cfg.DataDir, "server.crt")
	}
	if keyPath == "" {
		keyPath = filepath.Join(cfg.DataDir, "server.key")
	}

	// Try loading existing cert
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err == nil {
		slog.Info("loaded TLS certificate", "cert", certPath)
		return cert, nil
	}

	slog.Info("generating self-signed TLS certificate")
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "generate key")
	}

	serialNumber, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject:      pkix.Name{Organization: []string{"GoChat Server"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "create cert")
	}
	privBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "marshal key")
	}

	if err := writePEM(certPath, 0o644, &pem.Block{Type: "CERTIFICATE", Bytes: certDER}); err != nil {
		return tls.Certificate{}, errors.Wrap(err, "write cert")
	}
	if err := writePEM(keyPath, 0o600, &pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes}); err != nil {
		return tls.Certificate{}, errors.Wrap(err, "write key")
	}

	slog.Info("TLS certificate generated", "cert", certPath, "key", keyPath)

	return tls.LoadX509KeyPair(certPath, keyPath)
}

func writePEM(path string, perm os.FileMode, block *pem.Block) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm) //nolint:gosec // path from server config
	if err != nil {
		return err
	}
	if err := pem.Encode(f, block); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Server is the main GoChat server.
type Server struct {
	cfg      Config
	store    datastore.DataProviderFactory
	metrics  *metrics.Metrics
	registry *registry.Registry
	dispatch *workflow.Dispatcher
	login    *service.LoginService
	redis    *service.RedisPresence // nil unless RedisAddr is set

	conns sync.WaitGroup // live serveConn calls

	mu        sync.Mutex
	tcpLn     net.Listener
	wsLn      net.Listener
	metricsLn net.Listener
}

// New wires the server's components. It connects to Redis when configured.
func New(ctx context.Context, cfg Config, deps Dependencies) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server: missing store dependency")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := metrics.New()
	login := service.NewLoginService(deps.Store)
	friends := service.NewFriends(deps.Store)

	presence := service.MultiPresence{login}
	var rp *service.RedisPresence
	if cfg.RedisAddr != "" {
		var err error
		rp, err = service.NewRedisPresence(ctx, cfg.RedisAddr, cfg.PresenceTTL)
		if err != nil {
			return nil, errors.Wrap(err, "server: redis presence")
		}
		presence = append(presence, rp)
		slog.Info("redis presence enabled", "addr", cfg.RedisAddr)
	}

	reg, err := registry.New(registry.Config{
		Friends:  friends,
		Presence: presence,
		Metrics:  m,
		Fanout:   fanout.Options{PoolSize: cfg.FanoutPoolSize, SendTimeout: cfg.SendTimeout},
	})
	if err != nil {
		if rp != nil {
			_ = rp.Close()
		}
		return nil, errors.Wrap(err, "server: registry")
	}

	d := workflow.NewServerDispatcher(workflow.Dependencies{
		Store:     deps.Store,
		Presence:  reg,
		Friends:   friends,
		Groups:    service.NewGroups(deps.Store),
		Auth:      login,
		Metrics:   m,
		SeedDelay: cfg.SeedDelay,
	})

	return &Server{
		cfg:      cfg,
		store:    deps.Store,
		metrics:  m,
		registry: reg,
		dispatch: d,
		login:    login,
		redis:    rp,
	}, nil
}

// Registry returns the session registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Users returns the account service, used by admin actions.
func (s *Server) Users() *service.LoginService {
	return s.login
}
