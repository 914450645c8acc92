package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "go.uber.org/automaxprocs"

	"github.com/NicolasHaas/gochat/pkg/datastore"
	"github.com/NicolasHaas/gochat/pkg/logging"
	"github.com/NicolasHaas/gochat/pkg/server"
	"github.com/NicolasHaas/gochat/pkg/service"
	"github.com/NicolasHaas/gochat/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	configPath := flag.String("config", "", "YAML config file (flags override its values)")
	flag.StringVar(&cfg.TCPAddr, "tcp", cfg.TCPAddr, "TCP control plane bind address (empty to disable)")
	flag.StringVar(&cfg.WSAddr, "ws", cfg.WSAddr, "WebSocket bind address (empty to disable)")
	flag.StringVar(&cfg.WSPath, "ws-path", cfg.WSPath, "WebSocket upgrade path")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database file path")
	flag.StringVar(&cfg.RedisAddr, "redis", "", "Redis address for last-seen bookkeeping (empty to disable)")
	flag.BoolVar(&cfg.TLS, "tls", false, "Serve the TCP control plane over TLS")
	flag.StringVar(&cfg.CertFile, "cert", "", "TLS certificate file (auto-generated if empty)")
	flag.StringVar(&cfg.KeyFile, "key", "", "TLS private key file (auto-generated if empty)")
	flag.StringVar(&cfg.DataDir, "data", cfg.DataDir, "Data directory for generated files")
	flag.IntVar(&cfg.FanoutPoolSize, "fanout-workers", cfg.FanoutPoolSize, "Notification worker pool size")
	flag.DurationVar(&cfg.SeedDelay, "seed-delay", cfg.SeedDelay, "Delay before the greeting message of a new friendship")
	flag.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level: "+logging.LevelNames())
	flag.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "Log format: text or json")
	flag.StringVar(&cfg.Log.File, "log-file", "", "Write logs to a size-rotated file instead of stdout")

	addUser := flag.String("add-user", "", "Create an account given as id:password and exit")
	exportUsers := flag.Bool("export-users", false, "Export all users as YAML and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("gochat-server", version.Full())
		return
	}

	if *configPath != "" {
		if err := applyConfigFile(&cfg, *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}

	// Configure structured logging
	opts := cfg.LoggingOptions()
	opts.Output = os.Stdout
	if err := logging.Setup(opts); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	st, err := datastore.NewProviderFactory(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}

	// Handle admin commands (run and exit)
	if *addUser != "" || *exportUsers {
		err := runAdmin(st, *addUser, *exportUsers)
		_ = st.Close()
		if err != nil {
			slog.Error("admin command failed", "err", err)
			os.Exit(1)
		}
		return
	}

	srv, err := server.New(context.Background(), cfg, server.Dependencies{Store: st})
	if err != nil {
		_ = st.Close()
		slog.Error("server setup", "err", err)
		os.Exit(1)
	}
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

// applyConfigFile loads path under the flags given on the command line.
func applyConfigFile(cfg *server.Config, path string) error {
	explicit := map[string]string{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = f.Value.String() })

	loaded, err := server.LoadConfig(path)
	if err != nil {
		return err
	}
	*cfg = loaded
	for name, value := range explicit {
		if err := flag.Set(name, value); err != nil {
			return fmt.Errorf("reapply -%s: %w", name, err)
		}
	}
	return cfg.Validate()
}

func runAdmin(st datastore.DataProviderFactory, addUser string, exportUsers bool) error {
	ctx := context.Background()
	if addUser != "" {
		id, password, ok := strings.Cut(addUser, ":")
		if !ok || password == "" {
			return fmt.Errorf("-add-user wants id:password, got %q", addUser)
		}
		u, err := service.NewLoginService(st).RegisterUser(ctx, id, "", password)
		if err != nil {
			return err
		}
		slog.Info("user created", "user", u.ID)
	}
	if exportUsers {
		data, err := server.ExportUsersYAML(ctx, st.NonTx())
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	}
	return nil
}
