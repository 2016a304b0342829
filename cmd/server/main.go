/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the bottle ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment configuration, then apply flags
  2. Open the store (SQLite, PostgreSQL or in-memory)
  3. Connect the notification sink (Redis list, log or none)
  4. Build the bottles service and ensure the admin account
  5. Configure the HTTP router and start the stock monitor
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory SQLite database
  -seed    Load demo data into an empty ledger (APP_ENV=development only)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the stock monitor
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the notification sink and database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/bottles.db"

  # Run against PostgreSQL
  DB_DRIVER=postgres DATABASE_URL=postgres://... ./server

  # Local demo
  APP_ENV=development ./server -db=":memory:" -seed

ENVIRONMENT:
  See config/config.go for every variable and its default.

SEE ALSO:
  - api/server.go: Router configuration
  - bottles/service.go: Ledger operations
  - store/sqlstore/sqlstore.go: Database implementation
*/
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/bottle-ledger/api"
	"github.com/warp/bottle-ledger/auth"
	"github.com/warp/bottle-ledger/bottles"
	"github.com/warp/bottle-ledger/config"
	"github.com/warp/bottle-ledger/ledger"
	"github.com/warp/bottle-ledger/ledger/store"
	"github.com/warp/bottle-ledger/notify"
	"github.com/warp/bottle-ledger/obs"
	"github.com/warp/bottle-ledger/store/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags
	port := flag.String("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	seed := flag.Bool("seed", false, "Load demo data (development only)")
	flag.Parse()
	cfg.Server.Port = *port
	cfg.Database.Path = *dbPath

	log, err := obs.NewLogger(cfg.Server.AppEnv, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *seed, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, seed bool, log *zap.Logger) error {
	ctx := context.Background()

	// Initialize store
	st, closeStore, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, closeSink, err := openSink(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeSink()

	metrics := obs.NewMetrics()
	svc, err := bottles.NewService(st,
		bottles.WithCalendar(ledger.NewCalendar(cfg.Ledger.Timezone)),
		bottles.WithLogger(log),
		bottles.WithMetrics(metrics),
		bottles.WithNotifier(sink),
	)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	if cfg.Auth.AdminEmail != "" {
		if err := svc.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}

	if seed {
		if !cfg.IsDevelopment() {
			return errors.New("-seed is only allowed with APP_ENV=development")
		}
		res, err := api.SeedDemo(ctx, svc)
		if err != nil {
			return err
		}
		log.Info("demo data loaded",
			zap.Strings("moderators", res.Moderators),
			zap.Int("customers", len(res.Customers)),
			zap.Int("deliveries", res.Deliveries))
	}

	secret, err := tokenSecret(cfg, log)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokens(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("token signer: %w", err)
	}

	handler := api.NewHandler(svc, tokens, log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		Metrics:        metrics,
	})

	monitor := api.NewStockMonitor(svc, metrics, log)
	monitor.Start()
	defer monitor.Stop()

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("env", cfg.Server.AppEnv),
			zap.String("db_driver", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (ledger.TxStore, func(), error) {
	switch cfg.Driver {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		return store.NewMemory(), func() {}, nil
	case "postgres":
		pg, err := sqlstore.OpenPostgres(ctx, cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return pg, func() { pg.Close() }, nil
	default:
		lite, err := sqlstore.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return lite, func() { lite.Close() }, nil
	}
}

func openSink(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (notify.Sink, func(), error) {
	switch {
	case !cfg.Enabled:
		return notify.Noop{}, func() {}, nil
	case cfg.Addr == "":
		return notify.LogSink{Log: log}, func() {}, nil
	}

	sink := notify.NewRedisSink(cfg.Addr, cfg.Password, cfg.DB, cfg.Queue)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sink.Ping(pingCtx); err != nil {
		sink.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	log.Info("notifications go to redis", zap.String("addr", cfg.Addr), zap.String("queue", cfg.Queue))
	return sink, func() { sink.Close() }, nil
}

// tokenSecret returns the signing secret. Development falls back to a
// random per-process secret, so tokens die with the process.
func tokenSecret(cfg config.Config, log *zap.Logger) (string, error) {
	if cfg.Auth.Secret != "" {
		return cfg.Auth.Secret, nil
	}
	if !cfg.IsDevelopment() {
		return "", errors.New("AUTH_SECRET is required outside development")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate dev secret: %w", err)
	}
	log.Warn("AUTH_SECRET not set; using a random development secret")
	return hex.EncodeToString(buf), nil
}
