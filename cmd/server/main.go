// Package main is the entry point for the spin-ticket redemption service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"spin-reward-service/internal/config"
	"spin-reward-service/internal/handler"
	"spin-reward-service/internal/lock"
	"spin-reward-service/internal/pkg/db"
	"spin-reward-service/internal/pkg/xredis"
	"spin-reward-service/internal/prize"
	"spin-reward-service/internal/ratelimit"
	"spin-reward-service/internal/repository"
	"spin-reward-service/internal/service"
	"spin-reward-service/internal/session"
	"spin-reward-service/internal/worker"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	loc, err := cfg.Redemption.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve issuance timezone")
	}

	log.Info().
		Str("timezone", cfg.Redemption.Timezone).
		Bool("redis", cfg.Redis.Enabled).
		Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize lease, rate and session stores. With Redis enabled all
	// three are shared across instances; otherwise in-memory stores
	// limit the deployment to a single process.
	var (
		locks    lock.Manager
		limiter  ratelimit.Limiter
		sessions session.Guard
	)
	if cfg.Redis.Enabled {
		redisCli, err := xredis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisCli.Close()

		locks = lock.NewRedisManager(redisCli)
		limiter = ratelimit.NewRedisLimiter(redisCli, cfg.Redemption.MinInterval, cfg.Redemption.RateFailOpen)
		sessions = session.NewRedisGuard(redisCli, cfg.Redemption.SessionTimeout)
	} else {
		log.Warn().Msg("Redis disabled; using in-memory stores (single instance only)")
		memLocks := lock.NewMemoryManager(time.Minute)
		defer memLocks.Close()

		locks = memLocks
		limiter = ratelimit.NewMemoryLimiter(cfg.Redemption.MinInterval)
		sessions = session.NewMemoryGuard(cfg.Redemption.SessionTimeout)
	}

	// Initialize repositories
	ticketRepo := repository.NewTicketRepository(dbPool.Pool, loc)
	profileRepo := repository.NewProfileRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)

	// Initialize services
	selector := prize.NewSelector(time.Now().UnixNano())
	redeemService := service.NewRedeemService(
		sessions,
		limiter,
		locks,
		ticketRepo,
		ledgerRepo,
		selector,
		cfg.Redemption.UserLockTTL,
		cfg.Redemption.TicketLockTTL,
	)

	// Start the ledger reconciler
	reconciler := worker.NewLedgerReconciler(ticketRepo, ledgerRepo, cfg.Redemption.ReconcileInterval, 30*time.Second)
	go reconciler.Start(ctx)

	// Build the HTTP router
	redeemHandler := handler.NewRedeemHandler(redeemService, ticketRepo, profileRepo)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Route("/api", redeemHandler.Routes)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := dbPool.HealthCheck(req.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}

// runMigrations applies the database schema.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			owner_id VARCHAR(128) PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id VARCHAR(64) PRIMARY KEY,
			owner_id VARCHAR(128) NOT NULL,
			context VARCHAR(255) NOT NULL,
			date_key VARCHAR(10) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			prize BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			used_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_owner_date ON tickets (owner_id, date_key)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			owner_id VARCHAR(128) NOT NULL,
			ticket_id VARCHAR(64) NOT NULL UNIQUE,
			amount BIGINT NOT NULL,
			reason VARCHAR(50) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_owner ON ledger_entries (owner_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	log.Info().Msg("Database migrations applied")
	return nil
}
