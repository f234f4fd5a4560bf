// Package chatservice wires the chat service together and runs it.
package chatservice

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/masarif/masarif-backend/internal/api"
	"github.com/masarif/masarif-backend/internal/config"
	"github.com/masarif/masarif-backend/internal/convo"
	"github.com/masarif/masarif-backend/internal/health"
	"github.com/masarif/masarif-backend/internal/intent"
	"github.com/masarif/masarif-backend/internal/ledger"
	"github.com/masarif/masarif-backend/internal/orchestrator"
	"github.com/masarif/masarif-backend/internal/platform/logger"
	"github.com/masarif/masarif-backend/internal/store"
	"github.com/masarif/masarif-backend/internal/store/postgres"
	"github.com/masarif/masarif-backend/internal/store/sqlite"
	"github.com/masarif/masarif-backend/internal/sweeper"
)

// Run starts the chat service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("chat-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	// Cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, st, err := OpenStore(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Store unavailable")
		return err
	}
	defer func() { _ = db.Close() }()

	orch, mutator := BuildOrchestrator(cfg, st, log)

	// Health checker pings the database off the request path
	storeChecker := health.NewStoreChecker("store", health.PingerFunc(db.PingContext), log)
	go storeChecker.Start(ctx, 30*time.Second)
	svcHealth := health.NewService(storeChecker)

	// In-process sweeper reclaims expired pending actions and dialogue slots
	sw := sweeper.New(st, sweeper.Config{Interval: cfg.SweepInterval}, log)
	go func() {
		if err := sw.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("sweeper exit")
		}
	}()

	router := api.NewRouter(st, orch, mutator, svcHealth)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

// OpenStore opens the configured database driver and ensures the schema.
func OpenStore(ctx context.Context, cfg *config.Config) (*sql.DB, store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, nil, fmt.Errorf("postgres ping: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, nil, err
		}
		return db, postgres.NewWithDB(db), nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.EnsureSchema(ctx, db); err != nil {
			return nil, nil, err
		}
		return db, sqlite.NewWithDB(db), nil
	}
	return nil, nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
}

// BuildOrchestrator assembles the resolver chain and domain services. The
// ledger mutator is returned alongside so the HTTP layer can route account
// edits through the same validation path.
func BuildOrchestrator(cfg *config.Config, st store.Store, log zerolog.Logger) (*orchestrator.Orchestrator, *ledger.Mutator) {
	var primary intent.Resolver
	if cfg.ResolverURL != "" {
		primary = intent.NewHTTPResolver(cfg.ResolverURL, cfg.ResolverTimeout)
	}
	resolver := intent.WithFallback(primary, intent.NewRuleResolver(), log)

	convoSvc := convo.NewService(st, log, cfg.PendingTTL, cfg.DialogueTTL)
	mutator := ledger.NewMutator(st, log)
	th := orchestrator.Thresholds{
		Clarify:     cfg.ClarifyThreshold,
		SkipConfirm: cfg.SkipConfirmThreshold,
	}
	return orchestrator.New(resolver, convoSvc, mutator, st, th, log), mutator
}
