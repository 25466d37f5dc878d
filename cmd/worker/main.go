// Package main is the entry point for the clinicore background worker.
// It sweeps overdue planned payments and cleans up expired auth and
// idempotency state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"clinicore/internal/domain/billing"
	"clinicore/internal/infrastructure/numerator"
	"clinicore/internal/infrastructure/storage/postgres"
	"clinicore/internal/infrastructure/storage/postgres/auth_repo"
	"clinicore/internal/infrastructure/storage/postgres/document_repo"
	"clinicore/pkg/logger"
)

const overdueBatchSize = 200

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting clinicore worker")

	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	poolCfg.MaxConns = 5
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	numGen := numerator.New(pool)

	invoiceRepo := document_repo.NewInvoiceRepo(txManager)
	paymentRepo := document_repo.NewPaymentRepo(txManager)
	billingService := billing.NewService(invoiceRepo, paymentRepo, numGen, txManager)

	tokenRepo := auth_repo.NewTokenRepo(txManager)
	idempotencyStore := postgres.NewIdempotencyStore(pool, txManager, 10*time.Minute)

	worker := &Worker{
		billing:     billingService,
		tokens:      tokenRepo,
		idempotency: idempotencyStore,
		log:         log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the periodic maintenance loops.
type Worker struct {
	billing     *billing.Service
	tokens      *auth_repo.TokenRepo
	idempotency *postgres.IdempotencyStore
	log         *logger.Logger
}

// Run blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	overdueTicker := time.NewTicker(getEnvDuration("OVERDUE_SWEEP_INTERVAL", 5*time.Minute))
	defer overdueTicker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	// Sweep once at startup so a restart never delays overdue marking
	w.sweepOverdue(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-overdueTicker.C:
			w.sweepOverdue(ctx)
		case <-cleanupTicker.C:
			w.cleanupTokens(ctx)
			w.cleanupIdempotency(ctx)
		}
	}
}

func (w *Worker) sweepOverdue(ctx context.Context) {
	count, err := w.billing.MarkOverduePayments(ctx, time.Now(), overdueBatchSize)
	if err != nil {
		w.log.Errorw("overdue sweep failed", "error", err)
		return
	}
	if count > 0 {
		w.log.Infow("marked overdue payments", "count", count)
	}
}

func (w *Worker) cleanupTokens(ctx context.Context) {
	count, err := w.tokens.CleanupExpiredTokens(ctx)
	if err != nil {
		w.log.Errorw("token cleanup failed", "error", err)
		return
	}
	if count > 0 {
		w.log.Infow("cleaned up expired tokens", "count", count)
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	count, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if count > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", count)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
