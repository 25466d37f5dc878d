// Package main is the entry point for the clinicore API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinicore/internal/core/security"
	"clinicore/internal/domain/audit"
	"clinicore/internal/domain/auth"
	"clinicore/internal/domain/billing"
	"clinicore/internal/domain/catalogs/client"
	"clinicore/internal/domain/catalogs/treatment"
	"clinicore/internal/domain/completion"
	"clinicore/internal/domain/inventory"
	"clinicore/internal/domain/records"
	"clinicore/internal/domain/scheduling"
	v1 "clinicore/internal/infrastructure/http/v1"
	"clinicore/internal/infrastructure/numerator"
	"clinicore/internal/infrastructure/storage/postgres"
	"clinicore/internal/infrastructure/storage/postgres/auth_repo"
	"clinicore/internal/infrastructure/storage/postgres/catalog_repo"
	"clinicore/internal/infrastructure/storage/postgres/document_repo"
	"clinicore/internal/infrastructure/storage/postgres/inventory_repo"
	"clinicore/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting clinicore server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalw("failed to ping database", "error", err)
	}
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Numerator ---
	numGen := numerator.New(pool)

	// --- Booking policy ---
	bookingPolicy, err := security.NewBookingPolicy(getEnv("BOOKING_RULE", ""))
	if err != nil {
		log.Fatalw("failed to compile booking rule", "error", err)
	}

	// --- Audit ---
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}
	var recorder audit.Recorder = auditService
	if getEnv("AUDIT_ENABLED", "true") != "true" {
		recorder = audit.NopRecorder{}
	}

	// --- Repositories ---
	treatmentRepo := catalog_repo.NewTreatmentRepo(txManager)
	clientRepo := catalog_repo.NewClientRepo(txManager)
	appointmentRepo := document_repo.NewAppointmentRepo(txManager)
	invoiceRepo := document_repo.NewInvoiceRepo(txManager)
	paymentRepo := document_repo.NewPaymentRepo(txManager)
	recordRepo := document_repo.NewMedicalRecordRepo(txManager)
	supplyRepo := inventory_repo.NewSupplyRepo(txManager)

	// --- Domain services ---
	treatmentService := treatment.NewService(treatmentRepo, txManager, numGen)
	clientService := client.NewService(clientRepo, txManager, numGen)
	schedulingService := scheduling.NewService(
		appointmentRepo,
		treatmentService,
		clientService,
		bookingPolicy,
		numGen,
		txManager,
	)
	billingService := billing.NewService(invoiceRepo, paymentRepo, numGen, txManager)
	recordsService := records.NewService(recordRepo, numGen, txManager)
	inventoryService := inventory.NewService(supplyRepo, numGen, txManager)
	workflow := completion.NewWorkflow(schedulingService, billingService, recordsService, txManager)

	// --- Auth ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	userRepo := auth_repo.NewUserRepo(txManager)
	tokenRepo := auth_repo.NewTokenRepo(txManager)
	authService := auth.NewService(userRepo, tokenRepo, txManager, jwtService, auth.DefaultServiceConfig())

	// --- Idempotency ---
	idempotencyTTL := getEnvDuration("IDEMPOTENCY_TTL", 10*time.Minute)
	idempotencyStore := postgres.NewIdempotencyStore(pool, txManager, idempotencyTTL)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:             log,
		Pool:               pool,
		JWTValidator:       jwtService,
		AuthService:        authService,
		Treatments:         treatmentService,
		Clients:            clientService,
		Appointments:       schedulingService,
		Workflow:           workflow,
		Billing:            billingService,
		Inventory:          inventoryService,
		Records:            recordsService,
		Recorder:           recorder,
		Audit:              auditService,
		IdempotencyStore:   idempotencyStore,
		IdempotencyEnabled: getEnv("IDEMPOTENCY_ENABLED", "true") == "true",
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
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
