// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"clinicore/internal/domain/audit"
	"clinicore/internal/domain/auth"
	"clinicore/internal/domain/billing"
	"clinicore/internal/domain/catalogs/client"
	"clinicore/internal/domain/catalogs/treatment"
	"clinicore/internal/domain/completion"
	"clinicore/internal/domain/inventory"
	"clinicore/internal/domain/records"
	"clinicore/internal/domain/scheduling"
	"clinicore/internal/infrastructure/http/v1/handlers"
	"clinicore/internal/infrastructure/http/v1/middleware"
	"clinicore/internal/infrastructure/storage/postgres"
	"clinicore/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Pool is the database connection (for health checks)
	Pool *postgres.Pool

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// AuthService for authentication endpoints
	AuthService *auth.Service

	// Domain services
	Treatments   *treatment.Service
	Clients      *client.Service
	Appointments *scheduling.Service
	Workflow     *completion.Workflow
	Billing      *billing.Service
	Inventory    *inventory.Service
	Records      *records.Service

	// Recorder writes audit entries for mutations
	Recorder audit.Recorder

	// Audit serves change history queries
	Audit *postgres.AuditService

	// IdempotencyStore backs replay of mutating requests
	IdempotencyStore *postgres.IdempotencyStore

	// IdempotencyEnabled enables idempotency middleware
	IdempotencyEnabled bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		registerAuthRoutes(v1, cfg)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		if cfg.IdempotencyEnabled && cfg.IdempotencyStore != nil {
			protected.Use(middleware.Idempotency(cfg.IdempotencyStore))
		}

		registerCatalogRoutes(protected, cfg)
		registerAppointmentRoutes(protected, cfg)
		registerBillingRoutes(protected, cfg)
		registerInventoryRoutes(protected, cfg)
		registerRecordRoutes(protected, cfg)
		registerAuditRoutes(protected, cfg)
	}

	return router
}

// registerAuthRoutes registers authentication endpoints.
func registerAuthRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.AuthService == nil {
		return
	}

	baseHandler := handlers.NewBaseHandler()
	authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)

	// Public auth endpoints (no JWT required)
	publicAuth := rg.Group("")

	// Protected auth endpoints (JWT required)
	protectedAuth := rg.Group("")
	protectedAuth.Use(middleware.Auth(cfg.JWTValidator))

	authHandler.RegisterRoutes(publicAuth, protectedAuth)
}

// registerCatalogRoutes registers catalog endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	catalogs := rg.Group("/catalog")
	baseHandler := handlers.NewBaseHandler()

	// --- TREATMENTS ---
	{
		handler := handlers.NewTreatmentHandler(baseHandler, cfg.Treatments)
		group := catalogs.Group("/treatments")
		group.GET("/active", handler.Active)
		RegisterCatalogRoutes(group, handler)
	}

	// --- CLIENTS ---
	{
		handler := handlers.NewClientHandler(baseHandler, cfg.Clients)
		group := catalogs.Group("/clients")
		group.GET("/by-phone", handler.ByPhone)
		RegisterCatalogRoutes(group, handler)
	}
}

// registerAppointmentRoutes registers appointment lifecycle endpoints.
func registerAppointmentRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewAppointmentHandler(baseHandler, cfg.Appointments, cfg.Workflow, cfg.Recorder)

	group := rg.Group("/appointments")
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.GET("/:id", handler.Get)
		group.PUT("/:id/lines", handler.UpdateLines)
		group.POST("/:id/transition", handler.Transition)
		group.POST("/:id/cancel", handler.Cancel)
		group.POST("/:id/complete", handler.Complete)
	}
}

// registerBillingRoutes registers invoice and payment endpoints.
func registerBillingRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()

	invoiceHandler := handlers.NewInvoiceHandler(baseHandler, cfg.Billing, cfg.Recorder)
	invoices := rg.Group("/invoices")
	{
		invoices.GET("", invoiceHandler.List)
		invoices.POST("", invoiceHandler.Create)
		invoices.GET("/:id", invoiceHandler.Get)
		invoices.GET("/:id/snapshot", invoiceHandler.Snapshot)
		invoices.POST("/:id/cancel", invoiceHandler.Cancel)
		invoices.POST("/:id/rebuild", invoiceHandler.RebuildPaidAmount)
	}

	paymentHandler := handlers.NewPaymentHandler(baseHandler, cfg.Billing, cfg.Recorder)
	payments := rg.Group("/payments")
	{
		payments.GET("", paymentHandler.List)
		payments.POST("", paymentHandler.Apply)
		payments.POST("/planned", paymentHandler.Planned)
		payments.GET("/:id", paymentHandler.Get)
		payments.POST("/:id/mark-paid", paymentHandler.MarkPaid)
		payments.POST("/:id/refund", paymentHandler.Refund)
	}
}

// registerInventoryRoutes registers supply and stock movement endpoints.
func registerInventoryRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewSupplyHandler(baseHandler, cfg.Inventory, cfg.Recorder)

	group := rg.Group("/supplies")
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.GET("/low-stock", handler.LowStock)
		group.GET("/:id", handler.Get)
		group.PUT("/:id", handler.Update)
		group.GET("/:id/view", handler.View)
		group.POST("/:id/movements", handler.Movement)
		group.GET("/:id/movements", handler.Movements)
		group.POST("/:id/rebuild-stock", handler.RebuildStock)
	}
}

// registerRecordRoutes registers medical record endpoints.
func registerRecordRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewRecordHandler(baseHandler, cfg.Records, cfg.Recorder)

	group := rg.Group("/records")
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.GET("/:id", handler.Get)
		group.PUT("/:id", handler.Update)
	}
}

// registerAuditRoutes registers change history endpoints for admins.
func registerAuditRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.Audit == nil {
		return
	}

	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewAuditHandler(baseHandler, cfg.Audit)

	group := rg.Group("/audit")
	group.Use(middleware.RequireRole("admin"))
	group.GET("/:entityType/:entityId", handler.History)
}
