// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"fmt"
	"os"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/types"
	"clinicore/internal/domain/auth"
	"clinicore/internal/domain/catalogs/client"
	"clinicore/internal/domain/catalogs/treatment"
	"clinicore/internal/domain/inventory"
	"clinicore/internal/infrastructure/numerator"
	"clinicore/internal/infrastructure/storage/postgres"
	"clinicore/internal/infrastructure/storage/postgres/auth_repo"
	"clinicore/internal/infrastructure/storage/postgres/catalog_repo"
	"clinicore/internal/infrastructure/storage/postgres/inventory_repo"
	"clinicore/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)
	numGen := numerator.New(pool)

	if err := seedAdminUser(ctx, txManager, log); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, txManager, numGen, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedAdminUser(ctx context.Context, txManager *postgres.TxManager, log *logger.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@clinicore.local"
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "Admin123!"
	}

	userRepo := auth_repo.NewUserRepo(txManager)
	tokenRepo := auth_repo.NewTokenRepo(txManager)
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig("seed-only"))
	authService := auth.NewService(userRepo, tokenRepo, txManager, jwtService, auth.DefaultServiceConfig())

	user, err := authService.Register(ctx, auth.RegisterRequest{
		Email:     adminEmail,
		Password:  adminPassword,
		FirstName: "System",
		LastName:  "Admin",
		Roles:     []string{"admin"},
	})
	if err != nil {
		if apperror.HasCode(err, apperror.CodeDuplicate) {
			log.Infow("admin user already exists", "email", adminEmail)
			return nil
		}
		return err
	}

	log.Infow("admin user created", "email", adminEmail, "user_id", user.ID)
	return nil
}

func seedDemoData(
	ctx context.Context,
	txManager *postgres.TxManager,
	numGen *numerator.Service,
	log *logger.Logger,
) error {
	log.Info("seeding demo data...")

	// 1. Treatments
	treatmentService := treatment.NewService(catalog_repo.NewTreatmentRepo(txManager), txManager, numGen)

	treatments := []struct {
		code     string
		name     string
		price    string
		duration int
		category string
	}{
		{"TRT-CLEAN", "Dental cleaning", "80.00", 45, "hygiene"},
		{"TRT-CHECK", "Routine checkup", "50.00", 30, "diagnostics"},
		{"TRT-FILL", "Composite filling", "120.00", 60, "restorative"},
		{"TRT-XRAY", "Panoramic X-ray", "40.00", 15, "diagnostics"},
		{"TRT-EXTR", "Tooth extraction", "150.00", 45, "surgery"},
	}

	for _, t := range treatments {
		if _, err := treatmentService.GetByCode(ctx, t.code); err == nil {
			continue
		}

		tr := treatment.NewTreatment(t.code, t.name, types.MustMoney(t.price), t.duration)
		category := t.category
		tr.Category = &category

		if err := treatmentService.Create(ctx, tr); err != nil {
			log.Warnw("failed to seed treatment", "code", t.code, "error", err)
		}
	}

	// 2. Clients
	clientService := client.NewService(catalog_repo.NewClientRepo(txManager), txManager, numGen)

	clients := []struct {
		code  string
		name  string
		phone string
	}{
		{"CLI-001", "Jane Porter", "+1-555-0101"},
		{"CLI-002", "Tom Hale", "+1-555-0102"},
		{"CLI-003", "Maria Santos", "+1-555-0103"},
	}

	for _, c := range clients {
		if _, err := clientService.GetByCode(ctx, c.code); err == nil {
			continue
		}

		cl := client.NewClient(c.code, c.name)
		phone := c.phone
		cl.Phone = &phone

		if err := clientService.Create(ctx, cl); err != nil {
			log.Warnw("failed to seed client", "code", c.code, "error", err)
		}
	}

	// 3. Supplies
	inventoryService := inventory.NewService(inventory_repo.NewSupplyRepo(txManager), numGen, txManager)

	supplies := []struct {
		code     string
		name     string
		unit     string
		stock    types.Quantity
		minStock types.Quantity
		unitCost string
	}{
		{"SUP-GLOVE", "Nitrile gloves (box)", "box", types.NewQuantityFromInt(40), types.NewQuantityFromInt(10), "8.50"},
		{"SUP-MASK", "Surgical masks (box)", "box", types.NewQuantityFromInt(25), types.NewQuantityFromInt(5), "6.00"},
		{"SUP-ANES", "Anesthetic cartridge", "pc", types.NewQuantityFromInt(200), types.NewQuantityFromInt(50), "1.20"},
		{"SUP-COMP", "Composite resin syringe", "pc", types.NewQuantityFromInt(30), types.NewQuantityFromInt(8), "14.00"},
	}

	for _, s := range supplies {
		if _, err := inventoryService.CreateSupply(ctx, inventory.CreateInput{
			Code:         s.code,
			Name:         s.name,
			Unit:         s.unit,
			InitialStock: s.stock,
			MinStock:     s.minStock,
			UnitCost:     types.MustMoney(s.unitCost),
		}); err != nil {
			if apperror.HasCode(err, apperror.CodeDuplicate) {
				continue
			}
			log.Warnw("failed to seed supply", "code", s.code, "error", err)
		}
	}

	log.Info("demo data seeded successfully")
	return nil
}
