package treatment

import (
	"context"
	"fmt"
	"time"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/core/numerator"
	"clinicore/internal/core/tx"
	"clinicore/internal/domain"
)

// Service provides business logic for the Treatment catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Treatment]
	repo      Repository
	numerator numerator.Generator
}

// NewService creates a new Treatment service.
func NewService(
	repo Repository,
	txManager tx.Manager,
	numerator numerator.Generator,
) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Treatment]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "treatment",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		numerator:      numerator,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForCreate)

	return svc
}

// prepareForCreate handles code generation and uniqueness checks.
func (s *Service) prepareForCreate(ctx context.Context, item *Treatment) error {
	if item.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("TRT"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		item.Code = code
	}

	if exists, _ := s.repo.ExistsByCode(ctx, item.Code); exists {
		return apperror.NewDuplicate("treatment", "code", item.Code)
	}

	return nil
}

// FindActive retrieves treatments available for booking.
func (s *Service) FindActive(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Treatment], error) {
	return s.repo.FindActive(ctx, filter)
}

// Deactivate removes a treatment from the bookable set without deleting it.
func (s *Service) Deactivate(ctx context.Context, treatmentID id.ID) error {
	item, err := s.GetByID(ctx, treatmentID)
	if err != nil {
		return err
	}
	item.Active = false
	return s.Update(ctx, item)
}
