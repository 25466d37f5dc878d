package client

import (
	"context"
	"fmt"
	"time"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/numerator"
	"clinicore/internal/core/tx"
	"clinicore/internal/domain"
)

// Service provides business logic for the Client catalog.
type Service struct {
	*domain.CatalogService[*Client]
	repo      Repository
	numerator numerator.Generator
}

// NewService creates a new Client service.
func NewService(
	repo Repository,
	txManager tx.Manager,
	numerator numerator.Generator,
) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Client]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "client",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		numerator:      numerator,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForCreate)

	return svc
}

// prepareForCreate handles code generation and phone uniqueness.
func (s *Service) prepareForCreate(ctx context.Context, item *Client) error {
	if item.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("CLI"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		item.Code = code
	}

	if item.Phone != nil && *item.Phone != "" {
		if existing, err := s.repo.FindByPhone(ctx, *item.Phone); err == nil && existing.ID != item.ID {
			return apperror.NewDuplicate("client", "phone", *item.Phone)
		}
	}

	return nil
}

// FindByPhone retrieves a client by phone number.
func (s *Service) FindByPhone(ctx context.Context, phone string) (*Client, error) {
	return s.repo.FindByPhone(ctx, phone)
}
