package client

import (
	"context"

	"clinicore/internal/domain"
)

// Repository defines the interface for Client persistence.
type Repository interface {
	domain.CatalogRepository[*Client]

	// FindByPhone retrieves a client by phone number.
	FindByPhone(ctx context.Context, phone string) (*Client, error)
}
