package treatment

import (
	"context"

	"clinicore/internal/domain"
)

// Repository defines the interface for Treatment persistence.
type Repository interface {
	domain.CatalogRepository[*Treatment]

	// FindActive retrieves treatments available for booking.
	FindActive(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Treatment], error)
}
