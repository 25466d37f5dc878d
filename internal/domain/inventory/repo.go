package inventory

import (
	"context"
	"time"

	"clinicore/internal/core/id"
	"clinicore/internal/domain"
)

// Repository defines operations for supplies and the movement ledger.
type Repository interface {
	domain.CatalogRepository[*Supply]

	// GetForUpdate retrieves a supply with a row lock. Must be called inside
	// a transaction; movement application relies on it to serialize
	// concurrent check-and-decrement on the same supply.
	GetForUpdate(ctx context.Context, supplyID id.ID) (*Supply, error)

	// AppendMovement persists an immutable ledger entry.
	AppendMovement(ctx context.Context, m *Movement) error

	// ListMovements retrieves ledger entries, oldest first.
	ListMovements(ctx context.Context, filter MovementFilter) (domain.ListResult[*Movement], error)

	// GetAllMovements retrieves the full ledger for one supply in apply
	// order, for balance replay.
	GetAllMovements(ctx context.Context, supplyID id.ID) ([]*Movement, error)

	// FindBelowMinimum retrieves supplies at or below their minimum stock.
	FindBelowMinimum(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Supply], error)
}

// MovementFilter for filtering ledger entries.
type MovementFilter struct {
	domain.ListFilter

	SupplyID *id.ID
	Type     *MovementType
	DateFrom *time.Time
	DateTo   *time.Time
}
