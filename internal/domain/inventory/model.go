// Package inventory provides the Supply catalog and its movement ledger.
// Stock is a materialized cache of the ledger: every change goes through a
// movement record, never a direct stock edit.
package inventory

import (
	"context"
	"time"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/entity"
	"clinicore/internal/core/id"
	"clinicore/internal/core/types"
)

// SupplyStatus is derived from stock, expiry, and the minimum threshold.
// It is never stored, so it cannot drift from the facts it derives from.
type SupplyStatus string

const (
	SupplyActive     SupplyStatus = "ACTIVE"
	SupplyLowStock   SupplyStatus = "LOW_STOCK"
	SupplyOutOfStock SupplyStatus = "OUT_OF_STOCK"
	SupplyExpired    SupplyStatus = "EXPIRED"
)

// MovementType classifies ledger entries. Quantity is always a positive
// magnitude; the sign effect comes from the type (and direction for ADJUST).
type MovementType string

const (
	MovementIn      MovementType = "IN"
	MovementOut     MovementType = "OUT"
	MovementAdjust  MovementType = "ADJUST"
	MovementExpired MovementType = "EXPIRED"
)

// AdjustDirection states which way an ADJUST movement corrects the balance.
type AdjustDirection string

const (
	AdjustIncrease AdjustDirection = "INCREASE"
	AdjustDecrease AdjustDirection = "DECREASE"
)

// Supply represents a consumable clinic item.
type Supply struct {
	entity.Catalog

	Category *string `db:"category" json:"category,omitempty"`

	// Unit is the unit of measure (e.g., "pcs", "ml")
	Unit string `db:"unit" json:"unit"`

	// Stock is the materialized running balance of the movement ledger
	Stock types.Quantity `db:"stock" json:"stock"`

	MinStock types.Quantity  `db:"min_stock" json:"minStock"`
	MaxStock *types.Quantity `db:"max_stock" json:"maxStock,omitempty"`

	// UnitCost is the weighted-average cost, updated by IN movements
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	Supplier   *string    `db:"supplier" json:"supplier,omitempty"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
}

// NewSupply creates a supply with zero stock. Initial stock is recorded
// through an IN movement so the ledger stays complete.
func NewSupply(code, name, unit string) *Supply {
	return &Supply{
		Catalog:  entity.NewCatalog(code, name),
		Unit:     unit,
		UnitCost: types.Zero(),
	}
}

// Validate implements entity.Validatable.
func (s *Supply) Validate(ctx context.Context) error {
	if err := s.Catalog.Validate(ctx); err != nil {
		return err
	}

	if s.Unit == "" {
		return apperror.NewValidation("unit is required").
			WithDetail("field", "unit")
	}

	if s.Stock.IsNegative() {
		return apperror.NewValidation("stock cannot be negative").
			WithDetail("field", "stock")
	}

	if s.MinStock.IsNegative() {
		return apperror.NewValidation("minimum stock cannot be negative").
			WithDetail("field", "minStock")
	}

	if s.MaxStock != nil && *s.MaxStock < s.MinStock {
		return apperror.NewValidation("maximum stock cannot be below minimum").
			WithDetail("field", "maxStock")
	}

	return nil
}

// Status derives the supply status at the given time.
// Precedence: OUT_OF_STOCK over EXPIRED over LOW_STOCK over ACTIVE.
func (s *Supply) Status(now time.Time) SupplyStatus {
	return DeriveStatus(s.Stock, s.MinStock, s.ExpiryDate, now)
}

// DeriveStatus computes a supply status from its facts.
func DeriveStatus(stock, minStock types.Quantity, expiryDate *time.Time, now time.Time) SupplyStatus {
	switch {
	case stock.IsZero():
		return SupplyOutOfStock
	case expiryDate != nil && expiryDate.Before(now):
		return SupplyExpired
	case stock <= minStock:
		return SupplyLowStock
	default:
		return SupplyActive
	}
}

// Movement is one immutable ledger entry. Corrections are new ADJUST
// movements, never edits.
type Movement struct {
	ID       id.ID          `db:"id" json:"id"`
	SupplyID id.ID          `db:"supply_id" json:"supplyId"`
	Type     MovementType   `db:"type" json:"type"`
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// Direction is set for ADJUST movements only
	Direction *AdjustDirection `db:"direction" json:"direction,omitempty"`

	// UnitCost is the cost recorded for audit (IN movements)
	UnitCost *types.Money `db:"unit_cost" json:"unitCost,omitempty"`

	Reason *string `db:"reason" json:"reason,omitempty"`

	// ResultingStock is the balance right after this movement applied
	ResultingStock types.Quantity `db:"resulting_stock" json:"resultingStock"`

	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SignedDelta returns the stock effect of the movement.
func (m *Movement) SignedDelta() types.Quantity {
	return signedDelta(m.Type, m.Direction, m.Quantity)
}

func signedDelta(typ MovementType, direction *AdjustDirection, quantity types.Quantity) types.Quantity {
	switch typ {
	case MovementIn:
		return quantity
	case MovementOut, MovementExpired:
		return quantity.Neg()
	case MovementAdjust:
		if direction != nil && *direction == AdjustIncrease {
			return quantity
		}
		return quantity.Neg()
	}
	return 0
}
