package dto

import (
	"time"

	"clinicore/internal/core/types"
	"clinicore/internal/domain/inventory"
)

// CreateSupplyRequest for registering supplies.
type CreateSupplyRequest struct {
	Code         string          `json:"code"`
	Name         string          `json:"name" binding:"required"`
	Category     *string         `json:"category"`
	Unit         string          `json:"unit" binding:"required"`
	InitialStock types.Quantity  `json:"initialStock"`
	MinStock     types.Quantity  `json:"minStock"`
	MaxStock     *types.Quantity `json:"maxStock"`
	UnitCost     string          `json:"unitCost"`
	Supplier     *string         `json:"supplier"`
	ExpiryDate   *time.Time      `json:"expiryDate"`
}

// ToInput converts the request to service input.
func (r CreateSupplyRequest) ToInput() (inventory.CreateInput, error) {
	unitCost := types.Zero()
	if r.UnitCost != "" {
		parsed, err := parseMoney(r.UnitCost)
		if err != nil {
			return inventory.CreateInput{}, err
		}
		unitCost = parsed
	}

	return inventory.CreateInput{
		Code:         r.Code,
		Name:         r.Name,
		Category:     r.Category,
		Unit:         r.Unit,
		InitialStock: r.InitialStock,
		MinStock:     r.MinStock,
		MaxStock:     r.MaxStock,
		UnitCost:     unitCost,
		Supplier:     r.Supplier,
		ExpiryDate:   r.ExpiryDate,
	}, nil
}

// UpdateSupplyRequest for editing catalog fields.
// Stock is deliberately absent; it only changes through movements.
type UpdateSupplyRequest struct {
	Code       *string         `json:"code"`
	Name       *string         `json:"name"`
	Category   *string         `json:"category"`
	Unit       *string         `json:"unit"`
	MinStock   *types.Quantity `json:"minStock"`
	MaxStock   *types.Quantity `json:"maxStock"`
	Supplier   *string         `json:"supplier"`
	ExpiryDate *time.Time      `json:"expiryDate"`
	Version    int             `json:"version" binding:"required,min=1"`
}

// ApplyTo merges non-nil fields onto the existing entity.
func (r UpdateSupplyRequest) ApplyTo(s *inventory.Supply) {
	if r.Code != nil {
		s.Code = *r.Code
	}
	if r.Name != nil {
		s.Name = *r.Name
	}
	if r.Category != nil {
		s.Category = r.Category
	}
	if r.Unit != nil {
		s.Unit = *r.Unit
	}
	if r.MinStock != nil {
		s.MinStock = *r.MinStock
	}
	if r.MaxStock != nil {
		s.MaxStock = r.MaxStock
	}
	if r.Supplier != nil {
		s.Supplier = r.Supplier
	}
	if r.ExpiryDate != nil {
		s.ExpiryDate = r.ExpiryDate
	}
	s.Version = r.Version
}

// MovementRequest records a stock movement.
type MovementRequest struct {
	Type      string         `json:"type" binding:"required"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	Direction *string        `json:"direction"`
	UnitCost  *string        `json:"unitCost"`
	Reason    *string        `json:"reason"`
}

// ToInput converts the request to service input.
func (r MovementRequest) ToInput() (inventory.MovementInput, error) {
	input := inventory.MovementInput{
		Type:     inventory.MovementType(r.Type),
		Quantity: r.Quantity,
		Reason:   r.Reason,
	}

	if r.Direction != nil {
		dir := inventory.AdjustDirection(*r.Direction)
		input.Direction = &dir
	}

	if r.UnitCost != nil && *r.UnitCost != "" {
		cost, err := parseMoney(*r.UnitCost)
		if err != nil {
			return inventory.MovementInput{}, err
		}
		input.UnitCost = &cost
	}

	return input, nil
}

// SupplyResponse represents a supply in API responses.
type SupplyResponse struct {
	CatalogResponse
	Category   *string    `json:"category,omitempty"`
	Unit       string     `json:"unit"`
	Stock      string     `json:"stock"`
	MinStock   string     `json:"minStock"`
	MaxStock   *string    `json:"maxStock,omitempty"`
	UnitCost   string     `json:"unitCost"`
	Supplier   *string    `json:"supplier,omitempty"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
	Status     string     `json:"status"`
}

// FromSupply creates response from domain entity. Status is derived at
// response time, never stored.
func FromSupply(s *inventory.Supply, now time.Time) SupplyResponse {
	var maxStock *string
	if s.MaxStock != nil {
		v := s.MaxStock.String()
		maxStock = &v
	}

	return SupplyResponse{
		CatalogResponse: FromCatalog(s.Catalog),
		Category:        s.Category,
		Unit:            s.Unit,
		Stock:           s.Stock.String(),
		MinStock:        s.MinStock.String(),
		MaxStock:        maxStock,
		UnitCost:        s.UnitCost.String(),
		Supplier:        s.Supplier,
		ExpiryDate:      s.ExpiryDate,
		Status:          string(s.Status(now)),
	}
}

// SupplyViewResponse is the stock/status view after an operation.
type SupplyViewResponse struct {
	SupplyID string `json:"supplyId"`
	Stock    string `json:"stock"`
	Status   string `json:"status"`
	UnitCost string `json:"unitCost"`
}

// FromSupplyView creates response from the service view.
func FromSupplyView(v inventory.View) SupplyViewResponse {
	return SupplyViewResponse{
		SupplyID: v.SupplyID.String(),
		Stock:    v.Stock.String(),
		Status:   string(v.Status),
		UnitCost: v.UnitCost.String(),
	}
}

// MovementResponse represents a ledger entry in API responses.
type MovementResponse struct {
	ID             string    `json:"id"`
	SupplyID       string    `json:"supplyId"`
	Type           string    `json:"type"`
	Quantity       string    `json:"quantity"`
	Direction      *string   `json:"direction,omitempty"`
	UnitCost       *string   `json:"unitCost,omitempty"`
	Reason         *string   `json:"reason,omitempty"`
	ResultingStock string    `json:"resultingStock"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FromMovement creates response from domain entity.
func FromMovement(m *inventory.Movement) MovementResponse {
	var direction, unitCost *string
	if m.Direction != nil {
		d := string(*m.Direction)
		direction = &d
	}
	if m.UnitCost != nil {
		c := m.UnitCost.String()
		unitCost = &c
	}

	return MovementResponse{
		ID:             m.ID.String(),
		SupplyID:       m.SupplyID.String(),
		Type:           string(m.Type),
		Quantity:       m.Quantity.String(),
		Direction:      direction,
		UnitCost:       unitCost,
		Reason:         m.Reason,
		ResultingStock: m.ResultingStock.String(),
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
}
