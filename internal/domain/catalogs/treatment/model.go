// Package treatment provides the Treatment catalog.
// A treatment is a billable clinic service with a list price and duration.
package treatment

import (
	"context"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/entity"
	"clinicore/internal/core/types"
)

// Treatment represents a clinic service offered to clients.
type Treatment struct {
	entity.Catalog

	// Price is the current list price. Appointment lines snapshot it,
	// so changing it never affects already booked appointments.
	Price types.Money `db:"price" json:"price"`

	// DurationMinutes is the default appointment slot length
	DurationMinutes int `db:"duration_minutes" json:"durationMinutes"`

	// Category groups treatments for reporting (e.g., "hygiene", "surgery")
	Category *string `db:"category" json:"category,omitempty"`

	// Description is a detailed description
	Description *string `db:"description" json:"description,omitempty"`

	// Active controls whether the treatment can be added to new appointments
	Active bool `db:"active" json:"active"`
}

// NewTreatment creates a new Treatment with required fields.
func NewTreatment(code, name string, price types.Money, durationMinutes int) *Treatment {
	return &Treatment{
		Catalog:         entity.NewCatalog(code, name),
		Price:           price,
		DurationMinutes: durationMinutes,
		Active:          true,
	}
}

// Validate implements entity.Validatable interface.
func (t *Treatment) Validate(ctx context.Context) error {
	if err := t.Catalog.Validate(ctx); err != nil {
		return err
	}

	if t.Price.IsNegative() {
		return apperror.NewValidation("price cannot be negative").
			WithDetail("field", "price")
	}

	if t.DurationMinutes <= 0 {
		return apperror.NewValidation("duration must be positive").
			WithDetail("field", "durationMinutes").
			WithDetail("value", t.DurationMinutes)
	}

	return nil
}
