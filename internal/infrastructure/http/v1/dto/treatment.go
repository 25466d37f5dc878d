package dto

import (
	"clinicore/internal/domain/catalogs/treatment"
)

// CreateTreatmentRequest for creating treatments.
type CreateTreatmentRequest struct {
	Code            string  `json:"code"`
	Name            string  `json:"name" binding:"required"`
	Price           string  `json:"price" binding:"required"`
	DurationMinutes int     `json:"durationMinutes" binding:"required,min=1"`
	Category        *string `json:"category"`
	Description     *string `json:"description"`
}

// ToEntity converts the request to a domain entity.
func (r CreateTreatmentRequest) ToEntity() (*treatment.Treatment, error) {
	price, err := parseMoney(r.Price)
	if err != nil {
		return nil, err
	}

	t := treatment.NewTreatment(r.Code, r.Name, price, r.DurationMinutes)
	t.Category = r.Category
	t.Description = r.Description
	return t, nil
}

// UpdateTreatmentRequest for updating treatments.
type UpdateTreatmentRequest struct {
	Code            *string `json:"code"`
	Name            *string `json:"name"`
	Price           *string `json:"price"`
	DurationMinutes *int    `json:"durationMinutes"`
	Category        *string `json:"category"`
	Description     *string `json:"description"`
	Active          *bool   `json:"active"`
	Version         int     `json:"version" binding:"required,min=1"`
}

// ApplyTo merges non-nil fields onto the existing entity.
func (r UpdateTreatmentRequest) ApplyTo(t *treatment.Treatment) error {
	if r.Code != nil {
		t.Code = *r.Code
	}
	if r.Name != nil {
		t.Name = *r.Name
	}
	if r.Price != nil {
		price, err := parseMoney(*r.Price)
		if err != nil {
			return err
		}
		t.Price = price
	}
	if r.DurationMinutes != nil {
		t.DurationMinutes = *r.DurationMinutes
	}
	if r.Category != nil {
		t.Category = r.Category
	}
	if r.Description != nil {
		t.Description = r.Description
	}
	if r.Active != nil {
		t.Active = *r.Active
	}
	t.Version = r.Version
	return nil
}

// TreatmentResponse represents a treatment in API responses.
type TreatmentResponse struct {
	CatalogResponse
	Price           string  `json:"price"`
	DurationMinutes int     `json:"durationMinutes"`
	Category        *string `json:"category,omitempty"`
	Description     *string `json:"description,omitempty"`
	Active          bool    `json:"active"`
}

// FromTreatment creates response from domain entity.
func FromTreatment(t *treatment.Treatment) TreatmentResponse {
	return TreatmentResponse{
		CatalogResponse: FromCatalog(t.Catalog),
		Price:           t.Price.String(),
		DurationMinutes: t.DurationMinutes,
		Category:        t.Category,
		Description:     t.Description,
		Active:          t.Active,
	}
}
