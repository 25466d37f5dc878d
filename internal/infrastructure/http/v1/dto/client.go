package dto

import (
	"time"

	"clinicore/internal/domain/catalogs/client"
)

// CreateClientRequest for registering patients.
type CreateClientRequest struct {
	Code      string     `json:"code"`
	Name      string     `json:"name" binding:"required"`
	Phone     *string    `json:"phone"`
	Email     *string    `json:"email"`
	BirthDate *time.Time `json:"birthDate"`
	Notes     *string    `json:"notes"`
}

// ToEntity converts the request to a domain entity.
func (r CreateClientRequest) ToEntity() *client.Client {
	c := client.NewClient(r.Code, r.Name)
	c.Phone = r.Phone
	c.Email = r.Email
	c.BirthDate = r.BirthDate
	c.Notes = r.Notes
	return c
}

// UpdateClientRequest for updating patients.
type UpdateClientRequest struct {
	Code      *string    `json:"code"`
	Name      *string    `json:"name"`
	Phone     *string    `json:"phone"`
	Email     *string    `json:"email"`
	BirthDate *time.Time `json:"birthDate"`
	Notes     *string    `json:"notes"`
	Version   int        `json:"version" binding:"required,min=1"`
}

// ApplyTo merges non-nil fields onto the existing entity.
func (r UpdateClientRequest) ApplyTo(c *client.Client) {
	if r.Code != nil {
		c.Code = *r.Code
	}
	if r.Name != nil {
		c.Name = *r.Name
	}
	if r.Phone != nil {
		c.Phone = r.Phone
	}
	if r.Email != nil {
		c.Email = r.Email
	}
	if r.BirthDate != nil {
		c.BirthDate = r.BirthDate
	}
	if r.Notes != nil {
		c.Notes = r.Notes
	}
	c.Version = r.Version
}

// ClientResponse represents a patient in API responses.
type ClientResponse struct {
	CatalogResponse
	Phone     *string    `json:"phone,omitempty"`
	Email     *string    `json:"email,omitempty"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

// FromClient creates response from domain entity.
func FromClient(c *client.Client) ClientResponse {
	return ClientResponse{
		CatalogResponse: FromCatalog(c.Catalog),
		Phone:           c.Phone,
		Email:           c.Email,
		BirthDate:       c.BirthDate,
		Notes:           c.Notes,
	}
}
