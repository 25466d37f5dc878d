// Package client provides the Client catalog (clinic patients).
package client

import (
	"context"
	"regexp"
	"time"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/entity"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Client represents a clinic patient.
type Client struct {
	entity.Catalog

	// Phone is the primary contact number
	Phone *string `db:"phone" json:"phone,omitempty"`

	// Email is the contact email
	Email *string `db:"email" json:"email,omitempty"`

	// BirthDate is used for age-dependent treatments
	BirthDate *time.Time `db:"birth_date" json:"birthDate,omitempty"`

	// Notes holds free-form administrative notes (allergies go in medical records)
	Notes *string `db:"notes" json:"notes,omitempty"`
}

// NewClient creates a new Client with required fields.
func NewClient(code, name string) *Client {
	return &Client{
		Catalog: entity.NewCatalog(code, name),
	}
}

// Validate implements entity.Validatable interface.
func (c *Client) Validate(ctx context.Context) error {
	if err := c.Catalog.Validate(ctx); err != nil {
		return err
	}

	if c.Email != nil && *c.Email != "" && !emailRe.MatchString(*c.Email) {
		return apperror.NewValidation("invalid email format").
			WithDetail("field", "email").
			WithDetail("value", *c.Email)
	}

	if c.BirthDate != nil && c.BirthDate.After(time.Now()) {
		return apperror.NewValidation("birth date cannot be in the future").
			WithDetail("field", "birthDate")
	}

	return nil
}

// Age returns the client's age in full years, or -1 if birth date is unknown.
func (c *Client) Age(now time.Time) int {
	if c.BirthDate == nil {
		return -1
	}
	years := now.Year() - c.BirthDate.Year()
	anniversary := c.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
