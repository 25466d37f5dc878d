package scheduling

import (
	"context"
	"time"

	"clinicore/internal/core/id"
	"clinicore/internal/domain"
)

// Repository defines operations for appointment documents.
type Repository interface {
	Create(ctx context.Context, doc *Appointment) error
	GetByID(ctx context.Context, docID id.ID) (*Appointment, error)
	GetByNumber(ctx context.Context, number string) (*Appointment, error)
	Update(ctx context.Context, doc *Appointment) error

	GetLines(ctx context.Context, docID id.ID) ([]AppointmentLine, error)
	SaveLines(ctx context.Context, docID id.ID, lines []AppointmentLine) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Appointment], error)

	// GetForUpdate retrieves an appointment with a row lock. Must be called
	// inside a transaction; the completion workflow relies on it to serialize
	// concurrent transitions on the same appointment.
	GetForUpdate(ctx context.Context, docID id.ID) (*Appointment, error)
}

// ListFilter for filtering appointments.
type ListFilter struct {
	domain.ListFilter

	ClientID *id.ID
	StaffID  *id.ID
	Status   *Status
	DateFrom *time.Time
	DateTo   *time.Time
}
