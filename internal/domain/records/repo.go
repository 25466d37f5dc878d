package records

import (
	"context"
	"time"

	"clinicore/internal/core/id"
	"clinicore/internal/domain"
)

// Repository defines operations for medical records.
type Repository interface {
	Create(ctx context.Context, doc *MedicalRecord) error
	GetByID(ctx context.Context, docID id.ID) (*MedicalRecord, error)
	Update(ctx context.Context, doc *MedicalRecord) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*MedicalRecord], error)

	// FindByAppointment retrieves the record produced by an appointment.
	FindByAppointment(ctx context.Context, appointmentID id.ID) (*MedicalRecord, error)
}

// ListFilter for filtering medical records.
type ListFilter struct {
	domain.ListFilter

	ClientID      *id.ID
	AppointmentID *id.ID
	DateFrom      *time.Time
	DateTo        *time.Time
}
