// Package records provides the MedicalRecord document (clinical history).
package records

import (
	"context"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/entity"
	"clinicore/internal/core/id"
)

// MedicalRecord is one clinical history entry for a client.
// At most one record is produced per completed appointment; follow-up
// entries reference the client without an appointment link.
type MedicalRecord struct {
	entity.Document

	ClientID      id.ID  `db:"client_id" json:"clientId"`
	AppointmentID *id.ID `db:"appointment_id" json:"appointmentId,omitempty"`

	Diagnosis     string  `db:"diagnosis" json:"diagnosis"`
	TreatmentText string  `db:"treatment_text" json:"treatmentText"`
	Notes         *string `db:"notes" json:"notes,omitempty"`

	// AttachmentRefs holds external references (scan/x-ray object keys)
	AttachmentRefs []string `db:"attachment_refs" json:"attachmentRefs,omitempty"`
}

// NewMedicalRecord creates a record for a client.
func NewMedicalRecord(clientID id.ID, diagnosis, treatmentText string) *MedicalRecord {
	return &MedicalRecord{
		Document:      entity.NewDocument(),
		ClientID:      clientID,
		Diagnosis:     diagnosis,
		TreatmentText: treatmentText,
	}
}

// Validate implements entity.Validatable.
func (r *MedicalRecord) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(r.ClientID) {
		return apperror.NewValidation("client is required").
			WithDetail("field", "clientId")
	}

	if r.Diagnosis == "" && r.TreatmentText == "" {
		return apperror.NewValidation("diagnosis or treatment text is required").
			WithDetail("field", "diagnosis")
	}

	return nil
}
