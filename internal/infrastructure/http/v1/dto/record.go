package dto

import (
	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/domain/records"
)

// CreateMedicalRecordRequest for follow-up clinical entries.
// Appointment-linked records are normally produced by the completion
// workflow; a manual appointment link is still accepted and stays unique.
type CreateMedicalRecordRequest struct {
	ClientID       string   `json:"clientId" binding:"required,uuid"`
	AppointmentID  *string  `json:"appointmentId"`
	Diagnosis      string   `json:"diagnosis"`
	TreatmentText  string   `json:"treatmentText"`
	Notes          *string  `json:"notes"`
	AttachmentRefs []string `json:"attachmentRefs"`
}

// ToInput converts the request to service input.
func (r CreateMedicalRecordRequest) ToInput() (records.CreateInput, error) {
	clientID, err := id.Parse(r.ClientID)
	if err != nil {
		return records.CreateInput{}, apperror.NewValidation("invalid client id").
			WithDetail("field", "clientId")
	}

	var appointmentID *id.ID
	if r.AppointmentID != nil && *r.AppointmentID != "" {
		parsed, err := id.Parse(*r.AppointmentID)
		if err != nil {
			return records.CreateInput{}, apperror.NewValidation("invalid appointment id").
				WithDetail("field", "appointmentId")
		}
		appointmentID = &parsed
	}

	return records.CreateInput{
		ClientID:       clientID,
		AppointmentID:  appointmentID,
		Diagnosis:      r.Diagnosis,
		TreatmentText:  r.TreatmentText,
		Notes:          r.Notes,
		AttachmentRefs: r.AttachmentRefs,
	}, nil
}

// UpdateMedicalRecordRequest edits an existing record.
type UpdateMedicalRecordRequest struct {
	Diagnosis      *string  `json:"diagnosis"`
	TreatmentText  *string  `json:"treatmentText"`
	Notes          *string  `json:"notes"`
	AttachmentRefs []string `json:"attachmentRefs"`
	Version        int      `json:"version" binding:"required,min=1"`
}

// ApplyTo merges non-nil fields onto the existing record.
func (r UpdateMedicalRecordRequest) ApplyTo(rec *records.MedicalRecord) {
	if r.Diagnosis != nil {
		rec.Diagnosis = *r.Diagnosis
	}
	if r.TreatmentText != nil {
		rec.TreatmentText = *r.TreatmentText
	}
	if r.Notes != nil {
		rec.Notes = r.Notes
	}
	if r.AttachmentRefs != nil {
		rec.AttachmentRefs = r.AttachmentRefs
	}
	rec.Version = r.Version
}

// MedicalRecordResponse represents a clinical entry in API responses.
type MedicalRecordResponse struct {
	DocumentResponse
	ClientID       string   `json:"clientId"`
	AppointmentID  *string  `json:"appointmentId,omitempty"`
	Diagnosis      string   `json:"diagnosis"`
	TreatmentText  string   `json:"treatmentText"`
	Notes          *string  `json:"notes,omitempty"`
	AttachmentRefs []string `json:"attachmentRefs,omitempty"`
}

// FromMedicalRecord creates response from domain entity.
func FromMedicalRecord(rec *records.MedicalRecord) MedicalRecordResponse {
	var appointmentID *string
	if rec.AppointmentID != nil {
		s := rec.AppointmentID.String()
		appointmentID = &s
	}

	return MedicalRecordResponse{
		DocumentResponse: FromDocument(rec.Document),
		ClientID:         rec.ClientID.String(),
		AppointmentID:    appointmentID,
		Diagnosis:        rec.Diagnosis,
		TreatmentText:    rec.TreatmentText,
		Notes:            rec.Notes,
		AttachmentRefs:   rec.AttachmentRefs,
	}
}
