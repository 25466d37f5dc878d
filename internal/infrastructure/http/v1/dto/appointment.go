package dto

import (
	"time"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/core/types"
	"clinicore/internal/domain/completion"
	"clinicore/internal/domain/scheduling"
)

// AppointmentLineRequest is one requested treatment line. The price is
// never accepted from the client; it is snapshotted from the catalog.
type AppointmentLineRequest struct {
	TreatmentID string         `json:"treatmentId" binding:"required,uuid"`
	Quantity    types.Quantity `json:"quantity" binding:"required"`
}

func mapLineInputs(lines []AppointmentLineRequest) ([]scheduling.LineInput, error) {
	inputs := make([]scheduling.LineInput, 0, len(lines))
	for i, l := range lines {
		treatmentID, err := id.Parse(l.TreatmentID)
		if err != nil {
			return nil, apperror.NewValidation("invalid treatment id").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		inputs = append(inputs, scheduling.LineInput{
			TreatmentID: treatmentID,
			Quantity:    l.Quantity,
		})
	}
	return inputs, nil
}

// CreateAppointmentRequest for booking appointments.
type CreateAppointmentRequest struct {
	ClientID  string                   `json:"clientId" binding:"required,uuid"`
	StaffID   *string                  `json:"staffId"`
	Date      time.Time                `json:"date" binding:"required"`
	StartTime time.Time                `json:"startTime" binding:"required"`
	EndTime   time.Time                `json:"endTime" binding:"required"`
	Lines     []AppointmentLineRequest `json:"lines" binding:"required,min=1"`
	Notes     *string                  `json:"notes"`
}

// ToInput converts the request to service input.
func (r CreateAppointmentRequest) ToInput() (scheduling.CreateInput, error) {
	clientID, err := id.Parse(r.ClientID)
	if err != nil {
		return scheduling.CreateInput{}, apperror.NewValidation("invalid client id").
			WithDetail("field", "clientId")
	}

	var staffID *id.ID
	if r.StaffID != nil && *r.StaffID != "" {
		parsed, err := id.Parse(*r.StaffID)
		if err != nil {
			return scheduling.CreateInput{}, apperror.NewValidation("invalid staff id").
				WithDetail("field", "staffId")
		}
		staffID = &parsed
	}

	lines, err := mapLineInputs(r.Lines)
	if err != nil {
		return scheduling.CreateInput{}, err
	}

	return scheduling.CreateInput{
		ClientID:  clientID,
		StaffID:   staffID,
		Date:      r.Date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Lines:     lines,
		Notes:     r.Notes,
	}, nil
}

// UpdateAppointmentLinesRequest replaces the treatment lines.
type UpdateAppointmentLinesRequest struct {
	Lines []AppointmentLineRequest `json:"lines" binding:"required,min=1"`
}

// ToInputs converts the request to service line inputs.
func (r UpdateAppointmentLinesRequest) ToInputs() ([]scheduling.LineInput, error) {
	return mapLineInputs(r.Lines)
}

// ClinicalRequest is the optional documentation supplied at completion.
type ClinicalRequest struct {
	Diagnosis      string   `json:"diagnosis"`
	TreatmentText  string   `json:"treatmentText"`
	Notes          *string  `json:"notes"`
	AttachmentRefs []string `json:"attachmentRefs"`
}

// ToInput converts the request to workflow input.
func (r *ClinicalRequest) ToInput() *completion.ClinicalInput {
	if r == nil {
		return nil
	}
	return &completion.ClinicalInput{
		Diagnosis:      r.Diagnosis,
		TreatmentText:  r.TreatmentText,
		Notes:          r.Notes,
		AttachmentRefs: r.AttachmentRefs,
	}
}

// TransitionRequest moves an appointment to a target status.
// Clinical documentation is accepted only for COMPLETED targets.
type TransitionRequest struct {
	Status   string           `json:"status" binding:"required"`
	Clinical *ClinicalRequest `json:"clinical"`
}

// CancelAppointmentRequest cancels an appointment with a reason.
type CancelAppointmentRequest struct {
	Reason *string `json:"reason"`
}

// CompleteAppointmentRequest runs the completion workflow.
type CompleteAppointmentRequest struct {
	Clinical *ClinicalRequest `json:"clinical"`
}

// AppointmentLineResponse represents a booked treatment line.
type AppointmentLineResponse struct {
	LineID      string `json:"lineId"`
	LineNo      int    `json:"lineNo"`
	TreatmentID string `json:"treatmentId"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
	Amount      string `json:"amount"`
}

// AppointmentResponse represents an appointment in API responses.
type AppointmentResponse struct {
	DocumentResponse
	ClientID     string                    `json:"clientId"`
	StaffID      *string                   `json:"staffId,omitempty"`
	StartTime    time.Time                 `json:"startTime"`
	EndTime      time.Time                 `json:"endTime"`
	Status       string                    `json:"status"`
	Notes        *string                   `json:"notes,omitempty"`
	CancelReason *string                   `json:"cancelReason,omitempty"`
	TotalAmount  string                    `json:"totalAmount"`
	Lines        []AppointmentLineResponse `json:"lines,omitempty"`
}

// FromAppointment creates response from domain entity.
func FromAppointment(a *scheduling.Appointment) AppointmentResponse {
	var staffID *string
	if a.StaffID != nil {
		s := a.StaffID.String()
		staffID = &s
	}

	lines := make([]AppointmentLineResponse, 0, len(a.Lines))
	for _, l := range a.Lines {
		lines = append(lines, AppointmentLineResponse{
			LineID:      l.LineID.String(),
			LineNo:      l.LineNo,
			TreatmentID: l.TreatmentID.String(),
			Quantity:    l.Quantity.String(),
			Price:       l.Price.String(),
			Amount:      l.Amount.String(),
		})
	}

	return AppointmentResponse{
		DocumentResponse: FromDocument(a.Document),
		ClientID:         a.ClientID.String(),
		StaffID:          staffID,
		StartTime:        a.StartTime,
		EndTime:          a.EndTime,
		Status:           string(a.Status),
		Notes:            a.Notes,
		CancelReason:     a.CancelReason,
		TotalAmount:      a.TotalAmount.String(),
		Lines:            lines,
	}
}

// CompletionResponse is the outcome of a transition or completion.
type CompletionResponse struct {
	Appointment   AppointmentResponse    `json:"appointment"`
	Invoice       *InvoiceResponse       `json:"invoice,omitempty"`
	MedicalRecord *MedicalRecordResponse `json:"medicalRecord,omitempty"`
}

// FromCompletionResult creates response from the workflow result.
func FromCompletionResult(res *completion.Result) CompletionResponse {
	out := CompletionResponse{
		Appointment: FromAppointment(res.Appointment),
	}
	if res.Invoice != nil {
		inv := FromInvoice(res.Invoice)
		out.Invoice = &inv
	}
	if res.MedicalRecord != nil {
		rec := FromMedicalRecord(res.MedicalRecord)
		out.MedicalRecord = &rec
	}
	return out
}
