// Package scheduling provides the Appointment document and its state machine.
package scheduling

import (
	"context"
	"time"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/entity"
	"clinicore/internal/core/id"
	"clinicore/internal/core/types"
)

// Appointment represents a booked clinic visit.
// It is never physically deleted; cancellation is a terminal status.
type Appointment struct {
	entity.Document

	// ClientID references the patient
	ClientID id.ID `db:"client_id" json:"clientId"`

	// StaffID references the assigned practitioner, if any
	StaffID *id.ID `db:"staff_id" json:"staffId,omitempty"`

	// StartTime and EndTime bound the visit on the document Date
	StartTime time.Time `db:"start_time" json:"startTime"`
	EndTime   time.Time `db:"end_time" json:"endTime"`

	// Status is the state-machine position
	Status Status `db:"status" json:"status"`

	// Notes is free-text booking information
	Notes *string `db:"notes" json:"notes,omitempty"`

	// CancelReason is recorded when the appointment is cancelled
	CancelReason *string `db:"cancel_reason" json:"cancelReason,omitempty"`

	// TotalAmount is derived from lines and kept in sync on every edit
	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`

	// Table part: booked treatments with price snapshots
	Lines []AppointmentLine `db:"-" json:"lines"`
}

// AppointmentLine is one treatment booked on an appointment.
// Price is a snapshot of the catalog price at add-time, so later catalog
// price changes never affect existing appointments or their invoices.
type AppointmentLine struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	TreatmentID id.ID          `db:"treatment_id" json:"treatmentId"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	Price       types.Money    `db:"price" json:"price"`
	Amount      types.Money    `db:"amount" json:"amount"`
}

// NewAppointment creates an appointment in SCHEDULED.
func NewAppointment(clientID id.ID, date, startTime, endTime time.Time) *Appointment {
	doc := entity.NewDocument()
	doc.Date = date
	return &Appointment{
		Document:    doc,
		ClientID:    clientID,
		StartTime:   startTime,
		EndTime:     endTime,
		Status:      StatusScheduled,
		TotalAmount: types.Zero(),
		Lines:       make([]AppointmentLine, 0),
	}
}

// AddLine appends a treatment line with the given price snapshot and
// recalculates the total.
func (a *Appointment) AddLine(treatmentID id.ID, quantity types.Quantity, price types.Money) {
	line := AppointmentLine{
		LineID:      id.New(),
		LineNo:      len(a.Lines) + 1,
		TreatmentID: treatmentID,
		Quantity:    quantity,
		Price:       price,
		Amount:      price.Mul(quantity.Decimal()),
	}

	a.Lines = append(a.Lines, line)
	a.recalculateTotals()
}

// ReplaceLines swaps the table part for freshly snapshotted lines.
func (a *Appointment) ReplaceLines(lines []AppointmentLine) {
	a.Lines = lines
	for i := range a.Lines {
		if id.IsNil(a.Lines[i].LineID) {
			a.Lines[i].LineID = id.New()
		}
		a.Lines[i].LineNo = i + 1
		a.Lines[i].Amount = a.Lines[i].Price.Mul(a.Lines[i].Quantity.Decimal())
	}
	a.recalculateTotals()
}

func (a *Appointment) recalculateTotals() {
	total := types.Zero()
	for _, line := range a.Lines {
		total = total.Add(line.Amount)
	}
	a.TotalAmount = total
}

// Validate implements entity.Validatable.
func (a *Appointment) Validate(ctx context.Context) error {
	if err := a.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(a.ClientID) {
		return apperror.NewValidation("client is required").
			WithDetail("field", "clientId")
	}

	if !a.Status.IsValid() {
		return apperror.NewValidation("invalid appointment status").
			WithDetail("field", "status").
			WithDetail("value", string(a.Status))
	}

	if !a.EndTime.After(a.StartTime) {
		return apperror.NewValidation("end time must be after start time").
			WithDetail("field", "endTime")
	}

	if len(a.Lines) == 0 {
		return apperror.NewValidation("at least one treatment line is required").
			WithDetail("field", "lines")
	}

	for i, line := range a.Lines {
		if id.IsNil(line.TreatmentID) {
			return apperror.NewValidation("treatment is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.Price.IsNegative() {
			return apperror.NewValidation("price cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// DurationMinutes returns the booked slot length.
func (a *Appointment) DurationMinutes() int64 {
	return int64(a.EndTime.Sub(a.StartTime) / time.Minute)
}

// CanModifyLines returns an error unless the table part is still editable.
func (a *Appointment) CanModifyLines() error {
	if !a.Status.IsEditable() {
		return apperror.NewAppointmentLocked(a.ID.String(), string(a.Status))
	}
	return nil
}
