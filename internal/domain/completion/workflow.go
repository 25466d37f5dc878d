// Package completion orchestrates the appointment completion workflow:
// one transaction creating the invoice, optionally the medical record,
// and the COMPLETED status write.
package completion

import (
	"context"
	"fmt"

	"clinicore/internal/core/id"
	"clinicore/internal/core/tx"
	"clinicore/internal/domain/billing"
	"clinicore/internal/domain/records"
	"clinicore/internal/domain/scheduling"
	"clinicore/pkg/logger"
)

// ClinicalInput is the optional documentation supplied at completion time.
// When nil, the record is deferred to a follow-up entry.
type ClinicalInput struct {
	Diagnosis      string
	TreatmentText  string
	Notes          *string
	AttachmentRefs []string
}

// Result is the structured outcome of a completion, so callers never have
// to re-query for the artifacts the workflow produced.
type Result struct {
	Appointment   *scheduling.Appointment `json:"appointment"`
	Invoice       *billing.Invoice        `json:"invoice,omitempty"`
	MedicalRecord *records.MedicalRecord  `json:"medicalRecord,omitempty"`
}

// Workflow coordinates scheduling, billing, and medical records.
type Workflow struct {
	appointments *scheduling.Service
	billing      *billing.Service
	records      *records.Service
	txManager    tx.Manager
}

// NewWorkflow creates the completion workflow.
func NewWorkflow(
	appointments *scheduling.Service,
	billingSvc *billing.Service,
	recordsSvc *records.Service,
	txManager tx.Manager,
) *Workflow {
	return &Workflow{
		appointments: appointments,
		billing:      billingSvc,
		records:      recordsSvc,
		txManager:    txManager,
	}
}

// Transition is the single entry point for status changes. A COMPLETED
// target runs the completion workflow; any other target is a plain state
// machine move.
func (w *Workflow) Transition(ctx context.Context, appointmentID id.ID, target scheduling.Status, clinical *ClinicalInput) (*Result, error) {
	if target == scheduling.StatusCompleted {
		return w.Complete(ctx, appointmentID, clinical)
	}

	doc, err := w.appointments.Transition(ctx, appointmentID, target)
	if err != nil {
		return nil, err
	}
	return &Result{Appointment: doc}, nil
}

// Complete runs the completion workflow in one transaction:
//  1. lock the appointment and guard against duplicate completion
//  2. create the PENDING invoice from the appointment total
//  3. optionally create the medical record
//  4. mark the appointment COMPLETED
//
// Any failing step rolls back the whole operation, leaving the appointment
// in its pre-completion status with no partial invoice or record behind.
func (w *Workflow) Complete(ctx context.Context, appointmentID id.ID, clinical *ClinicalInput) (*Result, error) {
	result := &Result{}

	err := w.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := w.appointments.LockForCompletion(ctx, appointmentID)
		if err != nil {
			return err
		}

		inv, err := w.billing.CreateForAppointment(ctx, doc.ID, doc.ClientID, doc.TotalAmount)
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}

		if clinical != nil {
			rec, err := w.records.Create(ctx, records.CreateInput{
				ClientID:       doc.ClientID,
				AppointmentID:  &doc.ID,
				Diagnosis:      clinical.Diagnosis,
				TreatmentText:  clinical.TreatmentText,
				Notes:          clinical.Notes,
				AttachmentRefs: clinical.AttachmentRefs,
			})
			if err != nil {
				return fmt.Errorf("create medical record: %w", err)
			}
			result.MedicalRecord = rec
		}

		if err := w.appointments.MarkCompleted(ctx, doc); err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}

		result.Appointment = doc
		result.Invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "appointment completed",
		"id", appointmentID, "invoice_id", result.Invoice.ID, "amount", result.Invoice.Amount)
	return result, nil
}
