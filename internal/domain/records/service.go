package records

import (
	"context"
	"fmt"
	"time"

	"clinicore/internal/core/apperror"
	appctx "clinicore/internal/core/context"
	"clinicore/internal/core/id"
	"clinicore/internal/core/numerator"
	"clinicore/internal/core/tx"
	"clinicore/internal/domain"
	"clinicore/pkg/logger"
)

// Service provides medical record operations.
type Service struct {
	repo      Repository
	numerator numerator.Generator
	txManager tx.Manager
}

// NewService creates a new medical record service.
func NewService(repo Repository, numGen numerator.Generator, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		numerator: numGen,
		txManager: txManager,
	}
}

// CreateInput carries record parameters.
type CreateInput struct {
	ClientID       id.ID
	AppointmentID  *id.ID
	Diagnosis      string
	TreatmentText  string
	Notes          *string
	AttachmentRefs []string
}

// Create records a clinical history entry. Follow-up entries omit the
// appointment link; appointment-linked entries are unique per appointment.
func (s *Service) Create(ctx context.Context, input CreateInput) (*MedicalRecord, error) {
	rec := NewMedicalRecord(input.ClientID, input.Diagnosis, input.TreatmentText)
	rec.AppointmentID = input.AppointmentID
	rec.Notes = input.Notes
	rec.AttachmentRefs = input.AttachmentRefs
	rec.CreatedBy = appctx.GetActorID(ctx)

	if err := rec.Validate(ctx); err != nil {
		return nil, err
	}

	if input.AppointmentID != nil {
		existing, err := s.repo.FindByAppointment(ctx, *input.AppointmentID)
		if err != nil && !apperror.IsNotFound(err) {
			return nil, fmt.Errorf("check existing record: %w", err)
		}
		if existing != nil {
			return nil, apperror.NewConflict("appointment already has a medical record").
				WithDetail("appointment_id", input.AppointmentID.String()).
				WithDetail("record_id", existing.ID.String())
		}
	}

	if rec.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("MRC"), nil, time.Now())
		if err != nil {
			return nil, fmt.Errorf("generate number: %w", err)
		}
		rec.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "medical record created", "id", rec.ID, "client_id", rec.ClientID)
	return rec, nil
}

// GetByID retrieves a medical record.
func (s *Service) GetByID(ctx context.Context, recordID id.ID) (*MedicalRecord, error) {
	return s.repo.GetByID(ctx, recordID)
}

// Update edits an existing record. Records stay editable after completion.
func (s *Service) Update(ctx context.Context, rec *MedicalRecord) error {
	if err := rec.Validate(ctx); err != nil {
		return err
	}

	rec.UpdatedBy = appctx.GetActorID(ctx)
	rec.Touch()
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, rec)
	})
}

// List retrieves medical records with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*MedicalRecord], error) {
	return s.repo.List(ctx, filter)
}
