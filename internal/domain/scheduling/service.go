package scheduling

import (
	"context"
	"fmt"
	"time"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/core/numerator"
	"clinicore/internal/core/security"
	"clinicore/internal/core/tx"
	"clinicore/internal/core/types"
	"clinicore/internal/domain"
	"clinicore/internal/domain/catalogs/treatment"
	"clinicore/pkg/logger"
)

// TreatmentCatalog is the slice of the treatment catalog this package needs.
type TreatmentCatalog interface {
	GetByID(ctx context.Context, treatmentID id.ID) (*treatment.Treatment, error)
}

// ClientCatalog is the slice of the client catalog this package needs.
type ClientCatalog interface {
	Exists(ctx context.Context, clientID id.ID) (bool, error)
}

// LineInput describes a requested treatment line. The price is always
// snapshotted from the catalog, never taken from the caller.
type LineInput struct {
	TreatmentID id.ID
	Quantity    types.Quantity
}

// CreateInput carries booking parameters.
type CreateInput struct {
	ClientID  id.ID
	StaffID   *id.ID
	Date      time.Time
	StartTime time.Time
	EndTime   time.Time
	Lines     []LineInput
	Notes     *string
}

// Service provides business operations for appointments.
type Service struct {
	repo       Repository
	treatments TreatmentCatalog
	clients    ClientCatalog
	policy     *security.BookingPolicy
	numerator  numerator.Generator
	txManager  tx.Manager
}

// NewService creates a new appointment service.
func NewService(
	repo Repository,
	treatments TreatmentCatalog,
	clients ClientCatalog,
	policy *security.BookingPolicy,
	numGen numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:       repo,
		treatments: treatments,
		clients:    clients,
		policy:     policy,
		numerator:  numGen,
		txManager:  txManager,
	}
}

// Create books a new appointment in SCHEDULED.
// Prices are snapshotted from the treatment catalog at booking time.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Appointment, error) {
	if len(input.Lines) == 0 {
		return nil, apperror.NewValidation("at least one treatment line is required").
			WithDetail("field", "lines")
	}

	exists, err := s.clients.Exists(ctx, input.ClientID)
	if err != nil {
		return nil, fmt.Errorf("check client: %w", err)
	}
	if !exists {
		return nil, apperror.NewNotFound("client", input.ClientID.String())
	}

	doc := NewAppointment(input.ClientID, input.Date, input.StartTime, input.EndTime)
	doc.StaffID = input.StaffID
	doc.Notes = input.Notes

	lines, err := s.snapshotLines(ctx, input.Lines)
	if err != nil {
		return nil, err
	}
	doc.ReplaceLines(lines)

	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}

	if s.policy != nil {
		total, _ := doc.TotalAmount.Float64()
		err := s.policy.Check(security.BookingInput{
			DurationMinutes: doc.DurationMinutes(),
			StartHour:       int64(doc.StartTime.Hour()),
			Weekday:         isoWeekday(doc.Date),
			LineCount:       int64(len(doc.Lines)),
			TotalAmount:     total,
		})
		if err != nil {
			return nil, err
		}
	}

	if doc.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("APT"), nil, time.Now())
		if err != nil {
			return nil, fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "appointment created",
		"id", doc.ID, "number", doc.Number, "total", doc.TotalAmount)
	return doc, nil
}

// UpdateLines replaces the treatment lines of a SCHEDULED or CONFIRMED
// appointment. Prices are re-snapshotted from the catalog at edit time.
func (s *Service) UpdateLines(ctx context.Context, appointmentID id.ID, newLines []LineInput) (*Appointment, error) {
	if len(newLines) == 0 {
		return nil, apperror.NewValidation("at least one treatment line is required").
			WithDetail("field", "lines")
	}

	var doc *Appointment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}

		if err := doc.CanModifyLines(); err != nil {
			return err
		}

		lines, err := s.snapshotLines(ctx, newLines)
		if err != nil {
			return err
		}
		doc.ReplaceLines(lines)

		if err := doc.Validate(ctx); err != nil {
			return err
		}

		doc.Touch()
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "appointment lines updated",
		"id", doc.ID, "total", doc.TotalAmount)
	return doc, nil
}

// Transition moves the appointment to a non-completed target status.
// COMPLETED must go through the completion workflow, which creates the
// invoice and medical record in the same transaction.
func (s *Service) Transition(ctx context.Context, appointmentID id.ID, target Status) (*Appointment, error) {
	if !target.IsValid() {
		return nil, apperror.NewValidation("unknown target status").
			WithDetail("field", "status").
			WithDetail("value", string(target))
	}
	if target == StatusCompleted {
		return nil, apperror.NewValidation("completion requires clinical documentation context").
			WithDetail("field", "status")
	}

	var doc *Appointment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}

		if !doc.Status.CanTransition(target) {
			return apperror.NewInvalidTransition(string(doc.Status), string(target))
		}

		doc.Status = target
		doc.Touch()
		return s.repo.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "appointment transitioned",
		"id", doc.ID, "status", doc.Status)
	return doc, nil
}

// Cancel is shorthand for a transition to CANCELLED with a recorded reason.
func (s *Service) Cancel(ctx context.Context, appointmentID id.ID, reason *string) (*Appointment, error) {
	var doc *Appointment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}

		if !doc.Status.CanTransition(StatusCancelled) {
			return apperror.NewInvalidTransition(string(doc.Status), string(StatusCancelled))
		}

		doc.Status = StatusCancelled
		doc.CancelReason = reason
		doc.Touch()
		return s.repo.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "appointment cancelled", "id", doc.ID)
	return doc, nil
}

// LockForCompletion locks the appointment row and verifies it may still be
// completed. Must be called inside the completion workflow's transaction.
func (s *Service) LockForCompletion(ctx context.Context, appointmentID id.ID) (*Appointment, error) {
	doc, err := s.repo.GetForUpdate(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if doc.Status == StatusCompleted {
		return nil, apperror.NewAlreadyCompleted(doc.ID.String())
	}
	if !doc.Status.CanTransition(StatusCompleted) {
		return nil, apperror.NewInvalidTransition(string(doc.Status), string(StatusCompleted))
	}

	if len(doc.Lines) == 0 {
		lines, err := s.repo.GetLines(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("get lines: %w", err)
		}
		doc.Lines = lines
	}

	return doc, nil
}

// MarkCompleted writes the COMPLETED status. Must run in the same
// transaction as LockForCompletion.
func (s *Service) MarkCompleted(ctx context.Context, doc *Appointment) error {
	doc.Status = StatusCompleted
	doc.Touch()
	return s.repo.Update(ctx, doc)
}

// GetByID retrieves an appointment with its lines.
func (s *Service) GetByID(ctx context.Context, appointmentID id.ID) (*Appointment, error) {
	doc, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines

	return doc, nil
}

// List retrieves appointments with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Appointment], error) {
	return s.repo.List(ctx, filter)
}

// snapshotLines resolves each requested treatment and captures its current
// catalog price.
func (s *Service) snapshotLines(ctx context.Context, inputs []LineInput) ([]AppointmentLine, error) {
	lines := make([]AppointmentLine, 0, len(inputs))
	for i, in := range inputs {
		if !in.Quantity.IsPositive() {
			return nil, apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}

		trt, err := s.treatments.GetByID(ctx, in.TreatmentID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewNotFound("treatment", in.TreatmentID.String())
			}
			return nil, fmt.Errorf("get treatment: %w", err)
		}
		if trt.DeletionMark || !trt.Active {
			return nil, apperror.NewValidation("treatment is not available for booking").
				WithDetail("treatmentId", in.TreatmentID.String())
		}

		lines = append(lines, AppointmentLine{
			TreatmentID: in.TreatmentID,
			Quantity:    in.Quantity,
			Price:       trt.Price,
		})
	}
	return lines, nil
}

func isoWeekday(t time.Time) int64 {
	wd := int64(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
