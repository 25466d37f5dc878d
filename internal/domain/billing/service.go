package billing

import (
	"context"
	"fmt"
	"time"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/core/numerator"
	"clinicore/internal/core/tx"
	"clinicore/internal/core/types"
	"clinicore/internal/domain"
	"clinicore/pkg/logger"
)

// Service provides invoice and payment operations.
// All read-modify-write paths lock the invoice row first, so concurrent
// payments against the same invoice serialize instead of jointly overpaying.
type Service struct {
	invoices  InvoiceRepository
	payments  PaymentRepository
	numerator numerator.Generator
	txManager tx.Manager
}

// NewService creates a new billing service.
func NewService(
	invoices InvoiceRepository,
	payments PaymentRepository,
	numGen numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		invoices:  invoices,
		payments:  payments,
		numerator: numGen,
		txManager: txManager,
	}
}

// CreateInvoiceInput carries ad-hoc invoice parameters.
type CreateInvoiceInput struct {
	ClientID      id.ID
	AppointmentID *id.ID
	Amount        types.Money
	DueDate       *time.Time
	Notes         *string
}

// CreateInvoice creates an invoice outside the completion workflow
// (manual/ad-hoc billing).
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*Invoice, error) {
	inv := NewInvoice(input.ClientID, input.Amount)
	inv.AppointmentID = input.AppointmentID
	inv.DueDate = input.DueDate
	inv.Notes = input.Notes

	if err := inv.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.assignNumber(ctx, inv); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.invoices.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "invoice created", "id", inv.ID, "number", inv.Number, "amount", inv.Amount)
	return inv, nil
}

// CreateForAppointment creates the PENDING invoice for a completed
// appointment. Called by the completion workflow inside its transaction;
// the nested RunInTransaction joins the ambient one.
func (s *Service) CreateForAppointment(ctx context.Context, appointmentID, clientID id.ID, amount types.Money) (*Invoice, error) {
	existing, err := s.invoices.FindByAppointment(ctx, appointmentID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("check existing invoice: %w", err)
	}
	if existing != nil {
		return nil, apperror.NewAlreadyCompleted(appointmentID.String()).
			WithDetail("invoice_id", existing.ID.String())
	}

	inv := NewInvoice(clientID, amount)
	inv.AppointmentID = &appointmentID

	if err := inv.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.assignNumber(ctx, inv); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.invoices.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	return inv, nil
}

// GetInvoice retrieves an invoice by ID.
func (s *Service) GetInvoice(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, invoiceID)
}

// GetInvoiceSnapshot returns the settlement view of an invoice.
func (s *Service) GetInvoiceSnapshot(ctx context.Context, invoiceID id.ID) (Snapshot, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return Snapshot{}, err
	}
	return inv.Snapshot(time.Now().UTC()), nil
}

// CancelInvoice explicitly cancels an invoice. Terminal; payments can no
// longer be applied. Invoices with recorded payments cannot be cancelled.
func (s *Service) CancelInvoice(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	var inv *Invoice
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.invoices.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		if inv.IsCancelled() {
			return nil
		}
		if inv.PaidAmount.IsPositive() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"invoice with recorded payments cannot be cancelled").
				WithDetail("invoice_id", invoiceID.String()).
				WithDetail("paid_amount", inv.PaidAmount.String())
		}

		inv.Status = InvoiceCancelled
		inv.Touch()
		return s.invoices.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "invoice cancelled", "id", inv.ID)
	return inv, nil
}

// ListInvoices retrieves invoices with filtering.
func (s *Service) ListInvoices(ctx context.Context, filter InvoiceListFilter) (domain.ListResult[*Invoice], error) {
	return s.invoices.List(ctx, filter)
}

// ApplyPaymentInput carries payment posting parameters.
type ApplyPaymentInput struct {
	ClientID      id.ID
	InvoiceID     *id.ID
	AppointmentID *id.ID
	Amount        types.Money
	Method        PaymentMethod

	// TransactionID is the external processor reference, if any
	TransactionID *string

	// IdempotencyKey makes retried postings safe: a key that was already
	// posted returns the original result instead of double-counting.
	IdempotencyKey *string
}

// ApplyResult is returned from payment posting.
type ApplyResult struct {
	Payment *Payment `json:"payment"`
	// Invoice is the reconciled snapshot, when the payment targets one
	Invoice *Snapshot `json:"invoice,omitempty"`
}

// ApplyPayment records a settled payment and reconciles the target invoice
// in the same transaction. A payment that would push paidAmount above the
// invoice amount is rejected, never clamped.
func (s *Service) ApplyPayment(ctx context.Context, input ApplyPaymentInput) (*ApplyResult, error) {
	if input.Method == "" {
		input.Method = MethodUndefined
	}

	if input.IdempotencyKey != nil && *input.IdempotencyKey != "" {
		existing, err := s.payments.FindByIdempotencyKey(ctx, *input.IdempotencyKey)
		if err != nil && !apperror.IsNotFound(err) {
			// A failed lookup must not fall through to a fresh posting:
			// the key may already exist.
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			return s.replayResult(ctx, existing)
		}
	}

	now := time.Now().UTC()
	pay := NewPayment(input.ClientID, input.Amount, input.Method, PaymentPaid)
	pay.InvoiceID = input.InvoiceID
	pay.AppointmentID = input.AppointmentID
	pay.TransactionID = input.TransactionID
	pay.IdempotencyKey = input.IdempotencyKey
	pay.PaidDate = &now

	if err := pay.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.assignPaymentNumber(ctx, pay); err != nil {
		return nil, err
	}

	result := &ApplyResult{Payment: pay}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if input.InvoiceID != nil {
			inv, err := s.settleAgainstInvoice(ctx, *input.InvoiceID, pay.Amount, now)
			if err != nil {
				return err
			}
			snap := inv.Snapshot(now)
			result.Invoice = &snap
		}

		if err := s.payments.Create(ctx, pay); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment applied",
		"id", pay.ID, "amount", pay.Amount, "method", pay.Method)
	return result, nil
}

// RecordPlannedPayment creates a PENDING payment with a due date
// (installment plans). It does not affect invoice reconciliation until
// marked paid.
func (s *Service) RecordPlannedPayment(ctx context.Context, input ApplyPaymentInput, dueDate time.Time) (*Payment, error) {
	if input.Method == "" {
		input.Method = MethodUndefined
	}

	pay := NewPayment(input.ClientID, input.Amount, input.Method, PaymentPending)
	pay.InvoiceID = input.InvoiceID
	pay.AppointmentID = input.AppointmentID
	pay.IdempotencyKey = input.IdempotencyKey
	pay.DueDate = &dueDate

	if err := pay.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.assignPaymentNumber(ctx, pay); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.payments.Create(ctx, pay)
	})
	if err != nil {
		return nil, err
	}

	return pay, nil
}

// MarkPaymentPaid settles a PENDING or OVERDUE payment and reconciles its
// invoice. Marking an already PAID payment is a no-op.
func (s *Service) MarkPaymentPaid(ctx context.Context, paymentID id.ID) (*ApplyResult, error) {
	var result *ApplyResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		pay, err := s.payments.GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}

		result = &ApplyResult{Payment: pay}
		if pay.Status == PaymentPaid {
			return nil
		}
		if pay.Status != PaymentPending && pay.Status != PaymentOverdue {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"only pending or overdue payments can be marked paid").
				WithDetail("payment_id", paymentID.String()).
				WithDetail("status", string(pay.Status))
		}

		now := time.Now().UTC()
		if pay.InvoiceID != nil {
			inv, err := s.settleAgainstInvoice(ctx, *pay.InvoiceID, pay.Amount, now)
			if err != nil {
				return err
			}
			snap := inv.Snapshot(now)
			result.Invoice = &snap
		}

		pay.Status = PaymentPaid
		pay.PaidDate = &now
		pay.Touch()
		return s.payments.Update(ctx, pay)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment marked paid", "id", paymentID)
	return result, nil
}

// RefundPayment reverses a PAID payment and re-reconciles its invoice.
func (s *Service) RefundPayment(ctx context.Context, paymentID id.ID) (*ApplyResult, error) {
	var result *ApplyResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		pay, err := s.payments.GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}

		if pay.Status != PaymentPaid {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				"only paid payments can be refunded").
				WithDetail("payment_id", paymentID.String()).
				WithDetail("status", string(pay.Status))
		}

		result = &ApplyResult{Payment: pay}
		now := time.Now().UTC()
		if pay.InvoiceID != nil {
			inv, err := s.invoices.GetForUpdate(ctx, *pay.InvoiceID)
			if err != nil {
				return err
			}
			inv.PaidAmount = inv.PaidAmount.Sub(pay.Amount)
			if inv.PaidAmount.IsNegative() {
				inv.PaidAmount = types.Zero()
			}
			inv.Reconcile(now)
			inv.Touch()
			if err := s.invoices.Update(ctx, inv); err != nil {
				return err
			}
			snap := inv.Snapshot(now)
			result.Invoice = &snap
		}

		pay.Status = PaymentRefunded
		pay.Touch()
		return s.payments.Update(ctx, pay)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment refunded", "id", paymentID)
	return result, nil
}

// MarkOverduePayments sweeps PENDING payments whose due date passed and
// marks them OVERDUE. Returns the number of payments updated. Run
// periodically by the worker.
func (s *Service) MarkOverduePayments(ctx context.Context, now time.Time, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	due, err := s.payments.FindDuePending(ctx, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("find due payments: %w", err)
	}

	updated := 0
	for _, pay := range due {
		err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			locked, err := s.payments.GetForUpdate(ctx, pay.ID)
			if err != nil {
				return err
			}
			if locked.Status != PaymentPending {
				return nil
			}
			locked.Status = PaymentOverdue
			locked.Touch()
			if err := s.payments.Update(ctx, locked); err != nil {
				return err
			}

			// An unpaid invoice past due surfaces as OVERDUE too.
			if locked.InvoiceID != nil {
				inv, err := s.invoices.GetForUpdate(ctx, *locked.InvoiceID)
				if err != nil {
					return err
				}
				before := inv.Status
				inv.Reconcile(now)
				if inv.Status != before {
					inv.Touch()
					return s.invoices.Update(ctx, inv)
				}
			}
			return nil
		})
		if err != nil {
			return updated, err
		}
		updated++
	}

	if updated > 0 {
		logger.Info(ctx, "overdue payments marked", "count", updated)
	}
	return updated, nil
}

// RebuildPaidAmount recomputes the materialized paid amount from the
// payment ledger and re-derives the status. Audit/repair tool.
func (s *Service) RebuildPaidAmount(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	var inv *Invoice
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.invoices.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		paid, err := s.invoices.SumPaidPayments(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("sum paid payments: %w", err)
		}

		inv.PaidAmount = paid
		inv.Reconcile(time.Now().UTC())
		inv.Touch()
		return s.invoices.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetPayment retrieves a payment by ID.
func (s *Service) GetPayment(ctx context.Context, paymentID id.ID) (*Payment, error) {
	return s.payments.GetByID(ctx, paymentID)
}

// ListPayments retrieves payments with filtering.
func (s *Service) ListPayments(ctx context.Context, filter PaymentListFilter) (domain.ListResult[*Payment], error) {
	return s.payments.List(ctx, filter)
}

// settleAgainstInvoice locks the invoice, rejects overpayment and
// cancelled targets, then adds amount to the materialized paid sum and
// re-derives the status.
func (s *Service) settleAgainstInvoice(ctx context.Context, invoiceID id.ID, amount types.Money, now time.Time) (*Invoice, error) {
	inv, err := s.invoices.GetForUpdate(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if inv.IsCancelled() {
		return nil, apperror.NewBusinessRule(apperror.CodeInvoiceCancelled,
			"payments cannot be applied to a cancelled invoice").
			WithDetail("invoice_id", invoiceID.String())
	}

	if amount.GreaterThan(inv.PendingAmount()) {
		return nil, apperror.NewOverpayment(invoiceID.String(), amount.String(), inv.PendingAmount().String())
	}

	inv.PaidAmount = inv.PaidAmount.Add(amount)
	inv.Reconcile(now)
	inv.Touch()
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return inv, nil
}

// replayResult rebuilds the posting result for an already processed
// idempotency key.
func (s *Service) replayResult(ctx context.Context, pay *Payment) (*ApplyResult, error) {
	result := &ApplyResult{Payment: pay}
	if pay.InvoiceID != nil {
		inv, err := s.invoices.GetByID(ctx, *pay.InvoiceID)
		if err != nil {
			return nil, err
		}
		snap := inv.Snapshot(time.Now().UTC())
		result.Invoice = &snap
	}
	return result, nil
}

func (s *Service) assignNumber(ctx context.Context, inv *Invoice) error {
	if inv.Number != "" {
		return nil
	}
	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("INV"), nil, time.Now())
	if err != nil {
		return fmt.Errorf("generate number: %w", err)
	}
	inv.Number = number
	return nil
}

func (s *Service) assignPaymentNumber(ctx context.Context, pay *Payment) error {
	if pay.Number != "" {
		return nil
	}
	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("PAY"), nil, time.Now())
	if err != nil {
		return fmt.Errorf("generate number: %w", err)
	}
	pay.Number = number
	return nil
}
