// Package billing provides Invoice and Payment documents and their
// reconciliation rules.
package billing

import (
	"context"
	"time"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/entity"
	"clinicore/internal/core/id"
	"clinicore/internal/core/types"
)

// InvoiceStatus is the derived settlement state of an invoice.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "PENDING"
	InvoicePartial   InvoiceStatus = "PARTIAL"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceOverdue   InvoiceStatus = "OVERDUE"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// PaymentStatus is the settlement state of a single payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentOverdue   PaymentStatus = "OVERDUE"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// PaymentMethod identifies how a payment was made. MethodUndefined is a
// first-class value for system-generated placeholder payments, so audit
// reports can tell them apart from genuine unspecified-method payments.
type PaymentMethod string

const (
	MethodCash      PaymentMethod = "CASH"
	MethodCard      PaymentMethod = "CARD"
	MethodTransfer  PaymentMethod = "TRANSFER"
	MethodInsurance PaymentMethod = "INSURANCE"
	MethodUndefined PaymentMethod = "UNDEFINED"
)

func isValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer, MethodInsurance, MethodUndefined:
		return true
	}
	return false
}

// Invoice represents a client receivable.
// Amount is fixed at creation; PaidAmount is a materialized sum of PAID
// payments, recomputed inside the same transaction as every payment change.
type Invoice struct {
	entity.Document

	ClientID      id.ID  `db:"client_id" json:"clientId"`
	AppointmentID *id.ID `db:"appointment_id" json:"appointmentId,omitempty"`

	Amount     types.Money   `db:"amount" json:"amount"`
	PaidAmount types.Money   `db:"paid_amount" json:"paidAmount"`
	Status     InvoiceStatus `db:"status" json:"status"`
	DueDate    *time.Time    `db:"due_date" json:"dueDate,omitempty"`

	Notes *string `db:"notes" json:"notes,omitempty"`
}

// NewInvoice creates a PENDING invoice.
func NewInvoice(clientID id.ID, amount types.Money) *Invoice {
	return &Invoice{
		Document:   entity.NewDocument(),
		ClientID:   clientID,
		Amount:     amount,
		PaidAmount: types.Zero(),
		Status:     InvoicePending,
	}
}

// Validate implements entity.Validatable.
func (inv *Invoice) Validate(ctx context.Context) error {
	if err := inv.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(inv.ClientID) {
		return apperror.NewValidation("client is required").
			WithDetail("field", "clientId")
	}

	if inv.Amount.IsNegative() {
		return apperror.NewValidation("amount cannot be negative").
			WithDetail("field", "amount")
	}

	return nil
}

// PendingAmount returns max(amount - paidAmount, 0).
func (inv *Invoice) PendingAmount() types.Money {
	pending := inv.Amount.Sub(inv.PaidAmount)
	if pending.IsNegative() {
		return types.Zero()
	}
	return pending
}

// IsCancelled reports whether the invoice was explicitly cancelled.
func (inv *Invoice) IsCancelled() bool {
	return inv.Status == InvoiceCancelled
}

// Snapshot is the caller-facing settlement view of an invoice.
type Snapshot struct {
	InvoiceID     id.ID         `json:"invoiceId"`
	Number        string        `json:"number"`
	Amount        types.Money   `json:"amount"`
	PaidAmount    types.Money   `json:"paidAmount"`
	PendingAmount types.Money   `json:"pendingAmount"`
	Status        InvoiceStatus `json:"status"`
}

// Snapshot builds the settlement view as of now. The status is derived from
// the settlement facts, not read from the stored column, so an unpaid invoice
// past its due date reads OVERDUE even if no write has touched the row since
// the due date passed. The stored column only feeds listing filters.
func (inv *Invoice) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		InvoiceID:     inv.ID,
		Number:        inv.Number,
		Amount:        inv.Amount,
		PaidAmount:    inv.PaidAmount,
		PendingAmount: inv.PendingAmount(),
		Status:        DeriveStatus(inv.IsCancelled(), inv.Amount, inv.PaidAmount, inv.DueDate, now),
	}
}

// Payment records money received from (or owed by) a client.
type Payment struct {
	entity.Document

	ClientID      id.ID  `db:"client_id" json:"clientId"`
	AppointmentID *id.ID `db:"appointment_id" json:"appointmentId,omitempty"`
	InvoiceID     *id.ID `db:"invoice_id" json:"invoiceId,omitempty"`

	Amount types.Money   `db:"amount" json:"amount"`
	Method PaymentMethod `db:"method" json:"method"`
	Status PaymentStatus `db:"status" json:"status"`

	DueDate  *time.Time `db:"due_date" json:"dueDate,omitempty"`
	PaidDate *time.Time `db:"paid_date" json:"paidDate,omitempty"`

	// TransactionID is the external processor reference
	TransactionID *string `db:"transaction_id" json:"transactionId,omitempty"`

	// IdempotencyKey deduplicates retried postings
	IdempotencyKey *string `db:"idempotency_key" json:"idempotencyKey,omitempty"`
}

// NewPayment creates a payment in the given status.
func NewPayment(clientID id.ID, amount types.Money, method PaymentMethod, status PaymentStatus) *Payment {
	return &Payment{
		Document: entity.NewDocument(),
		ClientID: clientID,
		Amount:   amount,
		Method:   method,
		Status:   status,
	}
}

// Validate implements entity.Validatable.
func (p *Payment) Validate(ctx context.Context) error {
	if err := p.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(p.ClientID) {
		return apperror.NewValidation("client is required").
			WithDetail("field", "clientId")
	}

	if !p.Amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").
			WithDetail("field", "amount")
	}

	if !isValidMethod(p.Method) {
		return apperror.NewValidation("invalid payment method").
			WithDetail("field", "method").
			WithDetail("value", string(p.Method))
	}

	return nil
}
