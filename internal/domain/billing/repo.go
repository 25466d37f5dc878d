package billing

import (
	"context"
	"time"

	"clinicore/internal/core/id"
	"clinicore/internal/core/types"
	"clinicore/internal/domain"
)

// InvoiceRepository defines operations for invoice documents.
type InvoiceRepository interface {
	Create(ctx context.Context, doc *Invoice) error
	GetByID(ctx context.Context, docID id.ID) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	Update(ctx context.Context, doc *Invoice) error
	List(ctx context.Context, filter InvoiceListFilter) (domain.ListResult[*Invoice], error)

	// GetForUpdate retrieves an invoice with a row lock. Must be called
	// inside a transaction; payment posting relies on it to serialize
	// concurrent reconciliation of the same invoice.
	GetForUpdate(ctx context.Context, docID id.ID) (*Invoice, error)

	// FindByAppointment retrieves the invoice created for an appointment.
	FindByAppointment(ctx context.Context, appointmentID id.ID) (*Invoice, error)

	// SumPaidPayments recomputes paid amount from the payment ledger.
	SumPaidPayments(ctx context.Context, invoiceID id.ID) (types.Money, error)
}

// PaymentRepository defines operations for payment documents.
type PaymentRepository interface {
	Create(ctx context.Context, doc *Payment) error
	GetByID(ctx context.Context, docID id.ID) (*Payment, error)
	Update(ctx context.Context, doc *Payment) error
	List(ctx context.Context, filter PaymentListFilter) (domain.ListResult[*Payment], error)

	// GetForUpdate retrieves a payment with a row lock.
	GetForUpdate(ctx context.Context, docID id.ID) (*Payment, error)

	// FindByIdempotencyKey retrieves a payment by caller-supplied key.
	FindByIdempotencyKey(ctx context.Context, key string) (*Payment, error)

	// FindDuePending retrieves PENDING payments whose due date passed.
	FindDuePending(ctx context.Context, before time.Time, limit int) ([]*Payment, error)
}

// InvoiceListFilter for filtering invoices.
type InvoiceListFilter struct {
	domain.ListFilter

	ClientID      *id.ID
	AppointmentID *id.ID
	Status        *InvoiceStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}

// PaymentListFilter for filtering payments.
type PaymentListFilter struct {
	domain.ListFilter

	ClientID  *id.ID
	InvoiceID *id.ID
	Status    *PaymentStatus
	Method    *PaymentMethod
	DateFrom  *time.Time
	DateTo    *time.Time
}
