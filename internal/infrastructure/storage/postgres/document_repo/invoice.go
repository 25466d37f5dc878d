package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"clinicore/internal/core/id"
	"clinicore/internal/core/types"
	"clinicore/internal/domain"
	"clinicore/internal/domain/billing"
	"clinicore/internal/infrastructure/storage/postgres"
)

// InvoiceRepo implements billing.InvoiceRepository.
type InvoiceRepo struct {
	*BaseDocumentRepo[*billing.Invoice]
}

var invoiceColumns = postgres.ExtractDBColumns[billing.Invoice]()

// NewInvoiceRepo creates a new invoice repository.
func NewInvoiceRepo(txManager *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			"doc_invoice",
			invoiceColumns,
			func() *billing.Invoice { return &billing.Invoice{} },
		),
	}
}

var _ billing.InvoiceRepository = (*InvoiceRepo)(nil)

// FindByAppointment retrieves the invoice created for an appointment.
func (r *InvoiceRepo) FindByAppointment(ctx context.Context, appointmentID id.ID) (*billing.Invoice, error) {
	q := r.Select().
		Where(squirrel.Eq{"appointment_id": appointmentID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	return r.FindOne(ctx, q)
}

// SumPaidPayments recomputes paid amount from the payment ledger.
func (r *InvoiceRepo) SumPaidPayments(ctx context.Context, invoiceID id.ID) (types.Money, error) {
	q := r.Builder().
		Select("COALESCE(SUM(amount), 0)").
		From("doc_payment").
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		Where(squirrel.Eq{"status": billing.PaymentPaid}).
		Where(squirrel.Eq{"deletion_mark": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build sum query: %w", err)
	}

	var total types.Money
	if err := r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return types.Zero(), fmt.Errorf("sum paid payments: %w", err)
	}

	return total, nil
}

// List retrieves invoices with billing-specific filters.
func (r *InvoiceRepo) List(ctx context.Context, filter billing.InvoiceListFilter) (domain.ListResult[*billing.Invoice], error) {
	q := r.Select()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}
	if filter.ClientID != nil {
		q = q.Where(squirrel.Eq{"client_id": *filter.ClientID})
	}
	if filter.AppointmentID != nil {
		q = q.Where(squirrel.Eq{"appointment_id": *filter.AppointmentID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	return r.ListQuery(ctx, q, filter.ListFilter)
}
