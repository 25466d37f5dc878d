package document_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"clinicore/internal/domain"
	"clinicore/internal/domain/billing"
	"clinicore/internal/infrastructure/storage/postgres"
)

// PaymentRepo implements billing.PaymentRepository.
type PaymentRepo struct {
	*BaseDocumentRepo[*billing.Payment]
}

var paymentColumns = postgres.ExtractDBColumns[billing.Payment]()

// NewPaymentRepo creates a new payment repository.
func NewPaymentRepo(txManager *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			"doc_payment",
			paymentColumns,
			func() *billing.Payment { return &billing.Payment{} },
		),
	}
}

var _ billing.PaymentRepository = (*PaymentRepo)(nil)

// FindByIdempotencyKey retrieves a payment by caller-supplied key.
func (r *PaymentRepo) FindByIdempotencyKey(ctx context.Context, key string) (*billing.Payment, error) {
	q := r.Select().
		Where(squirrel.Eq{"idempotency_key": key}).
		Limit(1)

	return r.FindOne(ctx, q)
}

// FindDuePending retrieves PENDING payments whose due date passed.
func (r *PaymentRepo) FindDuePending(ctx context.Context, before time.Time, limit int) ([]*billing.Payment, error) {
	q := r.Select().
		Where(squirrel.Eq{"status": billing.PaymentPending}).
		Where(squirrel.Lt{"due_date": before}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("due_date ASC").
		Limit(uint64(limit))

	return r.FindMany(ctx, q)
}

// List retrieves payments with billing-specific filters.
func (r *PaymentRepo) List(ctx context.Context, filter billing.PaymentListFilter) (domain.ListResult[*billing.Payment], error) {
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
	if filter.InvoiceID != nil {
		q = q.Where(squirrel.Eq{"invoice_id": *filter.InvoiceID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.Method != nil {
		q = q.Where(squirrel.Eq{"method": *filter.Method})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	return r.ListQuery(ctx, q, filter.ListFilter)
}
