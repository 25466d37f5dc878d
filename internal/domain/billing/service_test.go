package billing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/core/numerator"
	"clinicore/internal/core/types"
	"clinicore/internal/domain"
)

func testClientID() id.ID {
	return id.MustParse("01920000-0000-7000-8000-000000000001")
}

// --- Fakes ---

type fakePayments struct {
	m map[id.ID]*Payment

	// failFindByKey simulates an infrastructure failure during the
	// idempotency lookup.
	failFindByKey error
}

func newFakePayments() *fakePayments {
	return &fakePayments{m: make(map[id.ID]*Payment)}
}

func (r *fakePayments) Create(ctx context.Context, doc *Payment) error {
	r.m[doc.ID] = doc
	return nil
}

func (r *fakePayments) GetByID(ctx context.Context, docID id.ID) (*Payment, error) {
	doc, ok := r.m[docID]
	if !ok {
		return nil, apperror.NewNotFound("payment", docID.String())
	}
	return doc, nil
}

func (r *fakePayments) Update(ctx context.Context, doc *Payment) error {
	r.m[doc.ID] = doc
	return nil
}

func (r *fakePayments) List(ctx context.Context, filter PaymentListFilter) (domain.ListResult[*Payment], error) {
	result := domain.ListResult[*Payment]{}
	for _, doc := range r.m {
		result.Items = append(result.Items, doc)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *fakePayments) GetForUpdate(ctx context.Context, docID id.ID) (*Payment, error) {
	return r.GetByID(ctx, docID)
}

func (r *fakePayments) FindByIdempotencyKey(ctx context.Context, key string) (*Payment, error) {
	if r.failFindByKey != nil {
		return nil, r.failFindByKey
	}
	for _, doc := range r.m {
		if doc.IdempotencyKey != nil && *doc.IdempotencyKey == key {
			return doc, nil
		}
	}
	return nil, apperror.NewNotFound("payment", key)
}

func (r *fakePayments) FindDuePending(ctx context.Context, before time.Time, limit int) ([]*Payment, error) {
	var due []*Payment
	for _, doc := range r.m {
		if doc.Status == PaymentPending && doc.DueDate != nil && doc.DueDate.Before(before) {
			due = append(due, doc)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

type fakeInvoices struct {
	m        map[id.ID]*Invoice
	payments *fakePayments

	failFindByAppointment error
}

func newFakeInvoices(payments *fakePayments) *fakeInvoices {
	return &fakeInvoices{m: make(map[id.ID]*Invoice), payments: payments}
}

func (r *fakeInvoices) Create(ctx context.Context, doc *Invoice) error {
	r.m[doc.ID] = doc
	return nil
}

func (r *fakeInvoices) GetByID(ctx context.Context, docID id.ID) (*Invoice, error) {
	doc, ok := r.m[docID]
	if !ok {
		return nil, apperror.NewNotFound("invoice", docID.String())
	}
	return doc, nil
}

func (r *fakeInvoices) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	for _, doc := range r.m {
		if doc.Number == number {
			return doc, nil
		}
	}
	return nil, apperror.NewNotFound("invoice", number)
}

func (r *fakeInvoices) Update(ctx context.Context, doc *Invoice) error {
	r.m[doc.ID] = doc
	return nil
}

func (r *fakeInvoices) List(ctx context.Context, filter InvoiceListFilter) (domain.ListResult[*Invoice], error) {
	result := domain.ListResult[*Invoice]{}
	for _, doc := range r.m {
		result.Items = append(result.Items, doc)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *fakeInvoices) GetForUpdate(ctx context.Context, docID id.ID) (*Invoice, error) {
	return r.GetByID(ctx, docID)
}

func (r *fakeInvoices) FindByAppointment(ctx context.Context, appointmentID id.ID) (*Invoice, error) {
	if r.failFindByAppointment != nil {
		return nil, r.failFindByAppointment
	}
	for _, doc := range r.m {
		if doc.AppointmentID != nil && *doc.AppointmentID == appointmentID {
			return doc, nil
		}
	}
	return nil, apperror.NewNotFound("invoice", appointmentID.String())
}

func (r *fakeInvoices) SumPaidPayments(ctx context.Context, invoiceID id.ID) (types.Money, error) {
	sum := types.Zero()
	for _, pay := range r.payments.m {
		if pay.InvoiceID != nil && *pay.InvoiceID == invoiceID && pay.Status == PaymentPaid {
			sum = sum.Add(pay.Amount)
		}
	}
	return sum, nil
}

func testNumerator() *numerator.MockGenerator {
	var n int64
	return &numerator.MockGenerator{
		GetNextNumberFunc: func(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error) {
			return fmt.Sprintf("%s-2026-%05d", cfg.Prefix, atomic.AddInt64(&n, 1)), nil
		},
	}
}

type nopTx struct{}

func (nopTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- Fixture ---

type fixture struct {
	svc      *Service
	invoices *fakeInvoices
	payments *fakePayments
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	payments := newFakePayments()
	invoices := newFakeInvoices(payments)
	return &fixture{
		svc:      NewService(invoices, payments, testNumerator(), nopTx{}),
		invoices: invoices,
		payments: payments,
	}
}

func (f *fixture) seedInvoice(t *testing.T, amount string) *Invoice {
	t.Helper()
	inv, err := f.svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		ClientID: testClientID(),
		Amount:   types.MustMoney(amount),
	})
	require.NoError(t, err)
	return inv
}

// --- Tests ---

func TestCreateInvoice(t *testing.T) {
	f := newFixture(t)

	inv := f.seedInvoice(t, "250.00")

	assert.Equal(t, InvoicePending, inv.Status)
	assert.Equal(t, "INV-2026-00001", inv.Number)
	assert.True(t, inv.PaidAmount.IsZero())
	assert.True(t, inv.PendingAmount().Equal(types.MustMoney("250.00")))
}

func TestApplyPaymentPartialThenFull(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t, "100.00")

	result, err := f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		ClientID:  testClientID(),
		InvoiceID: &inv.ID,
		Amount:    types.MustMoney("40.00"),
		Method:    MethodCash,
	})
	require.NoError(t, err)

	assert.Equal(t, PaymentPaid, result.Payment.Status)
	assert.NotNil(t, result.Payment.PaidDate)
	require.NotNil(t, result.Invoice)
	assert.Equal(t, InvoicePartial, result.Invoice.Status)
	assert.True(t, result.Invoice.PaidAmount.Equal(types.MustMoney("40.00")))

	result, err = f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		ClientID:  testClientID(),
		InvoiceID: &inv.ID,
		Amount:    types.MustMoney("60.00"),
		Method:    MethodCard,
	})
	require.NoError(t, err)

	assert.Equal(t, InvoicePaid, result.Invoice.Status)
	assert.True(t, result.Invoice.PendingAmount.IsZero())
}

func TestApplyPaymentRejectsOverpayment(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t, "100.00")

	_, err := f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		ClientID:  testClientID(),
		InvoiceID: &inv.ID,
		Amount:    types.MustMoney("150.00"),
		Method:    MethodCash,
	})
	require.True(t, apperror.HasCode(err, apperror.CodeOverpayment))

	// Rejected, never clamped: the invoice is untouched and no payment
	// document exists.
	assert.True(t, f.invoices.m[inv.ID].PaidAmount.IsZero())
	assert.Empty(t, f.payments.m)
}

func TestApplyPaymentRejectsCancelledInvoice(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t, "100.00")

	_, err := f.svc.CancelInvoice(context.Background(), inv.ID)
	require.NoError(t, err)

	_, err = f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		ClientID:  testClientID(),
		InvoiceID: &inv.ID,
		Amount:    types.MustMoney("10.00"),
		Method:    MethodCash,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvoiceCancelled))
}

func TestApplyPaymentIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t, "100.00")

	key := "posting-7f3a"
	input := ApplyPaymentInput{
		ClientID:       testClientID(),
		InvoiceID:      &inv.ID,
		Amount:         types.MustMoney("100.00"),
		Method:         MethodTransfer,
		IdempotencyKey: &key,
	}

	first, err := f.svc.ApplyPayment(context.Background(), input)
	require.NoError(t, err)

	second, err := f.svc.ApplyPayment(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.Len(t, f.payments.m, 1)
	// The retry never double-counts.
	assert.True(t, f.invoices.m[inv.ID].PaidAmount.Equal(types.MustMoney("100.00")))
	assert.Equal(t, InvoicePaid, second.Invoice.Status)
}

func TestApplyPaymentStandalone(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		ClientID: testClientID(),
		Amount:   types.MustMoney("25.00"),
	})
	require.NoError(t, err)

	assert.Nil(t, result.Invoice)
	// Empty method defaults to the explicit placeholder.
	assert.Equal(t, MethodUndefined, result.Payment.Method)
	assert.Equal(t, "PAY-2026-00001", result.Payment.Number)
}

func TestRecordPlannedPayment(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t, "100.00")

	due := time.Now().UTC().Add(72 * time.Hour)
	pay, err := f.svc.RecordPlannedPayment(context.Background(), ApplyPaymentInput{
		ClientID:  testClientID(),
		InvoiceID: &inv.ID,
		Amount:    types.MustMoney("50.00"),
		Method:    MethodCash,
	}, due)
	require.NoError(t, err)

	assert.Equal(t, PaymentPending, pay.Status)
	require.NotNil(t, pay.DueDate)
	assert.True(t, pay.DueDate.Equal(due))

	// Planned payments do not touch reconciliation until settled.
	assert.True(t, f.invoices.m[inv.ID].PaidAmount.IsZero())
	assert.Equal(t, InvoicePending, f.invoices.m[inv.ID].Status)
}

func TestMarkPaymentPaid(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t, "100.00")

	due := time.Now().UTC().Add(24 * time.Hour)
	pay, err := f.svc.RecordPlannedPayment(context.Background(), ApplyPaymentInput{
		ClientID:  testClientID(),
		InvoiceID: &inv.ID,
		Amount:    types.MustMoney("100.00"),
		Method:    MethodCash,
	}, due)
	require.NoError(t, err)

	result, err := f.svc.MarkPaymentPaid(context.Background(), pay.ID)
	require.NoError(t, err)

	assert.Equal(t, PaymentPaid, result.Payment.Status)
	require.NotNil(t, result.Invoice)
	assert.Equal(t, InvoicePaid, result.Invoice.Status)

	// Marking again is a no-op, not a double settlement.
	_, err = f.svc.MarkPaymentPaid(context.Background(), pay.ID)
	require.NoError(t, err)
	assert.True(t, f.invoices.m[inv.ID].PaidAmount.Equal(types.MustMoney("100.00")))
}

func TestMarkPaymentPaidRejectsRefunded(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		ClientID: testClientID(),
		Amount:   types.MustMoney("30.00"),
		Method:   MethodCash,
	})
	require.NoError(t, err)

	_, err = f.svc.RefundPayment(context.Background(), result.Payment.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkPaymentPaid(context.Background(), result.Payment.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))
}

func TestRefundPaymentReconcilesInvoice(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t, "100.00")

	result, err := f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		ClientID:  testClientID(),
		InvoiceID: &inv.ID,
		Amount:    types.MustMoney("100.00"),
		Method:    MethodCard,
	})
	require.NoError(t, err)
	assert.Equal(t, InvoicePaid, result.Invoice.Status)

	refunded, err := f.svc.RefundPayment(context.Background(), result.Payment.ID)
	require.NoError(t, err)

	assert.Equal(t, PaymentRefunded, refunded.Payment.Status)
	require.NotNil(t, refunded.Invoice)
	assert.Equal(t, InvoicePending, refunded.Invoice.Status)
	assert.True(t, refunded.Invoice.PaidAmount.IsZero())
}

func TestRefundPaymentRejectsUnpaid(t *testing.T) {
	f := newFixture(t)

	due := time.Now().UTC().Add(24 * time.Hour)
	pay, err := f.svc.RecordPlannedPayment(context.Background(), ApplyPaymentInput{
		ClientID: testClientID(),
		Amount:   types.MustMoney("30.00"),
		Method:   MethodCash,
	}, due)
	require.NoError(t, err)

	_, err = f.svc.RefundPayment(context.Background(), pay.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))
}

func TestMarkOverduePayments(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t, "100.00")

	now := time.Now().UTC()
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	late, err := f.svc.RecordPlannedPayment(context.Background(), ApplyPaymentInput{
		ClientID:  testClientID(),
		InvoiceID: &inv.ID,
		Amount:    types.MustMoney("100.00"),
		Method:    MethodCash,
	}, yesterday)
	require.NoError(t, err)

	onTime, err := f.svc.RecordPlannedPayment(context.Background(), ApplyPaymentInput{
		ClientID: testClientID(),
		Amount:   types.MustMoney("50.00"),
		Method:   MethodCash,
	}, tomorrow)
	require.NoError(t, err)

	// The invoice is past due as well.
	f.invoices.m[inv.ID].DueDate = &yesterday

	count, err := f.svc.MarkOverduePayments(context.Background(), now, 100)
	require.NoError(t, err)

	assert.Equal(t, 1, count)
	assert.Equal(t, PaymentOverdue, f.payments.m[late.ID].Status)
	assert.Equal(t, PaymentPending, f.payments.m[onTime.ID].Status)
	assert.Equal(t, InvoiceOverdue, f.invoices.m[inv.ID].Status)

	// Second sweep finds nothing left to mark.
	count, err = f.svc.MarkOverduePayments(context.Background(), now, 100)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCancelInvoice(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t, "100.00")

	cancelled, err := f.svc.CancelInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoiceCancelled, cancelled.Status)

	// Idempotent.
	_, err = f.svc.CancelInvoice(context.Background(), inv.ID)
	assert.NoError(t, err)
}

func TestCancelInvoiceRejectsSettled(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t, "100.00")

	_, err := f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		ClientID:  testClientID(),
		InvoiceID: &inv.ID,
		Amount:    types.MustMoney("40.00"),
		Method:    MethodCash,
	})
	require.NoError(t, err)

	_, err = f.svc.CancelInvoice(context.Background(), inv.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))
}

func TestRebuildPaidAmountRepairsDrift(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t, "100.00")

	_, err := f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		ClientID:  testClientID(),
		InvoiceID: &inv.ID,
		Amount:    types.MustMoney("60.00"),
		Method:    MethodCash,
	})
	require.NoError(t, err)

	// Simulate a drifted materialized amount.
	f.invoices.m[inv.ID].PaidAmount = types.MustMoney("99.00")
	f.invoices.m[inv.ID].Status = InvoicePaid

	rebuilt, err := f.svc.RebuildPaidAmount(context.Background(), inv.ID)
	require.NoError(t, err)

	assert.True(t, rebuilt.PaidAmount.Equal(types.MustMoney("60.00")))
	assert.Equal(t, InvoicePartial, rebuilt.Status)
}

func TestSnapshotDerivesOverdueAtRead(t *testing.T) {
	f := newFixture(t)

	pastDue := time.Now().UTC().Add(-48 * time.Hour)
	inv, err := f.svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		ClientID: testClientID(),
		Amount:   types.MustMoney("100.00"),
		DueDate:  &pastDue,
	})
	require.NoError(t, err)

	// No payment event has touched the row, so the stored column still says
	// PENDING. The snapshot derives from the facts instead.
	snap, err := f.svc.GetInvoiceSnapshot(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoiceOverdue, snap.Status)
	assert.Equal(t, InvoicePending, f.invoices.m[inv.ID].Status)

	// Partial progress still beats lateness.
	_, err = f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		ClientID:  testClientID(),
		InvoiceID: &inv.ID,
		Amount:    types.MustMoney("30.00"),
		Method:    MethodCash,
	})
	require.NoError(t, err)

	snap, err = f.svc.GetInvoiceSnapshot(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoicePartial, snap.Status)
}

func TestSnapshotKeepsCancellationPastDue(t *testing.T) {
	f := newFixture(t)

	pastDue := time.Now().UTC().Add(-48 * time.Hour)
	inv, err := f.svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		ClientID: testClientID(),
		Amount:   types.MustMoney("100.00"),
		DueDate:  &pastDue,
	})
	require.NoError(t, err)

	_, err = f.svc.CancelInvoice(context.Background(), inv.ID)
	require.NoError(t, err)

	snap, err := f.svc.GetInvoiceSnapshot(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoiceCancelled, snap.Status)
}

func TestApplyPaymentIdempotencyLookupErrorPropagates(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t, "100.00")

	f.payments.failFindByKey = errors.New("connection reset")

	key := "posting-9c1d"
	_, err := f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		ClientID:       testClientID(),
		InvoiceID:      &inv.ID,
		Amount:         types.MustMoney("100.00"),
		Method:         MethodCash,
		IdempotencyKey: &key,
	})
	require.Error(t, err)

	// The posting never went through: a failed lookup must not be read as
	// "key unused".
	assert.Empty(t, f.payments.m)
	assert.True(t, f.invoices.m[inv.ID].PaidAmount.IsZero())
}

func TestCreateForAppointmentLookupErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.invoices.failFindByAppointment = errors.New("connection reset")

	_, err := f.svc.CreateForAppointment(context.Background(), id.New(), testClientID(), types.MustMoney("80.00"))
	require.Error(t, err)
	assert.False(t, apperror.HasCode(err, apperror.CodeAlreadyCompleted))
	assert.Empty(t, f.invoices.m)
}

func TestCreateForAppointmentIsUniquePerAppointment(t *testing.T) {
	f := newFixture(t)
	appointmentID := id.New()

	inv, err := f.svc.CreateForAppointment(context.Background(), appointmentID, testClientID(), types.MustMoney("80.00"))
	require.NoError(t, err)
	require.NotNil(t, inv.AppointmentID)
	assert.Equal(t, appointmentID, *inv.AppointmentID)

	_, err = f.svc.CreateForAppointment(context.Background(), appointmentID, testClientID(), types.MustMoney("80.00"))
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyCompleted))
}
