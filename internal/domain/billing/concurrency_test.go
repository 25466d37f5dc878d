package billing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/types"
)

// lockingTx serializes transaction bodies the way the invoice row lock does
// in Postgres: the second posting waits and then re-reads the settled state.
type lockingTx struct {
	mu sync.Mutex
}

func (l *lockingTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

func newLockingFixture(t *testing.T) *fixture {
	t.Helper()
	payments := newFakePayments()
	invoices := newFakeInvoices(payments)
	return &fixture{
		svc:      NewService(invoices, payments, testNumerator(), &lockingTx{}),
		invoices: invoices,
		payments: payments,
	}
}

func TestConcurrentPaymentsNeverJointlyOverpay(t *testing.T) {
	f := newLockingFixture(t)
	inv := f.seedInvoice(t, "100.00")

	// Two $60 payments each fit the $100 pending amount on their own but
	// jointly exceed it. The invoice lock forces the loser to see $60
	// already settled.
	const posters = 2
	errs := make(chan error, posters)
	var wg sync.WaitGroup
	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
				ClientID:  testClientID(),
				InvoiceID: &inv.ID,
				Amount:    types.MustMoney("60.00"),
				Method:    MethodCash,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var settled, rejected int
	for err := range errs {
		switch {
		case err == nil:
			settled++
		case apperror.HasCode(err, apperror.CodeOverpayment):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, settled)
	assert.Equal(t, 1, rejected)
	assert.True(t, f.invoices.m[inv.ID].PaidAmount.Equal(types.MustMoney("60.00")))
	assert.Len(t, f.payments.m, 1)
}

func TestConcurrentPaymentsSettleUpToAmount(t *testing.T) {
	f := newLockingFixture(t)
	inv := f.seedInvoice(t, "100.00")

	const posters = 8
	errs := make(chan error, posters)
	var wg sync.WaitGroup
	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ApplyPayment(context.Background(), ApplyPaymentInput{
				ClientID:  testClientID(),
				InvoiceID: &inv.ID,
				Amount:    types.MustMoney("30.00"),
				Method:    MethodCard,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	settled := 0
	for err := range errs {
		if err == nil {
			settled++
			continue
		}
		require.True(t, apperror.HasCode(err, apperror.CodeOverpayment),
			"unexpected error: %v", err)
	}

	// $30 fits three times into $100; the fourth would push paid to $120.
	assert.Equal(t, 3, settled)
	assert.True(t, f.invoices.m[inv.ID].PaidAmount.Equal(types.MustMoney("90.00")))
	assert.Len(t, f.payments.m, 3)
	assert.Equal(t, InvoicePartial, f.invoices.m[inv.ID].Status)
}
