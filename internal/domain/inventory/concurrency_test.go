package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/types"
)

// lockingTx serializes transaction bodies the way the supply row lock does
// in Postgres: the second withdrawal waits and re-checks the balance.
type lockingTx struct {
	mu sync.Mutex
}

func (l *lockingTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

func TestConcurrentWithdrawalsExactlyOneSucceeds(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, testNumerator(), &lockingTx{})
	sup := seedSupply(t, svc, 10, "8.50")

	// Two withdrawals of 6 against a balance of 10. Each fits alone, both
	// together would drive the balance negative.
	const withdrawals = 2
	errs := make(chan error, withdrawals)
	var wg sync.WaitGroup
	for i := 0; i < withdrawals; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
				Type:     MovementOut,
				Quantity: types.NewQuantityFromInt(6),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var applied, rejected int
	for err := range errs {
		switch {
		case err == nil:
			applied++
		case apperror.HasCode(err, apperror.CodeInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, types.NewQuantityFromInt(4), repo.supplies[sup.ID].Stock)
	// Initial stock entry plus the single successful withdrawal.
	assert.Len(t, repo.movements, 2)
}
