package inventory

import (
	"context"
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

// --- Fakes ---

type fakeRepo struct {
	supplies  map[id.ID]*Supply
	movements []*Movement
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{supplies: make(map[id.ID]*Supply)}
}

func (r *fakeRepo) Create(ctx context.Context, sup *Supply) error {
	for _, existing := range r.supplies {
		if existing.Code == sup.Code {
			return apperror.NewDuplicate("supply", "code", sup.Code)
		}
	}
	r.supplies[sup.ID] = sup
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, supplyID id.ID) (*Supply, error) {
	sup, ok := r.supplies[supplyID]
	if !ok {
		return nil, apperror.NewNotFound("supply", supplyID.String())
	}
	return sup, nil
}

func (r *fakeRepo) GetByCode(ctx context.Context, code string) (*Supply, error) {
	for _, sup := range r.supplies {
		if sup.Code == code {
			return sup, nil
		}
	}
	return nil, apperror.NewNotFound("supply", code)
}

func (r *fakeRepo) Update(ctx context.Context, sup *Supply) error {
	r.supplies[sup.ID] = sup
	return nil
}

func (r *fakeRepo) SetDeletionMark(ctx context.Context, supplyID id.ID, marked bool) error {
	sup, ok := r.supplies[supplyID]
	if !ok {
		return apperror.NewNotFound("supply", supplyID.String())
	}
	sup.DeletionMark = marked
	return nil
}

func (r *fakeRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Supply], error) {
	result := domain.ListResult[*Supply]{}
	for _, sup := range r.supplies {
		result.Items = append(result.Items, sup)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *fakeRepo) Exists(ctx context.Context, supplyID id.ID) (bool, error) {
	_, ok := r.supplies[supplyID]
	return ok, nil
}

func (r *fakeRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	for _, sup := range r.supplies {
		if sup.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, supplyID id.ID) (*Supply, error) {
	return r.GetByID(ctx, supplyID)
}

func (r *fakeRepo) AppendMovement(ctx context.Context, m *Movement) error {
	r.movements = append(r.movements, m)
	return nil
}

func (r *fakeRepo) ListMovements(ctx context.Context, filter MovementFilter) (domain.ListResult[*Movement], error) {
	result := domain.ListResult[*Movement]{}
	for _, m := range r.movements {
		if filter.SupplyID != nil && m.SupplyID != *filter.SupplyID {
			continue
		}
		result.Items = append(result.Items, m)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *fakeRepo) GetAllMovements(ctx context.Context, supplyID id.ID) ([]*Movement, error) {
	var out []*Movement
	for _, m := range r.movements {
		if m.SupplyID == supplyID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindBelowMinimum(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Supply], error) {
	result := domain.ListResult[*Supply]{}
	for _, sup := range r.supplies {
		if sup.Stock <= sup.MinStock {
			result.Items = append(result.Items, sup)
		}
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
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

func newService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	return NewService(repo, testNumerator(), nopTx{}), repo
}

func seedSupply(t *testing.T, svc *Service, stock int64, unitCost string) *Supply {
	t.Helper()
	sup, err := svc.CreateSupply(context.Background(), CreateInput{
		Code:         "SUP-GLOVE",
		Name:         "Nitrile gloves (box)",
		Unit:         "box",
		InitialStock: types.NewQuantityFromInt(stock),
		MinStock:     types.NewQuantityFromInt(5),
		UnitCost:     types.MustMoney(unitCost),
	})
	require.NoError(t, err)
	return sup
}

// --- Tests ---

func TestCreateSupplyRecordsInitialStockMovement(t *testing.T) {
	svc, repo := newService(t)

	sup := seedSupply(t, svc, 10, "8.50")

	assert.Equal(t, types.NewQuantityFromInt(10), sup.Stock)
	require.Len(t, repo.movements, 1)

	m := repo.movements[0]
	assert.Equal(t, MovementIn, m.Type)
	assert.Equal(t, types.NewQuantityFromInt(10), m.Quantity)
	assert.Equal(t, types.NewQuantityFromInt(10), m.ResultingStock)
	require.NotNil(t, m.Reason)
	assert.Equal(t, "initial stock", *m.Reason)
	require.NotNil(t, m.UnitCost)
	assert.True(t, m.UnitCost.Equal(types.MustMoney("8.50")))
}

func TestCreateSupplyZeroStockHasNoMovement(t *testing.T) {
	svc, repo := newService(t)

	sup, err := svc.CreateSupply(context.Background(), CreateInput{
		Name: "Surgical masks (box)",
		Unit: "box",
	})
	require.NoError(t, err)

	assert.Empty(t, repo.movements)
	assert.True(t, sup.Stock.IsZero())
	// Missing codes are assigned by the numerator.
	assert.Equal(t, "SUP-2026-00001", sup.Code)
}

func TestCreateSupplyRejectsNegativeInitialStock(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateSupply(context.Background(), CreateInput{
		Name:         "Anesthetic cartridge",
		Unit:         "pc",
		InitialStock: types.NewQuantityFromInt(-1),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestApplyMovementRejectsInsufficientStock(t *testing.T) {
	svc, repo := newService(t)
	sup := seedSupply(t, svc, 5, "8.50")

	_, err := svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:     MovementOut,
		Quantity: types.NewQuantityFromInt(8),
	})
	require.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	// Nothing was recorded and the balance is untouched.
	assert.Len(t, repo.movements, 1)
	assert.Equal(t, types.NewQuantityFromInt(5), repo.supplies[sup.ID].Stock)
}

func TestApplyMovementOutAndExpiredDecrease(t *testing.T) {
	svc, _ := newService(t)
	sup := seedSupply(t, svc, 10, "8.50")

	view, err := svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:     MovementOut,
		Quantity: types.NewQuantityFromInt(3),
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(7), view.Stock)

	view, err = svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:     MovementExpired,
		Quantity: types.NewQuantityFromInt(2),
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(5), view.Stock)
	assert.Equal(t, SupplyLowStock, view.Status)
}

func TestApplyMovementDrainToZero(t *testing.T) {
	svc, _ := newService(t)
	sup := seedSupply(t, svc, 10, "8.50")

	view, err := svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:     MovementOut,
		Quantity: types.NewQuantityFromInt(6),
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(4), view.Stock)
	assert.Equal(t, SupplyLowStock, view.Status)

	view, err = svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:     MovementOut,
		Quantity: types.NewQuantityFromInt(4),
	})
	require.NoError(t, err)
	assert.True(t, view.Stock.IsZero())
	assert.Equal(t, SupplyOutOfStock, view.Status)

	_, err = svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:     MovementOut,
		Quantity: types.NewQuantityFromInt(1),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
}

func TestApplyMovementAdjustRequiresDirection(t *testing.T) {
	svc, _ := newService(t)
	sup := seedSupply(t, svc, 10, "8.50")

	_, err := svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:     MovementAdjust,
		Quantity: types.NewQuantityFromInt(1),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	bogus := AdjustDirection("SIDEWAYS")
	_, err = svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:      MovementAdjust,
		Quantity:  types.NewQuantityFromInt(1),
		Direction: &bogus,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	down := AdjustDecrease
	view, err := svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:      MovementAdjust,
		Quantity:  types.NewQuantityFromInt(4),
		Direction: &down,
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(6), view.Stock)
}

func TestApplyMovementRejectsNonPositiveQuantity(t *testing.T) {
	svc, _ := newService(t)
	sup := seedSupply(t, svc, 10, "8.50")

	_, err := svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:     MovementIn,
		Quantity: 0,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestApplyMovementWeightedAverageCost(t *testing.T) {
	svc, repo := newService(t)
	sup := seedSupply(t, svc, 10, "2.00")

	inCost := types.MustMoney("4.00")
	view, err := svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:     MovementIn,
		Quantity: types.NewQuantityFromInt(10),
		UnitCost: &inCost,
	})
	require.NoError(t, err)

	// (10*2.00 + 10*4.00) / 20 = 3.00
	assert.True(t, view.UnitCost.Equal(types.MustMoney("3.00")),
		"unit cost = %s", view.UnitCost)
	assert.Equal(t, types.NewQuantityFromInt(20), view.Stock)

	// The movement records the batch cost, not the blended one.
	last := repo.movements[len(repo.movements)-1]
	require.NotNil(t, last.UnitCost)
	assert.True(t, last.UnitCost.Equal(types.MustMoney("4.00")))
}

func TestApplyMovementInWithoutCostKeepsAverage(t *testing.T) {
	svc, repo := newService(t)
	sup := seedSupply(t, svc, 10, "2.00")

	view, err := svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:     MovementIn,
		Quantity: types.NewQuantityFromInt(5),
	})
	require.NoError(t, err)

	assert.True(t, view.UnitCost.Equal(types.MustMoney("2.00")))

	last := repo.movements[len(repo.movements)-1]
	require.NotNil(t, last.UnitCost)
	assert.True(t, last.UnitCost.Equal(types.MustMoney("2.00")))
}

func TestUpdateSupplyRejectsStockEdit(t *testing.T) {
	svc, _ := newService(t)
	sup := seedSupply(t, svc, 10, "8.50")

	edited := *sup
	edited.Stock = types.NewQuantityFromInt(50)

	err := svc.UpdateSupply(context.Background(), &edited)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestRebuildStockRepairsDrift(t *testing.T) {
	svc, repo := newService(t)
	sup := seedSupply(t, svc, 10, "8.50")

	_, err := svc.ApplyMovement(context.Background(), sup.ID, MovementInput{
		Type:     MovementOut,
		Quantity: types.NewQuantityFromInt(4),
	})
	require.NoError(t, err)

	// Simulate a drifted materialized balance.
	repo.supplies[sup.ID].Stock = types.NewQuantityFromInt(99)

	balance, err := svc.RebuildStock(context.Background(), sup.ID)
	require.NoError(t, err)

	assert.Equal(t, types.NewQuantityFromInt(6), balance)
	assert.Equal(t, types.NewQuantityFromInt(6), repo.supplies[sup.ID].Stock)
}

func TestDeriveStatusPrecedence(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name   string
		stock  int64
		min    int64
		expiry *time.Time
		want   SupplyStatus
	}{
		{"healthy", 20, 5, nil, SupplyActive},
		{"not yet expired", 20, 5, &future, SupplyActive},
		{"at minimum", 5, 5, nil, SupplyLowStock},
		{"below minimum", 3, 5, nil, SupplyLowStock},
		{"expired", 20, 5, &past, SupplyExpired},
		// Precedence: an expired lot that is also low surfaces as expired,
		// and an empty shelf wins over everything.
		{"expired and low", 3, 5, &past, SupplyExpired},
		{"out of stock", 0, 5, nil, SupplyOutOfStock},
		{"out of stock and expired", 0, 5, &past, SupplyOutOfStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(types.NewQuantityFromInt(tt.stock),
				types.NewQuantityFromInt(tt.min), tt.expiry, now)
			assert.Equal(t, tt.want, got)
		})
	}
}
