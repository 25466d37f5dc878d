// Package inventory_repo provides the PostgreSQL implementation for the
// supply catalog and its movement ledger.
package inventory_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"clinicore/internal/core/id"
	"clinicore/internal/domain"
	"clinicore/internal/domain/inventory"
	"clinicore/internal/infrastructure/storage/postgres"
	"clinicore/internal/infrastructure/storage/postgres/catalog_repo"
)

const (
	supplyTable    = "cat_supply"
	movementsTable = "reg_supply_movements"
)

var (
	supplyColumns   = postgres.ExtractDBColumns[inventory.Supply]()
	movementColumns = postgres.ExtractDBColumns[inventory.Movement]()
)

// SupplyRepo implements inventory.Repository.
type SupplyRepo struct {
	*catalog_repo.BaseCatalogRepo[*inventory.Supply]
}

// NewSupplyRepo creates a new supply repository.
func NewSupplyRepo(txManager *postgres.TxManager) *SupplyRepo {
	return &SupplyRepo{
		BaseCatalogRepo: catalog_repo.NewBaseCatalogRepo(
			txManager,
			supplyTable,
			supplyColumns,
			func() *inventory.Supply { return &inventory.Supply{} },
		),
	}
}

var _ inventory.Repository = (*SupplyRepo)(nil)

// AppendMovement persists an immutable ledger entry.
func (r *SupplyRepo) AppendMovement(ctx context.Context, m *inventory.Movement) error {
	data := postgres.StructToMap(m)

	filteredData := make(map[string]any, len(movementColumns))
	for _, col := range movementColumns {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Insert(movementsTable).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build movement insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}

	return nil
}

// ListMovements retrieves ledger entries, oldest first.
func (r *SupplyRepo) ListMovements(ctx context.Context, filter inventory.MovementFilter) (domain.ListResult[*inventory.Movement], error) {
	result := domain.ListResult[*inventory.Movement]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.Builder().
		Select(movementColumns...).
		From(movementsTable)

	if filter.SupplyID != nil {
		q = q.Where(squirrel.Eq{"supply_id": *filter.SupplyID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.DateTo})
	}

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.Querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count movements: %w", err)
	}

	q = q.OrderBy("created_at ASC", "id ASC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list movements: %w", err)
	}

	return result, nil
}

// GetAllMovements retrieves the full ledger for one supply in apply order.
func (r *SupplyRepo) GetAllMovements(ctx context.Context, supplyID id.ID) ([]*inventory.Movement, error) {
	q := r.Builder().
		Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"supply_id": supplyID}).
		OrderBy("created_at ASC", "id ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []*inventory.Movement
	if err := pgxscan.Select(ctx, r.Querier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("get all movements: %w", err)
	}

	return movements, nil
}

// FindBelowMinimum retrieves supplies at or below their minimum stock.
func (r *SupplyRepo) FindBelowMinimum(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*inventory.Supply], error) {
	result := domain.ListResult[*inventory.Supply]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.Builder().
		Select(supplyColumns...).
		From(supplyTable).
		Where(squirrel.Expr("stock <= min_stock")).
		Where(squirrel.Eq{"deletion_mark": false})

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.Querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count supplies: %w", err)
	}

	q = q.OrderBy("name ASC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("find below minimum: %w", err)
	}

	return result, nil
}
