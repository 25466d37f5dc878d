package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"clinicore/internal/domain"
	"clinicore/internal/domain/catalogs/treatment"
	"clinicore/internal/infrastructure/storage/postgres"
)

// TreatmentRepo implements treatment.Repository.
type TreatmentRepo struct {
	*BaseCatalogRepo[*treatment.Treatment]
}

var treatmentColumns = postgres.ExtractDBColumns[treatment.Treatment]()

// NewTreatmentRepo creates a new treatment repository.
func NewTreatmentRepo(txManager *postgres.TxManager) *TreatmentRepo {
	return &TreatmentRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			"cat_treatment",
			treatmentColumns,
			func() *treatment.Treatment { return &treatment.Treatment{} },
		),
	}
}

var _ treatment.Repository = (*TreatmentRepo)(nil)

// FindActive retrieves treatments available for booking.
func (r *TreatmentRepo) FindActive(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*treatment.Treatment], error) {
	result := domain.ListResult[*treatment.Treatment]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.Builder().
		Select(treatmentColumns...).
		From("cat_treatment").
		Where(squirrel.Eq{"active": true}).
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
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.Querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count active treatments: %w", err)
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
		return result, fmt.Errorf("list active treatments: %w", err)
	}

	return result, nil
}
