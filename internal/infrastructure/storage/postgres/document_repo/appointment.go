package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"clinicore/internal/core/id"
	"clinicore/internal/domain"
	"clinicore/internal/domain/scheduling"
	"clinicore/internal/infrastructure/storage/postgres"
)

// AppointmentRepo implements scheduling.Repository.
type AppointmentRepo struct {
	*BaseDocumentRepo[*scheduling.Appointment]
}

var (
	appointmentColumns = postgres.ExtractDBColumns[scheduling.Appointment]()
	lineColumns        = postgres.ExtractDBColumns[scheduling.AppointmentLine]()
)

// NewAppointmentRepo creates a new appointment repository.
func NewAppointmentRepo(txManager *postgres.TxManager) *AppointmentRepo {
	return &AppointmentRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			"doc_appointment",
			appointmentColumns,
			func() *scheduling.Appointment { return &scheduling.Appointment{} },
		),
	}
}

var _ scheduling.Repository = (*AppointmentRepo)(nil)

// GetLines retrieves the table part ordered by line number.
func (r *AppointmentRepo) GetLines(ctx context.Context, docID id.ID) ([]scheduling.AppointmentLine, error) {
	q := r.Builder().
		Select(lineColumns...).
		From("doc_appointment_lines").
		Where(squirrel.Eq{"appointment_id": docID}).
		OrderBy("line_no ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	var lines []scheduling.AppointmentLine
	if err := pgxscan.Select(ctx, r.Querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get appointment lines: %w", err)
	}

	return lines, nil
}

// SaveLines replaces the table part. Must run inside a transaction with the
// appointment row already locked.
func (r *AppointmentRepo) SaveLines(ctx context.Context, docID id.ID, lines []scheduling.AppointmentLine) error {
	querier := r.Querier(ctx)

	delQ := r.Builder().
		Delete("doc_appointment_lines").
		Where(squirrel.Eq{"appointment_id": docID})

	sql, args, err := delQ.ToSql()
	if err != nil {
		return fmt.Errorf("build lines delete: %w", err)
	}

	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete appointment lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	insQ := r.Builder().
		Insert("doc_appointment_lines").
		Columns("line_id", "appointment_id", "line_no", "treatment_id", "quantity", "price", "amount")

	for _, line := range lines {
		insQ = insQ.Values(line.LineID, docID, line.LineNo, line.TreatmentID, line.Quantity, line.Price, line.Amount)
	}

	sql, args, err = insQ.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}

	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert appointment lines: %w", err)
	}

	return nil
}

// List retrieves appointments with scheduling-specific filters.
func (r *AppointmentRepo) List(ctx context.Context, filter scheduling.ListFilter) (domain.ListResult[*scheduling.Appointment], error) {
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
	if filter.StaffID != nil {
		q = q.Where(squirrel.Eq{"staff_id": *filter.StaffID})
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
