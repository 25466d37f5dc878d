package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"clinicore/internal/core/id"
	"clinicore/internal/domain"
	"clinicore/internal/domain/records"
	"clinicore/internal/infrastructure/storage/postgres"
)

// MedicalRecordRepo implements records.Repository.
type MedicalRecordRepo struct {
	*BaseDocumentRepo[*records.MedicalRecord]
}

var medicalRecordColumns = postgres.ExtractDBColumns[records.MedicalRecord]()

// NewMedicalRecordRepo creates a new medical record repository.
func NewMedicalRecordRepo(txManager *postgres.TxManager) *MedicalRecordRepo {
	return &MedicalRecordRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			"doc_medical_record",
			medicalRecordColumns,
			func() *records.MedicalRecord { return &records.MedicalRecord{} },
		),
	}
}

var _ records.Repository = (*MedicalRecordRepo)(nil)

// FindByAppointment retrieves the record produced by an appointment.
func (r *MedicalRecordRepo) FindByAppointment(ctx context.Context, appointmentID id.ID) (*records.MedicalRecord, error) {
	q := r.Select().
		Where(squirrel.Eq{"appointment_id": appointmentID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	return r.FindOne(ctx, q)
}

// List retrieves medical records with record-specific filters.
func (r *MedicalRecordRepo) List(ctx context.Context, filter records.ListFilter) (domain.ListResult[*records.MedicalRecord], error) {
	q := r.Select()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": "%" + filter.Search + "%"},
			squirrel.ILike{"diagnosis": "%" + filter.Search + "%"},
		})
	}
	if filter.ClientID != nil {
		q = q.Where(squirrel.Eq{"client_id": *filter.ClientID})
	}
	if filter.AppointmentID != nil {
		q = q.Where(squirrel.Eq{"appointment_id": *filter.AppointmentID})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	return r.ListQuery(ctx, q, filter.ListFilter)
}
