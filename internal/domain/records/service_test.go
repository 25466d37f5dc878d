package records

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicore/internal/core/apperror"
	appctx "clinicore/internal/core/context"
	"clinicore/internal/core/id"
	"clinicore/internal/core/numerator"
	"clinicore/internal/domain"
)

type fakeRepo struct {
	docs map[id.ID]*MedicalRecord

	// failFind simulates an infrastructure failure during the
	// one-record-per-appointment lookup.
	failFind error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: make(map[id.ID]*MedicalRecord)}
}

func (r *fakeRepo) Create(ctx context.Context, doc *MedicalRecord) error {
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, docID id.ID) (*MedicalRecord, error) {
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("medical record", docID.String())
	}
	return doc, nil
}

func (r *fakeRepo) Update(ctx context.Context, doc *MedicalRecord) error {
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*MedicalRecord], error) {
	result := domain.ListResult[*MedicalRecord]{}
	for _, doc := range r.docs {
		result.Items = append(result.Items, doc)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *fakeRepo) FindByAppointment(ctx context.Context, appointmentID id.ID) (*MedicalRecord, error) {
	if r.failFind != nil {
		return nil, r.failFind
	}
	for _, doc := range r.docs {
		if doc.AppointmentID != nil && *doc.AppointmentID == appointmentID {
			return doc, nil
		}
	}
	return nil, apperror.NewNotFound("medical record", appointmentID.String())
}

func testNumerator() *numerator.MockGenerator {
	var n int64
	return &numerator.MockGenerator{
		GetNextNumberFunc: func(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error) {
			n++
			return fmt.Sprintf("%s-2026-%05d", cfg.Prefix, n), nil
		},
	}
}

type nopTx struct{}

func (nopTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	return NewService(repo, testNumerator(), nopTx{}), repo
}

func TestCreate(t *testing.T) {
	svc, _ := newService(t)

	ctx := appctx.WithActor(context.Background(), &appctx.Actor{UserID: "doc-17"})
	rec, err := svc.Create(ctx, CreateInput{
		ClientID:      id.New(),
		Diagnosis:     "gingivitis",
		TreatmentText: "scaling and polishing",
	})
	require.NoError(t, err)

	assert.Equal(t, "MRC-2026-00001", rec.Number)
	assert.Equal(t, "doc-17", rec.CreatedBy)
	assert.Nil(t, rec.AppointmentID)
}

func TestCreateRequiresClinicalContent(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Create(context.Background(), CreateInput{
		ClientID: id.New(),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCreateOnePerAppointment(t *testing.T) {
	svc, _ := newService(t)

	clientID := id.New()
	appointmentID := id.New()

	_, err := svc.Create(context.Background(), CreateInput{
		ClientID:      clientID,
		AppointmentID: &appointmentID,
		Diagnosis:     "caries on 36",
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{
		ClientID:      clientID,
		AppointmentID: &appointmentID,
		Diagnosis:     "caries on 36, revised",
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	// Follow-up entries without an appointment link are unrestricted.
	_, err = svc.Create(context.Background(), CreateInput{
		ClientID:  clientID,
		Diagnosis: "follow-up check, healing well",
	})
	assert.NoError(t, err)
}

func TestCreateAppointmentLookupErrorPropagates(t *testing.T) {
	svc, repo := newService(t)
	repo.failFind = errors.New("connection reset")

	appointmentID := id.New()
	_, err := svc.Create(context.Background(), CreateInput{
		ClientID:      id.New(),
		AppointmentID: &appointmentID,
		Diagnosis:     "gingivitis",
	})
	require.Error(t, err)

	// A failed lookup must not be read as "no record yet".
	assert.False(t, apperror.HasCode(err, apperror.CodeConflict))
	assert.Empty(t, repo.docs)
}

func TestUpdateStampsActor(t *testing.T) {
	svc, repo := newService(t)

	rec, err := svc.Create(context.Background(), CreateInput{
		ClientID:  id.New(),
		Diagnosis: "gingivitis",
	})
	require.NoError(t, err)
	version := rec.Version

	rec.TreatmentText = "chlorhexidine rinse prescribed"
	ctx := appctx.WithActor(context.Background(), &appctx.Actor{UserID: "doc-4"})
	require.NoError(t, svc.Update(ctx, rec))

	stored := repo.docs[rec.ID]
	assert.Equal(t, "doc-4", stored.UpdatedBy)
	assert.Greater(t, stored.Version, version)
}
