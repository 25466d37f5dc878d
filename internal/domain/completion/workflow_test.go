package completion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/core/numerator"
	"clinicore/internal/core/types"
	"clinicore/internal/domain"
	"clinicore/internal/domain/billing"
	"clinicore/internal/domain/records"
	"clinicore/internal/domain/scheduling"
)

// The fakes below store value copies, so a snapshot of the maps is a full
// snapshot of the state. txSnapshot restores them when the outermost
// transaction fails, mirroring a database rollback.

type fakeAppointments struct {
	docs map[id.ID]*scheduling.Appointment
}

func cloneAppointment(a *scheduling.Appointment) *scheduling.Appointment {
	c := *a
	c.Lines = append([]scheduling.AppointmentLine(nil), a.Lines...)
	return &c
}

func (r *fakeAppointments) Create(ctx context.Context, doc *scheduling.Appointment) error {
	r.docs[doc.ID] = cloneAppointment(doc)
	return nil
}

func (r *fakeAppointments) GetByID(ctx context.Context, docID id.ID) (*scheduling.Appointment, error) {
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("appointment", docID.String())
	}
	return cloneAppointment(doc), nil
}

func (r *fakeAppointments) GetByNumber(ctx context.Context, number string) (*scheduling.Appointment, error) {
	for _, doc := range r.docs {
		if doc.Number == number {
			return cloneAppointment(doc), nil
		}
	}
	return nil, apperror.NewNotFound("appointment", number)
}

func (r *fakeAppointments) Update(ctx context.Context, doc *scheduling.Appointment) error {
	r.docs[doc.ID] = cloneAppointment(doc)
	return nil
}

func (r *fakeAppointments) GetLines(ctx context.Context, docID id.ID) ([]scheduling.AppointmentLine, error) {
	doc, ok := r.docs[docID]
	if !ok {
		return nil, nil
	}
	return append([]scheduling.AppointmentLine(nil), doc.Lines...), nil
}

func (r *fakeAppointments) SaveLines(ctx context.Context, docID id.ID, lines []scheduling.AppointmentLine) error {
	return nil
}

func (r *fakeAppointments) List(ctx context.Context, filter scheduling.ListFilter) (domain.ListResult[*scheduling.Appointment], error) {
	return domain.ListResult[*scheduling.Appointment]{}, nil
}

func (r *fakeAppointments) GetForUpdate(ctx context.Context, docID id.ID) (*scheduling.Appointment, error) {
	return r.GetByID(ctx, docID)
}

type fakeInvoices struct {
	docs map[id.ID]*billing.Invoice
}

func (r *fakeInvoices) Create(ctx context.Context, doc *billing.Invoice) error {
	c := *doc
	r.docs[doc.ID] = &c
	return nil
}

func (r *fakeInvoices) GetByID(ctx context.Context, docID id.ID) (*billing.Invoice, error) {
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("invoice", docID.String())
	}
	c := *doc
	return &c, nil
}

func (r *fakeInvoices) GetByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	return nil, apperror.NewNotFound("invoice", number)
}

func (r *fakeInvoices) Update(ctx context.Context, doc *billing.Invoice) error {
	c := *doc
	r.docs[doc.ID] = &c
	return nil
}

func (r *fakeInvoices) List(ctx context.Context, filter billing.InvoiceListFilter) (domain.ListResult[*billing.Invoice], error) {
	return domain.ListResult[*billing.Invoice]{}, nil
}

func (r *fakeInvoices) GetForUpdate(ctx context.Context, docID id.ID) (*billing.Invoice, error) {
	return r.GetByID(ctx, docID)
}

func (r *fakeInvoices) FindByAppointment(ctx context.Context, appointmentID id.ID) (*billing.Invoice, error) {
	for _, doc := range r.docs {
		if doc.AppointmentID != nil && *doc.AppointmentID == appointmentID {
			c := *doc
			return &c, nil
		}
	}
	return nil, apperror.NewNotFound("invoice", appointmentID.String())
}

func (r *fakeInvoices) SumPaidPayments(ctx context.Context, invoiceID id.ID) (types.Money, error) {
	return types.Zero(), nil
}

type fakePayments struct{}

func (fakePayments) Create(ctx context.Context, doc *billing.Payment) error { return nil }
func (fakePayments) GetByID(ctx context.Context, docID id.ID) (*billing.Payment, error) {
	return nil, apperror.NewNotFound("payment", docID.String())
}
func (fakePayments) Update(ctx context.Context, doc *billing.Payment) error { return nil }
func (fakePayments) List(ctx context.Context, filter billing.PaymentListFilter) (domain.ListResult[*billing.Payment], error) {
	return domain.ListResult[*billing.Payment]{}, nil
}
func (fakePayments) GetForUpdate(ctx context.Context, docID id.ID) (*billing.Payment, error) {
	return nil, apperror.NewNotFound("payment", docID.String())
}
func (fakePayments) FindByIdempotencyKey(ctx context.Context, key string) (*billing.Payment, error) {
	return nil, apperror.NewNotFound("payment", key)
}
func (fakePayments) FindDuePending(ctx context.Context, before time.Time, limit int) ([]*billing.Payment, error) {
	return nil, nil
}

type fakeRecords struct {
	docs       map[id.ID]*records.MedicalRecord
	failCreate bool
}

func (r *fakeRecords) Create(ctx context.Context, doc *records.MedicalRecord) error {
	if r.failCreate {
		return errors.New("storage offline")
	}
	c := *doc
	r.docs[doc.ID] = &c
	return nil
}

func (r *fakeRecords) GetByID(ctx context.Context, docID id.ID) (*records.MedicalRecord, error) {
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("medical record", docID.String())
	}
	return doc, nil
}

func (r *fakeRecords) Update(ctx context.Context, doc *records.MedicalRecord) error {
	c := *doc
	r.docs[doc.ID] = &c
	return nil
}

func (r *fakeRecords) List(ctx context.Context, filter records.ListFilter) (domain.ListResult[*records.MedicalRecord], error) {
	return domain.ListResult[*records.MedicalRecord]{}, nil
}

func (r *fakeRecords) FindByAppointment(ctx context.Context, appointmentID id.ID) (*records.MedicalRecord, error) {
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

// txSnapshot joins nested calls into one transaction and restores the fake
// stores when the outermost call fails.
type txSnapshot struct {
	appointments *fakeAppointments
	invoices     *fakeInvoices
	records      *fakeRecords
	depth        int
}

func (t *txSnapshot) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	outer := t.depth == 0

	var apts map[id.ID]*scheduling.Appointment
	var invs map[id.ID]*billing.Invoice
	var recs map[id.ID]*records.MedicalRecord
	if outer {
		apts = copyMap(t.appointments.docs)
		invs = copyMap(t.invoices.docs)
		recs = copyMap(t.records.docs)
	}

	t.depth++
	err := fn(ctx)
	t.depth--

	if err != nil && outer {
		t.appointments.docs = apts
		t.invoices.docs = invs
		t.records.docs = recs
	}
	return err
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// --- Fixture ---

type fixture struct {
	wf           *Workflow
	appointments *fakeAppointments
	invoices     *fakeInvoices
	records      *fakeRecords
	clientID     id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		appointments: &fakeAppointments{docs: make(map[id.ID]*scheduling.Appointment)},
		invoices:     &fakeInvoices{docs: make(map[id.ID]*billing.Invoice)},
		records:      &fakeRecords{docs: make(map[id.ID]*records.MedicalRecord)},
		clientID:     id.New(),
	}

	txm := &txSnapshot{
		appointments: f.appointments,
		invoices:     f.invoices,
		records:      f.records,
	}
	num := testNumerator()

	// Catalogs and booking policy are not exercised here: appointments are
	// seeded directly into the repository.
	schedulingSvc := scheduling.NewService(f.appointments, nil, nil, nil, num, txm)
	billingSvc := billing.NewService(f.invoices, fakePayments{}, num, txm)
	recordsSvc := records.NewService(f.records, num, txm)

	f.wf = NewWorkflow(schedulingSvc, billingSvc, recordsSvc, txm)
	return f
}

func (f *fixture) seedAppointment(t *testing.T, status scheduling.Status) id.ID {
	t.Helper()

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	apt := scheduling.NewAppointment(f.clientID, date, date.Add(10*time.Hour), date.Add(11*time.Hour))
	apt.Number = "APT-2026-90001"
	apt.AddLine(id.New(), types.NewQuantityFromInt(2), types.MustMoney("80.00"))
	apt.Status = status

	require.NoError(t, f.appointments.Create(context.Background(), apt))
	return apt.ID
}

// --- Tests ---

func TestCompleteCreatesInvoiceAndRecord(t *testing.T) {
	f := newFixture(t)
	aptID := f.seedAppointment(t, scheduling.StatusConfirmed)

	notes := "no complications"
	result, err := f.wf.Complete(context.Background(), aptID, &ClinicalInput{
		Diagnosis:     "caries on 36",
		TreatmentText: "composite filling placed",
		Notes:         &notes,
	})
	require.NoError(t, err)

	assert.Equal(t, scheduling.StatusCompleted, result.Appointment.Status)
	assert.Equal(t, scheduling.StatusCompleted, f.appointments.docs[aptID].Status)

	require.NotNil(t, result.Invoice)
	assert.Equal(t, billing.InvoicePending, result.Invoice.Status)
	assert.True(t, result.Invoice.Amount.Equal(types.MustMoney("160.00")))
	require.NotNil(t, result.Invoice.AppointmentID)
	assert.Equal(t, aptID, *result.Invoice.AppointmentID)

	require.NotNil(t, result.MedicalRecord)
	assert.Equal(t, "caries on 36", result.MedicalRecord.Diagnosis)
	assert.Equal(t, f.clientID, result.MedicalRecord.ClientID)
	assert.Len(t, f.records.docs, 1)
}

func TestCompleteWithoutClinicalInputDefersRecord(t *testing.T) {
	f := newFixture(t)
	aptID := f.seedAppointment(t, scheduling.StatusInProgress)

	result, err := f.wf.Complete(context.Background(), aptID, nil)
	require.NoError(t, err)

	assert.NotNil(t, result.Invoice)
	assert.Nil(t, result.MedicalRecord)
	assert.Empty(t, f.records.docs)
}

func TestCompleteTwiceRejected(t *testing.T) {
	f := newFixture(t)
	aptID := f.seedAppointment(t, scheduling.StatusConfirmed)

	_, err := f.wf.Complete(context.Background(), aptID, nil)
	require.NoError(t, err)

	_, err = f.wf.Complete(context.Background(), aptID, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyCompleted))
	assert.Len(t, f.invoices.docs, 1)
}

func TestCompleteRejectsCancelledAppointment(t *testing.T) {
	f := newFixture(t)
	aptID := f.seedAppointment(t, scheduling.StatusCancelled)

	_, err := f.wf.Complete(context.Background(), aptID, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
	assert.Empty(t, f.invoices.docs)
}

func TestCompleteRollsBackAtomically(t *testing.T) {
	f := newFixture(t)
	aptID := f.seedAppointment(t, scheduling.StatusConfirmed)
	f.records.failCreate = true

	_, err := f.wf.Complete(context.Background(), aptID, &ClinicalInput{
		Diagnosis: "caries on 36",
	})
	require.Error(t, err)

	// The failing record creation takes the invoice and the status change
	// down with it.
	assert.Equal(t, scheduling.StatusConfirmed, f.appointments.docs[aptID].Status)
	assert.Empty(t, f.invoices.docs)
	assert.Empty(t, f.records.docs)

	// A retry after the fault clears succeeds.
	f.records.failCreate = false
	result, err := f.wf.Complete(context.Background(), aptID, &ClinicalInput{
		Diagnosis: "caries on 36",
	})
	require.NoError(t, err)
	assert.NotNil(t, result.Invoice)
	assert.NotNil(t, result.MedicalRecord)
}

func TestTransitionDelegatesNonCompletedTargets(t *testing.T) {
	f := newFixture(t)
	aptID := f.seedAppointment(t, scheduling.StatusConfirmed)

	result, err := f.wf.Transition(context.Background(), aptID, scheduling.StatusInProgress, nil)
	require.NoError(t, err)

	assert.Equal(t, scheduling.StatusInProgress, result.Appointment.Status)
	assert.Nil(t, result.Invoice)
	assert.Nil(t, result.MedicalRecord)
}

func TestTransitionCompletedRunsWorkflow(t *testing.T) {
	f := newFixture(t)
	aptID := f.seedAppointment(t, scheduling.StatusConfirmed)

	result, err := f.wf.Transition(context.Background(), aptID, scheduling.StatusCompleted, nil)
	require.NoError(t, err)

	assert.Equal(t, scheduling.StatusCompleted, result.Appointment.Status)
	assert.NotNil(t, result.Invoice)
}
