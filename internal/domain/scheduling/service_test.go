package scheduling

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicore/internal/core/apperror"
	"clinicore/internal/core/id"
	"clinicore/internal/core/numerator"
	"clinicore/internal/core/security"
	"clinicore/internal/core/types"
	"clinicore/internal/domain"
	"clinicore/internal/domain/catalogs/treatment"
)

// --- Fakes ---

type fakeRepo struct {
	docs  map[id.ID]*Appointment
	lines map[id.ID][]AppointmentLine
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		docs:  make(map[id.ID]*Appointment),
		lines: make(map[id.ID][]AppointmentLine),
	}
}

func (r *fakeRepo) Create(ctx context.Context, doc *Appointment) error {
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, docID id.ID) (*Appointment, error) {
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("appointment", docID.String())
	}
	return doc, nil
}

func (r *fakeRepo) GetByNumber(ctx context.Context, number string) (*Appointment, error) {
	for _, doc := range r.docs {
		if doc.Number == number {
			return doc, nil
		}
	}
	return nil, apperror.NewNotFound("appointment", number)
}

func (r *fakeRepo) Update(ctx context.Context, doc *Appointment) error {
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("appointment", doc.ID.String())
	}
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeRepo) GetLines(ctx context.Context, docID id.ID) ([]AppointmentLine, error) {
	return r.lines[docID], nil
}

func (r *fakeRepo) SaveLines(ctx context.Context, docID id.ID, lines []AppointmentLine) error {
	r.lines[docID] = lines
	return nil
}

func (r *fakeRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Appointment], error) {
	result := domain.ListResult[*Appointment]{}
	for _, doc := range r.docs {
		result.Items = append(result.Items, doc)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, docID id.ID) (*Appointment, error) {
	return r.GetByID(ctx, docID)
}

type fakeTreatments struct {
	items map[id.ID]*treatment.Treatment
}

func (f *fakeTreatments) GetByID(ctx context.Context, treatmentID id.ID) (*treatment.Treatment, error) {
	trt, ok := f.items[treatmentID]
	if !ok {
		return nil, apperror.NewNotFound("treatment", treatmentID.String())
	}
	return trt, nil
}

type fakeClients struct {
	known map[id.ID]bool
}

func (f *fakeClients) Exists(ctx context.Context, clientID id.ID) (bool, error) {
	return f.known[clientID], nil
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

// --- Fixture ---

type fixture struct {
	svc        *Service
	repo       *fakeRepo
	treatments *fakeTreatments
	clients    *fakeClients
	clientID   id.ID
	cleaning   *treatment.Treatment
	filling    *treatment.Treatment
}

func newFixture(t *testing.T, policy *security.BookingPolicy) *fixture {
	t.Helper()

	f := &fixture{
		repo:       newFakeRepo(),
		treatments: &fakeTreatments{items: make(map[id.ID]*treatment.Treatment)},
		clients:    &fakeClients{known: make(map[id.ID]bool)},
		clientID:   id.New(),
	}
	f.clients.known[f.clientID] = true

	f.cleaning = treatment.NewTreatment("TRT-CLEAN", "Dental cleaning", types.MustMoney("80.00"), 45)
	f.filling = treatment.NewTreatment("TRT-FILL", "Composite filling", types.MustMoney("120.00"), 60)
	f.treatments.items[f.cleaning.ID] = f.cleaning
	f.treatments.items[f.filling.ID] = f.filling

	f.svc = NewService(f.repo, f.treatments, f.clients, policy, testNumerator(), nopTx{})
	return f
}

func (f *fixture) createInput(lines ...LineInput) CreateInput {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return CreateInput{
		ClientID:  f.clientID,
		Date:      date,
		StartTime: date.Add(10 * time.Hour),
		EndTime:   date.Add(11 * time.Hour),
		Lines:     lines,
	}
}

func (f *fixture) mustCreate(t *testing.T, lines ...LineInput) *Appointment {
	t.Helper()
	doc, err := f.svc.Create(context.Background(), f.createInput(lines...))
	require.NoError(t, err)
	return doc
}

// --- Tests ---

func TestCreateSnapshotsCatalogPrices(t *testing.T) {
	f := newFixture(t, nil)

	doc := f.mustCreate(t,
		LineInput{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(2)},
		LineInput{TreatmentID: f.filling.ID, Quantity: types.NewQuantityFromInt(1)},
	)

	assert.Equal(t, StatusScheduled, doc.Status)
	assert.Equal(t, "APT-2026-00001", doc.Number)
	require.Len(t, doc.Lines, 2)

	assert.True(t, doc.Lines[0].Price.Equal(types.MustMoney("80.00")))
	assert.True(t, doc.Lines[0].Amount.Equal(types.MustMoney("160.00")))
	assert.Equal(t, 1, doc.Lines[0].LineNo)
	assert.True(t, doc.Lines[1].Amount.Equal(types.MustMoney("120.00")))
	assert.True(t, doc.TotalAmount.Equal(types.MustMoney("280.00")))
}

func TestCreateLaterPriceChangeDoesNotAffectBooking(t *testing.T) {
	f := newFixture(t, nil)

	doc := f.mustCreate(t, LineInput{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(1)})

	f.cleaning.Price = types.MustMoney("999.00")

	stored, err := f.svc.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(types.MustMoney("80.00")))
}

func TestCreateRejectsUnknownClient(t *testing.T) {
	f := newFixture(t, nil)

	input := f.createInput(LineInput{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(1)})
	input.ClientID = id.New()

	_, err := f.svc.Create(context.Background(), input)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCreateRejectsEmptyLines(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Create(context.Background(), f.createInput())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCreateRejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Create(context.Background(), f.createInput(
		LineInput{TreatmentID: f.cleaning.ID, Quantity: 0},
	))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCreateRejectsUnavailableTreatment(t *testing.T) {
	f := newFixture(t, nil)

	inactive := treatment.NewTreatment("TRT-OLD", "Retired treatment", types.MustMoney("10.00"), 15)
	inactive.Active = false
	f.treatments.items[inactive.ID] = inactive

	marked := treatment.NewTreatment("TRT-DEL", "Deleted treatment", types.MustMoney("10.00"), 15)
	marked.DeletionMark = true
	f.treatments.items[marked.ID] = marked

	for _, trt := range []*treatment.Treatment{inactive, marked} {
		_, err := f.svc.Create(context.Background(), f.createInput(
			LineInput{TreatmentID: trt.ID, Quantity: types.NewQuantityFromInt(1)},
		))
		assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "treatment %s", trt.Code)
	}
}

func TestCreateBookingPolicyRejects(t *testing.T) {
	policy := security.MustBookingPolicy("start_hour >= 8 && start_hour < 20")
	f := newFixture(t, policy)

	input := f.createInput(LineInput{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(1)})
	input.StartTime = input.Date.Add(6 * time.Hour)
	input.EndTime = input.Date.Add(7 * time.Hour)

	_, err := f.svc.Create(context.Background(), input)
	assert.True(t, apperror.HasCode(err, apperror.CodeBookingPolicy))
}

func TestCreateBookingPolicyAccepts(t *testing.T) {
	policy := security.MustBookingPolicy("duration_minutes <= 240 && line_count >= 1 && total_amount < 1000.0")
	f := newFixture(t, policy)

	_, err := f.svc.Create(context.Background(), f.createInput(
		LineInput{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(1)},
	))
	assert.NoError(t, err)
}

func TestUpdateLinesResnapshotsPrices(t *testing.T) {
	f := newFixture(t, nil)

	doc := f.mustCreate(t, LineInput{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(1)})

	f.cleaning.Price = types.MustMoney("95.00")

	updated, err := f.svc.UpdateLines(context.Background(), doc.ID, []LineInput{
		{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(2)},
	})
	require.NoError(t, err)

	require.Len(t, updated.Lines, 1)
	assert.True(t, updated.Lines[0].Price.Equal(types.MustMoney("95.00")))
	assert.True(t, updated.TotalAmount.Equal(types.MustMoney("190.00")))
}

func TestUpdateLinesLockedOnceInProgress(t *testing.T) {
	f := newFixture(t, nil)

	doc := f.mustCreate(t, LineInput{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(1)})

	_, err := f.svc.Transition(context.Background(), doc.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = f.svc.Transition(context.Background(), doc.ID, StatusInProgress)
	require.NoError(t, err)

	_, err = f.svc.UpdateLines(context.Background(), doc.ID, []LineInput{
		{TreatmentID: f.filling.ID, Quantity: types.NewQuantityFromInt(1)},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeAppointmentLocked))
}

func TestTransitionFollowsStateMachine(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusNoShow, true},
		{StatusScheduled, StatusInProgress, false},
		{StatusConfirmed, StatusInProgress, true},
		{StatusConfirmed, StatusScheduled, false},
		{StatusInProgress, StatusCancelled, true},
		{StatusCancelled, StatusConfirmed, false},
		{StatusNoShow, StatusScheduled, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_to_%s", tt.from, tt.to), func(t *testing.T) {
			f := newFixture(t, nil)
			doc := f.mustCreate(t, LineInput{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(1)})
			doc.Status = tt.from

			got, err := f.svc.Transition(context.Background(), doc.ID, tt.to)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, got.Status)
			} else {
				assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
				assert.Equal(t, tt.from, f.repo.docs[doc.ID].Status)
			}
		})
	}
}

func TestTransitionRejectsCompletedTarget(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.mustCreate(t, LineInput{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(1)})

	_, err := f.svc.Transition(context.Background(), doc.ID, StatusCompleted)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Equal(t, StatusScheduled, f.repo.docs[doc.ID].Status)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.mustCreate(t, LineInput{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(1)})

	_, err := f.svc.Transition(context.Background(), doc.ID, Status("ARCHIVED"))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCancelRecordsReason(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.mustCreate(t, LineInput{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(1)})

	reason := "client called to cancel"
	got, err := f.svc.Cancel(context.Background(), doc.ID, &reason)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, reason, *got.CancelReason)

	// Terminal: nothing leaves CANCELLED.
	_, err = f.svc.Cancel(context.Background(), doc.ID, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestLockForCompletion(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.mustCreate(t, LineInput{TreatmentID: f.cleaning.ID, Quantity: types.NewQuantityFromInt(1)})

	locked, err := f.svc.LockForCompletion(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, locked.Lines)

	doc.Status = StatusCompleted
	_, err = f.svc.LockForCompletion(context.Background(), doc.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyCompleted))

	doc.Status = StatusCancelled
	_, err = f.svc.LockForCompletion(context.Background(), doc.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}
