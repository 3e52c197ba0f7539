package session

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkwise/internal/core/apperror"
	"parkwise/internal/core/id"
	"parkwise/internal/core/tx"
	"parkwise/internal/domain/spot"
)

// seqRunner runs operations directly without a database. A failing step
// records the rollback the way the transaction manager would.
type seqRunner struct {
	rolledBack bool
}

func (r *seqRunner) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *seqRunner) RunSequence(ctx context.Context, ops ...tx.Operation) error {
	for _, op := range ops {
		if err := op.Fn(ctx); err != nil {
			r.rolledBack = true
			return err
		}
	}
	return nil
}

type fakeSessionRepo struct {
	byID        map[id.ID]*ParkingSession
	openByPlate map[string]*ParkingSession
	inserted    []*ParkingSession
	closeErr    error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		byID:        make(map[id.ID]*ParkingSession),
		openByPlate: make(map[string]*ParkingSession),
	}
}

func (f *fakeSessionRepo) Insert(ctx context.Context, s *ParkingSession) error {
	f.inserted = append(f.inserted, s)
	f.byID[s.ID] = s
	f.openByPlate[s.Plate] = s
	return nil
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, sessionID id.ID) (*ParkingSession, error) {
	s, ok := f.byID[sessionID]
	if !ok {
		return nil, apperror.NewNotFound("parking_session", sessionID.String())
	}
	return s, nil
}

func (f *fakeSessionRepo) GetOpenByPlate(ctx context.Context, garageID id.ID, plate string) (*ParkingSession, error) {
	return f.openByPlate[plate], nil
}

func (f *fakeSessionRepo) ListOpenByGarage(ctx context.Context, garageID id.ID, limit, offset int) ([]*ParkingSession, error) {
	var out []*ParkingSession
	for _, s := range f.byID {
		if s.GarageID == garageID && s.State == StateOpen {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) Close(ctx context.Context, sessionID id.ID, at time.Time) error {
	if f.closeErr != nil {
		return f.closeErr
	}
	s, ok := f.byID[sessionID]
	if !ok || s.State != StateOpen {
		return apperror.NewBusinessRule(apperror.CodeSessionClosed, "session is already closed")
	}
	return nil
}

type fakeSpotRepo struct {
	freeSpot    *spot.Spot
	transitions []string
	updateErr   error
}

func (f *fakeSpotRepo) Create(ctx context.Context, s *spot.Spot) error { return nil }
func (f *fakeSpotRepo) Update(ctx context.Context, s *spot.Spot) error { return nil }
func (f *fakeSpotRepo) GetByID(ctx context.Context, spotID id.ID) (*spot.Spot, error) {
	return f.freeSpot, nil
}
func (f *fakeSpotRepo) ListByGarage(ctx context.Context, garageID id.ID, limit, offset int) ([]*spot.Spot, error) {
	return nil, nil
}
func (f *fakeSpotRepo) CountByStatus(ctx context.Context, garageID id.ID) (map[spot.SpotStatus]int64, error) {
	return nil, nil
}
func (f *fakeSpotRepo) FindFree(ctx context.Context, garageID id.ID, spotType spot.SpotType) (*spot.Spot, error) {
	return f.freeSpot, nil
}
func (f *fakeSpotRepo) UpdateStatus(ctx context.Context, spotID id.ID, from, to spot.SpotStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.transitions = append(f.transitions, string(from)+"->"+string(to))
	return nil
}

type fakeAuditor struct {
	actions []string
}

func (f *fakeAuditor) LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error {
	f.actions = append(f.actions, action)
	return nil
}

func newServiceUnderTest() (*Service, *fakeSessionRepo, *fakeSpotRepo, *fakeAuditor, *seqRunner) {
	sessions := newFakeSessionRepo()
	spots := &fakeSpotRepo{}
	auditor := &fakeAuditor{}
	runner := &seqRunner{}
	return NewService(sessions, spots, runner, auditor), sessions, spots, auditor, runner
}

func freeSpot(garageID id.ID) *spot.Spot {
	return spot.NewSpot(garageID, 1, "1-001", spot.TypeStandard, decimal.NewFromFloat(2.50))
}

func TestCheckIn(t *testing.T) {
	svc, sessions, spots, auditor, _ := newServiceUnderTest()
	garageID := id.New()
	spots.freeSpot = freeSpot(garageID)

	sess, err := svc.CheckIn(context.Background(), CheckInRequest{
		GarageID: garageID,
		Plate:    " ab 123 cd ",
	})
	require.NoError(t, err)

	assert.Equal(t, "AB123CD", sess.Plate)
	assert.Equal(t, StateOpen, sess.State)
	assert.Equal(t, spots.freeSpot.ID, sess.SpotID)
	assert.True(t, sess.HourlyRate.Equal(decimal.NewFromFloat(2.50)))

	require.Len(t, sessions.inserted, 1)
	assert.Equal(t, []string{"free->occupied"}, spots.transitions)
	assert.Equal(t, []string{"check_in"}, auditor.actions)
}

func TestCheckIn_EmptyPlate(t *testing.T) {
	svc, _, _, _, _ := newServiceUnderTest()

	_, err := svc.CheckIn(context.Background(), CheckInRequest{GarageID: id.New(), Plate: "   "})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestCheckIn_GarageFull(t *testing.T) {
	svc, _, spots, auditor, runner := newServiceUnderTest()
	spots.freeSpot = nil

	_, err := svc.CheckIn(context.Background(), CheckInRequest{GarageID: id.New(), Plate: "XX111"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeGarageFull, appErr.Code)
	assert.True(t, runner.rolledBack)
	assert.Empty(t, auditor.actions)
}

func TestCheckIn_AlreadyCheckedIn(t *testing.T) {
	svc, sessions, spots, _, _ := newServiceUnderTest()
	garageID := id.New()
	spots.freeSpot = freeSpot(garageID)

	first, err := svc.CheckIn(context.Background(), CheckInRequest{GarageID: garageID, Plate: "AB123CD"})
	require.NoError(t, err)
	require.NotNil(t, sessions.openByPlate[first.Plate])

	_, err = svc.CheckIn(context.Background(), CheckInRequest{GarageID: garageID, Plate: "ab 123 cd"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
}

func TestCheckIn_SpotGrabbedConcurrently(t *testing.T) {
	svc, sessions, spots, _, runner := newServiceUnderTest()
	garageID := id.New()
	spots.freeSpot = freeSpot(garageID)
	spots.updateErr = apperror.NewSpotUnavailable(spots.freeSpot.ID.String(), "free")

	_, err := svc.CheckIn(context.Background(), CheckInRequest{GarageID: garageID, Plate: "XX111"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeSpotUnavailable, appErr.Code)
	assert.True(t, runner.rolledBack)
	assert.Empty(t, sessions.inserted)
}

func TestCheckOut(t *testing.T) {
	svc, _, spots, auditor, _ := newServiceUnderTest()
	garageID := id.New()
	spots.freeSpot = freeSpot(garageID)

	opened, err := svc.CheckIn(context.Background(), CheckInRequest{GarageID: garageID, Plate: "AB123CD"})
	require.NoError(t, err)

	closed, err := svc.CheckOut(context.Background(), opened.ID)
	require.NoError(t, err)

	assert.Equal(t, StateClosed, closed.State)
	require.NotNil(t, closed.CheckedOutAt)
	assert.False(t, closed.CheckedOutAt.Before(closed.CheckedInAt))

	assert.Equal(t, []string{"free->occupied", "occupied->free"}, spots.transitions)
	assert.Equal(t, []string{"check_in", "check_out"}, auditor.actions)
}

func TestCheckOut_UnknownSession(t *testing.T) {
	svc, _, _, _, _ := newServiceUnderTest()

	_, err := svc.CheckOut(context.Background(), id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCheckOut_AlreadyClosed(t *testing.T) {
	svc, sessions, spots, _, _ := newServiceUnderTest()
	garageID := id.New()
	spots.freeSpot = freeSpot(garageID)

	opened, err := svc.CheckIn(context.Background(), CheckInRequest{GarageID: garageID, Plate: "AB123CD"})
	require.NoError(t, err)

	sessions.byID[opened.ID].State = StateClosed

	_, err = svc.CheckOut(context.Background(), opened.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeSessionClosed, appErr.Code)
}

func TestNormalizePlate(t *testing.T) {
	assert.Equal(t, "AB123CD", NormalizePlate("  ab 123 cd "))
	assert.Equal(t, "", NormalizePlate("   "))
}
