package impl

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"darshan/internal/domain/entity"
	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/usecase"
	"darshan/internal/util"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startedBooking returns a confirmed booking whose journey has started.
func (env *testEnv) startedBooking(t *testing.T) *entity.Booking {
	t.Helper()

	ctx := context.Background()
	owner, profile := env.store.addProvider(0)
	booking, err := env.bookings.Create(ctx, createInput(uuid.New(), profile.ID))
	require.NoError(t, err)
	_, err = env.bookings.Confirm(ctx, booking.ID, nil, nil)
	require.NoError(t, err)
	started, err := env.bookings.StartJourney(ctx, booking.ID, owner.ID)
	require.NoError(t, err)

	return started
}

func TestTrackingService_ReportPositionRequiresActiveJourney(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, profile := env.store.addProvider(0)

	booking, err := env.bookings.Create(ctx, createInput(uuid.New(), profile.ID))
	require.NoError(t, err)

	ok, err := env.tracking.ReportPosition(ctx, booking.ID, &usecase.ReportPositionInput{Latitude: 18.52, Longitude: 73.85})
	require.NoError(t, err)
	assert.False(t, ok, "pending booking")

	_, err = env.bookings.Confirm(ctx, booking.ID, nil, nil)
	require.NoError(t, err)

	ok, err = env.tracking.ReportPosition(ctx, booking.ID, &usecase.ReportPositionInput{Latitude: 18.52, Longitude: 73.85})
	require.NoError(t, err)
	assert.False(t, ok, "journey not started")
	assert.Empty(t, env.store.samples)

	_, err = env.tracking.ReportPosition(ctx, uuid.New(), &usecase.ReportPositionInput{Latitude: 1, Longitude: 1})
	assert.ErrorIs(t, err, domainerrors.ErrBookingNotFound)
}

func TestTrackingService_ReportPositionValidatesCoordinates(t *testing.T) {
	env := newTestEnv(t)
	booking := env.startedBooking(t)

	for _, in := range []usecase.ReportPositionInput{
		{Latitude: 91, Longitude: 0},
		{Latitude: 0, Longitude: -181},
		{Latitude: 10, Longitude: 10, Speed: ptr(-3.0)},
	} {
		_, err := env.tracking.ReportPosition(context.Background(), booking.ID, &in)
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	}
}

func TestTrackingService_CarriesEtaAndDerivesSpeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.startedBooking(t)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	env.tracking.now = func() time.Time { return now }
	eta := now.Add(40 * time.Minute)

	ok, err := env.tracking.ReportPosition(ctx, booking.ID, &usecase.ReportPositionInput{
		Latitude: 18.5200, Longitude: 73.8500, EstimatedArrival: &eta,
	})
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(time.Minute)
	ok, err = env.tracking.ReportPosition(ctx, booking.ID, &usecase.ReportPositionInput{
		Latitude: 18.5290, Longitude: 73.8500,
	})
	require.NoError(t, err)
	require.True(t, ok)

	sample := env.store.samples[booking.ID]
	require.NotNil(t, sample.EstimatedArrival)
	assert.True(t, eta.Equal(*sample.EstimatedArrival))
	require.NotNil(t, sample.Speed)
	// about one kilometre in a minute
	assert.InDelta(t, 16.7, *sample.Speed, 0.5)
}

func TestTrackingService_ReportedSpeedIsKept(t *testing.T) {
	env := newTestEnv(t)
	booking := env.startedBooking(t)

	_, err := env.tracking.ReportPosition(context.Background(), booking.ID, &usecase.ReportPositionInput{Latitude: 1, Longitude: 1})
	require.NoError(t, err)
	_, err = env.tracking.ReportPosition(context.Background(), booking.ID, &usecase.ReportPositionInput{Latitude: 1.1, Longitude: 1, Speed: ptr(4.5)})
	require.NoError(t, err)

	assert.InDelta(t, 4.5, *env.store.samples[booking.ID].Speed, 0.0001)
}

func TestTrackingService_SetEstimatedArrival(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := env.startedBooking(t)
	at := time.Now().Add(25 * time.Minute)

	_, err := env.tracking.SetEstimatedArrival(ctx, booking.ID, at)
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed, "no sample yet")

	_, err = env.tracking.ReportPosition(ctx, booking.ID, &usecase.ReportPositionInput{Latitude: 1, Longitude: 1})
	require.NoError(t, err)

	ok, err := env.tracking.SetEstimatedArrival(ctx, booking.ID, at)
	require.NoError(t, err)
	assert.True(t, ok)

	status, err := env.tracking.CurrentStatus(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "25 min", status.ETA)
}

func TestTrackingService_CurrentStatusPhases(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, profile := env.store.addProvider(0)

	booking, err := env.bookings.Create(ctx, createInput(uuid.New(), profile.ID))
	require.NoError(t, err)

	status, err := env.tracking.CurrentStatus(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TrackingPhasePreparing, status.Phase)
	assert.Equal(t, util.ETACalculating, status.ETA)
	assert.Nil(t, status.LastSample)

	_, err = env.bookings.Confirm(ctx, booking.ID, nil, nil)
	require.NoError(t, err)
	_, err = env.bookings.StartJourney(ctx, booking.ID, owner.ID)
	require.NoError(t, err)

	eta := time.Now().Add(2*time.Hour + 5*time.Minute)
	_, err = env.tracking.ReportPosition(ctx, booking.ID, &usecase.ReportPositionInput{Latitude: 1, Longitude: 1, EstimatedArrival: &eta})
	require.NoError(t, err)

	status, err = env.tracking.CurrentStatus(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TrackingPhaseEnRoute, status.Phase)
	require.NotNil(t, status.LastSample)
	assert.Equal(t, "2h 5m", status.ETA)
	samples := fakeSamples{env.store}
	before, err := samples.FindLatestSample(ctx, booking.ID)
	require.NoError(t, err)

	_, err = env.bookings.Complete(ctx, booking.ID, nil)
	require.NoError(t, err)

	status, err = env.tracking.CurrentStatus(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TrackingPhaseArrived, status.Phase)

	accepted, err := env.tracking.ReportPosition(ctx, booking.ID, &usecase.ReportPositionInput{Latitude: 9, Longitude: 9})
	require.NoError(t, err)
	assert.False(t, accepted)

	stored, err := samples.FindLatestSample(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, before, stored)
}

func TestTrackingService_ReportPositionWakesSubscribers(t *testing.T) {
	env := newTestEnv(t)
	booking := env.startedBooking(t)
	eventually(t, func() bool { return env.sync.ActiveRuns() == 0 })

	var hits atomic.Int32
	sub := env.sync.Subscribe(usecase.TrackingViewKey(booking.ID), func(context.Context) error {
		hits.Add(1)

		return nil
	})
	defer sub.Cancel()

	_, err := env.tracking.ReportPosition(context.Background(), booking.ID, &usecase.ReportPositionInput{Latitude: 1, Longitude: 1})
	require.NoError(t, err)

	eventually(t, func() bool { return hits.Load() == 1 })
}
