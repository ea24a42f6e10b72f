package services

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/scoring"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingReq = models.BookingRequest{
	PatientName:   "Jane Wanjiku",
	Phone:         "0712345678",
	PickupAddress: "Ward 4, Block B",
	EmergencyType: "cardiac",
}

func (e *testEnv) addAmbulance(t *testing.T, reg string) *models.Vehicle {
	t.Helper()
	vehicle, err := e.vehicles.CreateVehicle(context.Background(), models.VehicleRequest{
		RegistrationNumber: reg,
		Type:               "Ambulance",
	})
	require.NoError(t, err)
	return vehicle
}

func TestBookingWithoutAmbulanceWaits(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, scoring.TwoFactor)

	booking, err := env.dispatch.CreateAmbulanceBooking(ctx, bookingReq, staff)
	require.NoError(t, err)
	assert.Equal(t, models.WaitingBooking, booking.Status)
	assert.Nil(t, booking.VehicleID)
	assert.Equal(t, staff.ID, booking.RequestedBy)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.BookingEvents.WithLabelValues("waiting")))

	_, err = env.dispatch.RetryDispatch(ctx, booking.ID)
	require.NoError(t, err)

	vehicle := env.addAmbulance(t, "KBZ 101A")
	dispatched, err := env.dispatch.RetryDispatch(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignedBooking, dispatched.Status)
	require.NotNil(t, dispatched.VehicleID)
	assert.Equal(t, vehicle.ID, *dispatched.VehicleID)

	_, err = env.dispatch.RetryDispatch(ctx, booking.ID)
	assertStatus(t, err, http.StatusConflict)
	_, err = env.dispatch.RetryDispatch(ctx, uuid.NewString())
	assertStatus(t, err, http.StatusNotFound)
}

func TestBookingValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, scoring.TwoFactor)

	req := bookingReq
	req.Phone = "071234"
	_, err := env.dispatch.CreateAmbulanceBooking(ctx, req, staff)
	assertStatus(t, err, http.StatusBadRequest)

	req = bookingReq
	req.PickupAddress = ""
	_, err = env.dispatch.CreateAmbulanceBooking(ctx, req, staff)
	assertStatus(t, err, http.StatusBadRequest)
}

func TestBookingLifecycleReleasesVehicle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, scoring.TwoFactor)
	vehicle := env.addAmbulance(t, "KBZ 101A")

	booking, err := env.dispatch.CreateAmbulanceBooking(ctx, bookingReq, staff)
	require.NoError(t, err)
	assert.Equal(t, models.AssignedBooking, booking.Status)
	require.NotNil(t, booking.AssignedAt)

	inUse, err := env.vehicles.GetVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InUseVehicle, inUse.Status)

	_, err = env.dispatch.UpdateBookingStatus(ctx, booking.ID, models.BookingStatusRequest{Status: models.ArrivedBooking})
	assertStatus(t, err, http.StatusConflict)
	_, err = env.dispatch.UpdateBookingStatus(ctx, booking.ID, models.BookingStatusRequest{Status: models.AssignedBooking})
	assertStatus(t, err, http.StatusBadRequest)
	_, err = env.dispatch.UpdateBookingStatus(ctx, booking.ID, models.BookingStatusRequest{Status: "Lost"})
	assertStatus(t, err, http.StatusBadRequest)

	for _, status := range []models.BookingStatus{models.InTransitBooking, models.ArrivedBooking, models.CompletedBooking} {
		booking, err = env.dispatch.UpdateBookingStatus(ctx, booking.ID, models.BookingStatusRequest{Status: status})
		require.NoError(t, err)
		assert.Equal(t, status, booking.Status)
	}
	require.NotNil(t, booking.CompletedAt)

	released, err := env.vehicles.GetVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AvailableVehicle, released.Status)

	_, err = env.dispatch.CancelBooking(ctx, booking.ID, models.CancelBookingRequest{}, dispatcher)
	assertStatus(t, err, http.StatusConflict)
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, scoring.TwoFactor)
	vehicle := env.addAmbulance(t, "KBZ 101A")

	booking, err := env.dispatch.CreateAmbulanceBooking(ctx, bookingReq, staff)
	require.NoError(t, err)

	_, err = env.dispatch.CancelBooking(ctx, booking.ID, models.CancelBookingRequest{}, otherStaff)
	assertStatus(t, err, http.StatusForbidden)

	cancelled, err := env.dispatch.CancelBooking(ctx, booking.ID, models.CancelBookingRequest{Reason: "patient transported privately"}, staff)
	require.NoError(t, err)
	assert.Equal(t, models.CancelledBooking, cancelled.Status)
	assert.Equal(t, "patient transported privately", cancelled.CancelReason)

	released, err := env.vehicles.GetVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AvailableVehicle, released.Status)

	reassigned, err := env.dispatch.CreateAmbulanceBooking(ctx, bookingReq, staff)
	require.NoError(t, err)
	second, err := env.dispatch.CreateAmbulanceBooking(ctx, bookingReq, otherStaff)
	require.NoError(t, err)
	assert.Equal(t, models.AssignedBooking, reassigned.Status)
	assert.Equal(t, models.WaitingBooking, second.Status)

	cancelled, err = env.dispatch.CancelBooking(ctx, second.ID, models.CancelBookingRequest{}, dispatcher)
	require.NoError(t, err)
	assert.Contains(t, cancelled.CancelReason, dispatcher.Name)
}

func TestBookingAccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, scoring.TwoFactor)

	mine, err := env.dispatch.CreateAmbulanceBooking(ctx, bookingReq, staff)
	require.NoError(t, err)
	_, err = env.dispatch.CreateAmbulanceBooking(ctx, bookingReq, otherStaff)
	require.NoError(t, err)

	_, err = env.dispatch.GetBooking(ctx, mine.ID, staff)
	require.NoError(t, err)
	_, err = env.dispatch.GetBooking(ctx, mine.ID, dispatcher)
	require.NoError(t, err)
	_, err = env.dispatch.GetBooking(ctx, mine.ID, otherStaff)
	assertStatus(t, err, http.StatusForbidden)
	_, err = env.dispatch.GetBooking(ctx, uuid.NewString(), dispatcher)
	assertStatus(t, err, http.StatusNotFound)

	own, err := env.dispatch.GetUserBookings(ctx, staff, 5, 0)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)

	waiting, err := env.dispatch.GetBookings(ctx, models.BookingFilter{Statuses: []string{"Waiting"}, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, waiting, 2)

	_, err = env.dispatch.GetBookings(ctx, models.BookingFilter{Statuses: []string{"Lost"}})
	assertStatus(t, err, http.StatusBadRequest)
}

func TestConcurrentBookingsClaimDistinctVehicles(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, scoring.TwoFactor)
	env.addAmbulance(t, "KBZ 101A")
	env.addAmbulance(t, "KBZ 102A")

	const callers = 8
	results := make([]*models.Booking, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			booking, err := env.dispatch.CreateAmbulanceBooking(ctx, bookingReq, staff)
			assert.NoError(t, err)
			results[i] = booking
		}(i)
	}
	wg.Wait()

	claimed := map[string]int{}
	waiting := 0
	for _, booking := range results {
		require.NotNil(t, booking)
		if booking.VehicleID == nil {
			assert.Equal(t, models.WaitingBooking, booking.Status)
			waiting++
			continue
		}
		claimed[*booking.VehicleID]++
	}
	assert.Len(t, claimed, 2)
	for _, count := range claimed {
		assert.Equal(t, 1, count)
	}
	assert.Equal(t, callers-2, waiting)
}
