package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/services"
	"github.com/senyabanana/hospital-service/internal/utils"

	"go.uber.org/zap"
)

// BookingHandler обрабатывает вызовы скорой помощи.
type BookingHandler struct {
	Service *services.DispatchService
	Logger  *zap.Logger
	Timeout time.Duration
}

// NewBookingHandler создаёт новый экземпляр BookingHandler.
func NewBookingHandler(service *services.DispatchService, logger *zap.Logger, timeout time.Duration) *BookingHandler {
	return &BookingHandler{Service: service, Logger: logger, Timeout: timeout}
}

// CreateAmbulanceBooking обрабатывает запросы на вызов скорой помощи.
func (h *BookingHandler) CreateAmbulanceBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.BookingRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	booking, err := h.Service.CreateAmbulanceBooking(ctx, req, user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to create booking")
		return
	}

	message := "ambulance assigned"
	if booking.Status == models.WaitingBooking {
		message = "no ambulance available, booking is waiting for dispatch"
	}
	utils.SendJSON(w, http.StatusCreated, message, booking)
}

// RetryDispatch обрабатывает запросы на повторное назначение машины.
func (h *BookingHandler) RetryDispatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	booking, err := h.Service.RetryDispatch(ctx, r.PathValue("bookingId"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to dispatch booking")
		return
	}
	utils.SendJSON(w, http.StatusOK, "", booking)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	booking, err := h.Service.GetBooking(ctx, r.PathValue("bookingId"), user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to get booking")
		return
	}
	utils.SendJSON(w, http.StatusOK, "", booking)
}

func (h *BookingHandler) GetBookings(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	filter := models.BookingFilter{
		Statuses:    utils.SplitQueryValues(r.URL.Query()["status"]),
		RequestedBy: r.URL.Query().Get("requestedBy"),
		Limit:       limit,
		Offset:      offset,
	}
	bookings, err := h.Service.GetBookings(ctx, filter)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to get bookings")
		return
	}
	utils.SendJSON(w, http.StatusOK, "", bookings)
}

func (h *BookingHandler) GetUserBookings(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bookings, err := h.Service.GetUserBookings(ctx, user, limit, offset)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to get bookings")
		return
	}
	utils.SendJSON(w, http.StatusOK, "", bookings)
}

// UpdateBookingStatus обрабатывает запросы на смену этапа выезда.
func (h *BookingHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.BookingStatusRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	booking, err := h.Service.UpdateBookingStatus(ctx, r.PathValue("bookingId"), req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to update booking status")
		return
	}
	utils.SendJSON(w, http.StatusOK, "booking status updated", booking)
}

// CancelBooking обрабатывает запросы на отмену вызова.
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.CancelBookingRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req, true); err != nil {
			writeServiceError(w, r, h.Logger, err, "invalid request body")
			return
		}
	}

	booking, err := h.Service.CancelBooking(ctx, r.PathValue("bookingId"), req, user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to cancel booking")
		return
	}
	utils.SendJSON(w, http.StatusOK, "booking cancelled", booking)
}
