package services

import (
	"context"
	"fmt"
	"time"

	"github.com/senyabanana/hospital-service/internal/metrics"
	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/repository"
	"github.com/senyabanana/hospital-service/internal/utils"

	"github.com/google/uuid"
)

// bookingStatusTransitions - ручные переходы статуса вызова. Назначение машины выполняет только диспетчеризация.
var bookingStatusTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.PendingBooking:   {models.CancelledBooking},
	models.WaitingBooking:   {models.CancelledBooking},
	models.AssignedBooking:  {models.InTransitBooking, models.CancelledBooking},
	models.InTransitBooking: {models.ArrivedBooking, models.CancelledBooking},
	models.ArrivedBooking:   {models.CompletedBooking, models.CancelledBooking},
}

var knownBookingStatuses = map[models.BookingStatus]bool{
	models.PendingBooking:   true,
	models.AssignedBooking:  true,
	models.WaitingBooking:   true,
	models.InTransitBooking: true,
	models.ArrivedBooking:   true,
	models.CompletedBooking: true,
	models.CancelledBooking: true,
}

// DispatchService обслуживает вызовы скорой помощи.
type DispatchService struct {
	Repo    repository.BookingRepository
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// NewDispatchService создает новый экземпляр DispatchService.
func NewDispatchService(repo repository.BookingRepository, m *metrics.Metrics) *DispatchService {
	return &DispatchService{Repo: repo, Metrics: m, Now: time.Now}
}

func (s *DispatchService) now() time.Time {
	return s.Now().UTC()
}

var bookingMessages = repoMessages{notFound: "booking not found", description: "get booking"}

func (s *DispatchService) recordAssignment(b *models.Booking) {
	if b.Status == models.AssignedBooking {
		s.Metrics.BookingEvent("assigned")
	} else {
		s.Metrics.BookingEvent("waiting")
	}
}

// CreateAmbulanceBooking регистрирует вызов и назначает на него свободную скорую.
func (s *DispatchService) CreateAmbulanceBooking(ctx context.Context, req models.BookingRequest, user models.User) (*models.Booking, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	now := s.now()
	booking := models.Booking{
		ID:            uuid.New().String(),
		PatientName:   req.PatientName,
		Phone:         req.Phone,
		PickupAddress: req.PickupAddress,
		Destination:   req.Destination,
		EmergencyType: req.EmergencyType,
		Notes:         req.Notes,
		Status:        models.PendingBooking,
		RequestedBy:   user.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.Repo.CreateBooking(ctx, &booking); err != nil {
		return nil, mapRepoError(err, repoMessages{description: "create booking"})
	}
	s.Metrics.BookingEvent("created")
	s.recordAssignment(&booking)
	return &booking, nil
}

// RetryDispatch повторно ищет машину для ожидающего вызова.
func (s *DispatchService) RetryDispatch(ctx context.Context, bookingId string) (*models.Booking, error) {
	if err := validateID(bookingId, "booking"); err != nil {
		return nil, err
	}
	booking, err := s.Repo.DispatchBooking(ctx, bookingId, s.now())
	if err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "booking not found",
			conflict:    "only pending or waiting bookings can be dispatched",
			description: "dispatch booking",
		})
	}
	s.recordAssignment(booking)
	return booking, nil
}

// GetBooking получает вызов для диспетчера или автора вызова.
func (s *DispatchService) GetBooking(ctx context.Context, bookingId string, user models.User) (*models.Booking, error) {
	if err := validateID(bookingId, "booking"); err != nil {
		return nil, err
	}
	booking, err := s.Repo.GetBookingById(ctx, bookingId)
	if err != nil {
		return nil, mapRepoError(err, bookingMessages)
	}
	if !user.HasRole(models.DispatcherRole) && booking.RequestedBy != user.ID {
		return nil, forbidden("access to this booking is not allowed")
	}
	return booking, nil
}

// GetBookings получает список вызовов.
func (s *DispatchService) GetBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	for _, status := range filter.Statuses {
		if !knownBookingStatuses[models.BookingStatus(status)] {
			return nil, badRequest("unsupported booking status: %s", status)
		}
	}
	bookings, err := s.Repo.GetBookings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get bookings: %w", err)
	}
	return bookings, nil
}

// GetUserBookings получает вызовы, созданные пользователем.
func (s *DispatchService) GetUserBookings(ctx context.Context, user models.User, limit, offset int) ([]models.Booking, error) {
	return s.GetBookings(ctx, models.BookingFilter{RequestedBy: user.ID, Limit: limit, Offset: offset})
}

func (s *DispatchService) changeStatus(ctx context.Context, booking *models.Booking, to models.BookingStatus, reason string) (*models.Booking, error) {
	if !utils.CanTransition(bookingStatusTransitions, booking.Status, to) {
		return nil, conflict("cannot change booking status from %s to %s", booking.Status, to)
	}
	updated, err := s.Repo.UpdateBookingStatus(ctx, booking.ID, booking.Status, to, reason, s.now())
	if err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "booking not found",
			conflict:    "booking status was changed concurrently, retry the request",
			description: "update booking status",
		})
	}
	s.Metrics.BookingEvent(string(to))
	return updated, nil
}

// UpdateBookingStatus продвигает вызов по этапам выезда.
func (s *DispatchService) UpdateBookingStatus(ctx context.Context, bookingId string, req models.BookingStatusRequest) (*models.Booking, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if !knownBookingStatuses[req.Status] {
		return nil, badRequest("unsupported booking status: %s", req.Status)
	}
	if req.Status == models.AssignedBooking {
		return nil, badRequest("vehicles are assigned through the dispatch endpoint")
	}
	if err := validateID(bookingId, "booking"); err != nil {
		return nil, err
	}

	booking, err := s.Repo.GetBookingById(ctx, bookingId)
	if err != nil {
		return nil, mapRepoError(err, bookingMessages)
	}
	return s.changeStatus(ctx, booking, req.Status, "")
}

// CancelBooking отменяет вызов. Отменить может диспетчер или автор вызова.
func (s *DispatchService) CancelBooking(ctx context.Context, bookingId string, req models.CancelBookingRequest, user models.User) (*models.Booking, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	booking, err := s.GetBooking(ctx, bookingId, user)
	if err != nil {
		return nil, err
	}
	if booking.Status.IsTerminal() {
		return nil, conflict("booking is already %s", booking.Status)
	}

	reason := req.Reason
	if reason == "" {
		reason = "cancelled by " + user.DisplayName()
	}
	return s.changeStatus(ctx, booking, models.CancelledBooking, reason)
}
