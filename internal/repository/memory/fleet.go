package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/repository"
)

// GetVehicles возвращает список транспорта.
func (s *Store) GetVehicles(_ context.Context, filter models.VehicleFilter) ([]models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vehicles := []models.Vehicle{}
	for _, v := range s.vehicles {
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, string(v.Status)) {
			continue
		}
		if filter.Type != "" && !strings.EqualFold(v.Type, filter.Type) {
			continue
		}
		vehicles = append(vehicles, *v)
	}
	sort.Slice(vehicles, func(i, j int) bool {
		return vehicles[i].RegistrationNumber < vehicles[j].RegistrationNumber
	})
	return page(vehicles, filter.Limit, filter.Offset), nil
}

// GetVehicleById возвращает транспорт по идентификатору.
func (s *Store) GetVehicleById(_ context.Context, vehicleId string) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[vehicleId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *v
	return &c, nil
}

// CreateVehicle добавляет транспорт.
func (s *Store) CreateVehicle(_ context.Context, vehicle *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.vehicles {
		if v.ID == vehicle.ID || v.RegistrationNumber == vehicle.RegistrationNumber {
			return repository.ErrDuplicate
		}
	}
	c := *vehicle
	s.vehicles[vehicle.ID] = &c
	return nil
}

// UpdateVehicle меняет переданные поля транспорта.
func (s *Store) UpdateVehicle(_ context.Context, vehicleId string, update models.VehicleUpdate) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[vehicleId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if v.Status == models.InUseVehicle && update.Status != nil && *update.Status != models.InUseVehicle {
		return nil, repository.ErrConflict
	}
	if update.RegistrationNumber != nil {
		for id, other := range s.vehicles {
			if id != vehicleId && other.RegistrationNumber == *update.RegistrationNumber {
				return nil, repository.ErrDuplicate
			}
		}
	}

	update.Apply(v)
	v.UpdatedAt = s.Now().UTC()
	c := *v
	return &c, nil
}

// DeleteVehicle удаляет транспорт, если он не занят на вызове.
func (s *Store) DeleteVehicle(_ context.Context, vehicleId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[vehicleId]
	if !ok {
		return repository.ErrNotFound
	}
	if v.Status == models.InUseVehicle {
		return repository.ErrConflict
	}
	delete(s.vehicles, vehicleId)
	return nil
}

// assignVehicle занимает свободную скорую с самым давним временем изменения.
func (s *Store) assignVehicle(b *models.Booking, at time.Time) {
	var chosen *models.Vehicle
	for _, v := range s.vehicles {
		if v.Status != models.AvailableVehicle || !strings.EqualFold(v.Type, models.AmbulanceType) {
			continue
		}
		if chosen == nil || v.UpdatedAt.Before(chosen.UpdatedAt) ||
			(v.UpdatedAt.Equal(chosen.UpdatedAt) && v.ID < chosen.ID) {
			chosen = v
		}
	}

	b.UpdatedAt = at
	if chosen == nil {
		b.Status = models.WaitingBooking
		return
	}

	chosen.Status = models.InUseVehicle
	chosen.UpdatedAt = at
	vehicleId := chosen.ID
	assignedAt := at
	b.Status = models.AssignedBooking
	b.VehicleID = &vehicleId
	b.AssignedAt = &assignedAt
}

// CreateBooking сохраняет вызов и сразу пытается назначить на него машину.
func (s *Store) CreateBooking(_ context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.ID]; ok {
		return repository.ErrDuplicate
	}
	booking.Status = models.PendingBooking
	s.assignVehicle(booking, booking.CreatedAt)

	c := cloneBooking(booking)
	s.bookings[booking.ID] = &c
	return nil
}

// DispatchBooking повторяет назначение машины для ожидающего вызова.
func (s *Store) DispatchBooking(_ context.Context, bookingId string, at time.Time) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[bookingId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !b.Status.Dispatchable() {
		return nil, repository.ErrConflict
	}
	s.assignVehicle(b, at)
	c := cloneBooking(b)
	return &c, nil
}

// GetBookingById возвращает вызов по идентификатору.
func (s *Store) GetBookingById(_ context.Context, bookingId string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[bookingId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneBooking(b)
	return &c, nil
}

// GetBookings возвращает список вызовов.
func (s *Store) GetBookings(_ context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookings := []models.Booking{}
	for _, b := range s.bookings {
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, string(b.Status)) {
			continue
		}
		if filter.RequestedBy != "" && b.RequestedBy != filter.RequestedBy {
			continue
		}
		bookings = append(bookings, cloneBooking(b))
	}
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
		}
		return bookings[i].ID < bookings[j].ID
	})
	return page(bookings, filter.Limit, filter.Offset), nil
}

// UpdateBookingStatus меняет статус вызова и освобождает машину при завершении или отмене.
func (s *Store) UpdateBookingStatus(_ context.Context, bookingId string, from, to models.BookingStatus, reason string, at time.Time) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[bookingId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != from {
		return nil, repository.ErrConflict
	}

	b.Status = to
	b.UpdatedAt = at
	if reason != "" {
		b.CancelReason = reason
	}
	if to.IsTerminal() {
		completedAt := at
		b.CompletedAt = &completedAt
		if b.VehicleID != nil {
			if v, ok := s.vehicles[*b.VehicleID]; ok && v.Status == models.InUseVehicle {
				v.Status = models.AvailableVehicle
				v.UpdatedAt = at
			}
		}
	}
	c := cloneBooking(b)
	return &c, nil
}
