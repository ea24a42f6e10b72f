package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/senyabanana/hospital-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const bookingColumns = `id, patient_name, phone, pickup_address, destination, emergency_type, notes, status,
	vehicle_id, requested_by, cancel_reason, assigned_at, completed_at, created_at, updated_at`

// PostgresBookingRepository - реализация BookingRepository для базы данных.
type PostgresBookingRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresBookingRepository создаёт новый экземпляр PostgresBookingRepository.
func NewPostgresBookingRepository(db *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{DB: db}
}

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var booking models.Booking
	err := row.Scan(
		&booking.ID,
		&booking.PatientName,
		&booking.Phone,
		&booking.PickupAddress,
		&booking.Destination,
		&booking.EmergencyType,
		&booking.Notes,
		&booking.Status,
		&booking.VehicleID,
		&booking.RequestedBy,
		&booking.CancelReason,
		&booking.AssignedAt,
		&booking.CompletedAt,
		&booking.CreatedAt,
		&booking.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// assignVehicle занимает свободную скорую для вызова. Строки, заблокированные
// параллельными транзакциями, пропускаются, поэтому одну машину не получат два вызова.
func assignVehicle(ctx context.Context, tx pgx.Tx, booking *models.Booking, at time.Time) error {
	var vehicleId string
	err := tx.QueryRow(ctx, `
		SELECT id FROM vehicle
		WHERE status = $1 AND type ILIKE $2
		ORDER BY updated_at, id
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, models.AvailableVehicle, models.AmbulanceType).Scan(&vehicleId)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to claim vehicle: %w", err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		_, err = tx.Exec(ctx, `UPDATE booking SET status = $1, updated_at = $2 WHERE id = $3`,
			models.WaitingBooking, at, booking.ID)
		if err != nil {
			return fmt.Errorf("failed to queue booking: %w", err)
		}
		booking.Status = models.WaitingBooking
		booking.UpdatedAt = at
		return nil
	}

	if _, err := tx.Exec(ctx, `UPDATE vehicle SET status = $1, updated_at = $2 WHERE id = $3`,
		models.InUseVehicle, at, vehicleId); err != nil {
		return fmt.Errorf("failed to reserve vehicle: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE booking SET status = $1, vehicle_id = $2, assigned_at = $3, updated_at = $3
		WHERE id = $4`, models.AssignedBooking, vehicleId, at, booking.ID); err != nil {
		return fmt.Errorf("failed to assign booking: %w", err)
	}
	booking.Status = models.AssignedBooking
	booking.VehicleID = &vehicleId
	booking.AssignedAt = &at
	booking.UpdatedAt = at
	return nil
}

// CreateBooking сохраняет вызов и сразу пытается назначить на него машину.
func (r *PostgresBookingRepository) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		booking.Status = models.PendingBooking
		_, err := tx.Exec(ctx, `
			INSERT INTO booking (id, patient_name, phone, pickup_address, destination, emergency_type, notes, status,
			                     requested_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			booking.ID,
			booking.PatientName,
			booking.Phone,
			booking.PickupAddress,
			booking.Destination,
			booking.EmergencyType,
			booking.Notes,
			booking.Status,
			booking.RequestedBy,
			booking.CreatedAt,
			booking.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}
		return assignVehicle(ctx, tx, booking, booking.CreatedAt)
	})
}

// DispatchBooking повторяет назначение машины для ожидающего вызова.
func (r *PostgresBookingRepository) DispatchBooking(ctx context.Context, bookingId string, at time.Time) (*models.Booking, error) {
	var booking *models.Booking
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		var err error
		booking, err = scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM booking WHERE id = $1 FOR UPDATE`, bookingId))
		if err != nil {
			return err
		}
		if !booking.Status.Dispatchable() {
			return ErrConflict
		}
		return assignVehicle(ctx, tx, booking, at)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// GetBookingById возвращает вызов по идентификатору.
func (r *PostgresBookingRepository) GetBookingById(ctx context.Context, bookingId string) (*models.Booking, error) {
	return scanBooking(r.DB.QueryRow(ctx, `SELECT `+bookingColumns+` FROM booking WHERE id = $1`, bookingId))
}

// GetBookings возвращает список вызовов.
func (r *PostgresBookingRepository) GetBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM booking`
	var filters []string
	var args []interface{}
	argIndex := 1

	if len(filter.Statuses) > 0 {
		filters = append(filters, fmt.Sprintf("status = ANY($%d)", argIndex))
		args = append(args, pq.Array(filter.Statuses))
		argIndex++
	}

	if filter.RequestedBy != "" {
		filters = append(filters, fmt.Sprintf("requested_by = $%d", argIndex))
		args = append(args, filter.RequestedBy)
		argIndex++
	}

	if len(filters) > 0 {
		query += " WHERE " + strings.Join(filters, " AND ")
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}
	return bookings, rows.Err()
}

// UpdateBookingStatus меняет статус вызова, если он всё ещё равен from.
// При завершении или отмене машина возвращается в статус Available.
func (r *PostgresBookingRepository) UpdateBookingStatus(ctx context.Context, bookingId string, from, to models.BookingStatus, reason string, at time.Time) (*models.Booking, error) {
	var updated *models.Booking
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		var completedAt *time.Time
		if to.IsTerminal() {
			completedAt = &at
		}

		var err error
		updated, err = scanBooking(tx.QueryRow(ctx, `
			UPDATE booking
			SET status = $1, updated_at = $2, completed_at = COALESCE($3, completed_at),
			    cancel_reason = CASE WHEN $4 = '' THEN cancel_reason ELSE $4 END
			WHERE id = $5 AND status = $6
			RETURNING `+bookingColumns,
			to, at, completedAt, reason, bookingId, from))
		if errors.Is(err, ErrNotFound) {
			return notFoundOrConflict(ctx, tx, "booking", bookingId)
		}
		if err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}

		if to.IsTerminal() && updated.VehicleID != nil {
			if _, err := tx.Exec(ctx, `UPDATE vehicle SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
				models.AvailableVehicle, at, *updated.VehicleID, models.InUseVehicle); err != nil {
				return fmt.Errorf("failed to release vehicle: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
