package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/senyabanana/hospital-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const vehicleColumns = `id, registration_number, type, model, driver_name, driver_phone, status, created_at, updated_at`

// PostgresVehicleRepository - реализация VehicleRepository для базы данных.
type PostgresVehicleRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresVehicleRepository создаёт новый экземпляр PostgresVehicleRepository.
func NewPostgresVehicleRepository(db *pgxpool.Pool) *PostgresVehicleRepository {
	return &PostgresVehicleRepository{DB: db}
}

func scanVehicle(row pgx.Row) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := row.Scan(
		&vehicle.ID,
		&vehicle.RegistrationNumber,
		&vehicle.Type,
		&vehicle.Model,
		&vehicle.DriverName,
		&vehicle.DriverPhone,
		&vehicle.Status,
		&vehicle.CreatedAt,
		&vehicle.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// GetVehicles возвращает список транспорта.
func (r *PostgresVehicleRepository) GetVehicles(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicle`
	var filters []string
	var args []interface{}
	argIndex := 1

	if len(filter.Statuses) > 0 {
		filters = append(filters, fmt.Sprintf("status = ANY($%d)", argIndex))
		args = append(args, pq.Array(filter.Statuses))
		argIndex++
	}

	if filter.Type != "" {
		filters = append(filters, fmt.Sprintf("type ILIKE $%d", argIndex))
		args = append(args, filter.Type)
		argIndex++
	}

	if len(filters) > 0 {
		query += " WHERE " + strings.Join(filters, " AND ")
	}

	query += fmt.Sprintf(" ORDER BY registration_number LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vehicles := []models.Vehicle{}
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *vehicle)
	}
	return vehicles, rows.Err()
}

// GetVehicleById возвращает транспорт по идентификатору.
func (r *PostgresVehicleRepository) GetVehicleById(ctx context.Context, vehicleId string) (*models.Vehicle, error) {
	return scanVehicle(r.DB.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicle WHERE id = $1`, vehicleId))
}

// CreateVehicle добавляет транспорт.
func (r *PostgresVehicleRepository) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO vehicle (`+vehicleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		vehicle.ID,
		vehicle.RegistrationNumber,
		vehicle.Type,
		vehicle.Model,
		vehicle.DriverName,
		vehicle.DriverPhone,
		vehicle.Status,
		vehicle.CreatedAt,
		vehicle.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert vehicle: %w", err)
	}
	return nil
}

// UpdateVehicle меняет переданные поля транспорта. Статус занятой машины меняет только диспетчеризация.
func (r *PostgresVehicleRepository) UpdateVehicle(ctx context.Context, vehicleId string, update models.VehicleUpdate) (*models.Vehicle, error) {
	var updated *models.Vehicle
	err := pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		current, err := scanVehicle(tx.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicle WHERE id = $1 FOR UPDATE`, vehicleId))
		if err != nil {
			return err
		}
		if current.Status == models.InUseVehicle && update.Status != nil && *update.Status != models.InUseVehicle {
			return ErrConflict
		}

		update.Apply(current)
		updated, err = scanVehicle(tx.QueryRow(ctx, `
			UPDATE vehicle
			SET registration_number = $1, type = $2, model = $3, driver_name = $4, driver_phone = $5, status = $6, updated_at = now()
			WHERE id = $7
			RETURNING `+vehicleColumns,
			current.RegistrationNumber,
			current.Type,
			current.Model,
			current.DriverName,
			current.DriverPhone,
			current.Status,
			vehicleId))
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteVehicle удаляет транспорт, если он не занят на вызове.
func (r *PostgresVehicleRepository) DeleteVehicle(ctx context.Context, vehicleId string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM vehicle WHERE id = $1 AND status <> $2`, vehicleId, models.InUseVehicle)
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundOrConflict(ctx, r.DB, "vehicle", vehicleId)
	}
	return nil
}
