package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/repository"
	"github.com/senyabanana/hospital-service/internal/utils"

	"github.com/google/uuid"
)

var knownVehicleStatuses = map[models.VehicleStatus]bool{
	models.AvailableVehicle:    true,
	models.InUseVehicle:        true,
	models.MaintenanceVehicle:  true,
	models.OutOfServiceVehicle: true,
}

type VehicleService struct {
	Repo repository.VehicleRepository
	Now  func() time.Time
}

// NewVehicleService создает новый экземпляр VehicleService.
func NewVehicleService(repo repository.VehicleRepository) *VehicleService {
	return &VehicleService{Repo: repo, Now: time.Now}
}

// GetVehicles получает список транспорта.
func (s *VehicleService) GetVehicles(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, error) {
	for _, status := range filter.Statuses {
		if !knownVehicleStatuses[models.VehicleStatus(status)] {
			return nil, badRequest("unsupported vehicle status: %s", status)
		}
	}
	vehicles, err := s.Repo.GetVehicles(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get vehicles: %w", err)
	}
	return vehicles, nil
}

// GetVehicle получает транспорт по идентификатору.
func (s *VehicleService) GetVehicle(ctx context.Context, vehicleId string) (*models.Vehicle, error) {
	if err := validateID(vehicleId, "vehicle"); err != nil {
		return nil, err
	}
	vehicle, err := s.Repo.GetVehicleById(ctx, vehicleId)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{notFound: "vehicle not found", description: "get vehicle"})
	}
	return vehicle, nil
}

// CreateVehicle добавляет транспорт в парк.
func (s *VehicleService) CreateVehicle(ctx context.Context, req models.VehicleRequest) (*models.Vehicle, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.AvailableVehicle
	}
	now := s.Now().UTC()
	vehicle := models.Vehicle{
		ID:                 uuid.New().String(),
		RegistrationNumber: strings.ToUpper(strings.TrimSpace(req.RegistrationNumber)),
		Type:               req.Type,
		Model:              req.Model,
		DriverName:         req.DriverName,
		DriverPhone:        req.DriverPhone,
		Status:             status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.Repo.CreateVehicle(ctx, &vehicle); err != nil {
		return nil, mapRepoError(err, repoMessages{
			duplicate:   fmt.Sprintf("vehicle %s already exists", vehicle.RegistrationNumber),
			description: "create vehicle",
		})
	}
	return &vehicle, nil
}

// UpdateVehicle меняет переданные поля транспорта.
func (s *VehicleService) UpdateVehicle(ctx context.Context, vehicleId string, update models.VehicleUpdate) (*models.Vehicle, error) {
	if err := validateID(vehicleId, "vehicle"); err != nil {
		return nil, err
	}
	if update.Empty() {
		return nil, badRequest("no valid fields to update")
	}
	if err := utils.ValidateStruct(update); err != nil {
		return nil, err
	}
	if update.RegistrationNumber != nil {
		registration := strings.ToUpper(strings.TrimSpace(*update.RegistrationNumber))
		update.RegistrationNumber = &registration
	}

	vehicle, err := s.Repo.UpdateVehicle(ctx, vehicleId, update)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "vehicle not found",
			conflict:    "vehicle is on a call, its status cannot be changed",
			duplicate:   "registration number is already used by another vehicle",
			description: "update vehicle",
		})
	}
	return vehicle, nil
}

// DeleteVehicle удаляет транспорт из парка.
func (s *VehicleService) DeleteVehicle(ctx context.Context, vehicleId string) error {
	if err := validateID(vehicleId, "vehicle"); err != nil {
		return err
	}
	err := s.Repo.DeleteVehicle(ctx, vehicleId)
	return mapRepoError(err, repoMessages{
		notFound:    "vehicle not found",
		conflict:    "vehicle is on a call and cannot be deleted",
		description: "delete vehicle",
	})
}
