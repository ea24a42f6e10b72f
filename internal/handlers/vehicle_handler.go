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

// VehicleHandler обрабатывает запросы к автопарку.
type VehicleHandler struct {
	Service *services.VehicleService
	Logger  *zap.Logger
	Timeout time.Duration
}

// NewVehicleHandler создаёт новый экземпляр VehicleHandler.
func NewVehicleHandler(service *services.VehicleService, logger *zap.Logger, timeout time.Duration) *VehicleHandler {
	return &VehicleHandler{Service: service, Logger: logger, Timeout: timeout}
}

func (h *VehicleHandler) GetVehicles(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	filter := models.VehicleFilter{
		Statuses: utils.SplitQueryValues(r.URL.Query()["status"]),
		Type:     r.URL.Query().Get("type"),
		Limit:    limit,
		Offset:   offset,
	}
	vehicles, err := h.Service.GetVehicles(ctx, filter)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to get vehicles")
		return
	}
	utils.SendJSON(w, http.StatusOK, "", vehicles)
}

func (h *VehicleHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	vehicle, err := h.Service.GetVehicle(ctx, r.PathValue("vehicleId"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to get vehicle")
		return
	}
	utils.SendJSON(w, http.StatusOK, "", vehicle)
}

func (h *VehicleHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.VehicleRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	vehicle, err := h.Service.CreateVehicle(ctx, req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to create vehicle")
		return
	}
	utils.SendJSON(w, http.StatusCreated, "vehicle created", vehicle)
}

func (h *VehicleHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var update models.VehicleUpdate
	if err := decodeJSON(w, r, &update, true); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	vehicle, err := h.Service.UpdateVehicle(ctx, r.PathValue("vehicleId"), update)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to update vehicle")
		return
	}
	utils.SendJSON(w, http.StatusOK, "vehicle updated", vehicle)
}

func (h *VehicleHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if err := h.Service.DeleteVehicle(ctx, r.PathValue("vehicleId")); err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to delete vehicle")
		return
	}
	utils.SendJSON(w, http.StatusOK, "vehicle deleted", nil)
}
