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

// TenderHandler - структура для обработки HTTP-запросов.
type TenderHandler struct {
	Service *services.TenderService
	Logger  *zap.Logger
	Timeout time.Duration
}

// NewTenderHandler создаёт новый экземпляр TenderHandler.
func NewTenderHandler(service *services.TenderService, logger *zap.Logger, timeout time.Duration) *TenderHandler {
	return &TenderHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// GetTenders обрабатывает запросы для получения списка тендеров.
func (h *TenderHandler) GetTenders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := models.TenderFilter{
		Statuses:   utils.SplitQueryValues(query["status"]),
		Categories: utils.SplitQueryValues(query["category"]),
		Search:     query.Get("search"),
		Limit:      limit,
		Offset:     offset,
	}

	tenders, err := h.Service.FetchTenders(ctx, filter)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to fetch tenders")
		return
	}
	utils.SendJSON(w, http.StatusOK, "", tenders)
}

// GetTender обрабатывает запросы для получения тендера.
func (h *TenderHandler) GetTender(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	tender, err := h.Service.GetTender(ctx, r.PathValue("tenderId"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to get tender")
		return
	}
	utils.SendJSON(w, http.StatusOK, "", tender)
}

// CreateTender обрабатывает запросы для создания тендера.
func (h *TenderHandler) CreateTender(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var tenderReq models.TenderRequest
	if err := decodeJSON(w, r, &tenderReq, false); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	tender, err := h.Service.CreateTender(ctx, tenderReq, user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to create tender")
		return
	}
	utils.SendJSON(w, http.StatusCreated, "tender created", tender)
}

// UpdateTender обрабатывает запросы для редактирования тендера.
func (h *TenderHandler) UpdateTender(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var update models.TenderUpdate
	if err := decodeJSON(w, r, &update, true); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	tender, err := h.Service.UpdateTender(ctx, r.PathValue("tenderId"), update, user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to update tender")
		return
	}
	utils.SendJSON(w, http.StatusOK, "tender updated", tender)
}

// UpdateTenderStatus обрабатывает запросы для изменения статуса тендера.
func (h *TenderHandler) UpdateTenderStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	tender, err := h.Service.UpdateTenderStatus(ctx, r.PathValue("tenderId"), r.URL.Query().Get("status"), user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to update tender status")
		return
	}
	utils.SendJSON(w, http.StatusOK, "tender status updated", tender)
}

// CloseTender обрабатывает запросы для закрытия тендера.
func (h *TenderHandler) CloseTender(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	tender, err := h.Service.CloseTender(ctx, r.PathValue("tenderId"), user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to close tender")
		return
	}
	utils.SendJSON(w, http.StatusOK, "tender closed", tender)
}

// ExtendDeadline обрабатывает запросы для продления срока подачи предложений.
func (h *TenderHandler) ExtendDeadline(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.ExtendDeadlineRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	tender, err := h.Service.ExtendDeadline(ctx, r.PathValue("tenderId"), req, user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to extend deadline")
		return
	}
	utils.SendJSON(w, http.StatusOK, "deadline extended", tender)
}

// AwardTender обрабатывает запросы для выбора победителя.
func (h *TenderHandler) AwardTender(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.AwardRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	tender, err := h.Service.AwardTender(ctx, r.PathValue("tenderId"), req, user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to award tender")
		return
	}
	utils.SendJSON(w, http.StatusOK, "tender awarded", tender)
}

// DeleteTender обрабатывает запросы для удаления тендера.
func (h *TenderHandler) DeleteTender(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if err := h.Service.DeleteTender(ctx, r.PathValue("tenderId")); err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to delete tender")
		return
	}
	utils.SendJSON(w, http.StatusOK, "tender deleted", nil)
}

// BulkDeleteTenders обрабатывает запросы для удаления нескольких тендеров.
func (h *TenderHandler) BulkDeleteTenders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.BulkDeleteRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	deleted, err := h.Service.BulkDeleteTenders(ctx, req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to delete tenders")
		return
	}
	utils.SendJSON(w, http.StatusOK, "tenders deleted", map[string]int64{"deleted": deleted})
}
