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

// BidHandler - структура для обработки HTTP-запросов.
type BidHandler struct {
	Service *services.BidService
	Logger  *zap.Logger
	Timeout time.Duration
}

// NewBidHandler создаёт новый экземпляр BidHandler.
func NewBidHandler(service *services.BidService, logger *zap.Logger, timeout time.Duration) *BidHandler {
	return &BidHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// CreateBid обрабатывает запросы для подачи предложения.
func (h *BidHandler) CreateBid(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var bidReq models.BidRequest
	if err := decodeJSON(w, r, &bidReq, false); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	bid, err := h.Service.CreateBid(ctx, bidReq, user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to create bid")
		return
	}
	utils.SendJSON(w, http.StatusCreated, "bid submitted", bid)
}

// GetUserBids обрабатывает запросы для получения предложений поставщика.
func (h *BidHandler) GetUserBids(w http.ResponseWriter, r *http.Request) {
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

	bids, err := h.Service.GetUserBids(ctx, user, limit, offset)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to get bids")
		return
	}
	utils.SendJSON(w, http.StatusOK, "", bids)
}

// GetBid обрабатывает запросы для получения предложения.
func (h *BidHandler) GetBid(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := h.Service.GetBid(ctx, r.PathValue("bidId"), user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to get bid")
		return
	}
	utils.SendJSON(w, http.StatusOK, "", bid)
}

// GetTenderBids обрабатывает запросы для получения предложений по тендеру.
func (h *BidHandler) GetTenderBids(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bids, err := h.Service.GetTenderBids(ctx, r.PathValue("tenderId"), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to get tender bids")
		return
	}
	utils.SendJSON(w, http.StatusOK, "", bids)
}

// UpdateBid обрабатывает запросы для редактирования предложения.
func (h *BidHandler) UpdateBid(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var update models.BidUpdate
	if err := decodeJSON(w, r, &update, true); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	bid, err := h.Service.UpdateBid(ctx, r.PathValue("bidId"), update, user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to update bid")
		return
	}
	utils.SendJSON(w, http.StatusOK, "bid updated", bid)
}

// WithdrawBid обрабатывает запросы для снятия предложения.
func (h *BidHandler) WithdrawBid(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := h.Service.WithdrawBid(ctx, r.PathValue("bidId"), user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to withdraw bid")
		return
	}
	utils.SendJSON(w, http.StatusOK, "bid withdrawn", bid)
}

// ScoreBid обрабатывает запросы для оценки предложения.
func (h *BidHandler) ScoreBid(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.ScoreRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	bid, err := h.Service.ScoreBid(ctx, r.PathValue("bidId"), req, user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to score bid")
		return
	}
	utils.SendJSON(w, http.StatusOK, "bid scored", bid)
}

// UpdateBidStatus обрабатывает запросы для изменения статуса предложения.
func (h *BidHandler) UpdateBidStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.BidStatusRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	bid, err := h.Service.UpdateBidStatus(ctx, r.PathValue("bidId"), req, user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to update bid status")
		return
	}
	utils.SendJSON(w, http.StatusOK, "bid status updated", bid)
}

// AddBidComment обрабатывает запросы для добавления комментария.
func (h *BidHandler) AddBidComment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.BidCommentRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeServiceError(w, r, h.Logger, err, "invalid request body")
		return
	}

	comment, err := h.Service.AddBidComment(ctx, r.PathValue("bidId"), req, user)
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to add comment")
		return
	}
	utils.SendJSON(w, http.StatusCreated, "comment added", comment)
}

// GetCompetitiveness обрабатывает запросы для сравнения цен по тендеру.
func (h *BidHandler) GetCompetitiveness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	report, err := h.Service.CalculateCompetitiveness(ctx, r.PathValue("tenderId"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err, "failed to calculate competitiveness")
		return
	}
	utils.SendJSON(w, http.StatusOK, "", report)
}
