package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/senyabanana/hospital-service/internal/middleware"
	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// writeServiceError отвечает кодом из ErrorResponse, остальные ошибки журналируются и скрываются за 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, message string) {
	var errorResponse *models.ErrorResponse
	if errors.As(err, &errorResponse) {
		logger.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", errorResponse.StatusCode),
			zap.String("reason", errorResponse.Message))
		utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
		return
	}
	logger.Error(message, zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	utils.SendErrorResponse(w, http.StatusInternalServerError, message)
}

// decodeJSON разбирает тело запроса. При strict неизвестные поля считаются ошибкой.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, strict bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return models.NewErrorResponse(http.StatusBadRequest, "request body is empty")
		}
		return models.NewErrorResponse(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// currentUser возвращает пользователя запроса. Маршрут без Authenticate считается ошибкой конфигурации.
func currentUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authorization required")
	}
	return user, ok
}

func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	limit, offset, err := utils.ParseLimitOffset(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return limit, offset, true
}
