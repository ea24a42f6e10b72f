package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// repoMessages - тексты ответов для ошибок репозитория.
type repoMessages struct {
	notFound    string
	conflict    string
	duplicate   string
	closed      string
	mismatch    string
	description string
}

// mapRepoError переводит ошибки репозитория в ErrorResponse. Неожиданные ошибки
// возвращаются обёрнутыми, обработчик ответит на них кодом 500.
func mapRepoError(err error, msg repoMessages) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound) && msg.notFound != "":
		return models.NewErrorResponse(http.StatusNotFound, msg.notFound)
	case errors.Is(err, repository.ErrConflict) && msg.conflict != "":
		return models.NewErrorResponse(http.StatusConflict, msg.conflict)
	case errors.Is(err, repository.ErrDuplicate) && msg.duplicate != "":
		return models.NewErrorResponse(http.StatusConflict, msg.duplicate)
	case errors.Is(err, repository.ErrTenderClosed) && msg.closed != "":
		return models.NewErrorResponse(http.StatusConflict, msg.closed)
	case errors.Is(err, repository.ErrBidMismatch) && msg.mismatch != "":
		return models.NewErrorResponse(http.StatusBadRequest, msg.mismatch)
	default:
		return fmt.Errorf("%s: %w", msg.description, err)
	}
}

// maxMoney - граница столбцов NUMERIC(16, 2).
var maxMoney = decimal.New(1, 14)

// validateMoney проверяет, что сумму можно сохранить без округления.
func validateMoney(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(2)) {
		return badRequest("%s must have at most 2 decimal places", field)
	}
	if amount.Abs().GreaterThanOrEqual(maxMoney) {
		return badRequest("%s is too large", field)
	}
	return nil
}

func validateID(id, name string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.NewErrorResponse(http.StatusBadRequest, fmt.Sprintf("invalid %s id", name))
	}
	return nil
}

func badRequest(format string, args ...any) error {
	return models.NewErrorResponse(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

func conflict(format string, args ...any) error {
	return models.NewErrorResponse(http.StatusConflict, fmt.Sprintf(format, args...))
}

func forbidden(message string) error {
	return models.NewErrorResponse(http.StatusForbidden, message)
}
