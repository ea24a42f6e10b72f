package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/senyabanana/hospital-service/internal/metrics"
	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/repository"
	"github.com/senyabanana/hospital-service/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// tenderStatusTransitions - переходы через PUT /status. Закрытие, продление и
// выбор победителя выполняются отдельными действиями.
var tenderStatusTransitions = map[models.TenderStatus][]models.TenderStatus{
	models.DraftTender:           {models.ActiveTender, models.CancelledTender},
	models.ActiveTender:          {models.CancelledTender},
	models.UnderEvaluationTender: {models.CancelledTender},
}

// generatedNumber - формат номеров, которые выдаёт счётчик. Вручную такие номера не принимаются.
var generatedNumber = regexp.MustCompile(`(?i)^TND-\d+-\d+$`)

var knownTenderStatuses = map[models.TenderStatus]bool{
	models.DraftTender:           true,
	models.ActiveTender:          true,
	models.ClosedTender:          true,
	models.UnderEvaluationTender: true,
	models.AwardedTender:         true,
	models.CancelledTender:       true,
}

type TenderService struct {
	Repo            repository.TenderRepository
	Numbers         repository.TenderNumberGenerator
	Metrics         *metrics.Metrics
	DefaultCurrency string
	Now             func() time.Time
}

// NewTenderService создаёт новый экземпляр TenderService.
func NewTenderService(repo repository.TenderRepository, numbers repository.TenderNumberGenerator, m *metrics.Metrics, defaultCurrency string) *TenderService {
	return &TenderService{
		Repo:            repo,
		Numbers:         numbers,
		Metrics:         m,
		DefaultCurrency: defaultCurrency,
		Now:             time.Now,
	}
}

func (s *TenderService) now() time.Time {
	return s.Now().UTC()
}

func validateBudget(low, high decimal.Decimal) error {
	if low.IsNegative() || high.IsNegative() {
		return badRequest("budget must not be negative")
	}
	if err := validateMoney("budgetMin", low); err != nil {
		return err
	}
	if err := validateMoney("budgetMax", high); err != nil {
		return err
	}
	if low.GreaterThan(high) {
		return badRequest("budgetMin must not exceed budgetMax")
	}
	return nil
}

// FetchTenders получает список тендеров.
func (s *TenderService) FetchTenders(ctx context.Context, filter models.TenderFilter) ([]models.Tender, error) {
	for _, status := range filter.Statuses {
		if !knownTenderStatuses[models.TenderStatus(status)] {
			return nil, badRequest("unsupported tender status: %s", status)
		}
	}
	for _, category := range filter.Categories {
		if !models.TenderCategories[models.TenderCategory(category)] {
			return nil, badRequest("unsupported category: %s", category)
		}
	}

	tenders, err := s.Repo.GetTenders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch tenders: %w", err)
	}
	return tenders, nil
}

// GetTender получает тендер с журналом действий.
func (s *TenderService) GetTender(ctx context.Context, tenderId string) (*models.Tender, error) {
	if err := validateID(tenderId, "tender"); err != nil {
		return nil, err
	}
	tender, err := s.Repo.GetTenderById(ctx, tenderId)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{notFound: "tender not found", description: "get tender"})
	}
	return tender, nil
}

// CreateTender создает новый тендер.
func (s *TenderService) CreateTender(ctx context.Context, tenderReq models.TenderRequest, user models.User) (*models.Tender, error) {
	if err := utils.ValidateStruct(tenderReq); err != nil {
		return nil, err
	}
	if !models.TenderCategories[tenderReq.Category] {
		return nil, badRequest("unsupported category: %s", tenderReq.Category)
	}
	if err := validateBudget(tenderReq.BudgetMin, tenderReq.BudgetMax); err != nil {
		return nil, err
	}
	if tenderReq.SubmissionDeadline.IsZero() {
		return nil, badRequest("submissionDeadline is required")
	}

	now := s.now()
	status := tenderReq.Status
	if status == "" {
		status = models.DraftTender
	}
	if status == models.ActiveTender && !tenderReq.SubmissionDeadline.After(now) {
		return nil, badRequest("submissionDeadline must be in the future for an active tender")
	}

	number := strings.TrimSpace(tenderReq.Number)
	if generatedNumber.MatchString(number) {
		return nil, badRequest("tender numbers of the form TND-<year>-<seq> are assigned automatically")
	}
	if number == "" {
		seq, err := s.Numbers.NextTenderNumber(ctx, now.Year())
		if err != nil {
			return nil, fmt.Errorf("generate tender number: %w", err)
		}
		number = fmt.Sprintf("TND-%d-%04d", now.Year(), seq)
	}

	currency := strings.ToUpper(tenderReq.Currency)
	if currency == "" {
		currency = s.DefaultCurrency
	}
	attachments := tenderReq.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	newTender := models.Tender{
		ID:                 uuid.New().String(),
		Number:             number,
		Title:              tenderReq.Title,
		Description:        tenderReq.Description,
		Category:           tenderReq.Category,
		Status:             status,
		SubmissionDeadline: tenderReq.SubmissionDeadline.UTC(),
		BudgetMin:          tenderReq.BudgetMin,
		BudgetMax:          tenderReq.BudgetMax,
		Currency:           currency,
		Attachments:        attachments,
		CreatedBy:          user.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
		Activity: []models.ActivityEntry{
			models.NewActivity(models.ActionCreated, fmt.Sprintf("Tender %s created as %s", number, status), user.DisplayName(), now),
		},
	}

	if err := s.Repo.CreateTender(ctx, &newTender); err != nil {
		return nil, mapRepoError(err, repoMessages{
			duplicate:   fmt.Sprintf("tender number %s already exists", number),
			description: "create tender",
		})
	}
	s.Metrics.TenderEvent("created")
	return &newTender, nil
}

// UpdateTender меняет разрешённые поля тендера.
func (s *TenderService) UpdateTender(ctx context.Context, tenderId string, update models.TenderUpdate, user models.User) (*models.Tender, error) {
	if err := validateID(tenderId, "tender"); err != nil {
		return nil, err
	}
	fields := update.Fields()
	if len(fields) == 0 {
		return nil, badRequest("no valid fields to update")
	}
	if err := utils.ValidateStruct(update); err != nil {
		return nil, err
	}
	if update.Category != nil && !models.TenderCategories[*update.Category] {
		return nil, badRequest("unsupported category: %s", *update.Category)
	}
	if update.Currency != nil {
		currency := strings.ToUpper(*update.Currency)
		update.Currency = &currency
	}

	current, err := s.GetTender(ctx, tenderId)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, conflict("tender is %s and can no longer be edited", current.Status)
	}

	budgetMin, budgetMax := current.BudgetMin, current.BudgetMax
	if update.BudgetMin != nil {
		budgetMin = *update.BudgetMin
	}
	if update.BudgetMax != nil {
		budgetMax = *update.BudgetMax
	}
	if err := validateBudget(budgetMin, budgetMax); err != nil {
		return nil, err
	}

	entry := models.NewActivity(models.ActionUpdated, "Updated fields: "+strings.Join(fields, ", "), user.DisplayName(), s.now())
	updated, err := s.Repo.UpdateTender(ctx, tenderId, update, entry)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "tender not found",
			conflict:    "tender can no longer be edited",
			description: "update tender",
		})
	}
	s.Metrics.TenderEvent("updated")
	return updated, nil
}

// UpdateTenderStatus публикует или отменяет тендер.
func (s *TenderService) UpdateTenderStatus(ctx context.Context, tenderId, status string, user models.User) (*models.Tender, error) {
	if status == "" {
		return nil, badRequest("missing required query parameter: status")
	}
	to := models.TenderStatus(status)
	if !knownTenderStatuses[to] {
		return nil, badRequest("unsupported tender status: %s", status)
	}

	current, err := s.GetTender(ctx, tenderId)
	if err != nil {
		return nil, err
	}
	if !utils.CanTransition(tenderStatusTransitions, current.Status, to) {
		return nil, conflict("cannot change tender status from %s to %s", current.Status, to)
	}

	now := s.now()
	if to == models.ActiveTender && !current.SubmissionDeadline.After(now) {
		return nil, conflict("submission deadline has passed, extend it before publishing")
	}

	entry := models.NewActivity(models.ActionStatusChanged,
		fmt.Sprintf("Status changed from %s to %s", current.Status, to), user.DisplayName(), now)
	updated, err := s.Repo.UpdateTenderStatus(ctx, tenderId, current.Status, to, entry)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "tender not found",
			conflict:    "tender status was changed concurrently, retry the request",
			description: "update tender status",
		})
	}
	s.Metrics.TenderEvent(string(to))
	return updated, nil
}

// CloseTender закрывает тендер без выбора победителя.
func (s *TenderService) CloseTender(ctx context.Context, tenderId string, user models.User) (*models.Tender, error) {
	current, err := s.GetTender(ctx, tenderId)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case models.DraftTender, models.ActiveTender, models.UnderEvaluationTender:
	default:
		return nil, conflict("tender in status %s cannot be closed", current.Status)
	}

	entry := models.NewActivity(models.ActionClosed, fmt.Sprintf("Tender closed from %s", current.Status), user.DisplayName(), s.now())
	closed, err := s.Repo.UpdateTenderStatus(ctx, tenderId, current.Status, models.ClosedTender, entry)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "tender not found",
			conflict:    "tender status was changed concurrently, retry the request",
			description: "close tender",
		})
	}
	s.Metrics.TenderEvent("closed")
	return closed, nil
}

// ExtendDeadline продлевает срок подачи предложений. Закрытый тендер открывается снова.
func (s *TenderService) ExtendDeadline(ctx context.Context, tenderId string, req models.ExtendDeadlineRequest, user models.User) (*models.Tender, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.SubmissionDeadline.IsZero() {
		return nil, badRequest("submissionDeadline is required")
	}

	current, err := s.GetTender(ctx, tenderId)
	if err != nil {
		return nil, err
	}
	to := current.Status
	switch current.Status {
	case models.DraftTender, models.ActiveTender:
	case models.ClosedTender:
		to = models.ActiveTender
	default:
		return nil, conflict("deadline of a tender in status %s cannot be extended", current.Status)
	}

	now := s.now()
	deadline := req.SubmissionDeadline.UTC()
	if !deadline.After(current.SubmissionDeadline) || !deadline.After(now) {
		return nil, badRequest("new deadline must be later than the current deadline and in the future")
	}

	description := fmt.Sprintf("Deadline extended from %s to %s",
		current.SubmissionDeadline.Format(time.RFC3339), deadline.Format(time.RFC3339))
	if req.Reason != "" {
		description += ": " + req.Reason
	}
	entry := models.NewActivity(models.ActionDeadlineExtended, description, user.DisplayName(), now)

	extended, err := s.Repo.ExtendDeadline(ctx, tenderId, current.Status, to, deadline, entry)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "tender not found",
			conflict:    "tender was changed concurrently, retry the request",
			description: "extend tender deadline",
		})
	}
	s.Metrics.TenderEvent("deadline_extended")
	return extended, nil
}

// AwardTender выбирает победителя тендера.
func (s *TenderService) AwardTender(ctx context.Context, tenderId string, req models.AwardRequest, user models.User) (*models.Tender, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	current, err := s.GetTender(ctx, tenderId)
	if err != nil {
		return nil, err
	}
	if !current.Status.Evaluable() {
		return nil, conflict("tender in status %s cannot be awarded", current.Status)
	}

	awarded, err := s.Repo.AwardTender(ctx, tenderId, req.BidID, user.DisplayName(), s.now())
	if err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "bid not found",
			conflict:    "bid is not eligible for award in its current status",
			mismatch:    "bid does not belong to this tender",
			description: "award tender",
		})
	}
	s.Metrics.TenderEvent("awarded")
	return awarded, nil
}

// DeleteTender удаляет тендер вместе с предложениями.
func (s *TenderService) DeleteTender(ctx context.Context, tenderId string) error {
	if err := validateID(tenderId, "tender"); err != nil {
		return err
	}
	deleted, err := s.Repo.DeleteTenders(ctx, []string{tenderId})
	if err != nil {
		return fmt.Errorf("delete tender: %w", err)
	}
	if deleted == 0 {
		return mapRepoError(repository.ErrNotFound, repoMessages{notFound: "tender not found"})
	}
	s.Metrics.TenderEvent("deleted")
	return nil
}

// BulkDeleteTenders удаляет несколько тендеров в одной транзакции и возвращает число удалённых.
func (s *TenderService) BulkDeleteTenders(ctx context.Context, req models.BulkDeleteRequest) (int64, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(req.IDs))
	ids := make([]string, 0, len(req.IDs))
	for _, id := range req.IDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	deleted, err := s.Repo.DeleteTenders(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("bulk delete tenders: %w", err)
	}
	s.Metrics.TenderEventN("deleted", deleted)
	return deleted, nil
}
