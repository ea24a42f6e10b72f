package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/senyabanana/hospital-service/internal/metrics"
	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/repository"
	"github.com/senyabanana/hospital-service/internal/scoring"
	"github.com/senyabanana/hospital-service/internal/utils"

	"github.com/google/uuid"
)

// bidStatusTransitions - ручные переходы статуса предложения.
var bidStatusTransitions = map[models.BidStatus][]models.BidStatus{
	models.SubmittedBid:   {models.UnderReviewBid, models.ShortlistedBid, models.RejectedBid},
	models.UnderReviewBid: {models.ShortlistedBid, models.RejectedBid},
	models.ShortlistedBid: {models.UnderReviewBid, models.RejectedBid},
}

type BidService struct {
	Repo         repository.BidRepository
	Tenders      repository.TenderRepository
	Metrics      *metrics.Metrics
	ScoringModel scoring.Model
	Now          func() time.Time
}

// NewBidService создает новый экземпляр BidService.
func NewBidService(repo repository.BidRepository, tenders repository.TenderRepository, m *metrics.Metrics, model scoring.Model) *BidService {
	return &BidService{
		Repo:         repo,
		Tenders:      tenders,
		Metrics:      m,
		ScoringModel: model,
		Now:          time.Now,
	}
}

func (s *BidService) now() time.Time {
	return s.Now().UTC()
}

var bidMessages = repoMessages{notFound: "bid not found", description: "get bid"}

// loadBid возвращает предложение и проверяет доступ: комиссия видит все, поставщик только свои.
func (s *BidService) loadBid(ctx context.Context, bidId string, user models.User, allowProcurement bool) (*models.Bid, error) {
	if err := validateID(bidId, "bid"); err != nil {
		return nil, err
	}
	bid, err := s.Repo.GetBidById(ctx, bidId)
	if err != nil {
		return nil, mapRepoError(err, bidMessages)
	}
	if allowProcurement && user.HasRole(models.ProcurementRole) {
		return bid, nil
	}
	if user.Role == models.VendorRole && bid.VendorID == user.ID {
		return bid, nil
	}
	return nil, forbidden("access to this bid is not allowed")
}

// CreateBid создает новое предложение.
func (s *BidService) CreateBid(ctx context.Context, bidReq models.BidRequest, user models.User) (*models.Bid, error) {
	if err := utils.ValidateStruct(bidReq); err != nil {
		return nil, err
	}
	if !bidReq.Amount.IsPositive() {
		return nil, badRequest("amount must be greater than zero")
	}
	if err := validateMoney("amount", bidReq.Amount); err != nil {
		return nil, err
	}

	tender, err := s.Tenders.GetTenderById(ctx, bidReq.TenderID)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{notFound: "tender not found", description: "get tender"})
	}
	now := s.now()
	if tender.Status != models.ActiveTender || !now.Before(tender.SubmissionDeadline) {
		return nil, conflict("tender is not accepting bids")
	}

	vendorName := strings.TrimSpace(bidReq.CompanyName)
	if vendorName == "" {
		vendorName = user.DisplayName()
	}
	currency := strings.ToUpper(bidReq.Currency)
	if currency == "" {
		currency = tender.Currency
	}
	attachments := bidReq.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	newBid := models.Bid{
		ID:                uuid.New().String(),
		TenderID:          tender.ID,
		VendorID:          user.ID,
		VendorName:        vendorName,
		Amount:            bidReq.Amount,
		Currency:          currency,
		TechnicalProposal: bidReq.TechnicalProposal,
		FinancialProposal: bidReq.FinancialProposal,
		Attachments:       attachments,
		Status:            models.SubmittedBid,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	tenderEntry := models.NewActivity(models.ActionBidReceived,
		fmt.Sprintf("Bid received from %s", vendorName), user.DisplayName(), now)
	bidEntry := models.NewActivity(models.ActionSubmitted,
		fmt.Sprintf("Bid submitted for tender %s", tender.Number), user.DisplayName(), now)

	if err := s.Repo.CreateBid(ctx, &newBid, tenderEntry, bidEntry); err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "tender not found",
			duplicate:   "you have already submitted a bid for this tender",
			closed:      "tender is not accepting bids",
			description: "create bid",
		})
	}
	newBid.Activity = []models.ActivityEntry{bidEntry}
	s.Metrics.BidEvent("submitted")
	return &newBid, nil
}

// GetBid получает предложение для комиссии или его владельца.
func (s *BidService) GetBid(ctx context.Context, bidId string, user models.User) (*models.Bid, error) {
	return s.loadBid(ctx, bidId, user, true)
}

// GetUserBids получает список предложений поставщика.
func (s *BidService) GetUserBids(ctx context.Context, user models.User, limit, offset int) ([]models.Bid, error) {
	bids, err := s.Repo.GetVendorBids(ctx, user.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get vendor bids: %w", err)
	}
	return bids, nil
}

// GetTenderBids получает список предложений для тендера.
func (s *BidService) GetTenderBids(ctx context.Context, tenderId string, limit, offset int) ([]models.Bid, error) {
	if err := validateID(tenderId, "tender"); err != nil {
		return nil, err
	}
	if _, err := s.Tenders.GetTenderById(ctx, tenderId); err != nil {
		return nil, mapRepoError(err, repoMessages{notFound: "tender not found", description: "get tender"})
	}

	bids, err := s.Repo.GetTenderBids(ctx, tenderId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get tender bids: %w", err)
	}
	return bids, nil
}

// UpdateBid редактирует поданное предложение, пока тендер открыт.
func (s *BidService) UpdateBid(ctx context.Context, bidId string, update models.BidUpdate, user models.User) (*models.Bid, error) {
	if update.Empty() {
		return nil, badRequest("no valid fields to update")
	}
	if err := utils.ValidateStruct(update); err != nil {
		return nil, err
	}
	if update.Amount != nil {
		if !update.Amount.IsPositive() {
			return nil, badRequest("amount must be greater than zero")
		}
		if err := validateMoney("amount", *update.Amount); err != nil {
			return nil, err
		}
	}
	if update.Currency != nil {
		currency := strings.ToUpper(*update.Currency)
		update.Currency = &currency
	}

	bid, err := s.loadBid(ctx, bidId, user, false)
	if err != nil {
		return nil, err
	}
	if bid.Status != models.SubmittedBid {
		return nil, conflict("bid in status %s can no longer be edited", bid.Status)
	}

	entry := models.NewActivity(models.ActionUpdated, "Bid updated by vendor", user.DisplayName(), s.now())
	updated, err := s.Repo.UpdateBid(ctx, bidId, update, entry)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "bid not found",
			conflict:    "bid can no longer be edited",
			closed:      "tender is no longer accepting changes",
			description: "update bid",
		})
	}
	s.Metrics.BidEvent("updated")
	return updated, nil
}

// WithdrawBid снимает предложение поставщика.
func (s *BidService) WithdrawBid(ctx context.Context, bidId string, user models.User) (*models.Bid, error) {
	bid, err := s.loadBid(ctx, bidId, user, false)
	if err != nil {
		return nil, err
	}
	if !bid.Status.UnderConsideration() {
		return nil, conflict("bid in status %s cannot be withdrawn", bid.Status)
	}

	now := s.now()
	tenderEntry := models.NewActivity(models.ActionBidWithdrawn,
		fmt.Sprintf("Bid from %s withdrawn", bid.VendorName), user.DisplayName(), now)
	bidEntry := models.NewActivity(models.ActionWithdrawn, "Bid withdrawn by vendor", user.DisplayName(), now)

	withdrawn, err := s.Repo.WithdrawBid(ctx, bidId, bid.Status, tenderEntry, bidEntry)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "bid not found",
			conflict:    "bid status was changed concurrently, retry the request",
			description: "withdraw bid",
		})
	}
	s.Metrics.BidEvent("withdrawn")
	return withdrawn, nil
}

// ScoreBid выставляет оценку предложению по настроенной формуле.
func (s *BidService) ScoreBid(ctx context.Context, bidId string, req models.ScoreRequest, user models.User) (*models.Bid, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if s.ScoringModel.RequiresAllComponents() && (req.Compliance == nil || req.Experience == nil) {
		return nil, badRequest("compliance and experience scores are required for the %s model", s.ScoringModel)
	}
	if err := validateID(bidId, "bid"); err != nil {
		return nil, err
	}

	bid, err := s.Repo.GetBidById(ctx, bidId)
	if err != nil {
		return nil, mapRepoError(err, bidMessages)
	}
	if !bid.Status.UnderConsideration() {
		return nil, conflict("bid in status %s cannot be scored", bid.Status)
	}
	tender, err := s.Tenders.GetTenderById(ctx, bid.TenderID)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{notFound: "tender not found", description: "get tender"})
	}
	if !tender.Status.Evaluable() {
		return nil, conflict("tender in status %s is not open for evaluation", tender.Status)
	}

	components := scoring.Components{Technical: req.Technical, Financial: req.Financial}
	if req.Compliance != nil {
		components.Compliance = *req.Compliance
	}
	if req.Experience != nil {
		components.Experience = *req.Experience
	}

	now := s.now()
	score := models.Score{
		Technical:   components.Technical,
		Financial:   components.Financial,
		Compliance:  components.Compliance,
		Experience:  components.Experience,
		Overall:     s.ScoringModel.Overall(components),
		Model:       string(s.ScoringModel),
		EvaluatedBy: user.DisplayName(),
	}

	to := bid.Status
	if to == models.SubmittedBid {
		to = models.UnderReviewBid
	}
	entry := models.NewActivity(models.ActionScored,
		fmt.Sprintf("Scored %.2f (%s)", score.Overall, s.ScoringModel), user.DisplayName(), now)

	scored, err := s.Repo.ScoreBid(ctx, bidId, bid.Status, to, score, entry)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "bid not found",
			conflict:    "bid or tender status was changed concurrently, retry the request",
			description: "score bid",
		})
	}
	s.Metrics.BidScored(score.Overall)
	return scored, nil
}

// UpdateBidStatus меняет статус предложения по решению комиссии.
func (s *BidService) UpdateBidStatus(ctx context.Context, bidId string, req models.BidStatusRequest, user models.User) (*models.Bid, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	switch req.Status {
	case models.AwardedBid:
		return nil, badRequest("bids are awarded through the tender award endpoint")
	case models.WithdrawnBid:
		return nil, badRequest("bids are withdrawn by the vendor through the withdraw endpoint")
	}
	if err := validateID(bidId, "bid"); err != nil {
		return nil, err
	}

	bid, err := s.Repo.GetBidById(ctx, bidId)
	if err != nil {
		return nil, mapRepoError(err, bidMessages)
	}
	if !utils.CanTransition(bidStatusTransitions, bid.Status, req.Status) {
		return nil, conflict("cannot change bid status from %s to %s", bid.Status, req.Status)
	}

	action := models.ActionStatusChanged
	if req.Status == models.RejectedBid {
		action = models.ActionRejected
	}
	description := fmt.Sprintf("Status changed from %s to %s", bid.Status, req.Status)
	if req.Reason != "" {
		description += ": " + req.Reason
	}
	entry := models.NewActivity(action, description, user.DisplayName(), s.now())

	updated, err := s.Repo.UpdateBidStatus(ctx, bidId, bid.Status, req.Status, entry)
	if err != nil {
		return nil, mapRepoError(err, repoMessages{
			notFound:    "bid not found",
			conflict:    "bid status was changed concurrently, retry the request",
			description: "update bid status",
		})
	}
	s.Metrics.BidEvent(string(req.Status))
	return updated, nil
}

// AddBidComment добавляет комментарий к предложению.
func (s *BidService) AddBidComment(ctx context.Context, bidId string, req models.BidCommentRequest, user models.User) (*models.BidComment, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.loadBid(ctx, bidId, user, true); err != nil {
		return nil, err
	}

	comment := models.BidComment{
		ID:         uuid.New().String(),
		BidID:      bidId,
		Author:     user.DisplayName(),
		AuthorRole: user.Role,
		Text:       req.Text,
		CreatedAt:  s.now(),
	}
	if err := s.Repo.AddBidComment(ctx, &comment); err != nil {
		return nil, mapRepoError(err, repoMessages{notFound: "bid not found", description: "add bid comment"})
	}
	s.Metrics.BidEvent("commented")
	return &comment, nil
}

// CalculateCompetitiveness сравнивает цены предложений тендера и сохраняет места.
func (s *BidService) CalculateCompetitiveness(ctx context.Context, tenderId string) (*models.CompetitivenessReport, error) {
	if err := validateID(tenderId, "tender"); err != nil {
		return nil, err
	}
	if _, err := s.Tenders.GetTenderById(ctx, tenderId); err != nil {
		return nil, mapRepoError(err, repoMessages{notFound: "tender not found", description: "get tender"})
	}

	bids, err := s.Repo.GetCompetingBids(ctx, tenderId)
	if err != nil {
		return nil, fmt.Errorf("get competing bids: %w", err)
	}

	report := scoring.Competitiveness(tenderId, bids)
	if err := s.Repo.SaveRankings(ctx, tenderId, scoring.Rankings(report)); err != nil {
		return nil, fmt.Errorf("save rankings: %w", err)
	}
	return &report, nil
}
