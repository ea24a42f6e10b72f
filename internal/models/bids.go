package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	BidStatus           string // Статус предложения
	CompetitivenessTier string // Уровень конкурентоспособности цены
)

const (
	DraftBid       BidStatus = "draft"
	SubmittedBid   BidStatus = "submitted"
	UnderReviewBid BidStatus = "under_review"
	ShortlistedBid BidStatus = "shortlisted"
	RejectedBid    BidStatus = "rejected"
	AwardedBid     BidStatus = "awarded"
	WithdrawnBid   BidStatus = "withdrawn"

	HighlyCompetitive CompetitivenessTier = "highly_competitive"
	Competitive       CompetitivenessTier = "competitive"
	Average           CompetitivenessTier = "average"
	AboveAverage      CompetitivenessTier = "above_average"
	Expensive         CompetitivenessTier = "expensive"
)

// Competing сообщает, участвует ли предложение в сравнении цен.
func (s BidStatus) Competing() bool {
	return s != WithdrawnBid && s != RejectedBid && s != DraftBid
}

// UnderConsideration сообщает, что предложение ещё можно оценить, снять или выбрать победителем.
func (s BidStatus) UnderConsideration() bool {
	return s == SubmittedBid || s == UnderReviewBid || s == ShortlistedBid
}

// Score - оценка предложения.
type Score struct {
	Technical   float64    `json:"technical"`
	Financial   float64    `json:"financial"`
	Compliance  float64    `json:"compliance"`
	Experience  float64    `json:"experience"`
	Overall     float64    `json:"overall"`
	Model       string     `json:"model,omitempty"`
	EvaluatedBy string     `json:"evaluatedBy,omitempty"`
	EvaluatedAt *time.Time `json:"evaluatedAt,omitempty"`
}

// Bid представляет модель предложения.
type Bid struct {
	ID                string          `json:"id"`
	TenderID          string          `json:"tenderId"`
	VendorID          string          `json:"vendorId"`
	VendorName        string          `json:"vendorName"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	TechnicalProposal string          `json:"technicalProposal"`
	FinancialProposal string          `json:"financialProposal"`
	Attachments       []string        `json:"attachments"`
	Status            BidStatus       `json:"status"`
	Score             Score           `json:"score"`
	Ranking           int             `json:"ranking"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	Comments          []BidComment    `json:"comments,omitempty"`
	Activity          []ActivityEntry `json:"activityLog,omitempty"`
}

// BidRequest представляет структуру запроса для подачи предложения.
type BidRequest struct {
	TenderID          string          `json:"tenderId" validate:"required,uuid"`
	CompanyName       string          `json:"companyName" validate:"max=200"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency" validate:"omitempty,len=3,alpha"`
	TechnicalProposal string          `json:"technicalProposal" validate:"required"`
	FinancialProposal string          `json:"financialProposal"`
	Attachments       []string        `json:"attachments" validate:"dive,required"`
}

// BidUpdate - разрешённые для изменения поля предложения.
type BidUpdate struct {
	Amount            *decimal.Decimal `json:"amount"`
	Currency          *string          `json:"currency" validate:"omitempty,len=3,alpha"`
	TechnicalProposal *string          `json:"technicalProposal" validate:"omitempty,min=1"`
	FinancialProposal *string          `json:"financialProposal"`
	Attachments       *[]string        `json:"attachments" validate:"omitempty,dive,required"`
}

// Empty сообщает, что ни одно поле не передано.
func (u BidUpdate) Empty() bool {
	return u.Amount == nil && u.Currency == nil && u.TechnicalProposal == nil &&
		u.FinancialProposal == nil && u.Attachments == nil
}

// Apply переносит переданные поля в предложение.
func (u BidUpdate) Apply(b *Bid) {
	if u.Amount != nil {
		b.Amount = *u.Amount
	}
	if u.Currency != nil {
		b.Currency = *u.Currency
	}
	if u.TechnicalProposal != nil {
		b.TechnicalProposal = *u.TechnicalProposal
	}
	if u.FinancialProposal != nil {
		b.FinancialProposal = *u.FinancialProposal
	}
	if u.Attachments != nil {
		b.Attachments = *u.Attachments
	}
}

// ScoreRequest - оценки комиссии по предложению.
type ScoreRequest struct {
	Technical  float64  `json:"technical" validate:"gte=0,lte=100"`
	Financial  float64  `json:"financial" validate:"gte=0,lte=100"`
	Compliance *float64 `json:"compliance" validate:"omitempty,gte=0,lte=100"`
	Experience *float64 `json:"experience" validate:"omitempty,gte=0,lte=100"`
}

// BidStatusRequest - запрос на смену статуса предложения.
type BidStatusRequest struct {
	Status BidStatus `json:"status" validate:"required"`
	Reason string    `json:"reason" validate:"max=500"`
}

// BidComment - комментарий к предложению.
type BidComment struct {
	ID         string    `json:"id"`
	BidID      string    `json:"-"`
	Author     string    `json:"author"`
	AuthorRole Role      `json:"authorRole"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// BidCommentRequest - запрос на добавление комментария.
type BidCommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// BidCompetitiveness - место предложения в сравнении цен.
type BidCompetitiveness struct {
	BidID            string              `json:"bidId"`
	VendorID         string              `json:"vendorId"`
	VendorName       string              `json:"vendorName"`
	Amount           decimal.Decimal     `json:"amount"`
	Rank             int                 `json:"rank"`
	IsLowestBid      bool                `json:"isLowestBid"`
	DeviationPercent float64             `json:"deviationPercent"`
	Tier             CompetitivenessTier `json:"competitiveness"`
}

// CompetitivenessReport - сравнение цен по тендеру.
type CompetitivenessReport struct {
	TenderID      string               `json:"tenderId"`
	BidCount      int                  `json:"bidCount"`
	MeanAmount    decimal.Decimal      `json:"meanAmount"`
	LowestAmount  decimal.Decimal      `json:"lowestAmount"`
	HighestAmount decimal.Decimal      `json:"highestAmount"`
	Bids          []BidCompetitiveness `json:"bids"`
}
