package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	TenderCategory string // Категория тендера
	TenderStatus   string // Статус тендера
)

const (
	MedicalEquipment TenderCategory = "medical_equipment"
	Pharmaceuticals  TenderCategory = "pharmaceuticals"
	MedicalSupplies  TenderCategory = "medical_supplies"
	Construction     TenderCategory = "construction"
	Services         TenderCategory = "services"
	ICT              TenderCategory = "ict"
	Consultancy      TenderCategory = "consultancy"
	OtherCategory    TenderCategory = "other"

	DraftTender           TenderStatus = "draft"            // Тендер создан, не опубликован
	ActiveTender          TenderStatus = "active"           // Тендер принимает предложения
	ClosedTender          TenderStatus = "closed"           // Тендер закрыт без победителя
	UnderEvaluationTender TenderStatus = "under_evaluation" // Идёт оценка предложений
	AwardedTender         TenderStatus = "awarded"          // Выбран победитель
	CancelledTender       TenderStatus = "cancelled"        // Тендер отменён
)

// TenderCategories - допустимые категории тендеров.
var TenderCategories = map[TenderCategory]bool{
	MedicalEquipment: true,
	Pharmaceuticals:  true,
	MedicalSupplies:  true,
	Construction:     true,
	Services:         true,
	ICT:              true,
	Consultancy:      true,
	OtherCategory:    true,
}

// IsTerminal сообщает, что тендер больше нельзя редактировать.
func (s TenderStatus) IsTerminal() bool {
	return s == ClosedTender || s == AwardedTender || s == CancelledTender
}

// Evaluable сообщает, что по тендеру можно оценивать предложения и выбирать победителя.
func (s TenderStatus) Evaluable() bool {
	return s == ActiveTender || s == UnderEvaluationTender
}

// Tender представляет модель тендера.
type Tender struct {
	ID                 string          `json:"id"`
	Number             string          `json:"tenderNumber"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Category           TenderCategory  `json:"category"`
	Status             TenderStatus    `json:"status"`
	SubmissionDeadline time.Time       `json:"submissionDeadline"`
	BudgetMin          decimal.Decimal `json:"budgetMin"`
	BudgetMax          decimal.Decimal `json:"budgetMax"`
	Currency           string          `json:"currency"`
	Attachments        []string        `json:"attachments"`
	BidCount           int             `json:"bidCount"`
	AwardedBidID       *string         `json:"awardedBidId,omitempty"`
	AwardedTo          string          `json:"awardedTo,omitempty"`
	CreatedBy          string          `json:"createdBy"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	Activity           []ActivityEntry `json:"activityLog,omitempty"`
}

// TenderRequest представляет структуру запроса для создания тендера.
type TenderRequest struct {
	Number             string          `json:"tenderNumber" validate:"omitempty,max=40"`
	Title              string          `json:"title" validate:"required,max=200"`
	Description        string          `json:"description" validate:"required"`
	Category           TenderCategory  `json:"category" validate:"required"`
	Status             TenderStatus    `json:"status" validate:"omitempty,oneof=draft active"`
	SubmissionDeadline time.Time       `json:"submissionDeadline"`
	BudgetMin          decimal.Decimal `json:"budgetMin"`
	BudgetMax          decimal.Decimal `json:"budgetMax"`
	Currency           string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Attachments        []string        `json:"attachments" validate:"dive,required"`
}

// TenderUpdate - разрешённые для изменения поля тендера.
type TenderUpdate struct {
	Title       *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,min=1"`
	Category    *TenderCategory  `json:"category"`
	BudgetMin   *decimal.Decimal `json:"budgetMin"`
	BudgetMax   *decimal.Decimal `json:"budgetMax"`
	Currency    *string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Attachments *[]string        `json:"attachments" validate:"omitempty,dive,required"`
}

// Fields возвращает имена переданных полей.
func (u TenderUpdate) Fields() []string {
	var fields []string
	if u.Title != nil {
		fields = append(fields, "title")
	}
	if u.Description != nil {
		fields = append(fields, "description")
	}
	if u.Category != nil {
		fields = append(fields, "category")
	}
	if u.BudgetMin != nil {
		fields = append(fields, "budgetMin")
	}
	if u.BudgetMax != nil {
		fields = append(fields, "budgetMax")
	}
	if u.Currency != nil {
		fields = append(fields, "currency")
	}
	if u.Attachments != nil {
		fields = append(fields, "attachments")
	}
	return fields
}

// Apply переносит переданные поля в тендер.
func (u TenderUpdate) Apply(t *Tender) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.BudgetMin != nil {
		t.BudgetMin = *u.BudgetMin
	}
	if u.BudgetMax != nil {
		t.BudgetMax = *u.BudgetMax
	}
	if u.Currency != nil {
		t.Currency = *u.Currency
	}
	if u.Attachments != nil {
		t.Attachments = *u.Attachments
	}
}

// TenderFilter - параметры выборки тендеров.
type TenderFilter struct {
	Statuses   []string
	Categories []string
	Search     string
	Limit      int
	Offset     int
}

// ExtendDeadlineRequest - запрос на продление срока подачи предложений.
type ExtendDeadlineRequest struct {
	SubmissionDeadline time.Time `json:"submissionDeadline"`
	Reason             string    `json:"reason" validate:"max=500"`
}

// AwardRequest - запрос на определение победителя.
type AwardRequest struct {
	BidID string `json:"bidId" validate:"required,uuid"`
}

// BulkDeleteRequest - запрос на удаление нескольких тендеров.
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,uuid"`
}
