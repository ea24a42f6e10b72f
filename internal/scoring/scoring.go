// Package scoring содержит формулы оценки предложений и сравнение цен.
package scoring

import (
	"fmt"
	"sort"

	"github.com/senyabanana/hospital-service/internal/models"

	"github.com/shopspring/decimal"
)

// Model - формула итоговой оценки.
type Model string

const (
	// TwoFactor: technical*0.6 + financial*0.4.
	TwoFactor Model = "two_factor"
	// Weighted: technical*0.4 + financial*0.3 + compliance*0.2 + experience*0.1.
	Weighted Model = "weighted"
)

var (
	twoFactorTechnical = decimal.RequireFromString("0.6")
	twoFactorFinancial = decimal.RequireFromString("0.4")

	weightedTechnical  = decimal.RequireFromString("0.40")
	weightedFinancial  = decimal.RequireFromString("0.30")
	weightedCompliance = decimal.RequireFromString("0.20")
	weightedExperience = decimal.RequireFromString("0.10")

	hundred = decimal.NewFromInt(100)

	highlyCompetitiveLimit = decimal.NewFromInt(-15)
	competitiveLimit       = decimal.NewFromInt(-5)
	averageLimit           = decimal.NewFromInt(5)
	aboveAverageLimit      = decimal.NewFromInt(15)
)

// Components - частные оценки по критериям.
type Components struct {
	Technical  float64
	Financial  float64
	Compliance float64
	Experience float64
}

// ParseModel разбирает название формулы.
func ParseModel(s string) (Model, error) {
	switch Model(s) {
	case TwoFactor, Weighted:
		return Model(s), nil
	default:
		return "", fmt.Errorf("unknown scoring model %q", s)
	}
}

// RequiresAllComponents сообщает, нужны ли оценки compliance и experience.
func (m Model) RequiresAllComponents() bool {
	return m == Weighted
}

// Overall считает итоговую оценку по формуле модели, с округлением до 2 знаков.
func (m Model) Overall(c Components) float64 {
	if m == Weighted {
		return WeightedOverall(c)
	}
	return TwoFactorOverall(c.Technical, c.Financial)
}

// TwoFactorOverall считает technical*0.6 + financial*0.4.
func TwoFactorOverall(technical, financial float64) float64 {
	overall := decimal.NewFromFloat(technical).Mul(twoFactorTechnical).
		Add(decimal.NewFromFloat(financial).Mul(twoFactorFinancial))
	return overall.Round(2).InexactFloat64()
}

// WeightedOverall считает взвешенную оценку по четырём критериям.
func WeightedOverall(c Components) float64 {
	overall := decimal.NewFromFloat(c.Technical).Mul(weightedTechnical).
		Add(decimal.NewFromFloat(c.Financial).Mul(weightedFinancial)).
		Add(decimal.NewFromFloat(c.Compliance).Mul(weightedCompliance)).
		Add(decimal.NewFromFloat(c.Experience).Mul(weightedExperience))
	return overall.Round(2).InexactFloat64()
}

// Tier определяет уровень конкурентоспособности по отклонению от средней цены в процентах.
func Tier(deviation decimal.Decimal) models.CompetitivenessTier {
	switch {
	case deviation.LessThanOrEqual(highlyCompetitiveLimit):
		return models.HighlyCompetitive
	case deviation.LessThanOrEqual(competitiveLimit):
		return models.Competitive
	case deviation.LessThanOrEqual(averageLimit):
		return models.Average
	case deviation.LessThanOrEqual(aboveAverageLimit):
		return models.AboveAverage
	default:
		return models.Expensive
	}
}

// Competitiveness сравнивает цены действующих предложений тендера.
// Снятые, отклонённые и черновые предложения не учитываются.
func Competitiveness(tenderID string, bids []models.Bid) models.CompetitivenessReport {
	report := models.CompetitivenessReport{
		TenderID: tenderID,
		Bids:     []models.BidCompetitiveness{},
	}

	competing := make([]models.Bid, 0, len(bids))
	for _, bid := range bids {
		if bid.Status.Competing() {
			competing = append(competing, bid)
		}
	}
	if len(competing) == 0 {
		return report
	}

	sort.SliceStable(competing, func(i, j int) bool {
		if cmp := competing[i].Amount.Cmp(competing[j].Amount); cmp != 0 {
			return cmp < 0
		}
		return competing[i].CreatedAt.Before(competing[j].CreatedAt)
	})

	total := decimal.Zero
	for _, bid := range competing {
		total = total.Add(bid.Amount)
	}
	mean := total.Div(decimal.NewFromInt(int64(len(competing))))
	lowest := competing[0].Amount

	report.BidCount = len(competing)
	report.MeanAmount = mean.Round(2)
	report.LowestAmount = lowest
	report.HighestAmount = competing[len(competing)-1].Amount

	for i, bid := range competing {
		deviation := decimal.Zero
		if !mean.IsZero() {
			deviation = bid.Amount.Sub(mean).Div(mean).Mul(hundred)
		}
		report.Bids = append(report.Bids, models.BidCompetitiveness{
			BidID:            bid.ID,
			VendorID:         bid.VendorID,
			VendorName:       bid.VendorName,
			Amount:           bid.Amount,
			Rank:             i + 1,
			IsLowestBid:      bid.Amount.Equal(lowest),
			DeviationPercent: deviation.Round(2).InexactFloat64(),
			Tier:             Tier(deviation),
		})
	}
	return report
}

// Rankings возвращает места предложений из отчёта.
func Rankings(report models.CompetitivenessReport) map[string]int {
	ranks := make(map[string]int, len(report.Bids))
	for _, bid := range report.Bids {
		ranks[bid.BidID] = bid.Rank
	}
	return ranks
}
