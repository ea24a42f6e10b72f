package scoring

import (
	"testing"
	"time"

	"github.com/senyabanana/hospital-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwoFactorOverall(t *testing.T) {
	tests := []struct {
		name      string
		technical float64
		financial float64
		want      float64
	}{
		{"reference case", 80, 70, 76.00},
		{"perfect", 100, 100, 100},
		{"zero", 0, 0, 0},
		{"rounded", 77.77, 66.66, 73.33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TwoFactorOverall(tt.technical, tt.financial))
		})
	}
}

func TestWeightedOverall(t *testing.T) {
	got := WeightedOverall(Components{Technical: 80, Financial: 70, Compliance: 90, Experience: 60})
	// 32 + 21 + 18 + 6
	assert.Equal(t, 77.0, got)

	assert.Equal(t, 100.0, WeightedOverall(Components{100, 100, 100, 100}))
}

func TestModelOverall(t *testing.T) {
	c := Components{Technical: 80, Financial: 70, Compliance: 90, Experience: 60}
	assert.Equal(t, 76.0, TwoFactor.Overall(c))
	assert.Equal(t, 77.0, Weighted.Overall(c))
	assert.True(t, Weighted.RequiresAllComponents())
	assert.False(t, TwoFactor.RequiresAllComponents())
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel("weighted")
	require.NoError(t, err)
	assert.Equal(t, Weighted, m)

	_, err = ParseModel("linear")
	assert.Error(t, err)
}

func TestTier(t *testing.T) {
	tests := []struct {
		deviation string
		want      models.CompetitivenessTier
	}{
		{"-30", models.HighlyCompetitive},
		{"-15", models.HighlyCompetitive},
		{"-14.99", models.Competitive},
		{"-5", models.Competitive},
		{"-4.99", models.Average},
		{"0", models.Average},
		{"5", models.Average},
		{"5.01", models.AboveAverage},
		{"15", models.AboveAverage},
		{"15.01", models.Expensive},
	}

	for _, tt := range tests {
		t.Run(tt.deviation, func(t *testing.T) {
			assert.Equal(t, tt.want, Tier(decimal.RequireFromString(tt.deviation)))
		})
	}
}

func bid(id string, amount int64, status models.BidStatus, offset time.Duration) models.Bid {
	return models.Bid{
		ID:        id,
		VendorID:  "vendor-" + id,
		Amount:    decimal.NewFromInt(amount),
		Status:    status,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset),
	}
}

func TestCompetitiveness(t *testing.T) {
	bids := []models.Bid{
		bid("c", 150, models.SubmittedBid, 0),
		bid("a", 100, models.UnderReviewBid, time.Minute),
		bid("b", 120, models.ShortlistedBid, 2*time.Minute),
		bid("w", 10, models.WithdrawnBid, 3*time.Minute),
		bid("r", 20, models.RejectedBid, 4*time.Minute),
	}

	report := Competitiveness("tender-1", bids)

	require.Len(t, report.Bids, 3)
	assert.Equal(t, "tender-1", report.TenderID)
	assert.Equal(t, 3, report.BidCount)
	assert.True(t, report.MeanAmount.Equal(decimal.RequireFromString("123.33")))
	assert.True(t, report.LowestAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, report.HighestAmount.Equal(decimal.NewFromInt(150)))

	lowest := report.Bids[0]
	assert.Equal(t, "a", lowest.BidID)
	assert.Equal(t, 1, lowest.Rank)
	assert.True(t, lowest.IsLowestBid)
	assert.Equal(t, -18.92, lowest.DeviationPercent)
	assert.Equal(t, models.HighlyCompetitive, lowest.Tier)

	middle := report.Bids[1]
	assert.Equal(t, "b", middle.BidID)
	assert.False(t, middle.IsLowestBid)
	assert.Equal(t, -2.7, middle.DeviationPercent)
	assert.Equal(t, models.Average, middle.Tier)

	highest := report.Bids[2]
	assert.Equal(t, "c", highest.BidID)
	assert.Equal(t, 3, highest.Rank)
	assert.Equal(t, 21.62, highest.DeviationPercent)
	assert.Equal(t, models.Expensive, highest.Tier)

	assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 3}, Rankings(report))
}

func TestCompetitivenessEdgeCases(t *testing.T) {
	t.Run("no competing bids", func(t *testing.T) {
		report := Competitiveness("t", []models.Bid{bid("w", 10, models.WithdrawnBid, 0)})
		assert.Empty(t, report.Bids)
		assert.Zero(t, report.BidCount)
	})

	t.Run("tied lowest bids", func(t *testing.T) {
		report := Competitiveness("t", []models.Bid{
			bid("late", 100, models.SubmittedBid, time.Hour),
			bid("early", 100, models.SubmittedBid, 0),
		})
		require.Len(t, report.Bids, 2)
		assert.Equal(t, "early", report.Bids[0].BidID)
		assert.True(t, report.Bids[0].IsLowestBid)
		assert.True(t, report.Bids[1].IsLowestBid)
		assert.Equal(t, models.Average, report.Bids[1].Tier)
	})

	t.Run("zero amounts", func(t *testing.T) {
		report := Competitiveness("t", []models.Bid{bid("z", 0, models.SubmittedBid, 0)})
		require.Len(t, report.Bids, 1)
		assert.Zero(t, report.Bids[0].DeviationPercent)
		assert.Equal(t, models.Average, report.Bids[0].Tier)
	})
}
