//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/hospital-service/internal/db"
	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/router/config"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("hospital_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	conn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations("file://../../migrations", conn))

	pool, err := db.InitDb(ctx, config.Config{PostgresConn: conn, PostgresMaxConns: 20})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresRepositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	tenders := NewPostgresTenderRepository(pool)
	bids := NewPostgresBidRepository(pool)
	vehicles := NewPostgresVehicleRepository(pool)
	bookings := NewPostgresBookingRepository(pool)
	numbers := NewPostgresTenderNumberGenerator(pool)

	t.Run("tender numbers", func(t *testing.T) {
		first, err := numbers.NextTenderNumber(ctx, 2026)
		require.NoError(t, err)
		second, err := numbers.NextTenderNumber(ctx, 2026)
		require.NoError(t, err)
		assert.Equal(t, first+1, second)
	})

	tender := &models.Tender{
		ID:                 uuid.NewString(),
		Number:             "TND-2026-0001",
		Title:              "Ventilators",
		Description:        "ICU ventilators",
		Category:           models.MedicalEquipment,
		Status:             models.ActiveTender,
		SubmissionDeadline: now.Add(48 * time.Hour),
		BudgetMin:          decimal.RequireFromString("1000.50"),
		BudgetMax:          decimal.RequireFromString("5000"),
		Currency:           "KES",
		Attachments:        []string{"https://files.example/ventilators.pdf"},
		CreatedBy:          "procurement-1",
		CreatedAt:          now,
		UpdatedAt:          now,
		Activity:           []models.ActivityEntry{models.NewActivity(models.ActionCreated, "Tender created", "procurement-1", now)},
	}

	t.Run("create and read tender", func(t *testing.T) {
		require.NoError(t, tenders.CreateTender(ctx, tender))
		assert.ErrorIs(t, tenders.CreateTender(ctx, &models.Tender{
			ID: uuid.NewString(), Number: tender.Number, Title: "x", Description: "x", Category: models.OtherCategory,
			Status: models.DraftTender, SubmissionDeadline: now, Currency: "KES", Attachments: []string{},
			CreatedBy: "p", CreatedAt: now, UpdatedAt: now,
		}), ErrDuplicate)

		stored, err := tenders.GetTenderById(ctx, tender.ID)
		require.NoError(t, err)
		assert.True(t, stored.BudgetMin.Equal(tender.BudgetMin))
		assert.Equal(t, tender.Attachments, stored.Attachments)
		require.Len(t, stored.Activity, 1)

		list, err := tenders.GetTenders(ctx, models.TenderFilter{Statuses: []string{"active"}, Search: "ventil", Limit: 5})
		require.NoError(t, err)
		assert.Len(t, list, 1)

		for _, pattern := range []string{"_", "%", `\`} {
			list, err = tenders.GetTenders(ctx, models.TenderFilter{Search: pattern, Limit: 5})
			require.NoError(t, err)
			assert.Empty(t, list, pattern)
		}
	})

	newBid := func(vendor string, amount int64) *models.Bid {
		return &models.Bid{
			ID: uuid.NewString(), TenderID: tender.ID, VendorID: vendor, VendorName: vendor + " Ltd",
			Amount: decimal.NewFromInt(amount), Currency: "KES", TechnicalProposal: "proposal",
			Attachments: []string{}, Status: models.SubmittedBid, CreatedAt: now, UpdatedAt: now,
		}
	}
	entry := models.NewActivity(models.ActionSubmitted, "submitted", "vendor", now)

	winner := newBid("vendor-1", 100)
	loser := newBid("vendor-2", 120)

	t.Run("create bids", func(t *testing.T) {
		require.NoError(t, bids.CreateBid(ctx, winner, entry, entry))
		require.NoError(t, bids.CreateBid(ctx, loser, entry, entry))
		assert.ErrorIs(t, bids.CreateBid(ctx, newBid("vendor-1", 90), entry, entry), ErrDuplicate)

		stored, err := tenders.GetTenderById(ctx, tender.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.BidCount)
	})

	t.Run("score cascades tender", func(t *testing.T) {
		scoreEntry := models.NewActivity(models.ActionScored, "scored", "evaluator", now)
		scored, err := bids.ScoreBid(ctx, winner.ID, models.SubmittedBid, models.UnderReviewBid,
			models.Score{Technical: 80, Financial: 70, Overall: 76, Model: "two_factor", EvaluatedBy: "evaluator"}, scoreEntry)
		require.NoError(t, err)
		assert.Equal(t, 76.0, scored.Score.Overall)

		stored, err := tenders.GetTenderById(ctx, tender.ID)
		require.NoError(t, err)
		assert.Equal(t, models.UnderEvaluationTender, stored.Status)
	})

	t.Run("rankings batch", func(t *testing.T) {
		require.NoError(t, bids.SaveRankings(ctx, tender.ID, map[string]int{winner.ID: 1, loser.ID: 2}))
		competing, err := bids.GetCompetingBids(ctx, tender.ID)
		require.NoError(t, err)
		require.Len(t, competing, 2)
		assert.Equal(t, 1, competing[0].Ranking)
		assert.Equal(t, 2, competing[1].Ranking)
	})

	t.Run("award", func(t *testing.T) {
		awarded, err := tenders.AwardTender(ctx, tender.ID, winner.ID, "procurement-1", now)
		require.NoError(t, err)
		assert.Equal(t, models.AwardedTender, awarded.Status)
		assert.Equal(t, "vendor-1 Ltd", awarded.AwardedTo)

		rejected, err := bids.GetBidById(ctx, loser.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RejectedBid, rejected.Status)
	})

	t.Run("concurrent dispatch", func(t *testing.T) {
		for _, reg := range []string{"KAA 001", "KAA 002"} {
			require.NoError(t, vehicles.CreateVehicle(ctx, &models.Vehicle{
				ID: uuid.NewString(), RegistrationNumber: reg, Type: "Ambulance",
				Status: models.AvailableVehicle, CreatedAt: now, UpdatedAt: now,
			}))
		}

		const callers = 6
		created := make([]*models.Booking, callers)
		var wg sync.WaitGroup
		for i := range created {
			created[i] = &models.Booking{
				ID: uuid.NewString(), PatientName: "Jane", Phone: "0712345678", PickupAddress: "Ward 4",
				RequestedBy: "staff-1", CreatedAt: now, UpdatedAt: now,
			}
			wg.Add(1)
			go func(b *models.Booking) {
				defer wg.Done()
				assert.NoError(t, bookings.CreateBooking(ctx, b))
			}(created[i])
		}
		wg.Wait()

		claimed := map[string]int{}
		for _, b := range created {
			if b.VehicleID != nil {
				claimed[*b.VehicleID]++
			}
		}
		assert.Len(t, claimed, 2)
		for _, count := range claimed {
			assert.Equal(t, 1, count)
		}

		for _, b := range created {
			if b.VehicleID == nil {
				continue
			}
			_, err := bookings.UpdateBookingStatus(ctx, b.ID, models.AssignedBooking, models.CancelledBooking, "test", now)
			require.NoError(t, err)
			vehicle, err := vehicles.GetVehicleById(ctx, *b.VehicleID)
			require.NoError(t, err)
			assert.Equal(t, models.AvailableVehicle, vehicle.Status)
		}
	})

	t.Run("delete cascade", func(t *testing.T) {
		deleted, err := tenders.DeleteTenders(ctx, []string{tender.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		_, err = bids.GetBidById(ctx, winner.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
