package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/senyabanana/hospital-service/internal/metrics"
	"github.com/senyabanana/hospital-service/internal/models"
	"github.com/senyabanana/hospital-service/internal/repository/memory"
	"github.com/senyabanana/hospital-service/internal/scoring"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	procurement = models.User{ID: "procurement-1", Name: "Grace Procurement", Role: models.ProcurementRole}
	admin       = models.User{ID: "admin-1", Name: "Admin", Role: models.AdminRole}
	vendorA     = models.User{ID: "vendor-a", Name: "Acme Medical", Role: models.VendorRole}
	vendorB     = models.User{ID: "vendor-b", Name: "Beta Supplies", Role: models.VendorRole}
	vendorC     = models.User{ID: "vendor-c", Name: "Gamma Health", Role: models.VendorRole}
	dispatcher  = models.User{ID: "dispatcher-1", Name: "Dan Dispatch", Role: models.DispatcherRole}
	staff       = models.User{ID: "staff-1", Name: "Nurse Joy", Role: models.StaffRole}
	otherStaff  = models.User{ID: "staff-2", Name: "Nurse Ann", Role: models.StaffRole}
)

type testEnv struct {
	store    *memory.Store
	metrics  *metrics.Metrics
	tenders  *TenderService
	bids     *BidService
	dispatch *DispatchService
	vehicles *VehicleService
}

func newTestEnv(t *testing.T, model scoring.Model) *testEnv {
	t.Helper()
	clock := func() time.Time { return fixedNow }

	store := memory.NewStore()
	store.Now = clock
	m := metrics.New(prometheus.NewRegistry())

	env := &testEnv{
		store:    store,
		metrics:  m,
		tenders:  NewTenderService(store, store, m, "KES"),
		bids:     NewBidService(store, store, m, model),
		dispatch: NewDispatchService(store, m),
		vehicles: NewVehicleService(store),
	}
	env.tenders.Now = clock
	env.bids.Now = clock
	env.dispatch.Now = clock
	env.vehicles.Now = clock
	return env
}

func (e *testEnv) activeTender(t *testing.T) *models.Tender {
	t.Helper()
	tender, err := e.tenders.CreateTender(context.Background(), models.TenderRequest{
		Title:              "ICU ventilators",
		Description:        "Supply of 10 ICU ventilators",
		Category:           models.MedicalEquipment,
		Status:             models.ActiveTender,
		SubmissionDeadline: fixedNow.Add(7 * 24 * time.Hour),
		BudgetMin:          decimal.NewFromInt(100),
		BudgetMax:          decimal.NewFromInt(500),
	}, procurement)
	require.NoError(t, err)
	return tender
}

func (e *testEnv) submitBid(t *testing.T, tenderId string, vendor models.User, amount int64) *models.Bid {
	t.Helper()
	bid, err := e.bids.CreateBid(context.Background(), models.BidRequest{
		TenderID:          tenderId,
		Amount:            decimal.NewFromInt(amount),
		TechnicalProposal: "Full technical proposal",
	}, vendor)
	require.NoError(t, err)
	return bid
}

func assertStatus(t *testing.T, err error, code int) {
	t.Helper()
	var errResp *models.ErrorResponse
	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, code, errResp.StatusCode, errResp.Message)
}

func TestMapRepoError(t *testing.T) {
	assert.NoError(t, mapRepoError(nil, repoMessages{}))

	err := mapRepoError(assert.AnError, repoMessages{notFound: "missing", description: "load"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "load")

	assertStatus(t, validateID("not-a-uuid", "tender"), http.StatusBadRequest)
}
