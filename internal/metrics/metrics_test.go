package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TenderEvent("created")
	m.TenderEvent("created")
	m.TenderEventN("deleted", 3)
	m.TenderEventN("deleted", 0)
	m.BidScored(76)
	m.BookingEvent("waiting")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TenderEvents.WithLabelValues("created")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TenderEvents.WithLabelValues("deleted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BidEvents.WithLabelValues("scored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingEvents.WithLabelValues("waiting")))

	count, err := testutil.GatherAndCount(reg, "hospital_bid_overall_score")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TenderEvent("created")
		m.TenderEventN("deleted", 2)
		m.BidEvent("submitted")
		m.BidScored(50)
		m.BookingEvent("assigned")
	})
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
