// Package metrics описывает метрики Prometheus сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hospital"

// Metrics - набор коллекторов сервиса. Методы безопасно вызывать у nil.
type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	RateLimited    prometheus.Counter
	TenderEvents   *prometheus.CounterVec
	BidEvents      *prometheus.CounterVec
	BookingEvents  *prometheus.CounterVec
	BidScoreValues prometheus.Histogram
}

// New регистрирует коллекторы в reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"method", "route"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		TenderEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tender",
			Name:      "events_total",
			Help:      "Tender lifecycle events",
		}, []string{"event"}),
		BidEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bid",
			Name:      "events_total",
			Help:      "Bid lifecycle events",
		}, []string{"event"}),
		BookingEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "booking_events_total",
			Help:      "Ambulance booking events",
		}, []string{"event"}),
		BidScoreValues: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bid",
			Name:      "overall_score",
			Help:      "Overall scores given to bids",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
	}
}

// TenderEvent увеличивает счётчик событий тендеров.
func (m *Metrics) TenderEvent(event string) {
	if m == nil {
		return
	}
	m.TenderEvents.WithLabelValues(event).Inc()
}

// TenderEventN увеличивает счётчик событий тендеров на n.
func (m *Metrics) TenderEventN(event string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.TenderEvents.WithLabelValues(event).Add(float64(n))
}

// BidEvent увеличивает счётчик событий предложений.
func (m *Metrics) BidEvent(event string) {
	if m == nil {
		return
	}
	m.BidEvents.WithLabelValues(event).Inc()
}

// BidScored учитывает итоговую оценку предложения.
func (m *Metrics) BidScored(overall float64) {
	if m == nil {
		return
	}
	m.BidEvents.WithLabelValues("scored").Inc()
	m.BidScoreValues.Observe(overall)
}

// BookingEvent увеличивает счётчик событий вызовов.
func (m *Metrics) BookingEvent(event string) {
	if m == nil {
		return
	}
	m.BookingEvents.WithLabelValues(event).Inc()
}
