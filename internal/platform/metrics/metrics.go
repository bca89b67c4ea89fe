package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	EmployeesCreated    prometheus.Counter
	TransitionsRecorded *prometheus.CounterVec
	BulkTransitions     prometheus.Counter
	EmployeesDeleted    prometheus.Counter

	NotificationsPublished *prometheus.CounterVec
	NotificationsDropped   prometheus.Counter
	SubscribersConnected   prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EmployeesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "talenttrack_employees_created_total",
			Help: "Total number of employees created",
		}),
		TransitionsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "talenttrack_transitions_recorded_total",
			Help: "Total number of stage transitions committed to the ledger",
		}, []string{"stage"}),
		BulkTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "talenttrack_bulk_transitions_total",
			Help: "Total number of bulk transition commits",
		}),
		EmployeesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "talenttrack_employees_deleted_total",
			Help: "Total number of employees deleted",
		}),
		NotificationsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "talenttrack_notifications_published_total",
			Help: "Total number of change notifications fanned out to subscribers",
		}, []string{"kind"}),
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "talenttrack_notifications_dropped_total",
			Help: "Notifications dropped because a subscriber buffer was full",
		}),
		SubscribersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "talenttrack_subscribers_connected",
			Help: "Currently connected notification subscribers",
		}),
	}
}

func (m *Metrics) IncrementEmployeesCreated() {
	if m != nil {
		m.EmployeesCreated.Inc()
	}
}

func (m *Metrics) IncrementTransitions(stage string) {
	if m != nil {
		m.TransitionsRecorded.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) IncrementBulkTransitions() {
	if m != nil {
		m.BulkTransitions.Inc()
	}
}

func (m *Metrics) IncrementEmployeesDeleted() {
	if m != nil {
		m.EmployeesDeleted.Inc()
	}
}

func (m *Metrics) IncrementNotificationsPublished(kind string) {
	if m != nil {
		m.NotificationsPublished.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementNotificationsDropped() {
	if m != nil {
		m.NotificationsDropped.Inc()
	}
}

func (m *Metrics) AddSubscribers(delta int) {
	if m != nil {
		m.SubscribersConnected.Add(float64(delta))
	}
}
