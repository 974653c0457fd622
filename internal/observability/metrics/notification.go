package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics contains all Prometheus metrics related to alert fan-out.
type NotificationMetrics struct {
	DeliveriesTotal      *prometheus.CounterVec   // Delivery attempts by channel and status
	DeliveryDuration     *prometheus.HistogramVec // Delivery latency by channel
	DedupSkipsTotal      *prometheus.CounterVec   // Sends suppressed by the idempotency log, by channel
	GeoRejectionsTotal   prometheus.Counter       // Recipients filtered out by distance
	WebhookTriggersTotal *prometheus.CounterVec   // Webhook triggers by status

	registry *prometheus.Registry
}

// NewNotificationMetrics creates a new instance of NotificationMetrics.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize notification metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

func (m *NotificationMetrics) initMetrics() error {
	m.DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Total number of notification delivery attempts by channel and status",
		},
		[]string{"channel", "status"}, // status: sent, failed
	)

	m.DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_delivery_duration_seconds",
			Help:    "Time taken for notification delivery by channel",
			Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"channel"},
	)

	m.DedupSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dedup_skips_total",
			Help: "Total number of sends suppressed by the notification log, by channel",
		},
		[]string{"channel"},
	)

	m.GeoRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_geo_rejections_total",
			Help: "Total number of recipients filtered out by distance",
		},
	)

	m.WebhookTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_webhook_triggers_total",
			Help: "Total number of admin webhook triggers by status",
		},
		[]string{"status"},
	)

	return nil
}

// RecordDelivery records one delivery attempt and its latency.
func (m *NotificationMetrics) RecordDelivery(channel, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(channel, status).Inc()
	m.DeliveryDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordDedupSkip records a send suppressed by the idempotency log.
func (m *NotificationMetrics) RecordDedupSkip(channel string) {
	if m == nil {
		return
	}
	m.DedupSkipsTotal.WithLabelValues(channel).Inc()
}

// RecordGeoRejection records a recipient filtered out by distance.
func (m *NotificationMetrics) RecordGeoRejection() {
	if m == nil {
		return
	}
	m.GeoRejectionsTotal.Inc()
}

// RecordWebhookTrigger records one admin webhook trigger.
func (m *NotificationMetrics) RecordWebhookTrigger(status string) {
	if m == nil {
		return
	}
	m.WebhookTriggersTotal.WithLabelValues(status).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DeliveriesTotal.Collect(ch)
	m.DeliveryDuration.Collect(ch)
	m.DedupSkipsTotal.Collect(ch)
	m.GeoRejectionsTotal.Collect(ch)
	m.WebhookTriggersTotal.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DeliveriesTotal.Describe(ch)
	m.DeliveryDuration.Describe(ch)
	m.DedupSkipsTotal.Describe(ch)
	m.GeoRejectionsTotal.Describe(ch)
	m.WebhookTriggersTotal.Describe(ch)
}
