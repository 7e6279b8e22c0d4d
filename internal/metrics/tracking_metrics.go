// Package metrics содержит бизнес-метрики заказов и трекинга.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TrackingMetrics содержит метрики жизненного цикла заказа и живого трекинга.
// Методы безопасны для nil-получателя.
type TrackingMetrics struct {
	ordersPlaced     prometheus.Counter
	placeFailures    *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	locationUpdates  *prometheus.CounterVec
	etaMinutes       prometheus.Histogram
	timelineEvents   prometheus.Counter
	outboxEnqueued   *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	wsConnections    prometheus.Gauge
}

// NewTrackingMetrics регистрирует метрики в DefaultRegisterer.
func NewTrackingMetrics() *TrackingMetrics {
	return NewTrackingMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewTrackingMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewTrackingMetricsWithRegisterer(registerer prometheus.Registerer) *TrackingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &TrackingMetrics{
		ordersPlaced: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodtrack_orders_placed_total",
			Help: "Total number of orders placed.",
		}), "foodtrack_orders_placed_total"),
		placeFailures: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodtrack_order_place_failures_total",
			Help: "Order placement failures grouped by reason.",
		}, []string{"reason"}), "foodtrack_order_place_failures_total"),
		transitions: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodtrack_status_transitions_total",
			Help: "Accepted order status transitions grouped by target status.",
		}, []string{"status"}), "foodtrack_status_transitions_total"),
		locationUpdates: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodtrack_driver_location_updates_total",
			Help: "Driver location updates grouped by result.",
		}, []string{"result"}), "foodtrack_driver_location_updates_total"),
		etaMinutes: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "foodtrack_eta_minutes",
			Help:    "Estimated delivery duration computed at confirmation, in minutes.",
			Buckets: []float64{30, 40, 45, 50, 55, 60, 70, 80, 90},
		}), "foodtrack_eta_minutes"),
		timelineEvents: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodtrack_timeline_events_total",
			Help: "Total number of timeline events recorded.",
		}), "foodtrack_timeline_events_total"),
		outboxEnqueued: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodtrack_outbox_enqueued_total",
			Help: "Domain events written to the outbox grouped by event type.",
		}, []string{"event_type"}), "foodtrack_outbox_enqueued_total"),
		operationLatency: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "foodtrack_operation_duration_seconds",
			Help:    "Duration of order service operations.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}), "foodtrack_operation_duration_seconds"),
		wsConnections: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "foodtrack_tracking_ws_connections",
			Help: "Currently open live tracking websocket connections.",
		}), "foodtrack_tracking_ws_connections"),
	}
}

// OrderPlaced учитывает успешно оформленный заказ.
func (m *TrackingMetrics) OrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// OrderPlaceFailed учитывает отказ в оформлении.
func (m *TrackingMetrics) OrderPlaceFailed(reason string) {
	if m == nil {
		return
	}
	m.placeFailures.WithLabelValues(reason).Inc()
}

// StatusTransition учитывает принятый переход статуса.
func (m *TrackingMetrics) StatusTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// LocationUpdate учитывает обновление координат водителя.
func (m *TrackingMetrics) LocationUpdate(result string) {
	if m == nil {
		return
	}
	m.locationUpdates.WithLabelValues(result).Inc()
}

// ETAComputed записывает рассчитанный ETA.
func (m *TrackingMetrics) ETAComputed(d time.Duration) {
	if m == nil {
		return
	}
	m.etaMinutes.Observe(d.Minutes())
}

// TimelineEvent учитывает запись в таймлайн.
func (m *TrackingMetrics) TimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// OutboxEnqueued учитывает событие, поставленное в outbox.
func (m *TrackingMetrics) OutboxEnqueued(eventType string) {
	if m == nil {
		return
	}
	m.outboxEnqueued.WithLabelValues(eventType).Inc()
}

// ObserveOperation записывает длительность операции сервиса.
func (m *TrackingMetrics) ObserveOperation(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.operationLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// WebsocketOpened / WebsocketClosed отслеживают открытые live-соединения.
func (m *TrackingMetrics) WebsocketOpened() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

func (m *TrackingMetrics) WebsocketClosed() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}
