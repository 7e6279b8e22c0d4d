package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BackgroundMetrics содержит метрики фоновых воркеров: доставка событий заказов
// из outbox и очистка ключей идемпотентности. Методы безопасны для nil.
type BackgroundMetrics struct {
	publishAttempts *prometheus.CounterVec
	pending         prometheus.Gauge
	oldestAge       prometheus.Gauge
	deferred        prometheus.Counter
	cleanupRuns     *prometheus.CounterVec
	cleanupDeleted  prometheus.Counter
	cleanupLast     prometheus.Gauge
}

// NewBackgroundMetrics регистрирует метрики воркеров в registerer.
func NewBackgroundMetrics(registerer prometheus.Registerer) *BackgroundMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &BackgroundMetrics{
		publishAttempts: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodtrack_outbox_publish_attempts_total",
			Help: "Outbox publish attempts grouped by event type and result.",
		}, []string{"event_type", "result"}), "foodtrack_outbox_publish_attempts_total"),
		pending: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "foodtrack_outbox_pending_records",
			Help: "Current number of pending order events in the outbox.",
		}), "foodtrack_outbox_pending_records"),
		oldestAge: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "foodtrack_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending order event.",
		}), "foodtrack_outbox_oldest_pending_age_seconds"),
		deferred: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodtrack_outbox_deferred_total",
			Help: "Order events left pending because an earlier event of the same order failed.",
		}), "foodtrack_outbox_deferred_total"),
		cleanupRuns: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodtrack_idempotency_cleanup_runs_total",
			Help: "Idempotency cleanup runs grouped by result.",
		}, []string{"result"}), "foodtrack_idempotency_cleanup_runs_total"),
		cleanupDeleted: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodtrack_idempotency_cleanup_deleted_total",
			Help: "Expired order placement keys deleted.",
		}), "foodtrack_idempotency_cleanup_deleted_total"),
		cleanupLast: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "foodtrack_idempotency_cleanup_last_deleted",
			Help: "Keys deleted during the last cleanup run.",
		}), "foodtrack_idempotency_cleanup_last_deleted"),
	}
}

// OutboxPublish учитывает попытку публикации: sent, retry_error, failed, dlq_failed.
func (m *BackgroundMetrics) OutboxPublish(eventType, result string) {
	if m == nil {
		return
	}
	m.publishAttempts.WithLabelValues(eventType, result).Inc()
}

// OutboxBacklog выставляет размер очереди и возраст самого старого события.
func (m *BackgroundMetrics) OutboxBacklog(pending int, oldest time.Duration) {
	if m == nil {
		return
	}
	if oldest < 0 {
		oldest = 0
	}
	m.pending.Set(float64(pending))
	m.oldestAge.Set(oldest.Seconds())
}

// OutboxDeferred учитывает события, отложенные до следующего цикла.
func (m *BackgroundMetrics) OutboxDeferred(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deferred.Add(float64(n))
}

// CleanupRun учитывает завершённый прогон очистки.
func (m *BackgroundMetrics) CleanupRun(result string, deleted int) {
	if m == nil {
		return
	}
	m.cleanupRuns.WithLabelValues(result).Inc()
	if result != "ok" {
		return
	}
	m.cleanupLast.Set(float64(deleted))
	if deleted > 0 {
		m.cleanupDeleted.Add(float64(deleted))
	}
}
