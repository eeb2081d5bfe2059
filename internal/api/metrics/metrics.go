// Package metrics defines and registers all custom Prometheus metrics for the
// DentalCare visit scheduling API. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// init through promauto and exposed by the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dentalcare"

// ── Visit metrics ─────────────────────────────────────────────────────────────

// VisitMutationsTotal counts visit writes handled by the API.
// Labels:
//   - op: "create", "update", "status" or "delete"
//   - result: "ok", "conflict", "busy" or "error"
var VisitMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "visit_mutations_total",
		Help:      "Total number of visit mutations, by operation and result.",
	},
	[]string{"op", "result"},
)

// SchedulingConflictsTotal counts bookings rejected because the clinic was
// already occupied.
var SchedulingConflictsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduling_conflicts_total",
		Help:      "Total number of visit writes rejected by the overlap check.",
	},
)

// ScheduleLockWait measures how long a writer waited for a clinic schedule lock.
// Label:
//   - result: "acquired" or "timeout"
var ScheduleLockWait = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "schedule_lock_wait_seconds",
		Help:      "Time spent waiting for a per-clinic schedule lock.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	},
	[]string{"result"},
)

// ── Notification metrics ──────────────────────────────────────────────────────

// NotificationsTotal counts delivery attempts.
// Labels:
//   - template: the mail template name (e.g. "visit-scheduled-patient")
//   - result: "sent", "duplicate" or "failed"
var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of notification deliveries, by template and result.",
	},
	[]string{"template", "result"},
)

// NotificationsDroppedTotal counts messages discarded because the in-process
// queue was full.
var NotificationsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dropped_total",
		Help:      "Total number of notifications dropped on a full queue.",
	},
)

// NotificationQueueDepth tracks pending messages in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var NotificationQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notification_queue_depth",
		Help:      "Current number of notifications pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
