// Package metrics defines and registers all custom Prometheus metrics for the
// discipline kernel. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on import via
// promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "discipline"

// ── Cycle metrics ─────────────────────────────────────────────────────────────

// CyclesTotal counts kernel cycles by outcome.
// Label:
//   - outcome: "ok", "user_not_found", "in_progress", "error"
var CyclesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Total number of kernel cycles, by outcome.",
	},
	[]string{"outcome"},
)

// CycleStageDuration measures each pipeline stage.
// Label:
//   - stage: "lifecycle", "pipeline", "scoring", "total"
var CycleStageDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_stage_duration_seconds",
		Help:      "Duration of kernel cycle stages.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"stage"},
)

// InstancesMaterializedTotal counts instances created by materialization.
var InstancesMaterializedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "instances_materialized_total",
		Help:      "Total number of action instances materialized.",
	},
)

// ── Enforcement metrics ───────────────────────────────────────────────────────

// ViolationsTotal counts violations published, by enforcement mode.
var ViolationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "violations_total",
		Help:      "Total number of violations detected, by enforcement mode.",
	},
	[]string{"mode"},
)

// LockoutsTotal counts lockouts applied to users.
var LockoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lockouts_total",
		Help:      "Total number of account lockouts applied.",
	},
)

// ── Observer metrics ──────────────────────────────────────────────────────────

// AuditWriteFailuresTotal counts audit records that could not be written.
var AuditWriteFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_failures_total",
		Help:      "Total number of audit log writes that failed and were dropped.",
	},
)

// BusHandlerFailuresTotal counts event handlers that returned an error or panicked.
// Label:
//   - handler: the name the observer registered with
var BusHandlerFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_handler_failures_total",
		Help:      "Total number of event handler failures isolated by the bus.",
	},
	[]string{"handler"},
)

// ── Dispatch metrics ──────────────────────────────────────────────────────────

// JobsQueueDepth tracks the current number of jobs waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var JobsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_queue_depth",
		Help:      "Current number of cycle jobs pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// JobsDedupTotal counts deduplication decisions.
// Label:
//   - result: "hit" (duplicate, skipped) or "miss" (new job, processed)
var JobsDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_dedup_total",
		Help:      "Total number of job deduplication checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// ScheduledRunsTotal counts cron trigger executions.
// Label:
//   - trigger: "sweep" or "daily"
var ScheduledRunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduled_runs_total",
		Help:      "Total number of scheduled trigger runs.",
	},
	[]string{"trigger"},
)
