package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchedulerMetrics holds Prometheus metrics for scheduler observability.
// Generation metrics include tenant_id for multi-tenant dashboard
// segmentation; pass-level metrics are global.
type SchedulerMetrics struct {
	// Pass-level
	PassesTotal      prometheus.Counter
	PassDuration     prometheus.Histogram
	TemplatesScanned prometheus.Counter

	// Per-template outcomes
	InvoicesGenerated   *prometheus.CounterVec
	GenerationFailures  *prometheus.CounterVec
	TemplatesCompleted  *prometheus.CounterVec
	ClaimConflicts      prometheus.Counter
	ConsecutiveFailures *prometheus.GaugeVec
}

// Scheduler is the package-level scheduler metrics instance.
var Scheduler = NewSchedulerMetrics()

// NewSchedulerMetrics creates and registers scheduler metrics.
func NewSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{
		PassesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "skuld",
			Name:      "scheduler_passes_total",
			Help:      "Total number of scheduler passes",
		}),
		PassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "skuld",
			Name:      "scheduler_pass_duration_seconds",
			Help:      "Duration of scheduler passes in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		TemplatesScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "skuld",
			Name:      "scheduler_templates_scanned_total",
			Help:      "Total number of due templates scanned",
		}),
		InvoicesGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skuld",
			Name:      "scheduler_invoices_generated_total",
			Help:      "Total number of invoices generated from templates",
		}, []string{"tenant_id"}),
		GenerationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skuld",
			Name:      "scheduler_generation_failures_total",
			Help:      "Total number of failed generation attempts",
		}, []string{"tenant_id"}),
		TemplatesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skuld",
			Name:      "scheduler_templates_completed_total",
			Help:      "Total number of templates auto-completed on end date",
		}, []string{"tenant_id"}),
		ClaimConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "skuld",
			Name:      "scheduler_claim_conflicts_total",
			Help:      "Total number of claim races lost to another worker",
		}),
		ConsecutiveFailures: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "skuld",
			Name:      "scheduler_consecutive_failures",
			Help:      "Consecutive generation failures per template; alert when high",
		}, []string{"template_id"}),
	}
}
