// Package telemetry exposes Prometheus metrics mirroring CellState and
// per-scheduler statistics. This is a reporting side-channel only: the
// simulator never reads from it, only pushes into it after a run.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CellConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omega_cell_conflicts_total",
			Help: "Total number of conflicted placements across all commit attempts",
		},
	)

	CellCommitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omega_cell_commits_total",
			Help: "Total number of transactions that committed at least one placement",
		},
	)

	CellTransactionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omega_cell_transactions_total",
			Help: "Total number of transactions submitted to CommitTransaction",
		},
	)

	CellUtilization = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omega_cell_utilization",
			Help: "Fractional cluster resource utilization by dimension",
		},
		[]string{"resource"},
	)

	SchedulerJobsScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omega_scheduler_jobs_scheduled_total",
			Help: "Total number of jobs scheduled per scheduler",
		},
		[]string{"scheduler_id"},
	)

	SchedulerTasksScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omega_scheduler_tasks_scheduled_total",
			Help: "Total number of tasks scheduled per scheduler",
		},
		[]string{"scheduler_id"},
	)

	SchedulerConflictRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omega_scheduler_conflict_rate",
			Help: "Fraction of attempted placements that conflicted, per scheduler",
		},
		[]string{"scheduler_id"},
	)

	SchedulerBusyTime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omega_scheduler_busy_time_seconds",
			Help: "Cumulative simulated decision time spent by a scheduler",
		},
		[]string{"scheduler_id"},
	)

	JobsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omega_jobs_completed_total",
			Help: "Total number of jobs that completed within the simulation horizon",
		},
	)

	JobsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omega_jobs_failed_total",
			Help: "Total number of jobs that exhausted their retry budget",
		},
	)
)

func init() {
	prometheus.MustRegister(CellConflictsTotal)
	prometheus.MustRegister(CellCommitsTotal)
	prometheus.MustRegister(CellTransactionsTotal)
	prometheus.MustRegister(CellUtilization)
	prometheus.MustRegister(SchedulerJobsScheduled)
	prometheus.MustRegister(SchedulerTasksScheduled)
	prometheus.MustRegister(SchedulerConflictRate)
	prometheus.MustRegister(SchedulerBusyTime)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
