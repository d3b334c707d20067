package telemetry

// Report pushes one simulation run's results record into the package-level
// gauges and counters. Counters only ever move forward, so calling Report
// more than once within a process (e.g. from a comparison harness running
// several configurations back to back) double-counts totals by design,
// matching how a long-lived process would accumulate them across runs.
func Report(result ResultSource) {
	CellTransactionsTotal.Add(float64(result.TotalTransactions()))
	CellCommitsTotal.Add(float64(result.TotalCommits()))
	CellConflictsTotal.Add(float64(result.TotalConflicts()))

	cpu, gpu, mem := result.Utilization()
	CellUtilization.WithLabelValues("cpu").Set(cpu)
	CellUtilization.WithLabelValues("gpu").Set(gpu)
	CellUtilization.WithLabelValues("memory").Set(mem)

	JobsCompletedTotal.Add(float64(result.CompletedJobs()))
	JobsFailedTotal.Add(float64(result.FailedJobs()))

	for _, s := range result.SchedulerStats() {
		SchedulerJobsScheduled.WithLabelValues(s.ID).Add(float64(s.JobsScheduled))
		SchedulerTasksScheduled.WithLabelValues(s.ID).Add(float64(s.TasksScheduled))
		SchedulerConflictRate.WithLabelValues(s.ID).Set(s.ConflictRate)
		SchedulerBusyTime.WithLabelValues(s.ID).Set(s.BusyTime)
	}
}

// SchedulerReport is the subset of a scheduler's StatsView this package
// needs, named locally so telemetry doesn't import the scheduler package
// just to read four fields.
type SchedulerReport struct {
	ID             string
	JobsScheduled  int64
	TasksScheduled int64
	ConflictRate   float64
	BusyTime       float64
}

// ResultSource is the subset of simulate.Results this package needs,
// named locally to avoid a dependency from telemetry onto simulate: the
// caller adapts its own Results value to this interface at the call site.
type ResultSource interface {
	TotalTransactions() int64
	TotalCommits() int64
	TotalConflicts() int64
	Utilization() (cpu, gpu, memory float64)
	CompletedJobs() int
	FailedJobs() int
	SchedulerStats() []SchedulerReport
}
