package simulate

import "github.com/omega-scheduler/omega-sim/internal/scheduler"

// Results is the structured record produced by Simulator.Run. JSON tags
// let the CLI marshal this directly; no serialization logic lives in this
// package.
type Results struct {
	SimulationTime    float64                        `json:"simulation_time"`
	CompletedJobs     int                            `json:"completed_jobs"`
	FailedJobs        int                            `json:"failed_jobs"`
	AvgJobDuration    *float64                       `json:"avg_job_duration,omitempty"`
	MedianJobDuration *float64                       `json:"median_job_duration,omitempty"`
	Schedulers        map[string]scheduler.StatsView `json:"schedulers"`
	CellState         CellStateResults               `json:"cell_state"`
}

// CellStateResults mirrors cellstate.Stats with stable JSON field names
// for the CLI's output format.
type CellStateResults struct {
	TotalTransactions int64              `json:"total_transactions"`
	TotalCommits      int64              `json:"total_commits"`
	TotalConflicts    int64              `json:"total_conflicts"`
	ConflictRate      float64            `json:"conflict_rate"`
	Utilization       UtilizationResults `json:"utilization"`
}

type UtilizationResults struct {
	CPU    float64 `json:"cpu"`
	GPU    float64 `json:"gpu"`
	Memory float64 `json:"memory"`
}
