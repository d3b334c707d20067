// Package scheduler implements the scheduler contract, the shared retry
// loop, and the concrete placement strategies: first-fit, batch
// (best/worst-fit), weighted round-robin, service (score-based with
// anti-affinity), MapReduce (opportunistic scaling), priority
// (preemption), and random.
package scheduler

import (
	"github.com/omega-scheduler/omega-sim/internal/cellstate"
)

// Scheduler produces a Transaction for a Job against a snapshot of
// CellState, and selects a single machine for one task. Strategies share
// the retry loop below by composition, not by embedding shared state.
type Scheduler interface {
	ID() string
	ScheduleJob(job *cellstate.Job, snapshot *cellstate.CellState) *cellstate.Transaction
	SelectMachine(task *cellstate.Task, snapshot *cellstate.CellState) *cellstate.Machine
	Stats() *Stats

	// DecisionTime reports the simulated seconds a scheduling decision over
	// taskCount tasks takes for this scheduler, mirroring the source's
	// decision_time_per_job + decision_time_per_task*len(job.tasks). The
	// simulator does not advance its clock during an attempt; it uses this
	// amount as the gap before a scheduler with queued jobs wakes again.
	DecisionTime(taskCount int) float64
}

// Stats accumulates the bookkeeping every scheduler tracks independently:
// owned exclusively by the scheduler that mutates it, never touched by
// another goroutine.
type Stats struct {
	JobsScheduled        int64
	TasksScheduled       int64
	ConflictsEncountered int64
	TotalDecisionTime    float64 // simulated seconds spent deciding
	BusyTime             float64 // simulated seconds spent in attempt_schedule
	JobWaitTimes         []float64
}

// StatsView is the derived, read-only view used for reporting: avg_wait_time
// and conflict_rate are computed on read rather than tracked incrementally.
type StatsView struct {
	SchedulerID       string  `json:"scheduler_id"`
	JobsScheduled     int64   `json:"jobs_scheduled"`
	TasksScheduled    int64   `json:"tasks_scheduled"`
	Conflicts         int64   `json:"conflicts"`
	ConflictRate      float64 `json:"conflict_rate"`
	TotalDecisionTime float64 `json:"total_decision_time"`
	BusyTime          float64 `json:"busy_time"`
	AvgWaitTime       float64 `json:"avg_wait_time"`
}

func (s *Stats) View(schedulerID string) StatsView {
	var conflictRate float64
	if s.TasksScheduled > 0 {
		conflictRate = float64(s.ConflictsEncountered) / float64(s.TasksScheduled)
	}
	var avgWait float64
	if len(s.JobWaitTimes) > 0 {
		var sum float64
		for _, w := range s.JobWaitTimes {
			sum += w
		}
		avgWait = sum / float64(len(s.JobWaitTimes))
	}
	return StatsView{
		SchedulerID:       schedulerID,
		JobsScheduled:     s.JobsScheduled,
		TasksScheduled:    s.TasksScheduled,
		Conflicts:         s.ConflictsEncountered,
		ConflictRate:      conflictRate,
		TotalDecisionTime: s.TotalDecisionTime,
		BusyTime:          s.BusyTime,
		AvgWaitTime:       avgWait,
	}
}

// DefaultMaxRetries is attempt_schedule's default retry budget.
const DefaultMaxRetries = 5

// AttemptSchedule drives the snapshot -> decide -> commit -> retry loop
// shared by every scheduler. onDecisionTime, when non-nil, is called once
// per attempt with the simulated time that scheduling decision took; pass
// nil when the caller has no use for it (the simulator passes nil).
func AttemptSchedule(
	sch Scheduler,
	cell *cellstate.CellState,
	job *cellstate.Job,
	maxRetries int,
	incremental bool,
	onDecisionTime func(seconds float64),
) bool {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	stats := sch.Stats()

	for attempt := 0; attempt < maxRetries; attempt++ {
		snap := cell.Snapshot()

		decision := sch.DecisionTime(len(job.Tasks))
		stats.TotalDecisionTime += decision
		stats.BusyTime += decision
		if onDecisionTime != nil {
			onDecisionTime(decision)
		}

		tx := sch.ScheduleJob(job, snap)
		if tx == nil || len(tx.Placements) == 0 {
			return false
		}

		success, conflicts := cell.CommitTransaction(tx, incremental)
		if success {
			stats.JobsScheduled++
			stats.TasksScheduled += int64(len(tx.Placements))
			return true
		}

		stats.ConflictsEncountered += int64(len(conflicts))

		if incremental && len(conflicts) < len(tx.Placements) {
			stats.JobsScheduled++
			stats.TasksScheduled += int64(len(tx.Placements) - len(conflicts))
			return true
		}
		// Gang scheduling, or incremental with everything conflicted: retry.
	}

	return false
}

// applyTentative books a task against its chosen machine immediately on
// the scheduler's private snapshot copy, so a later task in the same job
// sees the reduced availability instead of double-booking it.
func applyTentative(m *cellstate.Machine, t *cellstate.Task) {
	m.AllocatedCPU += t.CPUReq
	m.AllocatedGPU += t.GPUReq
	m.AllocatedMemory += t.MemoryReq
}

