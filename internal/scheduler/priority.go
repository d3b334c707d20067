package scheduler

import (
	"sort"

	"github.com/omega-scheduler/omega-sim/internal/cellstate"
)

// PriorityScheduler places tasks by available-CPU-descending order, falling
// back to an abstract preemption hook when no machine currently fits: it
// accepts any machine whose total capacity (not current availability) meets
// the demand, an abstract stand-in for preemption. Victim selection is not
// modeled.
type PriorityScheduler struct {
	id                string
	PreemptionEnabled bool
	stats             Stats

	decisionTimeJob  float64
	decisionTimeTask float64
}

func NewPriorityScheduler(id string) *PriorityScheduler {
	return &PriorityScheduler{id: id, PreemptionEnabled: true, decisionTimeJob: 0.5, decisionTimeTask: 0.01}
}

func (s *PriorityScheduler) ID() string    { return s.id }
func (s *PriorityScheduler) Stats() *Stats { return &s.stats }

func (s *PriorityScheduler) DecisionTime(taskCount int) float64 {
	return s.decisionTimeJob + s.decisionTimeTask*float64(taskCount)
}

// SetDecisionTimes overrides the default per-job/per-task decision latency,
// wired from config.SchedulerConfig's decision_time_job/decision_time_task.
func (s *PriorityScheduler) SetDecisionTimes(perJob, perTask float64) {
	s.decisionTimeJob, s.decisionTimeTask = perJob, perTask
}

func (s *PriorityScheduler) SelectMachine(task *cellstate.Task, snapshot *cellstate.CellState) *cellstate.Machine {
	machines := snapshot.OrderedMachines()
	sort.SliceStable(machines, func(i, j int) bool {
		return machines[i].AvailableCPU() > machines[j].AvailableCPU()
	})
	for _, m := range machines {
		if m.CanFit(task.CPUReq, task.GPUReq, task.MemoryReq) && task.SatisfiesConstraints(m) {
			return m
		}
	}
	return nil
}

// findPreemptableMachine returns any machine whose total (not available)
// capacity could hold the task, regardless of current allocation.
func (s *PriorityScheduler) findPreemptableMachine(task *cellstate.Task, snapshot *cellstate.CellState) *cellstate.Machine {
	for _, m := range snapshot.OrderedMachines() {
		if m.CPU >= task.CPUReq && m.GPU >= task.GPUReq && m.Memory >= task.MemoryReq {
			return m
		}
	}
	return nil
}

func (s *PriorityScheduler) ScheduleJob(job *cellstate.Job, snapshot *cellstate.CellState) *cellstate.Transaction {
	tx := cellstate.NewTransaction(s.id)

	for _, task := range job.Tasks {
		if task.Assigned() {
			continue
		}

		if m := s.SelectMachine(task, snapshot); m != nil {
			tx.AddPlacement(task, m.ID, m.Version)
			applyTentative(m, task)
			continue
		}

		if !s.PreemptionEnabled {
			continue
		}
		if m := s.findPreemptableMachine(task, snapshot); m != nil {
			tx.AddPlacement(task, m.ID, m.Version)
		}
	}

	if len(tx.Placements) == 0 {
		return nil
	}
	return tx
}
