package scheduler

import "github.com/omega-scheduler/omega-sim/internal/cellstate"

// FirstFitScheduler is the baseline placement strategy: scan machines in
// snapshot insertion order and take the first fit.
type FirstFitScheduler struct {
	id    string
	stats Stats
}

func NewFirstFitScheduler(id string) *FirstFitScheduler {
	return &FirstFitScheduler{id: id}
}

func (s *FirstFitScheduler) ID() string    { return s.id }
func (s *FirstFitScheduler) Stats() *Stats { return &s.stats }

func (s *FirstFitScheduler) DecisionTime(taskCount int) float64 {
	return 0.1 + 0.005*float64(taskCount)
}

func (s *FirstFitScheduler) SelectMachine(task *cellstate.Task, snapshot *cellstate.CellState) *cellstate.Machine {
	for _, m := range snapshot.OrderedMachines() {
		if m.CanFit(task.CPUReq, task.GPUReq, task.MemoryReq) && task.SatisfiesConstraints(m) {
			return m
		}
	}
	return nil
}

func (s *FirstFitScheduler) ScheduleJob(job *cellstate.Job, snapshot *cellstate.CellState) *cellstate.Transaction {
	tx := cellstate.NewTransaction(s.id)

	for _, task := range job.Tasks {
		if task.Assigned() {
			continue
		}
		m := s.SelectMachine(task, snapshot)
		if m == nil {
			continue
		}
		tx.AddPlacement(task, m.ID, m.Version)
		applyTentative(m, task)
	}

	if len(tx.Placements) == 0 {
		return nil
	}
	return tx
}
