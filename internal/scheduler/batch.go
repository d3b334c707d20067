package scheduler

import "github.com/omega-scheduler/omega-sim/internal/cellstate"

// PlacementStrategy selects how BatchScheduler picks among fitting machines.
type PlacementStrategy string

const (
	StrategyFirstFit PlacementStrategy = "first_fit"
	StrategyBestFit  PlacementStrategy = "best_fit"
	StrategyWorstFit PlacementStrategy = "worst_fit"
)

// BatchScheduler is the fast, lightweight strategy for short-lived batch
// jobs. Its select_machine behavior is one of three sub-strategies chosen
// at construction time.
type BatchScheduler struct {
	id       string
	strategy PlacementStrategy
	stats    Stats

	decisionTimeJob  float64
	decisionTimeTask float64
}

func NewBatchScheduler(id string, strategy PlacementStrategy) *BatchScheduler {
	if strategy == "" {
		strategy = StrategyBestFit
	}
	return &BatchScheduler{id: id, strategy: strategy, decisionTimeJob: 0.01, decisionTimeTask: 0.001}
}

func (s *BatchScheduler) ID() string    { return s.id }
func (s *BatchScheduler) Stats() *Stats { return &s.stats }

func (s *BatchScheduler) DecisionTime(taskCount int) float64 {
	return s.decisionTimeJob + s.decisionTimeTask*float64(taskCount)
}

// SetDecisionTimes overrides the default per-job/per-task decision latency,
// wired from config.SchedulerConfig's decision_time_job/decision_time_task.
func (s *BatchScheduler) SetDecisionTimes(perJob, perTask float64) {
	s.decisionTimeJob, s.decisionTimeTask = perJob, perTask
}

// SelectMachine implements the best-fit/worst-fit/first-fit sub-strategies.
// Ties are broken by snapshot iteration order, since the first candidate
// to reach a tied score is kept.
func (s *BatchScheduler) SelectMachine(task *cellstate.Task, snapshot *cellstate.CellState) *cellstate.Machine {
	var best *cellstate.Machine
	var bestScore float64
	first := true

	for _, m := range snapshot.OrderedMachines() {
		if !m.CanFit(task.CPUReq, task.GPUReq, task.MemoryReq) || !task.SatisfiesConstraints(m) {
			continue
		}

		switch s.strategy {
		case StrategyFirstFit:
			return m

		case StrategyBestFit:
			waste := float64(m.AvailableCPU()-task.CPUReq) + (m.AvailableMemory() - task.MemoryReq)
			if first || waste < bestScore {
				bestScore, best, first = waste, m, false
			}

		case StrategyWorstFit:
			remaining := float64(m.AvailableCPU()) + m.AvailableMemory()
			if first || remaining > bestScore {
				bestScore, best, first = remaining, m, false
			}
		}
	}

	return best
}

func (s *BatchScheduler) ScheduleJob(job *cellstate.Job, snapshot *cellstate.CellState) *cellstate.Transaction {
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
