package scheduler

import "github.com/omega-scheduler/omega-sim/internal/cellstate"

// WeightedRoundRobinScheduler rotates through snapshot machines in order,
// placing each task on the next fitting one. Weights bias how many
// consecutive rotation slots a job of a given type consumes per task.
type WeightedRoundRobinScheduler struct {
	id      string
	weights map[string]float64

	currentIndex int
	stats        Stats

	decisionTimeJob  float64
	decisionTimeTask float64
}

func NewWeightedRoundRobinScheduler(id string, weights map[string]float64) *WeightedRoundRobinScheduler {
	return &WeightedRoundRobinScheduler{id: id, weights: weights, decisionTimeJob: 0.02, decisionTimeTask: 0.002}
}

func (s *WeightedRoundRobinScheduler) ID() string    { return s.id }
func (s *WeightedRoundRobinScheduler) Stats() *Stats { return &s.stats }

func (s *WeightedRoundRobinScheduler) DecisionTime(taskCount int) float64 {
	return s.decisionTimeJob + s.decisionTimeTask*float64(taskCount)
}

// SetDecisionTimes overrides the default per-job/per-task decision latency,
// wired from config.SchedulerConfig's decision_time_job/decision_time_task.
func (s *WeightedRoundRobinScheduler) SetDecisionTimes(perJob, perTask float64) {
	s.decisionTimeJob, s.decisionTimeTask = perJob, perTask
}

func (s *WeightedRoundRobinScheduler) weightFor(jobType cellstate.JobType) float64 {
	if s.weights == nil {
		return 1.0
	}
	if w, ok := s.weights[string(jobType)]; ok {
		return w
	}
	return 1.0
}

func (s *WeightedRoundRobinScheduler) SelectMachine(task *cellstate.Task, snapshot *cellstate.CellState) *cellstate.Machine {
	machines := snapshot.OrderedMachines()
	if len(machines) == 0 {
		return nil
	}
	for range machines {
		m := machines[s.currentIndex%len(machines)]
		s.currentIndex++
		if m.CanFit(task.CPUReq, task.GPUReq, task.MemoryReq) && task.SatisfiesConstraints(m) {
			return m
		}
	}
	return nil
}

// ScheduleJob rotates the shared index once per task, but a job whose type
// carries weight >= 2 skips int(weight)-1 extra rotation steps after each
// placed task — biasing how much of the ring a heavier job type
// consumes relative to the default weight of 1.0.
func (s *WeightedRoundRobinScheduler) ScheduleJob(job *cellstate.Job, snapshot *cellstate.CellState) *cellstate.Transaction {
	tx := cellstate.NewTransaction(s.id)
	weight := s.weightFor(job.Type)
	machines := snapshot.OrderedMachines()
	if len(machines) == 0 {
		return nil
	}

	for _, task := range job.Tasks {
		if task.Assigned() {
			continue
		}

		var placed *cellstate.Machine
		for attempt := 0; attempt < len(machines); attempt++ {
			m := machines[s.currentIndex%len(machines)]
			s.currentIndex++
			if m.CanFit(task.CPUReq, task.GPUReq, task.MemoryReq) && task.SatisfiesConstraints(m) {
				placed = m
				break
			}
		}
		if placed == nil {
			continue
		}

		tx.AddPlacement(task, placed.ID, placed.Version)
		applyTentative(placed, task)

		// Advance extra slots proportional to weight above 1.0, so a
		// heavier job type skips ahead in the rotation for its next task.
		if extra := int(weight) - 1; extra > 0 {
			s.currentIndex += extra
		}
	}

	if len(tx.Placements) == 0 {
		return nil
	}
	return tx
}
