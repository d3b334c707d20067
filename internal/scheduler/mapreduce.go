package scheduler

import (
	"sort"

	"github.com/omega-scheduler/omega-sim/internal/cellstate"
)

// MapReducePolicy selects how MapReduceScheduler computes optimal_workers.
type MapReducePolicy string

const (
	PolicyMaxParallelism  MapReducePolicy = "max_parallelism"
	PolicyGlobalCap       MapReducePolicy = "global_cap"
	PolicyRelativeJobSize MapReducePolicy = "relative_job_size"
)

// MapReduceScheduler computes an opportunistic worker count for a job, which
// can exceed its declared task count when the cluster has idle capacity, and
// places that many of the job's tasks. It never places more tasks than the
// job declares, so the count only limits placement when it is smaller.
type MapReduceScheduler struct {
	id     string
	policy MapReducePolicy

	// TargetUtilization gates the global_cap policy; ScaleFactor bounds
	// relative_job_size. Defaults match the source's 0.6 / 4.0.
	TargetUtilization float64
	ScaleFactor       float64

	stats Stats

	decisionTimeJob  float64
	decisionTimeTask float64
}

func NewMapReduceScheduler(id string, policy MapReducePolicy) *MapReduceScheduler {
	if policy == "" {
		policy = PolicyMaxParallelism
	}
	return &MapReduceScheduler{
		id:                id,
		policy:            policy,
		TargetUtilization: 0.6,
		ScaleFactor:       4.0,
		decisionTimeJob:   0.2,
		decisionTimeTask:  0.01,
	}
}

func (s *MapReduceScheduler) ID() string    { return s.id }
func (s *MapReduceScheduler) Stats() *Stats { return &s.stats }

func (s *MapReduceScheduler) DecisionTime(taskCount int) float64 {
	return s.decisionTimeJob + s.decisionTimeTask*float64(taskCount)
}

// SetDecisionTimes overrides the default per-job/per-task decision latency,
// wired from config.SchedulerConfig's decision_time_job/decision_time_task.
func (s *MapReduceScheduler) SetDecisionTimes(perJob, perTask float64) {
	s.decisionTimeJob, s.decisionTimeTask = perJob, perTask
}

type availableResources struct {
	cpu, memory, gpu float64
}

func sumAvailable(machines []*cellstate.Machine) availableResources {
	var r availableResources
	for _, m := range machines {
		r.cpu += float64(m.AvailableCPU())
		r.memory += m.AvailableMemory()
		r.gpu += float64(m.AvailableGPU())
	}
	return r
}

type clusterUtilization struct {
	cpu, memory float64
}

func computeUtilization(machines []*cellstate.Machine) clusterUtilization {
	var totalCPU, usedCPU, totalMem, usedMem float64
	for _, m := range machines {
		totalCPU += float64(m.CPU)
		usedCPU += float64(m.AllocatedCPU)
		totalMem += m.Memory
		usedMem += m.AllocatedMemory
	}
	var u clusterUtilization
	if totalCPU > 0 {
		u.cpu = usedCPU / totalCPU
	}
	if totalMem > 0 {
		u.memory = usedMem / totalMem
	}
	return u
}

// optimalWorkers implements the three MapReduce worker-count policies.
// Zero-demand dimensions are treated as non-binding: a dimension with
// zero requirement contributes no bound rather than
// dividing by zero.
func (s *MapReduceScheduler) optimalWorkers(job *cellstate.Job, avail availableResources, util clusterUtilization) int {
	base := len(job.Tasks)
	if base == 0 {
		return 0
	}
	sample := job.Tasks[0] // tasks within a job are assumed uniform in demand

	switch s.policy {
	case PolicyMaxParallelism:
		// Open Question (c): a zero-demand dimension is non-binding here,
		// not defaulted to base — it's skipped entirely, leaving the bound
		// to whichever dimension does carry demand.
		bound := base * 10
		if sample.CPUReq > 0 {
			if byCPU := int(avail.cpu / float64(sample.CPUReq)); byCPU < bound {
				bound = byCPU
			}
		}
		if sample.MemoryReq > 0 {
			if byMem := int(avail.memory / sample.MemoryReq); byMem < bound {
				bound = byMem
			}
		}
		return bound

	case PolicyGlobalCap:
		avgUtil := (util.cpu + util.memory) / 2
		if avgUtil > s.TargetUtilization {
			return base
		}
		scaleFactor := 1.0 + (s.TargetUtilization-avgUtil)*5
		return int(float64(base) * scaleFactor)

	case PolicyRelativeJobSize:
		// A zero-demand dimension defaults to base (unchanged from the
		// source): relative_job_size is bounded above by scale factor
		// regardless, so this only matters when demand is non-zero in the
		// other dimension.
		byCPU := base
		if sample.CPUReq > 0 {
			byCPU = int(avail.cpu / float64(sample.CPUReq))
		}
		byMem := base
		if sample.MemoryReq > 0 {
			byMem = int(avail.memory / sample.MemoryReq)
		}
		maxWorkers := byCPU
		if byMem < maxWorkers {
			maxWorkers = byMem
		}
		capped := int(float64(base) * s.ScaleFactor)
		if maxWorkers < capped {
			return maxWorkers
		}
		return capped

	default:
		return base
	}
}

// SelectMachine prefers the machine with the most free capacity, matching
// the source's "prefer data locality" comment (in practice, greatest free
// resources rather than genuine locality — there is no notion of data
// placement in this simulator).
func (s *MapReduceScheduler) SelectMachine(task *cellstate.Task, snapshot *cellstate.CellState) *cellstate.Machine {
	machines := snapshot.OrderedMachines()
	sort.SliceStable(machines, func(i, j int) bool {
		if machines[i].AvailableCPU() != machines[j].AvailableCPU() {
			return machines[i].AvailableCPU() > machines[j].AvailableCPU()
		}
		return machines[i].AvailableMemory() > machines[j].AvailableMemory()
	})
	for _, m := range machines {
		if m.CanFit(task.CPUReq, task.GPUReq, task.MemoryReq) && task.SatisfiesConstraints(m) {
			return m
		}
	}
	return nil
}

func (s *MapReduceScheduler) ScheduleJob(job *cellstate.Job, snapshot *cellstate.CellState) *cellstate.Transaction {
	tx := cellstate.NewTransaction(s.id)

	machines := snapshot.OrderedMachines()
	avail := sumAvailable(machines)
	util := computeUtilization(machines)
	workers := s.optimalWorkers(job, avail, util)
	if workers > len(job.Tasks) {
		workers = len(job.Tasks)
	}
	if workers < 0 {
		workers = 0
	}

	for _, task := range job.Tasks[:workers] {
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
