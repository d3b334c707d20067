package scheduler

import (
	"sort"

	"github.com/omega-scheduler/omega-sim/internal/cellstate"
)

// ServiceScheduler is the sophisticated placement strategy for
// long-running service workloads: scores machines on availability, load,
// and failure-domain diversity, then walks the scored order applying
// anti-affinity across the job's already-placed tasks.
type ServiceScheduler struct {
	id string

	// FailureDomains maps a machine id to its failure domain id. A machine
	// absent from the map is its own domain (one domain per machine by
	// default).
	FailureDomains map[string]string

	decisionTimeJob  float64
	decisionTimeTask float64

	stats Stats
}

// NewServiceScheduler creates a ServiceScheduler with the source's default
// decision times (1.0s per job, 0.05s per task) — longer than the other
// strategies, reflecting the cost of its scoring pass.
func NewServiceScheduler(id string) *ServiceScheduler {
	return &ServiceScheduler{
		id:               id,
		FailureDomains:   make(map[string]string),
		decisionTimeJob:  1.0,
		decisionTimeTask: 0.05,
	}
}

func (s *ServiceScheduler) ID() string    { return s.id }
func (s *ServiceScheduler) Stats() *Stats { return &s.stats }

func (s *ServiceScheduler) DecisionTime(taskCount int) float64 {
	return s.decisionTimeJob + s.decisionTimeTask*float64(taskCount)
}

// SetDecisionTimes overrides the default per-job/per-task decision latency,
// matching the constructor overrides the source's ServiceScheduler accepts.
func (s *ServiceScheduler) SetDecisionTimes(perJob, perTask float64) {
	s.decisionTimeJob, s.decisionTimeTask = perJob, perTask
}

func (s *ServiceScheduler) domainOf(machineID string) string {
	if d, ok := s.FailureDomains[machineID]; ok {
		return d
	}
	return machineID
}

type scoredMachine struct {
	machine *cellstate.Machine
	score   float64
}

// scoreMachines computes a per-machine score:
// 100 * avg(cpu_avail_fraction, mem_avail_fraction) - 5*|machine.tasks| +
// 20*(1/domain_population), plus +50 if the job needs a GPU and the
// machine has one.
func (s *ServiceScheduler) scoreMachines(snapshot *cellstate.CellState, needsGPU bool) []scoredMachine {
	machines := snapshot.OrderedMachines()

	domainPopulation := make(map[string]int, len(machines))
	for _, m := range machines {
		domainPopulation[s.domainOf(m.ID)]++
	}

	scored := make([]scoredMachine, 0, len(machines))
	for _, m := range machines {
		var score float64

		cpuAvail := safeDiv(float64(m.AvailableCPU()), float64(m.CPU))
		memAvail := safeDiv(m.AvailableMemory(), m.Memory)
		score += (cpuAvail + memAvail) / 2 * 100

		score -= float64(m.Tasks.Size()) * 5

		if pop := domainPopulation[s.domainOf(m.ID)]; pop > 0 {
			score += (1.0 / float64(pop)) * 20
		}

		if needsGPU && m.GPU > 0 {
			score += 50
		}

		scored = append(scored, scoredMachine{machine: m, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	return scored
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func (s *ServiceScheduler) SelectMachine(task *cellstate.Task, snapshot *cellstate.CellState) *cellstate.Machine {
	scored := s.scoreMachines(snapshot, task.GPUReq > 0)
	for _, sm := range scored {
		if sm.machine.CanFit(task.CPUReq, task.GPUReq, task.MemoryReq) && task.SatisfiesConstraints(sm.machine) {
			return sm.machine
		}
	}
	return nil
}

func (s *ServiceScheduler) selectWithAntiAffinity(task *cellstate.Task, scored []scoredMachine, placedDomains map[string]bool) *cellstate.Machine {
	totalDomains := 0
	seen := make(map[string]bool)
	for _, sm := range scored {
		d := s.domainOf(sm.machine.ID)
		if !seen[d] {
			seen[d] = true
			totalDomains++
		}
	}

	for _, sm := range scored {
		if !sm.machine.CanFit(task.CPUReq, task.GPUReq, task.MemoryReq) || !task.SatisfiesConstraints(sm.machine) {
			continue
		}
		domain := s.domainOf(sm.machine.ID)
		if placedDomains[domain] && len(placedDomains) < totalDomains {
			continue
		}
		return sm.machine
	}

	// Fallback: no unused domain has a fitting machine, so relax
	// anti-affinity and take the best-scored fitting machine.
	for _, sm := range scored {
		if sm.machine.CanFit(task.CPUReq, task.GPUReq, task.MemoryReq) && task.SatisfiesConstraints(sm.machine) {
			return sm.machine
		}
	}
	return nil
}

func (s *ServiceScheduler) ScheduleJob(job *cellstate.Job, snapshot *cellstate.CellState) *cellstate.Transaction {
	tx := cellstate.NewTransaction(s.id)

	needsGPU := false
	for _, t := range job.Tasks {
		if t.GPUReq > 0 {
			needsGPU = true
			break
		}
	}
	scored := s.scoreMachines(snapshot, needsGPU)

	placedDomains := make(map[string]bool)
	for _, task := range job.Tasks {
		if task.Assigned() {
			continue
		}

		m := s.selectWithAntiAffinity(task, scored, placedDomains)
		if m == nil {
			continue
		}

		tx.AddPlacement(task, m.ID, m.Version)
		applyTentative(m, task)
		placedDomains[s.domainOf(m.ID)] = true
	}

	if len(tx.Placements) == 0 {
		return nil
	}
	return tx
}
