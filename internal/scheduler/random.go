package scheduler

import (
	"hash/fnv"
	"math/rand/v2"

	"github.com/omega-scheduler/omega-sim/internal/cellstate"
)

// RandomScheduler places each task on a uniformly random fitting machine,
// a baseline comparison point alongside first-fit.
//
// Its RNG stream is isolated per scheduler id (derived by hashing the id
// into the seed) rather than sharing one global source, so a sweep over
// several RandomSchedulers stays reproducible regardless of call order.
type RandomScheduler struct {
	id    string
	rng   *rand.Rand
	stats Stats
}

func NewRandomScheduler(id string, seed int64) *RandomScheduler {
	derived := seed ^ int64(fnv1a64(id))
	return &RandomScheduler{
		id:  id,
		rng: rand.New(rand.NewPCG(uint64(derived), uint64(derived>>32)|1)),
	}
}

func (s *RandomScheduler) ID() string    { return s.id }
func (s *RandomScheduler) Stats() *Stats { return &s.stats }

func (s *RandomScheduler) DecisionTime(taskCount int) float64 {
	return 0.1 + 0.005*float64(taskCount)
}

func (s *RandomScheduler) shuffledMachines(snapshot *cellstate.CellState) []*cellstate.Machine {
	machines := snapshot.OrderedMachines()
	s.rng.Shuffle(len(machines), func(i, j int) {
		machines[i], machines[j] = machines[j], machines[i]
	})
	return machines
}

func (s *RandomScheduler) SelectMachine(task *cellstate.Task, snapshot *cellstate.CellState) *cellstate.Machine {
	for _, m := range s.shuffledMachines(snapshot) {
		if m.CanFit(task.CPUReq, task.GPUReq, task.MemoryReq) && task.SatisfiesConstraints(m) {
			return m
		}
	}
	return nil
}

func (s *RandomScheduler) ScheduleJob(job *cellstate.Job, snapshot *cellstate.CellState) *cellstate.Transaction {
	tx := cellstate.NewTransaction(s.id)
	machines := s.shuffledMachines(snapshot)

	for _, task := range job.Tasks {
		if task.Assigned() {
			continue
		}
		for _, m := range machines {
			if m.CanFit(task.CPUReq, task.GPUReq, task.MemoryReq) && task.SatisfiesConstraints(m) {
				tx.AddPlacement(task, m.ID, m.Version)
				applyTentative(m, task)
				break
			}
		}
	}

	if len(tx.Placements) == 0 {
		return nil
	}
	return tx
}

func fnv1a64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
