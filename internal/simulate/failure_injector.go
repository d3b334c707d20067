package simulate

import (
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/omega-scheduler/omega-sim/internal/cellstate"
)

// FailureInjector periodically fails a random machine and schedules its
// recovery. Inter-failure gaps are drawn from an
// exponential distribution scaled by cluster size, so a larger cluster
// fails more often in aggregate even though each machine is individually
// no more fragile; recovery duration is drawn uniformly from [60, 600]
// simulated seconds.
type FailureInjector struct {
	cell        *cellstate.CellState
	machineIDs  []string
	failureRate float64 // failures per machine per simulated second

	interFailure distuv.Exponential
	recovery     distuv.Uniform
}

// NewFailureInjector builds an injector over the given machine population.
// failureRate is expressed per-machine; the aggregate cluster rate is
// failureRate * len(machineIDs).
func NewFailureInjector(cell *cellstate.CellState, machineIDs []string, failureRate float64, rng *PartitionedRNG) *FailureInjector {
	aggregateRate := failureRate * float64(len(machineIDs))
	if aggregateRate <= 0 {
		aggregateRate = 1e-9
	}
	return &FailureInjector{
		cell:        cell,
		machineIDs:  append([]string(nil), machineIDs...),
		failureRate: failureRate,
		interFailure: distuv.Exponential{
			Rate: aggregateRate,
			Src:  rng.ForSubsystem(SubsystemFailure),
		},
		recovery: distuv.Uniform{
			Min: 60,
			Max: 600,
			Src: rng.ForSubsystem(SubsystemRecovery),
		},
	}
}

// NextInterval draws the simulated seconds until the next failure anywhere
// in the cluster.
func (f *FailureInjector) NextInterval() float64 { return f.interFailure.Rand() }

// RecoveryDuration draws how long a freshly failed machine stays down.
func (f *FailureInjector) RecoveryDuration() float64 { return f.recovery.Rand() }

// PickMachine chooses which machine fails next, uniformly at random via the
// same failure-subsystem RNG stream used for timing. rng is passed
// separately so callers needing a specific draw order can share one stream.
func (f *FailureInjector) PickMachine(rng *PartitionedRNG) string {
	if len(f.machineIDs) == 0 {
		return ""
	}
	idx := int(rng.ForSubsystem(SubsystemFailure).Float64() * float64(len(f.machineIDs)))
	if idx >= len(f.machineIDs) {
		idx = len(f.machineIDs) - 1
	}
	return f.machineIDs[idx]
}

// InjectFailure marks machineID as failed and releases every task it was
// running via the normal ReleaseTask path. The released tasks are left
// unassigned; nothing here resubmits them or their jobs to a scheduler.
func (f *FailureInjector) InjectFailure(machineID string) {
	m, ok := f.cell.GetMachine(machineID)
	if !ok || m.Failed {
		return
	}
	for _, taskID := range f.cell.TasksOnMachine(machineID) {
		f.cell.ReleaseTask(taskID)
	}
	f.cell.SetMachineFailed(machineID, true)
}

// RecoverMachine clears a machine's failed mark, making it eligible for
// placement again.
func (f *FailureInjector) RecoverMachine(machineID string) {
	f.cell.SetMachineFailed(machineID, false)
}
