// Package cellstate implements the authoritative, versioned cluster state:
// machines, jobs, and tasks, with optimistic-concurrency-controlled commits.
//
// Start with these two files to understand the data model and the
// commit path:
//   - types.go: Machine, Task, Job, Transaction value types and invariants
//   - cellstate.go: CellState, the snapshot/commit/release critical section
package cellstate

import (
	"time"

	set "github.com/hashicorp/go-set/v3"
)

// Machine is a physical (simulated) machine in the cluster. Capacity fields
// are fixed at construction; allocated fields are mutated only inside a
// CellState critical section.
type Machine struct {
	ID     string
	CPU    int     // cpu_cores
	GPU    int     // gpu_count
	Memory float64 // memory_gb

	AllocatedCPU    int
	AllocatedGPU    int
	AllocatedMemory float64

	// Version increments by exactly 1 on every accepted mutation
	// (placement or release) touching this machine.
	Version int64

	// Tasks is the set of task ids currently allocated on this machine.
	Tasks *set.Set[string]

	// Failed marks a machine as excluded from placement by the failure
	// injector (§4.4). Failed machines are never removed from CellState.
	Failed bool
}

// NewMachine constructs a Machine with zero allocations and an empty task set.
func NewMachine(id string, cpu, gpu int, memoryGB float64) *Machine {
	return &Machine{
		ID:     id,
		CPU:    cpu,
		GPU:    gpu,
		Memory: memoryGB,
		Tasks:  set.New[string](0),
	}
}

func (m *Machine) AvailableCPU() int        { return m.CPU - m.AllocatedCPU }
func (m *Machine) AvailableGPU() int        { return m.GPU - m.AllocatedGPU }
func (m *Machine) AvailableMemory() float64 { return m.Memory - m.AllocatedMemory }

// CanFit reports whether the machine currently has room for the given demand.
func (m *Machine) CanFit(cpu, gpu int, memory float64) bool {
	return m.AvailableCPU() >= cpu && m.AvailableGPU() >= gpu && m.AvailableMemory() >= memory
}

// Clone returns a deep, independent copy of the machine for use in a snapshot.
func (m *Machine) Clone() *Machine {
	cp := *m
	cp.Tasks = m.Tasks.Copy()
	return &cp
}

// Constraint keys recognized on Task.Constraints.
const (
	ConstraintMinCPU      = "min_cpu"
	ConstraintMinMemory   = "min_memory"
	ConstraintRequiresGPU = "requires_gpu"
	ConstraintMachineType = "machine_type"
)

// Task is a unit of work belonging to a Job.
type Task struct {
	ID    string
	JobID string

	CPUReq    int
	GPUReq    int
	MemoryReq float64

	Duration time.Duration // simulated duration, > 0
	Priority int

	// Constraints maps a recognized key (see Constraint* consts) to a value.
	// Unrecognized keys are ignored by SatisfiesConstraints.
	Constraints map[string]any

	// AssignedMachine is "" when the task is unassigned.
	AssignedMachine string
}

// Assigned reports whether the task currently holds a machine.
func (t *Task) Assigned() bool { return t.AssignedMachine != "" }

// Clone returns a deep copy of the task for use in a snapshot.
func (t *Task) Clone() *Task {
	cp := *t
	if t.Constraints != nil {
		cp.Constraints = make(map[string]any, len(t.Constraints))
		for k, v := range t.Constraints {
			cp.Constraints[k] = v
		}
	}
	return &cp
}

// SatisfiesConstraints reports whether machine m satisfies every recognized
// constraint on t. Unrecognized constraint keys never fail the check.
func (t *Task) SatisfiesConstraints(m *Machine) bool {
	for key, val := range t.Constraints {
		switch key {
		case ConstraintMinCPU:
			if min, ok := toFloat(val); ok && float64(m.CPU) < min {
				return false
			}
		case ConstraintMinMemory:
			if min, ok := toFloat(val); ok && m.Memory < min {
				return false
			}
		case ConstraintRequiresGPU:
			if req, ok := val.(bool); ok && req && m.GPU == 0 {
				return false
			}
		case ConstraintMachineType:
			// Machine has no type field in this implementation; accepted
			// but not enforced, matching the source's no-op handling.
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// JobType distinguishes batch jobs (incremental commit OK) from service jobs.
type JobType string

const (
	JobBatch   JobType = "batch"
	JobService JobType = "service"
)

// Job groups an ordered list of tasks submitted together.
type Job struct {
	ID           string
	Tasks        []*Task
	Type         JobType
	SubmitTime   time.Duration // simulated arrival time
	Priority     int
	Dependencies []string // informational only; core does not block on this

	// GangSchedule requires all-or-nothing placement (incremental=false).
	GangSchedule bool
}

// Clone returns a deep copy of the job and its tasks for use in a snapshot.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Tasks = make([]*Task, len(j.Tasks))
	for i, t := range j.Tasks {
		cp.Tasks[i] = t.Clone()
	}
	if j.Dependencies != nil {
		cp.Dependencies = append([]string(nil), j.Dependencies...)
	}
	return &cp
}

// Placement is one intended (task, machine) pairing within a Transaction.
type Placement struct {
	Task      *Task
	MachineID string
}

// Transaction bundles a scheduler's intended placements together with the
// machine versions it observed at snapshot time. Single-use: once submitted
// to CellState.CommitTransaction, it must not be resubmitted.
type Transaction struct {
	SchedulerID string
	Timestamp   time.Time

	Placements []Placement

	// MachineVersions is the version each referenced machine had when this
	// transaction's snapshot was taken.
	MachineVersions map[string]int64
}

// NewTransaction creates an empty transaction bound to schedulerID.
func NewTransaction(schedulerID string) *Transaction {
	return &Transaction{
		SchedulerID:     schedulerID,
		Timestamp:       time.Now(),
		MachineVersions: make(map[string]int64),
	}
}

// AddPlacement records an intended placement along with the machine's
// version as observed in the snapshot the scheduler is planning against.
func (tx *Transaction) AddPlacement(task *Task, machineID string, machineVersion int64) {
	tx.Placements = append(tx.Placements, Placement{Task: task, MachineID: machineID})
	tx.MachineVersions[machineID] = machineVersion
}
