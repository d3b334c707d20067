package cellstate

import (
	"sort"
	"sync"
)

// Stats is the snapshot of CellState-wide bookkeeping counters returned by
// GetStatistics.
type Stats struct {
	TotalTransactions int64
	TotalCommits      int64
	TotalConflicts    int64
	ConflictRate      float64
	Utilization       Utilization
}

// Utilization reports fractional resource usage across the whole cluster,
// each value in [0, 1].
type Utilization struct {
	CPU    float64
	GPU    float64
	Memory float64
}

// CellState is the single source of truth for machine capacity, task
// assignment, and job bookkeeping. It realizes the "true parallel
// execution" concurrency model: every mutating operation is serialized
// under a single mutex; Snapshot takes a read lock and returns an
// independent deep copy that callers may mutate freely.
//
// Thread-safety: safe for concurrent use by multiple scheduler goroutines.
type CellState struct {
	mu sync.RWMutex

	machines map[string]*Machine
	jobs     map[string]*Job
	tasks    map[string]*Task

	// machineOrder records machine ids in registration order, so placement
	// strategies that must scan "in snapshot insertion order" (e.g.
	// first-fit) don't depend on Go's unordered map iteration.
	machineOrder []string

	version int64

	// transactionLog is a bounded ring of the most recently accepted
	// transactions: retention is capped rather than left unbounded.
	// maxLog == 0 disables retention entirely.
	transactionLog []*Transaction
	maxLog         int

	totalTransactions int64
	totalCommits      int64
	totalConflicts    int64
}

// DefaultMaxTransactionLog is the default retention bound for the
// transaction log.
const DefaultMaxTransactionLog = 10000

// New creates an empty CellState with the default transaction log bound.
func New() *CellState {
	return NewWithLogBound(DefaultMaxTransactionLog)
}

// NewWithLogBound creates an empty CellState whose transaction log retains
// at most maxLog entries (0 disables the log).
func NewWithLogBound(maxLog int) *CellState {
	return &CellState{
		machines: make(map[string]*Machine),
		jobs:     make(map[string]*Job),
		tasks:    make(map[string]*Task),
		maxLog:   maxLog,
	}
}

// AddMachine registers a machine. Safe to call concurrently with readers;
// typically only used during setup.
func (c *CellState) AddMachine(m *Machine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.machines[m.ID]; !exists {
		c.machineOrder = append(c.machineOrder, m.ID)
	}
	c.machines[m.ID] = m
}

// AddJob registers a job and all of its tasks.
func (c *CellState) AddJob(j *Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[j.ID] = j
	for _, t := range j.Tasks {
		c.tasks[t.ID] = t
	}
}

// Machines returns the ids of every registered machine in sorted order.
func (c *CellState) Machines() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeysMachine(c.machines)
}

// Jobs returns the ids of every registered job in sorted order.
func (c *CellState) Jobs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeysJob(c.jobs)
}

// Snapshot returns a deep, independent copy of machines, jobs, tasks, and
// the global version. The returned CellState shares no mutable state with
// the authoritative instance: a scheduler may freely mutate it while
// planning placements for successive tasks within one job. Snapshot is
// linearizable with respect to commits — it is taken under the same lock
// that guards commit/release, so it either fully precedes or fully follows
// any given commit.
func (c *CellState) Snapshot() *CellState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := &CellState{
		machines:     make(map[string]*Machine, len(c.machines)),
		jobs:         make(map[string]*Job, len(c.jobs)),
		tasks:        make(map[string]*Task, len(c.tasks)),
		machineOrder: append([]string(nil), c.machineOrder...),
		version:      c.version,
		maxLog:       c.maxLog,
	}
	for id, m := range c.machines {
		snap.machines[id] = m.Clone()
	}
	for id, j := range c.jobs {
		jobClone := j.Clone()
		snap.jobs[id] = jobClone
		for _, t := range jobClone.Tasks {
			snap.tasks[t.ID] = t
		}
	}
	return snap
}

// GetMachine looks up a machine by id in this CellState (snapshot or live).
func (c *CellState) GetMachine(id string) (*Machine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.machines[id]
	return m, ok
}

// GetTask looks up a task by id in this CellState (snapshot or live).
func (c *CellState) GetTask(id string) (*Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[id]
	return t, ok
}

// AllMachines returns the live machine map for iteration by a placement
// strategy operating on a snapshot. Callers must not mutate the returned
// map itself (only the Machine values, which is how tentative reservation
// works), and must not call this on the authoritative CellState.
func (c *CellState) AllMachines() map[string]*Machine {
	return c.machines
}

// OrderedMachines returns every non-failed machine in registration order,
// matching the iteration order a placement strategy like first-fit must
// scan in. Intended for use against a snapshot. A machine marked Failed by
// the failure injector is excluded, so no strategy needs to check the flag
// itself.
func (c *CellState) OrderedMachines() []*Machine {
	out := make([]*Machine, 0, len(c.machineOrder))
	for _, id := range c.machineOrder {
		if m, ok := c.machines[id]; ok && !m.Failed {
			out = append(out, m)
		}
	}
	return out
}

// CommitTransaction attempts to commit tx, detecting conflicts via the
// machine version recorded at snapshot time and the machine's live fit
// check, in three phases: validate every placement, gate the whole
// transaction on an all-or-nothing commit, then apply what was accepted.
//
// Returns (true, nil) on full success, or (false, conflictedTaskIDs) when
// any placement was rejected. When incremental is false, a non-empty
// conflict set aborts the whole transaction: nothing is applied.
func (c *CellState) CommitTransaction(tx *Transaction, incremental bool) (bool, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalTransactions++

	var conflicted []string
	var accepted []Placement

	for _, p := range tx.Placements {
		machine, ok := c.machines[p.MachineID]
		if !ok {
			conflicted = append(conflicted, p.Task.ID)
			continue
		}
		if expected, tracked := tx.MachineVersions[p.MachineID]; tracked && machine.Version != expected {
			conflicted = append(conflicted, p.Task.ID)
			continue
		}
		task, ok := c.tasks[p.Task.ID]
		if !ok {
			conflicted = append(conflicted, p.Task.ID)
			continue
		}
		if task.Assigned() {
			// Double-placement attempt: always a conflict.
			conflicted = append(conflicted, p.Task.ID)
			continue
		}
		if !machine.CanFit(task.CPUReq, task.GPUReq, task.MemoryReq) {
			conflicted = append(conflicted, p.Task.ID)
			continue
		}

		// Tentatively apply within this transaction so that a second
		// placement targeting the same machine is validated against the
		// compounded effect of the first.
		machine.AllocatedCPU += task.CPUReq
		machine.AllocatedGPU += task.GPUReq
		machine.AllocatedMemory += task.MemoryReq
		accepted = append(accepted, Placement{Task: task, MachineID: p.MachineID})
	}

	if !incremental && len(conflicted) > 0 {
		// All-or-nothing gate: undo every tentative allocation and make no
		// state change at all.
		for _, p := range accepted {
			m := c.machines[p.MachineID]
			m.AllocatedCPU -= p.Task.CPUReq
			m.AllocatedGPU -= p.Task.GPUReq
			m.AllocatedMemory -= p.Task.MemoryReq
		}
		allIDs := make([]string, 0, len(tx.Placements))
		for _, p := range tx.Placements {
			allIDs = append(allIDs, p.Task.ID)
		}
		c.totalConflicts += int64(len(tx.Placements))
		return false, allIDs
	}

	if len(accepted) > 0 {
		for _, p := range accepted {
			machine := c.machines[p.MachineID]
			machine.Tasks.Insert(p.Task.ID)
			machine.Version++
			p.Task.AssignedMachine = p.MachineID
		}
		c.version++
		c.totalCommits++
		c.appendLog(tx)
	}

	if len(conflicted) > 0 {
		c.totalConflicts += int64(len(conflicted))
	}

	return len(conflicted) == 0, conflicted
}

func (c *CellState) appendLog(tx *Transaction) {
	if c.maxLog == 0 {
		return
	}
	c.transactionLog = append(c.transactionLog, tx)
	if len(c.transactionLog) > c.maxLog {
		c.transactionLog = c.transactionLog[len(c.transactionLog)-c.maxLog:]
	}
}

// ReleaseTask releases the resources held by task id, if any. Idempotent:
// a no-op for unknown or unassigned tasks.
func (c *CellState) ReleaseTask(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.tasks[taskID]
	if !ok || !task.Assigned() {
		return
	}

	machine, ok := c.machines[task.AssignedMachine]
	if !ok {
		return
	}
	machine.AllocatedCPU -= task.CPUReq
	machine.AllocatedGPU -= task.GPUReq
	machine.AllocatedMemory -= task.MemoryReq
	machine.Tasks.Remove(taskID)
	machine.Version++
	task.AssignedMachine = ""
}

// SetMachineFailed marks machineID failed or recovered. A no-op for an
// unknown machine id.
func (c *CellState) SetMachineFailed(machineID string, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.machines[machineID]; ok {
		m.Failed = failed
	}
}

// TasksOnMachine returns the ids of every task currently assigned to
// machineID, or nil for an unknown machine.
func (c *CellState) TasksOnMachine(machineID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.machines[machineID]
	if !ok {
		return nil
	}
	return m.Tasks.Slice()
}

// GetUtilization returns fractional resource usage across the cluster.
func (c *CellState) GetUtilization() Utilization {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.utilizationLocked()
}

func (c *CellState) utilizationLocked() Utilization {
	var totalCPU, usedCPU, totalGPU, usedGPU int
	var totalMem, usedMem float64
	for _, m := range c.machines {
		totalCPU += m.CPU
		usedCPU += m.AllocatedCPU
		totalGPU += m.GPU
		usedGPU += m.AllocatedGPU
		totalMem += m.Memory
		usedMem += m.AllocatedMemory
	}
	u := Utilization{}
	if totalCPU > 0 {
		u.CPU = float64(usedCPU) / float64(totalCPU)
	}
	if totalGPU > 0 {
		u.GPU = float64(usedGPU) / float64(totalGPU)
	}
	if totalMem > 0 {
		u.Memory = usedMem / totalMem
	}
	return u
}

// GetStatistics returns CellState-wide scheduling statistics.
func (c *CellState) GetStatistics() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var conflictRate float64
	if c.totalTransactions > 0 {
		conflictRate = float64(c.totalConflicts) / float64(c.totalTransactions)
	}
	return Stats{
		TotalTransactions: c.totalTransactions,
		TotalCommits:      c.totalCommits,
		TotalConflicts:    c.totalConflicts,
		ConflictRate:      conflictRate,
		Utilization:       c.utilizationLocked(),
	}
}

// Version returns the current global commit version.
func (c *CellState) Version() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func sortedKeysMachine(m map[string]*Machine) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysJob(m map[string]*Job) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
