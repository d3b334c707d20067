package cellstate

import (
	"testing"
	"time"
)

func newJob(id string, tasks ...*Task) *Job {
	return &Job{ID: id, Tasks: tasks, Type: JobBatch, SubmitTime: 0, Priority: 0}
}

func newTask(id, jobID string, cpu, gpu int, mem float64) *Task {
	return &Task{
		ID: id, JobID: jobID,
		CPUReq: cpu, GPUReq: gpu, MemoryReq: mem,
		Duration: time.Second, Priority: 0,
	}
}

// TestCellState_Initialization mirrors test_cell_state_initialization.
func TestCellState_Initialization(t *testing.T) {
	cs := New()
	if len(cs.Machines()) != 0 {
		t.Errorf("Machines() = %v, want empty", cs.Machines())
	}
	if len(cs.Jobs()) != 0 {
		t.Errorf("Jobs() = %v, want empty", cs.Jobs())
	}
	if cs.Version() != 0 {
		t.Errorf("Version() = %d, want 0", cs.Version())
	}
}

func TestCellState_AddMachine(t *testing.T) {
	cs := New()
	cs.AddMachine(NewMachine("m1", 8, 0, 16.0))

	m, ok := cs.GetMachine("m1")
	if !ok {
		t.Fatalf("GetMachine(m1) not found")
	}
	if m.CPU != 8 {
		t.Errorf("CPU = %d, want 8", m.CPU)
	}
}

func TestMachine_AvailableResources(t *testing.T) {
	m := NewMachine("m1", 8, 2, 16.0)
	if got := m.AvailableCPU(); got != 8 {
		t.Errorf("AvailableCPU() = %d, want 8", got)
	}
	if got := m.AvailableGPU(); got != 2 {
		t.Errorf("AvailableGPU() = %d, want 2", got)
	}
	if got := m.AvailableMemory(); got != 16.0 {
		t.Errorf("AvailableMemory() = %v, want 16.0", got)
	}

	m.AllocatedCPU = 4
	m.AllocatedMemory = 8.0
	if got := m.AvailableCPU(); got != 4 {
		t.Errorf("AvailableCPU() after alloc = %d, want 4", got)
	}
	if got := m.AvailableMemory(); got != 8.0 {
		t.Errorf("AvailableMemory() after alloc = %v, want 8.0", got)
	}
}

func TestMachine_CanFit(t *testing.T) {
	m := NewMachine("m1", 8, 0, 16.0)
	cases := []struct {
		cpu, gpu int
		mem      float64
		want     bool
	}{
		{4, 0, 8.0, true},
		{10, 0, 8.0, false},
		{4, 1, 8.0, false},
	}
	for _, c := range cases {
		if got := m.CanFit(c.cpu, c.gpu, c.mem); got != c.want {
			t.Errorf("CanFit(%d,%d,%v) = %v, want %v", c.cpu, c.gpu, c.mem, got, c.want)
		}
	}
}

// TestCommitTransaction_S1 covers the single-placement, no-conflict path.
func TestCommitTransaction_S1_SinglePlacement(t *testing.T) {
	cs := New()
	m1 := NewMachine("m1", 8, 0, 16.0)
	cs.AddMachine(m1)

	task := newTask("t1", "j1", 2, 0, 4.0)
	cs.AddJob(newJob("j1", task))

	tx := NewTransaction("scheduler1")
	tx.AddPlacement(task, "m1", m1.Version)

	success, conflicts := cs.CommitTransaction(tx, true)
	if !success {
		t.Fatalf("expected success, got conflicts=%v", conflicts)
	}
	if len(conflicts) != 0 {
		t.Errorf("conflicts = %v, want empty", conflicts)
	}

	live, _ := cs.GetMachine("m1")
	if live.AllocatedCPU != 2 || live.AllocatedMemory != 4.0 {
		t.Errorf("m1 allocations = (%d,%v), want (2,4.0)", live.AllocatedCPU, live.AllocatedMemory)
	}
	if live.Version != 1 {
		t.Errorf("m1.Version = %d, want 1", live.Version)
	}
	if cs.Version() != 1 {
		t.Errorf("global version = %d, want 1", cs.Version())
	}
}

// TestCommitTransaction_S2 is scenario S2: two schedulers race on a stale version.
func TestCommitTransaction_S2_VersionConflict(t *testing.T) {
	cs := New()
	m1 := NewMachine("m1", 8, 0, 16.0)
	cs.AddMachine(m1)

	t1 := newTask("t1", "j1", 6, 0, 10.0)
	t2 := newTask("t2", "j2", 6, 0, 10.0)
	cs.AddJob(newJob("j1", t1))
	cs.AddJob(newJob("j2", t2))

	tx1 := NewTransaction("scheduler1")
	tx1.AddPlacement(t1, "m1", 0)
	ok1, _ := cs.CommitTransaction(tx1, true)
	if !ok1 {
		t.Fatalf("first commit should succeed")
	}

	tx2 := NewTransaction("scheduler2")
	tx2.AddPlacement(t2, "m1", 0) // stale version
	ok2, conflicts := cs.CommitTransaction(tx2, true)
	if ok2 {
		t.Fatalf("second commit should conflict on stale version")
	}
	if len(conflicts) != 1 || conflicts[0] != "t2" {
		t.Errorf("conflicts = %v, want [t2]", conflicts)
	}

	live, _ := cs.GetMachine("m1")
	if live.AllocatedCPU != 6 || live.AllocatedMemory != 10.0 {
		t.Errorf("m1 allocations = (%d,%v), want (6,10.0)", live.AllocatedCPU, live.AllocatedMemory)
	}
	if live.Version != 1 {
		t.Errorf("m1.Version = %d, want 1", live.Version)
	}
}

// TestCommitTransaction_S3 is scenario S3: incremental partial commit.
func TestCommitTransaction_S3_IncrementalPartial(t *testing.T) {
	cs := New()
	m1 := NewMachine("m1", 16, 0, 16.0)
	m2 := NewMachine("m2", 16, 0, 16.0)
	cs.AddMachine(m1)
	cs.AddMachine(m2)

	pre := newTask("t0", "j0", 6, 0, 10.0)
	cs.AddJob(newJob("j0", pre))
	preTx := NewTransaction("prior")
	preTx.AddPlacement(pre, "m1", 0)
	if ok, _ := cs.CommitTransaction(preTx, true); !ok {
		t.Fatalf("setup commit should succeed")
	}

	t1 := newTask("t1", "j1", 4, 0, 4.0)
	t2 := newTask("t2", "j1", 4, 0, 4.0)
	cs.AddJob(newJob("j1", t1, t2))

	tx := NewTransaction("scheduler1")
	tx.AddPlacement(t1, "m1", 0) // stale: m1 is now at version 1
	tx.AddPlacement(t2, "m2", 0) // fresh

	success, conflicts := cs.CommitTransaction(tx, true)
	if success {
		t.Fatalf("expected partial conflict")
	}
	if len(conflicts) != 1 || conflicts[0] != "t1" {
		t.Errorf("conflicts = %v, want [t1]", conflicts)
	}

	m2Live, _ := cs.GetMachine("m2")
	if m2Live.AllocatedCPU != 4 {
		t.Errorf("m2.AllocatedCPU = %d, want 4", m2Live.AllocatedCPU)
	}
	if m2Live.Version != 1 {
		t.Errorf("m2.Version = %d, want 1", m2Live.Version)
	}
}

// TestCommitTransaction_S4 is scenario S4: the same setup with incremental=false.
func TestCommitTransaction_S4_GangReject(t *testing.T) {
	cs := New()
	m1 := NewMachine("m1", 16, 0, 16.0)
	m2 := NewMachine("m2", 16, 0, 16.0)
	cs.AddMachine(m1)
	cs.AddMachine(m2)

	pre := newTask("t0", "j0", 6, 0, 10.0)
	cs.AddJob(newJob("j0", pre))
	preTx := NewTransaction("prior")
	preTx.AddPlacement(pre, "m1", 0)
	cs.CommitTransaction(preTx, true)

	t1 := newTask("t1", "j1", 4, 0, 4.0)
	t2 := newTask("t2", "j1", 4, 0, 4.0)
	cs.AddJob(newJob("j1", t1, t2))

	tx := NewTransaction("scheduler1")
	tx.AddPlacement(t1, "m1", 0)
	tx.AddPlacement(t2, "m2", 0)

	success, conflicts := cs.CommitTransaction(tx, false)
	if success {
		t.Fatalf("expected gang rejection")
	}
	if len(conflicts) != 2 {
		t.Errorf("conflicts = %v, want both t1 and t2", conflicts)
	}

	m2Live, _ := cs.GetMachine("m2")
	if m2Live.AllocatedCPU != 0 {
		t.Errorf("m2 should be untouched, AllocatedCPU = %d", m2Live.AllocatedCPU)
	}
	if m2Live.Version != 0 {
		t.Errorf("m2.Version = %d, want 0", m2Live.Version)
	}
}

// TestReleaseTask_S5 is scenario S5: release restores pre-placement state.
func TestReleaseTask_S5_RestoresState(t *testing.T) {
	cs := New()
	m1 := NewMachine("m1", 8, 0, 16.0)
	cs.AddMachine(m1)

	task := newTask("t1", "j1", 2, 0, 4.0)
	cs.AddJob(newJob("j1", task))

	tx := NewTransaction("scheduler1")
	tx.AddPlacement(task, "m1", 0)
	cs.CommitTransaction(tx, true)

	cs.ReleaseTask("t1")

	live, _ := cs.GetMachine("m1")
	if live.AllocatedCPU != 0 || live.AllocatedGPU != 0 || live.AllocatedMemory != 0 {
		t.Errorf("allocations after release = (%d,%d,%v), want zero", live.AllocatedCPU, live.AllocatedGPU, live.AllocatedMemory)
	}
	if live.Version != 2 {
		t.Errorf("m1.Version = %d, want 2", live.Version)
	}
	if cs.Version() != 1 {
		t.Errorf("global version should be unchanged by release, got %d", cs.Version())
	}
	if live.Tasks.Contains("t1") {
		t.Errorf("m1.Tasks should no longer contain t1")
	}
	liveTask, _ := cs.GetTask("t1")
	if liveTask.Assigned() {
		t.Errorf("task should be unassigned after release")
	}
}

func TestReleaseTask_NoopOnUnknownOrUnassigned(t *testing.T) {
	cs := New()
	cs.ReleaseTask("does-not-exist") // must not panic

	m1 := NewMachine("m1", 8, 0, 16.0)
	cs.AddMachine(m1)
	task := newTask("t1", "j1", 2, 0, 4.0)
	cs.AddJob(newJob("j1", task))

	cs.ReleaseTask("t1") // unassigned: no-op
	live, _ := cs.GetMachine("m1")
	if live.Version != 0 {
		t.Errorf("releasing an unassigned task must not bump machine version, got %d", live.Version)
	}
}

func TestCommitTransaction_UnknownMachineConflicts(t *testing.T) {
	cs := New()
	task := newTask("t1", "j1", 2, 0, 4.0)
	cs.AddJob(newJob("j1", task))

	tx := NewTransaction("scheduler1")
	tx.AddPlacement(task, "does-not-exist", 0)

	success, conflicts := cs.CommitTransaction(tx, true)
	if success {
		t.Fatalf("expected conflict on unknown machine")
	}
	if len(conflicts) != 1 || conflicts[0] != "t1" {
		t.Errorf("conflicts = %v, want [t1]", conflicts)
	}
}

func TestCommitTransaction_DemandExceedsCapacityAlwaysConflicts(t *testing.T) {
	cs := New()
	m1 := NewMachine("m1", 4, 0, 8.0)
	cs.AddMachine(m1)
	task := newTask("t1", "j1", 100, 0, 1.0) // exceeds total capacity
	cs.AddJob(newJob("j1", task))

	tx := NewTransaction("scheduler1")
	tx.AddPlacement(task, "m1", 0)

	success, conflicts := cs.CommitTransaction(tx, true)
	if success || len(conflicts) != 1 {
		t.Fatalf("demand exceeding capacity must conflict unconditionally, got success=%v conflicts=%v", success, conflicts)
	}
}

func TestCommitTransaction_DoublePlacementConflicts(t *testing.T) {
	cs := New()
	m1 := NewMachine("m1", 8, 0, 16.0)
	cs.AddMachine(m1)
	task := newTask("t1", "j1", 2, 0, 4.0)
	cs.AddJob(newJob("j1", task))

	tx1 := NewTransaction("s1")
	tx1.AddPlacement(task, "m1", 0)
	cs.CommitTransaction(tx1, true)

	tx2 := NewTransaction("s2")
	tx2.AddPlacement(task, "m1", 1) // correct live version, but already assigned
	success, conflicts := cs.CommitTransaction(tx2, true)
	if success || len(conflicts) != 1 {
		t.Errorf("re-placing an already-assigned task must conflict, got success=%v conflicts=%v", success, conflicts)
	}
}

func TestUtilization(t *testing.T) {
	cs := New()
	m1 := NewMachine("m1", 8, 0, 16.0)
	m2 := NewMachine("m2", 8, 0, 16.0)
	m1.AllocatedCPU, m1.AllocatedMemory = 4, 8.0
	m2.AllocatedCPU, m2.AllocatedMemory = 4, 8.0
	cs.AddMachine(m1)
	cs.AddMachine(m2)

	u := cs.GetUtilization()
	if u.CPU != 0.5 {
		t.Errorf("CPU utilization = %v, want 0.5", u.CPU)
	}
	if u.Memory != 0.5 {
		t.Errorf("Memory utilization = %v, want 0.5", u.Memory)
	}
	if u.GPU != 0 {
		t.Errorf("GPU utilization = %v, want 0 (no GPU capacity)", u.GPU)
	}
}

func TestStatistics(t *testing.T) {
	cs := New()
	m1 := NewMachine("m1", 8, 0, 16.0)
	cs.AddMachine(m1)
	task := newTask("t1", "j1", 2, 0, 4.0)
	cs.AddJob(newJob("j1", task))

	tx := NewTransaction("scheduler1")
	tx.AddPlacement(task, "m1", 0)
	cs.CommitTransaction(tx, true)

	stats := cs.GetStatistics()
	if stats.TotalTransactions != 1 {
		t.Errorf("TotalTransactions = %d, want 1", stats.TotalTransactions)
	}
	if stats.TotalCommits != 1 {
		t.Errorf("TotalCommits = %d, want 1", stats.TotalCommits)
	}
	if stats.TotalConflicts != 0 {
		t.Errorf("TotalConflicts = %d, want 0", stats.TotalConflicts)
	}
	if stats.ConflictRate != 0.0 {
		t.Errorf("ConflictRate = %v, want 0.0", stats.ConflictRate)
	}
}

func TestSnapshot_IsIndependentAndEqualBeforeMutation(t *testing.T) {
	cs := New()
	cs.AddMachine(NewMachine("m1", 8, 0, 16.0))

	snap1 := cs.Snapshot()
	snap2 := cs.Snapshot()

	m1a, _ := snap1.GetMachine("m1")
	m1b, _ := snap2.GetMachine("m1")
	if m1a == m1b {
		t.Errorf("snapshots must not share machine pointers")
	}
	if m1a.CPU != m1b.CPU || m1a.Version != m1b.Version {
		t.Errorf("snapshots taken with no intervening mutation must be structurally equal")
	}

	// Mutating the snapshot's copy must not affect the authoritative state.
	m1a.AllocatedCPU = 7
	live, _ := cs.GetMachine("m1")
	if live.AllocatedCPU != 0 {
		t.Errorf("mutating a snapshot leaked into the authoritative CellState")
	}
}

func TestTransactionLog_BoundedRetention(t *testing.T) {
	cs := NewWithLogBound(2)
	m1 := NewMachine("m1", 1000, 0, 1000.0)
	cs.AddMachine(m1)

	for i := 0; i < 5; i++ {
		id := "t" + string(rune('0'+i))
		task := newTask(id, "j"+id, 1, 0, 1.0)
		cs.AddJob(newJob("j"+id, task))
		tx := NewTransaction("s1")
		tx.AddPlacement(task, "m1", m1.Version)
		cs.CommitTransaction(tx, true)
	}

	if len(cs.transactionLog) != 2 {
		t.Errorf("transactionLog length = %d, want bounded to 2", len(cs.transactionLog))
	}
}
