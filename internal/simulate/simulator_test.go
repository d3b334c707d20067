package simulate

import (
	"testing"
	"time"

	"github.com/omega-scheduler/omega-sim/internal/cellstate"
	"github.com/omega-scheduler/omega-sim/internal/scheduler"
)

func twoMachineCluster() *cellstate.CellState {
	cs := cellstate.New()
	cs.AddMachine(cellstate.NewMachine("m0", 8, 0, 16))
	cs.AddMachine(cellstate.NewMachine("m1", 8, 0, 16))
	return cs
}

func singleTaskJob(id string, duration time.Duration) *cellstate.Job {
	t := &cellstate.Task{ID: id + "-t0", JobID: id, CPUReq: 2, GPUReq: 0, MemoryReq: 4, Duration: duration}
	return &cellstate.Job{ID: id, Tasks: []*cellstate.Task{t}, Type: cellstate.JobBatch}
}

// TestSimulator_S6_TwoJobsOnTwoMachinesDrainCleanly is the literal S6
// end-to-end scenario from the walkthrough: two identical machines, two
// single-task jobs of duration 10 arriving at t=0, one per scheduler so both
// are placed at t=0 (a single scheduler would wake for its second job one
// decision time later), and a 100-second horizon. Both jobs must complete,
// average duration must be exactly 10, and the cluster must settle back to
// zero utilization.
func TestSimulator_S6_TwoJobsOnTwoMachinesDrainCleanly(t *testing.T) {
	cell := twoMachineCluster()
	sim := NewSimulator(cell, 100)

	sim.AddScheduler("s0", scheduler.NewFirstFitScheduler("s0"))
	sim.AddScheduler("s1", scheduler.NewFirstFitScheduler("s1"))

	sim.AddJobArrival(singleTaskJob("j0", 10*time.Second), 0, "s0")
	sim.AddJobArrival(singleTaskJob("j1", 10*time.Second), 0, "s1")

	results := sim.Run()

	if results.CompletedJobs != 2 {
		t.Fatalf("completed jobs = %d, want 2", results.CompletedJobs)
	}
	if results.FailedJobs != 0 {
		t.Fatalf("failed jobs = %d, want 0", results.FailedJobs)
	}
	if results.AvgJobDuration == nil || *results.AvgJobDuration != 10 {
		t.Fatalf("avg job duration = %v, want 10", results.AvgJobDuration)
	}
	if results.MedianJobDuration == nil || *results.MedianJobDuration != 10 {
		t.Fatalf("median job duration = %v, want 10", results.MedianJobDuration)
	}

	util := cell.GetUtilization()
	if util.CPU != 0 || util.Memory != 0 {
		t.Errorf("utilization after drain = %+v, want all zero", util)
	}
}

// TestSimulator_RetryExhaustionFailsJobWithoutCompletionEvent exercises the
// retry exhaustion rule: a job that cannot fit anywhere within its retry
// budget is counted in FailedJobs and never produces a TaskCompletionEvent,
// even though the scheduler did dequeue and attempt it.
func TestSimulator_RetryExhaustionFailsJobWithoutCompletionEvent(t *testing.T) {
	cell := cellstate.New()
	cell.AddMachine(cellstate.NewMachine("m0", 2, 0, 4))

	sim := NewSimulator(cell, 100)
	sch := scheduler.NewFirstFitScheduler("s0")
	sim.AddScheduler("s0", sch)

	sim.AddJobArrival(singleTaskJob("j0", 5*time.Second), 0, "s0")
	sim.AddJobArrival(singleTaskJob("j1", 5*time.Second), 0, "s0")

	results := sim.Run()

	if results.CompletedJobs != 1 {
		t.Fatalf("completed jobs = %d, want 1 (only j0 fits on the single machine)", results.CompletedJobs)
	}
	if results.FailedJobs != 1 {
		t.Fatalf("failed jobs = %d, want 1 (j1 exhausts retries while j0 still holds the machine)", results.FailedJobs)
	}
}

func TestSimulator_HorizonStopsBeforeLateArrival(t *testing.T) {
	cell := twoMachineCluster()
	sim := NewSimulator(cell, 5)
	sch := scheduler.NewFirstFitScheduler("s0")
	sim.AddScheduler("s0", sch)

	sim.AddJobArrival(singleTaskJob("j0", 1*time.Second), 50, "s0")

	results := sim.Run()

	if results.CompletedJobs != 0 {
		t.Fatalf("completed jobs = %d, want 0 (arrival is past the horizon)", results.CompletedJobs)
	}
}

func TestFailureInjector_ReleasesRunningTasksAndMarksFailed(t *testing.T) {
	cell := cellstate.New()
	cell.AddMachine(cellstate.NewMachine("m0", 4, 0, 8))

	job := singleTaskJob("j0", 500*time.Second)
	cell.AddJob(job)

	sch := scheduler.NewFirstFitScheduler("s0")
	if !scheduler.AttemptSchedule(sch, cell, job, 1, true, nil) {
		t.Fatalf("setup: expected j0 to place on m0")
	}

	rng := NewPartitionedRNG(1)
	injector := NewFailureInjector(cell, []string{"m0"}, 0.001, rng)
	injector.InjectFailure("m0")

	m, _ := cell.GetMachine("m0")
	if !m.Failed {
		t.Fatalf("machine not marked failed")
	}
	if m.AllocatedCPU != 0 || m.AllocatedMemory != 0 {
		t.Errorf("allocated resources after failure = (%d, %v), want zeroed", m.AllocatedCPU, m.AllocatedMemory)
	}

	snap := cell.Snapshot()
	if len(snap.OrderedMachines()) != 0 {
		t.Errorf("OrderedMachines should exclude the failed machine, got %d", len(snap.OrderedMachines()))
	}

	injector.RecoverMachine("m0")
	snap = cell.Snapshot()
	if len(snap.OrderedMachines()) != 1 {
		t.Errorf("OrderedMachines should include the recovered machine, got %d", len(snap.OrderedMachines()))
	}
}

// TestSimulator_EnableFailures_RunsToCompletionWithoutPanicking wires a
// FailureInjector into the event loop and checks the run still produces
// sane, consistent statistics despite machines periodically dropping out
// and recovering mid-run.
func TestSimulator_EnableFailures_RunsToCompletionWithoutPanicking(t *testing.T) {
	cell := twoMachineCluster()
	sim := NewSimulator(cell, 2000)

	sch := scheduler.NewFirstFitScheduler("s0")
	sim.AddScheduler("s0", sch)

	for i := 0; i < 50; i++ {
		sim.AddJobArrival(singleTaskJob(jobName(i), 5*time.Second), float64(i)*30, "s0")
	}

	rng := NewPartitionedRNG(42)
	injector := NewFailureInjector(cell, []string{"m0", "m1"}, 0.01, rng)
	sim.EnableFailures(injector, rng)

	results := sim.Run()

	if results.CompletedJobs+results.FailedJobs == 0 {
		t.Fatalf("expected some jobs to either complete or fail, got 0 of each")
	}

	stats := cell.GetStatistics()
	if stats.Utilization.CPU < 0 || stats.Utilization.CPU > 1 {
		t.Errorf("CPU utilization out of [0,1]: %v", stats.Utilization.CPU)
	}
}

func jobName(i int) string {
	return "jf" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func TestFailureInjector_DrawsPositiveIntervalsAndRecoveryWithinRange(t *testing.T) {
	cell := twoMachineCluster()
	rng := NewPartitionedRNG(7)
	injector := NewFailureInjector(cell, []string{"m0", "m1"}, 0.01, rng)

	for i := 0; i < 20; i++ {
		if iv := injector.NextInterval(); iv <= 0 {
			t.Fatalf("NextInterval = %v, want > 0", iv)
		}
		if rec := injector.RecoveryDuration(); rec < 60 || rec > 600 {
			t.Fatalf("RecoveryDuration = %v, want within [60, 600]", rec)
		}
	}
}
