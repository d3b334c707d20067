// Package simulate implements the discrete-event driver: a virtual clock,
// a deterministically ordered event queue, per-scheduler FIFO job queues,
// and the halting/result-collection logic.
package simulate

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omega-scheduler/omega-sim/internal/cellstate"
	"github.com/omega-scheduler/omega-sim/internal/scheduler"
)

// DefaultPollInterval is how often a scheduler with an empty queue re-checks.
const DefaultPollInterval = 0.1

// DefaultMaxRetries bounds attempt_schedule's retry loop.
const DefaultMaxRetries = scheduler.DefaultMaxRetries

type jobCompletion struct {
	jobID          string
	completionTime float64
	duration       float64
}

// Simulator owns the virtual clock and drives every scheduler actor
// against a single CellState in single-threaded cooperative virtual time.
// This is the model the simulator itself always uses, distinct from
// internal/scheduler.RunActors' true-parallel model.
type Simulator struct {
	Cell *cellstate.CellState

	Clock        float64
	Horizon      float64
	PollInterval float64
	MaxRetries   int

	Log *logrus.Logger

	failures   *FailureInjector
	failureRNG *PartitionedRNG

	queue       *EventHeap
	nextEventID uint64

	schedulers  map[string]scheduler.Scheduler
	jobQueues   map[string][]*cellstate.Job
	pendingWake map[string]bool

	jobRemaining  map[string]int
	jobSubmitTime map[string]float64
	jobCompleted  map[string]bool

	completions []jobCompletion
	failedJobs  int
}

// NewSimulator creates a Simulator bound to cell with the given horizon
// (the simulation's end time), and sane defaults for poll interval and
// retry budget.
func NewSimulator(cell *cellstate.CellState, horizon float64) *Simulator {
	return &Simulator{
		Cell:          cell,
		Horizon:       horizon,
		PollInterval:  DefaultPollInterval,
		MaxRetries:    DefaultMaxRetries,
		Log:           logrus.StandardLogger(),
		queue:         NewEventHeap(),
		schedulers:    make(map[string]scheduler.Scheduler),
		jobQueues:     make(map[string][]*cellstate.Job),
		pendingWake:   make(map[string]bool),
		jobRemaining:  make(map[string]int),
		jobSubmitTime: make(map[string]float64),
		jobCompleted:  make(map[string]bool),
	}
}

// AddScheduler registers a scheduler actor under id.
func (s *Simulator) AddScheduler(id string, sch scheduler.Scheduler) {
	s.schedulers[id] = sch
	if _, ok := s.jobQueues[id]; !ok {
		s.jobQueues[id] = nil
	}
}

func (s *Simulator) nextID() uint64 {
	s.nextEventID++
	return s.nextEventID
}

// EnableFailures wires a FailureInjector into the event loop: it schedules
// the first MachineFailureEvent now, and every subsequent failure/recovery
// handler schedules the next one, so the failure/recovery cycle runs for
// as long as the simulation does. Calling this is optional — a Simulator
// with no injector never produces failure events.
func (s *Simulator) EnableFailures(injector *FailureInjector, rng *PartitionedRNG) {
	s.failures = injector
	s.failureRNG = rng
	s.scheduleNextFailure()
}

func (s *Simulator) scheduleNextFailure() {
	if s.failures == nil {
		return
	}
	at := s.Clock + s.failures.NextInterval()
	machineID := s.failures.PickMachine(s.failureRNG)
	if machineID == "" {
		return
	}
	s.queue.Schedule(newMachineFailureEvent(at, machineID, s.nextID()))
}

func (s *Simulator) handleMachineFailure(e *MachineFailureEvent) {
	s.failures.InjectFailure(e.MachineID)
	s.Log.WithFields(logrus.Fields{"machine_id": e.MachineID, "clock": s.Clock}).Warn("machine failed")

	recoverAt := s.Clock + s.failures.RecoveryDuration()
	s.queue.Schedule(newMachineRecoveryEvent(recoverAt, e.MachineID, s.nextID()))

	s.scheduleNextFailure()
}

func (s *Simulator) handleMachineRecovery(e *MachineRecoveryEvent) {
	s.failures.RecoverMachine(e.MachineID)
	s.Log.WithFields(logrus.Fields{"machine_id": e.MachineID, "clock": s.Clock}).Info("machine recovered")
}

// AddJobArrival is the inbound workload interface: the workload generator
// hands the simulator a finite, timestamped job, to be ingested before Run.
func (s *Simulator) AddJobArrival(job *cellstate.Job, atTime float64, schedulerID string) {
	job.SubmitTime = time.Duration(atTime * float64(time.Second))
	s.queue.Schedule(newJobArrivalEvent(atTime, job, schedulerID, s.nextID()))
}

// Run drains the event queue until it empties or the clock reaches the
// horizon, then collects and returns the results record.
func (s *Simulator) Run() *Results {
	for s.queue.Len() > 0 {
		event := s.queue.PopNext()

		if event.Timestamp() > s.Horizon {
			break
		}
		if event.Timestamp() < s.Clock {
			panic(fmt.Sprintf("simulate: clock went backwards: %v < %v", event.Timestamp(), s.Clock))
		}
		s.Clock = event.Timestamp()

		event.Execute(s)
	}

	return s.collectResults()
}

func (s *Simulator) handleJobArrival(e *JobArrivalEvent) {
	s.Cell.AddJob(e.Job)
	s.jobQueues[e.SchedulerID] = append(s.jobQueues[e.SchedulerID], e.Job)
	s.jobRemaining[e.Job.ID] = len(e.Job.Tasks)
	s.jobSubmitTime[e.Job.ID] = e.Job.SubmitTime.Seconds()

	s.Log.WithFields(logrus.Fields{
		"job_id": e.Job.ID, "scheduler_id": e.SchedulerID, "tasks": len(e.Job.Tasks), "clock": s.Clock,
	}).Debug("job arrived")

	if !s.pendingWake[e.SchedulerID] {
		s.pendingWake[e.SchedulerID] = true
		s.queue.Schedule(newSchedulerWakeEvent(s.Clock, e.SchedulerID, s.nextID()))
	}
}

func (s *Simulator) handleSchedulerWake(e *SchedulerWakeEvent) {
	s.pendingWake[e.SchedulerID] = false

	queue := s.jobQueues[e.SchedulerID]
	if len(queue) == 0 {
		s.pendingWake[e.SchedulerID] = true
		s.queue.Schedule(newSchedulerWakeEvent(s.Clock+s.PollInterval, e.SchedulerID, s.nextID()))
		return
	}

	job := queue[0]
	s.jobQueues[e.SchedulerID] = queue[1:]

	sch := s.schedulers[e.SchedulerID]
	stats := sch.Stats()
	stats.JobWaitTimes = append(stats.JobWaitTimes, s.Clock-s.jobSubmitTime[job.ID])

	incremental := !job.GangSchedule
	success := scheduler.AttemptSchedule(sch, s.Cell, job, s.MaxRetries, incremental, nil)

	if success {
		s.Log.WithFields(logrus.Fields{
			"job_id": job.ID, "scheduler_id": e.SchedulerID, "clock": s.Clock,
		}).Debug("job scheduled")
		for _, task := range job.Tasks {
			if task.Assigned() {
				s.queue.Schedule(newTaskCompletionEvent(s.Clock+task.Duration.Seconds(), task.ID, job, s.nextID()))
			}
		}
	} else {
		s.failedJobs++
		s.Log.WithFields(logrus.Fields{
			"job_id": job.ID, "scheduler_id": e.SchedulerID, "clock": s.Clock,
		}).Warn("job failed: retries exhausted")
	}

	if len(s.jobQueues[e.SchedulerID]) > 0 {
		epsilon := sch.DecisionTime(len(job.Tasks))
		s.pendingWake[e.SchedulerID] = true
		s.queue.Schedule(newSchedulerWakeEvent(s.Clock+epsilon, e.SchedulerID, s.nextID()))
	} else {
		s.pendingWake[e.SchedulerID] = true
		s.queue.Schedule(newSchedulerWakeEvent(s.Clock+s.PollInterval, e.SchedulerID, s.nextID()))
	}
}

func (s *Simulator) handleTaskCompletion(e *TaskCompletionEvent) {
	s.Cell.ReleaseTask(e.TaskID)

	s.jobRemaining[e.Job.ID]--
	if s.jobRemaining[e.Job.ID] > 0 || s.jobCompleted[e.Job.ID] {
		return
	}
	s.jobCompleted[e.Job.ID] = true

	submit := s.jobSubmitTime[e.Job.ID]
	s.completions = append(s.completions, jobCompletion{
		jobID:          e.Job.ID,
		completionTime: s.Clock,
		duration:       s.Clock - submit,
	})

	s.Log.WithFields(logrus.Fields{
		"job_id": e.Job.ID, "clock": s.Clock, "duration": s.Clock - submit,
	}).Debug("job completed")
}

func (s *Simulator) collectResults() *Results {
	cellStats := s.Cell.GetStatistics()

	res := &Results{
		SimulationTime: s.Horizon,
		CompletedJobs:  len(s.completions),
		FailedJobs:     s.failedJobs,
		Schedulers:     make(map[string]scheduler.StatsView, len(s.schedulers)),
		CellState: CellStateResults{
			TotalTransactions: cellStats.TotalTransactions,
			TotalCommits:      cellStats.TotalCommits,
			TotalConflicts:    cellStats.TotalConflicts,
			ConflictRate:      cellStats.ConflictRate,
			Utilization: UtilizationResults{
				CPU:    cellStats.Utilization.CPU,
				GPU:    cellStats.Utilization.GPU,
				Memory: cellStats.Utilization.Memory,
			},
		},
	}

	for id, sch := range s.schedulers {
		res.Schedulers[id] = sch.Stats().View(id)
	}

	if len(s.completions) > 0 {
		durations := make([]float64, len(s.completions))
		for i, c := range s.completions {
			durations[i] = c.duration
		}

		var sum float64
		for _, d := range durations {
			sum += d
		}
		avg := sum / float64(len(durations))
		res.AvgJobDuration = &avg

		sorted := append([]float64(nil), durations...)
		sort.Float64s(sorted)
		median := sorted[len(sorted)/2]
		res.MedianJobDuration = &median
	}

	return res
}
