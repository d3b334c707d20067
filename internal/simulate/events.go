package simulate

import "github.com/omega-scheduler/omega-sim/internal/cellstate"

// EventType identifies one of the event kinds the simulator dispatches.
type EventType string

const (
	EventTypeJobArrival      EventType = "JobArrival"
	EventTypeSchedulerWake   EventType = "SchedulerWake"
	EventTypeTaskCompletion  EventType = "TaskCompletion"
	EventTypeMachineFailure  EventType = "MachineFailure"
	EventTypeMachineRecovery EventType = "MachineRecovery"
)

// EventTypePriority breaks ties between events at the same timestamp. Lower
// values are processed first: an arrival should enqueue before the wake it
// triggers is considered, and a wake should run before a completion that
// happens to land on the same tick. Failures are ordered before wakes so a
// job that arrives on the same tick a machine fails is scheduled against
// the post-failure snapshot, and recoveries are ordered last so a machine
// coming back up never preempts work already dispatched this tick.
var EventTypePriority = map[EventType]int{
	EventTypeMachineFailure:  0,
	EventTypeJobArrival:      1,
	EventTypeSchedulerWake:   2,
	EventTypeTaskCompletion:  3,
	EventTypeMachineRecovery: 4,
}

// Event is a timestamped, deterministically ordered simulation event.
type Event interface {
	Timestamp() float64
	EventID() uint64
	Type() EventType
	Execute(sim *Simulator)
}

type baseEvent struct {
	timestamp float64
	eventID   uint64
	eventType EventType
}

func newBaseEvent(timestamp float64, eventType EventType, eventID uint64) baseEvent {
	return baseEvent{timestamp: timestamp, eventID: eventID, eventType: eventType}
}

func (e *baseEvent) Timestamp() float64 { return e.timestamp }
func (e *baseEvent) EventID() uint64    { return e.eventID }
func (e *baseEvent) Type() EventType    { return e.eventType }

// JobArrivalEvent delivers a job to the named scheduler's FIFO queue.
type JobArrivalEvent struct {
	baseEvent
	Job         *cellstate.Job
	SchedulerID string
}

func newJobArrivalEvent(timestamp float64, job *cellstate.Job, schedulerID string, eventID uint64) *JobArrivalEvent {
	return &JobArrivalEvent{
		baseEvent:   newBaseEvent(timestamp, EventTypeJobArrival, eventID),
		Job:         job,
		SchedulerID: schedulerID,
	}
}

func (e *JobArrivalEvent) Execute(sim *Simulator) { sim.handleJobArrival(e) }

// SchedulerWakeEvent prompts a scheduler to pop one job off its queue (or
// re-check after poll_interval if the queue is currently empty).
type SchedulerWakeEvent struct {
	baseEvent
	SchedulerID string
}

func newSchedulerWakeEvent(timestamp float64, schedulerID string, eventID uint64) *SchedulerWakeEvent {
	return &SchedulerWakeEvent{
		baseEvent:   newBaseEvent(timestamp, EventTypeSchedulerWake, eventID),
		SchedulerID: schedulerID,
	}
}

func (e *SchedulerWakeEvent) Execute(sim *Simulator) { sim.handleSchedulerWake(e) }

// TaskCompletionEvent fires task.duration after a successful placement,
// releasing the task's resources and checking for job completion.
type TaskCompletionEvent struct {
	baseEvent
	TaskID string
	Job    *cellstate.Job
}

func newTaskCompletionEvent(timestamp float64, taskID string, job *cellstate.Job, eventID uint64) *TaskCompletionEvent {
	return &TaskCompletionEvent{
		baseEvent: newBaseEvent(timestamp, EventTypeTaskCompletion, eventID),
		TaskID:    taskID,
		Job:       job,
	}
}

func (e *TaskCompletionEvent) Execute(sim *Simulator) { sim.handleTaskCompletion(e) }

// MachineFailureEvent fires when the failure injector's exponential clock
// picks a machine to fail; it releases the machine's resident tasks and
// schedules the matching MachineRecoveryEvent.
type MachineFailureEvent struct {
	baseEvent
	MachineID string
}

func newMachineFailureEvent(timestamp float64, machineID string, eventID uint64) *MachineFailureEvent {
	return &MachineFailureEvent{
		baseEvent: newBaseEvent(timestamp, EventTypeMachineFailure, eventID),
		MachineID: machineID,
	}
}

func (e *MachineFailureEvent) Execute(sim *Simulator) { sim.handleMachineFailure(e) }

// MachineRecoveryEvent clears a machine's failed mark, making it eligible
// for placement again.
type MachineRecoveryEvent struct {
	baseEvent
	MachineID string
}

func newMachineRecoveryEvent(timestamp float64, machineID string, eventID uint64) *MachineRecoveryEvent {
	return &MachineRecoveryEvent{
		baseEvent: newBaseEvent(timestamp, EventTypeMachineRecovery, eventID),
		MachineID: machineID,
	}
}

func (e *MachineRecoveryEvent) Execute(sim *Simulator) { sim.handleMachineRecovery(e) }
