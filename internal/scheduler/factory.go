package scheduler

import "fmt"

// New builds a concrete Scheduler from a config-level type and policy
// string, the factory the run command uses to turn a config.SchedulerConfig
// into a live actor. typ must be one of the recognized scheduler type
// strings (batch, service, mapreduce, priority, weighted_rr); an
// unrecognized type is a configuration error, not a panic.
func New(id, typ, policy string, weights map[string]float64) (Scheduler, error) {
	switch typ {
	case "batch":
		return NewBatchScheduler(id, PlacementStrategy(policy)), nil
	case "service":
		return NewServiceScheduler(id), nil
	case "mapreduce":
		return NewMapReduceScheduler(id, MapReducePolicy(policy)), nil
	case "priority":
		return NewPriorityScheduler(id), nil
	case "weighted_rr":
		return NewWeightedRoundRobinScheduler(id, weights), nil
	default:
		return nil, fmt.Errorf("scheduler: unrecognized type %q for scheduler %q", typ, id)
	}
}
