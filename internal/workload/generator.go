// Package workload implements the synthetic cluster and job generator that
// stands in for an external trace feed: everything the simulator consumes
// through Simulator.AddJobArrival, produced up front from empirical-shaped
// distributions rather than replayed from a real trace.
package workload

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/omega-scheduler/omega-sim/internal/cellstate"
	"github.com/omega-scheduler/omega-sim/internal/simulate"
)

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// classParams mirrors one of the source's batch_params/service_params
// dictionaries: the shape of the distributions a job of this class draws
// its tasks, durations, and interarrival gaps from.
type classParams struct {
	taskCountMean, taskCountStd float64
	durationMean, durationStd   float64
	cpuMean, cpuStd             float64
	memoryMean, memoryStd       float64
	interarrivalMean            float64
}

var batchParams = classParams{
	taskCountMean: 10, taskCountStd: 50,
	durationMean: 300, durationStd: 600,
	cpuMean: 2, cpuStd: 1,
	memoryMean: 4.0, memoryStd: 2.0,
	interarrivalMean: 10.0,
}

var serviceParams = classParams{
	taskCountMean: 5, taskCountStd: 10,
	durationMean: 86400, durationStd: 43200,
	cpuMean: 4, cpuStd: 2,
	memoryMean: 8.0, memoryStd: 4.0,
	interarrivalMean: 60.0,
}

// maxTasksPerJob caps a single job's task count, matching the source's
// hard cap against a runaway log-normal draw.
const maxTasksPerJob = 1000

// Generator produces synthetic clusters and job streams from the
// distribution shapes in the source workload generator, isolated from the
// rest of the simulation's randomness via a partitioned RNG stream.
type Generator struct {
	rng *simulate.PartitionedRNG
}

// NewGenerator builds a Generator whose draws derive from seed, isolated
// under the "workload" subsystem stream so failure injection and gang
// scheduling under the same seed never perturb it.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: simulate.NewPartitionedRNG(seed)}
}

// GeneratedJob pairs a job with its simulated arrival time, the unit
// Simulator.AddJobArrival expects.
type GeneratedJob struct {
	Job         *cellstate.Job
	ArrivalTime float64
}

// GenerateWorkload produces every job that would arrive within
// [0, duration), drawing each job's class at random (batch with probability
// batchRatio, otherwise service), with Poisson (exponential) inter-arrival
// gaps per class.
func (g *Generator) GenerateWorkload(duration float64, batchRatio float64) []GeneratedJob {
	rng := g.rng.ForSubsystem(simulate.SubsystemWorkload)
	var jobs []GeneratedJob

	currentTime := 0.0
	jobIndex := 0
	for currentTime < duration {
		isBatch := rng.Float64() < batchRatio
		jobType := cellstate.JobBatch
		params := batchParams
		if !isBatch {
			jobType = cellstate.JobService
			params = serviceParams
		}

		job := g.generateJob(jobType, currentTime, params, rng)
		jobs = append(jobs, GeneratedJob{Job: job, ArrivalTime: currentTime})
		jobIndex++

		interarrival := distuv.Exponential{Rate: 1 / params.interarrivalMean, Src: rng}.Rand()
		currentTime += interarrival
	}

	return jobs
}

func (g *Generator) generateJob(jobType cellstate.JobType, submitTime float64, params classParams, rng randSource) *cellstate.Job {
	jobID := fmt.Sprintf("job-%s", uuid.New().String())

	taskCount := int(distuv.LogNormal{
		Mu:    math.Log(params.taskCountMean),
		Sigma: math.Log(params.taskCountStd + 1),
		Src:   rng,
	}.Rand())
	if taskCount < 1 {
		taskCount = 1
	}
	if taskCount > maxTasksPerJob {
		taskCount = maxTasksPerJob
	}

	tasks := make([]*cellstate.Task, taskCount)
	for i := 0; i < taskCount; i++ {
		tasks[i] = g.generateTask(jobID, params, rng)
	}

	priority := 1 + int(rng.Float64()*4)
	if jobType == cellstate.JobService {
		priority = 5 + int(rng.Float64()*5)
	}

	gangSchedule := jobType == cellstate.JobService && rng.Float64() < 0.05

	return &cellstate.Job{
		ID:           jobID,
		Tasks:        tasks,
		Type:         jobType,
		Priority:     priority,
		GangSchedule: gangSchedule,
	}
}

func (g *Generator) generateTask(jobID string, params classParams, rng randSource) *cellstate.Task {
	taskID := fmt.Sprintf("task-%s", uuid.New().String())

	cpuReq := int(distuv.Normal{Mu: params.cpuMean, Sigma: params.cpuStd, Src: rng}.Rand())
	if cpuReq < 1 {
		cpuReq = 1
	}

	memoryReq := distuv.Normal{Mu: params.memoryMean, Sigma: params.memoryStd, Src: rng}.Rand()
	if memoryReq < 0.5 {
		memoryReq = 0.5
	}

	gpuReq := 0
	if rng.Float64() < 0.1 {
		gpuReq = 1
	}

	durationSeconds := distuv.LogNormal{
		Mu:    math.Log(params.durationMean),
		Sigma: math.Log(params.durationStd + 1),
		Src:   rng,
	}.Rand()
	if durationSeconds < 1.0 {
		durationSeconds = 1.0
	}

	priority := 1 + int(rng.Float64()*9)

	return &cellstate.Task{
		ID:        taskID,
		JobID:     jobID,
		CPUReq:    cpuReq,
		GPUReq:    gpuReq,
		MemoryReq: memoryReq,
		Duration:  secondsToDuration(durationSeconds),
		Priority:  priority,
	}
}

// machineType is one entry in the heterogeneous-cluster mix, matching the
// source's standard/high-cpu/gpu/large split.
type machineType struct {
	cpu    int
	gpu    int
	memory float64
	ratio  float64
}

var heterogeneousTypes = []machineType{
	{cpu: 8, gpu: 0, memory: 16.0, ratio: 0.5},
	{cpu: 16, gpu: 0, memory: 32.0, ratio: 0.3},
	{cpu: 8, gpu: 2, memory: 32.0, ratio: 0.15},
	{cpu: 32, gpu: 0, memory: 128.0, ratio: 0.05},
}

var homogeneousTypes = []machineType{
	{cpu: 8, gpu: 0, memory: 16.0, ratio: 1.0},
}

// GenerateCluster builds numMachines machines into cell, drawn from the
// heterogeneous or homogeneous type mix.
func (g *Generator) GenerateCluster(cell *cellstate.CellState, numMachines int, heterogeneous bool) {
	rng := g.rng.ForSubsystem(simulate.SubsystemWorkload)

	types := homogeneousTypes
	if heterogeneous {
		types = heterogeneousTypes
	}

	for i := 0; i < numMachines; i++ {
		r := rng.Float64()
		cumulative := 0.0
		selected := types[0]
		for _, mt := range types {
			cumulative += mt.ratio
			if r <= cumulative {
				selected = mt
				break
			}
		}
		cell.AddMachine(cellstate.NewMachine(fmt.Sprintf("machine-%d", i), selected.cpu, selected.gpu, selected.memory))
	}
}

// randSource is the subset of *rand.Rand gonum's distuv needs (Float64 plus
// the rand.Source interface it embeds), named locally so generateJob and
// generateTask don't have to import math/rand just to spell the parameter
// type.
type randSource interface {
	Float64() float64
	Int63() int64
	Seed(int64)
}
