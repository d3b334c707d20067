package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/omega-scheduler/omega-sim/internal/cellstate"
	"github.com/omega-scheduler/omega-sim/internal/config"
	"github.com/omega-scheduler/omega-sim/internal/scheduler"
	"github.com/omega-scheduler/omega-sim/internal/simulate"
	"github.com/omega-scheduler/omega-sim/internal/telemetry"
	"github.com/omega-scheduler/omega-sim/internal/workload"
)

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation from a config file and print the results as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := config.Load(configPath)
		if err != nil {
			logrus.Fatalf("loading config: %v", err)
		}

		results, err := runSimulation(cfg)
		if err != nil {
			logrus.Fatalf("running simulation: %v", err)
		}

		telemetry.Report(resultsAdapter{results})

		encoded, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			logrus.Fatalf("encoding results: %v", err)
		}
		fmt.Println(string(encoded))
	},
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to the run configuration YAML file")
	runCmd.MarkFlagRequired("config")
}

// runSimulation wires config -> cellstate -> schedulers -> workload ->
// simulator, exactly the chain described for the run command.
func runSimulation(cfg *config.Config) (*simulate.Results, error) {
	cell := cellstate.New()

	gen := workload.NewGenerator(cfg.Seed)
	gen.GenerateCluster(cell, cfg.Cluster.NumMachines, cfg.Cluster.Heterogeneous)

	sim := simulate.NewSimulator(cell, cfg.Simulation.Duration)

	for _, sc := range cfg.Schedulers {
		sch, err := scheduler.New(sc.ID, string(sc.Type), sc.Policy, sc.Weights)
		if err != nil {
			return nil, err
		}
		type decisionTimeSetter interface {
			SetDecisionTimes(perJob, perTask float64)
		}
		if tunable, ok := sch.(decisionTimeSetter); ok && (sc.DecisionTimeJob > 0 || sc.DecisionTimeTask > 0) {
			tunable.SetDecisionTimes(sc.DecisionTimeJob, sc.DecisionTimeTask)
		}
		sim.AddScheduler(sc.ID, sch)
	}

	jobs := gen.GenerateWorkload(cfg.Simulation.Duration, cfg.Workload.BatchRatio)
	for i, gj := range jobs {
		// Round-robin jobs across the configured schedulers, matching a
		// dispatcher with no scheduler-affinity policy of its own.
		target := cfg.Schedulers[i%len(cfg.Schedulers)].ID
		sim.AddJobArrival(gj.Job, gj.ArrivalTime, target)
	}

	return sim.Run(), nil
}

// resultsAdapter satisfies telemetry.ResultSource without simulate needing
// to know telemetry exists.
type resultsAdapter struct {
	r *simulate.Results
}

func (a resultsAdapter) TotalTransactions() int64 { return a.r.CellState.TotalTransactions }
func (a resultsAdapter) TotalCommits() int64      { return a.r.CellState.TotalCommits }
func (a resultsAdapter) TotalConflicts() int64    { return a.r.CellState.TotalConflicts }
func (a resultsAdapter) Utilization() (float64, float64, float64) {
	u := a.r.CellState.Utilization
	return u.CPU, u.GPU, u.Memory
}
func (a resultsAdapter) CompletedJobs() int { return a.r.CompletedJobs }
func (a resultsAdapter) FailedJobs() int    { return a.r.FailedJobs }
func (a resultsAdapter) SchedulerStats() []telemetry.SchedulerReport {
	out := make([]telemetry.SchedulerReport, 0, len(a.r.Schedulers))
	for id, s := range a.r.Schedulers {
		out = append(out, telemetry.SchedulerReport{
			ID:             id,
			JobsScheduled:  s.JobsScheduled,
			TasksScheduled: s.TasksScheduled,
			ConflictRate:   s.ConflictRate,
			BusyTime:       s.BusyTime,
		})
	}
	return out
}
