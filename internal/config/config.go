// Package config loads and validates the run configuration: cluster shape,
// scheduler roster, simulation duration, workload mix, and seed.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config is the full run configuration. All top-level sections must be
// listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Cluster    ClusterConfig     `yaml:"cluster"`
	Schedulers []SchedulerConfig `yaml:"schedulers"`
	Simulation SimulationConfig  `yaml:"simulation"`
	Workload   WorkloadConfig    `yaml:"workload"`
	Seed       int64             `yaml:"seed"`
}

// ClusterConfig describes the machine population to generate.
type ClusterConfig struct {
	NumMachines   int  `yaml:"num_machines"`
	Heterogeneous bool `yaml:"heterogeneous"`
}

// SchedulerType enumerates the recognized scheduler type names.
type SchedulerType string

const (
	SchedulerBatch      SchedulerType = "batch"
	SchedulerService    SchedulerType = "service"
	SchedulerMapReduce  SchedulerType = "mapreduce"
	SchedulerPriority   SchedulerType = "priority"
	SchedulerWeightedRR SchedulerType = "weighted_rr"
)

// SchedulerConfig describes one scheduler actor to instantiate.
type SchedulerConfig struct {
	ID               string             `yaml:"id"`
	Type             SchedulerType      `yaml:"type"`
	DecisionTimeJob  float64            `yaml:"decision_time_job"`
	DecisionTimeTask float64            `yaml:"decision_time_task"`
	Policy           string             `yaml:"policy"`
	Weights          map[string]float64 `yaml:"weights"`
}

// SimulationConfig bounds the run's virtual time horizon.
type SimulationConfig struct {
	Duration float64 `yaml:"duration"`
}

// WorkloadConfig tunes the synthetic job stream.
type WorkloadConfig struct {
	BatchRatio float64 `yaml:"batch_ratio"`
}

// Load reads and strictly parses the YAML file at path, then validates it.
// Every invalid scheduler or missing field is collected before returning,
// so a misconfigured run reports everything wrong with it in one pass.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate accumulates every configuration problem via go-multierror rather
// than failing at the first one, matching the "fails fast, but complete"
// diagnostic style this config format is otherwise strict about.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Cluster.NumMachines <= 0 {
		result = multierror.Append(result, fmt.Errorf("cluster.num_machines must be > 0, got %d", c.Cluster.NumMachines))
	}
	if c.Simulation.Duration <= 0 {
		result = multierror.Append(result, fmt.Errorf("simulation.duration must be > 0, got %v", c.Simulation.Duration))
	}
	if c.Workload.BatchRatio < 0 || c.Workload.BatchRatio > 1 {
		result = multierror.Append(result, fmt.Errorf("workload.batch_ratio must be within [0, 1], got %v", c.Workload.BatchRatio))
	}
	if len(c.Schedulers) == 0 {
		result = multierror.Append(result, fmt.Errorf("schedulers must list at least one entry"))
	}

	seen := make(map[string]bool, len(c.Schedulers))
	for _, sc := range c.Schedulers {
		if sc.ID == "" {
			result = multierror.Append(result, fmt.Errorf("scheduler entry missing id"))
			continue
		}
		if seen[sc.ID] {
			result = multierror.Append(result, fmt.Errorf("duplicate scheduler id %q", sc.ID))
		}
		seen[sc.ID] = true

		switch sc.Type {
		case SchedulerBatch, SchedulerService, SchedulerMapReduce, SchedulerPriority, SchedulerWeightedRR:
		default:
			result = multierror.Append(result, fmt.Errorf("scheduler %q: unrecognized type %q", sc.ID, sc.Type))
		}
	}

	return result.ErrorOrNil()
}
