package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoad_ValidConfigParses(t *testing.T) {
	path := writeTempConfig(t, `
cluster:
  num_machines: 10
  heterogeneous: true
schedulers:
  - id: s1
    type: batch
    policy: best_fit
simulation:
  duration: 1000
workload:
  batch_ratio: 0.8
seed: 42
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cluster.NumMachines != 10 || !cfg.Cluster.Heterogeneous {
		t.Errorf("cluster = %+v", cfg.Cluster)
	}
	if len(cfg.Schedulers) != 1 || cfg.Schedulers[0].Type != SchedulerBatch {
		t.Errorf("schedulers = %+v", cfg.Schedulers)
	}
	if cfg.Seed != 42 {
		t.Errorf("seed = %d, want 42", cfg.Seed)
	}
}

func TestLoad_UnknownFieldFailsStrictDecode(t *testing.T) {
	path := writeTempConfig(t, `
cluster:
  num_machines: 10
  heterogenous_typo: true
schedulers:
  - id: s1
    type: batch
simulation:
  duration: 1000
workload:
  batch_ratio: 0.8
seed: 1
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected a strict-decode error for the misspelled field")
	}
}

func TestValidate_AccumulatesMultipleErrors(t *testing.T) {
	cfg := &Config{
		Cluster:    ClusterConfig{NumMachines: 0},
		Schedulers: nil,
		Simulation: SimulationConfig{Duration: -1},
		Workload:   WorkloadConfig{BatchRatio: 2.0},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"num_machines", "duration", "batch_ratio", "schedulers"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}
}

func TestValidate_RejectsUnknownSchedulerTypeAndDuplicateID(t *testing.T) {
	cfg := &Config{
		Cluster:    ClusterConfig{NumMachines: 5},
		Simulation: SimulationConfig{Duration: 10},
		Workload:   WorkloadConfig{BatchRatio: 0.5},
		Schedulers: []SchedulerConfig{
			{ID: "s1", Type: "nonsense"},
			{ID: "s1", Type: SchedulerBatch},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "unrecognized type") {
		t.Errorf("expected unrecognized-type error, got: %s", msg)
	}
	if !strings.Contains(msg, "duplicate scheduler id") {
		t.Errorf("expected duplicate-id error, got: %s", msg)
	}
}
