package simulate

import (
	"hash/fnv"
	"math/rand"
)

// Subsystem names for PartitionedRNG.
const (
	SubsystemWorkload  = "workload"
	SubsystemFailure   = "failure"
	SubsystemRecovery  = "recovery"
)

// PartitionedRNG provides deterministic, isolated RNG streams per
// subsystem, so a workload generator and a failure injector running under
// the same seed never perturb each other's draw sequence. The same seed
// and subsystem name always yields the same stream.
//
// Thread-safety: not thread-safe; intended for use from the single
// goroutine driving the simulator's virtual clock.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{seed: seed, subsystems: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the cached RNG for name, creating it on first use by
// XOR-ing the master seed with an FNV-1a hash of the subsystem name.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	derived := p.seed ^ int64(fnv1a64(name))
	rng := rand.New(rand.NewSource(derived))
	p.subsystems[name] = rng
	return rng
}

func fnv1a64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
