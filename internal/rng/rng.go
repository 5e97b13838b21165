// Package rng derives independent per-task seeds from a single master seed so
// parallel phases stay reproducible regardless of scheduling.
package rng

import (
	"math/rand"
	"time"
)

// MasterSeed returns the configured seed, or a time-based one when unset.
func MasterSeed(configured int64) int64 {
	if configured != 0 {
		return configured
	}
	return time.Now().UnixNano()
}

// TaskSeed splits a master seed into the seed for task i (splitmix64 finalizer).
func TaskSeed(master int64, task int) int64 {
	z := uint64(master) + uint64(task+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}

// New returns a private generator for one task.
func New(master int64, task int) *rand.Rand {
	return rand.New(rand.NewSource(TaskSeed(master, task)))
}
