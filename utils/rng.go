// utils/rng.go
package utils

import (
	"hash/fnv"
	"strconv"
	"time"
)

// IntSource is the minimal generator surface the weighting code needs.
// Tests substitute a fixed value.
type IntSource interface {
	RandomInt() uint32
}

// RNG is a small deterministic generator (Mulberry32). Instances are cheap and
// must not be shared between goroutines: build one per call site.
type RNG struct {
	state uint32
}

// NewRNG seeds a generator with a raw 32-bit state.
func NewRNG(seed uint32) *RNG {
	return &RNG{state: seed}
}

// FromStrSeed hashes an arbitrary string (FNV-1a) into the generator state.
func FromStrSeed(seed string) *RNG {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return NewRNG(h.Sum32())
}

// FromTimestamp seeds from the current wall clock in milliseconds.
func FromTimestamp() *RNG {
	return FromStrSeed(strconv.FormatInt(time.Now().UnixMilli(), 10))
}

// FromStrSeedWithTimestamp mixes a string seed with the current time, so two
// calls with the same seed still diverge.
func FromStrSeedWithTimestamp(seed string) *RNG {
	return FromStrSeed(seed + strconv.FormatInt(time.Now().UnixMilli(), 10))
}

// RandomInt returns the next value over the full uint32 range.
func (r *RNG) RandomInt() uint32 {
	r.state += 0x6D2B79F5
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}

// RandomFloat returns a value in [0, 1).
func (r *RNG) RandomFloat() float64 {
	return float64(r.RandomInt()) / 4294967296.0
}

// RandomIntClamped returns an integer in [min, max], both inclusive.
func (r *RNG) RandomIntClamped(min, max int) int {
	if max < min {
		min, max = max, min
	}
	return min + int(r.RandomFloat()*float64(max-min+1))
}

// ShuffleArray shuffles arr in place (Fisher-Yates, walking down from the end).
func ShuffleArray[T any](r *RNG, arr []T) {
	for i := len(arr) - 1; i > 0; i-- {
		j := r.RandomIntClamped(0, i)
		arr[i], arr[j] = arr[j], arr[i]
	}
}
