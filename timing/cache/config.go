package cache

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry is returned for cache geometries that cannot be decoded
// with bit masks.
var ErrInvalidGeometry = errors.New("invalid cache geometry")

// WritePolicy selects what a write hit does to the next level.
type WritePolicy string

const (
	// WriteBack marks the line dirty and defers the write until eviction.
	WriteBack WritePolicy = "write-back"
	// WriteThrough propagates every write to the next level immediately.
	WriteThrough WritePolicy = "write-through"
)

// AllocatePolicy selects whether a write miss installs a line.
type AllocatePolicy string

const (
	// WriteAllocate fetches the line on a write miss, then writes into it.
	WriteAllocate AllocatePolicy = "write-allocate"
	// NoAllocate sends a missing write straight to the next level.
	NoAllocate AllocatePolicy = "no-allocate"
)

// Config holds cache configuration parameters. All sizes are in words.
type Config struct {
	// SizeWords is the total capacity.
	SizeWords int `json:"size_words"`
	// LineWords is the number of words per line.
	LineWords int `json:"line_words"`
	// Associativity is the number of ways per set.
	Associativity int `json:"associativity"`
	// HitLatency in cycles.
	HitLatency uint64 `json:"hit_latency"`
	// MissPenalty in cycles, charged on top of HitLatency on a miss.
	MissPenalty uint64 `json:"miss_penalty"`

	WritePolicy    WritePolicy    `json:"write_policy,omitempty"`
	AllocatePolicy AllocatePolicy `json:"allocate_policy,omitempty"`
}

// DefaultL1Config returns the configuration used for both L1 caches:
// 256 words, 4-word lines, 2-way, hit in 1 cycle, 10-cycle miss penalty.
func DefaultL1Config() Config {
	return Config{
		SizeWords:      256,
		LineWords:      4,
		Associativity:  2,
		HitLatency:     1,
		MissPenalty:    10,
		WritePolicy:    WriteBack,
		AllocatePolicy: WriteAllocate,
	}
}

// DefaultL2Config returns a unified second-level configuration.
func DefaultL2Config() Config {
	return Config{
		SizeWords:      1024,
		LineWords:      8,
		Associativity:  4,
		HitLatency:     4,
		MissPenalty:    8,
		WritePolicy:    WriteBack,
		AllocatePolicy: WriteAllocate,
	}
}

// DefaultL3Config returns a unified third-level configuration.
func DefaultL3Config() Config {
	return Config{
		SizeWords:      4096,
		LineWords:      8,
		Associativity:  8,
		HitLatency:     10,
		MissPenalty:    15,
		WritePolicy:    WriteBack,
		AllocatePolicy: WriteAllocate,
	}
}

// NumSets returns the number of sets implied by the geometry, or 0 if the
// geometry is degenerate.
func (c Config) NumSets() int {
	if c.LineWords <= 0 || c.Associativity <= 0 {
		return 0
	}
	return c.SizeWords / (c.LineWords * c.Associativity)
}

// Validate reports every geometry or policy problem in the configuration.
func (c Config) Validate() error {
	var errs []error

	if c.LineWords <= 0 || !isPowerOfTwo(c.LineWords) {
		errs = append(errs, fmt.Errorf("%w: line size %d words is not a power of two",
			ErrInvalidGeometry, c.LineWords))
	}

	if c.Associativity <= 0 {
		errs = append(errs, fmt.Errorf("%w: associativity %d must be at least 1",
			ErrInvalidGeometry, c.Associativity))
	}

	if c.LineWords > 0 && c.Associativity > 0 {
		numSets := c.NumSets()
		switch {
		case numSets < 1:
			errs = append(errs, fmt.Errorf("%w: %d words hold fewer than one set of %d x %d words",
				ErrInvalidGeometry, c.SizeWords, c.Associativity, c.LineWords))
		case c.SizeWords%(c.LineWords*c.Associativity) != 0:
			errs = append(errs, fmt.Errorf("%w: %d words do not divide into whole sets of %d x %d words",
				ErrInvalidGeometry, c.SizeWords, c.Associativity, c.LineWords))
		case !isPowerOfTwo(numSets):
			errs = append(errs, fmt.Errorf("%w: set count %d is not a power of two",
				ErrInvalidGeometry, numSets))
		}
	}

	switch c.WritePolicy {
	case "", WriteBack, WriteThrough:
	default:
		errs = append(errs, fmt.Errorf("unknown write policy %q", c.WritePolicy))
	}

	switch c.AllocatePolicy {
	case "", WriteAllocate, NoAllocate:
	default:
		errs = append(errs, fmt.Errorf("unknown allocate policy %q", c.AllocatePolicy))
	}

	return errors.Join(errs...)
}

func (c Config) writeThrough() bool {
	return c.WritePolicy == WriteThrough
}

func (c Config) allocatesOnWrite() bool {
	return c.AllocatePolicy != NoAllocate
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
