package pipeline

import (
	"errors"
	"fmt"
)

// PredictorKind selects the prediction scheme for conditional branches.
type PredictorKind string

const (
	// PredictorOneBit remembers the last outcome of each table entry.
	PredictorOneBit PredictorKind = "onebit"
	// PredictorStatic always predicts not-taken.
	PredictorStatic PredictorKind = "static"
)

// BranchPredictorConfig holds configuration for the branch predictor.
type BranchPredictorConfig struct {
	// Kind is the prediction scheme. Empty means PredictorOneBit.
	Kind PredictorKind `json:"kind"`
	// Size is the number of table entries. Must be a power of 2.
	Size int `json:"size"`
}

// DefaultBranchPredictorConfig returns a default configuration.
func DefaultBranchPredictorConfig() BranchPredictorConfig {
	return BranchPredictorConfig{
		Kind: PredictorOneBit,
		Size: 64,
	}
}

// Validate checks the predictor configuration.
func (c BranchPredictorConfig) Validate() error {
	var errs []error

	switch c.Kind {
	case "", PredictorOneBit, PredictorStatic:
	default:
		errs = append(errs, fmt.Errorf("unknown predictor kind %q", c.Kind))
	}

	if c.Size <= 0 || c.Size&(c.Size-1) != 0 {
		errs = append(errs, fmt.Errorf("predictor size %d is not a power of two", c.Size))
	}

	return errors.Join(errs...)
}

// BranchPredictorStats holds statistics for the branch predictor.
type BranchPredictorStats struct {
	// Predictions is the number of resolved conditional branches.
	Predictions uint64
	// Correct is the number of correct predictions.
	Correct uint64
	// Mispredictions is the number of incorrect predictions.
	Mispredictions uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s BranchPredictorStats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions) * 100
}

// BranchPredictor implements a table of 1-bit last-outcome entries indexed by
// pc & (size-1). Every entry starts not-taken.
type BranchPredictor struct {
	kind  PredictorKind
	table []bool
	mask  int

	stats BranchPredictorStats
}

// NewBranchPredictor creates a new branch predictor with the given
// configuration. A non power-of-two size is rounded up.
func NewBranchPredictor(config BranchPredictorConfig) *BranchPredictor {
	size := 1
	for size < config.Size {
		size <<= 1
	}

	kind := config.Kind
	if kind == "" {
		kind = PredictorOneBit
	}

	return &BranchPredictor{
		kind:  kind,
		table: make([]bool, size),
		mask:  size - 1,
	}
}

// Kind returns the prediction scheme.
func (bp *BranchPredictor) Kind() PredictorKind {
	return bp.kind
}

func (bp *BranchPredictor) index(pc int) int {
	return pc & bp.mask
}

// Predict returns whether the conditional branch at pc is predicted taken.
func (bp *BranchPredictor) Predict(pc int) bool {
	if bp.kind == PredictorStatic {
		return false
	}
	return bp.table[bp.index(pc)]
}

// Update records the actual outcome of the branch at pc.
func (bp *BranchPredictor) Update(pc int, taken bool) {
	bp.stats.Predictions++
	if bp.Predict(pc) == taken {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}

	if bp.kind == PredictorOneBit {
		bp.table[bp.index(pc)] = taken
	}
}

// Stats returns the branch predictor statistics.
func (bp *BranchPredictor) Stats() BranchPredictorStats {
	return bp.stats
}

// Reset clears all predictor state and statistics.
func (bp *BranchPredictor) Reset() {
	for i := range bp.table {
		bp.table[i] = false
	}
	bp.stats = BranchPredictorStats{}
}
