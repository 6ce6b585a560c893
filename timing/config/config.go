// Package config holds the simulator configuration and its JSON file format.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sarchlab/rvpipe/timing/cache"
	"github.com/sarchlab/rvpipe/timing/pipeline"
)

// DefaultMaxCycles is the cycle budget applied when none is configured.
const DefaultMaxCycles uint64 = 2000

// SimConfig holds everything needed to build a core.
type SimConfig struct {
	// Predictor configures the conditional branch predictor.
	Predictor pipeline.BranchPredictorConfig `json:"predictor"`

	// Hierarchy configures the caches and main memory.
	Hierarchy cache.HierarchyConfig `json:"hierarchy"`

	// MaxCycles stops a run that has not finished. 0 means no limit.
	MaxCycles uint64 `json:"max_cycles"`

	// LoadUseCheckMEM makes a load in EX/MEM stall its consumer in ID, in
	// addition to a load in ID/EX.
	LoadUseCheckMEM bool `json:"load_use_check_mem"`
}

// DefaultConfig returns split 256-word L1 caches in front of memory, a
// 64-entry one-bit predictor and a 2000-cycle budget.
func DefaultConfig() *SimConfig {
	return &SimConfig{
		Predictor:       pipeline.DefaultBranchPredictorConfig(),
		Hierarchy:       cache.DefaultHierarchyConfig(),
		MaxCycles:       DefaultMaxCycles,
		LoadUseCheckMEM: true,
	}
}

// LoadConfig loads a SimConfig from a JSON file. Fields missing from the file
// keep their default values. An L2 or L3 entry starts from that level's
// defaults.
func LoadConfig(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	return config, nil
}

// ParseConfig decodes a JSON configuration on top of DefaultConfig.
func ParseConfig(data []byte) (*SimConfig, error) {
	var present struct {
		Hierarchy struct {
			L2 json.RawMessage `json:"l2"`
			L3 json.RawMessage `json:"l3"`
		} `json:"hierarchy"`
	}
	if err := json.Unmarshal(data, &present); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config := DefaultConfig()
	if present.Hierarchy.L2 != nil {
		l2 := cache.DefaultL2Config()
		config.Hierarchy.L2 = &l2
	}
	if present.Hierarchy.L3 != nil {
		l3 := cache.DefaultL3Config()
		config.Hierarchy.L3 = &l3
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a SimConfig to a JSON file.
func (c *SimConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports every problem in the configuration at once.
func (c *SimConfig) Validate() error {
	var errs []error

	if err := c.Predictor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("predictor: %w", err))
	}

	if err := c.Hierarchy.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Clone returns a deep copy of the SimConfig.
func (c *SimConfig) Clone() *SimConfig {
	clone := *c

	if c.Hierarchy.L2 != nil {
		l2 := *c.Hierarchy.L2
		clone.Hierarchy.L2 = &l2
	}
	if c.Hierarchy.L3 != nil {
		l3 := *c.Hierarchy.L3
		clone.Hierarchy.L3 = &l3
	}

	return &clone
}

// PipelineOptions returns the pipeline options this configuration selects.
// The hierarchy is built separately since it needs the data memory.
func (c *SimConfig) PipelineOptions() []pipeline.PipelineOption {
	return []pipeline.PipelineOption{
		pipeline.WithBranchPredictor(c.Predictor),
		pipeline.WithMaxCycles(c.MaxCycles),
		pipeline.WithLoadUseCheckMEM(c.LoadUseCheckMEM),
	}
}
