// Package core provides the cycle-accurate CPU core model.
// It wraps the pipeline implementation to provide a high-level interface.
package core

import (
	"errors"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"

	"github.com/sarchlab/rvpipe/emu"
	"github.com/sarchlab/rvpipe/insts"
	"github.com/sarchlab/rvpipe/timing/cache"
	"github.com/sarchlab/rvpipe/timing/config"
	"github.com/sarchlab/rvpipe/timing/pipeline"
)

// ErrNotFinished is returned by Verify while the program has not drained.
var ErrNotFinished = errors.New("program has not finished")

// ErrStarted is returned when data is loaded after the first cycle.
var ErrStarted = errors.New("core has already started")

// Core represents a cycle-accurate CPU core model. It owns the decoded
// program, the architectural state and the pipeline that drives it.
type Core struct {
	lines   []string
	config  *config.SimConfig
	program []*insts.Instruction
	diags   []insts.Diagnostic

	// initial is the data memory image the program starts from.
	initial *emu.Memory

	regFile  *emu.RegFile
	memory   *emu.Memory
	pipeline *pipeline.Pipeline
}

// Load decodes the program and builds a core for it. A nil config selects
// config.DefaultConfig. Invalid configurations are rejected; lines that do
// not decode become nops and are reported by Diagnostics.
func Load(lines []string, cfg *config.SimConfig) (*Core, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	program, diags := insts.DecodeProgram(lines)

	c := &Core{
		lines:   append([]string(nil), lines...),
		config:  cfg.Clone(),
		program: program,
		diags:   diags,
		initial: emu.NewMemory(),
	}

	if err := c.build(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Core) build() error {
	c.regFile = &emu.RegFile{}
	c.memory = c.initial.Clone()

	hierarchy, err := cache.NewHierarchy(c.config.Hierarchy, c.memory)
	if err != nil {
		return fmt.Errorf("failed to build cache hierarchy: %w", err)
	}

	opts := append(c.config.PipelineOptions(), pipeline.WithHierarchy(hierarchy))
	c.pipeline = pipeline.NewPipeline(c.program, c.regFile, c.memory, opts...)

	return nil
}

// LoadData places words in data memory starting at base. It must be called
// before the first cycle; the image survives Reset. Words may not reach the
// instruction address range of the hierarchy.
func (c *Core) LoadData(base uint32, words []int32) error {
	if c.pipeline.Stats().Cycles > 0 {
		return ErrStarted
	}

	if err := c.config.Hierarchy.CheckData(base, len(words)); err != nil {
		return err
	}

	c.initial.LoadWords(base, words)
	c.memory.LoadWords(base, words)

	return nil
}

// Diagnostics returns the lines that failed to decode.
func (c *Core) Diagnostics() []insts.Diagnostic {
	return c.diags
}

// Config returns a copy of the configuration the core was built with.
func (c *Core) Config() *config.SimConfig {
	return c.config.Clone()
}

// Tick executes one pipeline cycle. It does nothing once the core stopped.
func (c *Core) Tick() {
	c.pipeline.Tick()
}

// IsFinished returns true once the program has drained from the pipeline.
func (c *Core) IsFinished() bool {
	return c.pipeline.Finished()
}

// Status returns the run state.
func (c *Core) Status() pipeline.Status {
	return c.pipeline.Status()
}

// Run executes the core until the program finishes or the cycle budget runs
// out.
func (c *Core) Run() pipeline.Status {
	return c.pipeline.Run()
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running.
func (c *Core) RunCycles(cycles uint64) bool {
	return c.pipeline.RunCycles(cycles)
}

// Reset rebuilds the core from the same program, configuration and data
// image.
func (c *Core) Reset() error {
	return c.build()
}

// Latches returns the pipeline registers.
func (c *Core) Latches() pipeline.Latches {
	return c.pipeline.Latches()
}

// Registers returns a copy of the register file.
func (c *Core) Registers() [emu.NumRegs]int32 {
	return c.regFile.Snapshot()
}

// Stats returns pipeline statistics.
func (c *Core) Stats() pipeline.Statistics {
	return c.pipeline.Stats()
}

// CacheStats returns statistics for every cache level.
func (c *Core) CacheStats() []cache.LevelStats {
	return c.pipeline.Hierarchy().Levels()
}

// MemoryStats returns the main memory request counters.
func (c *Core) MemoryStats() cache.MemoryStatistics {
	return c.pipeline.Hierarchy().Memory().Stats()
}

// BranchStats returns the branch predictor statistics.
func (c *Core) BranchStats() pipeline.BranchPredictorStats {
	return c.pipeline.BranchPredictor().Stats()
}

// PC returns the index of the next instruction to fetch.
func (c *Core) PC() int {
	return c.pipeline.PC()
}

// Program returns the decoded program.
func (c *Core) Program() []*insts.Instruction {
	return c.program
}

// LastCommitted returns the instruction written back in the last cycle.
func (c *Core) LastCommitted() *insts.Instruction {
	return c.pipeline.LastCommitted()
}

// FlushedPCs returns the PCs discarded in the last cycle.
func (c *Core) FlushedPCs() []int {
	return c.pipeline.FlushedPCs()
}

// CacheStall returns true if the last cycle was frozen by a cache miss.
func (c *Core) CacheStall() bool {
	return c.pipeline.CacheStall()
}

// InjectedBubble returns true if the last cycle inserted a load-use bubble.
func (c *Core) InjectedBubble() bool {
	return c.pipeline.InjectedBubble()
}

// ReadMemory returns the current value of a data word, looking through the
// caches without disturbing them.
func (c *Core) ReadMemory(addr uint32) int32 {
	return c.pipeline.Hierarchy().Peek(addr)
}

// Mismatch is a register whose pipeline value differs from the functional
// emulator.
type Mismatch struct {
	Reg       uint8
	Pipeline  int32
	Reference int32
}

// String formats the mismatch for reports.
func (m Mismatch) String() string {
	return fmt.Sprintf("x%d: pipeline=%d reference=%d", m.Reg, m.Pipeline, m.Reference)
}

// Verify runs the functional emulator over the same program and data image
// and returns every register that ends with a different value.
func (c *Core) Verify() ([]Mismatch, error) {
	if !c.IsFinished() {
		return nil, ErrNotFinished
	}

	ref := emu.NewEmulator(c.program,
		emu.WithMemory(c.initial.Clone()),
		emu.WithMaxInstructions(c.Stats().Cycles+1))
	if err := ref.Run(); err != nil {
		return nil, fmt.Errorf("failed to run reference emulator: %w", err)
	}

	got := c.regFile.Snapshot()
	want := ref.RegFile().Snapshot()

	var mismatches []Mismatch
	for i := range got {
		if got[i] != want[i] {
			mismatches = append(mismatches, Mismatch{
				Reg:       uint8(i),
				Pipeline:  got[i],
				Reference: want[i],
			})
		}
	}

	return mismatches, nil
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// DumpState writes the cycle number, PC, latches and non-zero registers.
func (c *Core) DumpState(w io.Writer) {
	_, _ = fmt.Fprintf(w, "cycle %d pc %d status %s\n", c.Stats().Cycles, c.PC(), c.Status())
	dumpConfig.Fdump(w, c.Latches())

	regs := map[string]int32{}
	for i, v := range c.regFile.Snapshot() {
		if v != 0 {
			regs[fmt.Sprintf("x%02d", i)] = v
		}
	}
	dumpConfig.Fdump(w, regs)
}
