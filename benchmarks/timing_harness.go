// Package benchmarks provides the benchmark programs and the harness that runs
// them through the timing core.
package benchmarks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/sarchlab/rvpipe/loader"
	"github.com/sarchlab/rvpipe/timing/config"
	"github.com/sarchlab/rvpipe/timing/core"
	"github.com/sarchlab/rvpipe/timing/pipeline"
)

// LevelResult summarizes one cache level after a run.
type LevelResult struct {
	Name    string  `json:"name"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	AMAT    float64 `json:"amat"`
}

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Status is the final run state (finished or incomplete)
	Status string `json:"status"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// DataStalls is the number of load-use bubbles
	DataStalls uint64 `json:"data_stalls"`

	// CacheStallCycles is the number of cycles frozen by cache misses
	CacheStallCycles uint64 `json:"cache_stall_cycles"`

	// CacheStallEvents is the number of misses that froze the pipeline
	CacheStallEvents uint64 `json:"cache_stall_events"`

	// PipelineFlushes is the number of pipeline flushes
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// Levels holds per-level cache statistics, top to bottom
	Levels []LevelResult `json:"levels"`

	// Branch predictor stats
	BranchPredictions     uint64  `json:"branch_predictions,omitempty"`
	BranchCorrect         uint64  `json:"branch_correct,omitempty"`
	BranchMispredictions  uint64  `json:"branch_mispredictions,omitempty"`
	BranchAccuracyPercent float64 `json:"branch_accuracy_percent,omitempty"`

	// Failures lists every check the run did not pass
	Failures []string `json:"failures,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Passed returns true if the run met every expectation.
func (r BenchmarkResult) Passed() bool {
	return len(r.Failures) == 0
}

// Level returns the statistics of the named cache level.
func (r BenchmarkResult) Level(name string) (LevelResult, bool) {
	for _, l := range r.Levels {
		if l.Name == name {
			return l, true
		}
	}
	return LevelResult{}, false
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Program is the assembly source, one instruction per line
	Program []string

	// Data is the initial data memory image
	Data []loader.Segment

	// ExpectedRegs are register values checked after the run
	ExpectedRegs map[uint8]int32

	// ExpectedMemory are data words checked after the run
	ExpectedMemory map[uint32]int32

	// Endless marks a program that only stops at the cycle budget
	Endless bool
}

// FromProgram builds a benchmark without expectations from a loaded file.
func FromProgram(prog *loader.Program) Benchmark {
	return Benchmark{
		Name:    prog.Name,
		Program: prog.Lines,
		Data:    prog.Segments,
	}
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Sim is the simulator configuration every benchmark runs with
	Sim *config.SimConfig

	// Verify compares every finished run against the functional emulator
	Verify bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Sim:     config.DefaultConfig(),
		Verify:  true,
		Output:  os.Stdout,
		Verbose: false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results. A benchmark that cannot
// be built is reported as an error and skipped.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	var errs []error
	for _, bench := range h.benchmarks {
		result, err := h.runBenchmark(bench)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", bench.Name, err))
			continue
		}
		results = append(results, result)
	}

	return results, errors.Join(errs...)
}

// ErrNoBudget is returned for an endless benchmark run without a cycle budget.
var ErrNoBudget = errors.New("endless program needs a cycle budget")

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(bench Benchmark) (BenchmarkResult, error) {
	if bench.Endless && h.config.Sim != nil && h.config.Sim.MaxCycles == 0 {
		return BenchmarkResult{}, ErrNoBudget
	}

	c, err := core.Load(bench.Program, h.config.Sim)
	if err != nil {
		return BenchmarkResult{}, err
	}

	prog := loader.Program{Name: bench.Name, Lines: bench.Program, Segments: bench.Data}
	if err := prog.LoadInto(c); err != nil {
		return BenchmarkResult{}, err
	}

	start := time.Now()
	status := c.Run()
	wallTime := time.Since(start)

	result := Collect(bench.Name, bench.Description, c, status, wallTime)
	result.Failures = h.check(bench, c, status)

	if h.config.Verbose {
		c.DumpState(h.config.Output)
	}

	return result, nil
}

// Collect gathers the statistics of a core that has stopped running.
func Collect(name, description string, c *core.Core, status pipeline.Status, wallTime time.Duration) BenchmarkResult {
	stats := c.Stats()
	result := BenchmarkResult{
		Name:                name,
		Description:         description,
		Status:              status.String(),
		SimulatedCycles:     stats.Cycles,
		InstructionsRetired: stats.Instructions,
		CPI:                 stats.CPI(),
		DataStalls:          stats.StallsData,
		CacheStallCycles:    stats.StallsCache,
		CacheStallEvents:    stats.CacheStallEvents,
		PipelineFlushes:     stats.Flushes,
		WallTime:            wallTime,
	}

	for _, l := range c.CacheStats() {
		result.Levels = append(result.Levels, LevelResult{
			Name:    l.Name,
			Hits:    l.Stats.Hits,
			Misses:  l.Stats.Misses,
			HitRate: l.Stats.HitRate(),
			AMAT:    l.Stats.AMAT(l.Config.HitLatency, l.Config.MissPenalty),
		})
	}

	bpStats := c.BranchStats()
	result.BranchPredictions = bpStats.Predictions
	result.BranchCorrect = bpStats.Correct
	result.BranchMispredictions = bpStats.Mispredictions
	result.BranchAccuracyPercent = bpStats.Accuracy()

	return result
}

// check compares the final state against the benchmark's expectations.
func (h *Harness) check(bench Benchmark, c *core.Core, status pipeline.Status) []string {
	var failures []string

	wantStatus := pipeline.StatusFinished
	if bench.Endless {
		wantStatus = pipeline.StatusIncomplete
	}
	if status != wantStatus {
		failures = append(failures, fmt.Sprintf("status %s, want %s", status, wantStatus))
	}

	regs := c.Registers()
	for _, reg := range slices.Sorted(maps.Keys(bench.ExpectedRegs)) {
		if want := bench.ExpectedRegs[reg]; regs[reg] != want {
			failures = append(failures, fmt.Sprintf("x%d = %d, want %d", reg, regs[reg], want))
		}
	}

	for _, addr := range slices.Sorted(maps.Keys(bench.ExpectedMemory)) {
		if got, want := c.ReadMemory(addr), bench.ExpectedMemory[addr]; got != want {
			failures = append(failures, fmt.Sprintf("mem[%d] = %d, want %d", addr, got, want))
		}
	}

	if h.config.Verify && status == pipeline.StatusFinished {
		mismatches, err := c.Verify()
		if err != nil {
			failures = append(failures, err.Error())
		}
		for _, m := range mismatches {
			failures = append(failures, m.String())
		}
	}

	return failures
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== rvpipe Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		if r.Description != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Status: %s\n", r.Status)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Data Stalls:          %d\n", r.DataStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Cache Stall Cycles:   %d (%d misses)\n",
			r.CacheStallCycles, r.CacheStallEvents)
		_, _ = fmt.Fprintf(h.config.Output, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)

		for _, l := range r.Levels {
			_, _ = fmt.Fprintf(h.config.Output, "  --- %s ---\n", l.Name)
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:     %d\n", l.Hits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses:   %d\n", l.Misses)
			_, _ = fmt.Fprintf(h.config.Output, "  Hit Rate: %.1f%%\n", l.HitRate*100)
			_, _ = fmt.Fprintf(h.config.Output, "  AMAT:     %.2f\n", l.AMAT)
		}

		if r.BranchPredictions > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Branch Predictor ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Predictions:     %d\n", r.BranchPredictions)
			_, _ = fmt.Fprintf(h.config.Output, "  Correct:         %d\n", r.BranchCorrect)
			_, _ = fmt.Fprintf(h.config.Output, "  Mispredictions:  %d\n", r.BranchMispredictions)
			_, _ = fmt.Fprintf(h.config.Output, "  Accuracy:        %.1f%%\n", r.BranchAccuracyPercent)
		}

		for _, f := range r.Failures {
			_, _ = fmt.Fprintf(h.config.Output, "  FAIL: %s\n", f)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,status,cycles,instructions,cpi,data_stalls,cache_stall_cycles,flushes,icache_hits,icache_misses,dcache_hits,dcache_misses,branch_accuracy,passed")

	for _, r := range results {
		l1i, _ := r.Level("L1I")
		l1d, _ := r.Level("L1D")
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%.1f,%t\n",
			r.Name,
			r.Status,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.DataStalls,
			r.CacheStallCycles,
			r.PipelineFlushes,
			l1i.Hits,
			l1i.Misses,
			l1d.Hits,
			l1d.Misses,
			r.BranchAccuracyPercent,
			r.Passed(),
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Config is the simulator configuration used
	Config *config.SimConfig `json:"config"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Failed is the number of benchmarks with at least one failure
	Failed int `json:"failed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []BenchmarkResult) ReportSummary {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalInstructions += r.InstructionsRetired
		summary.TotalWallTime += r.WallTime
		if !r.Passed() {
			summary.Failed++
		}
	}

	if summary.TotalInstructions > 0 {
		summary.AverageCPI = float64(summary.TotalCycles) / float64(summary.TotalInstructions)
	}

	return summary
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Config:    h.config.Sim,
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
