// Package main provides the entry point for rvpipe.
// rvpipe is a cycle-level simulator of a five-stage pipeline with a
// configurable cache hierarchy.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/sarchlab/rvpipe/benchmarks"
	"github.com/sarchlab/rvpipe/emu"
	"github.com/sarchlab/rvpipe/insts"
	"github.com/sarchlab/rvpipe/loader"
	"github.com/sarchlab/rvpipe/timing/config"
	"github.com/sarchlab/rvpipe/timing/core"
	"github.com/sarchlab/rvpipe/timing/pipeline"
)

// Exit codes.
const (
	exitOK = iota
	exitError
	exitUsage
	// exitMismatch covers a failed -check and a run that hit its budget.
	exitMismatch
)

// isTerminal reports whether w is an interactive terminal.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type options struct {
	configPath string
	saveConfig string
	maxCycles  uint64
	predictor  string
	emulate    bool
	check      bool
	trace      bool
	format     string
	verbose    bool

	set map[string]bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	if opts.saveConfig != "" {
		if err := cfg.SaveConfig(opts.saveConfig); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		if fs.NArg() == 0 {
			return exitOK
		}
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	format, err := resolveFormat(opts.format, stdout)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	programPath := fs.Arg(0)
	prog, err := loader.Load(programPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return exitError
	}

	if opts.verbose {
		_, _ = fmt.Fprintf(stderr, "Loaded: %s\n", programPath)
		_, _ = fmt.Fprintf(stderr, "Lines: %d\n", len(prog.Lines))
		_, _ = fmt.Fprintf(stderr, "Data segments: %d\n", len(prog.Segments))
	}

	if opts.emulate {
		return runEmulation(prog, cfg, stdout, stderr)
	}

	return runTiming(prog, cfg, opts, format, stdout, stderr)
}

func parseFlags(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	opts := &options{set: map[string]bool{}}

	fs := flag.NewFlagSet("rvpipe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to simulator configuration JSON file")
	fs.StringVar(&opts.saveConfig, "save-config", "", "Write the effective configuration to this path")
	fs.Uint64Var(&opts.maxCycles, "max-cycles", 0, "Cycle budget, 0 for unlimited (default from config)")
	fs.StringVar(&opts.predictor, "predictor", "", "Branch predictor kind: onebit or static")
	fs.BoolVar(&opts.emulate, "emulate", false, "Run the functional emulator only")
	fs.BoolVar(&opts.check, "check", false, "Compare the final registers with the functional emulator")
	fs.BoolVar(&opts.trace, "trace", false, "Dump the pipeline state to stderr after every cycle")
	fs.StringVar(&opts.format, "format", "auto", "Report format: auto, text, csv or json")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose output")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: rvpipe [options] <program.s>\n")
		_, _ = fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	return opts, fs, nil
}

// buildConfig loads the configuration file, if any, and applies the command
// line overrides on top of it.
func buildConfig(opts *options) (*config.SimConfig, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		cfg, err = config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	}

	if opts.set["max-cycles"] {
		cfg.MaxCycles = opts.maxCycles
	}
	if opts.set["predictor"] {
		cfg.Predictor.Kind = pipeline.PredictorKind(opts.predictor)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func resolveFormat(format string, stdout io.Writer) (string, error) {
	switch format {
	case "auto":
		if isTerminal(stdout) {
			return "text", nil
		}
		return "csv", nil
	case "text", "csv", "json":
		return format, nil
	}

	return "", fmt.Errorf("unknown format %q", format)
}

func printDiagnostics(w io.Writer, diags []insts.Diagnostic) {
	for _, d := range diags {
		_, _ = fmt.Fprintf(w, "warning: %v\n", d)
	}
}

// runEmulation runs the program in functional emulation mode.
func runEmulation(prog *loader.Program, cfg *config.SimConfig, stdout, stderr io.Writer) int {
	program, diags := insts.DecodeProgram(prog.Lines)
	printDiagnostics(stderr, diags)

	memory := emu.NewMemory()
	for _, seg := range prog.Segments {
		memory.LoadWords(seg.Base, seg.Words)
	}

	emulator := emu.NewEmulator(program,
		emu.WithMemory(memory),
		emu.WithMaxInstructions(cfg.MaxCycles),
	)
	err := emulator.Run()

	_, _ = fmt.Fprintf(stdout, "Program: %s\n", prog.Name)
	_, _ = fmt.Fprintf(stdout, "Instructions executed: %d\n", emulator.InstructionCount())
	printRegisters(stdout, emulator.RegFile().Snapshot())

	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, emu.ErrMaxInstructions) {
			return exitMismatch
		}
		return exitError
	}

	return exitOK
}

// runTiming runs the program through the pipelined core and prints a report.
func runTiming(
	prog *loader.Program,
	cfg *config.SimConfig,
	opts *options,
	format string,
	stdout, stderr io.Writer,
) int {
	c, err := core.Load(prog.Lines, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	printDiagnostics(stderr, c.Diagnostics())

	if err := prog.LoadInto(c); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	start := time.Now()
	var status pipeline.Status
	if opts.trace {
		for c.Status() == pipeline.StatusRunning {
			c.Tick()
			c.DumpState(stderr)
		}
		status = c.Status()
	} else {
		status = c.Run()
	}
	wallTime := time.Since(start)

	result := benchmarks.Collect(prog.Name, "", c, status, wallTime)

	code := exitOK
	if status != pipeline.StatusFinished {
		result.Failures = append(result.Failures,
			fmt.Sprintf("stopped after %d cycles", result.SimulatedCycles))
		code = exitMismatch
	}

	if opts.check && status == pipeline.StatusFinished {
		mismatches, err := c.Verify()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		for _, m := range mismatches {
			result.Failures = append(result.Failures, m.String())
		}
		if len(mismatches) > 0 {
			code = exitMismatch
		}
	}

	harness := benchmarks.NewHarness(benchmarks.HarnessConfig{
		Sim:    cfg,
		Output: stdout,
	})
	results := []benchmarks.BenchmarkResult{result}

	switch format {
	case "csv":
		harness.PrintCSV(results)
	case "json":
		if err := harness.PrintJSON(results); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error writing report: %v\n", err)
			return exitError
		}
	default:
		harness.PrintResults(results)
		printRegisters(stdout, c.Registers())
	}

	if opts.verbose {
		c.DumpState(stderr)
	}

	return code
}

func printRegisters(w io.Writer, regs [emu.NumRegs]int32) {
	_, _ = fmt.Fprintln(w, "Registers:")
	for i, v := range regs {
		if v != 0 {
			_, _ = fmt.Fprintf(w, "  x%-2d = %d\n", i, v)
		}
	}
}
