// Command benchmark runs the rvpipe timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags] [program.s ...]
//
// Flags:
//
//	-csv        Output results in CSV format (default: human-readable)
//	-json       Output results in JSON format
//	-config     Simulator configuration JSON file
//	-suite      Built-in programs to run: samples, micro, core, all or none
//	-no-verify  Skip the comparison against the functional emulator
//	-v          Dump the final pipeline state of every benchmark
//
// Program files given as arguments run after the built-in suite.
//
// Example:
//
//	# Run every built-in program with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
//
//	# Compare a two-level hierarchy on the sample programs
//	go run ./cmd/benchmark -suite samples -config l2.json
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/rvpipe/benchmarks"
	"github.com/sarchlab/rvpipe/loader"
	"github.com/sarchlab/rvpipe/timing/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	fs.SetOutput(stderr)
	csvOutput := fs.Bool("csv", false, "Output results in CSV format")
	jsonOutput := fs.Bool("json", false, "Output results in JSON format")
	configPath := fs.String("config", "", "Simulator configuration JSON file")
	suite := fs.String("suite", "all", "Built-in programs: samples, micro, core, all or none")
	noVerify := fs.Bool("no-verify", false, "Skip the comparison against the functional emulator")
	verbose := fs.Bool("v", false, "Dump the final pipeline state of every benchmark")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *csvOutput && *jsonOutput {
		_, _ = fmt.Fprintln(stderr, "Error: -csv and -json are mutually exclusive")
		return 2
	}

	builtin, err := suiteBenchmarks(*suite)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	// Configure harness
	cfg := benchmarks.DefaultConfig()
	cfg.Output = stdout
	cfg.Verify = !*noVerify
	cfg.Verbose = *verbose
	if *configPath != "" {
		cfg.Sim, err = config.LoadConfig(*configPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	harness := benchmarks.NewHarness(cfg)
	harness.AddBenchmarks(builtin)
	for _, path := range fs.Args() {
		prog, err := loader.Load(path)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		harness.AddBenchmark(benchmarks.FromProgram(prog))
	}

	if !*csvOutput && !*jsonOutput {
		_, _ = fmt.Fprintln(stdout, "rvpipe Timing Benchmark Harness")
		_, _ = fmt.Fprintln(stdout, "===============================")
		_, _ = fmt.Fprintf(stdout, "Predictor: %s (%d entries)\n", cfg.Sim.Predictor.Kind, cfg.Sim.Predictor.Size)
		_, _ = fmt.Fprintf(stdout, "Cycle budget: %d\n", cfg.Sim.MaxCycles)
		_, _ = fmt.Fprintln(stdout, "")
	}

	// Run benchmarks
	results, runErr := harness.RunAll()
	if runErr != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", runErr)
	}

	switch {
	case *csvOutput:
		harness.PrintCSV(results)
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error writing report: %v\n", err)
			return 1
		}
	default:
		harness.PrintResults(results)

		summary := benchmarks.Summarize(results)
		_, _ = fmt.Fprintln(stdout, "=== Summary ===")
		_, _ = fmt.Fprintf(stdout, "Benchmarks: %d (%d failed)\n", summary.TotalBenchmarks, summary.Failed)
		_, _ = fmt.Fprintf(stdout, "Average CPI: %.3f\n", summary.AverageCPI)
	}

	if runErr != nil || benchmarks.Summarize(results).Failed > 0 {
		return 1
	}
	return 0
}

// suiteBenchmarks returns the built-in benchmarks selected by name.
func suiteBenchmarks(name string) ([]benchmarks.Benchmark, error) {
	switch name {
	case "samples":
		return benchmarks.GetSamplePrograms(), nil
	case "micro":
		return benchmarks.GetMicrobenchmarks(), nil
	case "core":
		return benchmarks.GetCoreBenchmarks(), nil
	case "all":
		return append(benchmarks.GetSamplePrograms(), benchmarks.GetMicrobenchmarks()...), nil
	case "none":
		return nil, nil
	}

	return nil, fmt.Errorf("unknown suite %q", name)
}
