// Package main provides a profiling wrapper for rvpipe to identify performance
// bottlenecks in the simulator itself.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/rvpipe/emu"
	"github.com/sarchlab/rvpipe/insts"
	"github.com/sarchlab/rvpipe/loader"
	"github.com/sarchlab/rvpipe/timing/config"
	"github.com/sarchlab/rvpipe/timing/core"
)

var (
	emulate    = flag.Bool("emulate", false, "Profile the functional emulator instead of the timing core")
	configPath = flag.String("config", "", "Simulator configuration JSON file")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	repeat     = flag.Int("repeat", 1000, "number of times to run the program")
	maxCycles  = flag.Uint64("max-cycles", 1000000, "cycle budget per run (0 = unlimited)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.s>\n")
		_, _ = fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.MaxCycles = *maxCycles

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Lines: %d\n", len(prog.Lines))

	start := time.Now()
	deadline := start.Add(*duration)

	var runs int
	var instrCount, cycleCount uint64
	for runs < *repeat && time.Now().Before(deadline) {
		var instrs, cycles uint64
		if *emulate {
			instrs, err = runEmulationProfile(prog, cfg)
		} else {
			instrs, cycles, err = runTimingProfile(prog, cfg)
		}
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		instrCount += instrs
		cycleCount += cycles
		runs++
	}

	elapsed := time.Since(start)
	if runs < *repeat {
		fmt.Printf("\nTimeout reached after %v - stopped after %d runs\n", *duration, runs)
	}

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Runs: %d\n", runs)
	fmt.Printf("Instructions executed: %d\n", instrCount)
	if !*emulate {
		fmt.Printf("Cycles simulated: %d\n", cycleCount)
	}
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
		if !*emulate {
			fmt.Printf("Cycles/second: %.0f\n", float64(cycleCount)/elapsed.Seconds())
		}
	}
}

// runEmulationProfile runs the program once in functional emulation mode.
func runEmulationProfile(prog *loader.Program, cfg *config.SimConfig) (uint64, error) {
	program, _ := insts.DecodeProgram(prog.Lines)

	memory := emu.NewMemory()
	for _, seg := range prog.Segments {
		memory.LoadWords(seg.Base, seg.Words)
	}

	emulator := emu.NewEmulator(program,
		emu.WithMemory(memory),
		emu.WithMaxInstructions(cfg.MaxCycles),
	)
	err := emulator.Run()

	return emulator.InstructionCount(), err
}

// runTimingProfile runs the program once through the timing core.
func runTimingProfile(prog *loader.Program, cfg *config.SimConfig) (uint64, uint64, error) {
	c, err := core.Load(prog.Lines, cfg)
	if err != nil {
		return 0, 0, err
	}
	if err := prog.LoadInto(c); err != nil {
		return 0, 0, err
	}

	c.Run()
	stats := c.Stats()

	return stats.Instructions, stats.Cycles, nil
}
