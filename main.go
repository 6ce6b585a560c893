// Package main provides the entry point for rvpipe.
// rvpipe is a cycle-level five-stage pipeline and cache hierarchy simulator
// built on the Akita cache directory.
//
// For the full CLI, use: go run ./cmd/rvpipe
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvpipe - Five-Stage Pipeline Simulator")
	fmt.Println("")
	fmt.Println("Usage: rvpipe [options] <program.s>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to simulator configuration JSON file")
	fmt.Println("  -check     Compare final registers with the functional emulator")
	fmt.Println("  -emulate   Run the functional emulator only")
	fmt.Println("  -format    Report format: auto, text, csv or json")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvpipe' for the full CLI and")
	fmt.Println("'go run ./cmd/benchmark' for the benchmark harness.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rvpipe' instead.")
	}
}
