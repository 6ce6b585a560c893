package benchmarks

import (
	"fmt"

	"github.com/sarchlab/rvpipe/loader"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark targets a specific pipeline or cache characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		loopSimulation(),
		arraySum(),
		conflictStores(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSimulation(),
		arraySum(),
		branchTaken(),
	}
}

// 1. Arithmetic Sequential - Tests ALU throughput with independent operations
func arithmeticSequential() Benchmark {
	var program []string
	for i := 0; i < 4; i++ {
		for r := 1; r <= 5; r++ {
			program = append(program, fmt.Sprintf("addi x%d, x%d, 1", r, r))
		}
	}

	return Benchmark{
		Name:         "arithmetic_sequential",
		Description:  "20 ADDIs over 5 registers - measures ALU throughput",
		Program:      program,
		ExpectedRegs: map[uint8]int32{1: 4, 2: 4, 3: 4, 4: 4, 5: 4},
	}
}

// 2. Dependency Chain - Tests forwarding on a serial chain
func dependencyChain() Benchmark {
	program := make([]string, 20)
	for i := range program {
		program[i] = "addi x1, x1, 1"
	}

	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIs - every operand comes from EX/MEM",
		Program:      program,
		ExpectedRegs: map[uint8]int32{1: 20},
	}
}

// 3. Memory Sequential - Tests store then load of a few lines
func memorySequential() Benchmark {
	return Benchmark{
		Name:        "memory_sequential",
		Description: "4 stores then 4 loads, one word per line",
		Program: []string{
			"addi x1, x0, 11",
			"addi x2, x0, 22",
			"addi x3, x0, 33",
			"addi x4, x0, 44",
			"sw x1, 0(x0)",
			"sw x2, 4(x0)",
			"sw x3, 8(x0)",
			"sw x4, 12(x0)",
			"lw x5, 0(x0)",
			"lw x6, 4(x0)",
			"lw x7, 8(x0)",
			"lw x8, 12(x0)",
		},
		ExpectedRegs:   map[uint8]int32{5: 11, 6: 22, 7: 33, 8: 44},
		ExpectedMemory: map[uint32]int32{0: 11, 4: 22, 8: 33, 12: 44},
	}
}

// 4. Function Calls - Tests jal/jalr flushes. Calls sit at odd PCs so every
// return address is even.
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "3 calls to a leaf that adds 5 - two flushes per call",
		Program: []string{
			"addi x10, x0, 0",
			"jal x1, 7",
			"nop",
			"jal x1, 5",
			"nop",
			"jal x1, 3",
			"addi x11, x10, 0",
			"jal x0, 3",
			"addi x10, x10, 5",
			"jalr x0, 0(x1)",
		},
		ExpectedRegs: map[uint8]int32{1: 6, 10: 15, 11: 15},
	}
}

// 5. Branch Taken - Tests cold mispredictions on forward branches
func branchTaken() Benchmark {
	return Benchmark{
		Name:        "branch_taken",
		Description: "3 taken forward branches each skipping one instruction",
		Program: []string{
			"addi x1, x0, 1",
			"bne x1, x0, 2",
			"addi x2, x0, 99",
			"beq x0, x0, 2",
			"addi x3, x0, 99",
			"bne x1, x0, 2",
			"addi x4, x0, 99",
			"addi x5, x0, 7",
		},
		ExpectedRegs: map[uint8]int32{2: 0, 3: 0, 4: 0, 5: 7},
	}
}

// 6. Loop Simulation - Tests a counted loop with slt as the exit test
func loopSimulation() Benchmark {
	return Benchmark{
		Name:        "loop_simulation",
		Description: "10-iteration counted loop",
		Program: []string{
			"addi x1, x0, 0",
			"addi x2, x0, 10",
			"addi x1, x1, 1",
			"slt x3, x1, x2",
			"bne x3, x0, -2",
		},
		ExpectedRegs: map[uint8]int32{1: 10, 3: 0},
	}
}

// 7. Array Sum - Tests a load-use stall on every iteration
func arraySum() Benchmark {
	return Benchmark{
		Name:        "array_sum",
		Description: "sum of an 8-word array - one load-use bubble per element",
		Program: []string{
			"addi x1, x0, 0",
			"addi x2, x0, 8",
			"addi x3, x0, 0",
			"lw x4, 0(x1)",
			"add x3, x3, x4",
			"addi x1, x1, 1",
			"bne x1, x2, -3",
			"sw x3, 8(x0)",
		},
		Data: []loader.Segment{
			{Base: 0, Words: []int32{3, 1, 4, 1, 5, 9, 2, 6}},
		},
		ExpectedRegs:   map[uint8]int32{1: 8, 3: 31},
		ExpectedMemory: map[uint32]int32{8: 31},
	}
}

// 8. Conflict Stores - Tests evictions and write-backs. With the default L1D
// every address is 128 words apart and lands in the same set.
func conflictStores() Benchmark {
	return Benchmark{
		Name:        "conflict_stores",
		Description: "4 stores mapping to one 2-way set - dirty evictions",
		Program: []string{
			"addi x1, x0, 0",
			"addi x2, x0, 4",
			"addi x5, x0, 1",
			"sw x5, 0(x1)",
			"addi x1, x1, 128",
			"sub x2, x2, x5",
			"bne x2, x0, -3",
			"lw x6, 0(x0)",
		},
		ExpectedRegs:   map[uint8]int32{1: 512, 6: 1},
		ExpectedMemory: map[uint32]int32{0: 1, 128: 1, 256: 1, 384: 1},
	}
}
