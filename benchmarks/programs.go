package benchmarks

// GetSamplePrograms returns the six demonstration programs: two ALU, two
// memory and two control-flow workloads. Bare "label:" lines are nops that
// keep their own PC, so branch offsets count them.
func GetSamplePrograms() []Benchmark {
	return []Benchmark{
		alu1(),
		alu2(),
		mem1(),
		mem2(),
		ctrl1(),
		ctrl2(),
	}
}

// alu1 sums 10 down to 1 with a bne back-edge.
func alu1() Benchmark {
	return Benchmark{
		Name:        "alu1",
		Description: "sum 1..10 in a loop - forwarding and a learned back-edge",
		Program: []string{
			"addi x1, x0, 10",
			"addi x2, x0, 0",
			"addi x5, x0, 1",
			"loop:",
			"add x2, x2, x1",
			"sub x1, x1, x5",
			"bne x1, x0, -2",
			"nop",
		},
		ExpectedRegs: map[uint8]int32{1: 0, 2: 55, 5: 1},
	}
}

// alu2 is a straight dependency chain through every logic operation.
func alu2() Benchmark {
	return Benchmark{
		Name:        "alu2",
		Description: "ALU dependency chain - back-to-back forwarding",
		Program: []string{
			"addi x1, x0, 5",
			"addi x2, x0, 2",
			"add x3, x1, x2",
			"sub x4, x3, x1",
			"xor x5, x3, x4",
			"or x6, x5, x2",
			"and x7, x6, x1",
			"nop",
		},
		ExpectedRegs: map[uint8]int32{3: 7, 4: 2, 5: 5, 6: 7, 7: 5},
	}
}

// mem1 has two loads each followed by a consumer.
func mem1() Benchmark {
	return Benchmark{
		Name:        "mem1",
		Description: "two load-use pairs - one bubble each",
		Program: []string{
			"addi x1, x0, 0",
			"lw x2, 0(x1)",
			"add x3, x2, x2",
			"lw x4, 1(x1)",
			"add x5, x4, x4",
			"nop",
		},
		ExpectedRegs: map[uint8]int32{2: 0, 3: 0, 4: 0, 5: 0},
	}
}

// mem2 stores one value into four consecutive words.
func mem2() Benchmark {
	return Benchmark{
		Name:        "mem2",
		Description: "four stores into one cache line",
		Program: []string{
			"addi x1, x0, 0",
			"addi x2, x0, 5",
			"sw x2, 0(x1)",
			"sw x2, 1(x1)",
			"sw x2, 2(x1)",
			"sw x2, 3(x1)",
			"nop",
		},
		ExpectedRegs:   map[uint8]int32{2: 5},
		ExpectedMemory: map[uint32]int32{0: 5, 1: 5, 2: 5, 3: 5},
	}
}

// ctrl1 counts down from 3.
func ctrl1() Benchmark {
	return Benchmark{
		Name:        "ctrl1",
		Description: "three-iteration countdown loop",
		Program: []string{
			"addi x1, x0, 3",
			"addi x5, x0, 1",
			"loop_ctrl:",
			"sub x1, x1, x5",
			"bne x1, x0, -1",
			"nop",
		},
		ExpectedRegs: map[uint8]int32{1: 0, 5: 1},
	}
}

// ctrl2 falls through a not-taken beq, then its bne always jumps back.
// It never terminates; the cycle budget stops it.
func ctrl2() Benchmark {
	return Benchmark{
		Name:        "ctrl2",
		Description: "not-taken beq and an endless taken bne",
		Program: []string{
			"addi x1, x0, 0",
			"addi x2, x0, 1",
			"beq x1, x2, 2",
			"addi x3, x0, 5",
			"bne x1, x2, -3",
			"nop",
		},
		ExpectedRegs: map[uint8]int32{1: 0, 2: 1, 3: 5},
		Endless:      true,
	}
}
