package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rvpipe/insts"
)

// ErrMaxInstructions is returned when the instruction limit is reached before
// the program runs off its end.
var ErrMaxInstructions = errors.New("max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the PC left the program.
	Exited bool

	// Err is set if execution cannot continue.
	Err error
}

// Emulator executes a decoded program one instruction at a time, without any
// pipeline timing. It is the functional reference the timing model is checked
// against.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	alu     *ALU
	program []*insts.Instruction

	pc int

	// Execution state
	instructionCount uint64 // non-nop instructions retired
	stepCount        uint64 // all instructions, nops included
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMemory sets the data memory. The emulator writes to it directly.
func WithMemory(memory *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = memory
	}
}

// WithRegFile sets the register file, e.g. to start from preset registers.
func WithRegFile(regFile *RegFile) EmulatorOption {
	return func(e *Emulator) {
		e.regFile = regFile
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute,
// nops included. A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new emulator for a decoded program.
func NewEmulator(program []*insts.Instruction, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		memory:  NewMemory(),
		alu:     NewALU(),
		program: program,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// PC returns the index of the next instruction to execute.
func (e *Emulator) PC() int {
	return e.pc
}

// InstructionCount returns the number of non-nop instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Done returns true once the PC is outside the program.
func (e *Emulator) Done() bool {
	return e.pc < 0 || e.pc >= len(e.program)
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.Done() {
		return StepResult{Exited: true}
	}

	if e.maxInstructions > 0 && e.stepCount >= e.maxInstructions {
		return StepResult{
			Err: fmt.Errorf("pc %d: %w", e.pc, ErrMaxInstructions),
		}
	}

	inst := e.program[e.pc]
	e.execute(inst)
	e.stepCount++
	if !inst.IsNop() {
		e.instructionCount++
	}

	return StepResult{Exited: e.Done()}
}

// Run executes instructions until the PC leaves the program or an error
// occurs.
func (e *Emulator) Run() error {
	for {
		result := e.Step()
		if result.Err != nil {
			return result.Err
		}
		if result.Exited {
			return nil
		}
	}
}

// execute applies one instruction to the architectural state.
func (e *Emulator) execute(inst *insts.Instruction) {
	rs1 := e.regFile.ReadReg(inst.Rs1)
	rs2 := e.regFile.ReadReg(inst.Rs2)
	next := e.pc + 1

	switch inst.Op {
	case insts.OpADD, insts.OpSUB, insts.OpAND, insts.OpOR, insts.OpXOR, insts.OpSLT:
		e.regFile.WriteReg(inst.Rd, e.alu.Compute(inst.Op, rs1, rs2))
	case insts.OpADDI:
		e.regFile.WriteReg(inst.Rd, e.alu.Compute(inst.Op, rs1, inst.Imm))
	case insts.OpLW:
		addr := e.alu.Compute(inst.Op, rs1, inst.Imm)
		e.regFile.WriteReg(inst.Rd, e.memory.Read(uint32(addr)))
	case insts.OpSW:
		addr := e.alu.Compute(inst.Op, rs1, inst.Imm)
		e.memory.Write(uint32(addr), rs2)
	case insts.OpBEQ, insts.OpBNE:
		if e.alu.BranchTaken(inst.Op, rs1, rs2) {
			next = inst.BranchTarget()
		}
	case insts.OpJAL:
		e.regFile.WriteReg(inst.Rd, int32(e.pc+1))
		next = inst.BranchTarget()
	case insts.OpJALR:
		next = e.alu.JumpTarget(rs1, inst.Imm)
		e.regFile.WriteReg(inst.Rd, int32(e.pc+1))
	case insts.OpNOP:
	}

	e.pc = next
}
