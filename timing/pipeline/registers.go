// Package pipeline provides the 5-stage in-order pipeline model: latches,
// stages, hazard detection, branch prediction and the cycle-level state
// machine that ties them together.
package pipeline

import "github.com/sarchlab/rvpipe/insts"

// IFIDRegister holds state between Fetch and Decode stages.
type IFIDRegister struct {
	// Inst is the fetched instruction. It is insts.Nop for a bubble.
	Inst *insts.Instruction

	// PC is the program counter of the fetched instruction.
	PC int

	// PredictedTaken is the prediction made when a conditional branch was
	// fetched.
	PredictedTaken bool
}

// Clear turns the register into a bubble.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{Inst: insts.Nop, PC: -1}
}

// IsValid returns true if the register holds a real instruction.
func (r IFIDRegister) IsValid() bool { return !r.Inst.IsNop() }

// IDEXRegister holds state between Decode and Execute stages.
type IDEXRegister struct {
	Inst *insts.Instruction
	PC   int

	// Register values read from the register file at decode.
	Rs1Val int32
	Rs2Val int32

	// PredictedTaken is propagated from IF/ID.
	PredictedTaken bool
}

// Clear turns the register into a bubble.
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{Inst: insts.Nop, PC: -1}
}

// IsValid returns true if the register holds a real instruction.
func (r IDEXRegister) IsValid() bool { return !r.Inst.IsNop() }

// EXMEMRegister holds state between Execute and Memory stages.
type EXMEMRegister struct {
	Inst *insts.Instruction
	PC   int

	// ALU result (address for load/store, link address for jumps).
	ALUResult int32

	// Value to store for store instructions.
	StoreValue int32
}

// Clear turns the register into a bubble.
func (r *EXMEMRegister) Clear() {
	*r = EXMEMRegister{Inst: insts.Nop, PC: -1}
}

// IsValid returns true if the register holds a real instruction.
func (r EXMEMRegister) IsValid() bool { return !r.Inst.IsNop() }

// MEMWBRegister holds state between Memory and Writeback stages.
type MEMWBRegister struct {
	Inst *insts.Instruction
	PC   int

	// ALU result (for ALU instructions and jumps).
	ALUResult int32

	// Data read from memory (for loads).
	MemData int32
}

// Clear turns the register into a bubble.
func (r *MEMWBRegister) Clear() {
	*r = MEMWBRegister{Inst: insts.Nop, PC: -1}
}

// IsValid returns true if the register holds a real instruction.
func (r MEMWBRegister) IsValid() bool { return !r.Inst.IsNop() }

// Result returns the value the instruction writes back.
func (r *MEMWBRegister) Result() int32 {
	if r.Inst.IsLoad() {
		return r.MemData
	}
	return r.ALUResult
}

// Latches is a copy of all four pipeline registers.
type Latches struct {
	IFID  IFIDRegister
	IDEX  IDEXRegister
	EXMEM EXMEMRegister
	MEMWB MEMWBRegister
}

// Empty returns true if every latch holds a bubble.
func (l Latches) Empty() bool {
	return !l.IFID.IsValid() && !l.IDEX.IsValid() &&
		!l.EXMEM.IsValid() && !l.MEMWB.IsValid()
}

func bubbles() Latches {
	var l Latches
	l.IFID.Clear()
	l.IDEX.Clear()
	l.EXMEM.Clear()
	l.MEMWB.Clear()
	return l
}
