package emu

import "github.com/sarchlab/rvpipe/insts"

// ALU implements the arithmetic, logic, and comparison operations of the ISA.
// All arithmetic wraps around with 32-bit two's complement semantics.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Compute returns the result of an ALU opcode applied to two operands.
// For addi, lw, sw and jalr, y is the immediate and the result is the sum
// (effective address or jump base). Opcodes without an ALU result return 0.
func (a *ALU) Compute(op insts.Op, x, y int32) int32 {
	switch op {
	case insts.OpADD, insts.OpADDI, insts.OpLW, insts.OpSW, insts.OpJALR:
		return x + y
	case insts.OpSUB:
		return x - y
	case insts.OpAND:
		return x & y
	case insts.OpOR:
		return x | y
	case insts.OpXOR:
		return x ^ y
	case insts.OpSLT:
		if x < y {
			return 1
		}
		return 0
	case insts.OpNOP, insts.OpBEQ, insts.OpBNE, insts.OpJAL:
		return 0
	}
	return 0
}

// BranchTaken evaluates the condition of a conditional branch.
func (a *ALU) BranchTaken(op insts.Op, x, y int32) bool {
	switch op {
	case insts.OpBEQ:
		return x == y
	case insts.OpBNE:
		return x != y
	default:
		return false
	}
}

// JumpTarget computes the jalr target: base + offset with bit 0 cleared.
func (a *ALU) JumpTarget(base, offset int32) int {
	return int((base + offset) &^ 1)
}
