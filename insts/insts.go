// Package insts provides instruction definitions and decoding for the
// simulator's RISC-V-like teaching ISA.
//
// This package turns one line of assembly text into a structured, immutable
// instruction. It supports:
//   - R-type ALU operations: add, sub, and, or, xor, slt
//   - I-type ALU operations: addi
//   - Memory operations: lw rd, imm(rs1) and sw rs2, imm(rs1)
//   - Conditional branches: beq, bne (pc-relative, in instruction units)
//   - Jumps: jal rd, imm (pc-relative) and jalr rd, imm(rs1)
//
// Decoding is total: a malformed line never fails, it decodes to nop and is
// reported through a Diagnostic.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, diag := decoder.Decode("loop: add x3, x1, x2", 4)
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Rs2: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Rs2)
package insts
