package insts

import "fmt"

// IsNop returns true if the instruction does nothing in every stage.
func (i *Instruction) IsNop() bool {
	return i == nil || i.Op == OpNOP
}

// IsLoad returns true for lw.
func (i *Instruction) IsLoad() bool {
	return i != nil && i.Op == OpLW
}

// IsStore returns true for sw.
func (i *Instruction) IsStore() bool {
	return i != nil && i.Op == OpSW
}

// IsCondBranch returns true for beq and bne.
func (i *Instruction) IsCondBranch() bool {
	return i != nil && (i.Op == OpBEQ || i.Op == OpBNE)
}

// IsJump returns true for the unconditional transfers jal and jalr.
func (i *Instruction) IsJump() bool {
	return i != nil && (i.Op == OpJAL || i.Op == OpJALR)
}

// Dest returns the register written by the instruction. The second result is
// false if the instruction writes no register or writes x0, whose writes are
// dropped and therefore never need forwarding or hazard checks.
func (i *Instruction) Dest() (uint8, bool) {
	if i == nil {
		return 0, false
	}

	switch i.Format {
	case FormatR, FormatI, FormatLoad, FormatJump, FormatJumpReg:
		return i.Rd, i.Rd != 0
	case FormatNone, FormatStore, FormatBranch:
		return 0, false
	}

	return 0, false
}

// Sources returns the registers read by the instruction.
func (i *Instruction) Sources() []uint8 {
	if i == nil {
		return nil
	}

	switch i.Format {
	case FormatR, FormatStore, FormatBranch:
		return []uint8{i.Rs1, i.Rs2}
	case FormatI, FormatLoad, FormatJumpReg:
		return []uint8{i.Rs1}
	case FormatNone, FormatJump:
		return nil
	}

	return nil
}

// ReadsReg returns true if reg is one of the instruction's sources.
func (i *Instruction) ReadsReg(reg uint8) bool {
	for _, r := range i.Sources() {
		if r == reg {
			return true
		}
	}
	return false
}

// String returns the canonical assembly text of the instruction.
func (i *Instruction) String() string {
	if i == nil {
		return "nop"
	}

	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%s x%d, x%d, x%d", i.Op, i.Rd, i.Rs1, i.Rs2)
	case FormatI:
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rd, i.Rs1, i.Imm)
	case FormatLoad:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rd, i.Imm, i.Rs1)
	case FormatStore:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rs2, i.Imm, i.Rs1)
	case FormatBranch:
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rs1, i.Rs2, i.Imm)
	case FormatJump:
		return fmt.Sprintf("%s x%d, %d", i.Op, i.Rd, i.Imm)
	case FormatJumpReg:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rd, i.Imm, i.Rs1)
	case FormatNone:
		return "nop"
	}

	return "nop"
}

// BranchTarget returns the pc-relative target of a beq, bne or jal.
func (i *Instruction) BranchTarget() int {
	return i.PC + int(i.Imm)
}
