package pipeline

import (
	"github.com/sarchlab/rvpipe/emu"
	"github.com/sarchlab/rvpipe/insts"
)

// DecodeStage handles register read for the instruction in IF/ID.
type DecodeStage struct {
	regFile *emu.RegFile
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(regFile *emu.RegFile) *DecodeStage {
	return &DecodeStage{
		regFile: regFile,
	}
}

// Decode reads the source registers of the instruction in ifid. No forwarding
// is applied here; the execute stage resolves in-flight values.
func (s *DecodeStage) Decode(ifid *IFIDRegister) IDEXRegister {
	if !ifid.IsValid() {
		var r IDEXRegister
		r.Clear()
		return r
	}

	return IDEXRegister{
		Inst:           ifid.Inst,
		PC:             ifid.PC,
		Rs1Val:         s.regFile.ReadReg(ifid.Inst.Rs1),
		Rs2Val:         s.regFile.ReadReg(ifid.Inst.Rs2),
		PredictedTaken: ifid.PredictedTaken,
	}
}

// Reread refreshes the operand values of an ID/EX register that is being held
// in place, so that values committed while it waits are not lost.
func (s *DecodeStage) Reread(idex IDEXRegister) IDEXRegister {
	if !idex.IsValid() {
		return idex
	}

	idex.Rs1Val = s.regFile.ReadReg(idex.Inst.Rs1)
	idex.Rs2Val = s.regFile.ReadReg(idex.Inst.Rs2)
	return idex
}

// ExecuteStage handles ALU operations, address calculation and control
// transfer resolution.
type ExecuteStage struct {
	alu *emu.ALU
}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage() *ExecuteStage {
	return &ExecuteStage{
		alu: emu.NewALU(),
	}
}

// ExecuteResult holds the result of the execute stage.
type ExecuteResult struct {
	ALUResult  int32
	StoreValue int32

	// Taken is true for a taken conditional branch and for every jump.
	Taken bool
	// Target is the PC that follows the instruction.
	Target int
}

// Execute computes the result of the instruction in idex using the already
// forwarded operand values.
func (s *ExecuteStage) Execute(idex *IDEXRegister, rs1, rs2 int32) ExecuteResult {
	inst := idex.Inst
	result := ExecuteResult{Target: idex.PC + 1}

	switch inst.Op {
	case insts.OpADD, insts.OpSUB, insts.OpAND, insts.OpOR, insts.OpXOR, insts.OpSLT:
		result.ALUResult = s.alu.Compute(inst.Op, rs1, rs2)
	case insts.OpADDI, insts.OpLW:
		result.ALUResult = s.alu.Compute(inst.Op, rs1, inst.Imm)
	case insts.OpSW:
		result.ALUResult = s.alu.Compute(inst.Op, rs1, inst.Imm)
		result.StoreValue = rs2
	case insts.OpBEQ, insts.OpBNE:
		if s.alu.BranchTaken(inst.Op, rs1, rs2) {
			result.Taken = true
			result.Target = inst.BranchTarget()
		}
	case insts.OpJAL:
		result.ALUResult = int32(idex.PC + 1)
		result.Taken = true
		result.Target = inst.BranchTarget()
	case insts.OpJALR:
		result.ALUResult = int32(idex.PC + 1)
		result.Taken = true
		result.Target = s.alu.JumpTarget(rs1, inst.Imm)
	case insts.OpNOP:
	}

	return result
}

// WritebackStage handles register file writeback.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{
		regFile: regFile,
	}
}

// Writeback commits the instruction in memwb. It returns false for a bubble,
// which does not count as a committed instruction.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister) bool {
	inst := memwb.Inst

	switch inst.Op {
	case insts.OpADD, insts.OpSUB, insts.OpAND, insts.OpOR, insts.OpXOR, insts.OpSLT,
		insts.OpADDI, insts.OpLW, insts.OpJAL, insts.OpJALR:
		s.regFile.WriteReg(inst.Rd, memwb.Result())
		return true
	case insts.OpSW, insts.OpBEQ, insts.OpBNE:
		return true
	case insts.OpNOP:
		return false
	}

	return false
}
