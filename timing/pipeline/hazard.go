package pipeline

import "github.com/sarchlab/rvpipe/insts"

// ForwardSource indicates where a forwarded value should come from.
type ForwardSource int

const (
	// ForwardNone means no forwarding needed - use the latched value.
	ForwardNone ForwardSource = iota
	// ForwardFromEXMEM means forward from EX/MEM pipeline register.
	ForwardFromEXMEM
	// ForwardFromMEMWB means forward from MEM/WB pipeline register.
	ForwardFromMEMWB
)

// String returns a short name for the source.
func (f ForwardSource) String() string {
	switch f {
	case ForwardFromEXMEM:
		return "EX/MEM"
	case ForwardFromMEMWB:
		return "MEM/WB"
	default:
		return "none"
	}
}

// ForwardingResult contains forwarding decisions for both source operands.
type ForwardingResult struct {
	ForwardRs1 ForwardSource
	ForwardRs2 ForwardSource
}

// StallResult contains stall and flush control signals.
type StallResult struct {
	// StallIF indicates the IF stage should not fetch this cycle.
	StallIF bool
	// StallID indicates IF/ID must hold its instruction.
	StallID bool
	// StallEX indicates ID/EX must hold its instruction.
	StallEX bool
	// InsertBubbleEX indicates a bubble (NOP) should be inserted into ID/EX.
	InsertBubbleEX bool
	// FlushIF indicates IF/ID should be flushed.
	FlushIF bool
	// FlushID indicates ID/EX should be flushed.
	FlushID bool
}

// HazardUnit detects data hazards and determines forwarding/stall signals.
type HazardUnit struct {
	// checkMEM extends load-use detection to loads in EX/MEM.
	checkMEM bool
}

// NewHazardUnit creates a new hazard detection unit. When checkMEM is set, a
// load in EX/MEM also stalls a dependent instruction in ID.
func NewHazardUnit(checkMEM bool) *HazardUnit {
	return &HazardUnit{checkMEM: checkMEM}
}

// DetectForwarding determines if forwarding is needed for the instruction in
// ID/EX. EX/MEM takes priority over MEM/WB as it holds the more recent write.
func (h *HazardUnit) DetectForwarding(
	idex *IDEXRegister,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardingResult {
	result := ForwardingResult{
		ForwardRs1: ForwardNone,
		ForwardRs2: ForwardNone,
	}

	if !idex.IsValid() {
		return result
	}

	for _, reg := range idex.Inst.Sources() {
		src := h.detectForwardForReg(reg, exmem, memwb)
		if reg == idex.Inst.Rs1 {
			result.ForwardRs1 = src
		}
		if reg == idex.Inst.Rs2 {
			result.ForwardRs2 = src
		}
	}

	return result
}

// detectForwardForReg checks if a specific register needs forwarding.
func (h *HazardUnit) detectForwardForReg(
	reg uint8,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardSource {
	// x0 always reads as 0, no need to forward
	if reg == 0 {
		return ForwardNone
	}

	// A load in EX/MEM has no value yet; the load-use stall keeps its
	// consumers out of EX until it reaches MEM/WB.
	if rd, ok := exmem.Inst.Dest(); ok && rd == reg && !exmem.Inst.IsLoad() {
		return ForwardFromEXMEM
	}

	if rd, ok := memwb.Inst.Dest(); ok && rd == reg {
		return ForwardFromMEMWB
	}

	return ForwardNone
}

// GetForwardedValue returns the value to use based on forwarding decision.
func (h *HazardUnit) GetForwardedValue(
	forward ForwardSource,
	originalValue int32,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) int32 {
	switch forward {
	case ForwardFromEXMEM:
		return exmem.ALUResult
	case ForwardFromMEMWB:
		return memwb.Result()
	default:
		return originalValue
	}
}

// DetectLoadUseHazard reports whether the instruction in ID reads the
// destination of a load that is still in ID/EX or, if enabled, EX/MEM.
func (h *HazardUnit) DetectLoadUseHazard(
	ifid *IFIDRegister,
	idex *IDEXRegister,
	exmem *EXMEMRegister,
) bool {
	if !ifid.IsValid() {
		return false
	}

	if loadFeeds(idex.Inst, ifid.Inst) {
		return true
	}

	return h.checkMEM && loadFeeds(exmem.Inst, ifid.Inst)
}

// loadFeeds reports whether producer is a load whose destination consumer
// reads.
func loadFeeds(producer, consumer *insts.Instruction) bool {
	if !producer.IsLoad() {
		return false
	}

	rd, ok := producer.Dest()
	return ok && consumer.ReadsReg(rd)
}

// ComputeStalls computes stall and flush signals for one cycle.
// memStall freezes EX, ID and IF behind a waiting memory access. A redirect
// from EX flushes IF/ID and ID/EX and overrides any load-use bubble.
func (h *HazardUnit) ComputeStalls(loadUseHazard, memStall, redirect bool) StallResult {
	result := StallResult{}

	if memStall {
		result.StallIF = true
		result.StallID = true
		result.StallEX = true
		return result
	}

	if redirect {
		result.StallIF = true
		result.FlushIF = true
		result.FlushID = true
		return result
	}

	// Load-use hazard: hold IF/ID, skip fetch, bubble into ID/EX
	if loadUseHazard {
		result.StallIF = true
		result.StallID = true
		result.InsertBubbleEX = true
	}

	return result
}
