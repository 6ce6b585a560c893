package pipeline

import (
	"github.com/sarchlab/rvpipe/insts"
	"github.com/sarchlab/rvpipe/timing/cache"
)

// CachedFetchStage fetches instructions through the instruction side of the
// cache hierarchy. Instruction contents come from the decoded program; the
// cache only decides how long the fetch takes.
type CachedFetchStage struct {
	hierarchy *cache.Hierarchy
	program   []*insts.Instruction

	// Held state: a missed fetch is performed once and its instruction is
	// delivered when the pipeline retries the same PC after the freeze.
	pending   bool
	pendingPC int
	held      *insts.Instruction
}

// NewCachedFetchStage creates a new cached fetch stage.
func NewCachedFetchStage(hierarchy *cache.Hierarchy, program []*insts.Instruction) *CachedFetchStage {
	return &CachedFetchStage{
		hierarchy: hierarchy,
		program:   program,
	}
}

// Fetch fetches the instruction at pc. On a miss it returns a nil
// instruction and the number of cycles the pipeline must freeze.
func (s *CachedFetchStage) Fetch(pc int) (*insts.Instruction, uint64) {
	// If PC changed, cancel any pending request (e.g., redirect)
	if s.pending && s.pendingPC != pc {
		s.Reset()
	}

	if s.pending {
		inst := s.held
		s.Reset()
		return inst, 0
	}

	inst := s.program[pc]
	result := s.hierarchy.FetchInstruction(pc)

	if result.Hit || result.Latency == 0 {
		return inst, 0
	}

	s.pending = true
	s.pendingPC = pc
	s.held = inst

	return nil, result.Latency
}

// Pending returns true while a missed fetch waits to be delivered.
func (s *CachedFetchStage) Pending() bool {
	return s.pending
}

// Reset clears pending state.
func (s *CachedFetchStage) Reset() {
	s.pending = false
	s.pendingPC = 0
	s.held = nil
}

// MemoryResult holds the result of the memory stage.
type MemoryResult struct {
	MemData int32
}

// CachedMemoryStage performs loads and stores through the data side of the
// cache hierarchy.
type CachedMemoryStage struct {
	hierarchy *cache.Hierarchy

	// Completed state: a missed access is performed once. The result is held
	// here and handed to the same instruction when MEM runs again after the
	// freeze, so a no-allocate store is not written twice and a load does
	// not miss forever.
	completed       bool
	completedPC     int
	completedResult MemoryResult
}

// NewCachedMemoryStage creates a new cached memory stage.
func NewCachedMemoryStage(hierarchy *cache.Hierarchy) *CachedMemoryStage {
	return &CachedMemoryStage{
		hierarchy: hierarchy,
	}
}

// Access performs the memory operation of the instruction in exmem. On a miss
// it returns the number of cycles the pipeline must freeze.
func (s *CachedMemoryStage) Access(exmem *EXMEMRegister) (MemoryResult, uint64) {
	inst := exmem.Inst
	if !inst.IsLoad() && !inst.IsStore() {
		s.Reset()
		return MemoryResult{}, 0
	}

	if s.completed && s.completedPC == exmem.PC {
		result := s.completedResult
		s.Reset()
		return result, 0
	}
	s.Reset()

	addr := uint32(exmem.ALUResult)

	var access cache.AccessResult
	if inst.IsLoad() {
		access = s.hierarchy.LoadData(addr)
	} else {
		access = s.hierarchy.StoreData(addr, exmem.StoreValue)
	}

	result := MemoryResult{MemData: access.Value}

	if access.Hit || access.Latency == 0 {
		return result, 0
	}

	s.completed = true
	s.completedPC = exmem.PC
	s.completedResult = result

	return MemoryResult{}, access.Latency
}

// Reset clears completed state.
func (s *CachedMemoryStage) Reset() {
	s.completed = false
	s.completedPC = 0
	s.completedResult = MemoryResult{}
}
