package pipeline

import (
	"github.com/sarchlab/rvpipe/emu"
	"github.com/sarchlab/rvpipe/insts"
	"github.com/sarchlab/rvpipe/timing/cache"
)

// Status is the run state of a pipeline.
type Status int

const (
	// StatusRunning means the program has not drained yet.
	StatusRunning Status = iota
	// StatusFinished means the PC left the program and every latch drained.
	StatusFinished
	// StatusIncomplete means the cycle budget ran out first.
	StatusIncomplete
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions committed. Bubbles and
	// nops do not count.
	Instructions uint64
	// StallsData is the number of load-use bubbles inserted.
	StallsData uint64
	// StallsCache is the number of cycles the pipeline was frozen by cache
	// misses.
	StallsCache uint64
	// CacheStallEvents is the number of cache misses that froze the pipeline.
	CacheStallEvents uint64
	// Flushes is the number of pipeline flushes (mispredictions and jumps).
	Flushes uint64
	// BranchPredictions is the number of conditional branches resolved.
	BranchPredictions uint64
	// BranchCorrect is the number of correctly predicted branches.
	BranchCorrect uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// BranchAccuracy returns the fraction of correctly predicted branches.
func (s Statistics) BranchAccuracy() float64 {
	if s.BranchPredictions == 0 {
		return 0
	}
	return float64(s.BranchCorrect) / float64(s.BranchPredictions)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithHierarchy sets the cache hierarchy used by fetch and memory stages.
func WithHierarchy(h *cache.Hierarchy) PipelineOption {
	return func(p *Pipeline) {
		p.hierarchy = h
	}
}

// WithBranchPredictor sets the branch predictor configuration.
func WithBranchPredictor(config BranchPredictorConfig) PipelineOption {
	return func(p *Pipeline) {
		p.branchPredictor = NewBranchPredictor(config)
	}
}

// WithMaxCycles sets the cycle budget. A value of 0 means no limit.
func WithMaxCycles(max uint64) PipelineOption {
	return func(p *Pipeline) {
		p.maxCycles = max
	}
}

// WithLoadUseCheckMEM selects whether loads in EX/MEM also trigger load-use
// stalls. It is enabled by default.
func WithLoadUseCheckMEM(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.loadUseCheckMEM = enabled
	}
}

// Pipeline implements a 5-stage pipelined CPU model.
// Stages: Fetch (IF) -> Decode (ID) -> Execute (EX) -> Memory (MEM) -> Writeback (WB)
type Pipeline struct {
	// Pipeline registers as of the end of the last cycle.
	latches Latches

	program []*insts.Instruction

	// Pipeline stages
	fetchStage     *CachedFetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *CachedMemoryStage
	writebackStage *WritebackStage

	hazardUnit      *HazardUnit
	loadUseCheckMEM bool

	branchPredictor *BranchPredictor

	hierarchy *cache.Hierarchy

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory

	// Program counter (instruction index)
	pc int

	// stallCycles is the remaining cache-miss freeze.
	stallCycles uint64
	// loadUseStall is set after a load-use bubble so the held consumer is
	// not stalled a second time.
	loadUseStall bool

	maxCycles uint64
	status    Status

	stats Statistics

	// Per-cycle flags for visualization
	lastCommitted  *insts.Instruction
	flushedPCs     []int
	cacheStall     bool
	injectedBubble bool
}

// NewPipeline creates a new 5-stage pipeline for a decoded program.
func NewPipeline(
	program []*insts.Instruction,
	regFile *emu.RegFile,
	memory *emu.Memory,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		latches:         bubbles(),
		program:         program,
		decodeStage:     NewDecodeStage(regFile),
		executeStage:    NewExecuteStage(),
		writebackStage:  NewWritebackStage(regFile),
		loadUseCheckMEM: true,
		branchPredictor: NewBranchPredictor(DefaultBranchPredictorConfig()),
		regFile:         regFile,
		memory:          memory,
		lastCommitted:   insts.Nop,
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	if p.hierarchy == nil {
		h, err := cache.NewHierarchy(cache.DefaultHierarchyConfig(), memory)
		if err != nil {
			panic(err)
		}
		p.hierarchy = h
	}

	p.hazardUnit = NewHazardUnit(p.loadUseCheckMEM)
	p.fetchStage = NewCachedFetchStage(p.hierarchy, program)
	p.memoryStage = NewCachedMemoryStage(p.hierarchy)

	p.updateStatus()

	return p
}

// PC returns the index of the next instruction to fetch.
func (p *Pipeline) PC() int {
	return p.pc
}

// GetIFID returns the IF/ID pipeline register.
func (p *Pipeline) GetIFID() IFIDRegister {
	return p.latches.IFID
}

// GetIDEX returns the ID/EX pipeline register.
func (p *Pipeline) GetIDEX() IDEXRegister {
	return p.latches.IDEX
}

// GetEXMEM returns the EX/MEM pipeline register.
func (p *Pipeline) GetEXMEM() EXMEMRegister {
	return p.latches.EXMEM
}

// GetMEMWB returns the MEM/WB pipeline register.
func (p *Pipeline) GetMEMWB() MEMWBRegister {
	return p.latches.MEMWB
}

// Latches returns a copy of all four pipeline registers.
func (p *Pipeline) Latches() Latches {
	return p.latches
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// BranchPredictor returns the branch predictor.
func (p *Pipeline) BranchPredictor() *BranchPredictor {
	return p.branchPredictor
}

// Hierarchy returns the cache hierarchy.
func (p *Pipeline) Hierarchy() *cache.Hierarchy {
	return p.hierarchy
}

// RegFile returns the register file.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// StallCycles returns the remaining cache-miss freeze.
func (p *Pipeline) StallCycles() uint64 {
	return p.stallCycles
}

// Status returns the run state.
func (p *Pipeline) Status() Status {
	return p.status
}

// Finished returns true once the program has drained.
func (p *Pipeline) Finished() bool {
	return p.status == StatusFinished
}

// LastCommitted returns the instruction written back in the last cycle, or
// insts.Nop.
func (p *Pipeline) LastCommitted() *insts.Instruction {
	return p.lastCommitted
}

// FlushedPCs returns the PCs of instructions discarded in the last cycle.
func (p *Pipeline) FlushedPCs() []int {
	return p.flushedPCs
}

// CacheStall returns true if the pipeline was frozen by a cache miss in the
// last cycle.
func (p *Pipeline) CacheStall() bool {
	return p.cacheStall
}

// InjectedBubble returns true if a load-use bubble was inserted in the last
// cycle.
func (p *Pipeline) InjectedBubble() bool {
	return p.injectedBubble
}

// Run ticks until the program finishes or the cycle budget runs out. Without
// a budget a non-terminating program never returns.
func (p *Pipeline) Run() Status {
	for p.status == StatusRunning {
		p.Tick()
	}
	return p.status
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && p.status == StatusRunning; i++ {
		p.Tick()
	}
	return p.status == StatusRunning
}

// Tick executes one pipeline cycle.
//
// Every stage reads the latches as they were at the end of the previous
// cycle and the new latch values are assigned only after all stages ran.
// Stages are evaluated WB, MEM, EX, ID, IF so that EX can override ID and IF
// with a flush in the same cycle.
//
// A cache miss freezes MEM, EX, ID and IF for the reported latency. WB keeps
// draining while frozen. Once the freeze ends the missed access is delivered
// without being repeated.
func (p *Pipeline) Tick() {
	if p.status != StatusRunning {
		return
	}

	p.stats.Cycles++

	p.flushedPCs = nil
	p.cacheStall = false
	p.injectedBubble = false

	s := p.latches
	next := s

	// Stage 5: Writeback
	p.lastCommitted = s.MEMWB.Inst
	if p.writebackStage.Writeback(&s.MEMWB) {
		p.stats.Instructions++
	}
	next.MEMWB.Clear()

	if p.stallCycles > 0 {
		p.stallCycles--
		p.cacheStall = true
		next.IDEX = p.decodeStage.Reread(s.IDEX)
		p.latches = next
		p.updateStatus()
		return
	}

	// Stage 4: Memory
	memResult, memLatency := p.memoryStage.Access(&s.EXMEM)
	memStall := memLatency > 0
	if memStall {
		p.beginCacheStall(memLatency)
	} else {
		next.MEMWB = MEMWBRegister{
			Inst:      s.EXMEM.Inst,
			PC:        s.EXMEM.PC,
			ALUResult: s.EXMEM.ALUResult,
			MemData:   memResult.MemData,
		}
	}

	// Stage 3: Execute
	redirect := false
	redirectPC := 0
	if !memStall {
		next.EXMEM, redirect, redirectPC = p.execute(&s)
	}

	// Stage 2: Decode hazard check
	loadUse := false
	switch {
	case redirect:
		p.loadUseStall = false
	case memStall:
	case p.loadUseStall:
		p.loadUseStall = false
	default:
		loadUse = p.hazardUnit.DetectLoadUseHazard(&s.IFID, &s.IDEX, &s.EXMEM)
	}

	stalls := p.hazardUnit.ComputeStalls(loadUse, memStall, redirect)

	switch {
	case stalls.StallEX:
		next.IDEX = p.decodeStage.Reread(s.IDEX)
	case stalls.FlushID:
		next.IDEX.Clear()
	case stalls.InsertBubbleEX:
		next.IDEX.Clear()
		p.stats.StallsData++
		p.loadUseStall = true
		p.injectedBubble = true
	default:
		next.IDEX = p.decodeStage.Decode(&s.IFID)
	}

	if redirect {
		p.stats.Flushes++
		if s.IFID.IsValid() {
			p.flushedPCs = append(p.flushedPCs, s.IFID.PC)
		}
		p.pc = redirectPC
		p.fetchStage.Reset()
	}

	// Stage 1: Fetch
	switch {
	case stalls.FlushIF:
		next.IFID.Clear()
	case stalls.StallID:
		next.IFID = s.IFID
	case !stalls.StallIF:
		next.IFID = p.fetch()
	}

	p.latches = next
	p.updateStatus()
}

// execute runs the EX stage on the snapshot and resolves control transfers.
// It returns the new EX/MEM value and, for a flush, the redirect target.
func (p *Pipeline) execute(s *Latches) (EXMEMRegister, bool, int) {
	idex := &s.IDEX

	var out EXMEMRegister
	if !idex.IsValid() {
		out.Clear()
		return out, false, 0
	}

	forwarding := p.hazardUnit.DetectForwarding(idex, &s.EXMEM, &s.MEMWB)
	rs1 := p.hazardUnit.GetForwardedValue(
		forwarding.ForwardRs1, idex.Rs1Val, &s.EXMEM, &s.MEMWB)
	rs2 := p.hazardUnit.GetForwardedValue(
		forwarding.ForwardRs2, idex.Rs2Val, &s.EXMEM, &s.MEMWB)

	result := p.executeStage.Execute(idex, rs1, rs2)

	out = EXMEMRegister{
		Inst:       idex.Inst,
		PC:         idex.PC,
		ALUResult:  result.ALUResult,
		StoreValue: result.StoreValue,
	}

	switch {
	case idex.Inst.IsCondBranch():
		p.stats.BranchPredictions++
		p.branchPredictor.Update(idex.PC, result.Taken)

		if result.Taken == idex.PredictedTaken {
			p.stats.BranchCorrect++
			return out, false, 0
		}
		return out, true, result.Target

	case idex.Inst.IsJump():
		// Jumps are never predicted; fetch ran sequentially past them.
		return out, true, result.Target
	}

	return out, false, 0
}

// fetch runs the IF stage and advances the PC.
func (p *Pipeline) fetch() IFIDRegister {
	var out IFIDRegister
	out.Clear()

	if !p.inProgram(p.pc) {
		return out
	}

	inst, latency := p.fetchStage.Fetch(p.pc)
	if latency > 0 {
		p.beginCacheStall(latency)
		return out
	}

	predicted := false
	if inst.IsCondBranch() {
		predicted = p.branchPredictor.Predict(p.pc)
	}

	out = IFIDRegister{
		Inst:           inst,
		PC:             p.pc,
		PredictedTaken: predicted,
	}

	if predicted {
		p.pc = inst.BranchTarget()
	} else {
		p.pc++
	}

	return out
}

func (p *Pipeline) beginCacheStall(latency uint64) {
	p.stallCycles = latency
	p.stats.StallsCache += latency
	p.stats.CacheStallEvents++
	p.cacheStall = true
}

func (p *Pipeline) inProgram(pc int) bool {
	return pc >= 0 && pc < len(p.program)
}

func (p *Pipeline) updateStatus() {
	if !p.inProgram(p.pc) && p.latches.Empty() && p.stallCycles == 0 {
		p.status = StatusFinished
		return
	}

	if p.maxCycles > 0 && p.stats.Cycles >= p.maxCycles {
		p.status = StatusIncomplete
	}
}
