package pipeline

import (
	"github.com/sarchlab/pqr5sim/emu"
	"github.com/sarchlab/pqr5sim/insts"
	"github.com/sarchlab/pqr5sim/timing/cache"
	"github.com/sarchlab/pqr5sim/timing/latency"
)

// Statistics holds pipeline performance counters.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// LoadUseStalls is the number of load-use interlock cycles.
	LoadUseStalls uint64
	// MemStalls is the number of cycles stalled on data memory.
	MemStalls uint64
	// FetchStalls is the number of cycles stalled on instruction memory.
	FetchStalls uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
	// DataHazards is the number of cycles with at least one forwarded
	// operand.
	DataHazards uint64
	// BranchResolutions is the number of control-flow instructions
	// resolved at execute.
	BranchResolutions uint64
	// BranchCorrect is the number of correctly predicted resolutions.
	BranchCorrect uint64
	// BranchMispredictions is the number of mispredicted resolutions.
	BranchMispredictions uint64
}

// CPI returns the cycles per retired instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Option is a functional option for configuring the Pipeline.
type Option func(*Pipeline)

// WithTimingConfig applies memory latencies, predictor selection and
// geometry, return-address stack depth, and the reset PC from a timing
// configuration.
func WithTimingConfig(config *latency.Config) Option {
	return func(p *Pipeline) {
		p.imemLatency = config.IMemLatency
		p.dmemLatency = config.DMemLatency
		p.resetPC = config.ResetPC

		predConfig := BranchPredictorConfig{
			BHTSize:  config.BHTSize,
			GHRWidth: config.GHRWidth,
		}
		switch config.Predictor {
		case "static":
			predConfig.Kind = PredictorStatic
		case "gshare":
			predConfig.Kind = PredictorGshare
		default:
			predConfig.Kind = PredictorNone
		}
		p.predictor = NewBranchPredictor(predConfig)

		if config.RASDepth > 0 {
			p.ras = NewReturnAddressStack(int(config.RASDepth))
		} else {
			p.ras = nil
		}
	}
}

// WithBranchPredictor overrides the branch predictor configuration.
func WithBranchPredictor(config BranchPredictorConfig) Option {
	return func(p *Pipeline) {
		p.predictor = NewBranchPredictor(config)
	}
}

// WithRASDepth sets the return-address stack depth. Zero disables
// return-address prediction.
func WithRASDepth(depth int) Option {
	return func(p *Pipeline) {
		if depth > 0 {
			p.ras = NewReturnAddressStack(depth)
		} else {
			p.ras = nil
		}
	}
}

// WithICache routes instruction fetches through an L1 I-cache model.
func WithICache(config cache.Config) Option {
	return func(p *Pipeline) {
		backing := cache.NewMemoryBacking(p.memory)
		p.fetchStage.UseICache(cache.New(config, backing))
	}
}

// WithDCache routes data accesses through an L1 D-cache model.
func WithDCache(config cache.Config) Option {
	return func(p *Pipeline) {
		backing := cache.NewMemoryBacking(p.memory)
		p.memoryStage.UseDCache(cache.New(config, backing))
	}
}

// Pipeline implements the cycle-accurate 5-stage PQR5 core model:
// Fetch -> Decode -> Execute -> Memory Access -> Writeback.
//
// Each Tick evaluates the stages in reverse order (WB, MEM, EX, ID, IF)
// against the previous cycle's register values and latches the new values
// at the end, reproducing two-phase register-transfer semantics: no stage
// ever observes another stage's same-cycle update. Stall freezes a stage's
// registers; flush forces the younger stages to bubbles. Flush arbitration
// has a single winner per cycle: an execute-stage misprediction suppresses
// every fetch-stage prediction redirect in the same cycle.
type Pipeline struct {
	// Pipeline registers.
	ifid  IFIDRegister
	idex  IDEXRegister
	exmem EXMEMRegister
	memwb MEMWBRegister
	wb    WBLatch

	// Pipeline stages.
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	// Hazard detection and prediction.
	hazardUnit *HazardUnit
	predictor  *BranchPredictor
	ras        *ReturnAddressStack

	// Shared resources.
	regFile *emu.RegFile
	memory  *emu.Memory

	// Instruction memory interface state.
	imemLatency uint64
	fetchWait   uint64
	fetchWord   uint32

	// Data memory interface state: at most one outstanding request.
	dmemLatency uint64
	memWait     uint64
	memData     uint32

	// Program counter and reset sequencing.
	pc           uint32
	resetPC      uint32
	resetPending bool

	stats  Statistics
	halted bool
}

// NewPipeline creates a new 5-stage pipeline over the given register file
// and memory.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...Option) *Pipeline {
	p := &Pipeline{
		regFile:      regFile,
		memory:       memory,
		hazardUnit:   NewHazardUnit(),
		predictor:    NewBranchPredictor(DefaultBranchPredictorConfig()),
		ras:          NewReturnAddressStack(8),
		executeStage: NewExecuteStage(),
		imemLatency:  1,
		dmemLatency:  1,
		resetPending: true,
	}

	p.fetchStage = NewFetchStage(memory, 1)
	p.memoryStage = NewMemoryStage(memory, 1)
	p.decodeStage = NewDecodeStage(regFile)
	p.writebackStage = NewWritebackStage(regFile)

	for _, opt := range opts {
		opt(p)
	}

	// Memory latencies may have been set by an option after the stages
	// were built.
	p.fetchStage.latency = p.imemLatency
	p.memoryStage.latency = p.dmemLatency
	p.pc = p.resetPC

	return p
}

// PC returns the current fetch program counter.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// SetPC sets the fetch program counter.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
}

// Predictor returns the branch predictor.
func (p *Pipeline) Predictor() *BranchPredictor {
	return p.predictor
}

// RAS returns the return-address stack, or nil when disabled.
func (p *Pipeline) RAS() *ReturnAddressStack {
	return p.ras
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Halted reports whether the pipeline has halted (EBREAK retired).
func (p *Pipeline) Halted() bool {
	return p.halted
}

// Reset reinitializes the pipeline to the reset PC. All in-flight state is
// dropped, the register file and predictors clear, and the first fetch is
// delayed one cycle, matching the reset-flag latch in the hardware.
func (p *Pipeline) Reset() {
	p.ifid.Clear()
	p.idex.Clear()
	p.exmem.Clear()
	p.memwb.Clear()
	p.wb = WBLatch{}
	p.fetchWait = 0
	p.memWait = 0
	p.pc = p.resetPC
	p.resetPending = true
	p.halted = false
	p.regFile.Reset()
	p.predictor.Reset()
	if p.ras != nil {
		p.ras.Clear()
	}
	// The host may have rewritten memory while the core was held in
	// reset; cached lines from before the reset are stale.
	if p.fetchStage.icache != nil {
		p.fetchStage.icache.Reset()
	}
	if p.memoryStage.dcache != nil {
		p.memoryStage.dcache.Reset()
	}
	p.stats = Statistics{}
}

// Run executes the pipeline until it halts.
func (p *Pipeline) Run() {
	for !p.halted {
		p.Tick()
	}
}

// RunCycles executes at most the given number of cycles. It returns true
// if the pipeline is still running.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		p.Tick()
	}
	return !p.halted
}

// Tick executes one pipeline cycle.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}
	p.stats.Cycles++
	if p.ras != nil {
		p.ras.BeginCycle()
	}

	// Hazard analysis against the previous cycle's register values.
	forwarding := p.hazardUnit.DetectForwarding(&p.idex, &p.exmem, &p.memwb, &p.wb)
	loadUse := p.hazardUnit.DetectLoadUseHazard(&p.idex, p.decodeStage.Peek(&p.ifid))

	// Stage 5: writeback. Runs before decode's register read so a
	// committing value and the read are consistent within the cycle.
	if value, wrote := p.writebackStage.Writeback(&p.memwb); wrote {
		p.wb = WBLatch{Valid: true, Rd: p.memwb.Rd, Value: value}
	}
	if p.memwb.Valid {
		p.stats.Instructions++
		if p.memwb.Inst.Op == insts.OpEBREAK {
			p.halted = true
			return
		}
	}

	// Stage 4: memory access. One outstanding request at most; while it
	// is unserviced the older stages freeze and no new request issues.
	var nextMEMWB MEMWBRegister
	memStall := false
	if p.exmem.Valid {
		if p.memWait == 0 {
			result := p.memoryStage.Access(&p.exmem)
			p.memWait = result.Latency
			p.memData = result.Data
		}
		p.memWait--
		if p.memWait > 0 {
			memStall = true
			p.stats.MemStalls++
		} else {
			nextMEMWB = MEMWBRegister{
				Valid:     true,
				PC:        p.exmem.PC,
				Inst:      p.exmem.Inst,
				ALUResult: p.exmem.ALUResult,
				MemData:   p.memData,
				MemAddr:   p.exmem.ALUResult,
				Rd:        p.exmem.Rd,
				RegWrite:  p.exmem.RegWrite,
				MemToReg:  p.exmem.MemRead,
			}
		}
	}

	// Stage 3: execute. Branch resolution may assert the highest
	// priority flush; the redirect target is unique per cycle.
	var nextEXMEM EXMEMRegister
	exFlush := false
	var redirectPC uint32
	if !memStall && p.idex.Valid {
		if forwarding.Any() {
			p.stats.DataHazards++
		}
		rs1Val := p.hazardUnit.GetForwardedValue(
			forwarding.Rs1, p.idex.Rs1Value, &p.exmem, &p.memwb, &p.wb)
		rs2Val := p.hazardUnit.GetForwardedValue(
			forwarding.Rs2, p.idex.Rs2Value, &p.exmem, &p.memwb, &p.wb)

		result := p.executeStage.Execute(&p.idex, rs1Val, rs2Val)
		nextEXMEM = EXMEMRegister{
			Valid:      true,
			PC:         p.idex.PC,
			Inst:       p.idex.Inst,
			ALUResult:  result.ALUResult,
			StoreValue: result.StoreValue,
			Rd:         p.idex.Inst.Rd,
			MemRead:    p.idex.MemRead,
			MemWrite:   p.idex.MemWrite,
			RegWrite:   p.idex.RegWrite,
		}

		if result.Branch.IsControlFlow {
			exFlush, redirectPC = p.resolveControlFlow(result.Branch)
		}
	}

	// Stage 2: decode and register read.
	var nextIDEX IDEXRegister
	stallIF := false
	switch {
	case memStall:
		stallIF = true
	case exFlush:
		// Bubble: the decoded instruction is on the wrong path.
	case loadUse:
		stallIF = true
		p.stats.LoadUseStalls++
	case p.ifid.Valid:
		nextIDEX = p.decodeStage.Decode(&p.ifid)
	}

	// Stage 1: fetch and predict.
	var nextIFID IFIDRegister
	switch {
	case exFlush:
		// The execute-stage flush wins over every predictor redirect
		// this cycle: squash the fetched slot, cancel the in-flight
		// memory request, and restart from the resolved PC.
		p.pc = redirectPC
		p.fetchWait = 0
	case stallIF:
		nextIFID = p.ifid
	case p.resetPending:
		p.resetPending = false
	default:
		nextIFID = p.fetchAndPredict()
	}

	// Latch pipeline registers: each stage's new value is computed, so
	// the cycle's register updates commit atomically.
	p.memwb = nextMEMWB
	if !memStall {
		p.exmem = nextEXMEM
		p.idex = nextIDEX
	}
	p.ifid = nextIFID
}

// resolveControlFlow applies a branch resolution: predictor and RAS updates
// first, then misprediction recovery. It returns the flush decision and
// redirect target.
func (p *Pipeline) resolveControlFlow(br BranchResolution) (bool, uint32) {
	inst := p.idex.Inst
	pred := p.idex.Prediction
	p.stats.BranchResolutions++

	// The BHT write port indexes with the prediction-time GHR snapshot;
	// the read port may serve a new prediction in this same cycle.
	if inst.IsBranch() {
		p.predictor.Update(p.idex.PC, pred.GHR, br.Taken, pred.Taken)
	}
	if p.ras != nil {
		if inst.IsCall() {
			p.ras.CallResolved()
		}
		if inst.IsRet() {
			p.ras.ReturnResolved()
		}
	}

	if !br.Mispredicted {
		p.stats.BranchCorrect++
		return false, 0
	}

	p.stats.BranchMispredictions++
	p.stats.Flushes++
	if p.ras != nil {
		// Undo the speculative pushes and pops of the squashed
		// wrong-path instructions: roll back to the state as of this
		// instruction's own fetch.
		p.ras.Restore(pred.RAS)
	}
	return true, br.NextPC
}

// fetchAndPredict runs the fetch stage: issue or continue the instruction
// memory request, and on delivery consult the predictors for the next PC.
// The prediction sources are mutually exclusive per cycle: a RET goes to
// the return-address stack, JAL and conditional branches to the branch
// predictor, and everything else falls through to PC+4.
func (p *Pipeline) fetchAndPredict() IFIDRegister {
	if p.fetchWait == 0 {
		word, lat := p.fetchStage.Fetch(p.pc)
		p.fetchWord = word
		p.fetchWait = lat
	}
	p.fetchWait--
	if p.fetchWait > 0 {
		p.stats.FetchStalls++
		return IFIDRegister{}
	}

	inst := p.fetchStage.Decoder().Decode(p.fetchWord)
	pred := PredictionRecord{GHR: p.predictor.GHR()}
	nextPC := p.pc + 4

	if p.ras != nil && inst.IsRet() {
		if target, ok := p.ras.Pop(); ok {
			pred.Taken = true
			pred.Target = target
			pred.FromRAS = true
			nextPC = target
		}
	} else if inst.IsControlFlow() && inst.Op != insts.OpJALR {
		if pr := p.predictor.Predict(inst, p.pc); pr.Taken {
			pred.Taken = true
			pred.Target = pr.Target
			nextPC = pr.Target
		}
	}

	if p.ras != nil {
		if inst.IsCall() {
			p.ras.Push(p.pc + 4)
		}
		// Snapshot after this instruction's own push/pop: a flush
		// caused by this instruction preserves its own effect.
		pred.RAS = p.ras.Snapshot()
	}

	fetched := IFIDRegister{
		Valid:           true,
		PC:              p.pc,
		InstructionWord: p.fetchWord,
		Prediction:      pred,
	}
	p.pc = nextPC
	return fetched
}
