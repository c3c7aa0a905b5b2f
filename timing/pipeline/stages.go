package pipeline

import (
	"github.com/sarchlab/pqr5sim/emu"
	"github.com/sarchlab/pqr5sim/insts"
	"github.com/sarchlab/pqr5sim/timing/cache"
)

// FetchStage requests instruction words from the instruction memory
// interface and partially decodes them for the fetch-stage predictors.
type FetchStage struct {
	memory  *emu.Memory
	icache  *cache.Cache
	decoder *insts.Decoder
	latency uint64
}

// NewFetchStage creates a fetch stage with a fixed-latency instruction
// memory interface.
func NewFetchStage(memory *emu.Memory, latency uint64) *FetchStage {
	return &FetchStage{
		memory:  memory,
		decoder: insts.NewDecoder(),
		latency: latency,
	}
}

// UseICache routes fetches through an instruction cache; access latency
// then comes from the cache model instead of the fixed interface latency.
func (s *FetchStage) UseICache(c *cache.Cache) {
	s.icache = c
}

// Fetch reads the instruction at pc and returns the word together with the
// access latency in cycles (at least 1).
func (s *FetchStage) Fetch(pc uint32) (uint32, uint64) {
	if s.icache != nil {
		result := s.icache.Read(pc, 4)
		latency := result.Latency
		if latency == 0 {
			latency = 1
		}
		return result.Data, latency
	}
	return s.memory.Read32(pc), s.latency
}

// Decoder exposes the fetch stage's decoder, shared with the predictors.
func (s *FetchStage) Decoder() *insts.Decoder {
	return s.decoder
}

// DecodeStage decodes instruction fields and reads the register file. The
// register read is stage-aligned with decode: it re-runs every cycle the
// instruction waits here, so the captured values are never staler than the
// forwarding window downstream.
type DecodeStage struct {
	regFile *emu.RegFile
	decoder *insts.Decoder
}

// NewDecodeStage creates a decode stage reading the given register file.
func NewDecodeStage(regFile *emu.RegFile) *DecodeStage {
	return &DecodeStage{
		regFile: regFile,
		decoder: insts.NewDecoder(),
	}
}

// Decode decodes the fetched slot into an ID/EX register value. An illegal
// encoding yields a bubble: architecturally inert, it flows down the
// pipeline without ever writing a register, touching memory, or resolving
// a branch.
func (s *DecodeStage) Decode(ifid *IFIDRegister) IDEXRegister {
	inst := s.decoder.Decode(ifid.InstructionWord)
	if inst.Format == insts.FormatUnknown {
		return IDEXRegister{}
	}

	idex := IDEXRegister{
		Valid:      true,
		PC:         ifid.PC,
		Inst:       inst,
		MemRead:    inst.IsLoad(),
		MemWrite:   inst.IsStore(),
		RegWrite:   inst.WritesReg(),
		Prediction: ifid.Prediction,
	}

	if inst.ReadsRs1() {
		idex.Rs1Value = s.regFile.ReadReg(inst.Rs1)
	}
	if inst.ReadsRs2() {
		idex.Rs2Value = s.regFile.ReadReg(inst.Rs2)
	}

	return idex
}

// Peek decodes a fetched word without side effects, for hazard analysis.
func (s *DecodeStage) Peek(ifid *IFIDRegister) *insts.Instruction {
	if !ifid.Valid {
		return nil
	}
	return s.decoder.Decode(ifid.InstructionWord)
}

// BranchResolution is the execute-stage branch unit's verdict on a
// control-flow instruction.
type BranchResolution struct {
	// IsControlFlow indicates the instruction can redirect the PC.
	IsControlFlow bool
	// Taken is the resolved outcome.
	Taken bool
	// Target is the resolved target PC (valid when Taken).
	Target uint32
	// NextPC is the architecturally correct next PC.
	NextPC uint32
	// Mispredicted indicates the carried speculative outcome or target
	// disagrees with the resolution; the pipeline must flush and
	// redirect.
	Mispredicted bool
}

// ExecuteResult holds the execute stage outputs for one instruction.
type ExecuteResult struct {
	// ALUResult is the ALU output, effective address, or return PC.
	ALUResult uint32
	// StoreValue is the value a store will write.
	StoreValue uint32
	// Branch is the branch unit resolution.
	Branch BranchResolution
}

// ExecuteStage hosts the ALU, the branch unit, and the load-store address
// unit. The branch unit consumes the ALU's comparison flags rather than
// duplicating comparators.
type ExecuteStage struct{}

// NewExecuteStage creates an execute stage.
func NewExecuteStage() *ExecuteStage {
	return &ExecuteStage{}
}

// Execute computes the instruction's result from its forwarded operands.
func (s *ExecuteStage) Execute(idex *IDEXRegister, rs1Val, rs2Val uint32) ExecuteResult {
	result := ExecuteResult{}
	inst := idex.Inst
	imm := uint32(inst.Imm)

	switch {
	case inst.Op == insts.OpLUI:
		result.ALUResult = imm
	case inst.Op == insts.OpAUIPC:
		result.ALUResult = idex.PC + imm
	case inst.IsLoad():
		result.ALUResult = rs1Val + imm
	case inst.IsStore():
		result.ALUResult = rs1Val + imm
		result.StoreValue = rs2Val
	case inst.IsControlFlow():
		result.Branch = s.resolveBranch(idex, rs1Val, rs2Val)
		result.ALUResult = idex.PC + 4 // link value for JAL/JALR
	case inst.Format == insts.FormatI:
		result.ALUResult = emu.ALUExecute(inst.AluOp, rs1Val, imm)
	case inst.Format == insts.FormatR:
		result.ALUResult = emu.ALUExecute(inst.AluOp, rs1Val, rs2Val)
	}

	return result
}

// resolveBranch computes the actual outcome and target of a control-flow
// instruction and compares them against the prediction carried from fetch.
// A flush is asserted exactly when they disagree: a correctly predicted
// branch, jump, or RAS-predicted return costs nothing.
func (s *ExecuteStage) resolveBranch(idex *IDEXRegister, rs1Val, rs2Val uint32) BranchResolution {
	inst := idex.Inst
	res := BranchResolution{IsControlFlow: true}

	switch inst.Op {
	case insts.OpJAL:
		res.Taken = true
		res.Target = idex.PC + uint32(inst.Imm)
	case insts.OpJALR:
		res.Taken = true
		res.Target = (rs1Val + uint32(inst.Imm)) &^ 1
	default:
		flags := emu.Compare(rs1Val, rs2Val)
		switch inst.Op {
		case insts.OpBEQ:
			res.Taken = flags.Eq
		case insts.OpBNE:
			res.Taken = !flags.Eq
		case insts.OpBLT:
			res.Taken = flags.Lt
		case insts.OpBGE:
			res.Taken = !flags.Lt
		case insts.OpBLTU:
			res.Taken = flags.Ltu
		case insts.OpBGEU:
			res.Taken = !flags.Ltu
		}
		res.Target = idex.PC + uint32(inst.Imm)
	}

	if res.Taken {
		res.NextPC = res.Target
	} else {
		res.NextPC = idex.PC + 4
	}

	pred := idex.Prediction
	res.Mispredicted = res.Taken != pred.Taken ||
		(res.Taken && pred.Target != res.Target)

	return res
}

// MemoryResult holds the memory-access stage outputs.
type MemoryResult struct {
	// Data is the raw 32-bit word read from the aligned address, for
	// loads.
	Data uint32
	// Latency is the access time in cycles (at least 1).
	Latency uint64
}

// MemoryStage routes load/store requests to the data memory interface.
// Requests go out combinationally (no extra register stage) so the memory
// pipeline stays stage-synchronized with the core pipeline; the pipeline
// issues at most one outstanding request.
type MemoryStage struct {
	memory  *emu.Memory
	dcache  *cache.Cache
	latency uint64
}

// NewMemoryStage creates a memory stage with a fixed-latency data memory
// interface.
func NewMemoryStage(memory *emu.Memory, latency uint64) *MemoryStage {
	return &MemoryStage{
		memory:  memory,
		latency: latency,
	}
}

// UseDCache routes accesses through a data cache; access latency then comes
// from the cache model.
func (s *MemoryStage) UseDCache(c *cache.Cache) {
	s.dcache = c
}

// Access performs the load or store held in EX/MEM. Loads return the raw
// word containing the addressed byte; the writeback stage selects the lane.
// Stores write the byte, half-word, or word selected by funct3.
func (s *MemoryStage) Access(exmem *EXMEMRegister) MemoryResult {
	result := MemoryResult{Latency: s.latency}
	addr := exmem.ALUResult

	switch {
	case exmem.MemRead:
		if s.dcache != nil {
			r := s.dcache.Read(addr&^3, 4)
			result.Data = r.Data
			result.Latency = max(r.Latency, 1)
		} else {
			result.Data = s.memory.Read32(addr &^ 3)
		}

	case exmem.MemWrite:
		size := storeSize(exmem.Inst)
		if s.dcache != nil {
			r := s.dcache.Write(addr, size, exmem.StoreValue)
			result.Latency = max(r.Latency, 1)
		} else {
			switch size {
			case 1:
				s.memory.Write8(addr, uint8(exmem.StoreValue))
			case 2:
				s.memory.Write16(addr, uint16(exmem.StoreValue))
			default:
				s.memory.Write32(addr, exmem.StoreValue)
			}
		}

	default:
		result.Latency = 1
	}

	return result
}

// storeSize returns the access size in bytes from the store's funct3.
func storeSize(inst *insts.Instruction) int {
	switch inst.Op {
	case insts.OpSB:
		return 1
	case insts.OpSH:
		return 2
	default:
		return 4
	}
}

// WritebackStage commits results to the register file in strict program
// order, one write per cycle.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback commits the MEM/WB slot. For loads it extracts the addressed
// byte lane and sign- or zero-extends per funct3. It returns the committed
// value and whether a register write happened, so the writeback forwarding
// tap sees exactly the committed value in the same cycle.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister) (uint32, bool) {
	if !memwb.Valid || !memwb.RegWrite {
		return 0, false
	}

	value := memwb.ALUResult
	if memwb.MemToReg {
		value = loadValue(memwb.Inst, memwb.MemAddr, memwb.MemData)
	}

	// Writes to x0 are suppressed at the source; the slot still
	// retires, but it never participates in forwarding.
	if memwb.Rd == 0 {
		return 0, false
	}

	s.regFile.WriteReg(memwb.Rd, value)
	return value, true
}
