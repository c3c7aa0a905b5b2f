package pipeline

import "github.com/sarchlab/pqr5sim/insts"

// ForwardSource indicates where a forwarded operand value comes from.
type ForwardSource int

const (
	// ForwardNone means no forwarding needed: use the register file
	// value read at decode.
	ForwardNone ForwardSource = iota
	// ForwardFromEXMEM means forward the execute stage's registered
	// output.
	ForwardFromEXMEM
	// ForwardFromMEMWB means forward the memory stage's registered
	// output.
	ForwardFromMEMWB
	// ForwardFromWB means forward the most recent writeback commit.
	ForwardFromWB
)

// ForwardingResult contains forwarding decisions for the consumer's source
// operands. StoreData covers the rs2 value a store carries to memory.
type ForwardingResult struct {
	// Rs1 is the forwarding source for the first operand.
	Rs1 ForwardSource
	// Rs2 is the forwarding source for the second operand.
	Rs2 ForwardSource
}

// Any reports whether any operand is being forwarded.
func (f ForwardingResult) Any() bool {
	return f.Rs1 != ForwardNone || f.Rs2 != ForwardNone
}

// HazardUnit detects data hazards and determines forwarding and interlock
// signals.
type HazardUnit struct{}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// DetectForwarding determines the forwarding source for each operand of the
// instruction in ID/EX. Priority when several stages match the same
// destination register is EX/MEM > MEM/WB > WB latch: the freshest producer
// wins. A producer matches only when it actually writes a register result
// (R/I/U/J formats; stores and branches write nothing), its destination is
// not x0, and the consumer actually reads that operand slot.
func (h *HazardUnit) DetectForwarding(
	idex *IDEXRegister,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
	wb *WBLatch,
) ForwardingResult {
	result := ForwardingResult{}

	if !idex.Valid || idex.Inst == nil {
		return result
	}

	if idex.Inst.ReadsRs1() {
		result.Rs1 = h.detectForwardForReg(idex.Inst.Rs1, exmem, memwb, wb)
	}
	if idex.Inst.ReadsRs2() {
		result.Rs2 = h.detectForwardForReg(idex.Inst.Rs2, exmem, memwb, wb)
	}

	return result
}

func (h *HazardUnit) detectForwardForReg(
	reg uint8,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
	wb *WBLatch,
) ForwardSource {
	// x0 always reads as zero and can never be a RAW hazard.
	if reg == 0 {
		return ForwardNone
	}

	if exmem.Valid && exmem.RegWrite && exmem.Rd == reg {
		return ForwardFromEXMEM
	}
	if memwb.Valid && memwb.RegWrite && memwb.Rd == reg {
		return ForwardFromMEMWB
	}
	if wb.Valid && wb.Rd == reg {
		return ForwardFromWB
	}

	return ForwardNone
}

// DetectLoadUseHazard reports whether the instruction in ID/EX is a load
// whose destination the next instruction (still in decode) reads. The load
// value is not forwardable from EX/MEM, so the consumer must be held back
// exactly one cycle until the value reaches MEM/WB.
func (h *HazardUnit) DetectLoadUseHazard(idex *IDEXRegister, next *insts.Instruction) bool {
	if !idex.Valid || !idex.MemRead || next == nil {
		return false
	}
	rd := idex.Inst.Rd
	if rd == 0 {
		return false
	}

	if next.ReadsRs1() && next.Rs1 == rd {
		return true
	}
	if next.ReadsRs2() && next.Rs2 == rd {
		return true
	}
	return false
}

// GetForwardedValue returns the operand value selected by a forwarding
// decision. A MEM/WB producer that is a load supplies the lane-extracted
// memory data, value-consistent with what writeback will commit.
func (h *HazardUnit) GetForwardedValue(
	forward ForwardSource,
	originalValue uint32,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
	wb *WBLatch,
) uint32 {
	switch forward {
	case ForwardFromEXMEM:
		return exmem.ALUResult
	case ForwardFromMEMWB:
		if memwb.MemToReg {
			return loadValue(memwb.Inst, memwb.MemAddr, memwb.MemData)
		}
		return memwb.ALUResult
	case ForwardFromWB:
		return wb.Value
	default:
		return originalValue
	}
}

// loadValue extracts the addressed byte lane from a raw memory word and
// sign- or zero-extends it per the load's funct3. Shared between writeback
// and the MEM/WB forwarding tap so the two always agree.
func loadValue(inst *insts.Instruction, addr, word uint32) uint32 {
	lane := addr & 0x3
	switch inst.Op {
	case insts.OpLB:
		return uint32(int32(int8(word >> (8 * lane))))
	case insts.OpLBU:
		return word >> (8 * lane) & 0xFF
	case insts.OpLH:
		return uint32(int32(int16(word >> (8 * (lane & 0x2)))))
	case insts.OpLHU:
		return word >> (8 * (lane & 0x2)) & 0xFFFF
	default:
		return word
	}
}
