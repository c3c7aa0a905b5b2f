package insts

// Op represents an RV32I opcode.
type Op uint16

// RV32I opcodes.
const (
	OpIllegal Op = iota
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpFENCE
	OpECALL
	OpEBREAK
)

// Format represents an RV32I instruction encoding format.
// A legal instruction belongs to exactly one format; FormatUnknown marks an
// illegal encoding, which the pipeline treats as an architectural bubble.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // Register-register ALU operations
	FormatI              // Immediate ALU, loads, JALR, system
	FormatS              // Stores
	FormatB              // Conditional branches
	FormatU              // LUI, AUIPC
	FormatJ              // JAL
)

// AluOp represents an ALU sub-operation selected at decode from
// funct3/funct7.
type AluOp uint8

// ALU sub-operations.
const (
	AluNone AluOp = iota
	AluADD
	AluSUB
	AluSLT
	AluSLTU
	AluXOR
	AluOR
	AluAND
	AluSLL
	AluSRL
	AluSRA
)

// Major opcode fields (instruction bits [6:0]).
const (
	opcodeLUI    = 0b0110111
	opcodeAUIPC  = 0b0010111
	opcodeJAL    = 0b1101111
	opcodeJALR   = 0b1100111
	opcodeBranch = 0b1100011
	opcodeLoad   = 0b0000011
	opcodeStore  = 0b0100011
	opcodeOpImm  = 0b0010011
	opcodeOp     = 0b0110011
	opcodeFence  = 0b0001111
	opcodeSystem = 0b1110011
)

// LinkReg is the standard RISC-V link register (x1/ra) used by the
// calling-convention CALL/RET classification.
const LinkReg = 1

// Instruction represents a decoded RV32I instruction.
type Instruction struct {
	// Word is the raw 32-bit instruction encoding.
	Word uint32

	Op     Op     // Operation code
	Format Format // Encoding format

	// Register fields.
	Rd  uint8 // Destination register
	Rs1 uint8 // First source register
	Rs2 uint8 // Second source register

	// Function fields.
	Funct3 uint8
	Funct7 uint8

	// Imm is the sign-extended immediate for the instruction's format
	// (I/S/B/U/J). Zero for R-format.
	Imm int32

	// AluOp is the ALU sub-operation, valid for OP/OP-IMM instructions.
	AluOp AluOp
}

// WritesReg reports whether the instruction produces a register result.
// Only R/I/U/J formats write; stores and branches do not. A destination of
// x0 still counts as "writing" here; the register file suppresses it.
func (i *Instruction) WritesReg() bool {
	switch i.Format {
	case FormatR, FormatI, FormatU, FormatJ:
		return i.Op != OpFENCE && i.Op != OpECALL && i.Op != OpEBREAK
	default:
		return false
	}
}

// ReadsRs1 reports whether the instruction reads its rs1 operand slot.
// U- and J-format instructions synthesize their operands from the immediate
// and PC and never read a register.
func (i *Instruction) ReadsRs1() bool {
	switch i.Format {
	case FormatR, FormatS, FormatB:
		return true
	case FormatI:
		return i.Op != OpFENCE && i.Op != OpECALL && i.Op != OpEBREAK
	default:
		return false
	}
}

// ReadsRs2 reports whether the instruction reads its rs2 operand slot.
func (i *Instruction) ReadsRs2() bool {
	switch i.Format {
	case FormatR, FormatS, FormatB:
		return true
	default:
		return false
	}
}

// IsLoad reports whether the instruction is a memory load.
func (i *Instruction) IsLoad() bool {
	switch i.Op {
	case OpLB, OpLH, OpLW, OpLBU, OpLHU:
		return true
	}
	return false
}

// IsStore reports whether the instruction is a memory store.
func (i *Instruction) IsStore() bool {
	return i.Format == FormatS
}

// IsBranch reports whether the instruction is a conditional branch.
func (i *Instruction) IsBranch() bool {
	return i.Format == FormatB
}

// IsJump reports whether the instruction is an unconditional jump.
func (i *Instruction) IsJump() bool {
	return i.Op == OpJAL || i.Op == OpJALR
}

// IsControlFlow reports whether the instruction can redirect the PC.
func (i *Instruction) IsControlFlow() bool {
	return i.IsBranch() || i.IsJump()
}

// IsCall reports whether the instruction is a procedure call per the RISC-V
// calling convention: JAL or JALR writing the link register.
func (i *Instruction) IsCall() bool {
	return (i.Op == OpJAL || i.Op == OpJALR) && i.Rd == LinkReg
}

// IsRet reports whether the instruction is a procedure return per the RISC-V
// calling convention: JALR reading the link register and writing x0.
func (i *Instruction) IsRet() bool {
	return i.Op == OpJALR && i.Rs1 == LinkReg && i.Rd == 0
}

// Decoder decodes RV32I machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV32I instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit RV32I instruction word. Illegal encodings yield
// an instruction with OpIllegal/FormatUnknown rather than an error: the
// hardware has no trap path for them, they simply never take effect.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Word:   word,
		Op:     OpIllegal,
		Format: FormatUnknown,
		Rd:     uint8(word >> 7 & 0x1F),
		Rs1:    uint8(word >> 15 & 0x1F),
		Rs2:    uint8(word >> 20 & 0x1F),
		Funct3: uint8(word >> 12 & 0x7),
		Funct7: uint8(word >> 25 & 0x7F),
	}

	switch word & 0x7F {
	case opcodeLUI:
		inst.Op = OpLUI
		inst.Format = FormatU
		inst.Imm = immU(word)
	case opcodeAUIPC:
		inst.Op = OpAUIPC
		inst.Format = FormatU
		inst.Imm = immU(word)
	case opcodeJAL:
		inst.Op = OpJAL
		inst.Format = FormatJ
		inst.Imm = immJ(word)
	case opcodeJALR:
		if inst.Funct3 == 0 {
			inst.Op = OpJALR
			inst.Format = FormatI
			inst.Imm = immI(word)
		}
	case opcodeBranch:
		d.decodeBranch(word, inst)
	case opcodeLoad:
		d.decodeLoad(word, inst)
	case opcodeStore:
		d.decodeStore(word, inst)
	case opcodeOpImm:
		d.decodeOpImm(word, inst)
	case opcodeOp:
		d.decodeOp(word, inst)
	case opcodeFence:
		inst.Op = OpFENCE
		inst.Format = FormatI
	case opcodeSystem:
		d.decodeSystem(word, inst)
	}

	return inst
}

// decodeBranch decodes the six B-format conditional branches.
func (d *Decoder) decodeBranch(word uint32, inst *Instruction) {
	ops := [8]Op{OpBEQ, OpBNE, OpIllegal, OpIllegal, OpBLT, OpBGE, OpBLTU, OpBGEU}
	op := ops[inst.Funct3]
	if op == OpIllegal {
		return
	}
	inst.Op = op
	inst.Format = FormatB
	inst.Imm = immB(word)
}

// decodeLoad decodes LB/LH/LW/LBU/LHU.
func (d *Decoder) decodeLoad(word uint32, inst *Instruction) {
	ops := [8]Op{OpLB, OpLH, OpLW, OpIllegal, OpLBU, OpLHU, OpIllegal, OpIllegal}
	op := ops[inst.Funct3]
	if op == OpIllegal {
		return
	}
	inst.Op = op
	inst.Format = FormatI
	inst.Imm = immI(word)
}

// decodeStore decodes SB/SH/SW.
func (d *Decoder) decodeStore(word uint32, inst *Instruction) {
	ops := [8]Op{OpSB, OpSH, OpSW, OpIllegal, OpIllegal, OpIllegal, OpIllegal, OpIllegal}
	op := ops[inst.Funct3]
	if op == OpIllegal {
		return
	}
	inst.Op = op
	inst.Format = FormatS
	inst.Imm = immS(word)
}

// decodeOpImm decodes register-immediate ALU operations. The shift
// immediates (SLLI/SRLI/SRAI) overlap the other I-format encodings in
// funct3 and are distinguished by funct7; their effective immediate is the
// 5-bit shamt field.
func (d *Decoder) decodeOpImm(word uint32, inst *Instruction) {
	inst.Format = FormatI
	inst.Imm = immI(word)

	switch inst.Funct3 {
	case 0b000:
		inst.Op, inst.AluOp = OpADDI, AluADD
	case 0b010:
		inst.Op, inst.AluOp = OpSLTI, AluSLT
	case 0b011:
		inst.Op, inst.AluOp = OpSLTIU, AluSLTU
	case 0b100:
		inst.Op, inst.AluOp = OpXORI, AluXOR
	case 0b110:
		inst.Op, inst.AluOp = OpORI, AluOR
	case 0b111:
		inst.Op, inst.AluOp = OpANDI, AluAND
	case 0b001:
		if inst.Funct7 == 0 {
			inst.Op, inst.AluOp = OpSLLI, AluSLL
			inst.Imm = int32(inst.Rs2) // shamt
		} else {
			inst.Format = FormatUnknown
		}
	case 0b101:
		switch inst.Funct7 {
		case 0b0000000:
			inst.Op, inst.AluOp = OpSRLI, AluSRL
			inst.Imm = int32(inst.Rs2)
		case 0b0100000:
			inst.Op, inst.AluOp = OpSRAI, AluSRA
			inst.Imm = int32(inst.Rs2)
		default:
			inst.Format = FormatUnknown
		}
	}
}

// decodeOp decodes register-register ALU operations.
func (d *Decoder) decodeOp(word uint32, inst *Instruction) {
	type opSel struct {
		op  Op
		alu AluOp
	}

	var sel opSel
	switch {
	case inst.Funct7 == 0b0000000:
		base := [8]opSel{
			{OpADD, AluADD}, {OpSLL, AluSLL}, {OpSLT, AluSLT}, {OpSLTU, AluSLTU},
			{OpXOR, AluXOR}, {OpSRL, AluSRL}, {OpOR, AluOR}, {OpAND, AluAND},
		}
		sel = base[inst.Funct3]
	case inst.Funct7 == 0b0100000 && inst.Funct3 == 0b000:
		sel = opSel{OpSUB, AluSUB}
	case inst.Funct7 == 0b0100000 && inst.Funct3 == 0b101:
		sel = opSel{OpSRA, AluSRA}
	default:
		return
	}

	inst.Op = sel.op
	inst.AluOp = sel.alu
	inst.Format = FormatR
}

// decodeSystem decodes ECALL and EBREAK. CSR instructions are not part of
// the core and decode as illegal.
func (d *Decoder) decodeSystem(word uint32, inst *Instruction) {
	if inst.Funct3 != 0 || inst.Rd != 0 || inst.Rs1 != 0 {
		return
	}
	switch word >> 20 {
	case 0:
		inst.Op = OpECALL
		inst.Format = FormatI
	case 1:
		inst.Op = OpEBREAK
		inst.Format = FormatI
	}
}

// immI extracts the sign-extended I-format immediate (bits [31:20]).
func immI(word uint32) int32 {
	return int32(word) >> 20
}

// immS extracts the sign-extended S-format immediate
// (bits [31:25] | [11:7]).
func immS(word uint32) int32 {
	return int32(word)>>25<<5 | int32(word>>7&0x1F)
}

// immB extracts the sign-extended B-format immediate
// (bits [31] | [7] | [30:25] | [11:8], scaled by 2).
func immB(word uint32) int32 {
	imm := int32(word)>>31<<12 |
		int32(word>>7&0x1)<<11 |
		int32(word>>25&0x3F)<<5 |
		int32(word>>8&0xF)<<1
	return imm
}

// immU extracts the U-format immediate (bits [31:12], low 12 bits zero).
func immU(word uint32) int32 {
	return int32(word & 0xFFFFF000)
}

// immJ extracts the sign-extended J-format immediate
// (bits [31] | [19:12] | [20] | [30:21], scaled by 2).
func immJ(word uint32) int32 {
	imm := int32(word)>>31<<20 |
		int32(word>>12&0xFF)<<12 |
		int32(word>>20&0x1)<<11 |
		int32(word>>21&0x3FF)<<1
	return imm
}
