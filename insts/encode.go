package insts

// Instruction encoders for building RV32I test and benchmark programs.
// Each function returns the 32-bit machine encoding of the named
// instruction. Offsets for branches and jumps are byte offsets relative to
// the instruction's own PC.

func encodeR(funct7 uint32, rs2, rs1 uint8, funct3 uint32, rd uint8, opcode uint32) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

func encodeI(imm int32, rs1 uint8, funct3 uint32, rd uint8, opcode uint32) uint32 {
	return uint32(imm)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

func encodeS(imm int32, rs2, rs1 uint8, funct3 uint32, opcode uint32) uint32 {
	uimm := uint32(imm)
	return uimm>>5&0x7F<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uimm&0x1F<<7 | opcode
}

func encodeB(offset int32, rs2, rs1 uint8, funct3 uint32) uint32 {
	uimm := uint32(offset)
	return uimm>>12&0x1<<31 | uimm>>5&0x3F<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		funct3<<12 | uimm>>1&0xF<<8 | uimm>>11&0x1<<7 | opcodeBranch
}

// LUI encodes "lui rd, imm" where imm supplies bits [31:12].
func LUI(rd uint8, imm uint32) uint32 {
	return imm&0xFFFFF000 | uint32(rd)<<7 | opcodeLUI
}

// AUIPC encodes "auipc rd, imm" where imm supplies bits [31:12].
func AUIPC(rd uint8, imm uint32) uint32 {
	return imm&0xFFFFF000 | uint32(rd)<<7 | opcodeAUIPC
}

// JAL encodes "jal rd, offset".
func JAL(rd uint8, offset int32) uint32 {
	uimm := uint32(offset)
	return uimm>>20&0x1<<31 | uimm>>1&0x3FF<<21 | uimm>>11&0x1<<20 |
		uimm>>12&0xFF<<12 | uint32(rd)<<7 | opcodeJAL
}

// JALR encodes "jalr rd, imm(rs1)".
func JALR(rd, rs1 uint8, imm int32) uint32 {
	return encodeI(imm, rs1, 0b000, rd, opcodeJALR)
}

// RET encodes the canonical return: "jalr x0, 0(x1)".
func RET() uint32 {
	return JALR(0, LinkReg, 0)
}

// Conditional branches.

// BEQ encodes "beq rs1, rs2, offset".
func BEQ(rs1, rs2 uint8, offset int32) uint32 { return encodeB(offset, rs2, rs1, 0b000) }

// BNE encodes "bne rs1, rs2, offset".
func BNE(rs1, rs2 uint8, offset int32) uint32 { return encodeB(offset, rs2, rs1, 0b001) }

// BLT encodes "blt rs1, rs2, offset".
func BLT(rs1, rs2 uint8, offset int32) uint32 { return encodeB(offset, rs2, rs1, 0b100) }

// BGE encodes "bge rs1, rs2, offset".
func BGE(rs1, rs2 uint8, offset int32) uint32 { return encodeB(offset, rs2, rs1, 0b101) }

// BLTU encodes "bltu rs1, rs2, offset".
func BLTU(rs1, rs2 uint8, offset int32) uint32 { return encodeB(offset, rs2, rs1, 0b110) }

// BGEU encodes "bgeu rs1, rs2, offset".
func BGEU(rs1, rs2 uint8, offset int32) uint32 { return encodeB(offset, rs2, rs1, 0b111) }

// Loads.

// LB encodes "lb rd, imm(rs1)".
func LB(rd, rs1 uint8, imm int32) uint32 { return encodeI(imm, rs1, 0b000, rd, opcodeLoad) }

// LH encodes "lh rd, imm(rs1)".
func LH(rd, rs1 uint8, imm int32) uint32 { return encodeI(imm, rs1, 0b001, rd, opcodeLoad) }

// LW encodes "lw rd, imm(rs1)".
func LW(rd, rs1 uint8, imm int32) uint32 { return encodeI(imm, rs1, 0b010, rd, opcodeLoad) }

// LBU encodes "lbu rd, imm(rs1)".
func LBU(rd, rs1 uint8, imm int32) uint32 { return encodeI(imm, rs1, 0b100, rd, opcodeLoad) }

// LHU encodes "lhu rd, imm(rs1)".
func LHU(rd, rs1 uint8, imm int32) uint32 { return encodeI(imm, rs1, 0b101, rd, opcodeLoad) }

// Stores.

// SB encodes "sb rs2, imm(rs1)".
func SB(rs2, rs1 uint8, imm int32) uint32 { return encodeS(imm, rs2, rs1, 0b000, opcodeStore) }

// SH encodes "sh rs2, imm(rs1)".
func SH(rs2, rs1 uint8, imm int32) uint32 { return encodeS(imm, rs2, rs1, 0b001, opcodeStore) }

// SW encodes "sw rs2, imm(rs1)".
func SW(rs2, rs1 uint8, imm int32) uint32 { return encodeS(imm, rs2, rs1, 0b010, opcodeStore) }

// Register-immediate ALU operations.

// ADDI encodes "addi rd, rs1, imm".
func ADDI(rd, rs1 uint8, imm int32) uint32 { return encodeI(imm, rs1, 0b000, rd, opcodeOpImm) }

// SLTI encodes "slti rd, rs1, imm".
func SLTI(rd, rs1 uint8, imm int32) uint32 { return encodeI(imm, rs1, 0b010, rd, opcodeOpImm) }

// SLTIU encodes "sltiu rd, rs1, imm".
func SLTIU(rd, rs1 uint8, imm int32) uint32 { return encodeI(imm, rs1, 0b011, rd, opcodeOpImm) }

// XORI encodes "xori rd, rs1, imm".
func XORI(rd, rs1 uint8, imm int32) uint32 { return encodeI(imm, rs1, 0b100, rd, opcodeOpImm) }

// ORI encodes "ori rd, rs1, imm".
func ORI(rd, rs1 uint8, imm int32) uint32 { return encodeI(imm, rs1, 0b110, rd, opcodeOpImm) }

// ANDI encodes "andi rd, rs1, imm".
func ANDI(rd, rs1 uint8, imm int32) uint32 { return encodeI(imm, rs1, 0b111, rd, opcodeOpImm) }

// SLLI encodes "slli rd, rs1, shamt".
func SLLI(rd, rs1, shamt uint8) uint32 {
	return encodeR(0b0000000, shamt, rs1, 0b001, rd, opcodeOpImm)
}

// SRLI encodes "srli rd, rs1, shamt".
func SRLI(rd, rs1, shamt uint8) uint32 {
	return encodeR(0b0000000, shamt, rs1, 0b101, rd, opcodeOpImm)
}

// SRAI encodes "srai rd, rs1, shamt".
func SRAI(rd, rs1, shamt uint8) uint32 {
	return encodeR(0b0100000, shamt, rs1, 0b101, rd, opcodeOpImm)
}

// Register-register ALU operations.

// ADD encodes "add rd, rs1, rs2".
func ADD(rd, rs1, rs2 uint8) uint32 { return encodeR(0b0000000, rs2, rs1, 0b000, rd, opcodeOp) }

// SUB encodes "sub rd, rs1, rs2".
func SUB(rd, rs1, rs2 uint8) uint32 { return encodeR(0b0100000, rs2, rs1, 0b000, rd, opcodeOp) }

// SLL encodes "sll rd, rs1, rs2".
func SLL(rd, rs1, rs2 uint8) uint32 { return encodeR(0b0000000, rs2, rs1, 0b001, rd, opcodeOp) }

// SLT encodes "slt rd, rs1, rs2".
func SLT(rd, rs1, rs2 uint8) uint32 { return encodeR(0b0000000, rs2, rs1, 0b010, rd, opcodeOp) }

// SLTU encodes "sltu rd, rs1, rs2".
func SLTU(rd, rs1, rs2 uint8) uint32 { return encodeR(0b0000000, rs2, rs1, 0b011, rd, opcodeOp) }

// XOR encodes "xor rd, rs1, rs2".
func XOR(rd, rs1, rs2 uint8) uint32 { return encodeR(0b0000000, rs2, rs1, 0b100, rd, opcodeOp) }

// SRL encodes "srl rd, rs1, rs2".
func SRL(rd, rs1, rs2 uint8) uint32 { return encodeR(0b0000000, rs2, rs1, 0b101, rd, opcodeOp) }

// SRA encodes "sra rd, rs1, rs2".
func SRA(rd, rs1, rs2 uint8) uint32 { return encodeR(0b0100000, rs2, rs1, 0b101, rd, opcodeOp) }

// OR encodes "or rd, rs1, rs2".
func OR(rd, rs1, rs2 uint8) uint32 { return encodeR(0b0000000, rs2, rs1, 0b110, rd, opcodeOp) }

// AND encodes "and rd, rs1, rs2".
func AND(rd, rs1, rs2 uint8) uint32 { return encodeR(0b0000000, rs2, rs1, 0b111, rd, opcodeOp) }

// System.

// ECALL encodes the environment call instruction.
func ECALL() uint32 { return 0x00000073 }

// EBREAK encodes the breakpoint instruction, which halts the simulation.
func EBREAK() uint32 { return 0x00100073 }

// NOP encodes the canonical no-op: "addi x0, x0, 0".
func NOP() uint32 { return ADDI(0, 0, 0) }
