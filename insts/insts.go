// Package insts provides RV32I instruction definitions, decoding, and
// encoding.
//
// This package implements decoding of RISC-V RV32I machine code into
// structured instruction representations. It supports the full RV32I base
// integer instruction set:
//   - Integer register-immediate and register-register operations
//   - Loads and stores (byte, half-word, word, signed and unsigned)
//   - Control transfer: JAL, JALR, and the six conditional branches
//   - LUI, AUIPC, FENCE, ECALL, EBREAK
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x00500093) // ADDI x1, x0, 5
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts
