package emu

import "github.com/sarchlab/pqr5sim/insts"

// CompareFlags are the comparison outputs the ALU shares with the branch
// unit. The branch unit consumes these instead of duplicating comparators.
type CompareFlags struct {
	// Eq is true when a == b.
	Eq bool
	// Lt is true when a < b as signed 32-bit values.
	Lt bool
	// Ltu is true when a < b as unsigned 32-bit values.
	Ltu bool
}

// Compare computes the shared comparison flags for two operands.
func Compare(a, b uint32) CompareFlags {
	return CompareFlags{
		Eq:  a == b,
		Lt:  int32(a) < int32(b),
		Ltu: a < b,
	}
}

// ALUExecute computes the combinational ALU result for the given
// sub-operation. Shift amounts use the low five bits of the second operand.
// An unrecognized sub-operation yields zero; the pipeline forces the
// carrying slot to a bubble so the result can never retire.
func ALUExecute(op insts.AluOp, a, b uint32) uint32 {
	switch op {
	case insts.AluADD:
		return a + b
	case insts.AluSUB:
		return a - b
	case insts.AluSLT:
		if int32(a) < int32(b) {
			return 1
		}
		return 0
	case insts.AluSLTU:
		if a < b {
			return 1
		}
		return 0
	case insts.AluXOR:
		return a ^ b
	case insts.AluOR:
		return a | b
	case insts.AluAND:
		return a & b
	case insts.AluSLL:
		return a << (b & 0x1F)
	case insts.AluSRL:
		return a >> (b & 0x1F)
	case insts.AluSRA:
		return uint32(int32(a) >> (b & 0x1F))
	default:
		return 0
	}
}
