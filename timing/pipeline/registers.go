// Package pipeline implements the cycle-accurate 5-stage PQR5 pipeline:
// fetch, decode, execute, memory access, and writeback, with branch
// prediction, return-address prediction, operand forwarding, and load-use
// interlocking.
package pipeline

import "github.com/sarchlab/pqr5sim/insts"

// PredictionRecord is the speculative context captured at fetch time and
// carried down the pipeline with the instruction. Resolution in the execute
// stage compares against and restores from this record, never from the
// predictors' current (possibly already-updated) state.
type PredictionRecord struct {
	// Taken indicates the fetch stream was redirected for this
	// instruction.
	Taken bool

	// Target is the predicted next PC when Taken.
	Target uint32

	// FromRAS indicates the redirect came from the return-address stack
	// rather than the forward branch predictors.
	FromRAS bool

	// GHR is the global history register value at prediction time. The
	// BHT update at resolution must index with this snapshot, not the
	// GHR's current value.
	GHR uint32

	// RAS is the return-address stack snapshot taken after this
	// instruction's own speculative push/pop. A flush caused by this
	// instruction rolls the stack back to exactly this point.
	RAS RASSnapshot
}

// IFIDRegister holds state between the fetch and decode stages.
type IFIDRegister struct {
	// Valid indicates the register holds a fetched slot. An invalid
	// register is a bubble: it carries no architectural effect.
	Valid bool

	// PC is the program counter of the fetched instruction.
	PC uint32

	// InstructionWord is the raw 32-bit instruction encoding.
	InstructionWord uint32

	// Prediction is the speculative context captured at fetch.
	Prediction PredictionRecord
}

// Clear resets the IF/ID register to a bubble.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{}
}

// IDEXRegister holds state between the decode and execute stages.
type IDEXRegister struct {
	// Valid indicates the register holds an issued instruction.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// Register values read from the register file, re-read every cycle
	// the instruction waits in decode so they are never staler than the
	// forwarding window.
	Rs1Value uint32
	Rs2Value uint32

	// Control signals.
	MemRead  bool // Load instruction
	MemWrite bool // Store instruction
	RegWrite bool // Writes a register result

	// Prediction is the speculative context carried from fetch.
	Prediction PredictionRecord
}

// Clear resets the ID/EX register to a bubble.
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{}
}

// EXMEMRegister holds state between the execute and memory-access stages.
type EXMEMRegister struct {
	// Valid indicates the register holds an executed instruction.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// ALUResult is the ALU output: the computed value for ALU
	// operations, the effective address for loads and stores, and the
	// return PC (PC+4) for JAL/JALR.
	ALUResult uint32

	// StoreValue is the (forwarded) register value to store.
	StoreValue uint32

	// Rd is the destination register number.
	Rd uint8

	// Control signals.
	MemRead  bool
	MemWrite bool
	RegWrite bool
}

// Clear resets the EX/MEM register to a bubble.
func (r *EXMEMRegister) Clear() {
	*r = EXMEMRegister{}
}

// MEMWBRegister holds state between the memory-access and writeback stages.
type MEMWBRegister struct {
	// Valid indicates the register holds a completing instruction.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// ALUResult is the non-memory result.
	ALUResult uint32

	// MemData is the raw 32-bit word read from the aligned data memory
	// address, for loads. The writeback stage extracts the addressed
	// byte lane and sign- or zero-extends per funct3.
	MemData uint32

	// MemAddr is the effective address of the load, for lane selection.
	MemAddr uint32

	// Rd is the destination register number.
	Rd uint8

	// Control signals.
	RegWrite bool
	MemToReg bool // Result comes from memory (load)
}

// Clear resets the MEM/WB register to a bubble.
func (r *MEMWBRegister) Clear() {
	*r = MEMWBRegister{}
}

// WBLatch retains the most recently committed register write. It is the
// third operand-forwarding tap: a consumer that sat stalled in decode or
// execute while its producer drained out of MEM/WB picks the value up here.
// Only real commits overwrite it; bubbles never do.
type WBLatch struct {
	// Valid indicates a commit has occurred since reset.
	Valid bool

	// Rd is the committed destination register.
	Rd uint8

	// Value is the committed value.
	Value uint32
}
