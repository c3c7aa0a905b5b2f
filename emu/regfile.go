// Package emu provides the architectural state of the PQR5 RV32I core:
// register file, memory, and the combinational ALU.
package emu

// RegFile represents the RV32I integer register file: 31 general-purpose
// registers plus x0, which always reads as zero. There are two read ports
// and one write port; writes to x0 are suppressed at the source, so x0 can
// never hold a non-zero value.
type RegFile struct {
	// X holds registers x0-x31. X[0] is kept at zero by the write port.
	X [32]uint32
}

// ReadReg reads a register value. Register 0 always returns 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to register 0 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.X[reg] = value
}

// Reset clears all registers to zero.
func (r *RegFile) Reset() {
	r.X = [32]uint32{}
}
