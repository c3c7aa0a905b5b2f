// Package benchmarks provides RV32I microbenchmarks and a timing harness
// for calibrating the PQR5 core model.
package benchmarks

import (
	"github.com/sarchlab/pqr5sim/emu"
	"github.com/sarchlab/pqr5sim/insts"
)

// Benchmark is a self-checking RV32I program.
type Benchmark struct {
	// Name identifies the benchmark.
	Name string

	// Description explains what the benchmark measures.
	Description string

	// Setup preloads registers or memory before the run.
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is the instruction stream, loaded at address 0. Every
	// program ends with EBREAK.
	Program []uint32

	// ExpectedRegs are the architectural register values after the run.
	ExpectedRegs map[uint8]uint32
}

// GetMicrobenchmarks returns the standard microbenchmark set. Each targets
// one pipeline characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		loadUseChain(),
		memorySequential(),
		countdownLoop(),
		alternatingBranch(),
		functionCalls(),
	}
}

// arithmeticSequential measures ALU throughput: independent ADDIs that
// never forward, so the ideal CPI approaches 1.
func arithmeticSequential() Benchmark {
	program := make([]uint32, 0, 21)
	for i := 0; i < 20; i++ {
		rd := uint8(5 + i%5)
		program = append(program, insts.ADDI(rd, rd, 1))
	}
	program = append(program, insts.EBREAK())

	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 independent ADDIs across 5 registers",
		Program:     program,
		ExpectedRegs: map[uint8]uint32{
			5: 4, 6: 4, 7: 4, 8: 4, 9: 4,
		},
	}
}

// dependencyChain measures forwarding latency: every instruction consumes
// the previous result.
func dependencyChain() Benchmark {
	program := make([]uint32, 0, 21)
	for i := 0; i < 20; i++ {
		program = append(program, insts.ADDI(5, 5, 1))
	}
	program = append(program, insts.EBREAK())

	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIs resolved by operand forwarding",
		Program:      program,
		ExpectedRegs: map[uint8]uint32{5: 20},
	}
}

// loadUseChain measures the load-use interlock: every load feeds the next
// instruction immediately.
func loadUseChain() Benchmark {
	return Benchmark{
		Name:        "load_use_chain",
		Description: "pointer-chase style loads, each consumed immediately",
		Setup: func(_ *emu.RegFile, memory *emu.Memory) {
			// Each word holds the address of the next.
			memory.Write32(0x100, 0x108)
			memory.Write32(0x108, 0x110)
			memory.Write32(0x110, 0x118)
			memory.Write32(0x118, 7)
		},
		Program: []uint32{
			insts.ADDI(5, 0, 0x100),
			insts.LW(5, 5, 0),
			insts.LW(5, 5, 0),
			insts.LW(5, 5, 0),
			insts.LW(5, 5, 0),
			insts.EBREAK(),
		},
		ExpectedRegs: map[uint8]uint32{5: 7},
	}
}

// memorySequential measures store/load round trips without interlocks.
func memorySequential() Benchmark {
	return Benchmark{
		Name:        "memory_sequential",
		Description: "independent stores then loads over a small buffer",
		Program: []uint32{
			insts.ADDI(5, 0, 0x200),
			insts.ADDI(6, 0, 11),
			insts.ADDI(7, 0, 22),
			insts.SW(6, 5, 0),
			insts.SW(7, 5, 4),
			insts.LW(8, 5, 0),
			insts.LW(9, 5, 4),
			insts.EBREAK(),
		},
		ExpectedRegs: map[uint8]uint32{8: 11, 9: 22},
	}
}

// countdownLoop measures backward-branch prediction on a regular loop.
func countdownLoop() Benchmark {
	return Benchmark{
		Name:        "countdown_loop",
		Description: "16-iteration countdown with a backward BNE",
		Program: []uint32{
			insts.ADDI(5, 0, 16),
			insts.ADDI(6, 0, 0),
			insts.ADD(6, 6, 5),  // 8: loop body
			insts.ADDI(5, 5, -1),
			insts.BNE(5, 0, -8), // back to 8
			insts.EBREAK(),
		},
		// 16+15+...+1
		ExpectedRegs: map[uint8]uint32{6: 136},
	}
}

// alternatingBranch measures history-based prediction: the branch outcome
// flips every iteration, which defeats a static scheme but trains Gshare.
func alternatingBranch() Benchmark {
	return Benchmark{
		Name:        "alternating_branch",
		Description: "taken/not-taken alternating pattern over 32 iterations",
		Program: []uint32{
			insts.ADDI(5, 0, 32),     // 0:  i = 32
			insts.ADDI(6, 0, 0),      // 4:  acc = 0
			insts.ANDI(7, 5, 1),      // 8:  loop: lsb of i
			insts.BEQ(7, 0, 8),       // 12: skip the add on even i
			insts.ADDI(6, 6, 1),      // 16
			insts.ADDI(5, 5, -1),     // 20:
			insts.BNE(5, 0, -16),     // 24: back to 8
			insts.EBREAK(),           // 28
		},
		// Odd values of i from 31 down to 1: sixteen increments.
		ExpectedRegs: map[uint8]uint32{6: 16},
	}
}

// functionCalls measures call/return prediction through the RAS.
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "8 calls to a leaf function returning through the RAS",
		Program: []uint32{
			insts.ADDI(5, 0, 8),              // 0:  i = 8
			insts.ADDI(6, 0, 0),              // 4:  acc = 0
			insts.JAL(insts.LinkReg, 16),     // 8:  loop: call 24
			insts.ADDI(5, 5, -1),             // 12
			insts.BNE(5, 0, -8),              // 16: back to 8
			insts.EBREAK(),                   // 20
			insts.ADDI(6, 6, 2),              // 24: leaf body
			insts.RET(),                      // 28
		},
		ExpectedRegs: map[uint8]uint32{6: 16},
	}
}
