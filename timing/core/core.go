// Package core provides the cycle-accurate PQR5 CPU core model: the
// pipeline plus the control signals the bootloader/host subsystem drives.
package core

import (
	"github.com/sarchlab/pqr5sim/emu"
	"github.com/sarchlab/pqr5sim/timing/pipeline"
)

// Core represents one PQR5 CPU core. It wraps the 5-stage pipeline and
// exposes the two signals the external loader subsystem asserts:
// cpu_stall, which freezes the core and grants the host access to the
// memory arrays, and cpu_reset, which reinitializes the pipeline to the
// reset PC.
type Core struct {
	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	regFile *emu.RegFile
	memory  *emu.Memory

	hostStalled bool
}

// NewCore creates a Core over the given register file and memory.
func NewCore(regFile *emu.RegFile, memory *emu.Memory, opts ...pipeline.Option) *Core {
	return &Core{
		Pipeline: pipeline.NewPipeline(regFile, memory, opts...),
		regFile:  regFile,
		memory:   memory,
	}
}

// Tick advances the core one cycle. A host-stalled core holds all state.
func (c *Core) Tick() {
	if c.hostStalled {
		return
	}
	c.Pipeline.Tick()
}

// Run executes until the core halts or the cycle limit is reached.
// A limit of zero means no limit. It returns the number of cycles run.
func (c *Core) Run(maxCycles uint64) uint64 {
	start := c.Pipeline.Stats().Cycles
	for !c.Pipeline.Halted() {
		if maxCycles > 0 && c.Pipeline.Stats().Cycles-start >= maxCycles {
			break
		}
		c.Tick()
	}
	return c.Pipeline.Stats().Cycles - start
}

// SetCPUStall drives the loader's cpu_stall signal. While asserted the
// core freezes and the host may access memory through Memory().
func (c *Core) SetCPUStall(stalled bool) {
	c.hostStalled = stalled
}

// CPUStalled reports whether the host has the core stalled.
func (c *Core) CPUStalled() bool {
	return c.hostStalled
}

// AssertCPUReset drives the loader's cpu_reset signal: the pipeline drops
// all in-flight state and restarts from the reset PC with the one-cycle
// fetch delay.
func (c *Core) AssertCPUReset() {
	c.Pipeline.Reset()
}

// Memory returns the core's memory, for host/loader access while stalled.
func (c *Core) Memory() *emu.Memory {
	return c.memory
}

// RegFile returns the core's register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.regFile
}

// Halted reports whether the core has halted.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// Stats returns the pipeline statistics.
func (c *Core) Stats() pipeline.Statistics {
	return c.Pipeline.Stats()
}
