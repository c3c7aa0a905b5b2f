package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pqr5sim/emu"
	"github.com/sarchlab/pqr5sim/insts"
	"github.com/sarchlab/pqr5sim/timing/cache"
	"github.com/sarchlab/pqr5sim/timing/latency"
	"github.com/sarchlab/pqr5sim/timing/pipeline"
)

var _ = Describe("Pipeline", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		pipe    *pipeline.Pipeline
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemory()
	})

	// loadProgram places the words at address 0, where the default reset
	// PC starts fetching.
	loadProgram := func(words ...uint32) {
		memory.LoadWords(0, words)
	}

	run := func(opts ...pipeline.Option) {
		pipe = pipeline.NewPipeline(regFile, memory, opts...)
		Expect(pipe.RunCycles(10000)).To(BeFalse(), "program did not halt")
	}

	Describe("basic execution", func() {
		It("should execute a single instruction", func() {
			loadProgram(
				insts.ADDI(1, 0, 42),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(1)).To(Equal(uint32(42)))
			Expect(pipe.Halted()).To(BeTrue())
			// One reset cycle, then the first instruction fills the
			// five stages; the second retires right behind it.
			Expect(pipe.Stats().Cycles).To(Equal(uint64(7)))
			Expect(pipe.Stats().Instructions).To(Equal(uint64(2)))
		})

		It("should retire independent instructions back to back", func() {
			loadProgram(
				insts.ADDI(1, 0, 10),
				insts.ADDI(2, 0, 20),
				insts.ADDI(3, 0, 30),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(1)).To(Equal(uint32(10)))
			Expect(regFile.ReadReg(2)).To(Equal(uint32(20)))
			Expect(regFile.ReadReg(3)).To(Equal(uint32(30)))
			Expect(pipe.Stats().Cycles).To(Equal(uint64(9)))
			Expect(pipe.Stats().Instructions).To(Equal(uint64(4)))
		})

		It("should execute stores and loads", func() {
			loadProgram(
				insts.ADDI(1, 0, 256),
				insts.ADDI(2, 0, 99),
				insts.SW(2, 1, 0),
				insts.LW(3, 1, 0),
				insts.EBREAK(),
			)
			run()

			Expect(memory.Read32(256)).To(Equal(uint32(99)))
			Expect(regFile.ReadReg(3)).To(Equal(uint32(99)))
		})

		It("should keep x0 hardwired to zero", func() {
			loadProgram(
				insts.ADDI(0, 0, 5),
				insts.ADD(1, 0, 0),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(0)).To(Equal(uint32(0)))
			Expect(regFile.ReadReg(1)).To(Equal(uint32(0)))
		})

		It("should flow illegal encodings through as bubbles", func() {
			loadProgram(
				insts.ADDI(1, 0, 1),
				0xFFFFFFFF,
				insts.ADDI(2, 0, 2),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(1)).To(Equal(uint32(1)))
			Expect(regFile.ReadReg(2)).To(Equal(uint32(2)))
			// The bubble never retires.
			Expect(pipe.Stats().Instructions).To(Equal(uint64(3)))
		})

		It("should stay halted after EBREAK", func() {
			loadProgram(insts.EBREAK())
			run()

			cycles := pipe.Stats().Cycles
			pipe.Tick()
			Expect(pipe.Stats().Cycles).To(Equal(cycles))
		})
	})

	Describe("data forwarding", func() {
		It("should forward a distance-1 result into execute", func() {
			loadProgram(
				insts.ADDI(1, 0, 10),
				insts.ADDI(2, 1, 5),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(2)).To(Equal(uint32(15)))
			Expect(pipe.Stats().DataHazards).To(BeNumerically(">", 0))
			Expect(pipe.Stats().LoadUseStalls).To(Equal(uint64(0)))
		})

		It("should forward a distance-2 result into execute", func() {
			loadProgram(
				insts.ADDI(1, 0, 10),
				insts.NOP(),
				insts.ADDI(2, 1, 5),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(2)).To(Equal(uint32(15)))
		})

		It("should forward into both operand slots", func() {
			loadProgram(
				insts.ADDI(1, 0, 3),
				insts.ADDI(2, 0, 4),
				insts.ADD(3, 1, 2),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(3)).To(Equal(uint32(7)))
		})

		It("should forward from the writeback latch across a memory stall", func() {
			// The consumer waits in ID/EX while the store occupies the
			// memory stage; by the time it executes, the producer has
			// drained past MEM/WB and only the writeback latch still
			// holds its value.
			loadProgram(
				insts.ADDI(1, 0, 5),
				insts.SW(1, 0, 256),
				insts.ADD(2, 1, 1),
				insts.EBREAK(),
			)

			config := latency.DefaultConfig()
			config.DMemLatency = 4
			run(pipeline.WithTimingConfig(config))

			Expect(regFile.ReadReg(2)).To(Equal(uint32(10)))
			Expect(memory.Read32(256)).To(Equal(uint32(5)))
			Expect(pipe.Stats().MemStalls).To(Equal(uint64(3)))
		})

		It("should forward a store's data operand", func() {
			loadProgram(
				insts.ADDI(1, 0, 256),
				insts.ADDI(2, 0, 77),
				insts.SW(2, 1, 0),
				insts.EBREAK(),
			)
			run()

			Expect(memory.Read32(256)).To(Equal(uint32(77)))
		})
	})

	Describe("load-use interlock", func() {
		It("should stall one cycle and forward the load data", func() {
			memory.Write32(256, 7)
			loadProgram(
				insts.ADDI(2, 0, 256),
				insts.LW(1, 2, 0),
				insts.ADD(3, 1, 1),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(3)).To(Equal(uint32(14)))
			Expect(pipe.Stats().LoadUseStalls).To(Equal(uint64(1)))
		})

		It("should not stall with one instruction of separation", func() {
			memory.Write32(256, 7)
			loadProgram(
				insts.ADDI(2, 0, 256),
				insts.LW(1, 2, 0),
				insts.NOP(),
				insts.ADD(3, 1, 1),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(3)).To(Equal(uint32(14)))
			Expect(pipe.Stats().LoadUseStalls).To(Equal(uint64(0)))
		})

		It("should extend sub-word loads after the interlock", func() {
			memory.Write32(256, 0x0000FF80)
			loadProgram(
				insts.ADDI(2, 0, 256),
				insts.LB(1, 2, 0),
				insts.ADD(3, 1, 0),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(3)).To(Equal(uint32(0xFFFFFF80)))
		})
	})

	Describe("branch handling", func() {
		It("should not flush a correctly predicted not-taken branch", func() {
			loadProgram(
				insts.ADDI(1, 0, 1),
				insts.BEQ(1, 0, 8), // not taken; cold gshare agrees
				insts.ADDI(2, 0, 2),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(2)).To(Equal(uint32(2)))
			Expect(pipe.Stats().Flushes).To(Equal(uint64(0)))
			Expect(pipe.Stats().BranchResolutions).To(Equal(uint64(1)))
			Expect(pipe.Stats().BranchCorrect).To(Equal(uint64(1)))
		})

		It("should squash the wrong path on a mispredicted taken branch", func() {
			loadProgram(
				insts.ADDI(1, 0, 1),
				insts.BEQ(0, 0, 12), // taken to 16; cold gshare says not
				insts.ADDI(2, 0, 99),
				insts.ADDI(2, 0, 98),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(1)).To(Equal(uint32(1)))
			Expect(regFile.ReadReg(2)).To(Equal(uint32(0)))
			Expect(pipe.Stats().Flushes).To(Equal(uint64(1)))
			Expect(pipe.Stats().BranchMispredictions).To(Equal(uint64(1)))
		})

		It("should use forwarded operands to resolve branches", func() {
			loadProgram(
				insts.ADDI(1, 0, 5),
				insts.BNE(1, 0, 12), // depends on the previous result
				insts.ADDI(2, 0, 99),
				insts.ADDI(2, 0, 98),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(2)).To(Equal(uint32(0)))
		})

		It("should resolve coinciding redirects with a single winner", func() {
			// The mispredicted BEQ resolves in the same cycle the
			// wrong-path backward BNE sits in the fetch slot with a
			// taken prediction of its own; only the execute-stage
			// redirect may steer the PC.
			loadProgram(
				insts.ADDI(1, 0, 1), // 0
				insts.JAL(0, 12),    // 4: hop over the wrong-path block
				insts.ADDI(2, 0, 9), // 8: wrong path only
				insts.BNE(0, 0, -4), // 12: wrong path, statically taken
				insts.BEQ(0, 1, -4), // 16: backward, predicted taken, not taken
				insts.ADDI(3, 0, 7), // 20
				insts.EBREAK(),      // 24
			)
			run(pipeline.WithBranchPredictor(pipeline.BranchPredictorConfig{
				Kind: pipeline.PredictorStatic,
			}))

			Expect(regFile.ReadReg(3)).To(Equal(uint32(7)))
			Expect(regFile.ReadReg(2)).To(Equal(uint32(0)))
			Expect(pipe.Stats().Flushes).To(Equal(uint64(1)))
			Expect(pipe.Stats().BranchMispredictions).To(Equal(uint64(1)))
		})

		It("should not flush a predicted JAL", func() {
			// The default gshare predictor redirects JAL at fetch.
			loadProgram(
				insts.JAL(0, 8),
				insts.ADDI(1, 0, 99),
				insts.EBREAK(),
			)
			run()

			Expect(regFile.ReadReg(1)).To(Equal(uint32(0)))
			Expect(pipe.Stats().Flushes).To(Equal(uint64(0)))
			Expect(pipe.Stats().BranchResolutions).To(Equal(uint64(1)))
		})

		It("should flush JAL when prediction is disabled", func() {
			loadProgram(
				insts.JAL(0, 8),
				insts.ADDI(1, 0, 99),
				insts.EBREAK(),
			)
			run(pipeline.WithBranchPredictor(pipeline.BranchPredictorConfig{
				Kind: pipeline.PredictorNone,
			}))

			Expect(regFile.ReadReg(1)).To(Equal(uint32(0)))
			Expect(pipe.Stats().Flushes).To(Equal(uint64(1)))
		})
	})

	Describe("loops", func() {
		// Sums 5+4+3+2+1 with a backward BNE.
		sumLoop := []uint32{
			insts.ADDI(1, 0, 5),
			insts.ADDI(2, 0, 0),
			insts.ADD(2, 2, 1),   // 8: loop body
			insts.ADDI(1, 1, -1),
			insts.BNE(1, 0, -8),  // back to 8
			insts.EBREAK(),
		}

		It("should compute the same result under every predictor", func() {
			for _, kind := range []pipeline.PredictorKind{
				pipeline.PredictorNone,
				pipeline.PredictorStatic,
				pipeline.PredictorGshare,
			} {
				regFile = &emu.RegFile{}
				memory = emu.NewMemory()
				memory.LoadWords(0, sumLoop)

				run(pipeline.WithBranchPredictor(pipeline.BranchPredictorConfig{
					Kind:     kind,
					BHTSize:  64,
					GHRWidth: 4,
				}))

				Expect(regFile.ReadReg(2)).To(Equal(uint32(15)))
				Expect(pipe.Stats().BranchResolutions).To(Equal(uint64(5)))
			}
		})

		It("should mispredict only the loop exit with the static predictor", func() {
			memory.LoadWords(0, sumLoop)
			run(pipeline.WithBranchPredictor(pipeline.BranchPredictorConfig{
				Kind: pipeline.PredictorStatic,
			}))

			// Backward branch statically taken: four correct
			// iterations, one mispredicted fall-through.
			Expect(pipe.Stats().BranchCorrect).To(Equal(uint64(4)))
			Expect(pipe.Stats().BranchMispredictions).To(Equal(uint64(1)))
		})

		It("should cost fewer cycles with prediction than without", func() {
			memory.LoadWords(0, sumLoop)
			run(pipeline.WithBranchPredictor(pipeline.BranchPredictorConfig{
				Kind: pipeline.PredictorNone,
			}))
			noneCycles := pipe.Stats().Cycles

			regFile = &emu.RegFile{}
			memory = emu.NewMemory()
			memory.LoadWords(0, sumLoop)
			run(pipeline.WithBranchPredictor(pipeline.BranchPredictorConfig{
				Kind: pipeline.PredictorStatic,
			}))

			Expect(pipe.Stats().Cycles).To(BeNumerically("<", noneCycles))
		})
	})

	Describe("calls and returns", func() {
		It("should predict the return through the RAS with no flush", func() {
			loadProgram(
				insts.ADDI(5, 0, 1),
				insts.JAL(insts.LinkReg, 12), // 4: call 16
				insts.ADDI(6, 0, 2),          // 8: return lands here
				insts.EBREAK(),               // 12
				insts.ADDI(7, 0, 3),          // 16: callee
				insts.RET(),                  // 20
			)
			run()

			Expect(regFile.ReadReg(5)).To(Equal(uint32(1)))
			Expect(regFile.ReadReg(6)).To(Equal(uint32(2)))
			Expect(regFile.ReadReg(7)).To(Equal(uint32(3)))
			Expect(pipe.Stats().Flushes).To(Equal(uint64(0)))

			rasStats := pipe.RAS().Stats()
			Expect(rasStats.Pushes).To(Equal(uint64(1)))
			Expect(rasStats.Pops).To(Equal(uint64(1)))
			Expect(rasStats.EmptyReturns).To(Equal(uint64(0)))
		})

		It("should fall through on a return with an empty stack", func() {
			// A RET with no prior call: the stack cannot predict, the
			// fall-through is wrong, and execute flushes to the link
			// target.
			loadProgram(
				insts.ADDI(insts.LinkReg, 0, 16), // x1 = 16
				insts.RET(),                      // to 16
				insts.ADDI(2, 0, 99),             // squashed
				insts.ADDI(2, 0, 98),             // squashed
				insts.EBREAK(),                   // 16
			)
			run()

			Expect(regFile.ReadReg(2)).To(Equal(uint32(0)))
			Expect(pipe.Stats().Flushes).To(Equal(uint64(1)))
			Expect(pipe.RAS().Stats().EmptyReturns).To(Equal(uint64(1)))
		})

		It("should roll the RAS back when a wrong-path call is squashed", func() {
			loadProgram(
				insts.BEQ(0, 0, 16),          // taken to 16; cold gshare says not
				insts.JAL(insts.LinkReg, 28), // wrong path: speculative push
				insts.NOP(),
				insts.NOP(),
				insts.EBREAK(), // 16
			)
			run()

			ras := pipe.RAS()
			Expect(ras.Empty()).To(BeTrue())
			Expect(ras.Stats().Pushes).To(Equal(uint64(1)))
			Expect(ras.Stats().Rollbacks).To(Equal(uint64(1)))
		})

		It("should handle nested calls", func() {
			loadProgram(
				insts.JAL(insts.LinkReg, 8),   // 0: call outer at 8
				insts.EBREAK(),                // 4
				insts.ADDI(5, 0, 1),           // 8: outer
				insts.ADDI(2, 1, 0),           // 12: save ra in x2
				insts.JAL(insts.LinkReg, 12),  // 16: call inner at 28
				insts.ADDI(1, 2, 0),           // 20: restore ra
				insts.RET(),                   // 24: return to 4
				insts.ADDI(6, 0, 2),           // 28: inner
				insts.RET(),                   // 32: return to 20
			)
			run()

			Expect(regFile.ReadReg(5)).To(Equal(uint32(1)))
			Expect(regFile.ReadReg(6)).To(Equal(uint32(2)))
			Expect(pipe.RAS().Stats().Pushes).To(Equal(uint64(2)))
			Expect(pipe.RAS().Stats().Pops).To(Equal(uint64(2)))
		})
	})

	Describe("memory interface latency", func() {
		It("should stall the pipeline for multi-cycle data accesses", func() {
			memory.Write32(256, 7)
			loadProgram(
				insts.ADDI(2, 0, 256),
				insts.LW(1, 2, 0),
				insts.EBREAK(),
			)

			config := latency.DefaultConfig()
			config.DMemLatency = 3
			run(pipeline.WithTimingConfig(config))

			Expect(regFile.ReadReg(1)).To(Equal(uint32(7)))
			Expect(pipe.Stats().MemStalls).To(Equal(uint64(2)))
		})

		It("should stall fetch for multi-cycle instruction accesses", func() {
			loadProgram(
				insts.ADDI(1, 0, 42),
				insts.EBREAK(),
			)

			config := latency.DefaultConfig()
			config.IMemLatency = 2
			run(pipeline.WithTimingConfig(config))

			Expect(regFile.ReadReg(1)).To(Equal(uint32(42)))
			Expect(pipe.Stats().FetchStalls).To(BeNumerically(">", 0))
		})

		It("should start from the configured reset PC", func() {
			memory.LoadWords(0x1000, []uint32{
				insts.ADDI(1, 0, 5),
				insts.EBREAK(),
			})

			config := latency.DefaultConfig()
			config.ResetPC = 0x1000
			run(pipeline.WithTimingConfig(config))

			Expect(regFile.ReadReg(1)).To(Equal(uint32(5)))
		})
	})

	Describe("caches", func() {
		It("should execute correctly through I- and D-caches", func() {
			memory.Write32(512, 7)
			loadProgram(
				insts.ADDI(2, 0, 512),
				insts.LW(1, 2, 0),
				insts.ADDI(3, 0, 9),
				insts.EBREAK(),
			)
			run(
				pipeline.WithICache(cache.DefaultIConfig()),
				pipeline.WithDCache(cache.DefaultDConfig()),
			)

			Expect(regFile.ReadReg(1)).To(Equal(uint32(7)))
			Expect(regFile.ReadReg(3)).To(Equal(uint32(9)))
			// The first fetch misses and stalls for the miss penalty.
			Expect(pipe.Stats().FetchStalls).To(BeNumerically(">", 0))
		})
	})

	Describe("Reset", func() {
		It("should clear all state and restart from the reset PC", func() {
			loadProgram(
				insts.ADDI(1, 0, 42),
				insts.EBREAK(),
			)
			run()
			Expect(pipe.Halted()).To(BeTrue())

			pipe.Reset()
			Expect(pipe.Halted()).To(BeFalse())
			Expect(pipe.PC()).To(Equal(uint32(0)))
			Expect(pipe.Stats().Cycles).To(Equal(uint64(0)))
			Expect(regFile.ReadReg(1)).To(Equal(uint32(0)))

			// The program runs again from scratch.
			Expect(pipe.RunCycles(100)).To(BeFalse())
			Expect(regFile.ReadReg(1)).To(Equal(uint32(42)))
		})

		It("should not serve stale cached lines after a reset", func() {
			loadProgram(
				insts.ADDI(1, 0, 1),
				insts.EBREAK(),
			)
			pipe = pipeline.NewPipeline(regFile, memory,
				pipeline.WithICache(cache.DefaultIConfig()),
				pipeline.WithDCache(cache.DefaultDConfig()),
			)
			Expect(pipe.RunCycles(10000)).To(BeFalse())
			Expect(regFile.ReadReg(1)).To(Equal(uint32(1)))

			// The host rewrites the program while the core is held in
			// reset.
			memory.LoadWords(0, []uint32{
				insts.ADDI(1, 0, 2),
				insts.EBREAK(),
			})
			pipe.Reset()

			Expect(pipe.RunCycles(10000)).To(BeFalse())
			Expect(regFile.ReadReg(1)).To(Equal(uint32(2)))
		})
	})
})
