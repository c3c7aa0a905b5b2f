// Package main provides the entry point for pqr5sim.
// pqr5sim is a cycle-accurate PQR5 RV32I CPU core simulator.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"

	"github.com/sarchlab/pqr5sim/emu"
	"github.com/sarchlab/pqr5sim/loader"
	"github.com/sarchlab/pqr5sim/timing/cache"
	"github.com/sarchlab/pqr5sim/timing/core"
	"github.com/sarchlab/pqr5sim/timing/latency"
	"github.com/sarchlab/pqr5sim/timing/pipeline"
)

var (
	configPath = flag.String("config", "", "Path to timing configuration JSON file")
	maxCycles  = flag.Uint64("cycles", 0, "Cycle limit (0 = run until halt)")
	imageBase  = flag.Uint64("image-base", 0, "Load address for flat binary images")
	predictor  = flag.String("predictor", "", "Override branch predictor: none, static, or gshare")
	caches     = flag.Bool("caches", false, "Model L1 instruction and data caches")
	dump       = flag.Bool("dump", false, "Dump architectural state after the run")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: pqr5sim [options] <program.elf|program.bin>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)

	prog, err := loadProgram(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
	}

	config, err := buildConfig(prog.EntryPoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	run(prog, programPath, config)
}

// loadProgram loads either an ELF32 binary or a flat image, distinguished
// by the ELF magic.
func loadProgram(path string) (*loader.Program, error) {
	isELF, err := loader.IsELF(path)
	if err != nil {
		return nil, err
	}
	if isELF {
		return loader.Load(path)
	}
	return loader.LoadFlat(path, uint32(*imageBase))
}

// buildConfig assembles the timing configuration from the config file and
// command-line overrides.
func buildConfig(entryPoint uint32) (*latency.Config, error) {
	var config *latency.Config
	if *configPath != "" {
		var err error
		config, err = latency.LoadConfig(*configPath)
		if err != nil {
			return nil, fmt.Errorf("loading timing config: %w", err)
		}
	} else {
		config = latency.DefaultConfig()
	}

	// The program entry point wins over the config's reset PC.
	config.ResetPC = entryPoint

	if *predictor != "" {
		switch *predictor {
		case "none", "static", "gshare":
			config.Predictor = *predictor
		default:
			return nil, fmt.Errorf("unknown predictor %q", *predictor)
		}
	}

	return config, nil
}

func run(prog *loader.Program, programPath string, config *latency.Config) {
	memory := emu.NewMemory()
	regFile := &emu.RegFile{}
	prog.Install(memory)

	opts := []pipeline.Option{
		pipeline.WithTimingConfig(config),
	}
	if *caches {
		opts = append(opts,
			pipeline.WithICache(cache.DefaultIConfig()),
			pipeline.WithDCache(cache.DefaultDConfig()),
		)
	}

	c := core.NewCore(regFile, memory, opts...)
	c.AssertCPUReset()
	cycles := c.Run(*maxCycles)

	stats := c.Stats()
	totalCycles := stats.Cycles
	if totalCycles == 0 {
		totalCycles = 1
	}

	fmt.Printf("\n")
	fmt.Printf("Program: %s\n", programPath)
	if !c.Halted() {
		fmt.Printf("Cycle limit reached after %d cycles\n", cycles)
	}
	fmt.Printf("Total Instructions: %d\n", stats.Instructions)
	fmt.Printf("Total Cycles: %d\n", stats.Cycles)
	fmt.Printf("CPI: %.2f\n", stats.CPI())
	fmt.Printf("\n")
	fmt.Printf("Breakdown:\n")
	fmt.Printf("  Load-use stalls: %6d cycles (%5.1f%%)\n",
		stats.LoadUseStalls, 100.0*float64(stats.LoadUseStalls)/float64(totalCycles))
	fmt.Printf("  Fetch stalls:    %6d cycles (%5.1f%%)\n",
		stats.FetchStalls, 100.0*float64(stats.FetchStalls)/float64(totalCycles))
	fmt.Printf("  Memory stalls:   %6d cycles (%5.1f%%)\n",
		stats.MemStalls, 100.0*float64(stats.MemStalls)/float64(totalCycles))
	fmt.Printf("\n")
	fmt.Printf("Pipeline Events:\n")
	fmt.Printf("  Flushes:             %d\n", stats.Flushes)
	fmt.Printf("  Forwarded cycles:    %d\n", stats.DataHazards)
	fmt.Printf("  Branch resolutions:  %d\n", stats.BranchResolutions)
	fmt.Printf("  Branch mispredicts:  %d\n", stats.BranchMispredictions)

	predStats := c.Pipeline.Predictor().Stats()
	if predStats.Predictions > 0 {
		fmt.Printf("  Predictor accuracy:  %.1f%%\n", predStats.Accuracy())
	}
	if ras := c.Pipeline.RAS(); ras != nil {
		rasStats := ras.Stats()
		fmt.Printf("  RAS pushes/pops:     %d/%d\n", rasStats.Pushes, rasStats.Pops)
	}

	if *dump {
		fmt.Printf("\nArchitectural state:\n")
		dumper := spew.ConfigState{Indent: "  ", DisableMethods: true}
		dumper.Fdump(os.Stdout, regFile)
		fmt.Printf("Final PC: 0x%X\n", c.Pipeline.PC())
	}
}
