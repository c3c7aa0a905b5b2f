package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/pqr5sim/emu"
	"github.com/sarchlab/pqr5sim/timing/pipeline"
)

// maxBenchmarkCycles bounds a run so a broken program cannot hang the
// harness.
const maxBenchmarkCycles = 1_000_000

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark.
	Name string `json:"name"`

	// Description explains what the benchmark measures.
	Description string `json:"description"`

	// Passed indicates the architectural results matched.
	Passed bool `json:"passed"`

	// SimulatedCycles is the total cycle count.
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions.
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per retired instruction.
	CPI float64 `json:"cpi"`

	// LoadUseStalls is the number of load-use interlock cycles.
	LoadUseStalls uint64 `json:"load_use_stalls"`

	// MemStalls is the number of data memory stall cycles.
	MemStalls uint64 `json:"mem_stalls"`

	// FetchStalls is the number of instruction memory stall cycles.
	FetchStalls uint64 `json:"fetch_stalls"`

	// PipelineFlushes is the number of pipeline flushes.
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// DataHazards is the number of cycles with a forwarded operand.
	DataHazards uint64 `json:"data_hazards"`

	// Branch predictor statistics.
	BranchPredictions     uint64  `json:"branch_predictions,omitempty"`
	BranchMispredictions  uint64  `json:"branch_mispredictions,omitempty"`
	BranchAccuracyPercent float64 `json:"branch_accuracy_percent,omitempty"`

	// WallTime is the host time taken to simulate.
	WallTime time.Duration `json:"wall_time_ns"`
}

// Run executes one benchmark on a fresh pipeline built with the given
// options and collects its timing results.
func Run(b Benchmark, opts ...pipeline.Option) BenchmarkResult {
	regFile := &emu.RegFile{}
	memory := emu.NewMemory()
	memory.LoadWords(0, b.Program)
	if b.Setup != nil {
		b.Setup(regFile, memory)
	}

	pipe := pipeline.NewPipeline(regFile, memory, opts...)

	start := time.Now()
	pipe.RunCycles(maxBenchmarkCycles)
	wallTime := time.Since(start)

	passed := pipe.Halted()
	for reg, want := range b.ExpectedRegs {
		if regFile.ReadReg(reg) != want {
			passed = false
		}
	}

	stats := pipe.Stats()
	predStats := pipe.Predictor().Stats()

	return BenchmarkResult{
		Name:                  b.Name,
		Description:           b.Description,
		Passed:                passed,
		SimulatedCycles:       stats.Cycles,
		InstructionsRetired:   stats.Instructions,
		CPI:                   stats.CPI(),
		LoadUseStalls:         stats.LoadUseStalls,
		MemStalls:             stats.MemStalls,
		FetchStalls:           stats.FetchStalls,
		PipelineFlushes:       stats.Flushes,
		DataHazards:           stats.DataHazards,
		BranchPredictions:     predStats.Predictions,
		BranchMispredictions:  predStats.Mispredictions,
		BranchAccuracyPercent: predStats.Accuracy(),
		WallTime:              wallTime,
	}
}

// RunAll executes every benchmark in the set with the same options.
func RunAll(set []Benchmark, opts ...pipeline.Option) []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(set))
	for _, b := range set {
		results = append(results, Run(b, opts...))
	}
	return results
}

// WriteReport writes the results as indented JSON.
func WriteReport(w io.Writer, results []BenchmarkResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encoding benchmark report: %w", err)
	}
	return nil
}

// SaveReport writes the results to a JSON file.
func SaveReport(path string, results []BenchmarkResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating benchmark report: %w", err)
	}
	defer func() { _ = f.Close() }()
	return WriteReport(f, results)
}
