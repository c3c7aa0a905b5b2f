// Package main sweeps the microbenchmark suite across every branch
// predictor and reports the cycle counts side by side. Exits non-zero if
// any benchmark produces wrong architectural results.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/pqr5sim/benchmarks"
	"github.com/sarchlab/pqr5sim/timing/pipeline"
)

var reportPrefix = flag.String("o", "",
	"prefix for per-predictor JSON reports (empty disables)")

var predictors = []struct {
	name string
	kind pipeline.PredictorKind
}{
	{"none", pipeline.PredictorNone},
	{"static", pipeline.PredictorStatic},
	{"gshare", pipeline.PredictorGshare},
}

func main() {
	flag.Parse()

	set := benchmarks.GetMicrobenchmarks()
	allPassed := true

	for _, p := range predictors {
		fmt.Printf("=== predictor: %s ===\n", p.name)
		fmt.Printf("%-24s %10s %8s %8s %8s\n",
			"benchmark", "cycles", "cpi", "flushes", "acc%")

		results := benchmarks.RunAll(set,
			pipeline.WithBranchPredictor(pipeline.BranchPredictorConfig{
				Kind:     p.kind,
				BHTSize:  256,
				GHRWidth: 8,
			}))

		for _, r := range results {
			status := ""
			if !r.Passed {
				status = "  FAILED"
				allPassed = false
			}
			fmt.Printf("%-24s %10d %8.2f %8d %8.1f%s\n",
				r.Name, r.SimulatedCycles, r.CPI,
				r.PipelineFlushes, r.BranchAccuracyPercent, status)
		}
		fmt.Println()

		if *reportPrefix != "" {
			path := fmt.Sprintf("%s_%s.json", *reportPrefix, p.name)
			if err := benchmarks.SaveReport(path, results); err != nil {
				fmt.Fprintf(os.Stderr, "save report: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("report written to %s\n\n", path)
		}
	}

	if !allPassed {
		fmt.Println("some benchmarks produced wrong architectural results")
		os.Exit(1)
	}
	fmt.Println("all benchmarks passed under every predictor")
}
