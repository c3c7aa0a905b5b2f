// Package main provides the entry point for pqr5sim.
// pqr5sim is a cycle-accurate PQR5 RV32I CPU core simulator built on Akita
// cache components.
//
// For the full CLI, use: go run ./cmd/pqr5sim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("pqr5sim - PQR5 RV32I CPU Core Simulator")
	fmt.Println("")
	fmt.Println("Usage: pqr5sim [options] <program.elf|program.bin>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config     Path to timing configuration JSON file")
	fmt.Println("  -cycles     Cycle limit (0 = run until halt)")
	fmt.Println("  -predictor  Override branch predictor: none, static, gshare")
	fmt.Println("  -caches     Model L1 instruction and data caches")
	fmt.Println("  -dump       Dump architectural state after the run")
	fmt.Println("  -v          Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/pqr5sim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/pqr5sim' instead.")
	}
}
