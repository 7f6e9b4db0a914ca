// Package main provides the entry point for VLDUSim.
// VLDUSim is a cycle-accurate vector load unit model built on Akita.
//
// For the full CLI, use: go run ./cmd/vldusim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("VLDUSim - Vector Load Unit Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: vldusim [options] <scenario.yaml>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config      Path to a system configuration file (JSON or YAML)")
	fmt.Println("  -v           Log verbosity (1: loads, 2: bursts and beats)")
	fmt.Println("  -max-cycles  Cycle limit")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/vldusim' for the full CLI and")
	fmt.Println("'go run ./cmd/benchmark' for the load benchmarks.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/vldusim' instead.")
	}
}
