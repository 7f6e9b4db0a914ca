// Command benchmark runs the VLDUSim load benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv     Output results in CSV format (default: human-readable)
//	-json    Output results in JSON format
//	-core    Run only the core benchmarks
//	-config  System configuration file (JSON or YAML)
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Compare an eight-lane unit in a spreadsheet
//	go run ./cmd/benchmark -config eight_lanes.yaml -csv > results.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/vldusim/benchmarks"
	"github.com/sarchlab/vldusim/timing/core"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	configPath := flag.String("config", "", "System configuration file (JSON or YAML)")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.Output = os.Stdout
	if *configPath != "" {
		system, err := core.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		config.System = system
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	if !*csvOutput && !*jsonOutput {
		fmt.Println("VLDUSim Load Benchmark Harness")
		fmt.Println("==============================")
		fmt.Printf("Lanes: %d\n", config.System.VLDU.Lanes)
		fmt.Printf("Bus:   %d bytes\n", config.System.VLDU.BusBytes)
		fmt.Println("")
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Println("Expected characteristics:")
		fmt.Println("- aligned_stream: close to one beat per cycle once memory latency is hidden")
		fmt.Println("- unaligned_stream: extra beat per load, split beats")
		fmt.Println("- short_loads: dominated by per-instruction commit latency")
		fmt.Println("- vrf_contention: VRF conflicts throttle the result queue")
		fmt.Println("- shallow_result_queue: router stalls on a full result queue")
	}

	for _, r := range results {
		if r.Err != "" || !r.Verified {
			os.Exit(1)
		}
	}
}
