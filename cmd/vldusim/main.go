// Package main provides the entry point for VLDUSim.
// VLDUSim is a cycle-accurate model of a vector load unit.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/xyproto/env/v2"

	"github.com/sarchlab/vldusim/timing/core"
)

var (
	configPath = flag.String("config", env.Str("VLDUSIM_CONFIG"),
		"Path to a system configuration file overriding the scenario's (JSON or YAML)")
	verbosity = flag.Int("v", env.Int("VLDUSIM_VERBOSITY", 0),
		"Log verbosity: 1 logs load lifecycle, 2 logs every burst and beat")
	maxCycles = flag.Uint64("max-cycles", cycleLimit(env.Int("VLDUSIM_MAX_CYCLES", 0)),
		"Cycle limit (0 = the scenario's)")
	freqGHz    = flag.Float64("freq", 1.0, "Clock frequency in GHz for reporting simulated time")
	cpuProfile = flag.String("cpuprofile", "", "Write a CPU profile to file")
)

// cycleLimit turns a configured cycle count into a limit. Negative counts
// fall back to the scenario's limit.
func cycleLimit(n int) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: vldusim [options] <scenario.yaml|scenario.json>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	os.Exit(profiled(flag.Arg(0)))
}

// profiled runs the scenario, under the CPU profiler when requested.
func profiled(scenarioPath string) int {
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	return run(scenarioPath)
}

func newLogger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: *verbosity})
}

func run(scenarioPath string) int {
	sc, err := core.LoadScenario(scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading scenario: %v\n", err)
		return 1
	}

	if *configPath != "" {
		sc.Config, err = core.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			return 1
		}
	}
	if *maxCycles != 0 {
		sc.MaxCycles = *maxCycles
	}

	sys, err := sc.Build(core.WithLogger(newLogger()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building system: %v\n", err)
		return 1
	}

	status := 0
	if err := sys.Run(sc.MaxCycles); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		status = 1
		if errors.Is(err, core.ErrTimeout) {
			status = 2
		}
	}

	printReport(scenarioPath, sys)
	return status
}

func percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return 100.0 * float64(part) / float64(total)
}

func printReport(scenarioPath string, sys *core.System) {
	stats := sys.Stats()
	unit := stats.Unit
	freq := sim.Freq(*freqGHz) * sim.GHz

	fmt.Printf("\n")
	fmt.Printf("Scenario: %s\n", scenarioPath)
	fmt.Printf("Total Cycles: %d (%.3f us at %.2f GHz)\n",
		stats.Cycles, float64(stats.Cycles)/float64(freq)*1e6, *freqGHz)
	fmt.Printf("Loads: %d completed, %d aborted\n", unit.Completed, unit.Aborted)
	fmt.Printf("Bytes Written: %d (%.2f bytes/cycle)\n",
		stats.VRF.BytesWritten, float64(stats.VRF.BytesWritten)/float64(max(stats.Cycles, 1)))
	fmt.Printf("Beats: %d (%.2f beats/cycle), Bursts: %d\n",
		unit.Beats, unit.BeatsPerCycle(), stats.Bursts)
	fmt.Printf("Words: %d produced, %d committed\n", unit.WordsProduced, unit.WordsCommitted)
	fmt.Printf("\n")
	fmt.Printf("Router stalls:\n")
	fmt.Printf("  No instruction:    %6d cycles (%5.1f%%)\n",
		unit.StallNoInsn, percent(unit.StallNoInsn, stats.Cycles))
	fmt.Printf("  No address:        %6d cycles (%5.1f%%)\n",
		unit.StallNoAddr, percent(unit.StallNoAddr, stats.Cycles))
	fmt.Printf("  Result queue full: %6d cycles (%5.1f%%)\n",
		unit.StallResultFull, percent(unit.StallResultFull, stats.Cycles))
	fmt.Printf("  Mask pending:      %6d cycles (%5.1f%%)\n",
		unit.StallMaskPending, percent(unit.StallMaskPending, stats.Cycles))
	fmt.Printf("Dispatch stalls: %d\n", unit.DispatchStalls)
	fmt.Printf("\n")
	fmt.Printf("Memory:\n")
	fmt.Printf("  Cache: %d hits, %d misses (%.1f%% hit rate)\n",
		stats.Memory.Cache.Hits, stats.Memory.Cache.Misses, 100*stats.Memory.Cache.HitRate())
	fmt.Printf("  R-channel stalls: %d\n", stats.Memory.ChannelStalls)
	fmt.Printf("VRF:\n")
	fmt.Printf("  Writes: %d, Conflicts: %d\n", stats.VRF.Writes, stats.VRF.Conflicts)
	fmt.Printf("\n")
	fmt.Printf("Completions:\n")
	for _, c := range sys.Completions() {
		tag := ""
		if c.Aborted {
			tag = " (aborted)"
		}
		fmt.Printf("  load %2d at cycle %d%s\n", c.ID, c.Cycle, tag)
	}
}
