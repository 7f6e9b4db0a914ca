// Package benchmarks provides load traffic benchmarks for the vector load
// unit model.
package benchmarks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/vldusim/timing/core"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// Loads is the number of completed vector loads
	Loads uint64 `json:"loads"`

	// Aborted is the number of loads ended by an exception
	Aborted uint64 `json:"aborted"`

	// BytesLoaded is the number of bytes written into the register file
	BytesLoaded uint64 `json:"bytes_loaded"`

	// BytesPerCycle is the achieved load bandwidth
	BytesPerCycle float64 `json:"bytes_per_cycle"`

	// BeatsPerCycle is the read-data bus utilization
	BeatsPerCycle float64 `json:"beats_per_cycle"`

	Bursts uint64 `json:"bursts"`

	// Router stall cycles, by cause
	StallNoInsn      uint64 `json:"stall_no_insn"`
	StallNoAddr      uint64 `json:"stall_no_addr"`
	StallResultFull  uint64 `json:"stall_result_full"`
	StallMaskPending uint64 `json:"stall_mask_pending"`

	// DispatchStalls counts cycles the dispatcher waited on a full queue
	DispatchStalls uint64 `json:"dispatch_stalls"`

	// VRFConflicts counts lane requests the register file did not grant
	VRFConflicts uint64 `json:"vrf_conflicts"`

	CacheHits   uint64 `json:"cache_hits,omitempty"`
	CacheMisses uint64 `json:"cache_misses,omitempty"`

	// Verified is set when every completed, unmasked load read back
	// exactly its memory image from the register file
	Verified bool `json:"verified"`

	// Err holds the simulation error, if any
	Err string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// MemRegion is a memory range preloaded before a benchmark runs.
type MemRegion struct {
	Addr uint64
	Size int
}

// Benchmark defines a single load workload.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Configure adjusts the system configuration for the benchmark
	Configure func(config *core.Config)

	// Memory lists the regions to fill with a byte pattern
	Memory []MemRegion

	// Loads are dispatched in order
	Loads []core.Load

	// Faults are injected into the address generator
	Faults []core.Fault
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// System is the configuration every benchmark starts from
	System *core.Config

	// MaxCycles bounds each benchmark run
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives simulation logs
	Logger logr.Logger

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		System:    core.DefaultConfig(),
		MaxCycles: 1_000_000,
		Output:    os.Stdout,
		Logger:    logr.Discard(),
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.System == nil {
		config.System = core.DefaultConfig()
	}
	if config.Logger.GetSink() == nil {
		config.Logger = logr.Discard()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		results = append(results, result)
	}

	return results
}

// FillByte is the pattern written at address addr of a benchmark region.
func FillByte(addr uint64) byte {
	return byte(addr*13 + addr>>9)
}

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	config := *h.config.System
	if bench.Configure != nil {
		bench.Configure(&config)
	}
	config.Harmonize()
	loads := placeRegisters(&config, bench.Loads)

	sys, err := core.New(&config, core.WithLogger(h.config.Logger.WithName(bench.Name)))
	if err != nil {
		result.Err = err.Error()
		return result
	}

	for _, region := range bench.Memory {
		data := make([]byte, region.Size)
		for i := range data {
			data[i] = FillByte(region.Addr + uint64(i))
		}
		if err := sys.Memory().Write(region.Addr, data); err != nil {
			result.Err = err.Error()
			return result
		}
	}

	sys.Submit(loads...)
	for _, f := range bench.Faults {
		sys.InjectFault(f.ID, f.AfterBursts)
	}

	start := time.Now()
	err = sys.Run(h.config.MaxCycles)
	result.WallTime = time.Since(start)
	if err != nil {
		result.Err = err.Error()
	}

	stats := sys.Stats()
	result.SimulatedCycles = stats.Cycles
	result.Loads = stats.Unit.Completed
	result.Aborted = stats.Unit.Aborted
	result.BytesLoaded = stats.VRF.BytesWritten
	result.BeatsPerCycle = stats.Unit.BeatsPerCycle()
	if stats.Cycles > 0 {
		result.BytesPerCycle = float64(stats.VRF.BytesWritten) / float64(stats.Cycles)
	}
	result.Bursts = stats.Bursts
	result.StallNoInsn = stats.Unit.StallNoInsn
	result.StallNoAddr = stats.Unit.StallNoAddr
	result.StallResultFull = stats.Unit.StallResultFull
	result.StallMaskPending = stats.Unit.StallMaskPending
	result.DispatchStalls = stats.Unit.DispatchStalls
	result.VRFConflicts = stats.VRF.Conflicts
	result.CacheHits = stats.Memory.Cache.Hits
	result.CacheMisses = stats.Memory.Cache.Misses
	result.Verified = err == nil && verify(sys, loads)

	return result
}

// placeRegisters gives every load its own destination register group, packed
// one after the other in words of the configured load unit. The register file
// is enlarged when the groups do not fit.
func placeRegisters(config *core.Config, loads []core.Load) []core.Load {
	wordBytes := config.VLDU.WordBytes()
	if wordBytes <= 0 {
		return loads
	}
	placed := make([]core.Load, len(loads))

	var vd uint64
	for i, load := range loads {
		load.Insn.VD = vd
		vd += uint64((load.Insn.Bytes() + wordBytes - 1) / wordBytes)
		placed[i] = load
	}

	if int(vd) > config.VRF.WordsPerLane {
		config.VRF.WordsPerLane = int(vd)
	}
	return placed
}

// verify compares the register file image of every completed, unmasked
// load with memory.
func verify(sys *core.System, loads []core.Load) bool {
	aborted := map[int]bool{}
	for _, c := range sys.Completions() {
		aborted[c.ID] = c.Aborted
	}

	for _, load := range loads {
		insn := load.Insn
		if insn.Masked || aborted[insn.ID] {
			continue
		}

		want, err := sys.Memory().Read(insn.BaseAddr, insn.Bytes())
		if err != nil {
			return false
		}
		if !bytes.Equal(want, sys.VRF().Gather(insn.VD, insn.VL, insn.EW)) {
			return false
		}
	}
	return true
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== VLDUSim Load Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		if r.Err != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Err)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Verified: %v\n", r.Verified)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:  %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Loads:             %d\n", r.Loads)
		if r.Aborted > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Aborted:           %d\n", r.Aborted)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Bytes Loaded:      %d\n", r.BytesLoaded)
		_, _ = fmt.Fprintf(h.config.Output, "  Bytes/Cycle:       %.3f\n", r.BytesPerCycle)
		_, _ = fmt.Fprintf(h.config.Output, "  Beats/Cycle:       %.3f\n", r.BeatsPerCycle)
		_, _ = fmt.Fprintf(h.config.Output, "  Bursts:            %d\n", r.Bursts)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Stalls ---")
		_, _ = fmt.Fprintf(h.config.Output, "  No Instruction:    %d\n", r.StallNoInsn)
		_, _ = fmt.Fprintf(h.config.Output, "  No Address:        %d\n", r.StallNoAddr)
		_, _ = fmt.Fprintf(h.config.Output, "  Result Queue Full: %d\n", r.StallResultFull)
		_, _ = fmt.Fprintf(h.config.Output, "  Mask Pending:      %d\n", r.StallMaskPending)
		_, _ = fmt.Fprintf(h.config.Output, "  Dispatch:          %d\n", r.DispatchStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  VRF Conflicts:     %d\n", r.VRFConflicts)

		if r.CacheHits > 0 || r.CacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.CacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.CacheMisses)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,loads,aborted,bytes,bytes_per_cycle,beats_per_cycle,bursts,stall_no_insn,stall_no_addr,stall_result_full,stall_mask,dispatch_stalls,vrf_conflicts,cache_hits,cache_misses,verified")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%.3f,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%d,%v\n",
			r.Name,
			r.SimulatedCycles,
			r.Loads,
			r.Aborted,
			r.BytesLoaded,
			r.BytesPerCycle,
			r.BeatsPerCycle,
			r.Bursts,
			r.StallNoInsn,
			r.StallNoAddr,
			r.StallResultFull,
			r.StallMaskPending,
			r.DispatchStalls,
			r.VRFConflicts,
			r.CacheHits,
			r.CacheMisses,
			r.Verified,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Config is the base system configuration
	Config *core.Config `json:"config"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalBytes is the sum of all bytes loaded
	TotalBytes uint64 `json:"total_bytes"`

	// AverageBytesPerCycle is the aggregate load bandwidth
	AverageBytesPerCycle float64 `json:"average_bytes_per_cycle"`

	// Failed counts benchmarks that errored or did not verify
	Failed int `json:"failed"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalBytes += r.BytesLoaded
		summary.TotalWallTime += r.WallTime
		if r.Err != "" || !r.Verified {
			summary.Failed++
		}
	}
	if summary.TotalCycles > 0 {
		summary.AverageBytesPerCycle = float64(summary.TotalBytes) / float64(summary.TotalCycles)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Config:    h.config.System,
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
