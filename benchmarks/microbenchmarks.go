package benchmarks

import (
	"github.com/sarchlab/vldusim/timing/core"
	"github.com/sarchlab/vldusim/timing/vldu"
)

// dataBase is where benchmark data lives in memory.
const dataBase = 0x10000

// GetMicrobenchmarks returns the standard set of load microbenchmarks. Each
// benchmark stresses one part of the load path.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		alignedStream(),
		unalignedStream(),
		wideElements(),
		shortLoads(),
		boundaryCrossing(),
		maskedSparse(),
		vrfContention(),
		slowWriteback(),
		shallowResultQueue(),
		faultingLoad(),
	}
}

// GetCoreBenchmarks returns a minimal set of benchmarks for quick
// validation: peak streaming, misaligned data and register file pressure.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		alignedStream(),
		unalignedStream(),
		vrfContention(),
	}
}

func region(size int) []MemRegion {
	return []MemRegion{{Addr: dataBase, Size: size}}
}

// stream builds n back-to-back loads of vl elements, each starting stride
// bytes after the previous one. Destination registers are placed by the
// harness once the system geometry is known.
func stream(n, vl int, ew vldu.ElementWidth, offset, stride uint64) []core.Load {
	loads := make([]core.Load, n)
	for i := range loads {
		loads[i] = core.Load{Insn: vldu.Instruction{
			ID:       i % 8,
			BaseAddr: dataBase + offset + uint64(i)*stride,
			VL:       vl,
			EW:       ew,
		}}
	}
	return loads
}

// 1. Aligned Stream - peak bandwidth with bus-aligned data
func alignedStream() Benchmark {
	return Benchmark{
		Name:        "aligned_stream",
		Description: "8 x 256-byte e8 loads from aligned addresses - measures peak bandwidth",
		Memory:      region(0x1000),
		Loads:       stream(8, 256, vldu.EW8, 0, 256),
	}
}

// 2. Unaligned Stream - every beat straddles two register-file words
func unalignedStream() Benchmark {
	return Benchmark{
		Name:        "unaligned_stream",
		Description: "8 x 256-byte e8 loads offset by 5 bytes - measures split beat cost",
		Memory:      region(0x1000),
		Loads:       stream(8, 256, vldu.EW8, 5, 256),
	}
}

// 3. Wide Elements - 64-bit elements shuffle whole lane slices
func wideElements() Benchmark {
	return Benchmark{
		Name:        "wide_elements",
		Description: "8 x 32-element e64 loads - measures shuffling of wide elements",
		Memory:      region(0x1000),
		Loads:       stream(8, 32, vldu.EW64, 0, 256),
	}
}

// 4. Short Loads - instruction queue and commit overhead dominate
func shortLoads() Benchmark {
	return Benchmark{
		Name:        "short_loads",
		Description: "32 x 12-byte e32 loads - measures per-instruction overhead",
		Memory:      region(0x1000),
		Loads:       stream(32, 3, vldu.EW32, 0, 64),
	}
}

// 5. Boundary Crossing - bursts split at 4KiB pages
func boundaryCrossing() Benchmark {
	return Benchmark{
		Name:        "boundary_crossing",
		Description: "4 x 512-byte e16 loads straddling 4KiB boundaries - measures burst splitting",
		Memory:      region(0x5000),
		Loads:       stream(4, 256, vldu.EW16, 0xf00, 0x1000),
	}
}

// 6. Masked Sparse - mask words gate the router
func maskedSparse() Benchmark {
	loads := stream(4, 128, vldu.EW16, 0, 256)
	for i := range loads {
		loads[i].Insn.Masked = true
		loads[i].Mask = make([]bool, loads[i].Insn.VL)
		for e := range loads[i].Mask {
			loads[i].Mask[e] = e%4 == 0
		}
	}

	return Benchmark{
		Name:        "masked_sparse",
		Description: "4 x 128-element e16 loads with 1-in-4 mask - measures masked loads",
		Memory:      region(0x1000),
		Loads:       loads,
	}
}

// 7. VRF Contention - banks accept a write every other cycle
func vrfContention() Benchmark {
	return Benchmark{
		Name:        "vrf_contention",
		Description: "aligned stream with VRF banks granting every 2 cycles - measures write backpressure",
		Configure: func(config *core.Config) {
			config.VRF.GrantInterval = 2
		},
		Memory: region(0x1000),
		Loads:  stream(8, 256, vldu.EW8, 0, 256),
	}
}

// 8. Slow Writeback - final grants arrive late
func slowWriteback() Benchmark {
	return Benchmark{
		Name:        "slow_writeback",
		Description: "short loads with 6-cycle VRF write latency - measures final grant wait",
		Configure: func(config *core.Config) {
			config.VRF.WriteLatency = 6
		},
		Memory: region(0x1000),
		Loads:  stream(16, 8, vldu.EW32, 0, 64),
	}
}

// 9. Shallow Result Queue - a single result slot
func shallowResultQueue() Benchmark {
	return Benchmark{
		Name:        "shallow_result_queue",
		Description: "aligned stream with a 1-deep result queue - measures router/writer decoupling",
		Configure: func(config *core.Config) {
			config.VLDU.ResultQueueDepth = 1
		},
		Memory: region(0x1000),
		Loads:  stream(8, 256, vldu.EW8, 0, 256),
	}
}

// 10. Faulting Load - an address generation exception mid-stream
func faultingLoad() Benchmark {
	return Benchmark{
		Name:        "faulting_load",
		Description: "4 x 1KiB loads, the second faulting after one burst - measures abort recovery",
		Memory:      region(0x1000),
		Loads:       stream(4, 1024, vldu.EW8, 0, 1024),
		Faults:      []core.Fault{{ID: 1, AfterBursts: 1}},
	}
}
