package core_test

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vldusim/timing/core"
	"github.com/sarchlab/vldusim/timing/shuffle"
	"github.com/sarchlab/vldusim/timing/vldu"
)

const memBase = 0x10000

func newSystem(config *core.Config) *core.System {
	sys, err := core.New(config, core.WithLogger(GinkgoLogr))
	Expect(err).NotTo(HaveOccurred())

	data := make([]byte, 0x4000)
	for i := range data {
		data[i] = byte(i*7 + i>>8)
	}
	Expect(sys.Memory().Write(memBase, data)).To(Succeed())
	return sys
}

// runChecked steps the system to completion, checking the result queue
// bound on every cycle.
func runChecked(sys *core.System, maxCycles int) {
	depth := sys.Unit().Config().ResultQueueDepth
	for i := 0; !sys.Done(); i++ {
		Expect(i).To(BeNumerically("<", maxCycles), "loads did not drain")
		Expect(sys.Tick()).To(Succeed())
		Expect(sys.Unit().ResultCount()).To(BeNumerically("<=", depth))
	}
}

// expectLoaded checks that the register file holds the load's memory image
// and that every byte of it was written exactly once.
func expectLoaded(sys *core.System, insn vldu.Instruction) {
	want, err := sys.Memory().Read(insn.BaseAddr, insn.Bytes())
	Expect(err).NotTo(HaveOccurred())

	got := sys.VRF().Gather(insn.VD, insn.VL, insn.EW)
	Expect(cmp.Diff(want, got)).To(BeEmpty(), "load %d", insn.ID)

	lanes := sys.Unit().Config().Lanes
	wordBytes := lanes * shuffle.BytesPerLane
	for i := 0; i < insn.Bytes(); i++ {
		phys := shuffle.Index(i%wordBytes, lanes, uint8(insn.EW))
		addr := insn.VD + uint64(i/wordBytes)
		Expect(sys.VRF().WriteCount(shuffle.Lane(phys), addr, shuffle.Offset(phys))).
			To(Equal(1), "load %d byte %d", insn.ID, i)
	}
}

func configFor(lanes, bus, resultDepth int) *core.Config {
	config := core.DefaultConfig()
	config.VLDU.Lanes = lanes
	config.VLDU.BusBytes = bus
	config.VLDU.ResultQueueDepth = resultDepth
	config.Harmonize()
	return config
}

var _ = Describe("System", func() {
	loads := []vldu.Instruction{
		{ID: 0, VD: 0, BaseAddr: memBase, VL: 64, EW: vldu.EW8},
		{ID: 1, VD: 32, BaseAddr: memBase + 0x106, VL: 37, EW: vldu.EW16},
		{ID: 2, VD: 64, BaseAddr: memBase + 0xff4, VL: 21, EW: vldu.EW32},
		{ID: 3, VD: 96, BaseAddr: memBase + 0x2001, VL: 3, EW: vldu.EW64},
		{ID: 4, VD: 128, BaseAddr: memBase + 0x3000, VL: 200, EW: vldu.EW8},
	}

	submitAll := func(sys *core.System) {
		for _, insn := range loads {
			sys.Submit(core.Load{Insn: insn})
		}
	}

	It("should reject disagreeing block configurations", func() {
		config := core.DefaultConfig()
		config.Memory.BusBytes = 64
		_, err := core.New(config)
		Expect(err).To(MatchError(ContainSubstring("bus widths disagree")))

		config = core.DefaultConfig()
		config.VRF.Lanes = 8
		Expect(config.Validate()).NotTo(Succeed())
	})

	DescribeTable("should place every byte exactly once",
		func(lanes, bus, resultDepth int) {
			sys := newSystem(configFor(lanes, bus, resultDepth))
			submitAll(sys)
			runChecked(sys, 20000)

			for _, insn := range loads {
				expectLoaded(sys, insn)
			}

			total := 0
			for _, insn := range loads {
				total += insn.Bytes()
			}
			stats := sys.Stats()
			Expect(stats.VRF.BytesWritten).To(Equal(uint64(total)))
			Expect(stats.Unit.Completed).To(Equal(uint64(len(loads))))
			Expect(stats.Unit.Aborted).To(BeZero())
		},
		Entry("one lane, narrow bus", 1, 8, 2),
		Entry("two lanes, wide bus", 2, 32, 2),
		Entry("four lanes", 4, 32, 2),
		Entry("four lanes, deep result queue", 4, 32, 4),
		Entry("four lanes, narrow bus", 4, 8, 1),
		Entry("eight lanes, wide bus", 8, 64, 2),
		Entry("sixteen lanes", 16, 64, 3),
	)

	It("should complete loads in dispatch order", func() {
		sys := newSystem(core.DefaultConfig())
		submitAll(sys)
		Expect(sys.Run(20000)).To(Succeed())

		completions := sys.Completions()
		Expect(completions).To(HaveLen(len(loads)))
		for i, c := range completions {
			Expect(c.ID).To(Equal(loads[i].ID))
			Expect(c.Aborted).To(BeFalse())
			if i > 0 {
				Expect(c.Cycle).To(BeNumerically(">", completions[i-1].Cycle))
			}
		}
	})

	It("should write only the enabled elements of a masked load", func() {
		sys := newSystem(core.DefaultConfig())
		insn := vldu.Instruction{ID: 5, VD: 8, BaseAddr: memBase + 0x40, VL: 50, EW: vldu.EW16, Masked: true}
		mask := make([]bool, insn.VL)
		for i := range mask {
			mask[i] = i%3 == 0
		}
		sys.Submit(core.Load{Insn: insn, Mask: mask})
		runChecked(sys, 5000)

		mem, err := sys.Memory().Read(insn.BaseAddr, insn.Bytes())
		Expect(err).NotTo(HaveOccurred())
		got := sys.VRF().Gather(insn.VD, insn.VL, insn.EW)
		for i := range got {
			if mask[i/2] {
				Expect(got[i]).To(Equal(mem[i]), "byte %d", i)
			} else {
				Expect(got[i]).To(BeZero(), "byte %d", i)
			}
		}
	})

	It("should abort a faulting load and carry on with the next", func() {
		sys := newSystem(core.DefaultConfig())
		first := vldu.Instruction{ID: 0, VD: 0, BaseAddr: memBase, VL: 16, EW: vldu.EW8}
		faulty := vldu.Instruction{ID: 1, VD: 16, BaseAddr: memBase + 0x100, VL: 2048, EW: vldu.EW8}
		last := vldu.Instruction{ID: 2, VD: 100, BaseAddr: memBase + 0x1000, VL: 40, EW: vldu.EW32}
		sys.Submit(core.Load{Insn: first}, core.Load{Insn: faulty}, core.Load{Insn: last})
		sys.InjectFault(1, 2)

		runChecked(sys, 20000)

		completions := sys.Completions()
		Expect(completions).To(HaveLen(3))
		Expect(completions[0].ID).To(Equal(0))
		Expect(completions[1].ID).To(Equal(1))
		Expect(completions[1].Aborted).To(BeTrue())
		Expect(completions[2].ID).To(Equal(2))
		Expect(completions[2].Aborted).To(BeFalse())

		expectLoaded(sys, first)
		expectLoaded(sys, last)

		stats := sys.Stats()
		Expect(stats.Unit.Aborted).To(Equal(uint64(1)))
		Expect(stats.VRF.BytesWritten).To(BeNumerically("<", uint64(first.Bytes()+faulty.Bytes()+last.Bytes())))
	})

	It("should time out when loads cannot drain", func() {
		sys := newSystem(core.DefaultConfig())
		submitAll(sys)

		err := sys.Run(10)
		Expect(errors.Is(err, core.ErrTimeout)).To(BeTrue())
		Expect(sys.Cycle()).To(Equal(uint64(10)))

		busy, err := sys.RunCycles(5)
		Expect(err).NotTo(HaveOccurred())
		Expect(busy).To(BeTrue())
		Expect(sys.Stats().Cycles).To(Equal(uint64(15)))
	})

	It("should report memory and burst activity", func() {
		sys := newSystem(core.DefaultConfig())
		submitAll(sys)
		Expect(sys.Run(20000)).To(Succeed())

		stats := sys.Stats()
		Expect(stats.Bursts).To(Equal(stats.Memory.Bursts))
		Expect(stats.Memory.Beats).To(Equal(stats.Unit.Beats))
		Expect(stats.Memory.Cache.Misses).To(BeNumerically(">", 0))
		Expect(stats.Unit.BeatsPerCycle()).To(BeNumerically(">", 0))
	})
})

var _ = Describe("Scenario", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should build and run a YAML scenario", func() {
		path := filepath.Join(dir, "scenario.yaml")
		Expect(os.WriteFile(path, []byte(`
config:
  vldu:
    lanes: 2
    bus_bytes: 16
memory:
  - addr: 0x2000
    size: 256
    seed: 5
loads:
  - {id: 0, vd: 0, base: 0x2000, vl: 64, eew: 8}
  - {id: 1, vd: 20, base: 0x2003, vl: 10, eew: 32, mask: [true, false, true, false, true, false, true, false, true, false]}
`), 0644)).To(Succeed())

		sc, err := core.LoadScenario(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(sc.Config.VLDU.Lanes).To(Equal(2))
		Expect(sc.Config.VRF.Lanes).To(Equal(2))
		Expect(sc.Config.Memory.BusBytes).To(Equal(16))
		Expect(sc.MaxCycles).To(Equal(uint64(1_000_000)))

		sys, err := sc.Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(sys.Run(sc.MaxCycles)).To(Succeed())
		Expect(sys.Completions()).To(HaveLen(2))

		got := sys.VRF().Gather(0, 64, vldu.EW8)
		for i, b := range got {
			Expect(b).To(Equal(byte(5 + i)))
		}
	})

	It("should load a JSON scenario with faults", func() {
		path := filepath.Join(dir, "scenario.json")
		Expect(os.WriteFile(path, []byte(`{
			"loads": [{"id": 3, "base": 4096, "vl": 1024, "eew": 8}],
			"faults": [{"id": 3, "after_bursts": 1}],
			"max_cycles": 5000
		}`), 0644)).To(Succeed())

		sc, err := core.LoadScenario(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(sc.Faults).To(Equal([]core.Fault{{ID: 3, AfterBursts: 1}}))

		sys, err := sc.Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(sys.Run(sc.MaxCycles)).To(Succeed())
		completions := sys.Completions()
		Expect(completions).To(HaveLen(1))
		Expect(completions[0].ID).To(Equal(3))
		Expect(completions[0].Aborted).To(BeTrue())
	})

	DescribeTable("should run the bundled scenarios",
		func(name string, aborted int) {
			sc, err := core.LoadScenario(filepath.Join("..", "..", "scenarios", name))
			Expect(err).NotTo(HaveOccurred())

			sys, err := sc.Build(core.WithLogger(GinkgoLogr))
			Expect(err).NotTo(HaveOccurred())
			Expect(sys.Run(sc.MaxCycles)).To(Succeed())

			Expect(sys.Completions()).To(HaveLen(len(sc.Loads)))
			Expect(sys.Stats().Unit.Aborted).To(Equal(uint64(aborted)))
		},
		Entry("unaligned", "unaligned.yaml", 0),
		Entry("fault", "fault.json", 1),
	)

	It("should reject unsupported element widths", func() {
		_, err := core.LoadSpec{ID: 1, VL: 4, EEW: 12}.Instruction()
		Expect(err).To(MatchError(ContainSubstring("unsupported eew")))

		_, err = core.LoadSpec{ID: 1, VL: 4, EEW: 8, Mask: []bool{true}}.Instruction()
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("should refuse loads the system cannot hold",
		func(load core.LoadSpec, msg string) {
			sc := &core.Scenario{Config: core.DefaultConfig(), Loads: []core.LoadSpec{load}}
			sc.Config.VRF.WordsPerLane = 16

			_, err := sc.Build()
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("negative id", core.LoadSpec{ID: -1, VL: 8, EEW: 8}, "id must be >= 0"),
		Entry("id beyond the id space", core.LoadSpec{ID: 8, VL: 8, EEW: 8}, "id outside [0, 8)"),
		Entry("destination past the last word", core.LoadSpec{ID: 0, VD: 16, VL: 8, EEW: 8}, "beyond the 16"),
		Entry("group running off the end", core.LoadSpec{ID: 0, VD: 14, VL: 96, EEW: 8}, "words [14, 17)"),
	)

	It("should accept a load ending on the last word", func() {
		sc := &core.Scenario{
			Config: core.DefaultConfig(),
			Loads:  []core.LoadSpec{{ID: 7, VD: 13, VL: 96, EEW: 8}},
		}
		sc.Config.VRF.WordsPerLane = 16

		_, err := sc.Build()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should report a missing scenario file", func() {
		_, err := core.LoadScenario(filepath.Join(dir, "none.yaml"))
		Expect(err).To(MatchError(ContainSubstring("failed to load scenario")))
	})
})
