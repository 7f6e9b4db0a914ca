package addrgen_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vldusim/timing/addrgen"
	"github.com/sarchlab/vldusim/timing/axi"
	"github.com/sarchlab/vldusim/timing/vldu"
)

// drain pops every burst the generator produces for the queued loads.
func drain(g *addrgen.Generator) []axi.AddrReq {
	var reqs []axi.AddrReq
	for i := 0; i < 1000 && !g.Idle(); i++ {
		out := g.Outputs()
		if out.Desc.Valid {
			reqs = append(reqs, out.Desc.Req)
		}
		g.Tick(addrgen.Inputs{DescReady: out.Desc.Valid, ARReady: out.ARValid})
	}
	Expect(g.Idle()).To(BeTrue())
	return reqs
}

var _ = Describe("Generator", func() {
	var (
		config addrgen.Config
		g      *addrgen.Generator
	)

	BeforeEach(func() {
		config = addrgen.DefaultConfig()
		g = addrgen.New(config, addrgen.WithLogger(GinkgoLogr))
	})

	It("should reject an invalid configuration", func() {
		config.MaxBurstBeats = 257
		Expect(config.Validate()).NotTo(Succeed())
		Expect(func() { addrgen.New(config) }).To(Panic())
	})

	It("should emit an aligned load as one burst", func() {
		g.Push(vldu.Instruction{ID: 1, BaseAddr: 0x2000, VL: 16, EW: vldu.EW64})
		reqs := drain(g)

		Expect(reqs).To(HaveLen(1))
		Expect(reqs[0].InsnID).To(Equal(1))
		Expect(reqs[0].Addr).To(Equal(uint64(0x2000)))
		Expect(reqs[0].Size).To(Equal(uint8(5)))
		Expect(reqs[0].Beats()).To(Equal(4))
		Expect(reqs[0].Burst).To(Equal(axi.BurstIncr))
		Expect(reqs[0].IsLoad).To(BeTrue())
		Expect(reqs[0].ID).NotTo(BeEmpty())
	})

	It("should cover an unaligned load with partial first and last beats", func() {
		g.Push(vldu.Instruction{ID: 0, BaseAddr: 0x1006, VL: 40, EW: vldu.EW8})
		reqs := drain(g)

		Expect(reqs).To(HaveLen(1))
		Expect(reqs[0].Beats()).To(Equal(2))
		Expect(axi.BurstBytes(reqs[0], 32)).To(Equal(58))
	})

	It("should split at the burst length limit", func() {
		g.Push(vldu.Instruction{ID: 0, VL: 1024, EW: vldu.EW8})
		reqs := drain(g)

		Expect(reqs).To(HaveLen(2))
		Expect(reqs[0].Beats()).To(Equal(16))
		Expect(reqs[1].Addr).To(Equal(uint64(512)))
	})

	It("should not cross a 4KiB boundary", func() {
		g.Push(vldu.Instruction{ID: 0, BaseAddr: 0xff0, VL: 64, EW: vldu.EW8})
		reqs := drain(g)

		Expect(reqs).To(HaveLen(2))
		Expect(reqs[0].Beats()).To(Equal(1))
		Expect(axi.BurstBytes(reqs[0], 32)).To(Equal(16))
		Expect(reqs[1].Addr).To(Equal(uint64(0x1000)))
		Expect(reqs[1].Beats()).To(Equal(2))
		for _, r := range reqs {
			last := r.BeatAddr(r.Beats()-1)/32*32 + 31
			Expect(last / axi.BoundaryBytes).To(Equal(r.Addr / axi.BoundaryBytes))
		}
	})

	It("should keep loads in order and their bytes contiguous", func() {
		g.Push(vldu.Instruction{ID: 0, BaseAddr: 0x100, VL: 24, EW: vldu.EW32})
		g.Push(vldu.Instruction{ID: 1, BaseAddr: 0x7f8, VL: 300, EW: vldu.EW16})
		reqs := drain(g)

		total := map[int]int{}
		prev := 0
		for _, r := range reqs {
			Expect(r.InsnID).To(BeNumerically(">=", prev))
			prev = r.InsnID
			total[r.InsnID] += axi.BurstBytes(r, 32)
		}
		Expect(total[0]).To(Equal(96))
		Expect(total[1]).To(BeNumerically(">=", 600))
	})

	It("should bound the queued bursts", func() {
		g.Push(vldu.Instruction{ID: 0, VL: 4096, EW: vldu.EW8})
		for i := 0; i < 10; i++ {
			g.Tick(addrgen.Inputs{})
		}
		Expect(g.Bursts()).To(Equal(uint64(config.MaxOutstanding)))
	})

	It("should panic when popping an empty descriptor queue", func() {
		Expect(func() { g.Tick(addrgen.Inputs{DescReady: true}) }).To(Panic())
	})

	Describe("fault injection", func() {
		BeforeEach(func() {
			config.MaxBurstBeats = 2
			g = addrgen.New(config)
			g.Push(vldu.Instruction{ID: 3, VL: 256, EW: vldu.EW8})
			g.Push(vldu.Instruction{ID: 4, BaseAddr: 0x400, VL: 32, EW: vldu.EW8})
			g.InjectFault(3, 1)
		})

		It("should raise the exception once the faulting load's bursts drained", func() {
			g.Tick(addrgen.Inputs{})
			g.Tick(addrgen.Inputs{})
			Expect(g.Bursts()).To(Equal(uint64(1)))

			out := g.Outputs()
			Expect(out.Desc.Valid).To(BeTrue())
			Expect(out.Exception).To(BeFalse())

			g.Tick(addrgen.Inputs{DescReady: true, ARReady: true})
			out = g.Outputs()
			Expect(out.Exception).To(BeTrue())
			Expect(out.ExceptionID).To(Equal(3))
			Expect(out.Desc.Valid).To(BeFalse())

			g.Tick(addrgen.Inputs{Done: 1 << 3})
			out = g.Outputs()
			Expect(out.Exception).To(BeFalse())
			Expect(out.Desc.Valid).To(BeTrue())
			Expect(out.Desc.Req.InsnID).To(Equal(4))
		})
	})
})
