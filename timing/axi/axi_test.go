package axi_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vldusim/timing/axi"
)

var _ = Describe("AXI", func() {
	Describe("BeatRange", func() {
		It("should cover the whole bus for aligned full-width beats", func() {
			req := axi.AddrReq{Addr: 0x1000, Size: 5, Len: 3, Burst: axi.BurstIncr}
			for beat := 0; beat < 4; beat++ {
				lower, upper := axi.BeatRange(req, beat, 32)
				Expect(lower).To(Equal(0))
				Expect(upper).To(Equal(31))
			}
		})

		It("should skip leading bytes of an unaligned first beat", func() {
			req := axi.AddrReq{Addr: 0x1006, Size: 5, Len: 1, Burst: axi.BurstIncr}

			lower, upper := axi.BeatRange(req, 0, 32)
			Expect(lower).To(Equal(6))
			Expect(upper).To(Equal(31))

			lower, upper = axi.BeatRange(req, 1, 32)
			Expect(lower).To(Equal(0))
			Expect(upper).To(Equal(31))
		})

		It("should move narrow beats across the bus", func() {
			req := axi.AddrReq{Addr: 0x100, Size: 2, Len: 3, Burst: axi.BurstIncr}
			expected := [][2]int{{0, 3}, {4, 7}, {8, 11}, {12, 15}}
			for beat, want := range expected {
				lower, upper := axi.BeatRange(req, beat, 16)
				Expect([2]int{lower, upper}).To(Equal(want))
			}
		})

		It("should repeat the same lanes for fixed bursts", func() {
			req := axi.AddrReq{Addr: 0x104, Size: 2, Len: 2, Burst: axi.BurstFixed}
			for beat := 0; beat < 3; beat++ {
				lower, upper := axi.BeatRange(req, beat, 16)
				Expect(lower).To(Equal(4))
				Expect(upper).To(Equal(7))
			}
		})

		It("should panic for beats wider than the bus", func() {
			req := axi.AddrReq{Addr: 0, Size: 6}
			Expect(func() { axi.BeatRange(req, 0, 32) }).To(Panic())
		})

		It("should panic for beats outside the burst", func() {
			req := axi.AddrReq{Addr: 0, Size: 3, Len: 1}
			Expect(func() { axi.BeatRange(req, 2, 32) }).To(Panic())
		})
	})

	It("should count the valid bytes of a burst", func() {
		req := axi.AddrReq{Addr: 0x1006, Size: 5, Len: 1, Burst: axi.BurstIncr}
		Expect(axi.BurstBytes(req, 32)).To(Equal(26 + 32))
	})

	It("should format a request", func() {
		req := axi.AddrReq{InsnID: 2, Addr: 0x40, Size: 5, Len: 1, Burst: axi.BurstIncr}
		Expect(req.String()).To(Equal("AR{insn=2 addr=0x40 size=5 len=1 INCR}"))
	})
})
