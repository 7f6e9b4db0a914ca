package vldu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vldusim/timing/vldu"
)

var _ = Describe("ResultQueue", func() {
	var q *vldu.ResultQueue

	BeforeEach(func() {
		q = vldu.NewResultQueue(2, 4)
	})

	It("should mark every lane valid on push", func() {
		q.WriteSlot().Lanes[2].Data[0] = 0xAB
		q.Push()

		Expect(q.Count()).To(Equal(1))
		slot := q.ReadSlot()
		Expect(slot.Valid).To(Equal([]bool{true, true, true, true}))
		Expect(slot.Lanes[2].Data[0]).To(Equal(byte(0xAB)))
		Expect(slot.Pending()).To(BeTrue())
	})

	It("should bound occupancy by its depth", func() {
		q.Push()
		q.Push()
		Expect(q.Full()).To(BeTrue())
		Expect(func() { q.Push() }).To(Panic())
	})

	It("should refuse to pop a slot with ungranted lanes", func() {
		q.Push()
		Expect(func() { q.Pop() }).To(Panic())

		for lane := range q.ReadSlot().Valid {
			q.ReadSlot().Valid[lane] = false
		}
		q.Pop()
		Expect(q.Empty()).To(BeTrue())
		Expect(func() { q.Pop() }).To(Panic())
	})

	It("should wrap its pointers", func() {
		for i := 0; i < 5; i++ {
			q.WriteSlot().ID = i
			q.Push()
			Expect(q.ReadSlot().ID).To(Equal(i))
			for lane := range q.ReadSlot().Valid {
				q.ReadSlot().Valid[lane] = false
			}
			q.Pop()
		}
		Expect(q.Count()).To(Equal(0))
	})
})
