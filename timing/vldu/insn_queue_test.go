package vldu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vldusim/timing/vldu"
)

var _ = Describe("InstructionQueue", func() {
	var q *vldu.InstructionQueue

	BeforeEach(func() {
		q = vldu.NewInstructionQueue(4)
	})

	It("should start empty", func() {
		Expect(q.Depth()).To(Equal(4))
		Expect(q.Full()).To(BeFalse())
		_, ok := q.CurrentIssuing()
		Expect(ok).To(BeFalse())
		_, ok = q.CurrentCommitting()
		Expect(ok).To(BeFalse())
	})

	It("should reject the fifth instruction until one commits", func() {
		for id := 0; id < 4; id++ {
			Expect(q.TryAccept(vldu.Instruction{ID: id, VL: 1})).To(BeTrue())
		}
		Expect(q.Full()).To(BeTrue())
		Expect(q.TryAccept(vldu.Instruction{ID: 4, VL: 1})).To(BeFalse())

		// Finishing issue does not free the entry.
		q.AdvanceIssue()
		Expect(q.TryAccept(vldu.Instruction{ID: 4, VL: 1})).To(BeFalse())

		q.AdvanceCommit()
		Expect(q.TryAccept(vldu.Instruction{ID: 4, VL: 1})).To(BeTrue())
	})

	It("should issue and commit in acceptance order across wrap-around", func() {
		next := 0
		for round := 0; round < 3; round++ {
			for i := 0; i < 3; i++ {
				Expect(q.TryAccept(vldu.Instruction{ID: next, VL: 1})).To(BeTrue())
				next++
			}
			for i := 0; i < 3; i++ {
				insn, ok := q.CurrentIssuing()
				Expect(ok).To(BeTrue())
				committing, _ := q.CurrentCommitting()
				Expect(committing.ID).To(Equal(insn.ID))
				q.AdvanceIssue()
				q.AdvanceCommit()
			}
		}
		Expect(q.IssueCount()).To(Equal(0))
		Expect(q.CommitCount()).To(Equal(0))
	})

	It("should let issue run ahead of commit", func() {
		q.TryAccept(vldu.Instruction{ID: 1, VL: 1})
		q.TryAccept(vldu.Instruction{ID: 2, VL: 1})
		q.AdvanceIssue()

		issuing, _ := q.CurrentIssuing()
		committing, _ := q.CurrentCommitting()
		Expect(issuing.ID).To(Equal(2))
		Expect(committing.ID).To(Equal(1))
		Expect(q.IssueCount()).To(Equal(1))
		Expect(q.CommitCount()).To(Equal(2))
	})

	It("should panic when advancing an empty phase", func() {
		Expect(func() { q.AdvanceIssue() }).To(Panic())
		Expect(func() { q.AdvanceCommit() }).To(Panic())
	})

	It("should panic when commit overtakes issue", func() {
		q.TryAccept(vldu.Instruction{ID: 1, VL: 1})
		Expect(func() { q.AdvanceCommit() }).To(Panic())
	})
})
