package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pqr5sim/timing/pipeline"
)

var _ = Describe("ReturnAddressStack", func() {
	var ras *pipeline.ReturnAddressStack

	BeforeEach(func() {
		ras = pipeline.NewReturnAddressStack(4)
	})

	Describe("Push / Pop", func() {
		It("should pop in LIFO order", func() {
			ras.Push(0x100)
			ras.Push(0x200)
			ras.Push(0x300)

			addr, ok := ras.Pop()
			Expect(ok).To(BeTrue())
			Expect(addr).To(Equal(uint32(0x300)))

			addr, _ = ras.Pop()
			Expect(addr).To(Equal(uint32(0x200)))
			addr, _ = ras.Pop()
			Expect(addr).To(Equal(uint32(0x100)))
			Expect(ras.Empty()).To(BeTrue())
		})

		It("should report false on an empty stack", func() {
			_, ok := ras.Pop()
			Expect(ok).To(BeFalse())
			Expect(ras.Stats().EmptyReturns).To(Equal(uint64(1)))
		})

		It("should overwrite the oldest entry when full", func() {
			ras.Push(0x100)
			ras.BeginCycle()
			ras.CallResolved()
			ras.Push(0x200)
			ras.BeginCycle()
			ras.CallResolved()
			ras.Push(0x300)
			ras.BeginCycle()
			ras.CallResolved()
			ras.Push(0x400)
			ras.BeginCycle()
			ras.CallResolved()
			ras.Push(0x500) // displaces 0x100

			Expect(ras.Stats().Overwrites).To(Equal(uint64(1)))

			addr, _ := ras.Pop()
			Expect(addr).To(Equal(uint32(0x500)))
			ras.Pop()
			ras.Pop()
			addr, _ = ras.Pop()
			Expect(addr).To(Equal(uint32(0x200)))

			// The displaced entry is gone: the next pop wraps onto
			// stale storage.
			Expect(ras.Empty()).To(BeTrue())
		})
	})

	Describe("Snapshot / Restore", func() {
		It("should undo speculative pushes", func() {
			ras.Push(0x100)
			snap := ras.Snapshot()

			ras.Push(0x200) // wrong path
			ras.Restore(snap)

			addr, ok := ras.Pop()
			Expect(ok).To(BeTrue())
			Expect(addr).To(Equal(uint32(0x100)))
			Expect(ras.Stats().Rollbacks).To(Equal(uint64(1)))
		})

		It("should undo speculative pops", func() {
			ras.Push(0x100)
			ras.Push(0x200)
			snap := ras.Snapshot()

			ras.Pop() // wrong path
			ras.Restore(snap)

			addr, _ := ras.Pop()
			Expect(addr).To(Equal(uint32(0x200)))
		})

		It("should restore the full flag across a wrap", func() {
			for i := 0; i < 4; i++ {
				ras.BeginCycle()
				ras.Push(uint32(0x100 * (i + 1)))
				ras.CallResolved()
			}
			snap := ras.Snapshot()

			ras.Pop()
			ras.Restore(snap)

			addr, _ := ras.Pop()
			Expect(addr).To(Equal(uint32(0x400)))
		})
	})

	Describe("speculation limits", func() {
		It("should resync when too many calls overlap unresolved", func() {
			ras.Push(0x100)
			ras.Push(0x200)
			snapBefore := ras.Snapshot()
			Expect(snapBefore.Resync).To(BeFalse())

			// A third in-flight call exceeds the rollback encoding.
			ras.Push(0x300)
			snap := ras.Snapshot()
			Expect(snap.Resync).To(BeTrue())

			ras.Restore(snap)
			Expect(ras.Empty()).To(BeTrue())
			Expect(ras.Stats().Resyncs).To(Equal(uint64(1)))
		})

		It("should resync when a call follows a return in the same cycle", func() {
			ras.Push(0x100)
			ras.BeginCycle()
			ras.CallResolved()

			ras.ReturnResolved() // execute stage resolves a RET
			ras.Push(0x200)      // fetch stage pushes a CALL, same cycle

			snap := ras.Snapshot()
			Expect(snap.Resync).To(BeTrue())

			ras.Restore(snap)
			Expect(ras.Empty()).To(BeTrue())
		})

		It("should drop the resync marker once speculation drains", func() {
			// Three overlapping speculative calls poison the rollback
			// encoding on a path that is never flushed.
			ras.Push(0x100)
			ras.Push(0x200)
			ras.Push(0x300)
			Expect(ras.Snapshot().Resync).To(BeTrue())

			// All three calls resolve at execute without a flush.
			ras.BeginCycle()
			ras.CallResolved()
			ras.CallResolved()
			ras.CallResolved()

			snap := ras.Snapshot()
			Expect(snap.Resync).To(BeFalse())

			// A later squashed call rolls back normally instead of
			// wiping the stack.
			ras.Push(0x400) // wrong path
			ras.Restore(snap)

			addr, ok := ras.Pop()
			Expect(ok).To(BeTrue())
			Expect(addr).To(Equal(uint32(0x300)))
			Expect(ras.Stats().Resyncs).To(Equal(uint64(0)))
			Expect(ras.Stats().Rollbacks).To(Equal(uint64(1)))
		})

		It("should not resync when the call resolves before the next push", func() {
			ras.Push(0x100)
			ras.BeginCycle()
			ras.CallResolved()
			ras.Push(0x200)
			ras.BeginCycle()
			ras.CallResolved()
			ras.Push(0x300)

			Expect(ras.Snapshot().Resync).To(BeFalse())
		})
	})

	Describe("Clear", func() {
		It("should empty the stack and drop the resync marker", func() {
			ras.Push(0x100)
			ras.Push(0x200)
			ras.Push(0x300) // forces resync

			ras.Clear()
			Expect(ras.Empty()).To(BeTrue())
			Expect(ras.Snapshot().Resync).To(BeFalse())
		})
	})
})
