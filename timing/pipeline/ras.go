package pipeline

// RASSnapshot is the rollback point for the return-address stack: the stack
// pointer state captured at prediction time. It is a small value copy piped
// alongside each in-flight instruction; restoring it undoes every
// speculative push and pop that happened after it was taken.
type RASSnapshot struct {
	// Top is the stack pointer.
	Top int
	// Count is the number of live entries.
	Count int
	// Full indicates the stack has wrapped at least once.
	Full bool
	// Resync, when set, marks the snapshot unusable: speculation
	// overlapped beyond what the rollback encoding can represent, so a
	// flush must clear the stack instead of rolling back.
	Resync bool
}

// RASStats holds return-address stack statistics.
type RASStats struct {
	// Pushes is the number of call pushes (speculative included).
	Pushes uint64
	// Pops is the number of return pops (speculative included).
	Pops uint64
	// EmptyReturns is the number of returns seen with an empty stack,
	// which fall through unpredicted.
	EmptyReturns uint64
	// Overwrites is the number of pushes that displaced the oldest
	// entry on a full stack.
	Overwrites uint64
	// Rollbacks is the number of snapshot restores on flush.
	Rollbacks uint64
	// Resyncs is the number of flushes that had to clear the stack.
	Resyncs uint64
}

// maxPendingCalls is how many speculative, unresolved calls the rollback
// encoding tracks. A third overlapping speculative call forces a resync.
const maxPendingCalls = 2

// ReturnAddressStack is a bounded LIFO of return addresses predicting RET
// targets. Pushes always succeed: on overflow the oldest entry is silently
// overwritten, so calls deeper than the capacity degrade to mispredicted
// returns rather than back-pressure.
//
// Pushes and pops at fetch time are speculative. The pipeline snapshots the
// pointer state after each instruction's own effect; a flush restores the
// snapshot of the surviving instruction. The stack also counts in-flight
// speculative calls, and forces a resync marker when a return resolves in
// the same window a call is speculatively pushed, or when more than
// maxPendingCalls calls overlap.
type ReturnAddressStack struct {
	entries []uint32
	top     int
	count   int
	full    bool

	pendingCalls int
	resync       bool
	retResolved  bool // a RET resolved earlier this cycle

	stats RASStats
}

// NewReturnAddressStack creates a stack of the given depth (a power of 2).
func NewReturnAddressStack(depth int) *ReturnAddressStack {
	return &ReturnAddressStack{
		entries: make([]uint32, depth),
		top:     -1,
	}
}

// Depth returns the stack capacity.
func (s *ReturnAddressStack) Depth() int {
	return len(s.entries)
}

// Empty reports whether the stack has no live entries.
func (s *ReturnAddressStack) Empty() bool {
	return s.count == 0
}

// BeginCycle clears the per-cycle resolution marker. The pipeline calls it
// once per tick, before the execute and fetch stages run.
func (s *ReturnAddressStack) BeginCycle() {
	s.retResolved = false
}

// Push records a speculative call: the return address (call PC + 4) enters
// the stack, overwriting the oldest entry when full.
func (s *ReturnAddressStack) Push(returnAddr uint32) {
	s.stats.Pushes++
	s.top = (s.top + 1) % len(s.entries)
	s.entries[s.top] = returnAddr
	if s.count == len(s.entries) {
		s.full = true
		s.stats.Overwrites++
	} else {
		s.count++
	}

	if s.retResolved || s.pendingCalls == maxPendingCalls {
		// A return resolved in this same window, or too many calls
		// are already in flight: the rollback encoding cannot
		// represent this ordering, so poison it.
		s.resync = true
	} else {
		s.pendingCalls++
	}
}

// Pop removes and returns the predicted return address. It reports false
// on an empty stack, in which case the fetch stream falls through
// unredirected (conservative fallback).
func (s *ReturnAddressStack) Pop() (uint32, bool) {
	if s.count == 0 {
		s.stats.EmptyReturns++
		return 0, false
	}
	s.stats.Pops++
	addr := s.entries[s.top]
	s.top--
	if s.top < 0 {
		s.top = len(s.entries) - 1
	}
	s.count--
	s.full = false
	return addr, true
}

// Snapshot captures the current pointer state for later rollback.
func (s *ReturnAddressStack) Snapshot() RASSnapshot {
	return RASSnapshot{
		Top:    s.top,
		Count:  s.count,
		Full:   s.full,
		Resync: s.resync,
	}
}

// Restore rolls the stack back to a snapshot. Entry payloads above the
// restored pointer may have been overwritten by flushed speculative pushes;
// those entries turn into harmless mispredictions, exactly as the hardware
// degrades. A snapshot poisoned by overlapping speculation clears the whole
// stack instead.
func (s *ReturnAddressStack) Restore(snap RASSnapshot) {
	if snap.Resync || s.resync {
		s.stats.Resyncs++
		s.Clear()
		return
	}
	s.stats.Rollbacks++
	s.top = snap.Top
	s.count = snap.Count
	s.full = snap.Full
	s.pendingCalls = 0
}

// CallResolved marks one speculative call as resolved by the execute stage.
// Once no speculative calls remain in flight the rollback encoding is
// representable again, so a resync marker raised on a correct path does not
// outlive the speculation that caused it.
func (s *ReturnAddressStack) CallResolved() {
	if s.pendingCalls > 0 {
		s.pendingCalls--
	}
	if s.pendingCalls == 0 {
		s.resync = false
	}
}

// ReturnResolved marks a return as resolved by the execute stage. A call
// pushed later in this same cycle collides with it and forces a resync.
func (s *ReturnAddressStack) ReturnResolved() {
	s.retResolved = true
}

// Clear empties the stack and resets speculation tracking.
func (s *ReturnAddressStack) Clear() {
	s.top = -1
	s.count = 0
	s.full = false
	s.pendingCalls = 0
	s.resync = false
}

// Stats returns the stack statistics.
func (s *ReturnAddressStack) Stats() RASStats {
	return s.stats
}
