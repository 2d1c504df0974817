//go:build linux

package liburing

import "sync/atomic"

type counters struct {
	submitted  atomic.Uint64
	enters     atomic.Uint64
	wakeups    atomic.Uint64
	completed  atomic.Uint64
	dropped    atomic.Uint64
	backlogged atomic.Uint64
	overflow   atomic.Uint64
	sqDropped  atomic.Uint64
}

// Stats is a snapshot of ring activity. Kernel counters are sampled at the
// last Submit or Harvest.
type Stats struct {
	// Submitted counts entries published to the kernel.
	Submitted  uint64
	Enters     uint64
	Wakeups    uint64
	Completed  uint64
	Dropped    uint64
	Backlogged uint64
	Overflow   uint64
	SQDropped  uint64
}

// Stats never touches the shared mappings, so it may race with Close.
func (ring *Ring) Stats() Stats {
	c := &ring.stats
	return Stats{
		Submitted:  c.submitted.Load(),
		Enters:     c.enters.Load(),
		Wakeups:    c.wakeups.Load(),
		Completed:  c.completed.Load(),
		Dropped:    c.dropped.Load(),
		Backlogged: c.backlogged.Load(),
		Overflow:   c.overflow.Load(),
		SQDropped:  c.sqDropped.Load(),
	}
}
