//go:build linux

package liburing

import (
	"log/slog"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/brickingsoft/errors"
)

type completionQueue struct {
	head     *uint32
	tail     *uint32
	overflow *uint32
	flags    *uint32
	cqes     unsafe.Pointer
	mask     uint32
	entries  uint32
}

func (ring *Ring) cqeAt(idx uint32) *completionEntry {
	return (*completionEntry)(unsafe.Add(ring.cq.cqes, uintptr(idx)*ring.cqeStride))
}

// Harvest copies up to len(events) completions out of the ring and releases
// their slots to the kernel. It never blocks.
func (ring *Ring) Harvest(events []CompletionEvent) (int, Delivery) {
	if ring.closed {
		return 0, Delivery{}
	}
	cq := &ring.cq
	head := atomic.LoadUint32(cq.head)
	tail := atomic.LoadUint32(cq.tail)
	n := min(tail-head, uint32(min(len(events), int(cq.entries))))
	for i := uint32(0); i < n; i++ {
		cqe := ring.cqeAt((head + i) & cq.mask)
		events[i] = CompletionEvent{
			UserData: cqe.userData,
			Res:      cqe.res,
			Flags:    CQEFlags(cqe.flags),
		}
	}
	if n > 0 {
		atomic.StoreUint32(cq.head, head+n)
		ring.stats.completed.Add(uint64(n))
	}
	return int(n), ring.delivery()
}

// HarvestN is Harvest into a fresh slice of at most limit events.
func (ring *Ring) HarvestN(limit int) ([]CompletionEvent, Delivery) {
	ready := int(ring.CQReady())
	if limit <= 0 || ready == 0 {
		_, d := ring.Harvest(nil)
		return nil, d
	}
	events := make([]CompletionEvent, min(limit, ready))
	n, d := ring.Harvest(events)
	return events[:n], d
}

func (ring *Ring) delivery() Delivery {
	overflow := atomic.LoadUint32(ring.cq.overflow)
	d := Delivery{
		Dropped:    overflow - ring.overflow,
		Backlogged: ring.sqFlags().Has(SQCQOverflow),
	}
	ring.overflow = overflow
	ring.stats.overflow.Store(uint64(overflow))
	if d.Degraded() {
		ring.stats.dropped.Add(uint64(d.Dropped))
		if d.Backlogged {
			ring.stats.backlogged.Add(1)
		}
		ring.logger.Warn(
			"completion delivery degraded",
			slog.Uint64("dropped", uint64(d.Dropped)),
			slog.Bool("backlogged", d.Backlogged),
			slog.Bool("nodrop", ring.params.NoDrop()),
		)
	}
	return d
}

// CQReady is the number of completions waiting to be harvested.
func (ring *Ring) CQReady() uint32 {
	if ring.closed {
		return 0
	}
	return atomic.LoadUint32(ring.cq.tail) - atomic.LoadUint32(ring.cq.head)
}

// Overflow is the kernel's running count of dropped completions.
func (ring *Ring) Overflow() uint32 {
	if ring.closed {
		return 0
	}
	return atomic.LoadUint32(ring.cq.overflow)
}

// CQHasOverflow reports whether the kernel holds backlogged completions.
func (ring *Ring) CQHasOverflow() bool {
	if ring.closed {
		return false
	}
	return ring.sqFlags().Has(SQCQOverflow)
}

func (ring *Ring) EventFdEnabled() bool {
	if ring.closed {
		return false
	}
	if ring.cq.flags == nil {
		return true
	}
	return !CQRingFlags(atomic.LoadUint32(ring.cq.flags)).Has(CQEventFdDisabled)
}

// SetEventFdEnabled toggles eventfd notifications for a registered eventfd.
func (ring *Ring) SetEventFdEnabled(enabled bool) error {
	if ring.closed {
		return ErrClosed
	}
	if enabled == ring.EventFdEnabled() {
		return nil
	}
	if ring.cq.flags == nil {
		return errors.New(
			"cq flags not supported",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithWrap(syscall.EOPNOTSUPP),
		)
	}
	flags := CQRingFlags(atomic.LoadUint32(ring.cq.flags))
	if enabled {
		flags &^= CQEventFdDisabled
	} else {
		flags |= CQEventFdDisabled
	}
	atomic.StoreUint32(ring.cq.flags, uint32(flags))
	return nil
}
