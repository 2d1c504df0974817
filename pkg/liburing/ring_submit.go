//go:build linux

package liburing

import (
	"log/slog"
	"sync/atomic"
)

// Submit publishes every prepared slot and, when needed, enters the kernel.
// With waitFor > 0 it also waits until that many completions are available.
// It returns the number of entries the kernel accepted; entries it did not
// accept stay queued for the next call.
//
// On an SQPOLL ring the kernel thread consumes entries by itself, so the
// kernel is only entered to wake a sleeping thread, to wait, or to flush
// backlogged completions.
func (ring *Ring) Submit(waitFor uint32) (uint32, error) {
	if ring.closed {
		return 0, ErrClosed
	}
	pending := ring.flushSQ()
	ring.generation++

	var flags EnterFlags
	needEnter := ring.sqRingNeedsEnter(pending, &flags)
	if waitFor > 0 || ring.cqRingNeedsEnter() {
		flags |= EnterGetEvents
		needEnter = true
	}
	if !needEnter {
		return pending, nil
	}

	n, err := ring.provider.enter(ring.fd, pending, waitFor, flags)
	ring.stats.enters.Add(1)
	if flags.Has(EnterSQWakeup) {
		ring.stats.wakeups.Add(1)
	}
	ring.stats.sqDropped.Store(uint64(atomic.LoadUint32(ring.sq.dropped)))
	if err != nil {
		err = newEnterErr(err)
		ring.logger.Debug("enter failed", slog.Uint64("to_submit", uint64(pending)), slog.String("error", err.Error()))
		return 0, err
	}
	return n, nil
}

func (ring *Ring) sqRingNeedsEnter(pending uint32, flags *EnterFlags) bool {
	if pending == 0 {
		return false
	}
	if !ring.params.Flags.Has(SetupSQPoll) {
		return true
	}
	if ring.sqFlags().Has(SQNeedWakeup) {
		*flags |= EnterSQWakeup
		return true
	}
	return false
}

func (ring *Ring) cqRingNeedsFlush() bool {
	return ring.sqFlags()&(SQCQOverflow|SQTaskRun) != 0
}

func (ring *Ring) cqRingNeedsEnter() bool {
	return ring.params.Flags.Has(SetupIOPoll) || ring.cqRingNeedsFlush()
}
