//go:build linux

package liburing

import (
	"syscall"
	"unsafe"
)

// completionEntry is struct io_uring_cqe. CQE32 rings append 16 bytes we ignore.
type completionEntry struct {
	userData uint64
	res      int32
	flags    uint32
}

const cqeSize = unsafe.Sizeof(completionEntry{})

// CompletionEvent is a harvested completion, copied out of the ring.
type CompletionEvent struct {
	UserData uint64
	Res      int32
	Flags    CQEFlags
}

// Err returns the negative result as an errno, or nil.
func (ev CompletionEvent) Err() error {
	if ev.Res < 0 {
		return syscall.Errno(-ev.Res)
	}
	return nil
}

// BufferID returns the provided buffer the kernel picked, if any.
func (ev CompletionEvent) BufferID() (uint16, bool) {
	if !ev.Flags.Has(CQEFBuffer) {
		return 0, false
	}
	return uint16(uint32(ev.Flags) >> cqeBufferShift), true
}

// More reports whether a multishot request will post further completions.
func (ev CompletionEvent) More() bool {
	return ev.Flags.Has(CQEFMore)
}

// Delivery describes how reliably completions reached the ring since the
// previous harvest.
type Delivery struct {
	// Dropped completions the kernel discarded because the ring was full.
	Dropped uint32
	// Backlogged is set while the kernel holds overflowed completions. They
	// are flushed into the ring by the next Submit.
	Backlogged bool
}

func (d Delivery) Degraded() bool {
	return d.Dropped > 0 || d.Backlogged
}
