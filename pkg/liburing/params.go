//go:build linux

package liburing

import (
	"math"
	"time"
	"unsafe"
)

// SQRingOffsets locate the fields of the submission ring inside its mapping.
// The layout matches struct io_sqring_offsets.
type SQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	_           uint32
	UserAddr    uint64
}

// CQRingOffsets locate the fields of the completion ring inside its mapping.
// The layout matches struct io_cqring_offsets.
type CQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	CQEs        uint32
	Flags       uint32
	_           uint32
	UserAddr    uint64
}

// params is struct io_uring_params as the kernel reads and writes it.
type params struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32
	sqOff        SQRingOffsets
	cqOff        CQRingOffsets
}

const paramsSize = unsafe.Sizeof(params{})

// Params is the negotiated ring geometry returned by io_uring_setup.
// It is a copy; changing it has no effect on the ring. SQThreadIdle travels
// in whole milliseconds, finer values round up.
type Params struct {
	SQEntries    uint32
	CQEntries    uint32
	Flags        SetupFlags
	SQThreadCPU  uint32
	SQThreadIdle time.Duration
	Features     Features
	WQFd         uint32
	SQOff        SQRingOffsets
	CQOff        CQRingOffsets
}

func (p Params) HasFeature(f Features) bool {
	return p.Features.Has(f)
}

// SingleMmap reports whether both rings live in one mapping.
func (p Params) SingleMmap() bool {
	return p.Features.Has(FeatSingleMmap)
}

// NoDrop reports whether overflowing completions are backlogged instead of dropped.
func (p Params) NoDrop() bool {
	return p.Features.Has(FeatNoDrop)
}

// SubmitStable reports whether request data is consumed at submit time.
func (p Params) SubmitStable() bool {
	return p.Features.Has(FeatSubmitStable)
}

func (p Params) wire() params {
	return params{
		sqEntries:    p.SQEntries,
		cqEntries:    p.CQEntries,
		flags:        uint32(p.Flags),
		sqThreadCPU:  p.SQThreadCPU,
		sqThreadIdle: idleMillis(p.SQThreadIdle),
		features:     uint32(p.Features),
		wqFd:         p.WQFd,
		sqOff:        p.SQOff,
		cqOff:        p.CQOff,
	}
}

// idleMillis converts an SQPOLL idle time to the kernel's milliseconds,
// rounding up so a non-zero idle never becomes 0.
func idleMillis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}

func paramsFromWire(w *params) Params {
	return Params{
		SQEntries:    w.sqEntries,
		CQEntries:    w.cqEntries,
		Flags:        SetupFlags(w.flags),
		SQThreadCPU:  w.sqThreadCPU,
		SQThreadIdle: time.Duration(w.sqThreadIdle) * time.Millisecond,
		Features:     Features(w.features),
		WQFd:         w.wqFd,
		SQOff:        w.sqOff,
		CQOff:        w.cqOff,
	}
}
