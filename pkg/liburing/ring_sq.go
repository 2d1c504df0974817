//go:build linux

package liburing

import (
	"sync/atomic"
	"unsafe"

	"github.com/brickingsoft/errors"
)

type submissionQueue struct {
	head    *uint32
	tail    *uint32
	flags   *uint32
	dropped *uint32
	array   unsafe.Pointer
	sqes    unsafe.Pointer
	mask    uint32
	entries uint32
	// sqeHead is the first slot not yet published to the kernel,
	// sqeTail the next slot Reserve hands out.
	sqeHead uint32
	sqeTail uint32
}

func (sq *submissionQueue) indexAt(i uint32) *uint32 {
	return (*uint32)(unsafe.Add(sq.array, uintptr(i)*4))
}

// Slot is a reserved submission entry. It is valid until the next Submit
// or Close on its ring.
type Slot struct {
	ring       *Ring
	entry      *SubmissionQueueEntry
	generation uint64
}

// Reserve claims the next free submission slot. It reports false when the
// kernel has not consumed enough entries to make room, or the ring is closed.
// The slot holds a NOP until it is prepared.
func (ring *Ring) Reserve() (Slot, bool) {
	if ring.closed {
		return Slot{}, false
	}
	sq := &ring.sq
	head := atomic.LoadUint32(sq.head)
	if sq.sqeTail-head >= sq.entries {
		return Slot{}, false
	}
	entry := ring.entryAt(sq.sqeTail & sq.mask)
	sq.sqeTail++

	ring.placeholder(entry)
	return Slot{ring: ring, entry: entry, generation: ring.generation}, true
}

// placeholder turns entry into the NOP a reserved slot holds until it is
// prepared. Its completion is skipped when the kernel supports it.
func (ring *Ring) placeholder(entry *SubmissionQueueEntry) {
	clearEntry(entry, ring.sqeStride)
	entry.prepareRW(OpNop, -1, 0, 0, 0)
	if ring.params.Features.Has(FeatCQESkip) {
		entry.flags = SQECQESkipSuccess
	}
}

// NextSQE is Reserve returning ErrQueueFull or ErrClosed instead of false.
func (ring *Ring) NextSQE() (Slot, error) {
	if ring.closed {
		return Slot{}, ErrClosed
	}
	slot, ok := ring.Reserve()
	if !ok {
		return Slot{}, errors.From(
			ErrQueueFull,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, errMetaOpPrepare),
		)
	}
	return slot, nil
}

func (ring *Ring) entryAt(idx uint32) *SubmissionQueueEntry {
	return (*SubmissionQueueEntry)(unsafe.Add(ring.sq.sqes, uintptr(idx)*ring.sqeStride))
}

func (slot Slot) valid() bool {
	return slot.ring != nil && !slot.ring.closed && slot.generation == slot.ring.generation
}

func (slot Slot) expired() error {
	return errors.From(
		ErrSlotExpired,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpPrepare),
	)
}

// Prepare encodes req into the slot. Modifiers such as SetFlags must be
// applied afterwards since Prepare starts from a zeroed entry. When req is
// invalid the slot falls back to its NOP placeholder.
func (slot Slot) Prepare(req Request, userData uint64) error {
	if !slot.valid() {
		return slot.expired()
	}
	clearEntry(slot.entry, slot.ring.sqeStride)
	if err := Encode(slot.entry, req, userData); err != nil {
		slot.ring.placeholder(slot.entry)
		return err
	}
	return nil
}

// SetFlags adds per-entry modifiers such as SQEIOLink.
func (slot Slot) SetFlags(flags SQEFlags) error {
	if !slot.valid() {
		return slot.expired()
	}
	slot.entry.flags |= flags
	return nil
}

// SetPersonality issues the entry with a registered credential id.
func (slot Slot) SetPersonality(id uint16) error {
	if !slot.valid() {
		return slot.expired()
	}
	slot.entry.personality = id
	return nil
}

// SetBufferGroup selects a provided-buffer group and sets SQEBufferSelect.
func (slot Slot) SetBufferGroup(group uint16) error {
	if !slot.valid() {
		return slot.expired()
	}
	slot.entry.bufIG = group
	slot.entry.flags |= SQEBufferSelect
	return nil
}

// SQReady is the number of entries reserved or published but not yet consumed.
func (ring *Ring) SQReady() uint32 {
	if ring.closed {
		return 0
	}
	return ring.sq.sqeTail - atomic.LoadUint32(ring.sq.head)
}

func (ring *Ring) SQSpaceLeft() uint32 {
	if ring.closed {
		return 0
	}
	return ring.sq.entries - ring.SQReady()
}

// SQNeedsWakeup reports whether the SQPOLL thread is asleep.
func (ring *Ring) SQNeedsWakeup() bool {
	if ring.closed {
		return false
	}
	return ring.sqFlags().Has(SQNeedWakeup)
}

// Dropped is the number of invalid entries the kernel skipped.
func (ring *Ring) Dropped() uint32 {
	if ring.closed {
		return 0
	}
	return atomic.LoadUint32(ring.sq.dropped)
}

func (ring *Ring) sqFlags() SQRingFlags {
	return SQRingFlags(atomic.LoadUint32(ring.sq.flags))
}

// flushSQ publishes reserved slots to the kernel and returns how many
// entries the kernel has yet to consume.
func (ring *Ring) flushSQ() uint32 {
	sq := &ring.sq
	tail := sq.sqeTail
	if sq.sqeHead != tail {
		for i := sq.sqeHead; i != tail; i++ {
			idx := i & sq.mask
			*sq.indexAt(idx) = idx
		}
		ring.stats.submitted.Add(uint64(tail - sq.sqeHead))
		sq.sqeHead = tail
		atomic.StoreUint32(sq.tail, tail)
	}
	return tail - atomic.LoadUint32(sq.head)
}
