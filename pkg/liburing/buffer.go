//go:build linux

package liburing

import (
	"runtime"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/cpu"
	"golang.org/x/sys/unix"
)

// bufferEntry is struct io_uring_buf. The ring tail overlays resv of entry 0.
type bufferEntry struct {
	addr uint64
	len  uint32
	bid  uint16
	resv uint16
}

const bufferEntrySize = unsafe.Sizeof(bufferEntry{})

type bufferReg struct {
	ringAddr    uint64
	ringEntries uint32
	bgid        uint16
	flags       uint16
	resv        [3]uint64
}

// BufferRing is a provided-buffer ring: the kernel picks a buffer from it
// for requests flagged with Slot.SetBufferGroup and reports the choice
// through CompletionEvent.BufferID.
type BufferRing struct {
	ring    *Ring
	mem     []byte
	entries uint16
	mask    uint16
	group   uint16
	tail    uint16
	staged  uint16
}

// SetupBufferRing maps and registers a buffer ring of entries slots for group.
func (ring *Ring) SetupBufferRing(entries uint16, group uint16) (*BufferRing, error) {
	if ring.closed {
		return nil, ErrClosed
	}
	if !isPow2(uint32(entries)) {
		return nil, newRegisterErr(RegisterPbufRing, syscall.EINVAL)
	}
	mem, err := unix.Mmap(-1, 0, int(entries)*int(bufferEntrySize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, newMappingErr("buffer ring", errnoOf(err))
	}
	reg := &bufferReg{
		ringAddr:    uint64(uintptr(unsafe.Pointer(unsafe.SliceData(mem)))),
		ringEntries: uint32(entries),
		bgid:        group,
	}
	_, err = ring.Register(RegisterPbufRing, unsafe.Pointer(reg), 1)
	runtime.KeepAlive(reg)
	if err != nil {
		_ = unix.Munmap(mem)
		return nil, err
	}
	return &BufferRing{
		ring:    ring,
		mem:     mem,
		entries: entries,
		mask:    entries - 1,
		group:   group,
	}, nil
}

func (br *BufferRing) Group() uint16 {
	return br.group
}

func (br *BufferRing) entryAt(idx uint16) *bufferEntry {
	return (*bufferEntry)(unsafe.Add(unsafe.Pointer(unsafe.SliceData(br.mem)), uintptr(idx)*bufferEntrySize))
}

// Provide stages buf under id bid. It becomes visible to the kernel on Publish.
// buf must stay alive until the kernel hands it back in a completion.
func (br *BufferRing) Provide(buf []byte, bid uint16) {
	entry := br.entryAt((br.tail + br.staged) & br.mask)
	entry.addr = uint64(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
	entry.len = uint32(len(buf))
	entry.bid = bid
	br.staged++
}

// Publish releases every staged buffer to the kernel.
func (br *BufferRing) Publish() {
	if br.staged == 0 {
		return
	}
	br.tail += br.staged
	br.staged = 0
	// the tail overlays resv of entry 0 and shares a 32-bit word with its bid
	head := br.entryAt(0)
	word := (*uint32)(unsafe.Pointer(&head.bid))
	atomic.StoreUint32(word, tailWord(head.bid, br.tail))
}

// tailWord packs bid and tail so that tail lands in resv in memory order.
func tailWord(bid, tail uint16) uint32 {
	if cpu.IsBigEndian {
		return uint32(bid)<<16 | uint32(tail)
	}
	return uint32(tail)<<16 | uint32(bid)
}

// Close unregisters the group and unmaps the ring.
func (br *BufferRing) Close() error {
	if br.mem == nil {
		return nil
	}
	var err error
	if !br.ring.closed {
		reg := &bufferReg{bgid: br.group}
		_, err = br.ring.Register(UnregisterPbufRing, unsafe.Pointer(reg), 1)
		runtime.KeepAlive(reg)
	}
	if unmapErr := unix.Munmap(br.mem); unmapErr != nil && err == nil {
		err = newMappingErr("buffer ring", errnoOf(unmapErr))
	}
	br.mem = nil
	return err
}
