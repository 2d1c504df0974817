//go:build linux

package liburing

import (
	"syscall"
	"unsafe"

	"github.com/brickingsoft/errors"
)

const (
	offSQRing int64 = 0
	offCQRing int64 = 0x8000000
	offSQEs   int64 = 0x10000000
)

const (
	regionSQRing = "sq ring"
	regionCQRing = "cq ring"
	regionSQEs   = "sqes"
)

// mmap maps the SQ ring, the CQ ring and the SQE array. With FeatSingleMmap
// both rings share one mapping sized for the larger of the two. Whatever was
// mapped before a failure is unmapped again.
func (ring *Ring) mmap(p *params) error {
	sqRingSize := int(p.sqOff.Array) + int(p.sqEntries)*4
	cqRingSize := int(p.cqOff.CQEs) + int(p.cqEntries)*int(ring.cqeStride)
	single := Features(p.features).Has(FeatSingleMmap)
	if single {
		sqRingSize = max(sqRingSize, cqRingSize)
		cqRingSize = sqRingSize
	}

	sqRing, err := ring.provider.mmap(ring.fd, offSQRing, sqRingSize)
	if err != nil {
		return newMappingErr(regionSQRing, err)
	}
	ring.sqRing = sqRing

	if single {
		ring.cqRing = sqRing
	} else {
		cqRing, cqErr := ring.provider.mmap(ring.fd, offCQRing, cqRingSize)
		if cqErr != nil {
			_ = ring.unmap()
			return newMappingErr(regionCQRing, cqErr)
		}
		ring.cqRing = cqRing
	}

	sqes, err := ring.provider.mmap(ring.fd, offSQEs, int(ring.sqeStride)*int(p.sqEntries))
	if err != nil {
		_ = ring.unmap()
		return newMappingErr(regionSQEs, err)
	}
	ring.sqes = sqes
	return nil
}

// unmap releases the mappings in reverse creation order.
func (ring *Ring) unmap() error {
	var errs []error
	for _, region := range ring.regions() {
		if err := ring.provider.munmap(region); err != nil {
			errs = append(errs, err)
		}
	}
	ring.sqes = nil
	ring.cqRing = nil
	ring.sqRing = nil
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// bind resolves the kernel offsets into pointers and checks the geometry.
func (ring *Ring) bind(p *params) (err error) {
	sq := &ring.sq
	cq := &ring.cq
	sqOff := &p.sqOff
	cqOff := &p.cqOff

	if sq.head, err = wordAt(ring.sqRing, sqOff.Head, regionSQRing); err != nil {
		return
	}
	if sq.tail, err = wordAt(ring.sqRing, sqOff.Tail, regionSQRing); err != nil {
		return
	}
	if sq.flags, err = wordAt(ring.sqRing, sqOff.Flags, regionSQRing); err != nil {
		return
	}
	if sq.dropped, err = wordAt(ring.sqRing, sqOff.Dropped, regionSQRing); err != nil {
		return
	}
	mask, err := wordAt(ring.sqRing, sqOff.RingMask, regionSQRing)
	if err != nil {
		return
	}
	entries, err := wordAt(ring.sqRing, sqOff.RingEntries, regionSQRing)
	if err != nil {
		return
	}
	sq.mask = *mask
	sq.entries = *entries
	if err = checkGeometry(sq.entries, sq.mask, p.sqEntries, regionSQRing); err != nil {
		return
	}
	if int(sqOff.Array)+int(sq.entries)*4 > len(ring.sqRing) {
		return newMappingErr(regionSQRing, syscall.EINVAL)
	}
	sq.array = unsafe.Pointer(&ring.sqRing[sqOff.Array])
	sq.sqes = unsafe.Pointer(unsafe.SliceData(ring.sqes))
	if uintptr(len(ring.sqes)) < uintptr(sq.entries)*ring.sqeStride {
		return newMappingErr(regionSQEs, syscall.EINVAL)
	}

	if cq.head, err = wordAt(ring.cqRing, cqOff.Head, regionCQRing); err != nil {
		return
	}
	if cq.tail, err = wordAt(ring.cqRing, cqOff.Tail, regionCQRing); err != nil {
		return
	}
	if cq.overflow, err = wordAt(ring.cqRing, cqOff.Overflow, regionCQRing); err != nil {
		return
	}
	// kernels without a cq flags word report offset 0
	if cqOff.Flags != 0 {
		if cq.flags, err = wordAt(ring.cqRing, cqOff.Flags, regionCQRing); err != nil {
			return
		}
	}
	if mask, err = wordAt(ring.cqRing, cqOff.RingMask, regionCQRing); err != nil {
		return
	}
	if entries, err = wordAt(ring.cqRing, cqOff.RingEntries, regionCQRing); err != nil {
		return
	}
	cq.mask = *mask
	cq.entries = *entries
	if err = checkGeometry(cq.entries, cq.mask, p.cqEntries, regionCQRing); err != nil {
		return
	}
	if uintptr(cqOff.CQEs)+uintptr(cq.entries)*ring.cqeStride > uintptr(len(ring.cqRing)) {
		return newMappingErr(regionCQRing, syscall.EINVAL)
	}
	cq.cqes = unsafe.Pointer(&ring.cqRing[cqOff.CQEs])

	for i := uint32(0); i < sq.entries; i++ {
		*sq.indexAt(i) = i
	}
	return nil
}

func wordAt(region []byte, off uint32, name string) (*uint32, error) {
	if off%4 != 0 || int(off)+4 > len(region) {
		return nil, newMappingErr(name, syscall.EINVAL)
	}
	return (*uint32)(unsafe.Pointer(&region[off])), nil
}

func checkGeometry(entries, mask, expected uint32, name string) error {
	if entries != expected || !isPow2(entries) || mask != entries-1 {
		return newSetupReasonErr(syscall.EINVAL, name+" geometry mismatch")
	}
	return nil
}
