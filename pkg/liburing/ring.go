//go:build linux

package liburing

import (
	"log/slog"
	"runtime"
	"unsafe"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

// Ring owns one io_uring instance: its fd and the three shared mappings.
//
// A Ring is single-producer single-consumer on the process side. Reserve,
// Submit and Harvest must not run concurrently; guard the ring with a mutex
// when several goroutines use it. Stats is safe to call from any goroutine.
type Ring struct {
	provider   provider
	logger     *slog.Logger
	fd         int
	params     Params
	sq         submissionQueue
	cq         completionQueue
	sqRing     []byte
	cqRing     []byte
	sqes       []byte
	sqeStride  uintptr
	cqeStride  uintptr
	generation uint64
	closed     bool
	overflow   uint32
	stats      counters
}

// New sets up a ring and maps its queues.
func New(options ...Option) (*Ring, error) {
	opts := Options{
		Entries: DefaultEntries,
	}
	for _, o := range options {
		if err := o(&opts); err != nil {
			return nil, newSetupErr(err)
		}
	}
	prov := opts.provider
	if prov == nil {
		prov = sysProvider{}
	}
	if err := opts.Validate(prov.version()); err != nil {
		return nil, err
	}

	p := opts.params()
	fd, err := prov.setup(opts.Entries, &p)
	runtime.KeepAlive(&p)
	if err != nil {
		return nil, newSetupErr(err)
	}

	ring := &Ring{
		provider:  prov,
		logger:    opts.logger(),
		fd:        fd,
		params:    paramsFromWire(&p),
		sqeStride: sqeSize,
		cqeStride: cqeSize,
	}
	if ring.params.Flags.Has(SetupSQE128) {
		ring.sqeStride *= 2
	}
	if ring.params.Flags.Has(SetupCQE32) {
		ring.cqeStride *= 2
	}

	if err = ring.mmap(&p); err != nil {
		_ = prov.close(fd)
		return nil, err
	}
	if err = ring.bind(&p); err != nil {
		_ = ring.unmap()
		_ = prov.close(fd)
		return nil, err
	}

	ring.logger.Debug(
		"ring created",
		slog.Int("fd", fd),
		slog.Uint64("sq_entries", uint64(ring.params.SQEntries)),
		slog.Uint64("cq_entries", uint64(ring.params.CQEntries)),
		slog.String("flags", ring.params.Flags.String()),
		slog.String("features", ring.params.Features.String()),
		slog.Bool("single_mmap", ring.params.SingleMmap()),
	)
	return ring, nil
}

func (ring *Ring) Fd() int {
	return ring.fd
}

// Params returns a copy of the negotiated parameters.
func (ring *Ring) Params() Params {
	return ring.params
}

func (ring *Ring) Flags() SetupFlags {
	return ring.params.Flags
}

func (ring *Ring) Features() Features {
	return ring.params.Features
}

func (ring *Ring) SQEntries() uint32 {
	return ring.sq.entries
}

func (ring *Ring) CQEntries() uint32 {
	return ring.cq.entries
}

func (ring *Ring) Closed() bool {
	return ring.closed
}

// Close unmaps the queues in reverse order and closes the fd.
// Calling it again returns ErrClosed.
func (ring *Ring) Close() error {
	if ring.closed {
		return ErrClosed
	}
	ring.closed = true
	ring.generation++
	ring.sq = submissionQueue{}
	ring.cq = completionQueue{}

	unmapErr := ring.unmap()
	closeErr := ring.provider.close(ring.fd)
	fd := ring.fd
	ring.fd = -1
	if unmapErr == nil && closeErr == nil {
		return nil
	}
	err := errors.New(
		"close failed",
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpClose),
		errors.WithWrap(errors.Join(unmapErr, closeErr)),
	)
	ring.logger.Error("ring teardown failed", slog.Int("fd", fd), slog.String("error", err.Error()))
	return err
}

// DontFork keeps the ring mappings out of forked children.
func (ring *Ring) DontFork() error {
	if ring.closed {
		return ErrClosed
	}
	for _, region := range ring.regions() {
		if err := unix.Madvise(region, unix.MADV_DONTFORK); err != nil {
			return err
		}
	}
	return nil
}

// MappedBytes is the size of the shared memory the ring maps, counting a
// single SQ/CQ mapping once.
func (ring *Ring) MappedBytes() uint64 {
	var n uint64
	for _, region := range ring.regions() {
		n += uint64(len(region))
	}
	return n
}

func (ring *Ring) regions() [][]byte {
	regions := make([][]byte, 0, 3)
	if ring.sqes != nil {
		regions = append(regions, ring.sqes)
	}
	if ring.cqRing != nil && !sameRegion(ring.cqRing, ring.sqRing) {
		regions = append(regions, ring.cqRing)
	}
	if ring.sqRing != nil {
		regions = append(regions, ring.sqRing)
	}
	return regions
}

func sameRegion(a, b []byte) bool {
	return unsafe.SliceData(a) == unsafe.SliceData(b)
}
