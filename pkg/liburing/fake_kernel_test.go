//go:build linux

package liburing

import (
	"sync/atomic"
	"syscall"
	"testing"
	"unsafe"

	"github.com/brickingsoft/chakra/pkg/kernel"
	"github.com/stretchr/testify/require"
)

// fakeKernel emulates io_uring ring memory so ring arithmetic can be tested
// without the real syscalls. SQPOLL is emulated by calling poll.
type fakeKernel struct {
	features   Features
	ver        kernel.Version
	setupErr   error
	enterErr   error
	mmapFailAt int
	consumeMax uint32
	badMask    bool

	fd        int
	setups    int
	flags     SetupFlags
	sqEntries uint32
	cqEntries uint32
	sqeStride uintptr
	cqeStride uintptr
	sqOff     SQRingOffsets
	cqOff     CQRingOffsets
	sqRing    []byte
	cqRing    []byte
	sqes      []byte

	mmaps      int
	munmaps    int
	closes     int
	enters     []fakeEnter
	registered []RegisterOp
	backlog    []completionEntry
}

type fakeEnter struct {
	toSubmit    uint32
	minComplete uint32
	flags       EnterFlags
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		features: FeatSingleMmap | FeatNoDrop | FeatSubmitStable,
		ver:      kernel.New(6, 8, 0),
	}
}

func withProvider(p provider) Option {
	return func(o *Options) error {
		o.provider = p
		return nil
	}
}

func newFakeRing(t *testing.T, fk *fakeKernel, options ...Option) *Ring {
	t.Helper()
	ring, err := New(append([]Option{withProvider(fk)}, options...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ring.Close()
	})
	return ring
}

// alloc returns 8-byte aligned memory so 64-bit fields can be accessed atomically.
func alloc(n int) []byte {
	words := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), n)
}

func word(region []byte, off uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&region[off]))
}

func (f *fakeKernel) setup(entries uint32, p *params) (int, error) {
	f.setups++
	if f.setupErr != nil {
		return -1, f.setupErr
	}
	f.flags = SetupFlags(p.flags)
	f.sqEntries = entries
	f.cqEntries = 2 * entries
	if f.flags.Has(SetupCQSize) {
		f.cqEntries = p.cqEntries
	}
	f.sqeStride = sqeSize
	if f.flags.Has(SetupSQE128) {
		f.sqeStride *= 2
	}
	f.cqeStride = cqeSize
	if f.flags.Has(SetupCQE32) {
		f.cqeStride *= 2
	}

	cqesOff := uint32(128)
	arrayOff := cqesOff + f.cqEntries*uint32(f.cqeStride)
	f.sqOff = SQRingOffsets{Head: 0, Tail: 4, RingMask: 8, RingEntries: 12, Flags: 16, Dropped: 20, Array: arrayOff}
	f.cqOff = CQRingOffsets{Head: 64, Tail: 68, RingMask: 72, RingEntries: 76, Overflow: 80, Flags: 84, CQEs: cqesOff}

	if f.features.Has(FeatSingleMmap) {
		f.sqRing = alloc(int(arrayOff + f.sqEntries*4))
		f.cqRing = f.sqRing
	} else {
		f.sqRing = alloc(int(arrayOff + f.sqEntries*4))
		f.cqRing = alloc(int(cqesOff + f.cqEntries*uint32(f.cqeStride)))
	}
	f.sqes = alloc(int(uintptr(f.sqEntries) * f.sqeStride))

	*word(f.sqRing, f.sqOff.RingEntries) = f.sqEntries
	*word(f.sqRing, f.sqOff.RingMask) = f.sqEntries - 1
	*word(f.cqRing, f.cqOff.RingEntries) = f.cqEntries
	*word(f.cqRing, f.cqOff.RingMask) = f.cqEntries - 1
	if f.badMask {
		*word(f.sqRing, f.sqOff.RingMask) = f.sqEntries
	}

	p.sqEntries = f.sqEntries
	p.cqEntries = f.cqEntries
	p.features = uint32(f.features)
	p.sqOff = f.sqOff
	p.cqOff = f.cqOff
	f.fd = 7
	return f.fd, nil
}

func (f *fakeKernel) mmap(_ int, offset int64, length int) ([]byte, error) {
	f.mmaps++
	if f.mmapFailAt == f.mmaps {
		return nil, syscall.ENOMEM
	}
	var region []byte
	switch offset {
	case offSQRing:
		region = f.sqRing
	case offCQRing:
		region = f.cqRing
	case offSQEs:
		region = f.sqes
	}
	if length > len(region) {
		return nil, syscall.EINVAL
	}
	return region[:length:length], nil
}

func (f *fakeKernel) munmap([]byte) error {
	f.munmaps++
	return nil
}

func (f *fakeKernel) close(int) error {
	f.closes++
	return nil
}

func (f *fakeKernel) version() kernel.Version {
	return f.ver
}

func (f *fakeKernel) register(_ int, op RegisterOp, arg unsafe.Pointer, _ uint32) (uint32, error) {
	f.registered = append(f.registered, op)
	if op == RegisterProbe {
		probe := (*Probe)(arg)
		probe.LastOp = OpListen
		probe.OpsLen = 2
		probe.Ops[0] = ProbeOp{Op: OpNop, Flags: probeOpSupported}
		probe.Ops[1] = ProbeOp{Op: OpRead}
	}
	return 0, nil
}

func (f *fakeKernel) enter(_ int, toSubmit uint32, minComplete uint32, flags EnterFlags) (uint32, error) {
	f.enters = append(f.enters, fakeEnter{toSubmit: toSubmit, minComplete: minComplete, flags: flags})
	if f.enterErr != nil {
		return 0, f.enterErr
	}
	if flags.Has(EnterSQWakeup) {
		f.setSQFlags(0, SQNeedWakeup)
	}
	var n uint32
	if !f.flags.Has(SetupSQPoll) {
		n = f.consume(toSubmit)
	} else {
		n = toSubmit
	}
	if flags.Has(EnterGetEvents) {
		f.flushBacklog()
	}
	return n, nil
}

// poll plays the SQPOLL thread.
func (f *fakeKernel) poll() uint32 {
	return f.consume(f.sqEntries)
}

func (f *fakeKernel) consume(limit uint32) uint32 {
	head := atomic.LoadUint32(word(f.sqRing, f.sqOff.Head))
	tail := atomic.LoadUint32(word(f.sqRing, f.sqOff.Tail))
	n := min(tail-head, limit)
	if f.consumeMax > 0 {
		n = min(n, f.consumeMax)
	}
	mask := f.sqEntries - 1
	for i := uint32(0); i < n; i++ {
		idx := *word(f.sqRing, f.sqOff.Array+((head+i)&mask)*4)
		if idx >= f.sqEntries {
			atomic.AddUint32(word(f.sqRing, f.sqOff.Dropped), 1)
			continue
		}
		sqe := f.entry(idx)
		res := f.execute(sqe)
		if res >= 0 && sqe.flags.Has(SQECQESkipSuccess) {
			continue
		}
		f.post(completionEntry{userData: sqe.userData, res: res})
	}
	atomic.StoreUint32(word(f.sqRing, f.sqOff.Head), head+n)
	return n
}

func (f *fakeKernel) entry(idx uint32) *SubmissionQueueEntry {
	return (*SubmissionQueueEntry)(unsafe.Pointer(&f.sqes[uintptr(idx)*f.sqeStride]))
}

func (f *fakeKernel) execute(sqe *SubmissionQueueEntry) int32 {
	switch sqe.opcode {
	case OpRead, OpWrite, OpSend, OpRecv:
		if sqe.fd < 0 {
			return -int32(syscall.EBADF)
		}
		return int32(sqe.len)
	default:
		return 0
	}
}

func (f *fakeKernel) post(cqe completionEntry) {
	head := atomic.LoadUint32(word(f.cqRing, f.cqOff.Head))
	tail := atomic.LoadUint32(word(f.cqRing, f.cqOff.Tail))
	if tail-head == f.cqEntries || len(f.backlog) > 0 {
		if f.features.Has(FeatNoDrop) {
			f.backlog = append(f.backlog, cqe)
			f.setSQFlags(SQCQOverflow, 0)
			return
		}
		atomic.AddUint32(word(f.cqRing, f.cqOff.Overflow), 1)
		return
	}
	f.writeCQE(tail, cqe)
}

func (f *fakeKernel) writeCQE(tail uint32, cqe completionEntry) {
	off := uintptr(f.cqOff.CQEs) + uintptr(tail&(f.cqEntries-1))*f.cqeStride
	*(*completionEntry)(unsafe.Pointer(&f.cqRing[off])) = cqe
	atomic.StoreUint32(word(f.cqRing, f.cqOff.Tail), tail+1)
}

func (f *fakeKernel) flushBacklog() {
	for len(f.backlog) > 0 {
		head := atomic.LoadUint32(word(f.cqRing, f.cqOff.Head))
		tail := atomic.LoadUint32(word(f.cqRing, f.cqOff.Tail))
		if tail-head == f.cqEntries {
			return
		}
		f.writeCQE(tail, f.backlog[0])
		f.backlog = f.backlog[1:]
	}
	f.setSQFlags(0, SQCQOverflow)
}

func (f *fakeKernel) setSQFlags(set, unset SQRingFlags) {
	w := word(f.sqRing, f.sqOff.Flags)
	flags := SQRingFlags(atomic.LoadUint32(w))
	flags = (flags | set) &^ unset
	atomic.StoreUint32(w, uint32(flags))
}

func (f *fakeKernel) sqTail() uint32 {
	return atomic.LoadUint32(word(f.sqRing, f.sqOff.Tail))
}

func (f *fakeKernel) arrayAt(i uint32) uint32 {
	return *word(f.sqRing, f.sqOff.Array+i*4)
}

func (f *fakeKernel) cqFlags() CQRingFlags {
	return CQRingFlags(atomic.LoadUint32(word(f.cqRing, f.cqOff.Flags)))
}
