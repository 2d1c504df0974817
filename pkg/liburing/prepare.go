//go:build linux

package liburing

import (
	"math"
	"unsafe"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/cpu"
	"golang.org/x/sys/unix"
)

// CurrentOffset reads or writes at the file position instead of an explicit offset.
const CurrentOffset = math.MaxUint64

// Request is one operation to encode into a submission slot.
//
// Memory a request points at (buffers, iovecs, timespecs, socket addresses,
// paths) belongs to the caller. It must stay reachable and unmodified until
// the completion carrying the request's user data has been harvested.
type Request interface {
	Op() Op
	prepare(entry *SubmissionQueueEntry) error
}

// Encode zeroes entry, writes the members req's opcode uses and stores
// userData verbatim. On error entry is left zeroed.
func Encode(entry *SubmissionQueueEntry, req Request, userData uint64) error {
	if entry == nil {
		return errors.From(
			ErrInvalidRequest,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, errMetaOpPrepare),
			errors.WithMeta(errMetaReasonKey, "nil entry"),
		)
	}
	*entry = SubmissionQueueEntry{}
	if req == nil {
		return errors.From(
			ErrInvalidRequest,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, errMetaOpPrepare),
			errors.WithMeta(errMetaReasonKey, "nil request"),
		)
	}
	if err := req.prepare(entry); err != nil {
		*entry = SubmissionQueueEntry{}
		return err
	}
	entry.userData = userData
	return nil
}

func bufferOf(op Op, b []byte) (uintptr, uint32, error) {
	if len(b) == 0 {
		return 0, 0, nil
	}
	if uint64(len(b)) > math.MaxUint32 {
		return 0, 0, newInvalidRequestErr(op, "buffer too large")
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b))), uint32(len(b)), nil
}

func iovecsOf(op Op, iov []unix.Iovec) (uintptr, uint32, error) {
	if len(iov) == 0 {
		return 0, 0, newInvalidRequestErr(op, "no iovecs")
	}
	if uint64(len(iov)) > math.MaxUint32 {
		return 0, 0, newInvalidRequestErr(op, "too many iovecs")
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(iov))), uint32(len(iov)), nil
}

// pollMask lays a 32-bit poll mask out the way the kernel reads it.
func pollMask(events uint32) uint32 {
	if cpu.IsBigEndian {
		return events<<16 | events>>16
	}
	return events
}

type Nop struct{}

func (Nop) Op() Op { return OpNop }

func (Nop) prepare(entry *SubmissionQueueEntry) error {
	entry.prepareRW(OpNop, -1, 0, 0, 0)
	return nil
}

type Read struct {
	Fd     int
	Buf    []byte
	Offset uint64
}

func (Read) Op() Op { return OpRead }

func (r Read) prepare(entry *SubmissionQueueEntry) error {
	addr, n, err := bufferOf(OpRead, r.Buf)
	if err != nil {
		return err
	}
	entry.prepareRW(OpRead, r.Fd, addr, n, r.Offset)
	return nil
}

type Write struct {
	Fd     int
	Buf    []byte
	Offset uint64
}

func (Write) Op() Op { return OpWrite }

func (w Write) prepare(entry *SubmissionQueueEntry) error {
	addr, n, err := bufferOf(OpWrite, w.Buf)
	if err != nil {
		return err
	}
	entry.prepareRW(OpWrite, w.Fd, addr, n, w.Offset)
	return nil
}

type Readv struct {
	Fd     int
	Iovecs []unix.Iovec
	Offset uint64
}

func (Readv) Op() Op { return OpReadv }

func (r Readv) prepare(entry *SubmissionQueueEntry) error {
	addr, n, err := iovecsOf(OpReadv, r.Iovecs)
	if err != nil {
		return err
	}
	entry.prepareRW(OpReadv, r.Fd, addr, n, r.Offset)
	return nil
}

type Writev struct {
	Fd     int
	Iovecs []unix.Iovec
	Offset uint64
}

func (Writev) Op() Op { return OpWritev }

func (w Writev) prepare(entry *SubmissionQueueEntry) error {
	addr, n, err := iovecsOf(OpWritev, w.Iovecs)
	if err != nil {
		return err
	}
	entry.prepareRW(OpWritev, w.Fd, addr, n, w.Offset)
	return nil
}

type Fsync struct {
	Fd    int
	Flags FsyncFlags
}

func (Fsync) Op() Op { return OpFsync }

func (f Fsync) prepare(entry *SubmissionQueueEntry) error {
	entry.prepareRW(OpFsync, f.Fd, 0, 0, 0)
	entry.opFlags = uint32(f.Flags)
	return nil
}

// PollAdd waits for Events (POLLIN, POLLOUT, ...) on Fd. A multishot poll
// posts a completion per readiness change until it is removed.
type PollAdd struct {
	Fd        int
	Events    uint32
	Multishot bool
}

func (PollAdd) Op() Op { return OpPollAdd }

func (p PollAdd) prepare(entry *SubmissionQueueEntry) error {
	entry.prepareRW(OpPollAdd, p.Fd, 0, 0, 0)
	entry.opFlags = pollMask(p.Events)
	if p.Multishot {
		entry.len = uint32(PollAddMulti)
	}
	return nil
}

// PollRemove cancels the poll whose user data is Target.
type PollRemove struct {
	Target uint64
}

func (PollRemove) Op() Op { return OpPollRemove }

func (p PollRemove) prepare(entry *SubmissionQueueEntry) error {
	entry.prepareRW(OpPollRemove, -1, 0, 0, 0)
	entry.addr = p.Target
	return nil
}

// Timeout completes after Spec elapses or after Count other completions.
type Timeout struct {
	Spec  *unix.Timespec
	Count uint32
	Flags TimeoutFlags
}

func (Timeout) Op() Op { return OpTimeout }

func (t Timeout) prepare(entry *SubmissionQueueEntry) error {
	if t.Spec == nil {
		return newInvalidRequestErr(OpTimeout, "nil timespec")
	}
	entry.prepareRW(OpTimeout, -1, uintptr(unsafe.Pointer(t.Spec)), 1, uint64(t.Count))
	entry.opFlags = uint32(t.Flags)
	return nil
}

type TimeoutRemove struct {
	Target uint64
	Flags  TimeoutFlags
}

func (TimeoutRemove) Op() Op { return OpTimeoutRemove }

func (t TimeoutRemove) prepare(entry *SubmissionQueueEntry) error {
	entry.prepareRW(OpTimeoutRemove, -1, 0, 0, 0)
	entry.addr = t.Target
	entry.opFlags = uint32(t.Flags)
	return nil
}

// LinkTimeout bounds the entry linked before it with SQEIOLink.
type LinkTimeout struct {
	Spec  *unix.Timespec
	Flags TimeoutFlags
}

func (LinkTimeout) Op() Op { return OpLinkTimeout }

func (t LinkTimeout) prepare(entry *SubmissionQueueEntry) error {
	if t.Spec == nil {
		return newInvalidRequestErr(OpLinkTimeout, "nil timespec")
	}
	entry.prepareRW(OpLinkTimeout, -1, uintptr(unsafe.Pointer(t.Spec)), 1, 0)
	entry.opFlags = uint32(t.Flags)
	return nil
}

// Accept takes a connection from a listening socket. Addr and AddrLen may
// both be nil; AddrLen must hold the size of Addr otherwise.
type Accept struct {
	Fd        int
	Addr      *unix.RawSockaddrAny
	AddrLen   *uint32
	Flags     int
	Multishot bool
}

func (Accept) Op() Op { return OpAccept }

func (a Accept) prepare(entry *SubmissionQueueEntry) error {
	if (a.Addr == nil) != (a.AddrLen == nil) {
		return newInvalidRequestErr(OpAccept, "addr and addr len must be set together")
	}
	entry.prepareRW(OpAccept, a.Fd, uintptr(unsafe.Pointer(a.Addr)), 0, uint64(uintptr(unsafe.Pointer(a.AddrLen))))
	entry.opFlags = uint32(a.Flags)
	if a.Multishot {
		entry.ioPrio |= uint16(AcceptMultishot)
	}
	return nil
}

type Connect struct {
	Fd      int
	Addr    *unix.RawSockaddrAny
	AddrLen uint32
}

func (Connect) Op() Op { return OpConnect }

func (c Connect) prepare(entry *SubmissionQueueEntry) error {
	if c.Addr == nil || c.AddrLen == 0 {
		return newInvalidRequestErr(OpConnect, "missing address")
	}
	entry.prepareRW(OpConnect, c.Fd, uintptr(unsafe.Pointer(c.Addr)), 0, uint64(c.AddrLen))
	return nil
}

type Send struct {
	Fd    int
	Buf   []byte
	Flags int
}

func (Send) Op() Op { return OpSend }

func (s Send) prepare(entry *SubmissionQueueEntry) error {
	addr, n, err := bufferOf(OpSend, s.Buf)
	if err != nil {
		return err
	}
	entry.prepareRW(OpSend, s.Fd, addr, n, 0)
	entry.opFlags = uint32(s.Flags)
	return nil
}

type Recv struct {
	Fd    int
	Buf   []byte
	Flags int
}

func (Recv) Op() Op { return OpRecv }

func (r Recv) prepare(entry *SubmissionQueueEntry) error {
	addr, n, err := bufferOf(OpRecv, r.Buf)
	if err != nil {
		return err
	}
	entry.prepareRW(OpRecv, r.Fd, addr, n, 0)
	entry.opFlags = uint32(r.Flags)
	return nil
}

// AsyncCancel cancels the in-flight request whose user data is Target, or
// every request on Fd when Flags carries AsyncCancelFd. The target may still
// complete first; both completions are posted.
type AsyncCancel struct {
	Target uint64
	Fd     int
	Flags  CancelFlags
}

func (AsyncCancel) Op() Op { return OpAsyncCancel }

func (c AsyncCancel) prepare(entry *SubmissionQueueEntry) error {
	fd := -1
	if c.Flags.Has(AsyncCancelFd) {
		fd = c.Fd
	}
	entry.prepareRW(OpAsyncCancel, fd, 0, 0, 0)
	entry.addr = c.Target
	entry.opFlags = uint32(c.Flags)
	return nil
}

type Close struct {
	Fd int
}

func (Close) Op() Op { return OpClose }

func (c Close) prepare(entry *SubmissionQueueEntry) error {
	entry.prepareRW(OpClose, c.Fd, 0, 0, 0)
	return nil
}

// Openat opens Path relative to DirFd. Path must be NUL-terminated.
type Openat struct {
	DirFd int
	Path  []byte
	Flags int
	Mode  uint32
}

func (Openat) Op() Op { return OpOpenat }

func (o Openat) prepare(entry *SubmissionQueueEntry) error {
	if len(o.Path) == 0 || o.Path[len(o.Path)-1] != 0 {
		return newInvalidRequestErr(OpOpenat, "path not NUL-terminated")
	}
	entry.prepareRW(OpOpenat, o.DirFd, uintptr(unsafe.Pointer(unsafe.SliceData(o.Path))), o.Mode, 0)
	entry.opFlags = uint32(o.Flags)
	return nil
}

type Fadvise struct {
	Fd     int
	Offset uint64
	Length uint32
	Advice uint32
}

func (Fadvise) Op() Op { return OpFadvise }

func (f Fadvise) prepare(entry *SubmissionQueueEntry) error {
	entry.prepareRW(OpFadvise, f.Fd, 0, f.Length, f.Offset)
	entry.opFlags = f.Advice
	return nil
}

// Splice moves Nbytes from FdIn to FdOut. An offset of -1 uses the file
// position; pipes must use -1.
type Splice struct {
	FdIn   int
	OffIn  int64
	FdOut  int
	OffOut int64
	Nbytes uint32
	Flags  SpliceFlags
}

func (Splice) Op() Op { return OpSplice }

func (s Splice) prepare(entry *SubmissionQueueEntry) error {
	entry.prepareRW(OpSplice, s.FdOut, 0, s.Nbytes, uint64(s.OffOut))
	entry.addr = uint64(s.OffIn)
	entry.spliceFdIn = int32(s.FdIn)
	entry.opFlags = uint32(s.Flags)
	return nil
}
