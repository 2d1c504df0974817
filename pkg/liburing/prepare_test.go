//go:build linux

package liburing

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSubmissionQueueEntry_Layout(t *testing.T) {
	var e SubmissionQueueEntry
	require.Equal(t, uintptr(64), sqeSize)
	require.Equal(t, uintptr(0), unsafe.Offsetof(e.opcode))
	require.Equal(t, uintptr(1), unsafe.Offsetof(e.flags))
	require.Equal(t, uintptr(2), unsafe.Offsetof(e.ioPrio))
	require.Equal(t, uintptr(4), unsafe.Offsetof(e.fd))
	require.Equal(t, uintptr(8), unsafe.Offsetof(e.off))
	require.Equal(t, uintptr(16), unsafe.Offsetof(e.addr))
	require.Equal(t, uintptr(24), unsafe.Offsetof(e.len))
	require.Equal(t, uintptr(28), unsafe.Offsetof(e.opFlags))
	require.Equal(t, uintptr(32), unsafe.Offsetof(e.userData))
	require.Equal(t, uintptr(40), unsafe.Offsetof(e.bufIG))
	require.Equal(t, uintptr(42), unsafe.Offsetof(e.personality))
	require.Equal(t, uintptr(44), unsafe.Offsetof(e.spliceFdIn))
	require.Equal(t, uintptr(48), unsafe.Offsetof(e.addr3))
	require.Equal(t, uintptr(16), cqeSize)
}

func TestEncode(t *testing.T) {
	buf := make([]byte, 512)
	iov := []unix.Iovec{{Base: &buf[0]}, {Base: &buf[256]}}
	ts := &unix.Timespec{Sec: 1}
	addr := &unix.RawSockaddrAny{}
	addrLen := uint32(unsafe.Sizeof(*addr))
	path := []byte("/tmp\x00")

	bufAddr := uint64(uintptr(unsafe.Pointer(&buf[0])))
	cases := []struct {
		name string
		req  Request
		want SubmissionQueueEntry
	}{
		{"nop", Nop{}, SubmissionQueueEntry{opcode: OpNop, fd: -1}},
		{"read", Read{Fd: 3, Buf: buf, Offset: 4096},
			SubmissionQueueEntry{opcode: OpRead, fd: 3, addr: bufAddr, len: 512, off: 4096}},
		{"read current offset", Read{Fd: 3, Buf: buf, Offset: CurrentOffset},
			SubmissionQueueEntry{opcode: OpRead, fd: 3, addr: bufAddr, len: 512, off: CurrentOffset}},
		{"write", Write{Fd: 4, Buf: buf[:10]},
			SubmissionQueueEntry{opcode: OpWrite, fd: 4, addr: bufAddr, len: 10}},
		{"readv", Readv{Fd: 5, Iovecs: iov, Offset: 8},
			SubmissionQueueEntry{opcode: OpReadv, fd: 5, addr: uint64(uintptr(unsafe.Pointer(&iov[0]))), len: 2, off: 8}},
		{"fsync", Fsync{Fd: 6, Flags: FsyncDataSync},
			SubmissionQueueEntry{opcode: OpFsync, fd: 6, opFlags: uint32(FsyncDataSync)}},
		{"poll multishot", PollAdd{Fd: 7, Events: unix.POLLIN, Multishot: true},
			SubmissionQueueEntry{opcode: OpPollAdd, fd: 7, opFlags: pollMask(unix.POLLIN), len: uint32(PollAddMulti)}},
		{"poll remove", PollRemove{Target: 99},
			SubmissionQueueEntry{opcode: OpPollRemove, fd: -1, addr: 99}},
		{"timeout", Timeout{Spec: ts, Count: 2, Flags: TimeoutAbs},
			SubmissionQueueEntry{opcode: OpTimeout, fd: -1, addr: uint64(uintptr(unsafe.Pointer(ts))), len: 1, off: 2, opFlags: uint32(TimeoutAbs)}},
		{"accept multishot", Accept{Fd: 8, Addr: addr, AddrLen: &addrLen, Flags: unix.SOCK_CLOEXEC, Multishot: true},
			SubmissionQueueEntry{opcode: OpAccept, fd: 8, addr: uint64(uintptr(unsafe.Pointer(addr))),
				off: uint64(uintptr(unsafe.Pointer(&addrLen))), opFlags: unix.SOCK_CLOEXEC, ioPrio: uint16(AcceptMultishot)}},
		{"connect", Connect{Fd: 9, Addr: addr, AddrLen: 16},
			SubmissionQueueEntry{opcode: OpConnect, fd: 9, addr: uint64(uintptr(unsafe.Pointer(addr))), off: 16}},
		{"recv", Recv{Fd: 10, Buf: buf, Flags: unix.MSG_WAITALL},
			SubmissionQueueEntry{opcode: OpRecv, fd: 10, addr: bufAddr, len: 512, opFlags: unix.MSG_WAITALL}},
		{"cancel", AsyncCancel{Target: 77, Fd: 3},
			SubmissionQueueEntry{opcode: OpAsyncCancel, fd: -1, addr: 77}},
		{"cancel fd", AsyncCancel{Fd: 3, Flags: AsyncCancelFd | AsyncCancelAll},
			SubmissionQueueEntry{opcode: OpAsyncCancel, fd: 3, opFlags: uint32(AsyncCancelFd | AsyncCancelAll)}},
		{"openat", Openat{DirFd: unix.AT_FDCWD, Path: path, Flags: unix.O_RDONLY, Mode: 0o644},
			SubmissionQueueEntry{opcode: OpOpenat, fd: unix.AT_FDCWD, addr: uint64(uintptr(unsafe.Pointer(&path[0]))), len: 0o644}},
		{"splice", Splice{FdIn: 1, OffIn: -1, FdOut: 2, OffOut: 64, Nbytes: 100},
			SubmissionQueueEntry{opcode: OpSplice, fd: 2, spliceFdIn: 1, addr: ^uint64(0), off: 64, len: 100}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			entry := &SubmissionQueueEntry{addr3: 0xdead, personality: 3, bufIG: 1}
			require.NoError(t, Encode(entry, c.req, 1234))
			c.want.userData = 1234
			require.Equal(t, c.want, *entry)
			require.Equal(t, c.req.Op(), entry.OpCode())
		})
	}
}

func TestEncode_Invalid(t *testing.T) {
	cases := []struct {
		name string
		req  Request
	}{
		{"nil request", nil},
		{"readv without iovecs", Readv{Fd: 1}},
		{"timeout without spec", Timeout{}},
		{"link timeout without spec", LinkTimeout{}},
		{"accept half address", Accept{Fd: 1, Addr: &unix.RawSockaddrAny{}}},
		{"connect without address", Connect{Fd: 1}},
		{"openat without NUL", Openat{DirFd: unix.AT_FDCWD, Path: []byte("/tmp")}},
		{"openat empty", Openat{DirFd: unix.AT_FDCWD}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			entry := &SubmissionQueueEntry{opcode: OpWrite, fd: 3, userData: 5}
			err := Encode(entry, c.req, 99)
			require.True(t, IsInvalidRequest(err))
			require.Equal(t, SubmissionQueueEntry{}, *entry)
		})
	}
	require.True(t, IsInvalidRequest(Encode(nil, Nop{}, 0)))
}
