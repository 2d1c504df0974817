//go:build linux

package liburing

import (
	"fmt"
	"unsafe"
)

// Op is an io_uring opcode.
type Op uint8

const (
	OpNop Op = iota
	OpReadv
	OpWritev
	OpFsync
	OpReadFixed
	OpWriteFixed
	OpPollAdd
	OpPollRemove
	OpSyncFileRange
	OpSendmsg
	OpRecvmsg
	OpTimeout
	OpTimeoutRemove
	OpAccept
	OpAsyncCancel
	OpLinkTimeout
	OpConnect
	OpFallocate
	OpOpenat
	OpClose
	OpFilesUpdate
	OpStatx
	OpRead
	OpWrite
	OpFadvise
	OpMadvise
	OpSend
	OpRecv
	OpOpenat2
	OpEpollCtl
	OpSplice
	OpProvideBuffers
	OpRemoveBuffers
	OpTee
	OpShutdown
	OpRenameat
	OpUnlinkat
	OpMkdirat
	OpSymlinkat
	OpLinkat
	OpMsgRing
	OpFsetxattr
	OpSetxattr
	OpFgetxattr
	OpGetxattr
	OpSocket
	OpUringCmd
	OpSendZC
	OpSendmsgZC
	OpReadMultishot
	OpWaitid
	OpFutexWait
	OpFutexWake
	OpFutexWaitv
	OpFixedFdInstall
	OpFtruncate
	OpBind
	OpListen

	opLast
)

var opNames = [opLast]string{
	"NOP", "READV", "WRITEV", "FSYNC", "READ_FIXED", "WRITE_FIXED", "POLL_ADD", "POLL_REMOVE",
	"SYNC_FILE_RANGE", "SENDMSG", "RECVMSG", "TIMEOUT", "TIMEOUT_REMOVE", "ACCEPT", "ASYNC_CANCEL",
	"LINK_TIMEOUT", "CONNECT", "FALLOCATE", "OPENAT", "CLOSE", "FILES_UPDATE", "STATX", "READ", "WRITE",
	"FADVISE", "MADVISE", "SEND", "RECV", "OPENAT2", "EPOLL_CTL", "SPLICE", "PROVIDE_BUFFERS",
	"REMOVE_BUFFERS", "TEE", "SHUTDOWN", "RENAMEAT", "UNLINKAT", "MKDIRAT", "SYMLINKAT", "LINKAT",
	"MSG_RING", "FSETXATTR", "SETXATTR", "FGETXATTR", "GETXATTR", "SOCKET", "URING_CMD", "SEND_ZC",
	"SENDMSG_ZC", "READ_MULTISHOT", "WAITID", "FUTEX_WAIT", "FUTEX_WAKE", "FUTEX_WAITV",
	"FIXED_FD_INSTALL", "FTRUNCATE", "BIND", "LISTEN",
}

func (op Op) String() string {
	if op < opLast {
		return opNames[op]
	}
	return fmt.Sprintf("OP(%d)", uint8(op))
}

// SubmissionQueueEntry is one 64-byte slot of the submission array.
// Only Encode writes it, so union members never leak between opcodes.
type SubmissionQueueEntry struct {
	opcode      Op
	flags       SQEFlags
	ioPrio      uint16
	fd          int32
	off         uint64
	addr        uint64
	len         uint32
	opFlags     uint32
	userData    uint64
	bufIG       uint16
	personality uint16
	spliceFdIn  int32
	addr3       uint64
	_           uint64
}

const sqeSize = unsafe.Sizeof(SubmissionQueueEntry{})

func (entry *SubmissionQueueEntry) OpCode() Op {
	return entry.opcode
}

func (entry *SubmissionQueueEntry) Flags() SQEFlags {
	return entry.flags
}

func (entry *SubmissionQueueEntry) UserData() uint64 {
	return entry.userData
}

func (entry *SubmissionQueueEntry) prepareRW(op Op, fd int, addr uintptr, length uint32, offset uint64) {
	entry.opcode = op
	entry.fd = int32(fd)
	entry.off = offset
	entry.addr = uint64(addr)
	entry.len = length
}

// clearEntry zeroes a full slot, including the upper half of a 128-byte entry.
func clearEntry(entry *SubmissionQueueEntry, stride uintptr) {
	clear(unsafe.Slice((*byte)(unsafe.Pointer(entry)), stride))
}
