//go:build linux

package liburing

import (
	"fmt"
	"strings"

	"github.com/brickingsoft/errors"
)

type flagBits interface {
	~uint8 | ~uint16 | ~uint32
}

type flagName[F flagBits] struct {
	flag F
	name string
}

// formatFlags renders known bits by name, joined with '|', and any leftover bits in hex.
func formatFlags[F flagBits](v F, names []flagName[F]) string {
	if v == 0 {
		return "0"
	}
	b := strings.Builder{}
	rest := v
	for _, n := range names {
		if v&n.flag == n.flag && n.flag != 0 {
			if b.Len() > 0 {
				b.WriteByte('|')
			}
			b.WriteString(n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		b.WriteString(fmt.Sprintf("0x%x", uint32(rest)))
	}
	return b.String()
}

// SetupFlags is the io_uring_params.flags word handed to io_uring_setup.
type SetupFlags uint32

const (
	// SetupIOPoll busy-waits for I/O completion instead of relying on IRQs.
	// Only O_DIRECT files on pollable devices work with it, and the caller
	// must enter the kernel to reap completions.
	SetupIOPoll SetupFlags = 1 << iota
	// SetupSQPoll creates a kernel thread that polls the submission queue.
	// When the thread idles past sq_thread_idle it raises SQNeedWakeup and
	// Submit wakes it through EnterSQWakeup.
	SetupSQPoll
	// SetupSQAff pins the SQPOLL thread to sq_thread_cpu. Requires SetupSQPoll.
	SetupSQAff
	// SetupCQSize sizes the completion queue from cq_entries.
	SetupCQSize
	// SetupClamp clamps oversized entry counts instead of failing.
	SetupClamp
	// SetupAttachWQ shares the async worker backend of the ring named by wq_fd.
	SetupAttachWQ
	// SetupRDisabled starts the ring disabled; see Ring.EnableRings.
	SetupRDisabled
	// SetupSubmitAll keeps submitting a batch even when one request fails.
	SetupSubmitAll
	// SetupCoopTaskRun stops the kernel from interrupting the task on completions.
	SetupCoopTaskRun
	// SetupTaskRunFlag raises SQTaskRun whenever completion work is pending.
	SetupTaskRunFlag
	// SetupSQE128 doubles the submission entry stride to 128 bytes.
	SetupSQE128
	// SetupCQE32 doubles the completion entry stride to 32 bytes.
	SetupCQE32
	// SetupSingleIssuer hints that only one task submits.
	SetupSingleIssuer
	// SetupDeferTaskRun defers completion work to the next GETEVENTS enter.
	// Requires SetupSingleIssuer.
	SetupDeferTaskRun
	SetupNoMmap
	SetupRegisteredFdOnly
	SetupNoSQArray
	SetupHybridIOPoll
)

var setupFlagNames = []flagName[SetupFlags]{
	{SetupIOPoll, "IORING_SETUP_IOPOLL"},
	{SetupSQPoll, "IORING_SETUP_SQPOLL"},
	{SetupSQAff, "IORING_SETUP_SQ_AFF"},
	{SetupCQSize, "IORING_SETUP_CQSIZE"},
	{SetupClamp, "IORING_SETUP_CLAMP"},
	{SetupAttachWQ, "IORING_SETUP_ATTACH_WQ"},
	{SetupRDisabled, "IORING_SETUP_R_DISABLED"},
	{SetupSubmitAll, "IORING_SETUP_SUBMIT_ALL"},
	{SetupCoopTaskRun, "IORING_SETUP_COOP_TASKRUN"},
	{SetupTaskRunFlag, "IORING_SETUP_TASKRUN_FLAG"},
	{SetupSQE128, "IORING_SETUP_SQE128"},
	{SetupCQE32, "IORING_SETUP_CQE32"},
	{SetupSingleIssuer, "IORING_SETUP_SINGLE_ISSUER"},
	{SetupDeferTaskRun, "IORING_SETUP_DEFER_TASKRUN"},
	{SetupNoMmap, "IORING_SETUP_NO_MMAP"},
	{SetupRegisteredFdOnly, "IORING_SETUP_REGISTERED_FD_ONLY"},
	{SetupNoSQArray, "IORING_SETUP_NO_SQARRAY"},
	{SetupHybridIOPoll, "IORING_SETUP_HYBRID_IOPOLL"},
}

func (f SetupFlags) Has(o SetupFlags) bool             { return f&o == o }
func (f SetupFlags) Union(o SetupFlags) SetupFlags     { return f | o }
func (f SetupFlags) Intersect(o SetupFlags) SetupFlags { return f & o }
func (f SetupFlags) Without(o SetupFlags) SetupFlags   { return f &^ o }
func (f SetupFlags) String() string                    { return formatFlags(f, setupFlagNames) }

// ParseSetupFlags maps a flag name to its bit. Both the kernel spelling
// (IORING_SETUP_SQPOLL) and the short one (sqpoll) are accepted. Unknown
// names yield 0.
func ParseSetupFlags(s string) SetupFlags {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	if !strings.HasPrefix(s, "IORING_SETUP_") {
		s = "IORING_SETUP_" + s
	}
	for _, n := range setupFlagNames {
		if n.name == s {
			return n.flag
		}
	}
	return 0
}

// ParseSetupFlagList folds a list of flag names, failing on the first unknown one.
func ParseSetupFlagList(names []string) (SetupFlags, error) {
	var flags SetupFlags
	for _, name := range names {
		flag := ParseSetupFlags(name)
		if flag == 0 {
			return 0, errors.New(
				"unknown setup flag",
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithMeta("flag", name),
			)
		}
		flags |= flag
	}
	return flags, nil
}

// Features is the io_uring_params.features word filled in by the kernel.
type Features uint32

const (
	FeatSingleMmap Features = 1 << iota
	FeatNoDrop
	FeatSubmitStable
	FeatRWCurPos
	FeatCurPersonality
	FeatFastPoll
	FeatPoll32Bits
	FeatSQPollNonfixed
	FeatExtArg
	FeatNativeWorkers
	FeatRcrcTags
	FeatCQESkip
	FeatLinkedFile
	FeatRegRegRing
	FeatRecvSendBundle
	FeatMinTimeout
)

var featureNames = []flagName[Features]{
	{FeatSingleMmap, "SINGLE_MMAP"},
	{FeatNoDrop, "NODROP"},
	{FeatSubmitStable, "SUBMIT_STABLE"},
	{FeatRWCurPos, "RW_CUR_POS"},
	{FeatCurPersonality, "CUR_PERSONALITY"},
	{FeatFastPoll, "FAST_POLL"},
	{FeatPoll32Bits, "POLL_32BITS"},
	{FeatSQPollNonfixed, "SQPOLL_NONFIXED"},
	{FeatExtArg, "EXT_ARG"},
	{FeatNativeWorkers, "NATIVE_WORKERS"},
	{FeatRcrcTags, "RSRC_TAGS"},
	{FeatCQESkip, "CQE_SKIP"},
	{FeatLinkedFile, "LINKED_FILE"},
	{FeatRegRegRing, "REG_REG_RING"},
	{FeatRecvSendBundle, "RECVSEND_BUNDLE"},
	{FeatMinTimeout, "MIN_TIMEOUT"},
}

func (f Features) Has(o Features) bool           { return f&o == o }
func (f Features) Union(o Features) Features     { return f | o }
func (f Features) Intersect(o Features) Features { return f & o }
func (f Features) Without(o Features) Features   { return f &^ o }
func (f Features) String() string                { return formatFlags(f, featureNames) }

// SQEFlags is the per-entry flags byte of a submission entry.
type SQEFlags uint8

const (
	// SQEFixedFile treats fd as an index into the registered file table.
	SQEFixedFile SQEFlags = 1 << iota
	// SQEIODrain starts the entry only after every earlier entry completed.
	SQEIODrain
	// SQEIOLink links the next entry to this one.
	SQEIOLink
	// SQEIOHardlink is SQEIOLink that survives a failed predecessor.
	SQEIOHardlink
	// SQEAsync always punts the entry to the async workers.
	SQEAsync
	// SQEBufferSelect picks a buffer from the registered group in BufIG.
	SQEBufferSelect
	// SQECQESkipSuccess suppresses the completion when the entry succeeds.
	SQECQESkipSuccess
)

var sqeFlagNames = []flagName[SQEFlags]{
	{SQEFixedFile, "FIXED_FILE"},
	{SQEIODrain, "IO_DRAIN"},
	{SQEIOLink, "IO_LINK"},
	{SQEIOHardlink, "IO_HARDLINK"},
	{SQEAsync, "ASYNC"},
	{SQEBufferSelect, "BUFFER_SELECT"},
	{SQECQESkipSuccess, "CQE_SKIP_SUCCESS"},
}

func (f SQEFlags) Has(o SQEFlags) bool           { return f&o == o }
func (f SQEFlags) Union(o SQEFlags) SQEFlags     { return f | o }
func (f SQEFlags) Intersect(o SQEFlags) SQEFlags { return f & o }
func (f SQEFlags) Without(o SQEFlags) SQEFlags   { return f &^ o }
func (f SQEFlags) String() string                { return formatFlags(f, sqeFlagNames) }

// EnterFlags is passed to io_uring_enter.
type EnterFlags uint32

const (
	EnterGetEvents EnterFlags = 1 << iota
	EnterSQWakeup
	EnterSQWait
	EnterExtArg
	EnterRegisteredRing
	EnterAbsTimer
	EnterExtArgReg
)

var enterFlagNames = []flagName[EnterFlags]{
	{EnterGetEvents, "GETEVENTS"},
	{EnterSQWakeup, "SQ_WAKEUP"},
	{EnterSQWait, "SQ_WAIT"},
	{EnterExtArg, "EXT_ARG"},
	{EnterRegisteredRing, "REGISTERED_RING"},
	{EnterAbsTimer, "ABS_TIMER"},
	{EnterExtArgReg, "EXT_ARG_REG"},
}

func (f EnterFlags) Has(o EnterFlags) bool             { return f&o == o }
func (f EnterFlags) Union(o EnterFlags) EnterFlags     { return f | o }
func (f EnterFlags) Intersect(o EnterFlags) EnterFlags { return f & o }
func (f EnterFlags) Without(o EnterFlags) EnterFlags   { return f &^ o }
func (f EnterFlags) String() string                    { return formatFlags(f, enterFlagNames) }

// SQRingFlags is the kernel-written flags word of the submission ring.
type SQRingFlags uint32

const (
	// SQNeedWakeup is raised when the SQPOLL thread went to sleep.
	SQNeedWakeup SQRingFlags = 1 << iota
	// SQCQOverflow is raised while completions wait in the kernel backlog.
	SQCQOverflow
	// SQTaskRun is raised when completion work is pending (SetupTaskRunFlag).
	SQTaskRun
)

var sqRingFlagNames = []flagName[SQRingFlags]{
	{SQNeedWakeup, "NEED_WAKEUP"},
	{SQCQOverflow, "CQ_OVERFLOW"},
	{SQTaskRun, "TASKRUN"},
}

func (f SQRingFlags) Has(o SQRingFlags) bool              { return f&o == o }
func (f SQRingFlags) Union(o SQRingFlags) SQRingFlags     { return f | o }
func (f SQRingFlags) Intersect(o SQRingFlags) SQRingFlags { return f & o }
func (f SQRingFlags) Without(o SQRingFlags) SQRingFlags   { return f &^ o }
func (f SQRingFlags) String() string                      { return formatFlags(f, sqRingFlagNames) }

// CQRingFlags is the application-written flags word of the completion ring.
type CQRingFlags uint32

const (
	// CQEventFdDisabled stops completions from signalling a registered eventfd.
	CQEventFdDisabled CQRingFlags = 1 << iota
)

var cqRingFlagNames = []flagName[CQRingFlags]{
	{CQEventFdDisabled, "EVENTFD_DISABLED"},
}

func (f CQRingFlags) Has(o CQRingFlags) bool              { return f&o == o }
func (f CQRingFlags) Union(o CQRingFlags) CQRingFlags     { return f | o }
func (f CQRingFlags) Intersect(o CQRingFlags) CQRingFlags { return f & o }
func (f CQRingFlags) Without(o CQRingFlags) CQRingFlags   { return f &^ o }
func (f CQRingFlags) String() string                      { return formatFlags(f, cqRingFlagNames) }

// CQEFlags is the flags word of a completion entry.
type CQEFlags uint32

const (
	// CQEFBuffer means the upper 16 bits of the flags carry a buffer id.
	CQEFBuffer CQEFlags = 1 << iota
	// CQEFMore means the request stays armed and will post again.
	CQEFMore
	CQEFSockNonEmpty
	CQEFNotif
	CQEFBufMore
)

const cqeBufferShift = 16

var cqeFlagNames = []flagName[CQEFlags]{
	{CQEFBuffer, "F_BUFFER"},
	{CQEFMore, "F_MORE"},
	{CQEFSockNonEmpty, "F_SOCK_NONEMPTY"},
	{CQEFNotif, "F_NOTIF"},
	{CQEFBufMore, "F_BUF_MORE"},
}

func (f CQEFlags) Has(o CQEFlags) bool           { return f&o == o }
func (f CQEFlags) Union(o CQEFlags) CQEFlags     { return f | o }
func (f CQEFlags) Intersect(o CQEFlags) CQEFlags { return f & o }
func (f CQEFlags) Without(o CQEFlags) CQEFlags   { return f &^ o }

// String names the low 16 bits; the buffer id above them is left out.
func (f CQEFlags) String() string {
	return formatFlags(f&0xffff, cqeFlagNames)
}

type FsyncFlags uint32

const (
	FsyncDataSync FsyncFlags = 1 << iota
)

var fsyncFlagNames = []flagName[FsyncFlags]{
	{FsyncDataSync, "FSYNC_DATASYNC"},
}

func (f FsyncFlags) Has(o FsyncFlags) bool             { return f&o == o }
func (f FsyncFlags) Union(o FsyncFlags) FsyncFlags     { return f | o }
func (f FsyncFlags) Intersect(o FsyncFlags) FsyncFlags { return f & o }
func (f FsyncFlags) Without(o FsyncFlags) FsyncFlags   { return f &^ o }
func (f FsyncFlags) String() string                    { return formatFlags(f, fsyncFlagNames) }

type TimeoutFlags uint32

const (
	TimeoutAbs TimeoutFlags = 1 << iota
	TimeoutUpdate
	TimeoutBoottime
	TimeoutRealtime
	LinkTimeoutUpdate
	TimeoutETimeSuccess
	TimeoutMultishot
)

var timeoutFlagNames = []flagName[TimeoutFlags]{
	{TimeoutAbs, "TIMEOUT_ABS"},
	{TimeoutUpdate, "TIMEOUT_UPDATE"},
	{TimeoutBoottime, "TIMEOUT_BOOTTIME"},
	{TimeoutRealtime, "TIMEOUT_REALTIME"},
	{LinkTimeoutUpdate, "LINK_TIMEOUT_UPDATE"},
	{TimeoutETimeSuccess, "TIMEOUT_ETIME_SUCCESS"},
	{TimeoutMultishot, "TIMEOUT_MULTISHOT"},
}

func (f TimeoutFlags) Has(o TimeoutFlags) bool               { return f&o == o }
func (f TimeoutFlags) Union(o TimeoutFlags) TimeoutFlags     { return f | o }
func (f TimeoutFlags) Intersect(o TimeoutFlags) TimeoutFlags { return f & o }
func (f TimeoutFlags) Without(o TimeoutFlags) TimeoutFlags   { return f &^ o }
func (f TimeoutFlags) String() string                        { return formatFlags(f, timeoutFlagNames) }

type PollFlags uint32

const (
	PollAddMulti PollFlags = 1 << iota
	PollUpdateEvents
	PollUpdateUserData
	PollAddLevel
)

var pollFlagNames = []flagName[PollFlags]{
	{PollAddMulti, "POLL_ADD_MULTI"},
	{PollUpdateEvents, "POLL_UPDATE_EVENTS"},
	{PollUpdateUserData, "POLL_UPDATE_USER_DATA"},
	{PollAddLevel, "POLL_ADD_LEVEL"},
}

func (f PollFlags) Has(o PollFlags) bool            { return f&o == o }
func (f PollFlags) Union(o PollFlags) PollFlags     { return f | o }
func (f PollFlags) Intersect(o PollFlags) PollFlags { return f & o }
func (f PollFlags) Without(o PollFlags) PollFlags   { return f &^ o }
func (f PollFlags) String() string                  { return formatFlags(f, pollFlagNames) }

type CancelFlags uint32

const (
	AsyncCancelAll CancelFlags = 1 << iota
	AsyncCancelFd
	AsyncCancelAny
	AsyncCancelFdFixed
	AsyncCancelUserdata
	AsyncCancelOp
)

var cancelFlagNames = []flagName[CancelFlags]{
	{AsyncCancelAll, "ASYNC_CANCEL_ALL"},
	{AsyncCancelFd, "ASYNC_CANCEL_FD"},
	{AsyncCancelAny, "ASYNC_CANCEL_ANY"},
	{AsyncCancelFdFixed, "ASYNC_CANCEL_FD_FIXED"},
	{AsyncCancelUserdata, "ASYNC_CANCEL_USERDATA"},
	{AsyncCancelOp, "ASYNC_CANCEL_OP"},
}

func (f CancelFlags) Has(o CancelFlags) bool              { return f&o == o }
func (f CancelFlags) Union(o CancelFlags) CancelFlags     { return f | o }
func (f CancelFlags) Intersect(o CancelFlags) CancelFlags { return f & o }
func (f CancelFlags) Without(o CancelFlags) CancelFlags   { return f &^ o }
func (f CancelFlags) String() string                      { return formatFlags(f, cancelFlagNames) }

// AcceptFlags go into the ioprio field of an accept entry.
type AcceptFlags uint16

const (
	AcceptMultishot AcceptFlags = 1 << iota
	AcceptDontWait
	AcceptPollFirst
)

var acceptFlagNames = []flagName[AcceptFlags]{
	{AcceptMultishot, "ACCEPT_MULTISHOT"},
	{AcceptDontWait, "ACCEPT_DONTWAIT"},
	{AcceptPollFirst, "ACCEPT_POLL_FIRST"},
}

func (f AcceptFlags) Has(o AcceptFlags) bool              { return f&o == o }
func (f AcceptFlags) Union(o AcceptFlags) AcceptFlags     { return f | o }
func (f AcceptFlags) Intersect(o AcceptFlags) AcceptFlags { return f & o }
func (f AcceptFlags) Without(o AcceptFlags) AcceptFlags   { return f &^ o }
func (f AcceptFlags) String() string                      { return formatFlags(f, acceptFlagNames) }

type SpliceFlags uint32

const (
	SpliceFdInFixed SpliceFlags = 1 << 31
)

var spliceFlagNames = []flagName[SpliceFlags]{
	{SpliceFdInFixed, "SPLICE_F_FD_IN_FIXED"},
}

func (f SpliceFlags) Has(o SpliceFlags) bool              { return f&o == o }
func (f SpliceFlags) Union(o SpliceFlags) SpliceFlags     { return f | o }
func (f SpliceFlags) Intersect(o SpliceFlags) SpliceFlags { return f & o }
func (f SpliceFlags) Without(o SpliceFlags) SpliceFlags   { return f &^ o }
func (f SpliceFlags) String() string                      { return formatFlags(f, spliceFlagNames) }
