//go:build linux

package liburing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupFlags_String(t *testing.T) {
	require.Equal(t, "0", SetupFlags(0).String())
	require.Equal(t, "IORING_SETUP_SQPOLL|IORING_SETUP_CLAMP", (SetupSQPoll | SetupClamp).String())
	require.Equal(t, "IORING_SETUP_IOPOLL|0x80000000", (SetupIOPoll | SetupFlags(1<<31)).String())
	require.Equal(t, "SINGLE_MMAP|NODROP", (FeatSingleMmap | FeatNoDrop).String())
	require.Equal(t, "IO_LINK|CQE_SKIP_SUCCESS", (SQEIOLink | SQECQESkipSuccess).String())
	require.Equal(t, "GETEVENTS|SQ_WAKEUP", (EnterGetEvents | EnterSQWakeup).String())
	require.Equal(t, "NEED_WAKEUP|CQ_OVERFLOW", (SQNeedWakeup | SQCQOverflow).String())
	require.Equal(t, "F_BUFFER|F_MORE", (CQEFBuffer | CQEFMore | CQEFlags(7<<cqeBufferShift)).String())
	require.Equal(t, "EVENTFD_DISABLED", CQEventFdDisabled.String())
	require.Equal(t, "TIMEOUT_ABS|TIMEOUT_MULTISHOT", (TimeoutAbs | TimeoutMultishot).String())
	require.Equal(t, "ASYNC_CANCEL_ALL|ASYNC_CANCEL_FD", (AsyncCancelAll | AsyncCancelFd).String())
	require.Equal(t, "ACCEPT_MULTISHOT", AcceptMultishot.String())
	require.Equal(t, "SPLICE_F_FD_IN_FIXED", SpliceFdInFixed.String())
}

func TestSetupFlags_Set(t *testing.T) {
	f := SetupSQPoll.Union(SetupSQAff)
	require.True(t, f.Has(SetupSQPoll))
	require.True(t, f.Has(SetupSQPoll|SetupSQAff))
	require.False(t, f.Has(SetupSQPoll|SetupClamp))
	require.Equal(t, SetupSQAff, f.Intersect(SetupSQAff|SetupClamp))
	require.Equal(t, SetupSQPoll, f.Without(SetupSQAff))
	require.Equal(t, FeatNoDrop, (FeatNoDrop | FeatFastPoll).Without(FeatFastPoll))
	require.Equal(t, PollAddMulti|PollAddLevel, PollAddMulti.Union(PollAddLevel))
	require.True(t, (AsyncCancelFd | AsyncCancelAll).Has(AsyncCancelFd))
	require.Equal(t, SQNeedWakeup, (SQNeedWakeup | SQTaskRun).Intersect(SQNeedWakeup|SQCQOverflow))
}

func TestParseSetupFlags(t *testing.T) {
	require.Equal(t, SetupSQPoll, ParseSetupFlags("IORING_SETUP_SQPOLL"))
	require.Equal(t, SetupSQPoll, ParseSetupFlags(" sqpoll "))
	require.Equal(t, SetupCoopTaskRun, ParseSetupFlags("coop_taskrun"))
	require.Equal(t, SetupFlags(0), ParseSetupFlags("bogus"))
	require.Equal(t, SetupFlags(0), ParseSetupFlags(""))

	flags, err := ParseSetupFlagList([]string{"clamp", "IORING_SETUP_SUBMIT_ALL"})
	require.NoError(t, err)
	require.Equal(t, SetupClamp|SetupSubmitAll, flags)

	_, err = ParseSetupFlagList([]string{"clamp", "bogus"})
	require.Error(t, err)
}

func TestOp_String(t *testing.T) {
	require.Equal(t, "NOP", OpNop.String())
	require.Equal(t, "READ", OpRead.String())
	require.Equal(t, "LISTEN", OpListen.String())
	require.Equal(t, "OP(200)", Op(200).String())
	require.Equal(t, "REGISTER_PROBE", RegisterProbe.String())
}
