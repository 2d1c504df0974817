//go:build linux

package liburing

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestParams_WireLayout(t *testing.T) {
	require.Equal(t, uintptr(120), paramsSize)
	require.Equal(t, uintptr(40), unsafe.Sizeof(SQRingOffsets{}))
	require.Equal(t, uintptr(40), unsafe.Sizeof(CQRingOffsets{}))
	require.Equal(t, uintptr(40), unsafe.Offsetof(params{}.sqOff))
	require.Equal(t, uintptr(80), unsafe.Offsetof(params{}.cqOff))
}

func TestParams_WireRoundTrip(t *testing.T) {
	w := params{
		sqEntries:    64,
		cqEntries:    128,
		flags:        uint32(SetupSQPoll | SetupSQAff | SetupCQSize),
		sqThreadCPU:  3,
		sqThreadIdle: 2500,
		features:     uint32(FeatSingleMmap | FeatNoDrop | FeatCQESkip),
		wqFd:         9,
		sqOff:        SQRingOffsets{Head: 0, Tail: 64, RingMask: 256, RingEntries: 264, Flags: 276, Dropped: 272, Array: 2368},
		cqOff:        CQRingOffsets{Head: 128, Tail: 192, RingMask: 260, RingEntries: 268, Overflow: 284, CQEs: 320, Flags: 280},
	}
	p := paramsFromWire(&w)
	require.Equal(t, 2500*time.Millisecond, p.SQThreadIdle)
	require.Equal(t, SetupSQPoll|SetupSQAff|SetupCQSize, p.Flags)
	require.True(t, p.SingleMmap())
	require.True(t, p.NoDrop())
	require.False(t, p.SubmitStable())
	require.True(t, p.HasFeature(FeatCQESkip))
	require.Equal(t, w, p.wire())
	require.Equal(t, p, paramsFromWire(&[]params{p.wire()}[0]))
}

func TestParams_IdleMilliseconds(t *testing.T) {
	require.Zero(t, idleMillis(0))
	require.Equal(t, uint32(1), idleMillis(500*time.Microsecond))
	require.Equal(t, uint32(2), idleMillis(1500*time.Microsecond))
	require.Equal(t, uint32(3000), idleMillis(3*time.Second))

	p := Params{SQThreadIdle: 1500 * time.Microsecond}
	require.Equal(t, 2*time.Millisecond, paramsFromWire(&[]params{p.wire()}[0]).SQThreadIdle)

	p.SQThreadIdle = 7 * time.Millisecond
	require.Equal(t, p, paramsFromWire(&[]params{p.wire()}[0]))

	opts := Options{}
	require.NoError(t, WithSQThreadIdle(200*time.Microsecond)(&opts))
	require.Equal(t, time.Millisecond, opts.SQThreadIdle)
	opts.Flags = SetupSQPoll
	require.Equal(t, uint32(1), opts.params().sqThreadIdle)
}

func TestOptions_Params(t *testing.T) {
	opts := Options{
		Entries:      8,
		CQEntries:    32,
		Flags:        SetupSQPoll | SetupCQSize,
		SQThreadIdle: 1500 * time.Millisecond,
	}
	p := opts.params()
	require.Zero(t, p.sqEntries)
	require.Equal(t, uint32(32), p.cqEntries)
	require.Equal(t, uint32(SetupSQPoll|SetupCQSize), p.flags)
	require.Equal(t, uint32(1500), p.sqThreadIdle)
}
