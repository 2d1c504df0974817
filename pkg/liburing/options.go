//go:build linux

package liburing

import (
	"io"
	"log/slog"
	"syscall"
	"time"

	"github.com/brickingsoft/chakra/pkg/kernel"
	"github.com/brickingsoft/errors"
)

const (
	MaxEntries          = 32768
	MaxCQEntries        = 2 * MaxEntries
	DefaultEntries      = MaxEntries / 2
	DefaultSQThreadIdle = 15 * time.Second
)

type Options struct {
	Entries      uint32
	CQEntries    uint32
	Flags        SetupFlags
	SQThreadCPU  uint32
	SQThreadIdle time.Duration
	WQFd         uint32
	Logger       *slog.Logger
	provider     provider
}

type Option func(*Options) error

func WithEntries(entries uint32) Option {
	return func(o *Options) error {
		if entries < 1 {
			entries = DefaultEntries
		}
		o.Entries = entries
		return nil
	}
}

// WithCQEntries sizes the completion queue and sets SetupCQSize.
func WithCQEntries(entries uint32) Option {
	return func(o *Options) error {
		if entries == 0 {
			return errors.New("cq entries must be positive", errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
		}
		o.CQEntries = entries
		o.Flags |= SetupCQSize
		return nil
	}
}

// WithFlags
// see https://manpages.debian.org/unstable/liburing-dev/io_uring_setup.2.en.html
func WithFlags(flags SetupFlags) Option {
	return func(o *Options) error {
		o.Flags |= flags
		return nil
	}
}

// WithSQThreadCPU pins the SQPOLL thread and sets SetupSQAff.
func WithSQThreadCPU(cpu uint32) Option {
	return func(o *Options) error {
		o.SQThreadCPU = cpu
		o.Flags |= SetupSQAff
		return nil
	}
}

// WithSQThreadIdle sets how long the SQPOLL thread spins before sleeping.
// The kernel counts whole milliseconds, so idle is rounded up to one.
func WithSQThreadIdle(idle time.Duration) Option {
	return func(o *Options) error {
		if idle < 0 {
			return errors.New("sq thread idle must not be negative", errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
		}
		o.SQThreadIdle = time.Duration(idleMillis(idle)) * time.Millisecond
		return nil
	}
}

func WithAttachWQFd(fd uint32) Option {
	return func(o *Options) error {
		if fd == 0 {
			return errors.New("invalid wqfd", errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
		}
		o.WQFd = fd
		o.Flags |= SetupAttachWQ
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}

// setupFlagSince is the first kernel release that knows each setup flag.
var setupFlagSince = []struct {
	flag  SetupFlags
	major int
	minor int
}{
	{SetupIOPoll, 5, 1},
	{SetupSQPoll, 5, 1},
	{SetupSQAff, 5, 1},
	{SetupCQSize, 5, 5},
	{SetupClamp, 5, 6},
	{SetupAttachWQ, 5, 6},
	{SetupRDisabled, 5, 10},
	{SetupSubmitAll, 5, 18},
	{SetupCoopTaskRun, 5, 19},
	{SetupTaskRunFlag, 5, 19},
	{SetupSQE128, 5, 19},
	{SetupCQE32, 5, 19},
	{SetupSingleIssuer, 6, 0},
	{SetupDeferTaskRun, 6, 1},
	{SetupNoMmap, 6, 5},
	{SetupRegisteredFdOnly, 6, 5},
	{SetupNoSQArray, 6, 6},
	{SetupHybridIOPoll, 6, 13},
}

// Validate checks the options against the ring rules and the given kernel
// version, rounding entry counts when SetupClamp allows it. An invalid
// version skips the per-release flag check.
func (o *Options) Validate(version kernel.Version) error {
	flags := o.Flags

	// rings over caller memory are not mapped by this package
	if unsupported := flags.Intersect(SetupNoMmap | SetupRegisteredFdOnly | SetupNoSQArray); unsupported != 0 {
		return newFlagErr(unsupported, "ring layout not supported")
	}
	if version.Valid() {
		for _, since := range setupFlagSince {
			if flags.Has(since.flag) && !version.GTE(since.major, since.minor, 0) {
				return newFlagErr(since.flag, "kernel too old")
			}
		}
	}
	if flags.Has(SetupSQAff) && !flags.Has(SetupSQPoll) {
		return newFlagErr(SetupSQAff, "requires IORING_SETUP_SQPOLL")
	}
	if flags.Has(SetupAttachWQ) && o.WQFd == 0 {
		return newFlagErr(SetupAttachWQ, "requires a wq fd")
	}
	if flags.Has(SetupDeferTaskRun) && !flags.Has(SetupSingleIssuer) {
		return newFlagErr(SetupDeferTaskRun, "requires IORING_SETUP_SINGLE_ISSUER")
	}
	if flags.Has(SetupTaskRunFlag) && flags.Intersect(SetupCoopTaskRun|SetupDeferTaskRun) == 0 {
		return newFlagErr(SetupTaskRunFlag, "requires IORING_SETUP_COOP_TASKRUN or IORING_SETUP_DEFER_TASKRUN")
	}
	if flags.Has(SetupHybridIOPoll) && !flags.Has(SetupIOPoll) {
		return newFlagErr(SetupHybridIOPoll, "requires IORING_SETUP_IOPOLL")
	}

	clamp := flags.Has(SetupClamp)

	if o.Entries == 0 {
		return newSetupReasonErr(syscall.EINVAL, "entries must be positive")
	}
	if o.Entries > MaxEntries {
		if !clamp {
			return newSetupReasonErr(syscall.EINVAL, "entries over limit")
		}
		o.Entries = MaxEntries
	}
	if !isPow2(o.Entries) {
		if !clamp {
			return newSetupReasonErr(syscall.EINVAL, "entries not a power of two")
		}
		o.Entries = RoundupPow2(o.Entries)
	}

	if flags.Has(SetupCQSize) {
		if o.CQEntries == 0 {
			return newSetupReasonErr(syscall.EINVAL, "cq entries must be positive")
		}
		if o.CQEntries > MaxCQEntries {
			if !clamp {
				return newSetupReasonErr(syscall.EINVAL, "cq entries over limit")
			}
			o.CQEntries = MaxCQEntries
		}
		o.CQEntries = RoundupPow2(o.CQEntries)
		if o.CQEntries < o.Entries {
			return newSetupReasonErr(syscall.EINVAL, "cq entries below sq entries")
		}
	} else {
		o.CQEntries = 0
	}

	if flags.Has(SetupSQPoll) {
		if o.SQThreadIdle == 0 {
			o.SQThreadIdle = DefaultSQThreadIdle
		}
	} else {
		o.SQThreadIdle = 0
	}
	if !flags.Has(SetupSQAff) {
		o.SQThreadCPU = 0
	}
	if !flags.Has(SetupAttachWQ) {
		o.WQFd = 0
	}
	return nil
}

// params builds the io_uring_setup input block.
func (o *Options) params() params {
	return params{
		cqEntries:    o.CQEntries,
		flags:        uint32(o.Flags),
		sqThreadCPU:  o.SQThreadCPU,
		sqThreadIdle: idleMillis(o.SQThreadIdle),
		wqFd:         o.WQFd,
	}
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
