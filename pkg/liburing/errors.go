//go:build linux

package liburing

import (
	"syscall"

	"github.com/brickingsoft/errors"
)

var (
	ErrSetupFailed    = errors.Define("setup failed")
	ErrMappingFailed  = errors.Define("mapping failed")
	ErrQueueFull      = errors.Define("submission queue full")
	ErrEnterFailed    = errors.Define("enter failed")
	ErrInterrupted    = errors.Define("enter interrupted")
	ErrRegisterFailed = errors.Define("register failed")
	ErrClosed         = errors.Define("ring closed")
	ErrSlotExpired    = errors.Define("submission slot expired")
	ErrInvalidRequest = errors.Define("invalid request")
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "liburing"
)

const (
	errMetaOpKey       = "op"
	errMetaOpSetup     = "setup"
	errMetaOpMmap      = "mmap"
	errMetaOpEnter     = "enter"
	errMetaOpRegister  = "register"
	errMetaOpPrepare   = "prepare"
	errMetaOpClose     = "close"
	errMetaRegionKey   = "region"
	errMetaOpcodeKey   = "opcode"
	errMetaFlagKey     = "flag"
	errMetaReasonKey   = "reason"
	errMetaRegisterKey = "register_op"
)

func newSetupErr(cause error) error {
	return errors.From(
		ErrSetupFailed,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpSetup),
		errors.WithWrap(cause),
	)
}

func newSetupReasonErr(cause error, reason string) error {
	return errors.From(
		ErrSetupFailed,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpSetup),
		errors.WithMeta(errMetaReasonKey, reason),
		errors.WithWrap(cause),
	)
}

func newFlagErr(flag SetupFlags, reason string) error {
	return errors.From(
		ErrSetupFailed,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpSetup),
		errors.WithMeta(errMetaFlagKey, flag.String()),
		errors.WithMeta(errMetaReasonKey, reason),
		errors.WithWrap(syscall.EINVAL),
	)
}

func newMappingErr(region string, cause error) error {
	return errors.From(
		ErrMappingFailed,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpMmap),
		errors.WithMeta(errMetaRegionKey, region),
		errors.WithWrap(cause),
	)
}

func newEnterErr(cause error) error {
	if errno, ok := cause.(syscall.Errno); ok && errno == syscall.EINTR {
		return errors.From(
			ErrInterrupted,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, errMetaOpEnter),
			errors.WithWrap(cause),
		)
	}
	return errors.From(
		ErrEnterFailed,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpEnter),
		errors.WithWrap(cause),
	)
}

func newRegisterErr(op RegisterOp, cause error) error {
	return errors.From(
		ErrRegisterFailed,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpRegister),
		errors.WithMeta(errMetaRegisterKey, op.String()),
		errors.WithWrap(cause),
	)
}

func newInvalidRequestErr(op Op, reason string) error {
	return errors.From(
		ErrInvalidRequest,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, errMetaOpPrepare),
		errors.WithMeta(errMetaOpcodeKey, op.String()),
		errors.WithMeta(errMetaReasonKey, reason),
	)
}

func IsSetupFailed(err error) bool {
	return errors.Is(err, ErrSetupFailed)
}

func IsMappingFailed(err error) bool {
	return errors.Is(err, ErrMappingFailed)
}

func IsQueueFull(err error) bool {
	return errors.Is(err, ErrQueueFull)
}

func IsEnterFailed(err error) bool {
	return errors.Is(err, ErrEnterFailed)
}

func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted)
}

func IsRegisterFailed(err error) bool {
	return errors.Is(err, ErrRegisterFailed)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

func IsSlotExpired(err error) bool {
	return errors.Is(err, ErrSlotExpired)
}

func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}
