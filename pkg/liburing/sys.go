//go:build linux

package liburing

import (
	"syscall"
	"unsafe"

	"github.com/brickingsoft/chakra/pkg/kernel"
	"golang.org/x/sys/unix"
)

// provider is the narrow set of kernel entry points the ring needs.
// Errors are raw syscall.Errno values; the ring wraps them.
type provider interface {
	setup(entries uint32, p *params) (int, error)
	enter(fd int, toSubmit uint32, minComplete uint32, flags EnterFlags) (uint32, error)
	register(fd int, op RegisterOp, arg unsafe.Pointer, nr uint32) (uint32, error)
	mmap(fd int, offset int64, length int) ([]byte, error)
	munmap(b []byte) error
	close(fd int) error
	version() kernel.Version
}

const (
	nSig      = 65
	szDivider = 8
)

type sysProvider struct{}

func (sysProvider) setup(entries uint32, p *params) (int, error) {
	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, uintptr(entries), uintptr(unsafe.Pointer(p)), 0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

func (sysProvider) enter(fd int, toSubmit uint32, minComplete uint32, flags EnterFlags) (uint32, error) {
	n, _, errno := unix.Syscall6(
		unix.SYS_IO_URING_ENTER,
		uintptr(fd),
		uintptr(toSubmit),
		uintptr(minComplete),
		uintptr(flags),
		0,
		nSig/szDivider,
	)
	if errno != 0 {
		return 0, errno
	}
	return uint32(n), nil
}

func (sysProvider) register(fd int, op RegisterOp, arg unsafe.Pointer, nr uint32) (uint32, error) {
	n, _, errno := unix.Syscall6(
		unix.SYS_IO_URING_REGISTER,
		uintptr(fd),
		uintptr(op),
		uintptr(arg),
		uintptr(nr),
		0,
		0,
	)
	if errno != 0 {
		return 0, errno
	}
	return uint32(n), nil
}

func (sysProvider) mmap(fd int, offset int64, length int) ([]byte, error) {
	b, err := unix.Mmap(fd, offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, errnoOf(err)
	}
	return b, nil
}

func (sysProvider) munmap(b []byte) error {
	return errnoOf(unix.Munmap(b))
}

func (sysProvider) close(fd int) error {
	return errnoOf(unix.Close(fd))
}

func (sysProvider) version() kernel.Version {
	return kernel.Get()
}

func errnoOf(err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	return err
}
