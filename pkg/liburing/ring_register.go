//go:build linux

package liburing

import (
	"fmt"
	"runtime"
	"syscall"
	"unsafe"
)

// RegisterOp is an io_uring_register opcode.
type RegisterOp uint32

const (
	RegisterBuffers RegisterOp = iota
	UnregisterBuffers
	RegisterFiles
	UnregisterFiles
	RegisterEventFd
	UnregisterEventFd
	RegisterFilesUpdate
	RegisterEventFdAsync
	RegisterProbe
	RegisterPersonality
	UnregisterPersonality
	RegisterRestrictions
	RegisterEnableRings
	RegisterFiles2
	RegisterFilesUpdate2
	RegisterBuffers2
	RegisterBuffersUpdate
	RegisterIOWQAff
	UnregisterIOWQAff
	RegisterIOWQMaxWorkers
	RegisterRingFds
	UnregisterRingFds
	RegisterPbufRing
	UnregisterPbufRing
	RegisterSyncCancel
	RegisterFileAllocRange

	registerLast
)

var registerOpNames = [registerLast]string{
	"REGISTER_BUFFERS", "UNREGISTER_BUFFERS", "REGISTER_FILES", "UNREGISTER_FILES",
	"REGISTER_EVENTFD", "UNREGISTER_EVENTFD", "REGISTER_FILES_UPDATE", "REGISTER_EVENTFD_ASYNC",
	"REGISTER_PROBE", "REGISTER_PERSONALITY", "UNREGISTER_PERSONALITY", "REGISTER_RESTRICTIONS",
	"REGISTER_ENABLE_RINGS", "REGISTER_FILES2", "REGISTER_FILES_UPDATE2", "REGISTER_BUFFERS2",
	"REGISTER_BUFFERS_UPDATE", "REGISTER_IOWQ_AFF", "UNREGISTER_IOWQ_AFF", "REGISTER_IOWQ_MAX_WORKERS",
	"REGISTER_RING_FDS", "UNREGISTER_RING_FDS", "REGISTER_PBUF_RING", "UNREGISTER_PBUF_RING",
	"REGISTER_SYNC_CANCEL", "REGISTER_FILE_ALLOC_RANGE",
}

func (op RegisterOp) String() string {
	if op < registerLast {
		return registerOpNames[op]
	}
	return fmt.Sprintf("REGISTER(%d)", uint32(op))
}

// Register issues io_uring_register on the ring fd. arg must point at memory
// the caller keeps alive for the duration of the call.
func (ring *Ring) Register(op RegisterOp, arg unsafe.Pointer, nr uint32) (uint32, error) {
	if ring.closed {
		return 0, ErrClosed
	}
	n, err := ring.provider.register(ring.fd, op, arg, nr)
	if err != nil {
		return 0, newRegisterErr(op, err)
	}
	return n, nil
}

// RegisterFiles installs a fixed file table used by SQEFixedFile entries.
func (ring *Ring) RegisterFiles(fds []int32) error {
	if len(fds) == 0 {
		return newRegisterErr(RegisterFiles, syscall.EINVAL)
	}
	_, err := ring.Register(RegisterFiles, unsafe.Pointer(unsafe.SliceData(fds)), uint32(len(fds)))
	runtime.KeepAlive(fds)
	return err
}

func (ring *Ring) UnregisterFiles() error {
	_, err := ring.Register(UnregisterFiles, nil, 0)
	return err
}

// RegisterEventFd makes the kernel signal fd on every posted completion.
func (ring *Ring) RegisterEventFd(fd int) error {
	efd := int32(fd)
	_, err := ring.Register(RegisterEventFd, unsafe.Pointer(&efd), 1)
	runtime.KeepAlive(&efd)
	return err
}

// RegisterEventFdAsync signals fd only for completions posted asynchronously.
func (ring *Ring) RegisterEventFdAsync(fd int) error {
	efd := int32(fd)
	_, err := ring.Register(RegisterEventFdAsync, unsafe.Pointer(&efd), 1)
	runtime.KeepAlive(&efd)
	return err
}

func (ring *Ring) UnregisterEventFd() error {
	_, err := ring.Register(UnregisterEventFd, nil, 0)
	return err
}

// RegisterPersonality records the current credentials and returns an id
// usable with Slot.SetPersonality.
func (ring *Ring) RegisterPersonality() (uint16, error) {
	id, err := ring.Register(RegisterPersonality, nil, 0)
	return uint16(id), err
}

func (ring *Ring) UnregisterPersonality(id uint16) error {
	_, err := ring.Register(UnregisterPersonality, nil, uint32(id))
	return err
}

// EnableRings starts a ring created with SetupRDisabled.
func (ring *Ring) EnableRings() error {
	_, err := ring.Register(RegisterEnableRings, nil, 0)
	return err
}
