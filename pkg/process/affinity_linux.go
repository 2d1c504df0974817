//go:build linux

// Package process pins threads to CPUs for ring submitters and SQPOLL threads.
package process

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

// AllowedCPUs lists the CPUs the calling thread may run on.
func AllowedCPUs() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, errors.New("sched_getaffinity failed", errors.WithMeta("pkg", "process"), errors.WithWrap(err))
	}
	cpus := make([]int, 0, set.Count())
	for i := 0; i < int(unsafe.Sizeof(set))*8; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}

// CPUAllowed reports whether cpu is in the calling thread's affinity mask.
// An SQPOLL thread pinned outside it fails io_uring_setup with EINVAL.
func CPUAllowed(cpu int) (bool, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return false, errors.New("sched_getaffinity failed", errors.WithMeta("pkg", "process"), errors.WithWrap(err))
	}
	return set.IsSet(cpu), nil
}

// PinCurrentThread locks the goroutine to its OS thread and binds that
// thread to cpu. The lock is never released: the goroutine must exit while
// locked so the runtime retires the thread with its narrowed mask.
func PinCurrentThread(cpu int) error {
	if cpu < 0 {
		return errors.New("negative cpu", errors.WithMeta("pkg", "process"), errors.WithMeta("cpu", fmt.Sprint(cpu)))
	}
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return errors.New(
			"sched_setaffinity failed",
			errors.WithMeta("pkg", "process"),
			errors.WithMeta("cpu", fmt.Sprint(cpu)),
			errors.WithWrap(err),
		)
	}
	return nil
}

// RunPinned runs fn on a fresh goroutine pinned to cpu and waits for it.
// The pinned thread is discarded afterwards; the caller's thread keeps its mask.
func RunPinned(cpu int, fn func() error) error {
	errs := make(chan error, 1)
	go func() {
		if err := PinCurrentThread(cpu); err != nil {
			errs <- err
			return
		}
		errs <- fn()
	}()
	return <-errs
}
