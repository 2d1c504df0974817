//go:build linux

package kernel

import (
	"bytes"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	version     = Version{}
	versionOnce = sync.Once{}
)

// Get returns the running kernel version, read once via uname.
func Get() Version {
	versionOnce.Do(func() {
		uts := &unix.Utsname{}
		if err := unix.Uname(uts); err != nil {
			return
		}
		end := bytes.IndexByte(uts.Release[:], 0)
		if end < 0 {
			end = len(uts.Release)
		}
		if v, err := Parse(string(uts.Release[:end])); err == nil {
			version = v
		}
	})
	return version
}
