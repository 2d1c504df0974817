//go:build !linux

package kernel

// Get returns an invalid version off linux.
func Get() Version {
	return Version{}
}
