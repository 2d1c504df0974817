package kernel

import (
	"fmt"
	"strings"
)

// Version is a parsed kernel release, e.g. 6.8.0-45-generic.
type Version struct {
	Kernel int
	Major  int
	Minor  int
	Flavor string
	valid  bool
}

func (v Version) Valid() bool {
	return v.valid
}

// GTE reports whether v is at least kernel.major.minor.
// An invalid version is never GTE anything.
func (v Version) GTE(kernel, major, minor int) bool {
	if !v.valid {
		return false
	}
	return Compare(v, Version{Kernel: kernel, Major: major, Minor: minor}) >= 0
}

func (v Version) String() string {
	if !v.valid {
		return "unknown"
	}
	return fmt.Sprintf("%d.%d.%d%s", v.Kernel, v.Major, v.Minor, v.Flavor)
}

func Compare(a, b Version) int {
	if a.Kernel > b.Kernel {
		return 1
	} else if a.Kernel < b.Kernel {
		return -1
	}

	if a.Major > b.Major {
		return 1
	} else if a.Major < b.Major {
		return -1
	}

	if a.Minor > b.Minor {
		return 1
	} else if a.Minor < b.Minor {
		return -1
	}

	return 0
}

// New builds a valid version without a flavor.
func New(kernel, major, minor int) Version {
	return Version{Kernel: kernel, Major: major, Minor: minor, valid: true}
}

// Parse reads a uname release string.
func Parse(release string) (Version, error) {
	release = strings.TrimSpace(release)
	var (
		v       Version
		partial string
	)
	parsed, _ := fmt.Sscanf(release, "%d.%d%s", &v.Kernel, &v.Major, &partial)
	if parsed < 2 {
		return Version{}, fmt.Errorf("cannot parse kernel version: %q", release)
	}
	if partial != "" {
		if n, _ := fmt.Sscanf(partial, ".%d%s", &v.Minor, &v.Flavor); n < 1 {
			v.Flavor = partial
		}
	}
	v.valid = true
	return v, nil
}

// Check reports whether the running kernel is at least kernel.major.minor.
func Check(kernel, major, minor int) bool {
	return Get().GTE(kernel, major, minor)
}
