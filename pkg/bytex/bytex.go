// Package bytex holds byte helpers for ring callers.
package bytex

import (
	"strconv"
	"strings"
)

const (
	KiB = 1 << (10 * (iota + 1))
	MiB
	GiB
	TiB
)

var units = []struct {
	size uint64
	name string
}{
	{TiB, "TiB"},
	{GiB, "GiB"},
	{MiB, "MiB"},
	{KiB, "KiB"},
}

// FormatSize renders n with the largest binary unit that keeps it >= 1,
// e.g. 4096 as "4KiB" and 1536 as "1.5KiB".
func FormatSize(n uint64) string {
	for _, u := range units {
		if n >= u.size {
			v := strconv.FormatFloat(float64(n)/float64(u.size), 'f', 1, 64)
			return strings.TrimSuffix(v, ".0") + u.name
		}
	}
	return strconv.FormatUint(n, 10) + "B"
}

// CString copies s into a NUL-terminated buffer, the form Openat expects.
func CString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}
