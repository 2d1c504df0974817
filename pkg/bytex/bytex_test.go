package bytex_test

import (
	"testing"

	"github.com/brickingsoft/chakra/pkg/bytex"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	require.Equal(t, "0B", bytex.FormatSize(0))
	require.Equal(t, "1023B", bytex.FormatSize(1023))
	require.Equal(t, "4KiB", bytex.FormatSize(4096))
	require.Equal(t, "1.5KiB", bytex.FormatSize(1536))
	require.Equal(t, "2MiB", bytex.FormatSize(2*bytex.MiB))
	require.Equal(t, "3TiB", bytex.FormatSize(3*bytex.TiB))
}

func TestCString(t *testing.T) {
	b := bytex.CString("/tmp")
	require.Equal(t, []byte("/tmp\x00"), b)
	require.Equal(t, []byte{0}, bytex.CString(""))
}
