//go:build linux

package metrics_test

import (
	"strings"
	"testing"

	"github.com/brickingsoft/chakra/pkg/liburing"
	"github.com/brickingsoft/chakra/pkg/liburing/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type staticSource liburing.Stats

func (s staticSource) Stats() liburing.Stats {
	return liburing.Stats(s)
}

func TestCollector(t *testing.T) {
	c := metrics.NewCollector("chakra")
	c.Add("main", staticSource{Submitted: 12, Completed: 10, Dropped: 2, Overflow: 2})

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(c))

	expected := `
# HELP chakra_ring_completed_total Completions harvested.
# TYPE chakra_ring_completed_total counter
chakra_ring_completed_total{ring="main"} 10
# HELP chakra_ring_dropped_total Completions the kernel dropped on overflow.
# TYPE chakra_ring_dropped_total counter
chakra_ring_dropped_total{ring="main"} 2
# HELP chakra_ring_submitted_total Submission entries published to the kernel.
# TYPE chakra_ring_submitted_total counter
chakra_ring_submitted_total{ring="main"} 12
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"chakra_ring_completed_total", "chakra_ring_dropped_total", "chakra_ring_submitted_total"))
	require.Equal(t, 8, testutil.CollectAndCount(c))

	c.Add("aux", staticSource{})
	require.Equal(t, 16, testutil.CollectAndCount(c))

	c.Remove("main")
	c.Remove("aux")
	require.Zero(t, testutil.CollectAndCount(c))
}
