//go:build linux

// Package metrics exports ring activity as Prometheus metrics.
package metrics

import (
	"sync"

	"github.com/brickingsoft/chakra/pkg/liburing"
	"github.com/prometheus/client_golang/prometheus"
)

// Source is anything reporting ring statistics, usually a *liburing.Ring.
type Source interface {
	Stats() liburing.Stats
}

const ringLabel = "ring"

type stat struct {
	desc  *prometheus.Desc
	value func(liburing.Stats) uint64
}

// Collector samples Stats of every added ring at scrape time. Stats only
// reads atomic counters, so scrapes never touch the ring mappings.
type Collector struct {
	mu    sync.RWMutex
	rings map[string]Source
	stats []stat
}

func NewCollector(namespace string) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ring", name),
			help,
			[]string{ringLabel},
			nil,
		)
	}
	return &Collector{
		rings: make(map[string]Source),
		stats: []stat{
			{desc("submitted_total", "Submission entries published to the kernel."), func(s liburing.Stats) uint64 { return s.Submitted }},
			{desc("enters_total", "io_uring_enter calls."), func(s liburing.Stats) uint64 { return s.Enters }},
			{desc("wakeups_total", "SQPOLL thread wakeups."), func(s liburing.Stats) uint64 { return s.Wakeups }},
			{desc("completed_total", "Completions harvested."), func(s liburing.Stats) uint64 { return s.Completed }},
			{desc("dropped_total", "Completions the kernel dropped on overflow."), func(s liburing.Stats) uint64 { return s.Dropped }},
			{desc("backlogged_total", "Harvests that found completions backlogged in the kernel."), func(s liburing.Stats) uint64 { return s.Backlogged }},
			{desc("cq_overflow_total", "Kernel completion overflow counter."), func(s liburing.Stats) uint64 { return s.Overflow }},
			{desc("sq_dropped_total", "Invalid submission entries skipped by the kernel."), func(s liburing.Stats) uint64 { return s.SQDropped }},
		},
	}
}

// Add starts exporting src under name, replacing any source with that name.
func (c *Collector) Add(name string, src Source) {
	c.mu.Lock()
	c.rings[name] = src
	c.mu.Unlock()
}

func (c *Collector) Remove(name string) {
	c.mu.Lock()
	delete(c.rings, name)
	c.mu.Unlock()
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.stats {
		ch <- s.desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, src := range c.rings {
		snapshot := src.Stats()
		for _, s := range c.stats {
			ch <- prometheus.MustNewConstMetric(s.desc, prometheus.CounterValue, float64(s.value(snapshot)), name)
		}
	}
}
