//go:build linux

package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/brickingsoft/chakra/pkg/bytex"
	"github.com/brickingsoft/chakra/pkg/kernel"
	"github.com/brickingsoft/chakra/pkg/liburing"
	"github.com/brickingsoft/chakra/pkg/liburing/metrics"
	"github.com/brickingsoft/chakra/pkg/liburing/ringconf"
	"github.com/brickingsoft/chakra/pkg/process"
	"github.com/brickingsoft/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const nopUserData = 0x6e6f70

func run(logger *slog.Logger, configPath, listen string, cpu int) error {
	cfg := &ringconf.Config{}
	if configPath != "" {
		var err error
		if cfg, err = ringconf.LoadFile(configPath); err != nil {
			return err
		}
	}
	if cfg.SQThreadCPU != nil {
		allowed, err := process.CPUAllowed(int(*cfg.SQThreadCPU))
		if err != nil {
			return err
		}
		if !allowed {
			logger.Warn("sq thread cpu outside the affinity mask", slog.Uint64("cpu", uint64(*cfg.SQThreadCPU)))
		}
	}
	options, err := cfg.Options()
	if err != nil {
		return err
	}
	options = append(options, liburing.WithLogger(logger))

	if cpu < 0 {
		return probeRing(logger, options, listen)
	}
	// the ring stays on the pinned goroutine for its whole life
	return process.RunPinned(cpu, func() error {
		return probeRing(logger, options, listen)
	})
}

func probeRing(logger *slog.Logger, options []liburing.Option, listen string) error {
	ring, err := liburing.New(options...)
	if err != nil {
		return err
	}
	defer ring.Close()

	printParams(os.Stdout, ring)

	probe, err := ring.Probe()
	if err != nil {
		logger.Warn("probe failed", slog.Any("err", err))
	} else {
		fmt.Fprintf(os.Stdout, "supported ops:   %v\n", probe.Supported())
	}

	if err = roundTrip(ring); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "nop round trip:  ok\n")

	if listen == "" {
		return nil
	}
	return serveMetrics(logger, ring, listen)
}

func printParams(w io.Writer, ring *liburing.Ring) {
	p := ring.Params()
	mapping := "split"
	if p.SingleMmap() {
		mapping = "single"
	}
	fmt.Fprintf(w, "kernel:          %s\n", kernel.Get())
	fmt.Fprintf(w, "sq entries:      %d\n", p.SQEntries)
	fmt.Fprintf(w, "cq entries:      %d\n", p.CQEntries)
	fmt.Fprintf(w, "flags:           %s\n", p.Flags)
	fmt.Fprintf(w, "features:        %s\n", p.Features)
	fmt.Fprintf(w, "mapping:         %s (%s)\n", mapping, bytex.FormatSize(ring.MappedBytes()))
	fmt.Fprintf(w, "sq offsets:      %+v\n", p.SQOff)
	fmt.Fprintf(w, "cq offsets:      %+v\n", p.CQOff)
	if p.Flags.Has(liburing.SetupSQPoll) {
		fmt.Fprintf(w, "sq thread idle:  %s\n", p.SQThreadIdle)
	}
}

func roundTrip(ring *liburing.Ring) error {
	slot, err := ring.NextSQE()
	if err != nil {
		return err
	}
	if err = slot.Prepare(liburing.Nop{}, nopUserData); err != nil {
		return err
	}
	if _, err = ring.Submit(1); err != nil {
		return err
	}
	events, delivery := ring.HarvestN(1)
	if len(events) != 1 || events[0].UserData != nopUserData {
		return errors.New("nop completion missing", errors.WithMeta("degraded", fmt.Sprint(delivery.Degraded())))
	}
	return events[0].Err()
}

func serveMetrics(logger *slog.Logger, ring *liburing.Ring, listen string) error {
	collector := metrics.NewCollector("uringprobe")
	collector.Add("probe", ring)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: listen, Handler: mux}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-done
		_ = srv.Close()
	}()

	logger.Info("serving metrics", slog.String("addr", listen))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
