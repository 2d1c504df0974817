// Command uringprobe creates an io_uring ring, prints what the kernel
// negotiated and runs a NOP round trip.
package main

import (
	"flag"
	"log/slog"
	"os"
)

func main() {
	var (
		config  = flag.String("config", "", "YAML ring config")
		listen  = flag.String("metrics", "", "serve ring metrics on this address, e.g. :9400")
		cpu     = flag.Int("cpu", -1, "pin the submitting thread to this CPU")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *config, *listen, *cpu); err != nil {
		logger.Error("uringprobe failed", slog.Any("err", err))
		os.Exit(1)
	}
}
