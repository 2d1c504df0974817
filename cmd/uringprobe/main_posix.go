//go:build !linux

package main

import (
	"log/slog"

	"github.com/brickingsoft/errors"
)

func run(*slog.Logger, string, string, int) error {
	return errors.New("io_uring requires linux")
}
