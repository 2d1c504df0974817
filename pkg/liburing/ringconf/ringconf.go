//go:build linux

// Package ringconf loads ring settings from YAML and turns them into
// liburing options.
package ringconf

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/brickingsoft/chakra/pkg/liburing"
	"github.com/brickingsoft/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.Define("invalid ring config")

// Config mirrors the ring options. Zero fields keep the liburing defaults.
//
//	entries: 256
//	cq_entries: 1024
//	flags: [sqpoll, clamp]
//	sq_thread_cpu: 2
//	sq_thread_idle: 2s
type Config struct {
	Entries      uint32   `yaml:"entries"`
	CQEntries    uint32   `yaml:"cq_entries"`
	Flags        []string `yaml:"flags"`
	SQThreadCPU  *uint32  `yaml:"sq_thread_cpu"`
	SQThreadIdle string   `yaml:"sq_thread_idle"`
}

func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, invalid(err, "open")
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a single YAML document. Unknown keys are rejected.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, invalid(err, "read")
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, invalid(err, "decode")
	}
	return cfg, nil
}

// Options converts the config. Flag names and the idle duration are
// checked here; flag combinations are left to liburing.New.
func (c *Config) Options() ([]liburing.Option, error) {
	var options []liburing.Option
	if c.Entries != 0 {
		options = append(options, liburing.WithEntries(c.Entries))
	}
	if c.CQEntries != 0 {
		options = append(options, liburing.WithCQEntries(c.CQEntries))
	}
	if len(c.Flags) > 0 {
		flags, err := liburing.ParseSetupFlagList(c.Flags)
		if err != nil {
			return nil, invalid(err, "flags")
		}
		options = append(options, liburing.WithFlags(flags))
	}
	if c.SQThreadCPU != nil {
		options = append(options, liburing.WithSQThreadCPU(*c.SQThreadCPU))
	}
	if c.SQThreadIdle != "" {
		idle, err := time.ParseDuration(c.SQThreadIdle)
		if err != nil || idle < 0 {
			if err == nil {
				err = errors.New("negative duration")
			}
			return nil, invalid(err, "sq_thread_idle")
		}
		options = append(options, liburing.WithSQThreadIdle(idle))
	}
	return options, nil
}

func invalid(cause error, field string) error {
	return errors.From(
		ErrInvalidConfig,
		errors.WithMeta("pkg", "ringconf"),
		errors.WithMeta("field", field),
		errors.WithWrap(cause),
	)
}

func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
