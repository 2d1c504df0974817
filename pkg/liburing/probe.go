//go:build linux

package liburing

import (
	"runtime"
	"unsafe"
)

type ProbeOp struct {
	Op    Op
	Res   uint8
	Flags uint16
	Res2  uint32
}

const (
	probeOpsSize     = 256
	probeOpSupported = 1 << 0
	probeRingEntries = 2
)

// Probe is struct io_uring_probe: which opcodes the running kernel knows.
type Probe struct {
	LastOp Op
	OpsLen uint8
	Res    uint16
	Res2   [3]uint32
	Ops    [probeOpsSize]ProbeOp
}

func (p *Probe) IsSupported(op Op) bool {
	for i := uint8(0); i < p.OpsLen; i++ {
		if p.Ops[i].Op != op {
			continue
		}
		return p.Ops[i].Flags&probeOpSupported != 0
	}
	return false
}

// Supported lists the opcodes the kernel reported as usable.
func (p *Probe) Supported() []Op {
	ops := make([]Op, 0, p.OpsLen)
	for i := uint8(0); i < p.OpsLen; i++ {
		if p.Ops[i].Flags&probeOpSupported != 0 {
			ops = append(ops, p.Ops[i].Op)
		}
	}
	return ops
}

func (ring *Ring) Probe() (*Probe, error) {
	probe := &Probe{}
	_, err := ring.Register(RegisterProbe, unsafe.Pointer(probe), probeOpsSize)
	runtime.KeepAlive(probe)
	if err != nil {
		return nil, err
	}
	return probe, nil
}

// GetProbe probes the kernel through a short-lived two-entry ring.
func GetProbe() (*Probe, error) {
	ring, err := New(WithEntries(probeRingEntries))
	if err != nil {
		return nil, err
	}
	probe, probeErr := ring.Probe()
	_ = ring.Close()
	if probeErr != nil {
		return nil, probeErr
	}
	return probe, nil
}
