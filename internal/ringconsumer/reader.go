// Package ringconsumer implements spec §4.B: one consumer goroutine per
// (ring, CPU), parsing fixed-layout records and forwarding decoded events to
// the Detector. Grounded on
// original_source/ebpf-detector-agent/src/event_processor.rs's per-CPU
// task-per-buffer loop, and on the teacher's `eventPool sync.Pool` reuse
// idiom in cmd/probe/main.go.
package ringconsumer

import (
	"errors"
	"io"
)

// ErrClosed is returned by a Reader once it has been closed, signalling the
// owning goroutine to stop without logging further errors.
var ErrClosed = errors.New("ring reader closed")

// Reader is what one (ring, CPU) consumer goroutine owns: a source of raw
// record bytes. The production implementation wraps a cilium/ebpf/ringbuf
// *ringbuf.Reader over one inner per-CPU map (see BPFOpener); tests use an
// in-memory fakeReader instead, matching the teacher's own
// cmd/probe/bpf_mock.go approach of standing in for kernel objects this
// environment cannot compile.
type Reader interface {
	io.Closer
	// Read blocks for the next raw sample. A transient failure is
	// returned as a plain error (spec §7 RingReadError: logged, loop
	// continues); ErrClosed signals permanent shutdown.
	Read() ([]byte, error)
}

// Opener yields one Reader per CPU for each of the two rings, the per-CPU
// fan-out spec §4.B and §9 require ("do not attempt a single multiplexed
// reader").
type Opener interface {
	OpenSSH(cpuIndex int) (Reader, error)
	OpenTCP(cpuIndex int) (Reader, error)
	NumCPU() int
}
