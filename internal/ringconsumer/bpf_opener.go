package ringconsumer

import (
	"errors"

	"github.com/cilium/ebpf/ringbuf"

	"github.com/maheshbhatiya73/secrds/internal/probeloader"
)

// BPFOpener adapts probeloader.Rings (per-CPU inner ringbuf maps) to the
// Opener contract this package consumes.
type BPFOpener struct {
	rings *probeloader.Rings
}

// NewBPFOpener wraps the Probe Loader's output for the Ring Consumer.
func NewBPFOpener(rings *probeloader.Rings) *BPFOpener {
	return &BPFOpener{rings: rings}
}

func (o *BPFOpener) NumCPU() int { return len(o.rings.SSH) }

func (o *BPFOpener) OpenSSH(cpuIndex int) (Reader, error) {
	rd, err := ringbuf.NewReader(o.rings.SSH[cpuIndex])
	if err != nil {
		return nil, err
	}
	return &bpfReader{rd: rd}, nil
}

func (o *BPFOpener) OpenTCP(cpuIndex int) (Reader, error) {
	rd, err := ringbuf.NewReader(o.rings.TCP[cpuIndex])
	if err != nil {
		return nil, err
	}
	return &bpfReader{rd: rd}, nil
}

// bpfReader adapts *ringbuf.Reader to the Reader interface, translating the
// library's own closed sentinel to ours.
type bpfReader struct {
	rd *ringbuf.Reader
}

func (r *bpfReader) Read() ([]byte, error) {
	record, err := r.rd.Read()
	if err != nil {
		if errors.Is(err, ringbuf.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return record.RawSample, nil
}

func (r *bpfReader) Close() error { return r.rd.Close() }
