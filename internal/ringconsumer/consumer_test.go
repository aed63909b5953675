package ringconsumer

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshbhatiya73/secrds/internal/metrics"
)

// testMetrics is shared across this file's test functions: promauto
// registers every metric against the default Prometheus registry, and a
// second metrics.New() call in the same process would panic on duplicate
// registration.
var testMetrics = metrics.New()

// fakeReader stands in for a kernel ring this environment cannot compile
// against, the same role bpf_mock.go plays for eBPF program objects in the
// teacher repo: it hands back a fixed queue of raw records, then blocks
// until closed.
type fakeReader struct {
	records [][]byte
	idx     int
	closed  chan struct{}
	mu      sync.Mutex
}

func newFakeReader(records [][]byte) *fakeReader {
	return &fakeReader{records: records, closed: make(chan struct{})}
}

func (r *fakeReader) Read() ([]byte, error) {
	r.mu.Lock()
	if r.idx < len(r.records) {
		rec := r.records[r.idx]
		r.idx++
		r.mu.Unlock()
		return rec, nil
	}
	r.mu.Unlock()

	<-r.closed
	return nil, ErrClosed
}

func (r *fakeReader) Close() error {
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}
	return nil
}

type fakeOpener struct {
	ssh, tcp *fakeReader
}

func (o *fakeOpener) NumCPU() int { return 1 }
func (o *fakeOpener) OpenSSH(cpu int) (Reader, error) { return o.ssh, nil }
func (o *fakeOpener) OpenTCP(cpu int) (Reader, error) { return o.tcp, nil }

type recordingSink struct {
	mu   sync.Mutex
	ssh  []netip.Addr
	tcp  []netip.Addr
}

func (s *recordingSink) SSH(addr netip.Addr, eventType uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ssh = append(s.ssh, addr)
}

func (s *recordingSink) TCP(addr netip.Addr, eventType uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tcp = append(s.tcp, addr)
}

func wellFormedSSHRecord(ip uint32) []byte {
	buf := make([]byte, 24)
	buf[0] = byte(ip)
	buf[1] = byte(ip >> 8)
	buf[2] = byte(ip >> 16)
	buf[3] = byte(ip >> 24)
	return buf
}

// scenario 6: a 12-byte buffer on the SSH ring never reaches the Sink.
func TestConsumer_MalformedRecordDropped(t *testing.T) {
	sink := &recordingSink{}
	opener := &fakeOpener{
		ssh: newFakeReader([][]byte{make([]byte, 12)}),
		tcp: newFakeReader(nil),
	}
	c := New(opener, sink, testMetrics)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Empty(t, sink.ssh)
	assert.Equal(t, float64(1), testutil.ToFloat64(testMetrics.RecordsDropped.WithLabelValues("ssh", "short_record")))
}

func TestConsumer_WellFormedRecordReachesSink(t *testing.T) {
	sink := &recordingSink{}
	opener := &fakeOpener{
		ssh: newFakeReader([][]byte{wellFormedSSHRecord(0x0A000001)}),
		tcp: newFakeReader(nil),
	}
	c := New(opener, sink, testMetrics)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.ssh, 1)
	assert.Equal(t, "10.0.0.1", sink.ssh[0].String())
}
