package pipeline

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshbhatiya73/secrds/internal/config"
	"github.com/maheshbhatiya73/secrds/internal/detector"
	"github.com/maheshbhatiya73/secrds/internal/events"
	"github.com/maheshbhatiya73/secrds/internal/metrics"
)

// testMetrics is shared across this file's test functions: promauto
// registers every metric against the default Prometheus registry, and a
// second metrics.New() call in the same process would panic on duplicate
// registration.
var testMetrics = metrics.New()

type recordingReactor struct {
	calls []struct {
		addr      netip.Addr
		kind      events.ThreatKind
		count     uint64
		eventType uint8
	}
}

func (r *recordingReactor) React(addr netip.Addr, kind events.ThreatKind, count uint64, eventType uint8) {
	r.calls = append(r.calls, struct {
		addr      netip.Addr
		kind      events.ThreatKind
		count     uint64
		eventType uint8
	}{addr, kind, count, eventType})
}

func TestPipeline_SSH_ReactsOnlyOnExceeded(t *testing.T) {
	d := detector.New(config.DetectionConfig{SSHWindowSeconds: 60, SSHThreshold: 2})
	r := &recordingReactor{}
	p := New(d, r, testMetrics)

	addr := netip.MustParseAddr("10.0.0.1")
	p.SSH(addr, 1)
	p.SSH(addr, 1)
	assert.Empty(t, r.calls)

	p.SSH(addr, 1)
	require.Len(t, r.calls, 1)
	assert.Equal(t, events.KindSSHBruteForce, r.calls[0].kind)
	assert.Equal(t, uint64(3), r.calls[0].count)
}

func TestPipeline_TCP_LabelsFloodSeparatelyFromScan(t *testing.T) {
	d := detector.New(config.DetectionConfig{TCPWindowSeconds: 10, TCPThreshold: 1})
	r := &recordingReactor{}
	p := New(d, r, testMetrics)

	addr := netip.MustParseAddr("192.168.0.5")
	p.TCP(addr, 1)
	p.TCP(addr, 1)
	require.Len(t, r.calls, 1)
	assert.Equal(t, events.KindTCPPortScan, r.calls[0].kind)

	addr2 := netip.MustParseAddr("192.168.0.6")
	p.TCP(addr2, tcpFloodEventType)
	p.TCP(addr2, tcpFloodEventType)
	require.Len(t, r.calls, 2)
	assert.Equal(t, events.KindTCPFlood, r.calls[1].kind)
}
