package reactor

import (
	"context"
	"net/netip"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshbhatiya73/secrds/internal/events"
	"github.com/maheshbhatiya73/secrds/internal/metrics"
)

// testMetrics is shared across this file's test functions: promauto
// registers every metric against the default Prometheus registry, and a
// second metrics.New() call in the same process would panic on duplicate
// registration.
var testMetrics = metrics.New()

type fakeStore struct {
	mu           sync.Mutex
	alerts       []events.ThreatAlert
	blockedIPs   []string
	storeErr     error
}

func (f *fakeStore) StoreAlert(ctx context.Context, alert events.ThreatAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return f.storeErr
}

func (f *fakeStore) AddBlockedIP(ctx context.Context, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockedIPs = append(f.blockedIPs, ip)
	return nil
}

func (f *fakeStore) Close() error { return nil }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []events.ThreatAlert
	err  error
}

func (f *fakeNotifier) SendAlert(alert events.ThreatAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, alert)
	return f.err
}

type fakeFirewall struct {
	mu      sync.Mutex
	blocked []string
	err     error
}

func (f *fakeFirewall) Block(ctx context.Context, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked = append(f.blocked, ip)
	return f.err
}

type fakeBlocker struct {
	mu      sync.Mutex
	blocked []netip.Addr
}

func (f *fakeBlocker) Block(addr netip.Addr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked = append(f.blocked, addr)
}

func (f *fakeBlocker) BlockedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blocked)
}

type fakeLive struct {
	mu        sync.Mutex
	broadcast []events.ThreatAlert
}

func (f *fakeLive) Broadcast(alert events.ThreatAlert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast = append(f.broadcast, alert)
}

func testAddr(t *testing.T) netip.Addr {
	a, err := netip.ParseAddr("10.0.0.1")
	require.NoError(t, err)
	return a
}

func TestReact_BlockingEnabled_BlocksAndCallsFirewall(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	fw := &fakeFirewall{}
	blocker := &fakeBlocker{}
	live := &fakeLive{}

	r := New(Config{
		Store:            store,
		Notifier:         notifier,
		Firewall:         fw,
		Blocker:          blocker,
		Live:             live,
		Metrics:          testMetrics,
		EnableIPBlocking: true,
	})

	addr := testAddr(t)
	r.React(addr, events.KindSSHBruteForce, 6, 1)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, events.KindSSHBruteForce, store.alerts[0].Kind)
	assert.Equal(t, uint64(6), store.alerts[0].Count)

	require.Len(t, notifier.sent, 1)
	require.Len(t, live.broadcast, 1)
	require.Len(t, blocker.blocked, 1)
	assert.Equal(t, addr, blocker.blocked[0])
	require.Len(t, fw.blocked, 1)
	assert.Equal(t, "10.0.0.1", fw.blocked[0])
	require.Len(t, store.blockedIPs, 1)
	assert.Equal(t, float64(blocker.BlockedCount()), testutil.ToFloat64(testMetrics.BlockedTotal))
}

func TestReact_BlockingDisabled_NeverTouchesFirewall(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	fw := &fakeFirewall{}
	blocker := &fakeBlocker{}

	r := New(Config{
		Store:            store,
		Notifier:         notifier,
		Firewall:         fw,
		Blocker:          blocker,
		Metrics:          testMetrics,
		EnableIPBlocking: false,
	})

	r.React(testAddr(t), events.KindTCPPortScan, 101, 0)

	assert.Empty(t, fw.blocked)
	assert.Empty(t, blocker.blocked)
	assert.Len(t, notifier.sent, 1)
}

// A storage failure must not prevent notification, blocking, or the live
// broadcast: dashboard and firewall reaction do not depend on storage
// health.
func TestReact_StorageFailureDoesNotBlockOtherSteps(t *testing.T) {
	store := &fakeStore{storeErr: assertError}
	notifier := &fakeNotifier{}
	fw := &fakeFirewall{}
	blocker := &fakeBlocker{}
	live := &fakeLive{}

	r := New(Config{
		Store:            store,
		Notifier:         notifier,
		Firewall:         fw,
		Blocker:          blocker,
		Live:             live,
		Metrics:          testMetrics,
		EnableIPBlocking: true,
	})

	r.React(testAddr(t), events.KindSSHBruteForce, 9, 1)

	assert.Len(t, notifier.sent, 1)
	assert.Len(t, live.broadcast, 1)
	assert.Len(t, blocker.blocked, 1)
	assert.Len(t, fw.blocked, 1)
}

// A firewall failure must not undo the in-memory block: idempotence lives
// at the Detector level, not the firewall call site.
func TestReact_FirewallFailureLeavesInMemoryBlockStanding(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	fw := &fakeFirewall{err: assertError}
	blocker := &fakeBlocker{}

	r := New(Config{
		Store:            store,
		Notifier:         notifier,
		Firewall:         fw,
		Blocker:          blocker,
		Metrics:          testMetrics,
		EnableIPBlocking: true,
	})

	r.React(testAddr(t), events.KindSSHBruteForce, 6, 1)

	require.Len(t, blocker.blocked, 1)
	assert.Equal(t, testAddr(t), blocker.blocked[0])
}

var assertError = errDummy{}

type errDummy struct{}

func (errDummy) Error() string { return "dummy failure" }
