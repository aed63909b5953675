package ringconsumer

import (
	"context"
	"log/slog"
	"net/netip"

	"github.com/maheshbhatiya73/secrds/internal/events"
	"github.com/maheshbhatiya73/secrds/internal/metrics"
)

// bufferSlots and bufferSize mirror spec §4.B's "10 buffers x 1 KiB each is
// sufficient" — a small reusable pool per goroutine instead of an
// allocation per record, the same trade-off the teacher's cmd/probe/main.go
// eventPool makes with sync.Pool.
const (
	bufferSlots = 10
	bufferSize  = 1024
)

// Sink is where decoded events go. Consumer does not know whether a sink
// will alert, block, or do nothing — that is the Detector/Reactor's
// business (spec §9: avoid cyclic ownership between pipeline stages).
type Sink interface {
	SSH(addr netip.Addr, eventType uint8)
	TCP(addr netip.Addr, eventType uint8)
}

// Consumer owns the per-(ring, CPU) goroutines of spec §4.B.
type Consumer struct {
	opener  Opener
	sink    Sink
	metrics *metrics.Metrics
}

// New builds a Consumer against an already-open Opener (real or fake).
func New(opener Opener, sink Sink, m *metrics.Metrics) *Consumer {
	return &Consumer{opener: opener, sink: sink, metrics: m}
}

// Run launches one goroutine per (ring, CPU) and blocks until ctx is
// cancelled. A Reader's Read() blocks until its owner calls Close() — it
// does not observe ctx — so Run, not the loop itself, closes every reader
// once ctx.Done() fires; this is the same shape as cmd/probe/main.go, where
// rd.Close() is deferred at the top level and unblocks the read loop from
// outside rather than from within it.
func (c *Consumer) Run(ctx context.Context) {
	n := c.opener.NumCPU()
	done := make(chan struct{}, 2*n)
	var readers []Reader

	for cpu := 0; cpu < n; cpu++ {
		cpu := cpu
		rd, err := c.opener.OpenSSH(cpu)
		if err != nil {
			slog.Error("ring open failed", "ring", "ssh", "cpu", cpu, "error", err)
		} else {
			readers = append(readers, rd)
			go c.loop(ctx, "ssh", cpu, rd, c.parseSSH, done)
		}

		rd, err = c.opener.OpenTCP(cpu)
		if err != nil {
			slog.Error("ring open failed", "ring", "tcp", "cpu", cpu, "error", err)
		} else {
			readers = append(readers, rd)
			go c.loop(ctx, "tcp", cpu, rd, c.parseTCP, done)
		}
	}

	<-ctx.Done()
	for _, rd := range readers {
		rd.Close()
	}
	for range readers {
		<-done
	}
}

func (c *Consumer) parseSSH(buf []byte) {
	ev, err := events.ParseSSHEvent(buf)
	if err != nil {
		slog.Warn("dropping malformed ssh record", "error", err)
		return
	}
	c.sink.SSH(events.AddrFromV4NetworkOrder(ev.IP), ev.EventType)
}

func (c *Consumer) parseTCP(buf []byte) {
	ev, err := events.ParseTCPEvent(buf)
	if err != nil {
		slog.Warn("dropping malformed tcp record", "error", err)
		return
	}
	c.sink.TCP(events.AddrFromV4NetworkOrder(ev.SrcIP), ev.EventType)
}

// loop is the cooperative task owning one reader. It requests a batch of up
// to bufferSlots records, parses or discards each per spec §4.B, and
// continues on transient read errors without tearing the task down (spec
// §7, RingReadError). Records already read when the reader is closed are
// still dispatched before the task returns. Every record it drops, whether for a transient read
// error or for being shorter than the declared record size, increments
// RecordsDropped so the admin surface can see loss without reading logs.
func (c *Consumer) loop(ctx context.Context, ring string, cpu int, rd Reader, parse func([]byte), done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	buffers := make([][]byte, bufferSlots)
	for i := range buffers {
		buffers[i] = make([]byte, 0, bufferSize)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		filled := 0
		closed := false
		for filled < bufferSlots {
			raw, err := rd.Read()
			if err != nil {
				if err == ErrClosed {
					closed = true
					break
				}
				slog.Warn("ring read error", "ring", ring, "cpu", cpu, "error", err)
				c.metrics.RecordsDropped.WithLabelValues(ring, "read_error").Inc()
				break
			}
			buf := buffers[filled][:0]
			buf = append(buf, raw...)
			buffers[filled] = buf
			filled++
		}

		for i := 0; i < filled; i++ {
			b := buffers[i]
			switch {
			case ring == "ssh" && len(b) < 24, ring == "tcp" && len(b) < 24:
				slog.Warn("dropping short ring record", "ring", ring, "cpu", cpu, "len", len(b))
				c.metrics.RecordsDropped.WithLabelValues(ring, "short_record").Inc()
			default:
				parse(b)
			}
		}

		if closed {
			return
		}

		if filled == 0 {
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}
