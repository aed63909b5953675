// Package events declares the kernel→user-space wire layouts (spec §3, §6)
// and the alert shape the Detector and Reactor exchange. Both record types
// are fixed, tightly-packed, little-endian structures with natural 8-byte
// alignment on the producing side; the parsers here read the raw bytes by
// explicit offset rather than reinterpreting the buffer through `unsafe`,
// per the design note in spec §9 that prefers a safe, layout-checked view
// where the host language offers one.
package events

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"
)

// SSHEventSize and TCPEventSize are the declared record sizes. A buffer
// shorter than these is malformed per spec §3 and must be dropped, not
// reinterpreted; a longer buffer is read only for its declared prefix.
const (
	SSHEventSize = 24
	TCPEventSize = 24
)

// SSHEvent is the user-space view of the kernel's `struct ssh_event`:
//
//	offset 0  u32 ip            (network byte order)
//	offset 4  u16 port
//	offset 6  [2]byte pad
//	offset 8  u32 pid
//	offset 12 u8  event_type
//	offset 13 [3]byte pad
//	offset 16 u64 timestamp     (monotonic nanoseconds)
type SSHEvent struct {
	IP        uint32
	Port      uint16
	PID       uint32
	EventType uint8
	Timestamp uint64 // monotonic nanoseconds at kernel observation
}

// TCPEvent is the user-space view of the kernel's `struct tcp_event`:
//
//	offset 0  u32 src_ip
//	offset 4  u32 dst_ip
//	offset 8  u16 src_port
//	offset 10 u16 dst_port
//	offset 12 u8  event_type
//	offset 13 [3]byte pad
//	offset 16 u64 timestamp
type TCPEvent struct {
	SrcIP     uint32
	DstIP     uint32
	SrcPort   uint16
	DstPort   uint16
	EventType uint8
	Timestamp uint64
}

// RecordSizeError reports a ring buffer sample shorter than the declared
// record size (spec §7, RecordSizeError).
type RecordSizeError struct {
	Want, Got int
}

func (e *RecordSizeError) Error() string {
	return fmt.Sprintf("record too short: want >= %d bytes, got %d", e.Want, e.Got)
}

// ParseSSHEvent reads exactly SSHEventSize bytes from the front of buf.
// Trailing bytes are ignored, per spec §3/§4.B; a short buffer is reported
// as RecordSizeError and never partially decoded.
func ParseSSHEvent(buf []byte) (SSHEvent, error) {
	if len(buf) < SSHEventSize {
		return SSHEvent{}, &RecordSizeError{Want: SSHEventSize, Got: len(buf)}
	}
	return SSHEvent{
		IP:        binary.LittleEndian.Uint32(buf[0:4]),
		Port:      binary.LittleEndian.Uint16(buf[4:6]),
		PID:       binary.LittleEndian.Uint32(buf[8:12]),
		EventType: buf[12],
		Timestamp: binary.LittleEndian.Uint64(buf[16:24]),
	}, nil
}

// ParseTCPEvent reads exactly TCPEventSize bytes from the front of buf.
func ParseTCPEvent(buf []byte) (TCPEvent, error) {
	if len(buf) < TCPEventSize {
		return TCPEvent{}, &RecordSizeError{Want: TCPEventSize, Got: len(buf)}
	}
	return TCPEvent{
		SrcIP:     binary.LittleEndian.Uint32(buf[0:4]),
		DstIP:     binary.LittleEndian.Uint32(buf[4:8]),
		SrcPort:   binary.LittleEndian.Uint16(buf[8:10]),
		DstPort:   binary.LittleEndian.Uint16(buf[10:12]),
		EventType: buf[12],
		Timestamp: binary.LittleEndian.Uint64(buf[16:24]),
	}, nil
}

// DecodeError reports a source address that could not be decoded from its
// wire representation (spec §4.C, DecodeError). IPv4 never fails; it exists
// so the Detector's contract has somewhere to put a failure that a future
// v6-capable record kind could produce.
type DecodeError struct {
	Raw uint32
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode source address from 0x%08x", e.Raw)
}

// AddrFromV4NetworkOrder converts a network-byte-order 32-bit IPv4 address,
// as carried in SSHEvent.IP / TCPEvent.SrcIP, into a netip.Addr.
func AddrFromV4NetworkOrder(raw uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], raw)
	return netip.AddrFrom4(b)
}

// ThreatKind classifies the alert by which observer fired (spec §3).
type ThreatKind string

const (
	KindSSHBruteForce ThreatKind = "ssh-brute-force"
	KindTCPPortScan   ThreatKind = "tcp-port-scan"
	KindTCPFlood      ThreatKind = "tcp-flood"
)

// ThreatAlert is what the Detector's Exceeded decision turns into for the
// Reactor. Address admits IPv6 per spec §9's open question, even though no
// current record layout produces one.
type ThreatAlert struct {
	ID        string
	Address   netip.Addr
	Kind      ThreatKind
	Count     uint64
	EventType uint8
	At        time.Time
}
