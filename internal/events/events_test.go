package events

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// P4: a buffer shorter than sizeof(record) never yields a parsed event.
func TestParseSSHEvent_ShortBufferRejected(t *testing.T) {
	_, err := ParseSSHEvent(make([]byte, 12))
	require.Error(t, err)
	var sizeErr *RecordSizeError
	assert.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, SSHEventSize, sizeErr.Want)
	assert.Equal(t, 12, sizeErr.Got)
}

func TestParseTCPEvent_ShortBufferRejected(t *testing.T) {
	_, err := ParseTCPEvent(make([]byte, 12))
	require.Error(t, err)
	var sizeErr *RecordSizeError
	assert.ErrorAs(t, err, &sizeErr)
}

// P5: round-tripping a well-formed record preserves every declared field.
func TestParseSSHEvent_FieldFidelity(t *testing.T) {
	buf := make([]byte, SSHEventSize)
	binary.LittleEndian.PutUint32(buf[0:4], 0x0A000001)
	binary.LittleEndian.PutUint16(buf[4:6], 22)
	binary.LittleEndian.PutUint32(buf[8:12], 4242)
	buf[12] = 1
	binary.LittleEndian.PutUint64(buf[16:24], 123456789)

	ev, err := ParseSSHEvent(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0A000001), ev.IP)
	assert.Equal(t, uint16(22), ev.Port)
	assert.Equal(t, uint32(4242), ev.PID)
	assert.Equal(t, uint8(1), ev.EventType)
	assert.Equal(t, uint64(123456789), ev.Timestamp)
}

func TestParseTCPEvent_FieldFidelity(t *testing.T) {
	buf := make([]byte, TCPEventSize)
	binary.LittleEndian.PutUint32(buf[0:4], 0xC0A80005)
	binary.LittleEndian.PutUint32(buf[4:8], 0xC0A80001)
	binary.LittleEndian.PutUint16(buf[8:10], 54321)
	binary.LittleEndian.PutUint16(buf[10:12], 443)
	buf[12] = 2
	binary.LittleEndian.PutUint64(buf[16:24], 987654321)

	ev, err := ParseTCPEvent(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xC0A80005), ev.SrcIP)
	assert.Equal(t, uint32(0xC0A80001), ev.DstIP)
	assert.Equal(t, uint16(54321), ev.SrcPort)
	assert.Equal(t, uint16(443), ev.DstPort)
	assert.Equal(t, uint8(2), ev.EventType)
	assert.Equal(t, uint64(987654321), ev.Timestamp)
}

// Trailing bytes beyond the declared size must be ignored, not rejected.
func TestParseSSHEvent_TrailingBytesIgnored(t *testing.T) {
	buf := make([]byte, SSHEventSize+8)
	binary.LittleEndian.PutUint32(buf[0:4], 0x0A000002)
	ev, err := ParseSSHEvent(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0A000002), ev.IP)
}

func TestAddrFromV4NetworkOrder(t *testing.T) {
	a := AddrFromV4NetworkOrder(0x0A000001)
	assert.Equal(t, "10.0.0.1", a.String())

	b := AddrFromV4NetworkOrder(0xC0A80005)
	assert.Equal(t, "192.168.0.5", b.String())
}
