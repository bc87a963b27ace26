package rtp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tschiemer/aes67-core/rtp"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := rtp.Header{
		Version: 2, Marker: true, PayloadType: 96,
		SeqNo: 1000, Timestamp: 48000, SSRC: 0xdeadbeef,
	}
	buf := make([]byte, rtp.HeaderSize)
	n, err := rtp.EncodeHeader(buf, h, nil)
	require.NoError(t, err)
	assert.Equal(t, rtp.HeaderSize, n)
	assert.Equal(t, byte(0x80), buf[0]) // version 2, CC=0

	got, csrcs, err := rtp.DecodeHeader(buf)
	require.NoError(t, err)
	assert.Empty(t, csrcs)
	assert.Equal(t, h.Version, got.Version)
	assert.Equal(t, h.Marker, got.Marker)
	assert.Equal(t, h.PayloadType, got.PayloadType)
	assert.Equal(t, h.SeqNo, got.SeqNo)
	assert.Equal(t, h.Timestamp, got.Timestamp)
	assert.Equal(t, h.SSRC, got.SSRC)
}

func TestHeaderWithCSRC(t *testing.T) {
	h := rtp.Header{Version: 2, PayloadType: 96}
	buf := make([]byte, rtp.PayloadOffset(2))
	n, err := rtp.EncodeHeader(buf, h, []uint32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, rtp.HeaderSize+8, n)

	got, csrcs, err := rtp.DecodeHeader(buf)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.CSRCCount)
	assert.Equal(t, []uint32{1, 2}, csrcs)
}

func TestDecodeHeaderShortPacket(t *testing.T) {
	_, _, err := rtp.DecodeHeader(make([]byte, 4))
	assert.ErrorIs(t, err, rtp.ErrShortPacket)
}

func TestNSamplesRounding(t *testing.T) {
	assert.EqualValues(t, 48, rtp.NSamples(1000, 48000))
	assert.EqualValues(t, 16, rtp.NSamples(330, 48000))
}

func TestPtimeApproximation(t *testing.T) {
	assert.EqualValues(t, 1000, rtp.Ptime(48, 48000))
}

// S5 from spec §8: a 156-byte packet, CC=0, 2 channels, 3-byte samples.
func TestPacketSamples(t *testing.T) {
	n := rtp.PacketSamples(156, 0, 3, 2)
	assert.Equal(t, 24, n)
}

func TestPack(t *testing.T) {
	samples := []byte{1, 2, 3, 4}
	buf := make([]byte, rtp.HeaderSize+len(samples))
	n, err := rtp.Pack(buf, 96, 42, 48000, 0x1234, samples)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)

	h, _, err := rtp.DecodeHeader(buf)
	require.NoError(t, err)
	assert.EqualValues(t, 96, h.PayloadType)
	assert.EqualValues(t, 42, h.SeqNo)
	assert.EqualValues(t, 48000, h.Timestamp)
	assert.EqualValues(t, 0x1234, h.SSRC)
	assert.Equal(t, samples, buf[rtp.HeaderSize:])
}

func TestBufferInsertAllCommonCursor(t *testing.T) {
	b := rtp.NewBuffer(2, 2, 8)
	frame := []byte{1, 0, 2, 0} // ch0=1, ch1=2 (2-byte little samples, just bytes here)
	require.NoError(t, b.InsertAll(frame, 1))
	assert.EqualValues(t, 1, b.InCursor(0))
	assert.EqualValues(t, 1, b.InCursor(1))
}

func TestBufferInsertAllWrapsCapacity(t *testing.T) {
	b := rtp.NewBuffer(1, 1, 4)
	require.NoError(t, b.InsertAll([]byte{1, 2, 3}, 3))
	assert.EqualValues(t, 3, b.InCursor(0))
	require.NoError(t, b.InsertAll([]byte{4, 5}, 2))
	assert.EqualValues(t, 1, b.InCursor(0)) // (3+2) mod 4
}

func TestBufferInsertChOnlyAdvancesThatChannel(t *testing.T) {
	b := rtp.NewBuffer(2, 1, 8)
	require.NoError(t, b.InsertCh(0, []byte{9, 9, 9}, 1, 3))
	assert.EqualValues(t, 3, b.InCursor(0))
	assert.EqualValues(t, 0, b.InCursor(1))
}

func TestBufferInsertAllAdoptsMaxCursorAfterDivergence(t *testing.T) {
	b := rtp.NewBuffer(2, 1, 16)
	require.NoError(t, b.InsertCh(0, []byte{1, 2, 3, 4, 5}, 1, 5))
	require.NoError(t, b.InsertCh(1, []byte{1, 2}, 1, 2))
	// cursors now diverge: ch0=5, ch1=2
	require.NoError(t, b.InsertAll([]byte{9, 9}, 1))
	assert.EqualValues(t, 6, b.InCursor(0))
	assert.EqualValues(t, 6, b.InCursor(1))
}

func TestComputePtime(t *testing.T) {
	before := rtp.Header{SeqNo: 10, Timestamp: 0}
	after := rtp.Header{SeqNo: 11, Timestamp: 48}
	assert.EqualValues(t, 1000000, rtp.ComputePtime(before, after, 48))
}

func TestComputePtimeNonMonotonicIsZero(t *testing.T) {
	before := rtp.Header{SeqNo: 11}
	after := rtp.Header{SeqNo: 10}
	assert.EqualValues(t, 0, rtp.ComputePtime(before, after, 48000))
}

func TestPacketizerAdvances(t *testing.T) {
	p, err := rtp.NewPacketizer(96)
	require.NoError(t, err)
	startSeq := p.SeqNo
	buf := make([]byte, rtp.HeaderSize+4)
	_, err = p.Next(buf, []byte{1, 2, 3, 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, startSeq+1, p.SeqNo)
	assert.EqualValues(t, 2, p.Timestamp)
}
