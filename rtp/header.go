// Package rtp implements the C4 RTP packetization and channel-interleaved
// ring buffer: header pack/unpack per RFC 3550/3551, ptime<->sample-count
// math, a multichannel ring buffer with per-channel write/read cursors, and
// a packet builder, per spec §3/§4.3.
//
// Grounded on original_source/src/core/rtp.c and aes67/rtp.h for the wire
// layout, cursor semantics and the documented approximation in
// ptime<->nsamples conversion; on other_examples' rtp.go files (onitake-
// restreamer, sipgox) for idiomatic Go header struct shape; and on
// pion/randutil for SSRC/sequence-number randomization in the packetizer.
package rtp

import "encoding/binary"

const (
	// HeaderSize is the fixed 12-byte header length (no CSRC identifiers).
	HeaderSize = 12

	version2 = 0b10000000

	status1VersionMask   = 0b11000000
	status1PaddingBit    = 0b00100000
	status1ExtensionBit  = 0b00010000
	status1CSRCCountMask = 0b00001111

	status2MarkerBit       = 0b10000000
	status2PayloadTypeMask = 0b01111111
)

// Header is the logical content of an RTP packet header (RFC 3550 §5.1).
// CSRC identifiers, if any, are carried separately since their count
// varies and they are rarely used by this profile.
type Header struct {
	Version     uint8 // always 2 on the wire
	Padding     bool
	Extension   bool
	CSRCCount   uint8
	Marker      bool
	PayloadType uint8
	SeqNo       uint16
	Timestamp   uint32
	SSRC        uint32
}

// PayloadOffset returns the byte offset of the payload within a packet
// whose header carries the given CSRC count (§4.3: 12 + 4*CC).
func PayloadOffset(csrcCount uint8) int {
	return HeaderSize + 4*int(csrcCount)
}

// DecodeHeader parses the fixed 12-byte header plus any CSRC identifiers
// from the front of buf. buf must be at least PayloadOffset(cc) bytes,
// where cc is the CSRC count read from the first status byte.
func DecodeHeader(buf []byte) (Header, []uint32, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, ErrShortPacket
	}
	status1 := buf[0]
	status2 := buf[1]

	h := Header{
		Version:     (status1 & status1VersionMask) >> 6,
		Padding:     status1&status1PaddingBit != 0,
		Extension:   status1&status1ExtensionBit != 0,
		CSRCCount:   status1 & status1CSRCCountMask,
		Marker:      status2&status2MarkerBit != 0,
		PayloadType: status2 & status2PayloadTypeMask,
		SeqNo:       binary.BigEndian.Uint16(buf[2:4]),
		Timestamp:   binary.BigEndian.Uint32(buf[4:8]),
		SSRC:        binary.BigEndian.Uint32(buf[8:12]),
	}

	end := PayloadOffset(h.CSRCCount)
	if len(buf) < end {
		return Header{}, nil, ErrShortPacket
	}
	var csrcs []uint32
	if h.CSRCCount > 0 {
		csrcs = make([]uint32, h.CSRCCount)
		for i := range csrcs {
			off := HeaderSize + 4*i
			csrcs[i] = binary.BigEndian.Uint32(buf[off : off+4])
		}
	}
	return h, csrcs, nil
}

// EncodeHeader writes h (plus csrcs) into the front of buf, which must be
// at least PayloadOffset(len(csrcs)) bytes. The two status bytes are
// assembled from h's version, padding, extension, CSRC-count, marker and
// payload-type fields (CSRC count taken from len(csrcs)); seqno, timestamp and ssrc are written big-endian, matching the
// host<->network conversions of §4.3.
func EncodeHeader(buf []byte, h Header, csrcs []uint32) (int, error) {
	cc := len(csrcs)
	n := PayloadOffset(uint8(cc))
	if len(buf) < n {
		return 0, ErrShortBuffer
	}

	status1 := (h.Version << 6) & status1VersionMask
	if h.Padding {
		status1 |= status1PaddingBit
	}
	if h.Extension {
		status1 |= status1ExtensionBit
	}
	status1 |= uint8(cc) & status1CSRCCountMask

	status2 := h.PayloadType & status2PayloadTypeMask
	if h.Marker {
		status2 |= status2MarkerBit
	}

	buf[0] = status1
	buf[1] = status2
	binary.BigEndian.PutUint16(buf[2:4], h.SeqNo)
	binary.BigEndian.PutUint32(buf[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(buf[8:12], h.SSRC)
	for i, c := range csrcs {
		off := HeaderSize + 4*i
		binary.BigEndian.PutUint32(buf[off:off+4], c)
	}
	return n, nil
}
