package rtp

import "math"

// Pack writes a CC=0 RTP header (version 2, no padding/extension/marker)
// followed by the sample bytes into buf, and returns the total length. buf
// must be at least HeaderSize+len(samples) bytes (§4.3: "RTP packer").
func Pack(buf []byte, payloadType uint8, seqNo uint16, timestamp, ssrc uint32, samples []byte) (int, error) {
	need := HeaderSize + len(samples)
	if len(buf) < need {
		return 0, ErrShortBuffer
	}
	h := Header{
		Version:     2,
		PayloadType: payloadType,
		SeqNo:       seqNo,
		Timestamp:   timestamp,
		SSRC:        ssrc,
	}
	n, err := EncodeHeader(buf, h, nil)
	if err != nil {
		return 0, err
	}
	copy(buf[n:need], samples)
	return need, nil
}

// ComputePtime derives a ptime (microseconds) from the sequence number and
// timestamp difference of two packets known to be strictly ordered
// (before.SeqNo < after.SeqNo, handling 16-bit wraparound is the caller's
// responsibility same as §4.3's note that this only wraps safely within
// ~60s at a 250ms ptime). Returns 0 if the sequence numbers are not
// strictly increasing or the rate is zero.
func ComputePtime(before, after Header, sampleRateHz uint32) uint32 {
	if !seqLess(before.SeqNo, after.SeqNo) || sampleRateHz == 0 {
		return 0
	}
	seqDiff := uint32(after.SeqNo - before.SeqNo)

	var tDiff uint32
	if before.Timestamp < after.Timestamp {
		tDiff = after.Timestamp - before.Timestamp
	} else {
		tDiff = (math.MaxUint32 - before.Timestamp) + after.Timestamp + 1
	}

	return (1000000 * tDiff) / seqDiff / sampleRateHz
}

// seqLess reports whether a is before b treating a single forward pass
// with no wraparound (mirrors the original's direct >= comparison rather
// than RFC 3550 serial-number arithmetic, since ComputePtime is only
// meaningful across a short, known-monotonic packet run).
func seqLess(a, b uint16) bool {
	return a < b
}
