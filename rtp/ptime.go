package rtp

// NSamples computes the number of samples that should be present in a
// packet given a ptime (microseconds) and a sample rate, rounding to the
// nearest integer (§4.3: round(ptime*rate/1e6)).
func NSamples(ptimeUs uint32, sampleRateHz uint32) uint32 {
	t := uint64(ptimeUs) * uint64(sampleRateHz)
	round := uint64(0)
	if t%1000000 >= 500000 {
		round = 1
	}
	return uint32(t/1000000) + uint32(round)
}

// Ptime computes a *rough* ptime value (microseconds) from a sample count
// and sample rate, the inverse of NSamples. This is a truncating
// approximation documented in §4.3: exact matching between two SDP
// descriptions of the same stream should compare sample counts, not the
// derived ptime.
func Ptime(nsamples uint32, sampleRateHz uint32) uint32 {
	if sampleRateHz == 0 {
		return 0
	}
	return uint32((uint64(1000000) * uint64(nsamples)) / uint64(sampleRateHz))
}

// PacketSamples computes the number of samples carried by a packet of the
// given total length, given the CSRC count from its first header byte,
// the per-sample byte size and the channel count (§4.3).
func PacketSamples(packetLen int, csrcCount uint8, sampleSize, nchannels int) int {
	payload := packetLen - PayloadOffset(csrcCount)
	if payload <= 0 || sampleSize <= 0 || nchannels <= 0 {
		return 0
	}
	return payload / sampleSize / nchannels
}
