package rtp

import "github.com/pion/randutil"

// Packetizer tracks the per-stream transmit state (payload type, sequence
// number, RTP timestamp and SSRC) needed to emit a run of packets, mapping
// onto the original's aes67_rtp_tx (§3).
type Packetizer struct {
	PayloadType uint8
	SeqNo       uint16
	Timestamp   uint32
	SSRC        uint32
}

// NewPacketizer builds a Packetizer with a random initial sequence number
// and SSRC, per RFC 3550 §5.1 (both should start unpredictable to avoid
// collisions between streams).
func NewPacketizer(payloadType uint8) (*Packetizer, error) {
	r, err := randutil.CryptoUint64()
	if err != nil {
		return nil, err
	}
	return &Packetizer{
		PayloadType: payloadType,
		SeqNo:       uint16(r),
		SSRC:        uint32(r >> 16),
	}, nil
}

// Next packs samples into buf using the packetizer's current sequence
// number and timestamp, then advances both: SeqNo by one, Timestamp by
// nsamples (the sample count the caller just packed).
func (p *Packetizer) Next(buf []byte, samples []byte, nsamples uint32) (int, error) {
	n, err := Pack(buf, p.PayloadType, p.SeqNo, p.Timestamp, p.SSRC, samples)
	if err != nil {
		return 0, err
	}
	p.SeqNo++
	p.Timestamp += nsamples
	return n, nil
}
