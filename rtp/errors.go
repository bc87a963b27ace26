package rtp

import "errors"

var (
	// ErrShortPacket is returned when a buffer being decoded is too short
	// to hold a full header (plus CSRC identifiers).
	ErrShortPacket = errors.New("rtp: packet too short")
	// ErrShortBuffer is returned when a destination buffer is too small
	// to hold the header, CSRC identifiers and sample payload being
	// written into it.
	ErrShortBuffer = errors.New("rtp: destination buffer too small")
	// ErrChannelOutOfRange is returned by buffer operations addressing a
	// channel index >= the buffer's channel count.
	ErrChannelOutOfRange = errors.New("rtp: channel index out of range")
)
