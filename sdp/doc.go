// Package sdp implements the C3 SDP document model and codec: a strongly
// typed, bounded in-memory tree for the audio-profile subset of SDP (AES67,
// RAVENNA extensions) plus a bit-exact serializer/parser, per spec §3/§4.2.
//
// The document model is grounded on original_source/src/core/sdp.c and
// aes67/sdp.h for the originator/PTP shapes, generalized to the richer
// stream/encoding/ptime-capability tables spec.md §3 describes, and on
// Hackerman-ru-sdp (pion/sdp v3) and safermobility-sipmanager/sdp for
// idiomatic Go structure (ordered attribute slices, split Marshal/Unmarshal).
package sdp

// AddrFamily is the SDP "IN <family>" token.
type AddrFamily string

const (
	IP4 AddrFamily = "IP4"
	IP6 AddrFamily = "IP6"
)

// Mode is a stream's (or the session default's) send/receive direction.
type Mode int

const (
	ModeUnset Mode = iota
	ModeInactive
	ModeRecvOnly
	ModeSendOnly
	ModeSendRecv
)

func (m Mode) attr() string {
	switch m {
	case ModeInactive:
		return "inactive"
	case ModeRecvOnly:
		return "recvonly"
	case ModeSendOnly:
		return "sendonly"
	case ModeSendRecv:
		return "sendrecv"
	default:
		return ""
	}
}

// SampleEncoding is one of the AES67/RAVENNA linear or AM824 sample formats.
type SampleEncoding string

const (
	L8    SampleEncoding = "L8"
	L16   SampleEncoding = "L16"
	L24   SampleEncoding = "L24"
	L32   SampleEncoding = "L32"
	AM824 SampleEncoding = "AM824"
)

// PTPType identifies the clock type of a ts-refclk reference.
type PTPType int

const (
	PTPUnset PTPType = iota
	PTPIEEE1588_2002
	PTPIEEE1588_2008
	PTPIEEE1588_2019
	PTPIEEE802AS_2011
	PTPTraceable
	PTPLocalMAC
)

func (t PTPType) wireName() string {
	switch t {
	case PTPIEEE1588_2002:
		return "IEEE1588-2002"
	case PTPIEEE1588_2008:
		return "IEEE1588-2008"
	case PTPIEEE1588_2019:
		return "IEEE1588-2019"
	case PTPIEEE802AS_2011:
		return "IEEE802.1AS-2011"
	default:
		return ""
	}
}

// hasDomain reports whether this PTP type carries an explicit domain number
// in its ts-refclk attribute (only the 2008/2019 revisions do, per §4.2).
func (t PTPType) hasDomain() bool {
	return t == PTPIEEE1588_2008 || t == PTPIEEE1588_2019
}

// Level tags an attribute as applying to the whole session, or to one
// specific stream by index (invariant I1).
type Level struct {
	Stream bool
	Index  int // only meaningful if Stream is true
}

// SessionLevel is the Level for session-wide attributes.
var SessionLevel = Level{}

// StreamLevel returns the Level tagging an attribute to stream i.
func StreamLevel(i int) Level {
	return Level{Stream: true, Index: i}
}

// Originator is the SDP "o=" line content.
type Originator struct {
	Username       string
	SessionID      string // decimal string
	SessionVersion string // decimal string
	Family         AddrFamily
	Address        string
}

// Eq reports originator identity equality per §4.2: ignores version.
func (o Originator) Eq(other Originator) bool {
	return o.Username == other.Username &&
		o.SessionID == other.SessionID &&
		o.Family == other.Family &&
		o.Address == other.Address
}

// CompareVersion compares two numeric-string session versions: first by
// string length (shorter < longer, since a longer numeric string is
// strictly newer), then lexicographically (§4.2, spec §9 bug-fix note:
// the original compares address bytes here by mistake; this compares the
// version strings as documented).
func CompareVersion(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Connection is one "c=" line, at session level or tied to a stream.
type Connection struct {
	Level   Level
	Family  AddrFamily
	Address string
	TTL     int // 0 if unset
	NAddr   int // 0 if unset; only meaningful when TTL > 0
}

// PTPRef is one PTP clock descriptor, usable from a ts-refclk attribute.
type PTPRef struct {
	Level  Level
	Type   PTPType
	GMID   [8]byte // EUI-64 grandmaster id
	Domain uint8   // only meaningful if Type.hasDomain()
	// MAC is only meaningful for PTPLocalMAC ("localmac=<MAC>" form).
	MAC [6]byte
}

// Encoding is one row of the encoding table; a stream owns a contiguous
// range of this table (invariants I1-I3).
type Encoding struct {
	Level        Level
	PayloadType  int // 1..127
	Sample       SampleEncoding
	SampleRateHz int
	Channels     int
}

// PtimeCap is one entry of the ptime-capability table ("a=pcap:"), tagged
// with the stream it was declared under.
type PtimeCap struct {
	Level   Level
	Index   int
	PtimeUs int
}

// Stream is one "m=audio" block.
type Stream struct {
	Port             int
	PortCount        int // 0 or 1 means "no /N suffix"
	Profile          string
	PayloadTypes     []int
	Info             string
	Mode             Mode
	PtimeUs          int // 0 means unset
	MaxPtimeUs       int // 0 means unset
	MediaClockOffset uint32
	HasMediaClock    bool
	SyncTime         string

	// EncodingsStart/EncodingsCount index into Document.Encodings: the
	// contiguous range of encodings owned by this stream (I1/I2).
	EncodingsStart int
	EncodingsCount int

	// PTPIndex references Document.PTPRefs by index, or -1 if this stream
	// has no stream-level ts-refclk of its own (it may still inherit a
	// session-level one).
	PTPIndex int

	// ActiveConfigIndex, when >= 0, indexes Document.PtimeCaps and is
	// rendered as "a=acfg:1 ptime:<cap>" (the active/proposed ptime
	// configuration pointer); -1 means none.
	ActiveConfigIndex int
}

// Document is the in-memory SDP tree, constrained to the audio profile.
type Document struct {
	Originator  Originator
	SessionName string
	Info        string
	URI         string
	Email       string
	Phone       string
	Tool        string
	Charset     string

	Mode Mode // session-default mode, ModeUnset if not stated

	// PTPDomain is the session-level "a=ptp-domain:PTPv2 <n>" attribute;
	// HasPTPDomain is the presence sentinel (§3: "presence indicated by a
	// sentinel bit").
	PTPDomain    uint8
	HasPTPDomain bool

	Connections []Connection
	Streams     []Stream
	Encodings   []Encoding
	PTPRefs     []PTPRef
	PtimeCaps   []PtimeCap

	// SessionPTPIndex references PTPRefs for a session-level ts-refclk, or
	// -1 if none.
	SessionPTPIndex int
}

// NewDocument returns an empty, well-formed Document (v=0 implied, t=0 0
// implied) ready to have an Originator/SessionName and streams attached.
func NewDocument() *Document {
	return &Document{
		SessionPTPIndex: -1,
	}
}

// StreamEncodings returns the slice of encodings owned by stream i.
func (d *Document) StreamEncodings(i int) []Encoding {
	s := d.Streams[i]
	return d.Encodings[s.EncodingsStart : s.EncodingsStart+s.EncodingsCount]
}

// IsValidAES67Audio reports whether stream i satisfies invariant I5: at
// least one encoding, a positive sample rate and channel count, and a
// positive ptime.
func (d *Document) IsValidAES67Audio(i int) bool {
	s := d.Streams[i]
	if s.EncodingsCount == 0 || s.PtimeUs <= 0 {
		return false
	}
	for _, e := range d.StreamEncodings(i) {
		if e.SampleRateHz <= 0 || e.Channels <= 0 {
			return false
		}
	}
	return true
}
