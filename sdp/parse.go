package sdp

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// Result mirrors the codec result taxonomy of §4.2/§7.
type Result int

const (
	OK Result = iota
	Incomplete
	NotSupported
	NoMemory
	ErrorResult
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case Incomplete:
		return "INCOMPLETE"
	case NotSupported:
		return "NOTSUPPORTED"
	case NoMemory:
		return "NOMEMORY"
	default:
		return "ERROR"
	}
}

// ParseError reports a non-OK Result from Unmarshal, with enough context
// to log or test against (§7: malformed input is a typed failure at the
// codec layer).
type ParseError struct {
	Result Result
	Line   string
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("sdp: %s: %s (line %q)", e.Result, e.Msg, e.Line)
	}
	return fmt.Sprintf("sdp: %s: %s", e.Result, e.Msg)
}

// Context identifies where an unhandled line was encountered.
type Context struct {
	StreamLevel bool
	StreamIndex int
}

// UnhandledLineFunc receives any recognized-but-unimplemented or unknown
// SDP line so a caller may inspect or log it; parsing continues
// afterwards (§4.2).
type UnhandledLineFunc func(ctx Context, line string)

// Options configures Unmarshal.
type Options struct {
	UnhandledLine UnhandledLineFunc
	// MaxConnections, MaxEncodings, MaxPTPRefs and MaxPtimeCaps bound the
	// respective tables; 0 means unbounded. Exceeding a bound yields
	// NoMemory, matching §7 (E2) resource-exhaustion handling.
	MaxConnections int
	MaxEncodings   int
	MaxPTPRefs     int
	MaxPtimeCaps   int
}

// Unmarshal parses an SDP document per §4.2. It accepts CR-LF or bare LF
// line endings (§6.2). Recognized lines are consumed in-order, preserving
// stream order and the encoding-to-stream binding (I1/I2); any unrecognized
// line is handed to opts.UnhandledLine and parsing continues.
func Unmarshal(data []byte, opts Options) (*Document, error) {
	text := string(data)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	// A trailing line ending leaves one empty trailing element; drop it.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, &ParseError{Result: Incomplete, Msg: "empty input"}
	}

	d := NewDocument()
	curStream := -1 // -1 = session level

	unhandled := func(line string) {
		if opts.UnhandledLine == nil {
			return
		}
		ctx := Context{}
		if curStream >= 0 {
			ctx.StreamLevel = true
			ctx.StreamIndex = curStream
		}
		opts.UnhandledLine(ctx, line)
	}

	for _, line := range lines {
		if line == "" {
			continue
		}
		if len(line) < 2 || line[1] != '=' {
			unhandled(line)
			continue
		}
		key, val := line[0], line[2:]

		switch key {
		case 'v':
			if val != "0" {
				return nil, &ParseError{Result: NotSupported, Line: line, Msg: "unsupported SDP version"}
			}

		case 'o':
			orig, err := parseOriginator(val)
			if err != nil {
				return nil, &ParseError{Result: ErrorResult, Line: line, Msg: err.Error()}
			}
			d.Originator = orig

		case 's':
			if val == " " {
				d.SessionName = ""
			} else {
				d.SessionName = val
			}

		case 'i':
			if curStream < 0 {
				d.Info = val
			} else {
				s := d.Streams[curStream]
				s.Info = val
				d.Streams[curStream] = s
			}

		case 'u':
			d.URI = val
		case 'e':
			d.Email = val
		case 'p':
			d.Phone = val

		case 'c':
			conn, err := parseConnection(val)
			if err != nil {
				return nil, &ParseError{Result: ErrorResult, Line: line, Msg: err.Error()}
			}
			if curStream < 0 {
				conn.Level = SessionLevel
			} else {
				conn.Level = StreamLevel(curStream)
			}
			if opts.MaxConnections > 0 && len(d.Connections) >= opts.MaxConnections {
				return nil, &ParseError{Result: NoMemory, Line: line, Msg: "connection table full"}
			}
			d.Connections = append(d.Connections, conn)

		case 't':
			// only "t=0 0" is meaningful to this profile; accept and ignore.

		case 'm':
			s, err := parseStreamLine(val)
			if err != nil {
				return nil, &ParseError{Result: ErrorResult, Line: line, Msg: err.Error()}
			}
			s.EncodingsStart = len(d.Encodings)
			s.PTPIndex = -1
			s.ActiveConfigIndex = -1
			d.Streams = append(d.Streams, s)
			curStream = len(d.Streams) - 1

		case 'a':
			if err := parseAttribute(d, &curStream, val, opts); err != nil {
				if pe, ok := err.(*ParseError); ok {
					pe.Line = line
					return nil, pe
				}
				return nil, &ParseError{Result: ErrorResult, Line: line, Msg: err.Error()}
			}

		default:
			unhandled(line)
		}
	}

	if d.Originator.SessionID == "" {
		return nil, &ParseError{Result: Incomplete, Msg: "truncated SDP document: missing o= line"}
	}

	return d, nil
}

func parseOriginator(val string) (Originator, error) {
	f := strings.Fields(val)
	if len(f) != 6 || f[3] != "IN" {
		return Originator{}, fmt.Errorf("malformed o= line")
	}
	fam := AddrFamily(f[4])
	if fam != IP4 && fam != IP6 {
		return Originator{}, fmt.Errorf("unsupported address family %q", f[4])
	}
	user := f[0]
	if user == "-" {
		user = ""
	}
	return Originator{
		Username:       user,
		SessionID:      f[1],
		SessionVersion: f[2],
		Family:         fam,
		Address:        f[5],
	}, nil
}

func parseConnection(val string) (Connection, error) {
	f := strings.Fields(val)
	if len(f) != 3 || f[0] != "IN" {
		return Connection{}, fmt.Errorf("malformed c= line")
	}
	fam := AddrFamily(f[1])
	if fam != IP4 && fam != IP6 {
		return Connection{}, fmt.Errorf("unsupported address family %q", f[1])
	}
	parts := strings.Split(f[2], "/")
	c := Connection{Family: fam, Address: parts[0]}
	if len(parts) >= 2 {
		ttl, err := strconv.Atoi(parts[1])
		if err != nil {
			return Connection{}, fmt.Errorf("invalid ttl")
		}
		c.TTL = ttl
	}
	if len(parts) >= 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return Connection{}, fmt.Errorf("invalid address count")
		}
		c.NAddr = n
	}
	return c, nil
}

func parseStreamLine(val string) (Stream, error) {
	f := strings.Fields(val)
	if len(f) < 3 || f[0] != "audio" {
		return Stream{}, fmt.Errorf("unsupported or malformed m= line")
	}
	portParts := strings.Split(f[1], "/")
	port, err := strconv.Atoi(portParts[0])
	if err != nil {
		return Stream{}, fmt.Errorf("invalid port")
	}
	s := Stream{Port: port, Profile: f[2]}
	if len(portParts) > 1 {
		n, err := strconv.Atoi(portParts[1])
		if err != nil {
			return Stream{}, fmt.Errorf("invalid port count")
		}
		s.PortCount = n
	}
	if f[2] != "RTP/AVP" {
		return Stream{}, fmt.Errorf("unsupported transport profile %q", f[2])
	}
	for _, p := range f[3:] {
		pt, err := strconv.Atoi(p)
		if err != nil || pt < 0 || pt > 127 {
			return Stream{}, fmt.Errorf("invalid payload type %q", p)
		}
		s.PayloadTypes = append(s.PayloadTypes, pt)
	}
	return s, nil
}

func parseAttribute(d *Document, curStream *int, val string, opts Options) error {
	switch {
	case val == "inactive" || val == "recvonly" || val == "sendonly" || val == "sendrecv":
		mode := map[string]Mode{
			"inactive": ModeInactive,
			"recvonly": ModeRecvOnly,
			"sendonly": ModeSendOnly,
			"sendrecv": ModeSendRecv,
		}[val]
		if *curStream < 0 {
			d.Mode = mode
		} else {
			s := d.Streams[*curStream]
			s.Mode = mode
			d.Streams[*curStream] = s
		}
		return nil

	case strings.HasPrefix(val, "tool:"):
		d.Tool = strings.TrimPrefix(val, "tool:")
		return nil
	case strings.HasPrefix(val, "charset:"):
		d.Charset = strings.TrimPrefix(val, "charset:")
		return nil
	case strings.HasPrefix(val, "uri:"):
		d.URI = strings.TrimPrefix(val, "uri:")
		return nil
	case strings.HasPrefix(val, "email:"):
		d.Email = strings.TrimPrefix(val, "email:")
		return nil
	case strings.HasPrefix(val, "phone:"):
		d.Phone = strings.TrimPrefix(val, "phone:")
		return nil

	case strings.HasPrefix(val, "ptp-domain:"):
		f := strings.Fields(strings.TrimPrefix(val, "ptp-domain:"))
		if len(f) != 2 {
			return fmt.Errorf("malformed ptp-domain attribute")
		}
		n, err := strconv.Atoi(f[1])
		if err != nil || n < 0 || n > 127 {
			return fmt.Errorf("invalid ptp-domain value")
		}
		d.PTPDomain = uint8(n)
		d.HasPTPDomain = true
		return nil

	case strings.HasPrefix(val, "rtpmap:"):
		return parseRtpmap(d, *curStream, strings.TrimPrefix(val, "rtpmap:"), opts)

	case strings.HasPrefix(val, "ptime:"):
		us, err := parsePtime(strings.TrimPrefix(val, "ptime:"))
		if err != nil {
			return err
		}
		if *curStream < 0 {
			return fmt.Errorf("ptime attribute outside of a stream")
		}
		s := d.Streams[*curStream]
		s.PtimeUs = us
		d.Streams[*curStream] = s
		return nil

	case strings.HasPrefix(val, "maxptime:"):
		us, err := parsePtime(strings.TrimPrefix(val, "maxptime:"))
		if err != nil {
			return err
		}
		if *curStream < 0 {
			return fmt.Errorf("maxptime attribute outside of a stream")
		}
		s := d.Streams[*curStream]
		s.MaxPtimeUs = us
		d.Streams[*curStream] = s
		return nil

	case strings.HasPrefix(val, "pcap:"):
		return parsePcap(d, *curStream, strings.TrimPrefix(val, "pcap:"), opts)

	case strings.HasPrefix(val, "pcfg:") || strings.HasPrefix(val, "acfg:"):
		return parseCfg(d, *curStream, val)

	case strings.HasPrefix(val, "ts-refclk:"):
		return parseTsRefclk(d, *curStream, strings.TrimPrefix(val, "ts-refclk:"), opts)

	case strings.HasPrefix(val, "mediaclk:direct="):
		n, err := strconv.ParseUint(strings.TrimPrefix(val, "mediaclk:direct="), 10, 32)
		if err != nil {
			return fmt.Errorf("invalid mediaclk offset")
		}
		if *curStream < 0 {
			return fmt.Errorf("mediaclk attribute outside of a stream")
		}
		s := d.Streams[*curStream]
		s.MediaClockOffset = uint32(n)
		s.HasMediaClock = true
		d.Streams[*curStream] = s
		return nil

	case strings.HasPrefix(val, "sync-time:"):
		t := strings.TrimPrefix(val, "sync-time:")
		if *curStream < 0 {
			// session-level sync-time has no dedicated field in this
			// profile; surface it through the unhandled-line callback.
			if opts.UnhandledLine != nil {
				opts.UnhandledLine(Context{}, "a=sync-time:"+t)
			}
			return nil
		}
		s := d.Streams[*curStream]
		s.SyncTime = t
		d.Streams[*curStream] = s
		return nil

	default:
		if opts.UnhandledLine != nil {
			ctx := Context{}
			if *curStream >= 0 {
				ctx.StreamLevel = true
				ctx.StreamIndex = *curStream
			}
			opts.UnhandledLine(ctx, "a="+val)
		}
		return nil
	}
}

// parsePtime parses a "<ms>[.<decimal fraction>]" duration into whole
// microseconds. The fractional part is a decimal fraction of a
// millisecond (so ".33" means 0.33ms = 330us), not a literal microsecond
// remainder, and is scaled or truncated to 3 digits as needed.
func parsePtime(s string) (int, error) {
	parts := strings.SplitN(s, ".", 2)
	ms, err := strconv.Atoi(parts[0])
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("invalid ptime value")
	}
	us := ms * 1000
	if len(parts) == 2 {
		digits := parts[1]
		if digits == "" {
			return 0, fmt.Errorf("invalid ptime fraction")
		}
		for _, r := range digits {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("invalid ptime fraction")
			}
		}
		switch {
		case len(digits) < 3:
			digits += strings.Repeat("0", 3-len(digits))
		case len(digits) > 3:
			digits = digits[:3]
		}
		frac, err := strconv.Atoi(digits)
		if err != nil {
			return 0, fmt.Errorf("invalid ptime fraction")
		}
		us += frac
	}
	return us, nil
}

// supportedEncodings is the encoding table rtpmap lookups are checked
// against; anything outside it is rejected as NotSupported.
var supportedEncodings = []SampleEncoding{L8, L16, L24, L32, AM824}

func parseRtpmap(d *Document, curStream int, s string, opts Options) error {
	f := strings.Fields(s)
	if len(f) != 2 {
		return fmt.Errorf("malformed rtpmap attribute")
	}
	pt, err := strconv.Atoi(f[0])
	if err != nil || pt < 1 || pt > 127 {
		return &ParseError{Result: NotSupported, Msg: "payload type out of range"}
	}
	parts := strings.Split(f[1], "/")
	if len(parts) < 2 {
		return fmt.Errorf("malformed rtpmap encoding")
	}
	enc := SampleEncoding(parts[0])
	if !slices.Contains(supportedEncodings, enc) {
		return &ParseError{Result: NotSupported, Msg: "unsupported sample encoding"}
	}
	rate, err := strconv.Atoi(parts[1])
	if err != nil || rate <= 0 {
		return fmt.Errorf("invalid sample rate")
	}
	ch := 1
	if len(parts) >= 3 {
		ch, err = strconv.Atoi(parts[2])
		if err != nil || ch <= 0 {
			return fmt.Errorf("invalid channel count")
		}
	}
	if curStream < 0 {
		return fmt.Errorf("rtpmap attribute outside of a stream")
	}
	if opts.MaxEncodings > 0 && len(d.Encodings) >= opts.MaxEncodings {
		return &ParseError{Result: NoMemory, Msg: "encoding table full"}
	}
	d.Encodings = append(d.Encodings, Encoding{
		Level:        StreamLevel(curStream),
		PayloadType:  pt,
		Sample:       enc,
		SampleRateHz: rate,
		Channels:     ch,
	})
	s := d.Streams[curStream]
	s.EncodingsCount = len(d.Encodings) - s.EncodingsStart
	d.Streams[curStream] = s
	return nil
}

func parsePcap(d *Document, curStream int, s string, opts Options) error {
	f := strings.Fields(s)
	if len(f) != 2 || !strings.HasPrefix(f[1], "ptime:") {
		return fmt.Errorf("malformed pcap attribute")
	}
	idx, err := strconv.Atoi(f[0])
	if err != nil {
		return fmt.Errorf("invalid pcap index")
	}
	us, err := parsePtime(strings.TrimPrefix(f[1], "ptime:"))
	if err != nil {
		return err
	}
	if opts.MaxPtimeCaps > 0 && len(d.PtimeCaps) >= opts.MaxPtimeCaps {
		return &ParseError{Result: NoMemory, Msg: "ptime capability table full"}
	}
	lvl := SessionLevel
	if curStream >= 0 {
		lvl = StreamLevel(curStream)
	}
	d.PtimeCaps = append(d.PtimeCaps, PtimeCap{Level: lvl, Index: idx, PtimeUs: us})
	return nil
}

func parseCfg(d *Document, curStream int, val string) error {
	rest := strings.TrimPrefix(strings.TrimPrefix(val, "pcfg:"), "acfg:")
	f := strings.Fields(rest)
	if len(f) != 2 || !strings.HasPrefix(f[1], "ptime:") {
		return fmt.Errorf("malformed pcfg/acfg attribute")
	}
	capIdx, err := strconv.Atoi(strings.TrimPrefix(f[1], "ptime:"))
	if err != nil {
		return fmt.Errorf("invalid pcfg/acfg ptime reference")
	}
	if curStream < 0 {
		return fmt.Errorf("pcfg/acfg attribute outside of a stream")
	}
	i := slices.IndexFunc(d.PtimeCaps, func(c PtimeCap) bool {
		return c.Index == capIdx && c.Level == StreamLevel(curStream)
	})
	if i < 0 {
		return fmt.Errorf("pcfg/acfg references unknown ptime capability %d", capIdx)
	}
	s := d.Streams[curStream]
	s.ActiveConfigIndex = i
	d.Streams[curStream] = s
	return nil
}

func parseTsRefclk(d *Document, curStream int, s string, opts Options) error {
	var ref PTPRef
	switch {
	case s == "ptp=traceable":
		ref.Type = PTPTraceable
	case strings.HasPrefix(s, "ptp=IEEE1588-2002:"):
		ref.Type = PTPIEEE1588_2002
		gmid, err := parseEUI64(strings.TrimPrefix(s, "ptp=IEEE1588-2002:"))
		if err != nil {
			return err
		}
		ref.GMID = gmid
	case strings.HasPrefix(s, "ptp=IEEE802.1AS-2011:"):
		ref.Type = PTPIEEE802AS_2011
		gmid, err := parseEUI64(strings.TrimPrefix(s, "ptp=IEEE802.1AS-2011:"))
		if err != nil {
			return err
		}
		ref.GMID = gmid
	case strings.HasPrefix(s, "ptp=IEEE1588-2008:"), strings.HasPrefix(s, "ptp=IEEE1588-2019:"):
		isV2019 := strings.HasPrefix(s, "ptp=IEEE1588-2019:")
		prefix := "ptp=IEEE1588-2008:"
		if isV2019 {
			prefix = "ptp=IEEE1588-2019:"
			ref.Type = PTPIEEE1588_2019
		} else {
			ref.Type = PTPIEEE1588_2008
		}
		rest := strings.TrimPrefix(s, prefix)
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("missing ptp domain in ts-refclk")
		}
		gmid, err := parseEUI64(parts[0])
		if err != nil {
			return err
		}
		ref.GMID = gmid
		domain, err := strconv.Atoi(parts[1])
		if err != nil || domain < 0 || domain > 255 {
			return fmt.Errorf("invalid ptp domain in ts-refclk")
		}
		ref.Domain = uint8(domain)
	case strings.HasPrefix(s, "localmac="):
		ref.Type = PTPLocalMAC
		mac, err := parseMAC(strings.TrimPrefix(s, "localmac="))
		if err != nil {
			return err
		}
		ref.MAC = mac
	default:
		if opts.UnhandledLine != nil {
			ctx := Context{}
			if curStream >= 0 {
				ctx.StreamLevel = true
				ctx.StreamIndex = curStream
			}
			opts.UnhandledLine(ctx, "a=ts-refclk:"+s)
		}
		return nil
	}

	if opts.MaxPTPRefs > 0 && len(d.PTPRefs) >= opts.MaxPTPRefs {
		return &ParseError{Result: NoMemory, Msg: "ptp reference table full"}
	}

	if curStream < 0 {
		ref.Level = SessionLevel
		d.PTPRefs = append(d.PTPRefs, ref)
		d.SessionPTPIndex = len(d.PTPRefs) - 1
	} else {
		ref.Level = StreamLevel(curStream)
		d.PTPRefs = append(d.PTPRefs, ref)
		st := d.Streams[curStream]
		st.PTPIndex = len(d.PTPRefs) - 1
		d.Streams[curStream] = st
	}
	return nil
}

func parseEUI64(s string) ([8]byte, error) {
	var out [8]byte
	parts := strings.Split(s, "-")
	if len(parts) != 8 {
		return out, fmt.Errorf("malformed EUI-64 %q", s)
	}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return out, fmt.Errorf("malformed EUI-64 octet %q", p)
		}
		out[i] = byte(n)
	}
	return out, nil
}

func parseMAC(s string) ([6]byte, error) {
	var out [6]byte
	parts := strings.Split(s, "-")
	if len(parts) != 6 {
		return out, fmt.Errorf("malformed MAC %q", s)
	}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return out, fmt.Errorf("malformed MAC octet %q", p)
		}
		out[i] = byte(n)
	}
	return out, nil
}
