package sdp

import (
	"fmt"
	"strconv"
	"strings"
)

// Marshal serializes d into its canonical CRLF-terminated textual form
// (§4.2, §6.2). It never fails for a structurally valid Document; there is
// no intrinsic upper bound on the resulting size in this in-memory form.
func (d *Document) Marshal() []byte {
	return []byte(d.render())
}

// MarshalTo serializes d into buf, matching the original's bounded-buffer
// contract (§4.2): it performs the equivalent of a bounds check before
// committing any output and returns (0, false) if the serialized document
// would not fit in buf, rather than writing a truncated document.
func (d *Document) MarshalTo(buf []byte) (n int, ok bool) {
	rendered := d.render()
	if len(rendered) > len(buf) {
		return 0, false
	}
	return copy(buf, rendered), true
}

func (d *Document) render() string {
	var b strings.Builder

	writeLine(&b, "v=0")
	writeLine(&b, fmt.Sprintf("o=%s %s %s IN %s %s",
		orDash(d.Originator.Username), d.Originator.SessionID, d.Originator.SessionVersion,
		d.Originator.Family, d.Originator.Address))

	name := d.SessionName
	if name == "" {
		name = " "
	}
	writeLine(&b, "s="+name)

	if d.Info != "" {
		writeLine(&b, "i="+d.Info)
	}

	for _, c := range d.Connections {
		if !c.Level.Stream {
			writeLine(&b, connLine(c))
		}
	}

	writeLine(&b, "t=0 0")

	if d.Tool != "" {
		writeLine(&b, "a=tool:"+d.Tool)
	}
	if d.Charset != "" {
		writeLine(&b, "a=charset:"+d.Charset)
	}
	if d.URI != "" {
		writeLine(&b, "a=uri:"+d.URI)
	}
	if d.Email != "" {
		writeLine(&b, "a=email:"+d.Email)
	}
	if d.Phone != "" {
		writeLine(&b, "a=phone:"+d.Phone)
	}

	if d.Mode != ModeUnset {
		writeLine(&b, "a="+d.Mode.attr())
	}
	if d.HasPTPDomain {
		writeLine(&b, fmt.Sprintf("a=ptp-domain:PTPv2 %d", d.PTPDomain))
	}
	if d.SessionPTPIndex >= 0 && d.SessionPTPIndex < len(d.PTPRefs) {
		writeLine(&b, tsRefclkLine(d.PTPRefs[d.SessionPTPIndex]))
	}

	for i := range d.Streams {
		renderStream(&b, d, i)
	}

	return b.String()
}

func renderStream(b *strings.Builder, d *Document, i int) {
	s := d.Streams[i]

	ports := strconv.Itoa(s.Port)
	if s.PortCount > 1 {
		ports += "/" + strconv.Itoa(s.PortCount)
	}
	pts := make([]string, len(s.PayloadTypes))
	for i, pt := range s.PayloadTypes {
		pts[i] = strconv.Itoa(pt)
	}
	profile := s.Profile
	if profile == "" {
		profile = "RTP/AVP"
	}
	writeLine(b, fmt.Sprintf("m=audio %s %s %s", ports, profile, strings.Join(pts, " ")))

	if s.Info != "" {
		writeLine(b, "i="+s.Info)
	}
	if s.Mode != ModeUnset {
		writeLine(b, "a="+s.Mode.attr())
	}

	for _, e := range d.StreamEncodings(i) {
		writeLine(b, rtpmapLine(e))
	}

	if s.PtimeUs > 0 {
		writeLine(b, "a=ptime:"+ptimeString(s.PtimeUs))
	}

	for _, c := range d.PtimeCaps {
		if c.Level.Stream && c.Level.Index == i {
			writeLine(b, fmt.Sprintf("a=pcap:%d ptime:%s", c.Index, ptimeString(c.PtimeUs)))
		}
	}

	if s.MaxPtimeUs > 0 {
		writeLine(b, "a=maxptime:"+ptimeString(s.MaxPtimeUs))
	}

	if s.ActiveConfigIndex >= 0 && s.ActiveConfigIndex < len(d.PtimeCaps) {
		writeLine(b, fmt.Sprintf("a=acfg:1 ptime:%d", d.PtimeCaps[s.ActiveConfigIndex].Index))
	}

	for _, c := range d.Connections {
		if c.Level.Stream && c.Level.Index == i {
			writeLine(b, connLine(c))
		}
	}

	if s.PTPIndex >= 0 && s.PTPIndex < len(d.PTPRefs) {
		writeLine(b, tsRefclkLine(d.PTPRefs[s.PTPIndex]))
	}

	if s.HasMediaClock {
		writeLine(b, fmt.Sprintf("a=mediaclk:direct=%d", s.MediaClockOffset))
	}
	if s.SyncTime != "" {
		writeLine(b, "a=sync-time:"+s.SyncTime)
	}
}

func connLine(c Connection) string {
	s := fmt.Sprintf("c=IN %s %s", c.Family, c.Address)
	if c.TTL > 0 {
		s += "/" + strconv.Itoa(c.TTL)
		if c.NAddr > 0 {
			s += "/" + strconv.Itoa(c.NAddr)
		}
	}
	return s
}

func rtpmapLine(e Encoding) string {
	s := fmt.Sprintf("a=rtpmap:%d %s/%d", e.PayloadType, e.Sample, e.SampleRateHz)
	if e.Channels != 1 {
		s += "/" + strconv.Itoa(e.Channels)
	}
	return s
}

// ptimeString renders a microsecond duration as "<ms>[.<frac>]", where frac
// is the fractional millisecond of the stored value written as a decimal
// fraction with trailing zeros trimmed (so 1330us renders as "1.33", not
// "1.330" or the literal remainder "1.33" confused with "1.033"), per §4.2.
func ptimeString(us int) string {
	ms := us / 1000
	rem := us % 1000
	if rem == 0 {
		return strconv.Itoa(ms)
	}
	frac := fmt.Sprintf("%03d", rem)
	frac = strings.TrimRight(frac, "0")
	return fmt.Sprintf("%d.%s", ms, frac)
}

func tsRefclkLine(p PTPRef) string {
	switch p.Type {
	case PTPIEEE1588_2002, PTPIEEE802AS_2011:
		return fmt.Sprintf("a=ts-refclk:ptp=%s:%s", p.Type.wireName(), eui64(p.GMID))
	case PTPIEEE1588_2008, PTPIEEE1588_2019:
		return fmt.Sprintf("a=ts-refclk:ptp=%s:%s:%d", p.Type.wireName(), eui64(p.GMID), p.Domain)
	case PTPTraceable:
		return "a=ts-refclk:ptp=traceable"
	case PTPLocalMAC:
		return fmt.Sprintf("a=ts-refclk:localmac=%s", macStr(p.MAC))
	default:
		return ""
	}
}

func eui64(b [8]byte) string {
	parts := make([]string, 8)
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, "-")
}

func macStr(b [6]byte) string {
	parts := make([]string, 6)
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, "-")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func writeLine(b *strings.Builder, s string) {
	b.WriteString(s)
	b.WriteString("\r\n")
}
