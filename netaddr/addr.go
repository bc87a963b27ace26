// Package netaddr implements the C2 net address model: a tagged union of
// IPv4/IPv6 addresses with an optional port, string<->bytes conversion and
// multicast classification, as specified in spec §3/§4.1.
//
// Parsing is hand-rolled rather than delegating to net.ParseIP/net.Dial,
// because spec §4.1 requires a stricter grammar than the standard library
// accepts (a bracketed "[addr]:port" form is mandatory for IPv6+port, and
// malformed octets/garbage must be a hard parse error rather than silently
// falling back to a DNS-style host lookup).
package netaddr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Version distinguishes the two address families this core understands.
type Version uint8

const (
	V4 Version = 4
	V6 Version = 6
)

// Addr is a tagged-union network address with an optional port. The zero
// value is not a valid address; always obtain one via Parse or the New*
// constructors.
type Addr struct {
	version Version
	bytes   [16]byte // only the first 4 bytes are meaningful for V4
	port    uint16   // 0 means "unset"
}

// NewV4 builds an Addr from four IPv4 octets and an optional port (0 = unset).
func NewV4(a, b, c, d byte, port uint16) Addr {
	var addr Addr
	addr.version = V4
	addr.bytes[0], addr.bytes[1], addr.bytes[2], addr.bytes[3] = a, b, c, d
	addr.port = port
	return addr
}

// NewV6 builds an Addr from 16 IPv6 bytes and an optional port (0 = unset).
func NewV6(b [16]byte, port uint16) Addr {
	return Addr{version: V6, bytes: b, port: port}
}

// Version reports whether addr is V4 or V6.
func (a Addr) Version() Version { return a.version }

// Port returns the address's port, or 0 if unset.
func (a Addr) Port() uint16 { return a.port }

// WithPort returns a copy of a with its port replaced.
func (a Addr) WithPort(port uint16) Addr {
	a.port = port
	return a
}

// Bytes returns the raw address bytes: 4 bytes for V4, 16 for V6.
func (a Addr) Bytes() []byte {
	if a.version == V4 {
		return append([]byte(nil), a.bytes[:4]...)
	}
	return append([]byte(nil), a.bytes[:16]...)
}

// CopyIntoBytes writes the address bytes (not the port) into dst and
// returns the number of bytes written (4 or 16). dst must be large enough.
func (a Addr) CopyIntoBytes(dst []byte) int {
	n := 4
	if a.version == V6 {
		n = 16
	}
	copy(dst, a.bytes[:n])
	return n
}

// IsMulticast classifies the address per spec §4.1: IPv6 multicast is
// leading byte 0xff; IPv4 multicast is leading four bits 1110.
func (a Addr) IsMulticast() bool {
	if a.version == V6 {
		return a.bytes[0] == 0xff
	}
	return a.bytes[0]&0xf0 == 0xe0
}

// Equal reports whether a and b have the same version and address bytes.
// The port is never considered - use EqualWithPort for that.
func (a Addr) Equal(b Addr) bool {
	if a.version != b.version {
		return false
	}
	n := 4
	if a.version == V6 {
		n = 16
	}
	for i := 0; i < n; i++ {
		if a.bytes[i] != b.bytes[i] {
			return false
		}
	}
	return true
}

// EqualWithPort reports whether a and b have the same version, address
// bytes and port.
func (a Addr) EqualWithPort(b Addr) bool {
	return a.Equal(b) && a.port == b.port
}

// Format renders the address in the canonical textual form described in
// spec §3/§4.1: dotted-quad for V4, colon-separated hex groups with ::
// elision for V6, bracketed with a trailing :PORT when a port is set and
// the version is V6 (V4 uses plain dotted-quad:PORT).
func (a Addr) Format() string {
	if a.version == V4 {
		s := fmt.Sprintf("%d.%d.%d.%d", a.bytes[0], a.bytes[1], a.bytes[2], a.bytes[3])
		if a.port != 0 {
			s += ":" + strconv.Itoa(int(a.port))
		}
		return s
	}

	groups := make([]uint16, 8)
	for i := 0; i < 8; i++ {
		groups[i] = uint16(a.bytes[2*i])<<8 | uint16(a.bytes[2*i+1])
	}

	// find the longest run of zero groups, length >= 2, for :: elision
	bestStart, bestLen := -1, 0
	curStart, curLen := -1, 0
	for i, g := range groups {
		if g == 0 {
			if curStart < 0 {
				curStart = i
			}
			curLen++
		} else {
			if curLen > bestLen {
				bestStart, bestLen = curStart, curLen
			}
			curStart, curLen = -1, 0
		}
	}
	if curLen > bestLen {
		bestStart, bestLen = curStart, curLen
	}
	if bestLen < 2 {
		bestStart, bestLen = -1, 0
	}

	hex := func(gs []uint16) []string {
		out := make([]string, len(gs))
		for i, g := range gs {
			out[i] = strconv.FormatUint(uint64(g), 16)
		}
		return out
	}

	var body string
	if bestStart < 0 {
		body = strings.Join(hex(groups), ":")
	} else {
		before := strings.Join(hex(groups[:bestStart]), ":")
		after := strings.Join(hex(groups[bestStart+bestLen:]), ":")
		body = before + "::" + after
	}

	var sb strings.Builder
	if a.port != 0 {
		sb.WriteByte('[')
	}
	sb.WriteString(body)
	if a.port != 0 {
		sb.WriteString("]:")
		sb.WriteString(strconv.Itoa(int(a.port)))
	}
	return sb.String()
}

func (a Addr) String() string { return a.Format() }

// ErrMalformed is returned for any input that does not match the strict
// grammar of spec §4.1: wrong octet count/range, invalid hex groups, more
// than one "::", a missing bracket around an IPv6+port combination, or
// trailing garbage.
var ErrMalformed = errors.New("netaddr: malformed address")

// Parse parses s per spec §4.1. Accepts "A.B.C.D[:PORT]" for IPv4 and
// either "group:group:...:group[:PORT elided via brackets]" or a
// bracketed "[ipv6]:PORT" for IPv6. No whitespace is tolerated anywhere.
func Parse(s string) (Addr, error) {
	if s == "" {
		return Addr{}, ErrMalformed
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return Addr{}, ErrMalformed
	}

	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return Addr{}, ErrMalformed
		}
		host := s[1:end]
		rest := s[end+1:]
		var port uint16
		if rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return Addr{}, ErrMalformed
			}
			p, err := parsePort(rest[1:])
			if err != nil {
				return Addr{}, err
			}
			port = p
		}
		return parseV6(host, port)
	}

	// Disambiguate: IPv4 has dots and no colons; IPv6 has colons.
	if strings.Contains(s, ":") {
		// Unbracketed IPv6+port is illegal per spec (bracket required);
		// treat any ':' as starting IPv6 group syntax unless it is clearly
		// an IPv4:port (no further colons and address has dots, no "::" run).
		if strings.Count(s, ":") == 1 && strings.Contains(s, ".") {
			idx := strings.IndexByte(s, ':')
			host, portStr := s[:idx], s[idx+1:]
			port, err := parsePort(portStr)
			if err != nil {
				return Addr{}, err
			}
			return parseV4(host, port)
		}
		return parseV6(s, 0)
	}

	return parseV4(s, 0)
}

func parsePort(s string) (uint16, error) {
	if s == "" {
		return 0, ErrMalformed
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrMalformed
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 || n > 65535 {
		return 0, ErrMalformed
	}
	return uint16(n), nil
}

func parseV4(s string, port uint16) (Addr, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return Addr{}, ErrMalformed
	}
	var b [4]byte
	for i, p := range parts {
		if p == "" || len(p) > 3 {
			return Addr{}, ErrMalformed
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return Addr{}, ErrMalformed
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return Addr{}, ErrMalformed
		}
		b[i] = byte(n)
	}
	return NewV4(b[0], b[1], b[2], b[3], port), nil
}

func parseV6(s string, port uint16) (Addr, error) {
	if strings.Count(s, "::") > 1 {
		return Addr{}, ErrMalformed
	}

	var left, right []string
	if idx := strings.Index(s, "::"); idx >= 0 {
		leftStr, rightStr := s[:idx], s[idx+2:]
		if leftStr != "" {
			left = strings.Split(leftStr, ":")
		}
		if rightStr != "" {
			right = strings.Split(rightStr, ":")
		}
	} else {
		left = strings.Split(s, ":")
	}

	if len(left)+len(right) > 8 {
		return Addr{}, ErrMalformed
	}
	if !strings.Contains(s, "::") && len(left) != 8 {
		return Addr{}, ErrMalformed
	}

	groups := make([]uint16, 8)
	fill := 8 - len(left) - len(right)
	if !strings.Contains(s, "::") {
		fill = 0
	}

	idx := 0
	for _, g := range left {
		v, err := parseGroup(g)
		if err != nil {
			return Addr{}, err
		}
		groups[idx] = v
		idx++
	}
	idx += fill
	for _, g := range right {
		v, err := parseGroup(g)
		if err != nil {
			return Addr{}, err
		}
		groups[idx] = v
		idx++
	}

	var b [16]byte
	for i, g := range groups {
		b[2*i] = byte(g >> 8)
		b[2*i+1] = byte(g)
	}
	return NewV6(b, port), nil
}

func parseGroup(s string) (uint16, error) {
	if s == "" || len(s) > 4 {
		return 0, ErrMalformed
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return 0, ErrMalformed
		}
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil || n > 0xffff {
		return 0, ErrMalformed
	}
	return uint16(n), nil
}
