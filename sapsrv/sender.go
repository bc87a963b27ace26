package sapsrv

import (
	"net"

	"github.com/tschiemer/aes67-core/mcastutil"
)

// Sender is an outbound multicast socket for transmitting announcements to
// one or more send-scope groups: the counterpart to Listener's receive
// side, since a SAP server takes its listen-scopes and send-scopes
// independently of each other.
type Sender struct {
	conn  *net.UDPConn
	dests []*net.UDPAddr
}

// NewSender opens a send socket for port, with groups as its destinations,
// optionally constrained to the named outgoing interface (empty for the
// system default).
func NewSender(groups []net.IP, port int, ifaceName string) (*Sender, error) {
	var ifi *net.Interface
	if ifaceName != "" {
		found, err := net.InterfaceByName(ifaceName)
		if err != nil {
			return nil, err
		}
		ifi = found
	}
	conn, err := mcastutil.DialMulticastUDP(ifi)
	if err != nil {
		return nil, err
	}
	dests := make([]*net.UDPAddr, len(groups))
	for i, g := range groups {
		dests[i] = &net.UDPAddr{IP: g, Port: port}
	}
	return &Sender{conn: conn, dests: dests}, nil
}

// Send transmits b to every destination group, returning the first error
// encountered (if any) after attempting all of them.
func (s *Sender) Send(b []byte) error {
	var firstErr error
	for _, d := range s.dests {
		if _, err := s.conn.WriteToUDP(b, d); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close releases the underlying socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
