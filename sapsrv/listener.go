package sapsrv

import (
	"net"

	"github.com/tschiemer/aes67-core/mcastutil"
)

// Listener is a raw multicast UDP socket joined to one or more SAP groups,
// generalized from the teacher's sap/network.go Conn/SDPConn (which wrapped
// a single net.UDPConn with no multi-group or interface selection).
type Listener struct {
	conn *net.UDPConn
}

// Listen opens a UDP socket on port, joined to every group in groups, on
// the named interface (empty for the system default).
func Listen(groups []net.IP, port int, ifaceName string) (*Listener, error) {
	var ifi *net.Interface
	if ifaceName != "" {
		found, err := net.InterfaceByName(ifaceName)
		if err != nil {
			return nil, err
		}
		ifi = found
	}
	conn, err := mcastutil.ListenMulticastUDPOnInterface(ifi, groups, port)
	if err != nil {
		return nil, err
	}
	return &Listener{conn: conn}, nil
}

// ReadPacket blocks for the next UDP datagram, reads it into buf and
// returns the number of bytes read.
func (l *Listener) ReadPacket(buf []byte) (int, error) {
	n, err := l.conn.Read(buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close releases the underlying socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// initialMTU-sized scratch buffer size for callers that don't have their
// own, matching the teacher's Conn.Read default.
const ReadBufferSize = initialMTU
