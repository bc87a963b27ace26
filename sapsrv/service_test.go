package sapsrv

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tschiemer/aes67-core/host"
	"github.com/tschiemer/aes67-core/netaddr"
	"github.com/tschiemer/aes67-core/sap"
)

// loopbackUDP opens an unconnected UDP socket on 127.0.0.1 with an
// ephemeral port, standing in for a joined multicast group without
// depending on IGMP membership actually working in a test sandbox.
func loopbackUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	return conn
}

// TestServiceRegisterLocalAnnouncesImmediately verifies that registering a
// local session drives a real announcement out the send socket, rather
// than only updating the in-memory table.
func TestServiceRegisterLocalAnnouncesImmediately(t *testing.T) {
	dest := loopbackUDP(t)
	defer dest.Close()
	sendConn := loopbackUDP(t)
	send := &Sender{conn: sendConn, dests: []*net.UDPAddr{dest.LocalAddr().(*net.UDPAddr)}}
	listen := &Listener{conn: loopbackUDP(t)}

	var events []sap.Event
	svc := newService(listen, send, func(event sap.Event, _ *sap.Session) {
		events = append(events, event)
	}, zerolog.Nop())
	defer svc.Close()

	origin := netaddr.NewV4(10, 0, 0, 1, 0)
	payload := []byte("v=0\r\no=- 1 1 IN IP4 10.0.0.1\r\ns=test\r\nt=0 0\r\n")
	svc.RegisterLocal(0x1234, origin, payload, host.Now())

	if len(events) != 1 || events[0] != sap.EventAnnouncementRequest {
		t.Fatalf("expected one announcement_request event, got %v", events)
	}

	_ = dest.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, ReadBufferSize)
	n, _, err := dest.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("expected an announcement datagram, got error: %v", err)
	}

	header, err := sap.ParseHeader(buf[:n])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if header.IDHash != 0x1234 {
		t.Errorf("hash = %#x, want 0x1234", header.IDHash)
	}
	if header.Type != sap.TypeAnnounce {
		t.Errorf("expected an announcement, got a deletion")
	}
	if got := string(buf[header.Len:n]); got != string(payload) {
		t.Errorf("payload = %q, want %q", got, payload)
	}

	if svc.Engine.AnnouncementSize == 0 {
		t.Errorf("expected AnnouncementSize to be set from the registered payload")
	}
}

// TestServiceFromListenerHasNoSender verifies a receive-only Service
// (cmd/sapdump's explicit group-list path) never attempts to transmit.
func TestServiceFromListenerHasNoSender(t *testing.T) {
	listen := &Listener{conn: loopbackUDP(t)}
	svc := NewFromListener(listen, nil, zerolog.Nop())
	defer svc.Close()

	origin := netaddr.NewV4(10, 0, 0, 2, 0)
	svc.RegisterLocal(0x5678, origin, []byte("v=0\r\ns=test\r\n"), host.Now())

	if svc.Engine.Table.NoOfAdsSelf != 1 {
		t.Errorf("expected the session to still be registered locally")
	}
}
