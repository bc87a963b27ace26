package sap

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/tschiemer/aes67-core/host"
	"github.com/tschiemer/aes67-core/netaddr"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func sdpPayload(version int) []byte {
	s := "v=0\n" +
		"o=- 123 " + itoa(version) + " IN IP4 10.0.0.1\n" +
		"s=-\n" +
		"t=0 0\n" +
		"m=audio 5004 RTP/AVP 96\n" +
		"a=rtpmap:96 L24/48000/2\n" +
		"a=ptime:1\n"
	return []byte(s)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func announcePacket(t *testing.T, payload []byte) []byte {
	t.Helper()
	p := Packet{
		Header: Header{
			Version:     1,
			IDHash:      0x1234,
			OrigSrc:     netaddr.NewV4(10, 0, 0, 1, 0),
			Type:        TypeAnnounce,
			PayloadType: SDPPayloadType,
		},
		Payload: payload,
	}
	buf := make([]byte, 512)
	n, err := p.WriteBinary(buf)
	if err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	return buf[:n]
}

func deletePacket(t *testing.T) []byte {
	t.Helper()
	p := Packet{
		Header: Header{
			Version:     1,
			IDHash:      0x1234,
			OrigSrc:     netaddr.NewV4(10, 0, 0, 1, 0),
			Type:        TypeDelete,
			PayloadType: SDPPayloadType,
		},
	}
	buf := make([]byte, 512)
	n, err := p.WriteBinary(buf)
	if err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	return buf[:n]
}

// TestEngineAnnounceUpdateDelete exercises the announce -> update -> delete
// sequence (spec S6): three packets sharing hash 0x1234 and originator
// 10.0.0.1 produce, in order, new / updated / deleted events, and leave the
// table empty.
func TestEngineAnnounceUpdateDelete(t *testing.T) {
	var got []Event
	e := NewEngine(func(event Event, s *Session) {
		got = append(got, event)
	}, testLogger())

	now := host.Now()

	if _, _, err := e.HandleMessage(announcePacket(t, sdpPayload(1)), now); err != nil {
		t.Fatalf("announce A: %v", err)
	}
	if _, _, err := e.HandleMessage(announcePacket(t, sdpPayload(2)), now); err != nil {
		t.Fatalf("announce A': %v", err)
	}
	if _, _, err := e.HandleMessage(deletePacket(t), now); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []Event{EventNew, EventUpdated, EventDeleted}
	if len(got) != len(want) {
		t.Fatalf("got events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if e.Table.Len() != 0 {
		t.Errorf("table should be empty after delete, has %d sessions", e.Table.Len())
	}
}

// TestEngineTimeout covers the second half of S6: with no delete message,
// the session fires EventTimeout once MinTimeoutSec has elapsed, and not
// before.
func TestEngineTimeout(t *testing.T) {
	var got []Event
	e := NewEngine(func(event Event, s *Session) {
		got = append(got, event)
	}, testLogger())

	now := host.Now()
	if _, _, err := e.HandleMessage(announcePacket(t, sdpPayload(1)), now); err != nil {
		t.Fatalf("announce: %v", err)
	}

	e.timeoutTimer.Set(0) // force expiry check on next Process
	e.Process(now.Add(int32(MinTimeoutSec)*1000 - 1000))
	for _, ev := range got {
		if ev == EventTimeout {
			t.Fatalf("timeout fired too early")
		}
	}
	if e.Table.Len() != 1 {
		t.Fatalf("session should still be present before timeout elapses")
	}

	e.timeoutTimer.Set(0)
	e.Process(now.Add(int32(MinTimeoutSec)*1000 + 1000))

	found := false
	for _, ev := range got {
		if ev == EventTimeout {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a timeout event, got %v", got)
	}
	if e.Table.Len() != 0 {
		t.Fatalf("table should be empty after timeout, has %d sessions", e.Table.Len())
	}
}

// TestEngineIgnoresOwnLoopback verifies a message matching a locally
// registered (self) session is silently dropped.
func TestEngineIgnoresOwnLoopback(t *testing.T) {
	var got []Event
	e := NewEngine(func(event Event, s *Session) {
		got = append(got, event)
	}, testLogger())

	key := Key{Hash: 0x1234, Origin: netaddr.NewV4(10, 0, 0, 1, 0)}
	e.RegisterLocal(key, sdpPayload(1), host.Now())
	before := len(got)

	if _, _, err := e.HandleMessage(announcePacket(t, sdpPayload(1)), host.Now()); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(got) != before {
		t.Errorf("expected no events for looped-back own announcement, got %v", got[before:])
	}
	if e.Table.NoOfAdsSelf != 1 {
		t.Errorf("self session should remain registered")
	}
}

// TestEngineDeleteUnknownSessionIsNoop ensures a delete for a session never
// announced produces no event and no error.
func TestEngineDeleteUnknownSessionIsNoop(t *testing.T) {
	e := NewEngine(nil, testLogger())
	event, s, err := e.HandleMessage(deletePacket(t), host.Now())
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if event != EventNone || s != nil {
		t.Errorf("expected no-op, got event=%s session=%+v", event, s)
	}
}
