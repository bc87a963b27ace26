package sap

import (
	"github.com/rs/zerolog"

	"github.com/tschiemer/aes67-core/host"
	"github.com/tschiemer/aes67-core/sdp"
)

// Event is the kind of state transition the engine reports for a session,
// per spec §4.4 ("absent -> present(remote) -> update/no-op/delete/timeout").
type Event int

const (
	EventNone Event = iota
	EventNew
	EventUpdated
	EventDeleted
	EventTimeout
	EventAnnouncementRequest
)

func (e Event) String() string {
	switch e {
	case EventNew:
		return "new"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	case EventTimeout:
		return "timeout"
	case EventAnnouncementRequest:
		return "announcement_request"
	default:
		return "none"
	}
}

// EventHandler receives session directory events. The default (nil) is a
// no-op, replacing the original's linker-weak aes67_sap_service_event hook
// (spec §9: "Weak/overridable callbacks").
type EventHandler func(event Event, session *Session)

// Engine is the SAP session directory: the session table plus the
// announcement/timeout scheduling state, driven by explicit Process calls
// rather than by spawning its own goroutines (spec §5: single-threaded
// cooperative concurrency model).
type Engine struct {
	Table *Table

	announcementTimer host.Timer
	timeoutTimer      host.Timer
	announcementSec   int
	timeoutSec        int

	// AnnouncementSize is the byte size of the largest local announcement
	// registered via RegisterLocal, feeding the bandwidth-limited scheduler
	// (ComputeTimes). It is not updated when an announcement is transmitted
	// and is not reduced when a local session is removed.
	AnnouncementSize int

	OnEvent EventHandler

	Log zerolog.Logger
}

// NewEngine returns an empty engine ready to HandleMessage and Process.
func NewEngine(onEvent EventHandler, log zerolog.Logger) *Engine {
	return &Engine{
		Table:      NewTable(),
		OnEvent:    onEvent,
		timeoutSec: MinTimeoutSec,
		Log:        log,
	}
}

func (e *Engine) fire(event Event, s *Session) {
	if event != EventNone {
		e.Log.Debug().
			Stringer("event", event).
			Uint16("hash", s.Hash).
			Str("origin", s.Origin.String()).
			Msg("sap: session event")
	}
	if e.OnEvent != nil {
		e.OnEvent(event, s)
	}
}

// RegisterLocal adds a session this host owns (e.g. one it is about to
// announce itself), recording payload as its SDP body and growing
// AnnouncementSize if this announcement is the largest seen so far, then
// immediately requesting an announcement so a freshly registered session
// is sent out right away rather than waiting for the next scheduled tick.
func (e *Engine) RegisterLocal(key Key, payload []byte, now host.Timestamp) *Session {
	if s := e.Table.Find(key); s != nil {
		return s
	}
	s := e.Table.Register(key, SourceSelf, now)
	s.Payload = append([]byte(nil), payload...)

	pkt := Packet{
		Header:  Header{Version: 1, IDHash: key.Hash, OrigSrc: key.Origin, PayloadType: SDPPayloadType},
		Payload: s.Payload,
	}
	if size := pkt.Length(); size > e.AnnouncementSize {
		e.AnnouncementSize = size
	}

	e.fire(EventAnnouncementRequest, s)
	return s
}

// HandleMessage parses and applies one received SAP packet, returning the
// event it produced (EventNone if the message was silently discarded) and
// the affected session. Grounded on
// original_source/src/core/sap.c:aes67_sap_service_handle, simplified:
// compressed and encrypted payloads are out of scope (spec §1 non-goals)
// and are discarded rather than decoded.
func (e *Engine) HandleMessage(buf []byte, now host.Timestamp) (Event, *Session, error) {
	header, err := ParseHeader(buf)
	if err != nil {
		return EventNone, nil, err
	}
	if header.Encrypted || header.Compressed {
		return EventNone, nil, nil
	}
	if header.IDHash == 0 {
		return EventNone, nil, nil
	}

	key := Key{Hash: header.IDHash, Origin: header.OrigSrc}
	session := e.Table.Find(key)

	// A message we ourselves sent, looping back via multicast, is ignored.
	if session != nil && session.Source == SourceSelf {
		return EventNone, nil, nil
	}

	payload := buf[header.Len:]

	if header.Type == TypeDelete {
		if session == nil {
			return EventNone, nil, nil
		}
		e.fire(EventDeleted, session)
		e.Table.Unregister(session)
		return EventDeleted, session, nil
	}

	var event Event
	if session == nil {
		session = e.Table.Register(key, SourceRemote, now)
		event = EventNew
	} else {
		event = EventUpdated
	}
	session.LastAnnouncement = now
	session.Payload = append([]byte(nil), payload...)

	if header.PayloadType == SDPPayloadType {
		if doc, err := sdp.Unmarshal(payload, sdp.Options{}); err == nil {
			session.Originator = doc.Originator
		}
	}

	e.fire(event, session)
	return event, session, nil
}

// Process drives the engine's time-based work: evicting timed-out remote
// sessions and requesting re-announcement of local sessions whose
// scheduled interval has elapsed. Callers invoke this periodically (or
// whenever their event loop wakes up); the engine never spawns its own
// timer goroutine (spec §5).
func (e *Engine) Process(now host.Timestamp) {
	e.checkTimeouts(now)
	e.setTimeoutTimer()

	e.checkAnnouncements(now)
	e.setAnnouncementTimer()
}

func (e *Engine) checkTimeouts(now host.Timestamp) {
	if e.timeoutTimer.State() != host.StateExpired {
		return
	}
	for _, s := range e.Table.All() {
		if s.Source != SourceRemote {
			continue
		}
		age := host.DiffMsec(now, s.LastAnnouncement)
		if age > int32(e.timeoutSec)*1000 {
			e.fire(EventTimeout, s)
			e.Table.Unregister(s)
		}
	}
	e.timeoutTimer.Unset()
}

func (e *Engine) setTimeoutTimer() {
	if e.Table.NoOfAdsOther == 0 {
		return
	}
	if e.timeoutTimer.State() != host.StateUnset {
		return
	}
	_, timeoutSec := ComputeTimes(e.Table.NoOfAdsSelf+e.Table.NoOfAdsOther, e.AnnouncementSize)
	e.timeoutSec = timeoutSec
	e.timeoutTimer.Set(uint32(timeoutSec) * 1000)
}

func (e *Engine) checkAnnouncements(now host.Timestamp) {
	if e.announcementTimer.State() != host.StateExpired {
		return
	}
	for _, s := range e.Table.All() {
		if s.Source != SourceSelf {
			continue
		}
		e.fire(EventAnnouncementRequest, s)
	}
	e.announcementTimer.Unset()
}

func (e *Engine) setAnnouncementTimer() {
	if e.Table.NoOfAdsSelf == 0 || e.AnnouncementSize == 0 {
		return
	}
	if e.announcementTimer.State() != host.StateUnset {
		return
	}
	intervalSec, _ := ComputeTimes(e.Table.NoOfAdsSelf+e.Table.NoOfAdsOther, e.AnnouncementSize)
	e.announcementSec = intervalSec
	e.announcementTimer.Set(uint32(intervalSec) * 1000)
}
