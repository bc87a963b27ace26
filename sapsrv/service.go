package sapsrv

import (
	"github.com/rs/zerolog"

	"github.com/tschiemer/aes67-core/host"
	"github.com/tschiemer/aes67-core/netaddr"
	"github.com/tschiemer/aes67-core/sap"
)

// Service binds a sap.Engine to a live multicast Listener and, optionally,
// a Sender for local-session announcements, reading datagrams and handing
// them to the engine, and periodically driving the engine's timer
// bookkeeping. It replaces the teacher's goroutine-heavy
// sap.SDPConn.countStreams with the engine's poll-based model (spec §5).
type Service struct {
	Engine *sap.Engine

	listen *Listener
	send   *Sender

	onEvent sap.EventHandler
	log     zerolog.Logger
}

// New creates a Service listening on cfg.Scopes and announcing locally
// registered sessions on cfg.SendScopes (or cfg.Scopes, if SendScopes is
// empty) - both on cfg.Port/cfg.Interface - reporting session events to
// onEvent.
func New(cfg Config, onEvent sap.EventHandler, log zerolog.Logger) (*Service, error) {
	listenGroups, err := ScopeGroups(cfg.Scopes)
	if err != nil {
		return nil, err
	}
	sendScopes := cfg.SendScopes
	if len(sendScopes) == 0 {
		sendScopes = cfg.Scopes
	}
	sendGroups, err := ScopeGroups(sendScopes)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = SAPPort
	}

	l, err := Listen(listenGroups, port, cfg.Interface)
	if err != nil {
		return nil, err
	}
	snd, err := NewSender(sendGroups, port, cfg.Interface)
	if err != nil {
		l.Close()
		return nil, err
	}
	return newService(l, snd, onEvent, log), nil
}

// NewFromListener builds a receive-only Service around an already-open
// Listener, for callers (cmd/sapdump's -group flag) that
// bypass ScopeGroups and never announce anything of their own.
func NewFromListener(l *Listener, onEvent sap.EventHandler, log zerolog.Logger) *Service {
	return newService(l, nil, onEvent, log)
}

func newService(l *Listener, snd *Sender, onEvent sap.EventHandler, log zerolog.Logger) *Service {
	s := &Service{listen: l, send: snd, onEvent: onEvent, log: log}
	s.Engine = sap.NewEngine(s.dispatch, log)
	return s
}

// dispatch is the engine's sole event sink: it transmits outgoing
// announcements before forwarding every event, including
// EventAnnouncementRequest itself, to the caller's handler.
func (s *Service) dispatch(event sap.Event, session *sap.Session) {
	if event == sap.EventAnnouncementRequest {
		s.announce(session)
	}
	if s.onEvent != nil {
		s.onEvent(event, session)
	}
}

// announce encodes session as a SAP announcement and writes it to every
// send-scope group. A Service built with NewFromListener has no Sender and
// silently skips transmission, since it only ever tracks remote sessions.
func (s *Service) announce(session *sap.Session) {
	if s.send == nil || len(session.Payload) == 0 {
		return
	}
	pkt := sap.Packet{
		Header: sap.Header{
			Version:     1,
			IDHash:      session.Hash,
			OrigSrc:     session.Origin,
			PayloadType: sap.SDPPayloadType,
		},
		Payload: session.Payload,
	}
	buf := make([]byte, ReadBufferSize)
	n, err := pkt.WriteBinary(buf)
	if err != nil {
		s.log.Error().Err(err).Msg("sapsrv: failed to encode announcement")
		return
	}
	if err := s.send.Send(buf[:n]); err != nil {
		s.log.Error().Err(err).Msg("sapsrv: failed to send announcement")
	}
}

// RegisterLocal registers a session this host owns under (hash, origin)
// with payload as its SDP body. Registration immediately sends an initial
// announcement on every send-scope and re-announces on the scheduler's
// cadence thereafter, driven by subsequent Process calls inside ServeOne.
func (s *Service) RegisterLocal(hash uint16, origin netaddr.Addr, payload []byte, now host.Timestamp) *sap.Session {
	return s.Engine.RegisterLocal(sap.Key{Hash: hash, Origin: origin}, payload, now)
}

// Close releases the underlying sockets.
func (s *Service) Close() error {
	err := s.listen.Close()
	if s.send != nil {
		if sendErr := s.send.Close(); err == nil {
			err = sendErr
		}
	}
	return err
}

// ServeOne reads and applies a single incoming SAP datagram, then runs the
// engine's periodic Process pass, which also re-announces any locally
// registered sessions whose interval has elapsed. Callers drive a loop
// with this (or read in their own goroutine and call Process on a ticker)
// rather than the service spawning any background work itself.
func (s *Service) ServeOne() error {
	buf := make([]byte, ReadBufferSize)
	n, err := s.listen.ReadPacket(buf)
	if err != nil {
		return err
	}
	now := host.Now()
	if _, _, err := s.Engine.HandleMessage(buf[:n], now); err != nil {
		s.log.Debug().Err(err).Msg("sapsrv: discarding malformed SAP packet")
	}
	s.Engine.Process(now)
	return nil
}

// Sessions returns a snapshot of every currently tracked session,
// optionally narrowed by a SessionFilter (pass nil for no filtering).
func (s *Service) Sessions(f SessionFilter) []*sap.Session {
	all := s.Engine.Table.All()
	if f == nil {
		return all
	}
	return Apply(all, f)
}
