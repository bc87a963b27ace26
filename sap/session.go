package sap

import (
	"github.com/tschiemer/aes67-core/host"
	"github.com/tschiemer/aes67-core/netaddr"
	"github.com/tschiemer/aes67-core/sdp"
)

// Source tags a session record as either observed on the wire or owned and
// re-announced by this host (spec §3: "managed-by flag").
type Source uint8

const (
	SourceRemote Source = iota
	SourceSelf
)

// Key identifies a session by the pair (message-hash, originator address),
// per spec §3.
type Key struct {
	Hash   uint16
	Origin netaddr.Addr
}

// Session is one session directory record (spec §3: "SAP session record").
type Session struct {
	Key
	Source           Source
	LastAnnouncement host.Timestamp
	Payload          []byte // full current SDP payload, copied in
	Originator       sdp.Originator
}

// Table is the session directory: a map of records keyed by Key, from
// which Unregister deletes entries, mirroring the original's register/unregister counter split
// (spec §9: "Ownership & cyclic references" - stable-key addressing instead
// of intrusive pointers).
type Table struct {
	sessions map[Key]*Session

	// NoOfAdsSelf/NoOfAdsOther track live sessions by Source, feeding the
	// scheduler's bandwidth computation (original_source/src/core/sap.c:
	// no_of_ads_self / no_of_ads_other).
	NoOfAdsSelf  int
	NoOfAdsOther int
}

// NewTable returns an empty session table.
func NewTable() *Table {
	return &Table{sessions: make(map[Key]*Session)}
}

// Find returns the session with the given key, or nil if absent.
func (t *Table) Find(key Key) *Session {
	return t.sessions[key]
}

// Register adds a new session to the table and bumps the relevant
// counter. It does not check for an existing session with this key: such a
// record is replaced and the counter is bumped again, so callers Find first.
func (t *Table) Register(key Key, source Source, now host.Timestamp) *Session {
	s := &Session{
		Key:              key,
		Source:           source,
		LastAnnouncement: now,
	}
	t.sessions[key] = s
	if source == SourceSelf {
		t.NoOfAdsSelf++
	} else {
		t.NoOfAdsOther++
	}
	return s
}

// Unregister removes s from the table and decrements its source's counter.
//
// Bug-fix note (spec §9 open question): the original
// aes67_sap_service_unregister clears session->stat to
// AES67_SAP_SESSION_STAT_CLEAR *before* testing
// (stat & AES67_SAP_SESSION_STAT_SRC_IS_SELF), so the self/other branch
// always takes the "other" path and no_of_ads_self never decrements for a
// self-owned session removal. Here the source is captured into a local
// before any mutation, so the correct counter is always decremented.
func (t *Table) Unregister(s *Session) {
	source := s.Source
	delete(t.sessions, s.Key)
	if source == SourceSelf {
		t.NoOfAdsSelf--
	} else {
		t.NoOfAdsOther--
	}
}

// Len returns the number of sessions currently tracked.
func (t *Table) Len() int {
	return len(t.sessions)
}

// All returns every tracked session. The returned slice is a snapshot;
// mutating the table afterwards does not affect it.
func (t *Table) All() []*Session {
	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}
