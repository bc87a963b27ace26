package sapsrv

import (
	"github.com/tschiemer/aes67-core/host"
	"github.com/tschiemer/aes67-core/sap"
	"github.com/tschiemer/aes67-core/sdp"
)

// SessionFilter decides whether a caller cares about a given session,
// generalized from the teacher's sap.ChannelFilter (which matched only by
// SDP session name) to operate on the richer sap.Session record.
type SessionFilter func(*sap.Session) bool

// ChannelList builds a SessionFilter matching sessions whose SDP session
// name ("s=" line) is in names. A session whose payload fails to parse as
// SDP never matches.
func ChannelList(names []string) SessionFilter {
	return func(s *sap.Session) bool {
		doc, err := sdp.Unmarshal(s.Payload, sdp.Options{})
		if err != nil {
			return false
		}
		for _, n := range names {
			if n == doc.SessionName {
				return true
			}
		}
		return false
	}
}

// NotExpired builds a SessionFilter that only accepts sessions last heard
// from within maxAgeSec of asOf. Engine.Process already evicts sessions
// once they exceed their scheduler-assigned timeout; this filter exists
// for callers building a point-in-time snapshot on their own cadence
// (e.g. a UI refresh) and wanting the tighter RFC 2974 "3 missed
// intervals" bound rather than the full timeout.
func NotExpired(asOf host.Timestamp, maxAgeSec int32) SessionFilter {
	return func(s *sap.Session) bool {
		return host.DiffMsec(asOf, s.LastAnnouncement) <= maxAgeSec*1000
	}
}

// And combines two filters with logical AND.
func And(a, b SessionFilter) SessionFilter {
	return func(s *sap.Session) bool {
		return a(s) && b(s)
	}
}

// Apply returns the subset of sessions for which f returns true.
func Apply(sessions []*sap.Session, f SessionFilter) []*sap.Session {
	out := make([]*sap.Session, 0, len(sessions))
	for _, s := range sessions {
		if f(s) {
			out = append(out, s)
		}
	}
	return out
}
