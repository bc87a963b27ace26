// Package mdns models the external service-discovery collaborator the
// core expects (spec §6.5). The core itself never implements multicast
// DNS; it only depends on this interface, so embedders can plug in
// whatever stack (Avahi, Bonjour, a pure-Go responder) fits their
// platform. Nothing under sap/sdp/rtp/rtsp/sapsrv imports this package.
package mdns

import "net"

// Result classifies an event delivered for an outstanding browse or
// resolve operation.
type Result int

const (
	ResultError Result = iota
	ResultDiscovered
	ResultTerminated
)

func (r Result) String() string {
	switch r {
	case ResultDiscovered:
		return "discovered"
	case ResultTerminated:
		return "terminated"
	default:
		return "error"
	}
}

// BrowseEvent reports one discovered or withdrawn service instance for
// a given service type.
type BrowseEvent struct {
	Result Result
	Type   string
	Name   string
	Domain string
	Err    error
}

// ResolveEvent reports the resolved address/port/TXT data for a single
// service instance.
type ResolveEvent struct {
	Result     Result
	Type       string
	Name       string
	HostTarget string
	Port       int
	Text       map[string]string
	IP         net.IP
	TTLSeconds uint32
	Err        error
}

// BrowseHandle and ResolveHandle identify an outstanding operation so
// it can be individually cancelled via Stop.
type BrowseHandle interface{ Stop() }
type ResolveHandle interface{ Stop() }

// Discoverer is the mDNS/DNS-SD collaborator the core expects: browse
// for instances of a service type, resolve a named instance to an
// address, publish a local service, and append a raw record to an
// already-published service.
type Discoverer interface {
	// Browse watches for instances of serviceType appearing or
	// disappearing under domain ("" for the default domain), invoking
	// cb for each event until the returned handle's Stop is called.
	Browse(serviceType, domain string, cb func(BrowseEvent)) (BrowseHandle, error)

	// Resolve watches a single named instance, invoking cb whenever its
	// address/port/TXT data is (re)discovered or it disappears.
	Resolve(serviceType, name, domain string, cb func(ResolveEvent)) (ResolveHandle, error)

	// PublishService advertises a local service under name/serviceType
	// on host:port with the given TXT records, until the returned
	// handle's Stop is called.
	PublishService(serviceType, name, host string, port int, txt map[string]string) (PublishHandle, error)

	// AddRecord appends an additional TXT entry to an already-published
	// service (spec's add_record, scoped to TXT since that is the only
	// record type a DNS-SD service carries beyond SRV/A/AAAA).
	AddRecord(handle PublishHandle, key, value string) error
}

// PublishHandle identifies a locally published service.
type PublishHandle interface{ Stop() }
