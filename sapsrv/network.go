package sapsrv

import (
	"fmt"
	"net"
)

const (
	// SAPPort is the well-known port for SAP announcements (RFC 2974 §3).
	SAPPort = 9875

	initialMTU = 1500
)

// GroupAddr4 is the standard IPv4 multicast group for SAP announcements.
var GroupAddr4 = net.IPv4(224, 2, 127, 254)

// groupAddr6 is the SAP IPv6 multicast group template; byte 1 carries the
// scope/zone identifier and is filled in by V6GroupByZone.
var groupAddr6 = net.IP{0xff, 0x00, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x02, 0x7f, 0xfe}

// Zone values for the "scope" names accepted in Config.Scopes, per
// RFC 2974 §3's recommended per-scope group addresses.
const (
	zoneLink   = 0x02
	zoneSite   = 0x05
	zoneOrg    = 0x08
	zoneGlobal = 0x0e
)

// V6GroupByZone returns the SAP IPv6 multicast group address for the given
// zone identifier (one of the zoneXxx constants, or a caller-supplied
// value for a non-standard scope).
func V6GroupByZone(zone byte) net.IP {
	gaddr := make(net.IP, net.IPv6len)
	copy(gaddr, groupAddr6)
	gaddr[1] = zone
	return gaddr
}

// ScopeGroups resolves Config.Scopes into the concrete multicast group
// addresses to join. Recognized names are "link", "site", "org", "global"
// (IPv6 zones) and "v4" (the IPv4 group); an empty list resolves to the
// teacher's historical default of every zone plus v4.
func ScopeGroups(scopes []string) ([]net.IP, error) {
	if len(scopes) == 0 {
		scopes = []string{"link", "site", "org", "global", "v4"}
	}
	groups := make([]net.IP, 0, len(scopes))
	for _, s := range scopes {
		switch s {
		case "link":
			groups = append(groups, V6GroupByZone(zoneLink))
		case "site":
			groups = append(groups, V6GroupByZone(zoneSite))
		case "org":
			groups = append(groups, V6GroupByZone(zoneOrg))
		case "global":
			groups = append(groups, V6GroupByZone(zoneGlobal))
		case "v4":
			groups = append(groups, GroupAddr4)
		default:
			return nil, fmt.Errorf("sapsrv: unknown scope %q", s)
		}
	}
	return groups, nil
}
