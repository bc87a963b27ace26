//   Copyright 2017 Anatole Denis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mcastutil implements multicast-related helper functions used by
// sapsrv to join the SAP groups on more than one interface/zone at once.
package mcastutil

import (
	"errors"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

var errNoGroups = errors.New("mcastutil: no multicast groups given")

// ListenMulticastUDP reimplements net.ListenMulticastUDP with multiple
// groups joined simultaneously on the default interface.
func ListenMulticastUDP(gaddrs []net.IP, port int) (conn *net.UDPConn, err error) {
	return ListenMulticastUDPOnInterface(nil, gaddrs, port)
}

// ListenMulticastUDPOnInterface joins every address in gaddrs on ifi (nil
// for the system default interface), returning the resulting UDP socket.
// Generalized from the teacher's single-interface ListenMulticastUDP so
// sapsrv.Config.Interface can pin a listener to one NIC.
func ListenMulticastUDPOnInterface(ifi *net.Interface, gaddrs []net.IP, port int) (conn *net.UDPConn, err error) {
	if len(gaddrs) == 0 {
		return nil, errNoGroups
	}
	// see net/sock_posix.go:184 we need to use a multicast address as
	// laddr for proper SO_REUSEADDR setting
	conn, err = net.ListenUDP("udp", &net.UDPAddr{IP: gaddrs[0], Port: port})
	if err != nil {
		return
	}

	pc6 := ipv6.NewPacketConn(conn)
	pc4 := ipv4.NewPacketConn(conn)
	for _, gaddr := range gaddrs {
		if err = pc6.JoinGroup(ifi, &net.IPAddr{IP: gaddr}); err == nil {
			continue
		} else if gaddr.To4() == nil {
			return
		}
		// If it doesn't work as IPv6 (apparently v4-mapped addresses are
		// outright rejected), retry as an IPv4 group join.
		if err = pc4.JoinGroup(ifi, &net.IPAddr{IP: gaddr}); err != nil {
			return
		}
	}
	return
}

// DialMulticastUDP opens a UDP socket for sending to multicast groups,
// optionally constrained to ifi's outgoing interface (nil for the system
// default), for sapsrv's announcement sender.
func DialMulticastUDP(ifi *net.Interface) (conn *net.UDPConn, err error) {
	conn, err = net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return
	}
	if ifi == nil {
		return conn, nil
	}
	// Same v6-then-v4 retry as ListenMulticastUDPOnInterface's JoinGroup:
	// pure-v4 sockets reject the v6 call outright.
	if err = ipv6.NewPacketConn(conn).SetMulticastInterface(ifi); err == nil {
		return conn, nil
	}
	if err = ipv4.NewPacketConn(conn).SetMulticastInterface(ifi); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
