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

// Package sap implements the C5 SAP session directory: wire codec for
// RFC 2974 packets, a session table keyed by (message-hash, originator),
// a bandwidth-limited announcement scheduler, and an engine tying the
// three together into the absent/present/update/delete/timeout state
// machine of spec §3/§4.4.
package sap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tschiemer/aes67-core/netaddr"
	"github.com/tschiemer/aes67-core/sdp"
)

// Header is the SAP packet header structure from RFC 2974.
type Header struct {
	Version     uint8
	AddressType bool
	Reserved    bool
	Type        bool
	Compressed  bool
	Encrypted   bool
	AuthLen     uint8
	IDHash      uint16
	AuthData    *AuthData
	OrigSrc     netaddr.Addr
	PayloadType string
	// Len is the header's on-wire length in bytes (everything before the
	// payload), recomputed by WriteBinary/Length.
	Len int
}

// AuthData is the sub-header carrying authentication data (§6: the core
// only models this sub-header's shape; it never validates or produces
// signatures itself).
type AuthData struct {
	Version    uint8
	Padding    bool
	AuthMethod uint8
	PaddingLen uint8
	Data       []byte
}

const (
	// AuthMethodPGP is the code to use in the AuthHeader for PGP authentication.
	AuthMethodPGP = 0
	// AuthMethodCMS is the code to use in the AuthHeader for CMS (Cryptographic Message Syntax) authentication.
	AuthMethodCMS = 1
)

// Packet is a parsed SAP packet with its SDP payload still as raw bytes.
type Packet struct {
	Header
	Payload []byte
}

// SDPPacket is a Packet whose payload has been decoded as an SDP document.
type SDPPacket struct {
	Header
	Payload *sdp.Document
}

const (
	// TypeAnnounce is the value of the Type field for announcements.
	TypeAnnounce = false
	// TypeDelete is the value of the Type field for deletions.
	TypeDelete = true
	// AddrTypeV4 is the value of the AddressType field for IPv4.
	AddrTypeV4 = false
	// AddrTypeV6 is the value of the AddressType field for IPv6.
	AddrTypeV6 = true

	// SDPPayloadType is the default and only documented SAP payload type.
	SDPPayloadType = "application/sdp"
)

var (
	errInvalidHeaderLength = errors.New("sap: invalid header length")
	errInvalidVersion      = errors.New("sap: invalid SAP version")
	errMalformedPayload    = errors.New("sap: malformed payload type")
	errInvalidPadding      = errors.New("sap: invalid padding length")
	errBufferTooSmall      = errors.New("sap: destination buffer too small")
)

// ParseHeader parses the given buffer for a SAP header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < 4 {
		return Header{}, errInvalidHeaderLength
	}
	header := Header{
		Version:     (b[0] & 0xe0) >> 5,
		AddressType: (b[0] & 0x10) != 0,
		Reserved:    (b[0] & 0x08) != 0,
		Type:        (b[0] & 0x04) != 0,
		Encrypted:   (b[0] & 0x02) != 0,
		Compressed:  (b[0] & 0x01) != 0,
		AuthLen:     b[1],
		IDHash:      uint16(b[3]) | uint16(b[2])<<8,
		Len:         4,
	}
	if header.Version > 1 {
		return header, errInvalidVersion
	}

	if header.AddressType == AddrTypeV4 {
		if len(b) < header.Len+4 {
			return header, errInvalidHeaderLength
		}
		header.OrigSrc = netaddr.NewV4(b[4], b[5], b[6], b[7], 0)
		header.Len += 4
	} else {
		if len(b) < header.Len+16 {
			return header, errInvalidHeaderLength
		}
		var addr [16]byte
		copy(addr[:], b[4:20])
		header.OrigSrc = netaddr.NewV6(addr, 0)
		header.Len += 16
	}

	if header.AuthLen > 0 {
		if len(b) < header.Len+int(header.AuthLen)*4 {
			return header, errInvalidHeaderLength
		}
		ahData, err := parseAuthData(b[header.Len : header.Len+int(header.AuthLen)*4])
		if err != nil {
			return header, err
		}
		header.Len += int(header.AuthLen) * 4
		header.AuthData = &ahData
	}

	if header.Version != 0 {
		// Special case for no payload-type field: implicit "application/sdp".
		if len(b) >= header.Len+3 && bytes.Equal(b[header.Len:header.Len+3], []byte{'v', '=', '0'}) {
			header.PayloadType = SDPPayloadType
		} else {
			pltypelen := bytes.IndexByte(b[header.Len:], 0)
			if pltypelen < 0 {
				return header, errMalformedPayload
			}
			header.PayloadType = string(b[header.Len : header.Len+pltypelen])
			header.Len += pltypelen + 1 // null byte terminating the payload type
		}
	} else {
		header.PayloadType = SDPPayloadType
	}

	return header, nil
}

func parseAuthData(b []byte) (AuthData, error) {
	d := AuthData{
		Version:    (b[0] & 0xe0) >> 5,
		Padding:    (b[0] & 0x10) != 0,
		AuthMethod: b[0] & 0x0f,
	}
	if d.Version != 1 {
		return d, fmt.Errorf("sap: auth sub-header version %d is not supported", d.Version)
	}
	if d.Padding {
		d.PaddingLen = b[len(b)-1]
		if int(d.PaddingLen) > len(b)-1 {
			return d, errInvalidPadding
		}
	}
	d.Data = b[1 : len(b)-int(d.PaddingLen)]
	return d, nil
}

func booluint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// WriteBinary writes p in binary format into b.
func (p *Packet) WriteBinary(b []byte) (int, error) {
	p.recomputeLen()

	if len(b) < p.Len+len(p.Payload) {
		return 0, errBufferTooSmall
	}

	b[0] = p.Version<<5 + booluint8(p.AddressType)<<4 + booluint8(p.Reserved)<<3 + booluint8(p.Type)<<2 + booluint8(p.Encrypted)<<1 + booluint8(p.Compressed)
	b[1] = p.AuthLen
	binary.BigEndian.PutUint16(b[2:4], p.IDHash)

	var curlen int
	if p.AddressType == AddrTypeV4 {
		curlen = 4 + p.OrigSrc.CopyIntoBytes(b[4:8])
	} else {
		curlen = 4 + p.OrigSrc.CopyIntoBytes(b[4:20])
	}
	if p.AuthLen != 0 {
		if err := p.AuthData.writeBinary(b[curlen : curlen+int(p.AuthLen)*4]); err != nil {
			return curlen, err
		}
		curlen += int(p.AuthLen) * 4
	}
	if p.Version == 1 {
		curlen += copy(b[curlen:], p.PayloadType)
		b[curlen] = 0
		curlen++
	}
	curlen += copy(b[curlen:], p.Payload)
	return curlen, nil
}

// WriteBinary writes p in binary format into b, encoding its SDP payload.
func (p *SDPPacket) WriteBinary(b []byte) (int, error) {
	packet := Packet{Header: p.Header, Payload: p.Payload.Marshal()}
	return packet.WriteBinary(b)
}

func (a *AuthData) writeBinary(b []byte) error {
	b[0] = a.Version<<5 + booluint8(a.Padding)<<4 + (a.AuthMethod & 0xff)
	copy(b[1:], a.Data)
	if a.Padding {
		copy(b[1+len(a.Data):], make([]byte, a.PaddingLen))
		b[len(a.Data)+int(a.PaddingLen)] = a.PaddingLen
	}
	return nil
}

// Length returns p's total on-wire length (header + payload).
func (p *Packet) Length() int {
	p.recomputeLen()
	return p.Len + len(p.Payload)
}

// Length returns p's total on-wire length (header + marshaled SDP payload).
func (p *SDPPacket) Length() int {
	p.recomputeLen()
	return p.Len + len(p.Payload.Marshal())
}

func (h *Header) recomputeLen() {
	if h.AuthData != nil {
		h.AuthLen = h.AuthData.reflowPadding()
	}
	h.Len = 4 + int(h.AuthLen)*4
	h.AddressType = h.OrigSrc.Version() == netaddr.V6
	if h.AddressType == AddrTypeV4 {
		h.Len += 4
	} else {
		h.Len += 16
	}
	if h.Version != 0 {
		h.Len += len(h.PayloadType) + 1
	}
}

func (a *AuthData) reflowPadding() uint8 {
	authlen := uint8(len(a.Data) + 1)
	if a.Padding {
		authlen += a.PaddingLen
	}
	if authlen%4 != 0 {
		authlen -= a.PaddingLen
		a.PaddingLen = uint8(4 - ((len(a.Data) + 1) % 4))
		a.Padding = true
		return authlen/4 + 1
	}
	return authlen / 4
}

// ParseSDP decodes p's payload as an SDP document, returning an SDPPacket.
func (p *Packet) ParseSDP() (*SDPPacket, error) {
	if p.PayloadType != SDPPayloadType {
		return nil, fmt.Errorf("sap: unsupported payload type: %s", p.PayloadType)
	}
	doc, err := sdp.Unmarshal(p.Payload, sdp.Options{})
	if err != nil {
		return nil, err
	}
	return &SDPPacket{Header: p.Header, Payload: doc}, nil
}
