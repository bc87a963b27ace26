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

package sap

import (
	"bytes"
	"encoding/hex"
	"reflect"
	"testing"

	"github.com/tschiemer/aes67-core/netaddr"
)

var testV6Origin = netaddr.NewV6([16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0xc0, 0xf1, 0x31, 0x98, 0x20, 0x7f, 0, 0}, 0)
var testV4Origin = netaddr.NewV4(0x20, 0x7f, 0, 0, 0)

var testPackets = []struct {
	hexStream  string
	validSAP   bool
	validSDP   bool
	expected   Header
	rawPayload []byte
}{
	{ // 1: Normal validSAP packet with explicit PayloadType and empty payload
		hexStream: "3000f8300000000000000000c0f13198207f00006170706c69636174696f6e2f73647000",
		validSAP:  true,
		validSDP:  false, // empty payload does not parse as a document
		expected: Header{Version: 1,
			AddressType: AddrTypeV6,
			Reserved:    false,
			Type:        TypeAnnounce,
			Encrypted:   false,
			Compressed:  false,
			AuthLen:     0,
			IDHash:      0xf830,
			OrigSrc:     testV6Origin,
			PayloadType: SDPPayloadType,
			Len:         36,
		},
	},
	{ // 2: Normal validSAP IPv4 packet
		hexStream: "2000f830207f00006170706c69636174696f6e2f73647000",
		validSAP:  true,
		validSDP:  false,
		expected: Header{Version: 1,
			AddressType: AddrTypeV4,
			Reserved:    false,
			Type:        TypeAnnounce,
			Encrypted:   false,
			Compressed:  false,
			AuthLen:     0,
			IDHash:      0xf830,
			OrigSrc:     testV4Origin,
			PayloadType: SDPPayloadType,
			Len:         24,
		},
	},
	{ // 3: Normal validSAP packet with implicit PayloadType; payload alone
		// ("v=0\r\n") lacks an o= line so it does not parse as a complete
		// SDP document.
		hexStream: "3000f8300000000000000000c0f13198207f0000" + "763d300d0a",
		validSAP:  true,
		validSDP:  false,
		expected: Header{Version: 1,
			AddressType: AddrTypeV6,
			Reserved:    false,
			Type:        TypeAnnounce,
			Encrypted:   false,
			Compressed:  false,
			AuthLen:     0,
			IDHash:      0xf830,
			OrigSrc:     testV6Origin,
			PayloadType: SDPPayloadType,
			Len:         20,
		},
		rawPayload: []byte("v=0\r\n"),
	},
	{ // 4: v0 Normal validSAP packet with implicit PayloadType
		hexStream: "1000f8300000000000000000c0f13198207f0000",
		validSAP:  true,
		validSDP:  false,
		expected: Header{Version: 0,
			AddressType: AddrTypeV6,
			Reserved:    false,
			Type:        TypeAnnounce,
			Encrypted:   false,
			Compressed:  false,
			AuthLen:     0,
			IDHash:      0xf830,
			OrigSrc:     testV6Origin,
			PayloadType: SDPPayloadType,
			Len:         20,
		},
	},
	{ // 5: v1 validSAP, payload not parseable as SDP (no o= line)
		hexStream: "3000f8300000000000000000c0f13198207f00006170706c69636174696f6e2f73647000" + "773d300d0a",
		validSAP:  true,
		validSDP:  false,
		expected: Header{Version: 1,
			AddressType: AddrTypeV6,
			Reserved:    false,
			Type:        TypeAnnounce,
			Encrypted:   false,
			Compressed:  false,
			AuthLen:     0,
			IDHash:      0xf830,
			OrigSrc:     testV6Origin,
			PayloadType: SDPPayloadType,
			Len:         36,
		},
		rawPayload: []byte("w=0\r\n"),
	},
	{ // 6: Implicit PayloadType and invalid SAP payload (missing explicit type, but bytes 'o='... not 'v=0' so treated as explicit type parse)
		hexStream: "3000f8300000000000000000c0f13198207f0000" +
			"6f3d4d754d7544564220333536343433203120494e2049503620666631353a343234323a3a303a313a303430313a30",
	},
	{ // 7: Incorrect version
		hexStream: "5000f8300000000000000000c0f13198207f00006170706c69636174696f6e2f73647000",
	},
	{ // 8: Truncated packet (initial header)
		hexStream: "30",
	},
	{ // 9: Truncated packet (IPv6 address)
		hexStream: "3000f8300000000000000000c0f131",
	},
	{ // 10: Truncated packet (IPv4 address)
		hexStream: "2000f835a128",
	},
	{ // 11: Invalid PayloadType
		hexStream: "3000f8300000000000000000c0f13198207f00006270706c69636174696f6e2f73647000" + "763d300d0a",
		validSAP:  true,
		validSDP:  false,
		expected: Header{Version: 1,
			AddressType: AddrTypeV6,
			Reserved:    false,
			Type:        TypeAnnounce,
			Encrypted:   false,
			Compressed:  false,
			AuthLen:     0,
			IDHash:      0xf830,
			OrigSrc:     testV6Origin,
			PayloadType: "bpplication/sdp",
			Len:         36,
		},
		rawPayload: []byte("v=0\r\n"),
	},
	{ // 12: Truncated packet (incorrect authlen)
		hexStream: "30f0f8300000000000000000c0f13198207f00006170706c69636174696f6e2f73647000" + "773d300d0a",
	},
	{ // 13: validSAP packet with authdata
		hexStream: "3001f8300000000000000000c0f13198207f0000300000036170706c69636174696f6e2f73647000",
		validSAP:  true,
		validSDP:  false,
		expected: Header{Version: 1,
			AddressType: AddrTypeV6,
			Reserved:    false,
			Type:        TypeAnnounce,
			Encrypted:   false,
			Compressed:  false,
			AuthLen:     1,
			IDHash:      0xf830,
			OrigSrc:     testV6Origin,
			AuthData: &AuthData{
				Version:    1,
				Padding:    true,
				AuthMethod: AuthMethodPGP,
				PaddingLen: 3,
				Data:       []byte{},
			},
			PayloadType: SDPPayloadType,
			Len:         40,
		},
	},
	{ // 14: Invalid AuthData padding
		hexStream: "3001f8300000000000000000c0f13198207f0000300000136170706c69636174696f6e2f73647000",
	},
	{ // 15: Invalid AuthData Version
		hexStream: "3001f8300000000000000000c0f13198207f0000700000036170706c69636174696f6e2f73647000",
	},
}

func TestParseHeaderTable(t *testing.T) {
	for i, tc := range testPackets {
		packet, err := hex.DecodeString(tc.hexStream)
		if err != nil {
			t.Fatalf("test packet %d malformed: %v", i+1, err)
		}
		decoded, err := ParseHeader(packet)
		if !tc.validSAP {
			if err == nil {
				t.Errorf("%d: invalid SAP packet decoded without error", i+1)
			}
			continue
		}
		if err != nil {
			t.Errorf("%d: expected valid SAP packet, got error %v", i+1, err)
			continue
		}
		if !reflect.DeepEqual(decoded, tc.expected) {
			t.Errorf("%d: incorrect decoding:\nexpected %+v\ngot      %+v", i+1, tc.expected, decoded)
			continue
		}
		if !bytes.Equal(packet[decoded.Len:], tc.rawPayload) {
			t.Errorf("%d: wrong payload offset: got %x want %x", i+1, packet[decoded.Len:], tc.rawPayload)
		}
	}
}

func TestParseSDPTable(t *testing.T) {
	for i, tc := range testPackets {
		if !tc.validSAP {
			continue
		}
		packet := Packet{Header: tc.expected, Payload: tc.rawPayload}
		_, err := packet.ParseSDP()
		if (err == nil) != tc.validSDP {
			t.Errorf("%d: ParseSDP() error = %v, want validSDP = %v", i+1, err, tc.validSDP)
		}
	}
}

func TestPacketWriteBinaryRoundTrip(t *testing.T) {
	p := Packet{
		Header: Header{
			Version: 1, IDHash: 0xf830, OrigSrc: testV4Origin,
			PayloadType: SDPPayloadType,
		},
		Payload: []byte("v=0\r\n"),
	}
	buf := make([]byte, 64)
	n, err := p.WriteBinary(buf)
	if err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	decoded, err := ParseHeader(buf[:n])
	if err != nil {
		t.Fatalf("ParseHeader of round-tripped packet: %v", err)
	}
	if decoded.IDHash != p.IDHash || !decoded.OrigSrc.Equal(p.OrigSrc) {
		t.Errorf("round trip mismatch: got %+v", decoded)
	}
}
