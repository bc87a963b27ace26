package sdp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tschiemer/aes67-core/sdp"
)

// S3 from spec §8.
func TestMarshalMinimal(t *testing.T) {
	d := sdp.NewDocument()
	d.Originator = sdp.Originator{
		Username:       "joe",
		SessionID:      "1234567890",
		SessionVersion: "9876543210",
		Family:         sdp.IP4,
		Address:        "random.host.name",
	}
	d.Tool = "caes67"

	want := "v=0\r\n" +
		"o=joe 1234567890 9876543210 IN IP4 random.host.name\r\n" +
		"s= \r\n" +
		"t=0 0\r\n" +
		"a=tool:caes67\r\n"

	assert.Equal(t, want, string(d.Marshal()))
}

// S4 from spec §8.
func TestUnmarshalOneStream(t *testing.T) {
	in := "v=0\n" +
		"o=- 123 45678 IN IP4 ipaddr1\n" +
		"s= \n" +
		"c=IN IP4 ipaddr2/44/36\n" +
		"t=0 0\n" +
		"a=ptp-domain:PTPv2 13\n" +
		"a=inactive\n" +
		"m=audio 5000 RTP/AVP 96 97\n" +
		"a=recvonly\n" +
		"a=rtpmap:96 L16/48000/2\n" +
		"a=rtpmap:97 L32/96000\n" +
		"a=ptime:1.33\n" +
		"a=mediaclk:direct=963214424\n"

	d, err := sdp.Unmarshal([]byte(in), sdp.Options{})
	require.NoError(t, err)

	require.Len(t, d.Connections, 1)
	c := d.Connections[0]
	assert.False(t, c.Level.Stream)
	assert.Equal(t, sdp.IP4, c.Family)
	assert.Equal(t, "ipaddr2", c.Address)
	assert.Equal(t, 44, c.TTL)
	assert.Equal(t, 36, c.NAddr)

	assert.True(t, d.HasPTPDomain)
	assert.EqualValues(t, 13, d.PTPDomain)

	require.Len(t, d.Streams, 1)
	s := d.Streams[0]
	assert.Equal(t, 5000, s.Port)
	assert.Equal(t, sdp.ModeRecvOnly, s.Mode)
	assert.Equal(t, 1330, s.PtimeUs)
	assert.True(t, s.HasMediaClock)
	assert.EqualValues(t, 963214424, s.MediaClockOffset)

	encs := d.StreamEncodings(0)
	require.Len(t, encs, 2)
	assert.Equal(t, 96, encs[0].PayloadType)
	assert.Equal(t, sdp.L16, encs[0].Sample)
	assert.Equal(t, 48000, encs[0].SampleRateHz)
	assert.Equal(t, 2, encs[0].Channels)
	assert.Equal(t, 97, encs[1].PayloadType)
	assert.Equal(t, sdp.L32, encs[1].Sample)
	assert.Equal(t, 96000, encs[1].SampleRateHz)
	assert.Equal(t, 1, encs[1].Channels)
}

// Invariant I4: serialize then parse yields an equal document.
func TestRoundTrip(t *testing.T) {
	d := sdp.NewDocument()
	d.Originator = sdp.Originator{
		SessionID: "1", SessionVersion: "1", Family: sdp.IP4, Address: "10.0.0.1",
	}
	d.SessionName = "test session"
	d.Mode = sdp.ModeSendOnly
	d.HasPTPDomain = true
	d.PTPDomain = 0

	d.Connections = append(d.Connections, sdp.Connection{
		Level: sdp.SessionLevel, Family: sdp.IP4, Address: "239.1.1.1", TTL: 32,
	})

	d.Encodings = append(d.Encodings, sdp.Encoding{
		Level: sdp.StreamLevel(0), PayloadType: 98, Sample: sdp.L24, SampleRateHz: 48000, Channels: 8,
	})
	d.Streams = append(d.Streams, sdp.Stream{
		Port: 5004, Profile: "RTP/AVP", PayloadTypes: []int{98},
		PtimeUs: 1000, EncodingsStart: 0, EncodingsCount: 1,
		PTPIndex: -1, ActiveConfigIndex: -1,
	})
	d.SessionPTPIndex = -1

	out := d.Marshal()
	got, err := sdp.Unmarshal(out, sdp.Options{})
	require.NoError(t, err)

	assert.True(t, d.Originator.Eq(got.Originator))
	assert.Equal(t, d.SessionName, got.SessionName)
	require.Len(t, got.Streams, 1)
	assert.Equal(t, d.Streams[0].Port, got.Streams[0].Port)
	assert.Equal(t, d.Streams[0].PtimeUs, got.Streams[0].PtimeUs)
	gotEncs := got.StreamEncodings(0)
	require.Len(t, gotEncs, 1)
	assert.Equal(t, 98, gotEncs[0].PayloadType)
	assert.Equal(t, sdp.L24, gotEncs[0].Sample)
	assert.Equal(t, 8, gotEncs[0].Channels)
}

func TestOriginatorCompareVersion(t *testing.T) {
	assert.Equal(t, -1, sdp.CompareVersion("9", "10"))
	assert.Equal(t, 1, sdp.CompareVersion("10", "9"))
	assert.Equal(t, 1, sdp.CompareVersion("100", "99"))
	assert.Equal(t, 0, sdp.CompareVersion("42", "42"))
	assert.Equal(t, -1, sdp.CompareVersion("41", "42"))
}

func TestOriginatorEqIgnoresVersion(t *testing.T) {
	a := sdp.Originator{Username: "joe", SessionID: "1", SessionVersion: "1", Family: sdp.IP4, Address: "10.0.0.1"}
	b := a
	b.SessionVersion = "2"
	assert.True(t, a.Eq(b))

	c := a
	c.SessionID = "2"
	assert.False(t, a.Eq(c))
}

// Invariant I5.
func TestIsValidAES67Audio(t *testing.T) {
	d := sdp.NewDocument()
	d.Encodings = append(d.Encodings, sdp.Encoding{
		Level: sdp.StreamLevel(0), PayloadType: 96, Sample: sdp.L16, SampleRateHz: 48000, Channels: 2,
	})
	d.Streams = append(d.Streams, sdp.Stream{
		Port: 5004, PtimeUs: 1000, EncodingsStart: 0, EncodingsCount: 1,
	})
	assert.True(t, d.IsValidAES67Audio(0))

	d.Streams[0].PtimeUs = 0
	assert.False(t, d.IsValidAES67Audio(0))
}

func TestUnmarshalUnhandledLineCallback(t *testing.T) {
	in := "v=0\r\no=- 1 1 IN IP4 10.0.0.1\r\ns= \r\nt=0 0\r\na=x-custom:hello\r\n"
	var seen []string
	_, err := sdp.Unmarshal([]byte(in), sdp.Options{
		UnhandledLine: func(ctx sdp.Context, line string) {
			seen = append(seen, line)
		},
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "a=x-custom:hello", seen[0])
}

func TestUnmarshalRejectsUnsupportedVersion(t *testing.T) {
	_, err := sdp.Unmarshal([]byte("v=1\r\n"), sdp.Options{})
	require.Error(t, err)
	pe, ok := err.(*sdp.ParseError)
	require.True(t, ok)
	assert.Equal(t, sdp.NotSupported, pe.Result)
}

func TestUnmarshalRejectsOutOfRangePayloadType(t *testing.T) {
	in := "v=0\r\no=- 1 1 IN IP4 10.0.0.1\r\ns= \r\nt=0 0\r\n" +
		"m=audio 5004 RTP/AVP 96\r\na=rtpmap:200 L16/48000/2\r\n"
	_, err := sdp.Unmarshal([]byte(in), sdp.Options{})
	require.Error(t, err)
	pe, ok := err.(*sdp.ParseError)
	require.True(t, ok)
	assert.Equal(t, sdp.NotSupported, pe.Result)
}
