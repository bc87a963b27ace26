package rtsp

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveOnce(t *testing.T, respond func(conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer ln.Close()
		buf := make([]byte, 1024)
		_, _ = conn.Read(buf)
		respond(conn)
	}()
	return ln.Addr().String()
}

func runClient(t *testing.T, addr string) *Client {
	t.Helper()
	c := NewClient()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx, addr, "rtsp://example/test.sdp"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		done, err := c.Process(time.Now().Add(200 * time.Millisecond))
		if done {
			_ = err
			return c
		}
		if time.Now().After(deadline) {
			t.Fatal("client never reached done")
		}
	}
}

func TestClientDescribeSuccess(t *testing.T) {
	body := []byte("v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=test\r\n")
	addr := serveOnce(t, func(conn net.Conn) {
		resp := "RTSP/1.0 200 OK\r\nCSeq: 1\r\nContent-Type: application/sdp\r\nContent-Length: " +
			strconv.Itoa(len(body)) + "\r\n\r\n"
		conn.Write([]byte(resp))
		conn.Write(body)
	})

	c := runClient(t, addr)
	assert.Equal(t, StateDone, c.State())
	assert.Equal(t, 200, c.StatusCode)
	assert.Equal(t, body, c.Content)
}

func TestClientMissingContentLength(t *testing.T) {
	addr := serveOnce(t, func(conn net.Conn) {
		conn.Write([]byte("RTSP/1.0 200 OK\r\nCSeq: 1\r\n\r\n"))
	})

	c := runClient(t, addr)
	assert.Equal(t, StateDone, c.State())
	assert.Nil(t, c.Content)
}

func TestClientMalformedStatusLine(t *testing.T) {
	addr := serveOnce(t, func(conn net.Conn) {
		conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
	})

	c := runClient(t, addr)
	assert.Equal(t, StateDone, c.State())
	assert.Nil(t, c.Content)
}

func TestClientOversizeResponse(t *testing.T) {
	addr := serveOnce(t, func(conn net.Conn) {
		junk := make([]byte, MaxResponseSize+100)
		for i := range junk {
			junk[i] = 'x'
		}
		conn.Write(junk)
	})

	c := runClient(t, addr)
	assert.Equal(t, StateDone, c.State())
	assert.Nil(t, c.Content)
}

func TestClientAlreadyStarted(t *testing.T) {
	addr := serveOnce(t, func(conn net.Conn) {
		conn.Write([]byte("RTSP/1.0 200 OK\r\nCSeq: 1\r\nContent-Length: 0\r\n\r\n"))
	})
	c := NewClient()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, addr, "rtsp://example/test.sdp"))
	assert.Equal(t, ErrAlreadyStarted, c.Start(ctx, addr, "rtsp://example/test.sdp"))
	c.Stop()
}
