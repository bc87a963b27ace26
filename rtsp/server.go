package rtsp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Method is a recognized request method, bitmask-compatible with the
// original's method flags so HTTPMethods can be built by OR'ing values.
type Method int

const (
	MethodOptions Method = 1 << iota
	MethodDescribe
	MethodGet
	MethodPost
	MethodDelete
	MethodPut
)

// Proto is the protocol a request line declared (RTSP vs HTTP),
// distinguished by the trailer token of the first request line.
type Proto int

const (
	ProtoUndefined Proto = iota
	ProtoRTSP
	ProtoHTTP
)

// MaxURILen bounds a resource URI, matching AES67_RTSP_SRV_MAXURILEN.
const MaxURILen = 256

// MaxRequestLineLen bounds the first request line before it is
// considered malformed, per spec §4.7.
const MaxRequestLineLen = 256

// MaxRequestSize bounds the full request (first line + headers) a
// connection may send before the server gives up on it, matching
// AES67_RTSP_SRV_RXBUFSIZE.
const MaxRequestSize = 1500

var (
	errRequestLineOversize = errors.New("rtsp: request line exceeds MaxRequestLineLen")
	errRequestOversize     = errors.New("rtsp: request exceeds MaxRequestSize")
	errMalformedRequest    = errors.New("rtsp: malformed request line")
	errUnrecognizedMethod  = errors.New("rtsp: unrecognized method")
)

// HTTPHandler answers an HTTP request the server was configured to
// accept (GET/POST/PUT/DELETE), returning a status code, content type and
// body; the server frames these into an HTTP/1.1 response.
type HTTPHandler func(method Method, uri string, body []byte) (statusCode int, contentType string, respBody []byte)

// Server is the single-listener, single-active-connection-at-a-time
// RTSP describe-server (spec §4.7): a resource directory maps URI to an
// SDP document, served on DESCRIBE; OPTIONS advertises DESCRIBE; an
// optional caller handler answers plain HTTP methods on the same port.
type Server struct {
	listener net.Listener
	log      zerolog.Logger

	resources   map[string][]byte
	httpEnabled bool
	httpMethods Method
	httpHandler HTTPHandler
}

// NewServer returns a Server with an empty resource directory and HTTP
// support disabled. Use EnableHTTP to turn it on.
func NewServer(log zerolog.Logger) *Server {
	return &Server{resources: make(map[string][]byte), log: log}
}

// NewServerFromConfig returns a Server configured per cfg, with HTTP
// delegation wired to handler if cfg.HTTPEnabled. Listen still has to be
// called separately with cfg.ListenAddr.
func NewServerFromConfig(cfg ServerConfig, handler HTTPHandler, log zerolog.Logger) *Server {
	s := NewServer(log)
	if cfg.HTTPEnabled {
		s.EnableHTTP(cfg.methodMask(), handler)
	}
	return s
}

// EnableHTTP turns on delegated HTTP handling for the given method set
// (OR MethodGet|MethodPost|... together), routed to handler.
func (s *Server) EnableHTTP(methods Method, handler HTTPHandler) {
	s.httpEnabled = true
	s.httpMethods = methods
	s.httpHandler = handler
}

// AddResource publishes sdp under uri; a subsequent DESCRIBE for uri
// returns it. A later call with the same uri replaces the document.
func (s *Server) AddResource(uri string, sdp []byte) error {
	if len(uri) > MaxURILen {
		return fmt.Errorf("rtsp: uri %q exceeds MaxURILen", uri)
	}
	s.resources[uri] = sdp
	return nil
}

// RemoveResource withdraws uri from the directory; a subsequent
// DESCRIBE for it will 404.
func (s *Server) RemoveResource(uri string) {
	delete(s.resources, uri)
}

// Listen opens the TCP listener. addr is host:port, typically with port
// 554 per spec §6.3.
func (s *Server) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Serve accepts connections one at a time, handling each to completion
// before accepting the next - matching the original's single-active-
// connection model. Serve returns when Accept fails: nil if ctx has been
// cancelled by then, otherwise Accept's error. Cancelling ctx alone does
// not unblock a pending Accept; Close does.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := s.log.With().Str("conn", uuid.NewString()).Logger()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	_ = conn.SetDeadline(deadline)

	req, err := readRequest(conn)
	if err != nil {
		log.Debug().Err(err).Msg("rtsp: malformed request, closing without response")
		return
	}

	resp := s.handleRequest(req)
	if resp == nil {
		log.Debug().Msg("rtsp: unrecognized method, closing without response")
		return
	}
	if _, err := conn.Write(resp); err != nil {
		log.Debug().Err(err).Msg("rtsp: failed writing response")
	}
}

type request struct {
	proto   Proto
	method  Method
	uri     string
	cseq    string // opaque token, echoed back verbatim, never parsed as a number
	headers map[string]string
	body    []byte
}

// readRequest reads and parses one request off conn, byte-at-a-time in
// spirit (CR-NL tolerant), enforcing the ceilings of spec §4.7.
func readRequest(conn net.Conn) (*request, error) {
	buf := make([]byte, 0, 512)
	one := make([]byte, 1)
	lineLen := 0
	sawFirstLine := false

	for {
		n, err := conn.Read(one)
		if n == 0 || err != nil {
			return nil, fmt.Errorf("rtsp: read error before headers complete: %w", err)
		}
		buf = append(buf, one[0])
		if len(buf) > MaxRequestSize {
			return nil, errRequestOversize
		}
		if !sawFirstLine {
			lineLen++
			if lineLen > MaxRequestLineLen {
				return nil, errRequestLineOversize
			}
			if one[0] == '\n' {
				sawFirstLine = true
			}
		}
		if bytes.HasSuffix(buf, []byte("\r\n\r\n")) || bytes.HasSuffix(buf, []byte("\n\n")) {
			break
		}
	}

	headerEnd := bytes.Index(buf, []byte("\r\n\r\n"))
	sep := 4
	if headerEnd < 0 {
		headerEnd = bytes.Index(buf, []byte("\n\n"))
		sep = 2
	}
	lines := splitLines(buf[:headerEnd])
	if len(lines) == 0 {
		return nil, errMalformedRequest
	}

	method, uri, proto, err := parseRequestLine(lines[0])
	if err != nil {
		return nil, err
	}

	req := &request{proto: proto, method: method, uri: uri, headers: map[string]string{}}
	contentLen := 0
	for _, line := range lines[1:] {
		key, val, ok := splitHeader(line)
		if !ok {
			continue
		}
		nk := normalizeHeaderKey(key)
		req.headers[nk] = val
		switch nk {
		case "cseq":
			req.cseq = val
		case "content-length":
			contentLen, _ = strconv.Atoi(val)
		}
	}

	if contentLen > 0 {
		body := make([]byte, contentLen)
		copy(body, buf[headerEnd+sep:])
		remaining := contentLen - len(buf[headerEnd+sep:])
		for remaining > 0 {
			n, err := conn.Read(body[contentLen-remaining:])
			if err != nil {
				return nil, fmt.Errorf("rtsp: read error in body: %w", err)
			}
			remaining -= n
		}
		req.body = body
	}

	return req, nil
}

// parseRequestLine parses "<METHOD> <uri> <TOKEN>/<major>.<minor>",
// classifying proto by trailer token (RTSP vs HTTP) per spec §4.7.
func parseRequestLine(line []byte) (Method, string, Proto, error) {
	fields := strings.Fields(string(line))
	if len(fields) != 3 {
		return 0, "", ProtoUndefined, errMalformedRequest
	}

	var method Method
	switch strings.ToUpper(fields[0]) {
	case "OPTIONS":
		method = MethodOptions
	case "DESCRIBE":
		method = MethodDescribe
	case "GET":
		method = MethodGet
	case "POST":
		method = MethodPost
	case "PUT":
		method = MethodPut
	case "DELETE":
		method = MethodDelete
	default:
		return 0, "", ProtoUndefined, errUnrecognizedMethod
	}

	var proto Proto
	switch {
	case strings.HasPrefix(fields[2], "RTSP/1."):
		proto = ProtoRTSP
	case strings.HasPrefix(fields[2], "HTTP/1."):
		proto = ProtoHTTP
	default:
		return 0, "", ProtoUndefined, errMalformedRequest
	}

	if len(fields[1]) > MaxURILen {
		return 0, "", ProtoUndefined, errMalformedRequest
	}

	return method, fields[1], proto, nil
}

// handleRequest dispatches a parsed request to the matching handler,
// returning the raw response bytes, or nil if the request should be
// dropped without any response (unrecognized method, disallowed
// HTTP-on-RTSP-port combination).
func (s *Server) handleRequest(req *request) []byte {
	switch req.proto {
	case ProtoRTSP:
		switch req.method {
		case MethodOptions:
			return s.respondOptions(req)
		case MethodDescribe:
			return s.respondDescribe(req)
		default:
			return nil
		}
	case ProtoHTTP:
		if !s.httpEnabled || req.method&s.httpMethods == 0 {
			return nil
		}
		code, ctype, body := s.httpHandler(req.method, req.uri, req.body)
		return buildHTTPResponse(code, ctype, body)
	default:
		return nil
	}
}

func (s *Server) respondOptions(req *request) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "RTSP/1.0 200 OK\r\n")
	fmt.Fprintf(&b, "CSeq: %s\r\n", req.cseq)
	fmt.Fprintf(&b, "Public: DESCRIBE\r\n")
	fmt.Fprintf(&b, "\r\n")
	return b.Bytes()
}

func (s *Server) respondDescribe(req *request) []byte {
	uri := stripRTSPPrefix(req.uri)
	sdp, ok := s.resources[uri]
	if !ok {
		var b bytes.Buffer
		fmt.Fprintf(&b, "RTSP/1.0 404 NOT FOUND\r\n")
		fmt.Fprintf(&b, "CSeq: %s\r\n", req.cseq)
		fmt.Fprintf(&b, "\r\n")
		return b.Bytes()
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "RTSP/1.0 200 OK\r\n")
	fmt.Fprintf(&b, "CSeq: %s\r\n", req.cseq)
	fmt.Fprintf(&b, "Content-Type: application/sdp\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(sdp))
	fmt.Fprintf(&b, "\r\n")
	b.Write(sdp)
	return b.Bytes()
}

// stripRTSPPrefix removes a leading "rtsp://host[:port]" from uri,
// per spec §4.7's "after stripping rtsp://host prefix" lookup rule.
func stripRTSPPrefix(uri string) string {
	if !strings.HasPrefix(uri, "rtsp://") {
		return uri
	}
	rest := uri[len("rtsp://"):]
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return "/"
	}
	return rest[idx:]
}

func buildHTTPResponse(code int, contentType string, body []byte) []byte {
	var b bytes.Buffer
	statusText := "OK"
	switch code {
	case 404:
		statusText = "NOT FOUND"
	case 501:
		statusText = "NOT IMPLEMENTED"
	}
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", code, statusText)
	if contentType != "" {
		fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	fmt.Fprintf(&b, "\r\n")
	b.Write(body)
	return b.Bytes()
}
