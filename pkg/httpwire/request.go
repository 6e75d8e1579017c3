// Package httpwire reads HTTP/1.1 requests from and writes responses to raw
// connections. Exactly one request is read per connection.
package httpwire

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Limits bounds how much of a request is buffered.
type Limits struct {
	// MaxHeaderBytes bounds the request line plus all header lines.
	MaxHeaderBytes int
	// MaxBodyBytes bounds the declared Content-Length.
	MaxBodyBytes int64
}

// DefaultLimits are used when a zero Limits value is passed to ReadRequest.
var DefaultLimits = Limits{
	MaxHeaderBytes: 64 << 10,
	MaxBodyBytes:   10 << 20,
}

var knownMethods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"OPTIONS": true,
	"PATCH":   true,
	"TRACE":   true,
	"CONNECT": true,
}

// Request is a decoded HTTP request. It is not modified after ReadRequest
// returns it.
type Request struct {
	Method  string
	Target  string
	Version string
	Header  Header
	Body    []byte
	// Raw holds the bytes exactly as received: request line, header lines,
	// the empty line and the body.
	Raw []byte
}

// Path returns the target without its query string.
func (r *Request) Path() string {
	if i := strings.IndexByte(r.Target, '?'); i >= 0 {
		return r.Target[:i]
	}
	return r.Target
}

// Query returns the raw query string, without the leading '?'.
func (r *Request) Query() string {
	if i := strings.IndexByte(r.Target, '?'); i >= 0 {
		return r.Target[i+1:]
	}
	return ""
}

// ContentLength returns the length of the body that was read.
func (r *Request) ContentLength() int {
	return len(r.Body)
}

type decoder struct {
	br     *bufio.Reader
	limits Limits
	raw    []byte
	used   int
}

// ReadRequest decodes one request from br. It never reads past the end of
// the declared body, other than whatever br itself has buffered.
//
// Syntax violations are returned as *ParseError (matching ErrMalformed).
// io.EOF is returned when the peer closed before sending anything, and
// read deadline errors are returned unwrapped so callers can tell a stalled
// peer apart from a malformed one.
func ReadRequest(br *bufio.Reader, limits Limits) (*Request, error) {
	if limits.MaxHeaderBytes <= 0 {
		limits.MaxHeaderBytes = DefaultLimits.MaxHeaderBytes
	}
	if limits.MaxBodyBytes <= 0 {
		limits.MaxBodyBytes = DefaultLimits.MaxBodyBytes
	}
	d := &decoder{br: br, limits: limits}

	req := &Request{}
	line, err := d.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) && len(d.raw) > 0 {
			return nil, malformed("request line truncated")
		}
		return nil, err
	}
	if err := parseRequestLine(line, req); err != nil {
		return nil, err
	}

	if req.Header, err = d.readHeader(); err != nil {
		return nil, err
	}

	n, err := contentLength(req.Header, limits.MaxBodyBytes)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		req.Body = make([]byte, n)
		if m, err := io.ReadFull(br, req.Body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, malformed("body truncated after %d of %d bytes", m, n)
			}
			return nil, err
		}
		d.raw = append(d.raw, req.Body...)
	}
	req.Raw = d.raw
	return req, nil
}

// ParseRequest decodes a request held entirely in memory.
func ParseRequest(b []byte) (*Request, error) {
	req, err := ReadRequest(bufio.NewReader(bytes.NewReader(b)), Limits{})
	if errors.Is(err, io.EOF) {
		return nil, malformed("empty request")
	}
	return req, err
}

// similar to readLineSlice() in net/textproto/reader.go, but keeps the raw
// bytes and accepts a bare LF terminator
func (d *decoder) readLine() (string, error) {
	var line []byte
	for {
		frag, err := d.br.ReadSlice('\n')
		d.used += len(frag)
		if d.used > d.limits.MaxHeaderBytes {
			return "", malformed("header section exceeds %d bytes", d.limits.MaxHeaderBytes)
		}
		d.raw = append(d.raw, frag...)
		line = append(line, frag...)
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return "", err
	}
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return string(line), nil
}

func parseRequestLine(line string, req *Request) error {
	fields := strings.Split(line, " ")
	if len(fields) != 3 {
		return malformed("invalid request line %q", line)
	}
	method, target, version := fields[0], fields[1], fields[2]

	if !isToken(method) || !knownMethods[method] {
		return malformed("unrecognized method %q", method)
	}
	if !validTarget(target) {
		return malformed("invalid request target %q", target)
	}
	if version != "HTTP/1.1" && version != "HTTP/1.0" {
		return malformed("unsupported version %q", version)
	}

	req.Method, req.Target, req.Version = method, target, version
	return nil
}

func validTarget(t string) bool {
	if t == "*" {
		return true
	}
	if t == "" || t[0] != '/' {
		return false
	}
	for i := 0; i < len(t); i++ {
		if c := t[i]; c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}

func (d *decoder) readHeader() (Header, error) {
	var h Header
	for {
		line, err := d.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, malformed("header section truncated")
			}
			return nil, err
		}
		if line == "" {
			return h, nil
		}
		if line[0] == ' ' || line[0] == '\t' {
			return nil, malformed("obsolete line folding")
		}
		i := strings.IndexByte(line, ':')
		if i < 0 {
			return nil, malformed("header line without colon %q", line)
		}
		name := line[:i]
		if !isToken(name) {
			return nil, malformed("invalid header name %q", name)
		}
		h = append(h, Field{
			Name:  name,
			Value: strings.Trim(line[i+1:], " \t"),
		})
	}
}

func contentLength(h Header, max int64) (int64, error) {
	if h.Has("Transfer-Encoding") {
		return 0, malformed("transfer-encoding is not supported")
	}
	vs := h.Values("Content-Length")
	if len(vs) == 0 {
		return 0, nil
	}
	for _, v := range vs[1:] {
		if v != vs[0] {
			return 0, malformed("conflicting Content-Length values")
		}
	}
	v := vs[0]
	if v == "" || strings.TrimLeft(v, "0123456789") != "" {
		return 0, malformed("invalid Content-Length %q", v)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, malformed("invalid Content-Length %q", v)
	}
	if n > max {
		return 0, malformed("Content-Length %d exceeds %d", n, max)
	}
	return n, nil
}
