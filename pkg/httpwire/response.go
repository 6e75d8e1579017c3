package httpwire

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
)

// Version is the protocol version written on every status line.
const Version = "HTTP/1.1"

const (
	// BadRequestBody is sent for every request the codec rejects.
	BadRequestBody = "Bad Request"
	// NotFoundBody is sent when no route matches the request path.
	NotFoundBody = "404 Not Found: The requested resource could not be found on this server."
	// InternalErrorBody is sent when a handler fails.
	InternalErrorBody = "500 Internal Server Error"
)

// Response is built once by a handler and not modified afterwards.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// NewResponse returns a response with the given status, content type and body.
func NewResponse(code int, contentType string, body []byte) *Response {
	return &Response{StatusCode: code, ContentType: contentType, Body: body}
}

// Text returns a text/plain response.
func Text(code int, body string) *Response {
	return NewResponse(code, "text/plain", []byte(body))
}

// BadRequest is the fixed response for requests that fail to decode.
func BadRequest() *Response { return Text(http.StatusBadRequest, BadRequestBody) }

// NotFound is the fixed response for paths no route claims.
func NotFound() *Response { return Text(http.StatusNotFound, NotFoundBody) }

// InternalError is the response for handler faults.
func InternalError() *Response { return Text(http.StatusInternalServerError, InternalErrorBody) }

// Reason returns the reason phrase for the status code.
func (r *Response) Reason() string {
	if s := http.StatusText(r.StatusCode); s != "" {
		return s
	}
	return "Unknown"
}

// EncodeHead returns the status line and header section. Header order is
// fixed: Content-Type, Content-Length, Connection.
func (r *Response) EncodeHead() []byte {
	var b bytes.Buffer
	b.Grow(128)
	b.WriteString(Version)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(r.StatusCode))
	b.WriteByte(' ')
	b.WriteString(r.Reason())
	b.WriteString("\r\nContent-Type: ")
	b.WriteString(r.ContentType)
	b.WriteString("\r\nContent-Length: ")
	b.WriteString(strconv.Itoa(len(r.Body)))
	b.WriteString("\r\nConnection: close\r\n\r\n")
	return b.Bytes()
}

// Encode returns the full response.
func (r *Response) Encode() []byte {
	head := r.EncodeHead()
	out := make([]byte, 0, len(head)+len(r.Body))
	out = append(out, head...)
	return append(out, r.Body...)
}

// WriteTo writes the full response to w.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	return WriteAll(w, r.Encode())
}

// WriteAll keeps writing until all of b is flushed or w fails.
func WriteAll(w io.Writer, b []byte) (int64, error) {
	var total int64
	for len(b) > 0 {
		n, err := w.Write(b)
		total += int64(n)
		b = b[n:]
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
