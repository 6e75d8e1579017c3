package httpwire_test

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apoxy-dev/webserver/pkg/httpwire"
)

func TestParseRequest(t *testing.T) {
	raw := "POST /api/shoes?color=red HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"X-Tag: a\r\n" +
		"x-tag:   b  \r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		"hello"

	req, err := httpwire.ParseRequest([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/api/shoes?color=red", req.Target)
	assert.Equal(t, "/api/shoes", req.Path())
	assert.Equal(t, "color=red", req.Query())
	assert.Equal(t, "HTTP/1.1", req.Version)
	assert.Equal(t, "hello", string(req.Body))
	assert.Equal(t, raw, string(req.Raw))

	want := httpwire.Header{
		{Name: "Host", Value: "localhost"},
		{Name: "X-Tag", Value: "a"},
		{Name: "x-tag", Value: "b"},
		{Name: "Content-Length", Value: "5"},
	}
	if diff := cmp.Diff(want, req.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"a", "b"}, req.Header.Values("X-TAG"))
	assert.Equal(t, "localhost", req.Header.Get("host"))
}

func TestParseRequestBareLF(t *testing.T) {
	raw := "GET / HTTP/1.1\nHost: 127.0.0.1\n\n"
	req, err := httpwire.ParseRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", req.Header.Get("Host"))
	assert.Equal(t, raw, string(req.Raw))
	assert.Empty(t, req.Body)
}

func TestParseRequestMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown method", "BAD / HTTP/1.1\r\nHost: x\r\n\r\n"},
		{"lowercase method", "get / HTTP/1.1\r\n\r\n"},
		{"method with separator", "GE(T / HTTP/1.1\r\n\r\n"},
		{"two fields", "GET /\r\n\r\n"},
		{"four fields", "GET / HTTP/1.1 extra\r\n\r\n"},
		{"double space", "GET  / HTTP/1.1\r\n\r\n"},
		{"relative target", "GET index.html HTTP/1.1\r\n\r\n"},
		{"bad version", "GET / HTTP/2.0\r\n\r\n"},
		{"header without colon", "GET / HTTP/1.1\r\nHost localhost\r\n\r\n"},
		{"space before colon", "GET / HTTP/1.1\r\nHost : localhost\r\n\r\n"},
		{"folded header", "GET / HTTP/1.1\r\nX-A: b\r\n c\r\n\r\n"},
		{"negative length", "POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n"},
		{"signed length", "POST / HTTP/1.1\r\nContent-Length: +1\r\n\r\nx"},
		{"conflicting lengths", "POST / HTTP/1.1\r\nContent-Length: 1\r\nContent-Length: 2\r\n\r\nxx"},
		{"chunked", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\n"},
		{"truncated body", "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nshort"},
		{"truncated headers", "GET / HTTP/1.1\r\nHost: x\r\n"},
		{"truncated request line", "GET / HTT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := httpwire.ParseRequest([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, httpwire.ErrMalformed), "got %v", err)

			var perr *httpwire.ParseError
			assert.True(t, errors.As(err, &perr))
		})
	}
}

func TestReadRequestEmptyConnection(t *testing.T) {
	_, err := httpwire.ReadRequest(bufio.NewReader(strings.NewReader("")), httpwire.Limits{})
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadRequestLimits(t *testing.T) {
	t.Run("header too large", func(t *testing.T) {
		raw := "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("a", 128) + "\r\n\r\n"
		_, err := httpwire.ReadRequest(bufio.NewReader(strings.NewReader(raw)), httpwire.Limits{MaxHeaderBytes: 64})
		assert.ErrorIs(t, err, httpwire.ErrMalformed)
	})

	t.Run("body too large", func(t *testing.T) {
		raw := "POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\n" + strings.Repeat("a", 100)
		_, err := httpwire.ReadRequest(bufio.NewReader(strings.NewReader(raw)), httpwire.Limits{MaxBodyBytes: 10})
		assert.ErrorIs(t, err, httpwire.ErrMalformed)
	})

	t.Run("long line spanning buffer", func(t *testing.T) {
		value := strings.Repeat("v", 200)
		raw := "GET / HTTP/1.1\r\nX-Long: " + value + "\r\n\r\n"
		req, err := httpwire.ReadRequest(bufio.NewReaderSize(strings.NewReader(raw), 16), httpwire.Limits{})
		require.NoError(t, err)
		assert.Equal(t, value, req.Header.Get("X-Long"))
		assert.Equal(t, raw, string(req.Raw))
	})
}

func TestReadRequestStopsAtDeclaredBody(t *testing.T) {
	raw := "POST /echo HTTP/1.1\r\nContent-Length: 3\r\n\r\nabcGET /smuggled HTTP/1.1\r\n\r\n"
	req, err := httpwire.ParseRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(req.Body))
	assert.Equal(t, "POST /echo HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc", string(req.Raw))
}
