package handler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apoxy-dev/webserver/pkg/handler"
	"github.com/apoxy-dev/webserver/pkg/httpwire"
)

func parse(t *testing.T, raw string) *httpwire.Request {
	t.Helper()
	req, err := httpwire.ParseRequest([]byte(raw))
	require.NoError(t, err)
	return req
}

func get(t *testing.T, path string) *httpwire.Request {
	return parse(t, "GET "+path+" HTTP/1.1\r\nHost: test\r\n\r\n")
}

func TestDefaultRegistry(t *testing.T) {
	r := handler.NewDefaultRegistry()
	assert.Equal(t, []string{
		"CrudApiHandler",
		"EchoHandler",
		"HealthHandler",
		"MarkdownHandler",
		"NotFoundHandler",
		"SleepHandler",
		"StaticHandler",
	}, r.Names())
	assert.True(t, r.Has(handler.EchoHandlerName))
	assert.False(t, r.Has("ProxyHandler"))

	_, err := r.Create("ProxyHandler", "/", nil)
	assert.ErrorIs(t, err, handler.ErrUnknownHandler)

	h, err := r.Create(handler.HealthHandlerName, "/health", nil)
	require.NoError(t, err)
	resp, err := h.Handle(context.Background(), get(t, "/health"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "OK", string(resp.Body))
}

func TestRegister(t *testing.T) {
	r := handler.NewRegistry()
	f := func(string, handler.Params) (handler.Handler, error) { return nil, nil }
	require.NoError(t, r.Register("Custom", f))
	assert.Error(t, r.Register("Custom", f))
	assert.Error(t, r.Register("", f))
	assert.Error(t, r.Register("Nil", nil))
}

func TestCreateBadParams(t *testing.T) {
	r := handler.NewDefaultRegistry()

	_, err := r.Create(handler.EchoHandlerName, "/echo", handler.Params{"root": "/tmp"})
	assert.Error(t, err)

	_, err = r.Create(handler.StaticHandlerName, "/static", nil)
	assert.Error(t, err, "root is required")

	_, err = r.Create(handler.StaticHandlerName, "/static", handler.Params{"root": "/does/not/exist"})
	assert.Error(t, err)

	_, err = r.Create(handler.SleepHandlerName, "/sleep", handler.Params{"sleep_duration": "soon"})
	assert.Error(t, err)
}

func TestParamsDecode(t *testing.T) {
	var opts struct {
		Root    string        `param:"root"`
		Workers int           `param:"workers"`
		Cache   bool          `param:"cache"`
		Timeout time.Duration `param:"timeout"`
	}
	err := handler.Params{
		"root":    "./files",
		"workers": "4",
		"cache":   "true",
		"timeout": "2s",
	}.Decode(&opts)
	require.NoError(t, err)
	assert.Equal(t, "./files", opts.Root)
	assert.Equal(t, 4, opts.Workers)
	assert.True(t, opts.Cache)
	assert.Equal(t, 2*time.Second, opts.Timeout)

	assert.Error(t, handler.Params{"bogus": "1"}.Decode(&opts))
}

func TestEcho(t *testing.T) {
	h, err := handler.NewEcho("/echo", handler.Params{})
	require.NoError(t, err)

	raw := "POST /echo/x HTTP/1.1\r\nHost: a\r\nContent-Length: 3\r\n\r\nabc"
	resp, err := h.Handle(context.Background(), parse(t, raw))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.ContentType)
	assert.Equal(t, raw, string(resp.Body))
}

func TestNotFound(t *testing.T) {
	h, err := handler.NewNotFound("/", handler.Params{})
	require.NoError(t, err)
	resp, err := h.Handle(context.Background(), get(t, "/anything"))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, httpwire.NotFoundBody, string(resp.Body))
}

func TestSleep(t *testing.T) {
	h, err := handler.NewSleep("/sleep", handler.Params{"sleep_duration": "0"})
	require.NoError(t, err)
	resp, err := h.Handle(context.Background(), get(t, "/sleep"))
	require.NoError(t, err)
	assert.Equal(t, "Slept for 0 seconds", string(resp.Body))

	h, err = handler.NewSleep("/sleep", handler.Params{"sleep_duration": "60"})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.Handle(ctx, get(t, "/sleep"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = handler.NewSleep("/sleep", handler.Params{"sleep_duration": "-1"})
	assert.Error(t, err)
}
