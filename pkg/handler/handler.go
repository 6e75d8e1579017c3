// Package handler defines the request handler contract and the built-in
// handlers the server can route to.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/apoxy-dev/webserver/pkg/httpwire"
)

// Handler produces a response for a request routed to it. Handle is called
// concurrently from many workers against the same instance.
//
// A returned error is treated as an internal fault and answered with a 500.
// Expected failures (missing files, unknown ids) are ordinary responses.
// Handlers that hold resources also implement io.Closer.
type Handler interface {
	Handle(ctx context.Context, req *httpwire.Request) (*httpwire.Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *httpwire.Request) (*httpwire.Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req *httpwire.Request) (*httpwire.Response, error) {
	return f(ctx, req)
}

// remainder strips prefix from path and any leading slashes:
// ("/static", "/static/css/a.css") -> "css/a.css".
func remainder(prefix, path string) string {
	if prefix != "/" {
		path = strings.TrimPrefix(path, prefix)
	}
	return strings.TrimLeft(path, "/")
}

func methodNotAllowed() *httpwire.Response {
	return httpwire.Text(http.StatusMethodNotAllowed, "405 Method Not Allowed")
}
