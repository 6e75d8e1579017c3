package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/apoxy-dev/webserver/pkg/handler"
	"github.com/apoxy-dev/webserver/pkg/httpwire"
	"github.com/apoxy-dev/webserver/pkg/log"
)

// Logged as handler_type when no handler produced the response.
const noHandler = "None"

// connState carries one connection through its states:
// readRequest -> dispatch -> writeResponse -> closed.
type connState struct {
	s    *Server
	ctx  context.Context
	conn net.Conn
	br   *bufio.Reader
	id   string
	log  *slog.Logger

	req         *httpwire.Request
	resp        *httpwire.Response
	handlerType string
}

type stateFunc func(*connState) stateFunc

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	c := &connState{
		s:           s,
		ctx:         ctx,
		conn:        conn,
		br:          bufio.NewReader(conn),
		id:          uuid.NewString(),
		handlerType: noHandler,
	}
	c.log = slog.With(slog.String("conn", c.id), slog.String("remote", remoteIP(conn)))
	defer conn.Close()

	c.log.Debug("connection accepted")
	for state := readRequest; state != nil; {
		state = state(c)
	}
}

func readRequest(c *connState) stateFunc {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.s.opts.ReadTimeout)); err != nil {
		c.log.Debug("failed to set read deadline", slog.Any("error", err))
		return nil
	}
	req, err := httpwire.ReadRequest(c.br, c.s.opts.Limits)
	switch {
	case err == nil:
		c.req = req
		return dispatch
	case errors.Is(err, httpwire.ErrMalformed):
		c.log.Debug("malformed request", slog.Any("error", err))
		c.resp = httpwire.BadRequest()
		return writeResponse
	case errors.Is(err, io.EOF):
		c.log.Debug("connection closed before a request was sent")
	case isTimeout(err):
		// Stalled peers, including a body that stops short of its
		// Content-Length, are dropped without a response.
		c.log.Debug("timed out reading request")
	default:
		c.log.Debug("failed to read request", slog.Any("error", err))
	}
	return nil
}

func dispatch(c *connState) stateFunc {
	route, _, ok := c.s.table.Resolve(c.req.Path())
	if !ok {
		c.resp = httpwire.NotFound()
		return writeResponse
	}
	c.handlerType = route.HandlerType
	c.resp = c.invoke(route.Handler)
	return writeResponse
}

// invoke runs h, turning errors and panics into a 500.
func (c *connState) invoke(h handler.Handler) (resp *httpwire.Response) {
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("handler", c.handlerType)
		scope.SetTag("conn", c.id)
		scope.SetExtra("method", c.req.Method)
		scope.SetExtra("path", c.req.Path())
	})

	defer func() {
		if r := recover(); r != nil {
			hub.Recover(r)
			c.log.Error("handler panicked", slog.String("handler", c.handlerType), slog.Any("panic", r))
			resp = httpwire.InternalError()
		}
	}()

	resp, err := h.Handle(c.ctx, c.req)
	if err != nil && c.ctx.Err() != nil && errors.Is(err, c.ctx.Err()) {
		c.log.Debug("handler canceled by shutdown", slog.String("handler", c.handlerType))
		return httpwire.InternalError()
	}
	if err != nil {
		hub.CaptureException(err)
		c.log.Error("handler failed", slog.String("handler", c.handlerType), slog.Any("error", err))
		return httpwire.InternalError()
	}
	if resp == nil {
		hub.CaptureException(fmt.Errorf("%s returned no response", c.handlerType))
		c.log.Error("handler returned no response", slog.String("handler", c.handlerType))
		return httpwire.InternalError()
	}
	return resp
}

func writeResponse(c *connState) stateFunc {
	c.logMetrics()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.s.opts.WriteTimeout)); err != nil {
		c.log.Debug("failed to set write deadline", slog.Any("error", err))
		return nil
	}
	b := c.resp.Encode()
	if c.req != nil && c.req.Method == http.MethodHead {
		b = c.resp.EncodeHead()
	}
	if _, err := httpwire.WriteAll(c.conn, b); err != nil {
		c.log.Debug("failed to write response", slog.Any("error", err))
	}
	return nil
}

func (c *connState) logMetrics() {
	method, path := "-", "-"
	if c.req != nil {
		method, path = c.req.Method, c.req.Target
	}
	log.Infof("[ResponseMetrics] request_ip:%s request_method:%s request_path:%s -> response_code:%d handler_type:%s",
		remoteIP(c.conn), method, path, c.resp.StatusCode, c.handlerType)
}

func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return "<unknown>"
	}
	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}
	return addr.String()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
