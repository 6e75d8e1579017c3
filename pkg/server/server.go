// Package server accepts TCP connections and serves one HTTP request on each
// of them through a bounded worker pool.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/netutil"

	"github.com/apoxy-dev/webserver/config"
	"github.com/apoxy-dev/webserver/pkg/httpwire"
	"github.com/apoxy-dev/webserver/pkg/router"
)

// Options configures a Server.
type Options struct {
	// Addr is the listen address for ListenAndServe, e.g. ":8080".
	Addr string
	// Workers is the number of connections served concurrently.
	Workers int
	// QueueSize is the number of accepted connections that may wait for a
	// worker. Accepting pauses when the queue is full.
	QueueSize int
	// ReadTimeout bounds receiving the whole request.
	ReadTimeout time.Duration
	// WriteTimeout bounds sending the whole response.
	WriteTimeout time.Duration
	// ShutdownGrace is how long in-flight connections may finish once the
	// server is told to stop.
	ShutdownGrace time.Duration
	// Limits bounds request sizes.
	Limits httpwire.Limits
}

// OptionsFromConfig converts a config server block.
func OptionsFromConfig(c config.Server) Options {
	queueSize := config.DefaultQueueSize
	if c.QueueSize != nil {
		queueSize = *c.QueueSize
	}
	return Options{
		Addr:          net.JoinHostPort("", strconv.Itoa(c.Port)),
		Workers:       c.Workers,
		QueueSize:     queueSize,
		ReadTimeout:   c.ReadTimeout,
		WriteTimeout:  c.WriteTimeout,
		ShutdownGrace: c.ShutdownGrace,
		Limits: httpwire.Limits{
			MaxHeaderBytes: c.MaxHeaderBytes,
			MaxBodyBytes:   c.MaxBodyBytes,
		},
	}
}

func (o *Options) setDefaults() {
	if o.Workers < 1 {
		o.Workers = config.DefaultWorkers
	}
	if o.QueueSize < 0 {
		o.QueueSize = 0
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = config.DefaultReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = config.DefaultWriteTimeout
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = config.DefaultShutdownGrace
	}
}

// Server serves the routes of one routing table.
type Server struct {
	opts  Options
	table *router.Table

	mu   sync.Mutex
	addr net.Addr
}

// New returns a server for table. The server takes ownership of the table's
// handlers; Close releases them.
func New(opts Options, table *router.Table) *Server {
	opts.setDefaults()
	return &Server{opts: opts, table: table}
}

// Addr returns the address Serve is listening on, or nil before it starts.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ListenAndServe listens on Options.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then stops
// accepting and lets in-flight connections finish within ShutdownGrace.
// Serve closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	ln = netutil.LimitListener(ln, s.opts.Workers+s.opts.QueueSize)

	pool := NewPool(s.opts.Workers, s.opts.QueueSize, s.serveConn)
	pool.Start()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Warn("failed to close listener", slog.Any("error", err))
		}
	}()

	slog.Info("server listening",
		slog.String("addr", ln.Addr().String()),
		slog.Int("workers", s.opts.Workers),
		slog.Int("queue_size", s.opts.QueueSize),
		slog.Int("routes", s.table.Len()))

	serveErr := s.acceptLoop(ctx, ln, pool)

	slog.Info("server shutting down", slog.String("addr", ln.Addr().String()))
	sctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownGrace)
	defer cancel()
	if err := pool.Shutdown(sctx); err != nil {
		slog.Warn("shutdown grace expired, closed remaining connections",
			slog.Duration("grace", s.opts.ShutdownGrace))
	}
	return serveErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, pool *Pool) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// Transient, e.g. out of file descriptors.
				delay := bo.NextBackOff()
				slog.Warn("accept failed, retrying", slog.Any("error", err), slog.Duration("backoff", delay))
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil
				}
				continue
			}
			return fmt.Errorf("failed to accept: %w", err)
		}
		bo.Reset()

		if err := pool.Submit(ctx, conn); err != nil {
			conn.Close()
			if ctx.Err() != nil || errors.Is(err, ErrPoolClosed) {
				return nil
			}
			return fmt.Errorf("failed to queue connection: %w", err)
		}
	}
}

// Close releases the resources held by the table's handlers.
func (s *Server) Close() error {
	var errs []error
	for _, r := range s.table.Routes() {
		if c, ok := r.Handler.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close %s handler at %s: %w", r.HandlerType, r.Prefix, err))
			}
		}
	}
	return errors.Join(errs...)
}
