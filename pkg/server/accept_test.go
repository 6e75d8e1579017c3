package server

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apoxy-dev/webserver/pkg/router"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "accept: too many open files" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// flakyListener fails Accept with a timeout a few times, then hands out conn
// and reports itself closed afterwards.
type flakyListener struct {
	failures int32
	calls    atomic.Int32
	conn     net.Conn
}

func (l *flakyListener) Accept() (net.Conn, error) {
	n := l.calls.Add(1)
	switch {
	case n <= l.failures:
		return nil, timeoutError{}
	case n == l.failures+1:
		return l.conn, nil
	default:
		return nil, net.ErrClosed
	}
}

func (l *flakyListener) Close() error   { return nil }
func (l *flakyListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func TestAcceptLoopRetriesTimeouts(t *testing.T) {
	client, conn := pipe(t)
	ln := &flakyListener{failures: 3, conn: conn}

	served := make(chan struct{})
	pool := NewPool(1, 0, func(_ context.Context, c net.Conn) {
		c.Close()
		close(served)
	})
	pool.Start()
	defer pool.Shutdown(context.Background())

	s := New(Options{}, router.New(nil))
	require.NoError(t, s.acceptLoop(context.Background(), ln, pool))
	assert.Equal(t, int32(5), ln.calls.Load())

	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("connection accepted after retries was not served")
	}
	_, err := client.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestAcceptLoopStopsOnCancel(t *testing.T) {
	ln := &flakyListener{failures: 1 << 30}
	pool := NewPool(1, 0, func(context.Context, net.Conn) {})
	pool.Start()
	defer pool.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	s := New(Options{}, router.New(nil))
	done := make(chan error, 1)
	go func() { done <- s.acceptLoop(ctx, ln, pool) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("accept loop kept retrying after cancel")
	}
}
