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
)

func pipe(t *testing.T) (client, server net.Conn) {
	client, server = net.Pipe()
	t.Cleanup(func() { client.Close() })
	return client, server
}

func TestPoolServes(t *testing.T) {
	var served atomic.Int32
	p := NewPool(2, 4, func(_ context.Context, conn net.Conn) {
		defer conn.Close()
		served.Add(1)
		_, _ = conn.Write([]byte("ok"))
	})
	p.Start()

	for i := 0; i < 5; i++ {
		client, server := pipe(t)
		require.NoError(t, p.Submit(context.Background(), server))
		b, err := io.ReadAll(client)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(b))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(5), served.Load())

	_, server := pipe(t)
	assert.ErrorIs(t, p.Submit(context.Background(), server), ErrPoolClosed)
}

func TestPoolBackpressure(t *testing.T) {
	release := make(chan struct{})
	p := NewPool(1, 1, func(_ context.Context, conn net.Conn) {
		<-release
		conn.Close()
	})
	p.Start()

	_, c1 := pipe(t)
	_, c2 := pipe(t)
	_, c3 := pipe(t)
	require.NoError(t, p.Submit(context.Background(), c1))
	require.Eventually(t, func() bool { return p.Active() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, p.Submit(context.Background(), c2))

	// The worker is busy and the queue is full: Submit waits.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Submit(ctx, c3), context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Submit(context.Background(), c3))
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPoolShutdownDrains(t *testing.T) {
	var served atomic.Int32
	p := NewPool(1, 3, func(_ context.Context, conn net.Conn) {
		time.Sleep(20 * time.Millisecond)
		served.Add(1)
		conn.Close()
	})
	p.Start()
	for i := 0; i < 3; i++ {
		_, server := pipe(t)
		require.NoError(t, p.Submit(context.Background(), server))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
	assert.Equal(t, int32(3), served.Load())
}

func TestPoolShutdownForce(t *testing.T) {
	var canceled atomic.Bool
	p := NewPool(1, 2, func(ctx context.Context, conn net.Conn) {
		defer conn.Close()
		// Blocks until the conn is closed under us.
		_, _ = io.Copy(io.Discard, conn)
		<-ctx.Done()
		canceled.Store(true)
	})
	p.Start()

	_, busy := pipe(t)
	queuedClient, queued := pipe(t)
	require.NoError(t, p.Submit(context.Background(), busy))
	require.Eventually(t, func() bool { return p.Active() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, p.Submit(context.Background(), queued))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, canceled.Load())
	assert.Equal(t, 0, p.Active())

	// The queued connection was closed without being served.
	_, err := queuedClient.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestPoolShutdownNotStarted(t *testing.T) {
	p := NewPool(1, 1, func(context.Context, net.Conn) {})
	client, server := pipe(t)
	require.NoError(t, p.Submit(context.Background(), server))
	require.NoError(t, p.Shutdown(context.Background()))

	_, err := client.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestPoolAbortDropsUnregisteredConn(t *testing.T) {
	var served atomic.Bool
	p := NewPool(1, 0, func(context.Context, net.Conn) { served.Store(true) })

	// A worker that dequeued a conn but had not registered it when the grace
	// ran out must not serve it.
	p.abort()
	client, server := pipe(t)
	p.serve(server)

	assert.False(t, served.Load())
	assert.Equal(t, 0, p.Active())
	_, err := client.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}
