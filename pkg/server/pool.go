package server

import (
	"context"
	"errors"
	"net"
	"sync"
)

// ErrPoolClosed is returned by Submit once Shutdown has been called.
var ErrPoolClosed = errors.New("worker pool closed")

// ConnFunc serves one connection end to end, including closing it.
type ConnFunc func(ctx context.Context, conn net.Conn)

// Pool runs a fixed number of workers over a bounded queue of accepted
// connections.
type Pool struct {
	workers int
	queue   chan net.Conn
	fn      ConnFunc

	// ctx is handed to fn and canceled when shutdown runs out of time.
	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
	closing   chan struct{}
	wg        sync.WaitGroup

	// mu guards closed against in-flight Submit calls.
	mu     sync.RWMutex
	closed bool

	activeMu sync.Mutex
	active   map[net.Conn]struct{}
}

// NewPool returns a pool of workers that hands connections to fn. Up to
// queueSize connections wait when every worker is busy.
func NewPool(workers, queueSize int, fn ConnFunc) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: workers,
		queue:   make(chan net.Conn, queueSize),
		fn:      fn,
		ctx:     ctx,
		cancel:  cancel,
		closing: make(chan struct{}),
		active:  make(map[net.Conn]struct{}),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(p.workers)
		for i := 0; i < p.workers; i++ {
			go p.worker()
		}
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for conn := range p.queue {
		p.serve(conn)
	}
}

func (p *Pool) serve(conn net.Conn) {
	p.activeMu.Lock()
	if p.ctx.Err() != nil {
		// Forced shutdown: drop whatever is still queued.
		p.activeMu.Unlock()
		conn.Close()
		return
	}
	p.active[conn] = struct{}{}
	p.activeMu.Unlock()

	defer func() {
		p.activeMu.Lock()
		delete(p.active, conn)
		p.activeMu.Unlock()
	}()

	p.fn(p.ctx, conn)
}

// Submit queues conn for a worker. It blocks while the queue is full, until
// ctx is done or the pool shuts down. On error the caller still owns conn.
func (p *Pool) Submit(ctx context.Context, conn net.Conn) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- conn:
		return nil
	case <-p.closing:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active returns the number of connections being served right now.
func (p *Pool) Active() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return len(p.active)
}

// Shutdown stops accepting work and waits for workers to finish what is in
// flight and queued. When ctx expires first, every connection being served is
// closed, the handler context is canceled and queued connections are dropped;
// Shutdown then waits for the workers to exit and returns ctx's error.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.closing)
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		p.abort()
		<-done
	}
	p.cancel()

	// Only reachable when the pool was never started.
	for conn := range p.queue {
		conn.Close()
	}
	return err
}

// abort closes every connection being served, then cancels the handler
// context. Both happen under activeMu so a worker either registers its
// connection in time to be closed here or sees the canceled context.
func (p *Pool) abort() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for conn := range p.active {
		conn.Close()
	}
	p.cancel()
}
