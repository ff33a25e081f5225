package testutil

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/mcpi-fetch/pkg/conn"
)

// MockDialer is an in-memory conn.Dialer. It counts connection creation and can be told
// to fail specific dial attempts.
type MockDialer struct {
	Responder Responder

	// FailDial maps a 0-based dial attempt number to the error that attempt returns.
	FailDial map[int]error

	// Latency is added to every Receive.
	Latency time.Duration

	mu       sync.Mutex
	attempts int
	conns    []*MockConn
	created  atomic.Int64
}

// NewMockDialer creates a dialer answering with r.
func NewMockDialer(r Responder) *MockDialer {
	return &MockDialer{Responder: r}
}

// Dial implements conn.Dialer.
func (d *MockDialer) Dial(ctx context.Context, address string) (conn.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, &conn.IOError{Op: "dial", Addr: address, Err: err}
	}

	d.mu.Lock()
	attempt := d.attempts
	d.attempts++
	failErr := d.FailDial[attempt]
	d.mu.Unlock()

	if failErr != nil {
		return nil, &conn.IOError{Op: "dial", Addr: address, Err: failErr}
	}

	c := &MockConn{
		addr:      address,
		responder: d.Responder,
		latency:   d.Latency,
		wake:      make(chan struct{}),
	}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	d.created.Add(1)
	return c, nil
}

// Created returns the number of connections successfully created.
func (d *MockDialer) Created() int {
	return int(d.created.Load())
}

// Attempts returns the number of dial attempts, including failed ones.
func (d *MockDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

// Conns returns the connections created so far.
func (d *MockDialer) Conns() []*MockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*MockConn, len(d.conns))
	copy(out, d.conns)
	return out
}

// OpenConns returns the number of created connections not yet closed.
func (d *MockDialer) OpenConns() int {
	open := 0
	for _, c := range d.Conns() {
		if !c.IsClosed() {
			open++
		}
	}
	return open
}

// MockConn is an in-memory conn.Conn produced by MockDialer.
type MockConn struct {
	addr      string
	responder Responder
	latency   time.Duration

	mu       sync.Mutex
	queue    []string
	deadline time.Time
	wake     chan struct{}
	closed   bool
	requests int
	inUse    atomic.Int32
}

// Send implements conn.Conn.
func (c *MockConn) Send(method string, args ...any) error {
	c.enter()
	defer c.leave()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &conn.IOError{Op: "send", Addr: c.addr, Err: conn.ErrClosed}
	}
	m, a, err := ParseRequest(conn.FormatRequest(method, args...))
	if err != nil {
		return &conn.IOError{Op: "send", Addr: c.addr, Err: err}
	}
	c.queue = append(c.queue, c.responder(m, a))
	c.requests++
	return nil
}

// Receive implements conn.Conn. A Hang response blocks until the deadline passes or the
// connection is closed.
func (c *MockConn) Receive() (string, error) {
	c.enter()
	defer c.leave()

	if c.latency > 0 {
		time.Sleep(c.latency)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", &conn.IOError{Op: "receive", Addr: c.addr, Err: conn.ErrClosed}
	}
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return "", &conn.IOError{Op: "receive", Addr: c.addr, Err: errors.New("no request in flight")}
	}
	resp := c.queue[0]
	if resp != Hang {
		c.queue = c.queue[1:]
		c.mu.Unlock()
		return resp, nil
	}
	c.mu.Unlock()

	for {
		c.mu.Lock()
		deadline, wake, closed := c.deadline, c.wake, c.closed
		c.mu.Unlock()

		if closed {
			return "", &conn.IOError{Op: "receive", Addr: c.addr, Err: conn.ErrClosed}
		}
		var timer <-chan time.Time
		if !deadline.IsZero() {
			wait := time.Until(deadline)
			if wait <= 0 {
				// The late answer is treated as discarded so the connection stays usable.
				c.mu.Lock()
				if len(c.queue) > 0 {
					c.queue = c.queue[1:]
				}
				c.mu.Unlock()
				return "", &conn.IOError{Op: "receive", Addr: c.addr, Err: os.ErrDeadlineExceeded}
			}
			timer = time.After(wait)
		}
		select {
		case <-wake:
		case <-timer:
		}
	}
}

// SetDeadline implements conn.Conn.
func (c *MockConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	close(c.wake)
	c.wake = make(chan struct{})
	return nil
}

// Close implements conn.Conn.
func (c *MockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.wake)
		c.wake = make(chan struct{})
	}
	return nil
}

// IsClosed reports whether Close was called.
func (c *MockConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Requests returns the number of requests sent on this connection.
func (c *MockConn) Requests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests
}

// SharedUse reports whether two goroutines ever used this connection at the same time.
func (c *MockConn) SharedUse() bool {
	return c.inUse.Load() < 0
}

func (c *MockConn) enter() {
	if c.inUse.Add(1) > 1 {
		c.inUse.Store(-1 << 20)
	}
}

func (c *MockConn) leave() {
	c.inUse.Add(-1)
}
