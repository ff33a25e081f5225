// Package conn implements one persistent connection to a Minecraft Pi API endpoint.
//
// The protocol is line oriented: a request is "method(arg1,arg2,...)\n" and every request
// is answered by exactly one response line. A Conn is not safe for concurrent use; the
// pool hands each connection to exactly one worker at a time.
package conn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("connection closed")

	// ErrBroken is returned once a connection lost track of which response belongs to
	// which request. The socket is closed and the connection cannot be used again.
	ErrBroken = errors.New("connection broken")
)

// Conn is one request/response channel to the remote API.
type Conn interface {
	// Send writes one request line.
	Send(method string, args ...any) error
	// Receive blocks until one response line is available and returns it without the
	// trailing newline.
	Receive() (string, error)
	// SetDeadline bounds the next Send and Receive. A zero value clears the deadline.
	SetDeadline(t time.Time) error
	// Close terminates the connection.
	Close() error
}

// Dialer opens new connections. The pool depends on this interface so that tests can
// count and fault-inject connection creation.
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// TCPDialer dials plain TCP connections.
type TCPDialer struct {
	// Timeout bounds a single dial attempt (0 means no timeout beyond ctx).
	Timeout time.Duration

	// KeepAlive is the TCP keep-alive period (0 uses the net package default).
	KeepAlive time.Duration

	// Logger receives connection-level debug events. The zero value uses the global logger.
	Logger *zerolog.Logger
}

// Dial opens a TCP connection to address ("host:port").
func (d TCPDialer) Dial(ctx context.Context, address string) (Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}
	c, err := nd.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &IOError{Op: "dial", Addr: address, Err: err}
	}

	logger := log.With().Str("component", "mcpi-conn").Str("addr", address).Logger()
	if d.Logger != nil {
		logger = d.Logger.With().Str("addr", address).Logger()
	}

	return NewTCPConn(c, logger), nil
}

// TCPConn is a Conn over a net.Conn.
type TCPConn struct {
	c      net.Conn
	r      *bufio.Reader
	addr   string
	logger zerolog.Logger

	// pending counts requests written whose response has not been read yet. A request is
	// left pending when a fetch is cancelled mid-flight; its answer is discarded before
	// the next request so responses stay paired with requests.
	pending int

	closeOnce sync.Once
	closed    atomic.Bool
	broken    atomic.Bool
}

// NewTCPConn wraps an established net.Conn.
func NewTCPConn(c net.Conn, logger zerolog.Logger) *TCPConn {
	return &TCPConn{
		c:      c,
		r:      bufio.NewReader(c),
		addr:   c.RemoteAddr().String(),
		logger: logger,
	}
}

// Send writes a request line, first discarding any stale responses. If the stale
// responses cannot be read the connection is marked broken and closed.
func (t *TCPConn) Send(method string, args ...any) error {
	if t.broken.Load() {
		return &IOError{Op: "send", Addr: t.addr, Err: ErrBroken}
	}
	if t.closed.Load() {
		return &IOError{Op: "send", Addr: t.addr, Err: ErrClosed}
	}

	if t.pending > 0 {
		if err := t.drain(); err != nil {
			return err
		}
	}

	if _, err := t.c.Write([]byte(FormatRequest(method, args...))); err != nil {
		return &IOError{Op: "send", Addr: t.addr, Err: err}
	}
	t.pending++
	return nil
}

// Receive reads one response line.
func (t *TCPConn) Receive() (string, error) {
	if t.broken.Load() {
		return "", &IOError{Op: "receive", Addr: t.addr, Err: ErrBroken}
	}
	if t.closed.Load() {
		return "", &IOError{Op: "receive", Addr: t.addr, Err: ErrClosed}
	}

	line, err := t.readLine()
	if err != nil {
		return "", &IOError{Op: "receive", Addr: t.addr, Err: err}
	}
	if t.pending > 0 {
		t.pending--
	}
	return line, nil
}

// SetDeadline sets the read and write deadline of the underlying socket.
func (t *TCPConn) SetDeadline(d time.Time) error {
	if t.broken.Load() {
		return &IOError{Op: "set deadline", Addr: t.addr, Err: ErrBroken}
	}
	return t.c.SetDeadline(d)
}

// Close closes the socket. Repeated calls are no-ops.
func (t *TCPConn) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		err = t.c.Close()
	})
	return err
}

func (t *TCPConn) drain() error {
	t.logger.Debug().
		Int("pending", t.pending).
		Msg("Discarding stale responses")

	for t.pending > 0 {
		if _, err := t.readLine(); err != nil {
			t.broken.Store(true)
			t.Close()
			t.logger.Warn().
				Err(err).
				Int("pending", t.pending).
				Msg("Connection broken: stale responses not received")
			return &IOError{Op: "drain", Addr: t.addr, Err: fmt.Errorf("%w: %w", ErrBroken, err)}
		}
		t.pending--
	}
	return nil
}

func (t *TCPConn) readLine() (string, error) {
	line, err := t.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// FormatRequest renders a request line: method(a,b,c) followed by a newline. Arguments
// are rendered with fmt.Sprint, so a world.Coordinate expands to x,y,z. Newlines inside
// arguments are replaced by spaces to keep one request per line.
func FormatRequest(method string, args ...any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = strings.ReplaceAll(fmt.Sprint(a), "\n", " ")
	}
	return fmt.Sprintf("%s(%s)\n", method, strings.Join(parts, ","))
}
