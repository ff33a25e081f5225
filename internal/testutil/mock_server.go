package testutil

import (
	"bufio"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// MockServer is a TCP server speaking the Minecraft Pi line protocol.
type MockServer struct {
	listener  net.Listener
	responder Responder

	// Delay is applied before every response.
	Delay time.Duration

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup

	accepted atomic.Int64
	requests atomic.Int64
}

// NewMockServer starts a server on a random loopback port.
func NewMockServer(r Responder) (*MockServer, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &MockServer{
		listener:  l,
		responder: r,
		conns:     make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Addr returns the listening address as "host:port".
func (s *MockServer) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listening host.
func (s *MockServer) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listening port.
func (s *MockServer) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// Accepted returns the number of connections accepted so far.
func (s *MockServer) Accepted() int {
	return int(s.accepted.Load())
}

// Requests returns the number of request lines received.
func (s *MockServer) Requests() int {
	return int(s.requests.Load())
}

// Close stops the listener, closes every open connection and waits for handlers.
func (s *MockServer) Close() {
	s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *MockServer) serve() {
	defer s.wg.Done()
	for {
		c, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.accepted.Add(1)
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(c)
	}
}

func (s *MockServer) handle(c net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.Close()
	}()

	scanner := bufio.NewScanner(c)
	for scanner.Scan() {
		s.requests.Add(1)
		method, args, err := ParseRequest(scanner.Text())
		resp := "Fail"
		if err == nil {
			resp = s.responder(method, args)
		}
		if resp == Hang {
			continue
		}
		if s.Delay > 0 {
			time.Sleep(s.Delay)
		}
		if _, err := c.Write([]byte(resp + "\n")); err != nil {
			return
		}
	}
}
