// Package pool owns the fixed set of persistent connections used by the block fetcher.
//
// All connections are established eagerly in Open: connection setup is the expensive
// part of a parallel fetch and is paid once per pool rather than once per fetch. Open is
// atomic; if any connection cannot be established every connection opened so far is
// closed and no pool is returned.
package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/mcpi-fetch/pkg/conn"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned when a closed pool is used or closed again.
var ErrClosed = errors.New("pool closed")

// Config holds the pool configuration.
type Config struct {
	// Address is the host running the Minecraft Pi API.
	Address string

	// Port is the API port (4711 for Minecraft Pi).
	Port int

	// Size is the number of connections, which is also the fetch parallelism.
	Size int

	// DialTimeout bounds one dial attempt.
	DialTimeout time.Duration

	// DialConcurrency limits how many dials are in flight while opening the pool.
	DialConcurrency int

	// Retry controls per-connection dial retries.
	Retry RetryConfig
}

// DefaultConfig returns a configuration for a local Minecraft Pi instance.
func DefaultConfig(address string, port int) Config {
	return Config{
		Address:         address,
		Port:            port,
		Size:            200,
		DialTimeout:     5 * time.Second,
		DialConcurrency: 32,
		Retry:           DefaultRetryConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535 (got %d)", c.Port)
	}
	if c.Size < 1 {
		return fmt.Errorf("size must be >= 1 (got %d)", c.Size)
	}
	return nil
}

// Target returns the dial address "host:port".
func (c Config) Target() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// EstablishError reports that the pool could not open one of its connections.
type EstablishError struct {
	Index int
	Addr  string
	Err   error
}

// Error implements the error interface.
func (e *EstablishError) Error() string {
	return fmt.Sprintf("establish connection %d to %s: %v", e.Index, e.Addr, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *EstablishError) Unwrap() error {
	return e.Err
}

// Pool is a fixed-size set of connections.
type Pool struct {
	conns  []conn.Conn
	addr   string
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open establishes cfg.Size connections using dialer. A nil dialer dials plain TCP.
func Open(ctx context.Context, cfg Config, dialer conn.Dialer) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DialConcurrency <= 0 {
		cfg.DialConcurrency = cfg.Size
	}

	logger := log.With().Str("component", "mcpi-pool").Logger()
	if dialer == nil {
		dialer = conn.TCPDialer{Timeout: cfg.DialTimeout, Logger: &logger}
	}

	target := cfg.Target()
	start := time.Now()

	logger.Info().
		Str("addr", target).
		Int("size", cfg.Size).
		Int("dial_concurrency", cfg.DialConcurrency).
		Msg("Opening connection pool")

	conns := make([]conn.Conn, cfg.Size)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.DialConcurrency)

	for i := range conns {
		g.Go(func() error {
			err := retryWithBackoff(gctx, cfg.Retry, logger.With().Int("conn", i).Logger(), func() error {
				c, err := dialer.Dial(gctx, target)
				if err != nil {
					return err
				}
				conns[i] = c
				return nil
			})
			if err != nil {
				return &EstablishError{Index: i, Addr: target, Err: err}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		opened := closeAll(conns)
		dialFailuresTotal.Inc()
		logger.Error().
			Err(err).
			Str("addr", target).
			Int("opened", opened).
			Int("size", cfg.Size).
			Msg("Failed to open connection pool")
		return nil, err
	}

	poolConnections.Add(float64(cfg.Size))
	elapsed := time.Since(start)
	poolOpenDuration.Observe(elapsed.Seconds())

	logger.Info().
		Str("addr", target).
		Int("size", cfg.Size).
		Dur("duration", elapsed).
		Msg("Connection pool ready")

	return &Pool{
		conns:  conns,
		addr:   target,
		logger: logger,
	}, nil
}

// Size returns the number of connections.
func (p *Pool) Size() int {
	return len(p.conns)
}

// Addr returns the dial target of the pool.
func (p *Pool) Addr() string {
	return p.addr
}

// Conn returns the i-th connection, or nil if i is out of range or the pool is closed.
func (p *Pool) Conn(i int) conn.Conn {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || i < 0 || i >= len(p.conns) {
		return nil
	}
	return p.conns[i]
}

// Conns returns all connections in index order. It returns ErrClosed after Close.
func (p *Pool) Conns() ([]conn.Conn, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	out := make([]conn.Conn, len(p.conns))
	copy(out, p.conns)
	return out, nil
}

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Close terminates every connection. Calling Close more than once returns ErrClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for i, c := range p.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection %d: %w", i, err))
		}
	}
	poolConnections.Sub(float64(len(p.conns)))

	p.logger.Info().
		Str("addr", p.addr).
		Int("size", len(p.conns)).
		Msg("Connection pool closed")

	return errors.Join(errs...)
}

func closeAll(conns []conn.Conn) int {
	opened := 0
	for _, c := range conns {
		if c != nil {
			opened++
			c.Close()
		}
	}
	return opened
}
