package pool_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/mcpi-fetch/internal/testutil"
	"github.com/Sternrassler/mcpi-fetch/pkg/pool"
)

func testConfig(size int) pool.Config {
	cfg := pool.DefaultConfig("localhost", 4711)
	cfg.Size = size
	cfg.DialConcurrency = 4
	cfg.Retry = pool.RetryConfig{
		MaxAttempts:       1,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*pool.Config)
		expectError bool
		errorMsg    string
	}{
		{name: "valid config", mutate: func(*pool.Config) {}},
		{
			name:        "empty address",
			mutate:      func(c *pool.Config) { c.Address = "" },
			expectError: true,
			errorMsg:    "address is required",
		},
		{
			name:        "port zero",
			mutate:      func(c *pool.Config) { c.Port = 0 },
			expectError: true,
			errorMsg:    "port must be in 1..65535 (got 0)",
		},
		{
			name:        "size zero",
			mutate:      func(c *pool.Config) { c.Size = 0 },
			expectError: true,
			errorMsg:    "size must be >= 1 (got 0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(3)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestOpen_EagerConnections(t *testing.T) {
	dialer := testutil.NewMockDialer(testutil.CoordinateResponder())

	p, err := pool.Open(context.Background(), testConfig(7), dialer)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	if dialer.Created() != 7 {
		t.Errorf("Created() = %d, want 7", dialer.Created())
	}
	if p.Size() != 7 {
		t.Errorf("Size() = %d, want 7", p.Size())
	}

	seen := make(map[any]bool)
	for i := 0; i < p.Size(); i++ {
		c := p.Conn(i)
		if c == nil {
			t.Fatalf("Conn(%d) = nil", i)
		}
		if seen[c] {
			t.Errorf("Conn(%d) is shared with another index", i)
		}
		seen[c] = true
	}
	if p.Conn(7) != nil || p.Conn(-1) != nil {
		t.Error("out of range Conn should be nil")
	}
}

func TestOpen_FailureIsAtomic(t *testing.T) {
	dialer := testutil.NewMockDialer(testutil.CoordinateResponder())
	dialer.FailDial = map[int]error{3: errors.New("connection refused")}

	p, err := pool.Open(context.Background(), testConfig(6), dialer)
	if err == nil {
		p.Close()
		t.Fatal("Expected error but got nil")
	}
	if p != nil {
		t.Error("Open returned a pool alongside an error")
	}

	var estErr *pool.EstablishError
	if !errors.As(err, &estErr) {
		t.Fatalf("error = %v, want *EstablishError", err)
	}
	if dialer.OpenConns() != 0 {
		t.Errorf("OpenConns() = %d, want 0 after failed Open", dialer.OpenConns())
	}
}

func TestOpen_RetriesDial(t *testing.T) {
	dialer := testutil.NewMockDialer(testutil.CoordinateResponder())
	dialer.FailDial = map[int]error{0: errors.New("connection refused")}

	cfg := testConfig(1)
	cfg.Retry.MaxAttempts = 3

	p, err := pool.Open(context.Background(), cfg, dialer)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	if dialer.Attempts() != 2 {
		t.Errorf("Attempts() = %d, want 2", dialer.Attempts())
	}
	if dialer.Created() != 1 {
		t.Errorf("Created() = %d, want 1", dialer.Created())
	}
}

func TestOpen_RetryExhausted(t *testing.T) {
	dialer := testutil.NewMockDialer(testutil.CoordinateResponder())
	refused := errors.New("connection refused")
	dialer.FailDial = map[int]error{0: refused, 1: refused}

	cfg := testConfig(1)
	cfg.Retry.MaxAttempts = 2

	_, err := pool.Open(context.Background(), cfg, dialer)
	if !errors.Is(err, pool.ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}
	if !errors.Is(err, refused) {
		t.Errorf("error = %v, should wrap the dial error", err)
	}
}

func TestPool_Close(t *testing.T) {
	dialer := testutil.NewMockDialer(testutil.CoordinateResponder())

	p, err := pool.Open(context.Background(), testConfig(4), dialer)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if dialer.OpenConns() != 0 {
		t.Errorf("OpenConns() = %d, want 0", dialer.OpenConns())
	}
	if !p.Closed() {
		t.Error("Closed() = false after Close")
	}
	if err := p.Close(); !errors.Is(err, pool.ErrClosed) {
		t.Errorf("second Close() = %v, want ErrClosed", err)
	}
	if p.Conn(0) != nil {
		t.Error("Conn after Close should be nil")
	}
	if _, err := p.Conns(); !errors.Is(err, pool.ErrClosed) {
		t.Errorf("Conns() after Close = %v, want ErrClosed", err)
	}
}

func TestOpen_TCP(t *testing.T) {
	server, err := testutil.NewMockServer(testutil.CoordinateResponder())
	if err != nil {
		t.Fatalf("Failed to start mock server: %v", err)
	}
	defer server.Close()

	cfg := testConfig(5)
	cfg.Address = server.Host()
	cfg.Port = server.Port()

	p, err := pool.Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	deadline := time.Now().Add(2 * time.Second)
	for server.Accepted() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if server.Accepted() != 5 {
		t.Errorf("Accepted() = %d, want 5", server.Accepted())
	}
}

func TestOpen_CancelledContext(t *testing.T) {
	dialer := testutil.NewMockDialer(testutil.CoordinateResponder())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.Open(ctx, testConfig(3), dialer)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if dialer.OpenConns() != 0 {
		t.Errorf("OpenConns() = %d, want 0", dialer.OpenConns())
	}
}
