package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/mcpi-fetch/internal/testutil"
	"github.com/Sternrassler/mcpi-fetch/pkg/conn"
	"github.com/Sternrassler/mcpi-fetch/pkg/decode"
	"github.com/Sternrassler/mcpi-fetch/pkg/world"
)

func mockConns(t *testing.T, n int, r testutil.Responder) ([]conn.Conn, *testutil.MockDialer) {
	t.Helper()
	dialer := testutil.NewMockDialer(r)
	conns := make([]conn.Conn, n)
	for i := range conns {
		c, err := dialer.Dial(context.Background(), "localhost:4711")
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		conns[i] = c
	}
	return conns, dialer
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

func TestWorkQueue_ExactlyOnce(t *testing.T) {
	region := world.NewRegion(world.Coordinate{X: -5, Y: 0, Z: -5}, world.Coordinate{X: 5, Y: 3, Z: 5})
	queue := NewWorkQueue(region.Partition())

	var mu sync.Mutex
	counts := make(map[world.Coordinate]int)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				c, ok := queue.Next()
				if !ok {
					return
				}
				mu.Lock()
				counts[c]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(counts) != queue.Len() {
		t.Errorf("distinct items = %d, want %d", len(counts), queue.Len())
	}
	for c, n := range counts {
		if n != 1 {
			t.Errorf("item %v handed out %d times", c, n)
		}
	}
	if queue.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", queue.Remaining())
	}
	if _, ok := queue.Next(); ok {
		t.Error("Next() on drained queue returned ok")
	}
}

func TestRun_Complete(t *testing.T) {
	region := world.NewRegion(world.Coordinate{X: 3, Y: 1, Z: 3}, world.Coordinate{X: -3, Y: 0, Z: -3})
	conns, dialer := mockConns(t, 8, testutil.CoordinateResponder())

	got, err := Run(context.Background(), conns, NewWorkQueue(region.Partition()), decode.QueryBlock, decode.Int, testConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	volume, _ := region.Volume()
	if len(got) != volume {
		t.Fatalf("len(results) = %d, want %d", len(got), volume)
	}
	for _, c := range region.Partition() {
		v, ok := got[c]
		if !ok {
			t.Fatalf("missing coordinate %v", c)
		}
		if v != testutil.BlockID(c) {
			t.Errorf("results[%v] = %d, want %d", c, v, testutil.BlockID(c))
		}
	}

	requests := 0
	for _, c := range dialer.Conns() {
		if c.SharedUse() {
			t.Error("connection used by two workers at once")
		}
		requests += c.Requests()
	}
	if requests != volume {
		t.Errorf("total requests = %d, want %d", requests, volume)
	}
}

func TestRun_ParallelismDoesNotChangeResults(t *testing.T) {
	region := world.NewRegion(world.Coordinate{X: -4, Y: 2, Z: 0}, world.Coordinate{X: 4, Y: 4, Z: 6})

	single, _ := mockConns(t, 1, testutil.CoordinateResponder())
	many, _ := mockConns(t, 16, testutil.CoordinateResponder())

	a, err := Run(context.Background(), single, NewWorkQueue(region.Partition()), decode.QueryBlockWithData, decode.BlockWithData, testConfig())
	if err != nil {
		t.Fatalf("Run(1) failed: %v", err)
	}
	b, err := Run(context.Background(), many, NewWorkQueue(region.Partition()), decode.QueryBlockWithData, decode.BlockWithData, testConfig())
	if err != nil {
		t.Fatalf("Run(16) failed: %v", err)
	}

	if len(a) != len(b) {
		t.Fatalf("result sizes differ: %d vs %d", len(a), len(b))
	}
	for c, v := range a {
		if b[c] != v {
			t.Errorf("results differ at %v: %v vs %v", c, v, b[c])
		}
	}
}

func TestRun_DecodeErrorFailsWholeRun(t *testing.T) {
	region := world.NewRegion(world.Coordinate{X: 0, Y: 0, Z: 0}, world.Coordinate{X: 9, Y: 0, Z: 9})
	bad := world.Coordinate{X: 4, Y: 0, Z: 7}
	conns, _ := mockConns(t, 4, testutil.Override(testutil.CoordinateResponder(), bad, "garbage"))

	got, err := Run(context.Background(), conns, NewWorkQueue(region.Partition()), decode.QueryBlock, decode.Int, testConfig())
	if err == nil {
		t.Fatalf("expected error, got %d results", len(got))
	}
	if got != nil {
		t.Errorf("partial results returned: %d entries", len(got))
	}

	var decErr *decode.Error
	if !errors.As(err, &decErr) {
		t.Errorf("error = %v, want *decode.Error", err)
	}
	var wErr *WorkerError
	if !errors.As(err, &wErr) {
		t.Fatalf("error = %v, want *WorkerError", err)
	}
	if wErr.Coordinate != bad {
		t.Errorf("WorkerError.Coordinate = %v, want %v", wErr.Coordinate, bad)
	}
}

func TestRun_FailureInterruptsBlockedWorkers(t *testing.T) {
	region := world.NewRegion(world.Coordinate{X: 0, Y: 0, Z: 0}, world.Coordinate{X: 0, Y: 0, Z: 20})
	hang := world.Coordinate{X: 0, Y: 0, Z: 0}
	bad := world.Coordinate{X: 0, Y: 0, Z: 20}

	r := testutil.Override(testutil.CoordinateResponder(), hang, testutil.Hang)
	r = testutil.Override(r, bad, "Fail")
	conns, _ := mockConns(t, 2, r)

	cfg := testConfig()
	cfg.RequestTimeout = 30 * time.Second

	start := time.Now()
	_, err := Run(context.Background(), conns, NewWorkQueue(region.Partition()), decode.QueryBlock, decode.Int, cfg)
	elapsed := time.Since(start)

	if !errors.Is(err, decode.ErrServerFail) {
		t.Errorf("error = %v, want ErrServerFail", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("Run took %v, blocked worker was not interrupted", elapsed)
	}
}

func TestRun_RequestTimeout(t *testing.T) {
	region := world.NewRegion(world.Coordinate{}, world.Coordinate{X: 2})
	conns, _ := mockConns(t, 1, testutil.Override(testutil.CoordinateResponder(), world.Coordinate{X: 1}, testutil.Hang))

	cfg := testConfig()
	cfg.RequestTimeout = 50 * time.Millisecond

	_, err := Run(context.Background(), conns, NewWorkQueue(region.Partition()), decode.QueryBlock, decode.Int, cfg)
	if !conn.IsTimeout(err) {
		t.Errorf("error = %v, want timeout", err)
	}
}

func TestRun_ParentCancelled(t *testing.T) {
	region := world.NewRegion(world.Coordinate{}, world.Coordinate{X: 3, Y: 3, Z: 3})
	conns, _ := mockConns(t, 2, testutil.CoordinateResponder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, conns, NewWorkQueue(region.Partition()), decode.QueryBlock, decode.Int, testConfig())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRun_WorkerPanic(t *testing.T) {
	region := world.NewRegion(world.Coordinate{}, world.Coordinate{X: 1})
	conns, _ := mockConns(t, 1, testutil.CoordinateResponder())

	boom := func(string) (int, error) { panic("boom") }

	_, err := Run(context.Background(), conns, NewWorkQueue(region.Partition()), decode.QueryBlock, boom, testConfig())
	if !errors.Is(err, ErrWorkerPanic) {
		t.Errorf("error = %v, want ErrWorkerPanic", err)
	}
}

func TestRun_NoConnections(t *testing.T) {
	_, err := Run(context.Background(), nil, NewWorkQueue(nil), decode.QueryBlock, decode.Int, testConfig())
	if !errors.Is(err, ErrNoConnections) {
		t.Errorf("error = %v, want ErrNoConnections", err)
	}
}

func TestWorkerError(t *testing.T) {
	inner := errors.New("broken pipe")
	err := &WorkerError{WorkerID: 3, Coordinate: world.Coordinate{X: 1, Y: 2, Z: 3}, Err: inner}

	if got, want := err.Error(), "worker 3 at (1,2,3): broken pipe"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
}
