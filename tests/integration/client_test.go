//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/mcpi-fetch/internal/testutil"
	"github.com/Sternrassler/mcpi-fetch/pkg/cache"
	"github.com/Sternrassler/mcpi-fetch/pkg/client"
	"github.com/Sternrassler/mcpi-fetch/pkg/world"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// startServer runs the line-protocol mock on a loopback port.
func startServer(t *testing.T, r testutil.Responder) *testutil.MockServer {
	t.Helper()
	srv, err := testutil.NewMockServer(r)
	if err != nil {
		t.Fatalf("Failed to start mock server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *testutil.MockServer, parallelism int, manager *cache.Manager) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig(srv.Host(), srv.Port())
	cfg.Parallelism = parallelism
	cfg.Cache = manager
	cfg.CacheTTL = time.Minute

	c, err := client.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestFullFetchFlow tests the complete flow: Pool → Workers → Server → Cache → Cache hit.
func TestFullFetchFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	stone := world.Coordinate{X: 0, Y: 0, Z: 0}
	srv := startServer(t, testutil.BlockMapResponder(map[world.Coordinate]int{stone: world.Stone}, world.Air))
	manager := cache.NewManager(redisClient)
	c := newClient(t, srv, 8, manager)
	ctx := context.Background()

	region := world.NewRegion(world.Coordinate{X: -2, Y: 0, Z: -2}, world.Coordinate{X: 1, Y: 0, Z: 1})

	// First fetch goes to the server.
	result, err := c.FetchBlocks(ctx, region)
	if err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	if len(result) != 16 || result[stone] != world.Stone {
		t.Fatalf("unexpected result: %d entries, origin %d", len(result), result[stone])
	}
	if srv.Requests() != 16 {
		t.Errorf("server saw %d requests, want 16", srv.Requests())
	}

	// Second fetch with swapped corners is served from Redis.
	swapped := world.NewRegion(region.B, region.A)
	cached, err := c.FetchBlocks(ctx, swapped)
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}
	if srv.Requests() != 16 {
		t.Errorf("cached fetch reached the server: %d requests", srv.Requests())
	}
	for pos, id := range result {
		if cached[pos] != id {
			t.Errorf("cached value at %v = %d, want %d", pos, cached[pos], id)
		}
	}

	// After a purge the server is asked again over the same connections.
	if _, err := manager.Purge(ctx, ""); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if _, err := c.FetchBlocks(ctx, region); err != nil {
		t.Fatalf("Fetch after purge failed: %v", err)
	}
	if srv.Requests() != 32 {
		t.Errorf("server saw %d requests after purge, want 32", srv.Requests())
	}
	if srv.Accepted() != 8 {
		t.Errorf("server accepted %d connections, want 8", srv.Accepted())
	}
}

// TestCacheSeparatesQueries verifies id and id,data result sets do not share entries.
func TestCacheSeparatesQueries(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	srv := startServer(t, testutil.CoordinateResponder())
	c := newClient(t, srv, 4, cache.NewManager(redisClient))
	ctx := context.Background()
	region := world.NewRegion(world.Coordinate{}, world.Coordinate{X: 2, Y: 2, Z: 2})

	ids, err := c.FetchBlocks(ctx, region)
	if err != nil {
		t.Fatalf("FetchBlocks failed: %v", err)
	}
	blocks, err := c.FetchBlocksWithData(ctx, region)
	if err != nil {
		t.Fatalf("FetchBlocksWithData failed: %v", err)
	}
	if srv.Requests() != 2*27 {
		t.Errorf("server saw %d requests, want %d", srv.Requests(), 2*27)
	}
	for pos, id := range ids {
		if blocks[pos].ID != id {
			t.Errorf("id at %v = %d, block %v", pos, id, blocks[pos])
		}
	}
}

// TestRequestTimeoutOverTCP checks that a slow server fails the fetch with a timeout
// instead of hanging it.
func TestRequestTimeoutOverTCP(t *testing.T) {
	srv := startServer(t, testutil.CoordinateResponder())
	srv.Delay = 300 * time.Millisecond

	cfg := client.DefaultConfig(srv.Host(), srv.Port())
	cfg.Parallelism = 2
	cfg.RequestTimeout = 50 * time.Millisecond
	c, err := client.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer c.Close()

	start := time.Now()
	_, err = c.FetchBlocks(context.Background(), world.NewRegion(world.Coordinate{}, world.Coordinate{X: 3}))
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("fetch took %v, want prompt failure", elapsed)
	}

	var fetchErr *client.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Class != client.ErrorClassTimeout {
		t.Fatalf("expected timeout FetchError, got %v", err)
	}
}
