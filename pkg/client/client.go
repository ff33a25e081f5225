// Package client provides the fetch coordinator: a long-lived client that owns a pool of
// connections and turns a region into a complete coordinate-to-value result set.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/mcpi-fetch/pkg/cache"
	"github.com/Sternrassler/mcpi-fetch/pkg/conn"
	"github.com/Sternrassler/mcpi-fetch/pkg/decode"
	"github.com/Sternrassler/mcpi-fetch/pkg/dispatch"
	"github.com/Sternrassler/mcpi-fetch/pkg/pool"
	"github.com/Sternrassler/mcpi-fetch/pkg/world"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ResultSet maps every coordinate of a fetched region to its decoded value.
type ResultSet[T any] map[world.Coordinate]T

// Client is the fetch coordinator.
type Client struct {
	pool   *pool.Pool
	cache  *cache.Manager
	config Config
	logger zerolog.Logger

	// fetchMu serialises fetches so a connection is never used by two fetches at once.
	fetchMu sync.Mutex
	phase   atomic.Int32
}

// Config holds the client configuration.
type Config struct {
	// Minecraft Pi API endpoint
	Address string
	Port    int

	// Parallelism is the number of pooled connections and therefore workers per fetch.
	Parallelism int

	// Connection setup
	DialTimeout     time.Duration
	DialConcurrency int
	DialAttempts    int

	// RequestTimeout bounds each request/response round trip.
	RequestTimeout time.Duration

	// MaxVolume rejects larger regions (0 = unlimited).
	MaxVolume int

	// ProgressEvery logs fetch progress every N results (0 = off).
	ProgressEvery int

	// Cache is an optional result set cache; CacheTTL must be > 0 when it is set.
	Cache    *cache.Manager
	CacheTTL time.Duration

	// Dialer overrides plain TCP dialing (tests use an in-memory dialer).
	Dialer conn.Dialer
}

// DefaultConfig returns the configuration that performed best in the parallelism
// measurements on a Raspberry Pi 3 (see DESIGN.md).
func DefaultConfig(address string, port int) Config {
	return Config{
		Address:         address,
		Port:            port,
		Parallelism:     200,
		DialTimeout:     5 * time.Second,
		DialConcurrency: 32,
		DialAttempts:    3,
		RequestTimeout:  10 * time.Second,
		MaxVolume:       4_000_000,
		ProgressEvery:   5000,
		CacheTTL:        30 * time.Second,
	}
}

// New validates cfg and opens the connection pool. Every connection is established before
// New returns; if any cannot be opened no client is returned.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Parallelism < 1 {
		return nil, fmt.Errorf("parallelism must be >= 1 (got %d)", cfg.Parallelism)
	}

	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request_timeout must be > 0 (got %s)", cfg.RequestTimeout)
	}

	if cfg.MaxVolume < 0 {
		return nil, fmt.Errorf("max_volume must be >= 0 (got %d)", cfg.MaxVolume)
	}

	if cfg.Cache != nil && cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("cache_ttl must be > 0 when a cache is configured")
	}

	logger := log.With().Str("component", "mcpi-client").Logger()

	poolCfg := pool.DefaultConfig(cfg.Address, cfg.Port)
	poolCfg.Size = cfg.Parallelism
	if cfg.DialTimeout > 0 {
		poolCfg.DialTimeout = cfg.DialTimeout
	}
	if cfg.DialConcurrency > 0 {
		poolCfg.DialConcurrency = cfg.DialConcurrency
	}
	if cfg.DialAttempts > 0 {
		poolCfg.Retry.MaxAttempts = cfg.DialAttempts
	}

	p, err := pool.Open(ctx, poolCfg, cfg.Dialer)
	if err != nil {
		fetchErrorsTotal.WithLabelValues(string(classifyError(err))).Inc()
		return nil, fmt.Errorf("open pool: %w", err)
	}

	logger.Info().
		Str("addr", p.Addr()).
		Int("parallelism", cfg.Parallelism).
		Bool("cache", cfg.Cache != nil).
		Msg("Client ready")

	return &Client{
		pool:   p,
		cache:  cfg.Cache,
		config: cfg,
		logger: logger,
	}, nil
}

// Parallelism returns the number of workers used per fetch.
func (c *Client) Parallelism() int {
	return c.pool.Size()
}

// Phase returns the state of the current or most recent fetch.
func (c *Client) Phase() Phase {
	return Phase(c.phase.Load())
}

func (c *Client) setPhase(p Phase) {
	c.phase.Store(int32(p))
}

// Close closes every pooled connection. A fetch running concurrently fails with
// ErrorClassClosed; Close returns once that fetch has released the connections.
// Closing twice returns pool.ErrClosed.
func (c *Client) Close() error {
	err := c.pool.Close()

	c.fetchMu.Lock()
	c.fetchMu.Unlock()

	if err == nil {
		c.logger.Info().Str("addr", c.pool.Addr()).Msg("Client closed")
	}
	return err
}

// FetchBlocks fetches the block id of every coordinate in region.
func (c *Client) FetchBlocks(ctx context.Context, region world.Region) (ResultSet[int], error) {
	return Fetch(ctx, c, region, decode.QueryBlock, decode.Int)
}

// FetchBlocksWithData fetches the block id and data value of every coordinate in region.
func (c *Client) FetchBlocksWithData(ctx context.Context, region world.Region) (ResultSet[world.Block], error) {
	return Fetch(ctx, c, region, decode.QueryBlockWithData, decode.BlockWithData)
}

// Fetch sends query for every coordinate of region over all pooled connections and
// decodes each response with dec. It returns either a result set containing exactly the
// coordinates of region or a *FetchError; there is no partial result. Corner order of
// region does not matter.
//
// Fetches on one client run one at a time; a second caller waits for the first to finish.
func Fetch[T any](ctx context.Context, c *Client, region world.Region, query string, dec decode.Func[T]) (ResultSet[T], error) {
	start := time.Now()
	logger := c.logger.With().
		Str("query", query).
		Str("region", region.String()).
		Logger()

	fail := func(err error) (ResultSet[T], error) {
		class := classifyError(err)
		switch {
		case c.pool.Closed() && class != ErrorClassRegion:
			class = ErrorClassClosed
		case ctx.Err() != nil:
			class = ErrorClassCancelled
		}
		c.setPhase(PhaseFailed)
		fetchTotal.WithLabelValues(query, "error").Inc()
		fetchErrorsTotal.WithLabelValues(string(class)).Inc()
		fetchDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
		logger.Error().
			Err(err).
			Str("error_class", string(class)).
			Dur("duration", time.Since(start)).
			Msg("Fetch failed")
		return nil, &FetchError{Class: class, Query: query, Region: region, Err: err}
	}

	if c.pool.Closed() {
		return fail(ErrClientClosed)
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if c.pool.Closed() {
		return fail(ErrClientClosed)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// Partitioning
	c.setPhase(PhasePartitioning)
	normalized := region.Normalize()
	if err := normalized.Validate(c.config.MaxVolume); err != nil {
		return fail(err)
	}

	key := cache.KeyFor[T](query, normalized)
	if c.cache != nil {
		values, err := cache.Get[T](ctx, c.cache, key)
		if err == nil {
			c.setPhase(PhaseDone)
			fetchTotal.WithLabelValues(query, "cached").Inc()
			logger.Debug().
				Int("volume", len(values)).
				Msg("Fetch served from cache")
			return ResultSet[T](values), nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	items := normalized.Partition()
	queue := dispatch.NewWorkQueue(items)

	conns, err := c.pool.Conns()
	if err != nil {
		return fail(err)
	}

	// Dispatching
	c.setPhase(PhaseDispatching)
	logger.Debug().
		Int("volume", len(items)).
		Int("parallelism", len(conns)).
		Msg("Dispatching fetch")

	values, err := dispatch.Run(ctx, conns, queue, query, dec, dispatch.Config{
		RequestTimeout: c.config.RequestTimeout,
		ProgressEvery:  c.config.ProgressEvery,
		Logger:         &logger,
	})
	if err != nil {
		return fail(err)
	}

	// Collecting
	c.setPhase(PhaseCollecting)
	if len(values) != len(items) {
		return fail(fmt.Errorf("%w: %d of %d coordinates", dispatch.ErrIncomplete, len(values), len(items)))
	}

	if c.cache != nil {
		if err := cache.Set(ctx, c.cache, key, values, c.config.CacheTTL); err != nil {
			logger.Warn().Err(err).Msg("Cache set error")
		}
	}

	c.setPhase(PhaseDone)
	elapsed := time.Since(start)
	fetchTotal.WithLabelValues(query, "ok").Inc()
	fetchBlocksTotal.WithLabelValues(query).Add(float64(len(values)))
	fetchDuration.WithLabelValues(query).Observe(elapsed.Seconds())

	logger.Info().
		Int("volume", len(values)).
		Int("parallelism", len(conns)).
		Dur("duration", elapsed).
		Msg("Fetch complete")

	return ResultSet[T](values), nil
}
