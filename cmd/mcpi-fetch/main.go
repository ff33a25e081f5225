// Command mcpi-fetch reads block data from a Minecraft Pi world over many parallel
// connections.
//
// Usage:
//
//	mcpi-fetch fetch  -from x,y,z -to x,y,z [-data] [-snapshot file -name n]
//	mcpi-fetch extent [-radius 200] [-y 0]
//	mcpi-fetch bench  [-from x,y,z -to x,y,z] [-degrees 100,150,200]
//
// Connection flags default to MCPI_ADDR, MCPI_PORT, MCPI_PARALLELISM and
// MCPI_REQUEST_TIMEOUT. REDIS_URL enables the result cache, METRICS_ADDR serves
// Prometheus metrics, STATSVIEW_ADDR serves a runtime dashboard and SENTRY_DSN reports
// worker panics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/mcpi-fetch/pkg/cache"
	"github.com/Sternrassler/mcpi-fetch/pkg/client"
	"github.com/Sternrassler/mcpi-fetch/pkg/logging"
	"github.com/Sternrassler/mcpi-fetch/pkg/metrics"
	"github.com/getsentry/sentry-go"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

func main() {
	os.Exit(realMain())
}

func realMain() int {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logCfg.Pretty = getEnv("LOG_PRETTY", "") != ""
	logging.Setup(logCfg)
	logger := logging.NewLogger("mcpi-fetch")

	if dsn := getEnv("SENTRY_DSN", ""); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Release:          "mcpi-fetch@" + version,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Sentry disabled")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := getEnv("METRICS_ADDR", ""); addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				logger.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
			}
		}()
	}

	if addr := getEnv("STATSVIEW_ADDR", ""); addr != "" {
		// set configurations before calling `statsview.New()` method
		viewer.SetConfiguration(viewer.WithTheme(viewer.ThemeWesteros), viewer.WithAddr(addr))
		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
		logger.Info().Str("addr", addr).Msg("Statsview dashboard started")
	}

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		logger.Error().Err(err).Msg("Command failed")
		return 1
	}
	return 0
}

// run dispatches to the subcommand named by args[0].
func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return flag.ErrHelp
	}

	switch args[0] {
	case "fetch":
		return runFetch(ctx, args[1:], stdout)
	case "extent":
		return runExtent(ctx, args[1:], stdout)
	case "bench":
		return runBench(ctx, args[1:], stdout)
	case "snapshot":
		return runSnapshot(args[1:], stdout)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return nil
	default:
		usage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: mcpi-fetch <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  fetch   fetch a region and print a summary")
	fmt.Fprintln(w, "  extent  find the world boundary along the x and z axes")
	fmt.Fprintln(w, "  bench   compare fetch times for several degrees of parallelism")
	fmt.Fprintln(w, "  snapshot list|show|export|delete  inspect saved regions")
}

// options are the connection flags shared by all subcommands.
type options struct {
	addr        string
	port        int
	parallelism int
	timeout     time.Duration
	redisURL    string
	cacheTTL    time.Duration
}

func commonFlags(fs *flag.FlagSet) *options {
	o := &options{}
	fs.StringVar(&o.addr, "addr", getEnv("MCPI_ADDR", "localhost"), "Minecraft Pi API host")
	fs.IntVar(&o.port, "port", getEnvInt("MCPI_PORT", 4711), "Minecraft Pi API port")
	fs.IntVar(&o.parallelism, "parallelism", getEnvInt("MCPI_PARALLELISM", 200), "number of connections")
	fs.DurationVar(&o.timeout, "timeout", getEnvDuration("MCPI_REQUEST_TIMEOUT", 10*time.Second), "per-request timeout")
	fs.StringVar(&o.redisURL, "redis", getEnv("REDIS_URL", ""), "Redis address or URL for the result cache (empty disables)")
	fs.DurationVar(&o.cacheTTL, "cache-ttl", getEnvDuration("MCPI_CACHE_TTL", 30*time.Second), "result cache TTL")
	return o
}

func (o *options) config() client.Config {
	cfg := client.DefaultConfig(o.addr, o.port)
	cfg.Parallelism = o.parallelism
	cfg.RequestTimeout = o.timeout
	cfg.CacheTTL = o.cacheTTL
	return cfg
}

// open creates a client, wiring the Redis cache when configured. The returned func
// closes everything open.
func (o *options) open(ctx context.Context, useCache bool) (*client.Client, func(), error) {
	cfg := o.config()

	var redisClient *redis.Client
	if useCache && o.redisURL != "" {
		rc, err := newRedisClient(ctx, o.redisURL)
		if err != nil {
			return nil, nil, err
		}
		redisClient = rc
		cfg.Cache = cache.NewManager(redisClient)
	}

	c, err := client.New(ctx, cfg)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, err
	}

	return c, func() {
		c.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}, nil
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	rc := redis.NewClient(opts)
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	log.Info().Str("component", "mcpi-fetch").Str("addr", opts.Addr).Msg("Connected to Redis")
	return rc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring invalid integer")
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring invalid duration")
		return defaultValue
	}
	return d
}
