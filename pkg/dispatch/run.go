package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/mcpi-fetch/pkg/conn"
	"github.com/Sternrassler/mcpi-fetch/pkg/decode"
	"github.com/Sternrassler/mcpi-fetch/pkg/world"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoConnections is returned when Run is called without connections.
	ErrNoConnections = errors.New("no connections")

	// ErrIncomplete is returned when workers finished without recording every item.
	ErrIncomplete = errors.New("incomplete result set")

	// ErrWorkerPanic wraps a panic recovered inside a worker.
	ErrWorkerPanic = errors.New("worker panic")
)

// Config holds dispatch configuration.
type Config struct {
	// RequestTimeout bounds one request/response round trip.
	RequestTimeout time.Duration

	// ProgressEvery logs progress each time this many results have been collected
	// (0 disables progress logging).
	ProgressEvery int

	// Logger is used for worker and progress events. The zero value uses the global logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default dispatch configuration.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 10 * time.Second,
		ProgressEvery:  5000,
	}
}

// WorkerError reports the failure of one worker on one coordinate.
type WorkerError struct {
	WorkerID   int
	Coordinate world.Coordinate
	Err        error
}

// Error implements the error interface.
func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d at (%s): %v", e.WorkerID, e.Coordinate, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *WorkerError) Unwrap() error {
	return e.Err
}

// Run fetches query for every coordinate in queue using one worker per connection and
// returns the decoded values keyed by coordinate. Each connection is used by exactly one
// worker. The call returns when the queue is drained and all workers have exited, or
// after the first fatal error once every worker has stopped.
func Run[T any](ctx context.Context, conns []conn.Conn, queue *WorkQueue, query string, dec decode.Func[T], cfg Config) (map[world.Coordinate]T, error) {
	if len(conns) == 0 {
		return nil, ErrNoConnections
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	logger := log.With().Str("component", "mcpi-dispatch").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// On cancellation force every deadline into the past so blocked receives return now.
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(interrupted)
		now := time.Now()
		for _, c := range conns {
			c.SetDeadline(now)
		}
	})
	defer func() {
		if !stop() {
			<-interrupted
		}
	}()

	total := queue.Len()
	collector := NewCollector[T](total)

	var wg sync.WaitGroup
	for i, c := range conns {
		w := &worker[T]{
			id:        i,
			conn:      c,
			query:     query,
			decode:    dec,
			timeout:   cfg.RequestTimeout,
			progress:  cfg.ProgressEvery,
			total:     total,
			logger:    logger,
			collector: collector,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.run(ctx, queue); err != nil {
				cancel(err)
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		logger.Warn().
			Err(cause).
			Str("query", query).
			Int("collected", collector.Len()).
			Int("remaining", queue.Remaining()).
			Int("total", total).
			Msg("Dispatch aborted")
		return nil, cause
	}

	if n := collector.Len(); n != total {
		return nil, fmt.Errorf("%w: %d of %d coordinates", ErrIncomplete, n, total)
	}
	return collector.Results(), nil
}

type worker[T any] struct {
	id        int
	conn      conn.Conn
	query     string
	decode    decode.Func[T]
	timeout   time.Duration
	progress  int
	total     int
	logger    zerolog.Logger
	collector *Collector[T]
}

// run drains the queue through the worker's own connection.
func (w *worker[T]) run(ctx context.Context, queue *WorkQueue) (err error) {
	workersActive.Inc()
	defer workersActive.Dec()

	var pos world.Coordinate
	processed := 0

	defer func() {
		if r := recover(); r != nil {
			hub := sentry.CurrentHub().Clone()
			hub.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("query", w.query)
				scope.SetExtra("coordinate", pos.String())
			})
			hub.Recover(r)
			hub.Flush(2 * time.Second)
			err = &WorkerError{WorkerID: w.id, Coordinate: pos, Err: fmt.Errorf("%w: %v", ErrWorkerPanic, r)}
		}
	}()

	for {
		if ctx.Err() != nil {
			w.logger.Debug().
				Int("worker_id", w.id).
				Int("items_processed", processed).
				Msg("Worker stopping (context cancelled)")
			return nil
		}

		var ok bool
		pos, ok = queue.Next()
		if !ok {
			break
		}

		if err := w.fetchOne(ctx, pos); err != nil {
			if ctx.Err() != nil {
				// A sibling failed first and interrupted this request.
				return nil
			}
			w.logger.Warn().
				Err(err).
				Int("worker_id", w.id).
				Str("coordinate", pos.String()).
				Str("query", w.query).
				Msg("Block fetch failed")
			return &WorkerError{WorkerID: w.id, Coordinate: pos, Err: err}
		}
		processed++
	}

	if processed > 0 {
		w.logger.Debug().
			Int("worker_id", w.id).
			Int("items_processed", processed).
			Msg("Worker completed")
	}
	return nil
}

func (w *worker[T]) fetchOne(ctx context.Context, pos world.Coordinate) error {
	start := time.Now()

	if err := w.conn.SetDeadline(start.Add(w.timeout)); err != nil {
		requestsTotal.WithLabelValues(w.query, "io_error").Inc()
		return &conn.IOError{Op: "set deadline", Err: err}
	}
	if ctx.Err() != nil {
		// Cancellation raced with the deadline above; do not start a request that
		// nothing will interrupt.
		return ctx.Err()
	}

	if err := w.conn.Send(w.query, pos); err != nil {
		requestsTotal.WithLabelValues(w.query, statusOf(err)).Inc()
		return err
	}
	line, err := w.conn.Receive()
	if err != nil {
		requestsTotal.WithLabelValues(w.query, statusOf(err)).Inc()
		return err
	}
	requestDuration.WithLabelValues(w.query).Observe(time.Since(start).Seconds())

	v, err := w.decode(line)
	if err != nil {
		requestsTotal.WithLabelValues(w.query, "decode_error").Inc()
		return err
	}
	requestsTotal.WithLabelValues(w.query, "ok").Inc()

	n := w.collector.Put(pos, v)
	if w.progress > 0 && n%w.progress == 0 {
		w.logger.Info().
			Str("query", w.query).
			Int("fetched", n).
			Int("total", w.total).
			Float64("progress_pct", float64(n)/float64(w.total)*100).
			Msg("Fetch progress")
	}
	return nil
}

func statusOf(err error) string {
	if conn.IsTimeout(err) {
		return "timeout"
	}
	return "io_error"
}
