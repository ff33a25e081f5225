// Package dispatch runs the parallel worker loop of the block fetcher.
//
// A fetch has one shared WorkQueue seeded with every coordinate of the region, one
// worker goroutine per pooled connection, and one shared Collector. Workers exit when the
// queue is drained. The first fatal error (connection I/O, timeout, malformed response)
// cancels the run: siblings stop taking new work and any receive that is still blocked is
// interrupted by forcing the connection deadline, so Run returns promptly.
//
// Example usage:
//
//	queue := dispatch.NewWorkQueue(region.Partition())
//	ids, err := dispatch.Run(ctx, conns, queue, decode.QueryBlock, decode.Int, dispatch.DefaultConfig())
//
// Run never returns partial results: either every coordinate has a value or err is set.
package dispatch
