package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/mcpi-fetch/pkg/conn"
	"github.com/Sternrassler/mcpi-fetch/pkg/decode"
	"github.com/Sternrassler/mcpi-fetch/pkg/pool"
	"github.com/Sternrassler/mcpi-fetch/pkg/world"
)

// ErrClientClosed is returned by fetches on a closed client.
var ErrClientClosed = errors.New("client closed")

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassEstablish represents a connection that could not be opened.
	ErrorClassEstablish ErrorClass = "establish"

	// ErrorClassIO represents a send or receive failure on an open connection.
	ErrorClassIO ErrorClass = "io"

	// ErrorClassBroken represents a pooled connection that lost request/response pairing.
	// The client cannot recover it and must be closed and recreated.
	ErrorClassBroken ErrorClass = "broken"

	// ErrorClassTimeout represents a request that exceeded its deadline.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassDecode represents a response line that did not match the query kind.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassRegion represents a malformed or oversized region.
	ErrorClassRegion ErrorClass = "region"

	// ErrorClassCancelled represents a fetch stopped by the caller's context.
	ErrorClassCancelled ErrorClass = "cancelled"

	// ErrorClassClosed represents use of a closed client or pool.
	ErrorClassClosed ErrorClass = "closed"

	// ErrorClassInternal represents worker panics and incomplete results.
	ErrorClassInternal ErrorClass = "internal"
)

// FetchError is the single consolidated error returned by a failed fetch.
type FetchError struct {
	Class  ErrorClass
	Query  string
	Region world.Region
	Err    error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %s error: %v", e.Query, e.Region, e.Class, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifyError maps an error from any layer to its ErrorClass.
func classifyError(err error) ErrorClass {
	var (
		establishErr *pool.EstablishError
		decodeErr    *decode.Error
		ioErr        *conn.IOError
	)

	switch {
	case errors.Is(err, ErrClientClosed), errors.Is(err, pool.ErrClosed):
		return ErrorClassClosed
	case errors.Is(err, world.ErrInvalidRegion):
		return ErrorClassRegion
	case errors.As(err, &establishErr):
		return ErrorClassEstablish
	case errors.As(err, &decodeErr):
		return ErrorClassDecode
	case errors.Is(err, conn.ErrBroken):
		return ErrorClassBroken
	case conn.IsTimeout(err):
		return ErrorClassTimeout
	case errors.As(err, &ioErr), errors.Is(err, conn.ErrClosed):
		return ErrorClassIO
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassCancelled
	default:
		return ErrorClassInternal
	}
}
