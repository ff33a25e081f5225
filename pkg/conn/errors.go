package conn

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// IOError reports a failed dial, send or receive on a connection.
type IOError struct {
	Op   string
	Addr string
	Err  error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("mcpi %s %s: %v", e.Op, e.Addr, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *IOError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the operation failed because its deadline expired.
func (e *IOError) Timeout() bool {
	if errors.Is(e.Err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// IsTimeout reports whether err is, or wraps, a connection timeout.
func IsTimeout(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr) && ioErr.Timeout()
}
