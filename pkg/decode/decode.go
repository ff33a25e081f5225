// Package decode turns Minecraft Pi response lines into typed values.
//
// The set of decoders is closed: Int for queries answering a single integer (such as
// world.getBlock) and BlockWithData for queries answering an "id,data" pair (such as
// world.getBlockWithData). Each returns a *Error for malformed input.
package decode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sternrassler/mcpi-fetch/pkg/world"
)

// Query names understood by the decoders in this package.
const (
	QueryBlock         = "world.getBlock"
	QueryBlockWithData = "world.getBlockWithData"
)

var (
	// ErrServerFail is returned when the server answered "Fail".
	ErrServerFail = errors.New("server returned Fail")

	// ErrFieldCount is returned when the response has the wrong number of fields.
	ErrFieldCount = errors.New("unexpected field count")
)

// Func decodes one response line into a value of type T.
type Func[T any] func(line string) (T, error)

// Error reports a response line that does not match the expected format.
type Error struct {
	Response string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("decode response %q: %v", e.Response, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Int decodes a single integer.
func Int(line string) (int, error) {
	fields, err := split(line, 1)
	if err != nil {
		return 0, err
	}
	return fields[0], nil
}

// BlockWithData decodes an "id,data" pair.
func BlockWithData(line string) (world.Block, error) {
	fields, err := split(line, 2)
	if err != nil {
		return world.Block{}, err
	}
	return world.Block{ID: fields[0], Data: fields[1]}, nil
}

func split(line string, n int) ([]int, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "Fail" {
		return nil, &Error{Response: line, Err: ErrServerFail}
	}

	parts := strings.Split(trimmed, ",")
	if len(parts) != n {
		return nil, &Error{
			Response: line,
			Err:      fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(parts), n),
		}
	}

	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, &Error{Response: line, Err: err}
		}
		out[i] = v
	}
	return out, nil
}
