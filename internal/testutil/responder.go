// Package testutil provides in-memory and TCP fakes of the Minecraft Pi API for tests.
package testutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Sternrassler/mcpi-fetch/pkg/world"
)

// Hang is a sentinel response: the fake never answers the request and the caller's
// receive blocks until its deadline expires or the connection closes.
const Hang = "\x00hang"

// Responder computes the response line for one request.
type Responder func(method string, args []string) string

// ParseRequest splits a request line "method(a,b,c)" into its method and arguments.
func ParseRequest(line string) (string, []string, error) {
	line = strings.TrimRight(line, "\r\n")
	open := strings.IndexByte(line, '(')
	if open < 0 || !strings.HasSuffix(line, ")") {
		return "", nil, fmt.Errorf("malformed request %q", line)
	}
	method := line[:open]
	inner := line[open+1 : len(line)-1]
	if inner == "" {
		return method, nil, nil
	}
	return method, strings.Split(inner, ","), nil
}

// ParseCoordinate reads the first three arguments as a coordinate.
func ParseCoordinate(args []string) (world.Coordinate, bool) {
	if len(args) < 3 {
		return world.Coordinate{}, false
	}
	var v [3]int
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(args[i]))
		if err != nil {
			return world.Coordinate{}, false
		}
		v[i] = n
	}
	return world.Coordinate{X: v[0], Y: v[1], Z: v[2]}, true
}

// BlockID returns a deterministic block id for c.
func BlockID(c world.Coordinate) int {
	h := c.X*73856093 ^ c.Y*19349663 ^ c.Z*83492791
	if h < 0 {
		h = -h
	}
	return h % 256
}

// BlockData returns a deterministic auxiliary data value for c.
func BlockData(c world.Coordinate) int {
	return (c.X + 2*c.Y + 3*c.Z) & 0xf
}

// CoordinateResponder answers world.getBlock and world.getBlockWithData with values
// derived from the requested coordinate only, so results are independent of which
// connection served them.
func CoordinateResponder() Responder {
	return BlockMapResponder(nil, -1)
}

// BlockMapResponder answers block queries from ids. Coordinates missing from ids get
// fallback, or a BlockID-derived value when fallback is negative.
func BlockMapResponder(ids map[world.Coordinate]int, fallback int) Responder {
	return func(method string, args []string) string {
		c, ok := ParseCoordinate(args)
		if !ok {
			return "Fail"
		}
		id, found := ids[c]
		if !found {
			id = fallback
			if fallback < 0 {
				id = BlockID(c)
			}
		}
		switch method {
		case "world.getBlock":
			return strconv.Itoa(id)
		case "world.getBlockWithData":
			return fmt.Sprintf("%d,%d", id, BlockData(c))
		default:
			return "Fail"
		}
	}
}

// Override returns a responder that answers at for the coordinate c and delegates all
// other requests to next.
func Override(next Responder, c world.Coordinate, answer string) Responder {
	return func(method string, args []string) string {
		if got, ok := ParseCoordinate(args); ok && got == c {
			return answer
		}
		return next(method, args)
	}
}
