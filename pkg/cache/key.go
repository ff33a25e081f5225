package cache

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/mcpi-fetch/pkg/world"
)

// KeyPrefix is prepended to every key written by the cache.
const KeyPrefix = "mcpi"

// Key identifies one cached result set.
type Key struct {
	// Query is the API method (e.g., "world.getBlock").
	Query string

	// Region is the fetched region; corner order does not matter.
	Region world.Region

	// Type names the decoded value type. Result sets of one query decoded into different
	// types are cached under different keys. Empty means untyped.
	Type string
}

// KeyFor returns the key of a result set of query over region decoded into T.
func KeyFor[T any](query string, region world.Region) Key {
	return Key{Query: query, Region: region, Type: fmt.Sprintf("%T", *new(T))}
}

// String generates a deterministic key string. Regions given with swapped corners map to
// the same key.
// Format: mcpi:query[:type]:minX,minY,minZ:maxX,maxY,maxZ
//
// Example:
//
//	mcpi:world.getBlock:int:-2,0,-2:1,0,1
func (k Key) String() string {
	n := k.Region.Normalize()
	parts := []string{KeyPrefix, k.Query}
	if k.Type != "" {
		parts = append(parts, k.Type)
	}
	return strings.Join(append(parts, n.A.String(), n.B.String()), ":")
}

// pattern returns the SCAN pattern matching all keys, or all keys of one query.
func pattern(query string) string {
	if query == "" {
		return KeyPrefix + ":*"
	}
	return fmt.Sprintf("%s:%s:*", KeyPrefix, query)
}
