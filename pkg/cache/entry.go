package cache

import (
	"time"

	"github.com/Sternrassler/mcpi-fetch/pkg/world"
)

// Entry is a cached result set.
type Entry[T any] struct {
	// Query is the API method the values answer.
	Query string `json:"query"`

	// Min and Max are the normalized region corners.
	Min world.Coordinate `json:"min"`
	Max world.Coordinate `json:"max"`

	// Values holds one decoded value per coordinate in partition order.
	Values []T `json:"values"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was written.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry[T]) IsExpired() bool {
	return e.TTL() == 0
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry[T]) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Region returns the region the entry covers.
func (e *Entry[T]) Region() world.Region {
	return world.NewRegion(e.Min, e.Max)
}

// NewEntry flattens values over region into partition order. ok is false if values does
// not contain every coordinate of region.
func NewEntry[T any](query string, region world.Region, values map[world.Coordinate]T, ttl time.Duration) (*Entry[T], bool) {
	coords := region.Partition()
	flat := make([]T, len(coords))
	for i, c := range coords {
		v, found := values[c]
		if !found {
			return nil, false
		}
		flat[i] = v
	}

	n := region.Normalize()
	now := time.Now()
	return &Entry[T]{
		Query:    query,
		Min:      n.A,
		Max:      n.B,
		Values:   flat,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}, true
}

// Map expands the entry back into a coordinate-keyed result set. ok is false when the
// value count does not match the region volume.
func (e *Entry[T]) Map() (map[world.Coordinate]T, bool) {
	if v, err := e.Region().Volume(); err != nil || v != len(e.Values) {
		return nil, false
	}
	coords := e.Region().Partition()
	out := make(map[world.Coordinate]T, len(coords))
	for i, c := range coords {
		out[c] = e.Values[i]
	}
	return out, true
}
