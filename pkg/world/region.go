package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Region is a cuboid of block coordinates spanned by two opposite corners, inclusive.
// The corners may be given in any order.
type Region struct {
	A, B Coordinate
}

// NewRegion returns the region spanned by a and b.
func NewRegion(a, b Coordinate) Region {
	return Region{A: a, B: b}
}

// RegionFromVec3 builds a region from two float corners, rejecting non-finite or
// non-integral components.
func RegionFromVec3(a, b mgl64.Vec3) (Region, error) {
	ca, err := CoordinateFromVec3(a)
	if err != nil {
		return Region{}, fmt.Errorf("corner a: %w", err)
	}
	cb, err := CoordinateFromVec3(b)
	if err != nil {
		return Region{}, fmt.Errorf("corner b: %w", err)
	}
	return Region{A: ca, B: cb}, nil
}

// Normalize returns a copy of r whose A corner holds the per-axis minimum and whose B
// corner holds the per-axis maximum.
func (r Region) Normalize() Region {
	return Region{
		A: Coordinate{min(r.A.X, r.B.X), min(r.A.Y, r.B.Y), min(r.A.Z, r.B.Z)},
		B: Coordinate{max(r.A.X, r.B.X), max(r.A.Y, r.B.Y), max(r.A.Z, r.B.Z)},
	}
}

// Min returns the per-axis minimum corner.
func (r Region) Min() Coordinate { return r.Normalize().A }

// Max returns the per-axis maximum corner.
func (r Region) Max() Coordinate { return r.Normalize().B }

// Size returns the number of blocks along each axis.
func (r Region) Size() (Coordinate, error) {
	n := r.Normalize()
	var out [3]int
	for i, pair := range [3][2]int{{n.A.X, n.B.X}, {n.A.Y, n.B.Y}, {n.A.Z, n.B.Z}} {
		// Unsigned subtraction is exact for lo <= hi even when hi-lo overflows int.
		span := uint64(pair[1]) - uint64(pair[0])
		if span >= math.MaxInt {
			return Coordinate{}, fmt.Errorf("%w: %s extent overflows", ErrInvalidRegion, Axis(i))
		}
		out[i] = int(span) + 1
	}
	return Coordinate{out[0], out[1], out[2]}, nil
}

// Volume returns the number of coordinates inside r:
// (|x2-x1|+1) * (|y2-y1|+1) * (|z2-z1|+1).
func (r Region) Volume() (int, error) {
	s, err := r.Size()
	if err != nil {
		return 0, err
	}
	v := s.X
	for _, f := range []int{s.Y, s.Z} {
		if v > math.MaxInt/f {
			return 0, fmt.Errorf("%w: volume of %s overflows", ErrInvalidRegion, r)
		}
		v *= f
	}
	return v, nil
}

// Validate checks that r has a representable volume no larger than maxVolume.
// A maxVolume of zero or less disables the size limit.
func (r Region) Validate(maxVolume int) error {
	v, err := r.Volume()
	if err != nil {
		return err
	}
	if maxVolume > 0 && v > maxVolume {
		return fmt.Errorf("%w: volume %d exceeds limit %d", ErrInvalidRegion, v, maxVolume)
	}
	return nil
}

// Contains reports whether c lies inside r.
func (r Region) Contains(c Coordinate) bool {
	n := r.Normalize()
	return c.X >= n.A.X && c.X <= n.B.X &&
		c.Y >= n.A.Y && c.Y <= n.B.Y &&
		c.Z >= n.A.Z && c.Z <= n.B.Z
}

// Partition enumerates every coordinate of r exactly once, ascending by x, then y, then z.
// It panics if the volume is not representable; call Validate first for untrusted input.
func (r Region) Partition() []Coordinate {
	v, err := r.Volume()
	if err != nil {
		panic(err)
	}
	n := r.Normalize()
	out := make([]Coordinate, 0, v)
	for x := n.A.X; ; x++ {
		for y := n.A.Y; ; y++ {
			for z := n.A.Z; ; z++ {
				out = append(out, Coordinate{x, y, z})
				if z == n.B.Z {
					break
				}
			}
			if y == n.B.Y {
				break
			}
		}
		if x == n.B.X {
			break
		}
	}
	return out
}

// String renders the region as "(x1,y1,z1)..(x2,y2,z2)" in the caller's corner order.
func (r Region) String() string {
	return fmt.Sprintf("(%s)..(%s)", r.A, r.B)
}
