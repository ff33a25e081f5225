package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidRegion is returned for region input that cannot be normalized into a finite
// set of integer coordinates.
var ErrInvalidRegion = errors.New("invalid region")

// Coordinate identifies one block cell. It is comparable and used directly as a map key.
type Coordinate struct {
	X, Y, Z int
}

// String renders the coordinate in wire argument form: "x,y,z".
func (c Coordinate) String() string {
	return fmt.Sprintf("%d,%d,%d", c.X, c.Y, c.Z)
}

// Add returns c offset by d.
func (c Coordinate) Add(d Coordinate) Coordinate {
	return Coordinate{c.X + d.X, c.Y + d.Y, c.Z + d.Z}
}

// Axis returns the component of c along axis a.
func (c Coordinate) Axis(a Axis) int {
	switch a {
	case AxisX:
		return c.X
	case AxisY:
		return c.Y
	default:
		return c.Z
	}
}

// CoordinateFromVec3 converts a float position into a block coordinate. Every component
// must be finite and integral; use Floor first for entity positions.
func CoordinateFromVec3(v mgl64.Vec3) (Coordinate, error) {
	var out [3]int
	for i, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Coordinate{}, fmt.Errorf("%w: component %d is not finite (%v)", ErrInvalidRegion, i, f)
		}
		if f != math.Trunc(f) {
			return Coordinate{}, fmt.Errorf("%w: component %d is not an integer (%v)", ErrInvalidRegion, i, f)
		}
		if f > math.MaxInt32 || f < math.MinInt32 {
			return Coordinate{}, fmt.Errorf("%w: component %d out of range (%v)", ErrInvalidRegion, i, f)
		}
		out[i] = int(f)
	}
	return Coordinate{out[0], out[1], out[2]}, nil
}

// Floor returns the block coordinate containing the float position v.
func Floor(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Floor(v[0]), math.Floor(v[1]), math.Floor(v[2])}
}

// Axis names one of the three coordinate axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Unit returns the unit vector pointing along a in the positive direction.
func (a Axis) Unit() Coordinate {
	switch a {
	case AxisX:
		return Coordinate{X: 1}
	case AxisY:
		return Coordinate{Y: 1}
	default:
		return Coordinate{Z: 1}
	}
}
