package world

import "fmt"

// Block ids returned by world.getBlock that callers of this module care about.
const (
	Air              = 0
	Stone            = 1
	Dirt             = 3
	Torch            = 50
	BedrockInvisible = 95
)

// Block is the decoded answer of world.getBlockWithData: a block type id and its
// auxiliary data value.
type Block struct {
	ID   int `json:"id"`
	Data int `json:"data"`
}

func (b Block) String() string {
	return fmt.Sprintf("%d:%d", b.ID, b.Data)
}

// AxisExtent walks outward from origin along axis, in both directions, for at most limit
// blocks and returns the last coordinate values before the first boundary block on each
// side. ids must contain the scanned line, as fetched for the region from
// origin-limit to origin+limit along the axis. ok is false when no boundary was seen on
// one or both sides, in which case that side reports the origin value.
func AxisExtent(ids map[Coordinate]int, origin Coordinate, axis Axis, limit, boundary int) (lo, hi int, ok bool) {
	base := origin.Axis(axis)
	lo, hi = base, base
	unit := axis.Unit()

	foundHi := false
	for d := 0; d < limit; d++ {
		c := origin.Add(Coordinate{unit.X * d, unit.Y * d, unit.Z * d})
		if id, seen := ids[c]; seen && id == boundary {
			hi = base + d - 1
			foundHi = true
			break
		}
	}

	foundLo := false
	for d := 0; d < limit; d++ {
		c := origin.Add(Coordinate{-unit.X * d, -unit.Y * d, -unit.Z * d})
		if id, seen := ids[c]; seen && id == boundary {
			lo = base - d + 1
			foundLo = true
			break
		}
	}

	return lo, hi, foundLo && foundHi
}

// Line returns the region of 2*radius+1 blocks centred on origin along axis.
func Line(origin Coordinate, axis Axis, radius int) Region {
	u := axis.Unit()
	return Region{
		A: origin.Add(Coordinate{-u.X * radius, -u.Y * radius, -u.Z * radius}),
		B: origin.Add(Coordinate{u.X * radius, u.Y * radius, u.Z * radius}),
	}
}
