// Package world provides the coordinate and region types used to address block data
// in a Minecraft Pi world, and the partitioner that turns a region into work items.
//
// A Region is defined by two opposite corners which may be supplied in any order:
//
//	r := world.NewRegion(world.Coordinate{X: 1, Y: 0, Z: 1}, world.Coordinate{X: -2, Y: 0, Z: -2})
//	n, err := r.Volume() // 16
//	for _, c := range r.Partition() {
//		// (-2,0,-2), (-2,0,-1), ... ascending x, then y, then z
//	}
//
// Normalization always happens on a copy; the caller's corners are never modified.
package world
