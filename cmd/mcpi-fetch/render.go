package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/Sternrassler/mcpi-fetch/pkg/world"
)

// writeSummary prints the fetch timing and a count of every block id in the region.
func writeSummary(w io.Writer, region world.Region, ids map[world.Coordinate]int, elapsed time.Duration, parallelism int) {
	rate := 0.0
	if elapsed > 0 {
		rate = float64(len(ids)) / elapsed.Seconds()
	}
	fmt.Fprintf(w, "Fetched %d blocks of %s in %s (%.0f blocks/sec, parallelism %d)\n",
		len(ids), region.Normalize(), elapsed.Round(time.Millisecond), rate, parallelism)
	writeCounts(w, ids)
}

// writeCounts prints how many times each block id occurs, in id order.
func writeCounts(w io.Writer, ids map[world.Coordinate]int) {
	counts := make(map[int]int)
	for _, id := range ids {
		counts[id]++
	}
	for _, id := range slices.Sorted(maps.Keys(counts)) {
		fmt.Fprintf(w, "  id %3d: %d\n", id, counts[id])
	}
}

// writeTopView draws one row per z and one column per x of a flat region: 'x' for a
// solid block, a space for air.
func writeTopView(w io.Writer, region world.Region, ids map[world.Coordinate]int) {
	n := region.Normalize()
	var row strings.Builder
	for z := n.A.Z; z <= n.B.Z; z++ {
		row.Reset()
		for x := n.A.X; x <= n.B.X; x++ {
			if ids[world.Coordinate{X: x, Y: n.A.Y, Z: z}] == world.Air {
				row.WriteByte(' ')
			} else {
				row.WriteByte('x')
			}
		}
		fmt.Fprintln(w, strings.TrimRight(row.String(), " "))
	}
}
