package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/mcpi-fetch/pkg/snapshot"
	"github.com/Sternrassler/mcpi-fetch/pkg/world"
	"github.com/go-gl/mathgl/mgl64"
)

func runFetch(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	opts := commonFlags(fs)
	from := fs.String("from", "", "first corner x,y,z")
	to := fs.String("to", "", "second corner x,y,z")
	withData := fs.Bool("data", false, "fetch block data values too")
	snapPath := fs.String("snapshot", "", "bolt file to save the region to")
	name := fs.String("name", "", "snapshot name (default: the region)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	region, err := parseRegion(*from, *to)
	if err != nil {
		return err
	}

	c, closeAll, err := opts.open(ctx, true)
	if err != nil {
		return err
	}
	defer closeAll()

	start := time.Now()
	var (
		ids    map[world.Coordinate]int
		blocks map[world.Coordinate]world.Block
	)
	if *withData {
		blocks, err = c.FetchBlocksWithData(ctx, region)
		ids = blockIDs(blocks)
	} else {
		ids, err = c.FetchBlocks(ctx, region)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	writeSummary(stdout, region, ids, elapsed, c.Parallelism())
	if region.Min().Y == region.Max().Y {
		fmt.Fprintln(stdout)
		writeTopView(stdout, region, ids)
	}

	if *snapPath == "" {
		return nil
	}
	store, err := snapshot.Open(*snapPath)
	if err != nil {
		return err
	}
	defer store.Close()

	snapName := *name
	if snapName == "" {
		snapName = region.Normalize().String()
	}
	if blocks != nil {
		err = store.Save(snapName, region, blocks)
	} else {
		err = store.SaveIDs(snapName, region, ids)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nSaved snapshot %q to %s\n", snapName, *snapPath)
	return nil
}

func runExtent(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("extent", flag.ContinueOnError)
	opts := commonFlags(fs)
	radius := fs.Int("radius", 200, "blocks to scan in each direction")
	y := fs.Int("y", 0, "height of the scanned lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *radius < 1 {
		return fmt.Errorf("radius must be >= 1 (got %d)", *radius)
	}

	c, closeAll, err := opts.open(ctx, true)
	if err != nil {
		return err
	}
	defer closeAll()

	origin := world.Coordinate{Y: *y}
	var bounds [2][2]int
	for i, axis := range []world.Axis{world.AxisX, world.AxisZ} {
		ids, err := c.FetchBlocks(ctx, world.Line(origin, axis, *radius))
		if err != nil {
			return err
		}
		lo, hi, ok := world.AxisExtent(ids, origin, axis, *radius+1, world.BedrockInvisible)
		if !ok {
			return fmt.Errorf("no %s boundary within %d blocks of %s", axis, *radius, origin)
		}
		bounds[i] = [2]int{lo, hi}
	}

	fmt.Fprintf(stdout, "The world is: [%d..%d][y][%d..%d]\n",
		bounds[0][0], bounds[0][1], bounds[1][0], bounds[1][1])
	return nil
}

func runBench(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	opts := commonFlags(fs)
	from := fs.String("from", "-50,8,-50", "first corner x,y,z")
	to := fs.String("to", "50,8,50", "second corner x,y,z")
	degreeList := fs.String("degrees", "100,150,200", "comma-separated parallelism degrees")
	if err := fs.Parse(args); err != nil {
		return err
	}

	region, err := parseRegion(*from, *to)
	if err != nil {
		return err
	}
	degrees, err := parseInts(*degreeList)
	if err != nil {
		return fmt.Errorf("degrees: %w", err)
	}
	volume, err := region.Volume()
	if err != nil {
		return err
	}

	for _, degree := range degrees {
		opts.parallelism = degree

		start := time.Now()
		c, closeAll, err := opts.open(ctx, false)
		if err != nil {
			return fmt.Errorf("degree %d: %w", degree, err)
		}
		setup := time.Since(start)

		var times [2]time.Duration
		for i := range times {
			t0 := time.Now()
			if _, err := c.FetchBlocksWithData(ctx, region); err != nil {
				closeAll()
				return fmt.Errorf("degree %d: %w", degree, err)
			}
			times[i] = time.Since(t0)
		}
		closeAll()

		fmt.Fprintf(stdout, "entries=%d degree=%d setup=%s time1=%s time2=%s rate=%.0f blocks/sec\n",
			volume, degree,
			setup.Round(time.Millisecond),
			times[0].Round(time.Millisecond),
			times[1].Round(time.Millisecond),
			float64(volume)/times[1].Seconds())
	}
	return nil
}

func parseRegion(from, to string) (world.Region, error) {
	if from == "" || to == "" {
		return world.Region{}, fmt.Errorf("-from and -to are required")
	}
	a, err := parseCoordinate(from)
	if err != nil {
		return world.Region{}, fmt.Errorf("-from: %w", err)
	}
	b, err := parseCoordinate(to)
	if err != nil {
		return world.Region{}, fmt.Errorf("-to: %w", err)
	}
	return world.NewRegion(a, b), nil
}

// parseCoordinate parses "x,y,z". Fractional positions, as the game reports them for
// players, select the block containing them.
func parseCoordinate(s string) (world.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return world.Coordinate{}, fmt.Errorf("%w: want x,y,z, got %q", world.ErrInvalidRegion, s)
	}
	var v mgl64.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return world.Coordinate{}, fmt.Errorf("%w: %q is not a number", world.ErrInvalidRegion, p)
		}
		v[i] = f
	}
	return world.CoordinateFromVec3(world.Floor(v))
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", world.ErrInvalidRegion, p)
		}
		out = append(out, n)
	}
	return out, nil
}

func blockIDs(blocks map[world.Coordinate]world.Block) map[world.Coordinate]int {
	ids := make(map[world.Coordinate]int, len(blocks))
	for pos, b := range blocks {
		ids[pos] = b.ID
	}
	return ids
}
