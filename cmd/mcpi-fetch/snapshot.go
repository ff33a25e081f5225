package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/mcpi-fetch/pkg/snapshot"
	"github.com/Sternrassler/mcpi-fetch/pkg/world"
)

// runSnapshot inspects the regions saved by "fetch -snapshot".
func runSnapshot(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("snapshot: want list, show, export or delete")
	}

	fs := flag.NewFlagSet("snapshot "+args[0], flag.ContinueOnError)
	path := fs.String("file", getEnv("MCPI_SNAPSHOT", "mcpi.db"), "bolt file holding the snapshots")
	name := fs.String("name", "", "snapshot name")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if args[0] != "list" && *name == "" {
		return fmt.Errorf("snapshot %s: -name is required", args[0])
	}

	store, err := snapshot.Open(*path)
	if err != nil {
		return err
	}
	defer store.Close()

	switch args[0] {
	case "list":
		return listSnapshots(store, stdout)
	case "show":
		return showSnapshot(store, *name, stdout)
	case "export":
		return exportSnapshot(store, *name, stdout)
	case "delete":
		if err := store.Delete(*name); err != nil {
			return fmt.Errorf("delete snapshot %q: %w", *name, err)
		}
		fmt.Fprintf(stdout, "Deleted snapshot %q\n", *name)
		return nil
	default:
		return fmt.Errorf("snapshot: unknown action %q", args[0])
	}
}

func listSnapshots(store *snapshot.Store, w io.Writer) error {
	names, err := store.Names()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(w, "no snapshots")
		return nil
	}
	for _, name := range names {
		info, err := store.Stat(name)
		if err != nil {
			return fmt.Errorf("stat snapshot %q: %w", name, err)
		}
		volume, _ := info.Region.Volume()
		fmt.Fprintf(w, "%-24s %s %d blocks saved %s\n",
			info.Name, info.Region, volume, info.SavedAt.Format(time.RFC3339))
	}
	return nil
}

func showSnapshot(store *snapshot.Store, name string, w io.Writer) error {
	region, blocks, err := store.Load(name)
	if err != nil {
		return err
	}
	ids := blockIDs(blocks)

	fmt.Fprintf(w, "Snapshot %q: %d blocks of %s\n", name, len(ids), region.Normalize())
	writeCounts(w, ids)
	if region.Min().Y == region.Max().Y {
		fmt.Fprintln(w)
		writeTopView(w, region, ids)
	}
	return nil
}

// exportSnapshot writes one "x,y,z,id,data" line per block.
func exportSnapshot(store *snapshot.Store, name string, w io.Writer) error {
	err := store.RangeBlocks(name, func(pos world.Coordinate, b world.Block) {
		fmt.Fprintf(w, "%s,%d,%d\n", pos, b.ID, b.Data)
	})
	if err != nil {
		return fmt.Errorf("export snapshot %q: %w", name, err)
	}
	return nil
}
